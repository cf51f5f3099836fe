package stats

import (
	"math"
	"testing"
	"time"

	"xrpl-amm-history/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func point(age time.Duration, price, volume float64) domain.TimeSeriesPoint {
	return domain.TimeSeriesPoint{
		Time:         testNow.Add(-age).UnixMilli(),
		QuotePerBase: price,
		Volume:       volume,
	}
}

func TestSummarize_EmptySeriesIsAllZeros(t *testing.T) {
	got := Summarize(nil, testNow)
	want := domain.StatsRecord{}
	if got != want {
		t.Errorf("Summarize(nil) = %+v, want all zeros", got)
	}
}

func TestSummarize_Basics(t *testing.T) {
	series := []domain.TimeSeriesPoint{
		point(3*time.Hour, 2.0, 10),
		point(2*time.Hour, 3.0, 5),
		point(1*time.Hour, 2.5, 20),
	}

	got := Summarize(series, testNow)

	if got.Current != 2.5 {
		t.Errorf("current = %v, want last price 2.5", got.Current)
	}
	if got.High != 3.0 || got.Low != 2.0 {
		t.Errorf("high/low = %v/%v, want 3/2", got.High, got.Low)
	}
	if got.Volume != 35 {
		t.Errorf("volume = %v, want 35", got.Volume)
	}
	// First point within 24h has price 2.0; current 2.5 → +25%.
	if got.Change24 != 25 {
		t.Errorf("change24h = %v, want 25", got.Change24)
	}
}

func TestSummarize_DiscardsSubUnitAndNonFinitePrices(t *testing.T) {
	series := []domain.TimeSeriesPoint{
		point(3*time.Hour, 0.5, 10),
		point(2*time.Hour, math.NaN(), 10),
		point(1*time.Hour, math.Inf(1), 10),
		point(30*time.Minute, 2.0, 10),
	}

	got := Summarize(series, testNow)
	if got.Current != 2.0 || got.High != 2.0 || got.Low != 2.0 {
		t.Errorf("bad prices leaked into %+v", got)
	}
	if got.Volume != 10 {
		t.Errorf("volume = %v, want only the clean point's 10", got.Volume)
	}
}

func TestSummarize_NegativeVolumeIgnored(t *testing.T) {
	series := []domain.TimeSeriesPoint{
		point(2*time.Hour, 2.0, -5),
		point(1*time.Hour, 2.0, 7),
	}
	if got := Summarize(series, testNow); got.Volume != 7 {
		t.Errorf("volume = %v, want 7", got.Volume)
	}
}

func TestSummarize_TailTrimOnLargeSeries(t *testing.T) {
	// 100 points at price 2 plus two extreme tails; the 2% trim takes
	// one point off each end of the sorted prices.
	var series []domain.TimeSeriesPoint
	series = append(series, point(50*time.Hour, 1000, 1))
	for i := 0; i < 100; i++ {
		series = append(series, point(time.Duration(100-i)*time.Minute, 2, 1))
	}
	series = append(series, point(time.Minute, 1.0, 1))

	got := Summarize(series, testNow)
	if got.High != 2 {
		t.Errorf("high = %v, spike should be trimmed", got.High)
	}
	if got.Low != 2 {
		t.Errorf("low = %v, want 2 after trim", got.Low)
	}
}

func TestSummarize_NoPointWithin24hMeansZeroChange(t *testing.T) {
	series := []domain.TimeSeriesPoint{
		point(72*time.Hour, 2.0, 1),
		point(48*time.Hour, 4.0, 1),
	}
	if got := Summarize(series, testNow); got.Change24 != 0 {
		t.Errorf("change24h = %v, want 0 with no point inside 24h", got.Change24)
	}
}
