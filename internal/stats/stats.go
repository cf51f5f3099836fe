// Package stats reduces a price series into summary trading figures.
package stats

import (
	"math"
	"sort"
	"time"

	"xrpl-amm-history/internal/domain"
)

// tailTrimShare is trimmed from each end of the sorted prices before
// taking high/low, so a single spike does not own the headline range.
const tailTrimShare = 0.02

// Summarize computes current/high/low/change/volume for a series.
// Points with sub-1 or non-finite prices are discarded first; every
// output field collapses to 0 rather than going non-finite.
func Summarize(series []domain.TimeSeriesPoint, now time.Time) domain.StatsRecord {
	clean := make([]domain.TimeSeriesPoint, 0, len(series))
	for _, p := range series {
		if p.QuotePerBase >= 1 && isFinite(p.QuotePerBase) {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		return domain.StatsRecord{}
	}

	current := clean[len(clean)-1].QuotePerBase

	prices := make([]float64, len(clean))
	for i, p := range clean {
		prices[i] = p.QuotePerBase
	}
	sort.Float64s(prices)

	trimmed := trimTails(prices)
	high := trimmed[len(trimmed)-1]
	low := trimmed[0]

	var volume float64
	for _, p := range clean {
		if p.Volume > 0 && isFinite(p.Volume) {
			volume += p.Volume
		}
	}

	return domain.StatsRecord{
		Current:  finiteOrZero(current),
		High:     finiteOrZero(high),
		Low:      finiteOrZero(low),
		Change24: finiteOrZero(change24h(clean, current, now)),
		Volume:   finiteOrZero(volume),
	}
}

// trimTails removes the tail share from both ends of a sorted slice,
// falling back to the untrimmed slice when nothing would remain.
func trimTails(sorted []float64) []float64 {
	k := int(tailTrimShare * float64(len(sorted)))
	if k == 0 {
		return sorted
	}
	trimmed := sorted[k : len(sorted)-k]
	if len(trimmed) == 0 {
		return sorted
	}
	return trimmed
}

// change24h is the percentage move from the first point inside the last
// 24 hours to the current price. No such point, or a zero reference
// price, reads as no change.
func change24h(series []domain.TimeSeriesPoint, current float64, now time.Time) float64 {
	cutoff := now.Add(-24 * time.Hour).UnixMilli()
	for _, p := range series {
		if p.Time >= cutoff {
			if p.QuotePerBase == 0 {
				return 0
			}
			return (current - p.QuotePerBase) / p.QuotePerBase * 100
		}
	}
	return 0
}

func finiteOrZero(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
