// Package aggregation reduces canonical observations into bucketed,
// outlier-trimmed, volume-weighted price series.
package aggregation

import (
	"math"
	"sort"
	"time"

	"xrpl-amm-history/internal/domain"
)

// sparseFallbackCount is how many of the most recent observations are
// used when a time range filters everything out.
const sparseFallbackCount = 100

// Outlier-trim guards: never remove more than half the set, and discard
// the whole trim if it leaves less than 30% of the points.
const (
	trimMinValues = 5
	trimMaxShare  = 0.5
	trimFloor     = 0.3
	iqrMultiplier = 1.5
)

// Aggregate converts observations plus a requested range into an
// ordered series. Deterministic: the same observations, range and
// reference time always produce the same output.
func Aggregate(observations []domain.Observation, rng domain.TimeRange, now time.Time) []domain.TimeSeriesPoint {
	filtered := filterByRange(observations, rng, now)
	if len(filtered) == 0 {
		return nil
	}

	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Time < filtered[j].Time })

	trimmed := trimOutliers(filtered)

	return bucketize(trimmed, rng.BucketWidth())
}

// filterByRange keeps observations inside [now - range, now]. An empty
// result for a bounded range degrades to the most recent observations
// regardless of age, so sparse pairs still chart.
func filterByRange(observations []domain.Observation, rng domain.TimeRange, now time.Time) []domain.Observation {
	if rng == domain.RangeAll {
		out := make([]domain.Observation, len(observations))
		copy(out, observations)
		return out
	}

	lo := now.Add(-rng.Duration()).UnixMilli()
	hi := now.UnixMilli()

	var out []domain.Observation
	for _, o := range observations {
		if o.Time >= lo && o.Time <= hi {
			out = append(out, o)
		}
	}
	if len(out) > 0 {
		return out
	}

	// Sparse pair: fall back to the most recent observations.
	recent := make([]domain.Observation, len(observations))
	copy(recent, observations)
	sort.Slice(recent, func(i, j int) bool { return recent[i].Time > recent[j].Time })
	if len(recent) > sparseFallbackCount {
		recent = recent[:sparseFallbackCount]
	}
	return recent
}

// trimOutliers drops IQR outliers on price, bounded by the trim guards.
// Input must be sorted by time; output preserves that order.
func trimOutliers(observations []domain.Observation) []domain.Observation {
	n := len(observations)
	if n < trimMinValues {
		return observations
	}

	prices := make([]float64, n)
	for i, o := range observations {
		prices[i] = o.Price
	}
	sort.Float64s(prices)

	q1 := percentile(prices, 0.25)
	q3 := percentile(prices, 0.75)
	iqr := q3 - q1
	lo := q1 - iqrMultiplier*iqr
	hi := q3 + iqrMultiplier*iqr

	maxRemovals := int(trimMaxShare * float64(n))
	removed := 0

	kept := make([]domain.Observation, 0, n)
	for _, o := range observations {
		if (o.Price < lo || o.Price > hi) && removed < maxRemovals {
			removed++
			continue
		}
		kept = append(kept, o)
	}

	if float64(len(kept)) < trimFloor*float64(n) {
		return observations
	}
	return kept
}

// percentile uses linear interpolation over a pre-sorted slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// bucketize accumulates observations into fixed-width buckets spanning
// earliest to latest. Buckets with no volume are dropped; each emitted
// point sits at its bucket midpoint.
func bucketize(observations []domain.Observation, width time.Duration) []domain.TimeSeriesPoint {
	if len(observations) == 0 {
		return nil
	}

	widthMs := width.Milliseconds()
	earliest := observations[0].Time

	type bucket struct {
		sumPriceVolume float64
		sumVolume      float64
		buys           int
		sells          int
	}
	buckets := make(map[int64]*bucket)

	for _, o := range observations {
		if o.Volume <= 0 || !isFinite(o.Price) || !isFinite(o.Volume) {
			continue
		}
		idx := (o.Time - earliest) / widthMs
		b := buckets[idx]
		if b == nil {
			b = &bucket{}
			buckets[idx] = b
		}
		b.sumPriceVolume += o.Price * o.Volume
		b.sumVolume += o.Volume
		if o.BuyingBase {
			b.buys++
		} else {
			b.sells++
		}
	}

	indices := make([]int64, 0, len(buckets))
	for idx := range buckets {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	points := make([]domain.TimeSeriesPoint, 0, len(indices))
	for _, idx := range indices {
		b := buckets[idx]
		if b.sumVolume <= 0 {
			continue
		}
		price := b.sumPriceVolume / b.sumVolume
		if !isFinite(price) || price <= 0 {
			continue
		}
		// Weighting can land below 1; re-apply the orientation rule.
		if price < 1 {
			price = 1 / price
		}
		points = append(points, domain.TimeSeriesPoint{
			Time:         earliest + idx*widthMs + widthMs/2,
			QuotePerBase: price,
			BasePerQuote: 1 / price,
			Volume:       b.sumVolume,
			BuyingBase:   b.buys >= b.sells,
		})
	}
	return points
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
