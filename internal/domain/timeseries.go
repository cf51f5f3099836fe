package domain

import "time"

// TimeRange selects how far back a series request reaches.
type TimeRange string

// Supported time-range tokens. Anything else normalizes to Range30D.
const (
	Range1H  TimeRange = "1H"
	Range6H  TimeRange = "6H"
	Range24H TimeRange = "24H"
	Range7D  TimeRange = "7D"
	Range30D TimeRange = "30D"
	RangeAll TimeRange = "ALL"
)

// ParseTimeRange normalizes a range token. Unknown tokens fall back to 30D.
func ParseTimeRange(s string) TimeRange {
	switch TimeRange(s) {
	case Range1H, Range6H, Range24H, Range7D, Range30D, RangeAll:
		return TimeRange(s)
	default:
		return Range30D
	}
}

// Duration returns the lookback window. RangeAll returns 0 (no filter).
func (r TimeRange) Duration() time.Duration {
	switch r {
	case Range1H:
		return time.Hour
	case Range6H:
		return 6 * time.Hour
	case Range24H:
		return 24 * time.Hour
	case Range7D:
		return 7 * 24 * time.Hour
	case Range30D:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// BucketWidth returns the fixed aggregation bucket width for the range.
func (r TimeRange) BucketWidth() time.Duration {
	switch r {
	case Range1H:
		return 60 * time.Second
	case Range6H:
		return 300 * time.Second
	case Range24H:
		return 900 * time.Second
	case Range7D:
		return 3600 * time.Second
	default: // 30D and ALL
		return 14400 * time.Second
	}
}

// Observation is one canonical swap observation produced by the
// normalizer: price is quote-per-base (>= 1 by convention), volume is in
// base units, time is epoch milliseconds.
type Observation struct {
	Time       int64
	Price      float64
	Volume     float64
	BuyingBase bool
}

// TimeSeriesPoint is one aggregated bucket of a price series.
type TimeSeriesPoint struct {
	Time         int64   // bucket midpoint, epoch ms
	QuotePerBase float64 // volume-weighted price, >= 1
	BasePerQuote float64 // 1 / QuotePerBase
	Volume       float64 // total base volume in the bucket
	BuyingBase   bool    // majority direction, ties favor buying base
}
