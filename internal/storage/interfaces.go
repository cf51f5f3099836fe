package storage

import (
	"context"

	"xrpl-amm-history/internal/domain"
)

// SwapRecordStore provides access to swap_records storage: the caller's
// own historical conversions, used for position and reverse quotes.
type SwapRecordStore interface {
	// Insert adds a new record for an account. Returns ErrDuplicateKey if
	// an identical record (same account, date, assets and amounts) exists.
	Insert(ctx context.Context, account string, rec *domain.SwapRecord) error

	// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, account string, recs []*domain.SwapRecord) error

	// GetByAccount retrieves all records for an account, ordered by date ASC.
	GetByAccount(ctx context.Context, account string) ([]*domain.SwapRecord, error)

	// GetByTimeRange retrieves records for an account within [start, end] ms (inclusive).
	GetByTimeRange(ctx context.Context, account string, start, end int64) ([]*domain.SwapRecord, error)
}

// SeriesArchiveStore archives aggregated price series points per pair and
// range token. Append-only; duplicate points are collapsed by the backend.
type SeriesArchiveStore interface {
	// InsertBulk archives the points of one aggregation run.
	InsertBulk(ctx context.Context, pairKey string, rng domain.TimeRange, points []domain.TimeSeriesPoint) error

	// GetByPair retrieves archived points for a pair and range, ordered by time ASC.
	GetByPair(ctx context.Context, pairKey string, rng domain.TimeRange) ([]domain.TimeSeriesPoint, error)
}
