package clickhouse

import (
	"context"
	"fmt"

	"xrpl-amm-history/internal/domain"
	"xrpl-amm-history/internal/storage"
)

// SeriesArchiveStore implements storage.SeriesArchiveStore using ClickHouse.
// The backing table is a ReplacingMergeTree keyed by (pair_key, time_range,
// timestamp_ms), so re-archiving the same run collapses to the latest rows.
type SeriesArchiveStore struct {
	conn *Conn
}

// NewSeriesArchiveStore creates a new SeriesArchiveStore.
func NewSeriesArchiveStore(conn *Conn) *SeriesArchiveStore {
	return &SeriesArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SeriesArchiveStore = (*SeriesArchiveStore)(nil)

// InsertBulk archives the points of one aggregation run.
func (s *SeriesArchiveStore) InsertBulk(ctx context.Context, pairKey string, rng domain.TimeRange, points []domain.TimeSeriesPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO series_points (
			pair_key, time_range, timestamp_ms, quote_per_base, base_per_quote, volume, buying_base
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		var buying uint8
		if p.BuyingBase {
			buying = 1
		}
		err = batch.Append(
			pairKey, string(rng), uint64(p.Time),
			p.QuotePerBase, p.BasePerQuote, p.Volume, buying,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPair retrieves archived points for a pair and range, ordered by time ASC.
func (s *SeriesArchiveStore) GetByPair(ctx context.Context, pairKey string, rng domain.TimeRange) ([]domain.TimeSeriesPoint, error) {
	query := `
		SELECT timestamp_ms, quote_per_base, base_per_quote, volume, buying_base
		FROM series_points FINAL
		WHERE pair_key = ? AND time_range = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, pairKey, string(rng))
	if err != nil {
		return nil, fmt.Errorf("query series points: %w", err)
	}
	defer rows.Close()

	var points []domain.TimeSeriesPoint
	for rows.Next() {
		var p domain.TimeSeriesPoint
		var timestampMs uint64
		var buying uint8

		if err := rows.Scan(&timestampMs, &p.QuotePerBase, &p.BasePerQuote, &p.Volume, &buying); err != nil {
			return nil, fmt.Errorf("scan series point row: %w", err)
		}

		p.Time = int64(timestampMs)
		p.BuyingBase = buying != 0
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series point rows: %w", err)
	}

	return points, nil
}
