package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"xrpl-amm-history/internal/domain"
	"xrpl-amm-history/internal/storage"
)

// SwapRecordStore implements storage.SwapRecordStore using PostgreSQL.
type SwapRecordStore struct {
	pool *Pool
}

// NewSwapRecordStore creates a new SwapRecordStore.
func NewSwapRecordStore(pool *Pool) *SwapRecordStore {
	return &SwapRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SwapRecordStore = (*SwapRecordStore)(nil)

const insertSwapRecordQuery = `
	INSERT INTO swap_records (
		account, currency_1, issuer_1, value_1, currency_2, issuer_2, value_2, date
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// Insert adds a new record. Returns ErrDuplicateKey if an identical record exists.
func (s *SwapRecordStore) Insert(ctx context.Context, account string, rec *domain.SwapRecord) error {
	if rec == nil || account == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertSwapRecordQuery,
		account,
		rec.Currency1, rec.Issuer1, rec.Value1,
		rec.Currency2, rec.Issuer2, rec.Value2,
		rec.Date,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert swap record: %w", err)
	}
	return nil
}

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *SwapRecordStore) InsertBulk(ctx context.Context, account string, recs []*domain.SwapRecord) error {
	if len(recs) == 0 {
		return nil
	}
	if account == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range recs {
		if rec == nil {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertSwapRecordQuery,
			account,
			rec.Currency1, rec.Issuer1, rec.Value1,
			rec.Currency2, rec.Issuer2, rec.Value2,
			rec.Date,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert swap record in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByAccount retrieves all records for an account, ordered by date ASC.
func (s *SwapRecordStore) GetByAccount(ctx context.Context, account string) ([]*domain.SwapRecord, error) {
	query := `
		SELECT id, currency_1, issuer_1, value_1, currency_2, issuer_2, value_2, date
		FROM swap_records
		WHERE account = $1
		ORDER BY date ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, account)
	if err != nil {
		return nil, fmt.Errorf("get swap records by account: %w", err)
	}
	defer rows.Close()

	return scanSwapRecords(rows)
}

// GetByTimeRange retrieves records for an account within [start, end] ms (inclusive).
func (s *SwapRecordStore) GetByTimeRange(ctx context.Context, account string, start, end int64) ([]*domain.SwapRecord, error) {
	query := `
		SELECT id, currency_1, issuer_1, value_1, currency_2, issuer_2, value_2, date
		FROM swap_records
		WHERE account = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, account, start, end)
	if err != nil {
		return nil, fmt.Errorf("get swap records by time range: %w", err)
	}
	defer rows.Close()

	return scanSwapRecords(rows)
}

// scanSwapRecords scans multiple rows into a slice of SwapRecord.
func scanSwapRecords(rows pgx.Rows) ([]*domain.SwapRecord, error) {
	var recs []*domain.SwapRecord

	for rows.Next() {
		var rec domain.SwapRecord

		err := rows.Scan(
			&rec.ID,
			&rec.Currency1,
			&rec.Issuer1,
			&rec.Value1,
			&rec.Currency2,
			&rec.Issuer2,
			&rec.Value2,
			&rec.Date,
		)
		if err != nil {
			return nil, fmt.Errorf("scan swap record row: %w", err)
		}

		recs = append(recs, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap record rows: %w", err)
	}

	return recs, nil
}
