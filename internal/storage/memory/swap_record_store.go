package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"xrpl-amm-history/internal/domain"
	"xrpl-amm-history/internal/storage"
)

// SwapRecordStore is an in-memory implementation of storage.SwapRecordStore.
type SwapRecordStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.SwapRecord
	nextID int64
}

// NewSwapRecordStore creates a new in-memory swap record store.
func NewSwapRecordStore() *SwapRecordStore {
	return &SwapRecordStore{
		data:   make(map[string]*domain.SwapRecord),
		nextID: 1,
	}
}

var _ storage.SwapRecordStore = (*SwapRecordStore)(nil)

// recordKey generates the natural key of a swap record within an account.
func recordKey(account string, r *domain.SwapRecord) string {
	return fmt.Sprintf("%s|%d|%s|%s|%g|%s|%s|%g",
		account, r.Date,
		r.Currency1, r.Issuer1, r.Value1,
		r.Currency2, r.Issuer2, r.Value2,
	)
}

// Insert adds a new record. Returns ErrDuplicateKey if an identical record exists.
func (s *SwapRecordStore) Insert(_ context.Context, account string, rec *domain.SwapRecord) error {
	if rec == nil || account == "" {
		return storage.ErrInvalidInput
	}

	key := recordKey(account, rec)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *rec
	copy.ID = s.nextID
	s.nextID++
	s.data[key] = &copy
	return nil
}

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *SwapRecordStore) InsertBulk(_ context.Context, account string, recs []*domain.SwapRecord) error {
	if len(recs) == 0 {
		return nil
	}
	if account == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(recs))

	for _, rec := range recs {
		if rec == nil {
			return storage.ErrInvalidInput
		}
		key := recordKey(account, rec)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, rec := range recs {
		key := recordKey(account, rec)
		copy := *rec
		copy.ID = s.nextID
		s.nextID++
		s.data[key] = &copy
	}

	return nil
}

// GetByAccount retrieves all records for an account, ordered by date ASC.
func (s *SwapRecordStore) GetByAccount(_ context.Context, account string) ([]*domain.SwapRecord, error) {
	return s.collect(account, func(*domain.SwapRecord) bool { return true })
}

// GetByTimeRange retrieves records for an account within [start, end] ms (inclusive).
func (s *SwapRecordStore) GetByTimeRange(_ context.Context, account string, start, end int64) ([]*domain.SwapRecord, error) {
	return s.collect(account, func(r *domain.SwapRecord) bool {
		return r.Date >= start && r.Date <= end
	})
}

func (s *SwapRecordStore) collect(account string, keep func(*domain.SwapRecord) bool) ([]*domain.SwapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := account + "|"

	var result []*domain.SwapRecord
	for key, rec := range s.data {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix && keep(rec) {
			copy := *rec
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}
