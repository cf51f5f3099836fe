package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrpl-amm-history/internal/domain"
	"xrpl-amm-history/internal/storage"
	"xrpl-amm-history/internal/storage/postgres"
)

const testAccount = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"

func testRecord(date int64, v1, v2 float64) *domain.SwapRecord {
	return &domain.SwapRecord{
		Currency1: "USD",
		Issuer1:   "rvYAfWj5gh67oV6fW32ZzP3Aw4Eubs59B",
		Value1:    v1,
		Currency2: "XRP",
		Value2:    v2,
		Date:      date,
	}
}

func TestSwapRecordStore_InsertAndGetByAccount(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewSwapRecordStore(pool)

	rec := testRecord(1700000001000, 100, 220)
	err := store.Insert(ctx, testAccount, rec)
	require.NoError(t, err)

	recs, err := store.GetByAccount(ctx, testAccount)
	require.NoError(t, err)

	assert.Len(t, recs, 1)
	assert.Equal(t, rec.Currency1, recs[0].Currency1)
	assert.Equal(t, rec.Issuer1, recs[0].Issuer1)
	assert.Equal(t, rec.Currency2, recs[0].Currency2)
	assert.Equal(t, rec.Date, recs[0].Date)
	assert.InDelta(t, rec.Value1, recs[0].Value1, 0.0001)
	assert.InDelta(t, rec.Value2, recs[0].Value2, 0.0001)
	assert.NotZero(t, recs[0].ID)
}

func TestSwapRecordStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewSwapRecordStore(pool)

	rec := testRecord(1700000001000, 100, 220)
	require.NoError(t, store.Insert(ctx, testAccount, rec))

	err := store.Insert(ctx, testAccount, rec)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSwapRecordStore_InsertBulkRollsBackOnDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewSwapRecordStore(pool)

	require.NoError(t, store.Insert(ctx, testAccount, testRecord(1700000002000, 50, 110)))

	batch := []*domain.SwapRecord{
		testRecord(1700000001000, 100, 220),
		testRecord(1700000002000, 50, 110), // already stored
	}
	err := store.InsertBulk(ctx, testAccount, batch)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	recs, err := store.GetByAccount(ctx, testAccount)
	require.NoError(t, err)
	assert.Len(t, recs, 1, "failed batch must not be partially applied")
}

func TestSwapRecordStore_GetByTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewSwapRecordStore(pool)

	for i, date := range []int64{1000, 2000, 3000, 4000} {
		require.NoError(t, store.Insert(ctx, testAccount, testRecord(date, float64(i+1), float64(i+2))))
	}

	recs, err := store.GetByTimeRange(ctx, testAccount, 2000, 3000)
	require.NoError(t, err)

	assert.Len(t, recs, 2)
	assert.Equal(t, int64(2000), recs[0].Date)
	assert.Equal(t, int64(3000), recs[1].Date)
}

func TestSwapRecordStore_AccountIsolation(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewSwapRecordStore(pool)

	require.NoError(t, store.Insert(ctx, testAccount, testRecord(1000, 100, 220)))
	require.NoError(t, store.Insert(ctx, "rOtherAccount", testRecord(1000, 100, 220)))

	recs, err := store.GetByAccount(ctx, testAccount)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
