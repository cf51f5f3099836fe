package clickhouse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrpl-amm-history/internal/domain"
	chstore "xrpl-amm-history/internal/storage/clickhouse"
)

func seriesPoints() []domain.TimeSeriesPoint {
	return []domain.TimeSeriesPoint{
		{Time: 1700000000000, QuotePerBase: 2.0, BasePerQuote: 0.5, Volume: 100, BuyingBase: true},
		{Time: 1700000060000, QuotePerBase: 2.1, BasePerQuote: 1 / 2.1, Volume: 50, BuyingBase: false},
		{Time: 1700000120000, QuotePerBase: 2.2, BasePerQuote: 1 / 2.2, Volume: 75, BuyingBase: true},
	}
}

func TestSeriesArchiveStore_InsertAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := chstore.NewSeriesArchiveStore(conn)

	points := seriesPoints()
	err := store.InsertBulk(ctx, "USD.rIssuer_XRP", domain.Range24H, points)
	require.NoError(t, err)

	got, err := store.GetByPair(ctx, "USD.rIssuer_XRP", domain.Range24H)
	require.NoError(t, err)

	require.Len(t, got, 3)
	for i := range points {
		assert.Equal(t, points[i].Time, got[i].Time)
		assert.InDelta(t, points[i].QuotePerBase, got[i].QuotePerBase, 1e-9)
		assert.InDelta(t, points[i].BasePerQuote, got[i].BasePerQuote, 1e-9)
		assert.InDelta(t, points[i].Volume, got[i].Volume, 1e-9)
		assert.Equal(t, points[i].BuyingBase, got[i].BuyingBase)
	}
}

func TestSeriesArchiveStore_RangesAreIndependent(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := chstore.NewSeriesArchiveStore(conn)

	require.NoError(t, store.InsertBulk(ctx, "USD.rIssuer_XRP", domain.Range1H, seriesPoints()[:1]))
	require.NoError(t, store.InsertBulk(ctx, "USD.rIssuer_XRP", domain.Range24H, seriesPoints()))

	got, err := store.GetByPair(ctx, "USD.rIssuer_XRP", domain.Range1H)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSeriesArchiveStore_ReArchiveCollapses(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := chstore.NewSeriesArchiveStore(conn)

	require.NoError(t, store.InsertBulk(ctx, "USD.rIssuer_XRP", domain.Range24H, seriesPoints()))
	require.NoError(t, store.InsertBulk(ctx, "USD.rIssuer_XRP", domain.Range24H, seriesPoints()))

	// FINAL reads collapse ReplacingMergeTree duplicates.
	got, err := store.GetByPair(ctx, "USD.rIssuer_XRP", domain.Range24H)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSeriesArchiveStore_EmptyBatchIsNoop(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := chstore.NewSeriesArchiveStore(conn)

	require.NoError(t, store.InsertBulk(ctx, "USD.rIssuer_XRP", domain.Range24H, nil))

	got, err := store.GetByPair(ctx, "USD.rIssuer_XRP", domain.Range24H)
	require.NoError(t, err)
	assert.Empty(t, got)
}
