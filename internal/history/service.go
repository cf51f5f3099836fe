// Package history orchestrates the pair-history pipeline: pool
// discovery, resumable history fetch, normalization, aggregation and
// stats, with the cache layer in front of every expensive step.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"time"

	"xrpl-amm-history/internal/aggregation"
	"xrpl-amm-history/internal/cache"
	"xrpl-amm-history/internal/discovery"
	"xrpl-amm-history/internal/domain"
	"xrpl-amm-history/internal/ingestion"
	"xrpl-amm-history/internal/normalization"
	"xrpl-amm-history/internal/observability"
	"xrpl-amm-history/internal/stats"
	"xrpl-amm-history/internal/storage"
	"xrpl-amm-history/internal/xrpl"
)

// Progress milestones owned by the service. The fetcher reports per-page
// progress inside the 30-80 band between these.
const (
	progressSearch  = 10
	progressProcess = 70
	progressDone    = 100
)

// Options configures a Service.
type Options struct {
	Resolver *discovery.Resolver
	Fetcher  *ingestion.Fetcher
	Cache    *cache.Layer
	// Archive, when set, receives every freshly aggregated series.
	// Archive failures are logged, never surfaced.
	Archive storage.SeriesArchiveStore
	Logger  *log.Logger
	Metrics *observability.Metrics
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service runs the pipeline for one pair and range at a time.
type Service struct {
	resolver *discovery.Resolver
	fetcher  *ingestion.Fetcher
	cache    *cache.Layer
	archive  storage.SeriesArchiveStore
	logger   *log.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// New creates a Service.
func New(opts Options) *Service {
	s := &Service{
		resolver: opts.Resolver,
		fetcher:  opts.Fetcher,
		cache:    opts.Cache,
		archive:  opts.Archive,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		now:      opts.Now,
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Result is the outcome of one pipeline run. PoolFound false means the
// pair has no liquidity pool: a legitimate empty result, not an error.
type Result struct {
	PoolFound bool
	Series    []domain.TimeSeriesPoint
	Stats     domain.StatsRecord
}

// poolRecord is the cached form of a resolved pool.
type poolRecord struct {
	Address  string `json:"address"`
	Reversed bool   `json:"reversed"`
}

// PairHistory produces the bucketed price series and summary statistics
// for a pair over a time range. Progress milestones are emitted at pool
// search, fetch start, per-page scaled 30-80, processing, completion.
func (s *Service) PairHistory(ctx context.Context, pair domain.Pair, rng domain.TimeRange, progress ingestion.ProgressFunc) (*Result, error) {
	started := s.now()
	pairKey := pair.Key()
	seriesKey := pairKey + ":" + string(rng)

	// Fully-processed series first: cheapest possible answer.
	if result, ok := s.cachedResult(ctx, seriesKey); ok {
		progress.Emit("Done", progressDone)
		s.finish("cached", started)
		return result, nil
	}

	progress.Emit("Searching for liquidity pool", progressSearch)

	pool, err := s.resolvePool(ctx, pair)
	if errors.Is(err, discovery.ErrNoPool) {
		progress.Emit("Done", progressDone)
		s.finish("no_pool", started)
		return &Result{PoolFound: false}, nil
	}
	if err != nil {
		s.finish("error", started)
		return nil, err
	}

	txs, err := s.loadTransactions(ctx, pairKey, pool, progress)
	if err != nil {
		s.finish("error", started)
		return nil, err
	}

	progress.Emit("Processing transactions", progressProcess)

	pc := normalization.PairContext{Pair: pair, BaseIsFirst: !pool.Reversed}
	observations := normalization.NormalizeBatch(txs, pc)
	series := aggregation.Aggregate(observations, rng, s.now())
	record := stats.Summarize(series, s.now())

	s.storeResult(ctx, seriesKey, series, record)
	s.archiveSeries(ctx, pairKey, rng, series)

	progress.Emit("Done", progressDone)
	s.finish("ok", started)
	return &Result{PoolFound: true, Series: series, Stats: record}, nil
}

// cachedResult returns a Result assembled from the processed and
// aggregate caches. Stats are recomputed when only the series survived.
func (s *Service) cachedResult(ctx context.Context, seriesKey string) (*Result, bool) {
	entry, ok := s.cache.Get(ctx, seriesKey, cache.KindProcessed)
	if !ok {
		return nil, false
	}
	var series []domain.TimeSeriesPoint
	if err := json.Unmarshal(entry.Data, &series); err != nil {
		s.cache.Delete(ctx, seriesKey, cache.KindProcessed)
		return nil, false
	}

	result := &Result{PoolFound: true, Series: series}
	if aggEntry, ok := s.cache.Get(ctx, seriesKey, cache.KindAggregate); ok {
		if err := json.Unmarshal(aggEntry.Data, &result.Stats); err == nil {
			return result, true
		}
	}
	result.Stats = stats.Summarize(series, s.now())
	return result, true
}

// resolvePool returns the pool for a pair, from cache when possible.
func (s *Service) resolvePool(ctx context.Context, pair domain.Pair) (*discovery.PoolInfo, error) {
	poolKey := pair.Key() + ":pool"

	if entry, ok := s.cache.Get(ctx, poolKey, cache.KindAggregate); ok {
		var rec poolRecord
		if err := json.Unmarshal(entry.Data, &rec); err == nil && rec.Address != "" {
			return &discovery.PoolInfo{Address: rec.Address, Reversed: rec.Reversed}, nil
		}
		s.cache.Delete(ctx, poolKey, cache.KindAggregate)
	}

	pool, err := s.resolver.Resolve(ctx, pair)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(poolRecord{Address: pool.Address, Reversed: pool.Reversed}); err == nil {
		s.cache.Put(ctx, poolKey, cache.KindAggregate, data, cache.PutOptions{})
	}
	return pool, nil
}

// loadTransactions merges cached raw history with a resumed fetch. The
// boundary ledger is re-fetched and deduplicated by hash, so the merge
// reproduces a from-scratch fetch up to node retention.
func (s *Service) loadTransactions(ctx context.Context, pairKey string, pool *discovery.PoolInfo, progress ingestion.ProgressFunc) ([]xrpl.RawTransaction, error) {
	var cached []xrpl.RawTransaction
	var resumeFrom int64

	if entry, ok := s.cache.Get(ctx, pairKey, cache.KindRaw); ok {
		// A cached page for the other asset ordering would flip every
		// price; refetch from scratch instead.
		if entry.AssetOrder == pool.AssetOrder() {
			if err := json.Unmarshal(entry.Data, &cached); err != nil {
				cached = nil
			} else {
				resumeFrom = entry.LastLedgerIndex
			}
		}
	}

	fetched, err := s.fetcher.FetchHistory(ctx, pool.Address, resumeFrom, progress)
	if err != nil {
		// Stale cache beats a hard failure.
		if len(cached) > 0 {
			s.logger.Printf("history: fetch failed, serving %d cached transactions: %v", len(cached), err)
			return cached, nil
		}
		return nil, err
	}

	merged := mergeTransactions(cached, fetched)
	merged = cache.CapRecords(cache.KindRaw, merged)
	s.storeRaw(ctx, pairKey, pool, merged)
	return merged, nil
}

// mergeTransactions combines two transaction sets, dropping duplicate
// hashes and ordering by ledger index ascending.
func mergeTransactions(cached, fetched []xrpl.RawTransaction) []xrpl.RawTransaction {
	merged := make([]xrpl.RawTransaction, 0, len(cached)+len(fetched))
	seen := make(map[string]struct{}, len(cached)+len(fetched))

	for _, tx := range append(cached, fetched...) {
		key := tx.HashKey()
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		merged = append(merged, tx)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		var li, lj int64
		if merged[i].Tx != nil {
			li = merged[i].Tx.LedgerIndex
		}
		if merged[j].Tx != nil {
			lj = merged[j].Tx.LedgerIndex
		}
		return li < lj
	})

	return merged
}

// storeRaw writes the merged raw history back with its resumption marker.
func (s *Service) storeRaw(ctx context.Context, pairKey string, pool *discovery.PoolInfo, txs []xrpl.RawTransaction) {
	if len(txs) == 0 {
		return
	}

	var lastLedger int64
	for _, tx := range txs {
		if tx.Tx != nil && tx.Tx.LedgerIndex > lastLedger {
			lastLedger = tx.Tx.LedgerIndex
		}
	}

	data, err := json.Marshal(txs)
	if err != nil {
		return
	}

	s.cache.Put(ctx, pairKey, cache.KindRaw, data, cache.PutOptions{
		AssetOrder:      pool.AssetOrder(),
		LastLedgerIndex: lastLedger,
		Reduced: func() ([]byte, bool) {
			if len(txs) < 2 {
				return nil, false
			}
			reduced, err := json.Marshal(txs[len(txs)/2:])
			if err != nil {
				return nil, false
			}
			return reduced, true
		},
	})
}

// storeResult caches the processed series and its stats record.
func (s *Service) storeResult(ctx context.Context, seriesKey string, series []domain.TimeSeriesPoint, record domain.StatsRecord) {
	capped := cache.CapRecords(cache.KindProcessed, series)
	if data, err := json.Marshal(capped); err == nil {
		s.cache.Put(ctx, seriesKey, cache.KindProcessed, data, cache.PutOptions{
			Reduced: func() ([]byte, bool) {
				if len(capped) < 2 {
					return nil, false
				}
				reduced, err := json.Marshal(capped[len(capped)/2:])
				if err != nil {
					return nil, false
				}
				return reduced, true
			},
		})
	}
	if data, err := json.Marshal(record); err == nil {
		s.cache.Put(ctx, seriesKey, cache.KindAggregate, data, cache.PutOptions{})
	}
}

// archiveSeries ships the run to long-term storage, best effort.
func (s *Service) archiveSeries(ctx context.Context, pairKey string, rng domain.TimeRange, series []domain.TimeSeriesPoint) {
	if s.archive == nil || len(series) == 0 {
		return
	}
	if err := s.archive.InsertBulk(ctx, pairKey, rng, series); err != nil {
		s.logger.Printf("history: archive %s/%s: %v", pairKey, rng, err)
	}
}

func (s *Service) finish(outcome string, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.HistoryRuns.WithLabelValues(outcome).Inc()
	s.metrics.HistoryRunSeconds.Observe(s.now().Sub(started).Seconds())
}
