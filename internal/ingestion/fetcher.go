// Package ingestion retrieves AMM pool transaction history from ledger
// nodes, page by page, with endpoint failover and resumable lower
// bounds.
package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"xrpl-amm-history/internal/observability"
	"xrpl-amm-history/internal/xrpl"
)

// Default fetch configuration.
const (
	DefaultPageSize    = 100
	DefaultMaxPages    = 10
	DefaultPageTimeout = 15 * time.Second
	DefaultPageDelay   = 100 * time.Millisecond
)

// Page-fetch progress is scaled into this band; the surrounding service
// owns the milestones outside it.
const (
	progressBandLow  = 30
	progressBandHigh = 80
)

// Progress is one progress milestone reported to the caller.
type Progress struct {
	Message string
	Percent int
}

// ProgressFunc receives progress milestones. May be nil.
type ProgressFunc func(Progress)

// Emit calls f if it is set.
func (f ProgressFunc) Emit(message string, percent int) {
	if f != nil {
		f(Progress{Message: message, Percent: percent})
	}
}

// Options configures a Fetcher.
type Options struct {
	Endpoints   []string
	Pool        *xrpl.Pool
	PageSize    int
	MaxPages    int
	PageTimeout time.Duration
	PageDelay   time.Duration
	Logger      *log.Logger
	Metrics     *observability.Metrics
}

// Fetcher pages through account_tx history. Pages on one endpoint are
// fetched strictly sequentially; endpoints are tried one at a time in
// preference order and never merged.
type Fetcher struct {
	endpoints   []string
	pool        *xrpl.Pool
	pageSize    int
	maxPages    int
	pageTimeout time.Duration
	pageDelay   time.Duration
	logger      *log.Logger
	metrics     *observability.Metrics
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	f := &Fetcher{
		endpoints:   opts.Endpoints,
		pool:        opts.Pool,
		pageSize:    opts.PageSize,
		maxPages:    opts.MaxPages,
		pageTimeout: opts.PageTimeout,
		pageDelay:   opts.PageDelay,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
	if f.pageSize <= 0 {
		f.pageSize = DefaultPageSize
	}
	if f.maxPages <= 0 {
		f.maxPages = DefaultMaxPages
	}
	if f.pageTimeout <= 0 {
		f.pageTimeout = DefaultPageTimeout
	}
	if f.pageDelay <= 0 {
		f.pageDelay = DefaultPageDelay
	}
	if f.logger == nil {
		f.logger = log.Default()
	}
	return f
}

// FetchHistory retrieves the transaction history of an AMM pool account.
// resumeFrom > 0 restricts the query to ledger indices at or above it so
// cached history is never re-fetched. The first endpoint yielding any
// transactions is used exclusively. Only when every endpoint fails does
// an error surface; endpoints that answer with genuinely empty history
// produce an empty result.
func (f *Fetcher) FetchHistory(ctx context.Context, address string, resumeFrom int64, progress ProgressFunc) ([]xrpl.RawTransaction, error) {
	progress.Emit("Loading transactions", progressBandLow)

	var lastErr error
	succeeded := false

	for _, endpoint := range f.endpoints {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		txs, err := f.fetchFromEndpoint(ctx, endpoint, address, resumeFrom, progress)
		if err != nil {
			f.logger.Printf("ingestion: %s: %v", endpoint, err)
			if f.metrics != nil {
				f.metrics.FetchFailovers.Inc()
			}
			lastErr = err
			continue
		}
		succeeded = true
		if len(txs) > 0 {
			return txs, nil
		}
	}

	if !succeeded && lastErr != nil {
		return nil, fmt.Errorf("history fetch failed on all endpoints: %w", lastErr)
	}
	return nil, nil
}

// fetchFromEndpoint pages through one endpoint. A page timeout is not an
// error: the page counts as empty and pagination stops with whatever was
// already collected.
func (f *Fetcher) fetchFromEndpoint(ctx context.Context, endpoint, address string, resumeFrom int64, progress ProgressFunc) ([]xrpl.RawTransaction, error) {
	sess, err := f.pool.Acquire(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}
	defer sess.Close()

	var out []xrpl.RawTransaction
	var marker json.RawMessage

	for page := 0; page < f.maxPages; page++ {
		if page > 0 {
			// Downstream nodes rate-limit; space the pages out.
			select {
			case <-time.After(f.pageDelay):
			case <-ctx.Done():
				return out, nil
			}
		}

		params := map[string]any{
			"account":          address,
			"ledger_index_max": -1,
			"limit":            f.pageSize,
			"forward":          false,
		}
		if resumeFrom > 0 {
			params["ledger_index_min"] = resumeFrom
		} else {
			params["ledger_index_min"] = -1
		}
		if len(marker) > 0 {
			params["marker"] = marker
		}

		callCtx, cancel := context.WithTimeout(ctx, f.pageTimeout)
		raw, err := sess.Call(callCtx, xrpl.CommandAccountTx, params)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				// Stalled page: treat as empty, stop paginating.
				return out, nil
			}
			if xrpl.IsNotFound(err) {
				return out, nil
			}
			if len(out) > 0 {
				// This endpoint already yielded data; keep it rather
				// than failing over and merging across endpoints.
				return out, nil
			}
			return nil, fmt.Errorf("account_tx: %w", err)
		}

		var result xrpl.AccountTxResult
		if err := json.Unmarshal(raw, &result); err != nil {
			if len(out) > 0 {
				return out, nil
			}
			return nil, fmt.Errorf("malformed account_tx result: %w", err)
		}

		out = append(out, result.Transactions...)
		if f.metrics != nil {
			f.metrics.PagesFetched.Inc()
			f.metrics.TransactionsSeen.Add(float64(len(result.Transactions)))
		}

		span := progressBandHigh - progressBandLow
		percent := progressBandLow + span*(page+1)/f.maxPages
		progress.Emit(fmt.Sprintf("Loaded %d transactions", len(out)), percent)

		marker = result.Marker
		if len(marker) == 0 || string(marker) == "null" {
			break
		}
	}

	return out, nil
}
