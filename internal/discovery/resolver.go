// Package discovery resolves a trading pair to its on-ledger AMM pool
// account.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"xrpl-amm-history/internal/domain"
	"xrpl-amm-history/internal/xrpl"
)

// ErrNoPool means the pair has no AMM pool on any configured endpoint.
// It is a legitimate empty result, not a transient failure; callers must
// present the two differently.
var ErrNoPool = errors.New("no pool found")

// DefaultQueryTimeout bounds a single amm_info probe.
const DefaultQueryTimeout = 4 * time.Second

// PoolInfo describes a resolved pool.
type PoolInfo struct {
	// Address is the AMM pool account.
	Address string
	// Reversed is true when the pool answered for the reversed asset
	// ordering.
	Reversed bool
}

// AssetOrder returns the order tag cached alongside raw history.
func (p *PoolInfo) AssetOrder() string {
	if p.Reversed {
		return "reversed"
	}
	return "normal"
}

// Options configures a Resolver.
type Options struct {
	Endpoints []string
	Pool      *xrpl.Pool
	// Timeout per probe. 0 means DefaultQueryTimeout.
	Timeout time.Duration
	Logger  *log.Logger
}

// Resolver probes configured endpoints for a pair's AMM pool.
type Resolver struct {
	endpoints []string
	pool      *xrpl.Pool
	timeout   time.Duration
	logger    *log.Logger
}

// New creates a Resolver.
func New(opts Options) *Resolver {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{
		endpoints: opts.Endpoints,
		pool:      opts.Pool,
		timeout:   timeout,
		logger:    logger,
	}
}

// Resolve finds the AMM pool for a pair. For each endpoint it probes the
// normal asset ordering and, when both legs are issued assets, the
// reversed one; the first hit wins. Exhausting every combination returns
// ErrNoPool.
func (r *Resolver) Resolve(ctx context.Context, pair domain.Pair) (*PoolInfo, error) {
	orderings := []ordering{{pair.First, pair.Second, false}}
	if !pair.First.IsNative() && !pair.Second.IsNative() {
		orderings = append(orderings, ordering{pair.Second, pair.First, true})
	}

	for _, endpoint := range r.endpoints {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		sess, err := r.pool.Acquire(ctx, endpoint)
		if err != nil {
			r.logger.Printf("discovery: connect %s: %v", endpoint, err)
			continue
		}

		info := r.probe(ctx, sess, orderings)
		sess.Close()
		if info != nil {
			return info, nil
		}
	}

	return nil, ErrNoPool
}

type ordering struct {
	first, second domain.Asset
	reversed      bool
}

func (r *Resolver) probe(ctx context.Context, sess xrpl.Session, orderings []ordering) *PoolInfo {
	for _, ord := range orderings {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		raw, err := sess.Call(callCtx, xrpl.CommandAMMInfo, map[string]any{
			"asset":  assetDescriptor(ord.first),
			"asset2": assetDescriptor(ord.second),
		})
		cancel()

		if err != nil {
			if errors.Is(err, xrpl.ErrConnClosed) {
				return nil
			}
			if !xrpl.IsNotFound(err) {
				r.logger.Printf("discovery: amm_info: %v", err)
			}
			continue
		}

		var result xrpl.AMMInfoResult
		if err := json.Unmarshal(raw, &result); err != nil {
			r.logger.Printf("discovery: malformed amm_info result: %v", err)
			continue
		}
		if xrpl.ValidAddress(result.AMM.Account) {
			return &PoolInfo{Address: result.AMM.Account, Reversed: ord.reversed}
		}
	}
	return nil
}

func assetDescriptor(a domain.Asset) xrpl.AssetDescriptor {
	d := xrpl.AssetDescriptor{Currency: xrpl.EncodeCurrency(a.Currency)}
	if !a.IsNative() {
		d.Issuer = a.Issuer
	}
	return d
}
