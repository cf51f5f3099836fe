package xrpl

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"xrpl-amm-history/internal/observability"
)

// Default pool configuration.
const (
	DefaultPoolLimit  = 3
	DefaultGrantDelay = 50 * time.Millisecond
)

// DialFunc opens a session to an endpoint.
type DialFunc func(ctx context.Context, endpoint string) (Session, error)

// PoolOptions configures a Pool.
type PoolOptions struct {
	// Limit bounds concurrent sessions across all endpoints. 0 means
	// DefaultPoolLimit.
	Limit int
	// Dial opens sessions. Defaults to the websocket dialer.
	Dial DialFunc
	// GrantDelay spaces out grants to queued waiters so a burst of
	// releases does not reconnect everything at once. 0 means
	// DefaultGrantDelay.
	GrantDelay time.Duration
	// Metrics, when set, receives occupancy gauges.
	Metrics *observability.Metrics
}

// Pool bounds the number of concurrently open node sessions. Requests
// past the bound queue FIFO. Each acquired session releases its slot
// exactly once, whether the caller closes it or a transport error does.
type Pool struct {
	limit      int
	dial       DialFunc
	grantDelay time.Duration
	metrics    *observability.Metrics

	mu      sync.Mutex
	active  int
	waiters []chan struct{}
}

// NewPool creates a session pool.
func NewPool(opts PoolOptions) *Pool {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultPoolLimit
	}
	dial := opts.Dial
	if dial == nil {
		dial = func(ctx context.Context, endpoint string) (Session, error) {
			return Dial(ctx, endpoint)
		}
	}
	delay := opts.GrantDelay
	if delay <= 0 {
		delay = DefaultGrantDelay
	}
	return &Pool{limit: limit, dial: dial, grantDelay: delay, metrics: opts.Metrics}
}

// observe pushes current occupancy to the gauges.
func (p *Pool) observe() {
	if p.metrics == nil {
		return
	}
	active, waiting := p.Stats()
	p.metrics.PoolActive.Set(float64(active))
	p.metrics.PoolWaiting.Set(float64(waiting))
}

// Acquire opens a session to endpoint, waiting for a free slot first.
// A dial failure frees the slot immediately and propagates the error;
// the pool itself never retries.
func (p *Pool) Acquire(ctx context.Context, endpoint string) (Session, error) {
	if err := p.reserve(ctx); err != nil {
		return nil, err
	}

	s, err := p.dial(ctx, endpoint)
	if err != nil {
		p.release()
		return nil, err
	}

	ps := &pooledSession{Session: s}
	ps.release = func() {
		ps.releaseOnce.Do(p.release)
	}
	if conn, ok := s.(*Conn); ok {
		// Socket death frees the slot even if the caller never calls Close.
		conn.SetOnClose(ps.release)
	}
	return ps, nil
}

// reserve claims a slot or queues until one is granted.
func (p *Pool) reserve(ctx context.Context) error {
	p.mu.Lock()
	if p.active < p.limit {
		p.active++
		p.mu.Unlock()
		p.observe()
		return nil
	}

	ch := make(chan struct{}, 1)
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()
	p.observe()

	select {
	case <-ch:
		// Slot ownership transferred by the releaser; active stays put.
		p.observe()
		return nil
	case <-ctx.Done():
		p.mu.Lock()
		for i, w := range p.waiters {
			if w == ch {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				p.mu.Unlock()
				p.observe()
				return ctx.Err()
			}
		}
		p.mu.Unlock()
		// Grant already in flight; hand the slot back once it lands.
		go func() {
			<-ch
			p.release()
		}()
		return ctx.Err()
	}
}

// release returns a slot. With waiters queued, ownership passes to the
// head of the queue after the grant delay instead of decrementing.
func (p *Pool) release() {
	p.mu.Lock()
	if len(p.waiters) == 0 {
		p.active--
		p.mu.Unlock()
		p.observe()
		return
	}
	next := p.waiters[0]
	p.waiters = p.waiters[1:]
	p.mu.Unlock()
	p.observe()

	time.AfterFunc(p.grantDelay, func() {
		next <- struct{}{}
	})
}

// Stats reports current occupancy for instrumentation.
func (p *Pool) Stats() (active, waiting int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active, len(p.waiters)
}

// pooledSession ties a session's lifecycle to its pool slot.
type pooledSession struct {
	Session
	releaseOnce sync.Once
	release     func()
	closeOnce   sync.Once
	closeErr    error
}

func (s *pooledSession) Call(ctx context.Context, command string, params map[string]any) (json.RawMessage, error) {
	result, err := s.Session.Call(ctx, command, params)
	if err != nil && errors.Is(err, ErrConnClosed) {
		s.Close()
	}
	return result, err
}

func (s *pooledSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.Session.Close()
		s.release()
	})
	return s.closeErr
}
