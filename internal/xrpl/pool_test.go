package xrpl

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSession struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeSession) Call(ctx context.Context, command string, params map[string]any) (json.RawMessage, error) {
	return nil, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func fakeDialer(t *testing.T) DialFunc {
	t.Helper()
	return func(ctx context.Context, endpoint string) (Session, error) {
		return &fakeSession{}, nil
	}
}

func TestPool_BoundsTotalSessions(t *testing.T) {
	p := NewPool(PoolOptions{Limit: 2, Dial: fakeDialer(t), GrantDelay: time.Millisecond})

	ctx := context.Background()
	s1, err := p.Acquire(ctx, "wss://one")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	s2, err := p.Acquire(ctx, "wss://two")
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}

	// Third acquire must queue and time out; the bound is total, not
	// per endpoint.
	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(waitCtx, "wss://three"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	s1.Close()
	s2.Close()
}

func TestPool_GrantsQueuedWaiterOnRelease(t *testing.T) {
	p := NewPool(PoolOptions{Limit: 1, Dial: fakeDialer(t), GrantDelay: time.Millisecond})

	ctx := context.Background()
	s1, err := p.Acquire(ctx, "wss://one")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	got := make(chan Session, 1)
	errCh := make(chan error, 1)
	go func() {
		s, err := p.Acquire(ctx, "wss://two")
		if err != nil {
			errCh <- err
			return
		}
		got <- s
	}()

	// Let the waiter queue up before releasing.
	time.Sleep(20 * time.Millisecond)
	s1.Close()

	select {
	case s := <-got:
		s.Close()
	case err := <-errCh:
		t.Fatalf("queued acquire failed: %v", err)
	case <-time.After(time.Second):
		t.Fatal("queued waiter never granted after release")
	}
}

func TestPool_ReleaseExactlyOnce(t *testing.T) {
	p := NewPool(PoolOptions{Limit: 1, Dial: fakeDialer(t), GrantDelay: time.Millisecond})

	ctx := context.Background()
	s1, err := p.Acquire(ctx, "wss://one")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// Double close must not free two slots.
	s1.Close()
	s1.Close()

	s2, err := p.Acquire(ctx, "wss://one")
	if err != nil {
		t.Fatalf("acquire after close: %v", err)
	}
	defer s2.Close()

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(waitCtx, "wss://one"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("limit not enforced after double close: %v", err)
	}

	if active, _ := p.Stats(); active != 1 {
		t.Errorf("active = %d, want 1", active)
	}
}

func TestPool_DialFailureFreesSlot(t *testing.T) {
	dialErr := errors.New("refused")
	failing := func(ctx context.Context, endpoint string) (Session, error) {
		return nil, dialErr
	}
	p := NewPool(PoolOptions{Limit: 1, Dial: failing, GrantDelay: time.Millisecond})

	ctx := context.Background()
	if _, err := p.Acquire(ctx, "wss://one"); !errors.Is(err, dialErr) {
		t.Fatalf("expected dial error, got %v", err)
	}

	if active, _ := p.Stats(); active != 0 {
		t.Errorf("active = %d after dial failure, want 0", active)
	}
}
