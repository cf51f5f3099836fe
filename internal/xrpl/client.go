package xrpl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnClosed is returned by Call when the underlying socket is gone.
// Callers treat it as a transport failure and fail over.
var ErrConnClosed = errors.New("connection closed")

// APIError is an error response from a ledger node.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("node error: %s", e.Code)
	}
	return fmt.Sprintf("node error: %s (%s)", e.Code, e.Message)
}

// IsNotFound reports whether err is a node response meaning the queried
// object legitimately does not exist.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case "actNotFound", "ammNotFound", "entryNotFound", "objectNotFound":
		return true
	}
	return false
}

// Session is one request/response conversation with a ledger node.
// Implementations must be safe for concurrent Call.
type Session interface {
	// Call issues one command and waits for its correlated response.
	Call(ctx context.Context, command string, params map[string]any) (json.RawMessage, error)
	Close() error
}

const defaultHandshakeTimeout = 10 * time.Second

// Conn is a websocket session. Requests are flat JSON objects carrying a
// monotonically increasing id; a background read loop routes responses
// back to the waiting caller by that id.
type Conn struct {
	endpoint string
	ws       *websocket.Conn

	requestID atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]chan callResult

	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	hookMu   sync.Mutex
	onClose  func()
	hookDone bool
}

type callResult struct {
	result json.RawMessage
	err    error
}

// wireResponse is the response envelope: either a "success" with a
// result payload or an "error" with a code and message.
type wireResponse struct {
	ID           uint64          `json:"id"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorCode    string          `json:"error,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Dial opens a websocket session to an endpoint.
func Dial(ctx context.Context, endpoint string) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	c := &Conn{
		endpoint: endpoint,
		ws:       ws,
		pending:  make(map[uint64]chan callResult),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Call sends one command and waits for the matching response, the
// context deadline, or connection teardown, whichever comes first.
// Context expiry abandons the in-flight request without closing the
// socket.
func (c *Conn) Call(ctx context.Context, command string, params map[string]any) (json.RawMessage, error) {
	id := c.requestID.Add(1)

	req := make(map[string]any, len(params)+2)
	for k, v := range params {
		req[k] = v
	}
	req["id"] = id
	req["command"] = command

	ch := make(chan callResult, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	err := c.ws.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.dropPending(id)
		c.closeWith(fmt.Errorf("write %s: %w", command, err))
		return nil, fmt.Errorf("%w: %v", ErrConnClosed, err)
	}

	select {
	case res := <-ch:
		return res.result, res.err
	case <-ctx.Done():
		c.dropPending(id)
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrConnClosed
	}
}

// SetOnClose registers a hook that fires exactly once when the session
// tears down. The read loop is already running by the time Dial returns,
// so registration is synchronized against teardown: if the session died
// before the hook was set, it fires immediately.
func (c *Conn) SetOnClose(hook func()) {
	c.hookMu.Lock()
	if c.hookDone {
		c.hookMu.Unlock()
		hook()
		return
	}
	c.onClose = hook
	c.hookMu.Unlock()
}

func (c *Conn) dropPending(id uint64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// readLoop routes responses to waiting callers until the socket dies.
// Unsolicited messages (streams, pings) are discarded.
func (c *Conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.closeWith(fmt.Errorf("read: %w", err))
			return
		}

		var resp wireResponse
		if err := json.Unmarshal(data, &resp); err != nil || resp.ID == 0 {
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.pendingMu.Unlock()
		if !ok {
			continue
		}

		if resp.Status == "error" || resp.ErrorCode != "" {
			ch <- callResult{err: &APIError{Code: resp.ErrorCode, Message: resp.ErrorMessage}}
			continue
		}
		ch <- callResult{result: resp.Result}
	}
}

// Close tears the session down. Safe to call more than once; the close
// hook fires exactly once regardless of whether the caller or a socket
// error triggered it.
func (c *Conn) Close() error {
	c.closeWith(nil)
	return c.closeErr
}

func (c *Conn) closeWith(cause error) {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.ws.Close()
		if c.closeErr == nil {
			c.closeErr = cause
		}

		c.pendingMu.Lock()
		for id, ch := range c.pending {
			delete(c.pending, id)
			ch <- callResult{err: ErrConnClosed}
		}
		c.pendingMu.Unlock()

		c.hookMu.Lock()
		hook := c.onClose
		c.hookDone = true
		c.hookMu.Unlock()
		if hook != nil {
			hook()
		}
	})
}

var _ Session = (*Conn)(nil)
