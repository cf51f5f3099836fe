package stub

import (
	"context"
	"encoding/json"
	"sync"

	"xrpl-amm-history/internal/xrpl"
)

// Handler produces the response for one command invocation.
type Handler func(params map[string]any) (json.RawMessage, error)

// Session implements xrpl.Session for testing. Handlers are matched by
// command name; unhandled commands return an actNotFound node error.
type Session struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call
	closed   bool
	// CloseErr is returned by Close.
	CloseErr error
	// Hang, when set, makes every Call block until the context expires.
	Hang bool
}

// Call records one issued command.
type Call struct {
	Command string
	Params  map[string]any
}

// NewSession creates an empty stub session.
func NewSession() *Session {
	return &Session{handlers: make(map[string]Handler)}
}

// Handle registers a handler for a command.
func (s *Session) Handle(command string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[command] = h
}

// Respond registers a fixed successful response for a command.
func (s *Session) Respond(command string, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		panic(err)
	}
	s.Handle(command, func(map[string]any) (json.RawMessage, error) {
		return json.RawMessage(data), nil
	})
}

// Fail registers a node error response for a command.
func (s *Session) Fail(command string, code string) {
	s.Handle(command, func(map[string]any) (json.RawMessage, error) {
		return nil, &xrpl.APIError{Code: code}
	})
}

// Call dispatches to the registered handler.
func (s *Session) Call(ctx context.Context, command string, params map[string]any) (json.RawMessage, error) {
	if s.Hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Command: command, Params: params})
	h, ok := s.handlers[command]
	s.mu.Unlock()

	if !ok {
		return nil, &xrpl.APIError{Code: "actNotFound"}
	}
	return h(params)
}

// Close marks the session closed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.CloseErr
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Calls returns the commands issued so far.
func (s *Session) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

var _ xrpl.Session = (*Session)(nil)
