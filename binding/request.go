package binding

import (
	"context"

	"github.com/google/uuid"

	nfmbind "github.com/wippyai/nfm-bind"
)

// RequestState is the lifecycle position of a show request.
type RequestState uint8

const (
	// StateRequested: the show entry point is being called.
	StateRequested RequestState = iota
	// StateDisplayed: the entry point returned and the menu is up.
	StateDisplayed
	// StateSelected: the selection callback fired. Terminal.
	StateSelected
	// StateDismissed: the closed callback fired without a selection. Terminal.
	StateDismissed
	// StateAbandoned: the binding was unbound or the show call failed
	// before the request settled. Terminal; no callback fires.
	StateAbandoned
)

func (s RequestState) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateDisplayed:
		return "displayed"
	case StateSelected:
		return "selected"
	case StateDismissed:
		return "dismissed"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s RequestState) Terminal() bool {
	return s >= StateSelected
}

// Callbacks is the registration for a single show request.
//
// State is borrowed: the binding keeps it reachable until the request reaches
// a terminal state and passes it back to OnSelect unchanged. The plugin only
// ever sees an opaque StateHandle.
type Callbacks[T any] struct {
	OnSelect func(value T, state any)
	OnClosed func()
	State    any
}

// ItemsProvider produces the entries for ShowItemsList. The returned slice is
// handed over to the binding and must not be modified afterwards. The plugin
// may read it until the provider is called again for the same request or the
// request settles.
type ItemsProvider func(state any) []string

type payloadKind uint8

const (
	payloadString payloadKind = iota
	payloadWindow
)

// Request tracks one show call from request to terminal state.
type Request struct {
	id       uuid.UUID
	op       string
	payload  payloadKind
	handle   nfmbind.StateHandle
	binding  *Binding
	state    RequestState // guarded by binding.mu
	done     chan struct{}
	onString func(string)
	onWindow func(nfmbind.WindowHandle)
	onClosed func()
	items    ItemsProvider
	user     any
}

func newRequest(op string, payload payloadKind, user any, onClosed func()) *Request {
	return &Request{
		id:       uuid.New(),
		op:       op,
		payload:  payload,
		user:     user,
		onClosed: onClosed,
		done:     make(chan struct{}),
	}
}

func newStringRequest(op string, cb Callbacks[string]) *Request {
	r := newRequest(op, payloadString, cb.State, cb.OnClosed)
	if cb.OnSelect != nil {
		state := cb.State
		r.onString = func(v string) { cb.OnSelect(v, state) }
	}
	return r
}

func newWindowRequest(op string, cb Callbacks[nfmbind.WindowHandle]) *Request {
	r := newRequest(op, payloadWindow, cb.State, cb.OnClosed)
	if cb.OnSelect != nil {
		state := cb.State
		r.onWindow = func(w nfmbind.WindowHandle) { cb.OnSelect(w, state) }
	}
	return r
}

// ID returns the correlation ID used in log fields.
func (r *Request) ID() uuid.UUID {
	return r.id
}

// Operation returns the table operation name, e.g. "show_windows_list".
func (r *Request) Operation() string {
	return r.op
}

// Handle returns the opaque state handle the plugin received.
func (r *Request) Handle() nfmbind.StateHandle {
	return r.handle
}

// State returns the current lifecycle state.
func (r *Request) State() RequestState {
	r.binding.mu.Lock()
	defer r.binding.mu.Unlock()
	return r.state
}

// Done is closed once the request is terminal and its callback has returned.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the request is terminal or ctx is done.
// Calling Wait from inside the request's own callback deadlocks.
func (r *Request) Wait(ctx context.Context) (RequestState, error) {
	select {
	case <-r.done:
		return r.State(), nil
	case <-ctx.Done():
		return r.State(), ctx.Err()
	}
}
