package binding

import (
	"go.uber.org/zap"

	nfmbind "github.com/wippyai/nfm-bind"
	"github.com/wippyai/nfm-bind/resource"
)

// host receives the plugin's callbacks on behalf of a Binding. Callbacks may
// arrive on any goroutine, including inside the show call that caused them.
type host struct {
	b *Binding
}

var _ nfmbind.Host = host{}

func (h host) SelectString(state nfmbind.StateHandle, value string) {
	kind := payloadString
	r := h.b.settle(state, StateSelected, &kind)
	if r == nil {
		h.b.logger.Debug("select_string dropped", zap.Uint64("state", uint64(state)))
		return
	}
	defer close(r.done)
	h.b.logger.Debug("selected", zap.String("op", r.op), zap.Stringer("request", r.id))
	if r.onString != nil {
		r.onString(value)
	}
}

func (h host) SelectWindow(state nfmbind.StateHandle, window nfmbind.WindowHandle) {
	kind := payloadWindow
	r := h.b.settle(state, StateSelected, &kind)
	if r == nil {
		h.b.logger.Debug("select_window dropped", zap.Uint64("state", uint64(state)))
		return
	}
	defer close(r.done)
	h.b.logger.Debug("selected", zap.String("op", r.op), zap.Stringer("request", r.id))
	if r.onWindow != nil {
		r.onWindow(window)
	}
}

// Closed carries no state; it settles the binding's current request. A
// closed notification after a selection finds no current request and is
// dropped.
func (h host) Closed() {
	r := h.b.closeCurrent()
	if r == nil {
		h.b.logger.Debug("closed dropped")
		return
	}
	defer close(r.done)
	h.b.logger.Debug("dismissed", zap.String("op", r.op), zap.Stringer("request", r.id))
	if r.onClosed != nil {
		r.onClosed()
	}
}

func (h host) Items(state nfmbind.StateHandle) []string {
	b := h.b
	b.mu.Lock()
	r, ok := b.requests.Get(resource.Handle(state))
	if !ok || r.binding != b || r.items == nil {
		b.mu.Unlock()
		b.logger.Debug("items requested for unknown state", zap.Uint64("state", uint64(state)))
		return nil
	}
	provider, user := r.items, r.user
	b.mu.Unlock()

	return provider(user)
}
