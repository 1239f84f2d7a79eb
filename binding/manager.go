package binding

import (
	"context"
	"sync"

	nfmbind "github.com/wippyai/nfm-bind"
	"github.com/wippyai/nfm-bind/errors"
)

// Manager holds at most one live Binding, for hosts that want a single
// process-wide plugin. It is safe for concurrent use.
type Manager struct {
	loader  nfmbind.Loader
	opts    []Option
	current *Binding
	mu      sync.Mutex
}

// NewManager creates a Manager that binds images through loader.
func NewManager(loader nfmbind.Loader, opts ...Option) *Manager {
	return &Manager{loader: loader, opts: opts}
}

// Bind binds path into the empty slot. It fails with errors.KindAlreadyBound
// while another binding is live; a failed Bind leaves the slot unchanged.
func (m *Manager) Bind(ctx context.Context, path string) (*Binding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Bound() {
		return nil, errors.AlreadyBound(m.current.Path())
	}

	b, err := Bind(ctx, m.loader, path, m.opts...)
	if err != nil {
		return nil, err
	}
	m.current = b
	return b, nil
}

// Unbind releases the live binding, if any.
func (m *Manager) Unbind(ctx context.Context) error {
	m.mu.Lock()
	b := m.current
	m.current = nil
	m.mu.Unlock()

	return b.Unbind(ctx)
}

// Rebind replaces the live binding with a fresh bind of path. The old image
// is released first. If the new bind fails the slot is left empty.
func (m *Manager) Rebind(ctx context.Context, path string) (*Binding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.current.Unbind(ctx); err != nil {
		m.current = nil
		return nil, err
	}
	m.current = nil

	b, err := Bind(ctx, m.loader, path, m.opts...)
	if err != nil {
		return nil, err
	}
	m.current = b
	return b, nil
}

// Current returns the live binding or nil.
func (m *Manager) Current() *Binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current.Bound() {
		return nil
	}
	return m.current
}

// Bound reports whether a binding is live.
func (m *Manager) Bound() bool {
	return m.Current() != nil
}
