package nfmbind

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wippyai/nfm-bind/errors"
)

// Mux dispatches Open to a Loader chosen by the file extension of the path.
// Paths without a registered extension go to the fallback loader.
type Mux struct {
	loaders  map[string]Loader
	fallback Loader
	mu       sync.RWMutex
}

// NewMux creates a Mux. fallback may be nil.
func NewMux(fallback Loader) *Mux {
	return &Mux{
		loaders:  make(map[string]Loader),
		fallback: fallback,
	}
}

// Handle registers l for paths ending in ext (".wasm", ".so", ...).
// Matching is case-insensitive.
func (m *Mux) Handle(ext string, l Loader) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	m.mu.Lock()
	m.loaders[ext] = l
	m.mu.Unlock()
}

// Open implements Loader.
func (m *Mux) Open(ctx context.Context, path string, host Host) (Image, error) {
	ext := strings.ToLower(filepath.Ext(path))

	m.mu.RLock()
	l, ok := m.loaders[ext]
	m.mu.RUnlock()

	if !ok {
		l = m.fallback
	}
	if l == nil {
		return nil, errors.Load(path, fmt.Errorf("no loader registered for extension %q", ext))
	}
	return l.Open(ctx, path, host)
}

var _ Loader = (*Mux)(nil)
