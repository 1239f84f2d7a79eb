package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wippyai/nfm-bind/binding"
	"github.com/wippyai/nfm-bind/errors"
)

// DefaultDebounce batches the bursts of events editors and linkers produce
// while writing a file.
const DefaultDebounce = 200 * time.Millisecond

// Option configures a Rebinder.
type Option func(*Rebinder)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Rebinder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDebounce sets the quiet period after the last change before a rebind
// is attempted. It is also the retry interval while menus are open.
func WithDebounce(d time.Duration) Option {
	return func(r *Rebinder) {
		if d > 0 {
			r.debounce = d
		}
	}
}

// OnRebind registers fn to run after every rebind attempt.
func OnRebind(fn func(*binding.Binding, error)) Option {
	return func(r *Rebinder) {
		r.onRebind = fn
	}
}

// Rebinder rebinds a Manager's plugin whenever its file changes. A change
// seen while requests are outstanding is deferred until none remain, so an
// image is never released under an open menu.
type Rebinder struct {
	mgr      *binding.Manager
	fs       *fsnotify.Watcher
	logger   *zap.Logger
	onRebind func(*binding.Binding, error)
	path     string
	debounce time.Duration
	mu       sync.Mutex
	closed   bool
}

// New watches path on behalf of mgr. The parent directory is watched so
// replacements by rename are seen.
func New(mgr *binding.Manager, path string, opts ...Option) (*Rebinder, error) {
	if mgr == nil {
		return nil, errors.InvalidInput(errors.PhaseConfig, "nil manager")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "resolve watch path")
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindLoad, err, "create watcher")
	}
	if err := fs.Add(filepath.Dir(abs)); err != nil {
		fs.Close()
		return nil, errors.New(errors.PhaseConfig, errors.KindLoad).
			Path(abs).
			Detail("watch plugin directory").
			Cause(err).
			Build()
	}

	r := &Rebinder{
		mgr:      mgr,
		fs:       fs,
		logger:   zap.NewNop(),
		path:     path,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("path", path))
	return r, nil
}

// Run processes file events until ctx is done or the Rebinder is closed.
func (r *Rebinder) Run(ctx context.Context) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	arm := func() {
		if timer == nil {
			timer = time.NewTimer(r.debounce)
		} else {
			timer.Reset(r.debounce)
		}
		fire = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	name := filepath.Base(r.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-r.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			r.logger.Debug("plugin changed", zap.Stringer("op", ev.Op))
			arm()

		case err, ok := <-r.fs.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watch error", zap.Error(err))

		case <-fire:
			fire = nil
			if !r.rebind(ctx) {
				arm()
			}
		}
	}
}

// rebind reports false when the attempt was deferred.
func (r *Rebinder) rebind(ctx context.Context) bool {
	if cur := r.mgr.Current(); cur != nil && cur.Pending() > 0 {
		r.logger.Debug("rebind deferred", zap.Int("pending", cur.Pending()))
		return false
	}

	b, err := r.mgr.Rebind(ctx, r.path)
	if err != nil {
		r.logger.Warn("rebind failed", zap.Error(err))
	} else {
		r.logger.Info("plugin rebound")
	}
	if r.onRebind != nil {
		r.onRebind(b, err)
	}
	return true
}

// Close stops watching. Run returns once the event channels drain.
func (r *Rebinder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.fs.Close()
}
