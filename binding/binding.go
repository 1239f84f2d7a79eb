package binding

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	nfmbind "github.com/wippyai/nfm-bind"
	"github.com/wippyai/nfm-bind/errors"
	"github.com/wippyai/nfm-bind/resource"
)

const requestTypeID uint32 = 1

// Binding is a live association between the host and one plugin image.
// The zero value is not usable; obtain one from Bind.
type Binding struct {
	path     string
	logger   *zap.Logger
	image    nfmbind.Image
	table    *resource.UnifiedTable
	requests *resource.TypedTable[*Request]
	tracer   *stateTracer
	current  *Request
	procs    [numOps]nfmbind.Proc
	ownTable bool
	bound    bool
	mu       sync.Mutex
}

// Bind loads the image at path, resolves every entry point and calls the
// plugin's Initialize exactly once.
//
// A load failure returns an errors.KindLoad error. If any mandatory entry
// point is missing the image is closed before Bind returns an
// errors.KindSymbolMissing error wrapping *errors.MissingSymbolsError.
// Nothing stays mapped after a failed Bind.
func Bind(ctx context.Context, loader nfmbind.Loader, path string, opts ...Option) (*Binding, error) {
	o := options{logger: Logger()}
	for _, opt := range opts {
		opt(&o)
	}
	if loader == nil {
		return nil, errors.InvalidInput(errors.PhaseLoad, "nil loader")
	}

	b := &Binding{
		path:   path,
		logger: o.logger.With(zap.String("path", path)),
		table:  o.table,
	}
	if b.table == nil {
		b.table = resource.NewTable()
		b.ownTable = true
	}
	b.requests = resource.NewTypedTable[*Request](b.table, requestTypeID)

	img, err := loader.Open(ctx, path, host{b})
	if err == nil && img == nil {
		err = errors.Load(path, fmt.Errorf("loader returned no image"))
	}
	if err != nil {
		b.releaseTable()
		var e *errors.Error
		if !stderrors.As(err, &e) || e.Kind != errors.KindLoad {
			err = errors.Load(path, err)
		}
		b.logger.Error("failed to load plugin image", zap.Error(err))
		return nil, err
	}

	procs, err := resolve(img, b.logger)
	if err != nil {
		b.logger.Error("plugin image rejected", zap.Error(err))
		err = multierr.Append(err, img.Close(ctx))
		b.releaseTable()
		return nil, err
	}

	if err := invoke(ctx, entryPoints[opInitialize].Symbol, procs[opInitialize], 0); err != nil {
		ierr := errors.Initialize(path, err)
		b.logger.Error("plugin initialization failed", zap.Error(ierr))
		b.releaseTable()
		return nil, multierr.Append(ierr, img.Close(ctx))
	}

	b.mu.Lock()
	b.image = img
	b.procs = procs
	b.bound = true
	b.tracer = &stateTracer{owner: b}
	b.mu.Unlock()
	b.table.Subscribe(b.tracer)

	b.logger.Info("plugin bound", zap.Bool("run_last_definition", procs[opRunLastDefinition] != nil))
	return b, nil
}

// Unbind releases the image. It is safe to call on a nil or already unbound
// Binding. Requests still outstanding become StateAbandoned and none of their
// callbacks fire afterwards.
func (b *Binding) Unbind(ctx context.Context) error {
	if b == nil {
		return nil
	}

	b.mu.Lock()
	if !b.bound {
		b.mu.Unlock()
		return nil
	}
	b.bound = false
	img := b.image
	b.image = nil
	b.procs = [numOps]nfmbind.Proc{}
	b.current = nil

	var handles []resource.Handle
	var pending []*Request
	b.requests.Each(func(h resource.Handle, r *Request) bool {
		if r.binding == b {
			handles = append(handles, h)
			pending = append(pending, r)
		}
		return true
	})
	for i, h := range handles {
		pending[i].state = StateAbandoned
		b.requests.Remove(h)
	}
	b.mu.Unlock()

	for _, r := range pending {
		b.logger.Warn("menu request abandoned by unbind",
			zap.String("op", r.op),
			zap.Stringer("request", r.id))
		close(r.done)
	}

	b.table.Unsubscribe(b.tracer)
	err := img.Close(ctx)
	if b.ownTable {
		err = multierr.Append(err, b.table.Close())
	}
	if err != nil {
		b.logger.Warn("unbind", zap.Error(err))
		return err
	}
	b.logger.Info("plugin unbound")
	return nil
}

// Path returns the path the image was bound from.
func (b *Binding) Path() string {
	return b.path
}

// Bound reports whether the binding is live.
func (b *Binding) Bound() bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bound
}

// Pending returns the number of show requests not yet settled.
func (b *Binding) Pending() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	b.requests.Each(func(_ resource.Handle, r *Request) bool {
		if r.binding == b {
			n++
		}
		return true
	})
	return n
}

// ShowFileSystem asks the plugin to present a file system browser.
func (b *Binding) ShowFileSystem(ctx context.Context, cb Callbacks[string]) (*Request, error) {
	return b.show(ctx, opShowFileSystem, newStringRequest(entryPoints[opShowFileSystem].Operation, cb))
}

// ShowProgramsList asks the plugin to present the installed programs.
func (b *Binding) ShowProgramsList(ctx context.Context, cb Callbacks[string]) (*Request, error) {
	return b.show(ctx, opShowProgramsList, newStringRequest(entryPoints[opShowProgramsList].Operation, cb))
}

// ShowProcessesList asks the plugin to present the running processes.
func (b *Binding) ShowProcessesList(ctx context.Context, cb Callbacks[string]) (*Request, error) {
	return b.show(ctx, opShowProcessesList, newStringRequest(entryPoints[opShowProcessesList].Operation, cb))
}

// ShowWindowsList asks the plugin to present the open windows. A selection
// delivers the window handle.
func (b *Binding) ShowWindowsList(ctx context.Context, cb Callbacks[nfmbind.WindowHandle]) (*Request, error) {
	return b.show(ctx, opShowWindowsList, newWindowRequest(entryPoints[opShowWindowsList].Operation, cb))
}

// ShowItemsList asks the plugin to present the entries produced by items.
func (b *Binding) ShowItemsList(ctx context.Context, items ItemsProvider, cb Callbacks[string]) (*Request, error) {
	if items == nil {
		return nil, errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
			Symbol(entryPoints[opShowItemsList].Symbol).
			Detail("nil items provider").
			Build()
	}
	r := newStringRequest(entryPoints[opShowItemsList].Operation, cb)
	r.items = items
	return b.show(ctx, opShowItemsList, r)
}

// Hide asks the plugin to dismiss the displayed menu. It does not wait; the
// closed callback, if it fires, is the acknowledgment.
func (b *Binding) Hide(ctx context.Context) error {
	return b.call(ctx, opHide)
}

// CanRunLastDefinition reports whether the plugin exports RunLastDefinition.
func (b *Binding) CanRunLastDefinition() bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bound && b.procs[opRunLastDefinition] != nil
}

// RunLastDefinition re-runs the plugin's most recent menu action without
// presenting UI. It returns an errors.KindUnavailable error when the plugin
// does not export it.
func (b *Binding) RunLastDefinition(ctx context.Context) error {
	return b.call(ctx, opRunLastDefinition)
}

func (b *Binding) call(ctx context.Context, op int) error {
	symbol := entryPoints[op].Symbol
	if b == nil {
		return errors.NotBound(symbol)
	}

	b.mu.Lock()
	if !b.bound {
		b.mu.Unlock()
		return errors.NotBound(symbol)
	}
	proc := b.procs[op]
	b.mu.Unlock()

	if proc == nil {
		return errors.Unavailable(symbol)
	}
	return invoke(ctx, symbol, proc, 0)
}

func (b *Binding) show(ctx context.Context, op int, r *Request) (*Request, error) {
	symbol := entryPoints[op].Symbol
	if b == nil {
		return nil, errors.NotBound(symbol)
	}
	r.binding = b

	b.mu.Lock()
	if !b.bound {
		b.mu.Unlock()
		return nil, errors.NotBound(symbol)
	}
	proc := b.procs[op]
	h := b.requests.Insert(r)
	if h == 0 {
		b.mu.Unlock()
		return nil, errors.NotBound(symbol)
	}
	r.handle = nfmbind.StateHandle(h)
	if prev := b.current; prev != nil {
		b.logger.Warn("menu requested while another is outstanding",
			zap.String("op", r.op),
			zap.Stringer("request", r.id),
			zap.Stringer("outstanding", prev.id))
	}
	b.current = r
	b.mu.Unlock()

	log := b.logger.With(zap.String("op", r.op), zap.Stringer("request", r.id))
	log.Debug("show", zap.Uint64("state", uint64(r.handle)))

	// The plugin may call back before the entry point returns.
	if err := invoke(ctx, symbol, proc, r.handle); err != nil {
		if b.settle(r.handle, StateAbandoned, nil) != nil {
			close(r.done)
		}
		log.Warn("show failed", zap.Error(err))
		return nil, err
	}

	b.mu.Lock()
	if r.state == StateRequested {
		r.state = StateDisplayed
	}
	b.mu.Unlock()
	return r, nil
}

// settle moves the request owning handle to a terminal state and releases
// its state handle. It returns nil if the handle is stale, already settled,
// or belongs to a request that cannot carry the payload.
func (b *Binding) settle(handle nfmbind.StateHandle, to RequestState, payload *payloadKind) *Request {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.requests.Get(resource.Handle(handle))
	if !ok || r.binding != b || r.state.Terminal() {
		return nil
	}
	if payload != nil && r.payload != *payload {
		b.logger.Warn("selection does not match menu kind",
			zap.String("op", r.op),
			zap.Stringer("request", r.id))
		return nil
	}
	r.state = to
	b.requests.Remove(resource.Handle(handle))
	if b.current == r {
		b.current = nil
	}
	return r
}

// closeCurrent settles the request closed notifications are routed to.
func (b *Binding) closeCurrent() *Request {
	b.mu.Lock()
	r := b.current
	b.mu.Unlock()
	if r == nil {
		return nil
	}
	return b.settle(r.handle, StateDismissed, nil)
}

func (b *Binding) releaseTable() {
	if b.ownTable {
		_ = b.table.Close()
	}
}

// invoke calls a plugin entry point, converting failures and panics from Go
// backends into structured errors.
func invoke(ctx context.Context, symbol string, proc nfmbind.Proc, state nfmbind.StateHandle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Trap(symbol, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := proc(ctx, state); err != nil {
		var e *errors.Error
		if stderrors.As(err, &e) {
			return err
		}
		return errors.Trap(symbol, err)
	}
	return nil
}

// stateTracer logs state handle lifetimes at debug level.
type stateTracer struct {
	owner *Binding
}

func (t *stateTracer) OnResourceEvent(e resource.Event) {
	if e.TypeID != requestTypeID {
		return
	}
	r, ok := e.Value.(*Request)
	if !ok || r.binding != t.owner {
		return
	}
	switch e.Type {
	case resource.EventCreated:
		t.owner.logger.Debug("state handle issued", zap.Uint64("state", uint64(e.Handle)), zap.Stringer("request", r.id))
	case resource.EventDropped:
		t.owner.logger.Debug("state handle released", zap.Uint64("state", uint64(e.Handle)), zap.Stringer("request", r.id))
	}
}
