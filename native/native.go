//go:build (darwin || freebsd || linux || windows) && (amd64 || arm64)

package native

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	nfmbind "github.com/wippyai/nfm-bind"
	"github.com/wippyai/nfm-bind/errors"
	"github.com/wippyai/nfm-bind/resource"
)

// C callbacks are process-wide: the number of callbacks purego can create is
// limited, so one trampoline per callback kind serves every image. The state
// argument each trampoline receives is a route token identifying the image
// and the caller's state handle.

const routeTypeID uint32 = 1

// route is the value behind a route token. Removing it from the table
// releases the item list handed to the plugin for that request.
type route struct {
	img   *Image
	state nfmbind.StateHandle
	items *itemsBuf // guarded by img.mu
}

func (r *route) Drop() {
	r.img.mu.Lock()
	buf := r.items
	r.items = nil
	r.img.mu.Unlock()
	buf.release()
}

type trampolines struct {
	selectString uintptr
	selectWindow uintptr
	closed       uintptr
	items        uintptr
}

var (
	cbOnce    sync.Once
	cb        trampolines
	routes    = resource.NewTypedTable[*route](resource.NewTable(), routeTypeID)
	lastShown atomic.Pointer[Image]
)

func callbacks() trampolines {
	cbOnce.Do(func() {
		cb = trampolines{
			selectString: purego.NewCallback(onSelectString),
			selectWindow: purego.NewCallback(onSelectWindow),
			closed:       purego.NewCallback(onClosed),
			items:        purego.NewCallback(onItems),
		}
	})
	return cb
}

// void on_select_string(char* value, void* state)
func onSelectString(value *byte, token uintptr) uintptr {
	r, ok := routes.Get(resource.Handle(token))
	if !ok {
		return 0
	}
	s := goString(value)
	r.img.retire(token)
	r.img.host.SelectString(r.state, s)
	return 0
}

// void on_select_window(HWND window, void* state)
func onSelectWindow(window uintptr, token uintptr) uintptr {
	r, ok := routes.Get(resource.Handle(token))
	if !ok {
		return 0
	}
	r.img.retire(token)
	r.img.host.SelectWindow(r.state, nfmbind.WindowHandle(window))
	return 0
}

// void on_closed(void)
func onClosed() uintptr {
	img := lastShown.Load()
	if img == nil {
		return 0
	}
	if token := img.takeShown(); token != 0 {
		img.retire(token)
	}
	img.host.Closed()
	return 0
}

// char** items_provider(void* state)
func onItems(token uintptr) uintptr {
	r, ok := routes.Get(resource.Handle(token))
	if !ok {
		return 0
	}
	list := r.img.host.Items(r.state)
	return r.img.setItems(token, r, list)
}

// Open implements nfmbind.Loader.
func (l *Loader) Open(_ context.Context, path string, host nfmbind.Host) (nfmbind.Image, error) {
	if host == nil {
		return nil, errors.InvalidInput(errors.PhaseLoad, "nil host")
	}
	h, err := openLibrary(path, l.opts.Mode)
	if err != nil {
		return nil, errors.Load(path, err)
	}
	l.logger.Debug("shared library loaded", zap.String("path", path))
	return &Image{
		path:   path,
		handle: h,
		host:   host,
		logger: l.logger.With(zap.String("path", path)),
		tokens: make(map[uintptr]*route),
	}, nil
}

// Image is a shared library mapped into the process.
type Image struct {
	host   nfmbind.Host
	logger *zap.Logger
	tokens map[uintptr]*route // live route tokens
	path   string
	handle uintptr
	shown  uintptr // token of the latest show, target of closed
	mu     sync.Mutex
	closed bool
}

var _ nfmbind.Image = (*Image)(nil)

// Path implements nfmbind.Image.
func (i *Image) Path() string {
	return i.path
}

// Resolve implements nfmbind.Image. C exports carry no type information, so
// only the symbol's presence is checked; sig selects the calling convention.
func (i *Image) Resolve(name string, sig nfmbind.Signature) (nfmbind.Proc, error) {
	i.mu.Lock()
	closed, handle := i.closed, i.handle
	i.mu.Unlock()
	if closed {
		return nil, errors.NotBound(name)
	}

	sym, err := lookupSymbol(handle, name)
	if err != nil || sym == 0 {
		return nil, errors.SymbolMissing(i.path, name, err)
	}
	cbs := callbacks()

	switch sig {
	case nfmbind.SigVoid:
		var fn func()
		purego.RegisterFunc(&fn, sym)
		return func(context.Context, nfmbind.StateHandle) error {
			if i.isClosed() {
				return errors.NotBound(name)
			}
			fn()
			return nil
		}, nil

	case nfmbind.SigShowString, nfmbind.SigShowWindow:
		onSelect := cbs.selectString
		if sig == nfmbind.SigShowWindow {
			onSelect = cbs.selectWindow
		}
		var fn func(onSelect, onClosed, state uintptr)
		purego.RegisterFunc(&fn, sym)
		return func(_ context.Context, state nfmbind.StateHandle) error {
			token, err := i.issue(name, state)
			if err != nil {
				return err
			}
			fn(onSelect, cbs.closed, token)
			return nil
		}, nil

	case nfmbind.SigShowItems:
		var fn func(items, onSelect, onClosed, state uintptr)
		purego.RegisterFunc(&fn, sym)
		return func(_ context.Context, state nfmbind.StateHandle) error {
			token, err := i.issue(name, state)
			if err != nil {
				return err
			}
			fn(cbs.items, cbs.selectString, cbs.closed, token)
			return nil
		}, nil

	default:
		return nil, errors.New(errors.PhaseResolve, errors.KindUnsupported).
			Path(i.path).
			Symbol(name).
			Detail("unknown signature %d", sig).
			Build()
	}
}

// Close implements nfmbind.Image. Outstanding route tokens are retired so
// late callbacks for this image are dropped.
func (i *Image) Close(context.Context) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	i.mu.Unlock()

	i.detach()

	if err := closeLibrary(i.handle); err != nil {
		return errors.New(errors.PhaseLoad, errors.KindLoad).
			Path(i.path).
			Detail("close shared library").
			Cause(err).
			Build()
	}
	i.logger.Debug("shared library closed")
	return nil
}

// detach retires every route token and stops closed notifications from
// reaching this image.
func (i *Image) detach() {
	i.mu.Lock()
	tokens := i.tokens
	i.tokens = nil
	i.shown = 0
	i.mu.Unlock()

	for token := range tokens {
		routes.Remove(resource.Handle(token))
	}
	lastShown.CompareAndSwap(i, nil)
}

func (i *Image) isClosed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

// issue creates the route token passed to the plugin as its state pointer.
func (i *Image) issue(name string, state nfmbind.StateHandle) (uintptr, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return 0, errors.NotBound(name)
	}
	r := &route{img: i, state: state}
	h := routes.Insert(r)
	if h == 0 {
		return 0, errors.New(errors.PhaseDispatch, errors.KindTrap).
			Path(i.path).
			Symbol(name).
			Detail("route table closed").
			Build()
	}
	token := uintptr(h)
	i.tokens[token] = r
	i.shown = token
	lastShown.Store(i)
	return token, nil
}

// takeShown returns and forgets the token closed notifications refer to.
func (i *Image) takeShown() uintptr {
	i.mu.Lock()
	defer i.mu.Unlock()
	token := i.shown
	i.shown = 0
	return token
}

// retire drops a settled request's token. Removing the route releases its
// item list.
func (i *Image) retire(token uintptr) {
	i.mu.Lock()
	_, ok := i.tokens[token]
	delete(i.tokens, token)
	if i.shown == token {
		i.shown = 0
	}
	i.mu.Unlock()

	if ok {
		routes.Remove(resource.Handle(token))
	}
}

// setItems replaces the item list of the route behind token and returns the
// address of its NULL-terminated pointer array.
func (i *Image) setItems(token uintptr, r *route, list []string) uintptr {
	buf := newItemsBuf(list)

	i.mu.Lock()
	if i.tokens[token] != r {
		i.mu.Unlock()
		buf.release()
		return 0
	}
	old := r.items
	r.items = buf
	i.mu.Unlock()

	old.release()
	return buf.addr()
}

// itemsBuf holds NUL-terminated copies of the items and the pointer array
// handed to the plugin, pinned until released.
type itemsBuf struct {
	strs   [][]byte
	ptrs   []*byte
	pinner runtime.Pinner
}

func newItemsBuf(list []string) *itemsBuf {
	b := &itemsBuf{
		strs: make([][]byte, len(list)),
		ptrs: make([]*byte, len(list)+1),
	}
	for n, s := range list {
		cs := make([]byte, len(s)+1)
		copy(cs, s)
		b.strs[n] = cs
		b.ptrs[n] = &cs[0]
		b.pinner.Pin(&cs[0])
	}
	b.pinner.Pin(&b.ptrs[0])
	return b
}

func (b *itemsBuf) addr() uintptr {
	return uintptr(unsafe.Pointer(&b.ptrs[0]))
}

func (b *itemsBuf) release() {
	if b == nil {
		return
	}
	b.pinner.Unpin()
}
