package plugintest

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	nfmbind "github.com/wippyai/nfm-bind"
	"github.com/wippyai/nfm-bind/errors"
)

// Func is the behaviour behind a stub entry point. host is the host the
// image was opened with; state is zero for void entry points.
type Func func(ctx context.Context, host nfmbind.Host, state nfmbind.StateHandle) error

type export struct {
	fn  Func
	sig nfmbind.Signature
}

// Plugin is a scripted plugin image. Exports are copied when an image is
// opened, so changing a Plugin never affects images already open.
type Plugin struct {
	exports   map[string]export
	calls     map[string]int
	host      nfmbind.Host
	openErr   error
	lastState nfmbind.StateHandle
	opened    int
	closed    int
	mu        sync.Mutex
}

// Symbols lists the exports of a complete plugin with their signatures.
var Symbols = map[string]nfmbind.Signature{
	"Initialize":        nfmbind.SigVoid,
	"ShowFileSystem":    nfmbind.SigShowString,
	"ShowProgramsList":  nfmbind.SigShowString,
	"ShowWindowsList":   nfmbind.SigShowWindow,
	"ShowProcessesList": nfmbind.SigShowString,
	"ShowItemsList":     nfmbind.SigShowItems,
	"Hide":              nfmbind.SigVoid,
	"RunLastDefinition": nfmbind.SigVoid,
}

// New returns a plugin exporting every entry point. Each export does nothing
// beyond being counted; show menus stay displayed until a simulation method
// is called.
func New() *Plugin {
	p := &Plugin{
		exports: make(map[string]export, len(Symbols)),
		calls:   make(map[string]int),
	}
	for name, sig := range Symbols {
		p.exports[name] = export{sig: sig, fn: Noop}
	}
	return p
}

// Noop is an entry point that returns immediately.
func Noop(context.Context, nfmbind.Host, nfmbind.StateHandle) error { return nil }

// ClosesImmediately reports a dismissal before the show call returns.
func ClosesImmediately(_ context.Context, host nfmbind.Host, _ nfmbind.StateHandle) error {
	host.Closed()
	return nil
}

// SelectsImmediately reports a string selection followed by a closed
// notification before the show call returns.
func SelectsImmediately(value string) Func {
	return func(_ context.Context, host nfmbind.Host, state nfmbind.StateHandle) error {
		host.SelectString(state, value)
		host.Closed()
		return nil
	}
}

// Fails returns an entry point that reports err.
func Fails(err error) Func {
	return func(context.Context, nfmbind.Host, nfmbind.StateHandle) error { return err }
}

// Without removes exports.
func (p *Plugin) Without(symbols ...string) *Plugin {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range symbols {
		delete(p.exports, s)
	}
	return p
}

// Export sets the behaviour of symbol, keeping its standard signature.
func (p *Plugin) Export(symbol string, fn Func) *Plugin {
	sig, ok := Symbols[symbol]
	if !ok {
		sig = nfmbind.SigVoid
	}
	return p.ExportAs(symbol, sig, fn)
}

// ExportAs sets the behaviour and signature of symbol.
func (p *Plugin) ExportAs(symbol string, sig nfmbind.Signature, fn Func) *Plugin {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exports[symbol] = export{sig: sig, fn: fn}
	return p
}

// FailOpen makes every Open of this plugin fail with err.
func (p *Plugin) FailOpen(err error) *Plugin {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openErr = err
	return p
}

// Calls returns how many times symbol was invoked across all images.
func (p *Plugin) Calls(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[symbol]
}

// Opened returns how many images were opened.
func (p *Plugin) Opened() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}

// Closed returns how many images were closed.
func (p *Plugin) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Live returns the number of images opened but not closed.
func (p *Plugin) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened - p.closed
}

// LastState returns the state handle of the most recent show call.
func (p *Plugin) LastState() nfmbind.StateHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastState
}

func (p *Plugin) currentHost() nfmbind.Host {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.host
}

// Select simulates the user choosing value in the last shown menu.
func (p *Plugin) Select(value string) {
	p.currentHost().SelectString(p.LastState(), value)
}

// SelectWindow simulates the user choosing a window in the last shown menu.
func (p *Plugin) SelectWindow(w nfmbind.WindowHandle) {
	p.currentHost().SelectWindow(p.LastState(), w)
}

// Dismiss simulates the user closing the menu without a selection.
func (p *Plugin) Dismiss() {
	p.currentHost().Closed()
}

// Items asks the host for the entries of the last shown items list.
func (p *Plugin) Items() []string {
	return p.currentHost().Items(p.LastState())
}

func (p *Plugin) open(path string, host nfmbind.Host) (*Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.openErr != nil {
		return nil, p.openErr
	}
	exports := make(map[string]export, len(p.exports))
	for k, v := range p.exports {
		exports[k] = v
	}
	p.opened++
	p.host = host
	return &Image{plugin: p, path: path, host: host, exports: exports}, nil
}

func (p *Plugin) record(symbol string, sig nfmbind.Signature, state nfmbind.StateHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[symbol]++
	if sig != nfmbind.SigVoid {
		p.lastState = state
	}
}

// Image is an open stub image.
type Image struct {
	plugin  *Plugin
	host    nfmbind.Host
	exports map[string]export
	path    string
	closed  bool
	mu      sync.Mutex
}

var _ nfmbind.Image = (*Image)(nil)

// Path implements nfmbind.Image.
func (i *Image) Path() string {
	return i.path
}

// Exports returns the exported symbol names, sorted.
func (i *Image) Exports() []string {
	names := make([]string, 0, len(i.exports))
	for k := range i.exports {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Resolve implements nfmbind.Image.
func (i *Image) Resolve(name string, sig nfmbind.Signature) (nfmbind.Proc, error) {
	exp, ok := i.exports[name]
	if !ok {
		return nil, errors.SymbolMissing(i.path, name, nil)
	}
	if exp.sig != sig {
		return nil, errors.SignatureMismatch(i.path, name, sig.String(), exp.sig.String())
	}

	return func(ctx context.Context, state nfmbind.StateHandle) error {
		i.mu.Lock()
		closed := i.closed
		i.mu.Unlock()
		if closed {
			return errors.NotBound(name)
		}
		i.plugin.record(name, exp.sig, state)
		return exp.fn(ctx, i.host, state)
	}, nil
}

// Close implements nfmbind.Image.
func (i *Image) Close(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true

	i.plugin.mu.Lock()
	i.plugin.closed++
	i.plugin.mu.Unlock()
	return nil
}

// Loader serves plugins by path.
type Loader struct {
	plugins map[string]*Plugin
	mu      sync.RWMutex
}

var _ nfmbind.Loader = (*Loader)(nil)

// NewLoader creates an empty Loader.
func NewLoader() *Loader {
	return &Loader{plugins: make(map[string]*Plugin)}
}

// Put installs p at path, replacing any previous plugin there.
func (l *Loader) Put(path string, p *Plugin) *Loader {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.plugins[path] = p
	return l
}

// Open implements nfmbind.Loader. Unknown paths fail like a missing file.
func (l *Loader) Open(_ context.Context, path string, host nfmbind.Host) (nfmbind.Image, error) {
	l.mu.RLock()
	p, ok := l.plugins[path]
	l.mu.RUnlock()

	if !ok {
		return nil, errors.Load(path, fmt.Errorf("open %s: %w", path, os.ErrNotExist))
	}
	img, err := p.open(path, host)
	if err != nil {
		return nil, errors.Load(path, err)
	}
	return img, nil
}
