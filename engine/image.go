package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	nfmbind "github.com/wippyai/nfm-bind"
	"github.com/wippyai/nfm-bind/errors"
)

// Image is a WebAssembly plugin image. Entry points may be re-entered from
// host callbacks but must not be called from several goroutines at once.
type Image struct {
	runtime wazero.Runtime
	mod     api.Module
	memory  *WazeroMemory
	host    nfmbind.Host
	logger  *zap.Logger
	items   map[nfmbind.StateHandle][]string
	path    string
	shown   nfmbind.StateHandle // latest show, target of closed; guarded by itemsMu
	itemsMu sync.Mutex
	mu      sync.RWMutex
	closed  bool
}

var _ nfmbind.Image = (*Image)(nil)

// Path implements nfmbind.Image.
func (i *Image) Path() string {
	return i.path
}

// Memory returns the plugin's exported linear memory, or nil.
func (i *Image) Memory() *WazeroMemory {
	return i.memory
}

// signatureTypes maps a calling shape onto core wasm types.
func signatureTypes(sig nfmbind.Signature) (params, results []api.ValueType, ok bool) {
	switch sig {
	case nfmbind.SigVoid:
		return nil, nil, true
	case nfmbind.SigShowString, nfmbind.SigShowWindow, nfmbind.SigShowItems:
		return []api.ValueType{api.ValueTypeI64}, nil, true
	default:
		return nil, nil, false
	}
}

func formatTypes(params, results []api.ValueType) string {
	names := func(ts []api.ValueType) string {
		s := make([]string, len(ts))
		for i, t := range ts {
			s[i] = api.ValueTypeName(t)
		}
		return strings.Join(s, ", ")
	}
	return "(" + names(params) + ") -> (" + names(results) + ")"
}

func sameTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Resolve implements nfmbind.Image.
func (i *Image) Resolve(name string, sig nfmbind.Signature) (nfmbind.Proc, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return nil, errors.NotBound(name)
	}

	fn := i.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.SymbolMissing(i.path, name, nil)
	}

	wantParams, wantResults, ok := signatureTypes(sig)
	if !ok {
		return nil, errors.New(errors.PhaseResolve, errors.KindUnsupported).
			Path(i.path).
			Symbol(name).
			Detail("unknown signature %d", sig).
			Build()
	}
	def := fn.Definition()
	if !sameTypes(def.ParamTypes(), wantParams) || !sameTypes(def.ResultTypes(), wantResults) {
		return nil, errors.SignatureMismatch(i.path, name,
			formatTypes(wantParams, wantResults),
			formatTypes(def.ParamTypes(), def.ResultTypes()))
	}

	void := sig == nfmbind.SigVoid
	return func(ctx context.Context, state nfmbind.StateHandle) error {
		i.mu.RLock()
		if i.closed {
			i.mu.RUnlock()
			return errors.NotBound(name)
		}
		// A fresh function per call keeps re-entrant calls on separate stacks.
		f := i.mod.ExportedFunction(name)
		i.mu.RUnlock()

		var err error
		if void {
			_, err = f.Call(ctx)
		} else {
			i.itemsMu.Lock()
			i.shown = state
			i.itemsMu.Unlock()
			_, err = f.Call(ctx, uint64(state))
		}
		if err != nil {
			return errors.Trap(name, err)
		}
		return nil
	}, nil
}

// Close implements nfmbind.Image.
func (i *Image) Close(ctx context.Context) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	mod, r := i.mod, i.runtime
	i.mu.Unlock()

	i.itemsMu.Lock()
	i.items = nil
	i.itemsMu.Unlock()

	var err error
	if mod != nil {
		err = multierr.Append(err, mod.Close(ctx))
	}
	if r != nil {
		err = multierr.Append(err, r.Close(ctx))
	}
	if err != nil {
		return errors.New(errors.PhaseLoad, errors.KindLoad).
			Path(i.path).
			Detail("close plugin image").
			Cause(err).
			Build()
	}
	i.logger.Debug("wasm plugin image closed")
	return nil
}
