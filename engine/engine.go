package engine

import (
	"context"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	nfmbind "github.com/wippyai/nfm-bind"
	"github.com/wippyai/nfm-bind/errors"
)

// Config holds configuration for engine creation
type Config struct {
	// Logger receives engine diagnostics. Defaults to Logger().
	Logger *zap.Logger

	// CacheDir persists compiled modules across processes.
	// Empty keeps the compilation cache in memory.
	CacheDir string

	// MemoryLimitPages sets the maximum memory per image in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// EnableWASI instantiates wasi_snapshot_preview1 for plugins built
	// against a WASI libc.
	EnableWASI bool
}

// Engine loads WebAssembly plugin images. It implements nfmbind.Loader.
//
// Every image gets its own wazero runtime so that closing one image releases
// all of its memory; compiled code is shared through the engine's cache.
type Engine struct {
	cache  wazero.CompilationCache
	logger *zap.Logger
	cfg    Config
}

var _ nfmbind.Loader = (*Engine)(nil)

// New creates an engine. cfg may be nil.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	e := &Engine{logger: Logger()}
	if cfg != nil {
		e.cfg = *cfg
		if cfg.Logger != nil {
			e.logger = cfg.Logger
		}
	}

	if e.cfg.CacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(e.cfg.CacheDir)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "compilation cache dir")
		}
		e.cache = cache
	} else {
		e.cache = wazero.NewCompilationCache()
	}
	return e, nil
}

// Close releases the compilation cache. Images already open stay usable.
func (e *Engine) Close(ctx context.Context) error {
	return e.cache.Close(ctx)
}

// Open implements nfmbind.Loader by reading a .wasm file from disk.
func (e *Engine) Open(ctx context.Context, path string, host nfmbind.Host) (nfmbind.Image, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load(path, err)
	}
	img, err := e.Load(ctx, path, wasm, host)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Load instantiates a plugin image from bytes. path is used for
// diagnostics and as the module name.
func (e *Engine) Load(ctx context.Context, path string, wasm []byte, host nfmbind.Host) (*Image, error) {
	if host == nil {
		return nil, errors.InvalidInput(errors.PhaseLoad, "nil host")
	}
	log := e.logger.With(zap.String("path", path))

	rcfg := wazero.NewRuntimeConfig().WithCompilationCache(e.cache)
	if e.cfg.MemoryLimitPages > 0 {
		rcfg = rcfg.WithMemoryLimitPages(e.cfg.MemoryLimitPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, rcfg)

	fail := func(err error) (*Image, error) {
		return nil, multierr.Append(errors.Load(path, err), r.Close(ctx))
	}

	if e.cfg.EnableWASI {
		if err := instantiateWASI(ctx, r); err != nil {
			return fail(err)
		}
	}

	img := &Image{
		path:   path,
		host:   host,
		logger: log,
		items:  make(map[nfmbind.StateHandle][]string),
	}
	if err := img.instantiateHost(ctx, r); err != nil {
		return fail(err)
	}

	compiled, err := r.CompileModule(ctx, wasm)
	if err != nil {
		return fail(err)
	}

	// Anonymous, so a file named after a host module (nfm.wasm) still loads.
	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_initialize").
		WithStderr(os.Stderr)
	mod, err := r.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return fail(err)
	}

	img.runtime = r
	img.mod = mod
	if mem := mod.Memory(); mem != nil {
		img.memory = &WazeroMemory{mem: mem}
	}
	log.Debug("wasm plugin image loaded", zap.Int("exports", len(compiled.ExportedFunctions())))
	return img, nil
}

func instantiateWASI(ctx context.Context, r wazero.Runtime) error {
	builder := r.NewHostModuleBuilder(wasi_snapshot_preview1.ModuleName)
	wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
	_, err := builder.Instantiate(ctx)
	return err
}
