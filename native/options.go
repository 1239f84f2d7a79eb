package native

import (
	"sync"

	"go.uber.org/zap"

	nfmbind "github.com/wippyai/nfm-bind"
)

// Options configures a Loader.
type Options struct {
	// Logger receives loader diagnostics. Defaults to Logger().
	Logger *zap.Logger

	// Mode overrides the dlopen flags on unix.
	// Zero means RTLD_NOW|RTLD_LOCAL. Ignored on Windows.
	Mode int
}

// Loader maps C-ABI shared libraries (.so, .dylib, .dll).
type Loader struct {
	logger *zap.Logger
	opts   Options
}

var _ nfmbind.Loader = (*Loader)(nil)

// New creates a Loader.
func New(opts Options) *Loader {
	l := &Loader{opts: opts, logger: opts.Logger}
	if l.logger == nil {
		l.logger = Logger()
	}
	return l
}

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the package's default logger, a no-op logger.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}
