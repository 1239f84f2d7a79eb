package binding

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the default binding logger.
// It writes human-readable warnings and errors to stderr.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			encCfg := zap.NewDevelopmentEncoderConfig()
			encCfg.TimeKey = ""
			core := zapcore.NewCore(
				zapcore.NewConsoleEncoder(encCfg),
				zapcore.Lock(os.Stderr),
				zap.WarnLevel,
			)
			logger = zap.New(core).Named("nfm")
		}
	})
	return logger
}
