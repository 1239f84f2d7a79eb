package binding

import (
	"go.uber.org/zap"

	"github.com/wippyai/nfm-bind/resource"
)

type options struct {
	logger *zap.Logger
	table  *resource.UnifiedTable
}

// Option configures Bind.
type Option func(*options)

// WithLogger sets the logger for binding diagnostics.
// The default logger writes warnings and errors to stderr.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStateTable stores request state handles in t instead of a private
// table. The binding does not close a table it was given.
func WithStateTable(t *resource.UnifiedTable) Option {
	return func(o *options) {
		o.table = t
	}
}
