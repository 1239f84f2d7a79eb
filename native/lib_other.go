//go:build !((darwin || freebsd || linux || windows) && (amd64 || arm64))

package native

import (
	"context"
	"runtime"

	nfmbind "github.com/wippyai/nfm-bind"
	"github.com/wippyai/nfm-bind/errors"
)

// Open implements nfmbind.Loader. Shared libraries cannot be loaded on this
// platform.
func (l *Loader) Open(_ context.Context, path string, _ nfmbind.Host) (nfmbind.Image, error) {
	return nil, errors.New(errors.PhaseLoad, errors.KindUnsupported).
		Path(path).
		Detail("native plugins are not supported on %s/%s", runtime.GOOS, runtime.GOARCH).
		Build()
}
