//go:build (darwin || freebsd || linux) && (amd64 || arm64)

package native

import (
	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"
)

func openLibrary(path string, mode int) (uintptr, error) {
	if mode == 0 {
		mode = purego.RTLD_NOW | purego.RTLD_LOCAL
	}
	return purego.Dlopen(path, mode)
}

func lookupSymbol(handle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}

func closeLibrary(handle uintptr) error {
	return purego.Dlclose(handle)
}

func goString(p *byte) string {
	return unix.BytePtrToString(p)
}
