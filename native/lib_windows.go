//go:build windows && (amd64 || arm64)

package native

import (
	"golang.org/x/sys/windows"
)

func openLibrary(path string, _ int) (uintptr, error) {
	h, err := windows.LoadLibrary(path)
	return uintptr(h), err
}

func lookupSymbol(handle uintptr, name string) (uintptr, error) {
	return windows.GetProcAddress(windows.Handle(handle), name)
}

func closeLibrary(handle uintptr) error {
	return windows.FreeLibrary(windows.Handle(handle))
}

func goString(p *byte) string {
	return windows.BytePtrToString(p)
}
