package nfmbind

import (
	"context"
)

// Signature is the calling shape an exported entry point must have.
type Signature uint8

const (
	// SigVoid takes and returns nothing: Initialize, Hide, RunLastDefinition.
	SigVoid Signature = iota + 1
	// SigShowString shows a menu whose selection is a string.
	SigShowString
	// SigShowWindow shows a menu whose selection is a window handle.
	SigShowWindow
	// SigShowItems shows a caller-provided list of strings.
	SigShowItems
)

func (s Signature) String() string {
	switch s {
	case SigVoid:
		return "void()"
	case SigShowString:
		return "show(on_select_string, on_closed, state)"
	case SigShowWindow:
		return "show(on_select_window, on_closed, state)"
	case SigShowItems:
		return "show(items, on_select_string, on_closed, state)"
	default:
		return "unknown"
	}
}

// StateHandle is the opaque value a plugin receives in place of the caller's
// state. Zero is never issued.
type StateHandle uint64

// WindowHandle is a platform window handle (HWND on Windows), widened to
// 64 bits so wasm and native plugins report the same type.
type WindowHandle uint64

// Host receives callbacks from a plugin image.
// Implementations must tolerate calls from threads the plugin owns.
type Host interface {
	// SelectString reports a string selection for the request owning state.
	SelectString(state StateHandle, value string)

	// SelectWindow reports a window selection for the request owning state.
	SelectWindow(state StateHandle, window WindowHandle)

	// Closed reports that the displayed menu was dismissed.
	Closed()

	// Items returns the entries to display for an items-list request.
	// Ownership of the slice passes to the caller.
	Items(state StateHandle) []string
}

// Proc is a resolved entry point. The state argument is ignored for SigVoid.
type Proc func(ctx context.Context, state StateHandle) error

// Image is a plugin image mapped into the process.
type Image interface {
	// Path returns the path the image was opened from.
	Path() string

	// Resolve looks up an exported entry point by exact name and checks that
	// it has the expected signature.
	Resolve(name string, sig Signature) (Proc, error)

	// Close unmaps the image. Procs resolved from it become invalid.
	// Closing twice is a no-op.
	Close(ctx context.Context) error
}

// Loader maps plugin images. host receives every callback the image makes.
type Loader interface {
	Open(ctx context.Context, path string, host Host) (Image, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, path string, host Host) (Image, error)

// Open implements Loader.
func (f LoaderFunc) Open(ctx context.Context, path string, host Host) (Image, error) {
	return f(ctx, path, host)
}

// Memory is linear memory shared with a sandboxed plugin image.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
}

// MemorySizer provides the current size of linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}
