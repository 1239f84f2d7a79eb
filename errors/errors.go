package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the binding lifecycle the error occurred
type Phase string

const (
	PhaseLoad     Phase = "load"     // mapping the plugin image
	PhaseResolve  Phase = "resolve"  // entry point resolution
	PhaseInit     Phase = "init"     // plugin Initialize
	PhaseDispatch Phase = "dispatch" // invoking entry points
	PhaseHost     Phase = "host"     // host callbacks from the plugin
	PhaseConfig   Phase = "config"   // host configuration
)

// Kind categorizes the error
type Kind string

const (
	KindLoad              Kind = "load_failed"
	KindSymbolMissing     Kind = "symbol_missing"
	KindSignatureMismatch Kind = "signature_mismatch"
	KindInitialize        Kind = "initialize_failed"
	KindNotBound          Kind = "not_bound"
	KindUnavailable       Kind = "unavailable"
	KindAlreadyBound      Kind = "already_bound"
	KindInvalidInput      Kind = "invalid_input"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindTrap              Kind = "trap"
	KindUnsupported       Kind = "unsupported"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Path   string // plugin image path
	Symbol string // exported entry point name
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Symbol != "" {
		b.WriteString(" symbol ")
		b.WriteString(e.Symbol)
	}

	if e.Path != "" {
		b.WriteString(" in ")
		b.WriteString(e.Path)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && e.Phase != t.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the plugin image path
func (b *Builder) Path(path string) *Builder {
	b.err.Path = path
	return b
}

// Symbol sets the entry point name
func (b *Builder) Symbol(name string) *Builder {
	b.err.Symbol = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Load creates a LoadError: the image at path could not be mapped
func Load(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindLoad,
		Path:   path,
		Detail: "failed to load plugin image",
		Cause:  cause,
	}
}

// SymbolMissing creates an error for a single unresolved entry point
func SymbolMissing(path, symbol string, cause error) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindSymbolMissing,
		Path:   path,
		Symbol: symbol,
		Detail: "exported entry point not found",
		Cause:  cause,
	}
}

// SignatureMismatch creates an error for an entry point with the wrong shape
func SignatureMismatch(path, symbol, want, got string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindSignatureMismatch,
		Path:   path,
		Symbol: symbol,
		Detail: fmt.Sprintf("expected %s, got %s", want, got),
	}
}

// Initialize creates an error for a failed plugin Initialize call
func Initialize(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindInitialize,
		Path:   path,
		Symbol: "Initialize",
		Detail: "plugin initialization failed",
		Cause:  cause,
	}
}

// NotBound creates an error for an entry point used without a live binding
func NotBound(symbol string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindNotBound,
		Symbol: symbol,
		Detail: "plugin is not bound",
	}
}

// Unavailable creates an error for an optional entry point the image lacks
func Unavailable(symbol string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindUnavailable,
		Symbol: symbol,
		Detail: "optional entry point not exported by plugin",
	}
}

// AlreadyBound creates an error for a bind attempted over a live binding
func AlreadyBound(path string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindAlreadyBound,
		Path:   path,
		Detail: "a plugin is already bound; unbind it first",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Trap creates an error for a plugin call that aborted
func Trap(symbol string, cause error) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindTrap,
		Symbol: symbol,
		Detail: "plugin call aborted",
		Cause:  cause,
	}
}

// OutOfBounds creates an out of bounds memory access error
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access out of bounds: offset=%d, length=%d", offset, length),
		Value:  offset,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingSymbol represents a single entry point that failed to resolve
type MissingSymbol struct {
	Symbol    string // e.g., "ShowWindowsList"
	Signature string // expected calling shape
	Reason    string // why resolution failed
}

// MissingSymbolsError is returned when an image lacks mandatory entry points
type MissingSymbolsError struct {
	Path    string
	Symbols []MissingSymbol
}

func (e *MissingSymbolsError) Error() string {
	if len(e.Symbols) == 0 {
		return "[resolve] symbol_missing: no symbols specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("failed to resolve %d entry point(s)", len(e.Symbols)))
	if e.Path != "" {
		b.WriteString(" in ")
		b.WriteString(e.Path)
	}
	b.WriteByte(':')

	for _, s := range e.Symbols {
		b.WriteString("\n  - ")
		b.WriteString(s.Symbol)
		if s.Signature != "" {
			b.WriteString(" ")
			b.WriteString(s.Signature)
		}
		if s.Reason != "" {
			b.WriteString(": ")
			b.WriteString(s.Reason)
		}
	}

	return b.String()
}

// Names returns the symbol names in resolution order
func (e *MissingSymbolsError) Names() []string {
	names := make([]string, len(e.Symbols))
	for i, s := range e.Symbols {
		names[i] = s.Symbol
	}
	return names
}

// Is reports whether target matches this error type
func (e *MissingSymbolsError) Is(target error) bool {
	_, ok := target.(*MissingSymbolsError)
	return ok
}

// SymbolResolution wraps a MissingSymbolsError as a SymbolResolutionError
func SymbolResolution(missing *MissingSymbolsError) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindSymbolMissing,
		Path:   missing.Path,
		Detail: fmt.Sprintf("%d mandatory entry point(s) unresolved: %s", len(missing.Symbols), strings.Join(missing.Names(), ", ")),
		Cause:  missing,
	}
}
