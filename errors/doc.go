// Package errors provides structured error types for plugin binding.
//
// Errors are categorized by Phase (where in the bind/dispatch lifecycle the
// error occurred) and Kind (error category). The Error type carries the image
// path, the entry point name and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResolve, errors.KindSignatureMismatch).
//		Path("/usr/lib/libnfm.so").
//		Symbol("ShowWindowsList").
//		Detail("expected %s", "(i64) -> ()").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Load(path, cause)
//	err := errors.NotBound("Hide")
//
// Match by phase and kind with the standard library:
//
//	if stderrors.Is(err, &errors.Error{Kind: errors.KindLoad}) { ... }
//
// A failed resolution wraps a MissingSymbolsError that lists every entry
// point that could not be resolved, so each one is diagnosable on its own.
package errors
