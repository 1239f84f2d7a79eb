// Package engine loads menu plugins compiled to WebAssembly.
//
// This package wraps wazero. An Engine is a nfmbind.Loader for .wasm files;
// each opened image runs in its own wazero runtime, sharing compiled code
// through the engine's compilation cache.
//
// # Plugin ABI
//
// A plugin exports its entry points as core wasm functions:
//
//	Initialize, Hide, RunLastDefinition   () -> ()
//	ShowFileSystem, ShowProgramsList,
//	ShowWindowsList, ShowProcessesList,
//	ShowItemsList                         (state i64) -> ()
//
// and imports its callbacks from the "nfm" module:
//
//	select_string(state i64, ptr i32, len i32)
//	select_window(state i64, hwnd i64)
//	closed()
//	items(state i64) -> i32
//	item(state i64, index i32, ptr i32, cap i32) -> i32
//
// state is the opaque handle the show call received and must be passed back
// unchanged. items calls the host's items provider and returns the entry
// count; item copies at most cap bytes of one entry into linear memory and
// returns the entry's full length, or -1 for an unknown index. The list
// stays readable until items is called again for the same state or the menu
// settles.
//
// Strings passed to select_string are read from the plugin's own memory and
// copied before the host sees them.
//
// # WASI
//
// Plugins built with a WASI libc need Config.EnableWASI. The reactor
// initializer _initialize runs at load time when exported.
//
// # Thread Safety
//
// Engine is safe for concurrent use. An Image may be re-entered from its
// own host callbacks but must not be called from several goroutines at once.
package engine
