// Package nfmbind binds menu plugins into a host process.
//
// A menu plugin is a dynamically loaded image (a C-ABI shared library or a
// WebAssembly module) that exports a fixed set of entry points for showing
// menus: a file system browser, a program launcher, a window list, a process
// list and a generic item list. The host binds the image, invokes the menus it
// needs and receives the user's choice through callbacks.
//
// # Architecture Overview
//
//	nfmbind/         Root package with the binding ABI: Signature, Image, Loader, Host
//	├── binding/     Bind/unbind lifecycle, entry point table, request state machine
//	├── native/      C-ABI shared library images (dlopen / LoadLibrary)
//	├── engine/      WebAssembly plugin images on wazero
//	├── resource/    Handle table for opaque caller state
//	├── errors/      Structured error types
//	├── plugintest/  In-memory stub images for tests
//	├── config/      Host configuration file and logger construction
//	├── watch/       Rebind when the plugin image changes on disk
//	└── cmd/nfmhost/ Demo host: bind a plugin, show a menu, print the choice
//
// # Quick Start
//
//	eng, err := engine.New(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	loader := nfmbind.NewMux(native.New(native.Options{}))
//	loader.Handle(".wasm", eng)
//
//	b, err := binding.Bind(ctx, loader, "/usr/lib/libnfm.so")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Unbind(ctx)
//
//	req, err := b.ShowFileSystem(ctx, binding.Callbacks[string]{
//	    OnSelect: func(path string, state any) { fmt.Println(path) },
//	    OnClosed: func() { fmt.Println("dismissed") },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	req.Wait(ctx)
//
// # Callback Routing
//
// Plugins never see host values. Each show request stores the caller's state
// in a handle table and passes the plugin an opaque StateHandle; the plugin
// hands it back with the selection. The closed callback carries no state and
// is routed to the binding's current request.
//
// # Thread Safety
//
// Bind and Unbind are meant to run on one control goroutine. Callbacks may
// arrive on plugin-owned threads; a Binding synchronizes its own state but
// never holds a lock while calling into the plugin.
package nfmbind
