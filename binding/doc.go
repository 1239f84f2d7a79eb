// Package binding binds a menu plugin image and dispatches its entry points.
//
// Bind maps the image through a nfmbind.Loader, resolves every row of the
// resolution table (see Table), and calls the plugin's Initialize once:
//
//	b, err := binding.Bind(ctx, loader, "/usr/lib/libnfm.so")
//	if err != nil {
//	    return err // errors.KindLoad or errors.KindSymbolMissing
//	}
//	defer b.Unbind(ctx)
//
//	req, err := b.ShowWindowsList(ctx, binding.Callbacks[nfmbind.WindowHandle]{
//	    OnSelect: func(w nfmbind.WindowHandle, state any) { focus(w) },
//	    OnClosed: func() { log.Println("dismissed") },
//	    State:    myState,
//	})
//
// # Requests
//
// Each show call returns a Request that moves through
//
//	requested -> displayed -> selected | dismissed
//
// A request that is still open when the binding is unbound ends abandoned and
// neither callback fires. A closed notification that follows a selection is
// dropped, so exactly one of OnSelect or OnClosed runs per request.
//
// The plugin never sees the caller's State. It receives an opaque,
// generation-checked StateHandle, and a callback carrying a handle that is no
// longer live is ignored.
//
// # Closed Routing
//
// The closed callback carries no state. It settles the most recent request
// that has not settled yet. Issuing a second show call before the first one
// settles is allowed but logged, and closed notifications may then be
// attributed to the newer request.
//
// # Thread Safety
//
// Binding and Manager are safe for concurrent use. No lock is held while the
// plugin runs, so plugins may call back synchronously and callbacks may call
// Hide. Unbinding while a plugin call is in progress is a caller error.
//
// Entry points called after Unbind return errors.KindNotBound.
package binding
