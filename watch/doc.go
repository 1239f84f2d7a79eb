// Package watch rebinds a plugin when its image changes on disk.
//
//	rb, err := watch.New(mgr, "menus.so", watch.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer rb.Close()
//	go rb.Run(ctx)
//
// A rebind releases the old image, so it waits until the current binding has
// no outstanding requests.
package watch
