// Package plugintest provides scripted in-memory plugin images for testing
// code that binds menu plugins.
//
//	p := plugintest.New().Without("Hide")
//	loader := plugintest.NewLoader().Put("menu.so", p)
//
//	_, err := binding.Bind(ctx, loader, "menu.so")
//	// err is a symbol_missing error and p.Live() == 0
//
// A Plugin counts calls per symbol and remembers the state handle of the
// last show call, so a test can drive the host side with Select,
// SelectWindow, Dismiss and Items as a real plugin's UI would.
package plugintest
