// Package native loads menu plugins built as C-ABI shared libraries.
//
// On unix the library is mapped with dlopen through purego, without cgo; on
// Windows with LoadLibrary. The exported entry points are cdecl functions:
//
//	void Initialize(void);
//	void Hide(void);
//	void RunLastDefinition(void);
//	void ShowFileSystem(on_select_string, on_closed, void* state);
//	void ShowProgramsList(on_select_string, on_closed, void* state);
//	void ShowProcessesList(on_select_string, on_closed, void* state);
//	void ShowWindowsList(on_select_window, on_closed, void* state);
//	void ShowItemsList(items_provider, on_select_string, on_closed, void* state);
//
//	typedef void  (*on_select_string)(const char* value, void* state);
//	typedef void  (*on_select_window)(HWND window, void* state);
//	typedef void  (*on_closed)(void);
//	typedef char** (*items_provider)(void* state);
//
// C exports carry no type information, so resolution only checks that a
// symbol exists. The state pointer is an opaque token, never a host address.
//
// items_provider returns a NULL-terminated array of NUL-terminated strings
// owned by the host. It stays valid until the provider is called again for
// the same state or the menu settles; plugins must copy what they keep.
//
// Callbacks may arrive on threads the plugin owns. Threads not created by Go
// can only call back when the binary is built with cgo enabled.
package native
