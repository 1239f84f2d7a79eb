// Package resource provides handle tables for values shared with plugins.
//
// A plugin must never hold a host pointer. Instead the host stores the value
// in a table and passes the plugin an opaque integer handle; when the plugin
// calls back with the handle the host looks the value up again.
//
// # Handle Table
//
// The UnifiedTable maps integer handles to Go values:
//
//	table := resource.NewTable()
//
//	// Insert a value, get a handle
//	handle := table.Insert(typeID, myValue)
//
//	// Retrieve value by handle
//	value, ok := table.Get(handle)
//
//	// Remove and get value when the plugin is done with it
//	value, ok := table.Remove(handle)
//
// # Generations
//
// Freed slots are reused, but every reuse bumps the slot's generation and the
// generation is part of the handle. A late callback carrying a stale handle
// therefore never reaches the value that now occupies the slot.
//
// # Type Safety
//
// Each value is stored with a type ID. TypedTable narrows a table to one type:
//
//	requests := resource.NewTypedTable[*Request](table, requestTypeID)
//	h := requests.Insert(req)
//	req, ok := requests.Get(h)
//
// # Observers
//
// Observers receive EventCreated and EventDropped notifications, which the
// binding uses to trace request state lifetimes.
//
// Values are not garbage collected by the table. The owner must Remove them
// or Close the table.
package resource
