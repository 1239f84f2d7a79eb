package resource

import (
	"sync"
	"sync/atomic"
)

// UnifiedTable stores values of several types in one handle space and
// notifies observers as values come and go.
type UnifiedTable struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
	closed    atomic.Bool
}

// NewTable creates an empty table.
func NewTable() *UnifiedTable {
	return &UnifiedTable{backend: NewLocalBackend()}
}

// Insert adds a value and returns its handle, or 0 once the table is closed.
func (t *UnifiedTable) Insert(typeID uint32, value any) Handle {
	if t.closed.Load() {
		return 0
	}
	handle, err := t.backend.Create(typeID, value)
	if err != nil {
		return 0
	}
	t.notify(Event{Type: EventCreated, Handle: handle, TypeID: typeID, Value: value})
	return handle
}

// Get returns the value for handle, whatever its type.
func (t *UnifiedTable) Get(handle Handle) (any, bool) {
	return t.backend.Get(handle, AnyType)
}

// GetTyped returns the value for handle only if it was inserted as typeID.
func (t *UnifiedTable) GetTyped(handle Handle, typeID uint32) (any, bool) {
	return t.backend.Get(handle, typeID)
}

// Remove drops the value for handle, whatever its type.
func (t *UnifiedTable) Remove(handle Handle) (any, bool) {
	return t.RemoveTyped(handle, AnyType)
}

// RemoveTyped drops the value for handle only if it was inserted as typeID.
// A value implementing Dropper is dropped before observers are told.
func (t *UnifiedTable) RemoveTyped(handle Handle, typeID uint32) (any, bool) {
	value, tid, ok := t.backend.Drop(handle, typeID)
	if !ok {
		return nil, false
	}
	drop(value)
	t.notify(Event{Type: EventDropped, Handle: handle, TypeID: tid, Value: value})
	return value, true
}

// Subscribe adds an observer.
func (t *UnifiedTable) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *UnifiedTable) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live values.
func (t *UnifiedTable) Len() int {
	return t.backend.Len()
}

// Close drops every value and rejects further inserts. Observers are not
// notified.
func (t *UnifiedTable) Close() error {
	t.closed.Store(true)
	return t.backend.Close()
}

func (t *UnifiedTable) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}

// TypedTable is a view of a UnifiedTable restricted to one type ID.
type TypedTable[T any] struct {
	table  *UnifiedTable
	typeID uint32
}

// NewTypedTable returns a view of table for values inserted as typeID.
// typeID must not be AnyType.
func NewTypedTable[T any](table *UnifiedTable, typeID uint32) *TypedTable[T] {
	return &TypedTable[T]{table: table, typeID: typeID}
}

// Insert adds a value and returns its handle.
func (t *TypedTable[T]) Insert(value T) Handle {
	return t.table.Insert(t.typeID, value)
}

// Get returns the value for handle.
func (t *TypedTable[T]) Get(handle Handle) (T, bool) {
	v, ok := t.table.GetTyped(handle, t.typeID)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Remove drops the value for handle.
func (t *TypedTable[T]) Remove(handle Handle) (T, bool) {
	v, ok := t.table.RemoveTyped(handle, t.typeID)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Each calls fn for every live value of this type until fn returns false.
// fn must not modify the table.
func (t *TypedTable[T]) Each(fn func(Handle, T) bool) {
	t.table.backend.Each(func(h Handle, typeID uint32, value any) bool {
		if typeID != t.typeID {
			return true
		}
		typed, ok := value.(T)
		if !ok {
			return true
		}
		return fn(h, typed)
	})
}
