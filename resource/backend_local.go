package resource

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("resource backend closed")

// LocalBackend is an in-memory store with generation-checked slots.
type LocalBackend struct {
	entries  []entry
	freeList []uint32
	live     int
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value      any
	typeID     uint32
	generation uint32
	valid      bool
}

// NewLocalBackend creates an empty backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 16),
		freeList: make([]uint32, 0, 16),
	}
}

// Create stores value under typeID and returns its handle.
func (b *LocalBackend) Create(typeID uint32, value any) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}
	b.live++

	if n := len(b.freeList); n > 0 {
		slot := b.freeList[n-1]
		b.freeList = b.freeList[:n-1]
		e := &b.entries[slot-1]
		e.generation++
		if e.generation == 0 {
			e.generation = 1
		}
		e.typeID, e.value, e.valid = typeID, value, true
		return makeHandle(slot, e.generation), nil
	}

	b.entries = append(b.entries, entry{
		typeID:     typeID,
		value:      value,
		generation: 1,
		valid:      true,
	})
	return makeHandle(uint32(len(b.entries)), 1), nil
}

// lookup returns the live entry for handle if its type matches. Caller holds b.mu.
func (b *LocalBackend) lookup(handle Handle, typeID uint32) *entry {
	slot := handle.slot()
	if slot == 0 || int(slot) > len(b.entries) {
		return nil
	}
	e := &b.entries[slot-1]
	if !e.valid || e.generation != handle.generation() {
		return nil
	}
	if typeID != AnyType && e.typeID != typeID {
		return nil
	}
	return e
}

// Get returns the value for handle. typeID may be AnyType.
func (b *LocalBackend) Get(handle Handle, typeID uint32) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle, typeID)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// Drop frees the slot for handle and returns the value and its type ID.
// typeID may be AnyType. Drop does not call Dropper; the caller owns the value.
func (b *LocalBackend) Drop(handle Handle, typeID uint32) (any, uint32, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle, typeID)
	if e == nil {
		return nil, 0, false
	}

	value, tid := e.value, e.typeID
	e.valid = false
	e.value = nil
	b.freeList = append(b.freeList, handle.slot())
	b.live--
	return value, tid, true
}

// Close frees every slot and drops the values that implement Dropper.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var values []any
	for i := range b.entries {
		if b.entries[i].valid {
			values = append(values, b.entries[i].value)
		}
	}
	b.entries = nil
	b.freeList = nil
	b.live = 0
	b.mu.Unlock()

	for _, v := range values {
		drop(v)
	}
	return nil
}

// Len returns the number of live values.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.live
}

// Each calls fn for every live value until fn returns false. fn must not
// modify the backend.
func (b *LocalBackend) Each(fn func(Handle, uint32, any) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid && !fn(makeHandle(uint32(i+1), e.generation), e.typeID, e.value) {
			return
		}
	}
}
