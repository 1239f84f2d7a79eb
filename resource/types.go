package resource

// Handle is an opaque reference to a value in a table.
// The low 32 bits hold the slot, the high 32 bits its generation, so a
// handle stays invalid after its slot is reused. Handle 0 is never issued.
type Handle uint64

func makeHandle(slot, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(slot))
}

func (h Handle) slot() uint32 {
	return uint32(h)
}

func (h Handle) generation() uint32 {
	return uint32(h >> 32)
}

// AnyType matches values of every type ID in lookups and removals.
const AnyType uint32 = 0

// EventType tells observers what happened to a value.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

// Event is a lifecycle notification.
type Event struct {
	Value  any
	Handle Handle
	TypeID uint32
	Type   EventType
}

// Observer receives lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is implemented by values that hold memory or OS resources. Drop is
// called once when the value leaves the table, after the table's locks are
// released.
type Dropper interface {
	Drop()
}

func drop(v any) {
	if d, ok := v.(Dropper); ok {
		d.Drop()
	}
}
