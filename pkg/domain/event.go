package domain

import (
	"fmt"
	"math"

	"github.com/aretw0/prt/pkg/schema"
)

// DefaultMaxInstances is the unbounded sentinel: events declared with it are never bound-checked.
const DefaultMaxInstances = math.MaxInt

// Event describes one kind of event. Descriptors are compared by identity:
// two *Event values are the same event iff they are the same pointer.
type Event struct {
	Name         string
	PayloadType  schema.Type
	MaxInstances int
	// Assume marks overflow of MaxInstances as an assumption failure (path pruned)
	// rather than a fatal error.
	Assume bool
}

// Process-wide events. Created once and never mutated.
var (
	// NullEvent is consumed by states declaring a null transition when no buffered event is enabled.
	NullEvent = &Event{Name: "null", PayloadType: schema.Null(), MaxInstances: DefaultMaxInstances}
	// HaltEvent halts the receiving machine unless a state handles it explicitly.
	HaltEvent = &Event{Name: "halt", PayloadType: schema.Null(), MaxInstances: DefaultMaxInstances}
)

// NewEvent creates an event descriptor.
// A nil payload type means the event carries no payload.
// maxInstances must be at least 1 or DefaultMaxInstances.
func NewEvent(name string, payloadType schema.Type, maxInstances int, assume bool) (*Event, error) {
	if name == "" {
		return nil, fmt.Errorf("event name is required")
	}
	if maxInstances < 1 {
		return nil, fmt.Errorf("event %s: max instances must be >= 1, got %d", name, maxInstances)
	}
	if payloadType == nil {
		payloadType = schema.Null()
	}
	return &Event{
		Name:         name,
		PayloadType:  payloadType,
		MaxInstances: maxInstances,
		Assume:       assume,
	}, nil
}

// MustEvent is like NewEvent but panics on invalid arguments.
// Intended for package-level declarations in generated code.
func MustEvent(name string, payloadType schema.Type, maxInstances int, assume bool) *Event {
	e, err := NewEvent(name, payloadType, maxInstances, assume)
	if err != nil {
		panic(err)
	}
	return e
}

// Bounded reports whether enqueues of this event are bound-checked.
func (e *Event) Bounded() bool {
	return e.MaxInstances != DefaultMaxInstances
}

// ValidatePayload checks payload against the event's payload type.
func (e *Event) ValidatePayload(payload Value) error {
	if e.PayloadType == nil {
		return nil
	}
	if err := e.PayloadType.Validate(payload); err != nil {
		return fmt.Errorf("payload of event %s: %w", e.Name, err)
	}
	return nil
}

func (e *Event) String() string {
	if e == nil {
		return "<nil>"
	}
	return e.Name
}
