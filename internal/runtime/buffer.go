package runtime

import "github.com/aretw0/prt/pkg/domain"

// EventNode is one buffered occurrence of an event.
type EventNode struct {
	Event   *domain.Event
	Payload domain.Value
}

// EventBuffer is a machine's mailbox: FIFO order, bounded per event kind.
type EventBuffer struct {
	nodes []EventNode
}

// NewEventBuffer creates an empty buffer.
func NewEventBuffer() *EventBuffer {
	return &EventBuffer{}
}

// EnqueueEvent appends an occurrence of e unless e's instance bound is already met.
// Overflow yields *domain.AssumeFailureError for assume-checked events and
// *domain.MaxInstancesExceededError otherwise; the buffer is left unchanged.
func (b *EventBuffer) EnqueueEvent(e *domain.Event, payload domain.Value) error {
	if e.Bounded() && b.Count(e) >= e.MaxInstances {
		if e.Assume {
			return &domain.AssumeFailureError{Event: e.Name, Max: e.MaxInstances}
		}
		return &domain.MaxInstancesExceededError{Event: e.Name, Max: e.MaxInstances}
	}
	b.nodes = append(b.nodes, EventNode{Event: e, Payload: payload})
	return nil
}

// DequeueEvent removes the first node that passes m's filter and makes it m's
// current event and payload. It reports false, changing nothing, when no node matches.
func (b *EventBuffer) DequeueEvent(m *Machine) bool {
	i := b.match(m)
	if i < 0 {
		return false
	}
	node := b.nodes[i]
	b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
	m.event = node.Event
	m.payload = node.Payload
	return true
}

// IsEnabled reports whether DequeueEvent(m) would succeed.
func (b *EventBuffer) IsEnabled(m *Machine) bool {
	return b.match(m) >= 0
}

// match is the single predicate shared by DequeueEvent and IsEnabled:
// the index of the first node in the receive set when one is active,
// otherwise of the first node not deferred by the top state frame. -1 if none.
func (b *EventBuffer) match(m *Machine) int {
	for i, node := range b.nodes {
		if m.accepts(node.Event) {
			return i
		}
	}
	return -1
}

// Size returns the number of buffered occurrences.
func (b *EventBuffer) Size() int {
	return len(b.nodes)
}

// Count returns the number of buffered occurrences of e.
func (b *EventBuffer) Count(e *domain.Event) int {
	n := 0
	for _, node := range b.nodes {
		if node.Event == e {
			n++
		}
	}
	return n
}

// Nodes returns a copy of the buffered occurrences in FIFO order.
func (b *EventBuffer) Nodes() []EventNode {
	return append([]EventNode(nil), b.nodes...)
}

// Clone returns an independent copy, payloads included.
func (b *EventBuffer) Clone() *EventBuffer {
	nodes := make([]EventNode, len(b.nodes))
	for i, node := range b.nodes {
		nodes[i] = EventNode{Event: node.Event, Payload: domain.CloneValue(node.Payload)}
	}
	return &EventBuffer{nodes: nodes}
}
