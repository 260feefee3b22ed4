package runtime

import (
	"fmt"
	"sort"

	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/set"
)

// Transition is an edge from a state on an event.
// A nil Fun marks a push transition: Target is entered without exiting the source.
type Transition struct {
	Fun    Fun
	Target domain.StateID
}

// IsPush reports whether this is a push transition.
func (t Transition) IsPush() bool {
	return t.Fun == nil
}

// State is an immutable state descriptor. Transition targets are keys into
// the owning Definition, so cyclic state graphs hold no pointer cycles.
type State struct {
	Name              domain.StateID
	Entry             Fun
	Exit              Fun
	Transitions       map[*domain.Event]Transition
	Dos               map[*domain.Event]Fun
	Deferred          set.Set[*domain.Event]
	HasNullTransition bool
	Temperature       domain.Temperature
}

// FindTransition returns the transition declared for e, goto or push.
func (s *State) FindTransition(e *domain.Event) (Transition, bool) {
	t, ok := s.Transitions[e]
	return t, ok
}

// FindPushTransition returns the transition declared for e only if it is a push.
func (s *State) FindPushTransition(e *domain.Event) (Transition, bool) {
	t, ok := s.Transitions[e]
	if !ok || !t.IsPush() {
		return Transition{}, false
	}
	return t, true
}

// Definition is a machine type: its states and where it starts.
type Definition struct {
	Name   string
	Start  domain.StateID
	States map[domain.StateID]*State
}

// State resolves a state key.
func (d *Definition) State(id domain.StateID) (*State, bool) {
	s, ok := d.States[id]
	return s, ok
}

func (d *Definition) mustState(id domain.StateID) *State {
	s, ok := d.States[id]
	if !ok {
		panic(fmt.Sprintf("machine type %s has no state %s", d.Name, id))
	}
	return s
}

// StateIDs returns the state keys in sorted order.
func (d *Definition) StateIDs() []domain.StateID {
	ids := make([]domain.StateID, 0, len(d.States))
	for id := range d.States {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Funs returns every function referenced by the definition's states.
func (d *Definition) Funs() []Fun {
	var funs []Fun
	for _, id := range d.StateIDs() {
		s := d.States[id]
		if s.Entry != nil {
			funs = append(funs, s.Entry)
		}
		if s.Exit != nil {
			funs = append(funs, s.Exit)
		}
		for _, t := range s.Transitions {
			if t.Fun != nil {
				funs = append(funs, t.Fun)
			}
		}
		for _, f := range s.Dos {
			funs = append(funs, f)
		}
	}
	return funs
}

// Events returns every event referenced by the definition's states.
func (d *Definition) Events() []*domain.Event {
	seen := set.New[*domain.Event]()
	for _, s := range d.States {
		for e := range s.Transitions {
			seen.Add(e)
		}
		for e := range s.Dos {
			seen.Add(e)
		}
		seen = seen.Union(s.Deferred)
	}
	events := make([]*domain.Event, 0, len(seen))
	for e := range seen.Items() {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Name < events[j].Name })
	return events
}

// Resolver maps names back to descriptors. It is needed to rebuild machines from records.
type Resolver interface {
	Definition(name string) (*Definition, bool)
	Event(name string) (*domain.Event, bool)
	Fun(name string) (Fun, bool)
}
