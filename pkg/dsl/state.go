package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/prt/internal/runtime"
	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/set"
)

var errNilEvent = errors.New("nil event")

// StateBuilder provides a fluent API for configuring a state.
type StateBuilder struct {
	state   runtime.State
	builder *Builder
	err     error
}

func (s *StateBuilder) fail(err error) *StateBuilder {
	if s.err == nil {
		s.err = err
	}
	return s
}

// Start makes this the state the machine starts in.
func (s *StateBuilder) Start() *StateBuilder {
	s.builder.start = s.state.Name
	return s
}

// Entry sets the function run when the state is entered.
func (s *StateBuilder) Entry(f runtime.Fun) *StateBuilder {
	s.state.Entry = f
	return s
}

// Exit sets the function run when the state is left.
func (s *StateBuilder) Exit(f runtime.Fun) *StateBuilder {
	s.state.Exit = f
	return s
}

// Goto adds a goto transition to target with no handler.
func (s *StateBuilder) Goto(e *domain.Event, target domain.StateID) *StateBuilder {
	return s.GotoWith(e, target, runtime.Skip)
}

// GotoWith adds a goto transition to target that runs f between the exit
// of this state and the entry of target.
func (s *StateBuilder) GotoWith(e *domain.Event, target domain.StateID, f runtime.Fun) *StateBuilder {
	if e == nil {
		return s.fail(fmt.Errorf("goto %s: %w", target, errNilEvent))
	}
	if f == nil {
		f = runtime.Skip
	}
	s.state.Transitions[e] = runtime.Transition{Fun: f, Target: target}
	return s
}

// Push adds a push transition: target is entered on top of this state.
func (s *StateBuilder) Push(e *domain.Event, target domain.StateID) *StateBuilder {
	if e == nil {
		return s.fail(fmt.Errorf("push %s: %w", target, errNilEvent))
	}
	s.state.Transitions[e] = runtime.Transition{Target: target}
	return s
}

// Do handles e in place with f.
func (s *StateBuilder) Do(e *domain.Event, f runtime.Fun) *StateBuilder {
	if e == nil {
		return s.fail(fmt.Errorf("do %s: %w", funName(f), errNilEvent))
	}
	s.state.Dos[e] = f
	return s
}

func funName(f runtime.Fun) string {
	if f == nil {
		return "<nil>"
	}
	return f.Name()
}

// Ignore drops the events: each is handled by a do-handler that returns at once.
func (s *StateBuilder) Ignore(events ...*domain.Event) *StateBuilder {
	for _, e := range events {
		s.Do(e, runtime.Skip)
	}
	return s
}

// Defer keeps the events in the buffer while this state is on top.
func (s *StateBuilder) Defer(events ...*domain.Event) *StateBuilder {
	if s.state.Deferred == nil {
		s.state.Deferred = set.New[*domain.Event]()
	}
	for _, e := range events {
		if e == nil {
			return s.fail(fmt.Errorf("defer: %w", errNilEvent))
		}
		s.state.Deferred.Add(e)
	}
	return s
}

// Hot marks the state as one the program must eventually leave.
func (s *StateBuilder) Hot() *StateBuilder {
	s.state.Temperature = domain.Hot
	return s
}

// Cold marks the state as a goal state.
func (s *StateBuilder) Cold() *StateBuilder {
	s.state.Temperature = domain.Cold
	return s
}

// Build returns a copy of the configured state.
// This is primarily used by the Builder, but exposed for advanced usage.
func (s *StateBuilder) Build() *runtime.State {
	st := s.state
	st.Transitions = make(map[*domain.Event]runtime.Transition, len(s.state.Transitions))
	for e, t := range s.state.Transitions {
		st.Transitions[e] = t
	}
	st.Dos = make(map[*domain.Event]runtime.Fun, len(s.state.Dos))
	for e, f := range s.state.Dos {
		st.Dos[e] = f
	}
	st.Deferred = s.state.Deferred.Clone()
	_, st.HasNullTransition = st.Transitions[domain.NullEvent]
	return &st
}
