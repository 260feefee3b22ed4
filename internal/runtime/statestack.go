package runtime

import (
	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/set"
)

// StateFrame is one active state with the deferred and action sets derived when it was pushed.
// The sets are owned by the frame and never alias the descriptor's static sets.
type StateFrame struct {
	State    *State
	Deferred set.Set[*domain.Event]
	Actions  set.Set[*domain.Event]
}

// StateStack holds the nested active states of a machine, innermost on top.
type StateStack struct {
	frames []StateFrame
}

// NewStateStack creates an empty stack.
func NewStateStack() *StateStack {
	return &StateStack{}
}

// PushStackFrame pushes s, deriving its sets from the current top frame:
//
//	deferred = (parent.deferred ∪ s.deferred) \ (s.doKeys ∪ s.transitionKeys)
//	actions  = ((parent.actions \ s.deferred) ∪ s.doKeys) \ s.transitionKeys
func (ss *StateStack) PushStackFrame(s *State) {
	var parentDeferred, parentActions set.Set[*domain.Event]
	if top := ss.Top(); top != nil {
		parentDeferred, parentActions = top.Deferred, top.Actions
	}

	deferred := parentDeferred.Union(s.Deferred)
	actions := parentActions.Difference(s.Deferred)
	for e := range s.Dos {
		deferred.Remove(e)
		actions.Add(e)
	}
	for e := range s.Transitions {
		deferred.Remove(e)
		actions.Remove(e)
	}

	ss.frames = append(ss.frames, StateFrame{State: s, Deferred: deferred, Actions: actions})
}

// PopStackFrame removes and returns the top frame. Panics on an empty stack.
func (ss *StateStack) PopStackFrame() StateFrame {
	if len(ss.frames) == 0 {
		panic("pop from empty state stack")
	}
	top := ss.frames[len(ss.frames)-1]
	ss.frames[len(ss.frames)-1] = StateFrame{}
	ss.frames = ss.frames[:len(ss.frames)-1]
	return top
}

// Top returns the innermost frame, or nil when the stack is empty.
func (ss *StateStack) Top() *StateFrame {
	if len(ss.frames) == 0 {
		return nil
	}
	return &ss.frames[len(ss.frames)-1]
}

// Len returns the number of active states.
func (ss *StateStack) Len() int {
	return len(ss.frames)
}

// Frames returns the frames bottom to top. The slice is a copy; the sets are not.
func (ss *StateStack) Frames() []StateFrame {
	return append([]StateFrame(nil), ss.frames...)
}

// HasNullTransitionOrAction reports whether the top state can make progress on the null event.
func (ss *StateStack) HasNullTransitionOrAction() bool {
	top := ss.Top()
	if top == nil {
		return false
	}
	return top.State.HasNullTransition || top.Actions.Contains(domain.NullEvent)
}

// FindAction returns the do-handler for e from the innermost state declaring one.
func (ss *StateStack) FindAction(e *domain.Event) (Fun, bool) {
	for i := len(ss.frames) - 1; i >= 0; i-- {
		if fun, ok := ss.frames[i].State.Dos[e]; ok {
			return fun, true
		}
	}
	return nil, false
}

// Clone returns a deep copy: frame order is kept and every frame's sets are duplicated.
// State descriptors are immutable and shared.
func (ss *StateStack) Clone() *StateStack {
	frames := make([]StateFrame, len(ss.frames))
	for i, f := range ss.frames {
		frames[i] = StateFrame{
			State:    f.State,
			Deferred: f.Deferred.Clone(),
			Actions:  f.Actions.Clone(),
		}
	}
	return &StateStack{frames: frames}
}
