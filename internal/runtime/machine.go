package runtime

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/prt/internal/logging"
	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/set"
)

// Phase is where a machine stands between driver interactions.
type Phase int

const (
	// PhaseRunning: handler work is pending (fresh machines start here).
	PhaseRunning Phase = iota
	// PhaseIdle: waiting for an enabled event.
	PhaseIdle
	// PhaseSuspended: the top frame holds a Send, Receive, Nondet or NewMachine continuation.
	PhaseSuspended
	// PhaseHalted: the machine will never run again.
	PhaseHalted
)

var phaseNames = [...]string{"running", "idle", "suspended", "halted"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// ParsePhase is the inverse of Phase.String.
func ParsePhase(s string) (Phase, error) {
	for i, name := range phaseNames {
		if name == s {
			return Phase(i), nil
		}
	}
	return PhaseHalted, fmt.Errorf("unknown phase: %s", s)
}

type stepKind int

const (
	stepCall stepKind = iota
	stepPushState
	stepPopState
	stepHandle
)

var stepKindNames = [...]string{"call", "push", "pop", "handle"}

// step is one unit of pending handler work. Steps are plain data so that
// Clone and Record capture work a handler has not reached yet.
type step struct {
	kind  stepKind
	state domain.StateID
	fun   Fun
	exit  bool
	// popped marks a stepPopState requested by the handler: an empty stack afterwards halts.
	popped  bool
	event   *domain.Event
	payload domain.Value
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger used for debug traces of the machine.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// Machine is one running instance of a Definition. It owns its buffer and both stacks,
// is single-threaded and takes no locks: the driver serialises access.
type Machine struct {
	id      domain.MachineID
	def     *Definition
	buffer  *EventBuffer
	states  *StateStack
	funs    *FunStack
	receive set.Set[*domain.Event]
	event   *domain.Event
	payload domain.Value
	pending []step
	// inExit is set while an exit handler runs; exit handlers may not pop or raise.
	inExit bool
	phase  Phase
	logger *slog.Logger
}

// NewMachine creates a machine of type def. Call Start before stepping it.
func NewMachine(id domain.MachineID, def *Definition, opts ...Option) *Machine {
	m := &Machine{
		id:     id,
		def:    def,
		buffer: NewEventBuffer(),
		states: NewStateStack(),
		funs:   NewFunStack(),
		phase:  PhaseRunning,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("machine", string(id))
	return m
}

// Start enters the definition's start state. The entry handler runs on the next Step.
func (m *Machine) Start(payload domain.Value) {
	if m.states.Len() > 0 || len(m.pending) > 0 {
		panic(fmt.Sprintf("machine %s already started", m.id))
	}
	start := m.def.mustState(m.def.Start)
	m.plan(step{kind: stepPushState, state: start.Name})
	if start.Entry != nil {
		m.plan(step{kind: stepCall, fun: start.Entry, payload: payload})
	}
	m.payload = payload
	m.phase = PhaseRunning
}

// ID returns the machine's handle.
func (m *Machine) ID() domain.MachineID { return m.id }

// Type returns the name of the machine's definition.
func (m *Machine) Type() string { return m.def.Name }

func (m *Machine) Definition() *Definition { return m.def }

func (m *Machine) Phase() Phase { return m.phase }

func (m *Machine) Halted() bool { return m.phase == PhaseHalted }

func (m *Machine) Buffer() *EventBuffer { return m.buffer }

func (m *Machine) States() *StateStack { return m.states }

func (m *Machine) Funs() *FunStack { return m.funs }

// CurrentEvent is the event being handled: the last one dequeued, received, raised or null.
func (m *Machine) CurrentEvent() *domain.Event { return m.event }

func (m *Machine) CurrentPayload() domain.Value { return m.payload }

// ReceiveSet is the active receive filter. Empty unless suspended on Receive.
func (m *Machine) ReceiveSet() set.Set[*domain.Event] { return m.receive }

// Continuation returns the top frame's continuation, or the zero value when no function is active.
func (m *Machine) Continuation() domain.Continuation {
	if top := m.funs.Top(); top != nil {
		return top.cont
	}
	return domain.Continuation{}
}

// CurrentState returns the innermost active state, or "" when none.
func (m *Machine) CurrentState() domain.StateID {
	if top := m.states.Top(); top != nil {
		return top.State.Name
	}
	return ""
}

// Temperature returns the innermost active state's temperature. Halted machines are cold.
func (m *Machine) Temperature() domain.Temperature {
	top := m.states.Top()
	if top == nil || m.phase == PhaseHalted {
		return domain.Cold
	}
	return top.State.Temperature
}

func (m *Machine) accepts(e *domain.Event) bool {
	if m.receive.Size() > 0 {
		return m.receive.Contains(e)
	}
	top := m.states.Top()
	return top == nil || !top.Deferred.Contains(e)
}

// Enabled reports whether Step can make progress right now.
func (m *Machine) Enabled() bool {
	switch m.phase {
	case PhaseRunning:
		return true
	case PhaseIdle:
		return m.buffer.IsEnabled(m) || m.states.HasNullTransitionOrAction()
	case PhaseSuspended:
		if m.Continuation().Reason == domain.ReasonReceive {
			return m.buffer.IsEnabled(m)
		}
		return true
	default:
		return false
	}
}

// Step runs the machine from where it stands to its next driver-visible point:
// a suspension, going idle, or halting. The driver must have serviced a pending
// Send, Nondet or NewMachine continuation before calling Step again.
// Stepping a machine that is not Enabled is a contract violation and panics.
func (m *Machine) Step(app Application) (Phase, error) {
	switch m.phase {
	case PhaseHalted:
		return PhaseHalted, nil
	case PhaseSuspended:
		if m.Continuation().Reason == domain.ReasonReceive {
			if !m.buffer.DequeueEvent(m) {
				panic(fmt.Sprintf("machine %s resumed without a receivable event", m.id))
			}
			m.receive = nil
		}
		m.funs.resume()
	case PhaseIdle:
		if !m.buffer.DequeueEvent(m) {
			if !m.states.HasNullTransitionOrAction() {
				panic(fmt.Sprintf("machine %s stepped while not enabled", m.id))
			}
			m.event, m.payload = domain.NullEvent, nil
		}
		m.logger.Debug("event dequeued", "event", m.event.Name, "state", string(m.CurrentState()))
		m.phase = PhaseRunning
		if err := m.handle(m.event, m.payload); err != nil {
			return m.phase, err
		}
		if m.phase == PhaseHalted {
			return m.phase, nil
		}
	}
	m.phase = PhaseRunning
	return m.drain(app)
}

func (m *Machine) plan(steps ...step) {
	m.pending = append(m.pending, steps...)
}

func (m *Machine) planExit(s *State, popped bool) {
	if s.Exit != nil {
		m.plan(step{kind: stepCall, fun: s.Exit, exit: true})
	}
	m.plan(step{kind: stepPopState, popped: popped})
}

func (m *Machine) planEnter(target domain.StateID, payload domain.Value) {
	s := m.def.mustState(target)
	m.plan(step{kind: stepPushState, state: target})
	if s.Entry != nil {
		m.plan(step{kind: stepCall, fun: s.Entry, payload: payload})
	}
}

// handle plans the work for e in the innermost state. Events the top state neither
// handles nor inherits pop that state and are handled again beneath it.
func (m *Machine) handle(e *domain.Event, payload domain.Value) error {
	top := m.states.Top()
	if top == nil {
		return fmt.Errorf("machine %s: event %s delivered with no active state", m.id, e.Name)
	}

	if t, ok := top.State.FindTransition(e); ok {
		if t.IsPush() {
			m.logger.Debug("push transition", "event", e.Name, "from", string(top.State.Name), "to", string(t.Target))
		} else {
			m.logger.Debug("goto transition", "event", e.Name, "from", string(top.State.Name), "to", string(t.Target))
			m.planExit(top.State, false)
			m.plan(step{kind: stepCall, fun: t.Fun, payload: payload})
		}
		m.planEnter(t.Target, payload)
		return nil
	}

	if top.Actions.Contains(e) {
		fun, ok := m.states.FindAction(e)
		if !ok {
			panic(fmt.Sprintf("event %s in action set of %s without a do-handler", e.Name, top.State.Name))
		}
		m.plan(step{kind: stepCall, fun: fun, payload: payload})
		return nil
	}

	// Deferral only filters the mailbox. Raised events never return to it, so an
	// event reaching a state that defers it keeps unwinding.
	if m.states.Len() > 1 {
		m.planExit(top.State, false)
		m.plan(step{kind: stepHandle, event: e, payload: payload})
		return nil
	}

	if e == domain.HaltEvent {
		m.halt()
		return nil
	}

	return &domain.UnhandledEventError{Machine: m.id, State: top.State.Name, Event: e.Name}
}

func (m *Machine) halt() {
	m.logger.Debug("machine halted", "state", string(m.CurrentState()))
	m.funs.clear()
	m.pending = nil
	m.receive = nil
	m.inExit = false
	m.phase = PhaseHalted
}

// drain runs pending steps and the function trampoline until a suspension, idle or halt.
func (m *Machine) drain(app Application) (Phase, error) {
	for {
		if m.funs.Len() > 0 {
			cont := m.run(app)
			switch cont.Reason {
			case domain.ReasonReturn:
				m.funs.clear()
				m.inExit = false
			case domain.ReasonPop:
				if m.inExit {
					panic(fmt.Sprintf("machine %s: pop in exit handler", m.id))
				}
				m.funs.clear()
				m.pending = nil
				m.planExit(m.states.Top().State, true)
			case domain.ReasonRaise:
				if m.inExit {
					panic(fmt.Sprintf("machine %s: raise in exit handler", m.id))
				}
				m.funs.clear()
				m.pending = nil
				m.event, m.payload = cont.Event, cont.Payload
				m.logger.Debug("event raised", "event", cont.Event.Name)
				if err := m.handle(cont.Event, cont.Payload); err != nil {
					return m.phase, err
				}
			default:
				if cont.Reason == domain.ReasonReceive {
					m.receive = cont.Receive.Clone()
				}
				m.phase = PhaseSuspended
				return m.phase, nil
			}
		}

		if m.phase == PhaseHalted {
			return m.phase, nil
		}
		if len(m.pending) == 0 {
			m.phase = PhaseIdle
			return m.phase, nil
		}

		s := m.pending[0]
		m.pending = m.pending[1:]
		switch s.kind {
		case stepCall:
			m.inExit = s.exit
			if s.exit {
				m.funs.PushFun(s.fun, s.fun.CreateLocals())
			} else {
				m.funs.PushFun(s.fun, s.fun.CreateLocals(s.payload))
			}
		case stepPushState:
			m.states.PushStackFrame(m.def.mustState(s.state))
		case stepPopState:
			m.states.PopStackFrame()
			if s.popped && m.states.Len() == 0 {
				m.halt()
			}
		case stepHandle:
			if err := m.handle(s.event, s.payload); err != nil {
				return m.phase, err
			}
		}
	}
}

// run is the trampoline: it executes ready frames and unwinds returns into
// callers until the bottom frame returns or something stops the handler.
func (m *Machine) run(app Application) domain.Continuation {
	for {
		top := m.funs.Top()
		if top.ready {
			top.fun.Execute(app, m)
			if top.ready && m.funs.Top() == top {
				panic(fmt.Sprintf("function %s returned without recording a continuation", top.fun.Name()))
			}
			continue
		}

		cont := top.cont
		if cont.Reason != domain.ReasonReturn || m.funs.Len() == 1 {
			return cont
		}
		m.funs.PopFun()
		caller := m.funs.Top()
		caller.returned = cont.RetVal
		caller.ready = true
	}
}

// Clone returns a fully independent copy of the machine's control state.
// Descriptors and the logger are shared; everything mutable is duplicated.
func (m *Machine) Clone() *Machine {
	pending := make([]step, len(m.pending))
	for i, s := range m.pending {
		s.payload = domain.CloneValue(s.payload)
		pending[i] = s
	}
	var receive set.Set[*domain.Event]
	if m.receive != nil {
		receive = m.receive.Clone()
	}
	return &Machine{
		id:      m.id,
		def:     m.def,
		buffer:  m.buffer.Clone(),
		states:  m.states.Clone(),
		funs:    m.funs.Clone(),
		receive: receive,
		event:   m.event,
		payload: domain.CloneValue(m.payload),
		pending: pending,
		inExit:  m.inExit,
		phase:   m.phase,
		logger:  m.logger,
	}
}
