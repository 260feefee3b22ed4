package runtime

import (
	"fmt"
	"sort"

	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/set"
)

func eventNames(s set.Set[*domain.Event]) []string {
	if s.Size() == 0 {
		return nil
	}
	names := make([]string, 0, len(s))
	for e := range s.Items() {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

func funName(f Fun) string {
	if f == nil {
		return ""
	}
	return f.Name()
}

func eventName(e *domain.Event) string {
	if e == nil {
		return ""
	}
	return e.Name
}

func recordContinuation(c domain.Continuation) domain.ContinuationRecord {
	return domain.ContinuationRecord{
		Reason:      c.Reason.String(),
		ReturnTo:    c.ReturnTo,
		RetVal:      domain.CloneValue(c.RetVal),
		RetLocals:   domain.CloneValues(c.RetLocals),
		Target:      c.Target,
		Event:       eventName(c.Event),
		Payload:     domain.CloneValue(c.Payload),
		Receive:     eventNames(c.Receive),
		MachineType: c.MachineType,
		Created:     c.Created,
		Nondet:      c.Nondet,
	}
}

// Record returns a name-keyed snapshot of the machine suitable for persistence.
func (m *Machine) Record() domain.MachineRecord {
	rec := domain.MachineRecord{
		ID:      m.id,
		Type:    m.def.Name,
		Phase:   m.phase.String(),
		Event:   eventName(m.event),
		Payload: domain.CloneValue(m.payload),
		Receive: eventNames(m.receive),
	}
	for _, node := range m.buffer.nodes {
		rec.Buffer = append(rec.Buffer, domain.EventRecord{Event: node.Event.Name, Payload: domain.CloneValue(node.Payload)})
	}
	for _, f := range m.states.frames {
		rec.States = append(rec.States, domain.FrameRecord{
			State:       f.State.Name,
			Temperature: f.State.Temperature,
			Deferred:    eventNames(f.Deferred),
			Actions:     eventNames(f.Actions),
		})
	}
	for _, f := range m.funs.frames {
		rec.Funs = append(rec.Funs, domain.FunFrameRecord{
			Fun:          f.fun.Name(),
			PC:           f.pc,
			Locals:       domain.CloneValues(f.locals),
			Returned:     domain.CloneValue(f.returned),
			Continuation: recordContinuation(f.cont),
			Ready:        f.ready,
		})
	}
	for _, s := range m.pending {
		rec.Pending = append(rec.Pending, domain.StepRecord{
			Kind:    stepKindNames[s.kind],
			State:   s.state,
			Fun:     funName(s.fun),
			Exit:    s.exit,
			Popped:  s.popped,
			Event:   eventName(s.event),
			Payload: domain.CloneValue(s.payload),
		})
	}
	rec.InExit = m.inExit
	return rec
}

type restorer struct {
	r   Resolver
	err error
}

func (rs *restorer) event(name string) *domain.Event {
	if name == "" || rs.err != nil {
		return nil
	}
	switch name {
	case domain.NullEvent.Name:
		return domain.NullEvent
	case domain.HaltEvent.Name:
		return domain.HaltEvent
	}
	e, ok := rs.r.Event(name)
	if !ok {
		rs.err = fmt.Errorf("unknown event %s", name)
	}
	return e
}

func (rs *restorer) events(names []string) set.Set[*domain.Event] {
	s := set.New[*domain.Event]()
	for _, n := range names {
		if e := rs.event(n); e != nil {
			s.Add(e)
		}
	}
	return s
}

func (rs *restorer) fun(name string) Fun {
	if name == "" || rs.err != nil {
		return nil
	}
	if name == Skip.Name() {
		return Skip
	}
	f, ok := rs.r.Fun(name)
	if !ok {
		rs.err = fmt.Errorf("unknown function %s", name)
	}
	return f
}

// Restore rebuilds a machine from a record. Descriptors are resolved by name;
// frame sets are taken from the record rather than re-derived.
func Restore(rec domain.MachineRecord, r Resolver, opts ...Option) (*Machine, error) {
	def, ok := r.Definition(rec.Type)
	if !ok {
		return nil, fmt.Errorf("restore %s: unknown machine type %s", rec.ID, rec.Type)
	}
	phase, err := ParsePhase(rec.Phase)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", rec.ID, err)
	}

	rs := &restorer{r: r}
	m := NewMachine(rec.ID, def, opts...)
	m.phase = phase
	m.event = rs.event(rec.Event)
	m.payload = domain.CloneValue(rec.Payload)
	m.inExit = rec.InExit
	if len(rec.Receive) > 0 {
		m.receive = rs.events(rec.Receive)
	}

	for _, n := range rec.Buffer {
		m.buffer.nodes = append(m.buffer.nodes, EventNode{Event: rs.event(n.Event), Payload: domain.CloneValue(n.Payload)})
	}

	for _, f := range rec.States {
		s, ok := def.State(f.State)
		if !ok {
			return nil, fmt.Errorf("restore %s: unknown state %s", rec.ID, f.State)
		}
		m.states.frames = append(m.states.frames, StateFrame{
			State:    s,
			Deferred: rs.events(f.Deferred),
			Actions:  rs.events(f.Actions),
		})
	}

	for _, f := range rec.Funs {
		reason, err := domain.ParseReason(f.Continuation.Reason)
		if err != nil {
			return nil, fmt.Errorf("restore %s: %w", rec.ID, err)
		}
		c := f.Continuation
		frame := &FunFrame{
			fun:      rs.fun(f.Fun),
			locals:   domain.CloneValues(f.Locals),
			pc:       f.PC,
			returned: domain.CloneValue(f.Returned),
			ready:    f.Ready,
			cont: domain.Continuation{
				Reason:      reason,
				ReturnTo:    c.ReturnTo,
				RetVal:      domain.CloneValue(c.RetVal),
				RetLocals:   domain.CloneValues(c.RetLocals),
				Target:      c.Target,
				Event:       rs.event(c.Event),
				Payload:     domain.CloneValue(c.Payload),
				MachineType: c.MachineType,
				Created:     c.Created,
				Nondet:      c.Nondet,
			},
		}
		if len(c.Receive) > 0 {
			frame.cont.Receive = rs.events(c.Receive)
		}
		m.funs.frames = append(m.funs.frames, frame)
	}

	for _, s := range rec.Pending {
		kind := -1
		for i, name := range stepKindNames {
			if name == s.Kind {
				kind = i
			}
		}
		if kind < 0 {
			return nil, fmt.Errorf("restore %s: unknown step kind %s", rec.ID, s.Kind)
		}
		m.pending = append(m.pending, step{
			kind:    stepKind(kind),
			state:   s.State,
			fun:     rs.fun(s.Fun),
			exit:    s.Exit,
			popped:  s.Popped,
			event:   rs.event(s.Event),
			payload: domain.CloneValue(s.Payload),
		})
	}

	if rs.err != nil {
		return nil, fmt.Errorf("restore %s: %w", rec.ID, rs.err)
	}
	return m, nil
}
