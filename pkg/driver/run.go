package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/prt/internal/runtime"
	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/observability"
	"github.com/aretw0/prt/pkg/ports"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrAlreadyExecuted is returned when Execute is called twice on the same Run.
var ErrAlreadyExecuted = errors.New("run already executed")

// machineNamespace seeds the name-based UUIDs of machine handles so that
// replaying a run hands out the same IDs.
var machineNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/aretw0/prt/machine"))

func machineID(machineType string, ordinal int) domain.MachineID {
	return domain.MachineID(uuid.NewSHA1(machineNamespace, []byte(machineType+"/"+strconv.Itoa(ordinal))).String())
}

// Result summarizes a finished run.
type Result struct {
	RunID   string
	Outcome string
	Steps   int
	Choices []domain.Choice
	// Checkpoint is the ID of the checkpoint saved for a failing run, if any.
	Checkpoint string
}

// Run is one execution of a program. It implements runtime.Application for
// the machines it owns and ports.Inspector for concurrent observers.
type Run struct {
	id      string
	d       *Driver
	choices ports.ChoiceSource
	logger  *slog.Logger
	payload domain.Value
	// replay runs never write checkpoints of their own.
	replay bool

	mu       sync.RWMutex
	machines []*runtime.Machine
	byID     map[domain.MachineID]*runtime.Machine
	ordinals map[string]int
	trace    []domain.Choice
	steps    int
	executed bool
}

var (
	_ runtime.Application = (*Run)(nil)
	_ ports.Inspector     = (*Run)(nil)
)

// NewRun prepares a run whose scheduling and nondeterministic decisions come from choices.
func (d *Driver) NewRun(choices ports.ChoiceSource) *Run {
	id := uuid.NewString()
	return &Run{
		id:       id,
		d:        d,
		choices:  choices,
		logger:   d.logger.With("run", id),
		byID:     make(map[domain.MachineID]*runtime.Machine),
		ordinals: make(map[string]int),
	}
}

// ID returns the run's identifier.
func (r *Run) ID() string { return r.id }

// Lookup implements runtime.Application. It is only called from handlers,
// which run on the run's own goroutine.
func (r *Run) Lookup(id domain.MachineID) (*runtime.Machine, bool) {
	m, ok := r.byID[id]
	return m, ok
}

// Machines returns a record of every machine in creation order.
func (r *Run) Machines() []domain.MachineRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	recs := make([]domain.MachineRecord, len(r.machines))
	for i, m := range r.machines {
		recs[i] = m.Record()
	}
	return recs
}

// Machine returns the record of one machine.
func (r *Run) Machine(id domain.MachineID) (domain.MachineRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok {
		return domain.MachineRecord{}, fmt.Errorf("machine %s: %w", id, domain.ErrMachineNotFound)
	}
	return m.Record(), nil
}

// Choices returns a copy of the decisions taken so far.
func (r *Run) Choices() []domain.Choice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Choice(nil), r.trace...)
}

// Steps returns the number of steps scheduled so far.
func (r *Run) Steps() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.steps
}

// Execute creates the main machine with payload and schedules until no machine
// is enabled, the step bound is reached, ctx ends, or a machine fails.
// The returned error is the failure the run ended with; Result is never nil.
func (r *Run) Execute(ctx context.Context, payload domain.Value) (*Result, error) {
	r.mu.Lock()
	if r.executed {
		r.mu.Unlock()
		return &Result{RunID: r.id}, ErrAlreadyExecuted
	}
	r.executed = true
	r.mu.Unlock()
	r.payload = domain.CloneValue(payload)

	if r.d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.d.timeout)
		defer cancel()
	}
	ctx, span := r.d.tracer.Start(ctx, "prt.run", trace.WithAttributes(
		attribute.String("prt.run_id", r.id),
		attribute.String("prt.main", r.d.main),
	))
	defer span.End()

	bounded, err := r.loop(ctx, payload)

	res := &Result{RunID: r.id, Steps: r.Steps(), Choices: r.Choices(), Outcome: Outcome(err)}
	if err == nil && bounded {
		res.Outcome = observability.OutcomeBound
	}
	span.SetAttributes(attribute.String("prt.outcome", res.Outcome), attribute.Int("prt.steps", res.Steps))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if r.d.metrics != nil {
		r.d.metrics.ObserveRun(res.Outcome, res.Steps)
	}

	switch res.Outcome {
	case observability.OutcomeBug, observability.OutcomeLiveness:
		r.logger.Warn("run failed", "outcome", res.Outcome, "steps", res.Steps, "err", err)
		if r.d.checkpoints != nil && !r.replay {
			id, cerr := r.checkpoint(context.WithoutCancel(ctx), err)
			if cerr != nil {
				r.logger.Error("failed to save checkpoint", "err", cerr)
			} else {
				res.Checkpoint = id
			}
		}
	default:
		r.logger.Debug("run finished", "outcome", res.Outcome, "steps", res.Steps)
	}
	return res, err
}

func (r *Run) loop(ctx context.Context, payload domain.Value) (bool, error) {
	if _, err := r.create(ctx, r.d.main, payload); err != nil {
		return false, err
	}
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if r.steps >= r.d.maxSteps {
			r.logger.Debug("step bound reached", "max_steps", r.d.maxSteps)
			return true, nil
		}

		enabled := r.enabled()
		if len(enabled) == 0 {
			return false, r.quiescent()
		}
		i := r.choices.Choose(len(enabled))
		if i < 0 || i >= len(enabled) {
			return false, fmt.Errorf("choice source picked %d of %d enabled machines", i, len(enabled))
		}
		r.record(domain.ChoiceSchedule, i)
		if err := r.step(ctx, enabled[i]); err != nil {
			return false, err
		}
	}
}

func (r *Run) enabled() []*runtime.Machine {
	var enabled []*runtime.Machine
	for _, m := range r.machines {
		if m.Enabled() {
			enabled = append(enabled, m)
		}
	}
	return enabled
}

func (r *Run) record(kind domain.ChoiceKind, value int) {
	r.mu.Lock()
	r.trace = append(r.trace, domain.Choice{Kind: kind, Value: value})
	r.mu.Unlock()
}

func (r *Run) base(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, RunID: r.id}
}

func (r *Run) step(ctx context.Context, m *runtime.Machine) (err error) {
	ctx, span := r.d.tracer.Start(ctx, "prt.step", trace.WithAttributes(
		attribute.String("prt.machine", string(m.ID())),
		attribute.String("prt.machine_type", m.Type()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	phase, n, err := r.advance(m)
	if err != nil {
		return err
	}
	cont := m.Continuation()
	span.SetAttributes(attribute.String("prt.phase", phase.String()), attribute.String("prt.reason", cont.Reason.String()))
	if h := r.d.hooks.OnStep; h != nil {
		h(ctx, &domain.StepEvent{
			EventBase:   r.base(domain.EventStep),
			Machine:     m.ID(),
			MachineType: m.Type(),
			State:       m.CurrentState(),
			Reason:      cont.Reason,
			Step:        n,
		})
	}

	switch phase {
	case runtime.PhaseHalted:
		if h := r.d.hooks.OnMachineHalted; h != nil {
			h(ctx, &domain.MachineEvent{EventBase: r.base(domain.EventMachineHalted), Machine: m.ID(), MachineType: m.Type()})
		}
	case runtime.PhaseSuspended:
		return r.service(ctx, m, cont)
	}
	return nil
}

// advance steps m under the write lock and turns a panic into a *PanicError.
func (r *Run) advance(m *runtime.Machine) (phase runtime.Phase, n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Machine: m.ID(), Value: v}
		}
	}()
	r.steps++
	n = r.steps
	phase, err = m.Step(r)
	return phase, n, err
}

// service answers the continuation a machine suspended on. Receive needs nothing:
// the machine is resumed once a matching event is buffered.
func (r *Run) service(ctx context.Context, m *runtime.Machine, cont domain.Continuation) error {
	switch cont.Reason {
	case domain.ReasonSend:
		return r.send(ctx, m, cont)
	case domain.ReasonNondet:
		v := r.choices.Bool()
		choice := 0
		if v {
			choice = 1
		}
		r.record(domain.ChoiceBool, choice)
		r.mu.Lock()
		m.Funs().SupplyNondet(v)
		r.mu.Unlock()
	case domain.ReasonNewMachine:
		id, err := r.create(ctx, cont.MachineType, cont.Payload)
		if err != nil {
			return fmt.Errorf("machine %s: %w", m.ID(), err)
		}
		r.mu.Lock()
		m.Funs().SupplyMachine(id)
		r.mu.Unlock()
	}
	return nil
}

func (r *Run) send(ctx context.Context, from *runtime.Machine, cont domain.Continuation) error {
	e := cont.Event
	if err := e.ValidatePayload(cont.Payload); err != nil {
		return fmt.Errorf("machine %s: %w", from.ID(), err)
	}
	target, ok := r.byID[cont.Target]
	if !ok {
		return fmt.Errorf("machine %s: send %s to %s: %w", from.ID(), e.Name, cont.Target, domain.ErrMachineNotFound)
	}

	ev := &domain.SendEvent{EventBase: r.base(domain.EventSend), From: from.ID(), To: target.ID(), Event: e.Name}
	if target.Halted() {
		ev.Dropped = true
		r.logger.Debug("send to halted machine dropped", "machine", string(target.ID()), "event", e.Name)
	} else {
		r.mu.Lock()
		err := target.Buffer().EnqueueEvent(e, domain.CloneValue(cont.Payload))
		r.mu.Unlock()
		if err != nil {
			return fmt.Errorf("machine %s: %w", from.ID(), err)
		}
	}
	if h := r.d.hooks.OnSend; h != nil {
		h(ctx, ev)
	}
	return nil
}

func (r *Run) create(ctx context.Context, machineType string, payload domain.Value) (domain.MachineID, error) {
	def, ok := r.d.program.Definition(machineType)
	if !ok {
		return "", fmt.Errorf("create machine: unknown machine type %q", machineType)
	}

	r.mu.Lock()
	n := r.ordinals[machineType]
	r.ordinals[machineType] = n + 1
	id := machineID(machineType, n)
	m := runtime.NewMachine(id, def, runtime.WithLogger(r.logger))
	m.Start(domain.CloneValue(payload))
	r.machines = append(r.machines, m)
	r.byID[id] = m
	r.mu.Unlock()

	r.logger.Debug("machine created", "machine", string(id), "type", machineType)
	if h := r.d.hooks.OnMachineCreated; h != nil {
		h(ctx, &domain.MachineEvent{EventBase: r.base(domain.EventMachineCreated), Machine: id, MachineType: machineType})
	}
	return id, nil
}

func (r *Run) quiescent() error {
	if !r.d.liveness {
		return nil
	}
	var hot []domain.MachineID
	for _, m := range r.machines {
		if m.Temperature() == domain.Hot {
			hot = append(hot, m.ID())
		}
	}
	if len(hot) > 0 {
		return &LivenessError{Machines: hot}
	}
	return nil
}

func (r *Run) checkpoint(ctx context.Context, cause error) (string, error) {
	cp := &domain.Checkpoint{
		ID:        uuid.NewString(),
		RunID:     r.id,
		Program:   r.d.main,
		Payload:   r.payload,
		Steps:     r.Steps(),
		Choices:   r.Choices(),
		Machines:  r.Machines(),
		CreatedAt: time.Now().UTC(),
	}
	if s, ok := r.choices.(interface{ Seed() uint64 }); ok {
		cp.Seed = s.Seed()
	}
	if cause != nil {
		cp.Error = cause.Error()
	}
	if err := r.d.checkpoints.Save(ctx, cp); err != nil {
		return "", err
	}
	r.logger.Info("checkpoint saved", "checkpoint", cp.ID)
	return cp.ID, nil
}
