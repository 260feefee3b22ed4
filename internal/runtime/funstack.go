package runtime

import (
	"fmt"

	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/set"
)

// FunFrame is one function activation: the function, its locals, where to resume
// and the continuation recorded at its last suspension.
type FunFrame struct {
	fun      Fun
	locals   []domain.Value
	pc       int
	cont     domain.Continuation
	returned domain.Value
	ready    bool
}

// Fun returns the function this frame activates.
func (f *FunFrame) Fun() Fun { return f.fun }

// Locals returns the frame's locals. Functions read and write them in place.
func (f *FunFrame) Locals() []domain.Value { return f.locals }

// PC is the resume location recorded at the last suspension. 0 on first execution.
func (f *FunFrame) PC() int { return f.pc }

// Continuation returns a copy of the frame's continuation.
// After a resume it still holds the driver-supplied Nondet and Created values.
func (f *FunFrame) Continuation() domain.Continuation { return f.cont }

// Returned is the value returned by the last callee pushed with FunStack.Call.
func (f *FunFrame) Returned() domain.Value { return f.returned }

// Ready reports whether the trampoline will execute this frame next.
func (f *FunFrame) Ready() bool { return f.ready }

func (f *FunFrame) clone() *FunFrame {
	return &FunFrame{
		fun:      f.fun,
		locals:   domain.CloneValues(f.locals),
		pc:       f.pc,
		cont:     f.cont.Clone(),
		returned: domain.CloneValue(f.returned),
		ready:    f.ready,
	}
}

// FunStack is the explicit call stack of a machine. Nothing that must survive
// a snapshot lives on the host stack.
type FunStack struct {
	frames []*FunFrame
}

// NewFunStack creates an empty stack.
func NewFunStack() *FunStack {
	return &FunStack{}
}

// PushFun pushes a fresh activation of fun, ready to execute from PC 0.
func (fs *FunStack) PushFun(fun Fun, locals []domain.Value) *FunFrame {
	frame := &FunFrame{fun: fun, locals: locals, ready: true}
	fs.frames = append(fs.frames, frame)
	return frame
}

// PopFun removes and returns the top frame. Panics on an empty stack.
func (fs *FunStack) PopFun() *FunFrame {
	if len(fs.frames) == 0 {
		panic("pop from empty function stack")
	}
	top := fs.frames[len(fs.frames)-1]
	fs.frames[len(fs.frames)-1] = nil
	fs.frames = fs.frames[:len(fs.frames)-1]
	return top
}

// Top returns the top frame, or nil when the stack is empty.
func (fs *FunStack) Top() *FunFrame {
	if len(fs.frames) == 0 {
		return nil
	}
	return fs.frames[len(fs.frames)-1]
}

// Len returns the number of frames.
func (fs *FunStack) Len() int {
	return len(fs.frames)
}

func (fs *FunStack) clear() {
	clear(fs.frames)
	fs.frames = fs.frames[:0]
}

func (fs *FunStack) mustTop() *FunFrame {
	top := fs.Top()
	if top == nil {
		panic("continuation recorded on empty function stack")
	}
	return top
}

// record rebuilds the top frame's continuation for reason, keeping only Nondet.
func (fs *FunStack) record(reason domain.Reason) *FunFrame {
	top := fs.mustTop()
	top.cont.Reset(reason)
	top.ready = false
	return top
}

func (fs *FunStack) suspend(reason domain.Reason, ret int, locals []domain.Value) *FunFrame {
	top := fs.record(reason)
	top.pc = ret
	top.locals = locals
	top.cont.ReturnTo = ret
	top.cont.RetLocals = locals
	return top
}

// DidReturn completes the top function without a value.
func (fs *FunStack) DidReturn(locals []domain.Value) {
	top := fs.record(domain.ReasonReturn)
	top.cont.RetLocals = locals
}

// DidReturnVal completes the top function with val.
func (fs *FunStack) DidReturnVal(val domain.Value, locals []domain.Value) {
	top := fs.record(domain.ReasonReturn)
	top.cont.RetVal = val
	top.cont.RetLocals = locals
}

// DidPop requests that the current state be exited.
func (fs *FunStack) DidPop() {
	fs.record(domain.ReasonPop)
}

// DidRaise requests that e be handled immediately, bypassing the buffer.
func (fs *FunStack) DidRaise(e *domain.Event, payload domain.Value) {
	top := fs.record(domain.ReasonRaise)
	top.cont.Event = e
	top.cont.Payload = payload
}

// DidSend suspends until the driver has enqueued e into target.
func (fs *FunStack) DidSend(ret int, locals []domain.Value, target domain.MachineID, e *domain.Event, payload domain.Value) {
	top := fs.suspend(domain.ReasonSend, ret, locals)
	top.cont.Target = target
	top.cont.Event = e
	top.cont.Payload = payload
}

// DidReceive suspends until one of events can be dequeued.
func (fs *FunStack) DidReceive(ret int, locals []domain.Value, events ...*domain.Event) {
	if len(events) == 0 {
		panic("receive with an empty event set")
	}
	top := fs.suspend(domain.ReasonReceive, ret, locals)
	top.cont.Receive = set.New(events...)
}

// DidNondet suspends until the driver supplies a boolean with SupplyNondet.
func (fs *FunStack) DidNondet(ret int, locals []domain.Value) {
	fs.suspend(domain.ReasonNondet, ret, locals)
}

// DidNewMachine suspends until the driver has created a machine of machineType
// and supplied its handle with SupplyMachine.
func (fs *FunStack) DidNewMachine(ret int, locals []domain.Value, machineType string, payload domain.Value) {
	top := fs.suspend(domain.ReasonNewMachine, ret, locals)
	top.cont.MachineType = machineType
	top.cont.Payload = payload
}

// Call records the caller's resume point and pushes callee. When the callee
// returns, the caller resumes at ret with the value available through Returned.
func (fs *FunStack) Call(ret int, locals []domain.Value, callee Fun, args ...domain.Value) {
	caller := fs.mustTop()
	caller.pc = ret
	caller.locals = locals
	caller.ready = false
	fs.PushFun(callee, callee.CreateLocals(args...))
}

// SupplyNondet hands the chosen boolean to a Nondet continuation.
func (fs *FunStack) SupplyNondet(choice bool) {
	top := fs.mustTop()
	if top.cont.Reason != domain.ReasonNondet {
		panic(fmt.Sprintf("supply nondet to a %s continuation", top.cont.Reason))
	}
	top.cont.Nondet = choice
}

// SupplyMachine hands the created machine's handle to a NewMachine continuation.
func (fs *FunStack) SupplyMachine(id domain.MachineID) {
	top := fs.mustTop()
	if top.cont.Reason != domain.ReasonNewMachine {
		panic(fmt.Sprintf("supply machine to a %s continuation", top.cont.Reason))
	}
	top.cont.Created = id
}

// resume marks the suspended top frame ready without touching its continuation.
func (fs *FunStack) resume() {
	top := fs.mustTop()
	if top.ready || !top.cont.Reason.Suspends() {
		panic(fmt.Sprintf("resume of a frame with continuation %s", top.cont.Reason))
	}
	top.ready = true
}

// Clone returns a deep copy: locals, continuations and returned values are duplicated.
func (fs *FunStack) Clone() *FunStack {
	frames := make([]*FunFrame, len(fs.frames))
	for i, f := range fs.frames {
		frames[i] = f.clone()
	}
	return &FunStack{frames: frames}
}
