// Package runtime is the execution core: event buffers, state and function stacks,
// and the machine trampoline that drives handlers from one suspension point to the next.
package runtime

import "github.com/aretw0/prt/pkg/domain"

// Application is the driver-owned view of the running program handed to every function.
type Application interface {
	// Lookup returns the machine with the given ID, if it exists.
	Lookup(id domain.MachineID) (*Machine, bool)
}

// Fun is a compiled handler or helper function.
//
// Execute runs the top frame of m's function stack (whose Fun is the receiver)
// from the frame's PC until it records a continuation through one of the
// FunStack.Did* methods or pushes a callee with FunStack.Call.
type Fun interface {
	Name() string
	CreateLocals(args ...domain.Value) []domain.Value
	Execute(app Application, m *Machine)
}

// Body is the code of a function built with NewFun. f is the frame being executed.
type Body func(app Application, m *Machine, f *FunFrame)

type funcFun struct {
	name   string
	locals int
	body   Body
}

// NewFun builds a Fun from a closure. CreateLocals copies the arguments
// followed by extra zero-valued locals.
func NewFun(name string, extraLocals int, body Body) Fun {
	return &funcFun{name: name, locals: extraLocals, body: body}
}

func (f *funcFun) Name() string { return f.name }

func (f *funcFun) CreateLocals(args ...domain.Value) []domain.Value {
	locals := make([]domain.Value, len(args), len(args)+f.locals)
	copy(locals, args)
	return append(locals, make([]domain.Value, f.locals)...)
}

func (f *funcFun) Execute(app Application, m *Machine) {
	f.body(app, m, m.funs.Top())
}

// Skip returns immediately. Used for goto transitions without a handler and for ignored events.
var Skip = NewFun("skip", 0, func(_ Application, m *Machine, f *FunFrame) {
	m.Funs().DidReturn(f.Locals())
})
