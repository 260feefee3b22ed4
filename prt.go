package prt

import (
	"github.com/aretw0/prt/internal/config"
	"github.com/aretw0/prt/internal/runtime"
	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/dsl"
	"github.com/aretw0/prt/pkg/registry"
	"github.com/aretw0/prt/pkg/schema"
)

// Core types, re-exported so that generated code only imports this package.
type (
	Definition  = runtime.Definition
	State       = runtime.State
	Transition  = runtime.Transition
	Machine     = runtime.Machine
	Fun         = runtime.Fun
	Body        = runtime.Body
	FunFrame    = runtime.FunFrame
	FunStack    = runtime.FunStack
	Application = runtime.Application
	Phase       = runtime.Phase
	Resolver    = runtime.Resolver
	// MachineOption configures machines created with NewMachine.
	MachineOption = runtime.Option

	Event        = domain.Event
	Value        = domain.Value
	MachineID    = domain.MachineID
	StateID      = domain.StateID
	Continuation = domain.Continuation
	Reason       = domain.Reason
	Temperature  = domain.Temperature

	// Program is the set of machine definitions, events and functions of one application.
	Program = registry.Registry
	// Config is the process configuration loaded by LoadConfig.
	Config = config.Config
)

const (
	PhaseRunning   = runtime.PhaseRunning
	PhaseIdle      = runtime.PhaseIdle
	PhaseSuspended = runtime.PhaseSuspended
	PhaseHalted    = runtime.PhaseHalted

	Warm = domain.Warm
	Cold = domain.Cold
	Hot  = domain.Hot

	// DefaultMaxInstances leaves an event unbounded.
	DefaultMaxInstances = domain.DefaultMaxInstances
)

// Version is the release of this module, overridden at link time by release builds.
var Version = "0.1.0-dev"

var (
	// Skip is the function that returns immediately.
	Skip = runtime.Skip
	// NullEvent and HaltEvent are the process-wide special events.
	NullEvent = domain.NullEvent
	HaltEvent = domain.HaltEvent
)

// NewFun builds a function from a closure.
func NewFun(name string, extraLocals int, body Body) Fun {
	return runtime.NewFun(name, extraLocals, body)
}

// NewEvent creates an event descriptor. A nil payload type means no payload.
func NewEvent(name string, payloadType schema.Type, maxInstances int, assume bool) (*Event, error) {
	return domain.NewEvent(name, payloadType, maxInstances, assume)
}

// MustEvent is like NewEvent but panics on invalid arguments.
func MustEvent(name string, payloadType schema.Type, maxInstances int, assume bool) *Event {
	return domain.MustEvent(name, payloadType, maxInstances, assume)
}

// Define starts a fluent definition of a machine type.
func Define(name string) *dsl.Builder {
	return dsl.New(name)
}

// NewProgram validates and registers defs.
func NewProgram(defs ...*Definition) (*Program, error) {
	p := registry.NewRegistry()
	if err := p.Register(defs...); err != nil {
		return nil, err
	}
	return p, nil
}

// NewMachine creates a standalone machine, for drivers written outside this module.
func NewMachine(id MachineID, def *Definition, opts ...MachineOption) *Machine {
	return runtime.NewMachine(id, def, opts...)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads a YAML or JSON configuration file over the defaults.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}
