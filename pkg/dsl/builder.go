package dsl

import (
	"fmt"

	"github.com/aretw0/prt/internal/runtime"
	"github.com/aretw0/prt/internal/validator"
	"github.com/aretw0/prt/pkg/domain"
)

// Builder manages the construction of one machine definition.
type Builder struct {
	name   string
	start  domain.StateID
	states map[domain.StateID]*StateBuilder
	order  []domain.StateID
}

// New creates a builder for a machine type called name.
func New(name string) *Builder {
	return &Builder{
		name:   name,
		states: make(map[domain.StateID]*StateBuilder),
	}
}

// Add creates a new state in the machine. The first state added is the start
// state unless another one calls Start.
// If the state already exists, it returns the existing builder.
func (b *Builder) Add(id domain.StateID) *StateBuilder {
	if sb, ok := b.states[id]; ok {
		return sb
	}
	sb := &StateBuilder{
		state: runtime.State{
			Name:        id,
			Transitions: make(map[*domain.Event]runtime.Transition),
			Dos:         make(map[*domain.Event]runtime.Fun),
		},
		builder: b,
	}
	b.states[id] = sb
	b.order = append(b.order, id)
	if b.start == "" {
		b.start = id
	}
	return sb
}

// Build compiles the states into a validated definition.
func (b *Builder) Build() (*runtime.Definition, error) {
	def := &runtime.Definition{
		Name:   b.name,
		Start:  b.start,
		States: make(map[domain.StateID]*runtime.State, len(b.states)),
	}
	for _, id := range b.order {
		sb := b.states[id]
		if sb.err != nil {
			return nil, fmt.Errorf("failed to build state %s: %w", id, sb.err)
		}
		def.States[id] = sb.Build()
	}

	if err := validator.ValidateDefinition(def); err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", b.name, err)
	}
	return def, nil
}

// MustBuild is Build for package-level definitions; it panics on error.
func (b *Builder) MustBuild() *runtime.Definition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}
