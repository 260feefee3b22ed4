// Package registry holds the compiled artifacts of one program: machine
// definitions, events and functions, resolvable by name.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/prt/internal/runtime"
	"github.com/aretw0/prt/internal/validator"
	"github.com/aretw0/prt/pkg/domain"
)

// ErrConflict is returned when a name is already bound to a different descriptor.
var ErrConflict = errors.New("name already registered")

// Registry maps names to definitions, events and functions. It is safe for
// concurrent use and implements runtime.Resolver.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]*runtime.Definition
	events map[string]*domain.Event
	funs   map[string]runtime.Fun
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:   make(map[string]*runtime.Definition),
		events: make(map[string]*domain.Event),
		funs:   make(map[string]runtime.Fun),
	}
}

// Register validates each definition and adds it together with every event
// and function it references. Registering the same descriptor twice is a no-op.
// Nothing is added when an error is returned.
func (r *Registry) Register(defs ...*runtime.Definition) error {
	for _, def := range defs {
		if err := validator.ValidateDefinition(def); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	defsAdd := make(map[string]*runtime.Definition)
	eventsAdd := make(map[string]*domain.Event)
	funsAdd := make(map[string]runtime.Fun)
	for _, def := range defs {
		if err := bind(r.defs, defsAdd, def.Name, def, "definition"); err != nil {
			return err
		}
		for _, e := range def.Events() {
			if err := bind(r.events, eventsAdd, e.Name, e, "event"); err != nil {
				return err
			}
		}
		for _, f := range def.Funs() {
			if err := bind(r.funs, funsAdd, f.Name(), f, "function"); err != nil {
				return err
			}
		}
	}

	for k, v := range defsAdd {
		r.defs[k] = v
	}
	for k, v := range eventsAdd {
		r.events[k] = v
	}
	for k, v := range funsAdd {
		r.funs[k] = v
	}
	return nil
}

// RegisterEvent adds an event that no definition references, such as one
// only sent from outside the program.
func (r *Registry) RegisterEvent(e *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	add := make(map[string]*domain.Event)
	if err := bind(r.events, add, e.Name, e, "event"); err != nil {
		return err
	}
	for k, v := range add {
		r.events[k] = v
	}
	return nil
}

func bind[T comparable](existing, add map[string]T, name string, v T, kind string) error {
	if prev, ok := existing[name]; ok && prev != v {
		return fmt.Errorf("%s %s: %w", kind, name, ErrConflict)
	}
	if prev, ok := add[name]; ok && prev != v {
		return fmt.Errorf("%s %s: %w", kind, name, ErrConflict)
	}
	add[name] = v
	return nil
}

// Definition looks up a machine type.
func (r *Registry) Definition(name string) (*runtime.Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

// Event looks up an event. The null and halt events always resolve.
func (r *Registry) Event(name string) (*domain.Event, bool) {
	switch name {
	case domain.NullEvent.Name:
		return domain.NullEvent, true
	case domain.HaltEvent.Name:
		return domain.HaltEvent, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[name]
	return e, ok
}

// Fun looks up a function.
func (r *Registry) Fun(name string) (runtime.Fun, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.funs[name]
	return f, ok
}

// Definitions returns the registered machine type names in sorted order.
func (r *Registry) Definitions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Events returns the registered events in name order.
func (r *Registry) Events() []*domain.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	events := make([]*domain.Event, 0, len(r.events))
	for _, e := range r.events {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Name < events[j].Name })
	return events
}

// Restore rebuilds a machine from a record using the registered descriptors.
func (r *Registry) Restore(rec domain.MachineRecord, opts ...runtime.Option) (*runtime.Machine, error) {
	return runtime.Restore(rec, r, opts...)
}
