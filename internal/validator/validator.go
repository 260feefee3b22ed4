package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/prt/internal/runtime"
	"github.com/aretw0/prt/pkg/domain"
)

// ErrInvalidDefinition matches every *DefinitionError.
var ErrInvalidDefinition = errors.New("invalid machine definition")

// DefinitionError lists every problem found in one machine definition.
type DefinitionError struct {
	Definition string
	Problems   []string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("definition %s: found %d errors:\n- %s", e.Definition, len(e.Problems), strings.Join(e.Problems, "\n- "))
}

func (e *DefinitionError) Is(target error) bool {
	return target == ErrInvalidDefinition
}

// ValidateDefinition checks that def is well formed and that every state is
// reachable from the start state.
func ValidateDefinition(def *runtime.Definition) error {
	if def == nil {
		return &DefinitionError{Definition: "<nil>", Problems: []string{"definition is nil"}}
	}

	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if def.Name == "" {
		report("definition has no name")
	}
	if _, ok := def.States[def.Start]; !ok {
		report("start state '%s' not found", def.Start)
	}

	funs := make(map[string]runtime.Fun)
	checkFun := func(where string, f runtime.Fun) {
		if f == nil {
			return
		}
		if prev, ok := funs[f.Name()]; ok && prev != f {
			report("%s: function name '%s' is used by two different functions", where, f.Name())
			return
		}
		funs[f.Name()] = f
	}

	for _, id := range def.StateIDs() {
		s := def.States[id]
		if s == nil {
			report("state '%s' is nil", id)
			continue
		}
		if s.Name != id {
			report("state registered as '%s' is named '%s'", id, s.Name)
		}
		checkFun(string(id)+" entry", s.Entry)
		checkFun(string(id)+" exit", s.Exit)

		_, hasNull := s.Transitions[domain.NullEvent]
		if hasNull != s.HasNullTransition {
			report("state '%s': HasNullTransition is %t but a null transition is declared: %t", id, s.HasNullTransition, hasNull)
		}
		if s.Deferred.Contains(domain.NullEvent) {
			report("state '%s' defers the null event", id)
		}

		for e, t := range s.Transitions {
			if e == nil {
				report("state '%s' has a transition on a nil event", id)
				continue
			}
			if _, ok := def.States[t.Target]; !ok {
				report("state '%s': transition on %s targets missing state '%s'", id, e.Name, t.Target)
			}
			if s.Deferred.Contains(e) {
				report("state '%s' both defers and handles %s", id, e.Name)
			}
			if _, ok := s.Dos[e]; ok {
				report("state '%s' has a transition and a do-handler for %s", id, e.Name)
			}
			checkFun(string(id)+" transition", t.Fun)
		}
		for e, f := range s.Dos {
			if e == nil {
				report("state '%s' has a do-handler on a nil event", id)
				continue
			}
			if f == nil {
				report("state '%s': do-handler for %s is nil", id, e.Name)
			}
			if s.Deferred.Contains(e) {
				report("state '%s' both defers and handles %s", id, e.Name)
			}
			checkFun(string(id)+" do", f)
		}
	}

	if len(problems) == 0 {
		for _, id := range unreachable(def) {
			report("state '%s' is unreachable from '%s'", id, def.Start)
		}
	}

	if len(problems) > 0 {
		return &DefinitionError{Definition: def.Name, Problems: problems}
	}
	return nil
}

// unreachable crawls the transition graph from the start state.
func unreachable(def *runtime.Definition) []domain.StateID {
	visited := make(map[domain.StateID]bool)
	queue := []domain.StateID{def.Start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		for _, t := range def.States[current].Transitions {
			if !visited[t.Target] {
				queue = append(queue, t.Target)
			}
		}
	}

	var missing []domain.StateID
	for _, id := range def.StateIDs() {
		if !visited[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
