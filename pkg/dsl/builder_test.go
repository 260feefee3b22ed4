package dsl

import (
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/prt/internal/runtime"
	"github.com/aretw0/prt/internal/validator"
	"github.com/aretw0/prt/pkg/domain"
)

func TestBuilder_SimpleMachine(t *testing.T) {
	ping := domain.MustEvent("ping", nil, 1, false)
	pong := domain.MustEvent("pong", nil, 1, false)
	nudge := domain.MustEvent("nudge", nil, domain.DefaultMaxInstances, false)
	greet := runtime.NewFun("greet", 0, func(_ runtime.Application, m *runtime.Machine, f *runtime.FunFrame) {
		m.Funs().DidReturn(f.Locals())
	})

	// 1. Build the machine using the DSL
	b := New("Pinger")
	b.Add("Idle").
		Entry(greet).
		Defer(pong).
		Ignore(nudge).
		Goto(ping, "Waiting")
	b.Add("Waiting").
		Hot().
		Push(ping, "Nested").
		Goto(pong, "Done")
	b.Add("Nested")
	b.Add("Done").
		Cold()

	def, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	// 2. Verify the compiled states
	if def.Start != "Idle" {
		t.Errorf("Expected start 'Idle', got '%s'", def.Start)
	}
	idle, ok := def.State("Idle")
	if !ok {
		t.Fatal("state 'Idle' missing")
	}
	if idle.Entry != greet {
		t.Error("Expected greet as the entry of Idle")
	}
	if !idle.Deferred.Contains(pong) {
		t.Error("Expected pong to be deferred in Idle")
	}
	if idle.Dos[nudge] != runtime.Skip {
		t.Error("Expected ignored nudge to map to Skip")
	}
	tr, ok := idle.FindTransition(ping)
	if !ok || tr.Target != "Waiting" || tr.Fun != runtime.Skip {
		t.Errorf("Unexpected transition on ping: %+v", tr)
	}

	waiting, _ := def.State("Waiting")
	if waiting.Temperature != domain.Hot {
		t.Errorf("Expected Waiting to be hot, got %s", waiting.Temperature)
	}
	if _, ok := waiting.FindPushTransition(ping); !ok {
		t.Error("Expected a push transition on ping in Waiting")
	}
	done, _ := def.State("Done")
	if done.Temperature != domain.Cold {
		t.Errorf("Expected Done to be cold, got %s", done.Temperature)
	}
}

func TestBuilder_StartAndAddAreIdempotent(t *testing.T) {
	e := domain.MustEvent("e", nil, domain.DefaultMaxInstances, false)
	b := New("M")
	b.Add("A")
	b.Add("B").Start().Goto(e, "A")
	if b.Add("B") != b.Add("B") {
		t.Error("Add should return the existing builder")
	}

	def := b.MustBuild()
	if def.Start != "B" {
		t.Errorf("Expected start 'B', got '%s'", def.Start)
	}
}

func TestBuilder_NullTransitionFlag(t *testing.T) {
	b := New("Null")
	b.Add("A").Goto(domain.NullEvent, "B")
	b.Add("B")

	def, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	a, _ := def.State("A")
	if !a.HasNullTransition {
		t.Error("Expected HasNullTransition to be set")
	}
	bState, _ := def.State("B")
	if bState.HasNullTransition {
		t.Error("Expected HasNullTransition to be unset on B")
	}
}

func TestBuilder_BuildCopiesState(t *testing.T) {
	e := domain.MustEvent("e", nil, domain.DefaultMaxInstances, false)
	b := New("Copy")
	sb := b.Add("A").Defer(e)
	first := b.MustBuild()

	sb.Ignore(domain.MustEvent("late", nil, domain.DefaultMaxInstances, false))
	a, _ := first.State("A")
	if len(a.Dos) != 0 {
		t.Error("Changes after Build must not leak into the built definition")
	}
}

func TestBuilder_Errors(t *testing.T) {
	b := New("Broken")
	b.Add("A").Goto(nil, "B")
	b.Add("B")
	if _, err := b.Build(); err == nil || !strings.Contains(err.Error(), "nil event") {
		t.Errorf("Expected nil event error, got %v", err)
	}

	b = New("Dangling")
	b.Add("A").Goto(domain.MustEvent("e", nil, 1, false), "ghost")
	_, err := b.Build()
	if !errors.Is(err, validator.ErrInvalidDefinition) {
		t.Errorf("Expected ErrInvalidDefinition, got %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustBuild should panic on an invalid definition")
		}
	}()
	b.MustBuild()
}
