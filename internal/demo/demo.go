// Package demo holds the sample programs used by the examples and tests.
package demo

import (
	"fmt"
	"sort"

	"github.com/aretw0/prt/internal/runtime"
	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/dsl"
	"github.com/aretw0/prt/pkg/registry"
	"github.com/aretw0/prt/pkg/schema"
)

// Demo is a runnable program and the machine type its runs start with.
type Demo struct {
	Name        string
	Description string
	Main        string
	Program     *registry.Registry
}

var catalog = map[string]func() (*Demo, error){
	"pingpong": PingPong,
	"elevator": Elevator,
	"coin":     Coin,
}

// Names lists the available demos in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load builds the demo called name.
func Load(name string) (*Demo, error) {
	build, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("unknown demo %q (available: %v)", name, Names())
	}
	return build()
}

func newDemo(name, description, main string, defs ...*runtime.Definition) (*Demo, error) {
	reg := registry.NewRegistry()
	if err := reg.Register(defs...); err != nil {
		return nil, fmt.Errorf("demo %s: %w", name, err)
	}
	return &Demo{Name: name, Description: description, Main: main, Program: reg}, nil
}

// PingPong is a client that creates a server, pings it with its own handle and
// waits, hot, for the answer.
func PingPong() (*Demo, error) {
	ping := domain.MustEvent("ping", schema.Machine(), 1, false)
	pong := domain.MustEvent("pong", nil, 1, false)

	start := runtime.NewFun("client_start", 1, func(_ runtime.Application, m *runtime.Machine, f *runtime.FunFrame) {
		l := f.Locals()
		switch f.PC() {
		case 0:
			m.Funs().DidNewMachine(1, l, "Server", nil)
		case 1:
			l[1] = f.Continuation().Created
			m.Funs().DidSend(2, l, l[1].(domain.MachineID), ping, m.ID())
		case 2:
			m.Funs().DidReturn(l)
		}
	})
	client := dsl.New("Client")
	client.Add("Waiting").Hot().Entry(start).Goto(pong, "Done")
	client.Add("Done").Cold()

	reply := runtime.NewFun("server_reply", 0, func(_ runtime.Application, m *runtime.Machine, f *runtime.FunFrame) {
		l := f.Locals()
		switch f.PC() {
		case 0:
			m.Funs().DidSend(1, l, l[0].(domain.MachineID), pong, nil)
		case 1:
			m.Funs().DidReturn(l)
		}
	})
	server := dsl.New("Server")
	server.Add("Serving").Do(ping, reply)

	clientDef, err := client.Build()
	if err != nil {
		return nil, err
	}
	serverDef, err := server.Build()
	if err != nil {
		return nil, err
	}
	return newDemo("pingpong", "a client and a server exchanging one message", "Client", clientDef, serverDef)
}

// Elevator drives a door controller through opening, closing and an
// emergency stop. The stop is a push transition, so the controller returns
// to Closed when it is resumed.
func Elevator() (*Demo, error) {
	open := domain.MustEvent("open", nil, domain.DefaultMaxInstances, false)
	closeDoor := domain.MustEvent("close", nil, domain.DefaultMaxInstances, false)
	opened := domain.MustEvent("opened", nil, domain.DefaultMaxInstances, false)
	stop := domain.MustEvent("stop", nil, 1, true)
	resume := domain.MustEvent("resume", nil, 1, true)

	script := []*domain.Event{open, closeDoor, stop, resume}
	operate := runtime.NewFun("operate", 2, func(_ runtime.Application, m *runtime.Machine, f *runtime.FunFrame) {
		l := f.Locals()
		switch pc := f.PC(); {
		case pc == 0:
			m.Funs().DidNewMachine(1, l, "Door", nil)
		case pc == 1:
			l[1] = f.Continuation().Created
			l[2] = 0
			m.Funs().DidSend(2, l, l[1].(domain.MachineID), script[0], nil)
		case pc == 2:
			next := l[2].(int) + 1
			if next == len(script) {
				m.Funs().DidReturn(l)
				return
			}
			l[2] = next
			m.Funs().DidSend(2, l, l[1].(domain.MachineID), script[next], nil)
		}
	})
	building := dsl.New("Building")
	building.Add("Operating").Entry(operate)

	announce := runtime.NewFun("announce_opened", 0, func(_ runtime.Application, m *runtime.Machine, f *runtime.FunFrame) {
		m.Funs().DidRaise(opened, nil)
	})
	leave := runtime.NewFun("leave_stop", 0, func(_ runtime.Application, m *runtime.Machine, f *runtime.FunFrame) {
		m.Funs().DidPop()
	})
	door := dsl.New("Door")
	door.Add("Closed").Goto(open, "Opening").Push(stop, "Stopped")
	door.Add("Opening").Hot().Entry(announce).Defer(closeDoor).Goto(opened, "Opened")
	door.Add("Opened").Cold().Goto(closeDoor, "Closed")
	door.Add("Stopped").Hot().Do(resume, leave)

	buildingDef, err := building.Build()
	if err != nil {
		return nil, err
	}
	doorDef, err := door.Build()
	if err != nil {
		return nil, err
	}
	return newDemo("elevator", "a door controller with deferred events and an emergency stop", "Building", buildingDef, doorDef)
}

// Coin flips twice and raises an event nobody handles on two heads, a bug
// that exploration finds within a few seeds.
func Coin() (*Demo, error) {
	heads := domain.MustEvent("two_heads", nil, domain.DefaultMaxInstances, false)
	flip := runtime.NewFun("flip", 0, func(_ runtime.Application, m *runtime.Machine, f *runtime.FunFrame) {
		l := f.Locals()
		switch f.PC() {
		case 0:
			m.Funs().DidNondet(1, l)
		case 1:
			if !f.Continuation().Nondet {
				m.Funs().DidReturn(l)
				return
			}
			m.Funs().DidNondet(2, l)
		case 2:
			if f.Continuation().Nondet {
				m.Funs().DidRaise(heads, nil)
				return
			}
			m.Funs().DidReturn(l)
		}
	})
	coin := dsl.New("Coin")
	coin.Add("Flipping").Entry(flip)

	def, err := coin.Build()
	if err != nil {
		return nil, err
	}
	return newDemo("coin", "two coin flips that fail on two heads", "Coin", def)
}
