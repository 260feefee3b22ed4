/*
Package prt is the execution core for compiled hierarchical state machines that communicate by asynchronous events.

A program is a set of machine types. Each machine owns an event buffer, a stack of active states and a stack of function activations. Handlers are compiled into resumable functions: instead of blocking, a function records a continuation (send, receive, nondet, new machine, return, pop or raise) and returns control. A driver schedules machines one step at a time and services those continuations, which makes every run reproducible from the sequence of choices it took.

# Concept

Machine code never blocks and never sees a goroutine. The driver decides which machine runs next and how each nondeterministic choice is resolved, so the same program can be executed for real, explored randomly for bugs, or replayed exactly from a checkpoint.

# Key Features

  - Hierarchical states: push transitions, inherited do-handlers, deferred events and null transitions.
  - Bounded mailboxes: per-event instance bounds either prune the run (assume) or fail it.
  - Systematic testing: seeded random exploration, liveness checks on hot states, checkpoints and replay.
  - Introspection: machine records, Mermaid graphs and lifecycle notifications over HTTP.

# Usage

Define machine types with the fluent builder, register them in a Program and hand it to an Engine.

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/prt"
	)

	func main() {
		tick := prt.MustEvent("tick", nil, prt.DefaultMaxInstances, false)

		clock := prt.Define("Clock")
		clock.Add("Stopped").Goto(tick, "Running")
		clock.Add("Running").Hot().Goto(tick, "Stopped")

		program, err := prt.NewProgram(clock.MustBuild())
		if err != nil {
			log.Fatal(err)
		}

		eng, err := prt.New(program, "Clock")
		if err != nil {
			log.Fatal(err)
		}
		defer eng.Close()

		res, err := eng.Run(context.Background(), nil)
		if err != nil {
			log.Fatal(err)
		}
		log.Println("outcome:", res.Outcome, "steps:", res.Steps)
	}
*/
package prt
