// Package strategy provides ports.ChoiceSource implementations: seeded random
// exploration, round robin scheduling and replay of a recorded choice trace.
package strategy

import (
	"fmt"
	"math/rand/v2"

	"github.com/aretw0/prt/pkg/domain"
)

// Random draws every decision from a PCG generator. Equal seeds give equal runs.
type Random struct {
	seed uint64
	rng  *rand.Rand
}

// NewRandom creates a random strategy for seed.
func NewRandom(seed uint64) *Random {
	return &Random{seed: seed, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Seed returns the seed the strategy was created with.
func (r *Random) Seed() uint64 { return r.seed }

func (r *Random) Choose(n int) int {
	if n <= 1 {
		return 0
	}
	return r.rng.IntN(n)
}

func (r *Random) Bool() bool {
	return r.rng.IntN(2) == 1
}

// RoundRobin cycles through the enabled machines and alternates booleans.
type RoundRobin struct {
	next int
	flip bool
}

func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

func (r *RoundRobin) Choose(n int) int {
	if n <= 0 {
		return 0
	}
	i := r.next % n
	r.next = i + 1
	return i
}

func (r *RoundRobin) Bool() bool {
	r.flip = !r.flip
	return r.flip
}

// ReplayError reports where a replayed trace diverged from the run.
type ReplayError struct {
	Index  int
	Reason string
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("replay diverged at choice %d: %s", e.Index, e.Reason)
}

// Replay hands back a recorded choice trace in order. Once the trace is
// exhausted or a recorded choice does not fit, it answers 0/false and Err
// reports the first divergence.
type Replay struct {
	choices []domain.Choice
	pos     int
	err     error
}

// NewReplay creates a replay strategy over choices.
func NewReplay(choices []domain.Choice) *Replay {
	return &Replay{choices: choices}
}

func (r *Replay) next(kind domain.ChoiceKind) (domain.Choice, bool) {
	if r.err != nil {
		return domain.Choice{}, false
	}
	if r.pos >= len(r.choices) {
		r.err = &ReplayError{Index: r.pos, Reason: "trace exhausted"}
		return domain.Choice{}, false
	}
	c := r.choices[r.pos]
	if c.Kind != kind {
		r.err = &ReplayError{Index: r.pos, Reason: fmt.Sprintf("want %s choice, recorded %s", kind, c.Kind)}
		return domain.Choice{}, false
	}
	r.pos++
	return c, true
}

func (r *Replay) Choose(n int) int {
	c, ok := r.next(domain.ChoiceSchedule)
	if !ok {
		return 0
	}
	if c.Value < 0 || c.Value >= n {
		r.err = &ReplayError{Index: r.pos - 1, Reason: fmt.Sprintf("recorded index %d with %d enabled machines", c.Value, n)}
		return 0
	}
	return c.Value
}

func (r *Replay) Bool() bool {
	c, ok := r.next(domain.ChoiceBool)
	return ok && c.Value != 0
}

// Remaining returns how many recorded choices have not been consumed.
func (r *Replay) Remaining() int {
	return len(r.choices) - r.pos
}

// Err returns the first divergence, or nil.
func (r *Replay) Err() error {
	return r.err
}
