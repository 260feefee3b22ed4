package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/observability"
	"github.com/aretw0/prt/pkg/ports"
	"github.com/aretw0/prt/pkg/strategy"
	"golang.org/x/sync/errgroup"
)

var errStop = errors.New("exploration stopped")

// ExploreConfig controls Explore.
type ExploreConfig struct {
	Iterations int
	// Workers is the number of concurrent runs. Zero or less means one.
	Workers int
	// Seed of the first iteration; iteration i uses Seed+i.
	Seed uint64
	// StopOnFailure cancels outstanding runs once one fails.
	StopOnFailure bool
	// Strategy builds the choice source of an iteration. Defaults to strategy.NewRandom.
	Strategy func(seed uint64) ports.ChoiceSource
	Payload  domain.Value
}

// Failure is a failing run found by Explore.
type Failure struct {
	Seed   uint64
	Result *Result
	Err    error
}

// Exploration summarizes the runs of Explore.
type Exploration struct {
	Runs     int
	Outcomes map[string]int
	// Failure is the failing run with the lowest seed, if any.
	Failure *Failure
}

// Explore executes independent runs with successive seeds.
func (d *Driver) Explore(ctx context.Context, cfg ExploreConfig) (*Exploration, error) {
	if cfg.Iterations <= 0 {
		return nil, fmt.Errorf("explore: iterations must be positive, got %d", cfg.Iterations)
	}
	workers := max(cfg.Workers, 1)
	newSource := cfg.Strategy
	if newSource == nil {
		newSource = func(seed uint64) ports.ChoiceSource { return strategy.NewRandom(seed) }
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	exp := &Exploration{Outcomes: make(map[string]int)}
	for i := 0; i < cfg.Iterations; i++ {
		if gctx.Err() != nil {
			break
		}
		seed := cfg.Seed + uint64(i)
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res, err := d.NewRun(newSource(seed)).Execute(gctx, cfg.Payload)

			mu.Lock()
			defer mu.Unlock()
			exp.Runs++
			exp.Outcomes[res.Outcome]++
			switch res.Outcome {
			case observability.OutcomeBug, observability.OutcomeLiveness:
				if exp.Failure == nil || seed < exp.Failure.Seed {
					exp.Failure = &Failure{Seed: seed, Result: res, Err: err}
				}
				if cfg.StopOnFailure {
					return errStop
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, errStop) {
		return exp, err
	}
	if err := ctx.Err(); err != nil {
		return exp, err
	}
	d.logger.Info("exploration finished", "runs", exp.Runs, "failed", exp.Failure != nil)
	return exp, nil
}

// Replay re-executes the run recorded in cp. The returned error is the
// failure the replayed run ended with, or a *strategy.ReplayError when the
// program no longer follows the recorded choices.
func (d *Driver) Replay(ctx context.Context, cp *domain.Checkpoint) (*Result, error) {
	if cp.Program != d.main {
		return nil, fmt.Errorf("replay %s: checkpoint is for %q, driver runs %q", cp.ID, cp.Program, d.main)
	}
	choices := strategy.NewReplay(cp.Choices)
	run := d.NewRun(choices)
	run.replay = true
	res, err := run.Execute(ctx, cp.Payload)
	if rerr := choices.Err(); rerr != nil {
		return res, fmt.Errorf("replay %s: %w", cp.ID, rerr)
	}
	return res, err
}

// ReplayCheckpoint loads a checkpoint saved by a failing run, replays it and
// records the replay's outcome on the checkpoint.
func (d *Driver) ReplayCheckpoint(ctx context.Context, id string) (*Result, error) {
	if d.checkpoints == nil {
		return nil, fmt.Errorf("replay %s: no checkpoint manager configured", id)
	}
	cp, err := d.checkpoints.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := d.Replay(ctx, cp)
	if res == nil {
		return nil, err
	}
	uerr := d.checkpoints.Update(context.WithoutCancel(ctx), id, func(cp *domain.Checkpoint) error {
		cp.Replays++
		cp.LastReplay = res.Outcome
		return nil
	})
	if uerr != nil {
		d.logger.Warn("failed to record replay on checkpoint", "checkpoint", id, "err", uerr)
	}
	return res, err
}
