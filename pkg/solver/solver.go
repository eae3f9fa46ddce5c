// Package solver trains heads-up postflop spots with CFR+.
package solver

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/tree"
)

// Config controls a training run
type Config struct {
	Iterations      int
	Workers         int
	Seed            uint64
	CheckpointEvery int // 0 measures exploitability only at the end
	NumBuckets      int
	Sampling        SamplingMode

	// ExploitabilityRunouts is how many turn and river pairs the flop best
	// response averages over
	ExploitabilityRunouts int
}

// DefaultConfig returns settings suitable for a river solve
func DefaultConfig() Config {
	return Config{
		Iterations:            1000,
		Workers:               runtime.GOMAXPROCS(0),
		Seed:                  1,
		CheckpointEvery:       250,
		NumBuckets:            50,
		ExploitabilityRunouts: 8,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers < 1 {
		c.Workers = d.Workers
	}
	if c.NumBuckets < 1 {
		c.NumBuckets = d.NumBuckets
	}
	if c.ExploitabilityRunouts < 1 {
		c.ExploitabilityRunouts = d.ExploitabilityRunouts
	}
	if c.Iterations < 0 {
		c.Iterations = 0
	}
	return c
}

// Game is the subgame to solve. Player 0 is out of position.
type Game struct {
	Key    string
	Board  []cards.Card
	Pot    float64
	Stack  float64
	Ranges [2][]cards.Combo // nil means every combo

	// Sizing overrides the default abstraction, one entry per street
	Sizing    []tree.StreetSizing
	Geometric bool
}

// DivergenceWarning records a checkpoint where exploitability went up.
// It is logged and kept on the solution; training carries on.
type DivergenceWarning struct {
	Iteration int
	Previous  float64
	Current   float64
}

func (w DivergenceWarning) Error() string {
	return fmt.Sprintf("exploitability rose from %.4f to %.4f at iteration %d", w.Previous, w.Current, w.Iteration)
}

// Trainer is one solve in progress
type Trainer interface {
	// Iterate runs training iteration iter; the parity of iter picks the
	// traversing player. An iteration cut short by ctx is discarded.
	Iterate(ctx context.Context, iter int) error

	// Exploitability measures the current average strategies in big blinds
	Exploitability() float64

	// Solution extracts the average strategies trained so far
	Solution() *Solution
}

// NewTrainer picks the trainer for the board: exact ranges on the river
// and turn, bucketed templates on the flop
func NewTrainer(g Game, cfg Config) (Trainer, error) {
	cfg = cfg.withDefaults()
	switch len(g.Board) {
	case 4, 5:
		return NewRangeSolver(g, cfg)
	case 3:
		return NewFlopSolver(g, cfg)
	default:
		return nil, errors.Errorf("cannot solve a board of %d cards", len(g.Board))
	}
}

// Solve builds a trainer for g and trains it
func Solve(ctx context.Context, g Game, cfg Config) (*Solution, error) {
	t, err := NewTrainer(g, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "solve %s", g.Key)
	}
	return Train(ctx, t, cfg)
}

// Train runs cfg.Iterations iterations, measuring exploitability every
// CheckpointEvery iterations and at the end. A cancelled context stops
// training between iterations; the partial solution is returned with the
// context's error.
func Train(ctx context.Context, t Trainer, cfg Config) (*Solution, error) {
	cfg = cfg.withDefaults()
	start := time.Now()
	var warnings []DivergenceWarning
	prev := -1.0

	finish := func(iters int) *Solution {
		sol := t.Solution()
		sol.Iterations = iters
		sol.Warnings = warnings
		return sol
	}

	interrupted := func(it int, err error) (*Solution, error) {
		sol := finish(it)
		sol.Exploitability = prev
		glog.Warningf("solve %s stopped after %d of %d iterations: %v", sol.Key, it, cfg.Iterations, err)
		return sol, errors.Wrapf(err, "solve %s interrupted", sol.Key)
	}

	for it := 0; it < cfg.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return interrupted(it, err)
		}
		if err := t.Iterate(ctx, it); err != nil {
			if ctx.Err() != nil {
				return interrupted(it, ctx.Err())
			}
			return nil, errors.Wrapf(err, "training failed at iteration %d", it)
		}

		if cfg.CheckpointEvery > 0 && (it+1)%cfg.CheckpointEvery == 0 && it+1 < cfg.Iterations {
			e := t.Exploitability()
			glog.V(1).Infof("iteration %d: exploitability %.4fbb (%s)", it+1, e, time.Since(start))
			if prev >= 0 && e > prev {
				w := DivergenceWarning{Iteration: it + 1, Previous: prev, Current: e}
				glog.Warningf("divergence: %v", w)
				warnings = append(warnings, w)
			}
			prev = e
		}
	}

	sol := finish(cfg.Iterations)
	sol.Exploitability = t.Exploitability()
	if prev >= 0 && sol.Exploitability > prev {
		w := DivergenceWarning{Iteration: cfg.Iterations, Previous: prev, Current: sol.Exploitability}
		glog.Warningf("divergence: %v", w)
		sol.Warnings = append(sol.Warnings, w)
	}
	glog.Infof("solved %s: %d iterations in %s, exploitability %.4fbb",
		sol.Key, cfg.Iterations, time.Since(start), sol.Exploitability)
	return sol, nil
}
