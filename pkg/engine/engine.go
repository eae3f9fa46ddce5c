// Package engine answers strategy queries for spots, solving each
// canonical spot at most once and keeping the result in a store.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/notation"
	"github.com/behrlich/spot-solver/pkg/query"
	"github.com/behrlich/spot-solver/pkg/solver"
	"github.com/behrlich/spot-solver/pkg/spot"
	"github.com/behrlich/spot-solver/pkg/store"
)

// Settings chooses the trainer configuration for a solve starting on a
// street. config.Config implements it.
type Settings interface {
	Solver(street notation.Street) solver.Config
}

// SettingsFunc adapts a function to Settings
type SettingsFunc func(notation.Street) solver.Config

func (f SettingsFunc) Solver(street notation.Street) solver.Config { return f(street) }

// Engine is safe for concurrent use
type Engine struct {
	store    store.Store
	ranges   RangeProvider
	settings Settings

	group   singleflight.Group
	mu      sync.Mutex
	flights map[string]*flight
	solves  atomic.Int64

	equityOnce sync.Once
	equity     *solver.PreflopEquity
}

// flight is the context of one shared solve. It outlives any single caller
// and is cancelled when the last caller waiting on it gives up.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// New returns an engine backed by st
func New(st store.Store, ranges RangeProvider, settings Settings) *Engine {
	return &Engine{store: st, ranges: ranges, settings: settings, flights: make(map[string]*flight)}
}

// Solves returns how many solves the engine has run
func (e *Engine) Solves() int64 {
	return e.solves.Load()
}

// resolve canonicalizes sp and its ranges and names the solution
func (e *Engine) resolve(sp spot.Spot) (spot.Spot, cards.SuitMap, [2][]cards.Combo, string, error) {
	if err := sp.Validate(); err != nil {
		return spot.Spot{}, cards.SuitMap{}, [2][]cards.Combo{}, "", err
	}
	canon, sm := sp.Canonical()
	ranges, err := e.ranges.Ranges(sp)
	if err != nil {
		return spot.Spot{}, sm, ranges, "", errors.Wrapf(err, "spot %s", canon.Key())
	}
	ranges = sp.CanonicalRanges(ranges)
	return canon, sm, ranges, canon.SolutionKey(ranges), nil
}

// Key returns the solution key SolveOrLoad would use for sp. It covers the
// canonical spot and both ranges.
func (e *Engine) Key(sp spot.Spot) (string, error) {
	_, _, _, key, err := e.resolve(sp)
	return key, err
}

// SolveOrLoad returns the solution of sp's canonical form played with the
// provider's ranges, solving and saving it on a miss. The suit map carries
// hands and cards of sp onto the solution's board.
//
// Concurrent calls for one solution share a single solve that runs until
// the last of them gives up, so one caller's cancellation does not fail
// the others. The caller that ends a solve this way gets the partial
// solution with its context error; it is not saved.
func (e *Engine) SolveOrLoad(ctx context.Context, sp spot.Spot) (*solver.Solution, cards.SuitMap, error) {
	canon, sm, ranges, key, err := e.resolve(sp)
	if err != nil {
		return nil, sm, err
	}
	if ctx.Err() != nil {
		// Nobody else should wait on a solve started by a caller who left
		sol, err := e.solveOrLoad(ctx, canon, ranges, key)
		return sol, sm, err
	}

	e.mu.Lock()
	f := e.flights[key]
	if f == nil {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		e.flights[key] = f
	}
	f.waiters++
	ch := e.group.DoChan(key, func() (interface{}, error) {
		defer e.land(key, f)
		return e.solveOrLoad(f.ctx, canon, ranges, key)
	})
	e.mu.Unlock()

	select {
	case res := <-ch:
		e.leave(key, f)
		if res.Shared {
			glog.V(2).Infof("spot %s: shared result", key)
		}
		sol, _ := res.Val.(*solver.Solution)
		return sol, sm, res.Err
	case <-ctx.Done():
	}

	if !e.leave(key, f) {
		glog.V(1).Infof("spot %s: caller left, solve continues for others", key)
		return nil, sm, errors.Wrapf(ctx.Err(), "spot %s", key)
	}
	res := <-ch
	sol, _ := res.Val.(*solver.Solution)
	return sol, sm, res.Err
}

// leave drops a waiter. If that was the last waiter of a flight still in
// the air, the flight is cancelled and forgotten so later callers start a
// fresh solve, and leave reports true.
func (e *Engine) leave(key string, f *flight) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	f.waiters--
	// A landed flight is already cancelled
	if f.waiters > 0 || f.ctx.Err() != nil {
		return false
	}
	delete(e.flights, key)
	e.group.Forget(key)
	f.cancel()
	return true
}

// land retires the flight once its solve returned
func (e *Engine) land(key string, f *flight) {
	e.mu.Lock()
	if e.flights[key] == f {
		delete(e.flights, key)
	}
	e.mu.Unlock()
	f.cancel()
}

func (e *Engine) solveOrLoad(ctx context.Context, canon spot.Spot, ranges [2][]cards.Combo, key string) (*solver.Solution, error) {
	sol, err := e.store.Load(ctx, key)
	if err == nil {
		glog.V(1).Infof("spot %s: loaded", key)
		return sol, nil
	}
	if !errors.Is(err, store.ErrSpotNotFound) {
		return nil, err
	}

	game := solver.Game{
		Key:    key,
		Board:  canon.Board,
		Pot:    canon.Pot,
		Stack:  canon.Stack,
		Ranges: ranges,
	}
	cfg := e.settings.Solver(canon.Street())
	glog.Infof("spot %s: solving %d iterations", key, cfg.Iterations)

	e.solves.Add(1)
	start := time.Now()
	sol, err = solver.Solve(ctx, game, cfg)
	if err != nil {
		return sol, err
	}
	if err := e.store.Save(ctx, key, sol); err != nil {
		return sol, errors.Wrapf(err, "spot %s solved but not saved", key)
	}
	glog.Infof("spot %s: solved and saved in %s", key, time.Since(start).Round(time.Millisecond))
	return sol, nil
}

// Request is one strategy query in the caller's suits
type Request struct {
	Spot spot.Spot
	Path []string // edge labels or card labels

	// Hand is optional; Runout supplies dealt cards the path omits
	Hand   *cards.Combo
	Runout []cards.Card
}

// Answer is a query result. Cards inside Strategy are in the solution's
// canonical suits; Suits maps the request onto them.
type Answer struct {
	Key      string
	Suits    cards.SuitMap
	Strategy *query.Strategy
	Row      []float32 // Hand's distribution, nil without a hand
}

// Query solves or loads the spot and navigates to the requested node
func (e *Engine) Query(ctx context.Context, req Request) (*Answer, error) {
	sol, sm, err := e.SolveOrLoad(ctx, req.Spot)
	if err != nil {
		return nil, err
	}
	path := make([]string, len(req.Path))
	for i, l := range req.Path {
		path[i] = l
		if c, err := cards.ParseCard(l); err == nil {
			path[i] = sm.Card(c).String()
		}
	}

	ans := &Answer{Key: sol.Key, Suits: sm}
	if req.Hand == nil {
		ans.Strategy, err = query.Lookup(sol, path)
		if err != nil {
			return nil, err
		}
		return ans, nil
	}
	ans.Strategy, ans.Row, err = query.LookupHand(sol, path, sm.Combo(*req.Hand), sm.Cards(req.Runout))
	if err != nil {
		return nil, err
	}
	return ans, nil
}

// PushFold solves the heads-up push/fold game at stack big blinds. The
// preflop equity table is built on first use and shared by later calls.
func (e *Engine) PushFold(ctx context.Context, cfg solver.PushFoldConfig) (*solver.PushFoldResult, error) {
	e.equityOnce.Do(func() {
		e.equity = solver.NewPreflopEquity(cfg.Samples, cfg.Seed, cfg.Workers)
	})
	return solver.SolvePushFoldWith(ctx, e.equity, cfg)
}
