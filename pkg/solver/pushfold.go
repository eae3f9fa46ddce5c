package solver

import (
	"context"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/eval"
	"github.com/behrlich/spot-solver/pkg/notation"
)

// NumHandClasses is the number of strategically distinct starting hands
const NumHandClasses = 169

// Push/fold decision slots
const (
	sbSlot = iota
	bbSlot
)

// PreflopEquity holds all-in equities between the 169 hand classes,
// estimated by Monte Carlo, with the number of card-compatible combo
// pairs behind each matchup
type PreflopEquity struct {
	Classes []notation.HandClass
	equity  []float64
	pairs   []float64
}

// NewPreflopEquity samples each matchup samples times. Row i uses its own
// RNG seeded from seed and i so the table does not depend on workers.
func NewPreflopEquity(samples int, seed uint64, workers int) *PreflopEquity {
	if samples < 1 {
		samples = 1
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	classes := notation.AllHandClasses()
	n := len(classes)
	t := &PreflopEquity{
		Classes: classes,
		equity:  make([]float64, n*n),
		pairs:   make([]float64, n*n),
	}
	combos := make([][]cards.Combo, n)
	for i, c := range classes {
		combos[i] = c.Combos()
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i := range classes {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(seed, uint64(i)))
			var valid [][2]cards.Combo
			for j := range classes {
				valid = valid[:0]
				for _, a := range combos[i] {
					for _, b := range combos[j] {
						if !a.Overlaps(b) {
							valid = append(valid, [2]cards.Combo{a, b})
						}
					}
				}
				t.pairs[i*n+j] = float64(len(valid))
				if len(valid) == 0 {
					t.equity[i*n+j] = 0.5
					continue
				}
				t.equity[i*n+j] = sampleEquity(valid, samples, rng)
			}
			return nil
		})
	}
	// g only bounds the workers; rows never fail
	_ = g.Wait()
	return t
}

// sampleEquity deals random boards to random combo pairs of a matchup
func sampleEquity(valid [][2]cards.Combo, samples int, rng *rand.Rand) float64 {
	var won float64
	for s := 0; s < samples; s++ {
		pair := valid[rng.IntN(len(valid))]
		dead := pair[0].Mask() | pair[1].Mask()
		var h1, h2 [7]cards.Card
		h1[0], h1[1] = pair[0].Hi, pair[0].Lo
		h2[0], h2[1] = pair[1].Hi, pair[1].Lo
		for k := 2; k < 7; {
			c := cards.Card(rng.IntN(cards.NumCards))
			if dead.Has(c) {
				continue
			}
			dead = dead.Add(c)
			h1[k], h2[k] = c, c
			k++
		}
		s1, s2 := eval.Evaluate7(&h1), eval.Evaluate7(&h2)
		switch {
		case s1 > s2:
			won++
		case s1 == s2:
			won += 0.5
		}
	}
	return won / float64(samples)
}

// Equity is class i's all-in equity against class j
func (t *PreflopEquity) Equity(i, j int) float64 {
	return t.equity[i*len(t.Classes)+j]
}

// Pairs is the number of card-compatible combo pairs of classes i and j
func (t *PreflopEquity) Pairs(i, j int) float64 {
	return t.pairs[i*len(t.Classes)+j]
}

// PushFoldConfig describes a heads-up push/fold game. Both players start
// with Stack big blinds; the small blind posts 0.5 and the big blind 1.
type PushFoldConfig struct {
	Stack      float64
	Rake       float64 // fraction of the pot taken at showdown
	Iterations int
	Samples    int // Monte Carlo boards per matchup
	Seed       uint64
	Workers    int
}

// DefaultPushFoldConfig returns a 10bb game
func DefaultPushFoldConfig() PushFoldConfig {
	return PushFoldConfig{
		Stack:      10,
		Iterations: 10000,
		Samples:    2000,
		Seed:       1,
		Workers:    runtime.GOMAXPROCS(0),
	}
}

// PushFoldResult holds the average strategies of a push/fold solve,
// indexed like PreflopEquity.Classes
type PushFoldResult struct {
	Stack          float64
	Iterations     int
	Exploitability float64
	Classes        []notation.HandClass
	Push           []float64 // small blind push frequency
	Call           []float64 // big blind call frequency
}

// pushFoldPayoffs are the small blind's results; the big blind's are
// their negation except at a raked showdown
type pushFoldPayoffs struct {
	stack, rake float64
}

func (p pushFoldPayoffs) sbFold() float64  { return -0.5 }
func (p pushFoldPayoffs) sbSteal() float64 { return 1 }
func (p pushFoldPayoffs) bbFold() float64  { return -1 }
func (p pushFoldPayoffs) sbShowdown(eq float64) float64 {
	return p.stack * (2*eq*(1-p.rake) - 1)
}
func (p pushFoldPayoffs) bbShowdown(eq float64) float64 {
	return p.stack * (2*(1-eq)*(1-p.rake) - 1)
}

// SolvePushFold trains the push/fold game on a fresh equity table
func SolvePushFold(ctx context.Context, cfg PushFoldConfig) (*PushFoldResult, error) {
	start := time.Now()
	table := NewPreflopEquity(cfg.Samples, cfg.Seed, cfg.Workers)
	glog.V(1).Infof("preflop equity table: %d samples per matchup in %s", cfg.Samples, time.Since(start))
	return SolvePushFoldWith(ctx, table, cfg)
}

// SolvePushFoldWith trains the push/fold game on an existing equity table.
// Each iteration updates the small blind against the big blind's current
// strategy, then the big blind against the updated small blind.
func SolvePushFoldWith(ctx context.Context, table *PreflopEquity, cfg PushFoldConfig) (*PushFoldResult, error) {
	if cfg.Stack < 1 {
		return nil, errors.Errorf("push/fold needs at least 1bb, got %g", cfg.Stack)
	}
	n := len(table.Classes)
	pay := pushFoldPayoffs{stack: cfg.Stack, rake: cfg.Rake}
	cfr := NewFlatCFR([]NodeShape{{Hands: n, Actions: 2}, {Hands: n, Actions: 2}})

	var bb, sb []float32
	vals := make([]float64, 2)
	sigma := make([]float64, 0, 2)
	for it := 0; it < cfg.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "push/fold at %gbb interrupted after %d iterations", cfg.Stack, it)
		}

		// Slot layouts are [push/call, fold] per hand
		bb = cfr.CurrentTable(bb)
		for i := 0; i < n; i++ {
			var push, total float64
			for j := 0; j < n; j++ {
				w := table.Pairs(i, j)
				if w == 0 {
					continue
				}
				call := float64(bb[cfr.Index(bbSlot, j)])
				total += w
				push += w * ((1-call)*pay.sbSteal() + call*pay.sbShowdown(table.Equity(i, j)))
			}
			if total > 0 {
				push /= total
			}
			vals[0], vals[1] = push, pay.sbFold()
			sigma = cfr.CurrentStrategy(sbSlot, i, sigma)
			cfr.Update(sbSlot, i, vals, sigma[0]*vals[0]+sigma[1]*vals[1], 1)
		}

		sb = cfr.CurrentTable(sb)
		for j := 0; j < n; j++ {
			var call, total float64
			for i := 0; i < n; i++ {
				w := table.Pairs(i, j) * float64(sb[cfr.Index(sbSlot, i)])
				if w == 0 {
					continue
				}
				total += w
				call += w * pay.bbShowdown(table.Equity(i, j))
			}
			if total > 0 {
				call /= total
			}
			vals[0], vals[1] = call, pay.bbFold()
			sigma = cfr.CurrentStrategy(bbSlot, j, sigma)
			cfr.Update(bbSlot, j, vals, sigma[0]*vals[0]+sigma[1]*vals[1], 1)
		}
	}

	res := &PushFoldResult{
		Stack:      cfg.Stack,
		Iterations: cfg.Iterations,
		Classes:    table.Classes,
		Push:       make([]float64, n),
		Call:       make([]float64, n),
	}
	out := make([]float64, 0, 2)
	for h := 0; h < n; h++ {
		res.Push[h] = cfr.AverageStrategy(sbSlot, h, out)[0]
		res.Call[h] = cfr.AverageStrategy(bbSlot, h, out)[0]
	}
	res.Exploitability = pushFoldExploitability(res, table, pay)
	glog.Infof("push/fold at %gbb: %d iterations, exploitability %.5fbb, push %.1f%%, call %.1f%%",
		cfg.Stack, cfg.Iterations, res.Exploitability, res.PushPct(), res.CallPct())
	return res, nil
}

// pushFoldExploitability averages each side's best-response gain per hand,
// weighted by combos
func pushFoldExploitability(r *PushFoldResult, table *PreflopEquity, pay pushFoldPayoffs) float64 {
	n := len(table.Classes)
	var sbGain, bbGain, combos float64
	for i := 0; i < n; i++ {
		var push, total float64
		for j := 0; j < n; j++ {
			w := table.Pairs(i, j)
			if w == 0 {
				continue
			}
			total += w
			push += w * ((1-r.Call[j])*pay.sbSteal() + r.Call[j]*pay.sbShowdown(table.Equity(i, j)))
		}
		if total > 0 {
			push /= total
		}
		c := float64(table.Classes[i].NumCombos())
		current := r.Push[i]*push + (1-r.Push[i])*pay.sbFold()
		sbGain += c * (max(push, pay.sbFold()) - current)
		combos += c
	}
	for j := 0; j < n; j++ {
		var call, total float64
		for i := 0; i < n; i++ {
			w := table.Pairs(i, j) * r.Push[i]
			if w == 0 {
				continue
			}
			total += w
			call += w * pay.bbShowdown(table.Equity(i, j))
		}
		if total > 0 {
			call /= total
		}
		c := float64(table.Classes[j].NumCombos())
		current := r.Call[j]*call + (1-r.Call[j])*pay.bbFold()
		bbGain += c * (max(call, pay.bbFold()) - current)
	}
	return (sbGain/combos + bbGain/combos) / 2
}

// PushRange lists the classes pushed more than half the time
func (r *PushFoldResult) PushRange() []notation.HandClass {
	return r.over(r.Push)
}

// CallRange lists the classes called more than half the time
func (r *PushFoldResult) CallRange() []notation.HandClass {
	return r.over(r.Call)
}

func (r *PushFoldResult) over(freq []float64) []notation.HandClass {
	var out []notation.HandClass
	for i, f := range freq {
		if f > 0.5 {
			out = append(out, r.Classes[i])
		}
	}
	return out
}

// PushPct is the share of all 1326 combos in the push range
func (r *PushFoldResult) PushPct() float64 {
	return comboPct(r.PushRange())
}

// CallPct is the share of all 1326 combos in the call range
func (r *PushFoldResult) CallPct() float64 {
	return comboPct(r.CallRange())
}

func comboPct(classes []notation.HandClass) float64 {
	n := 0
	for _, c := range classes {
		n += c.NumCombos()
	}
	return float64(n) / 1326 * 100
}

// Class returns the index of a hand class such as "AKs"
func (r *PushFoldResult) Class(name string) (int, bool) {
	for i, c := range r.Classes {
		if c.String() == name {
			return i, true
		}
	}
	return 0, false
}
