package solver

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/behrlich/spot-solver/pkg/abstraction"
	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/eval"
	"github.com/behrlich/spot-solver/pkg/notation"
	"github.com/behrlich/spot-solver/pkg/tree"
)

// Levels of a flop solve. Each has its own tree and one FlatCFR per player.
const (
	flopLevel = iota
	turnLevel
	riverLevel
	numLevels
)

// chipEpsilon is the smallest stack still treated as chips behind
const chipEpsilon = 0.01

// templateStack is the stack templates are built with, in units of the
// pot at the chain point. It is large enough that no template size clamps.
const templateStack = 1000

// FlopSolver trains a flop spot with external-sampling MCCFR. The flop
// tree ends where the flop betting closes; play then continues in a turn
// template and a river template, both built for a pot of one and scaled
// to the pot at the chain point. All three levels are trained on equity
// buckets in the same iterations.
type FlopSolver struct {
	cfg   Config
	game  Game
	trees [numLevels]*tree.GameTree
	hands [2]*handSet
	cfr   [numLevels][2]*FlatCFR

	buckets *BucketTables
	deck    []cards.Card
	rng     *rand.Rand

	// brRunouts is the fixed sample the best response averages over
	brRunouts []*runout
	brNorm    float64

	strat [numLevels][2][]float32
	bufs  [][numLevels]*updateBuffer
}

// runout is one sampled turn and river with everything a traversal needs
type runout struct {
	turn, river cards.Card
	mask        cards.Mask
	buckets     [numLevels][2][]uint16
	showdown    [2]*eval.ShowdownTable
}

// NewFlopSolver builds the three trees and the flop bucket tables
func NewFlopSolver(g Game, cfg Config) (*FlopSolver, error) {
	cfg = cfg.withDefaults()
	if len(g.Board) != 3 {
		return nil, errors.Errorf("flop solver needs three board cards, got %d", len(g.Board))
	}

	flopSizing := tree.FlopSizing()
	if len(g.Sizing) > 0 {
		flopSizing = g.Sizing[0]
	}
	configs := [numLevels]tree.Config{
		{Street: notation.Flop, Board: g.Board, Pot: g.Pot, Stack: g.Stack,
			Sizing: []tree.StreetSizing{flopSizing}, Streets: 1, Geometric: g.Geometric},
		{Street: notation.Turn, Pot: 1, Stack: templateStack,
			Sizing: []tree.StreetSizing{tree.TurnTemplateSizing()}, Streets: 1},
		{Street: notation.River, Pot: 1, Stack: templateStack,
			Sizing: []tree.StreetSizing{tree.RiverTemplateSizing()}, Streets: 1, Final: true},
	}

	s := &FlopSolver{
		cfg:     cfg,
		game:    g,
		buckets: newBucketTables(cfg.NumBuckets),
		rng:     rand.New(rand.NewPCG(cfg.Seed, 0x5eed)),
	}
	for k, c := range configs {
		t, err := tree.Build(c)
		if err != nil {
			return nil, errors.Wrapf(err, "building %s tree for %s", c.Street, g.Key)
		}
		s.trees[k] = t
	}

	dead := cards.MaskOf(g.Board...)
	s.deck = cards.Remaining(dead)
	for p := 0; p < 2; p++ {
		s.hands[p] = newHandSet(g.Ranges[p], dead)
		if s.hands[p].len() == 0 {
			return nil, errors.Errorf("player %d has no combos left on %s", p, cards.FormatCards(g.Board))
		}
		s.buckets.Flop[p] = abstraction.AssignBuckets(g.Board, s.hands[p].combos, cfg.NumBuckets)
	}
	for k := range s.trees {
		for p := 0; p < 2; p++ {
			s.cfr[k][p] = NewFlatCFR(shapes(s.trees[k], p, cfg.NumBuckets))
		}
	}

	brRNG := rand.New(rand.NewPCG(cfg.Seed, 0xb0b))
	for i := 0; i < cfg.ExploitabilityRunouts; i++ {
		t, r := s.draw(brRNG)
		ro, err := s.runout(t, r)
		if err != nil {
			return nil, err
		}
		s.brRunouts = append(s.brRunouts, ro)
		for _, mh := range s.hands[0].masks {
			if mh&ro.mask != 0 {
				continue
			}
			for _, mo := range s.hands[1].masks {
				if mo&(mh|ro.mask) == 0 {
					s.brNorm++
				}
			}
		}
	}
	if s.brNorm == 0 {
		return nil, errors.New("ranges share no compatible combos")
	}

	stats := s.trees[flopLevel].Stats()
	glog.Infof("flop tree for %s: %d nodes (%d decisions), templates %d + %d nodes, %d/%d combos in %d buckets",
		g.Key, s.trees[flopLevel].Len(), stats.Action, s.trees[turnLevel].Len(), s.trees[riverLevel].Len(),
		s.hands[0].len(), s.hands[1].len(), cfg.NumBuckets)
	return s, nil
}

// Trees returns the flop tree and the two templates
func (s *FlopSolver) Trees() [3]*tree.GameTree {
	return s.trees
}

// CFR returns player p's trainer state for a level (0 flop, 1 turn, 2 river)
func (s *FlopSolver) CFR(level, p int) *FlatCFR {
	return s.cfr[level][p]
}

// draw picks a turn and a river uniformly from the live deck
func (s *FlopSolver) draw(rng *rand.Rand) (cards.Card, cards.Card) {
	i := rng.IntN(len(s.deck))
	j := rng.IntN(len(s.deck) - 1)
	if j >= i {
		j++
	}
	return s.deck[i], s.deck[j]
}

// runout memoizes the bucket tables for turn and river and scores the
// final board for both players
func (s *FlopSolver) runout(t, r cards.Card) (*runout, error) {
	ro := &runout{turn: t, river: r, mask: cards.MaskOf(t, r)}
	turnBoard := append(append([]cards.Card(nil), s.game.Board...), t)
	riverBoard := append(append([]cards.Card(nil), turnBoard...), r)

	tb, ok := s.buckets.Turn[t]
	if !ok {
		for p := 0; p < 2; p++ {
			tb[p] = abstraction.AssignBuckets(turnBoard, s.hands[p].combos, s.cfg.NumBuckets)
		}
		s.buckets.Turn[t] = tb
	}
	key := [2]cards.Card{t, r}
	rb, ok := s.buckets.River[key]
	if !ok {
		for p := 0; p < 2; p++ {
			rb[p] = abstraction.AssignBuckets(riverBoard, s.hands[p].combos, s.cfg.NumBuckets)
		}
		s.buckets.River[key] = rb
	}
	ro.buckets = [numLevels][2][]uint16{s.buckets.Flop, tb, rb}

	var err error
	if ro.showdown[0], err = eval.NewShowdownTable(riverBoard, s.hands[0].combos, s.hands[1].combos); err != nil {
		return nil, errors.Wrap(err, "scoring runout")
	}
	if ro.showdown[1], err = eval.NewShowdownTable(riverBoard, s.hands[1].combos, s.hands[0].combos); err != nil {
		return nil, errors.Wrap(err, "scoring runout")
	}
	return ro, nil
}

// Iterate samples one turn and river shared by every traverser hand and
// runs one MCCFR iteration over all three levels. Nothing is committed when
// ctx ends the iteration early.
func (s *FlopSolver) Iterate(ctx context.Context, iter int) error {
	p := iter & 1
	t, r := s.draw(s.rng)
	ro, err := s.runout(t, r)
	if err != nil {
		return errors.Wrapf(err, "iteration %d", iter)
	}
	for k := range s.cfr {
		for q := 0; q < 2; q++ {
			s.strat[k][q] = s.cfr[k][q].CurrentTable(s.strat[k][q])
		}
	}

	parts := chunks(s.hands[p].len(), s.cfg.Workers)
	for len(s.bufs) < len(parts) {
		s.bufs = append(s.bufs, [numLevels]*updateBuffer{{}, {}, {}})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for c, part := range parts {
		bufs := s.bufs[c]
		for _, b := range bufs {
			b.reset()
		}
		g.Go(func() error {
			w := &flopWalker{s: s, p: p, strat: &s.strat, bufs: bufs, runouts: []*runout{ro}}
			for h := part[0]; h < part[1]; h++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				w.hand(h)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for k := range s.cfr {
		level := make([]*updateBuffer, len(parts))
		for c := range parts {
			level[c] = s.bufs[c][k]
		}
		s.cfr[k][p].commit(level)
	}
	return nil
}

// Exploitability runs a best response over a fixed sample of runouts. At
// template nodes the responder already knows the sampled river, so the
// figure overstates the true exploitability; it is meant for comparing
// checkpoints.
func (s *FlopSolver) Exploitability() float64 {
	var avg [numLevels][2][]float32
	for k := range s.cfr {
		for q := 0; q < 2; q++ {
			avg[k][q] = s.cfr[k][q].AverageTable(nil)
		}
	}

	var br [2]float64
	for p := 0; p < 2; p++ {
		parts := chunks(s.hands[p].len(), s.cfg.Workers)
		sums := make([]float64, len(parts))
		var wg sync.WaitGroup
		for c, part := range parts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				w := &flopWalker{s: s, p: p, strat: &avg, best: true, runouts: s.brRunouts}
				for h := part[0]; h < part[1]; h++ {
					sums[c] += w.hand(h)
				}
			}()
		}
		wg.Wait()
		for _, v := range sums {
			br[p] += v
		}
		br[p] /= s.brNorm
	}
	return (br[0] + br[1] - s.game.Pot) / 2
}

// Solution extracts all six average strategies with the bucket tables
func (s *FlopSolver) Solution() *Solution {
	hands := [2]int{s.hands[0].len(), s.hands[1].len()}
	streets := make([]*StreetStrategy, numLevels)
	for k, t := range s.trees {
		avg := [2][]float32{s.cfr[k][0].AverageTable(nil), s.cfr[k][1].AverageTable(nil)}
		streets[k] = newStreetStrategy(t.Root().Street, t, s.cfg.NumBuckets, hands, avg)
	}

	tables := newBucketTables(s.buckets.NumBuckets)
	tables.Flop = s.buckets.Flop
	for c, v := range s.buckets.Turn {
		tables.Turn[c] = v
	}
	for c, v := range s.buckets.River {
		tables.River[c] = v
	}

	return &Solution{
		Key:            s.game.Key,
		Street:         notation.Flop,
		Board:          append([]cards.Card(nil), s.game.Board...),
		Pot:            s.game.Pot,
		Stack:          s.game.Stack,
		Exploitability: -1,
		Hands:          [2][]cards.Combo{s.hands[0].combos, s.hands[1].combos},
		Streets:        streets,
		Buckets:        tables,
	}
}

// chain is where a template was entered, in real chips
type chain struct {
	pot    float64    // pot at the chain point
	inv    [2]float64 // chips each player put in before the chain point
	behind float64    // effective stack behind at the chain point
}

// scaled maps a template node into real chips. A size bigger than the
// stack behind counts as all-in for that stack.
func (c chain) scaled(n *tree.Node, startPot float64) tree.Node {
	out := *n
	for p := 0; p < 2; p++ {
		add := c.pot * n.Invested[p]
		if add > c.behind {
			add = c.behind
		}
		out.Invested[p] = c.inv[p] + add
	}
	out.Pot = startPot + out.Invested[0] + out.Invested[1]
	return out
}

// chainAt starts a chain at a Continue terminal given in real chips
func chainAt(n *tree.Node, stack float64) chain {
	behind := stack - n.Invested[0]
	if b := stack - n.Invested[1]; b < behind {
		behind = b
	}
	return chain{pot: n.Pot, inv: n.Invested, behind: behind}
}

// flopWalker traverses the three levels for one traverser hand. At the
// flop level the opponent reach vector is shared by every runout; below a
// Continue terminal each runout is walked with its own masked copy.
type flopWalker struct {
	s       *FlopSolver
	p       int
	strat   *[numLevels][2][]float32
	bufs    [numLevels]*updateBuffer // unused for best response
	best    bool
	runouts []*runout

	h    int
	mask cards.Mask
	live []*runout
}

func (w *flopWalker) hand(h int) float64 {
	w.h = h
	w.mask = w.s.hands[w.p].masks[h]
	w.live = w.live[:0]
	for _, ro := range w.runouts {
		if ro.mask&w.mask == 0 {
			w.live = append(w.live, ro)
		}
	}
	if len(w.live) == 0 {
		return 0
	}

	oh := w.s.hands[1-w.p]
	opp := allocFloatSlice(oh.len())
	for j, m := range oh.masks {
		if m&w.mask == 0 {
			opp[j] = 1
		}
	}
	v := w.walk(flopLevel, 0, 1, opp, nil, chain{})
	freeFloatSlice(opp)
	return v
}

func (w *flopWalker) walk(k int, id int32, reach float64, opp []float64, ro *runout, ch chain) float64 {
	n := w.s.trees[k].Node(id)
	if n.Kind == tree.TerminalNode {
		if k == flopLevel {
			return w.flopTerminal(n, reach, opp)
		}
		return w.templateTerminal(k, n, reach, opp, ro, ch)
	}
	if int(n.Player) == w.p {
		return w.own(k, n, reach, opp, ro, ch)
	}
	return w.opponent(k, n, reach, opp, ro, ch)
}

// maskRunout copies opp into dst, zeroing the opponent combos blocked by ro's turn and river
func (w *flopWalker) maskRunout(opp, dst []float64, ro *runout) {
	copy(dst, opp)
	oh := w.s.hands[1-w.p]
	for _, j := range oh.byCard[ro.turn] {
		dst[j] = 0
	}
	for _, j := range oh.byCard[ro.river] {
		dst[j] = 0
	}
}

func (w *flopWalker) flopTerminal(n *tree.Node, reach float64, opp []float64) float64 {
	masked := allocFloatSlice(len(opp))
	defer freeFloatSlice(masked)

	v := 0.0
	for _, ro := range w.live {
		w.maskRunout(opp, masked, ro)
		switch {
		case n.Terminal == tree.Fold:
			total := 0.0
			for _, r := range masked {
				total += r
			}
			v += total * n.Payoff(w.p, 0)
		case n.AllIn(w.s.game.Stack):
			v += showdownValue(n, w.p, ro.showdown[w.p].Row(w.h), masked)
		default:
			v += w.walk(turnLevel, 0, reach, masked, ro, chainAt(n, w.s.game.Stack))
		}
	}
	return v
}

func (w *flopWalker) templateTerminal(k int, n *tree.Node, reach float64, opp []float64, ro *runout, ch chain) float64 {
	sn := ch.scaled(n, w.s.game.Pot)
	switch sn.Terminal {
	case tree.Fold:
		total := 0.0
		for _, r := range opp {
			total += r
		}
		return total * sn.Payoff(w.p, 0)
	case tree.Continue:
		next := chainAt(&sn, w.s.game.Stack)
		if next.behind > chipEpsilon && k == turnLevel {
			return w.walk(riverLevel, 0, reach, opp, ro, next)
		}
	}
	return showdownValue(&sn, w.p, ro.showdown[w.p].Row(w.h), opp)
}
// bucketsAt returns the bucket table of level k for player q
func (w *flopWalker) bucketsAt(k, q int, ro *runout) []uint16 {
	if k == flopLevel {
		return w.s.buckets.Flop[q]
	}
	return ro.buckets[k][q]
}

func (w *flopWalker) own(k int, n *tree.Node, reach float64, opp []float64, ro *runout, ch chain) float64 {
	na := len(n.Children)
	b := int(w.bucketsAt(k, w.p, ro)[w.h])
	base := w.s.cfr[k][w.p].Index(int(n.Slot), b)
	sigma := w.strat[k][w.p][base : base+na]

	vals := allocFloatSlice(na)
	for a, c := range n.Children {
		vals[a] = w.walk(k, c, reach*float64(sigma[a]), opp, ro, ch)
	}

	v := 0.0
	if w.best {
		v = vals[0]
		for _, x := range vals[1:] {
			if x > v {
				v = x
			}
		}
	} else {
		for a, x := range vals {
			v += float64(sigma[a]) * x
		}
		w.bufs[k].add(base, sigma, vals, v, reach)
	}
	freeFloatSlice(vals)
	return v
}

func (w *flopWalker) opponent(k int, n *tree.Node, reach float64, opp []float64, ro *runout, ch chain) float64 {
	q := 1 - w.p
	na := len(n.Children)
	base := w.s.cfr[k][q].Index(int(n.Slot), 0)
	sigma := w.strat[k][q]
	buckets := w.bucketsAt(k, q, ro)

	next := allocFloatSlice(len(opp))
	v := 0.0
	for a, c := range n.Children {
		live := false
		for j, r := range opp {
			x := 0.0
			if r != 0 {
				x = r * float64(sigma[base+int(buckets[j])*na+a])
			}
			next[j] = x
			live = live || x > 0
		}
		if live {
			v += w.walk(k, c, reach, next, ro, ch)
		}
	}
	freeFloatSlice(next)
	return v
}
