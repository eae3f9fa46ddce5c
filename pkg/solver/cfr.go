package solver

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/eval"
	"github.com/behrlich/spot-solver/pkg/notation"
	"github.com/behrlich/spot-solver/pkg/tree"
)

// DefaultTurnSizing is the exact turn abstraction followed by the river
func DefaultTurnSizing() []tree.StreetSizing {
	return []tree.StreetSizing{
		{BetSizes: []float64{0.66}, RaiseSizes: []float64{1.0}, MaxRaises: 1, AddAllIn: true},
		{BetSizes: []float64{0.5, 1.0}, RaiseSizes: []float64{1.0}, MaxRaises: 1, AddAllIn: true},
	}
}

// RangeSolver trains river and turn spots exactly: every combo of both
// ranges is its own information set and showdowns are read from
// precomputed tables
type RangeSolver struct {
	cfg    Config
	game   Game
	tree   *tree.GameTree
	hands  [2]*handSet
	cfr    [2]*FlatCFR
	driver ChanceDriver

	// showdown[card][p] is the table for the board completed by card,
	// oriented with player p's range first. River trees use card 0.
	showdown map[cards.Card]*[2]*eval.ShowdownTable

	strat [2][]float32
	bufs  []*updateBuffer
	norm  [2]float64
}

// NewRangeSolver builds the tree and tables for a river or turn game
func NewRangeSolver(g Game, cfg Config) (*RangeSolver, error) {
	cfg = cfg.withDefaults()
	street := notation.GetStreet(len(g.Board))
	if street != notation.River && street != notation.Turn {
		return nil, errors.Errorf("range solver needs a turn or river board, got %d cards", len(g.Board))
	}

	sizing := g.Sizing
	if len(sizing) == 0 {
		if street == notation.River {
			sizing = []tree.StreetSizing{tree.DefaultRiverSizing()}
		} else {
			sizing = DefaultTurnSizing()
		}
	}
	streets := int(notation.River-street) + 1
	t, err := tree.Build(tree.Config{
		Street:    street,
		Board:     g.Board,
		Pot:       g.Pot,
		Stack:     g.Stack,
		Sizing:    sizing,
		Streets:   streets,
		Final:     true,
		Geometric: g.Geometric,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "building %s tree for %s", street, g.Key)
	}

	s := &RangeSolver{cfg: cfg, game: g, tree: t}
	dead := cards.MaskOf(g.Board...)
	for p := 0; p < 2; p++ {
		s.hands[p] = newHandSet(g.Ranges[p], dead)
		if s.hands[p].len() == 0 {
			return nil, errors.Errorf("player %d has no combos left on %s", p, cards.FormatCards(g.Board))
		}
	}
	for p := 0; p < 2; p++ {
		s.cfr[p] = NewFlatCFR(shapes(t, p, s.hands[p].len()))
	}
	s.norm[0] = pairs(s.hands[0], s.hands[1])
	s.norm[1] = s.norm[0]
	if s.norm[0] == 0 {
		return nil, errors.New("ranges share no compatible combos")
	}

	if err := s.buildShowdowns(); err != nil {
		return nil, err
	}

	work := float64(s.hands[0].len()+s.hands[1].len()) / 2 * float64(t.Len()) * float64(s.hands[1].len())
	s.driver = SelectDriver(cfg.Sampling, work)

	stats := t.Stats()
	glog.Infof("%s tree for %s: %d nodes (%d decisions, %d chance), %d/%d combos, driver %s, %s + %s",
		street, g.Key, t.Len(), stats.Action, stats.Chance, s.hands[0].len(), s.hands[1].len(),
		s.driver.Name(), s.cfr[0], s.cfr[1])
	return s, nil
}

// buildShowdowns precomputes one table per final board in parallel
func (s *RangeSolver) buildShowdowns() error {
	var finals []cards.Card
	if len(s.game.Board) == 5 {
		finals = []cards.Card{0}
	} else {
		finals = cards.Remaining(cards.MaskOf(s.game.Board...))
	}

	tables := make([]*[2]*eval.ShowdownTable, len(finals))
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Workers)
	for i, c := range finals {
		g.Go(func() error {
			board := append([]cards.Card(nil), s.game.Board...)
			if len(board) == 4 {
				board = append(board, c)
			}
			var pair [2]*eval.ShowdownTable
			var err error
			if pair[0], err = eval.NewShowdownTable(board, s.hands[0].combos, s.hands[1].combos); err != nil {
				return err
			}
			if pair[1], err = eval.NewShowdownTable(board, s.hands[1].combos, s.hands[0].combos); err != nil {
				return err
			}
			tables[i] = &pair
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "building showdown tables")
	}

	s.showdown = make(map[cards.Card]*[2]*eval.ShowdownTable, len(finals))
	for i, c := range finals {
		s.showdown[c] = tables[i]
	}
	return nil
}

// Tree returns the game tree being trained
func (s *RangeSolver) Tree() *tree.GameTree {
	return s.tree
}

// Driver returns the chance driver in use
func (s *RangeSolver) Driver() ChanceDriver {
	return s.driver
}

// CFR returns player p's trainer state
func (s *RangeSolver) CFR(p int) *FlatCFR {
	return s.cfr[p]
}

// rootTable is the showdown table known at the root, nil on the turn
func (s *RangeSolver) rootTable() *[2]*eval.ShowdownTable {
	if len(s.game.Board) == 5 {
		return s.showdown[0]
	}
	return nil
}

// chunks splits n hands into contiguous ranges
func chunks(n, workers int) [][2]int {
	k := workers * 4
	if k > n {
		k = n
	}
	if k < 1 {
		return nil
	}
	size := (n + k - 1) / k
	out := make([][2]int, 0, k)
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		out = append(out, [2]int{lo, hi})
	}
	return out
}

// Iterate runs one CFR+ iteration for the traverser picked by iter's parity.
// Workers stop between hands once ctx is done; the iteration is then
// dropped without touching the regrets.
func (s *RangeSolver) Iterate(ctx context.Context, iter int) error {
	p := iter & 1
	s.strat[0] = s.cfr[0].CurrentTable(s.strat[0])
	s.strat[1] = s.cfr[1].CurrentTable(s.strat[1])

	parts := chunks(s.hands[p].len(), s.cfg.Workers)
	for len(s.bufs) < len(parts) {
		s.bufs = append(s.bufs, &updateBuffer{})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for c, part := range parts {
		buf := s.bufs[c]
		buf.reset()
		g.Go(func() error {
			src := rand.NewPCG(0, 0)
			w := &rangeWalker{s: s, p: p, strat: s.strat, buf: buf, driver: s.driver, rng: rand.New(src)}
			for h := part[0]; h < part[1]; h++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				seedHand(src, s.cfg.Seed, iter, h)
				w.hand(h)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.cfr[p].commit(s.bufs[:len(parts)])
	return nil
}

// Exploitability is the mean of both best responses' gain over the
// current average strategies, in big blinds
func (s *RangeSolver) Exploitability() float64 {
	var avg [2][]float32
	avg[0] = s.cfr[0].AverageTable(nil)
	avg[1] = s.cfr[1].AverageTable(nil)

	var br [2]float64
	for p := 0; p < 2; p++ {
		parts := chunks(s.hands[p].len(), s.cfg.Workers)
		sums := make([]float64, len(parts))
		var wg sync.WaitGroup
		for c, part := range parts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				w := &rangeWalker{s: s, p: p, strat: avg, best: true, driver: Enumerate{}}
				for h := part[0]; h < part[1]; h++ {
					sums[c] += w.hand(h)
				}
			}()
		}
		wg.Wait()
		for _, v := range sums {
			br[p] += v
		}
		br[p] /= s.norm[p]
	}
	return (br[0] + br[1] - s.tree.StartPot) / 2
}

// Solution extracts the average strategies
func (s *RangeSolver) Solution() *Solution {
	var avg [2][]float32
	var hands [2]int
	for p := 0; p < 2; p++ {
		avg[p] = s.cfr[p].AverageTable(nil)
		hands[p] = s.hands[p].len()
	}
	st := newStreetStrategy(s.tree.Root().Street, s.tree, 0, hands, avg)
	return &Solution{
		Key:            s.game.Key,
		Street:         st.Street,
		Board:          append([]cards.Card(nil), s.game.Board...),
		Pot:            s.game.Pot,
		Stack:          s.game.Stack,
		Exploitability: -1,
		Hands:          [2][]cards.Combo{s.hands[0].combos, s.hands[1].combos},
		Streets:        []*StreetStrategy{st},
	}
}

// rangeWalker traverses the tree for one traverser hand at a time against
// the opponent's range held as a reach vector
type rangeWalker struct {
	s      *RangeSolver
	p      int
	strat  [2][]float32
	buf    *updateBuffer // nil for best response
	best   bool
	driver ChanceDriver
	rng    *rand.Rand

	h    int
	mask cards.Mask
}

// hand walks the tree for traverser hand h and returns its value summed
// over the opponent range
func (w *rangeWalker) hand(h int) float64 {
	w.h = h
	w.mask = w.s.hands[w.p].masks[h]
	oh := w.s.hands[1-w.p]
	opp := allocFloatSlice(oh.len())
	for j, m := range oh.masks {
		if m&w.mask == 0 {
			opp[j] = 1
		}
	}
	v := w.walk(0, 1, opp, w.s.rootTable())
	freeFloatSlice(opp)
	return v
}

func (w *rangeWalker) walk(id int32, reach float64, opp []float64, sd *[2]*eval.ShowdownTable) float64 {
	n := w.s.tree.Node(id)
	switch n.Kind {
	case tree.TerminalNode:
		return w.terminal(n, opp, sd)
	case tree.ChanceNode:
		return w.chance(n, reach, opp)
	}
	if int(n.Player) == w.p {
		return w.own(n, reach, opp, sd)
	}
	return w.opponent(n, reach, opp, sd)
}

func (w *rangeWalker) terminal(n *tree.Node, opp []float64, sd *[2]*eval.ShowdownTable) float64 {
	if n.Terminal == tree.Fold {
		total := 0.0
		for _, r := range opp {
			total += r
		}
		return total * n.Payoff(w.p, 0)
	}
	return showdownValue(n, w.p, sd[w.p].Row(w.h), opp)
}

// showdownValue sums a showdown's payoff over the opponent reach vector
func showdownValue(n *tree.Node, p int, row []int8, opp []float64) float64 {
	var win, lose, tie float64
	for j, r := range opp {
		if r == 0 {
			continue
		}
		switch row[j] {
		case eval.Win:
			win += r
		case eval.Lose:
			lose += r
		case eval.Tie:
			tie += r
		}
	}
	return win*n.Payoff(p, 1) + lose*n.Payoff(p, -1) + tie*n.Payoff(p, 0)
}

func (w *rangeWalker) chance(n *tree.Node, reach float64, opp []float64) float64 {
	live := make([]int32, 0, len(n.Children))
	for _, c := range n.Children {
		if !w.mask.Has(w.s.tree.Nodes[c].Card) {
			live = append(live, c)
		}
	}
	picked, scale := w.driver.Visit(live, w.rng)

	oh := w.s.hands[1-w.p]
	next := allocFloatSlice(len(opp))
	v := 0.0
	for _, c := range picked {
		card := w.s.tree.Nodes[c].Card
		copy(next, opp)
		for _, j := range oh.byCard[card] {
			next[j] = 0
		}
		v += w.walk(c, reach, next, w.s.showdown[card])
	}
	freeFloatSlice(next)

	boardLen := len(w.s.tree.Board) + int(n.Street-w.s.tree.Root().Street)
	return v * scale * chanceWeight(boardLen)
}

func (w *rangeWalker) own(n *tree.Node, reach float64, opp []float64, sd *[2]*eval.ShowdownTable) float64 {
	na := len(n.Children)
	base := w.s.cfr[w.p].Index(int(n.Slot), w.h)
	sigma := w.strat[w.p][base : base+na]

	vals := allocFloatSlice(na)
	for a, c := range n.Children {
		vals[a] = w.walk(c, reach*float64(sigma[a]), opp, sd)
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
		w.buf.add(base, sigma, vals, v, reach)
	}
	freeFloatSlice(vals)
	return v
}

func (w *rangeWalker) opponent(n *tree.Node, reach float64, opp []float64, sd *[2]*eval.ShowdownTable) float64 {
	q := 1 - w.p
	na := len(n.Children)
	base := w.s.cfr[q].Index(int(n.Slot), 0)
	sigma := w.strat[q]

	next := allocFloatSlice(len(opp))
	v := 0.0
	for a, c := range n.Children {
		live := false
		for j, r := range opp {
			x := 0.0
			if r != 0 {
				x = r * float64(sigma[base+j*na+a])
			}
			next[j] = x
			live = live || x > 0
		}
		if live {
			v += w.walk(c, reach, next, sd)
		}
	}
	freeFloatSlice(next)
	return v
}
