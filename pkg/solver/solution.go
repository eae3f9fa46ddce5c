package solver

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/behrlich/spot-solver/pkg/abstraction"
	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/notation"
	"github.com/behrlich/spot-solver/pkg/tree"
)

// Template positions inside Solution.Streets
const (
	PrimaryStreet = 0
	TurnTemplate  = 1
	RiverTemplate = 2
)

// Solution is the trained result of one spot. It is never modified after
// the solve that produced it returns.
type Solution struct {
	Key            string
	Street         notation.Street
	Board          []cards.Card
	Pot            float64
	Stack          float64
	Iterations     int
	Exploitability float64 // in big blinds; negative when never measured
	Warnings       []DivergenceWarning

	// Hands are both players' ranges on Board. Combo-level strategies are
	// indexed by position in this list and bucket tables run parallel to it.
	Hands [2][]cards.Combo

	// Streets holds the primary tree first, then for flop solves the turn
	// and river templates
	Streets []*StreetStrategy

	// Buckets is set when any street is trained on buckets
	Buckets *BucketTables
}

// StreetStrategy is the average strategy of every decision node of one tree
type StreetStrategy struct {
	Street notation.Street
	Tree   *tree.GameTree

	// NumBuckets is zero when rows are indexed by combo
	NumBuckets int

	// Average is each player's average strategy laid out like FlatCFR
	Average [2][]float32

	hands   [2]int
	offsets [2][]int
}

// NewStreetStrategy wraps a tree and its average strategies, checking that
// the arrays have the size the tree implies
func NewStreetStrategy(street notation.Street, t *tree.GameTree, numBuckets int, hands [2]int, avg [2][]float32) (*StreetStrategy, error) {
	s := newStreetStrategy(street, t, numBuckets, hands, avg)
	for p := 0; p < 2; p++ {
		want := 0
		for _, id := range t.Slots[p] {
			want += s.hands[p] * len(t.Nodes[id].Children)
		}
		if want != len(avg[p]) {
			return nil, errors.Errorf("player %d strategy has %d entries, tree needs %d", p, len(avg[p]), want)
		}
	}
	return s, nil
}

func newStreetStrategy(street notation.Street, t *tree.GameTree, numBuckets int, hands [2]int, avg [2][]float32) *StreetStrategy {
	s := &StreetStrategy{Street: street, Tree: t, NumBuckets: numBuckets, Average: avg}
	for p := 0; p < 2; p++ {
		n := hands[p]
		if numBuckets > 0 {
			n = numBuckets
		}
		s.hands[p] = n
		off := 0
		s.offsets[p] = make([]int, len(t.Slots[p]))
		for slot, id := range t.Slots[p] {
			s.offsets[p][slot] = off
			off += n * len(t.Nodes[id].Children)
		}
	}
	return s
}

// Row returns player p's action distribution at slot for one hand (a
// combo index or a bucket). The slice aliases the solution.
func (s *StreetStrategy) Row(p, slot, hand int) []float32 {
	na := len(s.Tree.Nodes[s.Tree.Slots[p][slot]].Children)
	i := s.offsets[p][slot] + hand*na
	return s.Average[p][i : i+na]
}

// NumHands returns how many rows each of p's decision nodes has
func (s *StreetStrategy) NumHands(p int) int {
	return s.hands[p]
}

// Primary returns the strategy of the solved street
func (s *Solution) Primary() *StreetStrategy {
	return s.Streets[PrimaryStreet]
}

// HandIndex finds a combo in player p's range
func (s *Solution) HandIndex(p int, c cards.Combo) (int, bool) {
	for i, h := range s.Hands[p] {
		if h == c {
			return i, true
		}
	}
	return 0, false
}

// BucketTables map each range combo to its bucket on the flop and on the
// runouts seen while training
type BucketTables struct {
	NumBuckets int
	Flop       [2][]uint16
	Turn       map[cards.Card][2][]uint16
	River      map[[2]cards.Card][2][]uint16
}

func newBucketTables(n int) *BucketTables {
	return &BucketTables{
		NumBuckets: n,
		Turn:       make(map[cards.Card][2][]uint16),
		River:      make(map[[2]cards.Card][2][]uint16),
	}
}

// TurnCards lists the memoized turn cards in order
func (b *BucketTables) TurnCards() []cards.Card {
	out := make([]cards.Card, 0, len(b.Turn))
	for c := range b.Turn {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RiverRunouts lists the memoized turn and river pairs in order
func (b *BucketTables) RiverRunouts() [][2]cards.Card {
	out := make([][2]cards.Card, 0, len(b.River))
	for k := range b.River {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// BucketsFor returns both players' buckets after runout (zero, one or two
// cards past the flop). Tables missing from the solution are recomputed
// with the same abstraction, which gives the same assignment training
// would have.
func (s *Solution) BucketsFor(runout []cards.Card) ([2][]uint16, error) {
	b := s.Buckets
	if b == nil {
		return [2][]uint16{}, errors.New("solution has no bucket tables")
	}
	switch len(runout) {
	case 0:
		return b.Flop, nil
	case 1:
		if t, ok := b.Turn[runout[0]]; ok {
			return t, nil
		}
	case 2:
		if t, ok := b.River[[2]cards.Card{runout[0], runout[1]}]; ok {
			return t, nil
		}
	default:
		return [2][]uint16{}, errors.Errorf("runout %s is longer than two cards", cards.FormatCards(runout))
	}

	board := append(append([]cards.Card(nil), s.Board...), runout...)
	if cards.MaskOf(board...).Count() != len(board) {
		return [2][]uint16{}, errors.Errorf("runout %s collides with board %s", cards.FormatCards(runout), cards.FormatCards(s.Board))
	}
	return [2][]uint16{
		abstraction.AssignBuckets(board, s.Hands[0], b.NumBuckets),
		abstraction.AssignBuckets(board, s.Hands[1], b.NumBuckets),
	}, nil
}

// Chain locates a template level inside a flop solution in real chips.
// The zero value is the primary tree.
type Chain struct {
	Level int
	c     chain
}

// RealNode returns n with its pot and investments in real chips
func (s *Solution) RealNode(ch Chain, n *tree.Node) tree.Node {
	if ch.Level == PrimaryStreet {
		return *n
	}
	return ch.c.scaled(n, s.Pot)
}

// Enter moves below a Continue terminal into the next template. It
// reports false when there is no next template or nobody has chips left
// to bet, in which case the hand runs out to showdown.
func (s *Solution) Enter(ch Chain, n *tree.Node) (Chain, bool) {
	if n.Terminal != tree.Continue || ch.Level+1 >= len(s.Streets) {
		return ch, false
	}
	rn := s.RealNode(ch, n)
	next := chainAt(&rn, s.Stack)
	if next.behind <= chipEpsilon {
		return ch, false
	}
	return Chain{Level: ch.Level + 1, c: next}, true
}
