// Package query navigates a solved spot by action path and reads the
// strategy at the node it reaches.
package query

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/notation"
	"github.com/behrlich/spot-solver/pkg/solver"
	"github.com/behrlich/spot-solver/pkg/tree"
)

var (
	// ErrMalformedActionPath is returned when a path label matches no edge
	ErrMalformedActionPath = errors.New("malformed action path")

	// ErrNoDecision is returned when a path ends where nobody acts
	ErrNoDecision = errors.New("path does not end at a decision")

	// ErrHandUnavailable is returned when a hand cannot be read at a node
	ErrHandUnavailable = errors.New("hand unavailable")
)

// PathError reports the step of a path that left the tree
type PathError struct {
	Key       string
	NodeID    int32
	Level     int
	Step      int
	Label     string
	Available []string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("spot %s: no edge %q at step %d (node %d, level %d); available: [%s]",
		e.Key, e.Label, e.Step, e.NodeID, e.Level, strings.Join(e.Available, " "))
}

func (e *PathError) Unwrap() error { return ErrMalformedActionPath }

// Strategy is the average strategy at one decision node. Pot and
// Invested are in real chips even inside a template.
type Strategy struct {
	Key      string
	Path     []string
	Level    int
	NodeID   int32
	Street   notation.Street
	Player   int
	Pot      float64
	Invested [2]float64
	Runout   []cards.Card
	Actions  []string

	// NumBuckets is zero when rows are per combo
	NumBuckets int

	// Rows holds one action distribution per combo or bucket
	Rows [][]float32

	sol         *solver.Solution
	handBuckets []uint16 // bucket of every combo of Player; nil if unknown
}

// Lookup walks path from the root of sol. Card labels select runout cards
// at chance nodes and when crossing into a template. A path ending where a
// street closes continues into the next street's first decision.
func Lookup(sol *solver.Solution, path []string) (*Strategy, error) {
	var (
		ch     solver.Chain
		st     = sol.Streets[solver.PrimaryStreet]
		id     int32
		runout []cards.Card
	)
	used := cards.MaskOf(sol.Board...)

	for step, label := range path {
		n := st.Tree.Node(id)
		if n.Kind == tree.TerminalNode {
			next, ok := sol.Enter(ch, n)
			if !ok {
				return nil, &PathError{Key: sol.Key, NodeID: id, Level: ch.Level, Step: step, Label: label}
			}
			ch, st, id = next, sol.Streets[next.Level], 0
			if c, err := cards.ParseCard(label); err == nil {
				if used.Has(c) {
					return nil, &PathError{Key: sol.Key, NodeID: id, Level: ch.Level, Step: step, Label: label}
				}
				used = used.Add(c)
				runout = append(runout, c)
				continue
			}
		}

		child, ok := st.Tree.Child(id, label)
		if !ok {
			return nil, &PathError{
				Key:       sol.Key,
				NodeID:    id,
				Level:     ch.Level,
				Step:      step,
				Label:     label,
				Available: st.Tree.Labels(id),
			}
		}
		id = child
		if c := st.Tree.Node(id); c.HasCard {
			used = used.Add(c.Card)
			runout = append(runout, c.Card)
		}
	}

	n := st.Tree.Node(id)
	if n.Kind == tree.TerminalNode {
		if next, ok := sol.Enter(ch, n); ok {
			ch, st, id = next, sol.Streets[next.Level], 0
			n = st.Tree.Node(id)
		}
	}
	if n.Kind != tree.ActionNode {
		return nil, errors.Wrapf(ErrNoDecision, "spot %s: path [%s] ends at %s node %d",
			sol.Key, strings.Join(path, " "), n.Kind, id)
	}

	p := int(n.Player)
	rn := sol.RealNode(ch, n)
	s := &Strategy{
		Key:        sol.Key,
		Path:       append([]string(nil), path...),
		Level:      ch.Level,
		NodeID:     id,
		Street:     n.Street,
		Player:     p,
		Pot:        rn.Pot,
		Invested:   rn.Invested,
		Runout:     runout,
		Actions:    st.Tree.Labels(id),
		NumBuckets: st.NumBuckets,
		sol:        sol,
	}
	s.Rows = make([][]float32, st.NumHands(p))
	for h := range s.Rows {
		s.Rows[h] = st.Row(p, int(n.Slot), h)
	}
	if st.NumBuckets > 0 && len(runout) == ch.Level {
		b, err := sol.BucketsFor(runout)
		if err != nil {
			return nil, errors.Wrapf(err, "spot %s", sol.Key)
		}
		s.handBuckets = b[p]
	}
	return s, nil
}

// Board returns the solved board plus the runout of the path
func (s *Strategy) Board() []cards.Card {
	return append(append([]cards.Card(nil), s.sol.Board...), s.Runout...)
}

// Hands lists the acting player's range in solution order
func (s *Strategy) Hands() []cards.Combo {
	return s.sol.Hands[s.Player]
}

// HandRow returns the acting player's distribution for one combo. For
// bucketed nodes the path must have named every runout card.
func (s *Strategy) HandRow(c cards.Combo) ([]float32, error) {
	if c.Conflicts(cards.MaskOf(s.Board()...)) {
		return nil, errors.Wrapf(ErrHandUnavailable, "hand %s collides with board %s", c, cards.FormatCards(s.Board()))
	}
	i, ok := s.sol.HandIndex(s.Player, c)
	if !ok {
		return nil, errors.Wrapf(ErrHandUnavailable, "hand %s is not in player %d's range", c, s.Player)
	}
	if s.NumBuckets == 0 {
		return s.Rows[i], nil
	}
	if s.handBuckets == nil {
		return nil, errors.Wrapf(ErrHandUnavailable, "runout unknown at level %d; name the dealt cards in the path", s.Level)
	}
	return s.Rows[s.handBuckets[i]], nil
}

// Frequencies is the acting player's overall action mix: every live combo
// of the range weighted equally. Without a known runout, bucketed nodes
// weight buckets equally.
func (s *Strategy) Frequencies() []float64 {
	out := make([]float64, len(s.Actions))
	n := 0.0
	add := func(row []float32) {
		for a, x := range row {
			out[a] += float64(x)
		}
		n++
	}

	switch {
	case s.NumBuckets > 0 && s.handBuckets == nil:
		for _, row := range s.Rows {
			add(row)
		}
	default:
		dead := cards.MaskOf(s.Board()...)
		for i, c := range s.sol.Hands[s.Player] {
			if c.Conflicts(dead) {
				continue
			}
			if s.NumBuckets == 0 {
				add(s.Rows[i])
			} else {
				add(s.Rows[s.handBuckets[i]])
			}
		}
	}
	if n > 0 {
		for a := range out {
			out[a] /= n
		}
	}
	return out
}

// LookupHand returns one hand's action distribution at the end of path.
// runout lists every card dealt after the solved board in order; it is
// only read when the path itself does not name them all.
func LookupHand(sol *solver.Solution, path []string, hand cards.Combo, runout []cards.Card) (*Strategy, []float32, error) {
	s, err := Lookup(sol, path)
	if err != nil {
		return nil, nil, err
	}
	if s.NumBuckets > 0 && s.handBuckets == nil && len(runout) >= s.Level {
		rc := runout[:s.Level]
		b, err := sol.BucketsFor(rc)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "spot %s", sol.Key)
		}
		s.Runout = append([]cards.Card(nil), rc...)
		s.handBuckets = b[s.Player]
	}
	row, err := s.HandRow(hand)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "spot %s", sol.Key)
	}
	return s, row, nil
}
