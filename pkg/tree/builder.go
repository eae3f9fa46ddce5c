package tree

import (
	"fmt"

	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/notation"
)

// Config describes the tree to build
type Config struct {
	// Street is the first betting street of the tree
	Street notation.Street

	// Board at the root. It may be empty for single-street templates that
	// never deal a card; trees spanning several streets need it to know
	// which cards are live.
	Board []cards.Card

	Pot   float64 // pot at the root
	Stack float64 // effective stack behind at the root

	// Sizing holds one abstraction per street starting at Street. The last
	// entry is reused for any later street.
	Sizing []StreetSizing

	// Streets is how many betting streets the tree spans
	Streets int

	// Final makes a closed last street a showdown. Otherwise it ends in a
	// Continue terminal for another tree to pick up.
	Final bool

	// Geometric replaces each street's bet sizes with sizes that get the
	// stacks in by the river
	Geometric bool
}

// Validate checks the config before building
func (c Config) Validate() error {
	if c.Street < notation.Flop || c.Street > notation.River {
		return fmt.Errorf("unsupported street %s", c.Street)
	}
	if c.Pot <= 0 {
		return fmt.Errorf("pot must be positive, got %.2f", c.Pot)
	}
	if c.Stack < 0 {
		return fmt.Errorf("stack must not be negative, got %.2f", c.Stack)
	}
	if c.Streets < 1 || int(c.Street)+c.Streets-1 > int(notation.River) {
		return fmt.Errorf("%d streets from the %s run past the river", c.Streets, c.Street)
	}
	if len(c.Sizing) == 0 {
		return fmt.Errorf("no street sizing given")
	}
	if c.Final && c.lastStreet() != notation.River {
		return fmt.Errorf("final tree must end on the river, ends on the %s", c.lastStreet())
	}
	if len(c.Board) > 0 || c.Streets > 1 {
		want := 3 + int(c.Street) - int(notation.Flop)
		if len(c.Board) != want {
			return fmt.Errorf("%s tree needs %d board cards, got %d", c.Street, want, len(c.Board))
		}
		if cards.MaskOf(c.Board...).Count() != len(c.Board) {
			return fmt.Errorf("duplicate card in board %s", cards.FormatCards(c.Board))
		}
	}
	return nil
}

func (c Config) lastStreet() notation.Street {
	return c.Street + notation.Street(c.Streets-1)
}

// state is the betting state while descending
type state struct {
	street   notation.Street
	invested [2]float64
	toAct    int
	raises   int
	sizing   StreetSizing
	dealt    cards.Mask
}

type builder struct {
	cfg  Config
	tree *GameTree
}

// Build constructs the game tree for cfg. Node ids are assigned in
// depth-first order, so a parent's id is always below its children's.
func Build(cfg Config) (*GameTree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &builder{
		cfg: cfg,
		tree: &GameTree{
			Board:    append([]cards.Card(nil), cfg.Board...),
			StartPot: cfg.Pot,
			Stack:    cfg.Stack,
		},
	}
	st := state{street: cfg.Street}
	st.sizing = b.sizingFor(st)
	b.decision(NoParent, "", nil, st)
	return b.tree, nil
}

func (b *builder) add(n Node) int32 {
	id := int32(len(b.tree.Nodes))
	n.ID = id
	if n.Kind != ActionNode {
		n.Player = -1
	}
	n.Folder = -1
	b.tree.Nodes = append(b.tree.Nodes, n)
	if n.Parent != NoParent {
		p := &b.tree.Nodes[n.Parent]
		p.Children = append(p.Children, id)
	}
	return id
}

func (b *builder) pot(st state) float64 {
	return b.cfg.Pot + st.invested[0] + st.invested[1]
}

// sizingFor picks the abstraction for st's street
func (b *builder) sizingFor(st state) StreetSizing {
	i := int(st.street) - int(b.cfg.Street)
	if i >= len(b.cfg.Sizing) {
		i = len(b.cfg.Sizing) - 1
	}
	s := b.cfg.Sizing[i]
	if !b.cfg.Geometric {
		return s
	}

	behind := b.cfg.Stack - st.invested[0]
	if other := b.cfg.Stack - st.invested[1]; other < behind {
		behind = other
	}
	pot := b.pot(st)
	n := len(s.BetSizes)
	if n == 0 {
		n = 1
	}
	g := NewGeometricSizing(pot+2*behind, int(notation.River-st.street)+1, behind)
	s.BetSizes = g.CalculateBetSizes(pot, n)
	return s
}

// decision adds an action node and everything below it
func (b *builder) decision(parent int32, label string, card *cards.Card, st state) int32 {
	n := Node{
		Parent:   parent,
		Label:    label,
		Kind:     ActionNode,
		Player:   int8(st.toAct),
		Street:   st.street,
		Pot:      b.pot(st),
		Invested: st.invested,
		Slot:     int32(len(b.tree.Slots[st.toAct])),
	}
	if card != nil {
		n.Card, n.HasCard = *card, true
	}
	id := b.add(n)
	b.tree.Slots[st.toAct] = append(b.tree.Slots[st.toAct], id)

	p := st.toAct
	bs := BetState{
		Pot:    n.Pot,
		ToCall: st.invested[1-p] - st.invested[p],
		Stack:  b.cfg.Stack - st.invested[p],
		Raises: st.raises,
	}
	for _, e := range GenerateActions(bs, st.sizing) {
		next := st
		next.invested[p] += e.Amount
		switch e.Action.Type {
		case notation.Fold:
			b.add(Node{
				Parent:   id,
				Label:    e.Label(),
				Kind:     TerminalNode,
				Street:   st.street,
				Pot:      n.Pot,
				Invested: st.invested,
				Terminal: Fold,
			})
			b.tree.Nodes[len(b.tree.Nodes)-1].Folder = int8(p)
		case notation.Check:
			if p == 1 {
				b.closeStreet(id, e.Label(), next)
			} else {
				next.toAct = 1
				b.decision(id, e.Label(), nil, next)
			}
		case notation.Call:
			b.closeStreet(id, e.Label(), next)
		default:
			if bs.ToCall > 0 {
				next.raises++
			}
			next.toAct = 1 - p
			b.decision(id, e.Label(), nil, next)
		}
	}
	return id
}

// closeStreet ends the betting round: deal the next card, or stop
func (b *builder) closeStreet(parent int32, label string, st state) {
	if st.street >= b.cfg.lastStreet() {
		kind := Continue
		if b.cfg.Final {
			kind = Showdown
		}
		b.add(Node{
			Parent:   parent,
			Label:    label,
			Kind:     TerminalNode,
			Street:   st.street,
			Pot:      b.pot(st),
			Invested: st.invested,
			Terminal: kind,
		})
		return
	}

	id := b.add(Node{
		Parent:   parent,
		Label:    label,
		Kind:     ChanceNode,
		Street:   st.street,
		Pot:      b.pot(st),
		Invested: st.invested,
	})

	allIn := st.invested[0] >= b.cfg.Stack-chipEpsilon || st.invested[1] >= b.cfg.Stack-chipEpsilon
	live := cards.Remaining(cards.MaskOf(b.cfg.Board...) | st.dealt)
	for _, c := range live {
		next := st
		next.street++
		next.dealt = st.dealt.Add(c)
		next.toAct = 0
		next.raises = 0
		if allIn {
			// Nobody can act; run the board out
			b.runout(id, c, next)
			continue
		}
		next.sizing = b.sizingFor(next)
		b.decision(id, c.String(), &c, next)
	}
}

// runout adds the node reached by dealing c when no betting is possible
func (b *builder) runout(parent int32, c cards.Card, st state) {
	if st.street >= b.cfg.lastStreet() {
		kind := Continue
		if b.cfg.Final {
			kind = Showdown
		}
		b.add(Node{
			Parent:   parent,
			Label:    c.String(),
			Kind:     TerminalNode,
			Street:   st.street,
			Pot:      b.pot(st),
			Invested: st.invested,
			Terminal: kind,
			Card:     c,
			HasCard:  true,
		})
		return
	}
	id := b.add(Node{
		Parent:   parent,
		Label:    c.String(),
		Kind:     ChanceNode,
		Street:   st.street,
		Pot:      b.pot(st),
		Invested: st.invested,
		Card:     c,
		HasCard:  true,
	})
	for _, r := range cards.Remaining(cards.MaskOf(b.cfg.Board...) | st.dealt) {
		next := st
		next.street++
		next.dealt = st.dealt.Add(r)
		b.runout(id, r, next)
	}
}
