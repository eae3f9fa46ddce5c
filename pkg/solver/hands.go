package solver

import (
	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/tree"
)

// handSet is one player's range with the lookups traversals need
type handSet struct {
	combos []cards.Combo
	masks  []cards.Mask
	index  map[cards.Combo]int
	byCard [cards.NumCards][]int32
}

// newHandSet keeps the combos of r that avoid the board. A nil range means
// every live combo.
func newHandSet(r []cards.Combo, board cards.Mask) *handSet {
	var combos []cards.Combo
	if r == nil {
		combos = cards.AllCombos(board)
	} else {
		combos = cards.FilterCombos(r, board)
	}
	h := &handSet{
		combos: combos,
		masks:  make([]cards.Mask, len(combos)),
		index:  make(map[cards.Combo]int, len(combos)),
	}
	for i, c := range combos {
		h.masks[i] = c.Mask()
		h.index[c] = i
		h.byCard[c.Hi] = append(h.byCard[c.Hi], int32(i))
		h.byCard[c.Lo] = append(h.byCard[c.Lo], int32(i))
	}
	return h
}

func (h *handSet) len() int { return len(h.combos) }

// pairs counts the compatible (mine, theirs) combo pairs
func pairs(mine, theirs *handSet) float64 {
	n := 0.0
	for _, m := range mine.masks {
		for _, o := range theirs.masks {
			if m&o == 0 {
				n++
			}
		}
	}
	return n
}

// shapes lays out player p's decision nodes for a flat array
func shapes(t *tree.GameTree, p, hands int) []NodeShape {
	out := make([]NodeShape, len(t.Slots[p]))
	for s, id := range t.Slots[p] {
		out[s] = NodeShape{Hands: hands, Actions: len(t.Nodes[id].Children)}
	}
	return out
}

// chanceWeight is the probability of one specific card at a chance node
// once the board and both players' holdings are removed from the deck
func chanceWeight(boardLen int) float64 {
	return 1 / float64(cards.NumCards-boardLen-4)
}
