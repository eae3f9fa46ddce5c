package tree

import (
	"fmt"

	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/notation"
)

// Kind tags what a node does during traversal
type Kind uint8

const (
	ActionNode Kind = iota
	ChanceNode
	TerminalNode
)

func (k Kind) String() string {
	switch k {
	case ActionNode:
		return "action"
	case ChanceNode:
		return "chance"
	case TerminalNode:
		return "terminal"
	default:
		return "unknown"
	}
}

// TerminalKind says how a terminal node resolves
type TerminalKind uint8

const (
	NotTerminal TerminalKind = iota
	Fold                     // one player folded; Folder lost
	Showdown                 // hands are compared on the final board
	Continue                 // street closed; play continues in another tree
)

func (k TerminalKind) String() string {
	switch k {
	case Fold:
		return "fold"
	case Showdown:
		return "showdown"
	case Continue:
		return "continue"
	default:
		return "none"
	}
}

// NoParent marks the root
const NoParent int32 = -1

// Node is one vertex of the arena tree. Player 0 is out of position and
// acts first on every street; player 1 is in position.
type Node struct {
	ID     int32
	Parent int32
	Label  string // label of the edge from Parent
	Kind   Kind

	Player int8 // acting player at action nodes, -1 otherwise
	Street notation.Street

	// Pot is the total pot at this node, including what was in it when the
	// tree started. Invested is what each player added inside this tree.
	Pot      float64
	Invested [2]float64

	Children []int32

	Card     cards.Card // card dealt on the edge into this node, if any
	HasCard  bool
	Terminal TerminalKind
	Folder   int8

	// Slot is the dense per-player index of an action node; it addresses
	// the node inside the player's flat regret arrays.
	Slot int32
}

// AllIn reports whether either player has no chips behind at this node
func (n *Node) AllIn(stack float64) bool {
	return n.Invested[0] >= stack-chipEpsilon || n.Invested[1] >= stack-chipEpsilon
}

// Payoff returns player p's value at a terminal node, measured from the
// start of the tree. outcome is +1/0/-1 from p's point of view and is
// ignored for folds. The two players' payoffs always sum to the starting
// pot.
func (n *Node) Payoff(p int, outcome int8) float64 {
	switch n.Terminal {
	case Fold:
		if int(n.Folder) == p {
			return -n.Invested[p]
		}
		return n.Pot - n.Invested[p]
	default:
		switch {
		case outcome > 0:
			return n.Pot - n.Invested[p]
		case outcome < 0:
			return -n.Invested[p]
		default:
			return n.Pot/2 - n.Invested[p]
		}
	}
}

// String returns a human-readable representation of the node
func (n *Node) String() string {
	switch n.Kind {
	case TerminalNode:
		return fmt.Sprintf("Terminal{id=%d, %s, pot=%.2fbb, invested=[%.2f, %.2f]}",
			n.ID, n.Terminal, n.Pot, n.Invested[0], n.Invested[1])
	case ChanceNode:
		return fmt.Sprintf("Chance{id=%d, %s, pot=%.2fbb, cards=%d}", n.ID, n.Street, n.Pot, len(n.Children))
	default:
		return fmt.Sprintf("Decision{id=%d, player=%d, %s, pot=%.2fbb, actions=%d}",
			n.ID, n.Player, n.Street, n.Pot, len(n.Children))
	}
}

// GameTree is an arena of nodes. Node i lives at Nodes[i] and the root is
// node 0.
type GameTree struct {
	Nodes    []Node
	Board    []cards.Card // board at the root
	StartPot float64
	Stack    float64 // effective stack behind at the root

	// Slots maps each player's dense slot index to a node id
	Slots [2][]int32
}

// Root returns the root node
func (t *GameTree) Root() *Node {
	return &t.Nodes[0]
}

// Node returns the node with the given id
func (t *GameTree) Node(id int32) *Node {
	return &t.Nodes[id]
}

// Len returns the number of nodes
func (t *GameTree) Len() int {
	return len(t.Nodes)
}

// NumSlots returns how many action nodes belong to player p
func (t *GameTree) NumSlots(p int) int {
	return len(t.Slots[p])
}

// Child returns the child of id reached by label
func (t *GameTree) Child(id int32, label string) (int32, bool) {
	for _, c := range t.Nodes[id].Children {
		if t.Nodes[c].Label == label {
			return c, true
		}
	}
	return 0, false
}

// Labels lists the outgoing edge labels of id in child order
func (t *GameTree) Labels(id int32) []string {
	out := make([]string, len(t.Nodes[id].Children))
	for i, c := range t.Nodes[id].Children {
		out[i] = t.Nodes[c].Label
	}
	return out
}

// Path returns the labels from the root to id
func (t *GameTree) Path(id int32) []string {
	var rev []string
	for n := &t.Nodes[id]; n.Parent != NoParent; n = &t.Nodes[n.Parent] {
		rev = append(rev, n.Label)
	}
	out := make([]string, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}

// BoardAt returns the board at node id: the root board plus every card
// dealt on the way down.
func (t *GameTree) BoardAt(id int32) []cards.Card {
	var dealt []cards.Card
	for n := &t.Nodes[id]; n.Parent != NoParent; n = &t.Nodes[n.Parent] {
		if n.HasCard {
			dealt = append(dealt, n.Card)
		}
	}
	out := append([]cards.Card(nil), t.Board...)
	for i := len(dealt) - 1; i >= 0; i-- {
		out = append(out, dealt[i])
	}
	return out
}

// Stats counts nodes by kind
type Stats struct {
	Action, Chance, Terminal int
	Slots                    [2]int
}

// Stats returns node counts for logging
func (t *GameTree) Stats() Stats {
	var s Stats
	for i := range t.Nodes {
		switch t.Nodes[i].Kind {
		case ActionNode:
			s.Action++
		case ChanceNode:
			s.Chance++
		case TerminalNode:
			s.Terminal++
		}
	}
	s.Slots = [2]int{len(t.Slots[0]), len(t.Slots[1])}
	return s
}

// FromNodes rebuilds a tree from a flat node list, as read back from a
// store. Slots are recomputed from the nodes.
func FromNodes(nodes []Node, board []cards.Card, startPot, stack float64) (*GameTree, error) {
	t := &GameTree{Nodes: nodes, Board: board, StartPot: startPot, Stack: stack}
	for i := range nodes {
		n := &nodes[i]
		if n.ID != int32(i) {
			return nil, fmt.Errorf("node %d has id %d", i, n.ID)
		}
		if i == 0 && n.Parent != NoParent {
			return nil, fmt.Errorf("root has parent %d", n.Parent)
		}
		if i > 0 && (n.Parent < 0 || int(n.Parent) >= i) {
			return nil, fmt.Errorf("node %d has invalid parent %d", i, n.Parent)
		}
		for _, c := range n.Children {
			if c <= n.ID || int(c) >= len(nodes) || nodes[c].Parent != n.ID {
				return nil, fmt.Errorf("node %d has invalid child %d", i, c)
			}
		}
		if n.Kind == ActionNode {
			if n.Player != 0 && n.Player != 1 {
				return nil, fmt.Errorf("action node %d has player %d", i, n.Player)
			}
			if int(n.Slot) != len(t.Slots[n.Player]) {
				return nil, fmt.Errorf("action node %d has slot %d, want %d", i, n.Slot, len(t.Slots[n.Player]))
			}
			t.Slots[n.Player] = append(t.Slots[n.Player], n.ID)
		}
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("empty tree")
	}
	return t, nil
}
