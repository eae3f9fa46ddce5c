package tree

import (
	"strings"
	"testing"
)

func TestNode_Payoff(t *testing.T) {
	n := Node{
		Kind:     TerminalNode,
		Terminal: Showdown,
		Pot:      30,
		Invested: [2]float64{10, 10},
		Folder:   -1,
	}
	tests := []struct {
		p       int
		outcome int8
		want    float64
	}{
		{0, 1, 20},
		{0, -1, -10},
		{0, 0, 5},
		{1, 1, 20},
	}
	for _, tt := range tests {
		if got := n.Payoff(tt.p, tt.outcome); got != tt.want {
			t.Errorf("Payoff(%d, %d) = %.2f, want %.2f", tt.p, tt.outcome, got, tt.want)
		}
	}

	fold := Node{Kind: TerminalNode, Terminal: Fold, Pot: 15, Invested: [2]float64{5, 0}, Folder: 1}
	if got := fold.Payoff(1, 1); got != 0 {
		t.Errorf("folder payoff = %.2f, want 0", got)
	}
	if got := fold.Payoff(0, -1); got != 10 {
		t.Errorf("winner payoff = %.2f, want 10", got)
	}
}

func TestNode_String(t *testing.T) {
	tree := mustBuild(t, riverConfig(t))
	tests := []struct {
		node *Node
		want string
	}{
		{tree.Root(), "Decision{"},
		{walk(t, tree, "check", "check"), "Terminal{"},
	}
	for _, tt := range tests {
		if s := tt.node.String(); !strings.HasPrefix(s, tt.want) {
			t.Errorf("String() = %q, want prefix %q", s, tt.want)
		}
	}
}

func TestFromNodes(t *testing.T) {
	tree := mustBuild(t, riverConfig(t))
	nodes := append([]Node(nil), tree.Nodes...)

	back, err := FromNodes(nodes, tree.Board, tree.StartPot, tree.Stack)
	if err != nil {
		t.Fatalf("FromNodes: %v", err)
	}
	for p := 0; p < 2; p++ {
		if len(back.Slots[p]) != len(tree.Slots[p]) {
			t.Fatalf("player %d: %d slots, want %d", p, len(back.Slots[p]), len(tree.Slots[p]))
		}
		for i := range back.Slots[p] {
			if back.Slots[p][i] != tree.Slots[p][i] {
				t.Errorf("player %d slot %d = node %d, want %d", p, i, back.Slots[p][i], tree.Slots[p][i])
			}
		}
	}

	broken := append([]Node(nil), tree.Nodes...)
	broken[3].Parent = 7
	if _, err := FromNodes(broken, tree.Board, tree.StartPot, tree.Stack); err == nil {
		t.Error("expected error for a forward parent link")
	}
	if _, err := FromNodes(nil, nil, 1, 1); err == nil {
		t.Error("expected error for an empty tree")
	}
}
