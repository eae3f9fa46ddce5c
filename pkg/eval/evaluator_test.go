package eval

import (
	"errors"
	"testing"

	"github.com/behrlich/spot-solver/pkg/cards"
)

func mustParseCards(t testing.TB, s string) []cards.Card {
	t.Helper()
	cs, err := cards.ParseCards(s)
	if err != nil {
		t.Fatalf("ParseCards(%q): %v", s, err)
	}
	return cs
}

func mustEvaluate(t testing.TB, s string) Score {
	t.Helper()
	score, err := Evaluate(mustParseCards(t, s))
	if err != nil {
		t.Fatalf("Evaluate(%q): %v", s, err)
	}
	return score
}

func TestEvaluateOrdering(t *testing.T) {
	// Each winner must strictly beat its loser
	tests := []struct {
		name   string
		winner string
		loser  string
	}{
		{"aces over kings", "AsAdKs7d2c", "KsKdAs7d2c"},
		{"royal over quads", "AhKhQhJhTh", "AsAhAdAcKs"},
		{"quads over full house", "AsAhAdAcKs", "AsAhAdKsKh"},
		{"full house over flush", "AsAhAdKsKh", "AhKh9h5h2h"},
		{"flush over straight", "AhKh9h5h2h", "AhKdQcJsTs"},
		{"straight over trips", "AhKdQcJsTs", "AsAhAdKsQh"},
		{"wheel over trips", "Ah2d3c4s5h", "KsKhKdQsJh"},
		{"six high straight over wheel", "2d3c4s5h6d", "Ah2d3c4s5h"},
		{"two pair over pair", "AsAhKdKsQh", "AsAhKdQsJh"},
		{"pair over high card", "2s2hKdQsJh", "AhKd9s7c5h"},
		{"kicker", "AsAhKdQsJh", "AsAhKdQsTh"},
		{"seven cards, best five", "AsAhAdKsKh2d3c", "AsAhAdKsQh2d3c"},
		{"six cards", "AsAdKs7d2c3h", "KsKdAs7d2c3h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := mustEvaluate(t, tt.winner)
			l := mustEvaluate(t, tt.loser)
			if w <= l {
				t.Errorf("%s (%d) should beat %s (%d)", tt.winner, w, tt.loser, l)
			}
		})
	}
}

func TestEvaluateTies(t *testing.T) {
	// Same hand in different suits
	a := mustEvaluate(t, "AsKdQh9c7s")
	b := mustEvaluate(t, "AhKcQd9s7h")
	if a != b {
		t.Errorf("suit-only difference should tie: %d vs %d", a, b)
	}

	// Board plays for both
	c := mustEvaluate(t, "2c3dAhKhQhJhTh")
	d := mustEvaluate(t, "4c5dAhKhQhJhTh")
	if c != d {
		t.Errorf("board royal flush should tie: %d vs %d", c, d)
	}
}

func TestEvaluateSizesAgree(t *testing.T) {
	seven := mustParseCards(t, "AsAdKs7d2c3h9c")
	var a7 [7]cards.Card
	copy(a7[:], seven)

	got, err := Evaluate(seven)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != Evaluate7(&a7) {
		t.Errorf("Evaluate and Evaluate7 disagree: %d vs %d", got, Evaluate7(&a7))
	}

	// The best five of these seven is AsAdKs9c7d
	best := mustEvaluate(t, "AsAdKs9c7d")
	if got != best {
		t.Errorf("seven-card score %d, want best five-card score %d", got, best)
	}
}

func TestEvaluateInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		cards []cards.Card
	}{
		{"empty", nil},
		{"four cards", mustParseCards(t, "AsKsQsJs")},
		{"eight cards", mustParseCards(t, "AsKsQsJsTs9s8s7s")},
		{"duplicate", append(mustParseCards(t, "AsKsQsJs"), cards.NewCard(cards.Ace, cards.Spades))},
		{"unknown card", append(mustParseCards(t, "AsKsQsJs"), cards.Card(99))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.cards)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Evaluate(%v) error = %v, want ErrInvalidInput", tt.cards, err)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	desc, err := Describe(mustParseCards(t, "AsAhAdKsKh2d3c"))
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	pair, err := Describe(mustParseCards(t, "AsAh9dKs7c2d3c"))
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if desc == "" || desc == pair {
		t.Errorf("Describe gave %q for a full house and %q for a pair", desc, pair)
	}

	if _, err := Describe(mustParseCards(t, "AsAh")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Describe of two cards error = %v, want ErrInvalidInput", err)
	}
}

func TestShowdownTable(t *testing.T) {
	board := mustParseCards(t, "Ks7d2c9h4s")
	a := []cards.Combo{
		mustCombo(t, "AsAd"),
		mustCombo(t, "KdKh"),
		mustCombo(t, "Ks3d"), // blocked by the board
	}
	b := []cards.Combo{
		mustCombo(t, "QsQd"),
		mustCombo(t, "AhAc"),
		mustCombo(t, "AsQc"), // shares As with a[0]
	}

	table, err := NewShowdownTable(board, a, b)
	if err != nil {
		t.Fatalf("NewShowdownTable: %v", err)
	}

	tests := []struct {
		i, j int
		want int8
	}{
		{0, 0, Win},
		{0, 1, Tie},
		{0, 2, Blocked},
		{1, 0, Win},
		{1, 1, Win},
		{1, 2, Win},
		{2, 0, Blocked},
		{2, 1, Blocked},
	}
	for _, tt := range tests {
		if got := table.Outcome(tt.i, tt.j); got != tt.want {
			t.Errorf("Outcome(%v vs %v) = %d, want %d", a[tt.i], b[tt.j], got, tt.want)
		}
	}

	if _, err := NewShowdownTable(board[:4], a, b); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("four-card board error = %v, want ErrInvalidInput", err)
	}
}

func mustCombo(t testing.TB, s string) cards.Combo {
	t.Helper()
	c, err := cards.ParseCombo(s)
	if err != nil {
		t.Fatalf("ParseCombo(%q): %v", s, err)
	}
	return c
}

func BenchmarkEvaluate7(b *testing.B) {
	hands := []struct {
		name  string
		cards string
	}{
		{"Royal flush", "AhKhQhJhTh2d3c"},
		{"Full house", "AsAhAdKsKh2d3c"},
		{"Straight", "AhKdQcJsTs2h3c"},
		{"High card", "AhKd9s7c5h3d2s"},
	}

	for _, hand := range hands {
		var a [7]cards.Card
		copy(a[:], mustParseCards(b, hand.cards))
		b.Run(hand.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = Evaluate7(&a)
			}
		})
	}
}
