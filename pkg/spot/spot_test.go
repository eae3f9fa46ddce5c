package spot

import (
	"testing"

	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/notation"
)

func mustBoard(t testing.TB, s string) []cards.Card {
	t.Helper()
	b, err := cards.ParseCards(s)
	if err != nil {
		t.Fatalf("ParseCards(%q): %v", s, err)
	}
	return b
}

func mustSpot(t testing.TB, board string, a, b notation.Position, pt notation.PotType) Spot {
	t.Helper()
	s, err := New(mustBoard(t, board), a, b, pt)
	if err != nil {
		t.Fatalf("New(%s, %s, %s): %v", board, a, b, err)
	}
	return s
}

func TestNew_OrdersPositions(t *testing.T) {
	s := mustSpot(t, "Th9h2c", notation.BTN, notation.BB, notation.SRP)
	if s.OOP != notation.BB || s.IP != notation.BTN {
		t.Errorf("OOP %s IP %s, want BB and BTN", s.OOP, s.IP)
	}
	if s.Pot != 6 || s.Stack != 97 {
		t.Errorf("SRP stakes %g/%g, want 6/97", s.Pot, s.Stack)
	}

	s = mustSpot(t, "Th9h2c", notation.SB, notation.CO, notation.ThreeBet)
	if s.OOP != notation.SB || s.IP != notation.CO {
		t.Errorf("OOP %s IP %s, want SB and CO", s.OOP, s.IP)
	}
	if s.Pot != 20 || s.Stack != 80 {
		t.Errorf("3BP stakes %g/%g, want 20/80", s.Pot, s.Stack)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name  string
		board []cards.Card
		a, b  notation.Position
	}{
		{"same position", mustBoard(t, "Th9h2c"), notation.BB, notation.BB},
		{"two cards", mustBoard(t, "Th9h"), notation.BTN, notation.BB},
		{"six cards", mustBoard(t, "Th9h2c3d4s5h"), notation.BTN, notation.BB},
		{"duplicate", append(mustBoard(t, "Th9h2c"), cards.NewCard(cards.Ten, cards.Hearts)), notation.BTN, notation.BB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.board, tt.a, tt.b, notation.SRP); err == nil {
				t.Error("expected an error")
			}
		})
	}

	s := mustSpot(t, "Th9h2c", notation.BTN, notation.BB, notation.SRP)
	if err := s.WithStakes(0, 100).Validate(); err == nil {
		t.Error("zero pot should not validate")
	}
	if err := s.WithStakes(10, -1).Validate(); err == nil {
		t.Error("negative stack should not validate")
	}
}

func TestKey_Format(t *testing.T) {
	s := mustSpot(t, "Kh9s4c7d2s", notation.BTN, notation.BB, notation.SRP)
	c, _ := s.Canonical()
	want := "river_" + cards.FormatCards(c.Board) + "_BB_BTN_SRP_p6_s97"
	if got := s.Key(); got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}

	// Shortest exact formatting of the stakes
	s = s.WithStakes(6.5, 96.75)
	if got := s.Key(); got != "river_"+cards.FormatCards(c.Board)+"_BB_BTN_SRP_p6.5_s96.75" {
		t.Errorf("Key() = %q", got)
	}
}

func TestKey_SuitIsomorphicBoardsShare(t *testing.T) {
	tests := []struct{ a, b string }{
		{"Th9h2c", "Ts9s2d"},
		{"Th9h2c", "2cTh9h"},
		{"AsKsQs7d", "AhKhQh7c"},
		{"AhKd7c4s2h", "AsKc7h4d2s"},
	}
	for _, tt := range tests {
		a := mustSpot(t, tt.a, notation.BTN, notation.BB, notation.SRP)
		b := mustSpot(t, tt.b, notation.BTN, notation.BB, notation.SRP)
		if a.Key() != b.Key() {
			t.Errorf("%s and %s have keys %q and %q", tt.a, tt.b, a.Key(), b.Key())
		}
	}
}

func TestKey_Injective(t *testing.T) {
	base := mustSpot(t, "Th9h2c", notation.BTN, notation.BB, notation.SRP)
	variants := []Spot{
		base,
		mustSpot(t, "Th9c2h", notation.BTN, notation.BB, notation.SRP),
		mustSpot(t, "Th9h2c", notation.CO, notation.BB, notation.SRP),
		mustSpot(t, "Th9h2c", notation.BTN, notation.SB, notation.SRP),
		mustSpot(t, "Th9h2c", notation.BTN, notation.BB, notation.ThreeBet),
		base.WithStakes(7, 97),
		base.WithStakes(6, 96),
		base.WithStakes(6, 97.0000001),
		mustSpot(t, "Th9h2c3d", notation.BTN, notation.BB, notation.SRP),
	}
	seen := make(map[string]int)
	for i, v := range variants {
		k := v.Key()
		if j, ok := seen[k]; ok {
			t.Errorf("variants %d and %d share key %q", j, i, k)
		}
		seen[k] = i
	}
}

func TestCanonical_SuitMapCarriesHands(t *testing.T) {
	s := mustSpot(t, "Ts9s2d", notation.BTN, notation.BB, notation.SRP)
	c, m := s.Canonical()

	// Mapping the original board through the suit map gives the canonical one
	mapped := m.Cards(s.Board)
	cards.SortDescending(mapped)
	if cards.FormatCards(mapped) != cards.FormatCards(c.Board) {
		t.Errorf("suit map sends %s to %s, canonical is %s",
			cards.FormatCards(s.Board), cards.FormatCards(mapped), cards.FormatCards(c.Board))
	}
	if c.Key() != s.Key() {
		t.Error("canonicalizing changed the key")
	}
}

func TestParse_RoundTrip(t *testing.T) {
	spots := []Spot{
		mustSpot(t, "Th9h2c", notation.BTN, notation.BB, notation.SRP),
		mustSpot(t, "AsKsQs7d", notation.SB, notation.BTN, notation.FourBet),
		mustSpot(t, "Kh9s4c7d2s", notation.UTG, notation.BB, notation.SRP).WithStakes(5.5, 100.25),
	}
	for _, s := range spots {
		p, err := Parse(s.Key())
		if err != nil {
			t.Fatalf("Parse(%q): %v", s.Key(), err)
		}
		if p.Key() != s.Key() {
			t.Errorf("round trip of %q gave %q", s.Key(), p.Key())
		}
	}
}

func TestParse_Errors(t *testing.T) {
	bad := []string{
		"",
		"flop_Th9h2c_BB_BTN_SRP_p6",
		"turn_Th9h2c_BB_BTN_SRP_p6_s97",
		"flop_Th9h2c_BB_XX_SRP_p6_s97",
		"flop_Th9h2c_BB_BTN_5BP_p6_s97",
		"flop_Th9h2c_BB_BTN_SRP_6_s97",
		"flop_Th9h2c_BB_BTN_SRP_p6_sabc",
		"flop_Th9h2c_BTN_BB_SRP_p6_s97",
	}
	for _, k := range bad {
		if _, err := Parse(k); err == nil {
			t.Errorf("Parse(%q) should fail", k)
		}
	}
}
