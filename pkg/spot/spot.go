// Package spot identifies a postflop situation and derives its cache key.
package spot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/notation"
)

// Spot is a heads-up postflop situation: the board, who is out of
// position, the pot and the effective stack, all in big blinds
type Spot struct {
	Board   []cards.Card
	OOP     notation.Position
	IP      notation.Position
	PotType notation.PotType
	Pot     float64
	Stack   float64
}

// New builds a spot with the pot type's default pot and stack. The two
// positions may be given in either order.
func New(board []cards.Card, a, b notation.Position, pt notation.PotType) (Spot, error) {
	if a == b {
		return Spot{}, fmt.Errorf("both players in %s", a)
	}
	oop, ip := a, b
	if oop.IsIPVs(ip) {
		oop, ip = ip, oop
	}
	pot, stack := pt.PotAndStack()
	s := Spot{
		Board:   append([]cards.Card(nil), board...),
		OOP:     oop,
		IP:      ip,
		PotType: pt,
		Pot:     pot,
		Stack:   stack,
	}
	return s, s.Validate()
}

// WithStakes overrides the pot and effective stack
func (s Spot) WithStakes(pot, stack float64) Spot {
	s.Pot, s.Stack = pot, stack
	return s
}

// Validate checks the board, positions and stakes
func (s Spot) Validate() error {
	switch len(s.Board) {
	case 3, 4, 5:
	default:
		return fmt.Errorf("board needs 3 to 5 cards, got %d", len(s.Board))
	}
	if cards.MaskOf(s.Board...).Count() != len(s.Board) {
		return fmt.Errorf("board %s repeats a card", cards.FormatCards(s.Board))
	}
	for _, c := range s.Board {
		if !c.Valid() {
			return fmt.Errorf("invalid card %d on board", c)
		}
	}
	if s.OOP == s.IP {
		return fmt.Errorf("both players in %s", s.OOP)
	}
	if s.OOP.IsIPVs(s.IP) {
		return fmt.Errorf("%s is not out of position against %s", s.OOP, s.IP)
	}
	if s.Pot <= 0 {
		return fmt.Errorf("pot must be positive, got %g", s.Pot)
	}
	if s.Stack < 0 {
		return fmt.Errorf("stack must not be negative, got %g", s.Stack)
	}
	return nil
}

// Street is the street the board reaches
func (s Spot) Street() notation.Street {
	return notation.GetStreet(len(s.Board))
}

// Canonical replaces the board by its suit-isomorphism representative. The
// suit map carries hands from the original board onto the canonical one.
func (s Spot) Canonical() (Spot, cards.SuitMap) {
	board, m := cards.CanonicalBoard(s.Board)
	s.Board = board
	return s, m
}

// Key identifies the spot's canonical form. Spots with equal keys share a
// solution; anything that changes the game changes the key.
func (s Spot) Key() string {
	c, _ := s.Canonical()
	return strings.Join([]string{
		c.Street().String(),
		cards.FormatCards(c.Board),
		string(c.OOP),
		string(c.IP),
		c.PotType.String(),
		"p" + formatChips(c.Pot),
		"s" + formatChips(c.Stack),
	}, "_")
}

// String is the key
func (s Spot) String() string {
	return s.Key()
}

func formatChips(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

// Parse reads a key produced by Key
func Parse(key string) (Spot, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 7 {
		return Spot{}, fmt.Errorf("spot key %q: want 7 fields, got %d", key, len(parts))
	}
	board, err := cards.ParseCards(parts[1])
	if err != nil {
		return Spot{}, fmt.Errorf("spot key %q: %w", key, err)
	}
	oop, err := notation.ParsePosition(parts[2])
	if err != nil {
		return Spot{}, fmt.Errorf("spot key %q: %w", key, err)
	}
	ip, err := notation.ParsePosition(parts[3])
	if err != nil {
		return Spot{}, fmt.Errorf("spot key %q: %w", key, err)
	}
	pt, err := notation.ParsePotType(parts[4])
	if err != nil {
		return Spot{}, fmt.Errorf("spot key %q: %w", key, err)
	}
	pot, err := parseChips(parts[5], "p")
	if err != nil {
		return Spot{}, fmt.Errorf("spot key %q: %w", key, err)
	}
	stack, err := parseChips(parts[6], "s")
	if err != nil {
		return Spot{}, fmt.Errorf("spot key %q: %w", key, err)
	}

	s := Spot{Board: board, OOP: oop, IP: ip, PotType: pt, Pot: pot, Stack: stack}
	if err := s.Validate(); err != nil {
		return Spot{}, fmt.Errorf("spot key %q: %w", key, err)
	}
	if got := s.Street().String(); got != parts[0] {
		return Spot{}, fmt.Errorf("spot key %q: board is a %s, not a %s", key, got, parts[0])
	}
	return s, nil
}

func parseChips(field, prefix string) (float64, error) {
	if !strings.HasPrefix(field, prefix) {
		return 0, fmt.Errorf("field %q lacks prefix %q", field, prefix)
	}
	return strconv.ParseFloat(field[len(prefix):], 64)
}
