package cards

import (
	"fmt"
	"strings"
)

// NumCombos is the number of distinct two-card holdings
const NumCombos = NumCards * (NumCards - 1) / 2

// Combo is a two-card holding. Hi always has the larger card index so
// AhKs and KsAh are the same value.
type Combo struct {
	Hi Card
	Lo Card
}

// NewCombo builds the canonical combo for two distinct cards
func NewCombo(a, b Card) Combo {
	if a < b {
		a, b = b, a
	}
	return Combo{Hi: a, Lo: b}
}

// ParseCombo parses a four-character holding ("AsKh")
func ParseCombo(s string) (Combo, error) {
	cs, err := ParseCards(strings.TrimSpace(s))
	if err != nil {
		return Combo{}, err
	}
	if len(cs) != 2 {
		return Combo{}, fmt.Errorf("invalid combo %q: need exactly 2 cards", s)
	}
	return NewCombo(cs[0], cs[1]), nil
}

// String returns the combo with the higher card first ("AsKh")
func (c Combo) String() string {
	return c.Hi.String() + c.Lo.String()
}

// Mask returns the two-card mask
func (c Combo) Mask() Mask {
	return c.Hi.Mask() | c.Lo.Mask()
}

// Conflicts reports whether the combo shares a card with m
func (c Combo) Conflicts(m Mask) bool {
	return c.Mask()&m != 0
}

// Overlaps reports whether two combos share a card
func (c Combo) Overlaps(o Combo) bool {
	return c.Mask()&o.Mask() != 0
}

// Index is a dense id in [0, NumCombos)
func (c Combo) Index() int {
	hi, lo := int(c.Hi), int(c.Lo)
	return hi*(hi-1)/2 + lo
}

// Suited reports whether both cards share a suit
func (c Combo) Suited() bool {
	return c.Hi.Suit() == c.Lo.Suit()
}

// Pair reports whether both cards share a rank
func (c Combo) Pair() bool {
	return c.Hi.Rank() == c.Lo.Rank()
}

// AllCombos enumerates every combo that does not touch dead, ordered by Index
func AllCombos(dead Mask) []Combo {
	out := make([]Combo, 0, NumCombos)
	for hi := Card(1); hi < NumCards; hi++ {
		if dead.Has(hi) {
			continue
		}
		for lo := Card(0); lo < hi; lo++ {
			if dead.Has(lo) {
				continue
			}
			out = append(out, Combo{Hi: hi, Lo: lo})
		}
	}
	return out
}

// FilterCombos drops combos that touch dead and removes duplicates,
// keeping the first occurrence order.
func FilterCombos(combos []Combo, dead Mask) []Combo {
	var seen [NumCombos]bool
	out := make([]Combo, 0, len(combos))
	for _, c := range combos {
		if c.Conflicts(dead) || seen[c.Index()] {
			continue
		}
		seen[c.Index()] = true
		out = append(out, c)
	}
	return out
}
