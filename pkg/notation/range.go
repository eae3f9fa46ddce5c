package notation

import (
	"fmt"
	"strings"

	"github.com/behrlich/spot-solver/pkg/cards"
)

// ParseRange expands range notation into distinct combos. Components are
// comma separated:
//   - "QQ", "AKs", "AKo": one hand class (6, 4 or 12 combos)
//   - "QQ+", "ATs+": the class and every stronger one with the same top card
//   - "KK-JJ", "22-55", "A5s-A2s": every class between the ends, either order
//   - "AhKh": one explicit combo
//
// Overlapping components are merged so every combo appears once.
func ParseRange(rangeStr string) ([]cards.Combo, error) {
	rangeStr = strings.TrimSpace(rangeStr)
	if rangeStr == "" {
		return nil, fmt.Errorf("empty range string")
	}

	var out []cards.Combo
	for _, part := range strings.Split(rangeStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		combos, err := parseComponent(part)
		if err != nil {
			return nil, fmt.Errorf("range component %q: %w", part, err)
		}
		out = append(out, combos...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("range %q names no hands", rangeStr)
	}
	return cards.FilterCombos(out, 0), nil
}

func parseComponent(part string) ([]cards.Combo, error) {
	var classes []HandClass
	switch {
	case len(part) == 4 && !strings.ContainsAny(part, "+-"):
		c, err := cards.ParseCombo(part)
		if err != nil {
			return nil, err
		}
		return []cards.Combo{c}, nil

	case strings.HasSuffix(part, "+"):
		h, err := ParseHandClass(strings.TrimSuffix(part, "+"))
		if err != nil {
			return nil, err
		}
		classes = h.andBetter()

	case strings.Contains(part, "-"):
		ends := strings.Split(part, "-")
		if len(ends) != 2 {
			return nil, fmt.Errorf("want exactly one dash")
		}
		a, err := ParseHandClass(ends[0])
		if err != nil {
			return nil, err
		}
		b, err := ParseHandClass(ends[1])
		if err != nil {
			return nil, err
		}
		if classes, err = between(a, b); err != nil {
			return nil, err
		}

	default:
		h, err := ParseHandClass(part)
		if err != nil {
			return nil, err
		}
		classes = []HandClass{h}
	}

	var out []cards.Combo
	for _, h := range classes {
		out = append(out, h.Combos()...)
	}
	return out, nil
}

// ParseHandClass reads "QQ", "AKs" or "AKo". The ranks may come in either
// order; a non-pair needs its suitedness.
func ParseHandClass(s string) (HandClass, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || len(s) > 3 {
		return HandClass{}, fmt.Errorf("invalid hand class %q", s)
	}
	r1, err := cards.ParseRank(s[0])
	if err != nil {
		return HandClass{}, err
	}
	r2, err := cards.ParseRank(s[1])
	if err != nil {
		return HandClass{}, err
	}
	if r1 < r2 {
		r1, r2 = r2, r1
	}
	h := HandClass{High: r1, Low: r2}

	if len(s) == 2 {
		if r1 != r2 {
			return HandClass{}, fmt.Errorf("hand class %q needs s or o", s)
		}
		return h, nil
	}
	if r1 == r2 {
		return HandClass{}, fmt.Errorf("pair %q takes no suitedness", s)
	}
	switch s[2] {
	case 's', 'S':
		h.Suited = true
	case 'o', 'O':
	default:
		return HandClass{}, fmt.Errorf("invalid suitedness %q in %q", s[2], s)
	}
	return h, nil
}

// andBetter is "h+": pairs up to aces, otherwise kickers up to one below
// the top card
func (h HandClass) andBetter() []HandClass {
	top := h.High
	if h.High != h.Low {
		top = h.High - 1
	}
	var out []HandClass
	for r := h.Low; r <= top; r++ {
		c := HandClass{High: h.High, Low: r, Suited: h.Suited}
		if h.High == h.Low {
			c.High = r
		}
		out = append(out, c)
	}
	return out
}

// between is "a-b": pairs between two pairs, or kickers between two hands
// sharing a top card and suitedness
func between(a, b HandClass) ([]HandClass, error) {
	pair := a.High == a.Low
	switch {
	case pair != (b.High == b.Low):
		return nil, fmt.Errorf("cannot span a pair and a non-pair")
	case !pair && a.High != b.High:
		return nil, fmt.Errorf("ends %s and %s have different top cards", a, b)
	case !pair && a.Suited != b.Suited:
		return nil, fmt.Errorf("ends %s and %s differ in suitedness", a, b)
	}
	lo, hi := a.Low, b.Low
	if lo > hi {
		lo, hi = hi, lo
	}
	var out []HandClass
	for r := lo; r <= hi; r++ {
		c := HandClass{High: a.High, Low: r, Suited: a.Suited}
		if pair {
			c.High = r
		}
		out = append(out, c)
	}
	return out, nil
}

// HandClass is one of the 169 strategically distinct starting hands
type HandClass struct {
	High   cards.Rank
	Low    cards.Rank
	Suited bool
}

// String returns the class in range notation ("AA", "AKs", "72o")
func (h HandClass) String() string {
	if h.High == h.Low {
		return h.High.String() + h.Low.String()
	}
	if h.Suited {
		return h.High.String() + h.Low.String() + "s"
	}
	return h.High.String() + h.Low.String() + "o"
}

// Combos lists the concrete holdings of the class
func (h HandClass) Combos() []cards.Combo {
	out := make([]cards.Combo, 0, h.NumCombos())
	for s1 := cards.Suit(0); s1 < cards.NumSuits; s1++ {
		for s2 := cards.Suit(0); s2 < cards.NumSuits; s2++ {
			switch {
			case h.High == h.Low && s2 <= s1:
				continue
			case h.High != h.Low && h.Suited != (s1 == s2):
				continue
			}
			out = append(out, cards.NewCombo(cards.NewCard(h.High, s1), cards.NewCard(h.Low, s2)))
		}
	}
	return out
}

// NumCombos is 6 for pairs, 4 for suited and 12 for offsuit hands
func (h HandClass) NumCombos() int {
	switch {
	case h.High == h.Low:
		return 6
	case h.Suited:
		return 4
	default:
		return 12
	}
}

// AllHandClasses lists the 169 classes: pairs from AA down, then suited
// and offsuit hands by descending high card and kicker
func AllHandClasses() []HandClass {
	out := make([]HandClass, 0, 169)
	for r := cards.Ace; ; r-- {
		out = append(out, HandClass{High: r, Low: r})
		if r == cards.Two {
			break
		}
	}
	for _, suited := range []bool{true, false} {
		for hi := cards.Ace; hi > cards.Two; hi-- {
			for lo := hi - 1; ; lo-- {
				out = append(out, HandClass{High: hi, Low: lo, Suited: suited})
				if lo == cards.Two {
					break
				}
			}
		}
	}
	return out
}
