package cards

import "sort"

// SuitMap relabels suits: m[s] is the suit that s becomes
type SuitMap [NumSuits]Suit

// IdentitySuitMap leaves every suit unchanged
func IdentitySuitMap() SuitMap {
	return SuitMap{Spades, Hearts, Diamonds, Clubs}
}

// Card applies the relabeling to a card
func (m SuitMap) Card(c Card) Card {
	return NewCard(c.Rank(), m[c.Suit()])
}

// Combo applies the relabeling to both cards of a combo
func (m SuitMap) Combo(c Combo) Combo {
	return NewCombo(m.Card(c.Hi), m.Card(c.Lo))
}

// Cards applies the relabeling to a slice, returning a new slice
func (m SuitMap) Cards(cs []Card) []Card {
	out := make([]Card, len(cs))
	for i, c := range cs {
		out[i] = m.Card(c)
	}
	return out
}

// Inverse returns the map that undoes m
func (m SuitMap) Inverse() SuitMap {
	var inv SuitMap
	for s, t := range m {
		inv[t] = Suit(s)
	}
	return inv
}

var suitPermutations = buildPermutations()

func buildPermutations() []SuitMap {
	var out []SuitMap
	var perm SuitMap
	var used [NumSuits]bool
	var rec func(i int)
	rec = func(i int) {
		if i == NumSuits {
			out = append(out, perm)
			return
		}
		for s := Suit(0); s < NumSuits; s++ {
			if used[s] {
				continue
			}
			used[s] = true
			perm[i] = s
			rec(i + 1)
			used[s] = false
		}
	}
	rec(0)
	return out
}

// SortDescending orders cards by rank, then suit, highest first
func SortDescending(cs []Card) {
	sort.Slice(cs, func(i, j int) bool { return cs[i] > cs[j] })
}

// CanonicalBoard returns the representative of the board's suit-isomorphism
// class together with the suit map that carries the input onto it.
// Boards that differ only by a relabeling of suits produce the same
// canonical board. Card order in the input does not matter.
func CanonicalBoard(board []Card) ([]Card, SuitMap) {
	best := make([]Card, len(board))
	bestMap := IdentitySuitMap()
	cand := make([]Card, len(board))
	first := true

	for _, perm := range suitPermutations {
		for i, c := range board {
			cand[i] = perm.Card(c)
		}
		SortDescending(cand)
		if first || lessCards(cand, best) {
			copy(best, cand)
			bestMap = perm
			first = false
		}
	}

	return best, bestMap
}

// lessCards compares two equal-length sorted boards lexicographically
func lessCards(a, b []Card) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
