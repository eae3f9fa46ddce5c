// Package eval scores 5, 6 and 7 card poker hands.
package eval

import (
	"github.com/paulhankin/poker"
	"github.com/pkg/errors"

	"github.com/behrlich/spot-solver/pkg/cards"
)

// ErrInvalidInput is returned for card sets that are not 5, 6 or 7
// distinct cards.
var ErrInvalidInput = errors.New("eval: invalid card set")

// Score orders hands: higher beats lower, equal ties
type Score int16

// table maps our card index to the library's card value
var table [cards.NumCards]poker.Card

var suitTable = [cards.NumSuits]poker.Suit{
	cards.Spades:   poker.Spade,
	cards.Hearts:   poker.Heart,
	cards.Diamonds: poker.Diamond,
	cards.Clubs:    poker.Club,
}

func init() {
	for c := cards.Card(0); c < cards.NumCards; c++ {
		pc, err := poker.MakeCard(suitTable[c.Suit()], libraryRank(c.Rank()))
		if err != nil {
			panic(errors.Wrapf(err, "building card table for %s", c))
		}
		table[c] = pc
	}
}

// libraryRank converts to the library's ranks where ace is 1 and king 13
func libraryRank(r cards.Rank) poker.Rank {
	if r == cards.Ace {
		return poker.Rank(1)
	}
	return poker.Rank(int(r) + 2)
}

// Evaluate5 scores exactly five cards without allocating
func Evaluate5(cs *[5]cards.Card) Score {
	var h [5]poker.Card
	for i, c := range cs {
		h[i] = table[c]
	}
	return Score(poker.Eval5(&h))
}

// Evaluate7 scores the best five-card hand out of seven without allocating
func Evaluate7(cs *[7]cards.Card) Score {
	var h [7]poker.Card
	for i, c := range cs {
		h[i] = table[c]
	}
	return Score(poker.Eval7(&h))
}

// evaluate6 takes the best of the six five-card subsets
func evaluate6(cs []cards.Card) Score {
	var best Score
	var h [5]poker.Card
	for skip := 0; skip < 6; skip++ {
		k := 0
		for i := 0; i < 6; i++ {
			if i == skip {
				continue
			}
			h[k] = table[cs[i]]
			k++
		}
		if s := Score(poker.Eval5(&h)); skip == 0 || s > best {
			best = s
		}
	}
	return best
}

// Evaluate scores a 5, 6 or 7 card set. Any other size, an unknown card or
// a duplicate returns an error wrapping ErrInvalidInput.
func Evaluate(cs []cards.Card) (Score, error) {
	if err := validate(cs); err != nil {
		return 0, err
	}

	switch len(cs) {
	case 5:
		var a [5]cards.Card
		copy(a[:], cs)
		return Evaluate5(&a), nil
	case 6:
		return evaluate6(cs), nil
	default:
		var a [7]cards.Card
		copy(a[:], cs)
		return Evaluate7(&a), nil
	}
}

// Hand scores two hole cards on a five-card board. The caller guarantees
// the seven cards are distinct.
func Hand(c cards.Combo, board *[5]cards.Card) Score {
	a := [7]cards.Card{c.Hi, c.Lo, board[0], board[1], board[2], board[3], board[4]}
	return Evaluate7(&a)
}

// Describe names the hand class of a 5, 6 or 7 card set
func Describe(cs []cards.Card) (string, error) {
	if err := validate(cs); err != nil {
		return "", err
	}
	h := make([]poker.Card, len(cs))
	for i, c := range cs {
		h[i] = table[c]
	}
	desc, err := poker.Describe(h)
	if err != nil {
		return "", errors.Wrapf(err, "describing %s", cards.FormatCards(cs))
	}
	return desc, nil
}

func validate(cs []cards.Card) error {
	if len(cs) < 5 || len(cs) > 7 {
		return errors.Wrapf(ErrInvalidInput, "got %d cards, need 5 to 7", len(cs))
	}
	var seen cards.Mask
	for _, c := range cs {
		if !c.Valid() {
			return errors.Wrapf(ErrInvalidInput, "unknown card %d", c)
		}
		if seen.Has(c) {
			return errors.Wrapf(ErrInvalidInput, "duplicate card %s", c)
		}
		seen = seen.Add(c)
	}
	return nil
}
