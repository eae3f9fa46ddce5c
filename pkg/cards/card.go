package cards

import (
	"fmt"
	"math/bits"
	"strings"
)

// Rank represents a card rank (2-A)
type Rank uint8

const (
	Two Rank = iota
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// NumRanks is the number of distinct ranks
const NumRanks = 13

// Suit represents a card suit
type Suit uint8

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

// NumSuits is the number of distinct suits
const NumSuits = 4

// NumCards is the size of the deck
const NumCards = 52

// Card is a single playing card encoded as rank*4 + suit (0..51).
// The ordering of the encoding matches rank order, so comparing two cards
// compares ranks first.
type Card uint8

// NewCard creates a card from rank and suit
func NewCard(rank Rank, suit Suit) Card {
	return Card(uint8(rank)*NumSuits + uint8(suit))
}

// Rank returns the card's rank
func (c Card) Rank() Rank {
	return Rank(c / NumSuits)
}

// Suit returns the card's suit
func (c Card) Suit() Suit {
	return Suit(c % NumSuits)
}

// Valid reports whether c is one of the 52 deck cards
func (c Card) Valid() bool {
	return c < NumCards
}

// Mask returns the single-bit mask for this card
func (c Card) Mask() Mask {
	return Mask(1) << c
}

// ParseCard parses a card from string notation (e.g., "As", "Kh", "Td")
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) != 2 {
		return 0, fmt.Errorf("invalid card string: %q (must be 2 characters)", s)
	}

	rank, err := ParseRank(s[0])
	if err != nil {
		return 0, err
	}

	suit, err := parseSuit(s[1])
	if err != nil {
		return 0, err
	}

	return NewCard(rank, suit), nil
}

// ParseRank converts a character to a Rank
func ParseRank(b byte) (Rank, error) {
	switch b {
	case '2':
		return Two, nil
	case '3':
		return Three, nil
	case '4':
		return Four, nil
	case '5':
		return Five, nil
	case '6':
		return Six, nil
	case '7':
		return Seven, nil
	case '8':
		return Eight, nil
	case '9':
		return Nine, nil
	case 'T', 't':
		return Ten, nil
	case 'J', 'j':
		return Jack, nil
	case 'Q', 'q':
		return Queen, nil
	case 'K', 'k':
		return King, nil
	case 'A', 'a':
		return Ace, nil
	default:
		return 0, fmt.Errorf("invalid rank: %c", b)
	}
}

// parseSuit converts a character to a Suit
func parseSuit(b byte) (Suit, error) {
	switch b {
	case 's', 'S':
		return Spades, nil
	case 'h', 'H':
		return Hearts, nil
	case 'd', 'D':
		return Diamonds, nil
	case 'c', 'C':
		return Clubs, nil
	default:
		return 0, fmt.Errorf("invalid suit: %c", b)
	}
}

const rankChars = "23456789TJQKA"
const suitChars = "shdc"

// String returns the card in standard notation (e.g., "As", "Kh")
func (c Card) String() string {
	if !c.Valid() {
		return "??"
	}
	return c.Rank().String() + c.Suit().String()
}

// String returns the rank as a single character
func (r Rank) String() string {
	if r > Ace {
		return "?"
	}
	return rankChars[r : r+1]
}

// String returns the suit as a single character
func (s Suit) String() string {
	if s > Clubs {
		return "?"
	}
	return suitChars[s : s+1]
}

// ParseCards parses multiple cards from a string (e.g., "AsKhQd").
// Duplicate cards are rejected.
func ParseCards(s string) ([]Card, error) {
	s = strings.ReplaceAll(s, " ", "")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("invalid cards string: %q (must have even length)", s)
	}

	cards := make([]Card, 0, len(s)/2)
	var seen Mask
	for i := 0; i < len(s); i += 2 {
		card, err := ParseCard(s[i : i+2])
		if err != nil {
			return nil, fmt.Errorf("error parsing card at position %d: %w", i, err)
		}
		if seen.Has(card) {
			return nil, fmt.Errorf("duplicate card %s in %q", card, s)
		}
		seen = seen.Add(card)
		cards = append(cards, card)
	}

	return cards, nil
}

// FormatCards joins cards without separators ("Th9h2c")
func FormatCards(cs []Card) string {
	var sb strings.Builder
	sb.Grow(len(cs) * 2)
	for _, c := range cs {
		sb.WriteString(c.String())
	}
	return sb.String()
}

// Mask is a set of cards, one bit per card index
type Mask uint64

// MaskOf builds a mask from a list of cards
func MaskOf(cs ...Card) Mask {
	var m Mask
	for _, c := range cs {
		m |= c.Mask()
	}
	return m
}

// Has reports whether c is in the set
func (m Mask) Has(c Card) bool {
	return m&c.Mask() != 0
}

// Add returns the set with c added
func (m Mask) Add(c Card) Mask {
	return m | c.Mask()
}

// Count returns the number of cards in the set
func (m Mask) Count() int {
	return bits.OnesCount64(uint64(m))
}

// Cards lists the cards in the set in ascending index order
func (m Mask) Cards() []Card {
	out := make([]Card, 0, m.Count())
	for x := uint64(m); x != 0; x &= x - 1 {
		out = append(out, Card(bits.TrailingZeros64(x)))
	}
	return out
}

// Remaining lists every deck card not in dead, in ascending index order
func Remaining(dead Mask) []Card {
	out := make([]Card, 0, NumCards-dead.Count())
	for c := Card(0); c < NumCards; c++ {
		if !dead.Has(c) {
			out = append(out, c)
		}
	}
	return out
}
