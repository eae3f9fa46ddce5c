package notation

import (
	"fmt"
	"strconv"
	"strings"
)

// ActionType represents a poker action
type ActionType uint8

const (
	Check ActionType = iota
	Call
	Bet
	Raise
	Fold
	AllIn
)

// String returns the action type as a string
func (a ActionType) String() string {
	switch a {
	case Check:
		return "check"
	case Call:
		return "call"
	case Bet:
		return "bet"
	case Raise:
		return "raise"
	case Fold:
		return "fold"
	case AllIn:
		return "allin"
	default:
		return "unknown"
	}
}

// Action is one edge of the betting abstraction. Size is the pot
// percentage of a bet or raise and zero otherwise.
type Action struct {
	Type ActionType
	Size int
}

// Label returns the edge label used in game trees and action paths
// ("check", "bet_33", "raise_100", "allin")
func (a Action) Label() string {
	switch a.Type {
	case Bet, Raise:
		return a.Type.String() + "_" + strconv.Itoa(a.Size)
	default:
		return a.Type.String()
	}
}

// String returns the action in shorthand notation (e.g., "x", "c", "b33", "r100")
func (a Action) String() string {
	switch a.Type {
	case Check:
		return "x"
	case Call:
		return "c"
	case Bet:
		return "b" + strconv.Itoa(a.Size)
	case Raise:
		return "r" + strconv.Itoa(a.Size)
	case Fold:
		return "f"
	case AllIn:
		return "ai"
	default:
		return "?"
	}
}

// SizeClass converts a pot fraction to the integer percentage used in labels
func SizeClass(fraction float64) int {
	return int(fraction*100 + 0.5)
}

// Position represents a player's position at the table
type Position string

const (
	UTG Position = "UTG" // Under the gun
	HJ  Position = "HJ"  // Hijack
	CO  Position = "CO"  // Cutoff
	BTN Position = "BTN" // Button
	SB  Position = "SB"  // Small blind
	BB  Position = "BB"  // Big blind
)

// postflopOrder is the acting order after the flop; lower acts first
var postflopOrder = map[Position]int{SB: 0, BB: 1, UTG: 2, HJ: 3, CO: 4, BTN: 5}

// ParsePosition accepts a position name in any case
func ParsePosition(s string) (Position, error) {
	p := Position(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := postflopOrder[p]; !ok {
		return "", fmt.Errorf("unknown position %q", s)
	}
	return p, nil
}

// IsIPVs reports whether p acts after other on postflop streets
func (p Position) IsIPVs(other Position) bool {
	return postflopOrder[p] > postflopOrder[other]
}

// PotType is the preflop action that produced the pot
type PotType uint8

const (
	SRP      PotType = iota // single raised pot
	ThreeBet                // 3-bet pot
	FourBet                 // 4-bet pot
)

// String returns the pot type's short name
func (p PotType) String() string {
	switch p {
	case SRP:
		return "SRP"
	case ThreeBet:
		return "3BP"
	case FourBet:
		return "4BP"
	default:
		return "unknown"
	}
}

// PotAndStack returns the default pot and effective stack in big blinds
func (p PotType) PotAndStack() (pot, stack float64) {
	switch p {
	case ThreeBet:
		return 20, 80
	case FourBet:
		return 44, 56
	default:
		return 6, 97
	}
}

// ParsePotType accepts "SRP", "3BP" or "4BP" in any case
func ParsePotType(s string) (PotType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SRP":
		return SRP, nil
	case "3BP", "3BET":
		return ThreeBet, nil
	case "4BP", "4BET":
		return FourBet, nil
	default:
		return 0, fmt.Errorf("unknown pot type %q", s)
	}
}

// Street represents which betting round we're on
type Street uint8

const (
	Preflop Street = iota
	Flop
	Turn
	River
)

// String returns the street name
func (s Street) String() string {
	switch s {
	case Preflop:
		return "preflop"
	case Flop:
		return "flop"
	case Turn:
		return "turn"
	case River:
		return "river"
	default:
		return "unknown"
	}
}

// GetStreet determines the street based on board cards
func GetStreet(boardSize int) Street {
	switch boardSize {
	case 0:
		return Preflop
	case 3:
		return Flop
	case 4:
		return Turn
	case 5:
		return River
	default:
		return Preflop
	}
}
