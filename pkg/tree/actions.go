package tree

import (
	"github.com/behrlich/spot-solver/pkg/notation"
)

// chipEpsilon is the smallest amount treated as a real bet
const chipEpsilon = 0.01

// StreetSizing is the action abstraction for one street
type StreetSizing struct {
	// BetSizes are pot fractions for an opening bet (0.33 = 33% pot)
	BetSizes []float64

	// RaiseSizes are fractions of the pot after calling. Raising f adds
	// toCall + f*(pot+toCall).
	RaiseSizes []float64

	// MaxRaises caps the raises per street; zero disables raising
	MaxRaises int

	// AddAllIn adds an all-in edge wherever betting or raising is allowed
	AddAllIn bool
}

// Edge is one legal action and the chips it adds for the actor
type Edge struct {
	Action notation.Action
	Amount float64
}

// Label returns the edge label used in trees and action paths
func (e Edge) Label() string {
	return e.Action.Label()
}

// BetState is what GenerateActions needs to know about a decision point
type BetState struct {
	Pot    float64 // total pot before the action
	ToCall float64 // chips the actor must add to call
	Stack  float64 // actor's chips behind
	Raises int     // raises already made this street
}

// GenerateActions lists the legal edges at a decision point. Any bet or
// raise at or above the actor's stack collapses into one allin edge and
// edges with equal labels appear once.
func GenerateActions(s BetState, cfg StreetSizing) []Edge {
	var edges []Edge
	seen := make(map[string]bool)
	add := func(e Edge) {
		l := e.Label()
		if seen[l] {
			return
		}
		seen[l] = true
		edges = append(edges, e)
	}
	allIn := Edge{Action: notation.Action{Type: notation.AllIn}, Amount: s.Stack}

	if s.ToCall <= 0 {
		add(Edge{Action: notation.Action{Type: notation.Check}})
		if s.Stack < chipEpsilon {
			return edges
		}
		for _, f := range cfg.BetSizes {
			amount := s.Pot * f
			if amount < chipEpsilon {
				continue
			}
			if amount >= s.Stack-chipEpsilon {
				add(allIn)
				continue
			}
			add(Edge{Action: notation.Action{Type: notation.Bet, Size: notation.SizeClass(f)}, Amount: amount})
		}
		if cfg.AddAllIn && len(cfg.BetSizes) > 0 {
			add(allIn)
		}
		return edges
	}

	add(Edge{Action: notation.Action{Type: notation.Fold}})
	call := s.ToCall
	if call > s.Stack {
		call = s.Stack
	}
	add(Edge{Action: notation.Action{Type: notation.Call}, Amount: call})

	// No raise when calling already puts the actor all-in or the cap is hit
	if s.Stack <= s.ToCall+chipEpsilon || s.Raises >= cfg.MaxRaises {
		return edges
	}
	potAfterCall := s.Pot + s.ToCall
	for _, f := range cfg.RaiseSizes {
		amount := s.ToCall + f*potAfterCall
		if amount >= s.Stack-chipEpsilon {
			add(allIn)
			continue
		}
		add(Edge{Action: notation.Action{Type: notation.Raise, Size: notation.SizeClass(f)}, Amount: amount})
	}
	if cfg.AddAllIn {
		add(allIn)
	}
	return edges
}

// DefaultRiverSizing is a river abstraction with two bet sizes and one raise
func DefaultRiverSizing() StreetSizing {
	return StreetSizing{
		BetSizes:   []float64{0.33, 0.75},
		RaiseSizes: []float64{1.0},
		MaxRaises:  1,
		AddAllIn:   true,
	}
}

// FlopSizing is the flop abstraction used by multi-street solves
func FlopSizing() StreetSizing {
	return StreetSizing{
		BetSizes:   []float64{0.33, 0.75},
		RaiseSizes: []float64{1.0},
		MaxRaises:  2,
		AddAllIn:   true,
	}
}

// TurnTemplateSizing is the turn abstraction embedded under flop solves
func TurnTemplateSizing() StreetSizing {
	return StreetSizing{
		BetSizes:   []float64{0.66},
		RaiseSizes: []float64{1.0},
		MaxRaises:  1,
	}
}

// RiverTemplateSizing is the river abstraction embedded under flop solves
func RiverTemplateSizing() StreetSizing {
	return StreetSizing{
		BetSizes:   []float64{0.5, 1.0},
		RaiseSizes: []float64{1.0},
		MaxRaises:  1,
	}
}
