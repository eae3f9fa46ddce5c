package tree

import (
	"fmt"
	"math"
)

// GeometricSizing picks bet fractions that grow the pot by the same factor
// on every remaining street, so that betting and calling each street puts
// the stacks in by the river
type GeometricSizing struct {
	// TargetPot is the pot wanted after the last street (in BB)
	TargetPot float64

	// NumStreets is the number of betting rounds left, 1 on the river
	NumStreets int

	// AllIn is the chips behind; no size may exceed it
	AllIn float64
}

// NewGeometricSizing creates a geometric sizing calculator
func NewGeometricSizing(targetPot float64, numStreets int, allIn float64) *GeometricSizing {
	return &GeometricSizing{
		TargetPot:  targetPot,
		NumStreets: numStreets,
		AllIn:      allIn,
	}
}

// CalculateBetSize returns the geometric bet as a fraction of currentPot.
//
//	G = (target/current)^(1/streets)
//	pot after bet and call = current*(1+2f) = current*G
//	f = (G-1)/2
func (g *GeometricSizing) CalculateBetSize(currentPot float64) float64 {
	if g.NumStreets <= 0 || currentPot <= 0 || g.TargetPot <= currentPot {
		return 0
	}
	growth := math.Pow(g.TargetPot/currentPot, 1.0/float64(g.NumStreets))
	f := (growth - 1.0) / 2.0
	return g.capFraction(f, currentPot)
}

// CalculateBetSizes spreads numSizes fractions around the geometric size:
// one size is the geometric size itself, two are 0.75x and 1.25x, three are
// 0.66x, 1x and 1.5x, and more are spaced evenly from 0.5x to 1.5x.
func (g *GeometricSizing) CalculateBetSizes(currentPot float64, numSizes int) []float64 {
	if numSizes <= 0 {
		return []float64{}
	}
	geo := g.CalculateBetSize(currentPot)

	var ratios []float64
	switch numSizes {
	case 1:
		ratios = []float64{1}
	case 2:
		ratios = []float64{0.75, 1.25}
	case 3:
		ratios = []float64{0.66, 1, 1.5}
	default:
		ratios = make([]float64, numSizes)
		for i := range ratios {
			ratios[i] = 0.5 + float64(i)/float64(numSizes-1)
		}
	}

	sizes := make([]float64, numSizes)
	for i, r := range ratios {
		sizes[i] = g.capFraction(geo*r, currentPot)
	}
	return sizes
}

// capFraction keeps a fraction at or below an all-in
func (g *GeometricSizing) capFraction(f, currentPot float64) float64 {
	if f*currentPot > g.AllIn {
		return g.AllIn / currentPot
	}
	return f
}

// Validate checks if the geometric sizing parameters are valid
func (g *GeometricSizing) Validate() error {
	if g.TargetPot <= 0 {
		return fmt.Errorf("target pot must be positive, got %.2f", g.TargetPot)
	}
	if g.NumStreets < 1 || g.NumStreets > 3 {
		return fmt.Errorf("numStreets must be 1-3, got %d", g.NumStreets)
	}
	if g.AllIn <= 0 {
		return fmt.Errorf("allIn must be positive, got %.2f", g.AllIn)
	}
	return nil
}

// String returns a human-readable description of the geometric sizing
func (g *GeometricSizing) String() string {
	return fmt.Sprintf("GeometricSizing{target=%.1fbb, streets=%d, allIn=%.1fbb}",
		g.TargetPot, g.NumStreets, g.AllIn)
}
