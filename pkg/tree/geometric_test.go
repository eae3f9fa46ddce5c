package tree

import (
	"math"
	"testing"

	"github.com/behrlich/spot-solver/pkg/notation"
)

func TestGeometricSizing_CalculateBetSize(t *testing.T) {
	tests := []struct {
		name       string
		targetPot  float64
		numStreets int
		allIn      float64
		currentPot float64
		wantMin    float64
		wantMax    float64
	}{
		{"river: 10bb to 100bb in 1 street", 100, 1, 100, 10, 4.4, 4.6},
		{"turn: 10bb to 100bb in 2 streets", 100, 2, 100, 10, 1.0, 1.2},
		{"flop: 10bb to 100bb in 3 streets", 100, 3, 100, 10, 0.5, 0.7},
		{"all-in capped", 1000, 1, 50, 10, 4.9, 5.1},
		{"target already reached", 10, 2, 100, 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs := NewGeometricSizing(tt.targetPot, tt.numStreets, tt.allIn)
			f := gs.CalculateBetSize(tt.currentPot)
			if f < tt.wantMin || f > tt.wantMax {
				t.Errorf("CalculateBetSize() = %.3f, want between %.3f and %.3f", f, tt.wantMin, tt.wantMax)
			}

			// Uncapped sizes grow the pot by the per-street factor
			growth := math.Pow(tt.targetPot/tt.currentPot, 1.0/float64(tt.numStreets))
			if tt.currentPot*(growth-1)/2 <= tt.allIn && f > 0 {
				got := (tt.currentPot + 2*f*tt.currentPot) / tt.currentPot
				if math.Abs(got-growth) > 0.01 {
					t.Errorf("growth factor = %.3f, want %.3f", got, growth)
				}
			}
		})
	}
}

func TestGeometricSizing_CalculateBetSizes(t *testing.T) {
	gs := NewGeometricSizing(100, 2, 100)
	geo := gs.CalculateBetSize(10)

	for n := 1; n <= 5; n++ {
		sizes := gs.CalculateBetSizes(10, n)
		if len(sizes) != n {
			t.Fatalf("CalculateBetSizes(%d) returned %d sizes", n, len(sizes))
		}
		for i := 1; i < len(sizes); i++ {
			if sizes[i] <= sizes[i-1] {
				t.Errorf("sizes not ascending: %v", sizes)
				break
			}
		}
	}

	if mid := gs.CalculateBetSizes(10, 3)[1]; math.Abs(mid-geo) > 1e-9 {
		t.Errorf("middle size %.3f, want geometric size %.3f", mid, geo)
	}
	if got := gs.CalculateBetSizes(10, 0); len(got) != 0 {
		t.Errorf("CalculateBetSizes(0) = %v, want empty", got)
	}
}

func TestGeometricSizing_Validate(t *testing.T) {
	tests := []struct {
		name       string
		targetPot  float64
		numStreets int
		allIn      float64
		wantError  bool
	}{
		{"valid", 100, 2, 100, false},
		{"negative target pot", -10, 2, 100, true},
		{"zero target pot", 0, 2, 100, true},
		{"zero streets", 100, 0, 100, true},
		{"too many streets", 100, 4, 100, true},
		{"negative all-in", 100, 2, -10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewGeometricSizing(tt.targetPot, tt.numStreets, tt.allIn).Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

// Betting the geometric size and calling on every street gets the stacks
// in on the river
func TestGeometricSizing_ThreeStreets(t *testing.T) {
	pot, stack := 5.5, 97.5
	target := pot + 2*stack

	for streets := 3; streets >= 1; streets-- {
		behind := (target - pot) / 2
		f := NewGeometricSizing(target, streets, behind).CalculateBetSize(pot)
		t.Logf("%d streets left: pot=%.1fbb, bet=%.1fbb (%.0f%% pot)", streets, pot, f*pot, f*100)
		pot += 2 * f * pot
	}

	if math.Abs(pot-target) > 0.01*target {
		t.Errorf("final pot %.2fbb, want %.2fbb", pot, target)
	}
}

func TestBuild_GeometricRiverBetIsAllIn(t *testing.T) {
	tree, err := Build(Config{
		Street:    notation.River,
		Pot:       10,
		Stack:     45,
		Sizing:    []StreetSizing{{BetSizes: []float64{0.5}}},
		Streets:   1,
		Final:     true,
		Geometric: true,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// One street left, so the geometric bet is the whole stack
	labels := tree.Labels(0)
	want := []string{"check", "allin"}
	if len(labels) != len(want) || labels[0] != want[0] || labels[1] != want[1] {
		t.Errorf("root labels = %v, want %v", labels, want)
	}
}
