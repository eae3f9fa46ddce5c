package tree

import (
	"math"
	"reflect"
	"testing"
)

func labelsOf(edges []Edge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.Label()
	}
	return out
}

func TestGenerateActions(t *testing.T) {
	tests := []struct {
		name   string
		state  BetState
		sizing StreetSizing
		want   []string
	}{
		{
			name:   "unopened, two sizes",
			state:  BetState{Pot: 10, Stack: 100},
			sizing: StreetSizing{BetSizes: []float64{0.33, 0.75}},
			want:   []string{"check", "bet_33", "bet_75"},
		},
		{
			name:   "unopened, add all-in",
			state:  BetState{Pot: 10, Stack: 100},
			sizing: StreetSizing{BetSizes: []float64{0.5}, AddAllIn: true},
			want:   []string{"check", "bet_50", "allin"},
		},
		{
			name:   "bet above stack clamps to one all-in",
			state:  BetState{Pot: 10, Stack: 6},
			sizing: StreetSizing{BetSizes: []float64{0.5, 0.75, 1.5}, AddAllIn: true},
			want:   []string{"check", "bet_50", "allin"},
		},
		{
			name:   "check only street",
			state:  BetState{Pot: 10, Stack: 100},
			sizing: StreetSizing{},
			want:   []string{"check"},
		},
		{
			name:   "no chips behind",
			state:  BetState{Pot: 10, Stack: 0},
			sizing: StreetSizing{BetSizes: []float64{0.5}, AddAllIn: true},
			want:   []string{"check"},
		},
		{
			name:   "facing a bet with raises",
			state:  BetState{Pot: 15, ToCall: 5, Stack: 100},
			sizing: StreetSizing{RaiseSizes: []float64{1.0}, MaxRaises: 1},
			want:   []string{"fold", "call", "raise_100"},
		},
		{
			name:   "raise cap reached",
			state:  BetState{Pot: 15, ToCall: 5, Stack: 100, Raises: 1},
			sizing: StreetSizing{RaiseSizes: []float64{1.0}, MaxRaises: 1, AddAllIn: true},
			want:   []string{"fold", "call"},
		},
		{
			name:   "raise above stack clamps",
			state:  BetState{Pot: 20, ToCall: 10, Stack: 30},
			sizing: StreetSizing{RaiseSizes: []float64{1.0, 2.0}, MaxRaises: 2, AddAllIn: true},
			want:   []string{"fold", "call", "allin"},
		},
		{
			name:   "call puts actor all-in",
			state:  BetState{Pot: 20, ToCall: 10, Stack: 6},
			sizing: StreetSizing{RaiseSizes: []float64{1.0}, MaxRaises: 2, AddAllIn: true},
			want:   []string{"fold", "call"},
		},
		{
			name:   "equal size classes collapse",
			state:  BetState{Pot: 10, Stack: 100},
			sizing: StreetSizing{BetSizes: []float64{0.33, 0.333}},
			want:   []string{"check", "bet_33"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := labelsOf(GenerateActions(tt.state, tt.sizing))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GenerateActions() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateActions_Amounts(t *testing.T) {
	edges := GenerateActions(BetState{Pot: 20, ToCall: 10, Stack: 100},
		StreetSizing{RaiseSizes: []float64{1.0}, MaxRaises: 1, AddAllIn: true})

	want := map[string]float64{
		"fold":      0,
		"call":      10,
		"raise_100": 40, // call 10, then a pot of 30
		"allin":     100,
	}
	if len(edges) != len(want) {
		t.Fatalf("got %v, want %d edges", labelsOf(edges), len(want))
	}
	for _, e := range edges {
		if math.Abs(e.Amount-want[e.Label()]) > 1e-9 {
			t.Errorf("%s amount = %.2f, want %.2f", e.Label(), e.Amount, want[e.Label()])
		}
	}

	call := GenerateActions(BetState{Pot: 20, ToCall: 10, Stack: 6}, StreetSizing{})
	if call[1].Amount != 6 {
		t.Errorf("short call amount = %.2f, want 6", call[1].Amount)
	}
}

func TestTemplateSizings(t *testing.T) {
	turn := TurnTemplateSizing()
	if !reflect.DeepEqual(turn.BetSizes, []float64{0.66}) || turn.MaxRaises != 1 {
		t.Errorf("turn template = %+v", turn)
	}
	river := RiverTemplateSizing()
	if !reflect.DeepEqual(river.BetSizes, []float64{0.5, 1.0}) || river.MaxRaises != 1 {
		t.Errorf("river template = %+v", river)
	}
	flop := FlopSizing()
	if flop.MaxRaises != 2 || !flop.AddAllIn {
		t.Errorf("flop sizing = %+v", flop)
	}
}
