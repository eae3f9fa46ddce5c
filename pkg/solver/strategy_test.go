package solver

import (
	"math"
	"testing"
)

func TestRegretMatching(t *testing.T) {
	tests := []struct {
		name   string
		regret []float32
		want   []float64
	}{
		{"positive only", []float32{5, 0}, []float64{1, 0}},
		{"proportional", []float32{3, 1}, []float64{0.75, 0.25}},
		{"negative ignored", []float32{-2, 2, 2}, []float64{0, 0.5, 0.5}},
		{"uniform fallback", []float32{0, 0, 0}, []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := regretMatch(tt.regret, nil)
			for a := range tt.want {
				if math.Abs(got[a]-tt.want[a]) > 1e-9 {
					t.Fatalf("regretMatch(%v) = %v, want %v", tt.regret, got, tt.want)
				}
			}
		})
	}
}

func TestFlatCFR_Layout(t *testing.T) {
	f := NewFlatCFR([]NodeShape{{Hands: 3, Actions: 2}, {Hands: 4, Actions: 3}})
	if f.NumSlots() != 2 {
		t.Fatalf("NumSlots() = %d, want 2", f.NumSlots())
	}
	if f.Len() != 3*2+4*3 {
		t.Errorf("Len() = %d, want %d", f.Len(), 18)
	}
	if got := f.Index(1, 2); got != 6+2*3 {
		t.Errorf("Index(1, 2) = %d, want 12", got)
	}
	if f.MemoryBytes() != 8*18 {
		t.Errorf("MemoryBytes() = %d, want %d", f.MemoryBytes(), 8*18)
	}
}

func TestFlatCFR_UniformDefault(t *testing.T) {
	f := NewFlatCFR([]NodeShape{{Hands: 1, Actions: 4}})
	for _, p := range f.CurrentStrategy(0, 0, nil) {
		if p != 0.25 {
			t.Fatalf("untrained strategy should be uniform, got %v", f.CurrentStrategy(0, 0, nil))
		}
	}
	for _, p := range f.AverageStrategy(0, 0, nil) {
		if p != 0.25 {
			t.Fatalf("untrained average should be uniform, got %v", f.AverageStrategy(0, 0, nil))
		}
	}
}

func TestFlatCFR_UpdateFloorsRegret(t *testing.T) {
	f := NewFlatCFR([]NodeShape{{Hands: 2, Actions: 3}})

	// Action 0 is always worst; its regret must stay at zero
	for i := 0; i < 50; i++ {
		vals := []float64{-10, float64(i % 3), 1}
		sigma := f.CurrentStrategy(0, 1, nil)
		v := 0.0
		for a := range vals {
			v += sigma[a] * vals[a]
		}
		f.Update(0, 1, vals, v, 1)

		for a, r := range f.Regret(0, 1) {
			if r < 0 {
				t.Fatalf("iteration %d: regret[%d] = %f is negative", i, a, r)
			}
		}
	}
	if r := f.Regret(0, 1)[0]; r != 0 {
		t.Errorf("dominated action regret = %f, want 0", r)
	}
	// Hand 0 was never touched
	for _, r := range f.Regret(0, 0) {
		if r != 0 {
			t.Errorf("untouched hand has regret %v", f.Regret(0, 0))
		}
	}
}

func TestFlatCFR_AverageWeightsPreUpdateStrategy(t *testing.T) {
	f := NewFlatCFR([]NodeShape{{Hands: 1, Actions: 2}})

	// First update uses the uniform strategy for the average
	f.Update(0, 0, []float64{1, 0}, 0.5, 2)
	avg := f.AverageStrategy(0, 0, nil)
	if avg[0] != 0.5 || avg[1] != 0.5 {
		t.Fatalf("average after one update = %v, want [0.5 0.5]", avg)
	}

	// Now the current strategy is pure action 0
	f.Update(0, 0, []float64{1, 0}, 1, 2)
	avg = f.AverageStrategy(0, 0, nil)
	if math.Abs(avg[0]-0.75) > 1e-6 {
		t.Errorf("average after two updates = %v, want [0.75 0.25]", avg)
	}
}

// Rock paper scissors: both players' averages converge to a third each
func TestFlatCFR_RockPaperScissors(t *testing.T) {
	payoff := [3][3]float64{
		{0, -1, 1},
		{1, 0, -1},
		{-1, 1, 0},
	}
	players := [2]*FlatCFR{
		NewFlatCFR([]NodeShape{{Hands: 1, Actions: 3}}),
		NewFlatCFR([]NodeShape{{Hands: 1, Actions: 3}}),
	}
	// Start away from equilibrium
	players[0].Update(0, 0, []float64{3, 0, 0}, 1, 0)

	for it := 0; it < 5000; it++ {
		p := it & 1
		opp := players[1-p].CurrentStrategy(0, 0, nil)
		mine := players[p].CurrentStrategy(0, 0, nil)
		vals := make([]float64, 3)
		v := 0.0
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				vals[a] += opp[b] * payoff[a][b]
			}
			v += mine[a] * vals[a]
		}
		players[p].Update(0, 0, vals, v, 1)
	}

	for p, f := range players {
		avg := f.AverageStrategy(0, 0, nil)
		for a, x := range avg {
			if math.Abs(x-1.0/3) > 0.02 {
				t.Errorf("player %d action %d average %.4f, want 0.333", p, a, x)
			}
		}
	}
}

func TestFlatCFR_CommitMatchesUpdate(t *testing.T) {
	shapes := []NodeShape{{Hands: 4, Actions: 2}}
	direct := NewFlatCFR(shapes)
	buffered := NewFlatCFR(shapes)

	steps := []struct {
		hand int
		vals []float64
	}{
		{0, []float64{1, -1}},
		{1, []float64{-2, 3}},
		{2, []float64{0.5, 0.5}},
		{3, []float64{4, 1}},
	}

	sigma := buffered.CurrentTable(nil)
	bufs := []*updateBuffer{{}, {}}
	for k, s := range steps {
		cur := direct.CurrentStrategy(0, s.hand, nil)
		v := cur[0]*s.vals[0] + cur[1]*s.vals[1]
		direct.Update(0, s.hand, s.vals, v, 0.5)

		base := buffered.Index(0, s.hand)
		bufs[k%2].add(base, sigma[base:base+2], s.vals, v, 0.5)
	}
	// Each hand is touched once, so the snapshot equals the live strategy
	buffered.commit(bufs)

	a := direct.AverageTable(nil)
	b := buffered.AverageTable(nil)
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > 1e-6 {
			t.Fatalf("entry %d: direct %f, buffered %f", i, a[i], b[i])
		}
	}
}

func TestFlatCFR_Clone(t *testing.T) {
	f := NewFlatCFR([]NodeShape{{Hands: 1, Actions: 2}})
	f.Update(0, 0, []float64{1, 0}, 0.5, 1)
	c := f.Clone()
	c.Update(0, 0, []float64{0, 5}, 0.5, 1)

	if f.Regret(0, 0)[1] != 0 {
		t.Errorf("updating the clone changed the original: %v", f.Regret(0, 0))
	}
}

func TestFlatCFR_TablesNormalized(t *testing.T) {
	f := NewFlatCFR([]NodeShape{{Hands: 5, Actions: 3}, {Hands: 2, Actions: 2}})
	for h := 0; h < 5; h++ {
		f.Update(0, h, []float64{float64(h), 1, -float64(h)}, 0, 1)
	}
	for _, table := range [][]float32{f.CurrentTable(nil), f.AverageTable(nil)} {
		for slot := 0; slot < f.NumSlots(); slot++ {
			s := f.Shape(slot)
			for h := 0; h < s.Hands; h++ {
				i := f.Index(slot, h)
				sum := 0.0
				for a := 0; a < s.Actions; a++ {
					sum += float64(table[i+a])
				}
				if math.Abs(sum-1) > 1e-6 {
					t.Errorf("slot %d hand %d sums to %f", slot, h, sum)
				}
			}
		}
	}
}

func TestFlatCFR_CommitOrderIndependent(t *testing.T) {
	shapes := []NodeShape{{Hands: 1, Actions: 2}}
	deltas := [][2]float64{{-10, 1}, {10, 1}, {3, 1}}
	orders := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	var first *FlatCFR
	for _, order := range orders {
		f := NewFlatCFR(shapes)
		sigma := []float32{0.5, 0.5}
		var bufs []*updateBuffer
		for _, k := range order {
			b := &updateBuffer{}
			// nodeValue 0, so each action's regret delta is its value
			b.add(0, sigma, deltas[k][:], 0, 1)
			bufs = append(bufs, b)
		}
		f.commit(bufs)

		if got := f.Regret(0, 0)[0]; math.Abs(float64(got)-3) > 1e-6 {
			t.Errorf("order %v: regret[0] = %f, want 3", order, got)
		}
		if got := f.Regret(0, 0)[1]; math.Abs(float64(got)-3) > 1e-6 {
			t.Errorf("order %v: regret[1] = %f, want 3", order, got)
		}
		if first == nil {
			first = f
			continue
		}
		a, b := first.AverageTable(nil), f.AverageTable(nil)
		for i := range a {
			if a[i] != b[i] {
				t.Errorf("order %v: average entry %d = %f, first order gave %f", order, i, b[i], a[i])
			}
		}
	}
}

func TestFlatCFR_CommitFloorsTotal(t *testing.T) {
	f := NewFlatCFR([]NodeShape{{Hands: 1, Actions: 2}})
	f.Update(0, 0, []float64{4, 0}, 0, 1)

	sigma := []float32{1, 0}
	a, b := &updateBuffer{}, &updateBuffer{}
	a.add(0, sigma, []float64{-7, 0}, 0, 1)
	b.add(0, sigma, []float64{1, 0}, 0, 1)
	f.commit([]*updateBuffer{a, b})

	// 4 - 7 + 1 < 0
	if got := f.Regret(0, 0)[0]; got != 0 {
		t.Errorf("regret = %f, want 0", got)
	}

	// scratch is clean for the next commit
	c := &updateBuffer{}
	c.add(0, sigma, []float64{2, 0}, 0, 1)
	f.commit([]*updateBuffer{c})
	if got := f.Regret(0, 0)[0]; math.Abs(float64(got)-2) > 1e-6 {
		t.Errorf("regret after second commit = %f, want 2", got)
	}
}
