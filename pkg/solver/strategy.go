package solver

import (
	"fmt"
)

// NodeShape is the size of one decision node in a flat array: how many
// hands (combos or buckets) can be held there and how many actions leave it
type NodeShape struct {
	Hands   int
	Actions int
}

// FlatCFR holds one player's CFR+ state for every decision node of a tree
// in two contiguous arrays. The entry for (slot, hand, action) lives at
// offsets[slot] + hand*actions + action.
type FlatCFR struct {
	shapes      []NodeShape
	offsets     []int
	regret      []float32
	strategySum []float32

	scratch commitScratch
}

// NewFlatCFR allocates zeroed arrays for the given decision nodes
func NewFlatCFR(shapes []NodeShape) *FlatCFR {
	f := &FlatCFR{
		shapes:  append([]NodeShape(nil), shapes...),
		offsets: make([]int, len(shapes)),
	}
	n := 0
	for i, s := range shapes {
		f.offsets[i] = n
		n += s.Hands * s.Actions
	}
	f.regret = make([]float32, n)
	f.strategySum = make([]float32, n)
	return f
}

// NumSlots returns the number of decision nodes
func (f *FlatCFR) NumSlots() int {
	return len(f.shapes)
}

// Shape returns the shape of a decision node
func (f *FlatCFR) Shape(slot int) NodeShape {
	return f.shapes[slot]
}

// Len returns the number of (slot, hand, action) entries
func (f *FlatCFR) Len() int {
	return len(f.regret)
}

// MemoryBytes is the size of both arrays
func (f *FlatCFR) MemoryBytes() int {
	return 8 * len(f.regret)
}

// Index returns the position of (slot, hand)'s first action
func (f *FlatCFR) Index(slot, hand int) int {
	return f.offsets[slot] + hand*f.shapes[slot].Actions
}

// CurrentStrategy computes the regret-matching strategy for (slot, hand)
// into out, which is grown as needed. Actions with positive regret are
// played in proportion to it; with none, play is uniform.
func (f *FlatCFR) CurrentStrategy(slot, hand int, out []float64) []float64 {
	n := f.shapes[slot].Actions
	i := f.Index(slot, hand)
	return regretMatch(f.regret[i:i+n], out[:0])
}

// AverageStrategy returns the normalized cumulative strategy for
// (slot, hand), uniform when nothing was accumulated
func (f *FlatCFR) AverageStrategy(slot, hand int, out []float64) []float64 {
	n := f.shapes[slot].Actions
	i := f.Index(slot, hand)
	return normalize(f.strategySum[i:i+n], out[:0])
}

// Update applies one CFR+ update at (slot, hand). actionValues are the
// counterfactual values of each action, nodeValue their expectation under
// the current strategy and reach the acting player's own reach. The
// strategy added to the average is the one in force before the update.
func (f *FlatCFR) Update(slot, hand int, actionValues []float64, nodeValue, reach float64) {
	var buf [16]float64
	sigma := f.CurrentStrategy(slot, hand, buf[:0])
	i := f.Index(slot, hand)
	for a := range sigma {
		f.addRegret(i+a, actionValues[a]-nodeValue)
		f.strategySum[i+a] += float32(reach * sigma[a])
	}
}

// addRegret adds d and floors the result at zero
func (f *FlatCFR) addRegret(i int, d float64) {
	r := float64(f.regret[i]) + d
	if r < 0 {
		r = 0
	}
	f.regret[i] = float32(r)
}

// Regret exposes the regret entries of (slot, hand). The slice aliases
// the trainer's state.
func (f *FlatCFR) Regret(slot, hand int) []float32 {
	i := f.Index(slot, hand)
	return f.regret[i : i+f.shapes[slot].Actions]
}

// Clone returns a deep copy
func (f *FlatCFR) Clone() *FlatCFR {
	return &FlatCFR{
		shapes:      append([]NodeShape(nil), f.shapes...),
		offsets:     append([]int(nil), f.offsets...),
		regret:      append([]float32(nil), f.regret...),
		strategySum: append([]float32(nil), f.strategySum...),
	}
}

// CurrentTable writes the regret-matching strategy of every entry into a
// table with the same layout. Traversals read it instead of recomputing the
// opponent's strategy for each of their own hands.
func (f *FlatCFR) CurrentTable(dst []float32) []float32 {
	return f.table(f.regret, dst, regretMatch)
}

// AverageTable writes the average strategy of every entry into a table
// with the same layout
func (f *FlatCFR) AverageTable(dst []float32) []float32 {
	return f.table(f.strategySum, dst, normalize)
}

func (f *FlatCFR) table(src, dst []float32, fn func([]float32, []float64) []float64) []float32 {
	if cap(dst) < len(src) {
		dst = make([]float32, len(src))
	}
	dst = dst[:len(src)]
	var buf [16]float64
	for slot, s := range f.shapes {
		for h := 0; h < s.Hands; h++ {
			i := f.offsets[slot] + h*s.Actions
			for a, p := range fn(src[i:i+s.Actions], buf[:0]) {
				dst[i+a] = float32(p)
			}
		}
	}
	return dst
}

// String summarizes the trainer's size
func (f *FlatCFR) String() string {
	return fmt.Sprintf("FlatCFR{slots=%d, entries=%d, %.1fMB}", len(f.shapes), len(f.regret), float64(f.MemoryBytes())/(1<<20))
}

func regretMatch(regret []float32, out []float64) []float64 {
	sum := 0.0
	for _, r := range regret {
		p := 0.0
		if r > 0 {
			p = float64(r)
		}
		out = append(out, p)
		sum += p
	}
	if sum > 0 {
		for a := range out {
			out[a] /= sum
		}
		return out
	}
	u := 1.0 / float64(len(out))
	for a := range out {
		out[a] = u
	}
	return out
}

func normalize(w []float32, out []float64) []float64 {
	sum := 0.0
	for _, x := range w {
		out = append(out, float64(x))
		sum += float64(x)
	}
	if sum > 0 {
		for a := range out {
			out[a] /= sum
		}
		return out
	}
	u := 1.0 / float64(len(out))
	for a := range out {
		out[a] = u
	}
	return out
}

// updateBuffer collects one worker's updates during an iteration. commit
// merges them.
type updateBuffer struct {
	index  []int32
	regret []float32
	weight []float32
}

// add records a CFR+ update in the same form as FlatCFR.Update, with the
// strategy sigma read before the iteration started
func (b *updateBuffer) add(base int, sigma []float32, actionValues []float64, nodeValue, reach float64) {
	for a := range sigma {
		b.index = append(b.index, int32(base+a))
		b.regret = append(b.regret, float32(actionValues[a]-nodeValue))
		b.weight = append(b.weight, float32(reach*float64(sigma[a])))
	}
}

func (b *updateBuffer) reset() {
	b.index = b.index[:0]
	b.regret = b.regret[:0]
	b.weight = b.weight[:0]
}

// commitScratch sums the buffered updates per entry before they touch the
// arrays
type commitScratch struct {
	regret  []float64
	weight  []float64
	touched []int32
	seen    []bool
}

// commit merges a set of buffers into f as one CFR+ step: the regret deltas
// of each entry are summed and the floor at zero is applied once to the
// total, so the result does not depend on buffer order. It runs on one
// goroutine after every worker finished.
func (f *FlatCFR) commit(bufs []*updateBuffer) {
	sc := &f.scratch
	if len(sc.seen) != len(f.regret) {
		sc.regret = make([]float64, len(f.regret))
		sc.weight = make([]float64, len(f.regret))
		sc.seen = make([]bool, len(f.regret))
	}
	for _, b := range bufs {
		for k, i := range b.index {
			if !sc.seen[i] {
				sc.seen[i] = true
				sc.touched = append(sc.touched, i)
			}
			sc.regret[i] += float64(b.regret[k])
			sc.weight[i] += float64(b.weight[k])
		}
	}
	for _, i := range sc.touched {
		f.addRegret(int(i), sc.regret[i])
		f.strategySum[i] += float32(sc.weight[i])
		sc.regret[i], sc.weight[i], sc.seen[i] = 0, 0, false
	}
	sc.touched = sc.touched[:0]
}
