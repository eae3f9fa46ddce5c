package equity

import (
	"runtime"
	"sort"
	"sync"

	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/eval"
)

// EquityResult represents the outcome of an equity calculation
type EquityResult struct {
	WinPct float64 // Percentage of times hero wins
	TiePct float64 // Percentage of times hero ties
	Equity float64 // Overall equity (win% + tie%/2)
}

// Calculator computes exact hand equities by enumerating every runout
type Calculator struct {
	workers int
}

// NewCalculator creates a calculator that uses all available CPUs
func NewCalculator() *Calculator {
	return &Calculator{workers: runtime.GOMAXPROCS(0)}
}

// WithWorkers limits the number of goroutines used by Equities
func (c *Calculator) WithWorkers(n int) *Calculator {
	if n < 1 {
		n = 1
	}
	return &Calculator{workers: n}
}

// Runouts lists every completion of board to five cards that avoids dead.
// Order inside a runout is irrelevant for showdown so each card set
// appears once.
func Runouts(board []cards.Card, dead cards.Mask) [][5]cards.Card {
	used := dead | cards.MaskOf(board...)
	deck := cards.Remaining(used)
	var base [5]cards.Card
	copy(base[:], board)

	switch len(board) {
	case 5:
		return [][5]cards.Card{base}
	case 4:
		out := make([][5]cards.Card, 0, len(deck))
		for _, r := range deck {
			b := base
			b[4] = r
			out = append(out, b)
		}
		return out
	case 3:
		out := make([][5]cards.Card, 0, len(deck)*(len(deck)-1)/2)
		for i, t := range deck {
			for _, r := range deck[i+1:] {
				b := base
				b[3], b[4] = t, r
				out = append(out, b)
			}
		}
		return out
	default:
		return nil
	}
}

// CalculateEquity computes hero's equity against opponent's range
// hero: 2 cards
// board: 3-5 cards (flop, turn, or river)
// opponentRange: list of opponent combos
func (c *Calculator) CalculateEquity(hero []cards.Card, board []cards.Card, opponentRange []cards.Combo) EquityResult {
	h := cards.NewCombo(hero[0], hero[1])
	heroMask := h.Mask()

	wins := 0.0
	ties := 0.0
	total := 0.0

	for _, rb := range Runouts(board, heroMask) {
		rm := cards.MaskOf(rb[:]...)
		heroScore := eval.Hand(h, &rb)

		for _, opp := range opponentRange {
			// Skip combos blocked by hero or the runout
			if opp.Conflicts(rm | heroMask) {
				continue
			}
			oppScore := eval.Hand(opp, &rb)
			if heroScore > oppScore {
				wins++
			} else if heroScore == oppScore {
				ties++
			}
			total++
		}
	}

	if total == 0 {
		return EquityResult{Equity: 0.5} // No valid opponent combos
	}

	winPct := wins / total
	tiePct := ties / total
	return EquityResult{
		WinPct: winPct,
		TiePct: tiePct,
		Equity: winPct + tiePct/2.0,
	}
}

// Equities returns the equity of every hero combo against opponents,
// averaged over all runouts of board. A nil opponents list means a uniform
// opponent holding any two live cards. Heroes that touch the board get 0.
func (c *Calculator) Equities(board []cards.Card, heroes []cards.Combo, opponents []cards.Combo) []float64 {
	boardMask := cards.MaskOf(board...)
	if opponents == nil {
		opponents = cards.AllCombos(boardMask)
	} else {
		opponents = cards.FilterCombos(opponents, boardMask)
	}
	runouts := Runouts(board, 0)

	workers := c.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(runouts) {
		workers = len(runouts)
	}
	if workers == 0 {
		return make([]float64, len(heroes))
	}

	// Each worker sums a contiguous block of runouts. Blocks are merged in
	// order so the result does not depend on scheduling.
	sums := make([][]float64, workers)
	counts := make([][]int32, workers)
	var wg sync.WaitGroup
	chunk := (len(runouts) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, (w+1)*chunk
		if hi > len(runouts) {
			hi = len(runouts)
		}
		if lo > hi {
			lo = hi
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sums[w], counts[w] = accumulate(runouts[lo:hi], heroes, opponents)
		}()
	}
	wg.Wait()

	out := make([]float64, len(heroes))
	for i := range heroes {
		var s float64
		var n int32
		for w := 0; w < workers; w++ {
			s += sums[w][i]
			n += counts[w][i]
		}
		if n > 0 {
			out[i] = s / float64(n)
		}
	}
	return out
}

// accumulate adds per-runout equities for every hero. Opponent scores are
// sorted once per runout; each hero then needs a binary search plus a
// correction for the few opponent combos sharing one of its cards.
func accumulate(runouts [][5]cards.Card, heroes, opponents []cards.Combo) ([]float64, []int32) {
	sums := make([]float64, len(heroes))
	counts := make([]int32, len(heroes))

	scores := make([]eval.Score, len(opponents))
	sorted := make([]eval.Score, 0, len(opponents))
	var byCard [cards.NumCards][]int32

	for ri := range runouts {
		rb := &runouts[ri]
		rm := cards.MaskOf(rb[:]...)

		sorted = sorted[:0]
		for c := range byCard {
			byCard[c] = byCard[c][:0]
		}
		for k, opp := range opponents {
			if opp.Conflicts(rm) {
				scores[k] = -1
				continue
			}
			scores[k] = eval.Hand(opp, rb)
			sorted = append(sorted, scores[k])
			byCard[opp.Hi] = append(byCard[opp.Hi], int32(k))
			byCard[opp.Lo] = append(byCard[opp.Lo], int32(k))
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		for i, h := range heroes {
			if h.Conflicts(rm) {
				continue
			}
			s := eval.Hand(h, rb)
			below := sort.Search(len(sorted), func(k int) bool { return sorted[k] >= s })
			above := sort.Search(len(sorted), func(k int) bool { return sorted[k] > s })
			equal := above - below
			n := len(sorted)

			for _, card := range [2]cards.Card{h.Hi, h.Lo} {
				for _, k := range byCard[card] {
					opp := opponents[k]
					// The hero combo itself sits in both lists
					if card == h.Lo && opp.Mask()&h.Hi.Mask() != 0 {
						continue
					}
					n--
					switch {
					case scores[k] < s:
						below--
					case scores[k] == s:
						equal--
					}
				}
			}
			if n <= 0 {
				continue
			}
			sums[i] += (float64(below) + float64(equal)/2) / float64(n)
			counts[i]++
		}
	}
	return sums, counts
}
