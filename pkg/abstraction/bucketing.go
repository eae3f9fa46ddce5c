package abstraction

import (
	"fmt"

	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/equity"
)

// Bucketer assigns hands to buckets based on equity. Buckets are equal-width
// equity intervals, so bucket ids are monotonic in equity and the same
// inputs always produce the same assignment.
//
// A Bucketer caches results and is not safe for concurrent use.
type Bucketer struct {
	board         []cards.Card
	opponentRange []cards.Combo // nil means uniform over live combos
	numBuckets    int
	calculator    *equity.Calculator

	// Cache for performance
	cache   map[cards.Combo]int
	eqCache map[cards.Combo]float64
}

// NewBucketer creates a bucketer for a given board and opponent range
// numBuckets: total number of buckets (typically 50-200)
func NewBucketer(board []cards.Card, opponentRange []cards.Combo, numBuckets int) *Bucketer {
	if numBuckets < 1 {
		numBuckets = 1
	}
	return &Bucketer{
		board:         append([]cards.Card(nil), board...),
		opponentRange: opponentRange,
		numBuckets:    numBuckets,
		calculator:    equity.NewCalculator(),
		cache:         make(map[cards.Combo]int),
		eqCache:       make(map[cards.Combo]float64),
	}
}

// BucketOf maps an equity in [0, 1] to its bucket
func (b *Bucketer) BucketOf(eq float64) int {
	bucket := int(eq * float64(b.numBuckets))
	// Clamp to valid range
	if bucket >= b.numBuckets {
		bucket = b.numBuckets - 1
	}
	if bucket < 0 {
		bucket = 0
	}
	return bucket
}

// Assign buckets a whole list of combos. Missing equities are computed in
// one pass over the runouts.
func (b *Bucketer) Assign(combos []cards.Combo) []uint16 {
	var missing []cards.Combo
	for _, c := range combos {
		if _, ok := b.eqCache[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		eqs := b.calculator.Equities(b.board, missing, b.opponentRange)
		for i, c := range missing {
			b.eqCache[c] = eqs[i]
		}
	}

	out := make([]uint16, len(combos))
	for i, c := range combos {
		out[i] = uint16(b.BucketCombo(c))
	}
	return out
}

// BucketCombo assigns a combo to a bucket ID (0 to numBuckets-1)
func (b *Bucketer) BucketCombo(combo cards.Combo) int {
	if bucket, exists := b.cache[combo]; exists {
		return bucket
	}
	bucket := b.BucketOf(b.Equity(combo))
	b.cache[combo] = bucket
	return bucket
}

// Equity returns the combo's equity used for bucketing
func (b *Bucketer) Equity(combo cards.Combo) float64 {
	if eq, ok := b.eqCache[combo]; ok {
		return eq
	}
	eq := b.calculator.Equities(b.board, []cards.Combo{combo}, b.opponentRange)[0]
	b.eqCache[combo] = eq
	return eq
}

// GetBucketInfo returns human-readable info about a bucket
func (b *Bucketer) GetBucketInfo(bucketID int) string {
	lo, hi := b.Bounds(bucketID)
	return fmt.Sprintf("Bucket %d: Equity [%.2f-%.2f]", bucketID, lo, hi)
}

// Bounds returns the equity interval covered by a bucket
func (b *Bucketer) Bounds(bucketID int) (lo, hi float64) {
	w := 1.0 / float64(b.numBuckets)
	return float64(bucketID) * w, float64(bucketID+1) * w
}

// NumBuckets returns the total number of buckets
func (b *Bucketer) NumBuckets() int {
	return b.numBuckets
}

// ClearCache clears the bucket cache (useful if board or opponent range changes)
func (b *Bucketer) ClearCache() {
	b.cache = make(map[cards.Combo]int)
	b.eqCache = make(map[cards.Combo]float64)
}

// AssignBuckets maps every combo to a bucket on board using equity against
// a uniform opponent
func AssignBuckets(board []cards.Card, combos []cards.Combo, numBuckets int) []uint16 {
	return NewBucketer(board, nil, numBuckets).Assign(combos)
}
