package spot

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/behrlich/spot-solver/pkg/cards"
)

// fullRange marks a player who may hold any live combo
const fullRange = 0xffff

// RangeTag fingerprints both starting ranges, out of position first, as
// they play on board. Combos that touch the board are ignored, and a nil
// range hashes the same as one listing every live combo. The ranges must
// be in the same suits as board.
func RangeTag(board []cards.Card, ranges [2][]cards.Combo) string {
	dead := cards.MaskOf(board...)
	live := len(cards.AllCombos(dead))

	d := xxhash.New()
	var buf [2]byte
	for _, r := range ranges {
		var idx []int
		if r != nil {
			for _, c := range cards.FilterCombos(r, dead) {
				idx = append(idx, c.Index())
			}
		}
		if r == nil || len(idx) == live {
			idx = []int{fullRange}
		}
		slices.Sort(idx)
		for _, i := range idx {
			binary.BigEndian.PutUint16(buf[:], uint16(i))
			_, _ = d.Write(buf[:])
		}
		// separator; never a combo index
		binary.BigEndian.PutUint16(buf[:], 0xfffe)
		_, _ = d.Write(buf[:])
	}
	return strconv.FormatUint(d.Sum64(), 36)
}

// SolutionKey names the solution of the spot's canonical form played with
// ranges, which must already be in canonical suits. Spots that only differ
// in their ranges get different solution keys.
func (s Spot) SolutionKey(ranges [2][]cards.Combo) string {
	c, _ := s.Canonical()
	return c.Key() + "_r" + RangeTag(c.Board, ranges)
}

// CanonicalRanges carries ranges given in s's suits onto the canonical
// board's suits. nil ranges stay nil.
func (s Spot) CanonicalRanges(ranges [2][]cards.Combo) [2][]cards.Combo {
	_, m := s.Canonical()
	var out [2][]cards.Combo
	for p, r := range ranges {
		if r == nil {
			continue
		}
		out[p] = make([]cards.Combo, len(r))
		for i, c := range r {
			out[p][i] = m.Combo(c)
		}
	}
	return out
}

// ParseSolutionKey splits a solution key into its spot and range tag
func ParseSolutionKey(key string) (Spot, string, error) {
	i := strings.LastIndex(key, "_r")
	if i < 0 {
		return Spot{}, "", fmt.Errorf("solution key %q: no range tag", key)
	}
	s, err := Parse(key[:i])
	if err != nil {
		return Spot{}, "", err
	}
	return s, key[i+2:], nil
}
