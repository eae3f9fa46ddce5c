package engine

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/notation"
	"github.com/behrlich/spot-solver/pkg/spot"
)

// RangeProvider supplies both players' starting ranges for a spot, out of
// position first. A nil range means every combo.
type RangeProvider interface {
	Ranges(sp spot.Spot) ([2][]cards.Combo, error)
}

// StaticRanges looks ranges up by position, falling back to Default. An
// empty range string means every combo.
type StaticRanges struct {
	Default    string
	ByPosition map[notation.Position]string
}

func (r StaticRanges) Ranges(sp spot.Spot) ([2][]cards.Combo, error) {
	var out [2][]cards.Combo
	for p, pos := range [2]notation.Position{sp.OOP, sp.IP} {
		text, ok := r.ByPosition[pos]
		if !ok {
			text = r.Default
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		combos, err := notation.ParseRange(text)
		if err != nil {
			return out, errors.Wrapf(err, "%s range", pos)
		}
		out[p] = combos
	}
	return out, nil
}
