package eval

import (
	"github.com/pkg/errors"

	"github.com/behrlich/spot-solver/pkg/cards"
)

// Outcome of a showdown from the first range's point of view
const (
	Lose    int8 = -1
	Tie     int8 = 0
	Win     int8 = 1
	Blocked int8 = -128 // the two holdings share a card
)

// ShowdownTable holds the showdown result of every pair of opposing
// combos on one complete board. Combos that touch the board are marked
// Blocked against everything.
type ShowdownTable struct {
	rows, cols int
	outcome    []int8
	scoresA    []Score
	scoresB    []Score
}

// NewShowdownTable scores both ranges once and fills the pair matrix
func NewShowdownTable(board []cards.Card, a, b []cards.Combo) (*ShowdownTable, error) {
	if len(board) != 5 {
		return nil, errors.Wrapf(ErrInvalidInput, "showdown board has %d cards, need 5", len(board))
	}
	if err := validate(board); err != nil {
		return nil, err
	}
	var fb [5]cards.Card
	copy(fb[:], board)
	dead := cards.MaskOf(board...)

	t := &ShowdownTable{
		rows:    len(a),
		cols:    len(b),
		outcome: make([]int8, len(a)*len(b)),
		scoresA: scoreRange(a, &fb, dead),
		scoresB: scoreRange(b, &fb, dead),
	}

	for i, ca := range a {
		row := t.outcome[i*t.cols : (i+1)*t.cols]
		if ca.Conflicts(dead) {
			for j := range row {
				row[j] = Blocked
			}
			continue
		}
		sa := t.scoresA[i]
		for j, cb := range b {
			switch {
			case cb.Conflicts(dead) || ca.Overlaps(cb):
				row[j] = Blocked
			case sa > t.scoresB[j]:
				row[j] = Win
			case sa < t.scoresB[j]:
				row[j] = Lose
			default:
				row[j] = Tie
			}
		}
	}
	return t, nil
}

func scoreRange(r []cards.Combo, board *[5]cards.Card, dead cards.Mask) []Score {
	out := make([]Score, len(r))
	for i, c := range r {
		if c.Conflicts(dead) {
			continue
		}
		out[i] = Hand(c, board)
	}
	return out
}

// Outcome returns Win, Lose, Tie or Blocked for combo i of the first
// range against combo j of the second
func (t *ShowdownTable) Outcome(i, j int) int8 {
	return t.outcome[i*t.cols+j]
}

// Row exposes the outcomes of combo i against the whole second range.
// The slice is shared and must not be modified.
func (t *ShowdownTable) Row(i int) []int8 {
	return t.outcome[i*t.cols : (i+1)*t.cols]
}

// ScoreA is the hand score of combo i of the first range
func (t *ShowdownTable) ScoreA(i int) Score { return t.scoresA[i] }

// ScoreB is the hand score of combo j of the second range
func (t *ShowdownTable) ScoreB(j int) Score { return t.scoresB[j] }

// Dims returns the table's shape
func (t *ShowdownTable) Dims() (rows, cols int) { return t.rows, t.cols }
