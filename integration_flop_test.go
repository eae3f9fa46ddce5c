package spotsolver_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/behrlich/spot-solver/pkg/engine"
	"github.com/behrlich/spot-solver/pkg/notation"
	"github.com/behrlich/spot-solver/pkg/query"
	"github.com/behrlich/spot-solver/pkg/solver"
)

var flopRanges = engine.StaticRanges{
	ByPosition: map[notation.Position]string{
		notation.SB: "AA,KK",
		notation.BB: "QQ,JJ,T9s",
	},
}

// TestIntegration_FlopTemplates solves a bucketed flop spot and reads
// strategies from the flop tree and both templates under it, before and
// after a reload from disk
func TestIntegration_FlopTemplates(t *testing.T) {
	if testing.Short() {
		t.Skip("flop solve")
	}
	ctx := context.Background()
	dir := t.TempDir()
	cfg := testConfig(dir, 4)
	sp := mustSpot(t, "Th9h2c", notation.SB, notation.BB, notation.SRP)

	e := openEngine(t, cfg, flopRanges)
	sol, _, err := e.SolveOrLoad(ctx, sp)
	if err != nil {
		t.Fatalf("SolveOrLoad: %v", err)
	}
	if len(sol.Streets) != 3 || sol.Buckets == nil {
		t.Fatalf("flop solution has %d streets, buckets %v; want 3 with buckets", len(sol.Streets), sol.Buckets != nil)
	}

	tests := []struct {
		name   string
		path   string
		hand   string
		runout string
		level  int
		street notation.Street
	}{
		{"flop root", "", "AhAd", "", solver.PrimaryStreet, notation.Flop},
		{"turn after checks", "x,x", "AhAd", "Qs", solver.TurnTemplate, notation.Turn},
		{"turn card named", "x,x,Qs", "KsKd", "", solver.TurnTemplate, notation.Turn},
		{"turn facing bet", "b75,c,Qs,x,b66", "AsAc", "", solver.TurnTemplate, notation.Turn},
		{"river", "x,x,Qs,x,x,3d", "AhAd", "", solver.RiverTemplate, notation.River},
		{"river from runout", "x,x,Qs,x,x", "AhAd", "Qs3d", solver.RiverTemplate, notation.River},
	}
	answers := make([]*engine.Answer, len(tests))
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := engine.Request{Spot: sp, Path: mustPath(t, tt.path), Hand: mustCombo(t, tt.hand)}
			if tt.runout != "" {
				req.Runout = mustCards(t, tt.runout)
			}
			ans, err := e.Query(ctx, req)
			if err != nil {
				t.Fatalf("Query(%q, %s): %v", tt.path, tt.hand, err)
			}
			if ans.Strategy.Level != tt.level || ans.Strategy.Street != tt.street {
				t.Errorf("level %d street %s, want %d %s", ans.Strategy.Level, ans.Strategy.Street, tt.level, tt.street)
			}
			sum := 0.0
			for _, x := range ans.Row {
				sum += float64(x)
			}
			if math.Abs(sum-1) > 1e-4 {
				t.Errorf("%s row %v sums to %.5f", tt.hand, ans.Row, sum)
			}
			answers[i] = ans
		})
	}

	// Bucketed nodes need the runout to read a hand
	_, err = e.Query(ctx, engine.Request{Spot: sp, Path: mustPath(t, "x,x"), Hand: mustCombo(t, "AhAd")})
	if !errors.Is(err, query.ErrHandUnavailable) {
		t.Errorf("turn hand without runout: got %v, want ErrHandUnavailable", err)
	}

	// A card already on the board cannot be dealt
	_, err = e.Query(ctx, engine.Request{Spot: sp, Path: mustPath(t, "x,x,Th")})
	if !errors.Is(err, query.ErrMalformedActionPath) {
		t.Errorf("turn card on board: got %v, want ErrMalformedActionPath", err)
	}

	reloaded := openEngine(t, cfg, flopRanges)
	for i, tt := range tests {
		if answers[i] == nil {
			continue
		}
		req := engine.Request{Spot: sp, Path: mustPath(t, tt.path), Hand: mustCombo(t, tt.hand)}
		if tt.runout != "" {
			req.Runout = mustCards(t, tt.runout)
		}
		ans, err := reloaded.Query(ctx, req)
		if err != nil {
			t.Fatalf("%s after reload: %v", tt.name, err)
		}
		for a := range ans.Row {
			if math.Float32bits(ans.Row[a]) != math.Float32bits(answers[i].Row[a]) {
				t.Errorf("%s: %s is %v after reload, %v before", tt.name, ans.Strategy.Actions[a], ans.Row[a], answers[i].Row[a])
			}
		}
	}
	if reloaded.Solves() != 0 {
		t.Errorf("reloaded engine ran %d solves, want 0", reloaded.Solves())
	}
}
