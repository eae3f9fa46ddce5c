package spotsolver_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/config"
	"github.com/behrlich/spot-solver/pkg/engine"
	"github.com/behrlich/spot-solver/pkg/notation"
	"github.com/behrlich/spot-solver/pkg/query"
	"github.com/behrlich/spot-solver/pkg/spot"
	"github.com/behrlich/spot-solver/pkg/store"
)

// testConfig keeps solves small and writes solutions under dir
func testConfig(dir string, iters int) config.Config {
	cfg := config.Default()
	cfg.CacheDir = dir
	cfg.Workers = 2
	cfg.RiverIterations = iters
	cfg.TurnIterations = iters
	cfg.FlopIterations = iters
	cfg.CheckpointEvery = 0
	cfg.Buckets = 5
	return cfg
}

func mustSpot(t testing.TB, board string, a, b notation.Position, pt notation.PotType) spot.Spot {
	t.Helper()
	sp, err := spot.New(mustCards(t, board), a, b, pt)
	if err != nil {
		t.Fatalf("spot.New: %v", err)
	}
	return sp
}

func mustCombo(t testing.TB, s string) *cards.Combo {
	t.Helper()
	c, err := cards.ParseCombo(s)
	if err != nil {
		t.Fatalf("ParseCombo(%q): %v", s, err)
	}
	return &c
}

func mustCards(t testing.TB, s string) []cards.Card {
	t.Helper()
	cs, err := cards.ParseCards(s)
	if err != nil {
		t.Fatalf("ParseCards(%q): %v", s, err)
	}
	return cs
}

func mustPath(t testing.TB, raw string) []string {
	t.Helper()
	p, err := notation.ParseActionPath(raw)
	if err != nil {
		t.Fatalf("ParseActionPath(%q): %v", raw, err)
	}
	return p
}

func openEngine(t testing.TB, cfg config.Config, ranges engine.RangeProvider) *engine.Engine {
	t.Helper()
	st, closeStore, err := cfg.OpenStore(context.Background())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(closeStore)
	return engine.New(st, ranges, cfg)
}

var riverRanges = engine.StaticRanges{
	ByPosition: map[notation.Position]string{
		notation.BB:  "AKs",
		notation.BTN: "99,QJs",
	},
}

// TestIntegration_SolveStoreReload solves a river spot, then a fresh engine
// over the same cache directory answers from disk without solving
func TestIntegration_SolveStoreReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := testConfig(dir, 200)
	sp := mustSpot(t, "Kh9s4c7d2s", notation.BTN, notation.BB, notation.SRP)
	req := engine.Request{Spot: sp, Path: mustPath(t, "x"), Hand: mustCombo(t, "9h9d")}

	first := openEngine(t, cfg, riverRanges)
	a, err := first.Query(ctx, req)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if first.Solves() != 1 {
		t.Fatalf("first engine ran %d solves, want 1", first.Solves())
	}

	fs, err := store.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := fs.Load(ctx, a.Key); err != nil {
		t.Fatalf("solution %s not on disk: %v", a.Key, err)
	}

	second := openEngine(t, cfg, riverRanges)
	b, err := second.Query(ctx, req)
	if err != nil {
		t.Fatalf("Query after reload: %v", err)
	}
	if second.Solves() != 0 {
		t.Errorf("second engine ran %d solves, want 0", second.Solves())
	}
	if len(a.Row) != len(b.Row) {
		t.Fatalf("rows differ in length: %v vs %v", a.Row, b.Row)
	}
	for i := range a.Row {
		if math.Float32bits(a.Row[i]) != math.Float32bits(b.Row[i]) {
			t.Errorf("action %s: %v before reload, %v after", a.Strategy.Actions[i], a.Row[i], b.Row[i])
		}
	}
}

func TestIntegration_PathErrors(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, testConfig("", 50), riverRanges)
	sp := mustSpot(t, "Kh9s4c7d2s", notation.BTN, notation.BB, notation.SRP)

	tests := []struct {
		name string
		path string
		want error
	}{
		{"unknown size", "b50", query.ErrMalformedActionPath},
		{"after showdown", "x,x,x", query.ErrMalformedActionPath},
		{"showdown", "x,x", query.ErrNoDecision},
		{"fold", "b33,f", query.ErrNoDecision},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Query(ctx, engine.Request{Spot: sp, Path: mustPath(t, tt.path)})
			if !errors.Is(err, tt.want) {
				t.Errorf("path %q: got %v, want %v", tt.path, err, tt.want)
			}
		})
	}
	if e.Solves() != 1 {
		t.Errorf("ran %d solves for one spot, want 1", e.Solves())
	}
}
