package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/pterm/pterm"

	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/config"
	"github.com/behrlich/spot-solver/pkg/engine"
	"github.com/behrlich/spot-solver/pkg/notation"
	"github.com/behrlich/spot-solver/pkg/solver"
	"github.com/behrlich/spot-solver/pkg/spot"
)

func main() {
	// Solve flags
	iterations := flag.Int("iterations", 0, "CFR iterations (0 = SPOT_*_ITERATIONS)")
	workers := flag.Int("workers", 0, "Worker goroutines (0 = SPOT_WORKERS)")
	buckets := flag.Int("buckets", 0, "Equity buckets on flop templates (0 = SPOT_BUCKETS)")
	pot := flag.Float64("pot", 0, "Pot in big blinds (0 = pot type default)")
	stack := flag.Float64("stack", 0, "Effective stack in big blinds (0 = pot type default)")
	oopRange := flag.String("oop-range", "", "Out of position range (empty = all combos)")
	ipRange := flag.String("ip-range", "", "In position range (empty = all combos)")
	cacheDir := flag.String("cache", "", "Solution directory (overrides SPOT_CACHE_DIR)")

	// Query flags
	path := flag.String("path", "", "Action path, e.g. \"x,b33\" or \"check bet_33 Qs\"")
	hand := flag.String("hand", "", "Show a single combo, e.g. AcKc")
	runout := flag.String("runout", "", "Cards dealt after the board when the path does not name them")
	verbose := flag.Bool("verbose", false, "Show every combo")

	// Push/fold flags
	rake := flag.Float64("rake", 0, "Rake taken from a showdown pot (push/fold)")
	samples := flag.Int("samples", 2000, "Equity samples per hand class matchup (push/fold)")

	flag.Parse()
	defer glog.Flush()

	args := flag.Args()
	if len(args) < 1 {
		usage()
	}

	cfg, err := config.Load()
	if err != nil {
		fail("Error reading config: %v", err)
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *buckets > 0 {
		cfg.Buckets = *buckets
	}
	if *iterations > 0 {
		cfg.RiverIterations, cfg.TurnIterations, cfg.FlopIterations = *iterations, *iterations, *iterations
	}
	if *cacheDir != "" {
		cfg.CacheDir = *cacheDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, closeStore, err := cfg.OpenStore(ctx)
	if err != nil {
		fail("Error opening store: %v", err)
	}
	defer closeStore()

	switch args[0] {
	case "pushfold":
		pf := solver.DefaultPushFoldConfig()
		if len(args) > 1 {
			if _, err := fmt.Sscanf(args[1], "%g", &pf.Stack); err != nil {
				fail("Error parsing stack %q: %v", args[1], err)
			}
		}
		pf.Rake = *rake
		pf.Samples = *samples
		pf.Seed = cfg.Seed
		pf.Workers = cfg.Workers
		if *iterations > 0 {
			pf.Iterations = *iterations
		}
		runPushFold(ctx, engine.New(st, engine.StaticRanges{}, cfg), pf)

	case "solve", "query":
		if len(args) < 4 {
			usage()
		}
		sp, err := parseSpot(args[1:], *pot, *stack)
		if err != nil {
			fail("Error parsing spot: %v", err)
		}
		ranges := engine.StaticRanges{ByPosition: map[notation.Position]string{
			sp.OOP: *oopRange,
			sp.IP:  *ipRange,
		}}
		eng := engine.New(st, ranges, cfg)

		spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Solving %s ...", sp.Key()))
		sol, _, err := eng.SolveOrLoad(ctx, sp)
		if err != nil {
			spinner.Fail()
			fail("Error solving: %v", err)
		}
		spinner.Success()
		printSolution(sol, eng.Solves() > 0)
		if args[0] == "solve" && *path == "" && *hand == "" {
			return
		}

		req := engine.Request{Spot: sp}
		if req.Path, err = notation.ParseActionPath(*path); err != nil {
			fail("Error parsing path: %v", err)
		}
		if *hand != "" {
			c, err := cards.ParseCombo(*hand)
			if err != nil {
				fail("Error parsing hand: %v", err)
			}
			req.Hand = &c
		}
		if *runout != "" {
			if req.Runout, err = cards.ParseCards(*runout); err != nil {
				fail("Error parsing runout: %v", err)
			}
		}
		ans, err := eng.Query(ctx, req)
		if err != nil {
			fail("Error: %v", err)
		}
		printStrategy(ans, *verbose)

	default:
		usage()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: spot-solver [flags] <command> [args]\n")
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  solve <board> <pos> <pos> [pot type]   solve a spot and store it\n")
	fmt.Fprintf(os.Stderr, "  query <board> <pos> <pos> [pot type]   show the strategy at -path\n")
	fmt.Fprintf(os.Stderr, "  pushfold [stack]                      heads-up push/fold ranges\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  # River, both ranges given\n")
	fmt.Fprintf(os.Stderr, "  spot-solver -oop-range=\"QQ+,AK\" -ip-range=\"99+,AQs+\" solve Kh9s4c7d2s BB BTN\n\n")
	fmt.Fprintf(os.Stderr, "  # Strategy after a check, one hand\n")
	fmt.Fprintf(os.Stderr, "  spot-solver -path=x -hand=AhAd query Kh9s4c7d2s BB BTN\n\n")
	fmt.Fprintf(os.Stderr, "  # Flop, into the turn template\n")
	fmt.Fprintf(os.Stderr, "  spot-solver -buckets=30 -path=\"b75,c,Qs\" query Th9h2c SB BB 3BP\n\n")
	fmt.Fprintf(os.Stderr, "  # 12bb push/fold\n")
	fmt.Fprintf(os.Stderr, "  spot-solver pushfold 12\n")
	fmt.Fprintf(os.Stderr, "\nFlags:\n")
	flag.PrintDefaults()
	glog.Flush()
	os.Exit(1)
}

func fail(format string, args ...any) {
	pterm.Error.Printfln(format, args...)
	glog.Flush()
	os.Exit(1)
}

func parseSpot(args []string, pot, stack float64) (spot.Spot, error) {
	board, err := cards.ParseCards(args[0])
	if err != nil {
		return spot.Spot{}, err
	}
	a, err := notation.ParsePosition(args[1])
	if err != nil {
		return spot.Spot{}, err
	}
	b, err := notation.ParsePosition(args[2])
	if err != nil {
		return spot.Spot{}, err
	}
	pt := notation.SRP
	if len(args) > 3 {
		if pt, err = notation.ParsePotType(args[3]); err != nil {
			return spot.Spot{}, err
		}
	}
	sp, err := spot.New(board, a, b, pt)
	if err != nil {
		return spot.Spot{}, err
	}
	if pot > 0 || stack > 0 {
		p, s := sp.Pot, sp.Stack
		if pot > 0 {
			p = pot
		}
		if stack > 0 {
			s = stack
		}
		sp = sp.WithStakes(p, s)
	}
	return sp, sp.Validate()
}

func printSolution(sol *solver.Solution, solved bool) {
	source := "loaded from store"
	if solved {
		source = "solved"
	}
	pterm.Info.Printfln("%s (%s)", sol.Key, source)
	pterm.Info.Printfln("%d iterations, %d vs %d combos", sol.Iterations, len(sol.Hands[0]), len(sol.Hands[1]))
	if sol.Exploitability >= 0 {
		pterm.Info.Printfln("Exploitability: %.4f bb (%.2f%% of pot)", sol.Exploitability, 100*sol.Exploitability/sol.Pot)
	}
	for _, w := range sol.Warnings {
		pterm.Warning.Printfln("%v", w)
	}
}

func printStrategy(ans *engine.Answer, verbose bool) {
	st := ans.Strategy
	inv := ans.Suits.Inverse()

	pterm.Println()
	pterm.Info.Printfln("Path [%s]: %s to act on the %s, pot %.2f, invested %.2f/%.2f",
		strings.Join(st.Path, " "), []string{"OOP", "IP"}[st.Player], st.Street,
		st.Pot, st.Invested[0], st.Invested[1])
	if len(st.Runout) > 0 {
		pterm.Info.Printfln("Runout: %s", cards.FormatCards(inv.Cards(st.Runout)))
	}

	header := append([]string{""}, st.Actions...)
	data := pterm.TableData{header}

	row := []string{"range"}
	for _, f := range st.Frequencies() {
		row = append(row, fmt.Sprintf("%.1f%%", 100*f))
	}
	data = append(data, row)

	if ans.Row != nil {
		data = append(data, formatRow("hand", ans.Row))
	}
	if verbose {
		var hands []cards.Combo
		for _, c := range st.Hands() {
			if _, err := st.HandRow(c); err == nil {
				hands = append(hands, c)
			}
		}
		sort.Slice(hands, func(i, j int) bool {
			return inv.Combo(hands[i]).String() < inv.Combo(hands[j]).String()
		})
		for _, c := range hands {
			r, _ := st.HandRow(c)
			data = append(data, formatRow(inv.Combo(c).String(), r))
		}
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func formatRow(name string, r []float32) []string {
	out := []string{name}
	for _, x := range r {
		out = append(out, fmt.Sprintf("%.1f%%", 100*x))
	}
	return out
}

func runPushFold(ctx context.Context, eng *engine.Engine, cfg solver.PushFoldConfig) {
	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Solving %gbb push/fold ...", cfg.Stack))
	res, err := eng.PushFold(ctx, cfg)
	if err != nil {
		spinner.Fail()
		fail("Error solving: %v", err)
	}
	spinner.Success()

	pterm.Info.Printfln("%d iterations, exploitability %.4f bb", res.Iterations, res.Exploitability)
	pterm.Success.Printfln("SB pushes %.1f%%: %s", 100*res.PushPct(), joinClasses(res.PushRange()))
	pterm.Success.Printfln("BB calls %.1f%%: %s", 100*res.CallPct(), joinClasses(res.CallRange()))
}

func joinClasses(hs []notation.HandClass) string {
	parts := make([]string, len(hs))
	for i, h := range hs {
		parts[i] = h.String()
	}
	return strings.Join(parts, ",")
}
