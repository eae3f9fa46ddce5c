// Command spot-server answers strategy queries over HTTP, solving spots
// on first request and serving them from the store afterwards.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/behrlich/spot-solver/pkg/config"
	"github.com/behrlich/spot-solver/pkg/engine"
	"github.com/behrlich/spot-solver/pkg/solver"
)

func main() {
	var (
		addr    = flag.String("addr", "", "Listen address (overrides SPOT_ADDR)")
		ranges  = flag.String("range", "", "Range for both players (empty = all combos)")
		samples = flag.Int("samples", 2000, "Push/fold equity samples per matchup")
	)
	flag.Parse()
	defer glog.Flush()

	cfg, err := config.Load()
	if err != nil {
		glog.Exitf("config: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := cfg.OpenStore(ctx)
	if err != nil {
		glog.Exitf("store: %v", err)
	}
	defer closeStore()

	pf := solver.DefaultPushFoldConfig()
	pf.Samples = *samples
	pf.Seed = cfg.Seed
	pf.Workers = cfg.Workers

	eng := engine.New(st, engine.StaticRanges{Default: *ranges}, cfg)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           Router(eng, pf),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	glog.Infof("listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		glog.Errorf("serve: %v", err)
	}
}
