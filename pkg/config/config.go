// Package config reads solver settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/behrlich/spot-solver/pkg/notation"
	"github.com/behrlich/spot-solver/pkg/solver"
	"github.com/behrlich/spot-solver/pkg/store"
)

// Config holds every SPOT_* setting
type Config struct {
	CacheDir    string        // SPOT_CACHE_DIR
	DatabaseURL string        // SPOT_DATABASE_URL
	RedisURL    string        // SPOT_REDIS_URL
	RedisTTL    time.Duration // SPOT_REDIS_TTL
	Addr        string        // SPOT_ADDR

	Workers         int                 // SPOT_WORKERS
	RiverIterations int                 // SPOT_RIVER_ITERATIONS
	TurnIterations  int                 // SPOT_TURN_ITERATIONS
	FlopIterations  int                 // SPOT_FLOP_ITERATIONS
	Buckets         int                 // SPOT_BUCKETS
	CheckpointEvery int                 // SPOT_CHECKPOINT_EVERY
	Seed            uint64              // SPOT_SEED
	Sampling        solver.SamplingMode // SPOT_SAMPLING
}

// Default returns the settings used when nothing is set
func Default() Config {
	return Config{
		CacheDir:        "spot-cache",
		Addr:            ":8080",
		Workers:         runtime.GOMAXPROCS(0),
		RiverIterations: 1000,
		TurnIterations:  500,
		FlopIterations:  2000,
		Buckets:         50,
		CheckpointEvery: 100,
		Seed:            1,
	}
}

// Load reads .env if present, then the environment
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a config from a lookup function; unset keys keep their
// defaults
func FromEnv(getenv func(string) string) (Config, error) {
	c := Default()
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("SPOT_CACHE_DIR", &c.CacheDir)
	str("SPOT_DATABASE_URL", &c.DatabaseURL)
	str("SPOT_REDIS_URL", &c.RedisURL)
	str("SPOT_ADDR", &c.Addr)

	ints := []struct {
		key string
		dst *int
	}{
		{"SPOT_WORKERS", &c.Workers},
		{"SPOT_RIVER_ITERATIONS", &c.RiverIterations},
		{"SPOT_TURN_ITERATIONS", &c.TurnIterations},
		{"SPOT_FLOP_ITERATIONS", &c.FlopIterations},
		{"SPOT_BUCKETS", &c.Buckets},
		{"SPOT_CHECKPOINT_EVERY", &c.CheckpointEvery},
	}
	for _, f := range ints {
		v := strings.TrimSpace(getenv(f.key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, errors.Wrapf(err, "%s", f.key)
		}
		*f.dst = n
	}

	if v := strings.TrimSpace(getenv("SPOT_SEED")); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, errors.Wrap(err, "SPOT_SEED")
		}
		c.Seed = n
	}
	if v := strings.TrimSpace(getenv("SPOT_SAMPLING")); v != "" {
		m, err := solver.ParseSamplingMode(v)
		if err != nil {
			return Config{}, errors.Wrap(err, "SPOT_SAMPLING")
		}
		c.Sampling = m
	}
	if v := strings.TrimSpace(getenv("SPOT_REDIS_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, errors.Wrap(err, "SPOT_REDIS_TTL")
		}
		c.RedisTTL = d
	}
	return c, c.Validate()
}

// Validate rejects settings no solve can use
func (c Config) Validate() error {
	switch {
	case c.Workers < 1:
		return errors.Errorf("workers must be positive, got %d", c.Workers)
	case c.RiverIterations < 1 || c.TurnIterations < 1 || c.FlopIterations < 1:
		return errors.Errorf("iterations must be positive, got river %d turn %d flop %d",
			c.RiverIterations, c.TurnIterations, c.FlopIterations)
	case c.Buckets < 1 || c.Buckets > 1<<16:
		return errors.Errorf("buckets must be in [1, 65536], got %d", c.Buckets)
	case c.CheckpointEvery < 0:
		return errors.Errorf("checkpoint interval must not be negative, got %d", c.CheckpointEvery)
	case c.RedisTTL < 0:
		return errors.Errorf("redis ttl must not be negative, got %s", c.RedisTTL)
	}
	return nil
}

// Iterations returns the iteration count for a solve starting on street
func (c Config) Iterations(street notation.Street) int {
	switch street {
	case notation.Flop:
		return c.FlopIterations
	case notation.Turn:
		return c.TurnIterations
	default:
		return c.RiverIterations
	}
}

// Solver returns the trainer settings for a solve starting on street
func (c Config) Solver(street notation.Street) solver.Config {
	cfg := solver.DefaultConfig()
	cfg.Iterations = c.Iterations(street)
	cfg.Workers = c.Workers
	cfg.Seed = c.Seed
	cfg.CheckpointEvery = c.CheckpointEvery
	cfg.NumBuckets = c.Buckets
	cfg.Sampling = c.Sampling
	return cfg
}

// OpenStore builds the configured store chain: Redis, then Postgres, then
// the file cache. With none configured solutions live in memory. The
// returned func closes any connections.
func (c Config) OpenStore(ctx context.Context) (store.Store, func(), error) {
	var (
		tiers  store.Tiered
		closer []func()
	)
	closeAll := func() {
		for _, f := range closer {
			f()
		}
	}

	if c.RedisURL != "" {
		rs, err := store.OpenRedis(ctx, c.RedisURL, c.RedisTTL)
		if err != nil {
			return nil, nil, err
		}
		tiers = append(tiers, rs)
		closer = append(closer, func() { _ = rs.Close() })
		glog.Infof("store: redis (ttl %s)", c.RedisTTL)
	}
	if c.DatabaseURL != "" {
		pg, err := store.OpenPg(ctx, c.DatabaseURL)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closer = append(closer, pg.Close)
		if err := pg.Init(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		tiers = append(tiers, pg)
		glog.Infof("store: postgres")
	}
	if c.CacheDir != "" {
		fs, err := store.NewFileStore(c.CacheDir)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		tiers = append(tiers, fs)
		glog.Infof("store: files under %s", c.CacheDir)
	}

	switch len(tiers) {
	case 0:
		glog.Infof("store: memory only")
		return store.NewMemoryStore(), closeAll, nil
	case 1:
		return tiers[0], closeAll, nil
	default:
		return tiers, closeAll, nil
	}
}
