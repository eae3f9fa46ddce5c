package store

import (
	"context"
	"embed"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/behrlich/spot-solver/pkg/solver"
)

//go:embed schema.sql
var schema embed.FS

// PgStore keeps solutions in a PostgreSQL table, one row per spot key
type PgStore struct {
	pool *pgxpool.Pool
}

// OpenPg connects to dsn. Call Init once to create the table.
func OpenPg(ctx context.Context, dsn string) (*PgStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, persistErr("connect", "postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, persistErr("ping", "postgres", err)
	}
	return &PgStore{pool: pool}, nil
}

// Init applies the embedded schema
func (s *PgStore) Init(ctx context.Context) error {
	sql, err := schema.ReadFile("schema.sql")
	if err != nil {
		return errors.Wrap(err, "read schema")
	}
	if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
		return persistErr("migrate", "postgres", err)
	}
	return nil
}

func (s *PgStore) Close() { s.pool.Close() }

func (s *PgStore) Save(ctx context.Context, key string, sol *solver.Solution) error {
	blob, err := Marshal(sol)
	if err != nil {
		return errors.Wrapf(err, "save %s", key)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO spot_solutions(spot_key, street, iterations, exploitability, blob)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (spot_key) DO UPDATE
		  SET street = EXCLUDED.street,
		      iterations = EXCLUDED.iterations,
		      exploitability = EXCLUDED.exploitability,
		      blob = EXCLUDED.blob,
		      updated_at = now()
	`, key, int16(sol.Street), sol.Iterations, sol.Exploitability, blob)
	if err != nil {
		return persistErr("upsert", key, err)
	}
	return nil
}

func (s *PgStore) Load(ctx context.Context, key string) (*solver.Solution, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx, `SELECT blob FROM spot_solutions WHERE spot_key = $1`, key).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(ErrSpotNotFound, "load %s", key)
	}
	if err != nil {
		return nil, persistErr("select", key, err)
	}
	sol, err := Unmarshal(blob)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", key)
	}
	return sol, nil
}

// Delete removes key; deleting a missing key is not an error
func (s *PgStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM spot_solutions WHERE spot_key = $1`, key); err != nil {
		return persistErr("delete", key, err)
	}
	return nil
}
