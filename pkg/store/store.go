// Package store persists solved spots by key.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/behrlich/spot-solver/pkg/solver"
)

var (
	// ErrSpotNotFound is returned by Load when nothing is stored under a key
	ErrSpotNotFound = errors.New("spot not found")

	// ErrPersistence marks every failure of the backing storage
	ErrPersistence = errors.New("persistence failure")

	// ErrCorrupt is returned when a stored blob does not decode
	ErrCorrupt = errors.New("corrupt solution blob")
)

// Store saves and loads solutions by spot key. Saving a key again
// replaces the stored solution.
type Store interface {
	Save(ctx context.Context, key string, sol *solver.Solution) error
	Load(ctx context.Context, key string) (*solver.Solution, error)
}

// PersistenceError is an I/O failure of a store. It matches
// ErrPersistence with errors.Is and unwraps to the underlying cause.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func persistErr(op, key string, err error) error {
	return &PersistenceError{Op: op, Key: key, Err: err}
}

// MemoryStore keeps encoded solutions in a map. Loads decode a fresh copy
// so callers never share state with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Save(ctx context.Context, key string, sol *solver.Solution) error {
	blob, err := Marshal(sol)
	if err != nil {
		return errors.Wrapf(err, "save %s", key)
	}
	m.mu.Lock()
	m.blobs[key] = blob
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, key string) (*solver.Solution, error) {
	m.mu.RLock()
	blob, ok := m.blobs[key]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrSpotNotFound, "load %s", key)
	}
	return Unmarshal(blob)
}

// Len returns the number of stored spots
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// Tiered reads through a list of stores, fastest first. A hit in a later
// tier is copied into the earlier ones; saves go to every tier.
type Tiered []Store

func (t Tiered) Save(ctx context.Context, key string, sol *solver.Solution) error {
	for _, s := range t {
		if err := s.Save(ctx, key, sol); err != nil {
			return err
		}
	}
	return nil
}

func (t Tiered) Load(ctx context.Context, key string) (*solver.Solution, error) {
	for i, s := range t {
		sol, err := s.Load(ctx, key)
		if errors.Is(err, ErrSpotNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, up := range t[:i] {
			if err := up.Save(ctx, key, sol); err != nil {
				return nil, err
			}
		}
		return sol, nil
	}
	return nil, errors.Wrapf(ErrSpotNotFound, "load %s", key)
}
