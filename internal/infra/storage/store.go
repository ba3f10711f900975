package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vietddude/dashnotifier/internal/core/domain"
	"github.com/vietddude/dashnotifier/internal/indexing/metrics"
)

// Store owns the in-memory state and serializes every mutation through a
// single writer. It is shared by the poller and the registration handler.
type Store struct {
	backend Backend
	log     *slog.Logger

	mu    sync.RWMutex
	state *domain.State
}

// Open loads the state once from backend. Load failures are logged and the
// store starts from an empty state.
func Open(ctx context.Context, backend Backend) *Store {
	log := slog.Default().With("component", "store")

	state, err := backend.Load(ctx)
	if err != nil {
		log.Warn("Starting from empty state", "error", err)
	}
	if state == nil {
		state = domain.NewState()
	}
	state.Normalize()

	log.Info("State loaded", "users", len(state.Users))
	metrics.WatchedAddresses.Set(float64(len(state.Users)))

	return &Store{
		backend: backend,
		log:     log,
		state:   state,
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() *domain.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Entry returns a copy of the entry for user.
func (s *Store) Entry(user domain.UserID) (*domain.WatchEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.Users[user]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Update applies fn to the live state and persists the result. If fn returns
// an error the state is left untouched and nothing is written. A failed write
// keeps the in-memory change and returns an error wrapping ErrPersist.
func (s *Store) Update(ctx context.Context, fn func(state *domain.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	if err := fn(next); err != nil {
		return err
	}
	s.state = next.Normalize()
	metrics.WatchedAddresses.Set(float64(len(s.state.Users)))

	if err := s.backend.Save(ctx, s.state); err != nil {
		metrics.StateSaveErrors.Inc()
		s.log.Error("State write failed, changes kept in memory", "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// Flush writes the current state without changing it.
func (s *Store) Flush(ctx context.Context) error {
	return s.Update(ctx, func(*domain.State) error { return nil })
}

// Close flushes the state and closes the backend.
func (s *Store) Close(ctx context.Context) error {
	flushErr := s.Flush(ctx)
	if err := s.backend.Close(); err != nil {
		return fmt.Errorf("close backend: %w", err)
	}
	return flushErr
}
