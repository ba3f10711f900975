// Package registry handles address registration and ownership.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/dashnotifier/internal/core/domain"
	"github.com/vietddude/dashnotifier/internal/indexing/metrics"
	"github.com/vietddude/dashnotifier/internal/infra/storage"
)

var (
	// ErrAddressTaken is returned when another user already watches the address.
	ErrAddressTaken = errors.New("address already registered by another user")
	// ErrNotRegistered is returned when the user has no watch entry.
	ErrNotRegistered = errors.New("no address registered")
)

// Result describes what a registration changed.
type Result int

const (
	Registered Result = iota // first address for the user
	Replaced                 // user switched to a different address
	Unchanged                // same address sent again
)

func (r Result) String() string {
	switch r {
	case Replaced:
		return "replaced"
	case Unchanged:
		return "unchanged"
	default:
		return "registered"
	}
}

// Outcome is the result of a successful registration.
type Outcome struct {
	Result   Result
	Address  domain.Address
	Previous domain.Address
}

// StateStore is the subset of storage.Store the registry needs.
type StateStore interface {
	Update(ctx context.Context, fn func(state *domain.State) error) error
	Entry(user domain.UserID) (*domain.WatchEntry, bool)
}

// Registry validates addresses and writes watch entries.
type Registry struct {
	store StateStore
	log   *slog.Logger
	now   func() time.Time
}

// New creates a registry backed by store.
func New(store StateStore) *Registry {
	return &Registry{
		store: store,
		log:   slog.Default().With("component", "registry"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Register binds the address in text to user. Invalid input and addresses
// owned by someone else are rejected without touching the state.
func (r *Registry) Register(ctx context.Context, user domain.UserID, text string) (Outcome, error) {
	address, err := domain.ValidateAddress(text)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return Outcome{}, err
	}

	var out Outcome
	err = r.store.Update(ctx, func(state *domain.State) error {
		if owner, ok := state.Owner(address); ok && owner != user {
			return ErrAddressTaken
		}

		now := r.now()
		out = Outcome{Address: address}

		entry, ok := state.Users[user]
		switch {
		case !ok:
			state.Users[user] = domain.NewWatchEntry(address, now)
			out.Result = Registered
		case entry.Address == address:
			out.Result = Unchanged
		default:
			out.Previous = entry.Address
			entry.Rebind(address, now)
			out.Result = Replaced
		}
		return nil
	})

	switch {
	case errors.Is(err, ErrAddressTaken):
		metrics.RegistrationsTotal.WithLabelValues("taken").Inc()
		return Outcome{}, err
	case err != nil && !errors.Is(err, storage.ErrPersist):
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return Outcome{}, fmt.Errorf("register %s: %w", address, err)
	}

	// A failed write keeps the change in memory; the next flush retries it
	metrics.RegistrationsTotal.WithLabelValues(out.Result.String()).Inc()
	r.log.Info("Address registered",
		"user", user,
		"address", address,
		"result", out.Result.String(),
	)
	return out, nil
}

// Status returns a copy of the user's watch entry.
func (r *Registry) Status(user domain.UserID) (*domain.WatchEntry, error) {
	entry, ok := r.store.Entry(user)
	if !ok {
		return nil, ErrNotRegistered
	}
	return entry, nil
}

// Remove deletes the user's watch entry.
func (r *Registry) Remove(ctx context.Context, user domain.UserID) (domain.Address, error) {
	var removed domain.Address
	err := r.store.Update(ctx, func(state *domain.State) error {
		entry, ok := state.Users[user]
		if !ok {
			return ErrNotRegistered
		}
		removed = entry.Address
		delete(state.Users, user)
		return nil
	})
	if err != nil && !errors.Is(err, storage.ErrPersist) {
		return "", err
	}

	r.log.Info("Address removed", "user", user, "address", removed)
	return removed, nil
}

// Reassign moves address to user regardless of current ownership. The
// previous owner loses its entry and the new owner starts with an unknown
// last-seen marker. It returns the previous owner, if any.
func (r *Registry) Reassign(ctx context.Context, text string, user domain.UserID) (domain.UserID, error) {
	address, err := domain.ValidateAddress(text)
	if err != nil {
		return "", err
	}

	var previous domain.UserID
	err = r.store.Update(ctx, func(state *domain.State) error {
		now := r.now()

		if owner, ok := state.Owner(address); ok {
			if owner == user {
				previous = owner
				return nil
			}
			previous = owner
			delete(state.Users, owner)
		}

		if entry, ok := state.Users[user]; ok {
			entry.Rebind(address, now)
		} else {
			state.Users[user] = domain.NewWatchEntry(address, now)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reassign %s: %w", address, err)
	}

	r.log.Info("Address reassigned", "address", address, "from", previous, "to", user)
	return previous, nil
}
