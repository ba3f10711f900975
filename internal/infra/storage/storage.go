package storage

import (
	"context"
	"errors"

	"github.com/vietddude/dashnotifier/internal/core/domain"
)

var (
	// ErrStateCorrupt is reported by Load when the backing data cannot be decoded.
	ErrStateCorrupt = errors.New("state data corrupt")

	// ErrStateMissing is reported by Load when no state has been written yet.
	ErrStateMissing = errors.New("state not found")

	// ErrPersist is returned by Store.Update when the durable write fails.
	ErrPersist = errors.New("failed to persist state")
)

// Backend is a durable home for the full state document.
type Backend interface {
	// Load returns the persisted state. On missing or corrupt data it returns an
	// empty initial state together with the cause; the state is never nil.
	Load(ctx context.Context) (*domain.State, error)

	// Save durably replaces the persisted state. Readers observe either the
	// previous or the new document, never a partial write.
	Save(ctx context.Context, state *domain.State) error

	// Close releases backend resources.
	Close() error
}
