package memory

import (
	"context"
	"sync"

	"github.com/vietddude/dashnotifier/internal/core/domain"
	"github.com/vietddude/dashnotifier/internal/infra/storage"
)

// Backend keeps the state in process memory. Used for dry runs and tests.
type Backend struct {
	mu    sync.RWMutex
	state *domain.State
	saves int
	fail  error
}

// New creates an empty memory backend.
func New() *Backend {
	return &Backend{}
}

// NewWithState creates a memory backend pre-populated with state.
func NewWithState(state *domain.State) *Backend {
	return &Backend{state: state.Clone()}
}

func (b *Backend) Load(ctx context.Context) (*domain.State, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state == nil {
		return domain.NewState(), storage.ErrStateMissing
	}
	return b.state.Clone(), nil
}

func (b *Backend) Save(ctx context.Context, state *domain.State) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.state = state.Clone()
	b.saves++
	return nil
}

// SetFailSave makes subsequent saves return err. nil restores normal writes.
func (b *Backend) SetFailSave(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = err
}

// Saves returns how many successful writes happened.
func (b *Backend) Saves() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.saves
}

func (b *Backend) Close() error { return nil }
