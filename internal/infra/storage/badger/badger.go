// Package badger stores the state document in an embedded Badger database.
package badger

import (
	"context"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/vietddude/dashnotifier/internal/core/domain"
	"github.com/vietddude/dashnotifier/internal/infra/storage"
)

var stateKey = []byte("state")

// Backend implements storage.Backend on a single Badger key.
type Backend struct {
	db *badgerdb.DB
}

// Open opens (or creates) a Badger database in dir.
func Open(dir string) (*Backend, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %s: %w", dir, err)
	}
	return &Backend{db: db}, nil
}

// Load reads the state key.
func (b *Backend) Load(ctx context.Context) (*domain.State, error) {
	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(stateKey)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return domain.NewState(), storage.ErrStateMissing
	}
	if err != nil {
		return domain.NewState(), fmt.Errorf("badger read: %w", err)
	}
	return storage.Decode(data)
}

// Save replaces the state key in one transaction.
func (b *Backend) Save(ctx context.Context, state *domain.State) error {
	data, err := storage.Encode(state)
	if err != nil {
		return err
	}
	if err := b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(stateKey, data)
	}); err != nil {
		return fmt.Errorf("badger write: %w", err)
	}
	return nil
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}
