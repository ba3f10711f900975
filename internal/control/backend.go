package control

import (
	"context"
	"fmt"

	"github.com/vietddude/dashnotifier/internal/core/config"
	redisclient "github.com/vietddude/dashnotifier/internal/infra/redis"
	"github.com/vietddude/dashnotifier/internal/infra/storage"
	"github.com/vietddude/dashnotifier/internal/infra/storage/badger"
	"github.com/vietddude/dashnotifier/internal/infra/storage/file"
	"github.com/vietddude/dashnotifier/internal/infra/storage/memory"
	"github.com/vietddude/dashnotifier/internal/infra/storage/postgres"
)

// OpenBackend creates the state backend selected by cfg.Driver.
func OpenBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Driver {
	case "", "file":
		return file.New(cfg.Path), nil
	case "memory":
		return memory.New(), nil
	case "badger":
		b, err := badger.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "redis":
		c, err := redisclient.NewClient(redisclient.Config{URL: cfg.URL, Key: cfg.Key})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "postgres":
		db, err := postgres.NewDB(ctx, postgres.Config{URL: cfg.URL, MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		return postgres.NewStateRepo(db), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
