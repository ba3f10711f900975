// Package file stores the state document as a JSON file on local disk.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vietddude/dashnotifier/internal/core/domain"
	"github.com/vietddude/dashnotifier/internal/infra/storage"
)

// Backend implements storage.Backend on a single file.
type Backend struct {
	path string
}

// New creates a file backend. The file and its directory are created on the
// first Save.
func New(path string) *Backend {
	return &Backend{path: path}
}

// Load reads and decodes the file.
func (b *Backend) Load(ctx context.Context) (*domain.State, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewState(), fmt.Errorf("%w: %s", storage.ErrStateMissing, b.path)
	}
	if err != nil {
		return domain.NewState(), fmt.Errorf("read %s: %w", b.path, err)
	}
	return storage.Decode(data)
}

// Save writes to a temp file in the same directory and renames it over the
// target so readers never see a partial document.
func (b *Backend) Save(ctx context.Context, state *domain.State) error {
	data, err := storage.Encode(state)
	if err != nil {
		return err
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Close is a no-op.
func (b *Backend) Close() error { return nil }
