package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/dashnotifier/internal/core/domain"
	"github.com/vietddude/dashnotifier/internal/infra/storage"
)

const (
	selectEntries = `SELECT user_id, address, last_tx, notifications, created_at, updated_at FROM watch_entries`
	selectMeta    = `SELECT last_checked FROM notifier_meta WHERE id = 1`
	deleteEntries = `DELETE FROM watch_entries`
	insertEntry   = `INSERT INTO watch_entries (user_id, address, last_tx, notifications, created_at, updated_at)
		VALUES (:user_id, :address, :last_tx, CAST(:notifications AS JSONB), :created_at, :updated_at)`
	upsertMeta = `INSERT INTO notifier_meta (id, last_checked) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_checked = EXCLUDED.last_checked`
)

type entryRow struct {
	UserID        string         `db:"user_id"`
	Address       string         `db:"address"`
	LastTx        sql.NullString `db:"last_tx"`
	Notifications string         `db:"notifications"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// StateRepo implements storage.Backend using PostgreSQL.
type StateRepo struct {
	db *DB
}

// NewStateRepo creates a new PostgreSQL state repository.
func NewStateRepo(db *DB) *StateRepo {
	return &StateRepo{db: db}
}

// Load reads every watch entry and the cycle metadata.
func (r *StateRepo) Load(ctx context.Context) (*domain.State, error) {
	var rows []entryRow
	if err := r.db.SelectContext(ctx, &rows, selectEntries); err != nil {
		return domain.NewState(), fmt.Errorf("failed to load watch entries: %w", err)
	}

	state := domain.NewState()
	for _, row := range rows {
		entry := &domain.WatchEntry{
			Address:   domain.Address(row.Address),
			CreatedAt: row.CreatedAt.UTC(),
			UpdatedAt: row.UpdatedAt.UTC(),
		}
		if row.LastTx.Valid {
			seen := row.LastTx.String
			entry.LastSeenTx = &seen
		}
		if err := json.Unmarshal([]byte(row.Notifications), &entry.Notified); err != nil {
			return domain.NewState(), fmt.Errorf("%w: user %s: %w", storage.ErrStateCorrupt, row.UserID, err)
		}
		state.Users[domain.UserID(row.UserID)] = entry
	}

	err := r.db.GetContext(ctx, &state.LastChecked, selectMeta)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.NewState(), fmt.Errorf("failed to load metadata: %w", err)
	}

	if len(rows) == 0 && errors.Is(err, sql.ErrNoRows) {
		return state, storage.ErrStateMissing
	}
	return state, nil
}

// Save replaces the table contents inside one transaction.
func (r *StateRepo) Save(ctx context.Context, state *domain.State) error {
	rows := make([]entryRow, 0, len(state.Users))
	for _, id := range state.UserIDs() {
		e := state.Users[id]
		notified := e.Notified
		if notified == nil {
			notified = []string{}
		}
		data, err := json.Marshal(notified)
		if err != nil {
			return fmt.Errorf("encode notifications: %w", err)
		}
		row := entryRow{
			UserID:        string(id),
			Address:       string(e.Address),
			Notifications: string(data),
			CreatedAt:     e.CreatedAt,
			UpdatedAt:     e.UpdatedAt,
		}
		if e.LastSeenTx != nil {
			row.LastTx = sql.NullString{String: *e.LastSeenTx, Valid: true}
		}
		rows = append(rows, row)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, deleteEntries); err != nil {
		return fmt.Errorf("failed to clear watch entries: %w", err)
	}
	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, insertEntry, row); err != nil {
			return fmt.Errorf("failed to insert watch entry %s: %w", row.UserID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, upsertMeta, state.LastChecked); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (r *StateRepo) Close() error {
	return r.db.Close()
}
