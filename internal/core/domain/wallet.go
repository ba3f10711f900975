package domain

import (
	"slices"
	"time"
)

// DefaultNotifiedCap bounds the notified history when no cap is configured.
const DefaultNotifiedCap = 100

// UserID identifies a chat recipient.
type UserID string

// WatchEntry binds a user to a monitored address and its notification progress.
type WatchEntry struct {
	Address    Address   `json:"address"`
	LastSeenTx *string   `json:"last_tx"`
	Notified   []string  `json:"notifications"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewWatchEntry creates an entry with an unknown last-seen marker.
func NewWatchEntry(address Address, now time.Time) *WatchEntry {
	return &WatchEntry{
		Address:   address,
		Notified:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LastSeen returns the last-seen marker or "" when unknown.
func (e *WatchEntry) LastSeen() string {
	if e.LastSeenTx == nil {
		return ""
	}
	return *e.LastSeenTx
}

// HasNotified reports whether id is in the notified history.
func (e *WatchEntry) HasNotified(id string) bool {
	return slices.Contains(e.Notified, id)
}

// Remember marks id as the newest notified transaction and appends it to the
// history, evicting the oldest ids beyond limit.
func (e *WatchEntry) Remember(id string, limit int, now time.Time) {
	if limit <= 0 {
		limit = DefaultNotifiedCap
	}
	seen := id
	e.LastSeenTx = &seen
	e.Notified = append(e.Notified, id)
	if over := len(e.Notified) - limit; over > 0 {
		e.Notified = slices.Clone(e.Notified[over:])
	}
	e.UpdatedAt = now
}

// Rebind points the entry at a new address and forgets the last-seen marker.
// The notified history is kept.
func (e *WatchEntry) Rebind(address Address, now time.Time) {
	e.Address = address
	e.LastSeenTx = nil
	e.UpdatedAt = now
}

// Clone returns a deep copy.
func (e *WatchEntry) Clone() *WatchEntry {
	c := *e
	if e.LastSeenTx != nil {
		seen := *e.LastSeenTx
		c.LastSeenTx = &seen
	}
	if e.Notified != nil {
		c.Notified = slices.Clone(e.Notified)
	}
	return &c
}
