// Package detector decides which provider transactions are new for a watch entry.
package detector

import (
	"fmt"
	"slices"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/vietddude/dashnotifier/internal/core/domain"
)

// Mode selects how much of the provider history is inspected.
type Mode string

const (
	// ModeHead inspects only the newest transaction.
	ModeHead Mode = "head"
	// ModeWalk walks back from the newest transaction to the last-seen marker.
	ModeWalk Mode = "walk"
)

// ParseMode converts a config value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeHead, "":
		return ModeHead, nil
	case ModeWalk:
		return ModeWalk, nil
	}
	return "", fmt.Errorf("unknown detection mode %q", s)
}

// Decision lists the transactions to notify, oldest first.
type Decision struct {
	Notify []domain.Transaction
}

// Empty reports whether nothing needs to be sent.
func (d Decision) Empty() bool {
	return len(d.Notify) == 0
}

// Detector is pure; it performs no I/O and never mutates its input.
type Detector struct {
	mode        Mode
	maxPerCycle int
}

// New creates a detector. maxPerCycle only applies to ModeWalk.
func New(mode Mode, maxPerCycle int) *Detector {
	if maxPerCycle <= 0 {
		maxPerCycle = 1
	}
	return &Detector{mode: mode, maxPerCycle: maxPerCycle}
}

// Mode returns the configured mode.
func (d *Detector) Mode() Mode {
	return d.mode
}

// Detect compares txs (newest first) against the entry's progress.
func (d *Detector) Detect(entry *domain.WatchEntry, txs []domain.Transaction) Decision {
	if entry == nil || len(txs) == 0 {
		return Decision{}
	}

	if d.mode == ModeWalk && entry.LastSeenTx != nil {
		return d.walk(entry, txs)
	}

	head := txs[0]
	if !IsNew(entry, head) {
		return Decision{}
	}
	return Decision{Notify: []domain.Transaction{head}}
}

func (d *Detector) walk(entry *domain.WatchEntry, txs []domain.Transaction) Decision {
	seen := mapset.NewThreadUnsafeSet(entry.Notified...)
	seen.Add(entry.LastSeen())

	var fresh []domain.Transaction
	for _, tx := range txs {
		if seen.Contains(tx.Hash) {
			break
		}
		fresh = append(fresh, tx)
	}
	if len(fresh) == 0 {
		return Decision{}
	}

	// Keep the newest, deliver oldest first
	if len(fresh) > d.maxPerCycle {
		fresh = fresh[:d.maxPerCycle]
	}
	fresh = slices.Clone(fresh)
	slices.Reverse(fresh)

	return Decision{Notify: fresh}
}

// IsNew reports whether tx differs from the last-seen marker and has never
// been notified for entry.
func IsNew(entry *domain.WatchEntry, tx domain.Transaction) bool {
	if tx.Hash == "" {
		return false
	}
	if entry.LastSeenTx != nil && *entry.LastSeenTx == tx.Hash {
		return false
	}
	return !entry.HasNotified(tx.Hash)
}

// Apply records a delivered transaction on entry.
func Apply(entry *domain.WatchEntry, tx domain.Transaction, limit int, now time.Time) {
	entry.Remember(tx.Hash, limit, now)
}
