package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/dashnotifier/internal/core/domain"
	"github.com/vietddude/dashnotifier/internal/infra/storage"
	"github.com/vietddude/dashnotifier/internal/infra/storage/memory"
)

const (
	addrA = "XpESxaUmonkq8RaLLp46Brx2K39ggQe226"
	addrB = "XonCSL19SseRbeThdAJAeRju1jEWke1gSc"
)

func newTestRegistry(t *testing.T) (*Registry, *storage.Store, *memory.Backend) {
	t.Helper()
	backend := memory.New()
	store := storage.Open(context.Background(), backend)
	r := New(store)
	r.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return r, store, backend
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	r, store, backend := newTestRegistry(t)

	out, err := r.Register(ctx, "1", "  "+addrA+"\n")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if out.Result != Registered || out.Address != addrA {
		t.Errorf("outcome = %+v", out)
	}
	if backend.Saves() != 1 {
		t.Errorf("saves = %d, want 1", backend.Saves())
	}

	entry, ok := store.Entry("1")
	if !ok || entry.Address != addrA || entry.LastSeenTx != nil {
		t.Fatalf("entry = %+v", entry)
	}
}

func TestRegister_Rejects(t *testing.T) {
	ctx := context.Background()
	r, store, _ := newTestRegistry(t)

	if _, err := r.Register(ctx, "1", addrA); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tests := []struct {
		name    string
		user    domain.UserID
		text    string
		wantErr error
	}{
		{"invalid prefix", "2", "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2", domain.ErrInvalidAddress},
		{"too short", "2", "Xshort", domain.ErrInvalidAddress},
		{"empty", "2", "   ", domain.ErrInvalidAddress},
		{"owned by other", "2", addrA, ErrAddressTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := store.Snapshot()
			_, err := r.Register(ctx, tt.user, tt.text)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			after := store.Snapshot()
			if len(after.Users) != len(before.Users) {
				t.Errorf("state changed on rejection")
			}
		})
	}
}

func TestRegister_SameAddressKeepsProgress(t *testing.T) {
	ctx := context.Background()
	r, store, _ := newTestRegistry(t)

	if _, err := r.Register(ctx, "1", addrA); err != nil {
		t.Fatal(err)
	}
	_ = store.Update(ctx, func(s *domain.State) error {
		s.Users["1"].Remember("tx-1", 100, time.Now())
		return nil
	})

	out, err := r.Register(ctx, "1", addrA)
	if err != nil {
		t.Fatal(err)
	}
	if out.Result != Unchanged {
		t.Errorf("result = %s, want unchanged", out.Result)
	}
	entry, _ := store.Entry("1")
	if entry.LastSeen() != "tx-1" {
		t.Errorf("last seen = %q, want tx-1", entry.LastSeen())
	}
}

func TestRegister_NewAddressResetsMarker(t *testing.T) {
	ctx := context.Background()
	r, store, _ := newTestRegistry(t)

	if _, err := r.Register(ctx, "1", addrA); err != nil {
		t.Fatal(err)
	}
	_ = store.Update(ctx, func(s *domain.State) error {
		s.Users["1"].Remember("tx-1", 100, time.Now())
		return nil
	})

	out, err := r.Register(ctx, "1", addrB)
	if err != nil {
		t.Fatal(err)
	}
	if out.Result != Replaced || out.Previous != addrA {
		t.Errorf("outcome = %+v", out)
	}

	entry, _ := store.Entry("1")
	if entry.Address != addrB || entry.LastSeenTx != nil {
		t.Errorf("entry = %+v", entry)
	}
	if !entry.HasNotified("tx-1") {
		t.Errorf("history should survive rebind")
	}

	// Old address is free again
	if _, err := r.Register(ctx, "2", addrA); err != nil {
		t.Errorf("Register freed address: %v", err)
	}
}

func TestRegister_PersistFailureStillApplies(t *testing.T) {
	ctx := context.Background()
	r, store, backend := newTestRegistry(t)
	backend.SetFailSave(errors.New("disk full"))

	if _, err := r.Register(ctx, "1", addrA); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, ok := store.Entry("1"); !ok {
		t.Error("entry should be kept in memory")
	}
}

func TestStatusAndRemove(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)

	if _, err := r.Status("1"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Status err = %v", err)
	}
	if _, err := r.Register(ctx, "1", addrA); err != nil {
		t.Fatal(err)
	}
	entry, err := r.Status("1")
	if err != nil || entry.Address != addrA {
		t.Errorf("Status = %+v, %v", entry, err)
	}

	removed, err := r.Remove(ctx, "1")
	if err != nil || removed != addrA {
		t.Errorf("Remove = %s, %v", removed, err)
	}
	if _, err := r.Remove(ctx, "1"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("second Remove err = %v", err)
	}
}

func TestReassign(t *testing.T) {
	ctx := context.Background()
	r, store, _ := newTestRegistry(t)

	if _, err := r.Register(ctx, "1", addrA); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Register(ctx, "2", addrB); err != nil {
		t.Fatal(err)
	}

	prev, err := r.Reassign(ctx, addrA, "2")
	if err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	if prev != "1" {
		t.Errorf("previous = %q, want 1", prev)
	}

	state := store.Snapshot()
	if _, ok := state.Users["1"]; ok {
		t.Error("old owner should lose the entry")
	}
	if e := state.Users["2"]; e == nil || e.Address != addrA || e.LastSeenTx != nil {
		t.Errorf("new owner entry = %+v", e)
	}

	// Unowned address goes straight to the user
	prev, err = r.Reassign(ctx, addrB, "3")
	if err != nil || prev != "" {
		t.Errorf("Reassign unowned = %q, %v", prev, err)
	}

	if _, err := r.Reassign(ctx, "nope", "3"); !errors.Is(err, domain.ErrInvalidAddress) {
		t.Errorf("Reassign invalid err = %v", err)
	}
}
