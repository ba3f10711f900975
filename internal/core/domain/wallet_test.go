package domain

import (
	"fmt"
	"testing"
	"time"
)

func TestWatchEntryRemember_EvictsOldestFirst(t *testing.T) {
	e := NewWatchEntry("Xaddr", time.Now())

	for i := 0; i < 7; i++ {
		e.Remember(fmt.Sprintf("tx%d", i), 5, time.Now())
	}

	if len(e.Notified) != 5 {
		t.Fatalf("expected 5 notified ids, got %d", len(e.Notified))
	}
	if e.Notified[0] != "tx2" || e.Notified[4] != "tx6" {
		t.Errorf("unexpected history order: %v", e.Notified)
	}
	if e.LastSeen() != "tx6" {
		t.Errorf("expected last seen tx6, got %q", e.LastSeen())
	}
}

func TestWatchEntryRebind_KeepsHistory(t *testing.T) {
	e := NewWatchEntry("Xold", time.Now())
	e.Remember("tx1", 10, time.Now())

	e.Rebind("Xnew", time.Now())

	if e.LastSeenTx != nil {
		t.Errorf("expected unknown last seen after rebind, got %q", e.LastSeen())
	}
	if !e.HasNotified("tx1") {
		t.Error("expected notified history to survive rebind")
	}
}

func TestStateClone_IsDeep(t *testing.T) {
	s := NewState()
	s.Users["1"] = NewWatchEntry("Xaddr", time.Now())
	s.Users["1"].Remember("tx1", 10, time.Now())

	c := s.Clone()
	c.Users["1"].Remember("tx2", 10, time.Now())

	if s.Users["1"].LastSeen() != "tx1" {
		t.Errorf("clone mutation leaked into original: %q", s.Users["1"].LastSeen())
	}
	if len(s.Users["1"].Notified) != 1 {
		t.Errorf("clone mutation leaked into history: %v", s.Users["1"].Notified)
	}
}

func TestStateOwner(t *testing.T) {
	s := NewState()
	s.Users["42"] = NewWatchEntry("Xaddr", time.Now())

	if id, ok := s.Owner("Xaddr"); !ok || id != "42" {
		t.Errorf("expected owner 42, got %q (%v)", id, ok)
	}
	if _, ok := s.Owner("Xother"); ok {
		t.Error("expected no owner for unknown address")
	}
}
