package domain

import (
	"maps"
	"slices"
)

// State is the full persisted document.
type State struct {
	Users       map[UserID]*WatchEntry `json:"users"`
	LastChecked int64                  `json:"last_checked"`
}

// NewState returns an empty initial state.
func NewState() *State {
	return &State{Users: make(map[UserID]*WatchEntry)}
}

// Normalize fills nil collections left by partial documents.
func (s *State) Normalize() *State {
	if s.Users == nil {
		s.Users = make(map[UserID]*WatchEntry)
	}
	for id, e := range s.Users {
		if e == nil {
			delete(s.Users, id)
		}
	}
	return s
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := &State{
		Users:       make(map[UserID]*WatchEntry, len(s.Users)),
		LastChecked: s.LastChecked,
	}
	for id, e := range s.Users {
		c.Users[id] = e.Clone()
	}
	return c
}

// Owner returns the user watching address, if any.
func (s *State) Owner(address Address) (UserID, bool) {
	for id, e := range s.Users {
		if e.Address == address {
			return id, true
		}
	}
	return "", false
}

// UserIDs returns the registered users in a stable order.
func (s *State) UserIDs() []UserID {
	return slices.Sorted(maps.Keys(s.Users))
}
