package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vietddude/dashnotifier/internal/core/domain"
)

// Encode renders state as the persisted JSON document.
func Encode(state *domain.State) ([]byte, error) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a persisted document. Unknown fields are ignored and missing
// ones keep their zero value. Malformed input returns an empty state and an
// error wrapping ErrStateCorrupt.
func Decode(data []byte) (*domain.State, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.NewState(), ErrStateMissing
	}

	state := domain.NewState()
	if err := json.Unmarshal(data, state); err != nil {
		return domain.NewState(), fmt.Errorf("%w: %w", ErrStateCorrupt, err)
	}
	return state.Normalize(), nil
}
