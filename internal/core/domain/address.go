package domain

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// AddressPrefix is the leading character of a Dash P2PKH address.
	AddressPrefix = "X"
	// AddressLength is the total length of an encoded address.
	AddressLength = 34
	// Base58Alphabet is the character set addresses are encoded with.
	Base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
)

// ErrInvalidAddress is returned when a string fails address validation.
var ErrInvalidAddress = errors.New("invalid address")

// Address is a validated chain address.
type Address string

func (a Address) String() string { return string(a) }

// ValidateAddress trims s and checks prefix, length and alphabet.
func ValidateAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)

	if !strings.HasPrefix(s, AddressPrefix) {
		return "", fmt.Errorf("%w: must start with %q", ErrInvalidAddress, AddressPrefix)
	}
	if len(s) != AddressLength {
		return "", fmt.Errorf("%w: length %d, want %d", ErrInvalidAddress, len(s), AddressLength)
	}
	for i, r := range s {
		if !strings.ContainsRune(Base58Alphabet, r) {
			return "", fmt.Errorf("%w: character %q at position %d", ErrInvalidAddress, r, i)
		}
	}

	return Address(s), nil
}
