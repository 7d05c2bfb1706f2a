package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Address identifies a seller, buyer, collection or the marketplace itself.
// Always stored normalized (lower case).
type Address string

var addressRe = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

// ParseAddress validates and normalizes a hex address.
func ParseAddress(s string) (Address, error) {
	a := strings.ToLower(strings.TrimSpace(s))
	if !addressRe.MatchString(a) {
		return "", fmt.Errorf("invalid address %q", s)
	}
	return Address(a), nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// NewRandomAddress generates a fresh 20-byte identity.
func NewRandomAddress() (Address, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating address: %w", err)
	}
	return Address("0x" + hex.EncodeToString(b)), nil
}

// Equal compares two addresses case-insensitively.
func (a Address) Equal(other Address) bool {
	return strings.EqualFold(string(a), string(other))
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == ""
}

func (a Address) String() string {
	return string(a)
}
