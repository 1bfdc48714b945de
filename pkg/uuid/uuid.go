// Package uuid provides time-ordered identifiers for catalog rows.
// UUID v7 sorts by creation time, which keeps SQLite primary-key indexes append-mostly.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// UUID is a 16-byte RFC 9562 identifier.
type UUID = googleuuid.UUID

// NewV7 generates a new UUID v7. It panics only if the system random source fails.
func NewV7() UUID {
	return googleuuid.Must(googleuuid.NewV7())
}

// NewString returns a new UUID v7 in canonical string form.
func NewString() string {
	return NewV7().String()
}

// Parse validates and decodes a canonical UUID string.
func Parse(s string) (UUID, error) {
	return googleuuid.Parse(s)
}
