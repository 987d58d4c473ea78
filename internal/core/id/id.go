// Package id provides UUIDv7 identifiers for sessions, rows, lots and movements.
package id

import (
	"github.com/google/uuid"
)

// ID is a type alias for UUID, used across all entities.
// The zero value means "not yet persisted".
type ID = uuid.UUID

// New generates a new time-ordered UUIDv7.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil is the zero ID.
var Nil = uuid.Nil

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
