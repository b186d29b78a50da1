// Package id provides UUID-based identifier generation.
package id

import "github.com/google/uuid"

// UUID issues time-ordered UUIDv7 identifiers, falling back to
// random UUIDv4 when the system clock misbehaves.
type UUID struct{}

func (UUID) NewID() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return v7.String()
}
