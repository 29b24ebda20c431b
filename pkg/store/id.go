package store

import "github.com/google/uuid"

// NewID returns a random 128-bit identifier. Concurrent creates cannot race
// on assignment the way a shared counter would.
func NewID() string {
	return uuid.NewString()
}
