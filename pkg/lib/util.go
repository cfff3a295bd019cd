package lib

import "github.com/google/uuid"

// NewID returns a random UUIDv4 string. Runs, started processes and watches
// are all named this way.
func NewID() string {
	return uuid.NewString()
}
