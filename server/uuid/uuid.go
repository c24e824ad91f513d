package uuid

import (
	"github.com/google/uuid"

	"github.com/wireline/wireline/server/basen"
)

var base62 = basen.NewEncoder(basen.AlphabetBase62)

// New returns a new base62-encoded UUID.
func New() string {
	id := uuid.New()

	return base62.Encode(id[:])
}
