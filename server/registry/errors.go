package registry

import "github.com/juju/errors"

var (
	// ErrClientBanned is returned when a banned id attempts (re-)admission.
	ErrClientBanned = errors.New("client banned")

	// ErrClientExists is returned when the id is already registered.
	ErrClientExists = errors.New("client already exists")

	// ErrCapacityReached is returned when admission would exceed the
	// configured maximum.
	ErrCapacityReached = errors.New("capacity reached")
)
