package memory

import "errors"

var (
	// ErrMalformedObservation indicates an observation without a usable kind
	// or payload. Observe drops such events instead of returning it.
	ErrMalformedObservation = errors.New("malformed observation")

	// ErrUnknownKind indicates a wire observation whose type tag is not one
	// of the known kinds.
	ErrUnknownKind = errors.New("unknown observation kind")
)

func isUnknownKind(err error) bool {
	return errors.Is(err, ErrUnknownKind)
}
