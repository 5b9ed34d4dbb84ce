package worker

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest = errors.New("worker: invalid request")
	ErrUnknownRequest = errors.New("worker: unknown request")
	ErrConnection     = errors.New("worker: connection failed")
)

// Error kinds reported to the main process.
const (
	KindInvalidRequest = "invalid_request"
	KindUnknownRequest = "unknown_request"
	KindConnection     = "connection"

	// OutcomeCompleted labels requests that ended with a live channel.
	OutcomeCompleted = "completed"
)

// ConnectionError is a failure to materialize or activate the channel.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("worker: connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{ErrConnection, e.Err}
}

// ErrorKind maps err to exactly one of the three kinds. Anything that is
// neither an unknown request nor a connection failure counts as invalid.
func ErrorKind(err error) string {
	var connErr *ConnectionError
	switch {
	case errors.Is(err, ErrUnknownRequest):
		return KindUnknownRequest
	case errors.As(err, &connErr), errors.Is(err, ErrConnection):
		return KindConnection
	default:
		return KindInvalidRequest
	}
}
