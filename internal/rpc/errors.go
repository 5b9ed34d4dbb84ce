package rpc

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidated    = errors.New("rpc: channel invalidated")
	ErrResumed        = errors.New("rpc: channel already resumed")
	ErrNotEncodable   = errors.New("rpc: argument not encodable")
	ErrUnknownMethod  = errors.New("rpc: unknown method")
	ErrNoReply        = errors.New("rpc: method has no reply")
	ErrBadArguments   = errors.New("rpc: bad arguments")
	ErrAlreadyReplied = errors.New("rpc: call already replied")
)

// RemoteError is a fault reported by the peer for one call.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc: remote fault %s: %s", e.Code, e.Message)
}
