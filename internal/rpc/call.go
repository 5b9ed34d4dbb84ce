package rpc

import (
	"fmt"
	"sync"
)

// Handler is a locally exported object.
type Handler interface {
	Invoke(call *Call) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(call *Call) error

func (f HandlerFunc) Invoke(call *Call) error {
	return f(call)
}

// Call is one inbound invocation on an exported object.
type Call struct {
	Method string
	Args   []any

	mu      sync.Mutex
	replied bool
	reply   func(args []any) error
}

// ExpectsReply reports whether the caller is waiting for a reply.
func (c *Call) ExpectsReply() bool {
	return c.reply != nil
}

// Reply sends the reply values. It may be called from any goroutine, at
// most once; it is a no-op when the caller did not ask for a reply.
func (c *Call) Reply(args ...any) error {
	c.mu.Lock()
	if c.replied {
		c.mu.Unlock()
		return ErrAlreadyReplied
	}
	c.replied = true
	send := c.reply
	c.mu.Unlock()
	if send == nil {
		return nil
	}
	return send(args)
}

func (c *Call) hasReplied() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replied
}

// ObjectRef is a remote object id that arrived without a declared nested
// interface. It cannot be called.
type ObjectRef struct {
	ID uint64
}

// ArgAs returns args[i] as T.
func ArgAs[T any](args []any, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(args) {
		return zero, fmt.Errorf("%w: missing argument %d", ErrBadArguments, i)
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, fmt.Errorf("%w: argument %d is %T, want %T", ErrBadArguments, i, args[i], zero)
	}
	return v, nil
}
