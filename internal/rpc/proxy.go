package rpc

import "fmt"

// ReplyFunc receives the reply values of one call, or the error that
// ended it. It runs on the channel's read goroutine.
type ReplyFunc func(args []any, err error)

// Proxy is a callable reference to an object exported by the peer.
type Proxy struct {
	ch      *Channel
	id      uint64
	iface   *Interface
	onError func(error)
}

func (p *Proxy) Interface() *Interface {
	return p.iface
}

// ObjectID is the peer-side id of the referenced object.
func (p *Proxy) ObjectID() uint64 {
	return p.id
}

// WithErrorHandler returns a copy of p that reports send failures to fn.
func (p *Proxy) WithErrorHandler(fn func(error)) *Proxy {
	cp := *p
	cp.onError = fn
	return &cp
}

// Call issues method asynchronously. reply may be nil for fire-and-forget
// calls; a non-nil reply requires a method declared with HasReply.
func (p *Proxy) Call(method string, args []any, reply ReplyFunc) error {
	err := p.call(method, args, reply)
	if err != nil && p.onError != nil {
		p.onError(err)
	}
	return err
}

// Send is Call without a reply.
func (p *Proxy) Send(method string, args ...any) error {
	return p.Call(method, args, nil)
}

func (p *Proxy) call(method string, args []any, reply ReplyFunc) error {
	if p.iface == nil {
		return fmt.Errorf("%w: proxy %d has no interface", ErrUnknownMethod, p.id)
	}
	m, ok := p.iface.Method(method)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownMethod, p.iface.Name(), method)
	}
	if reply != nil && !m.HasReply {
		return fmt.Errorf("%w: %s.%s", ErrNoReply, p.iface.Name(), method)
	}
	return p.ch.call(p.id, p.iface, m, args, reply)
}
