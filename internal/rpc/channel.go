package rpc

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/deltaxpc/internal/logging"
	"github.com/danmuck/deltaxpc/internal/observability"
	"github.com/danmuck/deltaxpc/internal/protocol/frame"
	"github.com/danmuck/deltaxpc/internal/protocol/schema"
	"github.com/danmuck/deltaxpc/internal/protocol/tlv"
	"github.com/rs/zerolog"
)

// RootObjectID is the id of each side's exported object.
const RootObjectID uint64 = 1

// Options configures a Channel.
type Options struct {
	Name         string
	Limits       frame.Limits
	WriteTimeout time.Duration
}

type exportedObject struct {
	handler Handler
	iface   *Interface
}

type pendingCall struct {
	iface    *Interface
	method   string
	reply    ReplyFunc
	issuedAt time.Time
}

// Channel is one live bidirectional connection. Inbound calls and replies
// are dispatched on a single read goroutine in arrival order.
type Channel struct {
	conn   net.Conn
	opts   Options
	logger zerolog.Logger

	mu             sync.Mutex
	exportedIface  *Interface
	exportedObject Handler
	remoteIface    *Interface
	errorHandler   func(error)
	objects        map[uint64]exportedObject
	nextObjectID   uint64
	pending        map[uint64]pendingCall
	resumed        bool
	invalidated    error

	writeMu       sync.Mutex
	nextMessageID atomic.Uint64
	done          chan struct{}
	doneOnce      sync.Once
}

func NewChannel(conn net.Conn, opts Options) *Channel {
	opts.Limits = opts.Limits.WithDefaults()
	if opts.Name == "" {
		opts.Name = "channel"
	}
	return &Channel{
		conn:         conn,
		opts:         opts,
		logger:       logging.Component("rpc.Channel").With().Str("channel", opts.Name).Logger(),
		objects:      make(map[uint64]exportedObject),
		nextObjectID: RootObjectID,
		pending:      make(map[uint64]pendingCall),
		done:         make(chan struct{}),
	}
}

// SetExportedInterface declares the shape of the object this side exports.
func (c *Channel) SetExportedInterface(iface *Interface) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resumed {
		return ErrResumed
	}
	c.exportedIface = iface
	return nil
}

// SetExportedObject sets the object the peer reaches through its root proxy.
func (c *Channel) SetExportedObject(h Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resumed {
		return ErrResumed
	}
	c.exportedObject = h
	return nil
}

// SetRemoteInterface declares the shape of the peer's exported object.
func (c *Channel) SetRemoteInterface(iface *Interface) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resumed {
		return ErrResumed
	}
	c.remoteIface = iface
	return nil
}

// SetErrorHandler registers the callback run once when the channel is
// invalidated. It runs on the read goroutine.
func (c *Channel) SetErrorHandler(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorHandler = fn
}

// Resume activates the channel. Configuration is frozen afterwards.
func (c *Channel) Resume() error {
	c.mu.Lock()
	if c.resumed {
		c.mu.Unlock()
		return ErrResumed
	}
	if c.invalidated != nil {
		c.mu.Unlock()
		return c.invalidated
	}
	c.resumed = true
	if c.exportedObject != nil {
		if c.exportedIface == nil {
			c.mu.Unlock()
			return fmt.Errorf("rpc: %s: exported object without exported interface", c.opts.Name)
		}
		c.objects[RootObjectID] = exportedObject{handler: c.exportedObject, iface: c.exportedIface}
	}
	c.mu.Unlock()

	go c.readLoop()
	c.logger.Debug().Msg("channel resumed")
	return nil
}

// RemoteObjectProxy returns a proxy for the peer's exported object.
func (c *Channel) RemoteObjectProxy() *Proxy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Proxy{ch: c, id: RootObjectID, iface: c.remoteIface}
}

// RemoteObjectProxyWithErrorHandler is RemoteObjectProxy with fn receiving
// failures of calls issued through the proxy.
func (c *Channel) RemoteObjectProxyWithErrorHandler(fn func(error)) *Proxy {
	return c.RemoteObjectProxy().WithErrorHandler(fn)
}

// Err returns the invalidation cause, or nil while the channel is usable.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidated
}

// Done is closed once the channel has been invalidated.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close tears down the connection. Pending calls fail with ErrInvalidated.
// Close does not wait for the read goroutine; use Done for that.
func (c *Channel) Close() error {
	err := c.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	c.mu.Lock()
	resumed := c.resumed
	c.mu.Unlock()
	if !resumed {
		c.invalidate(net.ErrClosed)
	}
	return err
}

func (c *Channel) readLoop() {
	for {
		f, err := frame.ReadFrame(c.conn, c.opts.Limits)
		if err != nil {
			c.invalidate(err)
			return
		}
		c.dispatch(f)
	}
}

func (c *Channel) invalidate(cause error) {
	c.mu.Lock()
	if c.invalidated != nil {
		c.mu.Unlock()
		return
	}
	if errors.Is(cause, io.EOF) || errors.Is(cause, net.ErrClosed) || errors.Is(cause, io.ErrClosedPipe) {
		c.invalidated = fmt.Errorf("%w: connection closed", ErrInvalidated)
	} else {
		c.invalidated = fmt.Errorf("%w: %v", ErrInvalidated, cause)
		observability.RecordChannelError()
	}
	invalidated := c.invalidated
	pending := c.pending
	c.pending = make(map[uint64]pendingCall)
	handler := c.errorHandler
	c.mu.Unlock()

	_ = c.conn.Close()
	c.logger.Debug().Err(cause).Int("pending", len(pending)).Msg("channel invalidated")
	for _, p := range pending {
		p.reply(nil, invalidated)
	}
	if handler != nil {
		handler(invalidated)
	}
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Channel) call(target uint64, iface *Interface, m Method, args []any, reply ReplyFunc) error {
	fields, err := c.encodeArgs(iface, m.Name, args, false)
	if err != nil {
		return err
	}
	id := c.nextMessageID.Add(1)
	var flags uint32
	c.mu.Lock()
	if c.invalidated != nil {
		err := c.invalidated
		c.mu.Unlock()
		return err
	}
	if reply != nil {
		flags |= frame.FlagExpectsReply
		c.pending[id] = pendingCall{iface: iface, method: m.Name, reply: reply, issuedAt: time.Now()}
	}
	c.mu.Unlock()

	head := []tlv.Field{
		tlv.U64(schema.FieldTarget, target),
		tlv.String(schema.FieldMethod, m.Name),
	}
	if err := c.writeMessage(id, schema.MsgCall, flags, append(head, fields...)); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return err
	}
	observability.RecordCall(observability.DirectionOutbound, iface.Name()+"."+m.Name)
	return nil
}

func (c *Channel) writeMessage(id uint64, messageType, flags uint32, fields []tlv.Field) error {
	payload := tlv.EncodeFields(fields)
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.opts.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	return frame.WriteFrame(c.conn, frame.Frame{
		Header: frame.Header{
			MessageID:   id,
			MessageType: messageType,
			Flags:       flags,
		},
		Payload: payload,
	}, c.opts.Limits)
}

func (c *Channel) dispatch(f frame.Frame) {
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		c.logger.Warn().Err(err).Uint64("message_id", f.Header.MessageID).Msg("drop undecodable frame")
		return
	}
	if err := schema.Validate(f.Header.MessageType, fields); err != nil {
		c.logger.Warn().Err(err).Uint64("message_id", f.Header.MessageID).Msg("drop invalid frame")
		return
	}
	switch f.Header.MessageType {
	case schema.MsgCall:
		c.handleCall(f.Header, fields)
	case schema.MsgReply, schema.MsgFault:
		c.handleReply(f.Header, fields)
	}
}

func (c *Channel) handleCall(h frame.Header, fields []tlv.Field) {
	targetField, _ := tlv.GetField(fields, schema.FieldTarget)
	target, _ := targetField.AsU64()
	methodField, _ := tlv.GetField(fields, schema.FieldMethod)
	method, _ := methodField.AsString()
	expects := h.HasFlag(frame.FlagExpectsReply)

	c.mu.Lock()
	obj, ok := c.objects[target]
	c.mu.Unlock()
	if !ok {
		c.fault(h.MessageID, expects, schema.FaultUnknownObject, fmt.Sprintf("object %d", target))
		return
	}
	m, ok := obj.iface.Method(method)
	if !ok {
		c.fault(h.MessageID, expects, schema.FaultUnknownMethod, obj.iface.Name()+"."+method)
		return
	}
	if expects && !m.HasReply {
		c.fault(h.MessageID, expects, schema.FaultBadArguments, obj.iface.Name()+"."+method+" has no reply")
		return
	}
	args, err := c.decodeArgs(obj.iface, method, fields, false)
	if err != nil {
		c.fault(h.MessageID, expects, schema.FaultBadArguments, err.Error())
		return
	}
	observability.RecordCall(observability.DirectionInbound, obj.iface.Name()+"."+method)

	call := &Call{Method: method, Args: args}
	if expects {
		messageID := h.MessageID
		iface := obj.iface
		call.reply = func(values []any) error {
			out, err := c.encodeArgs(iface, method, values, true)
			if err != nil {
				return err
			}
			return c.writeMessage(messageID, schema.MsgReply, frame.FlagIsResponse, out)
		}
	}
	if err := obj.handler.Invoke(call); err != nil {
		c.logger.Debug().Err(err).Str("method", obj.iface.Name()+"."+method).Msg("handler failed")
		if expects && !call.hasReplied() {
			c.fault(h.MessageID, expects, schema.FaultHandler, err.Error())
		}
	}
}

func (c *Channel) handleReply(h frame.Header, fields []tlv.Field) {
	c.mu.Lock()
	p, ok := c.pending[h.MessageID]
	delete(c.pending, h.MessageID)
	c.mu.Unlock()
	if !ok {
		c.logger.Warn().Uint64("message_id", h.MessageID).Msg("reply for unknown call")
		return
	}
	observability.RecordReply(p.iface.Name()+"."+p.method, time.Since(p.issuedAt))

	if h.MessageType == schema.MsgFault {
		codeField, _ := tlv.GetField(fields, schema.FieldFaultCode)
		msgField, _ := tlv.GetField(fields, schema.FieldFaultMessage)
		code, _ := codeField.AsString()
		msg, _ := msgField.AsString()
		p.reply(nil, &RemoteError{Code: code, Message: msg})
		return
	}
	args, err := c.decodeArgs(p.iface, p.method, fields, true)
	if err != nil {
		p.reply(nil, err)
		return
	}
	p.reply(args, nil)
}

func (c *Channel) fault(messageID uint64, expects bool, code, message string) {
	c.logger.Warn().Str("code", code).Str("detail", message).Msg("call fault")
	if !expects {
		return
	}
	err := c.writeMessage(messageID, schema.MsgFault, frame.FlagIsResponse|frame.FlagIsError, []tlv.Field{
		tlv.String(schema.FieldFaultCode, code),
		tlv.String(schema.FieldFaultMessage, message),
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("write fault")
	}
}

func (c *Channel) export(h Handler, iface *Interface) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextObjectID++
	id := c.nextObjectID
	c.objects[id] = exportedObject{handler: h, iface: iface}
	return id
}

func (c *Channel) encodeArgs(iface *Interface, method string, args []any, ofReply bool) ([]tlv.Field, error) {
	if len(args) > schema.MaxArgs {
		return nil, fmt.Errorf("%w: %d arguments", ErrNotEncodable, len(args))
	}
	fields := make([]tlv.Field, 0, len(args))
	for i, v := range args {
		id := schema.ArgFieldID(i)
		switch x := v.(type) {
		case Handler:
			nested := iface.Nested(method, i, ofReply)
			if nested == nil {
				return nil, fmt.Errorf("%w: %s.%s argument %d is an object without a declared interface", ErrNotEncodable, iface.Name(), method, i)
			}
			fields = append(fields, tlv.Object(id, c.export(x, nested)))
		case *Proxy, ObjectRef:
			return nil, fmt.Errorf("%w: %s.%s argument %d is a peer object", ErrNotEncodable, iface.Name(), method, i)
		default:
			f, ok := tlv.Encode(id, v)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s argument %d has type %T", ErrNotEncodable, iface.Name(), method, i, v)
			}
			fields = append(fields, f)
		}
	}
	return fields, nil
}

func (c *Channel) decodeArgs(iface *Interface, method string, fields []tlv.Field, ofReply bool) ([]any, error) {
	byIndex := make(map[int]tlv.Field)
	for _, f := range fields {
		if idx, ok := schema.IsArgField(f.ID); ok {
			byIndex[idx] = f
		}
	}
	args := make([]any, len(byIndex))
	for i := range args {
		f, ok := byIndex[i]
		if !ok {
			return nil, fmt.Errorf("%w: argument %d missing", ErrBadArguments, i)
		}
		if f.Type == tlv.TypeObject {
			objectID, err := f.AsU64()
			if err != nil {
				return nil, fmt.Errorf("%w: argument %d: %v", ErrBadArguments, i, err)
			}
			nested := iface.Nested(method, i, ofReply)
			if nested == nil {
				args[i] = ObjectRef{ID: objectID}
				continue
			}
			c.mu.Lock()
			onError := c.errorHandler
			c.mu.Unlock()
			args[i] = &Proxy{ch: c, id: objectID, iface: nested, onError: onError}
			continue
		}
		v, err := f.Decode()
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d: %v", ErrBadArguments, i, err)
		}
		args[i] = v
	}
	return args, nil
}
