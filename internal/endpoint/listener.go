package endpoint

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/danmuck/deltaxpc/internal/auth"
	"github.com/danmuck/deltaxpc/internal/logging"
	"github.com/danmuck/deltaxpc/internal/protocol/session"
	"github.com/google/uuid"
)

// Listener is the main-process side of an endpoint. It hands out exactly
// one authenticated connection and then stops listening.
type Listener struct {
	ln     net.Listener
	desc   Descriptor
	path   string
	tokens auth.Validator

	mu       sync.Mutex
	consumed bool
}

// ListenUnix opens a unix socket endpoint inside dir.
func ListenUnix(dir string) (*Listener, error) {
	token := uuid.NewString()
	// Short name keeps the path under the sun_path limit.
	path := filepath.Join(dir, "deltaxpc-"+token[:8]+".sock")
	return listen(NetworkUnix, path, token)
}

// Listen opens an endpoint on an explicit network/address pair.
func Listen(network, address string) (*Listener, error) {
	return listen(network, address, uuid.NewString())
}

func listen(network, address, token string) (*Listener, error) {
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("endpoint: listen %s %s: %w", network, address, err)
	}
	l := &Listener{
		ln:     ln,
		tokens: auth.EndpointToken{Token: token},
		desc: Descriptor{
			Network: network,
			Address: ln.Addr().String(),
			Token:   token,
		},
	}
	if network == NetworkUnix {
		l.path = address
		l.desc.Address = address
	}
	return l, nil
}

// Endpoint returns the descriptor to embed in the start-game request.
func (l *Listener) Endpoint() Descriptor {
	return l.desc
}

// Accept waits for the worker holding this endpoint's token. Peers with a
// wrong token are rejected and the wait continues. After one peer is
// accepted the listener is closed.
func (l *Listener) Accept(ctx context.Context, cfg session.Config) (net.Conn, error) {
	cfg = cfg.WithDefaults()
	logger := logging.Component("endpoint.Listener")

	l.mu.Lock()
	if l.consumed {
		l.mu.Unlock()
		return nil, ErrConsumed
	}
	l.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = l.ln.Close() })
	defer stop()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		ok, err := l.handshake(conn, cfg)
		if err != nil {
			logger.Warn().Err(err).Str("endpoint", l.desc.String()).Msg("handshake failed")
			_ = conn.Close()
			continue
		}
		if !ok {
			_ = conn.Close()
			continue
		}

		l.mu.Lock()
		l.consumed = true
		l.mu.Unlock()
		_ = l.Close()
		logger.Debug().Str("endpoint", l.desc.String()).Msg("peer accepted")
		return conn, nil
	}
}

func (l *Listener) handshake(conn net.Conn, cfg session.Config) (bool, error) {
	_ = conn.SetDeadline(time.Now().Add(cfg.HandshakeTimeout))
	reader := bufio.NewReader(conn)
	hello, err := session.ReadHello(reader)
	if err != nil {
		return false, err
	}
	ack := session.HelloAck{
		Status:      session.AckStatusAccepted,
		Message:     "accepted",
		TimestampMS: uint64(time.Now().UnixMilli()),
	}
	accepted := l.tokens.Validate(hello.Token) == nil && hello.Version == session.ProtocolVersion
	if !accepted {
		ack.Status = session.AckStatusRejected
		ack.Message = "token or version mismatch"
	}
	if err := session.WriteHelloAck(conn, ack); err != nil {
		return false, err
	}
	_ = conn.SetDeadline(time.Time{})
	if accepted && reader.Buffered() > 0 {
		return false, errors.New("endpoint: peer sent data before hello ack")
	}
	return accepted, nil
}

// Close stops listening and removes the socket file.
func (l *Listener) Close() error {
	err := l.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	if l.path != "" {
		if rmErr := os.Remove(l.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}
	return err
}
