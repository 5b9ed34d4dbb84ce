// Package host is the main-process end of a session: it owns the endpoint
// listener, exports MainProcess and drives the worker's exported object.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/danmuck/deltaxpc/internal/contract"
	"github.com/danmuck/deltaxpc/internal/core"
	"github.com/danmuck/deltaxpc/internal/endpoint"
	"github.com/danmuck/deltaxpc/internal/extension"
	"github.com/danmuck/deltaxpc/internal/logging"
	"github.com/danmuck/deltaxpc/internal/protocol/session"
	"github.com/danmuck/deltaxpc/internal/rpc"
	"github.com/danmuck/deltaxpc/internal/worker"
	"github.com/rs/zerolog"
)

var (
	ErrNotConnected = errors.New("host: session not connected")
	ErrNoReply      = errors.New("host: no reply from worker")
)

// Config configures a Session. Dir holds the endpoint socket.
type Config struct {
	Dir     string
	Session session.Config
}

// Session is one handoff to one worker.
type Session struct {
	cfg      Config
	listener *endpoint.Listener
	logger   zerolog.Logger

	pings  atomic.Int64
	pinged chan struct{}

	mu sync.Mutex
	ch *rpc.Channel
}

// NewSession listens on a fresh endpoint.
func NewSession(cfg Config) (*Session, error) {
	cfg.Session = cfg.Session.WithDefaults()
	l, err := endpoint.ListenUnix(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return &Session{
		cfg:      cfg,
		listener: l,
		logger:   logging.Component("host.Session"),
		pinged:   make(chan struct{}, 1),
	}, nil
}

func (s *Session) Endpoint() endpoint.Descriptor {
	return s.listener.Endpoint()
}

// StartGamePayload is the start-game request for gameType on this endpoint.
func (s *Session) StartGamePayload(gameType core.GameType) map[string]any {
	return worker.StartGamePayload(gameType, s.Endpoint())
}

// Invocation wraps payload as the single attachment of an invocation.
func Invocation(payload any) []extension.Item {
	return []extension.Item{{Attachments: []extension.Attachment{
		extension.PayloadAttachment{TypeIdentifier: extension.TypePropertyList, Payload: payload},
	}}}
}

// Accept waits for the worker to dial the endpoint and activates the
// channel.
func (s *Session) Accept(ctx context.Context) error {
	conn, err := s.listener.Accept(ctx, s.cfg.Session)
	if err != nil {
		return err
	}
	ch := rpc.NewChannel(conn, rpc.Options{
		Name:         "host",
		Limits:       s.cfg.Session.Limits,
		WriteTimeout: s.cfg.Session.WriteTimeout,
	})
	if err := s.configure(ch); err != nil {
		_ = ch.Close()
		return err
	}
	s.mu.Lock()
	s.ch = ch
	s.mu.Unlock()
	return nil
}

func (s *Session) configure(ch *rpc.Channel) error {
	if err := ch.SetExportedInterface(contract.MainProcessInterface()); err != nil {
		return err
	}
	if err := ch.SetExportedObject(contract.NewMainProcessHandler(s)); err != nil {
		return err
	}
	if err := ch.SetRemoteInterface(contract.NestedEmulatorProcess()); err != nil {
		return err
	}
	ch.SetErrorHandler(func(err error) {
		s.logger.Debug().Err(err).Msg("channel closed")
	})
	return ch.Resume()
}

// Ping implements contract.MainProcess.
func (s *Session) Ping() {
	s.pings.Add(1)
	select {
	case s.pinged <- struct{}{}:
	default:
	}
}

func (s *Session) Pings() int64 {
	return s.pings.Load()
}

// WaitPing blocks until the worker pinged at least once.
func (s *Session) WaitPing(ctx context.Context) error {
	if s.Pings() > 0 {
		return nil
	}
	select {
	case <-s.pinged:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) process() (*contract.EmulatorProcessProxy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		return nil, ErrNotConnected
	}
	return contract.NewEmulatorProcessProxy(s.ch.RemoteObjectProxy()), nil
}

// StartProcess requests the bridge. A worker without a core never replies,
// so ctx bounds the wait.
func (s *Session) StartProcess(ctx context.Context) (*contract.BridgeProxy, error) {
	proc, err := s.process()
	if err != nil {
		return nil, err
	}
	type result struct {
		bridge *contract.BridgeProxy
		err    error
	}
	out := make(chan result, 1)
	err = proc.StartProcess(func(b *contract.BridgeProxy, err error) {
		out <- result{bridge: b, err: err}
	})
	if err != nil {
		return nil, err
	}
	select {
	case r := <-out:
		return r.bridge, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrNoReply, ctx.Err())
	}
}

// StopProcess asks the worker to exit.
func (s *Session) StopProcess() error {
	proc, err := s.process()
	if err != nil {
		return err
	}
	return proc.StopProcess()
}

// Channel returns the live channel, or nil before Accept.
func (s *Session) Channel() *rpc.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

func (s *Session) Close() error {
	err := s.listener.Close()
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	if ch != nil {
		if cerr := ch.Close(); cerr != nil && err == nil {
			err = cerr
		}
		<-ch.Done()
	}
	return err
}
