package worker

import (
	"context"
	"os"

	"github.com/danmuck/deltaxpc/internal/contract"
	"github.com/danmuck/deltaxpc/internal/core"
	"github.com/danmuck/deltaxpc/internal/endpoint"
	"github.com/danmuck/deltaxpc/internal/logging"
	"github.com/danmuck/deltaxpc/internal/protocol/session"
	"github.com/danmuck/deltaxpc/internal/rpc"
	"github.com/rs/zerolog"
)

// Establisher turns a validated request into a live channel.
type Establisher interface {
	Establish(ctx context.Context, req StartSessionRequest) (*rpc.Channel, error)
}

// BridgeOptions configures a Bridge. Exit defaults to os.Exit.
type BridgeOptions struct {
	Session session.Config
	Exit    func(code int)
}

// Bridge materializes the worker side of a session channel.
type Bridge struct {
	registry *core.Registry
	opts     BridgeOptions
	logger   zerolog.Logger
}

func NewBridge(registry *core.Registry, opts BridgeOptions) *Bridge {
	opts.Session = opts.Session.WithDefaults()
	if opts.Exit == nil {
		opts.Exit = os.Exit
	}
	return &Bridge{
		registry: registry,
		opts:     opts,
		logger:   logging.Component("worker.bridge"),
	}
}

// Establish dials req.Endpoint, exports the session object and pings the
// main process once. Only dial and activation failures are returned;
// channel errors after activation are logged.
func (b *Bridge) Establish(ctx context.Context, req StartSessionRequest) (*rpc.Channel, error) {
	conn, err := endpoint.Dial(ctx, req.Endpoint, b.opts.Session)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}

	ch := rpc.NewChannel(conn, rpc.Options{
		Name:         "worker",
		Limits:       b.opts.Session.Limits,
		WriteTimeout: b.opts.Session.WriteTimeout,
	})

	var bridge core.EmulatorBridge
	if c, ok := b.registry.Lookup(req.GameType); ok {
		bridge = c.Bridge()
	} else {
		b.logger.Warn().Str("game_type", string(req.GameType)).Msg("no core for game type")
	}
	obj := NewSessionObject(req.GameType, bridge, b.opts.Exit)

	if err := b.configure(ch, obj); err != nil {
		_ = ch.Close()
		return nil, &ConnectionError{Err: err}
	}

	host := contract.NewMainProcessProxy(ch.RemoteObjectProxyWithErrorHandler(func(err error) {
		b.logger.Warn().Err(err).Msg("host proxy error")
	}))
	if err := host.Ping(); err != nil {
		b.logger.Warn().Err(err).Msg("ping failed")
	}
	b.logger.Info().
		Str("endpoint", req.Endpoint.String()).
		Str("game_type", string(req.GameType)).
		Bool("core", obj.HasBridge()).
		Msg("channel established")
	return ch, nil
}

func (b *Bridge) configure(ch *rpc.Channel, obj *SessionObject) error {
	if err := ch.SetExportedInterface(contract.NestedEmulatorProcess()); err != nil {
		return err
	}
	if err := ch.SetExportedObject(contract.NewEmulatorProcessHandler(obj)); err != nil {
		return err
	}
	if err := ch.SetRemoteInterface(contract.MainProcessInterface()); err != nil {
		return err
	}
	ch.SetErrorHandler(func(err error) {
		b.logger.Warn().Err(err).Msg("channel error")
	})
	return ch.Resume()
}
