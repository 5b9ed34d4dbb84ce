package contract

import (
	"fmt"

	"github.com/danmuck/deltaxpc/internal/core"
	"github.com/danmuck/deltaxpc/internal/logging"
	"github.com/danmuck/deltaxpc/internal/rpc"
)

// EmulatorProcess is implemented by the worker's exported object. reply
// may be left uncalled, in which case the caller receives nothing.
type EmulatorProcess interface {
	StartProcess(reply func(core.EmulatorBridge))
	StopProcess()
}

// MainProcess is implemented by the main process's exported object.
type MainProcess interface {
	Ping()
}

func NewEmulatorProcessHandler(p EmulatorProcess) rpc.Handler {
	return rpc.HandlerFunc(func(call *rpc.Call) error {
		switch call.Method {
		case MethodStartProcess:
			p.StartProcess(func(b core.EmulatorBridge) {
				if err := call.Reply(NewBridgeHandler(b)); err != nil {
					logger := logging.Component("contract")
					logger.Warn().Err(err).Str("method", MethodStartProcess).Msg("bridge reply not sent")
				}
			})
			return nil
		case MethodStopProcess:
			p.StopProcess()
			return nil
		default:
			return fmt.Errorf("%w: %s.%s", rpc.ErrUnknownMethod, EmulatorProcessName, call.Method)
		}
	})
}

func NewMainProcessHandler(m MainProcess) rpc.Handler {
	return rpc.HandlerFunc(func(call *rpc.Call) error {
		if call.Method != MethodPing {
			return fmt.Errorf("%w: %s.%s", rpc.ErrUnknownMethod, MainProcessName, call.Method)
		}
		m.Ping()
		return nil
	})
}

// EmulatorProcessProxy calls the worker's exported object.
type EmulatorProcessProxy struct {
	p *rpc.Proxy
}

func NewEmulatorProcessProxy(p *rpc.Proxy) *EmulatorProcessProxy {
	return &EmulatorProcessProxy{p: p}
}

// StartProcess asks for the bridge. done runs once with the bridge proxy,
// or not at all when the worker has no core for the session.
func (e *EmulatorProcessProxy) StartProcess(done func(*BridgeProxy, error)) error {
	return e.p.Call(MethodStartProcess, nil, func(args []any, err error) {
		if err != nil {
			done(nil, err)
			return
		}
		p, err := rpc.ArgAs[*rpc.Proxy](args, 0)
		if err != nil {
			done(nil, err)
			return
		}
		done(NewBridgeProxy(p), nil)
	})
}

func (e *EmulatorProcessProxy) StopProcess() error {
	return e.p.Send(MethodStopProcess)
}

// MainProcessProxy is the worker's view of the main process.
type MainProcessProxy struct {
	p *rpc.Proxy
}

func NewMainProcessProxy(p *rpc.Proxy) *MainProcessProxy {
	return &MainProcessProxy{p: p}
}

func (m *MainProcessProxy) Ping() error {
	return m.p.Send(MethodPing)
}
