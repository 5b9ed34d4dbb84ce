package contract

import (
	"fmt"
	"math"

	"github.com/danmuck/deltaxpc/internal/core"
	"github.com/danmuck/deltaxpc/internal/rpc"
)

// NewBridgeHandler exports b. Renderer arguments arrive as proxies and are
// installed as b's renderers.
func NewBridgeHandler(b core.EmulatorBridge) rpc.Handler {
	return rpc.HandlerFunc(func(call *rpc.Call) error {
		switch call.Method {
		case MethodSetAudioRenderer:
			p, err := rpc.ArgAs[*rpc.Proxy](call.Args, 0)
			if err != nil {
				return err
			}
			b.SetAudioRenderer(NewAudioRendererProxy(p))
			return nil
		case MethodSetVideoRenderer:
			p, err := rpc.ArgAs[*rpc.Proxy](call.Args, 0)
			if err != nil {
				return err
			}
			b.SetVideoRenderer(NewVideoRendererProxy(p))
			return nil
		case MethodStart:
			url, err := rpc.ArgAs[string](call.Args, 0)
			if err != nil {
				return err
			}
			return b.Start(url)
		case MethodStop:
			return b.Stop()
		case MethodPause:
			return b.Pause()
		case MethodResume:
			return b.Resume()
		case MethodRunFrame:
			processVideo, err := rpc.ArgAs[bool](call.Args, 0)
			if err != nil {
				return err
			}
			if err := b.RunFrame(processVideo); err != nil {
				return err
			}
			return call.Reply()
		case MethodActivateInput:
			input, err := rpc.ArgAs[uint32](call.Args, 0)
			if err != nil {
				return err
			}
			bits, err := rpc.ArgAs[uint64](call.Args, 1)
			if err != nil {
				return err
			}
			return b.ActivateInput(input, math.Float64frombits(bits))
		case MethodDeactivateInput:
			input, err := rpc.ArgAs[uint32](call.Args, 0)
			if err != nil {
				return err
			}
			return b.DeactivateInput(input)
		case MethodResetInputs:
			return b.ResetInputs()
		default:
			return fmt.Errorf("%w: %s.%s", rpc.ErrUnknownMethod, EmulatorBridgeName, call.Method)
		}
	})
}

// BridgeProxy drives a remote EmulatorBridge.
type BridgeProxy struct {
	p *rpc.Proxy
}

func NewBridgeProxy(p *rpc.Proxy) *BridgeProxy {
	return &BridgeProxy{p: p}
}

// SetAudioRenderer exports r to the worker as the bridge's audio slot.
func (b *BridgeProxy) SetAudioRenderer(r core.AudioRenderer) error {
	return b.p.Send(MethodSetAudioRenderer, NewAudioRendererHandler(r))
}

func (b *BridgeProxy) SetVideoRenderer(r core.VideoRenderer) error {
	return b.p.Send(MethodSetVideoRenderer, NewVideoRendererHandler(r))
}

func (b *BridgeProxy) Start(gameURL string) error {
	return b.p.Send(MethodStart, gameURL)
}

func (b *BridgeProxy) Stop() error {
	return b.p.Send(MethodStop)
}

func (b *BridgeProxy) Pause() error {
	return b.p.Send(MethodPause)
}

func (b *BridgeProxy) Resume() error {
	return b.p.Send(MethodResume)
}

// RunFrame advances one frame; done runs when the worker finished it.
func (b *BridgeProxy) RunFrame(processVideo bool, done func(error)) error {
	return b.p.Call(MethodRunFrame, []any{processVideo}, func(_ []any, err error) {
		done(err)
	})
}

func (b *BridgeProxy) ActivateInput(input uint32, value float64) error {
	return b.p.Send(MethodActivateInput, input, math.Float64bits(value))
}

func (b *BridgeProxy) DeactivateInput(input uint32) error {
	return b.p.Send(MethodDeactivateInput, input)
}

func (b *BridgeProxy) ResetInputs() error {
	return b.p.Send(MethodResetInputs)
}
