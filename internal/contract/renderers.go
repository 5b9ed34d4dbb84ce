package contract

import (
	"fmt"

	"github.com/danmuck/deltaxpc/internal/core"
	"github.com/danmuck/deltaxpc/internal/rpc"
)

func NewAudioRendererHandler(r core.AudioRenderer) rpc.Handler {
	return rpc.HandlerFunc(func(call *rpc.Call) error {
		if call.Method != MethodWriteAudio {
			return fmt.Errorf("%w: %s.%s", rpc.ErrUnknownMethod, AudioRenderingName, call.Method)
		}
		samples, err := rpc.ArgAs[[]byte](call.Args, 0)
		if err != nil {
			return err
		}
		return r.WriteAudio(samples)
	})
}

func NewVideoRendererHandler(r core.VideoRenderer) rpc.Handler {
	return rpc.HandlerFunc(func(call *rpc.Call) error {
		if call.Method != MethodProcessFrame {
			return fmt.Errorf("%w: %s.%s", rpc.ErrUnknownMethod, VideoRenderingName, call.Method)
		}
		var (
			frame core.VideoFrame
			err   error
		)
		if frame.Width, err = rpc.ArgAs[uint32](call.Args, 0); err != nil {
			return err
		}
		if frame.Height, err = rpc.ArgAs[uint32](call.Args, 1); err != nil {
			return err
		}
		if frame.Format, err = rpc.ArgAs[string](call.Args, 2); err != nil {
			return err
		}
		if frame.Pixels, err = rpc.ArgAs[[]byte](call.Args, 3); err != nil {
			return err
		}
		return r.ProcessFrame(frame)
	})
}

// AudioRendererProxy is a remote AudioRenderer held by the worker's core.
type AudioRendererProxy struct {
	p *rpc.Proxy
}

func NewAudioRendererProxy(p *rpc.Proxy) *AudioRendererProxy {
	return &AudioRendererProxy{p: p}
}

func (a *AudioRendererProxy) WriteAudio(samples []byte) error {
	return a.p.Send(MethodWriteAudio, samples)
}

// VideoRendererProxy is a remote VideoRenderer held by the worker's core.
type VideoRendererProxy struct {
	p *rpc.Proxy
}

func NewVideoRendererProxy(p *rpc.Proxy) *VideoRendererProxy {
	return &VideoRendererProxy{p: p}
}

func (v *VideoRendererProxy) ProcessFrame(frame core.VideoFrame) error {
	return v.p.Send(MethodProcessFrame, frame.Width, frame.Height, frame.Format, frame.Pixels)
}

var (
	_ core.AudioRenderer = (*AudioRendererProxy)(nil)
	_ core.VideoRenderer = (*VideoRendererProxy)(nil)
)
