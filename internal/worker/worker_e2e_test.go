package worker_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/deltaxpc/internal/core"
	"github.com/danmuck/deltaxpc/internal/core/builtin"
	"github.com/danmuck/deltaxpc/internal/extension"
	"github.com/danmuck/deltaxpc/internal/host"
	"github.com/danmuck/deltaxpc/internal/protocol/session"
	"github.com/danmuck/deltaxpc/internal/testutil/testlog"
	"github.com/danmuck/deltaxpc/internal/worker"
)

type harness struct {
	host    *host.Session
	handler *worker.Handler
	ectx    *extension.StdioContext
	out     *bytes.Buffer
	exits   chan int
}

func sessionConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.ConnectTimeout = time.Second
	cfg.HandshakeTimeout = time.Second
	return cfg
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	hs, err := host.NewSession(host.Config{Dir: t.TempDir(), Session: sessionConfig()})
	if err != nil {
		t.Fatalf("new host session: %v", err)
	}
	t.Cleanup(func() { _ = hs.Close() })

	registry, err := builtin.NewRegistry(nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	exits := make(chan int, 2)
	bridge := worker.NewBridge(registry, worker.BridgeOptions{
		Session: sessionConfig(),
		Exit:    func(code int) { exits <- code },
	})
	return &harness{
		host:    hs,
		handler: worker.NewHandler(context.Background(), bridge),
		out:     &bytes.Buffer{},
		exits:   exits,
	}
}

// begin runs one invocation and, when accept is set, serves the endpoint.
func (h *harness) begin(t *testing.T, payload any, accept bool) {
	t.Helper()
	h.ectx = extension.NewStdioContext(host.Invocation(payload), h.out, worker.ErrorKind)
	h.handler.BeginRequest(h.ectx)
	if accept {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.host.Accept(ctx); err != nil {
			t.Fatalf("host accept: %v", err)
		}
	}
	select {
	case <-h.handler.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("handler did not finish, state=%s", h.handler.State())
	}
	t.Cleanup(func() {
		if ch := h.handler.Channel(); ch != nil {
			_ = ch.Close()
			<-ch.Done()
		}
	})
}

func (h *harness) outcome(t *testing.T) extension.Outcome {
	t.Helper()
	<-h.ectx.Done()
	out, err := extension.ReadOutcome(bufio.NewReader(bytes.NewReader(h.out.Bytes())))
	if err != nil {
		t.Fatalf("read outcome: %v", err)
	}
	return out
}

func waitPing(t *testing.T, hs *host.Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := hs.WaitPing(ctx); err != nil {
		t.Fatalf("wait ping: %v", err)
	}
}

type frameSink struct {
	frames chan core.VideoFrame
}

func (s *frameSink) ProcessFrame(f core.VideoFrame) error {
	s.frames <- f
	return nil
}

type audioSink struct {
	writes chan int
}

func (s *audioSink) WriteAudio(samples []byte) error {
	s.writes <- len(samples)
	return nil
}

func TestStartGamePingsOnceAndServesBridge(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t)
	h.begin(t, h.host.StartGamePayload(builtin.GameTypeSNES), true)

	if out := h.outcome(t); !out.Completed {
		t.Fatalf("expected completed invocation, got %+v", out.Error)
	}
	if h.handler.State() != worker.StateCompleted || h.handler.Channel() == nil {
		t.Fatalf("unexpected handler state=%s", h.handler.State())
	}
	waitPing(t, h.host)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	bridge, err := h.host.StartProcess(ctx)
	if err != nil {
		t.Fatalf("start process: %v", err)
	}

	video := &frameSink{frames: make(chan core.VideoFrame, 2)}
	audio := &audioSink{writes: make(chan int, 2)}
	if err := bridge.SetVideoRenderer(video); err != nil {
		t.Fatalf("set video: %v", err)
	}
	if err := bridge.SetAudioRenderer(audio); err != nil {
		t.Fatalf("set audio: %v", err)
	}
	if err := bridge.Start("file:///games/chrono.sfc"); err != nil {
		t.Fatalf("start: %v", err)
	}
	done := make(chan error, 1)
	if err := bridge.RunFrame(true, func(err error) { done <- err }); err != nil {
		t.Fatalf("run frame: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run frame reply: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run frame not acknowledged")
	}
	select {
	case f := <-video.frames:
		if f.Width != 256 || f.Height != 224 {
			t.Fatalf("frame from wrong core: %dx%d", f.Width, f.Height)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame from worker")
	}
	select {
	case n := <-audio.writes:
		if n == 0 {
			t.Fatalf("empty audio buffer")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no audio from worker")
	}

	if got := h.host.Pings(); got != 1 {
		t.Fatalf("expected exactly one ping, got %d", got)
	}
}

func TestDeadEndpointCancelsWithConnectionError(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t)
	payload := h.host.StartGamePayload(builtin.GameTypeNES)
	if err := h.host.Close(); err != nil {
		t.Fatalf("close host: %v", err)
	}
	h.begin(t, payload, false)

	out := h.outcome(t)
	if out.Completed || out.Error == nil || out.Error.Kind != worker.KindConnection {
		t.Fatalf("expected connection cancel, got %+v", out)
	}
	if !errors.Is(h.handler.Err(), worker.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", h.handler.Err())
	}
	if h.host.Pings() != 0 {
		t.Fatalf("unexpected ping")
	}
}

func TestUnresolvedGameTypeDropsStartProcess(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t)
	h.begin(t, h.host.StartGamePayload("com.rileytestut.delta.game.n64"), true)

	if out := h.outcome(t); !out.Completed {
		t.Fatalf("expected completed invocation, got %+v", out.Error)
	}
	waitPing(t, h.host)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := h.host.StartProcess(ctx); !errors.Is(err, host.ErrNoReply) {
		t.Fatalf("expected ErrNoReply, got %v", err)
	}
	if ch := h.handler.Channel(); ch == nil || ch.Err() != nil {
		t.Fatalf("channel should stay live after dropped call")
	}
}

func TestStopProcessExitsZero(t *testing.T) {
	testlog.Start(t)
	for _, gameType := range []core.GameType{builtin.GameTypeGBA, "com.rileytestut.delta.game.n64"} {
		h := newHarness(t)
		h.begin(t, h.host.StartGamePayload(gameType), true)
		waitPing(t, h.host)

		if err := h.host.StopProcess(); err != nil {
			t.Fatalf("%s: stop process: %v", gameType, err)
		}
		select {
		case code := <-h.exits:
			if code != 0 {
				t.Fatalf("%s: exit code %d", gameType, code)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s: process did not exit", gameType)
		}
	}
}

func TestUnknownRequestOverStdio(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t)
	h.begin(t, map[string]any{"type": "resume-game"}, false)
	out := h.outcome(t)
	if out.Error == nil || out.Error.Kind != worker.KindUnknownRequest {
		t.Fatalf("expected unknown_request, got %+v", out)
	}
}
