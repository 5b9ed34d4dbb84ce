package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/deltaxpc/internal/endpoint"
	"github.com/danmuck/deltaxpc/internal/extension"
	"github.com/danmuck/deltaxpc/internal/testutil/testlog"
	"github.com/danmuck/deltaxpc/internal/worker"
)

func TestNewSessionPayload(t *testing.T) {
	testlog.Start(t)
	s, err := NewSession(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	desc := s.Endpoint()
	if err := desc.Validate(); err != nil {
		t.Fatalf("endpoint descriptor invalid: %v", err)
	}
	if desc.Network != endpoint.NetworkUnix {
		t.Fatalf("unexpected network: %s", desc.Network)
	}

	req, err := worker.ParseStartSessionRequest(s.StartGamePayload("com.rileytestut.delta.game.gbc"))
	if err != nil {
		t.Fatalf("payload should parse: %v", err)
	}
	if req.Endpoint != desc || req.GameType != "com.rileytestut.delta.game.gbc" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestInvocationWrapsPropertyList(t *testing.T) {
	testlog.Start(t)
	items := Invocation(map[string]any{"type": "start-game"})
	if len(items) != 1 || len(items[0].Attachments) != 1 {
		t.Fatalf("unexpected items: %+v", items)
	}
	if !items[0].Attachments[0].HasItemConformingTo(extension.TypePropertyList) {
		t.Fatalf("attachment is not a property list")
	}
}

func TestCallsBeforeAcceptFail(t *testing.T) {
	testlog.Start(t)
	s, err := NewSession(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	if _, err := s.StartProcess(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := s.StopProcess(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if s.Channel() != nil {
		t.Fatalf("expected no channel before accept")
	}
}

func TestAcceptHonorsContextAndWaitPing(t *testing.T) {
	testlog.Start(t)
	s, err := NewSession(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Accept(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if err := s.WaitPing(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded from WaitPing, got %v", err)
	}

	s.Ping()
	s.Ping()
	if got := s.Pings(); got != 2 {
		t.Fatalf("expected 2 pings, got %d", got)
	}
	if err := s.WaitPing(context.Background()); err != nil {
		t.Fatalf("wait ping after pings: %v", err)
	}
}
