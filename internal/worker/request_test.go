package worker

import (
	"errors"
	"testing"

	"github.com/danmuck/deltaxpc/internal/endpoint"
	"github.com/danmuck/deltaxpc/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func goodDescriptor() endpoint.Descriptor {
	return endpoint.Descriptor{Network: endpoint.NetworkUnix, Address: "/tmp/deltaxpc-test.sock", Token: uuid.NewString()}
}

func TestParseStartSessionRequest(t *testing.T) {
	testlog.Start(t)
	desc := goodDescriptor()
	req, err := ParseStartSessionRequest(StartGamePayload("com.rileytestut.delta.game.nes", desc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := StartSessionRequest{GameType: "com.rileytestut.delta.game.nes", Endpoint: desc}
	if diff := cmp.Diff(want, req); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStartSessionRequestRejectsMalformed(t *testing.T) {
	testlog.Start(t)
	desc := goodDescriptor()
	cases := map[string]map[string]any{
		"missing gameType":    {KeyType: RequestTypeStartGame, KeyEndpoint: desc.Map()},
		"missing endpoint":    {KeyType: RequestTypeStartGame, KeyGameType: "game.nes"},
		"empty gameType":      {KeyGameType: "", KeyEndpoint: desc.Map()},
		"numeric gameType":    {KeyGameType: 7, KeyEndpoint: desc.Map()},
		"endpoint not a map":  {KeyGameType: "game.nes", KeyEndpoint: "unix:///tmp/x.sock"},
		"endpoint bad token":  {KeyGameType: "game.nes", KeyEndpoint: map[string]any{"network": "unix", "address": "/tmp/x", "token": "nope"}},
		"endpoint no address": {KeyGameType: "game.nes", KeyEndpoint: map[string]any{"network": "unix", "token": desc.Token}},
	}
	for name, payload := range cases {
		first, err := ParseStartSessionRequest(payload)
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("%s: expected ErrInvalidRequest, got %v (req=%+v)", name, err, first)
		}
		// Same input, same kind.
		if _, again := ParseStartSessionRequest(payload); ErrorKind(again) != ErrorKind(err) {
			t.Fatalf("%s: kind changed between calls: %v vs %v", name, err, again)
		}
	}
}

func TestAsMapping(t *testing.T) {
	testlog.Start(t)
	got, ok := asMapping(map[string]string{KeyType: RequestTypeStartGame, KeyGameType: "game.nes"})
	if !ok {
		t.Fatalf("string map should be a mapping")
	}
	want := map[string]any{KeyType: RequestTypeStartGame, KeyGameType: "game.nes"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mapping mismatch (-want +got):\n%s", diff)
	}
	for _, payload := range []any{nil, "start-game", []any{RequestTypeStartGame}, map[int]any{1: "x"}} {
		if _, ok := asMapping(payload); ok {
			t.Fatalf("%T should not be a mapping", payload)
		}
	}
}

func TestErrorKind(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		err  error
		want string
	}{
		{ErrInvalidRequest, KindInvalidRequest},
		{ErrUnknownRequest, KindUnknownRequest},
		{&ConnectionError{Err: errors.New("refused")}, KindConnection},
		{errors.New("anything else"), KindInvalidRequest},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) got=%s want=%s", tc.err, got, tc.want)
		}
	}
	connErr := &ConnectionError{Err: endpoint.ErrRejected}
	if !errors.Is(connErr, ErrConnection) || !errors.Is(connErr, endpoint.ErrRejected) {
		t.Fatalf("ConnectionError should unwrap to both causes")
	}
}
