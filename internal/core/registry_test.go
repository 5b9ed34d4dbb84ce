package core

import (
	"errors"
	"testing"

	"github.com/danmuck/deltaxpc/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
)

type fakeCore struct {
	meta CoreMetadata
}

func (f fakeCore) Metadata() CoreMetadata {
	return f.meta
}

func (f fakeCore) Bridge() EmulatorBridge {
	return nil
}

func meta(id string) CoreMetadata {
	return CoreMetadata{GameType: GameType(id), Name: id, FrameWidth: 1, FrameHeight: 1}
}

func TestRegisterLookupAndDuplicate(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	c := fakeCore{meta: meta("com.example.game.nes")}

	if err := r.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(c); !errors.Is(err, ErrCoreExists) {
		t.Fatalf("expected ErrCoreExists, got %v", err)
	}
	got, ok := r.Lookup("com.example.game.nes")
	if !ok || got.Metadata().GameType != "com.example.game.nes" {
		t.Fatalf("lookup failed: ok=%v", ok)
	}
}

func TestLookupMissIsNotAnError(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	if _, ok := r.Lookup("com.example.game.n64"); ok {
		t.Fatalf("expected miss")
	}
	var nilRegistry *Registry
	if _, ok := nilRegistry.Lookup("com.example.game.nes"); ok {
		t.Fatalf("expected miss on nil registry")
	}
}

func TestRegisterRejectsNilAndInvalid(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	if err := r.Register(nil); !errors.Is(err, ErrCoreNil) {
		t.Fatalf("expected ErrCoreNil, got %v", err)
	}
	bad := []CoreMetadata{
		{},
		{GameType: "com.example.game.nes"},
		{GameType: "Com.Example", Name: "x", FrameWidth: 1, FrameHeight: 1},
		{GameType: ".leading", Name: "x", FrameWidth: 1, FrameHeight: 1},
		{GameType: "double..sep", Name: "x", FrameWidth: 1, FrameHeight: 1},
		{GameType: "com.example.game.nes", Name: "x"},
	}
	for i, m := range bad {
		if err := r.Register(fakeCore{meta: m}); !errors.Is(err, ErrInvalidMetadata) {
			t.Fatalf("bad[%d] expected ErrInvalidMetadata, got %v", i, err)
		}
	}
}

func TestListMetadataSorted(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	for _, id := range []string{"game.z", "game.a", "game.m"} {
		if err := r.Register(fakeCore{meta: meta(id)}); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	var got []GameType
	for _, m := range r.ListMetadata() {
		got = append(got, m.GameType)
	}
	if diff := cmp.Diff([]GameType{"game.a", "game.m", "game.z"}, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}
