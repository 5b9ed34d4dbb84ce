// Package builtin provides the fixed set of systems the worker ships with.
// The engines are reference cores: they track run state and push blank
// frames and silent audio through whichever renderers were set.
package builtin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/deltaxpc/internal/core"
)

var ErrUnknownCore = errors.New("builtin: unknown core")

// Game types of the known systems.
const (
	GameTypeNES  core.GameType = "com.rileytestut.delta.game.nes"
	GameTypeSNES core.GameType = "com.rileytestut.delta.game.snes"
	GameTypeGBC  core.GameType = "com.rileytestut.delta.game.gbc"
	GameTypeGBA  core.GameType = "com.rileytestut.delta.game.gba"
	GameTypeDS   core.GameType = "com.rileytestut.delta.game.ds"
)

type system struct {
	key        string
	meta       core.CoreMetadata
	sampleRate uint32
}

var systems = []system{
	{key: "nes", sampleRate: 44100, meta: core.CoreMetadata{GameType: GameTypeNES, Name: "NES", Description: "Nintendo Entertainment System", FrameWidth: 256, FrameHeight: 240}},
	{key: "snes", sampleRate: 32040, meta: core.CoreMetadata{GameType: GameTypeSNES, Name: "SNES", Description: "Super Nintendo Entertainment System", FrameWidth: 256, FrameHeight: 224}},
	{key: "gbc", sampleRate: 35112, meta: core.CoreMetadata{GameType: GameTypeGBC, Name: "GBC", Description: "Game Boy Color", FrameWidth: 160, FrameHeight: 144}},
	{key: "gba", sampleRate: 32768, meta: core.CoreMetadata{GameType: GameTypeGBA, Name: "GBA", Description: "Game Boy Advance", FrameWidth: 240, FrameHeight: 160}},
	{key: "ds", sampleRate: 32768, meta: core.CoreMetadata{GameType: GameTypeDS, Name: "DS", Description: "Nintendo DS", FrameWidth: 256, FrameHeight: 384}},
}

// Keys returns the short names accepted by NewRegistry, in registration order.
func Keys() []string {
	out := make([]string, 0, len(systems))
	for _, s := range systems {
		out = append(out, s.key)
	}
	return out
}

// NewRegistry registers the enabled systems once. An empty list enables all.
// Entries match either the short key ("nes") or the full game type.
func NewRegistry(enabled []string) (*core.Registry, error) {
	if len(enabled) == 0 {
		enabled = Keys()
	}
	r := core.NewRegistry()
	for _, raw := range enabled {
		name := strings.ToLower(strings.TrimSpace(raw))
		s, ok := findSystem(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCore, raw)
		}
		if err := r.Register(newCore(s)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func findSystem(name string) (system, bool) {
	for _, s := range systems {
		if s.key == name || string(s.meta.GameType) == name {
			return s, true
		}
	}
	return system{}, false
}

type builtinCore struct {
	meta   core.CoreMetadata
	engine *Engine
}

func newCore(s system) *builtinCore {
	return &builtinCore{meta: s.meta, engine: NewEngine(s.meta, s.sampleRate)}
}

func (c *builtinCore) Metadata() core.CoreMetadata {
	return c.meta
}

func (c *builtinCore) Bridge() core.EmulatorBridge {
	return c.engine
}
