package builtin

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/danmuck/deltaxpc/internal/core"
	"github.com/danmuck/deltaxpc/internal/logging"
	"github.com/rs/zerolog"
)

var (
	ErrNotRunning   = errors.New("builtin: engine not running")
	ErrAlreadyRun   = errors.New("builtin: engine already running")
	ErrInvalidGame  = errors.New("builtin: invalid game url")
	ErrInvalidInput = errors.New("builtin: invalid input")
)

// State is the engine run state.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

const (
	framesPerSecond = 60
	bytesPerSample  = 4 // 16-bit stereo
	maxInputs       = 64
)

// Engine is a reference EmulatorBridge. Calls arrive from the channel read
// loop, but the renderer slots may be replaced at any time, so state is
// guarded.
type Engine struct {
	meta       core.CoreMetadata
	sampleRate uint32
	logger     zerolog.Logger

	mu      sync.Mutex
	state   State
	gameURL string
	frames  uint64
	inputs  map[uint32]float64
	audio   core.AudioRenderer
	video   core.VideoRenderer
}

func NewEngine(meta core.CoreMetadata, sampleRate uint32) *Engine {
	return &Engine{
		meta:       meta,
		sampleRate: sampleRate,
		logger:     logging.Component("core." + strings.ToLower(meta.Name)),
		state:      StateStopped,
		inputs:     make(map[uint32]float64),
	}
}

func (e *Engine) SetAudioRenderer(r core.AudioRenderer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audio = r
}

func (e *Engine) SetVideoRenderer(r core.VideoRenderer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.video = r
}

func (e *Engine) Start(gameURL string) error {
	if strings.TrimSpace(gameURL) == "" {
		return ErrInvalidGame
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateStopped {
		return ErrAlreadyRun
	}
	e.state = StateRunning
	e.gameURL = gameURL
	e.frames = 0
	e.logger.Info().Str("game", gameURL).Msg("engine started")
	return nil
}

func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateStopped {
		return ErrNotRunning
	}
	e.state = StateStopped
	e.gameURL = ""
	clear(e.inputs)
	e.logger.Info().Uint64("frames", e.frames).Msg("engine stopped")
	return nil
}

func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		return ErrNotRunning
	}
	e.state = StatePaused
	return nil
}

func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePaused {
		return ErrNotRunning
	}
	e.state = StateRunning
	return nil
}

// RunFrame advances one frame. Audio is always produced; the video frame
// only when processVideo is set.
func (e *Engine) RunFrame(processVideo bool) error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return ErrNotRunning
	}
	e.frames++
	audio, video := e.audio, e.video
	e.mu.Unlock()

	if audio != nil {
		samples := make([]byte, e.sampleRate/framesPerSecond*bytesPerSample)
		if err := audio.WriteAudio(samples); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
	}
	if processVideo && video != nil {
		w, h := e.meta.FrameWidth, e.meta.FrameHeight
		frame := core.VideoFrame{
			Width:  w,
			Height: h,
			Format: core.PixelFormatRGB565,
			Pixels: make([]byte, int(w*h)*2),
		}
		if err := video.ProcessFrame(frame); err != nil {
			return fmt.Errorf("process frame: %w", err)
		}
	}
	return nil
}

func (e *Engine) ActivateInput(input uint32, value float64) error {
	if input >= maxInputs || math.IsNaN(value) || value < 0 || value > 1 {
		return fmt.Errorf("%w: input=%d value=%v", ErrInvalidInput, input, value)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputs[input] = value
	return nil
}

func (e *Engine) DeactivateInput(input uint32) error {
	if input >= maxInputs {
		return fmt.Errorf("%w: input=%d", ErrInvalidInput, input)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inputs, input)
	return nil
}

func (e *Engine) ResetInputs() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.inputs)
	return nil
}

// Snapshot is a point-in-time view of the engine.
type Snapshot struct {
	State        State
	GameURL      string
	Frames       uint64
	ActiveInputs int
	HasAudio     bool
	HasVideo     bool
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		State:        e.state,
		GameURL:      e.gameURL,
		Frames:       e.frames,
		ActiveInputs: len(e.inputs),
		HasAudio:     e.audio != nil,
		HasVideo:     e.video != nil,
	}
}
