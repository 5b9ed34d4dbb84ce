package worker

import (
	"github.com/danmuck/deltaxpc/internal/core"
	"github.com/danmuck/deltaxpc/internal/logging"
	"github.com/rs/zerolog"
)

// SessionObject is the object the worker exports. The bridge is set once at
// construction and may be nil when no core serves the game type.
type SessionObject struct {
	gameType core.GameType
	bridge   core.EmulatorBridge
	exit     func(code int)
	logger   zerolog.Logger
}

func NewSessionObject(gameType core.GameType, bridge core.EmulatorBridge, exit func(code int)) *SessionObject {
	return &SessionObject{
		gameType: gameType,
		bridge:   bridge,
		exit:     exit,
		logger:   logging.Component("worker.session").With().Str("game_type", string(gameType)).Logger(),
	}
}

// StartProcess hands the bridge to reply. Without a bridge the call is
// dropped and the caller never hears back.
func (s *SessionObject) StartProcess(reply func(core.EmulatorBridge)) {
	if s.bridge == nil {
		s.logger.Warn().Msg("startProcess without core; no reply")
		return
	}
	s.logger.Debug().Msg("startProcess")
	reply(s.bridge)
}

// StopProcess exits the process with status 0.
func (s *SessionObject) StopProcess() {
	s.logger.Info().Msg("stopProcess")
	s.exit(0)
}

func (s *SessionObject) HasBridge() bool {
	return s.bridge != nil
}
