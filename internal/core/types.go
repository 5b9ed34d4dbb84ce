package core

// GameType names one emulation system, for example
// "com.rileytestut.delta.game.nes".
type GameType string

// CoreMetadata is the identity and display data of one core.
type CoreMetadata struct {
	GameType    GameType
	Name        string
	Description string
	FrameWidth  uint32
	FrameHeight uint32
}

// VideoFrame is one rendered frame pushed to a VideoRenderer.
type VideoFrame struct {
	Width  uint32
	Height uint32
	Format string
	Pixels []byte
}

// Pixel formats carried in VideoFrame.Format.
const (
	PixelFormatRGB565   = "rgb565"
	PixelFormatBGRA8888 = "bgra8888"
)

// AudioRenderer consumes interleaved PCM sample buffers.
type AudioRenderer interface {
	WriteAudio(samples []byte) error
}

// VideoRenderer consumes rendered frames.
type VideoRenderer interface {
	ProcessFrame(frame VideoFrame) error
}

// EmulatorBridge is the control surface a core exposes to the main process.
// The renderer slots hold remote objects once the main process sets them.
type EmulatorBridge interface {
	SetAudioRenderer(r AudioRenderer)
	SetVideoRenderer(r VideoRenderer)
	Start(gameURL string) error
	Stop() error
	Pause() error
	Resume() error
	RunFrame(processVideo bool) error
	ActivateInput(input uint32, value float64) error
	DeactivateInput(input uint32) error
	ResetInputs() error
}

// EmulatorCore is one registered emulation system.
type EmulatorCore interface {
	Metadata() CoreMetadata
	Bridge() EmulatorBridge
}
