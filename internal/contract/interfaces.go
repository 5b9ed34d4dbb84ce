// Package contract declares the remote interfaces spoken between the main
// process and the worker, with typed proxies and handler skeletons over
// the rpc package.
package contract

import "github.com/danmuck/deltaxpc/internal/rpc"

// Interface names.
const (
	EmulatorProcessName = "EmulatorProcess"
	MainProcessName     = "MainProcess"
	EmulatorBridgeName  = "EmulatorBridging"
	AudioRenderingName  = "AudioRendering"
	VideoRenderingName  = "VideoRendering"
)

// Method names.
const (
	MethodStartProcess = "startProcess"
	MethodStopProcess  = "stopProcess"

	MethodPing = "ping"

	MethodSetAudioRenderer = "setAudioRenderer"
	MethodSetVideoRenderer = "setVideoRenderer"
	MethodStart            = "start"
	MethodStop             = "stop"
	MethodPause            = "pause"
	MethodResume           = "resume"
	MethodRunFrame         = "runFrame"
	MethodActivateInput    = "activateInput"
	MethodDeactivateInput  = "deactivateInput"
	MethodResetInputs      = "resetInputs"

	MethodWriteAudio   = "writeAudio"
	MethodProcessFrame = "processFrame"
)

func AudioRenderingInterface() *rpc.Interface {
	return rpc.NewInterface(AudioRenderingName, rpc.Method{Name: MethodWriteAudio})
}

func VideoRenderingInterface() *rpc.Interface {
	return rpc.NewInterface(VideoRenderingName, rpc.Method{Name: MethodProcessFrame})
}

func MainProcessInterface() *rpc.Interface {
	return rpc.NewInterface(MainProcessName, rpc.Method{Name: MethodPing})
}

// EmulatorProcessInterface is the flat worker interface. Without the
// nested declarations the bridge arrives as an opaque rpc.ObjectRef.
func EmulatorProcessInterface() *rpc.Interface {
	return rpc.NewInterface(EmulatorProcessName,
		rpc.Method{Name: MethodStartProcess, HasReply: true},
		rpc.Method{Name: MethodStopProcess},
	)
}

// EmulatorBridgingInterface declares the bridge with its renderer setters
// taking remote objects.
func EmulatorBridgingInterface() *rpc.Interface {
	iface := rpc.NewInterface(EmulatorBridgeName,
		rpc.Method{Name: MethodSetAudioRenderer},
		rpc.Method{Name: MethodSetVideoRenderer},
		rpc.Method{Name: MethodStart},
		rpc.Method{Name: MethodStop},
		rpc.Method{Name: MethodPause},
		rpc.Method{Name: MethodResume},
		rpc.Method{Name: MethodRunFrame, HasReply: true},
		rpc.Method{Name: MethodActivateInput},
		rpc.Method{Name: MethodDeactivateInput},
		rpc.Method{Name: MethodResetInputs},
	)
	mustSet(iface.SetInterface(AudioRenderingInterface(), MethodSetAudioRenderer, 0, false))
	mustSet(iface.SetInterface(VideoRenderingInterface(), MethodSetVideoRenderer, 0, false))
	return iface
}

// NestedEmulatorProcess is EmulatorProcess with the bridge schema attached
// to the startProcess reply. Both peers must use it.
func NestedEmulatorProcess() *rpc.Interface {
	iface := EmulatorProcessInterface()
	mustSet(iface.SetInterface(EmulatorBridgingInterface(), MethodStartProcess, 0, true))
	return iface
}

// mustSet panics on declaration errors, which are programming mistakes in
// the fixed schemas above.
func mustSet(err error) {
	if err != nil {
		panic(err)
	}
}
