//go:build windows

package main

import (
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

var procSetProcessInformation = windows.NewLazySystemDLL("kernel32.dll").NewProc("SetProcessInformation")

// processPowerThrottlingState mirrors PROCESS_POWER_THROTTLING_STATE.
type processPowerThrottlingState struct {
	Version     uint32
	ControlMask uint32
	StateMask   uint32
}

const (
	processPowerThrottling               = 4
	powerThrottlingExecutionSpeed uint32 = 0x1
)

// raisePriority moves the process to HIGH_PRIORITY_CLASS, falling back to
// ABOVE_NORMAL, and opts out of Efficiency Mode. REALTIME is never used;
// it can starve the desktop.
func raisePriority(logger *zap.Logger) error {
	self := windows.CurrentProcess()
	class := "high"
	if err := windows.SetPriorityClass(self, windows.HIGH_PRIORITY_CLASS); err != nil {
		if err := windows.SetPriorityClass(self, windows.ABOVE_NORMAL_PRIORITY_CLASS); err != nil {
			return err
		}
		class = "above-normal"
	}
	logger.Debug("process priority raised", zap.String("class", class))

	if err := disablePowerThrottling(self); err != nil {
		// Missing before Windows 10 1709.
		logger.Debug("power throttling left enabled", zap.Error(err))
	}
	return nil
}

func disablePowerThrottling(self windows.Handle) error {
	if err := procSetProcessInformation.Find(); err != nil {
		return err
	}
	state := processPowerThrottlingState{
		Version:     1,
		ControlMask: powerThrottlingExecutionSpeed,
	}
	ret, _, err := procSetProcessInformation.Call(
		uintptr(self),
		processPowerThrottling,
		uintptr(unsafe.Pointer(&state)),
		unsafe.Sizeof(state),
	)
	if ret == 0 {
		return err
	}
	return nil
}
