package gpu

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DeviceKind selects how OpenDevice resolves a device.
type DeviceKind string

const (
	KindAuto     DeviceKind = "auto"     // OpenCL when present, else emulated
	KindOpenCL   DeviceKind = "opencl"   // OpenCL only
	KindEmulated DeviceKind = "emulated" // host goroutines
)

// ParseDeviceKind validates a device kind string.
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch k := DeviceKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindAuto, KindOpenCL, KindEmulated:
		return k, nil
	case "":
		return KindAuto, nil
	default:
		return "", fmt.Errorf("unknown device kind %q (want auto, opencl or emulated)", s)
	}
}

// OpenDevice opens the compute device selected by kind and index.
// With KindAuto a missing OpenCL device falls back to the emulated one.
func OpenDevice(kind DeviceKind, index int, logger *zap.Logger) (Device, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch kind {
	case KindEmulated:
		return NewEmulatedDevice(0, logger), nil
	case KindOpenCL:
		return openOpenCL(index, logger)
	case KindAuto, "":
		dev, err := openOpenCL(index, logger)
		if err == nil {
			return dev, nil
		}
		logger.Warn("OpenCL device unavailable, falling back to emulation", zap.Error(err))
		return NewEmulatedDevice(0, logger), nil
	default:
		return nil, fmt.Errorf("unknown device kind %q", kind)
	}
}

// ListDevices enumerates OpenCL devices followed by the emulated device.
// An OpenCL enumeration failure is returned alongside the emulated entry.
func ListDevices() ([]DeviceInfo, error) {
	infos, err := listOpenCLDevices()
	emu := NewEmulatedDevice(0, nil).Info()
	emu.Index = len(infos)
	return append(infos, emu), err
}
