//go:build !opencl
// +build !opencl

package gpu

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Amr-9/NonceHunter/pkg/miner"
)

// OpenCLAvailable reports whether OpenCL support was compiled in.
// Build with -tags opencl to enable it.
const OpenCLAvailable = false

var errNoOpenCL = fmt.Errorf("%w: OpenCL support not compiled. Build with: go build -tags opencl", miner.ErrDeviceNotFound)

func listOpenCLDevices() ([]DeviceInfo, error) {
	return nil, errNoOpenCL
}

func openOpenCL(int, *zap.Logger) (Device, error) {
	return nil, errNoOpenCL
}
