//go:build opencl

package gpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Amr-9/NonceHunter/pkg/miner"
)

func openTestDevice(t *testing.T) Device {
	dev, err := OpenDevice(KindOpenCL, 0, zaptest.NewLogger(t))
	if errors.Is(err, miner.ErrDeviceNotFound) {
		t.Skipf("no OpenCL device: %v", err)
	}
	require.NoError(t, err)
	t.Cleanup(dev.Release)
	return dev
}

func TestOpenCLDeviceMatchesHost(t *testing.T) {
	checkDevice(t, openTestDevice(t))
}

func TestOpenCLListsDevices(t *testing.T) {
	openTestDevice(t)
	infos, err := ListDevices()
	require.NoError(t, err)
	require.NotEmpty(t, infos)
	require.Equal(t, "OpenCL", infos[0].Backend)
}
