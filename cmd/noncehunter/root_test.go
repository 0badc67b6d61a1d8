package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amr-9/NonceHunter/pkg/miner/difficulty"
)

// Over 32 zero bytes the first nonce accepted by a one-zero-byte target
// is 172, so a single 256-thread wave finds exactly the CPU's answer.
var (
	zeroInput  = strings.Repeat("00", 32)
	easyTarget = difficulty.TargetWithLeadingZeroBytes(1).String()
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "noncehunter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// run executes a command line with quiet logging and returns the exit code
// and stdout.
func run(t *testing.T, cfgPath string, args ...string) (int, string) {
	t.Helper()
	if cfgPath == "" {
		cfgPath = filepath.Join(t.TempDir(), "absent.yaml")
	}
	var out bytes.Buffer
	args = append(args, "--config", cfgPath, "--log-level", "error", "--no-color")
	err := execute(context.Background(), args, &out)
	code, _ := exitStatus(err)
	return code, out.String()
}

const singleWave = "gpu:\n  iterations_per_thread: 1\n"

func TestVerifyMatchExitsZero(t *testing.T) {
	code, out := run(t, writeConfig(t, singleWave),
		"verify", "--device", "emulated", "--input", zeroInput, "--target", easyTarget)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "outcome match")
}

func TestVerifyGpuNotFoundExitsOne(t *testing.T) {
	// One thread trying nonce 2 only, which the target rejects.
	cfg := writeConfig(t, `
gpu:
  device: emulated
  threads_per_group: 1
  num_groups: 1
  iterations_per_thread: 1
  start_nonce: 2
`)
	code, out := run(t, cfg, "verify", "--input", zeroInput, "--target", easyTarget)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "outcome gpu_not_found")
}

func TestMissingKernelExitsTwo(t *testing.T) {
	cfg := writeConfig(t, "gpu:\n  kernel_entry: no_such_kernel\n")
	code, _ := run(t, cfg,
		"verify", "--device", "emulated", "--input", zeroInput, "--target", difficulty.Max().String())
	assert.Equal(t, 2, code)
}

func TestCPUExhaustionExitsOne(t *testing.T) {
	code, _ := run(t, "",
		"mine", "--backend", "cpu", "--input", zeroInput,
		"--target", difficulty.Target{}.String(), "--max-nonce", "10")
	assert.Equal(t, 1, code)
}

func TestFlagOverridesInvalidFileValue(t *testing.T) {
	cfg := writeConfig(t, "gpu:\n  device: metal\n  iterations_per_thread: 1\n")

	code, _ := run(t, cfg, "mine", "--backend", "gpu", "--input", zeroInput, "--target", easyTarget)
	assert.Equal(t, 1, code, "invalid device in the file")

	code, out := run(t, cfg,
		"mine", "--backend", "gpu", "--device", "emulated", "--input", zeroInput, "--target", easyTarget)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "GPU (Emulated)")
}

func TestMineRejectsUnknownBackend(t *testing.T) {
	code, _ := run(t, "", "mine", "--backend", "tpu", "--input", zeroInput)
	assert.Equal(t, 1, code)
}

func TestBadInputHex(t *testing.T) {
	code, _ := run(t, "", "mine", "--input", "zz")
	assert.Equal(t, 1, code)
}

func TestDevicesListsEmulated(t *testing.T) {
	code, out := run(t, "", "devices")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Emulated")
}

func TestExitStatus(t *testing.T) {
	code, msg := exitStatus(nil)
	assert.Zero(t, code)
	assert.Empty(t, msg)

	code, msg = exitStatus(errors.New("boom"))
	assert.Equal(t, 1, code)
	assert.Equal(t, "Error: boom", msg)

	code, _ = exitStatus(&exitError{code: 2, msg: "Fatal: x"})
	assert.Equal(t, 2, code)
}
