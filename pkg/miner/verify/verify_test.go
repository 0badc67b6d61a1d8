package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Amr-9/NonceHunter/pkg/miner"
	"github.com/Amr-9/NonceHunter/pkg/miner/cpu"
	"github.com/Amr-9/NonceHunter/pkg/miner/difficulty"
	"github.com/Amr-9/NonceHunter/pkg/miner/gpu"
	"github.com/Amr-9/NonceHunter/pkg/miner/keccak"
)

// fakeEngine returns a canned result.
type fakeEngine struct {
	name   string
	result miner.Result
	err    error
	calls  int
}

func (f *fakeEngine) Search(context.Context, []byte, difficulty.Target) (miner.Result, error) {
	f.calls++
	return f.result, f.err
}

func (f *fakeEngine) Stats() miner.Stats { return miner.Stats{} }
func (f *fakeEngine) Name() string       { return f.name }

type outcomeCounter map[string]int

func (c outcomeCounter) ObserveOutcome(o string) { c[o]++ }

func found(input []byte, nonce uint64) miner.Result {
	return miner.Result{Digest: keccak.Sum(input, nonce), Nonce: nonce, Found: true}
}

func emulatedGPU(t *testing.T, iterations uint64) *gpu.Engine {
	cfg := gpu.DefaultConfig()
	cfg.IterationsPerThread = iterations
	engine, err := gpu.NewEngine(gpu.NewEmulatedDevice(0, nil), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return engine
}

func TestVerifyEnginesAgree(t *testing.T) {
	// 172 is the only accepted nonce in 1..256, so a single wave of 256
	// threads can only land where the sequential scan does.
	input := make([]byte, 32)
	target := difficulty.TargetWithLeadingZeroBytes(1)

	for _, concurrent := range []bool{false, true} {
		obs := outcomeCounter{}
		v := New(
			cpu.NewEngine(cpu.Config{}, zaptest.NewLogger(t)),
			emulatedGPU(t, 1),
			Config{Concurrent: concurrent},
			zaptest.NewLogger(t),
		).WithObserver(obs)

		report, err := v.Verify(context.Background(), input, target)
		require.NoError(t, err)
		assert.Equal(t, Match, report.Outcome, "concurrent=%v", concurrent)
		assert.True(t, report.OK())
		assert.True(t, report.CPU.Found)
		assert.True(t, report.GPU.Found)
		assert.Equal(t, uint64(172), report.CPU.Nonce)
		assert.Equal(t, report.CPU.Digest, report.GPU.Digest)
		assert.Equal(t, 1, obs["match"])
	}
}

func TestVerifyGpuNotFound(t *testing.T) {
	obs := outcomeCounter{}
	v := New(
		&fakeEngine{name: "CPU", result: found(nil, 1)},
		emulatedGPU(t, 8),
		Config{},
		zaptest.NewLogger(t),
	).WithObserver(obs)

	report, err := v.Verify(context.Background(), make([]byte, 32), difficulty.Target{})
	require.NoError(t, err)
	assert.Equal(t, GpuNotFound, report.Outcome)
	assert.False(t, report.OK())
	assert.Equal(t, 1, obs["gpu_not_found"])
}

func TestVerifyCPUExhaustionIsAnError(t *testing.T) {
	v := New(
		cpu.NewEngine(cpu.Config{MaxNonce: 1 << 12}, nil),
		&fakeEngine{name: "GPU"},
		Config{},
		nil,
	)
	_, err := v.Verify(context.Background(), []byte("x"), difficulty.Target{})
	require.ErrorIs(t, err, miner.ErrExhausted)
}

func TestVerifyFatalGPUErrorPropagates(t *testing.T) {
	input := []byte("x")
	v := New(
		&fakeEngine{name: "CPU", result: found(input, 1)},
		&fakeEngine{name: "GPU", err: errors.Join(miner.ErrKernelNotFound)},
		Config{Concurrent: true},
		nil,
	)
	_, err := v.Verify(context.Background(), input, difficulty.Max())
	require.ErrorIs(t, err, miner.ErrKernelNotFound)
	assert.True(t, miner.IsFatal(err))
}

func TestVerifySequentialSkipsGPUAfterCPUFailure(t *testing.T) {
	gpuEngine := &fakeEngine{name: "GPU"}
	v := New(&fakeEngine{name: "CPU", err: miner.ErrExhausted}, gpuEngine, Config{}, nil)
	_, err := v.Verify(context.Background(), nil, difficulty.Max())
	require.Error(t, err)
	assert.Zero(t, gpuEngine.calls)
}

func TestVerifyDifferentValidNonceIsNotAMatch(t *testing.T) {
	input := []byte("other nonce")
	obs := outcomeCounter{}
	v := New(
		&fakeEngine{name: "CPU", result: found(input, 3)},
		&fakeEngine{name: "GPU", result: found(input, 9)},
		Config{},
		zaptest.NewLogger(t),
	).WithObserver(obs)

	report, err := v.Verify(context.Background(), input, difficulty.Max())
	require.NoError(t, err)
	assert.NotEqual(t, report.CPU.Digest, report.GPU.Digest)
	assert.Equal(t, NonceMismatch, report.Outcome)
	assert.False(t, report.OK())
	assert.Equal(t, 1, obs["nonce_mismatch"])
}

func TestCompare(t *testing.T) {
	input := []byte("compare")
	target := difficulty.Max()

	corrupt := found(input, 7)
	corrupt.Digest[0] ^= 0xff

	tests := []struct {
		name   string
		cpu    miner.Result
		gpu    miner.Result
		target difficulty.Target
		want   Outcome
	}{
		{"same nonce same digest", found(input, 3), found(input, 3), target, Match},
		{"same nonce different digest", found(input, 7), corrupt, target, DigestMismatch},
		{"valid result at another nonce", found(input, 3), found(input, 9), target, NonceMismatch},
		{"wrong digest at another nonce", found(input, 3), corrupt, target, DigestMismatch},
		{"digest rejected by target", found(input, 3), found(input, 9), difficulty.Target{}, DigestMismatch},
		{"gpu found nothing", found(input, 3), miner.Result{}, target, GpuNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(input, tt.target, tt.cpu, tt.gpu))
		})
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "match", Match.String())
	assert.Equal(t, "digest_mismatch", DigestMismatch.String())
	assert.Equal(t, "nonce_mismatch", NonceMismatch.String())
	assert.Equal(t, "gpu_not_found", GpuNotFound.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}
