package gpu

import (
	"bytes"
	"context"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Amr-9/NonceHunter/pkg/miner"
	"github.com/Amr-9/NonceHunter/pkg/miner/difficulty"
	"github.com/Amr-9/NonceHunter/pkg/miner/keccak"
)

// checkDevice runs the same searches against any Device and compares every
// winning digest with the host hash.
func checkDevice(t *testing.T, dev Device) {
	search := func(t *testing.T, cfg Config, input []byte, target difficulty.Target) (miner.Result, error) {
		t.Helper()
		engine, err := NewEngine(dev, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		return engine.Search(context.Background(), input, target)
	}

	t.Run("digest matches host hash", func(t *testing.T) {
		input := make([]byte, 32)
		target := difficulty.TargetWithLeadingZeroBytes(1)
		result, err := search(t, DefaultConfig(), input, target)
		require.NoError(t, err)
		assert.Equal(t, keccak.Sum(input, result.Nonce), result.Digest)
		assert.True(t, target.Accepts(result.Digest))
	})

	// 128 and 135 put the nonce across the 136-byte rate boundary; 136 and
	// 200 need a second absorb block.
	for _, n := range []int{0, 1, 128, 135, 136, 200} {
		input := bytes.Repeat([]byte{0xa5}, n)
		t.Run("input length "+strconv.Itoa(n), func(t *testing.T) {
			result, err := search(t, DefaultConfig(), input, difficulty.TargetWithLeadingZeroBytes(1))
			require.NoError(t, err)
			assert.Equal(t, keccak.Sum(input, result.Nonce), result.Digest)
		})
	}

	t.Run("bounded dispatch without a winner", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.IterationsPerThread = 16
		result, err := search(t, cfg, []byte("nothing"), difficulty.Target{})
		require.ErrorIs(t, err, miner.ErrNotFound)
		assert.False(t, result.Found)
	})

	t.Run("start nonce near wrap", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.StartNonce = math.MaxUint64 - 9
		input := []byte("wrap")
		result, err := search(t, cfg, input, difficulty.Max())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.Nonce, cfg.StartNonce, "threads past 2^64 must not run")
		assert.Equal(t, keccak.Sum(input, result.Nonce), result.Digest)

		_, err = search(t, cfg, input, difficulty.Target{})
		require.ErrorIs(t, err, miner.ErrNotFound)
	})
}

func TestEmulatedDeviceMatchesHost(t *testing.T) {
	checkDevice(t, NewEmulatedDevice(0, zaptest.NewLogger(t)))
}
