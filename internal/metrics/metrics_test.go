package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amr-9/NonceHunter/pkg/miner"
	"github.com/Amr-9/NonceHunter/pkg/miner/cpu"
	"github.com/Amr-9/NonceHunter/pkg/miner/difficulty"
	"github.com/Amr-9/NonceHunter/pkg/miner/gpu"
	"github.com/Amr-9/NonceHunter/pkg/miner/verify"
)

// Compile-time checks that the recorder plugs into every observer hook.
var (
	_ miner.Observer         = (*Recorder)(nil)
	_ gpu.DispatchObserver   = (*Recorder)(nil)
	_ verify.OutcomeObserver = (*Recorder)(nil)
)

func TestObserveSearch(t *testing.T) {
	r := NewRecorder()
	r.ObserveSearch("CPU", 100, 10*time.Millisecond)
	r.ObserveSearch("CPU", 50, 10*time.Millisecond)
	r.ObserveSearch("GPU", 256, time.Millisecond)

	assert.Equal(t, 150.0, testutil.ToFloat64(r.hashes.WithLabelValues("CPU")))
	assert.Equal(t, 256.0, testutil.ToFloat64(r.hashes.WithLabelValues("GPU")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.duration))
}

func TestEnginesReportThroughRecorder(t *testing.T) {
	r := NewRecorder()

	c := cpu.NewEngine(cpu.Config{}, nil).WithObserver(r)
	g, err := gpu.NewEngine(gpu.NewEmulatedDevice(0, nil), gpu.DefaultConfig(), nil)
	require.NoError(t, err)
	g.WithObserver(r)

	v := verify.New(c, g, verify.Config{}, nil).WithObserver(r)
	report, err := v.Verify(context.Background(), make([]byte, 32), difficulty.Max())
	require.NoError(t, err)
	require.Equal(t, verify.Match, report.Outcome)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.hashes.WithLabelValues("CPU")))
	assert.Positive(t, testutil.ToFloat64(r.hashes.WithLabelValues("GPU")))
	assert.Equal(t, 256.0, testutil.ToFloat64(r.threads))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.outcomes.WithLabelValues("match")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.ObserveOutcome("digest_mismatch")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `noncehunter_verify_outcomes_total{outcome="digest_mismatch"} 1`), body)
}

func TestServeStopsWithContext(t *testing.T) {
	r := NewRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx, "127.0.0.1:0", nil) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
