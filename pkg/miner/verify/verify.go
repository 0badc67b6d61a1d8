// Package verify runs the CPU and GPU engines on the same input and target
// and classifies whether they agree.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Amr-9/NonceHunter/pkg/miner"
	"github.com/Amr-9/NonceHunter/pkg/miner/difficulty"
	"github.com/Amr-9/NonceHunter/pkg/miner/keccak"
)

// Outcome is the verdict of one verification run.
type Outcome int

const (
	Match          Outcome = iota // Both engines produced an agreeing, valid result
	DigestMismatch                // The GPU digest is wrong for its nonce or rejected by the target
	NonceMismatch                 // Valid GPU result at a different nonce than the CPU's
	GpuNotFound                   // The dispatch finished with the found flag clear
)

// String returns the outcome label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case Match:
		return "match"
	case DigestMismatch:
		return "digest_mismatch"
	case NonceMismatch:
		return "nonce_mismatch"
	case GpuNotFound:
		return "gpu_not_found"
	default:
		return "unknown"
	}
}

// Report is the full result of Verify.
type Report struct {
	Outcome    Outcome
	CPU        miner.Result
	GPU        miner.Result
	CPUElapsed time.Duration
	GPUElapsed time.Duration
}

// OK reports whether the outcome is Match.
func (r Report) OK() bool {
	return r.Outcome == Match
}

// Config controls how the engines are run.
type Config struct {
	// Concurrent runs both engines at once. Otherwise the CPU runs first.
	Concurrent bool
}

// OutcomeObserver receives every verdict.
type OutcomeObserver interface {
	ObserveOutcome(outcome string)
}

// Verifier compares two engines.
type Verifier struct {
	cpu      miner.Engine
	gpu      miner.Engine
	cfg      Config
	logger   *zap.Logger
	observer OutcomeObserver
}

// New creates a Verifier. A nil logger disables logging.
func New(cpu, gpu miner.Engine, cfg Config, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		cpu:    cpu,
		gpu:    gpu,
		cfg:    cfg,
		logger: logger.Named("verify"),
	}
}

// WithObserver attaches an OutcomeObserver and returns the verifier.
func (v *Verifier) WithObserver(o OutcomeObserver) *Verifier {
	v.observer = o
	return v
}

// Verify searches with both engines and classifies the results.
//
// A GPU dispatch that finds nothing is reported as GpuNotFound, not as an
// error. Any other engine failure, including CPU exhaustion and fatal
// device errors, is returned as an error with a partial report.
func (v *Verifier) Verify(ctx context.Context, input []byte, target difficulty.Target) (Report, error) {
	var (
		report     Report
		gpuMissing bool
	)

	runCPU := func(ctx context.Context) error {
		start := time.Now()
		res, err := v.cpu.Search(ctx, input, target)
		report.CPU, report.CPUElapsed = res, time.Since(start)
		if err != nil {
			return fmt.Errorf("%s engine: %w", v.cpu.Name(), err)
		}
		return nil
	}
	runGPU := func(ctx context.Context) error {
		start := time.Now()
		res, err := v.gpu.Search(ctx, input, target)
		report.GPU, report.GPUElapsed = res, time.Since(start)
		if errors.Is(err, miner.ErrNotFound) {
			gpuMissing = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s engine: %w", v.gpu.Name(), err)
		}
		return nil
	}

	if v.cfg.Concurrent {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return runCPU(gctx) })
		g.Go(func() error { return runGPU(gctx) })
		if err := g.Wait(); err != nil {
			return report, err
		}
	} else {
		if err := runCPU(ctx); err != nil {
			return report, err
		}
		if err := runGPU(ctx); err != nil {
			return report, err
		}
	}

	if gpuMissing {
		report.Outcome = GpuNotFound
	} else {
		report.Outcome = Compare(input, target, report.CPU, report.GPU)
	}
	v.log(report)
	if v.observer != nil {
		v.observer.ObserveOutcome(report.Outcome.String())
	}
	return report, nil
}

// Compare classifies a pair of results for the same input and target.
//
// Match requires byte-equal digests. Otherwise the GPU digest is recomputed
// on the host for its own nonce: a correct, accepted digest at another nonce
// is NonceMismatch, anything else is DigestMismatch.
func Compare(input []byte, target difficulty.Target, cpu, gpu miner.Result) Outcome {
	if !gpu.Found {
		return GpuNotFound
	}
	if cpu.Found && cpu.Digest == gpu.Digest {
		return Match
	}
	if cpu.Nonce == gpu.Nonce {
		return DigestMismatch
	}
	if keccak.Sum(input, gpu.Nonce) != gpu.Digest || !target.Accepts(gpu.Digest) {
		return DigestMismatch
	}
	return NonceMismatch
}

func (v *Verifier) log(r Report) {
	fields := []zap.Field{
		zap.Stringer("outcome", r.Outcome),
		zap.Uint64("cpu_nonce", r.CPU.Nonce),
		zap.Uint64("gpu_nonce", r.GPU.Nonce),
		zap.Duration("cpu_elapsed", r.CPUElapsed),
		zap.Duration("gpu_elapsed", r.GPUElapsed),
	}
	switch r.Outcome {
	case Match:
		v.logger.Info("hashes match", fields...)
	case NonceMismatch:
		v.logger.Info("engines found different valid nonces", fields...)
	case GpuNotFound:
		v.logger.Warn("hash not found on GPU", fields...)
	default:
		v.logger.Error("hashes do not match", append(fields,
			zap.Stringer("cpu_digest", r.CPU.Digest),
			zap.Stringer("gpu_digest", r.GPU.Digest))...)
	}
}
