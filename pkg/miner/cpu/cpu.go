// Package cpu implements the sequential proof-of-work search.
package cpu

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Amr-9/NonceHunter/pkg/miner"
	"github.com/Amr-9/NonceHunter/pkg/miner/difficulty"
	"github.com/Amr-9/NonceHunter/pkg/miner/keccak"
)

// FirstNonce is where the sequential search starts.
const FirstNonce uint64 = 1

// cancelCheckInterval is how many nonces pass between context checks.
const cancelCheckInterval = 1 << 12

// Config holds the CPU engine settings.
type Config struct {
	// MaxNonce is the last nonce tried before giving up with ErrExhausted.
	// Zero means no cutoff: the search only ends on success, cancellation,
	// or wrap-around of the 64-bit nonce space.
	MaxNonce uint64
}

// Engine implements miner.Engine as a single-threaded nonce scan.
// The first accepted nonce in increasing order wins, so results are
// deterministic for a given input and target.
type Engine struct {
	cfg      Config
	logger   *zap.Logger
	observer miner.Observer

	attempts  atomic.Uint64
	startTime atomic.Int64 // unix nanos of the current search
}

// NewEngine creates a CPU engine. A nil logger disables logging.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.Named("cpu"),
	}
}

// WithObserver attaches an Observer and returns the engine.
func (e *Engine) WithObserver(o miner.Observer) *Engine {
	e.observer = o
	return e
}

// Name returns the implementation name.
func (e *Engine) Name() string {
	return "CPU"
}

// Stats returns the current performance statistics.
func (e *Engine) Stats() miner.Stats {
	var start time.Time
	if ns := e.startTime.Load(); ns != 0 {
		start = time.Unix(0, ns)
	}
	return miner.NewStats(e.attempts.Load(), start)
}

// Search scans nonces 1, 2, 3, ... and returns the first whose digest the
// target accepts. It returns miner.ErrExhausted when MaxNonce is passed and
// ctx.Err() when the context is cancelled.
func (e *Engine) Search(ctx context.Context, input []byte, target difficulty.Target) (miner.Result, error) {
	started := time.Now()
	e.startTime.Store(started.UnixNano())
	e.attempts.Store(0)

	limit := e.cfg.MaxNonce
	if limit == 0 {
		limit = math.MaxUint64
	}

	e.logger.Debug("search started",
		zap.Int("input_len", len(input)),
		zap.Stringer("target", target),
		zap.Uint64("max_nonce", e.cfg.MaxNonce))

	h := keccak.NewHasher()
	result := miner.Result{Backend: miner.CPU}

	var tried uint64
	for nonce := FirstNonce; ; nonce++ {
		digest := h.Sum(input, nonce)
		tried++

		if difficulty.Accepts(digest, target) {
			result.Digest = digest
			result.Nonce = nonce
			result.Found = true
			break
		}

		if nonce == limit {
			break
		}

		if tried%cancelCheckInterval == 0 {
			e.attempts.Store(tried)
			if err := ctx.Err(); err != nil {
				e.finish(&result, tried, started)
				return result, err
			}
		}
	}

	e.finish(&result, tried, started)

	if !result.Found {
		e.logger.Warn("nonce space exhausted",
			zap.Uint64("max_nonce", limit),
			zap.Duration("elapsed", result.Elapsed))
		return result, fmt.Errorf("cpu search up to nonce %d: %w", limit, miner.ErrExhausted)
	}

	e.logger.Info("nonce found",
		zap.Uint64("nonce", result.Nonce),
		zap.Stringer("digest", result.Digest),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

func (e *Engine) finish(r *miner.Result, tried uint64, started time.Time) {
	e.attempts.Store(tried)
	r.Attempts = tried
	r.Elapsed = time.Since(started)
	if e.observer != nil {
		e.observer.ObserveSearch(miner.CPU.String(), tried, r.Elapsed)
	}
}
