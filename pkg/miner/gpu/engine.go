package gpu

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Amr-9/NonceHunter/pkg/miner"
	"github.com/Amr-9/NonceHunter/pkg/miner/difficulty"
)

// Dispatch defaults. One group of 256 threads, each scanning its stride
// until a winner is claimed.
const (
	DefaultThreadsPerGroup = 256
	DefaultNumGroups       = 1
	DefaultKernelEntry     = "mining_kernel"
)

// Config holds the harness settings for one engine.
type Config struct {
	ThreadsPerGroup uint32
	NumGroups       uint32

	// IterationsPerThread bounds the attempts of each thread.
	// Zero lets every thread run until its stride wraps the nonce space.
	IterationsPerThread uint64

	// StartNonce is the nonce tried by thread 0 first.
	StartNonce uint64

	KernelEntry  string
	KernelSource string // empty = embedded keccak256_mine.cl
}

// DefaultConfig returns the stock dispatch geometry.
func DefaultConfig() Config {
	return Config{
		ThreadsPerGroup: DefaultThreadsPerGroup,
		NumGroups:       DefaultNumGroups,
		StartNonce:      1, // same first nonce as the CPU scan
		KernelEntry:     DefaultKernelEntry,
	}
}

func (c *Config) applyDefaults() {
	if c.ThreadsPerGroup == 0 {
		c.ThreadsPerGroup = DefaultThreadsPerGroup
	}
	if c.NumGroups == 0 {
		c.NumGroups = DefaultNumGroups
	}
	if c.KernelEntry == "" {
		c.KernelEntry = DefaultKernelEntry
	}
	if c.KernelSource == "" {
		c.KernelSource = KernelSource()
	}
}

// Grid returns the dispatch geometry.
func (c Config) Grid() Grid {
	return Grid{ThreadsPerGroup: c.ThreadsPerGroup, NumGroups: c.NumGroups}
}

// DispatchObserver receives the size of each launched grid.
type DispatchObserver interface {
	ObserveDispatch(threads uint64)
}

// Engine implements miner.Engine on top of a Device.
// Search calls on one Engine are serialised; the buffer set of a dispatch
// is owned by exactly one call.
type Engine struct {
	device Device
	cfg    Config
	logger *zap.Logger

	observer         miner.Observer
	dispatchObserver DispatchObserver

	mu        sync.Mutex
	attempts  atomic.Uint64
	startTime atomic.Int64
}

// NewEngine creates a harness bound to device.
func NewEngine(device Device, cfg Config, logger *zap.Logger) (*Engine, error) {
	if device == nil {
		return nil, miner.ErrDeviceNotFound
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	if cfg.Grid().Threads() == 0 {
		return nil, fmt.Errorf("%w: empty grid", miner.ErrPipeline)
	}
	return &Engine{
		device: device,
		cfg:    cfg,
		logger: logger.Named("gpu"),
	}, nil
}

// WithObserver attaches a search Observer. If o also implements
// DispatchObserver it receives grid sizes too.
func (e *Engine) WithObserver(o miner.Observer) *Engine {
	e.observer = o
	if d, ok := o.(DispatchObserver); ok {
		e.dispatchObserver = d
	}
	return e
}

// Name returns the implementation name.
func (e *Engine) Name() string {
	return "GPU (" + e.device.Info().Backend + ")"
}

// Device returns the bound device.
func (e *Engine) Device() Device {
	return e.device
}

// Stats returns the statistics of the last dispatch.
func (e *Engine) Stats() miner.Stats {
	var start time.Time
	if ns := e.startTime.Load(); ns != 0 {
		start = time.Unix(0, ns)
	}
	return miner.NewStats(e.attempts.Load(), start)
}

// Search runs one dispatch and reads back the result records.
//
// A dispatch that completes with the found flag clear returns the zero
// result together with miner.ErrNotFound. Kernel and device failures are
// fatal (see miner.IsFatal). Once submitted a dispatch cannot be cancelled;
// ctx is only checked before submission.
func (e *Engine) Search(ctx context.Context, input []byte, target difficulty.Target) (miner.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := miner.Result{Backend: miner.GPU}
	if uint64(len(input)) > math.MaxUint32 {
		return result, fmt.Errorf("%w: input of %d bytes exceeds u32 length", miner.ErrInvalidInput, len(input))
	}

	started := time.Now()
	e.startTime.Store(started.UnixNano())
	e.attempts.Store(0)

	kernel, err := e.device.LoadKernel(e.cfg.KernelSource, e.cfg.KernelEntry)
	if err != nil {
		e.logger.Error("kernel load failed", zap.String("entry", e.cfg.KernelEntry), zap.Error(err))
		return result, err
	}
	defer kernel.Release()

	grid := e.cfg.Grid()
	params := Params{
		InputLen:   uint32(len(input)),
		Threads:    grid.Threads(),
		BaseNonce:  e.cfg.StartNonce,
		Iterations: e.cfg.IterationsPerThread,
	}

	slots, err := e.bind(input, target, params)
	defer releaseAll(slots)
	if err != nil {
		return result, err
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	e.logger.Debug("dispatch",
		zap.Int("input_len", len(input)),
		zap.Stringer("target", target),
		zap.Uint32("threads_per_group", grid.ThreadsPerGroup),
		zap.Uint32("num_groups", grid.NumGroups),
		zap.Uint64("base_nonce", params.BaseNonce),
		zap.Uint64("iterations", params.Iterations))
	if e.dispatchObserver != nil {
		e.dispatchObserver.ObserveDispatch(params.Threads)
	}

	if err := e.device.Dispatch(kernel, slots, grid); err != nil {
		e.logger.Error("dispatch failed", zap.Error(err))
		return result, err
	}

	rec, err := readRecords(slots)
	if err != nil {
		return result, err
	}

	result.Elapsed = time.Since(started)
	result.Attempts = dispatchedAttempts(params, rec)
	e.attempts.Store(result.Attempts)
	if e.observer != nil {
		e.observer.ObserveSearch(miner.GPU.String(), result.Attempts, result.Elapsed)
	}

	if !rec.Found {
		e.logger.Warn("hash not found", zap.Duration("elapsed", result.Elapsed))
		return result, fmt.Errorf("gpu dispatch of %d threads: %w", params.Threads, miner.ErrNotFound)
	}

	result.Digest = rec.Digest
	result.Nonce = rec.Nonce
	result.Found = true
	e.logger.Info("nonce found",
		zap.Uint64("nonce", result.Nonce),
		zap.Stringer("digest", result.Digest),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

// bind allocates the slot buffers in ABI order. The returned slice holds
// every buffer allocated so far, even on error, so the caller can release it.
func (e *Engine) bind(input []byte, target difficulty.Target, p Params) ([]Buffer, error) {
	// Zero-length allocations are invalid on most devices; the length slot
	// carries the real size.
	inputData := input
	if len(inputData) == 0 {
		inputData = []byte{0}
	}

	layout := [NumSlots]struct {
		data []byte // copied in when non-nil
		size int    // zeroed allocation otherwise
	}{
		SlotInput:      {data: inputData},
		SlotDigest:     {size: DigestSize},
		SlotDifficulty: {data: target[:]},
		SlotInputLen:   {data: encodeU32(p.InputLen)},
		SlotNonce:      {size: NonceSize},
		SlotFound:      {size: FlagSize},
		SlotThreads:    {data: encodeU64(p.Threads)},
		SlotBaseNonce:  {data: encodeU64(p.BaseNonce)},
		SlotIterations: {data: encodeU64(p.Iterations)},
	}

	slots := make([]Buffer, 0, NumSlots)
	for i, l := range layout {
		var (
			buf Buffer
			err error
		)
		if l.data != nil {
			buf, err = e.device.NewBufferWithData(l.data)
		} else {
			buf, err = e.device.NewBuffer(l.size)
		}
		if err != nil {
			return slots, fmt.Errorf("%w: allocate %s buffer: %w", miner.ErrPipeline, SlotName(i), err)
		}
		slots = append(slots, buf)
	}
	return slots, nil
}

func releaseAll(bufs []Buffer) {
	for _, b := range bufs {
		if b != nil {
			b.Release()
		}
	}
}

// dispatchedAttempts estimates the hashes a dispatch evaluated: the
// winner's offset from the base on success, the whole bounded space otherwise.
func dispatchedAttempts(p Params, rec Records) uint64 {
	if rec.Found && rec.Nonce >= p.BaseNonce {
		return rec.Nonce - p.BaseNonce + 1
	}
	if p.Iterations == 0 || p.Threads > math.MaxUint64/p.Iterations {
		return math.MaxUint64
	}
	return p.Threads * p.Iterations
}
