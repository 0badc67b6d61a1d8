// Package miner defines the contract shared by the proof-of-work search backends.
// The CPU and GPU engines solve the identical problem: find a nonce such that
// keccak256(input || le64(nonce)) is numerically <= a 32-byte target.
package miner

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Amr-9/NonceHunter/pkg/miner/difficulty"
)

// Backend identifies the engine that produced a result.
type Backend int

const (
	CPU Backend = iota // Sequential host search
	GPU                // Parallel device dispatch
)

// String returns the backend name.
func (b Backend) String() string {
	switch b {
	case CPU:
		return "CPU"
	case GPU:
		return "GPU"
	default:
		return "Unknown"
	}
}

// Result is the value returned by one search.
// Found=false pairs with a zero Digest when no nonce was accepted.
type Result struct {
	Backend  Backend       // Engine that produced the result
	Digest   common.Hash   // Winning digest (zero when not found)
	Nonce    uint64        // Winning nonce
	Found    bool          // Whether an accepted digest was committed
	Attempts uint64        // Hashes evaluated (GPU: upper bound of the dispatched space)
	Elapsed  time.Duration // Wall time of the search
}

// Stats holds real-time performance statistics.
type Stats struct {
	Attempts    uint64  // Total number of hashes evaluated
	HashRate    float64 // Hashes per second
	ElapsedSecs float64 // Time elapsed since the search started
}

// Engine defines the contract for search backends.
type Engine interface {
	// Search looks for an accepted nonce for input under target.
	// The input slice is never modified.
	Search(ctx context.Context, input []byte, target difficulty.Target) (Result, error)

	// Stats returns the current performance statistics.
	// This method is safe to call concurrently from any goroutine.
	Stats() Stats

	// Name returns the implementation name (e.g. "CPU", "GPU (OpenCL)").
	Name() string
}

// Observer receives per-search accounting from an engine.
type Observer interface {
	ObserveSearch(backend string, hashes uint64, elapsed time.Duration)
}

// NewStats derives a Stats snapshot from an attempt count and a start time.
func NewStats(attempts uint64, start time.Time) Stats {
	if start.IsZero() {
		return Stats{Attempts: attempts}
	}
	elapsed := time.Since(start).Seconds()
	var hashRate float64
	if elapsed > 0 {
		hashRate = float64(attempts) / elapsed
	}
	return Stats{
		Attempts:    attempts,
		HashRate:    hashRate,
		ElapsedSecs: elapsed,
	}
}
