package miner

import "errors"

// Reported, non-fatal outcomes.
var (
	// ErrExhausted is returned by the CPU engine when the nonce cutoff is
	// passed without an accepted digest.
	ErrExhausted = errors.New("nonce space exhausted without an accepted digest")

	// ErrNotFound is returned by the GPU engine when a dispatch completes
	// with the found flag still clear.
	ErrNotFound = errors.New("dispatch completed without an accepted digest")
)

// Fatal failures. No partial result is meaningful after one of these.
var (
	ErrDeviceNotFound = errors.New("compute device not found")
	ErrKernelNotFound = errors.New("kernel entry point not found")
	ErrKernelCompile  = errors.New("kernel compilation failed")
	ErrPipeline       = errors.New("compute pipeline construction failed")
)

// Caller errors.
var (
	ErrInvalidInput  = errors.New("invalid search input")
	ErrInvalidTarget = errors.New("invalid difficulty target")
)

// IsFatal reports whether err belongs to the unrecoverable class:
// device, kernel or pipeline failures.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDeviceNotFound) ||
		errors.Is(err, ErrKernelNotFound) ||
		errors.Is(err, ErrKernelCompile) ||
		errors.Is(err, ErrPipeline)
}
