package gpu

import (
	"embed"
	"fmt"
	"sync"

	"github.com/Amr-9/NonceHunter/pkg/miner"
	"github.com/Amr-9/NonceHunter/pkg/miner/keccak"
)

//go:embed kernels/keccak256_mine.cl
var kernelFS embed.FS

const kernelPath = "kernels/keccak256_mine.cl"

// KernelSource returns the embedded OpenCL mining kernel.
func KernelSource() string {
	data, err := kernelFS.ReadFile(kernelPath)
	if err != nil {
		// embedded at build time
		panic(err)
	}
	return string(data)
}

// KernelFunc is a host implementation of a kernel entry point, run by the
// emulated device. Each call performs attempt k of thread tid and reports
// whether the thread is done. h is owned by the calling worker.
type KernelFunc func(st *KernelState, h *keccak.Hasher, tid, k uint64) (done bool)

var (
	kernelsMu sync.RWMutex
	kernels   = map[string]KernelFunc{}
)

// RegisterKernel makes fn available to the emulated device under entry.
// Registering the same entry twice panics.
func RegisterKernel(entry string, fn KernelFunc) {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	if _, dup := kernels[entry]; dup {
		panic(fmt.Sprintf("gpu: kernel %q registered twice", entry))
	}
	kernels[entry] = fn
}

func lookupKernel(entry string) (KernelFunc, error) {
	kernelsMu.RLock()
	defer kernelsMu.RUnlock()
	fn, ok := kernels[entry]
	if !ok {
		return nil, fmt.Errorf("%w: %q", miner.ErrKernelNotFound, entry)
	}
	return fn, nil
}
