// Package gpu dispatches the nonce search to a compute device.
//
// The host side is a thin harness: it loads a kernel, binds a fixed set of
// buffers (see abi.go), launches one grid and reads the result records back.
// All hashing happens in the kernel. Two devices implement the contract: the
// OpenCL device (build tag opencl) and an emulated device that runs the
// kernel as goroutines.
package gpu

// DeviceInfo contains information about a compute device.
type DeviceInfo struct {
	Name         string
	Vendor       string
	Backend      string // "OpenCL" or "Emulated"
	Index        int
	MaxWorkGroup int
	ComputeUnits int
	GlobalMem    uint64
}

// Grid is the dispatch geometry. Total threads = ThreadsPerGroup * NumGroups.
type Grid struct {
	ThreadsPerGroup uint32
	NumGroups       uint32
}

// Threads returns the total number of threads in the grid.
func (g Grid) Threads() uint64 {
	return uint64(g.ThreadsPerGroup) * uint64(g.NumGroups)
}

// Buffer is a device allocation with a host-visible view.
type Buffer interface {
	// Len returns the allocation size in bytes.
	Len() int
	// Contents returns the host-visible bytes. For devices without shared
	// memory this is a staging copy that is synchronised by Dispatch.
	Contents() []byte
	Release()
}

// Kernel is a compiled entry point.
type Kernel interface {
	Entry() string
	Release()
}

// Device is the compute device collaborator used by the harness.
type Device interface {
	Info() DeviceInfo

	// NewBuffer allocates a zero-initialised buffer of size bytes.
	NewBuffer(size int) (Buffer, error)

	// NewBufferWithData allocates a buffer holding a copy of data.
	NewBufferWithData(data []byte) (Buffer, error)

	// LoadKernel compiles source and looks up entry. A missing entry point
	// wraps miner.ErrKernelNotFound, a build failure miner.ErrKernelCompile.
	LoadKernel(source, entry string) (Kernel, error)

	// Dispatch binds slots in order, launches grid and blocks until the
	// device has finished and outputs are visible through Contents.
	Dispatch(k Kernel, slots []Buffer, grid Grid) error

	Release()
}
