package gpu

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"runtime"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Amr-9/NonceHunter/pkg/miner"
	"github.com/Amr-9/NonceHunter/pkg/miner/difficulty"
	"github.com/Amr-9/NonceHunter/pkg/miner/keccak"
)

func init() {
	RegisterKernel(DefaultKernelEntry, miningKernel)
}

// miningKernel is the host twin of mining_kernel in keccak256_mine.cl.
func miningKernel(st *KernelState, h *keccak.Hasher, tid, k uint64) bool {
	nonce, ok := st.NonceAt(tid, k)
	if !ok {
		return true
	}
	digest := h.Sum(st.Input, nonce)
	if st.Target.Accepts(digest) {
		st.Commit(digest, nonce)
		return true
	}
	return false
}

// KernelState is shared by every thread of one emulated dispatch.
type KernelState struct {
	Params Params
	Target difficulty.Target
	Input  []byte

	slots []Buffer
	claim atomic.Uint32
}

// NonceAt returns base + tid + k*threads, or false once that overflows.
func (st *KernelState) NonceAt(tid, k uint64) (uint64, bool) {
	hi, off := bits.Mul64(k, st.Params.Threads)
	if hi != 0 {
		return 0, false
	}
	off, carry := bits.Add64(off, tid, 0)
	if carry != 0 {
		return 0, false
	}
	nonce, carry := bits.Add64(st.Params.BaseNonce, off, 0)
	return nonce, carry == 0
}

// Claimed reports whether some thread has already committed a result.
func (st *KernelState) Claimed() bool {
	return st.claim.Load() != 0
}

// Commit records digest and nonce if no other thread got there first.
// The found flag is published after the records are written.
func (st *KernelState) Commit(digest common.Hash, nonce uint64) bool {
	if !st.claim.CompareAndSwap(0, 1) {
		return false
	}
	copy(st.slots[SlotDigest].Contents(), digest[:])
	binary.LittleEndian.PutUint64(st.slots[SlotNonce].Contents(), nonce)
	binary.LittleEndian.PutUint32(st.slots[SlotFound].Contents(), foundPublished)
	return true
}

// EmulatedDevice runs registered kernels on host goroutines. It honours the
// same buffer ABI as the OpenCL device and is what the tests dispatch to.
type EmulatedDevice struct {
	workers int
	index   int
	logger  *zap.Logger
}

// NewEmulatedDevice creates an emulated device with the given number of
// worker goroutines. workers <= 0 uses GOMAXPROCS.
func NewEmulatedDevice(workers int, logger *zap.Logger) *EmulatedDevice {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmulatedDevice{workers: workers, logger: logger.Named("emulated")}
}

// Info returns the device description.
func (d *EmulatedDevice) Info() DeviceInfo {
	return DeviceInfo{
		Name:         fmt.Sprintf("Host emulation (%d workers)", d.workers),
		Vendor:       runtime.GOOS + "/" + runtime.GOARCH,
		Backend:      "Emulated",
		Index:        d.index,
		MaxWorkGroup: 1024,
		ComputeUnits: d.workers,
	}
}

type hostBuffer struct {
	data     []byte
	released atomic.Bool
}

func (b *hostBuffer) Len() int         { return len(b.data) }
func (b *hostBuffer) Contents() []byte { return b.data }
func (b *hostBuffer) Release()         { b.released.Store(true) }

// NewBuffer allocates a zeroed host buffer.
func (d *EmulatedDevice) NewBuffer(size int) (Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid buffer size %d", size)
	}
	return &hostBuffer{data: make([]byte, size)}, nil
}

// NewBufferWithData allocates a host buffer holding a copy of data.
func (d *EmulatedDevice) NewBufferWithData(data []byte) (Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("invalid buffer size 0")
	}
	b := &hostBuffer{data: make([]byte, len(data))}
	copy(b.data, data)
	return b, nil
}

type hostKernel struct {
	entry string
	fn    KernelFunc
}

func (k *hostKernel) Entry() string { return k.entry }
func (k *hostKernel) Release()      {}

// LoadKernel resolves entry in the kernel registry. The source is not
// compiled; it only has to be non-empty.
func (d *EmulatedDevice) LoadKernel(source, entry string) (Kernel, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: empty kernel source", miner.ErrKernelCompile)
	}
	fn, err := lookupKernel(entry)
	if err != nil {
		return nil, err
	}
	return &hostKernel{entry: entry, fn: fn}, nil
}

// Dispatch runs the grid to completion.
//
// Worker w owns threads w, w+W, w+2W, ... and advances all of them one
// attempt at a time, so the emulated threads sweep the nonce space in
// roughly the order a real device does. Every thread checks the shared
// claim before each attempt and stops once a winner exists.
func (d *EmulatedDevice) Dispatch(k Kernel, slots []Buffer, grid Grid) error {
	hk, ok := k.(*hostKernel)
	if !ok {
		return fmt.Errorf("%w: kernel %T was not loaded by the emulated device", miner.ErrPipeline, k)
	}
	for i, b := range slots {
		if hb, ok := b.(*hostBuffer); !ok || hb.released.Load() {
			return fmt.Errorf("%w: %s slot is not a live host buffer", miner.ErrPipeline, SlotName(i))
		}
	}

	params, err := DecodeParams(slots)
	if err != nil {
		return err
	}
	if params.Threads != grid.Threads() {
		return fmt.Errorf("%w: threads slot %d disagrees with grid of %d", miner.ErrPipeline, params.Threads, grid.Threads())
	}
	target, err := DecodeTarget(slots)
	if err != nil {
		return err
	}

	st := &KernelState{
		Params: params,
		Target: target,
		Input:  slots[SlotInput].Contents()[:params.InputLen],
		slots:  slots,
	}

	workers := uint64(d.workers)
	if workers > params.Threads {
		workers = params.Threads
	}

	d.logger.Debug("dispatch",
		zap.String("entry", hk.entry),
		zap.Uint64("threads", params.Threads),
		zap.Uint64("workers", workers))

	var g errgroup.Group
	g.SetLimit(int(workers))
	for w := uint64(0); w < workers; w++ {
		w := w
		g.Go(func() error {
			runWorker(hk.fn, st, w, workers)
			return nil
		})
	}
	return g.Wait()
}

func runWorker(fn KernelFunc, st *KernelState, first, step uint64) {
	h := keccak.NewHasher()

	var live []uint64
	for tid := first; tid < st.Params.Threads; tid += step {
		live = append(live, tid)
	}

	for k := uint64(0); len(live) > 0; k++ {
		if st.Params.Iterations != 0 && k >= st.Params.Iterations {
			return
		}
		next := live[:0]
		for _, tid := range live {
			if st.Claimed() {
				return
			}
			if !fn(st, h, tid, k) {
				next = append(next, tid)
			}
		}
		live = next
	}
}

// Release is a no-op for host memory.
func (d *EmulatedDevice) Release() {}
