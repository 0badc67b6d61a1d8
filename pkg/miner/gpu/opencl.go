//go:build opencl
// +build opencl

package gpu

/*
#cgo CFLAGS: -DCL_TARGET_OPENCL_VERSION=120
#cgo windows LDFLAGS: -lOpenCL
#cgo linux LDFLAGS: -lOpenCL
#cgo darwin LDFLAGS: -framework OpenCL

#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif

#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"

	"github.com/Amr-9/NonceHunter/pkg/miner"
)

// OpenCLAvailable reports whether OpenCL support was compiled in.
const OpenCLAvailable = true

// OpenCLDevice is a GPU reached through the OpenCL runtime.
type OpenCLDevice struct {
	device  C.cl_device_id
	context C.cl_context
	queue   C.cl_command_queue

	info   DeviceInfo
	logger *zap.Logger
}

// gpuDeviceIDs returns every GPU device across all platforms, in platform order.
func gpuDeviceIDs() ([]C.cl_device_id, error) {
	var numPlatforms C.cl_uint
	if C.clGetPlatformIDs(0, nil, &numPlatforms) != C.CL_SUCCESS || numPlatforms == 0 {
		return nil, fmt.Errorf("%w: no OpenCL platforms", miner.ErrDeviceNotFound)
	}
	platforms := make([]C.cl_platform_id, numPlatforms)
	C.clGetPlatformIDs(numPlatforms, &platforms[0], nil)

	var ids []C.cl_device_id
	for _, p := range platforms {
		var n C.cl_uint
		if C.clGetDeviceIDs(p, C.CL_DEVICE_TYPE_GPU, 0, nil, &n) != C.CL_SUCCESS || n == 0 {
			continue
		}
		devs := make([]C.cl_device_id, n)
		C.clGetDeviceIDs(p, C.CL_DEVICE_TYPE_GPU, n, &devs[0], nil)
		ids = append(ids, devs...)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no OpenCL GPU devices", miner.ErrDeviceNotFound)
	}
	return ids, nil
}

func deviceString(id C.cl_device_id, param C.cl_device_info) string {
	var size C.size_t
	if C.clGetDeviceInfo(id, param, 0, nil, &size) != C.CL_SUCCESS || size == 0 {
		return ""
	}
	buf := make([]byte, size)
	C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	return C.GoString((*C.char)(unsafe.Pointer(&buf[0])))
}

func describe(id C.cl_device_id, index int) DeviceInfo {
	var (
		wg  C.size_t
		cu  C.cl_uint
		mem C.cl_ulong
	)
	C.clGetDeviceInfo(id, C.CL_DEVICE_MAX_WORK_GROUP_SIZE, C.size_t(unsafe.Sizeof(wg)), unsafe.Pointer(&wg), nil)
	C.clGetDeviceInfo(id, C.CL_DEVICE_MAX_COMPUTE_UNITS, C.size_t(unsafe.Sizeof(cu)), unsafe.Pointer(&cu), nil)
	C.clGetDeviceInfo(id, C.CL_DEVICE_GLOBAL_MEM_SIZE, C.size_t(unsafe.Sizeof(mem)), unsafe.Pointer(&mem), nil)
	return DeviceInfo{
		Name:         deviceString(id, C.CL_DEVICE_NAME),
		Vendor:       deviceString(id, C.CL_DEVICE_VENDOR),
		Backend:      "OpenCL",
		Index:        index,
		MaxWorkGroup: int(wg),
		ComputeUnits: int(cu),
		GlobalMem:    uint64(mem),
	}
}

func listOpenCLDevices() ([]DeviceInfo, error) {
	ids, err := gpuDeviceIDs()
	if err != nil {
		return nil, err
	}
	infos := make([]DeviceInfo, len(ids))
	for i, id := range ids {
		infos[i] = describe(id, i)
	}
	return infos, nil
}

func openOpenCL(index int, logger *zap.Logger) (Device, error) {
	ids, err := gpuDeviceIDs()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(ids) {
		return nil, fmt.Errorf("%w: index %d, have %d", miner.ErrDeviceNotFound, index, len(ids))
	}

	d := &OpenCLDevice{
		device: ids[index],
		info:   describe(ids[index], index),
		logger: logger.Named("opencl"),
	}

	var ret C.cl_int
	d.context = C.clCreateContext(nil, 1, &d.device, nil, nil, &ret)
	if ret != C.CL_SUCCESS {
		return nil, fmt.Errorf("%w: create context: %d", miner.ErrDeviceNotFound, ret)
	}
	d.queue = C.clCreateCommandQueue(d.context, d.device, 0, &ret)
	if ret != C.CL_SUCCESS {
		C.clReleaseContext(d.context)
		return nil, fmt.Errorf("%w: create command queue: %d", miner.ErrPipeline, ret)
	}

	d.logger.Info("device opened",
		zap.String("name", d.info.Name),
		zap.String("vendor", d.info.Vendor),
		zap.Int("compute_units", d.info.ComputeUnits))
	return d, nil
}

// Info returns the device description.
func (d *OpenCLDevice) Info() DeviceInfo {
	return d.info
}

// clBuffer pairs a device allocation with a host staging copy.
type clBuffer struct {
	mem  C.cl_mem
	host []byte
}

func (b *clBuffer) Len() int         { return len(b.host) }
func (b *clBuffer) Contents() []byte { return b.host }

func (b *clBuffer) Release() {
	if b.mem != nil {
		C.clReleaseMemObject(b.mem)
		b.mem = nil
	}
}

func (d *OpenCLDevice) alloc(host []byte) (Buffer, error) {
	var ret C.cl_int
	mem := C.clCreateBuffer(d.context, C.CL_MEM_READ_WRITE|C.CL_MEM_COPY_HOST_PTR,
		C.size_t(len(host)), unsafe.Pointer(&host[0]), &ret)
	if ret != C.CL_SUCCESS {
		return nil, fmt.Errorf("clCreateBuffer(%d bytes): %d", len(host), ret)
	}
	return &clBuffer{mem: mem, host: host}, nil
}

// NewBuffer allocates a zero-initialised device buffer.
func (d *OpenCLDevice) NewBuffer(size int) (Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid buffer size %d", size)
	}
	return d.alloc(make([]byte, size))
}

// NewBufferWithData allocates a device buffer initialised from data.
func (d *OpenCLDevice) NewBufferWithData(data []byte) (Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("invalid buffer size 0")
	}
	host := make([]byte, len(data))
	copy(host, data)
	return d.alloc(host)
}

type clKernel struct {
	entry   string
	program C.cl_program
	kernel  C.cl_kernel
}

func (k *clKernel) Entry() string { return k.entry }

func (k *clKernel) Release() {
	if k.kernel != nil {
		C.clReleaseKernel(k.kernel)
		k.kernel = nil
	}
	if k.program != nil {
		C.clReleaseProgram(k.program)
		k.program = nil
	}
}

// LoadKernel builds source for this device and creates entry.
func (d *OpenCLDevice) LoadKernel(source, entry string) (Kernel, error) {
	src := C.CString(source)
	defer C.free(unsafe.Pointer(src))
	length := C.size_t(len(source))

	var ret C.cl_int
	program := C.clCreateProgramWithSource(d.context, 1, &src, &length, &ret)
	if ret != C.CL_SUCCESS {
		return nil, fmt.Errorf("%w: create program: %d", miner.ErrKernelCompile, ret)
	}

	if C.clBuildProgram(program, 1, &d.device, nil, nil, nil) != C.CL_SUCCESS {
		var logSize C.size_t
		C.clGetProgramBuildInfo(program, d.device, C.CL_PROGRAM_BUILD_LOG, 0, nil, &logSize)
		buildLog := make([]byte, logSize+1)
		C.clGetProgramBuildInfo(program, d.device, C.CL_PROGRAM_BUILD_LOG, logSize, unsafe.Pointer(&buildLog[0]), nil)
		C.clReleaseProgram(program)
		return nil, fmt.Errorf("%w: %s", miner.ErrKernelCompile, C.GoString((*C.char)(unsafe.Pointer(&buildLog[0]))))
	}

	name := C.CString(entry)
	defer C.free(unsafe.Pointer(name))
	kernel := C.clCreateKernel(program, name, &ret)
	switch ret {
	case C.CL_SUCCESS:
	case C.CL_INVALID_KERNEL_NAME:
		C.clReleaseProgram(program)
		return nil, fmt.Errorf("%w: %q", miner.ErrKernelNotFound, entry)
	default:
		C.clReleaseProgram(program)
		return nil, fmt.Errorf("%w: create kernel %q: %d", miner.ErrPipeline, entry, ret)
	}
	return &clKernel{entry: entry, program: program, kernel: kernel}, nil
}

// Dispatch uploads the host copies, runs the grid, waits for the queue to
// drain and reads every slot back.
func (d *OpenCLDevice) Dispatch(k Kernel, slots []Buffer, grid Grid) error {
	ck, ok := k.(*clKernel)
	if !ok {
		return fmt.Errorf("%w: kernel %T was not built by OpenCL", miner.ErrPipeline, k)
	}

	mems := make([]*clBuffer, len(slots))
	for i, s := range slots {
		b, ok := s.(*clBuffer)
		if !ok || b.mem == nil {
			return fmt.Errorf("%w: %s slot is not a live OpenCL buffer", miner.ErrPipeline, SlotName(i))
		}
		mems[i] = b
		ret := C.clEnqueueWriteBuffer(d.queue, b.mem, C.CL_TRUE, 0, C.size_t(len(b.host)),
			unsafe.Pointer(&b.host[0]), 0, nil, nil)
		if ret != C.CL_SUCCESS {
			return fmt.Errorf("%w: upload %s: %d", miner.ErrPipeline, SlotName(i), ret)
		}
		ret = C.clSetKernelArg(ck.kernel, C.cl_uint(i), C.size_t(unsafe.Sizeof(b.mem)), unsafe.Pointer(&b.mem))
		if ret != C.CL_SUCCESS {
			return fmt.Errorf("%w: bind %s: %d", miner.ErrPipeline, SlotName(i), ret)
		}
	}

	global := C.size_t(grid.Threads())
	local := C.size_t(grid.ThreadsPerGroup)
	ret := C.clEnqueueNDRangeKernel(d.queue, ck.kernel, 1, nil, &global, &local, 0, nil, nil)
	if ret != C.CL_SUCCESS {
		return fmt.Errorf("%w: enqueue kernel: %d", miner.ErrPipeline, ret)
	}
	if ret = C.clFinish(d.queue); ret != C.CL_SUCCESS {
		return fmt.Errorf("%w: finish: %d", miner.ErrPipeline, ret)
	}

	for i, b := range mems {
		ret = C.clEnqueueReadBuffer(d.queue, b.mem, C.CL_TRUE, 0, C.size_t(len(b.host)),
			unsafe.Pointer(&b.host[0]), 0, nil, nil)
		if ret != C.CL_SUCCESS {
			return fmt.Errorf("%w: read back %s: %d", miner.ErrPipeline, SlotName(i), ret)
		}
	}
	return nil
}

// Release frees the queue and context.
func (d *OpenCLDevice) Release() {
	if d.queue != nil {
		C.clReleaseCommandQueue(d.queue)
		d.queue = nil
	}
	if d.context != nil {
		C.clReleaseContext(d.context)
		d.context = nil
	}
}
