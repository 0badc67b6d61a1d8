//go:build !windows || !opencl

package main

// Outside Windows OpenCL builds the discrete GPU is chosen through the
// platform (DRI_PRIME=1 on Linux, system settings on macOS) or with
// --device-index.
