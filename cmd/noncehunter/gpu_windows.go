//go:build windows && opencl

package main

// Hybrid-graphics laptops pick the integrated GPU unless the executable
// exports these symbols, which the NVIDIA and AMD drivers look up by name.

/*
#include <stdint.h>

__declspec(dllexport) uint32_t NvOptimusEnablement = 1;
__declspec(dllexport) uint32_t AmdPowerXpressRequestHighPerformance = 1;
*/
import "C"
