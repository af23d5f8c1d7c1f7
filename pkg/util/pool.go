package util

import "runtime"

// GetOptimalPoolSize returns the number of parsers per grammar and the number
// of scan workers.
//
// Formula: min(max(runtime.NumCPU() * 2, 4), 32). Parsing goes through cgo,
// so twice the core count keeps cores busy while a worker sits in C code.
//
// The parser pool and the scan worker pool MUST use the same value, otherwise
// workers block waiting for a free parser.
func GetOptimalPoolSize() int {
	poolSize := runtime.NumCPU() * 2
	if poolSize < 4 {
		poolSize = 4
	}
	if poolSize > 32 {
		poolSize = 32
	}
	return poolSize
}

// GetOptimalPoolSizeWithOverride returns override when positive, otherwise
// GetOptimalPoolSize().
func GetOptimalPoolSizeWithOverride(override int) int {
	if override > 0 {
		return override
	}
	return GetOptimalPoolSize()
}
