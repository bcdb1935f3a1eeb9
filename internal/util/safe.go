package util

import "math"

// SafeUint32 clamps a non-negative float to the uint32 range, rounding to
// nearest.
func SafeUint32(value float64) uint32 {
	if value < 0 {
		return 0
	}
	if value >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(value + 0.5)
}
