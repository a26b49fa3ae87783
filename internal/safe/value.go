// Package safe provides clamped numeric conversions for values crossing the
// SQL wire, where ids and counters arrive as int8 but are unsigned in the
// data model.
package safe

import (
	"math"
)

// Uint64ToInt64 safely converts an uint64 value to int64, clamping to math.MaxInt64
// if overflow would occur.
// Returns the converted value and a boolean indicating whether clamping occurred.
func Uint64ToInt64(val uint64) (int64, bool) {
	if val > math.MaxInt64 {
		return math.MaxInt64, true
	}
	return int64(val), false
}

// Int64ToUint64 safely converts an int64 value to uint64, clamping negative
// values to zero.
// Returns the converted value and a boolean indicating whether clamping occurred.
func Int64ToUint64(val int64) (uint64, bool) {
	if val < 0 {
		return 0, true
	}
	return uint64(val), false
}
