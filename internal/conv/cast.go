package conv

import (
	"errors"
	"fmt"
	"math"
)

// ErrOverflow is wrapped by every failed conversion.
var ErrOverflow = errors.New("integer overflow")

func overflow(v any, to string) error {
	return fmt.Errorf("%w: %v does not fit in %s", ErrOverflow, v, to)
}

// IntToUint32 converts v, rejecting negative and oversized values.
func IntToUint32(v int) (uint32, error) {
	if v < 0 || uint64(v) > math.MaxUint32 {
		return 0, overflow(v, "uint32")
	}
	return uint32(v), nil
}

// IntToInt32 converts v, rejecting values outside the int32 range.
func IntToInt32(v int) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, overflow(v, "int32")
	}
	return int32(v), nil
}

// Uint32ToInt converts v. It only fails on 32-bit platforms.
func Uint32ToInt(v uint32) (int, error) {
	if uint64(v) > uint64(math.MaxInt) {
		return 0, overflow(v, "int")
	}
	return int(v), nil
}

// Uint64ToInt converts v, rejecting values above math.MaxInt.
func Uint64ToInt(v uint64) (int, error) {
	if v > uint64(math.MaxInt) {
		return 0, overflow(v, "int")
	}
	return int(v), nil
}
