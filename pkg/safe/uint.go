// Package safe converts between integer types with range checks.
package safe

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfRange is returned when a value does not fit the target type.
var ErrOutOfRange = errors.New("value out of range")

// Integer is any built-in integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Uint32 converts v to uint32.
func Uint32[T Integer](v T) (uint32, error) {
	if v < 0 || uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d does not fit uint32", ErrOutOfRange, v)
	}
	return uint32(v), nil
}

// Uint64 converts v to uint64, rejecting negatives.
func Uint64[T Integer](v T) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("%w: %d does not fit uint64", ErrOutOfRange, v)
	}
	return uint64(v), nil
}
