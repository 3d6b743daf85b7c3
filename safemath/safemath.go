// Package safemath provides overflow-checked integer arithmetic.
//
// Every dimension, stride and byte count in this module ultimately derives
// from file-supplied metadata, so all size computations are routed through
// these functions. An overflow is reported as an error (a corrupt-input
// condition), never wrapped around or clamped.
//
// Each operation is offered in two calling conventions: a value-or-error
// form, and a boolean form that writes to an output pointer and leaves it
// unchanged on failure. Call sites choose local recovery or propagation
// explicitly.
package safemath

import (
	"errors"
	"fmt"
	"math"
)

// ErrOverflow is the failure kind for any operation whose true mathematical
// result does not fit in the result type.
var ErrOverflow = errors.New("arithmetic overflow")

// ErrDivideByZero is the failure kind for division by zero.
var ErrDivideByZero = errors.New("division by zero")

// Int32Add returns a + b, or ErrOverflow if the sum does not fit in an int32.
func Int32Add(a, b int32) (int32, error) {
	// Enumerate the valid cases rather than the invalid ones.
	if (a >= 0 && b <= math.MaxInt32-a) || (a < 0 && b >= math.MinInt32-a) {
		return a + b, nil
	}
	return 0, fmt.Errorf("int32 add %d + %d: %w", a, b, ErrOverflow)
}

// Int32AddTo stores a + b in *result and returns true if the sum fits in an
// int32. Otherwise it returns false and leaves *result unchanged.
func Int32AddTo(a, b int32, result *int32) bool {
	v, err := Int32Add(a, b)
	if err != nil {
		return false
	}
	*result = v
	return true
}

// Int64Add returns a + b, or ErrOverflow if the sum does not fit in an int64.
func Int64Add(a, b int64) (int64, error) {
	if (a >= 0 && b <= math.MaxInt64-a) || (a < 0 && b >= math.MinInt64-a) {
		return a + b, nil
	}
	return 0, fmt.Errorf("int64 add %d + %d: %w", a, b, ErrOverflow)
}

// Uint32Add returns a + b, or ErrOverflow on wraparound.
func Uint32Add(a, b uint32) (uint32, error) {
	if b > math.MaxUint32-a {
		return 0, fmt.Errorf("uint32 add %d + %d: %w", a, b, ErrOverflow)
	}
	return a + b, nil
}

// Uint32AddTo stores a + b in *result and returns true if the sum fits in a
// uint32. Otherwise it returns false and leaves *result unchanged.
func Uint32AddTo(a, b uint32, result *uint32) bool {
	v, err := Uint32Add(a, b)
	if err != nil {
		return false
	}
	*result = v
	return true
}

// Uint64Add returns a + b, or ErrOverflow on wraparound.
func Uint64Add(a, b uint64) (uint64, error) {
	if b > math.MaxUint64-a {
		return 0, fmt.Errorf("uint64 add %d + %d: %w", a, b, ErrOverflow)
	}
	return a + b, nil
}

// Int32Sub returns a - b, or ErrOverflow if the difference does not fit in
// an int32.
func Int32Sub(a, b int32) (int32, error) {
	if (b >= 0 && a >= math.MinInt32+b) || (b < 0 && a <= math.MaxInt32+b) {
		return a - b, nil
	}
	return 0, fmt.Errorf("int32 sub %d - %d: %w", a, b, ErrOverflow)
}

// Int32SubTo stores a - b in *result and returns true if the difference fits
// in an int32. Otherwise it returns false and leaves *result unchanged.
func Int32SubTo(a, b int32, result *int32) bool {
	v, err := Int32Sub(a, b)
	if err != nil {
		return false
	}
	*result = v
	return true
}

// Uint32Sub returns a - b, or ErrOverflow if b > a.
func Uint32Sub(a, b uint32) (uint32, error) {
	if b > a {
		return 0, fmt.Errorf("uint32 sub %d - %d: %w", a, b, ErrOverflow)
	}
	return a - b, nil
}

// Uint32Mult returns the product of its arguments, or ErrOverflow if the
// product does not fit in a uint32. Two to four factors are accepted; the
// multiplication is performed left to right.
func Uint32Mult(args ...uint32) (uint32, error) {
	result := uint32(1)
	for _, arg := range args {
		var err error
		result, err = uint32Mult2(result, arg)
		if err != nil {
			return 0, err
		}
	}
	return result, nil
}

// Uint32MultTo stores a * b in *result and returns true if the product fits
// in a uint32. Otherwise it returns false and leaves *result unchanged.
func Uint32MultTo(a, b uint32, result *uint32) bool {
	v, err := uint32Mult2(a, b)
	if err != nil {
		return false
	}
	*result = v
	return true
}

func uint32Mult2(a, b uint32) (uint32, error) {
	if a != 0 && b > math.MaxUint32/a {
		return 0, fmt.Errorf("uint32 mult %d * %d: %w", a, b, ErrOverflow)
	}
	return a * b, nil
}

// Uint64Mult returns a * b, or ErrOverflow if the product does not fit in a
// uint64.
func Uint64Mult(a, b uint64) (uint64, error) {
	if a != 0 && b > math.MaxUint64/a {
		return 0, fmt.Errorf("uint64 mult %d * %d: %w", a, b, ErrOverflow)
	}
	return a * b, nil
}

// Int64Mult returns a * b, or ErrOverflow if the product does not fit in an
// int64.
func Int64Mult(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	result := a * b
	if result/a != b || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, fmt.Errorf("int64 mult %d * %d: %w", a, b, ErrOverflow)
	}
	return result, nil
}

// Uint32DivideUp returns ceil(a / b), or ErrDivideByZero if b is zero.
// The computation cannot itself overflow: it never forms a + b - 1.
func Uint32DivideUp(a, b uint32) (uint32, error) {
	if b == 0 {
		return 0, fmt.Errorf("uint32 divide up %d / %d: %w", a, b, ErrDivideByZero)
	}
	q := a / b
	if a%b != 0 {
		q++
	}
	return q, nil
}

// RoundUpUint32ToMultiple stores the smallest multiple of multipleOf that is
// >= val in *result and returns true. It returns false, leaving *result
// unchanged, if multipleOf is zero or the rounded value does not fit in a
// uint32.
func RoundUpUint32ToMultiple(val, multipleOf uint32, result *uint32) bool {
	if multipleOf == 0 {
		return false
	}
	remainder := val % multipleOf
	if remainder == 0 {
		*result = val
		return true
	}
	rounded, err := Uint32Add(val, multipleOf-remainder)
	if err != nil {
		return false
	}
	*result = rounded
	return true
}

// Uint32ToInt32 stores val in *result and returns true if val fits in an
// int32. Otherwise it returns false and leaves *result unchanged.
func Uint32ToInt32(val uint32, result *int32) bool {
	if val > math.MaxInt32 {
		return false
	}
	*result = int32(val)
	return true
}

// Int32ToUint32 returns val as a uint32, or ErrOverflow if val is negative.
func Int32ToUint32(val int32) (uint32, error) {
	if val < 0 {
		return 0, fmt.Errorf("int32 %d to uint32: %w", val, ErrOverflow)
	}
	return uint32(val), nil
}

// Uint64ToUint32 returns val as a uint32. The conversion is checked by
// round-trip: if converting back does not reproduce val, ErrOverflow is
// returned.
func Uint64ToUint32(val uint64) (uint32, error) {
	converted := uint32(val)
	if uint64(converted) != val {
		return 0, fmt.Errorf("uint64 %d to uint32: %w", val, ErrOverflow)
	}
	return converted, nil
}

// Uint64ToInt return val as an int, or ErrOverflow if val does not fit.
func Uint64ToInt(val uint64) (int, error) {
	converted := int(val)
	if converted < 0 || uint64(converted) != val {
		return 0, fmt.Errorf("uint64 %d to int: %w", val, ErrOverflow)
	}
	return converted, nil
}

// IntToUint32 returns val as a uint32, or ErrOverflow if val is negative or
// too large.
func IntToUint32(val int) (uint32, error) {
	if val < 0 || uint64(val) > math.MaxUint32 {
		return 0, fmt.Errorf("int %d to uint32: %w", val, ErrOverflow)
	}
	return uint32(val), nil
}

// Int64ToInt32 returns val as an int32, or ErrOverflow if val does not fit.
func Int64ToInt32(val int64) (int32, error) {
	if val < math.MinInt32 || val > math.MaxInt32 {
		return 0, fmt.Errorf("int64 %d to int32: %w", val, ErrOverflow)
	}
	return int32(val), nil
}
