package pixel

import "math"

// halfToFloat expands a 16-bit IEEE half-precision value to float32.
func halfToFloat(h uint16) float32 {
	sign := uint32(h>>15) & 1
	exp := uint32(h>>10) & 0x1F
	mant := uint32(h) & 0x3FF

	var bits uint32
	switch {
	case exp == 0:
		if mant == 0 {
			// Signed zero.
			bits = sign << 31
		} else {
			// Subnormal: normalize.
			e := uint32(127 - 15 + 1)
			for mant&0x400 == 0 {
				mant <<= 1
				e--
			}
			mant &= 0x3FF
			bits = sign<<31 | e<<23 | mant<<13
		}
	case exp == 0x1F:
		// Inf or NaN.
		bits = sign<<31 | 0xFF<<23 | mant<<13
	default:
		bits = sign<<31 | (exp-15+127)<<23 | mant<<13
	}
	return math.Float32frombits(bits)
}

// floatToHalf rounds a float32 to the nearest 16-bit half-precision value.
// Values above the half range become infinity.
func floatToHalf(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23) & 0xFF
	mant := bits & 0x7FFFFF

	switch {
	case exp == 0xFF:
		// Inf or NaN.
		if mant != 0 {
			return sign | 0x7E00
		}
		return sign | 0x7C00
	case exp-127 > 15:
		// Overflow to infinity.
		return sign | 0x7C00
	case exp-127 < -24:
		// Underflow to signed zero.
		return sign
	case exp-127 < -14:
		// Subnormal half.
		shift := uint32(-(exp - 127) - 14)
		m := (mant | 0x800000) >> (13 + shift)
		round := (mant | 0x800000) >> (12 + shift) & 1
		return sign | uint16(m+round)
	default:
		h := sign | uint16(exp-127+15)<<10 | uint16(mant>>13)
		// Round to nearest.
		if mant&0x1000 != 0 {
			h++
		}
		return h
	}
}
