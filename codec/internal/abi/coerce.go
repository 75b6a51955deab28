package abi

import "math"

// FitsInt reports whether v is representable as a signed integer of the
// given bit width.
func FitsInt(v int64, bits int) bool {
	switch bits {
	case 8:
		return v >= math.MinInt8 && v <= math.MaxInt8
	case 16:
		return v >= math.MinInt16 && v <= math.MaxInt16
	case 32:
		return v >= math.MinInt32 && v <= math.MaxInt32
	default:
		return true
	}
}

// FitsUint reports whether v is representable as an unsigned integer of the
// given bit width. Negative values never fit.
func FitsUint(v int64, bits int) bool {
	if v < 0 {
		return false
	}
	switch bits {
	case 8:
		return v <= math.MaxUint8
	case 16:
		return v <= math.MaxUint16
	case 32:
		return v <= math.MaxUint32
	default:
		return true
	}
}

// FitsFloat32 reports whether v survives a round trip through float32.
// NaN and infinities are carried through unchanged.
func FitsFloat32(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return true
	}
	return float64(float32(v)) == v
}

// CoerceToInt64 widens any Go integer to the canonical signed 64-bit form.
// Unsigned values above MaxInt64 keep their bit pattern.
func CoerceToInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case uintptr:
		return int64(v), true
	}
	return 0, false
}

// CoerceToFloat64 widens float32 and float64 to the canonical double.
func CoerceToFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	return 0, false
}
