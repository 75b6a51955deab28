package abi

import (
	"math"
	"testing"
)

func TestFitsInt(t *testing.T) {
	tests := []struct {
		v    int64
		bits int
		want bool
	}{
		{0, 8, true},
		{127, 8, true},
		{128, 8, false},
		{-128, 8, true},
		{-129, 8, false},
		{math.MaxInt16, 16, true},
		{math.MaxInt16 + 1, 16, false},
		{math.MinInt32, 32, true},
		{math.MinInt32 - 1, 32, false},
		{math.MinInt64, 64, true},
		{math.MaxInt64, 64, true},
	}

	for _, tc := range tests {
		if got := FitsInt(tc.v, tc.bits); got != tc.want {
			t.Errorf("FitsInt(%d, %d) = %v, want %v", tc.v, tc.bits, got, tc.want)
		}
	}
}

func TestFitsUint(t *testing.T) {
	tests := []struct {
		v    int64
		bits int
		want bool
	}{
		{0, 8, true},
		{255, 8, true},
		{256, 8, false},
		{-1, 8, false},
		{-1, 64, false},
		{math.MaxUint16, 16, true},
		{math.MaxUint32, 32, true},
		{math.MaxUint32 + 1, 32, false},
		{math.MaxInt64, 64, true},
	}

	for _, tc := range tests {
		if got := FitsUint(tc.v, tc.bits); got != tc.want {
			t.Errorf("FitsUint(%d, %d) = %v, want %v", tc.v, tc.bits, got, tc.want)
		}
	}
}

func TestFitsFloat32(t *testing.T) {
	tests := []struct {
		v    float64
		want bool
	}{
		{0, true},
		{1.5, true},
		{-2.25, true},
		{float64(math.SmallestNonzeroFloat32), true},
		{float64(math.MaxFloat32), true},
		{0.1, false},
		{math.MaxFloat64, false},
		{math.Inf(1), true},
		{math.NaN(), true},
	}

	for _, tc := range tests {
		if got := FitsFloat32(tc.v); got != tc.want {
			t.Errorf("FitsFloat32(%v) = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestCoerceToInt64(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int64
		ok    bool
	}{
		{"int", 42, 42, true},
		{"int8", int8(-5), -5, true},
		{"uint8", uint8(200), 200, true},
		{"int32", int32(math.MinInt32), math.MinInt32, true},
		{"uint32", uint32(math.MaxUint32), math.MaxUint32, true},
		{"uint64 max keeps bits", uint64(math.MaxUint64), -1, true},
		{"float64", 1.0, 0, false},
		{"string", "1", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := CoerceToInt64(tc.value)
			if ok != tc.ok || got != tc.want {
				t.Errorf("CoerceToInt64(%v) = %d, %v; want %d, %v", tc.value, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestCoerceToFloat64(t *testing.T) {
	if v, ok := CoerceToFloat64(float32(1.5)); !ok || v != 1.5 {
		t.Errorf("CoerceToFloat64(float32(1.5)) = %v, %v", v, ok)
	}
	if _, ok := CoerceToFloat64(1); ok {
		t.Error("ints must not coerce to double")
	}
}
