package safemath

import (
	"errors"
	"math"
	"testing"
)

func TestInt32Add(t *testing.T) {
	tests := []struct {
		a, b    int32
		want    int32
		wantErr bool
	}{
		{0, 0, 0, false},
		{1, 2, 3, false},
		{math.MaxInt32, 0, math.MaxInt32, false},
		{math.MaxInt32 - 1, 1, math.MaxInt32, false},
		{math.MaxInt32, 1, 0, true},
		{math.MinInt32, 0, math.MinInt32, false},
		{math.MinInt32 + 1, -1, math.MinInt32, false},
		{math.MinInt32, -1, 0, true},
		{-1000, 1000, 0, false},
	}

	for _, tt := range tests {
		got, err := Int32Add(tt.a, tt.b)
		if (err != nil) != tt.wantErr {
			t.Errorf("Int32Add(%d, %d) error = %v, wantErr %v", tt.a, tt.b, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("Int32Add(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if err != nil && !errors.Is(err, ErrOverflow) {
			t.Errorf("Int32Add(%d, %d) error = %v, want ErrOverflow", tt.a, tt.b, err)
		}
	}
}

func TestInt32AddToLeavesResultUnchanged(t *testing.T) {
	result := int32(42)
	if Int32AddTo(math.MaxInt32, 1, &result) {
		t.Fatal("Int32AddTo(MaxInt32, 1) = true, want false")
	}
	if result != 42 {
		t.Errorf("result = %d after failed add, want 42 (unchanged)", result)
	}
	if !Int32AddTo(2, 3, &result) {
		t.Fatal("Int32AddTo(2, 3) = false, want true")
	}
	if result != 5 {
		t.Errorf("result = %d, want 5", result)
	}
}

func TestUint32Add(t *testing.T) {
	tests := []struct {
		a, b    uint32
		want    uint32
		wantErr bool
	}{
		{0, 0, 0, false},
		{math.MaxUint32, 0, math.MaxUint32, false},
		{math.MaxUint32 - 1, 1, math.MaxUint32, false},
		{math.MaxUint32, 1, 0, true},
		{math.MaxUint32, math.MaxUint32, 0, true},
	}

	for _, tt := range tests {
		got, err := Uint32Add(tt.a, tt.b)
		if (err != nil) != tt.wantErr {
			t.Errorf("Uint32Add(%d, %d) error = %v, wantErr %v", tt.a, tt.b, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("Uint32Add(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestInt32Sub(t *testing.T) {
	tests := []struct {
		a, b    int32
		want    int32
		wantErr bool
	}{
		{0, 0, 0, false},
		{5, 3, 2, false},
		{math.MinInt32, 1, 0, true},
		{math.MinInt32 + 1, 1, math.MinInt32, false},
		{math.MaxInt32, -1, 0, true},
		{math.MaxInt32 - 1, -1, math.MaxInt32, false},
	}

	for _, tt := range tests {
		got, err := Int32Sub(tt.a, tt.b)
		if (err != nil) != tt.wantErr {
			t.Errorf("Int32Sub(%d, %d) error = %v, wantErr %v", tt.a, tt.b, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("Int32Sub(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestUint32Mult(t *testing.T) {
	tests := []struct {
		args    []uint32
		want    uint32
		wantErr bool
	}{
		{[]uint32{0, math.MaxUint32}, 0, false},
		{[]uint32{1, math.MaxUint32}, math.MaxUint32, false},
		{[]uint32{2, math.MaxUint32}, 0, true},
		{[]uint32{65536, 65536}, 0, true},
		{[]uint32{65536, 65535}, 4294901760, false},
		{[]uint32{256, 256, 256}, 16777216, false},
		{[]uint32{256, 256, 256, 256}, 0, true},
		{[]uint32{1024, 1024, 4}, 4194304, false},
	}

	for _, tt := range tests {
		got, err := Uint32Mult(tt.args...)
		if (err != nil) != tt.wantErr {
			t.Errorf("Uint32Mult(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("Uint32Mult(%v) = %d, want %d", tt.args, got, tt.want)
		}
	}
}

func TestUint32MultToLeavesResultUnchanged(t *testing.T) {
	result := uint32(7)
	if Uint32MultTo(65536, 65536, &result) {
		t.Fatal("Uint32MultTo(65536, 65536) = true, want false")
	}
	if result != 7 {
		t.Errorf("result = %d after failed mult, want 7 (unchanged)", result)
	}
}

func TestUint64Mult(t *testing.T) {
	if _, err := Uint64Mult(math.MaxUint64, 2); !errors.Is(err, ErrOverflow) {
		t.Errorf("Uint64Mult(MaxUint64, 2) error = %v, want ErrOverflow", err)
	}
	got, err := Uint64Mult(1<<32, 1<<31)
	if err != nil {
		t.Fatalf("Uint64Mult(2^32, 2^31) error = %v", err)
	}
	if got != 1<<63 {
		t.Errorf("Uint64Mult(2^32, 2^31) = %d, want %d", got, uint64(1)<<63)
	}
}

func TestInt64Mult(t *testing.T) {
	tests := []struct {
		a, b    int64
		want    int64
		wantErr bool
	}{
		{0, math.MaxInt64, 0, false},
		{1, math.MinInt64, math.MinInt64, false},
		{-1, math.MinInt64, 0, true},
		{math.MinInt64, -1, 0, true},
		{math.MaxInt64, 2, 0, true},
		{1 << 31, 1 << 31, 1 << 62, false},
		{-(1 << 31), 1 << 31, -(1 << 62), false},
	}

	for _, tt := range tests {
		got, err := Int64Mult(tt.a, tt.b)
		if (err != nil) != tt.wantErr {
			t.Errorf("Int64Mult(%d, %d) error = %v, wantErr %v", tt.a, tt.b, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("Int64Mult(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestUint32DivideUp(t *testing.T) {
	tests := []struct {
		a, b    uint32
		want    uint32
		wantErr bool
	}{
		{0, 1, 0, false},
		{1, 1, 1, false},
		{10, 3, 4, false},
		{9, 3, 3, false},
		{math.MaxUint32, 1, math.MaxUint32, false},
		{math.MaxUint32, math.MaxUint32, 1, false},
		{math.MaxUint32, 2, 1 << 31, false},
		{5, 0, 0, true},
	}

	for _, tt := range tests {
		got, err := Uint32DivideUp(tt.a, tt.b)
		if (err != nil) != tt.wantErr {
			t.Errorf("Uint32DivideUp(%d, %d) error = %v, wantErr %v", tt.a, tt.b, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("Uint32DivideUp(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if err != nil && !errors.Is(err, ErrDivideByZero) {
			t.Errorf("Uint32DivideUp(%d, %d) error = %v, want ErrDivideByZero", tt.a, tt.b, err)
		}
	}
}

// The ceiling-division identities: q*b >= a and q*b - b < a for a > 0.
func TestUint32DivideUpRoundTrip(t *testing.T) {
	cases := []struct{ a, b uint32 }{
		{1, 1}, {1, 2}, {2, 1}, {7, 3}, {100, 7}, {65535, 255},
		{1 << 20, 4096}, {(1 << 20) + 1, 4096}, {math.MaxUint32 / 2, 3},
	}

	for _, c := range cases {
		q, err := Uint32DivideUp(c.a, c.b)
		if err != nil {
			t.Fatalf("Uint32DivideUp(%d, %d) error = %v", c.a, c.b, err)
		}
		prod := uint64(q) * uint64(c.b)
		if prod < uint64(c.a) {
			t.Errorf("divideUp(%d, %d)*%d = %d < %d", c.a, c.b, c.b, prod, c.a)
		}
		if c.a > 0 && prod-uint64(c.b) >= uint64(c.a) {
			t.Errorf("divideUp(%d, %d)*%d - %d = %d >= %d", c.a, c.b, c.b, c.b, prod-uint64(c.b), c.a)
		}
	}
}

func TestRoundUpUint32ToMultiple(t *testing.T) {
	tests := []struct {
		val, multipleOf uint32
		want            uint32
		ok              bool
	}{
		{0, 1, 0, true},
		{5, 1, 5, true},
		{5, 4, 8, true},
		{8, 4, 8, true},
		{math.MaxUint32 - 2, 2, math.MaxUint32 - 1, true},
		{math.MaxUint32, 2, 0, false},
		{5, 0, 0, false},
	}

	for _, tt := range tests {
		result := uint32(123)
		ok := RoundUpUint32ToMultiple(tt.val, tt.multipleOf, &result)
		if ok != tt.ok {
			t.Errorf("RoundUpUint32ToMultiple(%d, %d) = %v, want %v", tt.val, tt.multipleOf, ok, tt.ok)
			continue
		}
		if ok && result != tt.want {
			t.Errorf("RoundUpUint32ToMultiple(%d, %d) result = %d, want %d", tt.val, tt.multipleOf, result, tt.want)
		}
		if !ok && result != 123 {
			t.Errorf("result = %d after failed round up, want 123 (unchanged)", result)
		}
	}
}

func TestUint32ToInt32(t *testing.T) {
	var result int32
	if !Uint32ToInt32(math.MaxInt32, &result) || result != math.MaxInt32 {
		t.Errorf("Uint32ToInt32(MaxInt32) failed, result = %d", result)
	}
	result = -1
	if Uint32ToInt32(math.MaxInt32+1, &result) {
		t.Error("Uint32ToInt32(MaxInt32+1) = true, want false")
	}
	if result != -1 {
		t.Errorf("result = %d after failed conversion, want -1 (unchanged)", result)
	}
}

func TestNarrowingConversions(t *testing.T) {
	if _, err := Uint64ToUint32(math.MaxUint32 + 1); !errors.Is(err, ErrOverflow) {
		t.Errorf("Uint64ToUint32(2^32) error = %v, want ErrOverflow", err)
	}
	got, err := Uint64ToUint32(math.MaxUint32)
	if err != nil || got != math.MaxUint32 {
		t.Errorf("Uint64ToUint32(MaxUint32) = %d, %v", got, err)
	}

	if _, err := IntToUint32(-1); !errors.Is(err, ErrOverflow) {
		t.Errorf("IntToUint32(-1) error = %v, want ErrOverflow", err)
	}

	if _, err := Int64ToInt32(math.MaxInt32 + 1); !errors.Is(err, ErrOverflow) {
		t.Errorf("Int64ToInt32(MaxInt32+1) error = %v, want ErrOverflow", err)
	}
	if _, err := Int64ToInt32(math.MinInt32 - 1); !errors.Is(err, ErrOverflow) {
		t.Errorf("Int64ToInt32(MinInt32-1) error = %v, want ErrOverflow", err)
	}
	if v, err := Int64ToInt32(-5); err != nil || v != -5 {
		t.Errorf("Int64ToInt32(-5) = %d, %v", v, err)
	}

	if _, err := Int32ToUint32(-1); !errors.Is(err, ErrOverflow) {
		t.Errorf("Int32ToUint32(-1) error = %v, want ErrOverflow", err)
	}
}
