package bitvec

import (
	"math/big"
	"testing"
)

func TestModularArithmetic(t *testing.T) {
	tests := []struct {
		name  string
		got   Vector
		want  uint64
		width int
	}{
		{"add wraps", New(8, 0xFF).Add(New(8, 1)), 0, 8},
		{"sub wraps", New(8, 0).Sub(New(8, 1)), 0xFF, 8},
		{"mul wraps", New(8, 0x80).Mul(New(8, 2)), 0, 8},
		{"neg", New(8, 1).Neg(), 0xFF, 8},
		{"udiv", New(8, 0xFF).UDiv(New(8, 0x10)), 0xF, 8},
		{"urem", New(8, 0xFF).URem(New(8, 0x10)), 0xF, 8},
		{"sdiv -8/2", NewSigned(8, -8).SDiv(New(8, 2)), 0xFC, 8},
		{"srem -7%2", NewSigned(8, -7).SRem(New(8, 2)), 0xFF, 8},
		{"shl", New(8, 0x81).Shl(1), 0x02, 8},
		{"lshr", New(8, 0x81).LShr(1), 0x40, 8},
		{"ashr negative", New(8, 0x80).AShr(1), 0xC0, 8},
		{"ashr saturates", New(8, 0x80).AShr(200), 0xFF, 8},
		{"shl out of range", New(8, 0xFF).Shl(8), 0, 8},
	}
	for _, tt := range tests {
		if tt.got.Uint64() != tt.want || tt.got.Width() != tt.width {
			t.Errorf("%s: got %v, want %d:i%d", tt.name, tt.got, tt.want, tt.width)
		}
	}
}

func TestWidthChanges(t *testing.T) {
	x := New(8, 0x80)
	if got := x.ZExt(16); got.Uint64() != 0x0080 {
		t.Errorf("zext: got %v", got)
	}
	if got := x.SExt(16); got.Uint64() != 0xFF80 {
		t.Errorf("sext: got %v", got)
	}
	if got := New(16, 0x1234).Trunc(8); got.Uint64() != 0x34 {
		t.Errorf("trunc: got %v", got)
	}
}

func TestSignedInterpretation(t *testing.T) {
	x := New(8, 0xFE)
	if !x.IsNegative() {
		t.Fatal("0xFE at width 8 should be negative")
	}
	if x.SignedBig().Int64() != -2 {
		t.Fatalf("signed value: got %v", x.SignedBig())
	}
	if NewSigned(8, -2).Ucmp(x) != 0 {
		t.Fatal("NewSigned(-2) != 0xFE")
	}
	if x.Scmp(New(8, 1)) >= 0 {
		t.Fatal("-2 <s 1 expected")
	}
	if x.Ucmp(New(8, 1)) <= 0 {
		t.Fatal("0xFE >u 1 expected")
	}
}

func TestBitCounts(t *testing.T) {
	x := New(8, 0b00101100)
	if got := x.PopCount(); got != 3 {
		t.Errorf("popcount: got %d", got)
	}
	if got := x.LeadingZeros(); got != 2 {
		t.Errorf("leading zeros: got %d", got)
	}
	if got := x.TrailingZeros(); got != 2 {
		t.Errorf("trailing zeros: got %d", got)
	}
	if got := Zero(8).TrailingZeros(); got != 8 {
		t.Errorf("trailing zeros of 0: got %d", got)
	}
	if got := New(8, 0xE5).LeadingOnes(); got != 3 {
		t.Errorf("leading ones: got %d", got)
	}
	if got := New(8, 0xE7).TrailingOnes(); got != 3 {
		t.Errorf("trailing ones: got %d", got)
	}
}

func TestWideVectors(t *testing.T) {
	// Widths beyond 64 bits must behave identically.
	one := New(128, 1)
	max := AllOnes(128)
	if got := max.Add(one); !got.IsZero() {
		t.Fatalf("128-bit wrap: got %v", got)
	}
	if max.PopCount() != 128 || !max.IsAllOnes() || !max.IsNegative() {
		t.Fatal("128-bit all-ones properties")
	}
	want := new(big.Int).Lsh(big.NewInt(1), 127)
	if MinSigned(128).Big().Cmp(want) != 0 {
		t.Fatal("128-bit min signed")
	}
}

func TestPermutations(t *testing.T) {
	if got := New(16, 0x1234).ByteSwap(); got.Uint64() != 0x3412 {
		t.Errorf("byteswap: got %v", got)
	}
	if got := New(8, 0b10110000).ReverseBits(); got.Uint64() != 0b00001101 {
		t.Errorf("reversebits: got %v", got)
	}
}

func TestConstructorsAndStrings(t *testing.T) {
	if got := LowOnes(8, 3); got.Uint64() != 0x07 {
		t.Errorf("LowOnes: got %v", got)
	}
	if got := HighOnes(8, 3); got.Uint64() != 0xE0 {
		t.Errorf("HighOnes: got %v", got)
	}
	if got := OneBit(8, 7); got.Uint64() != 0x80 {
		t.Errorf("OneBit: got %v", got)
	}
	if got := New(8, 0xA5).BitString(); got != "10100101" {
		t.Errorf("BitString: got %q", got)
	}
	if got := New(8, 42).String(); got != "42:i8" {
		t.Errorf("String: got %q", got)
	}
}
