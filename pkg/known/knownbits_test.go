package known

import (
	"testing"

	"github.com/pranavk/souper/pkg/bitvec"
)

func TestFromConst(t *testing.T) {
	kb := FromConst(bitvec.New(8, 5))
	if !kb.IsConstant() || kb.HasConflict() {
		t.Fatal("constant element must be fully known and conflict-free")
	}
	if kb.Constant().Uint64() != 5 {
		t.Fatalf("constant: got %v", kb.Constant())
	}
	if kb.KnownCount() != 8 {
		t.Fatalf("known count: got %d", kb.KnownCount())
	}
}

func TestAddPartialCarry(t *testing.T) {
	// a: bit1 known one, bits 0 and 3 known zero, bit2 unknown -> {0010, 0110}
	// b: constant 1100
	a := KnownBits{Zero: bitvec.New(4, 0b1001), One: bitvec.New(4, 0b0010)}
	b := FromConst(bitvec.New(4, 0b1100))

	// Sums are {1110, 0010}: bit0 known zero, bit1 known one, the carry out
	// of the unknown bit2 obscures bit3.
	got := Add(a, b)
	if got.Zero.Uint64() != 0b0001 || got.One.Uint64() != 0b0010 {
		t.Fatalf("add: got %s", got)
	}
}

func TestEnvelopes(t *testing.T) {
	// ??10 at width 4.
	kb := KnownBits{Zero: bitvec.New(4, 0b0001), One: bitvec.New(4, 0b0010)}
	if kb.UMin().Uint64() != 0b0010 || kb.UMax().Uint64() != 0b1110 {
		t.Fatalf("unsigned envelope: [%v, %v]", kb.UMin(), kb.UMax())
	}
	// Sign unknown: SMin forces the sign bit, SMax clears it.
	if kb.SMin().Uint64() != 0b1010 || kb.SMax().Uint64() != 0b0110 {
		t.Fatalf("signed envelope: [%v, %v]", kb.SMin(), kb.SMax())
	}
}

func TestMergeAndMostPrecise(t *testing.T) {
	a := FromConst(bitvec.New(4, 0b1010))
	b := FromConst(bitvec.New(4, 0b1001))
	m := Merge([]KnownBits{a, b})
	// Agreement only on bit3 (one) and bit2 (zero).
	if m.One.Uint64() != 0b1000 || m.Zero.Uint64() != 0b0100 {
		t.Fatalf("merge: got %s", m)
	}

	u := Unknown(4)
	if got := MostPrecise(u, a); !got.Eq(a) {
		t.Fatal("MostPrecise should pick the constant over unknown")
	}
	if got := MostPrecise(a, u); !got.Eq(a) {
		t.Fatal("MostPrecise should pick the constant either way")
	}
}

func TestWidthOps(t *testing.T) {
	kb := FromConst(bitvec.New(4, 0b1010))
	z := kb.ZExt(8)
	if z.Zero.Uint64() != 0b11110101 || z.One.Uint64() != 0b00001010 {
		t.Fatalf("zext: got %s", z)
	}
	s := kb.SExt(8)
	if s.One.Uint64() != 0b11111010 || s.Zero.Uint64() != 0b00000101 {
		t.Fatalf("sext: got %s", s)
	}
	// Unknown sign bit leaves the extension unknown.
	half := KnownBits{Zero: bitvec.New(4, 0b0101), One: bitvec.New(4, 0b0010)}
	s2 := half.SExt(8)
	if s2.Zero.Uint64() != 0b0101 || s2.One.Uint64() != 0b0010 {
		t.Fatalf("sext unknown sign: got %s", s2)
	}
	tr := FromConst(bitvec.New(8, 0xA5)).Trunc(4)
	if !tr.IsConstant() || tr.Constant().Uint64() != 0x5 {
		t.Fatalf("trunc: got %s", tr)
	}
}

func TestKnownBitsString(t *testing.T) {
	kb := KnownBits{Zero: bitvec.New(4, 0b0001), One: bitvec.New(4, 0b0010)}
	if got := kb.String(); got != "??10" {
		t.Errorf("String: got %q", got)
	}
	if got := Unknown(3).String(); got != "???" {
		t.Errorf("String: got %q", got)
	}
}

func TestShiftByConstant(t *testing.T) {
	v := Unknown(8)
	five := FromConst(bitvec.New(8, 5))
	got := Shl(v, five)
	if got.Zero.Uint64() != 31 || got.One.Uint64() != 0 {
		t.Fatalf("shl by 5: got %s", got)
	}
	got = LShr(v, five)
	if got.Zero.Uint64() != 0b11111000 || got.One.Uint64() != 0 {
		t.Fatalf("lshr by 5: got %s", got)
	}
	// Shift past the width is poison: no knowledge.
	got = Shl(FromConst(bitvec.New(8, 1)), FromConst(bitvec.New(8, 9)))
	if got.KnownCount() != 0 {
		t.Fatalf("oversized shl should know nothing, got %s", got)
	}
}

func TestURemPowerOfTwo(t *testing.T) {
	lhs := FromConst(bitvec.New(8, 0xAB))
	got := URem(lhs, FromConst(bitvec.New(8, 16)))
	if !got.IsConstant() || got.Constant().Uint64() != 0x0B {
		t.Fatalf("urem by 16: got %s", got)
	}
}
