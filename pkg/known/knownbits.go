// Package known implements the KnownBits abstract domain: a per-bit
// tri-state lattice over fixed-width values, plus the sound transfer
// functions for the expression operators.
package known

import (
	"fmt"

	"github.com/pranavk/souper/pkg/bitvec"
)

// KnownBits tracks, for each bit position, whether the bit is known zero,
// known one, or unknown. The invariant Zero & One == 0 must hold on every
// value returned from this package; a violation is an analysis bug, not bad
// input.
type KnownBits struct {
	Zero bitvec.Vector
	One  bitvec.Vector
}

// Unknown returns the no-knowledge element of the given width.
func Unknown(width int) KnownBits {
	return KnownBits{Zero: bitvec.Zero(width), One: bitvec.Zero(width)}
}

// FromConst returns the fully-known element describing exactly val.
func FromConst(val bitvec.Vector) KnownBits {
	return KnownBits{Zero: val.Not(), One: val}
}

// Width returns the width in bits.
func (kb KnownBits) Width() int { return kb.One.Width() }

// HasConflict reports whether some bit is claimed both zero and one.
func (kb KnownBits) HasConflict() bool {
	return !kb.Zero.And(kb.One).IsZero()
}

// IsConstant reports whether every bit is known.
func (kb KnownBits) IsConstant() bool {
	return kb.Zero.Or(kb.One).IsAllOnes()
}

// Constant returns the value of a fully-known element.
func (kb KnownBits) Constant() bitvec.Vector {
	if !kb.IsConstant() {
		panic("known: Constant on a non-constant KnownBits")
	}
	return kb.One
}

// Eq reports structural equality.
func (kb KnownBits) Eq(other KnownBits) bool {
	return kb.Zero.Eq(other.Zero) && kb.One.Eq(other.One)
}

// KnownCount returns the number of known bits (the precision metric).
func (kb KnownBits) KnownCount() int {
	return kb.Zero.PopCount() + kb.One.PopCount()
}

// IsSignKnown reports whether the top bit is known.
func (kb KnownBits) IsSignKnown() bool {
	w := kb.Width()
	return kb.Zero.Bit(w-1) == 1 || kb.One.Bit(w-1) == 1
}

// IsNonNegative reports whether the sign bit is known zero.
func (kb KnownBits) IsNonNegative() bool { return kb.Zero.Bit(kb.Width()-1) == 1 }

// IsNegative reports whether the sign bit is known one.
func (kb KnownBits) IsNegative() bool { return kb.One.Bit(kb.Width()-1) == 1 }

// UMin returns the smallest value consistent with the known bits.
func (kb KnownBits) UMin() bitvec.Vector { return kb.One }

// UMax returns the largest value consistent with the known bits.
func (kb KnownBits) UMax() bitvec.Vector { return kb.Zero.Not() }

// SMin returns the smallest signed value consistent with the known bits:
// when the sign is unknown the worst case sets it.
func (kb KnownBits) SMin() bitvec.Vector {
	if kb.IsSignKnown() {
		return kb.One
	}
	return kb.One.Or(bitvec.OneBit(kb.Width(), kb.Width()-1))
}

// SMax returns the largest signed value consistent with the known bits:
// when the sign is unknown the worst case clears it.
func (kb KnownBits) SMax() bitvec.Vector {
	max := kb.Zero.Not()
	if kb.IsSignKnown() {
		return max
	}
	return max.And(bitvec.OneBit(kb.Width(), kb.Width()-1).Not())
}

// MinTrailingZeros returns the guaranteed count of low zero bits.
func (kb KnownBits) MinTrailingZeros() int { return kb.Zero.TrailingOnes() }

// MinLeadingZeros returns the guaranteed count of high zero bits.
func (kb KnownBits) MinLeadingZeros() int { return kb.Zero.LeadingOnes() }

// MinLeadingOnes returns the guaranteed count of high one bits.
func (kb KnownBits) MinLeadingOnes() int { return kb.One.LeadingOnes() }

// MaxTrailingZeros returns the largest possible count of low zero bits.
func (kb KnownBits) MaxTrailingZeros() int { return kb.One.TrailingZeros() }

// MaxLeadingZeros returns the largest possible count of high zero bits.
func (kb KnownBits) MaxLeadingZeros() int { return kb.One.LeadingZeros() }

// MaxPopulation returns the largest possible number of set bits.
func (kb KnownBits) MaxPopulation() int { return kb.Width() - kb.Zero.PopCount() }

// ZExt widens: the new high bits are known zero.
func (kb KnownBits) ZExt(newWidth int) KnownBits {
	w := kb.Width()
	return KnownBits{
		Zero: kb.Zero.ZExt(newWidth).Or(bitvec.HighOnes(newWidth, newWidth-w)),
		One:  kb.One.ZExt(newWidth),
	}
}

// SExt widens: a known sign bit replicates into the new high bits,
// an unknown sign leaves them unknown.
func (kb KnownBits) SExt(newWidth int) KnownBits {
	return KnownBits{Zero: kb.Zero.SExt(newWidth), One: kb.One.SExt(newWidth)}
}

// Trunc drops the high bits of both fields.
func (kb KnownBits) Trunc(newWidth int) KnownBits {
	return KnownBits{Zero: kb.Zero.Trunc(newWidth), One: kb.One.Trunc(newWidth)}
}

// String renders the bits most significant first: '0', '1', or '?'.
func (kb KnownBits) String() string {
	w := kb.Width()
	b := make([]byte, w)
	for i := 0; i < w; i++ {
		bit := w - 1 - i
		switch {
		case kb.Zero.Bit(bit) == 1:
			b[i] = '0'
		case kb.One.Bit(bit) == 1:
			b[i] = '1'
		default:
			b[i] = '?'
		}
	}
	return string(b)
}

// MostPrecise returns whichever of a and b has more known bits, preferring
// b on ties.
func MostPrecise(a, b KnownBits) KnownBits {
	unknownA := a.Width() - a.KnownCount()
	unknownB := b.Width() - b.KnownCount()
	if unknownA < unknownB {
		return a
	}
	return b
}

// Merge joins the elements of vec: a bit stays known only where every input
// agrees on it. This is the lattice join used for phi nodes.
func Merge(vec []KnownBits) KnownBits {
	if len(vec) == 0 {
		panic("known: Merge of no elements")
	}
	out := vec[0]
	for _, kb := range vec[1:] {
		if kb.Width() != out.Width() {
			panic(fmt.Sprintf("known: Merge width mismatch %d vs %d", out.Width(), kb.Width()))
		}
		out = KnownBits{Zero: out.Zero.And(kb.Zero), One: out.One.And(kb.One)}
	}
	return out
}
