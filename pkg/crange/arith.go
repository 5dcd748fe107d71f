package crange

import (
	"math/big"

	"github.com/pranavk/souper/pkg/bitvec"
)

// Interval arithmetic. Every operation returns a sound over-approximation
// of { op(x, y) | x in r, y in other }; when a bound computation wraps the
// result widens to the full set.

// Add returns the range of sums.
func (r Range) Add(other Range) Range {
	w := r.Width()
	if r.IsEmptySet() || other.IsEmptySet() {
		return Empty(w)
	}
	if r.IsFullSet() || other.IsFullSet() {
		return Full(w)
	}
	newLower := r.lo.Add(other.lo)
	newUpper := r.hi.Add(other.hi).Sub(bitvec.New(w, 1))
	if newLower.Eq(newUpper) {
		return Full(w)
	}
	x := NonEmpty(newLower, newUpper)
	if sizeLess(x.Size(), r.Size()) || sizeLess(x.Size(), other.Size()) {
		// Wrapped all the way around.
		return Full(w)
	}
	return x
}

// Sub returns the range of differences.
func (r Range) Sub(other Range) Range {
	w := r.Width()
	if r.IsEmptySet() || other.IsEmptySet() {
		return Empty(w)
	}
	if r.IsFullSet() || other.IsFullSet() {
		return Full(w)
	}
	newLower := r.lo.Sub(other.hi).Add(bitvec.New(w, 1))
	newUpper := r.hi.Sub(other.lo)
	if newLower.Eq(newUpper) {
		return Full(w)
	}
	x := NonEmpty(newLower, newUpper)
	if sizeLess(x.Size(), r.Size()) || sizeLess(x.Size(), other.Size()) {
		return Full(w)
	}
	return x
}

// Multiply returns the range of products, tracked through the unsigned
// double-width product of the envelope corners.
func (r Range) Multiply(other Range) Range {
	w := r.Width()
	if r.IsEmptySet() || other.IsEmptySet() {
		return Empty(w)
	}

	minProd := new(big.Int).Mul(r.UnsignedMin().Big(), other.UnsignedMin().Big())
	maxProd := new(big.Int).Mul(r.UnsignedMax().Big(), other.UnsignedMax().Big())

	size := new(big.Int).Sub(maxProd, minProd)
	size.Add(size, big.NewInt(1))
	mod := new(big.Int).Lsh(big.NewInt(1), uint(w))
	if size.Cmp(mod) >= 0 {
		return Full(w)
	}
	lo := bitvec.FromBig(w, minProd)
	return NonEmpty(lo, lo.Add(bitvec.FromBig(w, size)))
}

// UDiv returns the range of unsigned quotients. A divisor range that can
// only be zero yields the empty set; a zero lower bound is clamped to one.
func (r Range) UDiv(other Range) Range {
	w := r.Width()
	if r.IsEmptySet() || other.IsEmptySet() || other.UnsignedMax().IsZero() {
		return Empty(w)
	}
	lower := r.UnsignedMin().UDiv(other.UnsignedMax())
	rhsMin := other.UnsignedMin()
	if rhsMin.IsZero() {
		rhsMin = bitvec.New(w, 1)
	}
	upper := r.UnsignedMax().UDiv(rhsMin)
	return NonEmpty(lower, upper.Add(bitvec.New(w, 1)))
}

// Shl returns the range of left shifts.
func (r Range) Shl(other Range) Range {
	w := r.Width()
	if r.IsEmptySet() || other.IsEmptySet() {
		return Empty(w)
	}

	max := r.UnsignedMax()
	otherMax := other.UnsignedMax()

	if otherMax.IsZero() {
		// Shift by exactly zero.
		return r
	}
	if otherMax.Ucmp(bitvec.New(w, uint64(max.LeadingZeros()))) > 0 {
		// The top bits can be shifted out.
		return Full(w)
	}

	min := r.UnsignedMin().Shl(shiftAmount(other.UnsignedMin(), w))
	max = max.Shl(shiftAmount(otherMax, w))
	return NonEmpty(min, max.Add(bitvec.New(w, 1)))
}

// LShr returns the range of logical right shifts.
func (r Range) LShr(other Range) Range {
	w := r.Width()
	if r.IsEmptySet() || other.IsEmptySet() {
		return Empty(w)
	}
	lower := r.UnsignedMin().LShr(shiftAmount(other.UnsignedMax(), w))
	upper := r.UnsignedMax().LShr(shiftAmount(other.UnsignedMin(), w))
	return NonEmpty(lower, upper.Add(bitvec.New(w, 1)))
}

// AShr returns the range of arithmetic right shifts. Negative inputs grow
// toward -1 with larger shifts, non-negative ones shrink toward 0, so each
// signed bound picks its own worst-case shift.
func (r Range) AShr(other Range) Range {
	w := r.Width()
	if r.IsEmptySet() || other.IsEmptySet() {
		return Empty(w)
	}
	shMin := clampShift(other.UnsignedMin(), w)
	shMax := clampShift(other.UnsignedMax(), w)

	smin := r.SignedMin()
	smax := r.SignedMax()
	var lower, upper bitvec.Vector
	if smin.IsNegative() {
		lower = smin.AShr(shMin)
	} else {
		lower = smin.AShr(shMax)
	}
	if smax.IsNegative() {
		upper = smax.AShr(shMax)
	} else {
		upper = smax.AShr(shMin)
	}
	return NonEmpty(lower, upper.Add(bitvec.New(w, 1)))
}

// shiftAmount converts a shift bound to an int, saturating at the width.
func shiftAmount(v bitvec.Vector, w int) int {
	if n := v.Uint64(); n < uint64(w) {
		return int(n)
	}
	return w
}

// clampShift is shiftAmount capped at w-1, for sign-preserving shifts.
func clampShift(v bitvec.Vector, w int) int {
	if n := v.Uint64(); n < uint64(w) {
		return int(n)
	}
	return w - 1
}

// Truncate maps the set into a narrower width. A cyclic interval of size s
// truncates exactly to the cyclic interval of size s starting at
// lo mod 2^newWidth, because consecutive values stay consecutive mod 2^n.
func (r Range) Truncate(newWidth int) Range {
	if r.IsEmptySet() {
		return Empty(newWidth)
	}
	size := r.Size()
	mod := new(big.Int).Lsh(big.NewInt(1), uint(newWidth))
	if size.Cmp(mod) >= 0 {
		return Full(newWidth)
	}
	lo := r.lo.Trunc(newWidth)
	return NonEmpty(lo, lo.Add(bitvec.FromBig(newWidth, size)))
}

// ZeroExtend widens the set with zero fill.
func (r Range) ZeroExtend(newWidth int) Range {
	w := r.Width()
	if r.IsEmptySet() {
		return Empty(newWidth)
	}
	if r.IsFullSet() || r.IsUpperWrapped() {
		lower := bitvec.Zero(newWidth)
		if !r.IsFullSet() && r.hi.IsZero() {
			// [X, 0) touches the top without wrapping.
			lower = r.lo.ZExt(newWidth)
		}
		return New(lower, bitvec.OneBit(newWidth, w))
	}
	return New(r.lo.ZExt(newWidth), r.hi.ZExt(newWidth))
}

// SignExtend widens the set replicating the sign bit.
func (r Range) SignExtend(newWidth int) Range {
	w := r.Width()
	if r.IsEmptySet() {
		return Empty(newWidth)
	}
	// [X, signed-min) touches the signed top without wrapping.
	if !r.IsFullSet() && r.hi.Eq(bitvec.MinSigned(w)) {
		return New(r.lo.SExt(newWidth), r.hi.ZExt(newWidth))
	}
	if r.IsFullSet() || r.IsSignWrappedSet() {
		return New(
			bitvec.MinSigned(w).SExt(newWidth),
			bitvec.MaxSigned(w).ZExt(newWidth).Add(bitvec.New(newWidth, 1)),
		)
	}
	return New(r.lo.SExt(newWidth), r.hi.SExt(newWidth))
}

// AddWithNoSignedWrap adds the constant c under a no-signed-wrap guarantee:
// inputs that would overflow are excluded before the addition.
func (r Range) AddWithNoSignedWrap(c bitvec.Vector) Range {
	w := r.Width()
	if r.IsEmptySet() {
		return Empty(w)
	}
	if c.IsZero() {
		return r
	}
	var region Range
	if c.IsNegative() {
		// x + c >= smin  =>  x >= smin - c
		region = New(bitvec.MinSigned(w).Sub(c), bitvec.MinSigned(w))
	} else {
		// x + c <= smax  =>  x <= smax - c
		region = New(bitvec.MinSigned(w), bitvec.MaxSigned(w).Sub(c).Add(bitvec.New(w, 1)))
	}
	return r.IntersectWith(region).Add(FromConst(c))
}
