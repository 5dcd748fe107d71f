package known

import "github.com/pranavk/souper/pkg/bitvec"

// Binary transfer functions. Each takes the abstractions of the two
// operands and returns a sound abstraction of the result: every value the
// operator can produce from concretizations of the inputs is a
// concretization of the output. The width-4 exhaustive harness in
// brute_test.go certifies this for every function here except the
// no-signed-wrap variants AddNSW and SubNSW, which it does not cover.

// computeForAddCarry propagates known bits through an addition
// lhs + rhs + carry, where the carry-in is itself tri-state.
func computeForAddCarry(lhs, rhs KnownBits, carryZero, carryOne bool) KnownBits {
	w := lhs.Width()
	one := bitvec.New(w, 1)

	possibleSumZero := lhs.Zero.Not().Add(rhs.Zero.Not())
	if !carryZero {
		possibleSumZero = possibleSumZero.Add(one)
	}
	possibleSumOne := lhs.One.Add(rhs.One)
	if carryOne {
		possibleSumOne = possibleSumOne.Add(one)
	}

	carryKnownZero := possibleSumZero.Xor(lhs.Zero).Xor(rhs.Zero).Not()
	carryKnownOne := possibleSumOne.Xor(lhs.One).Xor(rhs.One)

	lhsKnown := lhs.Zero.Or(lhs.One)
	rhsKnown := rhs.Zero.Or(rhs.One)
	carryKnown := carryKnownZero.Or(carryKnownOne)
	allKnown := lhsKnown.And(rhsKnown).And(carryKnown)

	return KnownBits{
		Zero: possibleSumZero.Not().And(allKnown),
		One:  possibleSumOne.And(allKnown),
	}
}

func addSub(isAdd, nsw bool, lhs, rhs KnownBits) KnownBits {
	var out KnownBits
	if isAdd {
		out = computeForAddCarry(lhs, rhs, true, false)
	} else {
		// Subtraction is lhs + ~rhs + 1.
		rhs = KnownBits{Zero: rhs.One, One: rhs.Zero}
		out = computeForAddCarry(lhs, rhs, false, true)
	}
	if nsw && !out.IsSignKnown() {
		sign := bitvec.OneBit(out.Width(), out.Width()-1)
		// With wraparound excluded, matching operand signs pin the
		// result sign. For subtraction rhs is already complemented, so
		// the same two cases cover it.
		if lhs.IsNonNegative() && rhs.IsNonNegative() {
			out.Zero = out.Zero.Or(sign)
		} else if lhs.IsNegative() && rhs.IsNegative() {
			out.One = out.One.Or(sign)
		}
	}
	return out
}

// Add is the transfer function for wrapping addition.
func Add(lhs, rhs KnownBits) KnownBits { return addSub(true, false, lhs, rhs) }

// AddNSW is Add tightened by the no-signed-wrap guarantee.
func AddNSW(lhs, rhs KnownBits) KnownBits { return addSub(true, true, lhs, rhs) }

// Sub is the transfer function for wrapping subtraction.
func Sub(lhs, rhs KnownBits) KnownBits { return addSub(false, false, lhs, rhs) }

// SubNSW is Sub tightened by the no-signed-wrap guarantee.
func SubNSW(lhs, rhs KnownBits) KnownBits { return addSub(false, true, lhs, rhs) }

// Mul tracks trailing zeros (they accumulate), leading zeros (magnitude
// bound on the product), and the parity bit (odd times odd is odd).
func Mul(lhs, rhs KnownBits) KnownBits {
	w := lhs.Width()
	out := Unknown(w)

	tz := lhs.MinTrailingZeros() + rhs.MinTrailingZeros()
	if tz > w {
		tz = w
	}
	out.Zero = out.Zero.Or(bitvec.LowOnes(w, tz))

	if hz := lhs.MinLeadingZeros() + rhs.MinLeadingZeros() - w; hz > 0 {
		out.Zero = out.Zero.Or(bitvec.HighOnes(w, hz))
	}

	if lhs.One.Bit(0) == 1 && rhs.One.Bit(0) == 1 {
		out.One = out.One.Or(bitvec.OneBit(w, 0))
	}
	return out
}

// UDiv bounds the quotient's magnitude: the dividend's guaranteed leading
// zeros survive, and a divisor bounded away from 1 adds more.
func UDiv(lhs, rhs KnownBits) KnownBits {
	w := lhs.Width()
	out := Unknown(w)

	leadZ := lhs.MinLeadingZeros()
	rhsMaxLZ := rhs.MaxLeadingZeros()
	if rhsMaxLZ != w {
		leadZ = min(w, leadZ+w-rhsMaxLZ-1)
	}
	out.Zero = bitvec.HighOnes(w, leadZ)
	return out
}

// URem: a constant power-of-two divisor masks the dividend to its low bits;
// otherwise the remainder is no wider than either operand.
func URem(lhs, rhs KnownBits) KnownBits {
	w := lhs.Width()

	if rhs.IsConstant() {
		ra := rhs.Constant()
		if ra.IsPowerOfTwo() {
			lowBits := ra.Sub(bitvec.New(w, 1))
			return KnownBits{
				Zero: lhs.Zero.Or(lowBits.Not()),
				One:  lhs.One.And(lowBits),
			}
		}
	}

	out := Unknown(w)
	out.Zero = bitvec.HighOnes(w, max(lhs.MinLeadingZeros(), rhs.MinLeadingZeros()))
	return out
}

// And propagates bitwise: a result bit is one only if both inputs are,
// zero if either is.
func And(lhs, rhs KnownBits) KnownBits {
	return KnownBits{
		Zero: lhs.Zero.Or(rhs.Zero),
		One:  lhs.One.And(rhs.One),
	}
}

// Or is the dual of And.
func Or(lhs, rhs KnownBits) KnownBits {
	return KnownBits{
		Zero: lhs.Zero.And(rhs.Zero),
		One:  lhs.One.Or(rhs.One),
	}
}

// Xor: a bit is known when both input bits are, and is their xor.
func Xor(lhs, rhs KnownBits) KnownBits {
	return KnownBits{
		Zero: lhs.Zero.And(rhs.Zero).Or(lhs.One.And(rhs.One)),
		One:  lhs.Zero.And(rhs.One).Or(lhs.One.And(rhs.Zero)),
	}
}

// Shl: a constant in-range shift moves both fields and exposes known-zero
// low bits; an out-of-range constant models poison as no knowledge. For a
// symbolic shift only the guaranteed minimum shift contributes zeros.
func Shl(lhs, rhs KnownBits) KnownBits {
	w := lhs.Width()
	out := Unknown(w)

	if rhs.IsConstant() {
		val := rhs.Constant().Uint64()
		if val >= uint64(w) {
			return out
		}
		n := int(val)
		return KnownBits{
			Zero: lhs.Zero.Shl(n).Or(bitvec.LowOnes(w, n)),
			One:  lhs.One.Shl(n),
		}
	}

	out.Zero = bitvec.LowOnes(w, shiftZeroCount(lhs.MinTrailingZeros(), rhs.One.Uint64(), w))
	return out
}

// LShr mirrors Shl toward the low end.
func LShr(lhs, rhs KnownBits) KnownBits {
	w := lhs.Width()
	out := Unknown(w)

	if rhs.IsConstant() {
		val := rhs.Constant().Uint64()
		if val >= uint64(w) {
			return out
		}
		n := int(val)
		return KnownBits{
			Zero: lhs.Zero.LShr(n).Or(bitvec.HighOnes(w, n)),
			One:  lhs.One.LShr(n),
		}
	}

	out.Zero = bitvec.HighOnes(w, shiftZeroCount(lhs.MinLeadingZeros(), rhs.One.Uint64(), w))
	return out
}

// AShr: a known sign bit extends into the high positions by at least the
// guaranteed minimum shift; an unknown sign yields no knowledge.
func AShr(lhs, rhs KnownBits) KnownBits {
	w := lhs.Width()
	out := Unknown(w)

	minShift := rhs.One.Uint64()
	if lhs.One.Bit(w-1) == 1 {
		out.One = bitvec.HighOnes(w, shiftZeroCount(lhs.MinLeadingOnes(), minShift, w))
	} else if lhs.Zero.Bit(w-1) == 1 {
		out.Zero = bitvec.HighOnes(w, shiftZeroCount(lhs.MinLeadingZeros(), minShift, w))
	}
	return out
}

// shiftZeroCount returns min(base + shift, w), guarding against overflow of
// the uncapped shift amount.
func shiftZeroCount(base int, shift uint64, w int) int {
	if shift >= uint64(w) {
		return w
	}
	return min(base+int(shift), w)
}

// Eq returns a one-bit abstraction: known true only for equal constants,
// known false when the known bits disagree somewhere.
func Eq(lhs, rhs KnownBits) KnownBits {
	out := Unknown(1)
	if lhs.IsConstant() && rhs.IsConstant() && lhs.Constant().Eq(rhs.Constant()) {
		out.One = bitvec.New(1, 1)
		return out
	}
	if disagree(lhs, rhs) {
		out.Zero = bitvec.New(1, 1)
	}
	return out
}

// Ne is the dual of Eq.
func Ne(lhs, rhs KnownBits) KnownBits {
	out := Unknown(1)
	if lhs.IsConstant() && rhs.IsConstant() && lhs.Constant().Eq(rhs.Constant()) {
		out.Zero = bitvec.New(1, 1)
	}
	if disagree(lhs, rhs) {
		out.One = bitvec.New(1, 1)
	}
	return out
}

func disagree(lhs, rhs KnownBits) bool {
	return !lhs.One.And(rhs.Zero).IsZero() || !lhs.Zero.And(rhs.One).IsZero()
}

// Ult compares the unsigned envelopes of both sides.
func Ult(lhs, rhs KnownBits) KnownBits {
	out := Unknown(1)
	if lhs.UMax().Ucmp(rhs.UMin()) < 0 {
		out.One = bitvec.New(1, 1)
	}
	if lhs.UMin().Ucmp(rhs.UMax()) >= 0 {
		out.Zero = bitvec.New(1, 1)
	}
	return out
}

// Ule is Ult with non-strict bounds.
func Ule(lhs, rhs KnownBits) KnownBits {
	out := Unknown(1)
	if lhs.UMax().Ucmp(rhs.UMin()) <= 0 {
		out.One = bitvec.New(1, 1)
	}
	if lhs.UMin().Ucmp(rhs.UMax()) > 0 {
		out.Zero = bitvec.New(1, 1)
	}
	return out
}

// Slt compares the signed envelopes, pessimizing an unknown sign bit.
func Slt(lhs, rhs KnownBits) KnownBits {
	out := Unknown(1)
	if lhs.SMax().Scmp(rhs.SMin()) < 0 {
		out.One = bitvec.New(1, 1)
	}
	if lhs.SMin().Scmp(rhs.SMax()) >= 0 {
		out.Zero = bitvec.New(1, 1)
	}
	return out
}

// Sle is Slt with non-strict bounds.
func Sle(lhs, rhs KnownBits) KnownBits {
	out := Unknown(1)
	if lhs.SMax().Scmp(rhs.SMin()) <= 0 {
		out.One = bitvec.New(1, 1)
	}
	if lhs.SMin().Scmp(rhs.SMax()) > 0 {
		out.Zero = bitvec.New(1, 1)
	}
	return out
}
