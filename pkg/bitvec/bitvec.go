// Package bitvec implements fixed-width bit-vectors of arbitrary width.
//
// A Vector is an unsigned integer reduced modulo 2^w together with its
// width w. All arithmetic wraps modulo 2^w; signed operations reinterpret
// the top bit as a sign. Vectors are immutable: every operation returns a
// fresh value and never aliases the receiver's storage.
package bitvec

import (
	"fmt"
	"math/big"
)

// Vector is a width-tagged bit-vector. The zero value is invalid; use the
// constructors.
type Vector struct {
	width int
	v     *big.Int // invariant: 0 <= v < 2^width
}

// New returns a width-bit vector holding val reduced modulo 2^width.
func New(width int, val uint64) Vector {
	if width < 1 {
		panic(fmt.Sprintf("bitvec: invalid width %d", width))
	}
	return reduce(width, new(big.Int).SetUint64(val))
}

// NewSigned returns a width-bit vector holding the two's complement
// encoding of val.
func NewSigned(width int, val int64) Vector {
	if width < 1 {
		panic(fmt.Sprintf("bitvec: invalid width %d", width))
	}
	return reduce(width, big.NewInt(val))
}

// FromBig returns a width-bit vector holding val reduced modulo 2^width.
// Negative values are interpreted in two's complement.
func FromBig(width int, val *big.Int) Vector {
	if width < 1 {
		panic(fmt.Sprintf("bitvec: invalid width %d", width))
	}
	return reduce(width, new(big.Int).Set(val))
}

// Zero returns the all-zero vector of the given width.
func Zero(width int) Vector { return New(width, 0) }

// AllOnes returns the all-ones vector of the given width (unsigned max, -1).
func AllOnes(width int) Vector {
	return reduce(width, new(big.Int).Sub(pow2(width), big.NewInt(1)))
}

// OneBit returns a vector with only bit i set.
func OneBit(width, i int) Vector {
	if i < 0 || i >= width {
		panic(fmt.Sprintf("bitvec: bit %d out of range for width %d", i, width))
	}
	return Vector{width, new(big.Int).Lsh(big.NewInt(1), uint(i))}
}

// LowOnes returns a vector with the n lowest bits set.
func LowOnes(width, n int) Vector {
	n = clamp(n, 0, width)
	return Vector{width, new(big.Int).Sub(pow2(n), big.NewInt(1))}
}

// HighOnes returns a vector with the n highest bits set.
func HighOnes(width, n int) Vector {
	n = clamp(n, 0, width)
	low := new(big.Int).Sub(pow2(n), big.NewInt(1))
	return Vector{width, low.Lsh(low, uint(width-n))}
}

// MaxSigned returns the largest signed value of the given width (011...1).
func MaxSigned(width int) Vector { return LowOnes(width, width-1) }

// MinSigned returns the smallest signed value of the given width (100...0).
func MinSigned(width int) Vector { return OneBit(width, width-1) }

func reduce(width int, v *big.Int) Vector {
	mask := new(big.Int).Sub(pow2(width), big.NewInt(1))
	return Vector{width, v.And(v, mask)}
}

func pow2(n int) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(n))
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// Width returns the vector's width in bits.
func (x Vector) Width() int { return x.width }

// Big returns a copy of the unsigned value.
func (x Vector) Big() *big.Int { return new(big.Int).Set(x.v) }

// SignedBig returns a copy of the value under two's complement
// interpretation: negative when the top bit is set.
func (x Vector) SignedBig() *big.Int {
	if x.IsNegative() {
		return new(big.Int).Sub(x.v, pow2(x.width))
	}
	return new(big.Int).Set(x.v)
}

// Uint64 returns the value clamped to the uint64 range: values that do not
// fit report math.MaxUint64.
func (x Vector) Uint64() uint64 {
	if x.v.IsUint64() {
		return x.v.Uint64()
	}
	return ^uint64(0)
}

// Bit returns bit i (0 = least significant).
func (x Vector) Bit(i int) uint {
	if i < 0 || i >= x.width {
		panic(fmt.Sprintf("bitvec: bit %d out of range for width %d", i, x.width))
	}
	return x.v.Bit(i)
}

// IsZero reports whether the value is 0.
func (x Vector) IsZero() bool { return x.v.Sign() == 0 }

// IsAllOnes reports whether every bit is set.
func (x Vector) IsAllOnes() bool {
	return x.v.BitLen() == x.width && x.TrailingOnes() == x.width
}

// IsNegative reports whether the sign bit is set.
func (x Vector) IsNegative() bool { return x.v.Bit(x.width-1) == 1 }

// IsPowerOfTwo reports whether exactly one bit is set.
func (x Vector) IsPowerOfTwo() bool {
	return x.v.Sign() != 0 && x.PopCount() == 1
}

// Eq reports whether x and y have the same width and value.
func (x Vector) Eq(y Vector) bool {
	return x.width == y.width && x.v.Cmp(y.v) == 0
}

// Ucmp compares unsigned: -1, 0, or +1.
func (x Vector) Ucmp(y Vector) int {
	x.check(y)
	return x.v.Cmp(y.v)
}

// Scmp compares signed: -1, 0, or +1.
func (x Vector) Scmp(y Vector) int {
	x.check(y)
	return x.SignedBig().Cmp(y.SignedBig())
}

func (x Vector) check(y Vector) {
	if x.width != y.width {
		panic(fmt.Sprintf("bitvec: width mismatch %d vs %d", x.width, y.width))
	}
}

// Add returns x + y mod 2^w.
func (x Vector) Add(y Vector) Vector {
	x.check(y)
	return reduce(x.width, new(big.Int).Add(x.v, y.v))
}

// Sub returns x - y mod 2^w.
func (x Vector) Sub(y Vector) Vector {
	x.check(y)
	return reduce(x.width, new(big.Int).Sub(x.v, y.v))
}

// Mul returns x * y mod 2^w.
func (x Vector) Mul(y Vector) Vector {
	x.check(y)
	return reduce(x.width, new(big.Int).Mul(x.v, y.v))
}

// UDiv returns the unsigned quotient x / y. Division by zero panics; the
// interpreter screens it out as poison first.
func (x Vector) UDiv(y Vector) Vector {
	x.check(y)
	return Vector{x.width, new(big.Int).Quo(x.v, y.v)}
}

// URem returns the unsigned remainder x % y. Division by zero panics.
func (x Vector) URem(y Vector) Vector {
	x.check(y)
	return Vector{x.width, new(big.Int).Rem(x.v, y.v)}
}

// SDiv returns the signed quotient, truncating toward zero.
func (x Vector) SDiv(y Vector) Vector {
	x.check(y)
	return reduce(x.width, new(big.Int).Quo(x.SignedBig(), y.SignedBig()))
}

// SRem returns the signed remainder; the result has the sign of the dividend.
func (x Vector) SRem(y Vector) Vector {
	x.check(y)
	return reduce(x.width, new(big.Int).Rem(x.SignedBig(), y.SignedBig()))
}

// Neg returns -x mod 2^w.
func (x Vector) Neg() Vector {
	return reduce(x.width, new(big.Int).Neg(x.v))
}

// Not returns the bitwise complement.
func (x Vector) Not() Vector {
	return x.Xor(AllOnes(x.width))
}

// And returns x & y.
func (x Vector) And(y Vector) Vector {
	x.check(y)
	return Vector{x.width, new(big.Int).And(x.v, y.v)}
}

// Or returns x | y.
func (x Vector) Or(y Vector) Vector {
	x.check(y)
	return Vector{x.width, new(big.Int).Or(x.v, y.v)}
}

// Xor returns x ^ y.
func (x Vector) Xor(y Vector) Vector {
	x.check(y)
	return Vector{x.width, new(big.Int).Xor(x.v, y.v)}
}

// Shl returns x << n. Shifting by n >= w yields zero.
func (x Vector) Shl(n int) Vector {
	if n < 0 {
		panic("bitvec: negative shift")
	}
	if n >= x.width {
		return Zero(x.width)
	}
	return reduce(x.width, new(big.Int).Lsh(x.v, uint(n)))
}

// LShr returns the logical right shift x >> n. Shifting by n >= w yields zero.
func (x Vector) LShr(n int) Vector {
	if n < 0 {
		panic("bitvec: negative shift")
	}
	if n >= x.width {
		return Zero(x.width)
	}
	return Vector{x.width, new(big.Int).Rsh(x.v, uint(n))}
}

// AShr returns the arithmetic right shift: the sign bit fills vacated
// positions. Shifting by n >= w saturates to all-zeros or all-ones.
func (x Vector) AShr(n int) Vector {
	if n < 0 {
		panic("bitvec: negative shift")
	}
	if n >= x.width {
		n = x.width - 1
	}
	s := new(big.Int).Rsh(x.SignedBig(), uint(n))
	return reduce(x.width, s)
}

// Trunc drops the high bits, returning a newWidth-bit vector.
func (x Vector) Trunc(newWidth int) Vector {
	if newWidth > x.width {
		panic(fmt.Sprintf("bitvec: trunc %d -> %d grows", x.width, newWidth))
	}
	return reduce(newWidth, new(big.Int).Set(x.v))
}

// ZExt widens with zero fill.
func (x Vector) ZExt(newWidth int) Vector {
	if newWidth < x.width {
		panic(fmt.Sprintf("bitvec: zext %d -> %d shrinks", x.width, newWidth))
	}
	return Vector{newWidth, new(big.Int).Set(x.v)}
}

// SExt widens replicating the sign bit.
func (x Vector) SExt(newWidth int) Vector {
	if newWidth < x.width {
		panic(fmt.Sprintf("bitvec: sext %d -> %d shrinks", x.width, newWidth))
	}
	return reduce(newWidth, x.SignedBig())
}

// PopCount returns the number of set bits.
func (x Vector) PopCount() int {
	n := 0
	for _, w := range x.v.Bits() {
		for ; w != 0; w &= w - 1 {
			n++
		}
	}
	return n
}

// LeadingZeros returns the number of zero bits above the highest set bit.
func (x Vector) LeadingZeros() int { return x.width - x.v.BitLen() }

// TrailingZeros returns the number of zero bits below the lowest set bit,
// or the width for the zero vector.
func (x Vector) TrailingZeros() int {
	if x.v.Sign() == 0 {
		return x.width
	}
	n := 0
	for x.v.Bit(n) == 0 {
		n++
	}
	return n
}

// LeadingOnes returns the number of consecutive set bits starting at the
// top of the vector.
func (x Vector) LeadingOnes() int {
	n := 0
	for n < x.width && x.v.Bit(x.width-1-n) == 1 {
		n++
	}
	return n
}

// TrailingOnes returns the number of consecutive set bits starting at bit 0.
func (x Vector) TrailingOnes() int {
	n := 0
	for n < x.width && x.v.Bit(n) == 1 {
		n++
	}
	return n
}

// ByteSwap reverses byte order. The width must be a multiple of 8.
func (x Vector) ByteSwap() Vector {
	if x.width%8 != 0 {
		panic(fmt.Sprintf("bitvec: byteswap on width %d", x.width))
	}
	r := new(big.Int)
	bytes := x.width / 8
	for i := 0; i < bytes; i++ {
		b := new(big.Int).Rsh(x.v, uint(8*i))
		b.And(b, big.NewInt(0xFF))
		r.Or(r, b.Lsh(b, uint(8*(bytes-1-i))))
	}
	return Vector{x.width, r}
}

// ReverseBits reverses bit order.
func (x Vector) ReverseBits() Vector {
	r := new(big.Int)
	for i := 0; i < x.width; i++ {
		if x.v.Bit(i) == 1 {
			r.SetBit(r, x.width-1-i, 1)
		}
	}
	return Vector{x.width, r}
}

// String renders the value in decimal with a width tag, e.g. "42:i8".
func (x Vector) String() string {
	return fmt.Sprintf("%s:i%d", x.v.String(), x.width)
}

// BitString renders the raw bits, most significant first.
func (x Vector) BitString() string {
	b := make([]byte, x.width)
	for i := 0; i < x.width; i++ {
		if x.v.Bit(x.width-1-i) == 1 {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	}
	return string(b)
}
