// Package crange implements the ConstantRange abstract domain: a
// closed-open interval [lo, hi) of fixed-width values under cyclic
// ordering, so the set may wrap through zero.
//
// Canonical form for lo == hi: the empty set is [0, 0) and the full set is
// [allOnes, allOnes); any other equal pair is rejected at construction,
// which keeps every Range unambiguous at rest.
package crange

import (
	"fmt"
	"math/big"

	"github.com/pranavk/souper/pkg/bitvec"
)

// Range is the set { x | lo <= x < hi } under cyclic unsigned ordering.
type Range struct {
	lo bitvec.Vector
	hi bitvec.Vector
}

// Empty returns the empty set of the given width.
func Empty(width int) Range {
	z := bitvec.Zero(width)
	return Range{z, z}
}

// Full returns the full set of the given width.
func Full(width int) Range {
	m := bitvec.AllOnes(width)
	return Range{m, m}
}

// New returns [lo, hi). Equal bounds other than the canonical empty/full
// encodings are an analysis bug.
func New(lo, hi bitvec.Vector) Range {
	if lo.Width() != hi.Width() {
		panic(fmt.Sprintf("crange: width mismatch %d vs %d", lo.Width(), hi.Width()))
	}
	if lo.Eq(hi) && !lo.IsZero() && !lo.IsAllOnes() {
		panic(fmt.Sprintf("crange: ambiguous bounds [%v, %v)", lo, hi))
	}
	return Range{lo, hi}
}

// NonEmpty returns [lo, hi), mapping equal bounds to the full set. This is
// the right constructor when bounds were computed and may have collided.
func NonEmpty(lo, hi bitvec.Vector) Range {
	if lo.Eq(hi) {
		return Full(lo.Width())
	}
	return Range{lo, hi}
}

// FromConst returns the singleton {v}.
func FromConst(v bitvec.Vector) Range {
	return NonEmpty(v, v.Add(bitvec.New(v.Width(), 1)))
}

// Width returns the width in bits.
func (r Range) Width() int { return r.lo.Width() }

// Lower returns the inclusive lower bound.
func (r Range) Lower() bitvec.Vector { return r.lo }

// Upper returns the exclusive upper bound.
func (r Range) Upper() bitvec.Vector { return r.hi }

// IsEmptySet reports whether the set has no elements.
func (r Range) IsEmptySet() bool { return r.lo.Eq(r.hi) && r.lo.IsZero() }

// IsFullSet reports whether the set holds every value.
func (r Range) IsFullSet() bool { return r.lo.Eq(r.hi) && r.lo.IsAllOnes() }

// IsUpperWrapped reports lo > hi: the interval crosses the top of the
// unsigned domain (including [X, 0), which merely touches it).
func (r Range) IsUpperWrapped() bool { return r.lo.Ucmp(r.hi) > 0 }

// IsWrappedSet reports that the set properly wraps through zero.
func (r Range) IsWrappedSet() bool { return r.IsUpperWrapped() && !r.hi.IsZero() }

// IsSignWrappedSet reports that the set wraps through the signed boundary.
func (r Range) IsSignWrappedSet() bool {
	return r.lo.Scmp(r.hi) > 0 && !r.hi.Eq(bitvec.MinSigned(r.Width()))
}

func (r Range) isUpperSignWrapped() bool { return r.lo.Scmp(r.hi) > 0 }

// Size returns the number of elements as a big integer (the full set of
// width w has 2^w).
func (r Range) Size() *big.Int {
	w := r.Width()
	if r.IsEmptySet() {
		return new(big.Int)
	}
	if r.IsFullSet() {
		return new(big.Int).Lsh(big.NewInt(1), uint(w))
	}
	return r.hi.Sub(r.lo).Big()
}

func sizeLess(a, b *big.Int) bool { return a.Cmp(b) < 0 }

// Contains reports whether v is in the set.
func (r Range) Contains(v bitvec.Vector) bool {
	if r.IsEmptySet() {
		return false
	}
	if r.IsFullSet() {
		return true
	}
	if !r.IsUpperWrapped() {
		return r.lo.Ucmp(v) <= 0 && v.Ucmp(r.hi) < 0
	}
	return r.lo.Ucmp(v) <= 0 || v.Ucmp(r.hi) < 0
}

// Eq reports structural equality (canonical forms make this set equality).
func (r Range) Eq(other Range) bool {
	return r.lo.Eq(other.lo) && r.hi.Eq(other.hi)
}

// UnsignedMax returns the largest element. The set must not be empty.
func (r Range) UnsignedMax() bitvec.Vector {
	if r.IsFullSet() || r.IsUpperWrapped() {
		return bitvec.AllOnes(r.Width())
	}
	return r.hi.Sub(bitvec.New(r.Width(), 1))
}

// UnsignedMin returns the smallest element. The set must not be empty.
func (r Range) UnsignedMin() bitvec.Vector {
	if r.IsFullSet() || r.IsWrappedSet() {
		return bitvec.Zero(r.Width())
	}
	return r.lo
}

// SignedMax returns the largest element under signed order.
func (r Range) SignedMax() bitvec.Vector {
	if r.IsFullSet() || r.isUpperSignWrapped() {
		return bitvec.MaxSigned(r.Width())
	}
	return r.hi.Sub(bitvec.New(r.Width(), 1))
}

// SignedMin returns the smallest element under signed order.
func (r Range) SignedMin() bitvec.Vector {
	if r.IsFullSet() || r.IsSignWrappedSet() {
		return bitvec.MinSigned(r.Width())
	}
	return r.lo
}

// Inverse returns the complement set.
func (r Range) Inverse() Range {
	if r.IsEmptySet() {
		return Full(r.Width())
	}
	if r.IsFullSet() {
		return Empty(r.Width())
	}
	return Range{r.hi, r.lo}
}

// offsetOf returns the distance of v above r.lo, in linear coordinates.
func (r Range) offsetOf(v bitvec.Vector) *big.Int {
	return v.Sub(r.lo).Big()
}

// covers reports other ⊆ r using offset arithmetic.
func (r Range) covers(other Range) bool {
	if other.IsEmptySet() {
		return true
	}
	if r.IsFullSet() {
		return true
	}
	if r.IsEmptySet() || other.IsFullSet() {
		return false
	}
	off := r.offsetOf(other.lo)
	off.Add(off, other.Size())
	return off.Cmp(r.Size()) <= 0
}

// UnionWith returns the smallest range containing both sets.
func (r Range) UnionWith(other Range) Range {
	if r.IsEmptySet() {
		return other
	}
	if other.IsEmptySet() {
		return r
	}
	if r.IsFullSet() || other.IsFullSet() {
		return Full(r.Width())
	}
	if r.covers(other) {
		return r
	}
	if other.covers(r) {
		return other
	}

	best := Full(r.Width())
	bestSize := best.Size()
	for _, cand := range []Range{NonEmpty(r.lo, other.hi), NonEmpty(other.lo, r.hi)} {
		if cand.covers(r) && cand.covers(other) && sizeLess(cand.Size(), bestSize) {
			best, bestSize = cand, cand.Size()
		}
	}
	return best
}

// IntersectWith returns the smallest range containing the intersection;
// emptiness is exact, which pruning relies on.
func (r Range) IntersectWith(other Range) Range {
	w := r.Width()
	if r.IsEmptySet() || other.IsEmptySet() {
		return Empty(w)
	}
	if r.IsFullSet() {
		return other
	}
	if other.IsFullSet() {
		return r
	}

	// Work in linear coordinates based at r.lo. r spans [0, sr); other
	// spans [bo, bo+so), possibly split across the modulus.
	mod := new(big.Int).Lsh(big.NewInt(1), uint(w))
	sr := r.Size()
	so := other.Size()
	bo := r.offsetOf(other.lo)

	type seg struct{ start, end *big.Int }
	clip := func(start, end *big.Int) (seg, bool) {
		if start.Sign() < 0 {
			start = new(big.Int)
		}
		if end.Cmp(sr) > 0 {
			end = sr
		}
		if start.Cmp(end) >= 0 {
			return seg{}, false
		}
		return seg{start, end}, true
	}
	boEnd := new(big.Int).Add(bo, so)
	segs := make([]seg, 0, 2)
	if s, ok := clip(bo, boEnd); ok {
		segs = append(segs, s)
	}
	if s, ok := clip(new(big.Int).Sub(bo, mod), new(big.Int).Sub(boEnd, mod)); ok {
		segs = append(segs, s)
	}

	toRange := func(start, end *big.Int) Range {
		lo := r.lo.Add(bitvec.FromBig(w, start))
		hi := r.lo.Add(bitvec.FromBig(w, end))
		return NonEmpty(lo, hi)
	}
	switch len(segs) {
	case 0:
		return Empty(w)
	case 1:
		return toRange(segs[0].start, segs[0].end)
	}
	// Two disjoint pieces: segs[1] is the wrapped-back piece starting at
	// offset 0, segs[0] the straight piece. Pick the smaller enclosing
	// interval.
	hullA := toRange(segs[0].start, segs[1].end) // wraps through r.lo
	hullB := toRange(new(big.Int), segs[0].end)  // straight span
	if sizeLess(hullA.Size(), hullB.Size()) {
		return hullA
	}
	return hullB
}

// String renders "[lo,hi)" with the canonical forms spelled out.
func (r Range) String() string {
	if r.IsEmptySet() {
		return "empty-set"
	}
	if r.IsFullSet() {
		return "full-set"
	}
	return fmt.Sprintf("[%v,%v)", r.lo, r.hi)
}
