package dataflow

import (
	"github.com/pranavk/souper/pkg/bitvec"
	"github.com/pranavk/souper/pkg/crange"
	"github.com/pranavk/souper/pkg/inst"
	"github.com/pranavk/souper/pkg/interp"
)

// ConstantRangeAnalysis evaluates the ConstantRange domain over a DAG, with
// the same cache discipline as KnownBitsAnalysis.
type ConstantRangeAnalysis struct {
	cache map[*inst.Inst]crange.Range
}

// NewConstantRangeAnalysis returns an analysis with an empty cache.
func NewConstantRangeAnalysis() *ConstantRangeAnalysis {
	return &ConstantRangeAnalysis{cache: make(map[*inst.Inst]crange.Range)}
}

// FindConstantRange returns a sound range abstraction of i under the
// interpreter's row bindings.
func (ca *ConstantRangeAnalysis) FindConstantRange(i *inst.Inst, ci *interp.ConcreteInterpreter, partialEval bool) crange.Range {
	if cr, ok := ca.cache[i]; ok {
		return cr
	}

	if partialEval && IsConcrete(i, true, true) {
		if rootVal := ci.Evaluate(i); rootVal.HasValue() {
			cr := crange.FromConst(rootVal.Get())
			ca.cache[i] = cr
			return cr
		}
	}

	cr := ca.transfer(i, ci, partialEval)
	ca.cache[i] = cr
	return cr
}

func (ca *ConstantRangeAnalysis) transfer(i *inst.Inst, ci *interp.ConcreteInterpreter, partialEval bool) crange.Range {
	op := func(n int) crange.Range {
		return ca.FindConstantRange(i.Ops[n], ci, partialEval)
	}

	switch i.K {
	case inst.Const, inst.Var, inst.ReservedConst:
		if v := getValue(i, ci, partialEval); v.HasValue() {
			return crange.FromConst(v.Get())
		}
		if inst.IsReservedConst(i) {
			// Reserved constants are nonzero by construction.
			return crange.FromConst(bitvec.Zero(i.Width)).Inverse()
		}
		return crange.Full(i.Width)
	case inst.Trunc:
		return op(0).Truncate(i.Width)
	case inst.SExt:
		return op(0).SignExtend(i.Width)
	case inst.ZExt:
		return op(0).ZeroExtend(i.Width)
	case inst.Add, inst.AddNUW, inst.AddNW:
		return op(0).Add(op(1))
	case inst.AddNSW:
		// The no-wrap rule needs a concrete addend.
		if v := getValue(i.Ops[1], ci, partialEval); v.HasValue() {
			return op(0).AddWithNoSignedWrap(v.Get())
		}
		return crange.Full(i.Width)
	case inst.Sub, inst.SubNSW, inst.SubNUW, inst.SubNW:
		return op(0).Sub(op(1))
	case inst.Mul, inst.MulNSW, inst.MulNUW, inst.MulNW:
		return op(0).Multiply(op(1))
	case inst.And:
		return andRange(op(0), op(1), i.Width)
	case inst.Or:
		return orRange(op(0), op(1), i.Width)
	case inst.Shl, inst.ShlNSW, inst.ShlNUW, inst.ShlNW:
		return op(0).Shl(op(1))
	case inst.AShr:
		return op(0).AShr(op(1))
	case inst.LShr:
		return op(0).LShr(op(1))
	case inst.UDiv:
		return op(0).UDiv(op(1))
	case inst.Ctlz, inst.Cttz:
		// The count is at most the operand width; a reserved-const
		// operand is nonzero, which caps it one lower.
		upper := uint64(i.Ops[0].Width + 1)
		if inst.IsReservedConst(i.Ops[0]) {
			upper = uint64(i.Ops[0].Width)
		}
		return crange.NonEmpty(bitvec.Zero(i.Width), bitvec.New(i.Width, upper))
	case inst.CtPop:
		lower := uint64(0)
		if inst.IsReservedConst(i.Ops[0]) {
			lower = 1
		}
		return crange.NonEmpty(bitvec.New(i.Width, lower), bitvec.New(i.Width, uint64(i.Ops[0].Width+1)))
	case inst.Phi:
		out := op(0)
		for n := 1; n < len(i.Ops); n++ {
			out = out.UnionWith(op(n))
		}
		return out
	case inst.Select:
		return op(1).UnionWith(op(2))
	}

	return crange.Full(i.Width)
}

// andRange is the range rule for bitwise and: the result never exceeds
// either operand, and a shared leading-ones prefix of the lower bounds
// survives into the result's lower bound.
func andRange(a, b crange.Range, w int) crange.Range {
	if a.IsEmptySet() || b.IsEmptySet() {
		return crange.Empty(w)
	}

	umin := a.UnsignedMax()
	if b.UnsignedMax().Ucmp(umin) < 0 {
		umin = b.UnsignedMax()
	}
	if umin.IsAllOnes() {
		return crange.Full(w)
	}

	res := bitvec.Zero(w)
	upper1, upper2 := a.UnsignedMax(), b.UnsignedMax()
	lower1, lower2 := a.UnsignedMin(), b.UnsignedMin()
	tmp := lower1.And(lower2)
	bitPos := w - tmp.LeadingZeros()
	// The lower bounds share a set bit at bitPos-1 that neither range can
	// clear: it survives only if every value between the bound and its
	// upper limit keeps the bit, i.e. no zeros sit between the bit and
	// either barrier.
	if !a.IsUpperWrapped() && !b.IsUpperWrapped() &&
		lower1.LeadingZeros() == upper1.LeadingZeros() &&
		lower2.LeadingZeros() == upper2.LeadingZeros() &&
		bitPos > 0 {
		l1 := lower1.LShr(bitPos - 1)
		l2 := lower2.LShr(bitPos - 1)
		if l1.TrailingOnes() == w-l1.LeadingZeros() &&
			l2.TrailingOnes() == w-l2.LeadingZeros() {
			res = bitvec.OneBit(w, bitPos-1)
		}
	}

	return crange.NonEmpty(res, umin.Add(bitvec.New(w, 1)))
}

// orRange is the range rule for bitwise or: the result is at least the
// larger lower bound and at most the all-ones envelope of the upper bounds.
func orRange(a, b crange.Range, w int) crange.Range {
	if a.IsEmptySet() || b.IsEmptySet() {
		return crange.Empty(w)
	}

	umax := a.UnsignedMin()
	if b.UnsignedMin().Ucmp(umax) > 0 {
		umax = b.UnsignedMin()
	}

	res := bitvec.Zero(w)
	if !a.IsUpperWrapped() && !b.IsUpperWrapped() {
		upperMax, upperMin := a.UnsignedMax(), b.UnsignedMax()
		if upperMin.Ucmp(upperMax) > 0 {
			upperMax, upperMin = upperMin, upperMax
		}
		res = bitvec.LowOnes(w, w-upperMin.LeadingZeros())
		res = res.Or(upperMax)
		res = res.Add(bitvec.New(w, 1))
	}

	if umax.Eq(res) {
		return crange.Full(w)
	}
	return crange.New(umax, res)
}
