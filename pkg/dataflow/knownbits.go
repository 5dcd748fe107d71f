package dataflow

import (
	"math/bits"

	"github.com/pranavk/souper/pkg/bitvec"
	"github.com/pranavk/souper/pkg/inst"
	"github.com/pranavk/souper/pkg/interp"
	"github.com/pranavk/souper/pkg/known"
)

// KnownBitsAnalysis evaluates the KnownBits domain over a DAG. The cache is
// keyed by node identity and lives as long as the analysis value, so one
// analysis instance must only see nodes from one context under one set of
// row bindings.
type KnownBitsAnalysis struct {
	cache map[*inst.Inst]known.KnownBits
}

// NewKnownBitsAnalysis returns an analysis with an empty cache.
func NewKnownBitsAnalysis() *KnownBitsAnalysis {
	return &KnownBitsAnalysis{cache: make(map[*inst.Inst]known.KnownBits)}
}

// KnownBitsString renders kb most-significant bit first with '0', '1', '?'.
func KnownBitsString(kb known.KnownBits) string { return kb.String() }

// FindKnownBits returns a sound KnownBits abstraction of i under the
// interpreter's row bindings. With partialEval, fully-concrete subgraphs
// are evaluated concretely and enter the analysis as constants.
func (ka *KnownBitsAnalysis) FindKnownBits(i *inst.Inst, ci *interp.ConcreteInterpreter, partialEval bool) known.KnownBits {
	if kb, ok := ka.cache[i]; ok {
		return kb
	}

	if rootVal := getValue(i, ci, partialEval); rootVal.HasValue() {
		kb := known.FromConst(rootVal.Get())
		ka.cache[i] = kb
		return kb
	}

	for _, op := range i.Ops {
		if ka.FindKnownBits(op, ci, partialEval).HasConflict() {
			analysisBug("conflict KnownBits for %s operand", inst.KindName(i.K))
		}
	}

	kb := ka.transfer(i, ci, partialEval)
	if kb.HasConflict() {
		analysisBug("conflict KnownBits from %s transfer", inst.KindName(i.K))
	}
	ka.cache[i] = kb
	return kb
}

func (ka *KnownBitsAnalysis) transfer(i *inst.Inst, ci *interp.ConcreteInterpreter, partialEval bool) known.KnownBits {
	op := func(n int) known.KnownBits {
		return ka.FindKnownBits(i.Ops[n], ci, partialEval)
	}

	switch i.K {
	case inst.Phi:
		vec := make([]known.KnownBits, len(i.Ops))
		for n := range i.Ops {
			vec[n] = op(n)
		}
		return known.Merge(vec)
	case inst.Add, inst.AddNUW, inst.AddNW:
		return known.Add(op(0), op(1))
	case inst.AddNSW:
		return known.AddNSW(op(0), op(1))
	case inst.Sub, inst.SubNUW, inst.SubNW:
		return known.Sub(op(0), op(1))
	case inst.SubNSW:
		return known.SubNSW(op(0), op(1))
	case inst.Mul:
		return known.Mul(op(0), op(1))
	case inst.UDiv:
		return known.UDiv(op(0), op(1))
	case inst.URem:
		return known.URem(op(0), op(1))
	case inst.And:
		return known.And(op(0), op(1))
	case inst.Or:
		return known.Or(op(0), op(1))
	case inst.Xor:
		return known.Xor(op(0), op(1))
	case inst.Shl, inst.ShlNSW, inst.ShlNUW, inst.ShlNW:
		// A reserved-const shift amount is nonzero, so at least one low
		// bit clears. The general transfer function cannot see that, so
		// combine both and keep the sharper one.
		refined := known.Unknown(i.Width)
		if inst.IsReservedConst(i.Ops[1]) {
			refined.Zero = bitvec.LowOnes(i.Width, 1)
		}
		return known.MostPrecise(refined, known.Shl(op(0), op(1)))
	case inst.LShr:
		refined := known.Unknown(i.Width)
		if inst.IsReservedConst(i.Ops[1]) {
			refined.Zero = bitvec.HighOnes(i.Width, 1)
		}
		return known.MostPrecise(refined, known.LShr(op(0), op(1)))
	case inst.AShr:
		refined := known.Unknown(i.Width)
		if inst.IsReservedConst(i.Ops[1]) {
			// A known sign extends across the nonzero shift.
			if op(0).Zero.Bit(i.Width-1) == 1 {
				refined.Zero = bitvec.HighOnes(i.Width, 2)
			}
			if op(0).One.Bit(i.Width-1) == 1 {
				refined.One = bitvec.HighOnes(i.Width, 2)
			}
		}
		return known.MostPrecise(refined, known.AShr(op(0), op(1)))
	case inst.Select:
		return known.Merge([]known.KnownBits{op(1), op(2)})
	case inst.ZExt:
		return op(0).ZExt(i.Width)
	case inst.SExt:
		return op(0).SExt(i.Width)
	case inst.Trunc:
		return op(0).Trunc(i.Width)
	case inst.Eq:
		// A reserved constant is never zero, so comparing one against a
		// known-zero value is settled without the general rule.
		refined := known.Unknown(1)
		var other known.KnownBits
		reserved := false
		if inst.IsReservedConst(i.Ops[0]) {
			reserved, other = true, op(1)
		} else if inst.IsReservedConst(i.Ops[1]) {
			reserved, other = true, op(0)
		}
		if reserved && other.Zero.IsAllOnes() {
			refined.Zero = bitvec.New(1, 1)
		}
		return known.MostPrecise(refined, known.Eq(op(0), op(1)))
	case inst.Ne:
		return known.Ne(op(0), op(1))
	case inst.Ult:
		return known.Ult(op(0), op(1))
	case inst.Ule:
		return known.Ule(op(0), op(1))
	case inst.Slt:
		return known.Slt(op(0), op(1))
	case inst.Sle:
		return known.Sle(op(0), op(1))
	case inst.CtPop:
		out := known.Unknown(i.Width)
		active := bits.Len(uint(op(0).MaxPopulation()))
		out.Zero = bitvec.HighOnes(i.Width, i.Width-active)
		return out
	case inst.BSwap:
		kb := op(0)
		return known.KnownBits{Zero: kb.Zero.ByteSwap(), One: kb.One.ByteSwap()}
	case inst.BitReverse:
		kb := op(0)
		return known.KnownBits{Zero: kb.Zero.ReverseBits(), One: kb.One.ReverseBits()}
	case inst.Cttz:
		out := known.Unknown(i.Width)
		if maxTZ := op(0).MaxTrailingZeros(); maxTZ > 0 {
			out.Zero = bitvec.HighOnes(i.Width, i.Width-bits.Len(uint(maxTZ)))
		}
		return out
	case inst.Ctlz:
		out := known.Unknown(i.Width)
		if maxLZ := op(0).MaxLeadingZeros(); maxLZ > 0 {
			out.Zero = bitvec.HighOnes(i.Width, i.Width-bits.Len(uint(maxLZ)))
		}
		return out
	}

	// Var, reserved leaves, and operators without a transfer function.
	return known.Unknown(i.Width)
}
