package dataflow

import (
	"time"

	"github.com/pranavk/souper/pkg/bitvec"
	"github.com/pranavk/souper/pkg/inst"
	"github.com/pranavk/souper/pkg/known"
)

// Solver decides satisfiability of one-bit conditions over expression DAGs.
// Implementations live outside this core (pkg/solver wires Z3); consumers
// only rely on this interface.
type Solver interface {
	// IsSatisfiable reports whether cond, a 1-bit expression, can
	// evaluate to 1 for some assignment of its free variables. When
	// satisfiable and modelVars is non-empty, the returned models hold
	// one witness value per requested variable.
	IsSatisfiable(cond *inst.Inst, modelVars []*inst.Inst, timeout time.Duration) (bool, []bitvec.Vector, error)
}

// SolverTimeout bounds each satisfiability query.
const SolverTimeout = 1000 * time.Millisecond

// FindKnownBitsUsingSolver computes KnownBits for i by satisfiability
// probing: a bit is known when only one of its two values is attainable
// under the path conditions. Expensive and precise; the dataflow evaluator
// is the cheap counterpart.
func FindKnownBitsUsingSolver(ic *inst.Context, i *inst.Inst, s Solver, pcs []inst.Mapping) (known.KnownBits, error) {
	w := i.Width
	kb := known.Unknown(w)

	var pcCond *inst.Inst
	for _, pc := range pcs {
		eq := ic.GetInst(inst.Eq, 1, []*inst.Inst{pc.LHS, pc.RHS})
		if pcCond == nil {
			pcCond = eq
		} else {
			pcCond = ic.GetInst(inst.And, 1, []*inst.Inst{pcCond, eq})
		}
	}
	withPCs := func(cond *inst.Inst) *inst.Inst {
		if pcCond == nil {
			return cond
		}
		return ic.GetInst(inst.And, 1, []*inst.Inst{cond, pcCond})
	}

	zero := ic.GetConst(bitvec.Zero(w))
	for b := 0; b < w; b++ {
		mask := ic.GetConst(bitvec.OneBit(w, b))
		bit := ic.GetInst(inst.And, w, []*inst.Inst{i, mask})

		canBeOne, _, err := s.IsSatisfiable(withPCs(ic.GetInst(inst.Ne, 1, []*inst.Inst{bit, zero})), nil, SolverTimeout)
		if err != nil {
			return kb, err
		}
		canBeZero, _, err := s.IsSatisfiable(withPCs(ic.GetInst(inst.Eq, 1, []*inst.Inst{bit, zero})), nil, SolverTimeout)
		if err != nil {
			return kb, err
		}
		switch {
		case canBeOne && !canBeZero:
			kb.One = kb.One.Or(bitvec.OneBit(w, b))
		case canBeZero && !canBeOne:
			kb.Zero = kb.Zero.Or(bitvec.OneBit(w, b))
		}
	}
	return kb, nil
}
