// Package dataflow folds the abstract domains over expression DAGs: a
// memoized bottom-up evaluator per domain, with partial concrete evaluation
// for fully-concrete subgraphs and structural refinements for reserved
// leaves.
package dataflow

import (
	"fmt"

	"github.com/pranavk/souper/pkg/inst"
	"github.com/pranavk/souper/pkg/interp"
)

// IsConcrete reports whether the cone of i is free of reserved leaves:
// reserved constants when considerConsts is set, holes when considerHoles
// is set. Free variables do not count; they are concrete once a row binds
// them.
func IsConcrete(i *inst.Inst, considerConsts, considerHoles bool) bool {
	return !inst.HasKind(i, func(n *inst.Inst) bool {
		if considerConsts && inst.IsReservedConst(n) {
			return true
		}
		if considerHoles && inst.IsReservedInst(n) {
			return true
		}
		return false
	})
}

// getValue evaluates i concretely when that is allowed: constants always,
// anything concrete when partial evaluation is on.
func getValue(i *inst.Inst, ci *interp.ConcreteInterpreter, partialEval bool) interp.EvalValue {
	if i.K == inst.Const {
		return interp.Value(i.Val)
	}
	if partialEval && IsConcrete(i, true, true) {
		return ci.Evaluate(i)
	}
	return interp.None()
}

func analysisBug(format string, args ...any) {
	panic(fmt.Sprintf("dataflow: analysis bug: "+format, args...))
}
