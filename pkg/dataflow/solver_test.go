package dataflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pranavk/souper/pkg/bitvec"
	"github.com/pranavk/souper/pkg/inst"
	"github.com/pranavk/souper/pkg/interp"
)

// enumSolver decides satisfiability by enumerating every assignment of the
// condition's free variables. Only viable at tiny widths, which is exactly
// what the tests use.
type enumSolver struct{}

func (enumSolver) IsSatisfiable(cond *inst.Inst, modelVars []*inst.Inst, timeout time.Duration) (bool, []bitvec.Vector, error) {
	vars := inst.Vars(cond)
	binding := make(interp.ValueCache, len(vars))

	var rec func(idx int) bool
	rec = func(idx int) bool {
		if idx == len(vars) {
			ci := interp.New(cond, binding)
			v := ci.Evaluate(cond)
			return v.HasValue() && !v.Get().IsZero()
		}
		v := vars[idx]
		for x := uint64(0); x < 1<<uint(v.Width); x++ {
			binding[v] = interp.Value(bitvec.New(v.Width, x))
			if rec(idx + 1) {
				return true
			}
		}
		return false
	}
	return rec(0), nil, nil
}

func TestFindKnownBitsUsingSolver(t *testing.T) {
	ic := inst.NewContext()
	x := ic.CreateVar(4, "x")
	expr := ic.GetInst(inst.Or, 4, []*inst.Inst{x, ic.GetConst(bitvec.New(4, 0b0101))})

	kb, err := FindKnownBitsUsingSolver(ic, expr, enumSolver{}, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(0b0101), kb.One.Uint64())
	require.True(t, kb.Zero.IsZero())
}

func TestFindKnownBitsUsingSolverWithPCs(t *testing.T) {
	ic := inst.NewContext()
	x := ic.CreateVar(4, "x")
	expr := ic.GetInst(inst.Or, 4, []*inst.Inst{x, ic.GetConst(bitvec.New(4, 0b0101))})

	// Under the path condition x == 0b0011 the value is fully pinned.
	pcs := []inst.Mapping{{LHS: x, RHS: ic.GetConst(bitvec.New(4, 0b0011))}}
	kb, err := FindKnownBitsUsingSolver(ic, expr, enumSolver{}, pcs)
	require.NoError(t, err)
	require.True(t, kb.IsConstant())
	require.Equal(t, uint64(0b0111), kb.Constant().Uint64())
}
