package dataflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pranavk/souper/pkg/bitvec"
	"github.com/pranavk/souper/pkg/inst"
	"github.com/pranavk/souper/pkg/interp"
)

func emptyCI() *interp.ConcreteInterpreter {
	return interp.New(nil, interp.ValueCache{})
}

func TestKnownBitsConst(t *testing.T) {
	ic := inst.NewContext()
	i1 := ic.GetConst(bitvec.New(64, 5))

	kb := NewKnownBitsAnalysis().FindKnownBits(i1, emptyCI(), true)
	require.Equal(t, uint64(5), kb.One.Uint64())
	require.True(t, kb.Zero.Eq(bitvec.New(64, 5).Not()))
}

func TestKnownBitsMasking(t *testing.T) {
	ic := inst.NewContext()
	v := ic.CreateVar(64, "x")

	and := ic.GetInst(inst.And, 64, []*inst.Inst{v, ic.GetConst(bitvec.New(64, 0xFF))})
	kb := NewKnownBitsAnalysis().FindKnownBits(and, emptyCI(), false)
	require.Equal(t, uint64(0), kb.One.Uint64())
	require.True(t, kb.Zero.Eq(bitvec.New(64, 0xFF).Not()))

	or := ic.GetInst(inst.Or, 64, []*inst.Inst{v, ic.GetConst(bitvec.New(64, 5))})
	kb = NewKnownBitsAnalysis().FindKnownBits(or, emptyCI(), false)
	require.Equal(t, uint64(5), kb.One.Uint64())
	require.True(t, kb.Zero.IsZero())

	shl := ic.GetInst(inst.Shl, 64, []*inst.Inst{v, ic.GetConst(bitvec.New(64, 5))})
	kb = NewKnownBitsAnalysis().FindKnownBits(shl, emptyCI(), false)
	require.Equal(t, uint64(31), kb.Zero.Uint64())
	require.True(t, kb.One.IsZero())
}

func TestConstantRangeScenarios(t *testing.T) {
	ic := inst.NewContext()
	five := ic.GetConst(bitvec.New(64, 5))

	cr := NewConstantRangeAnalysis().FindConstantRange(five, emptyCI(), false)
	require.Equal(t, uint64(5), cr.Lower().Uint64())
	require.Equal(t, uint64(6), cr.Upper().Uint64())

	v := ic.CreateVar(64, "x")
	and := ic.GetInst(inst.And, 64, []*inst.Inst{v, ic.GetConst(bitvec.New(64, 0xFF))})
	cr = NewConstantRangeAnalysis().FindConstantRange(and, emptyCI(), false)
	require.Equal(t, uint64(0), cr.Lower().Uint64())
	require.Equal(t, uint64(0x100), cr.Upper().Uint64())

	add := ic.GetInst(inst.Add, 64, []*inst.Inst{and, five})
	cr = NewConstantRangeAnalysis().FindConstantRange(add, emptyCI(), false)
	require.Equal(t, uint64(5), cr.Lower().Uint64())
	require.Equal(t, uint64(0x105), cr.Upper().Uint64())
}

func TestCacheIdempotent(t *testing.T) {
	ic := inst.NewContext()
	v := ic.CreateVar(32, "x")
	expr := ic.GetInst(inst.Mul, 32, []*inst.Inst{
		ic.GetInst(inst.Add, 32, []*inst.Inst{v, ic.GetConst(bitvec.New(32, 3))}),
		ic.GetInst(inst.Add, 32, []*inst.Inst{v, ic.GetConst(bitvec.New(32, 3))}),
	})

	ka := NewKnownBitsAnalysis()
	ci := emptyCI()
	first := ka.FindKnownBits(expr, ci, true)
	second := ka.FindKnownBits(expr, ci, true)
	require.True(t, first.Eq(second))

	ca := NewConstantRangeAnalysis()
	r1 := ca.FindConstantRange(expr, ci, true)
	r2 := ca.FindConstantRange(expr, ci, true)
	require.True(t, r1.Eq(r2))
}

func TestConcreteAgreement(t *testing.T) {
	ic := inst.NewContext()
	x := ic.CreateVar(16, "x")
	y := ic.CreateVar(16, "y")
	expr := ic.GetInst(inst.Xor, 16, []*inst.Inst{
		ic.GetInst(inst.Add, 16, []*inst.Inst{x, y}),
		ic.GetInst(inst.Shl, 16, []*inst.Inst{x, ic.GetConst(bitvec.New(16, 3))}),
	})

	vars := interp.ValueCache{
		x: interp.Value(bitvec.New(16, 0x1234)),
		y: interp.Value(bitvec.New(16, 0x0F0F)),
	}
	ci := interp.New(expr, vars)
	want := ci.Evaluate(expr)
	require.True(t, want.HasValue())

	kb := NewKnownBitsAnalysis().FindKnownBits(expr, ci, true)
	require.True(t, kb.IsConstant())
	require.True(t, kb.One.Eq(want.Get()))
	require.True(t, kb.Zero.Eq(want.Get().Not()))
}

func TestPartialEvalCoarsens(t *testing.T) {
	// Disabling partial evaluation must stay sound: equal or coarser.
	ic := inst.NewContext()
	x := ic.CreateVar(8, "x")
	expr := ic.GetInst(inst.Mul, 8, []*inst.Inst{x, x})

	vars := interp.ValueCache{x: interp.Value(bitvec.New(8, 3))}
	ci := interp.New(expr, vars)

	precise := NewKnownBitsAnalysis().FindKnownBits(expr, ci, true)
	coarse := NewKnownBitsAnalysis().FindKnownBits(expr, interp.New(expr, vars), false)

	require.True(t, precise.IsConstant())
	require.Equal(t, uint64(9), precise.Constant().Uint64())
	// Everything the coarse result claims, the precise one also claims.
	require.True(t, precise.Zero.And(coarse.Zero).Eq(coarse.Zero))
	require.True(t, precise.One.And(coarse.One).Eq(coarse.One))
}

func TestIsConcrete(t *testing.T) {
	ic := inst.NewContext()
	v := ic.CreateVar(8, "x")
	rc := ic.CreateReservedConst(8)
	hole := ic.CreateReservedInst(8)

	withConst := ic.GetInst(inst.Add, 8, []*inst.Inst{v, rc})
	withHole := ic.GetInst(inst.Add, 8, []*inst.Inst{v, hole})
	clean := ic.GetInst(inst.Add, 8, []*inst.Inst{v, v})

	require.True(t, IsConcrete(clean, true, true))
	require.False(t, IsConcrete(withConst, true, true))
	require.True(t, IsConcrete(withConst, false, true))
	require.False(t, IsConcrete(withHole, true, true))
	require.True(t, IsConcrete(withHole, true, false))
}

func TestReservedLeafAbstractions(t *testing.T) {
	ic := inst.NewContext()
	rc := ic.CreateReservedConst(8)
	hole := ic.CreateReservedInst(8)

	cr := NewConstantRangeAnalysis().FindConstantRange(rc, emptyCI(), true)
	require.False(t, cr.Contains(bitvec.Zero(8)))
	require.True(t, cr.Contains(bitvec.New(8, 1)))

	kb := NewKnownBitsAnalysis().FindKnownBits(hole, emptyCI(), true)
	require.Equal(t, 0, kb.KnownCount())

	// Shifting by a reserved constant clears at least one low bit even
	// though the general rule knows nothing.
	shl := ic.GetInst(inst.Shl, 8, []*inst.Inst{hole, rc})
	kb = NewKnownBitsAnalysis().FindKnownBits(shl, emptyCI(), true)
	require.Equal(t, uint64(1), kb.Zero.Uint64())

	lshr := ic.GetInst(inst.LShr, 8, []*inst.Inst{hole, rc})
	kb = NewKnownBitsAnalysis().FindKnownBits(lshr, emptyCI(), true)
	require.Equal(t, uint64(0x80), kb.Zero.Uint64())

	// A reserved constant compared against known zero is never equal.
	zero := ic.GetConst(bitvec.Zero(8))
	eq := ic.GetInst(inst.Eq, 1, []*inst.Inst{rc, zero})
	kb = NewKnownBitsAnalysis().FindKnownBits(eq, emptyCI(), true)
	require.Equal(t, uint64(1), kb.Zero.Uint64())
}

func TestPhiMergesAndReturns(t *testing.T) {
	ic := inst.NewContext()
	a := ic.GetConst(bitvec.New(8, 0b1010))
	b := ic.GetConst(bitvec.New(8, 0b1001))
	phi := ic.GetInst(inst.Phi, 8, []*inst.Inst{a, b})

	kb := NewKnownBitsAnalysis().FindKnownBits(phi, emptyCI(), false)
	require.Equal(t, uint64(0b1000), kb.One.Uint64())
	require.Equal(t, uint64(0b11110100), kb.Zero.Uint64())

	cr := NewConstantRangeAnalysis().FindConstantRange(phi, emptyCI(), false)
	require.True(t, cr.Contains(bitvec.New(8, 0b1010)))
	require.True(t, cr.Contains(bitvec.New(8, 0b1001)))

	sel := ic.GetInst(inst.Select, 8, []*inst.Inst{ic.CreateVar(1, "c"), a, b})
	kb = NewKnownBitsAnalysis().FindKnownBits(sel, emptyCI(), false)
	require.Equal(t, uint64(0b1000), kb.One.Uint64())
}
