// Package solver adapts Z3 to the pruning core's Solver interface by
// lowering expression DAGs to Z3 bit-vector terms. Requires libz3 at build
// and run time.
package solver

import (
	"fmt"
	"time"

	"github.com/ajalab/go-z3/z3"

	"github.com/pranavk/souper/pkg/bitvec"
	"github.com/pranavk/souper/pkg/inst"
)

// Z3 is a dataflow.Solver backed by one Z3 context. Not safe for
// concurrent use; sessions own their solver, like everything else here.
type Z3 struct {
	ctx   *z3.Context
	names int
}

// NewZ3 returns a solver with the given per-query timeout.
func NewZ3(timeout time.Duration) *Z3 {
	cfg := z3.NewContextConfig()
	cfg.SetUint("timeout", uint(timeout.Milliseconds()))
	return &Z3{ctx: z3.NewContext(cfg)}
}

// IsSatisfiable reports whether cond can evaluate to 1. The timeout
// argument is advisory: the context-wide timeout chosen at construction
// bounds the query.
func (s *Z3) IsSatisfiable(cond *inst.Inst, modelVars []*inst.Inst, timeout time.Duration) (bool, []bitvec.Vector, error) {
	if cond.Width != 1 {
		return false, nil, fmt.Errorf("solver: condition must be one bit, got %d", cond.Width)
	}

	lowered := &lowering{s: s, terms: make(map[*inst.Inst]z3.BV), vars: make(map[*inst.Inst]z3.BV)}
	term := lowered.bv(cond)

	slv := z3.NewSolver(s.ctx)
	slv.Assert(term.Eq(s.bvConst(bitvec.New(1, 1))))
	for _, side := range lowered.sideConditions {
		slv.Assert(side)
	}

	sat, err := slv.Check()
	if err != nil {
		return false, nil, fmt.Errorf("solver: check failed: %w", err)
	}
	if !sat {
		return false, nil, nil
	}

	var models []bitvec.Vector
	if len(modelVars) > 0 {
		model := slv.Model()
		for _, mv := range modelVars {
			v, ok := lowered.vars[mv]
			if !ok {
				models = append(models, bitvec.Zero(mv.Width))
				continue
			}
			val, isLiteral := model.Eval(v, true).(z3.BV).AsBigUnsigned()
			if !isLiteral || val == nil {
				models = append(models, bitvec.Zero(mv.Width))
				continue
			}
			models = append(models, bitvec.FromBig(mv.Width, val))
		}
	}
	return true, models, nil
}

func (s *Z3) bvConst(v bitvec.Vector) z3.BV {
	return s.ctx.FromBigInt(v.Big(), s.ctx.BVSort(v.Width())).(z3.BV)
}

func (s *Z3) freshBV(prefix string, width int) z3.BV {
	name := fmt.Sprintf("%s!%d", prefix, s.names)
	s.names++
	return s.ctx.BVConst(name, width)
}

// lowering translates one DAG, memoizing by node identity so shared
// subtrees become shared terms.
type lowering struct {
	s              *Z3
	terms          map[*inst.Inst]z3.BV
	vars           map[*inst.Inst]z3.BV
	sideConditions []z3.Bool
}

func (l *lowering) bv(i *inst.Inst) z3.BV {
	if t, ok := l.terms[i]; ok {
		return t
	}
	t := l.lower(i)
	l.terms[i] = t
	return t
}

func (l *lowering) lower(i *inst.Inst) z3.BV {
	ctx := l.s.ctx
	switch i.K {
	case inst.Const:
		return l.s.bvConst(i.Val)
	case inst.Var:
		v := ctx.BVConst(i.Name, i.Width)
		l.vars[i] = v
		return v
	case inst.ReservedConst:
		// Symbolic constant, constrained nonzero by construction.
		v := l.s.freshBV("reservedconst", i.Width)
		l.vars[i] = v
		l.sideConditions = append(l.sideConditions, v.Eq(l.s.bvConst(bitvec.Zero(i.Width))).Not())
		return v
	case inst.ReservedInst, inst.Phi:
		// A hole stands for anything; a phi's control choice is free.
		// Both over-approximate as unconstrained terms, which keeps
		// UNSAT answers (the pruning direction) sound.
		v := l.s.freshBV(inst.KindName(i.K), i.Width)
		l.vars[i] = v
		return v
	case inst.Select:
		cond := l.bv(i.Ops[0]).Eq(l.s.bvConst(bitvec.New(1, 1)))
		return cond.IfThenElse(l.bv(i.Ops[1]), l.bv(i.Ops[2])).(z3.BV)
	case inst.ZExt:
		x := l.bv(i.Ops[0])
		return x.ZeroExtend(i.Width - i.Ops[0].Width)
	case inst.SExt:
		x := l.bv(i.Ops[0])
		return x.SignExtend(i.Width - i.Ops[0].Width)
	case inst.Trunc:
		return l.bv(i.Ops[0]).Extract(i.Width-1, 0)
	case inst.Eq, inst.Ne, inst.Ult, inst.Ule, inst.Slt, inst.Sle:
		return l.cmp(i)
	case inst.BSwap:
		x := l.bv(i.Ops[0])
		out := x.Extract(7, 0)
		for b := 1; b < i.Width/8; b++ {
			out = out.Concat(x.Extract(8*b+7, 8*b))
		}
		return out
	case inst.BitReverse:
		x := l.bv(i.Ops[0])
		out := x.Extract(0, 0)
		for b := 1; b < i.Width; b++ {
			out = out.Concat(x.Extract(b, b))
		}
		return out
	case inst.CtPop:
		x := l.bv(i.Ops[0])
		w := i.Ops[0].Width
		sum := x.Extract(0, 0).ZeroExtend(i.Width - 1)
		for b := 1; b < w; b++ {
			sum = sum.Add(x.Extract(b, b).ZeroExtend(i.Width - 1))
		}
		return sum
	case inst.Ctlz, inst.Cttz:
		// Left unconstrained: the over-approximation keeps UNSAT sound.
		v := l.s.freshBV(inst.KindName(i.K), i.Width)
		return v
	}

	x := l.bv(i.Ops[0])
	y := l.bv(i.Ops[1])
	switch i.K {
	// The no-wrap variants lower like the plain operators: dropping the
	// poison side condition only widens the feasible set, so an UNSAT
	// verdict still justifies pruning.
	case inst.Add, inst.AddNSW, inst.AddNUW, inst.AddNW:
		return x.Add(y)
	case inst.Sub, inst.SubNSW, inst.SubNUW, inst.SubNW:
		return x.Sub(y)
	case inst.Mul, inst.MulNSW, inst.MulNUW, inst.MulNW:
		return x.Mul(y)
	case inst.UDiv:
		return x.UDiv(y)
	case inst.SDiv:
		return x.SDiv(y)
	case inst.URem:
		return x.URem(y)
	case inst.SRem:
		return x.SRem(y)
	case inst.And:
		return x.And(y)
	case inst.Or:
		return x.Or(y)
	case inst.Xor:
		return x.Xor(y)
	case inst.Shl, inst.ShlNSW, inst.ShlNUW, inst.ShlNW:
		return x.Lsh(y)
	case inst.LShr:
		return x.URsh(y)
	case inst.AShr:
		return x.SRsh(y)
	}
	panic(fmt.Sprintf("solver: cannot lower %s", inst.KindName(i.K)))
}

func (l *lowering) cmp(i *inst.Inst) z3.BV {
	x := l.bv(i.Ops[0])
	y := l.bv(i.Ops[1])
	var b z3.Bool
	switch i.K {
	case inst.Eq:
		b = x.Eq(y)
	case inst.Ne:
		b = x.Eq(y).Not()
	case inst.Ult:
		b = x.ULT(y)
	case inst.Ule:
		b = x.ULE(y)
	case inst.Slt:
		b = x.SLT(y)
	case inst.Sle:
		b = x.SLE(y)
	}
	one := l.s.bvConst(bitvec.New(1, 1))
	zero := l.s.bvConst(bitvec.Zero(1))
	return b.IfThenElse(one, zero).(z3.BV)
}
