// Package interp evaluates fully-concrete expression DAGs. Undefined
// behavior (division by zero, shifts past the width, violated no-wrap
// guarantees) yields "no value" rather than an error: poison propagates
// and callers treat it as "cannot conclude anything on this input".
package interp

import (
	"math/big"

	"github.com/pranavk/souper/pkg/bitvec"
	"github.com/pranavk/souper/pkg/inst"
)

// EvalValue is an optional bit-vector: either a concrete value or nothing
// (free variable, hole, or poison).
type EvalValue struct {
	valid bool
	val   bitvec.Vector
}

// Value wraps a concrete result.
func Value(v bitvec.Vector) EvalValue { return EvalValue{true, v} }

// None is the absent value.
func None() EvalValue { return EvalValue{} }

// HasValue reports whether a concrete value is present.
func (e EvalValue) HasValue() bool { return e.valid }

// Get returns the concrete value; it must be present.
func (e EvalValue) Get() bitvec.Vector {
	if !e.valid {
		panic("interp: Get on empty EvalValue")
	}
	return e.val
}

// ValueCache maps variable nodes to their bindings for one input row.
type ValueCache map[*inst.Inst]EvalValue

// ConcreteInterpreter evaluates DAG nodes under a fixed set of variable
// bindings. Results are memoized by node identity, so one interpreter may
// evaluate many candidate DAGs that share subtrees.
type ConcreteInterpreter struct {
	lhs  *inst.Inst
	vars ValueCache
	memo map[*inst.Inst]EvalValue
}

// New returns an interpreter pre-bound to lhs with the given row bindings.
func New(lhs *inst.Inst, vars ValueCache) *ConcreteInterpreter {
	return &ConcreteInterpreter{
		lhs:  lhs,
		vars: vars,
		memo: make(map[*inst.Inst]EvalValue),
	}
}

// LHS returns the expression the interpreter was bound to.
func (ci *ConcreteInterpreter) LHS() *inst.Inst { return ci.lhs }

// Evaluate returns the value of i under the row bindings, or no value if i
// depends on an unbound leaf or hits poison.
func (ci *ConcreteInterpreter) Evaluate(i *inst.Inst) EvalValue {
	if v, ok := ci.memo[i]; ok {
		return v
	}
	v := ci.eval(i)
	ci.memo[i] = v
	return v
}

func (ci *ConcreteInterpreter) eval(i *inst.Inst) EvalValue {
	switch i.K {
	case inst.Const:
		return Value(i.Val)
	case inst.Var:
		if v, ok := ci.vars[i]; ok {
			return v
		}
		return None()
	case inst.ReservedConst, inst.ReservedInst, inst.Phi:
		// Holes have no value; a phi's control choice is unmodelled.
		return None()
	case inst.Select:
		cond := ci.Evaluate(i.Ops[0])
		if !cond.HasValue() {
			return None()
		}
		if cond.Get().IsZero() {
			return ci.Evaluate(i.Ops[2])
		}
		return ci.Evaluate(i.Ops[1])
	}

	if len(i.Ops) == 1 {
		op := ci.Evaluate(i.Ops[0])
		if !op.HasValue() {
			return None()
		}
		return evalUnary(i, op.Get())
	}

	a := ci.Evaluate(i.Ops[0])
	b := ci.Evaluate(i.Ops[1])
	if !a.HasValue() || !b.HasValue() {
		return None()
	}
	return evalBinary(i.K, i.Width, a.Get(), b.Get())
}

func evalUnary(i *inst.Inst, x bitvec.Vector) EvalValue {
	w := i.Width
	switch i.K {
	case inst.ZExt:
		return Value(x.ZExt(w))
	case inst.SExt:
		return Value(x.SExt(w))
	case inst.Trunc:
		return Value(x.Trunc(w))
	case inst.BSwap:
		return Value(x.ByteSwap())
	case inst.BitReverse:
		return Value(x.ReverseBits())
	case inst.CtPop:
		return Value(bitvec.New(w, uint64(x.PopCount())))
	case inst.Ctlz:
		return Value(bitvec.New(w, uint64(x.LeadingZeros())))
	case inst.Cttz:
		return Value(bitvec.New(w, uint64(x.TrailingZeros())))
	}
	return None()
}

func evalBinary(k inst.Kind, w int, x, y bitvec.Vector) EvalValue {
	switch k {
	case inst.Add, inst.AddNSW, inst.AddNUW, inst.AddNW:
		if wrapPoison(k, inst.AddNSW, inst.AddNUW, inst.AddNW,
			signedAddOverflows(x, y), unsignedAddOverflows(x, y)) {
			return None()
		}
		return Value(x.Add(y))
	case inst.Sub, inst.SubNSW, inst.SubNUW, inst.SubNW:
		if wrapPoison(k, inst.SubNSW, inst.SubNUW, inst.SubNW,
			signedSubOverflows(x, y), x.Ucmp(y) < 0) {
			return None()
		}
		return Value(x.Sub(y))
	case inst.Mul, inst.MulNSW, inst.MulNUW, inst.MulNW:
		if wrapPoison(k, inst.MulNSW, inst.MulNUW, inst.MulNW,
			signedMulOverflows(x, y), unsignedMulOverflows(x, y)) {
			return None()
		}
		return Value(x.Mul(y))
	case inst.UDiv:
		if y.IsZero() {
			return None()
		}
		return Value(x.UDiv(y))
	case inst.SDiv:
		if y.IsZero() || sdivOverflows(x, y) {
			return None()
		}
		return Value(x.SDiv(y))
	case inst.URem:
		if y.IsZero() {
			return None()
		}
		return Value(x.URem(y))
	case inst.SRem:
		if y.IsZero() || sdivOverflows(x, y) {
			return None()
		}
		return Value(x.SRem(y))
	case inst.And:
		return Value(x.And(y))
	case inst.Or:
		return Value(x.Or(y))
	case inst.Xor:
		return Value(x.Xor(y))
	case inst.Shl, inst.ShlNSW, inst.ShlNUW, inst.ShlNW:
		if y.Uint64() >= uint64(w) {
			return None()
		}
		n := int(y.Uint64())
		r := x.Shl(n)
		nswBad := !r.AShr(n).Eq(x)
		nuwBad := !r.LShr(n).Eq(x)
		if wrapPoison(k, inst.ShlNSW, inst.ShlNUW, inst.ShlNW, nswBad, nuwBad) {
			return None()
		}
		return Value(r)
	case inst.LShr:
		if y.Uint64() >= uint64(w) {
			return None()
		}
		return Value(x.LShr(int(y.Uint64())))
	case inst.AShr:
		if y.Uint64() >= uint64(w) {
			return None()
		}
		return Value(x.AShr(int(y.Uint64())))
	case inst.Eq:
		return Value(boolVec(x.Ucmp(y) == 0))
	case inst.Ne:
		return Value(boolVec(x.Ucmp(y) != 0))
	case inst.Ult:
		return Value(boolVec(x.Ucmp(y) < 0))
	case inst.Ule:
		return Value(boolVec(x.Ucmp(y) <= 0))
	case inst.Slt:
		return Value(boolVec(x.Scmp(y) < 0))
	case inst.Sle:
		return Value(boolVec(x.Scmp(y) <= 0))
	}
	return None()
}

func boolVec(b bool) bitvec.Vector {
	if b {
		return bitvec.New(1, 1)
	}
	return bitvec.Zero(1)
}

// wrapPoison reports whether kind k's no-wrap guarantee is violated.
func wrapPoison(k, nsw, nuw, nw inst.Kind, signedOvf, unsignedOvf bool) bool {
	switch k {
	case nsw:
		return signedOvf
	case nuw:
		return unsignedOvf
	case nw:
		return signedOvf || unsignedOvf
	}
	return false
}

func signedFits(w int, v *big.Int) bool {
	min := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), uint(w-1)))
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(w-1)), big.NewInt(1))
	return v.Cmp(min) >= 0 && v.Cmp(max) <= 0
}

func signedAddOverflows(x, y bitvec.Vector) bool {
	return !signedFits(x.Width(), new(big.Int).Add(x.SignedBig(), y.SignedBig()))
}

func signedSubOverflows(x, y bitvec.Vector) bool {
	return !signedFits(x.Width(), new(big.Int).Sub(x.SignedBig(), y.SignedBig()))
}

func signedMulOverflows(x, y bitvec.Vector) bool {
	return !signedFits(x.Width(), new(big.Int).Mul(x.SignedBig(), y.SignedBig()))
}

func unsignedAddOverflows(x, y bitvec.Vector) bool {
	sum := new(big.Int).Add(x.Big(), y.Big())
	return sum.BitLen() > x.Width()
}

func unsignedMulOverflows(x, y bitvec.Vector) bool {
	prod := new(big.Int).Mul(x.Big(), y.Big())
	return prod.BitLen() > x.Width()
}

// sdivOverflows reports the one signed-division overflow: smin / -1.
func sdivOverflows(x, y bitvec.Vector) bool {
	w := x.Width()
	return x.Eq(bitvec.MinSigned(w)) && y.Eq(bitvec.AllOnes(w))
}
