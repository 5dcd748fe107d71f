package known

import (
	"testing"

	"github.com/pranavk/souper/pkg/bitvec"
)

// Exhaustive soundness harness. At width 4 every KnownBits pair is
// enumerable: each bit is unknown, zero, or one. For each pair we split the
// unknown bits into all concretizations, run the concrete operator, and
// require the transfer function's claims to hold on every outcome.

const bruteWidth = 4

// enumKB calls fn for every width-4 KnownBits value (3^4 = 81 of them).
// Bit states advance like an odometer: unknown, then zero, then one.
func enumKB(fn func(KnownBits)) {
	states := make([]int, bruteWidth)
	for {
		kb := Unknown(bruteWidth)
		for i, s := range states {
			switch s {
			case 1:
				kb.Zero = kb.Zero.Or(bitvec.OneBit(bruteWidth, i))
			case 2:
				kb.One = kb.One.Or(bitvec.OneBit(bruteWidth, i))
			}
		}
		fn(kb)

		i := 0
		for ; i < bruteWidth; i++ {
			states[i]++
			if states[i] < 3 {
				break
			}
			states[i] = 0
		}
		if i == bruteWidth {
			return
		}
	}
}

// concretizations returns every concrete value consistent with kb.
func concretizations(kb KnownBits) []bitvec.Vector {
	var unknown []int
	for i := 0; i < bruteWidth; i++ {
		if kb.Zero.Bit(i) == 0 && kb.One.Bit(i) == 0 {
			unknown = append(unknown, i)
		}
	}
	out := make([]bitvec.Vector, 0, 1<<len(unknown))
	for m := 0; m < 1<<len(unknown); m++ {
		v := kb.One
		for j, bit := range unknown {
			if m&(1<<j) != 0 {
				v = v.Or(bitvec.OneBit(bruteWidth, bit))
			}
		}
		out = append(out, v)
	}
	return out
}

// concreteOp applies the operator, reporting ok=false for poison
// (division by zero, shift past the width).
type concreteOp func(x, y bitvec.Vector) (bitvec.Vector, bool)

var bruteOps = []struct {
	name     string
	transfer func(KnownBits, KnownBits) KnownBits
	concrete concreteOp
	resWidth int
}{
	{"add", Add, func(x, y bitvec.Vector) (bitvec.Vector, bool) { return x.Add(y), true }, bruteWidth},
	{"sub", Sub, func(x, y bitvec.Vector) (bitvec.Vector, bool) { return x.Sub(y), true }, bruteWidth},
	{"mul", Mul, func(x, y bitvec.Vector) (bitvec.Vector, bool) { return x.Mul(y), true }, bruteWidth},
	{"udiv", UDiv, func(x, y bitvec.Vector) (bitvec.Vector, bool) {
		if y.IsZero() {
			return y, false
		}
		return x.UDiv(y), true
	}, bruteWidth},
	{"urem", URem, func(x, y bitvec.Vector) (bitvec.Vector, bool) {
		if y.IsZero() {
			return y, false
		}
		return x.URem(y), true
	}, bruteWidth},
	{"and", And, func(x, y bitvec.Vector) (bitvec.Vector, bool) { return x.And(y), true }, bruteWidth},
	{"or", Or, func(x, y bitvec.Vector) (bitvec.Vector, bool) { return x.Or(y), true }, bruteWidth},
	{"xor", Xor, func(x, y bitvec.Vector) (bitvec.Vector, bool) { return x.Xor(y), true }, bruteWidth},
	{"shl", Shl, func(x, y bitvec.Vector) (bitvec.Vector, bool) {
		if y.Uint64() >= bruteWidth {
			return y, false
		}
		return x.Shl(int(y.Uint64())), true
	}, bruteWidth},
	{"lshr", LShr, func(x, y bitvec.Vector) (bitvec.Vector, bool) {
		if y.Uint64() >= bruteWidth {
			return y, false
		}
		return x.LShr(int(y.Uint64())), true
	}, bruteWidth},
	{"ashr", AShr, func(x, y bitvec.Vector) (bitvec.Vector, bool) {
		if y.Uint64() >= bruteWidth {
			return y, false
		}
		return x.AShr(int(y.Uint64())), true
	}, bruteWidth},
	{"eq", Eq, func(x, y bitvec.Vector) (bitvec.Vector, bool) {
		return boolVec(x.Ucmp(y) == 0), true
	}, 1},
	{"ne", Ne, func(x, y bitvec.Vector) (bitvec.Vector, bool) {
		return boolVec(x.Ucmp(y) != 0), true
	}, 1},
	{"ult", Ult, func(x, y bitvec.Vector) (bitvec.Vector, bool) {
		return boolVec(x.Ucmp(y) < 0), true
	}, 1},
	{"ule", Ule, func(x, y bitvec.Vector) (bitvec.Vector, bool) {
		return boolVec(x.Ucmp(y) <= 0), true
	}, 1},
	{"slt", Slt, func(x, y bitvec.Vector) (bitvec.Vector, bool) {
		return boolVec(x.Scmp(y) < 0), true
	}, 1},
	{"sle", Sle, func(x, y bitvec.Vector) (bitvec.Vector, bool) {
		return boolVec(x.Scmp(y) <= 0), true
	}, 1},
}

func boolVec(b bool) bitvec.Vector {
	if b {
		return bitvec.New(1, 1)
	}
	return bitvec.Zero(1)
}

func TestTransferFunctionSoundness(t *testing.T) {
	for _, op := range bruteOps {
		op := op
		t.Run(op.name, func(t *testing.T) {
			enumKB(func(a KnownBits) {
				as := concretizations(a)
				enumKB(func(b KnownBits) {
					got := op.transfer(a, b)
					if got.HasConflict() {
						t.Fatalf("%s(%s, %s): conflict in %s",
							op.name, a, b, got)
					}
					// Union and intersection of the reachable results.
					orAll := bitvec.Zero(op.resWidth)
					andAll := bitvec.AllOnes(op.resWidth)
					any := false
					for _, x := range as {
						for _, y := range concretizations(b) {
							v, ok := op.concrete(x, y)
							if !ok {
								continue // poison: any claim is sound
							}
							any = true
							orAll = orAll.Or(v)
							andAll = andAll.And(v)
						}
					}
					if !any {
						return
					}
					if !got.Zero.And(orAll).IsZero() {
						t.Fatalf("%s(%s, %s) = %s claims zero where a result has a one",
							op.name, a, b, got)
					}
					if !got.One.And(andAll.Not()).IsZero() {
						t.Fatalf("%s(%s, %s) = %s claims one where a result has a zero",
							op.name, a, b, got)
					}
				})
			})
		})
	}
}

// refinements returns kb with one unknown bit pinned each way.
func refinements(kb KnownBits) []KnownBits {
	var out []KnownBits
	for i := 0; i < bruteWidth; i++ {
		if kb.Zero.Bit(i) == 0 && kb.One.Bit(i) == 0 {
			z := kb
			z.Zero = z.Zero.Or(bitvec.OneBit(bruteWidth, i))
			o := kb
			o.One = o.One.Or(bitvec.OneBit(bruteWidth, i))
			out = append(out, z, o)
		}
	}
	return out
}

// leq reports a ⊑ b in the precision order: a knows everything b knows.
func leq(a, b KnownBits) bool {
	return b.Zero.And(a.Zero.Not()).IsZero() && b.One.And(a.One.Not()).IsZero()
}

func TestTransferFunctionMonotonicity(t *testing.T) {
	// Poison-free operators only: refining an operand toward a
	// division-by-zero or oversized shift legitimately loses knowledge.
	mono := map[string]bool{
		"add": true, "sub": true, "mul": true,
		"and": true, "or": true, "xor": true,
		"eq": true, "ne": true,
		"ult": true, "ule": true, "slt": true, "sle": true,
	}
	for _, op := range bruteOps {
		if !mono[op.name] {
			continue
		}
		op := op
		t.Run(op.name, func(t *testing.T) {
			enumKB(func(a KnownBits) {
				enumKB(func(b KnownBits) {
					base := op.transfer(a, b)
					for _, a2 := range refinements(a) {
						if got := op.transfer(a2, b); !leq(got, base) {
							t.Fatalf("%s: refining lhs %s -> %s lost knowledge: %s -> %s",
								op.name, a, a2, base, got)
						}
					}
					for _, b2 := range refinements(b) {
						if got := op.transfer(a, b2); !leq(got, base) {
							t.Fatalf("%s: refining rhs %s -> %s lost knowledge: %s -> %s",
								op.name, b, b2, base, got)
						}
					}
				})
			})
		})
	}
}
