// Package inst defines the expression DAG of the superoptimizer: immutable,
// interned nodes over fixed-width bit-vector operations.
package inst

import (
	"fmt"
	"strings"

	"github.com/pranavk/souper/pkg/bitvec"
)

// Kind identifies the operation of a DAG node.
type Kind uint8

// Node kinds. Leaves first, then the operator kinds with their
// no-signed-wrap / no-unsigned-wrap / no-wrap variants.
const (
	Const Kind = iota
	Var
	ReservedConst // symbolic constant to be synthesized; never zero
	ReservedInst  // hole: stands for any expression of its width
	Phi
	Select

	Add
	AddNSW
	AddNUW
	AddNW
	Sub
	SubNSW
	SubNUW
	SubNW
	Mul
	MulNSW
	MulNUW
	MulNW
	UDiv
	SDiv
	URem
	SRem
	And
	Or
	Xor
	Shl
	ShlNSW
	ShlNUW
	ShlNW
	LShr
	AShr
	ZExt
	SExt
	Trunc

	Eq
	Ne
	Ult
	Ule
	Slt
	Sle

	BSwap
	BitReverse
	CtPop
	Ctlz
	Cttz

	KindCount
)

var kindNames = [KindCount]string{
	Const: "const", Var: "var",
	ReservedConst: "reservedconst", ReservedInst: "reservedinst",
	Phi: "phi", Select: "select",
	Add: "add", AddNSW: "addnsw", AddNUW: "addnuw", AddNW: "addnw",
	Sub: "sub", SubNSW: "subnsw", SubNUW: "subnuw", SubNW: "subnw",
	Mul: "mul", MulNSW: "mulnsw", MulNUW: "mulnuw", MulNW: "mulnw",
	UDiv: "udiv", SDiv: "sdiv", URem: "urem", SRem: "srem",
	And: "and", Or: "or", Xor: "xor",
	Shl: "shl", ShlNSW: "shlnsw", ShlNUW: "shlnuw", ShlNW: "shlnw",
	LShr: "lshr", AShr: "ashr",
	ZExt: "zext", SExt: "sext", Trunc: "trunc",
	Eq: "eq", Ne: "ne", Ult: "ult", Ule: "ule", Slt: "slt", Sle: "sle",
	BSwap: "bswap", BitReverse: "bitreverse",
	CtPop: "ctpop", Ctlz: "ctlz", Cttz: "cttz",
}

// KindName returns the lower-case mnemonic for k.
func KindName(k Kind) string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Inst is one node of the expression DAG. Nodes are immutable once created
// and are interned in a Context; identity comparison is meaningful.
type Inst struct {
	K     Kind
	Width int
	Ops   []*Inst
	Val   bitvec.Vector // Const only
	Name  string        // Var only
}

// IsCmp reports whether the node is a comparison (always 1 bit wide).
func (i *Inst) IsCmp() bool {
	switch i.K {
	case Eq, Ne, Ult, Ule, Slt, Sle:
		return true
	}
	return false
}

// String renders the DAG rooted at i in compact prefix form, e.g.
// "(add:i8 (var:i8 x) 1:i8)". Shared subtrees are printed once per
// occurrence; the printer is for traces and tests, not for round-tripping.
func (i *Inst) String() string {
	var b strings.Builder
	i.print(&b)
	return b.String()
}

func (i *Inst) print(b *strings.Builder) {
	switch i.K {
	case Const:
		b.WriteString(i.Val.String())
	case Var:
		fmt.Fprintf(b, "(var:i%d %s)", i.Width, i.Name)
	case ReservedConst:
		fmt.Fprintf(b, "(reservedconst:i%d)", i.Width)
	case ReservedInst:
		fmt.Fprintf(b, "(reservedinst:i%d)", i.Width)
	default:
		fmt.Fprintf(b, "(%s:i%d", KindName(i.K), i.Width)
		for _, op := range i.Ops {
			b.WriteByte(' ')
			op.print(b)
		}
		b.WriteByte(')')
	}
}

// HasKind walks the DAG rooted at root and reports whether any node
// satisfies pred. Shared nodes are visited once.
func HasKind(root *Inst, pred func(*Inst) bool) bool {
	visited := make(map[*Inst]bool)
	var walk func(*Inst) bool
	walk = func(i *Inst) bool {
		if visited[i] {
			return false
		}
		visited[i] = true
		if pred(i) {
			return true
		}
		for _, op := range i.Ops {
			if walk(op) {
				return true
			}
		}
		return false
	}
	return walk(root)
}

// IsReservedConst reports whether i stands for a constant yet to be
// synthesized.
func IsReservedConst(i *Inst) bool { return i.K == ReservedConst }

// IsReservedInst reports whether i is a hole.
func IsReservedInst(i *Inst) bool { return i.K == ReservedInst }

// ReservedInsts returns the holes in the DAG rooted at root, in first-visit
// order.
func ReservedInsts(root *Inst) []*Inst {
	var holes []*Inst
	visited := make(map[*Inst]bool)
	var walk func(*Inst)
	walk = func(i *Inst) {
		if visited[i] {
			return
		}
		visited[i] = true
		if i.K == ReservedInst {
			holes = append(holes, i)
		}
		for _, op := range i.Ops {
			walk(op)
		}
	}
	walk(root)
	return holes
}

// Vars returns the free variables in the DAG rooted at root, in first-visit
// order.
func Vars(root *Inst) []*Inst {
	var vars []*Inst
	visited := make(map[*Inst]bool)
	var walk func(*Inst)
	walk = func(i *Inst) {
		if visited[i] {
			return
		}
		visited[i] = true
		if i.K == Var {
			vars = append(vars, i)
		}
		for _, op := range i.Ops {
			walk(op)
		}
	}
	walk(root)
	return vars
}

// Mapping pairs two nodes asserted equal, e.g. a path condition.
type Mapping struct {
	LHS *Inst
	RHS *Inst
}
