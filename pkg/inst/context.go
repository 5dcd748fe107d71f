package inst

import (
	"fmt"
	"strings"

	"github.com/pranavk/souper/pkg/bitvec"
)

// Context owns and interns DAG nodes. Interning makes identity comparison
// meaningful: asking twice for the same constant or the same
// (kind, width, operands) triple returns the same pointer. Variables,
// reserved constants, and holes are deliberately not interned: each
// creation is a distinct leaf.
//
// A Context is not safe for concurrent use; a synthesis session owns one.
type Context struct {
	consts map[string]*Inst
	insts  map[string]*Inst
	names  int
}

// NewContext returns an empty node context.
func NewContext() *Context {
	return &Context{
		consts: make(map[string]*Inst),
		insts:  make(map[string]*Inst),
	}
}

// GetConst returns the interned constant node for val.
func (c *Context) GetConst(val bitvec.Vector) *Inst {
	key := val.String()
	if i, ok := c.consts[key]; ok {
		return i
	}
	i := &Inst{K: Const, Width: val.Width(), Val: val}
	c.consts[key] = i
	return i
}

// CreateVar returns a fresh variable node. An empty name is replaced with a
// generated one.
func (c *Context) CreateVar(width int, name string) *Inst {
	if name == "" {
		name = fmt.Sprintf("%%%d", c.names)
		c.names++
	}
	return &Inst{K: Var, Width: width, Name: name}
}

// CreateReservedConst returns a fresh symbolic-constant leaf.
func (c *Context) CreateReservedConst(width int) *Inst {
	return &Inst{K: ReservedConst, Width: width}
}

// CreateReservedInst returns a fresh hole leaf.
func (c *Context) CreateReservedInst(width int) *Inst {
	return &Inst{K: ReservedInst, Width: width}
}

// GetInst returns the interned node (k, width, ops). Leaf kinds must go
// through their dedicated constructors.
func (c *Context) GetInst(k Kind, width int, ops []*Inst) *Inst {
	switch k {
	case Const, Var, ReservedConst, ReservedInst:
		panic("inst: GetInst called with a leaf kind")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d", k, width)
	for _, op := range ops {
		fmt.Fprintf(&b, "/%p", op)
	}
	key := b.String()
	if i, ok := c.insts[key]; ok {
		return i
	}
	i := &Inst{K: k, Width: width, Ops: append([]*Inst(nil), ops...)}
	c.insts[key] = i
	return i
}

// GetInstCopy clones the DAG rooted at root with substitutions applied:
// nodes present in instCache are replaced by their mapping (holes that were
// turned into fresh variables, typically); variables present in constMap
// become constant nodes; with cloneVars set, remaining variables are cloned
// into fresh ones, otherwise they are shared.
func (c *Context) GetInstCopy(root *Inst, instCache map[*Inst]*Inst,
	constMap map[*Inst]bitvec.Vector, cloneVars bool) *Inst {
	if instCache == nil {
		instCache = make(map[*Inst]*Inst)
	}
	return c.copyRec(root, instCache, constMap, cloneVars)
}

func (c *Context) copyRec(i *Inst, cache map[*Inst]*Inst,
	constMap map[*Inst]bitvec.Vector, cloneVars bool) *Inst {
	if mapped, ok := cache[i]; ok {
		return mapped
	}
	var out *Inst
	switch i.K {
	case Const:
		out = i
	case Var:
		if constMap != nil {
			if val, ok := constMap[i]; ok {
				out = c.GetConst(val)
				break
			}
		}
		if cloneVars {
			out = c.CreateVar(i.Width, i.Name)
		} else {
			out = i
		}
	case ReservedConst, ReservedInst:
		// Not in the cache, so the caller chose to keep it symbolic.
		out = i
	default:
		ops := make([]*Inst, len(i.Ops))
		for k, op := range i.Ops {
			ops[k] = c.copyRec(op, cache, constMap, cloneVars)
		}
		out = c.GetInst(i.K, i.Width, ops)
	}
	cache[i] = out
	return out
}
