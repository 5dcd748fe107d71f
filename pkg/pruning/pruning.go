// Package pruning decides, per candidate right-hand side, whether the
// candidate is demonstrably infeasible as a replacement for the session's
// left-hand side. Cheap checks run first (concrete interpretation, range
// containment, known-bits consistency) and the solver is the last resort.
package pruning

import (
	"fmt"
	"io"

	"github.com/tliron/commonlog"

	"github.com/pranavk/souper/pkg/bitvec"
	"github.com/pranavk/souper/pkg/crange"
	"github.com/pranavk/souper/pkg/dataflow"
	"github.com/pranavk/souper/pkg/inst"
	"github.com/pranavk/souper/pkg/interp"
	"github.com/pranavk/souper/pkg/known"
	"github.com/pranavk/souper/pkg/kvstore"
)

var log = commonlog.GetLogger("souper.pruning")

// SynthesisContext is the ambient state of one superoptimization session.
type SynthesisContext struct {
	LHS    *inst.Inst
	IC     *inst.Context
	Solver dataflow.Solver
}

// PruneFunc is the per-candidate callback handed to the enumerator: it
// returns true to keep the candidate and false to drop it. The second
// argument carries the remaining partly-built candidates; the closures
// installed by Init do not read it.
type PruneFunc func(rhs *inst.Inst, remaining []*inst.Inst) bool

// Manager runs the dataflow pruning pipeline for one session. Construct it,
// call Init once, then query IsInfeasible (or the installed PruneFunc) for
// each candidate. Init is split out so that a session with pruning disabled
// pays nothing.
type Manager struct {
	sc         SynthesisContext
	inputVars  []*inst.Inst
	statsLevel int

	inputVals    []interp.ValueCache
	interpreters []*interp.ConcreteInterpreter
	lhsKnownBits []known.KnownBits
	lhsRange     []crange.Range
	lhsHasPhi    bool

	pruneFunc    PruneFunc
	numPruned    int
	totalGuesses int
	names        int
}

// NewManager returns an uninitialized manager for the session.
func NewManager(sc SynthesisContext, inputVars []*inst.Inst, statsLevel int) *Manager {
	return &Manager{sc: sc, inputVars: inputVars, statsLevel: statsLevel}
}

// Init generates the input rows, binds one concrete interpreter per row,
// precomputes the abstract LHS values when the LHS contains a phi, and
// installs the pruning closure. Call exactly once before use.
func (m *Manager) Init() {
	m.inputVals = GenerateInputSets(m.inputVars)
	for _, row := range m.inputVals {
		m.interpreters = append(m.interpreters, interp.New(m.sc.LHS, row))
	}

	if inst.HasKind(m.sc.LHS, func(i *inst.Inst) bool { return i.K == inst.Phi }) {
		// A phi-bearing LHS has no unique concrete value per row; keep
		// its abstraction per row instead.
		m.lhsHasPhi = true
		for idx := range m.inputVals {
			m.lhsKnownBits = append(m.lhsKnownBits,
				dataflow.NewKnownBitsAnalysis().FindKnownBits(m.sc.LHS, m.interpreters[idx], true))
			m.lhsRange = append(m.lhsRange,
				dataflow.NewConstantRangeAnalysis().FindConstantRange(m.sc.LHS, m.interpreters[idx], true))
		}
	}

	if m.statsLevel > 1 {
		m.pruneFunc = func(rhs *inst.Inst, remaining []*inst.Inst) bool {
			m.totalGuesses++
			log.Debugf("candidate: %s", rhs)
			if m.IsInfeasible(rhs, m.statsLevel) {
				m.numPruned++
				log.Debugf("pruned %s, tally %d/%d", inst.KindName(rhs.K), m.numPruned, m.totalGuesses)
				return false
			}
			log.Debugf("could not prune %s", inst.KindName(rhs.K))
			return true
		}
	} else {
		m.pruneFunc = func(rhs *inst.Inst, remaining []*inst.Inst) bool {
			m.totalGuesses++
			if m.IsInfeasible(rhs, m.statsLevel) {
				m.numPruned++
				return false
			}
			return true
		}
	}
}

// GetPruneFunc returns the installed closure.
func (m *Manager) GetPruneFunc() PruneFunc { return m.pruneFunc }

// Stats returns how many candidates were pruned out of how many seen.
func (m *Manager) Stats() (pruned, total int) { return m.numPruned, m.totalGuesses }

// PrintStats writes the pruning tally.
func (m *Manager) PrintStats(w io.Writer) {
	fmt.Fprintf(w, "Dataflow Pruned %d/%d\n", m.numPruned, m.totalGuesses)
}

// RecordStats accumulates the session tally into a persistent store, so
// long-running sweeps can be inspected across restarts.
func (m *Manager) RecordStats(store *kvstore.Store) error {
	if err := store.HIncrBy("pruning-stats", "pruned", int64(m.numPruned)); err != nil {
		return err
	}
	return store.HIncrBy("pruning-stats", "total", int64(m.totalGuesses))
}

// IsInfeasible reports whether rhs provably cannot equal the LHS on some
// input row, for any assignment of its holes and reserved constants. It is
// total: errors inside degrade to "keep the candidate".
func (m *Manager) IsInfeasible(rhs *inst.Inst, statsLevel int) bool {
	for i := range m.inputVals {
		if m.lhsHasPhi {
			lhsCR := m.lhsRange[i]
			rhsCR := dataflow.NewConstantRangeAnalysis().FindConstantRange(rhs, m.interpreters[i], true)
			if lhsCR.IntersectWith(rhsCR).IsEmptySet() {
				if statsLevel > 2 {
					log.Debugf("pruned phi-LHS using ranges: lhs %s, rhs %s", lhsCR, rhsCR)
				}
				return true
			}

			lhsKB := m.lhsKnownBits[i]
			rhsKB := dataflow.NewKnownBitsAnalysis().FindKnownBits(rhs, m.interpreters[i], true)
			if !lhsKB.Zero.And(rhsKB.One).IsZero() || !lhsKB.One.And(rhsKB.Zero).IsZero() {
				if statsLevel > 2 {
					log.Debugf("pruned phi-LHS using known bits: lhs %s, rhs %s", lhsKB, rhsKB)
				}
				return true
			}
			continue
		}

		c := m.interpreters[i].Evaluate(m.sc.LHS)
		if !c.HasValue() {
			continue
		}
		val := c.Get()

		if dataflow.IsConcrete(rhs, true, true) {
			rhsVal := m.interpreters[i].Evaluate(rhs)
			if rhsVal.HasValue() && !val.Eq(rhsVal.Get()) {
				if statsLevel > 2 {
					log.Debugf("pruned using concrete interpreter: lhs %s, rhs %s", val, rhsVal.Get())
				}
				return true
			}
			continue
		}

		cr := dataflow.NewConstantRangeAnalysis().FindConstantRange(rhs, m.interpreters[i], true)
		if !cr.Contains(val) {
			if statsLevel > 2 {
				log.Debugf("pruned using range %s, lhs value %s", cr, val)
			}
			return true
		}

		kb := dataflow.NewKnownBitsAnalysis().FindKnownBits(rhs, m.interpreters[i], true)
		if !kb.Zero.And(val).IsZero() || !kb.One.And(val.Not()).IsZero() {
			if statsLevel > 2 {
				log.Debugf("pruned using known bits %s, lhs value %s", kb, val)
			}
			return true
		}
	}

	if !m.lhsHasPhi {
		return m.IsInfeasibleWithSolver(rhs, statsLevel)
	}
	return false
}

// IsInfeasibleWithSolver asks the solver, per input row, whether any
// assignment of the candidate's holes makes it equal the LHS value on that
// row. An unsatisfiable row proves infeasibility; a solver error skips the
// row and never fails the query.
func (m *Manager) IsInfeasibleWithSolver(rhs *inst.Inst, statsLevel int) bool {
	if m.sc.Solver == nil {
		return false
	}
	for i := range m.inputVals {
		c := m.interpreters[i].Evaluate(m.sc.LHS)
		if !c.HasValue() {
			continue
		}
		if dataflow.IsConcrete(rhs, false, true) {
			continue
		}
		val := c.Get()

		holes := inst.ReservedInsts(rhs)
		instCache := make(map[*inst.Inst]*inst.Inst, len(holes))
		modelVars := make([]*inst.Inst, 0, len(holes))
		for _, hole := range holes {
			dummy := m.sc.IC.CreateVar(hole.Width, m.uniqueName())
			instCache[hole] = dummy
			modelVars = append(modelVars, dummy)
		}

		cm := rowConstMap(m.inputVals[i])
		rhsReplacement := m.sc.IC.GetInstCopy(rhs, instCache, cm, true)
		lhsReplacement := m.sc.IC.GetConst(val)

		cond := m.sc.IC.GetInst(inst.Eq, 1, []*inst.Inst{lhsReplacement, rhsReplacement})
		sat, models, err := m.sc.Solver.IsSatisfiable(cond, modelVars, dataflow.SolverTimeout)
		if err != nil {
			log.Errorf("solver error in pruning: %s", err.Error())
			continue
		}
		if !sat {
			if statsLevel > 2 {
				log.Debugf("pruned using solver on row %d", i)
			}
			return true
		}
		if statsLevel > 2 {
			for j, mv := range modelVars {
				if j < len(models) {
					log.Debugf("solver model: %s = %s", mv.Name, models[j])
				}
			}
		}
	}
	return false
}

func (m *Manager) uniqueName() string {
	name := fmt.Sprintf("dummy%d", m.names)
	m.names++
	return name
}

func rowConstMap(row interp.ValueCache) map[*inst.Inst]bitvec.Vector {
	cm := make(map[*inst.Inst]bitvec.Vector, len(row))
	for v, ev := range row {
		if ev.HasValue() {
			cm[v] = ev.Get()
		}
	}
	return cm
}
