package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/pranavk/souper/pkg/bitvec"
	"github.com/pranavk/souper/pkg/inst"
	"github.com/pranavk/souper/pkg/known"
	"github.com/pranavk/souper/pkg/kvstore"
	"github.com/pranavk/souper/pkg/pruning"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "souper",
		Short: "Dataflow pruning core for a peephole superoptimizer",
	}

	var verbosity int
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbose", "v", 0, "Log verbosity (0-3)")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		commonlog.Configure(verbosity, nil)
	}

	// selftest command
	var width int
	selftestCmd := &cobra.Command{
		Use:   "selftest",
		Short: "Exhaustively check the KnownBits transfer functions at a small width",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelftest(width)
		},
	}
	selftestCmd.Flags().IntVar(&width, "width", 4, "Bit width for exhaustive checking (keep small)")

	// prune command
	var statsLevel int
	var redisAddr string
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Run the pruning pipeline on built-in demo candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPruneDemo(statsLevel, redisAddr)
		},
	}
	pruneCmd.Flags().IntVar(&statsLevel, "stats", 1, "Stats level (higher = more tracing)")
	pruneCmd.Flags().StringVar(&redisAddr, "redis", os.Getenv("SOUPER_REDIS_ADDR"),
		"Redis address for persisting tallies (empty = off)")

	// dot command
	dotCmd := &cobra.Command{
		Use:   "dot",
		Short: "Dump the demo expression DAG in graphviz form",
		RunE: func(cmd *cobra.Command, args []string) error {
			ic := inst.NewContext()
			lhs, _ := demoSession(ic)
			g := inst.Graph{Root: lhs, Name: "demo"}
			return g.WriteDot(os.Stdout)
		},
	}

	rootCmd.AddCommand(selftestCmd, pruneCmd, dotCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// demoSession builds a small LHS and a batch of candidate RHS shapes with
// holes and reserved constants, standing in for an external enumerator.
func demoSession(ic *inst.Context) (lhs *inst.Inst, candidates []*inst.Inst) {
	x := ic.CreateVar(8, "x")
	// lhs: (x | 1) + 2, which is always odd.
	lhs = ic.GetInst(inst.Add, 8, []*inst.Inst{
		ic.GetInst(inst.Or, 8, []*inst.Inst{x, ic.GetConst(bitvec.New(8, 1))}),
		ic.GetConst(bitvec.New(8, 2)),
	})

	hole := func() *inst.Inst { return ic.CreateReservedInst(8) }
	rc := func() *inst.Inst { return ic.CreateReservedConst(8) }
	one := ic.GetConst(bitvec.New(8, 1))
	candidates = []*inst.Inst{
		ic.GetConst(bitvec.New(8, 0)),                          // concrete mismatch
		ic.GetInst(inst.Shl, 8, []*inst.Inst{hole(), rc()}),    // even: known-bits prune
		ic.GetInst(inst.And, 8, []*inst.Inst{hole(), one}),     // range prune
		ic.GetInst(inst.Or, 8, []*inst.Inst{hole(), one}),      // survives
		ic.GetInst(inst.Add, 8, []*inst.Inst{x, rc()}),         // survives
	}
	return lhs, candidates
}

func runPruneDemo(statsLevel int, redisAddr string) error {
	ic := inst.NewContext()
	lhs, candidates := demoSession(ic)

	m := pruning.NewManager(pruning.SynthesisContext{LHS: lhs, IC: ic}, inst.Vars(lhs), statsLevel)
	m.Init()

	prune := m.GetPruneFunc()
	for _, cand := range candidates {
		verdict := "kept"
		if !prune(cand, nil) {
			verdict = "pruned"
		}
		fmt.Printf("  %-6s %s\n", verdict, cand)
	}
	m.PrintStats(os.Stdout)

	if redisAddr != "" {
		store, err := kvstore.Open(redisAddr)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := m.RecordStats(store); err != nil {
			return err
		}
		fmt.Printf("Tally recorded to %s\n", redisAddr)
	}
	return nil
}

// selftestOp pairs a transfer function with its concrete ground truth.
// ok=false marks poison, which any abstract claim covers.
type selftestOp struct {
	name     string
	transfer func(known.KnownBits, known.KnownBits) known.KnownBits
	concrete func(x, y bitvec.Vector) (bitvec.Vector, bool)
	resWidth func(w int) int
}

func selftestOps(w int) []selftestOp {
	same := func(int) int { return w }
	bit := func(int) int { return 1 }
	b2v := func(b bool) bitvec.Vector {
		if b {
			return bitvec.New(1, 1)
		}
		return bitvec.Zero(1)
	}
	return []selftestOp{
		{"add", known.Add, func(x, y bitvec.Vector) (bitvec.Vector, bool) { return x.Add(y), true }, same},
		{"sub", known.Sub, func(x, y bitvec.Vector) (bitvec.Vector, bool) { return x.Sub(y), true }, same},
		{"mul", known.Mul, func(x, y bitvec.Vector) (bitvec.Vector, bool) { return x.Mul(y), true }, same},
		{"udiv", known.UDiv, func(x, y bitvec.Vector) (bitvec.Vector, bool) {
			if y.IsZero() {
				return y, false
			}
			return x.UDiv(y), true
		}, same},
		{"urem", known.URem, func(x, y bitvec.Vector) (bitvec.Vector, bool) {
			if y.IsZero() {
				return y, false
			}
			return x.URem(y), true
		}, same},
		{"and", known.And, func(x, y bitvec.Vector) (bitvec.Vector, bool) { return x.And(y), true }, same},
		{"or", known.Or, func(x, y bitvec.Vector) (bitvec.Vector, bool) { return x.Or(y), true }, same},
		{"xor", known.Xor, func(x, y bitvec.Vector) (bitvec.Vector, bool) { return x.Xor(y), true }, same},
		{"shl", known.Shl, func(x, y bitvec.Vector) (bitvec.Vector, bool) {
			if y.Uint64() >= uint64(w) {
				return y, false
			}
			return x.Shl(int(y.Uint64())), true
		}, same},
		{"lshr", known.LShr, func(x, y bitvec.Vector) (bitvec.Vector, bool) {
			if y.Uint64() >= uint64(w) {
				return y, false
			}
			return x.LShr(int(y.Uint64())), true
		}, same},
		{"ashr", known.AShr, func(x, y bitvec.Vector) (bitvec.Vector, bool) {
			if y.Uint64() >= uint64(w) {
				return y, false
			}
			return x.AShr(int(y.Uint64())), true
		}, same},
		{"eq", known.Eq, func(x, y bitvec.Vector) (bitvec.Vector, bool) { return b2v(x.Ucmp(y) == 0), true }, bit},
		{"ne", known.Ne, func(x, y bitvec.Vector) (bitvec.Vector, bool) { return b2v(x.Ucmp(y) != 0), true }, bit},
	}
}

func runSelftest(w int) error {
	if w < 1 || w > 6 {
		return fmt.Errorf("width %d out of the exhaustively-checkable range [1, 6]", w)
	}
	pass := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()

	failures := 0
	for _, op := range selftestOps(w) {
		bad := checkOp(w, op)
		if bad == "" {
			fmt.Printf("  %s %s\n", pass("PASS"), op.name)
		} else {
			failures++
			fmt.Printf("  %s %s: %s\n", fail("FAIL"), op.name, bad)
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d transfer functions unsound", failures)
	}
	fmt.Println("All transfer functions sound.")
	return nil
}

// checkOp exhaustively validates one operator, returning a description of
// the first unsound pair, or "" when clean.
func checkOp(w int, op selftestOp) string {
	var states func(kb known.KnownBits, bit int, fn func(known.KnownBits))
	states = func(kb known.KnownBits, bit int, fn func(known.KnownBits)) {
		if bit == w {
			fn(kb)
			return
		}
		states(kb, bit+1, fn)
		z := kb
		z.Zero = z.Zero.Or(bitvec.OneBit(w, bit))
		states(z, bit+1, fn)
		o := kb
		o.One = o.One.Or(bitvec.OneBit(w, bit))
		states(o, bit+1, fn)
	}

	concrets := func(kb known.KnownBits) []bitvec.Vector {
		var unknown []int
		for i := 0; i < w; i++ {
			if kb.Zero.Bit(i) == 0 && kb.One.Bit(i) == 0 {
				unknown = append(unknown, i)
			}
		}
		out := make([]bitvec.Vector, 0, 1<<len(unknown))
		for m := 0; m < 1<<len(unknown); m++ {
			v := kb.One
			for j, b := range unknown {
				if m&(1<<j) != 0 {
					v = v.Or(bitvec.OneBit(w, b))
				}
			}
			out = append(out, v)
		}
		return out
	}

	rw := op.resWidth(w)
	var problem string
	states(known.Unknown(w), 0, func(a known.KnownBits) {
		if problem != "" {
			return
		}
		states(known.Unknown(w), 0, func(b known.KnownBits) {
			if problem != "" {
				return
			}
			got := op.transfer(a, b)
			if got.HasConflict() {
				problem = fmt.Sprintf("conflict on (%s, %s)", a, b)
				return
			}
			orAll := bitvec.Zero(rw)
			andAll := bitvec.AllOnes(rw)
			any := false
			for _, x := range concrets(a) {
				for _, y := range concrets(b) {
					v, ok := op.concrete(x, y)
					if !ok {
						continue
					}
					any = true
					orAll = orAll.Or(v)
					andAll = andAll.And(v)
				}
			}
			if !any {
				return
			}
			if !got.Zero.And(orAll).IsZero() || !got.One.And(andAll.Not()).IsZero() {
				problem = fmt.Sprintf("unsound on (%s, %s): claimed %s", a, b, got)
			}
		})
	})
	return problem
}
