package pruning

import (
	"math/rand/v2"

	"github.com/pranavk/souper/pkg/bitvec"
	"github.com/pranavk/souper/pkg/inst"
	"github.com/pranavk/souper/pkg/interp"
)

// inputSeed fixes the generator: every session sees the same rows.
const inputSeed = 0

// GenerateInputSets produces the concrete rows pruning is attempted on:
// distinct small integers, the all-ones pattern, a 0xFFF pattern, five
// pseudorandom large rows, and five rows bounded by the width to exercise
// the shift-amount regime. Coverage is best-effort: the rows only need to
// falsify cheaply, never to prove.
func GenerateInputSets(inputVars []*inst.Inst) []interp.ValueCache {
	var sets []interp.ValueCache
	rng := rand.New(rand.NewPCG(inputSeed, inputSeed))

	row := make(interp.ValueCache)
	current := uint64(0)
	for _, v := range inputVars {
		if v.K == inst.Var {
			row[v] = interp.Value(bitvec.New(v.Width, current))
			current++
		}
	}
	sets = append(sets, row)

	row = make(interp.ValueCache)
	for _, v := range inputVars {
		if v.K == inst.Var {
			row[v] = interp.Value(bitvec.AllOnes(v.Width))
		}
	}
	sets = append(sets, row)

	row = make(interp.ValueCache)
	for _, v := range inputVars {
		if v.K == inst.Var {
			row[v] = interp.Value(bitvec.New(v.Width, 0xFFF))
		}
	}
	sets = append(sets, row)

	const numLargeInputs = 5
	for i := 0; i < numLargeInputs; i++ {
		row = make(interp.ValueCache)
		for _, v := range inputVars {
			if v.K == inst.Var {
				row[v] = interp.Value(bitvec.New(v.Width, randBelow(rng, bitvec.AllOnes(v.Width).Uint64())))
			}
		}
		sets = append(sets, row)
	}

	const numSmallInputs = 5
	for i := 0; i < numSmallInputs; i++ {
		row = make(interp.ValueCache)
		for _, v := range inputVars {
			if v.K == inst.Var {
				row[v] = interp.Value(bitvec.New(v.Width, randBelow(rng, uint64(v.Width))))
			}
		}
		sets = append(sets, row)
	}

	return sets
}

func randBelow(rng *rand.Rand, bound uint64) uint64 {
	if bound == 0 {
		return 0
	}
	return rng.Uint64N(bound)
}
