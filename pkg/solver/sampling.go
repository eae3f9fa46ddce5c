package solver

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// ChanceDriver decides which children of a chance node a traversal visits.
// live lists the children that are possible for the traversing hand. The
// returned scale multiplies the summed values of the picked children so
// that the result estimates the sum over every live child.
type ChanceDriver interface {
	Visit(live []int32, rng *rand.Rand) (picked []int32, scale float64)
	Name() string
}

// Enumerate visits every live child
type Enumerate struct{}

func (Enumerate) Visit(live []int32, _ *rand.Rand) ([]int32, float64) {
	return live, 1
}

func (Enumerate) Name() string { return "enumerate" }

// ExternalSampling visits one live child drawn uniformly. Scaling by the
// number of live children keeps the estimate unbiased.
type ExternalSampling struct{}

func (ExternalSampling) Visit(live []int32, rng *rand.Rand) ([]int32, float64) {
	if len(live) == 0 {
		return nil, 0
	}
	k := rng.IntN(len(live))
	return live[k : k+1], float64(len(live))
}

func (ExternalSampling) Name() string { return "sample" }

// SamplingMode selects a ChanceDriver
type SamplingMode uint8

const (
	SamplingAuto SamplingMode = iota
	SamplingEnumerate
	SamplingExternal
)

func (m SamplingMode) String() string {
	switch m {
	case SamplingEnumerate:
		return "enumerate"
	case SamplingExternal:
		return "sample"
	default:
		return "auto"
	}
}

// ParseSamplingMode accepts "auto", "enumerate" or "sample"
func ParseSamplingMode(s string) (SamplingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return SamplingAuto, nil
	case "enumerate", "exact":
		return SamplingEnumerate, nil
	case "sample", "sampling", "external":
		return SamplingExternal, nil
	default:
		return 0, fmt.Errorf("unknown sampling mode %q", s)
	}
}

// EnumerationBudget is the estimated work per iteration above which auto
// mode switches to sampling. Work is counted as traverser hands times
// nodes times opponent hands.
const EnumerationBudget = 2e9

// SelectDriver picks the driver for a tree whose full enumeration costs
// estimatedWork per iteration
func SelectDriver(mode SamplingMode, estimatedWork float64) ChanceDriver {
	switch mode {
	case SamplingEnumerate:
		return Enumerate{}
	case SamplingExternal:
		return ExternalSampling{}
	}
	if estimatedWork > EnumerationBudget {
		return ExternalSampling{}
	}
	return Enumerate{}
}

// seedHand reseeds src from the solve seed, iteration and hand so a
// traversal draws the same cards whichever worker runs it
func seedHand(src *rand.PCG, seed uint64, iter, hand int) {
	src.Seed(seed^uint64(iter)*0x9e3779b97f4a7c15, uint64(hand)+1)
}
