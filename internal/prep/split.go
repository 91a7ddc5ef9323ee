package prep

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/KaramelBytes/parcelprep/internal/frame"
	"github.com/KaramelBytes/parcelprep/internal/logging"
)

const (
	DefaultTestFrac     = 0.2
	DefaultValidateFrac = 0.3
	DefaultSeed         = 123
)

// Partitions are disjoint row subsets of one cleaned table.
type Partitions struct {
	Train    *frame.Frame
	Validate *frame.Frame
	Test     *frame.Frame
}

// NewRand returns the seeded source Split expects.
func NewRand(seed int64) *rand.Rand { return rand.New(rand.NewSource(seed)) }

// Split shuffles the rows with rng and peels off ceil(testFrac*n) rows for
// test, then ceil(validateFrac*m) of the remaining m rows for validate. The
// rest is train. With the defaults this is roughly 56/24/20.
func Split(f *frame.Frame, rng *rand.Rand, testFrac, validateFrac float64) (Partitions, error) {
	if testFrac <= 0 || testFrac >= 1 || validateFrac <= 0 || validateFrac >= 1 {
		return Partitions{}, fmt.Errorf("split fractions must be in (0,1): test=%v validate=%v", testFrac, validateFrac)
	}
	if rng == nil {
		return Partitions{}, fmt.Errorf("split: nil random source")
	}
	trainValidate, test := shuffleSplit(f.Len(), rng, testFrac)
	train, validate := shuffleSplit(len(trainValidate), rng, validateFrac)

	p := Partitions{
		Train:    f.Take(gather(trainValidate, train)),
		Validate: f.Take(gather(trainValidate, validate)),
		Test:     f.Take(test),
	}
	logging.Info().Int("train", p.Train.Len()).Int("validate", p.Validate.Len()).
		Int("test", p.Test.Len()).Int("columns", f.Width()).Msg("split")
	return p, nil
}

// shuffleSplit permutes 0..n-1 and returns (keep, held) where held has
// ceil(frac*n) positions.
func shuffleSplit(n int, rng *rand.Rand, frac float64) (keep, held []int) {
	perm := rng.Perm(n)
	nHeld := int(math.Ceil(frac * float64(n)))
	return perm[nHeld:], perm[:nHeld]
}

func gather(base, pos []int) []int {
	out := make([]int, len(pos))
	for i, p := range pos {
		out[i] = base[p]
	}
	return out
}
