package prep

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/parcelprep/internal/frame"
)

// numericColumn fetches a column and checks that it is numeric.
func numericColumn(f *frame.Frame, op, name string) (*frame.Column, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, colErr(op, name, ErrMissingColumn)
	}
	if c.Kind != frame.Float {
		return nil, colErr(op, name, fmt.Errorf("%w: want numeric, have %s", ErrColumnKind, c.Kind))
	}
	return c, nil
}

// quantile interpolates linearly between closest ranks of an ascending slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// quartiles returns Q1 and Q3 over the non-null values of c.
func quartiles(c *frame.Column) (q1, q3 float64) {
	vals := c.Floats()
	sort.Float64s(vals)
	return quantile(vals, 0.25), quantile(vals, 0.75)
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// mode returns the most frequent value; ties go to the smallest.
func mode(vals []float64) float64 {
	counts := make(map[float64]int, len(vals))
	for _, v := range vals {
		counts[v]++
	}
	best, bestN := math.NaN(), 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}

// textMode is mode for text columns; ties go to the lexically smallest.
func textMode(c *frame.Column) (string, bool) {
	counts := map[string]int{}
	for i, v := range c.Text {
		if !c.IsNull(i) {
			counts[v]++
		}
	}
	best, bestN := "", 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best, bestN > 0
}

// roundHalfEven rounds x to the given decimal places, ties to even.
func roundHalfEven(x float64, places int) float64 {
	p := math.Pow10(places)
	return math.RoundToEven(x*p) / p
}
