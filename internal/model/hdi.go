package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrEmptySample is returned when an interval is requested over no values.
var ErrEmptySample = errors.New("empty sample")

// HDI returns the narrowest interval containing floor(prob*n) consecutive
// order statistics of samples. Ties are broken by the lowest lower bound.
func HDI(samples []float64, prob float64) (lo, hi float64, err error) {
	if len(samples) == 0 {
		return 0, 0, ErrEmptySample
	}
	if err := checkProb(prob); err != nil {
		return 0, 0, err
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	lo, hi = hdiSorted(sorted, prob)
	return lo, hi, nil
}

func checkProb(prob float64) error {
	if !(prob > 0 && prob < 1) {
		return fmt.Errorf("hdi probability must be in (0,1), got %v", prob)
	}
	return nil
}

// hdiSorted is HDI over already sorted, non-empty input.
func hdiSorted(sorted []float64, prob float64) (lo, hi float64) {
	n := len(sorted)
	inc := int(math.Floor(prob * float64(n)))
	best, width := 0, math.Inf(1)
	for i := 0; i+inc < n; i++ {
		if w := sorted[i+inc] - sorted[i]; w < width {
			best, width = i, w
		}
	}
	return sorted[best], sorted[best+inc]
}
