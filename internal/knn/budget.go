package knn

import (
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Budget returns the number of neighbors a single batched KNN call must
// return so that every cell of every sample can reach its weight bound.
//
// For one sample this is the smallest k whose k lightest weights already sum
// to at least the bound: any k neighbors weigh at least that much, so no cell
// needs more. The batch budget is the maximum over samples, capped at the
// number of cells. Individual cells later truncate to their own cutoff.
func Budget(weights [][]float64, bounds []float64) int {
	if len(weights) != len(bounds) {
		panic("knn.Budget: weights and bounds differ in length")
	}
	maxK := 1
	for b, w := range weights {
		sorted := slices.Clone(w)
		slices.Sort(sorted)
		cum := floats.CumSum(make([]float64, len(sorted)), sorted)
		k := sort.SearchFloat64s(cum, bounds[b]) + 1
		if k > len(w) {
			k = len(w)
		}
		maxK = max(maxK, k)
	}
	return maxK
}
