// Package dtm computes the weighted distance-to-measure (DTM) field of a
// weight field on a fixed grid, and its gradient with respect to the weights.
//
// For a cell x with neighbors sorted by distance d_j and weights w_j, the DTM
// accumulates neighbors until their weight reaches the bound m0 * sum(w). The
// last neighbor contributes only the part of its weight still needed:
//
//	dtm(x)^r = ( sum_{j<k*} w_j d_j^r + d_{k*}^r (bound - sum_{j<k*} w_j) ) / bound
package dtm

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/pllay/internal/knn"
)

// Errors returned by the DTM layer.
var (
	ErrInvalidConfig  = errors.New("dtm: invalid config")
	ErrShapeMismatch  = errors.New("dtm: shape mismatch")
	ErrZeroMass       = errors.New("dtm: weight field has zero total mass")
	ErrNegativeWeight = errors.New("dtm: negative weight")
)

// cutoff returns the index of the first neighbor whose cumulative weight
// reaches bound.
//
// When rounding leaves the total just short of the bound the search runs
// past the last neighbor; the index is clamped to it so that neighbor absorbs
// the shortfall.
func cutoff(cumWeight []float64, bound float64) int {
	k := sort.SearchFloat64s(cumWeight, bound)
	if k >= len(cumWeight) {
		k = len(cumWeight) - 1
	}
	return k
}

// powR returns d^r with exact forms for r=1 and r=2.
func powR(d, r float64) float64 {
	switch r {
	case 1:
		return d
	case 2:
		return d * d
	default:
		return math.Pow(d, r)
	}
}

// rootR returns v^(1/r) with exact forms for r=1 and r=2.
func rootR(v, r float64) float64 {
	switch r {
	case 1:
		return v
	case 2:
		return math.Sqrt(v)
	default:
		return math.Pow(v, 1/r)
	}
}

// rootRDeriv returns d(v^(1/r))/dv. It is zero at v=0, where the root has a
// vertical tangent for r>1.
func rootRDeriv(v, r float64) float64 {
	if v <= 0 {
		if r == 1 {
			return 1
		}
		return 0
	}
	switch r {
	case 1:
		return 1
	case 2:
		return 0.5 / math.Sqrt(v)
	default:
		return math.Pow(v, 1/r-1) / r
	}
}

// Cell is the DTM state of one cell, kept for the backward pass.
type Cell struct {
	Cutoff int     // k*, index into the cell's neighbor row
	Mass   float64 // dtm^r, before the root
}

// Compute evaluates the DTM of every query in neighbors under one weight
// field. bound is m0 times the total weight and must be positive.
//
// values and cells must have length neighbors.N.
func Compute(neighbors *knn.Result, weight []float64, bound, r float64, values []float64, cells []Cell) {
	if len(values) != neighbors.N || len(cells) != neighbors.N {
		panic(fmt.Sprintf("dtm.Compute: %d queries, %d values, %d cells", neighbors.N, len(values), len(cells)))
	}
	cum := make([]float64, neighbors.K)
	for i := 0; i < neighbors.N; i++ {
		dist, idx := neighbors.Row(i)
		for j, n := range idx {
			cum[j] = weight[n]
		}
		floats.CumSum(cum, cum)

		k := cutoff(cum, bound)
		var acc float64
		for j := 0; j < k; j++ {
			acc += weight[idx[j]] * powR(dist[j], r)
		}
		before := 0.0
		if k > 0 {
			before = cum[k-1]
		}
		acc += powR(dist[k], r) * (bound - before)

		mass := math.Max(acc/bound, 0)
		cells[i] = Cell{Cutoff: k, Mass: mass}
		values[i] = rootR(mass, r)
	}
}

// Gradient accumulates into grad the gradient of sum_i upstream[i]*dtm[i]
// with respect to the weight field, given the cells saved by Compute.
//
// The cutoffs k* are piecewise constant in the weights and carry no
// gradient. Every weight also moves the bound through m0.
func Gradient(neighbors *knn.Result, cells []Cell, upstream []float64, bound, m0, r float64, grad []float64) {
	var shared float64
	for i := 0; i < neighbors.N; i++ {
		g := upstream[i]
		if g == 0 {
			continue
		}
		c := cells[i]
		coef := g * rootRDeriv(c.Mass, r) / bound
		if coef == 0 {
			continue
		}
		dist, idx := neighbors.Row(i)
		last := powR(dist[c.Cutoff], r)
		for j := 0; j < c.Cutoff; j++ {
			grad[idx[j]] += coef * (powR(dist[j], r) - last)
		}
		shared += coef * (last - c.Mass)
	}
	if shared == 0 {
		return
	}
	for m := range grad {
		grad[m] += shared * m0
	}
}
