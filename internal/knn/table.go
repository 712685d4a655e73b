package knn

import (
	"fmt"

	"github.com/born-ml/pllay/internal/parallel"
)

// Table is the static all-pairs distance table of a point set against
// itself, with every row pre-sorted by distance.
//
// A Table is built once per layer and is safe for concurrent use.
type Table struct {
	n     int
	r     float64
	dist  []float64 // [n * n], dist[i*n+j] = d(i, j)
	order []int32   // [n * n], row i lists targets nearest first
}

// NewTable computes the distance table of points under order r.
func NewTable(points Points, r float64, cfg parallel.Config) (*Table, error) {
	if err := ValidateOrder(r); err != nil {
		return nil, err
	}
	n := points.Len()
	t := &Table{
		n:     n,
		r:     r,
		dist:  make([]float64, n*n),
		order: make([]int32, n*n),
	}

	parallel.For(n, func(i int) {
		p := points.Point(i)
		row := t.dist[i*n : (i+1)*n]
		order := make([]int, n)
		for j := 0; j < n; j++ {
			row[j] = Distance(p, points.Point(j), r)
			order[j] = j
		}
		sortByDistance(order, row)
		dst := t.order[i*n : (i+1)*n]
		for j, idx := range order {
			dst[j] = int32(idx) //nolint:gosec // n is bounded by grid size
		}
	}, cfg)

	return t, nil
}

// Len returns the number of points.
func (t *Table) Len() int {
	return t.n
}

// Order returns the Minkowski order the table was built with.
func (t *Table) Order() float64 {
	return t.r
}

// At returns the distance between points i and j.
func (t *Table) At(i, j int) float64 {
	return t.dist[i*t.n+j]
}

// TopK returns the k nearest points of every point.
func (t *Table) TopK(k int) (*Result, error) {
	if k <= 0 || k > t.n {
		return nil, fmt.Errorf("%w: k=%d with %d points", ErrInvalidK, k, t.n)
	}
	res := &Result{N: t.n, K: k, Dist: make([]float64, t.n*k), Index: make([]int, t.n*k)}
	for i := 0; i < t.n; i++ {
		rowDist, rowIdx := res.Row(i)
		order := t.order[i*t.n : i*t.n+k]
		for j, idx := range order {
			rowIdx[j] = int(idx)
			rowDist[j] = t.dist[i*t.n+int(idx)]
		}
	}
	return res, nil
}
