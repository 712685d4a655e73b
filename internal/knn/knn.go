// Package knn implements brute-force k-nearest-neighbor search under a
// Minkowski distance, plus the weight-driven neighbor budget used by the DTM
// layer.
//
// Grids are small (a few thousand cells at most), so every search evaluates
// all query/target pairs. There is no spatial index.
package knn

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/pllay/internal/parallel"
)

// Errors returned by the search functions.
var (
	ErrDimensionMismatch = errors.New("knn: point dimension mismatch")
	ErrInvalidK          = errors.New("knn: invalid k")
	ErrInvalidOrder      = errors.New("knn: invalid minkowski order")
)

// Points is a read-only ordered point set. *grid.Grid implements it.
type Points interface {
	Len() int
	Dim() int
	Point(i int) []float64
}

// Cloud is a Points backed by a flat row-major slice.
type Cloud struct {
	Data []float64 // [n * D]
	D    int
}

// Len returns the number of points. A cloud without a dimension is empty.
func (c Cloud) Len() int {
	if c.D <= 0 {
		return 0
	}
	return len(c.Data) / c.D
}

// Validate checks that Data holds whole points of dimension D.
func (c Cloud) Validate() error {
	if c.D <= 0 {
		return fmt.Errorf("%w: cloud dimension %d", ErrDimensionMismatch, c.D)
	}
	if len(c.Data)%c.D != 0 {
		return fmt.Errorf("%w: %d values do not split into points of dimension %d", ErrDimensionMismatch, len(c.Data), c.D)
	}
	return nil
}

// Dim returns the coordinate dimension.
func (c Cloud) Dim() int { return c.D }

// Point returns point i.
func (c Cloud) Point(i int) []float64 { return c.Data[i*c.D : (i+1)*c.D] }

// Distance returns the Minkowski distance of order r between a and b.
//
// r=2 accumulates squared differences and takes a square root, r=1 sums
// absolute differences, and any other r sums |a-b|^r and takes the r-th root.
func Distance(a, b []float64, r float64) float64 {
	return floats.Distance(a, b, r)
}

// ValidateOrder checks that r is a usable Minkowski order.
func ValidateOrder(r float64) error {
	if !(r >= 1) || math.IsInf(r, 0) {
		return fmt.Errorf("%w: r=%v (want finite r >= 1)", ErrInvalidOrder, r)
	}
	return nil
}

// Result holds the k nearest targets of every query, nearest first.
type Result struct {
	N, K  int
	Dist  []float64 // [N * K]
	Index []int     // [N * K]
}

// Row returns the distances and target indices of query i.
func (r *Result) Row(i int) ([]float64, []int) {
	return r.Dist[i*r.K : (i+1)*r.K], r.Index[i*r.K : (i+1)*r.K]
}

// Search returns, for every query point, the k nearest target points.
//
// Ties in distance are broken by target index so results are deterministic.
func Search(queries, targets Points, k int, r float64, cfg parallel.Config) (*Result, error) {
	if err := checkArgs(queries, targets, k, r); err != nil {
		return nil, err
	}

	n, m := queries.Len(), targets.Len()
	res := &Result{N: n, K: k, Dist: make([]float64, n*k), Index: make([]int, n*k)}

	parallel.For(n, func(i int) {
		q := queries.Point(i)
		dist := make([]float64, m)
		order := make([]int, m)
		for j := 0; j < m; j++ {
			dist[j] = Distance(q, targets.Point(j), r)
			order[j] = j
		}
		sortByDistance(order, dist)

		rowDist, rowIdx := res.Row(i)
		for j := 0; j < k; j++ {
			rowIdx[j] = order[j]
			rowDist[j] = dist[order[j]]
		}
	}, cfg)

	return res, nil
}

// SearchBatch runs Search for every query set in the batch against the same
// targets.
func SearchBatch(batch []Points, targets Points, k int, r float64, cfg parallel.Config) ([]*Result, error) {
	out := make([]*Result, len(batch))
	for b, queries := range batch {
		res, err := Search(queries, targets, k, r, cfg)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", b, err)
		}
		out[b] = res
	}
	return out, nil
}

// CheckPoints reports ErrDimensionMismatch unless p is a well-formed point
// set of dimension dim. Point sets with a Validate method are validated too.
func CheckPoints(p Points, dim int) error {
	if v, ok := p.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if p.Dim() != dim {
		return fmt.Errorf("%w: points have dimension %d, want %d", ErrDimensionMismatch, p.Dim(), dim)
	}
	return nil
}

func checkArgs(queries, targets Points, k int, r float64) error {
	if err := CheckPoints(targets, targets.Dim()); err != nil {
		return err
	}
	if err := CheckPoints(queries, targets.Dim()); err != nil {
		return err
	}
	if k <= 0 || k > targets.Len() {
		return fmt.Errorf("%w: k=%d with %d targets", ErrInvalidK, k, targets.Len())
	}
	return ValidateOrder(r)
}

func sortByDistance(order []int, dist []float64) {
	slices.SortFunc(order, func(a, b int) int {
		if c := cmp.Compare(dist[a], dist[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
}
