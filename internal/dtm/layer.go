package dtm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/pllay/internal/grid"
	"github.com/born-ml/pllay/internal/knn"
	"github.com/born-ml/pllay/internal/parallel"
	"github.com/born-ml/pllay/internal/tensor"
)

// KNNMode selects how neighbors are found.
type KNNMode int

const (
	// StaticTable precomputes the grid-to-grid distance table once and reads
	// neighbors from it on every call.
	StaticTable KNNMode = iota
	// BruteForce evaluates query-to-grid distances on every call. It is the
	// only mode that accepts per-sample query points.
	BruteForce
)

// String returns the config name of the mode.
func (m KNNMode) String() string {
	switch m {
	case StaticTable:
		return "static"
	case BruteForce:
		return "brute_force"
	default:
		return fmt.Sprintf("KNNMode(%d)", int(m))
	}
}

// Config configures a DTM layer.
type Config struct {
	M0       float64   // Mass fraction in (0, 1]
	R        float64   // Minkowski order, >= 1
	Grid     grid.Spec // Grid the weight field lives on
	KNN      KNNMode
	Parallel parallel.Config
}

// DefaultConfig returns the MNIST configuration: m0=0.05, r=2, 28x28 grid.
func DefaultConfig() Config {
	return Config{
		M0:       0.05,
		R:        2,
		Grid:     grid.DefaultSpec(),
		KNN:      StaticTable,
		Parallel: parallel.DefaultConfig(),
	}
}

// Validate checks the scalar fields and the grid spec.
func (c Config) Validate() error {
	if !(c.M0 > 0 && c.M0 <= 1) {
		return fmt.Errorf("%w: m0=%v (want 0 < m0 <= 1)", ErrInvalidConfig, c.M0)
	}
	if err := knn.ValidateOrder(c.R); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.KNN != StaticTable && c.KNN != BruteForce {
		return fmt.Errorf("%w: knn mode %v", ErrInvalidConfig, c.KNN)
	}
	return c.Grid.Validate()
}

// Layer turns weight fields into DTM fields. The grid and distance table are
// built once and are read-only afterwards, so a Layer is safe for concurrent
// Forward calls.
type Layer struct {
	cfg   Config
	grid  *grid.Grid
	table *knn.Table // nil in BruteForce mode
}

// New builds the grid (and in StaticTable mode the distance table).
func New(cfg Config) (*Layer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g, err := grid.Build(cfg.Grid)
	if err != nil {
		return nil, err
	}
	l := &Layer{cfg: cfg, grid: g}
	if cfg.KNN == StaticTable {
		l.table, err = knn.NewTable(g, cfg.R, cfg.Parallel)
		if err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Grid returns the layer grid.
func (l *Layer) Grid() *grid.Grid {
	return l.grid
}

// Config returns the layer configuration.
func (l *Layer) Config() Config {
	return l.cfg
}

// Result is the output of a forward call plus the state Backward needs.
type Result struct {
	Values    *tensor.Tensor // [batch, queries]
	neighbors []*knn.Result  // per sample (shared in StaticTable mode)
	cells     [][]Cell       // per sample, per query
	bounds    []float64      // per sample
	numCells  int
}

// Cutoffs returns the k* of every query of sample b.
func (r *Result) Cutoffs(b int) []int {
	out := make([]int, len(r.cells[b]))
	for i, c := range r.cells[b] {
		out[i] = c.Cutoff
	}
	return out
}

// Bound returns the weight bound m0*sum(w) of sample b.
func (r *Result) Bound(b int) float64 {
	return r.bounds[b]
}

// NeighborBudget returns the number of neighbors evaluated per query.
func (r *Result) NeighborBudget() int {
	return r.neighbors[0].K
}

// Forward computes the DTM field on the grid for a [batch, cells] weight field.
func (l *Layer) Forward(weights *tensor.Tensor) (*Result, error) {
	bounds, err := l.bounds(weights)
	if err != nil {
		return nil, err
	}
	k := knn.Budget(rows(weights), bounds)

	var shared *knn.Result
	if l.table != nil {
		shared, err = l.table.TopK(k)
	} else {
		shared, err = knn.Search(l.grid, l.grid, k, l.cfg.R, l.cfg.Parallel)
	}
	if err != nil {
		return nil, err
	}

	neighbors := make([]*knn.Result, weights.Dim(0))
	for b := range neighbors {
		neighbors[b] = shared
	}
	return l.compute(weights, bounds, neighbors)
}

// ForwardPoints computes the DTM of caller-owned query point sets, one per
// sample, against the weighted grid. Every query set must have the same
// length and the grid dimension.
func (l *Layer) ForwardPoints(queries []knn.Points, weights *tensor.Tensor) (*Result, error) {
	bounds, err := l.bounds(weights)
	if err != nil {
		return nil, err
	}
	if len(queries) != weights.Dim(0) {
		return nil, fmt.Errorf("%w: %d query sets for batch of %d", ErrShapeMismatch, len(queries), weights.Dim(0))
	}
	for b, q := range queries {
		if err := knn.CheckPoints(q, l.grid.Dim()); err != nil {
			return nil, fmt.Errorf("sample %d: %w", b, err)
		}
	}
	for b, q := range queries {
		if q.Len() != queries[0].Len() {
			return nil, fmt.Errorf("%w: sample %d has %d queries, sample 0 has %d", ErrShapeMismatch, b, q.Len(), queries[0].Len())
		}
	}
	k := knn.Budget(rows(weights), bounds)
	neighbors, err := knn.SearchBatch(queries, l.grid, k, l.cfg.R, l.cfg.Parallel)
	if err != nil {
		return nil, err
	}
	return l.compute(weights, bounds, neighbors)
}

func (l *Layer) compute(weights *tensor.Tensor, bounds []float64, neighbors []*knn.Result) (*Result, error) {
	batch, queries := weights.Dim(0), neighbors[0].N
	out := &Result{
		Values:    tensor.Zeros(batch, queries),
		neighbors: neighbors,
		cells:     make([][]Cell, batch),
		bounds:    bounds,
		numCells:  weights.Dim(1),
	}
	parallel.For(batch, func(b int) {
		out.cells[b] = make([]Cell, queries)
		Compute(neighbors[b], weights.Row(b), bounds[b], l.cfg.R, out.Values.Row(b), out.cells[b])
	}, l.cfg.Parallel.Coarse())
	return out, nil
}

// Backward returns the gradient of the loss with respect to the weight field,
// given the loss gradient on Result.Values.
func (l *Layer) Backward(res *Result, upstream *tensor.Tensor) (*tensor.Tensor, error) {
	if !upstream.Shape().Equal(res.Values.Shape()) {
		return nil, fmt.Errorf("%w: upstream %v, values %v", ErrShapeMismatch, upstream.Shape(), res.Values.Shape())
	}
	batch := upstream.Dim(0)
	grad := tensor.Zeros(batch, res.numCells)
	parallel.For(batch, func(b int) {
		Gradient(res.neighbors[b], res.cells[b], upstream.Row(b), res.bounds[b], l.cfg.M0, l.cfg.R, grad.Row(b))
	}, l.cfg.Parallel.Coarse())
	return grad, nil
}

// bounds validates the weight field and returns m0*sum(w) per sample.
func (l *Layer) bounds(weights *tensor.Tensor) ([]float64, error) {
	if weights.Rank() != 2 || weights.Dim(1) != l.grid.Len() {
		return nil, fmt.Errorf("%w: weights %v, want [batch, %d]", ErrShapeMismatch, weights.Shape(), l.grid.Len())
	}
	bounds := make([]float64, weights.Dim(0))
	for b := range bounds {
		row := weights.Row(b)
		for i, w := range row {
			if w < 0 || math.IsNaN(w) {
				return nil, fmt.Errorf("%w: sample %d cell %d = %v", ErrNegativeWeight, b, i, w)
			}
		}
		bounds[b] = l.cfg.M0 * floats.Sum(row)
		if bounds[b] <= 0 {
			return nil, fmt.Errorf("%w: sample %d", ErrZeroMass, b)
		}
	}
	return bounds, nil
}

func rows(t *tensor.Tensor) [][]float64 {
	out := make([][]float64, t.Dim(0))
	for b := range out {
		out[b] = t.Row(b)
	}
	return out
}
