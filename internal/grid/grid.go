// Package grid builds the fixed coordinate point set that a DTM layer
// measures distances on.
//
// There is one point per input cell, ordered to match a row-major flattened
// image: for a 2-D grid the point of pixel (row, col) is (x[col], y[row]); for a
// 3-D grid the point of voxel (ch, row, col) is (c[ch], x[col], y[row]).
package grid

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/pllay/internal/tensor"
)

// Errors returned by Build.
var (
	ErrShapeMismatch = errors.New("grid: lims and size/by have different lengths")
	ErrInvalidSpec   = errors.New("grid: invalid spec")
)

// Spec describes a grid. Exactly one of Size and By must be set.
//
// Axes are listed in image order: (H, W) for one channel, (C, H, W) for
// multi-channel input.
type Spec struct {
	// Lims holds the [start, end] coordinate range of every axis.
	Lims [][2]float64
	// Size is the number of points per axis. Points are evenly spaced and
	// include both ends.
	Size []int
	// By is the step per axis. Points run from start to end inclusive.
	By []float64
	// ReverseFirstAxis walks the first axis from end to start.
	ReverseFirstAxis bool
}

// DefaultSpec returns the 28x28 grid on [-1, 1]^2 used for MNIST digits, with
// rows running top (1) to bottom (-1).
func DefaultSpec() Spec {
	return Spec{
		Lims: [][2]float64{{1, -1}, {-1, 1}},
		Size: []int{28, 28},
	}
}

// Grid is an immutable ordered point set.
type Grid struct {
	points []float64 // [n * dim], row-major
	dim    int
	size   []int
}

// Build constructs the grid described by spec.
func Build(spec Spec) (*Grid, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	axes := make([][]float64, len(spec.Lims))
	for i, lim := range spec.Lims {
		if len(spec.Size) > 0 {
			axes[i] = linspace(lim[0], lim[1], spec.Size[i])
		} else {
			axes[i] = arange(lim[0], lim[1], spec.By[i])
		}
	}
	if spec.ReverseFirstAxis {
		reverse(axes[0])
	}

	size := make([]int, len(axes))
	n := 1
	for i, ax := range axes {
		size[i] = len(ax)
		n *= len(ax)
	}

	dim := len(axes)
	perm := permutation(dim)
	points := make([]float64, n*dim)
	strides := tensor.Shape(size).ComputeStrides()
	tuple := make([]float64, dim)
	for i := 0; i < n; i++ {
		rem := i
		for a := 0; a < dim; a++ {
			tuple[a] = axes[a][rem/strides[a]]
			rem %= strides[a]
		}
		p := points[i*dim : (i+1)*dim]
		for c, src := range perm {
			p[c] = tuple[src]
		}
	}

	return &Grid{points: points, dim: dim, size: size}, nil
}

// Validate checks spec without building the grid.
func (s Spec) Validate() error {
	d := len(s.Lims)
	if d != 2 && d != 3 {
		return fmt.Errorf("%w: %d axes, want 2 or 3", ErrInvalidSpec, d)
	}
	hasSize, hasBy := len(s.Size) > 0, len(s.By) > 0
	switch {
	case hasSize == hasBy:
		return fmt.Errorf("%w: exactly one of size and by must be given", ErrInvalidSpec)
	case hasSize && len(s.Size) != d:
		return fmt.Errorf("%w: %d lims, %d sizes", ErrShapeMismatch, d, len(s.Size))
	case hasBy && len(s.By) != d:
		return fmt.Errorf("%w: %d lims, %d steps", ErrShapeMismatch, d, len(s.By))
	}
	for i, lim := range s.Lims {
		if math.IsNaN(lim[0]) || math.IsNaN(lim[1]) || math.IsInf(lim[0], 0) || math.IsInf(lim[1], 0) {
			return fmt.Errorf("%w: axis %d has non-finite limits %v", ErrInvalidSpec, i, lim)
		}
		if hasSize {
			if s.Size[i] <= 0 {
				return fmt.Errorf("%w: axis %d size %d", ErrInvalidSpec, i, s.Size[i])
			}
			continue
		}
		step := s.By[i]
		if step == 0 || math.IsNaN(step) {
			return fmt.Errorf("%w: axis %d step %v", ErrInvalidSpec, i, step)
		}
		if (lim[1]-lim[0])/step < 0 {
			return fmt.Errorf("%w: axis %d step %v points away from end %v", ErrInvalidSpec, i, step, lim[1])
		}
	}
	return nil
}

// Len returns the number of points.
func (g *Grid) Len() int {
	return len(g.points) / g.dim
}

// Dim returns the coordinate dimension (2 or 3).
func (g *Grid) Dim() int {
	return g.dim
}

// Size returns the per-axis point counts in image order.
func (g *Grid) Size() []int {
	out := make([]int, len(g.size))
	copy(out, g.size)
	return out
}

// Point returns the coordinates of point i. The slice aliases the grid and
// must not be modified.
func (g *Grid) Point(i int) []float64 {
	return g.points[i*g.dim : (i+1)*g.dim]
}

// Tensor returns a copy of the points as an [n, dim] tensor.
func (g *Grid) Tensor() *tensor.Tensor {
	data := make([]float64, len(g.points))
	copy(data, g.points)
	return tensor.MustFromSlice(data, g.Len(), g.dim)
}

// permutation maps output columns to axis order so that 2-D points read
// (col, row) and 3-D points read (channel, col, row).
func permutation(dim int) []int {
	if dim == 3 {
		return []int{0, 2, 1}
	}
	return []int{1, 0}
}

func linspace(start, end float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	return floats.Span(out, start, end)
}

// arange returns start, start+step, ... up to and including end. A relative
// tolerance absorbs the rounding of steps such as 1/13.5.
func arange(start, end, step float64) []float64 {
	n := int(math.Floor((end-start)/step+1e-9)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func reverse(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
