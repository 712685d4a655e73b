// Package tensor provides the dense float64 tensor shared by every pllay layer.
//
// Tensors are row-major and own a flat backing slice. Layers treat tensors
// produced by a forward pass as immutable; only parameters are updated in
// place, and only by an optimizer.
package tensor

import (
	"errors"
	"fmt"
	"math"
)

// ErrShapeMismatch is returned when data length or tensor shapes disagree.
var ErrShapeMismatch = errors.New("tensor: shape mismatch")

// Tensor is a dense row-major float64 tensor.
type Tensor struct {
	shape   Shape
	strides []int
	data    []float64
}

// New creates a zero-filled tensor of the given shape.
func New(shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &Tensor{
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
		data:    make([]float64, shape.NumElements()),
	}, nil
}

// Zeros creates a zero-filled tensor and panics on an invalid shape.
//
// Use it for shapes derived from already-validated configuration.
func Zeros(dims ...int) *Tensor {
	t, err := New(Shape(dims))
	if err != nil {
		panic(fmt.Sprintf("tensor.Zeros: %v", err))
	}
	return t
}

// Full creates a tensor with every element set to value.
func Full(value float64, dims ...int) *Tensor {
	t := Zeros(dims...)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// FromSlice wraps data (without copying) as a tensor of the given shape.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(data), shape)
	}
	return &Tensor{
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
		data:    data,
	}, nil
}

// MustFromSlice is FromSlice that panics on error. Intended for tests and literals.
func MustFromSlice(data []float64, dims ...int) *Tensor {
	t, err := FromSlice(data, Shape(dims))
	if err != nil {
		panic(err)
	}
	return t
}

// Shape returns a copy of the tensor shape.
func (t *Tensor) Shape() Shape {
	return t.shape.Clone()
}

// Dim returns the size of axis i.
func (t *Tensor) Dim(i int) int {
	return t.shape[i]
}

// Rank returns the number of axes.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// NumElements returns the number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Data returns the backing slice. Writes are visible through the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// offset converts a multi-index into a flat position.
func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: index rank %d for shape %v", len(idx), t.shape))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", idx, t.shape))
		}
		off += v * t.strides[i]
	}
	return off
}

// At returns the element at the given multi-index.
func (t *Tensor) At(idx ...int) float64 {
	return t.data[t.offset(idx)]
}

// Set stores v at the given multi-index.
func (t *Tensor) Set(v float64, idx ...int) {
	t.data[t.offset(idx)] = v
}

// Row returns the contiguous slice for index i of the leading axis.
func (t *Tensor) Row(i int) []float64 {
	n := t.strides[0]
	if len(t.shape) == 1 {
		n = 1
	}
	return t.data[i*n : (i+1)*n]
}

// Reshape returns a tensor sharing the same data with a new shape.
func (t *Tensor) Reshape(dims ...int) (*Tensor, error) {
	shape := Shape(dims)
	if shape.NumElements() != len(t.data) {
		return nil, fmt.Errorf("%w: cannot reshape %v into %v", ErrShapeMismatch, t.shape, shape)
	}
	return FromSlice(t.data, shape)
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: t.shape.Clone(), strides: t.shape.ComputeStrides(), data: data}
}

// Fill sets every element to v.
func (t *Tensor) Fill(v float64) {
	for i := range t.data {
		t.data[i] = v
	}
}

// AddInPlace accumulates other into t. Shapes must match.
func (t *Tensor) AddInPlace(other *Tensor) error {
	if !t.shape.Equal(other.shape) {
		return fmt.Errorf("%w: %v vs %v", ErrShapeMismatch, t.shape, other.shape)
	}
	for i, v := range other.data {
		t.data[i] += v
	}
	return nil
}

// AllClose reports whether both tensors have the same shape and every pair of
// elements differs by at most tol.
func (t *Tensor) AllClose(other *Tensor, tol float64) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	for i, v := range t.data {
		if math.Abs(v-other.data[i]) > tol {
			return false
		}
	}
	return true
}

// String returns a short description (shape only).
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.shape)
}
