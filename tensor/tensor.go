// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/pllay/internal/tensor"
)

// Tensor is a dense row-major float64 tensor.
type Tensor = tensor.Tensor

// Shape lists the size of every axis.
type Shape = tensor.Shape

// ErrShapeMismatch is returned when data length or tensor shapes disagree.
var ErrShapeMismatch = tensor.ErrShapeMismatch

// New creates a zero-filled tensor of the given shape.
func New(shape Shape) (*Tensor, error) {
	return tensor.New(shape)
}

// Zeros creates a zero-filled tensor and panics on an invalid shape.
func Zeros(dims ...int) *Tensor {
	return tensor.Zeros(dims...)
}

// Full creates a tensor with every element set to value.
func Full(value float64, dims ...int) *Tensor {
	return tensor.Full(value, dims...)
}

// FromSlice wraps data (without copying) as a tensor of the given shape.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// MustFromSlice is FromSlice that panics on error.
func MustFromSlice(data []float64, dims ...int) *Tensor {
	return tensor.MustFromSlice(data, dims...)
}
