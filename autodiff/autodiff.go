// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff records layer operations and computes gradients in
// reverse mode.
//
// Modules are built with the tape they record on; a nil tape builds an
// inference-only module.
//
//	tape := autodiff.NewGradientTape()
//	tape.StartRecording()
//	logits, _ := model.Forward(x)
//	loss, _ := criterion.Forward(logits, labels)
//	grads := autodiff.Backward(tape, loss)
package autodiff

import (
	"github.com/born-ml/pllay/internal/autodiff"
	"github.com/born-ml/pllay/tensor"
)

// GradientTape records operations for reverse-mode differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates a tape that is not yet recording.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}

// Backward seeds output with ones and returns the gradient of every
// recorded tensor, keyed by tensor.
func Backward(tape *GradientTape, output *tensor.Tensor) map[*tensor.Tensor]*tensor.Tensor {
	return autodiff.Backward(tape, output)
}
