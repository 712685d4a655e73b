// Package ops defines the differentiable operations recorded on a gradient
// tape.
//
// Each operation is created during the forward pass with its inputs and the
// output it produced, and computes input gradients during the backward pass.
//
// Supported operations:
//   - LinearOp: affine map y = x @ W.T + b
//   - ReLUOp: rectified linear unit (d(ReLU(x))/dx = 1 if x > 0, else 0)
//   - CrossEntropyOp: mean softmax cross-entropy against class indices
//   - DTMOp: weighted distance-to-measure over a grid
//   - LandscapeOp: persistence landscape with a hand-assembled Jacobian
//   - WeightedAverageOp: softmax-weighted sum of landscapes over ranks
package ops

import "github.com/born-ml/pllay/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
// Each operation records its inputs and output during the forward pass,
// and computes input gradients during the backward pass.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor; an
	// entry may be nil when no gradient flows to that input.
	Backward(outputGrad *tensor.Tensor) []*tensor.Tensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.Tensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.Tensor
}
