package ops

import "github.com/born-ml/pllay/internal/tensor"

// ReLUOp represents a ReLU activation: output = max(0, x).
type ReLUOp struct {
	input  *tensor.Tensor
	output *tensor.Tensor
}

// NewReLUOp applies ReLU to input and returns the recorded operation.
func NewReLUOp(input *tensor.Tensor) *ReLUOp {
	out := input.Clone()
	data := out.Data()
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}
	return &ReLUOp{input: input, output: out}
}

// Backward masks the output gradient with input > 0.
func (op *ReLUOp) Backward(outputGrad *tensor.Tensor) []*tensor.Tensor {
	grad := outputGrad.Clone()
	in := op.input.Data()
	data := grad.Data()
	for i := range data {
		if in[i] <= 0 {
			data[i] = 0
		}
	}
	return []*tensor.Tensor{grad}
}

// Inputs returns [x].
func (op *ReLUOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.input}
}

// Output returns max(0, x).
func (op *ReLUOp) Output() *tensor.Tensor {
	return op.output
}
