package ops

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/pllay/internal/tensor"
)

// LinearOp represents an affine map: output = input @ weight.T + bias.
//
// Shapes: input [batch, in], weight [out, in], bias [out], output [batch, out].
//
// Backward pass:
//   - d/dinput  = outputGrad @ weight
//   - d/dweight = outputGrad.T @ input
//   - d/dbias   = sum of outputGrad over the batch
type LinearOp struct {
	input  *tensor.Tensor
	weight *tensor.Tensor
	bias   *tensor.Tensor
	output *tensor.Tensor
}

// NewLinearOp computes the affine map and returns the recorded operation.
// bias may be nil.
func NewLinearOp(input, weight, bias *tensor.Tensor) *LinearOp {
	batch, in := input.Dim(0), input.Dim(1)
	out := weight.Dim(0)
	if weight.Dim(1) != in {
		panic(fmt.Sprintf("LinearOp: input has %d features, weight expects %d", in, weight.Dim(1)))
	}

	output := tensor.Zeros(batch, out)
	y := mat.NewDense(batch, out, output.Data())
	y.Mul(dense(input), dense(weight).T())
	if bias != nil {
		for b := 0; b < batch; b++ {
			floats.Add(output.Row(b), bias.Data())
		}
	}
	return &LinearOp{input: input, weight: weight, bias: bias, output: output}
}

// Backward computes gradients for input, weight and bias.
func (op *LinearOp) Backward(outputGrad *tensor.Tensor) []*tensor.Tensor {
	g := dense(outputGrad)

	gradInput := tensor.Zeros(op.input.Shape()...)
	dx := mat.NewDense(op.input.Dim(0), op.input.Dim(1), gradInput.Data())
	dx.Mul(g, dense(op.weight))

	gradWeight := tensor.Zeros(op.weight.Shape()...)
	dw := mat.NewDense(op.weight.Dim(0), op.weight.Dim(1), gradWeight.Data())
	dw.Mul(g.T(), dense(op.input))

	grads := []*tensor.Tensor{gradInput, gradWeight}
	if op.bias != nil {
		gradBias := tensor.Zeros(op.bias.Shape()...)
		for b := 0; b < outputGrad.Dim(0); b++ {
			floats.Add(gradBias.Data(), outputGrad.Row(b))
		}
		grads = append(grads, gradBias)
	}
	return grads
}

// Inputs returns [input, weight] or [input, weight, bias].
func (op *LinearOp) Inputs() []*tensor.Tensor {
	if op.bias != nil {
		return []*tensor.Tensor{op.input, op.weight, op.bias}
	}
	return []*tensor.Tensor{op.input, op.weight}
}

// Output returns the affine map result.
func (op *LinearOp) Output() *tensor.Tensor {
	return op.output
}

// dense views a rank-2 tensor as a gonum matrix sharing its data.
func dense(t *tensor.Tensor) *mat.Dense {
	if t.Rank() != 2 {
		panic(fmt.Sprintf("ops: expected rank-2 tensor, got shape %v", t.Shape()))
	}
	return mat.NewDense(t.Dim(0), t.Dim(1), t.Data())
}
