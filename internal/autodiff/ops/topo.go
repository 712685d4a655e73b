package ops

import (
	"github.com/born-ml/pllay/internal/dtm"
	"github.com/born-ml/pllay/internal/landscape"
	"github.com/born-ml/pllay/internal/tensor"
)

// DTMOp represents the weighted distance-to-measure of a weight field.
//
// Backward delegates to the layer's hand-derived gradient, which needs the
// per-cell cutoffs saved in the forward result.
type DTMOp struct {
	layer  *dtm.Layer
	result *dtm.Result
	input  *tensor.Tensor // weights [batch, cells]
}

// NewDTMOp records a DTM forward call.
func NewDTMOp(layer *dtm.Layer, input *tensor.Tensor, result *dtm.Result) *DTMOp {
	return &DTMOp{layer: layer, result: result, input: input}
}

// Backward returns the gradient on the weight field.
func (op *DTMOp) Backward(outputGrad *tensor.Tensor) []*tensor.Tensor {
	grad, err := op.layer.Backward(op.result, outputGrad)
	if err != nil {
		panic(err)
	}
	return []*tensor.Tensor{grad}
}

// Inputs returns [weights].
func (op *DTMOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.input}
}

// Output returns the DTM field [batch, cells].
func (op *DTMOp) Output() *tensor.Tensor {
	return op.result.Values
}

// LandscapeOp represents a persistence landscape computation.
//
// The Jacobian produced by the forward pass is threaded to Backward as a
// constant; it is not an input and receives no gradient.
type LandscapeOp struct {
	op       *landscape.Op
	jacobian *landscape.Jacobian
	input    *tensor.Tensor // field [batch, cells]
	output   *tensor.Tensor // landscape [batch, dims, tseq, kmax]
}

// NewLandscapeOp records a landscape forward call.
func NewLandscapeOp(op *landscape.Op, input, output *tensor.Tensor, jac *landscape.Jacobian) *LandscapeOp {
	return &LandscapeOp{op: op, jacobian: jac, input: input, output: output}
}

// Backward contracts the output gradient with the saved Jacobian.
func (op *LandscapeOp) Backward(outputGrad *tensor.Tensor) []*tensor.Tensor {
	grad, err := op.op.Backward(outputGrad, op.jacobian)
	if err != nil {
		panic(err)
	}
	return []*tensor.Tensor{grad}
}

// Inputs returns [field].
func (op *LandscapeOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.input}
}

// Output returns the landscape tensor.
func (op *LandscapeOp) Output() *tensor.Tensor {
	return op.output
}

// Jacobian returns the saved Jacobian.
func (op *LandscapeOp) Jacobian() *landscape.Jacobian {
	return op.jacobian
}
