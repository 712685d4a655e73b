package nn

import (
	"fmt"

	"github.com/born-ml/pllay/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Parameters are tensors that receive gradients during training. A frozen
// parameter still takes part in the forward pass but optimizers leave it
// untouched.
//
// Example:
//
//	weight := nn.NewParameter("weight", tensor.Zeros(10, 32))
//	weight.Freeze()
type Parameter struct {
	name   string
	tensor *tensor.Tensor
	grad   *tensor.Tensor // set by Collect after a backward pass
	frozen bool
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Grad returns the gradient tensor, or nil before a backward pass.
func (p *Parameter) Grad() *tensor.Tensor {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter) SetGrad(grad *tensor.Tensor) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}

// Freeze disables gradient updates.
func (p *Parameter) Freeze() {
	p.frozen = true
}

// Unfreeze re-enables gradient updates.
func (p *Parameter) Unfreeze() {
	p.frozen = false
}

// Frozen reports whether the parameter is excluded from updates.
func (p *Parameter) Frozen() bool {
	return p.frozen
}

// load copies src into the parameter after checking its shape.
func (p *Parameter) load(src *tensor.Tensor) error {
	if !src.Shape().Equal(p.tensor.Shape()) {
		return fmt.Errorf("%w: %s expects %v, got %v", ErrShapeMismatch, p.name, p.tensor.Shape(), src.Shape())
	}
	copy(p.tensor.Data(), src.Data())
	return nil
}

// Collect copies the gradients of params out of a gradient map produced by
// autodiff.Backward. Parameters absent from grads keep a nil gradient.
func Collect(params []*Parameter, grads map[*tensor.Tensor]*tensor.Tensor) {
	for _, p := range params {
		p.grad = grads[p.tensor]
	}
}
