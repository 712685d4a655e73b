package nn

import (
	"github.com/born-ml/pllay/internal/autodiff"
	"github.com/born-ml/pllay/internal/autodiff/ops"
	"github.com/born-ml/pllay/internal/tensor"
)

// ReLU is a Rectified Linear Unit activation module: f(x) = max(0, x).
type ReLU struct {
	tape *autodiff.GradientTape
}

// NewReLU creates a new ReLU activation module.
func NewReLU(tape *autodiff.GradientTape) *ReLU {
	return &ReLU{tape: tape}
}

// Forward applies ReLU activation.
func (r *ReLU) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	op := ops.NewReLUOp(input)
	r.tape.Record(op)
	return op.Output(), nil
}

// Parameters returns nil (ReLU has no trainable parameters).
func (r *ReLU) Parameters() []*Parameter {
	return nil
}

// StateDict returns an empty state dict.
func (r *ReLU) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{}
}

// LoadStateDict is a no-op.
func (r *ReLU) LoadStateDict(map[string]*tensor.Tensor) error {
	return nil
}
