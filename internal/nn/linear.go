package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/pllay/internal/autodiff"
	"github.com/born-ml/pllay/internal/autodiff/ops"
	"github.com/born-ml/pllay/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//
// Weights are initialized using Xavier/Glorot initialization.
// Biases are initialized to zeros.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter
	bias        *Parameter
	tape        *autodiff.GradientTape
}

// NewLinear creates a new Linear layer recording on tape (nil for inference).
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand, tape *autodiff.GradientTape) *Linear {
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", Xavier(rng, inFeatures, outFeatures, outFeatures, inFeatures)),
		bias:        NewParameter("bias", tensor.Zeros(outFeatures)),
		tape:        tape,
	}
}

// Forward computes y = x @ W.T + b for x of shape [batch_size, in_features].
func (l *Linear) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if input.Rank() != 2 || input.Dim(1) != l.inFeatures {
		return nil, fmt.Errorf("%w: Linear expects [batch, %d], got %v", ErrShapeMismatch, l.inFeatures, input.Shape())
	}
	op := ops.NewLinearOp(input, l.weight.Tensor(), l.bias.Tensor())
	l.tape.Record(op)
	return op.Output(), nil
}

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// StateDict returns {"weight", "bias"}.
func (l *Linear) StateDict() map[string]*tensor.Tensor {
	return paramStateDict(l.weight, l.bias)
}

// LoadStateDict loads weight and bias.
func (l *Linear) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	return loadParams(stateDict, l.weight, l.bias)
}
