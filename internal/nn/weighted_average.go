package nn

import (
	"fmt"

	"github.com/born-ml/pllay/internal/autodiff"
	"github.com/born-ml/pllay/internal/autodiff/ops"
	"github.com/born-ml/pllay/internal/tensor"
)

// WeightedAverage averages persistence landscapes over their rank axis.
//
// Input [batch, dims, tseq, kmax] becomes [batch, dims*tseq]. The weights are
// a softmax over kmax of a learnable [1, dims, 1, kmax] logit tensor, so
// they are positive and sum to one per homology dimension. Logits start
// equal, which gives every rank weight 1/kmax.
type WeightedAverage struct {
	dims, tseq, kmax int
	logits           *Parameter
	tape             *autodiff.GradientTape
}

// NewWeightedAverage creates the module for dims homology dimensions, tseq
// sample points and kmax landscape functions.
func NewWeightedAverage(dims, tseq, kmax int, tape *autodiff.GradientTape) *WeightedAverage {
	return &WeightedAverage{
		dims:   dims,
		tseq:   tseq,
		kmax:   kmax,
		logits: NewParameter("logits", tensor.Full(1.0/float64(kmax), 1, dims, 1, kmax)),
		tape:   tape,
	}
}

// Forward computes the weighted average.
func (w *WeightedAverage) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if input.Rank() != 4 || input.Dim(1) != w.dims || input.Dim(2) != w.tseq || input.Dim(3) != w.kmax {
		return nil, fmt.Errorf("%w: WeightedAverage expects [batch, %d, %d, %d], got %v",
			ErrShapeMismatch, w.dims, w.tseq, w.kmax, input.Shape())
	}
	op := ops.NewWeightedAverageOp(input, w.logits.Tensor())
	w.tape.Record(op)
	return op.Output(), nil
}

// Weights returns the current softmax weights as a [dims, kmax] tensor.
func (w *WeightedAverage) Weights() *tensor.Tensor {
	return tensor.MustFromSlice(ops.Softmax(w.logits.Tensor().Data(), w.kmax), w.dims, w.kmax)
}

// Logits returns the logit parameter.
func (w *WeightedAverage) Logits() *Parameter {
	return w.logits
}

// Parameters returns [logits].
func (w *WeightedAverage) Parameters() []*Parameter {
	return []*Parameter{w.logits}
}

// StateDict returns {"logits"}.
func (w *WeightedAverage) StateDict() map[string]*tensor.Tensor {
	return paramStateDict(w.logits)
}

// LoadStateDict loads the logits.
func (w *WeightedAverage) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	return loadParams(stateDict, w.logits)
}
