// Package optim implements optimization algorithms for training the
// topological layers.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// Frozen parameters and parameters without a gradient are left untouched.
//
// Example usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.DefaultAdamConfig())
//
//	for epoch := range epochs {
//	    tape.Clear()
//	    tape.StartRecording()
//	    logits, _ := model.Forward(input)
//	    loss, _ := criterion.Forward(logits, targets)
//	    grads := autodiff.Backward(tape, loss)
//
//	    optimizer.Step(grads)
//	    optimizer.ZeroGrad()
//	}
package optim

import (
	"fmt"

	"github.com/born-ml/pllay/internal/nn"
	"github.com/born-ml/pllay/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters.
	//
	// Takes the gradient map from autodiff.Backward, keyed by parameter
	// tensor, and updates parameters in-place.
	Step(grads map[*tensor.Tensor]*tensor.Tensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float64

	// StateDict returns the optimizer buffers for checkpoints.
	StateDict() map[string]*tensor.Tensor

	// LoadStateDict restores buffers saved by StateDict.
	LoadStateDict(stateDict map[string]*tensor.Tensor) error
}

var (
	_ Optimizer         = (*SGD)(nil)
	_ Optimizer         = (*Adam)(nil)
	_ nn.OptimizerState = (*SGD)(nil)
	_ nn.OptimizerState = (*Adam)(nil)
)

// getGradient returns the gradient of param, or nil when the parameter is
// frozen or was not part of the computation.
func getGradient(param *nn.Parameter, grads map[*tensor.Tensor]*tensor.Tensor) []float64 {
	if param == nil || param.Frozen() {
		return nil
	}
	grad, ok := grads[param.Tensor()]
	if !ok || grad == nil {
		return nil
	}
	return grad.Data()
}

// buffer returns the buffer of param, creating a zero buffer on first use.
func buffer(buffers map[*nn.Parameter][]float64, param *nn.Parameter) []float64 {
	b, ok := buffers[param]
	if !ok {
		b = make([]float64, param.Tensor().NumElements())
		buffers[param] = b
	}
	return b
}

// saveBuffers exports buffers as "<prefix>.<param index>" tensors.
func saveBuffers(out map[string]*tensor.Tensor, prefix string, params []*nn.Parameter, buffers map[*nn.Parameter][]float64) {
	for i, p := range params {
		b, ok := buffers[p]
		if !ok {
			continue
		}
		data := make([]float64, len(b))
		copy(data, b)
		out[fmt.Sprintf("%s.%d", prefix, i)] = tensor.MustFromSlice(data, p.Tensor().Shape()...)
	}
}

// loadBuffers restores buffers exported by saveBuffers.
func loadBuffers(stateDict map[string]*tensor.Tensor, prefix string, params []*nn.Parameter) (map[*nn.Parameter][]float64, error) {
	buffers := make(map[*nn.Parameter][]float64)
	for i, p := range params {
		t, ok := stateDict[fmt.Sprintf("%s.%d", prefix, i)]
		if !ok {
			continue
		}
		if !t.Shape().Equal(p.Tensor().Shape()) {
			return nil, fmt.Errorf("%s shape mismatch for parameter %d (%s): expected %v, got %v",
				prefix, i, p.Name(), p.Tensor().Shape(), t.Shape())
		}
		data := make([]float64, t.NumElements())
		copy(data, t.Data())
		buffers[p] = data
	}
	return buffers, nil
}
