package optim

import (
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/pllay/internal/nn"
	"github.com/born-ml/pllay/internal/tensor"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Example:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
type SGD struct {
	params     []*nn.Parameter
	lr         float64
	momentum   float64
	velocities map[*nn.Parameter][]float64
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// DefaultSGDConfig returns LR 0.01 without momentum.
func DefaultSGDConfig() SGDConfig {
	return SGDConfig{LR: 0.01}
}

// NewSGD creates a new SGD optimizer. A zero LR selects the default.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter][]float64),
	}
}

// Step performs a single optimization step.
func (s *SGD) Step(grads map[*tensor.Tensor]*tensor.Tensor) {
	for _, param := range s.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}
		data := param.Tensor().Data()
		if s.momentum == 0 {
			floats.AddScaled(data, -s.lr, grad)
			continue
		}
		velocity := buffer(s.velocities, param)
		floats.Scale(s.momentum, velocity)
		floats.Add(velocity, grad)
		floats.AddScaled(data, -s.lr, velocity)
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	for _, param := range s.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float64) {
	s.lr = lr
}

// StateDict exports the velocity buffers as "velocity.{param_index}".
// Without momentum it is empty.
func (s *SGD) StateDict() map[string]*tensor.Tensor {
	stateDict := make(map[string]*tensor.Tensor)
	if s.momentum != 0 {
		saveBuffers(stateDict, "velocity", s.params, s.velocities)
	}
	return stateDict
}

// LoadStateDict restores velocity buffers. Missing entries start from zero
// on the next step.
func (s *SGD) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	if s.momentum == 0 {
		return nil
	}
	velocities, err := loadBuffers(stateDict, "velocity", s.params)
	if err != nil {
		return err
	}
	s.velocities = velocities
	return nil
}
