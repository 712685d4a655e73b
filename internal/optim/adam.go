package optim

import (
	"errors"
	"math"

	"github.com/born-ml/pllay/internal/nn"
	"github.com/born-ml/pllay/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	params []*nn.Parameter
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64
	t      int // Timestep for bias correction
	m      map[*nn.Parameter][]float64
	v      map[*nn.Parameter][]float64
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float64    // Learning rate (default: 0.001)
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// DefaultAdamConfig returns LR 0.001, betas (0.9, 0.999), eps 1e-8.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{LR: 0.001, Betas: [2]float64{0.9, 0.999}, Eps: 1e-8}
}

// NewAdam creates a new Adam optimizer. Zero fields take their defaults.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	def := DefaultAdamConfig()
	if config.LR == 0 {
		config.LR = def.LR
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = def.Betas[0]
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = def.Betas[1]
	}
	if config.Eps == 0 {
		config.Eps = def.Eps
	}
	return &Adam{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[*nn.Parameter][]float64),
		v:      make(map[*nn.Parameter][]float64),
	}
}

// Step performs a single optimization step. Parameters with no gradient are
// skipped and their moments are not decayed.
func (a *Adam) Step(grads map[*tensor.Tensor]*tensor.Tensor) {
	a.t++
	biasCorrection1 := 1.0 - math.Pow(a.beta1, float64(a.t))
	biasCorrection2 := 1.0 - math.Pow(a.beta2, float64(a.t))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}
		m := buffer(a.m, param)
		v := buffer(a.v, param)
		data := param.Tensor().Data()
		for i, g := range grad {
			m[i] = a.beta1*m[i] + (1.0-a.beta1)*g
			v[i] = a.beta2*v[i] + (1.0-a.beta2)*g*g
			mHat := m[i] / biasCorrection1
			vHat := v[i] / biasCorrection2
			data[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float64 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float64) {
	a.lr = lr
}

// GetTimestep returns the current timestep.
func (a *Adam) GetTimestep() int {
	return a.t
}

// StateDict exports "step", "m.{i}" and "v.{i}".
func (a *Adam) StateDict() map[string]*tensor.Tensor {
	stateDict := map[string]*tensor.Tensor{
		"step": tensor.MustFromSlice([]float64{float64(a.t)}, 1),
	}
	saveBuffers(stateDict, "m", a.params, a.m)
	saveBuffers(stateDict, "v", a.params, a.v)
	return stateDict
}

// LoadStateDict restores the timestep and both moment buffers.
func (a *Adam) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	step, ok := stateDict["step"]
	if !ok || step.NumElements() != 1 {
		return errors.New("adam state: missing step")
	}
	m, err := loadBuffers(stateDict, "m", a.params)
	if err != nil {
		return err
	}
	v, err := loadBuffers(stateDict, "v", a.params)
	if err != nil {
		return err
	}
	a.t = int(step.Data()[0])
	a.m, a.v = m, v
	return nil
}
