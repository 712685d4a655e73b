// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides SGD and Adam over pllay parameters.
//
// Frozen parameters and parameters that received no gradient are skipped.
//
//	opt := optim.NewAdam(nn.Trainable(model), optim.DefaultAdamConfig())
//	opt.Step(grads)
//	opt.ZeroGrad()
package optim

import (
	"github.com/born-ml/pllay/internal/optim"
	"github.com/born-ml/pllay/nn"
)

// Optimizer is the interface shared by all optimizers.
type Optimizer = optim.Optimizer

// SGD is stochastic gradient descent with optional momentum.
type SGD = optim.SGD

// SGDConfig configures SGD.
type SGDConfig = optim.SGDConfig

// Adam is the Adam optimizer.
type Adam = optim.Adam

// AdamConfig configures Adam.
type AdamConfig = optim.AdamConfig

// DefaultSGDConfig returns LR 0.01 without momentum.
func DefaultSGDConfig() SGDConfig {
	return optim.DefaultSGDConfig()
}

// DefaultAdamConfig returns LR 0.001, betas (0.9, 0.999), eps 1e-8.
func DefaultAdamConfig() AdamConfig {
	return optim.DefaultAdamConfig()
}

// NewSGD creates an SGD optimizer over params.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	return optim.NewSGD(params, config)
}

// NewAdam creates an Adam optimizer over params.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	return optim.NewAdam(params, config)
}
