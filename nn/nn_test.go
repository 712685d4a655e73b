// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/pllay/nn"
	"github.com/born-ml/pllay/tensor"
)

// TestModuleInterface verifies that concrete types implement Module.
func TestModuleInterface(t *testing.T) {
	tests := []struct {
		name   string
		module nn.Module
		input  *tensor.Tensor
	}{
		{name: "Linear", module: nn.NewLinear(10, 5, nil, nil), input: tensor.Full(0.5, 2, 10)},
		{name: "ReLU", module: nn.NewReLU(nil), input: tensor.Full(-1, 2, 3)},
		{name: "WeightedAverage", module: nn.NewWeightedAverage(2, 3, 4, nil), input: tensor.Full(1, 2, 2, 3, 4)},
		{
			name: "Sequential",
			module: nn.NewSequential(
				nn.Named{Name: "fc", Module: nn.NewLinear(10, 5, nil, nil)},
				nn.Named{Name: "relu", Module: nn.NewReLU(nil)},
			),
			input: tensor.Full(0.5, 2, 10),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.module.Forward(tt.input)
			require.NoError(t, err)
			assert.Equal(t, 2, out.Shape()[0])

			sd := tt.module.StateDict()
			require.NotNil(t, sd)
			assert.Len(t, sd, len(tt.module.Parameters()))
			require.NoError(t, tt.module.LoadStateDict(sd))
		})
	}
}
