package optim_test

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/pllay/internal/nn"
	"github.com/born-ml/pllay/internal/optim"
	"github.com/born-ml/pllay/internal/tensor"
)

func scalarParam(name string, v float64) *nn.Parameter {
	return nn.NewParameter(name, tensor.MustFromSlice([]float64{v}, 1))
}

func gradOf(p *nn.Parameter, g float64) map[*tensor.Tensor]*tensor.Tensor {
	return map[*tensor.Tensor]*tensor.Tensor{p.Tensor(): tensor.MustFromSlice([]float64{g}, 1)}
}

func TestSGD_SimpleUpdate(t *testing.T) {
	x := scalarParam("x", 2)
	opt := optim.NewSGD([]*nn.Parameter{x}, optim.SGDConfig{LR: 0.1})
	opt.Step(gradOf(x, 1))
	assert.InDelta(t, 1.9, x.Tensor().Data()[0], 1e-12)
}

func TestSGD_WithMomentum(t *testing.T) {
	x := scalarParam("x", 1)
	opt := optim.NewSGD([]*nn.Parameter{x}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})

	opt.Step(gradOf(x, 1)) // v = 1, x = 0.9
	assert.InDelta(t, 0.9, x.Tensor().Data()[0], 1e-12)
	opt.Step(gradOf(x, 1)) // v = 1.9, x = 0.71
	assert.InDelta(t, 0.71, x.Tensor().Data()[0], 1e-12)
}

func TestSGD_Defaults(t *testing.T) {
	opt := optim.NewSGD(nil, optim.SGDConfig{})
	assert.InDelta(t, optim.DefaultSGDConfig().LR, opt.GetLR(), 0)
	opt.SetLR(0.5)
	assert.InDelta(t, 0.5, opt.GetLR(), 0)
}

func TestAdam_FirstStep(t *testing.T) {
	x := scalarParam("x", 1)
	opt := optim.NewAdam([]*nn.Parameter{x}, optim.AdamConfig{LR: 0.01})

	// After bias correction the first step is lr * sign(grad).
	opt.Step(gradOf(x, 4))
	assert.InDelta(t, 0.99, x.Tensor().Data()[0], 1e-8)
	assert.Equal(t, 1, opt.GetTimestep())
}

func TestOptimizers_SkipFrozenAndMissing(t *testing.T) {
	for name, mk := range map[string]func([]*nn.Parameter) optim.Optimizer{
		"sgd":  func(p []*nn.Parameter) optim.Optimizer { return optim.NewSGD(p, optim.SGDConfig{LR: 0.1, Momentum: 0.5}) },
		"adam": func(p []*nn.Parameter) optim.Optimizer { return optim.NewAdam(p, optim.DefaultAdamConfig()) },
	} {
		t.Run(name, func(t *testing.T) {
			frozen := scalarParam("frozen", 1)
			frozen.Freeze()
			missing := scalarParam("missing", 2)
			live := scalarParam("live", 3)
			opt := mk([]*nn.Parameter{frozen, missing, live})

			grads := gradOf(live, 1)
			grads[frozen.Tensor()] = tensor.MustFromSlice([]float64{1}, 1)
			opt.Step(grads)

			assert.InDelta(t, 1.0, frozen.Tensor().Data()[0], 0)
			assert.InDelta(t, 2.0, missing.Tensor().Data()[0], 0)
			assert.Less(t, live.Tensor().Data()[0], 3.0)
		})
	}
}

func TestOptimizers_Converge(t *testing.T) {
	// Minimize (x - 3)^2.
	for name, mk := range map[string]func([]*nn.Parameter) optim.Optimizer{
		"sgd":  func(p []*nn.Parameter) optim.Optimizer { return optim.NewSGD(p, optim.SGDConfig{LR: 0.1, Momentum: 0.5}) },
		"adam": func(p []*nn.Parameter) optim.Optimizer { return optim.NewAdam(p, optim.AdamConfig{LR: 0.1}) },
	} {
		t.Run(name, func(t *testing.T) {
			x := scalarParam("x", 0)
			opt := mk([]*nn.Parameter{x})
			for range 500 {
				v := x.Tensor().Data()[0]
				opt.Step(gradOf(x, 2*(v-3)))
				opt.ZeroGrad()
			}
			assert.InDelta(t, 3.0, x.Tensor().Data()[0], 1e-2)
		})
	}
}

func TestZeroGrad(t *testing.T) {
	x := scalarParam("x", 0)
	x.SetGrad(tensor.MustFromSlice([]float64{1}, 1))
	optim.NewAdam([]*nn.Parameter{x}, optim.AdamConfig{}).ZeroGrad()
	assert.Nil(t, x.Grad())
}

func TestAdam_StateDictRoundTrip(t *testing.T) {
	x := scalarParam("x", 1)
	y := scalarParam("y", 1)
	a := optim.NewAdam([]*nn.Parameter{x}, optim.AdamConfig{LR: 0.01})
	b := optim.NewAdam([]*nn.Parameter{y}, optim.AdamConfig{LR: 0.01})
	a.Step(gradOf(x, 0.5))
	b.Step(gradOf(y, 0.5))

	c := optim.NewAdam([]*nn.Parameter{y}, optim.AdamConfig{LR: 0.01})
	require.NoError(t, c.LoadStateDict(b.StateDict()))
	assert.Equal(t, 1, c.GetTimestep())

	// The restored optimizer continues exactly like the original.
	a.Step(gradOf(x, -0.2))
	c.Step(gradOf(y, -0.2))
	assert.InDelta(t, x.Tensor().Data()[0], y.Tensor().Data()[0], 1e-15)

	require.Error(t, c.LoadStateDict(map[string]*tensor.Tensor{}))
	bad := b.StateDict()
	bad["m.0"] = tensor.Zeros(2)
	require.Error(t, c.LoadStateDict(bad))
}

func TestSGD_StateDictRoundTrip(t *testing.T) {
	x := scalarParam("x", 1)
	opt := optim.NewSGD([]*nn.Parameter{x}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	assert.Empty(t, opt.StateDict())
	opt.Step(gradOf(x, 1))

	sd := opt.StateDict()
	require.Contains(t, sd, "velocity.0")
	assert.Equal(t, []float64{1}, sd["velocity.0"].Data())

	y := scalarParam("y", 0.9)
	restored := optim.NewSGD([]*nn.Parameter{y}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	require.NoError(t, restored.LoadStateDict(sd))
	restored.Step(gradOf(y, 1))
	assert.InDelta(t, 0.71, y.Tensor().Data()[0], 1e-12)
}

func TestCheckpointWithOptimizer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ckpt.pllay")
	model := nn.NewLinear(3, 2, nil, nil)
	opt := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.05})
	grads := map[*tensor.Tensor]*tensor.Tensor{
		model.Weight().Tensor(): tensor.Full(0.1, 2, 3),
		model.Bias().Tensor():   tensor.Full(-0.2, 2),
	}
	opt.Step(grads)

	ckpt := &nn.Checkpoint{Model: model, Optimizer: opt, Epoch: 4}
	require.NoError(t, ckpt.Save(path))

	model2 := nn.NewLinear(3, 2, nil, nil)
	opt2 := optim.NewAdam(model2.Parameters(), optim.AdamConfig{LR: 0.05})
	loaded, err := nn.LoadCheckpoint(path, model2, opt2)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Epoch)
	assert.Equal(t, 1, opt2.GetTimestep())
	assert.Equal(t, model.Weight().Tensor().Data(), model2.Weight().Tensor().Data())

	grads2 := map[*tensor.Tensor]*tensor.Tensor{
		model2.Weight().Tensor(): tensor.Full(0.1, 2, 3),
		model2.Bias().Tensor():   tensor.Full(-0.2, 2),
	}
	opt.Step(grads)
	opt2.Step(grads2)
	for i, v := range model.Weight().Tensor().Data() {
		assert.InDelta(t, v, model2.Weight().Tensor().Data()[i], 1e-15)
	}
	assert.False(t, math.IsNaN(model2.Bias().Tensor().Data()[0]))
}
