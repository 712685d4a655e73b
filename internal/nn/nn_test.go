package nn_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/pllay/internal/autodiff"
	"github.com/born-ml/pllay/internal/nn"
	"github.com/born-ml/pllay/internal/tensor"
)

func TestParameter(t *testing.T) {
	data := tensor.MustFromSlice([]float64{1, 2, 3}, 3)
	p := nn.NewParameter("test_param", data)

	assert.Equal(t, "test_param", p.Name())
	assert.Same(t, data, p.Tensor())
	assert.Nil(t, p.Grad())

	grad := tensor.MustFromSlice([]float64{0.1, 0.2, 0.3}, 3)
	p.SetGrad(grad)
	assert.Same(t, grad, p.Grad())
	p.ZeroGrad()
	assert.Nil(t, p.Grad())

	assert.False(t, p.Frozen())
	p.Freeze()
	assert.True(t, p.Frozen())
	p.Unfreeze()
	assert.False(t, p.Frozen())
}

func TestXavierBound(t *testing.T) {
	w := nn.Xavier(newRNG(1), 30, 20, 20, 30)
	require.Equal(t, tensor.Shape{20, 30}, w.Shape())
	bound := math.Sqrt(6.0 / 50)
	for _, v := range w.Data() {
		assert.LessOrEqual(t, math.Abs(v), bound)
	}
}

func TestLinearForward(t *testing.T) {
	l := nn.NewLinear(2, 3, newRNG(1), nil)
	copy(l.Weight().Tensor().Data(), []float64{1, 0, 0, 1, 1, 1})
	copy(l.Bias().Tensor().Data(), []float64{0.5, 0, -1})

	out, err := l.Forward(tensor.MustFromSlice([]float64{2, 3}, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 3, 4}, out.Data())

	_, err = l.Forward(tensor.Zeros(1, 3))
	require.ErrorIs(t, err, nn.ErrShapeMismatch)
}

func TestLinearRecordsOnTape(t *testing.T) {
	tape := autodiff.NewGradientTape()
	tape.StartRecording()
	l := nn.NewLinear(2, 1, newRNG(1), tape)
	copy(l.Weight().Tensor().Data(), []float64{2, -1})

	out, err := l.Forward(tensor.MustFromSlice([]float64{1, 1, 3, 4}, 2, 2))
	require.NoError(t, err)
	grads := autodiff.Backward(tape, out)
	nn.Collect(l.Parameters(), grads)

	// d(sum out)/dW = sum of input rows; d/db = batch size.
	assert.Equal(t, []float64{4, 5}, l.Weight().Grad().Data())
	assert.Equal(t, []float64{2}, l.Bias().Grad().Data())
}

func TestReLU(t *testing.T) {
	out, err := nn.NewReLU(nil).Forward(tensor.MustFromSlice([]float64{-1, 0, 2}, 1, 3))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 2}, out.Data())
	assert.Empty(t, nn.NewReLU(nil).Parameters())
}

func TestCrossEntropyLoss(t *testing.T) {
	loss, err := nn.NewCrossEntropyLoss(nil).Forward(tensor.Zeros(2, 4), []int{0, 3})
	require.NoError(t, err)
	assert.InDelta(t, math.Log(4), loss.Data()[0], 1e-12)

	_, err = nn.NewCrossEntropyLoss(nil).Forward(tensor.Zeros(2, 4), []int{0, 4})
	require.ErrorIs(t, err, nn.ErrUnexpectedInput)
	_, err = nn.NewCrossEntropyLoss(nil).Forward(tensor.Zeros(2, 4), []int{0})
	require.ErrorIs(t, err, nn.ErrShapeMismatch)
}

func TestAccuracy(t *testing.T) {
	logits := tensor.MustFromSlice([]float64{
		0.1, 0.9,
		0.8, 0.2,
		0.3, 0.7,
	}, 3, 2)
	assert.InDelta(t, 2.0/3, nn.Accuracy(logits, []int{1, 0, 0}), 1e-12)
	assert.Zero(t, nn.Accuracy(logits, nil))
	assert.Equal(t, 0, nn.Argmax([]float64{1, 1}))
}

func TestSequentialStateDict(t *testing.T) {
	seq := nn.NewSequential(
		nn.Named{Name: "fc1", Module: nn.NewLinear(3, 2, newRNG(1), nil)},
		nn.Named{Name: "act", Module: nn.NewReLU(nil)},
		nn.Named{Name: "fc2", Module: nn.NewLinear(2, 1, newRNG(2), nil)},
	)
	assert.Equal(t, 3, seq.Len())
	assert.Len(t, seq.Parameters(), 4)
	assert.NotNil(t, seq.Module("act"))
	assert.Nil(t, seq.Module("missing"))

	sd := seq.StateDict()
	assert.ElementsMatch(t, []string{"fc1.weight", "fc1.bias", "fc2.weight", "fc2.bias"}, keys(sd))

	other := nn.NewSequential(
		nn.Named{Name: "fc1", Module: nn.NewLinear(3, 2, newRNG(3), nil)},
		nn.Named{Name: "act", Module: nn.NewReLU(nil)},
		nn.Named{Name: "fc2", Module: nn.NewLinear(2, 1, newRNG(4), nil)},
	)
	require.NoError(t, other.LoadStateDict(sd))
	x := tensor.MustFromSlice([]float64{1, -2, 0.5}, 1, 3)
	want, err := seq.Forward(x)
	require.NoError(t, err)
	got, err := other.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, want.Data(), got.Data())

	delete(sd, "fc2.bias")
	require.ErrorIs(t, other.LoadStateDict(sd), nn.ErrMissingTensor)

	sd["fc2.bias"] = tensor.Zeros(2)
	require.ErrorIs(t, other.LoadStateDict(sd), nn.ErrShapeMismatch)
}

func TestMergeStateDict(t *testing.T) {
	current := map[string]*tensor.Tensor{
		"topo.readout.weight": tensor.Zeros(2, 2),
		"topo.avg.logits":     tensor.Zeros(1, 2),
		"head.weight":         tensor.Zeros(3, 2),
	}
	saved := map[string]*tensor.Tensor{
		"topo.readout.weight": tensor.Full(1, 2, 2),
		"topo.avg.logits":     tensor.Full(1, 1, 3), // shape differs
		"head.weight":         tensor.Full(1, 3, 2),
		"extra":               tensor.Full(1, 1),
	}

	merged, taken := nn.MergeStateDict(current, saved, nn.HeadPrefix)
	assert.Equal(t, []string{"topo.readout.weight"}, taken)
	assert.Same(t, saved["topo.readout.weight"], merged["topo.readout.weight"])
	assert.Same(t, current["topo.avg.logits"], merged["topo.avg.logits"])
	assert.Same(t, current["head.weight"], merged["head.weight"])
	assert.NotContains(t, merged, "extra")
	assert.Zero(t, current["topo.readout.weight"].Data()[0])

	_, taken = nn.MergeStateDict(current, saved)
	assert.Equal(t, []string{"head.weight", "topo.readout.weight"}, taken)
}

func keys(m map[string]*tensor.Tensor) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
