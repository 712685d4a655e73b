package ops

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/pllay/internal/dtm"
	"github.com/born-ml/pllay/internal/grid"
	"github.com/born-ml/pllay/internal/landscape"
	"github.com/born-ml/pllay/internal/parallel"
	"github.com/born-ml/pllay/internal/tensor"
)

func randn(rng *rand.Rand, dims ...int) *tensor.Tensor {
	t := tensor.Zeros(dims...)
	for i := range t.Data() {
		t.Data()[i] = rng.NormFloat64()
	}
	return t
}

// checkGradient compares grad against central finite differences of
// sum(f(x) * upstream) with respect to x.
func checkGradient(t *testing.T, x, upstream, grad *tensor.Tensor, f func() *tensor.Tensor, tol float64) {
	t.Helper()
	const eps = 1e-6
	loss := func() float64 {
		return floats.Dot(f().Data(), upstream.Data())
	}
	data := x.Data()
	for i := range data {
		orig := data[i]
		data[i] = orig + eps
		plus := loss()
		data[i] = orig - eps
		minus := loss()
		data[i] = orig
		assert.InDelta(t, (plus-minus)/(2*eps), grad.Data()[i], tol, "element %d", i)
	}
}

func TestLinearOp(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	x := randn(rng, 3, 4)
	w := randn(rng, 2, 4)
	b := randn(rng, 2)

	op := NewLinearOp(x, w, b)
	require.Equal(t, tensor.Shape{3, 2}, op.Output().Shape())
	for i := 0; i < 3; i++ {
		for o := 0; o < 2; o++ {
			want := floats.Dot(x.Row(i), w.Row(o)) + b.Data()[o]
			assert.InDelta(t, want, op.Output().At(i, o), 1e-12)
		}
	}

	up := randn(rng, 3, 2)
	grads := op.Backward(up)
	require.Len(t, grads, 3)
	f := func() *tensor.Tensor { return NewLinearOp(x, w, b).Output() }
	checkGradient(t, x, up, grads[0], f, 1e-6)
	checkGradient(t, w, up, grads[1], f, 1e-6)
	checkGradient(t, b, up, grads[2], f, 1e-6)
}

func TestLinearOp_NoBias(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	op := NewLinearOp(randn(rng, 2, 3), randn(rng, 5, 3), nil)
	assert.Len(t, op.Inputs(), 2)
	assert.Len(t, op.Backward(randn(rng, 2, 5)), 2)
}

func TestReLUOp(t *testing.T) {
	x := tensor.MustFromSlice([]float64{-2, -0.5, 0, 0.5, 3}, 5)
	op := NewReLUOp(x)
	assert.Equal(t, []float64{0, 0, 0, 0.5, 3}, op.Output().Data())
	grads := op.Backward(tensor.Full(2, 5))
	assert.Equal(t, []float64{0, 0, 0, 2, 2}, grads[0].Data())
	assert.Equal(t, []float64{-2, -0.5, 0, 0.5, 3}, x.Data(), "input must not be modified")
}

func TestCrossEntropyOp(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	logits := randn(rng, 4, 3)
	targets := []int{0, 2, 1, 2}

	op := NewCrossEntropyOp(logits, targets)
	assert.Positive(t, op.Loss())

	up := tensor.MustFromSlice([]float64{1}, 1)
	grads := op.Backward(up)
	checkGradient(t, logits, up, grads[0], func() *tensor.Tensor {
		return NewCrossEntropyOp(logits, targets).Output()
	}, 1e-6)

	// Each row of the gradient sums to zero.
	for b := 0; b < 4; b++ {
		assert.InDelta(t, 0, floats.Sum(grads[0].Row(b)), 1e-12)
	}
}

func TestCrossEntropyOp_UniformLogits(t *testing.T) {
	op := NewCrossEntropyOp(tensor.Zeros(2, 4), []int{1, 3})
	assert.InDelta(t, 1.3862943611198906, op.Loss(), 1e-12) // ln 4
}

func TestSoftmax(t *testing.T) {
	w := Softmax([]float64{0, 0, 0, 1, 2, 3}, 3)
	assert.InDelta(t, 1.0/3, w[0], 1e-12)
	assert.InDelta(t, 1, floats.Sum(w[:3]), 1e-12)
	assert.InDelta(t, 1, floats.Sum(w[3:]), 1e-12)
	assert.Less(t, w[3], w[4])

	// Large logits stay finite.
	w = Softmax([]float64{1000, 1000}, 2)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, w, 1e-12)
	assert.InDelta(t, 1, floats.Sum(w), 1e-12)

	w = Softmax([]float64{1000, -1000, 999}, 3)
	assert.InDelta(t, 1, floats.Sum(w), 1e-12)
	assert.InDelta(t, 0, w[1], 1e-12)

	assert.Panics(t, func() { Softmax([]float64{1, 2, 3}, 2) })
}

func TestWeightedAverageOp(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	land := randn(rng, 2, 2, 3, 4)
	logits := randn(rng, 1, 2, 1, 4)

	op := NewWeightedAverageOp(land, logits)
	require.Equal(t, tensor.Shape{2, 6}, op.Output().Shape())

	w := op.Weights()
	assert.InDelta(t, 1, floats.Sum(w[:4]), 1e-12)
	assert.InDelta(t, 1, floats.Sum(w[4:]), 1e-12)

	var want float64
	for k := 0; k < 4; k++ {
		want += land.At(1, 1, 2, k) * w[4+k]
	}
	assert.InDelta(t, want, op.Output().At(1, 5), 1e-12)

	up := randn(rng, 2, 6)
	grads := op.Backward(up)
	f := func() *tensor.Tensor { return NewWeightedAverageOp(land, logits).Output() }
	checkGradient(t, land, up, grads[0], f, 1e-6)
	checkGradient(t, logits, up, grads[1], f, 1e-6)
}

func TestWeightedAverageOp_UniformLogitsAverage(t *testing.T) {
	land := tensor.MustFromSlice([]float64{1, 3, 2, 6}, 1, 1, 2, 2)
	op := NewWeightedAverageOp(land, tensor.Zeros(1, 1, 1, 2))
	assert.Equal(t, []float64{2, 4}, op.Output().Data())
}

func TestDTMOp(t *testing.T) {
	cfg := dtm.DefaultConfig()
	cfg.Grid = grid.Spec{Lims: [][2]float64{{-1, 1}, {-1, 1}}, Size: []int{4, 4}}
	cfg.M0 = 0.3
	cfg.Parallel = parallel.Serial()
	layer, err := dtm.New(cfg)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(9, 10))
	weights := tensor.Zeros(2, 16)
	for i := range weights.Data() {
		weights.Data()[i] = 0.1 + rng.Float64()
	}
	res, err := layer.Forward(weights)
	require.NoError(t, err)

	op := NewDTMOp(layer, weights, res)
	assert.Same(t, res.Values, op.Output())
	assert.Equal(t, []*tensor.Tensor{weights}, op.Inputs())

	up := randn(rng, 2, 16)
	grads := op.Backward(up)
	want, err := layer.Backward(res, up)
	require.NoError(t, err)
	assert.Equal(t, want.Data(), grads[0].Data())
}

func TestLandscapeOp(t *testing.T) {
	lop, err := landscape.New(landscape.Config{
		TSeq:       []float64{2, 4},
		KMax:       2,
		Dimensions: []int{0},
		GridShape:  []int{1, 3},
		Parallel:   parallel.Serial(),
	}, nil)
	require.NoError(t, err)

	field := tensor.MustFromSlice([]float64{0, 5, 1}, 1, 3)
	land, jac, err := lop.Forward(field)
	require.NoError(t, err)

	op := NewLandscapeOp(lop, field, land, jac)
	assert.Same(t, jac, op.Jacobian())
	assert.Equal(t, []*tensor.Tensor{field}, op.Inputs())

	grads := op.Backward(tensor.Full(1, 1, 1, 2, 2))
	assert.Equal(t, []float64{-2, 1, -1}, grads[0].Data())
}
