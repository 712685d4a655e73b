package autodiff

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/pllay/internal/autodiff/ops"
	"github.com/born-ml/pllay/internal/tensor"
)

func TestTape_Recording(t *testing.T) {
	tape := NewGradientTape()
	assert.False(t, tape.IsRecording())

	x := tensor.Full(1, 2)
	tape.Record(ops.NewReLUOp(x))
	assert.Equal(t, 0, tape.NumOps(), "ops are ignored while not recording")

	tape.StartRecording()
	tape.Record(ops.NewReLUOp(x))
	assert.Equal(t, 1, tape.NumOps())

	tape.Clear()
	assert.Equal(t, 0, tape.NumOps())
	assert.True(t, tape.IsRecording(), "Clear preserves recording state")

	tape.StopRecording()
	assert.False(t, tape.IsRecording())
}

func TestTape_NilIsInert(t *testing.T) {
	var tape *GradientTape
	assert.False(t, tape.IsRecording())
	assert.NotPanics(t, func() { tape.Record(ops.NewReLUOp(tensor.Full(1, 1))) })
}

func TestBackward_Chain(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	randn := func(dims ...int) *tensor.Tensor {
		out := tensor.Zeros(dims...)
		for i := range out.Data() {
			out.Data()[i] = rng.NormFloat64()
		}
		return out
	}
	x := randn(4, 3)
	w1, b1 := randn(5, 3), randn(5)
	w2, b2 := randn(2, 5), randn(2)
	targets := []int{0, 1, 1, 0}

	forward := func(tape *GradientTape) *ops.CrossEntropyOp {
		h := ops.NewLinearOp(x, w1, b1)
		tape.Record(h)
		a := ops.NewReLUOp(h.Output())
		tape.Record(a)
		o := ops.NewLinearOp(a.Output(), w2, b2)
		tape.Record(o)
		loss := ops.NewCrossEntropyOp(o.Output(), targets)
		tape.Record(loss)
		return loss
	}

	tape := NewGradientTape()
	tape.StartRecording()
	loss := forward(tape)
	require.Equal(t, 4, tape.NumOps())
	grads := Backward(tape, loss.Output())
	assert.True(t, tape.IsRecording(), "recording state restored")

	const eps = 1e-6
	for _, p := range []*tensor.Tensor{w1, b1, w2, b2} {
		g, ok := grads[p]
		require.True(t, ok)
		for i := range p.Data() {
			orig := p.Data()[i]
			p.Data()[i] = orig + eps
			plus := forward(nil).Loss()
			p.Data()[i] = orig - eps
			minus := forward(nil).Loss()
			p.Data()[i] = orig
			assert.InDelta(t, (plus-minus)/(2*eps), g.Data()[i], 1e-6)
		}
	}
}

func TestBackward_AccumulatesSharedInputs(t *testing.T) {
	// x @ x.T for a 1x1 x is x², so the gradient reaches x through both
	// inputs of the same op and must sum to 2x.
	x := tensor.MustFromSlice([]float64{3}, 1, 1)
	tape := NewGradientTape()
	tape.StartRecording()
	sq := ops.NewLinearOp(x, x, nil)
	tape.Record(sq)

	grads := Backward(tape, sq.Output())
	assert.Equal(t, []float64{6}, grads[x].Data())
}

func TestBackward_SkipsUnreachedOps(t *testing.T) {
	x := tensor.MustFromSlice([]float64{2, -1}, 1, 2)
	tape := NewGradientTape()
	tape.StartRecording()

	a := ops.NewReLUOp(x)
	tape.Record(a)
	l1 := ops.NewLinearOp(a.Output(), tensor.MustFromSlice([]float64{1, 1}, 1, 2), nil)
	tape.Record(l1)
	l2 := ops.NewLinearOp(a.Output(), tensor.MustFromSlice([]float64{3, 3}, 1, 2), nil)
	tape.Record(l2)

	grads := tape.Backward(l1.Output(), tensor.Full(1, 1, 1))
	assert.Equal(t, []float64{1, 0}, grads[x].Data(), "only l1 is upstream of the seed")
	_, ok := grads[l2.Output()]
	assert.False(t, ok)
}

func TestBackward_PanicsOnEmptyTape(t *testing.T) {
	assert.Panics(t, func() { Backward(NewGradientTape(), tensor.Full(1, 1)) })
}
