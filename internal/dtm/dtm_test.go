package dtm

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/pllay/internal/grid"
	"github.com/born-ml/pllay/internal/knn"
	"github.com/born-ml/pllay/internal/parallel"
	"github.com/born-ml/pllay/internal/tensor"
)

func squareSpec(n int) grid.Spec {
	return grid.Spec{Lims: [][2]float64{{1, -1}, {-1, 1}}, Size: []int{n, n}}
}

func newLayer(t *testing.T, n int, m0, r float64, mode KNNMode) *Layer {
	t.Helper()
	l, err := New(Config{M0: m0, R: r, Grid: squareSpec(n), KNN: mode, Parallel: parallel.DefaultConfig()})
	require.NoError(t, err)
	return l
}

func randomWeights(rng *rand.Rand, batch, n int) *tensor.Tensor {
	w := tensor.Zeros(batch, n)
	for i := range w.Data() {
		w.Data()[i] = 0.1 + rng.Float64()
	}
	return w
}

func TestCutoff_ExactBoundary(t *testing.T) {
	cum := []float64{1, 2, 3}
	assert.Equal(t, 0, cutoff(cum, 0.5))
	assert.Equal(t, 1, cutoff(cum, 2), "bound equal to a cumulative weight stops there")
	assert.Equal(t, 2, cutoff(cum, 3), "bound equal to the total mass is the last neighbor")
	assert.Equal(t, 2, cutoff(cum, 3+1e-12), "overflow past the last neighbor is clamped")
	assert.Equal(t, 2, cutoff(cum, 100))
}

func TestCompute_ClampedCutoffExtendsLastNeighbor(t *testing.T) {
	// Two neighbors weighing 1 each, bound 2+eps: the search overflows and
	// the second neighbor absorbs the shortfall.
	nb := &knn.Result{N: 1, K: 2, Dist: []float64{0, 2}, Index: []int{0, 1}}
	weight := []float64{1, 1}
	bound := 2 + 1e-12

	values := make([]float64, 1)
	cells := make([]Cell, 1)
	Compute(nb, weight, bound, 2, values, cells)

	assert.Equal(t, 1, cells[0].Cutoff)
	// (0*1 + 4*(bound-1)) / bound
	want := math.Sqrt(4 * (bound - 1) / bound)
	assert.InDelta(t, want, values[0], 1e-12)
}

func TestForward_FlatFieldSymmetric(t *testing.T) {
	l := newLayer(t, 5, 0.2, 2, StaticTable)
	w := tensor.Full(1, 1, 25)

	res, err := l.Forward(w)
	require.NoError(t, err)

	// Every cell needs exactly five unit weights.
	for _, k := range res.Cutoffs(0) {
		assert.Equal(t, 4, k)
	}

	v := res.Values.Row(0)
	at := func(r, c int) float64 { return v[r*5+c] }

	// Interior cells see themselves plus four neighbors at one step (0.5).
	for r := 1; r <= 3; r++ {
		for c := 1; c <= 3; c++ {
			assert.InDelta(t, math.Sqrt(0.2), at(r, c), 1e-12, "cell (%d,%d)", r, c)
		}
	}
	// The field is invariant under the symmetries of the square.
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			assert.InDelta(t, at(r, c), at(c, r), 1e-12)
			assert.InDelta(t, at(r, c), at(4-r, c), 1e-12)
			assert.InDelta(t, at(r, c), at(r, 4-c), 1e-12)
		}
	}
	// Corner: 0, .5, .5, sqrt(.5), 1 -> (0 + .25 + .25 + .5 + 1) / 5.
	assert.InDelta(t, math.Sqrt(0.4), at(0, 0), 1e-12)
}

func TestForward_IsolatedPeakIsDistanceToPeak(t *testing.T) {
	g, err := grid.Build(squareSpec(5))
	require.NoError(t, err)

	for _, peak := range []int{12, 0, 7} {
		l := newLayer(t, 5, 0.5, 2, StaticTable)
		w := tensor.Zeros(1, 25)
		w.Data()[peak] = 10

		res, err := l.Forward(w)
		require.NoError(t, err)

		v := res.Values.Row(0)
		assert.Zero(t, v[peak], "peak %d is its own nearest neighbor", peak)
		for i := range v {
			assert.InDelta(t, knn.Distance(g.Point(i), g.Point(peak), 2), v[i], 1e-12, "peak %d cell %d", peak, i)
		}
	}
}

func TestForward_FullMassIsWeightedAverageDistance(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	g, err := grid.Build(squareSpec(6))
	require.NoError(t, err)

	for _, r := range []float64{1, 2, 3} {
		l := newLayer(t, 6, 1, r, StaticTable)
		w := randomWeights(rng, 2, 36)

		res, err := l.Forward(w)
		require.NoError(t, err)
		assert.Equal(t, 36, res.NeighborBudget())

		for b := 0; b < 2; b++ {
			row := w.Row(b)
			var total float64
			for _, x := range row {
				total += x
			}
			for i := 0; i < 36; i++ {
				var acc float64
				for j, x := range row {
					acc += x * math.Pow(knn.Distance(g.Point(i), g.Point(j), r), r)
				}
				want := math.Pow(acc/total, 1/r)
				assert.InDelta(t, want, res.Values.At(b, i), 1e-9, "r=%v sample %d cell %d", r, b, i)
			}
		}
	}
}

func TestForward_InvariantToWeightScale(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	l := newLayer(t, 7, 0.2, 2, StaticTable)
	w := randomWeights(rng, 3, 49)

	scaled := w.Clone()
	for i := range scaled.Data() {
		scaled.Data()[i] *= 8
	}

	a, err := l.Forward(w)
	require.NoError(t, err)
	b, err := l.Forward(scaled)
	require.NoError(t, err)
	assert.True(t, a.Values.AllClose(b.Values, 1e-12))
}

func TestForward_StaticAndBruteForceAgree(t *testing.T) {
	rng := rand.New(rand.NewPCG(8, 9))
	w := randomWeights(rng, 2, 64)
	for _, r := range []float64{1, 2, 3} {
		static, err := newLayer(t, 8, 0.1, r, StaticTable).Forward(w)
		require.NoError(t, err)
		brute, err := newLayer(t, 8, 0.1, r, BruteForce).Forward(w)
		require.NoError(t, err)
		assert.True(t, static.Values.AllClose(brute.Values, 1e-12), "r=%v", r)
	}
}

func TestForwardPoints_GridQueriesMatchForward(t *testing.T) {
	rng := rand.New(rand.NewPCG(10, 11))
	l := newLayer(t, 6, 0.1, 2, BruteForce)
	w := randomWeights(rng, 2, 36)

	want, err := l.Forward(w)
	require.NoError(t, err)
	got, err := l.ForwardPoints([]knn.Points{l.Grid(), l.Grid()}, w)
	require.NoError(t, err)
	assert.True(t, want.Values.AllClose(got.Values, 1e-12))

	// A query far away from all mass has a larger DTM than any grid cell.
	far := knn.Cloud{Data: []float64{10, 10}, D: 2}
	res, err := l.ForwardPoints([]knn.Points{far, far}, w)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, []int(res.Values.Shape()))
	assert.Greater(t, res.Values.At(0, 0), 12.0)
}

func TestForward_Errors(t *testing.T) {
	l := newLayer(t, 4, 0.1, 2, StaticTable)

	_, err := l.Forward(tensor.Zeros(1, 15))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = l.Forward(tensor.Zeros(2, 16))
	assert.ErrorIs(t, err, ErrZeroMass)

	w := tensor.Full(1, 1, 16)
	w.Data()[3] = -1
	_, err = l.Forward(w)
	assert.ErrorIs(t, err, ErrNegativeWeight)

	_, err = l.ForwardPoints([]knn.Points{l.Grid()}, tensor.Full(1, 2, 16))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestForwardPoints_RejectsMalformedQueries(t *testing.T) {
	l := newLayer(t, 4, 0.1, 2, BruteForce)
	w := tensor.Full(1, 2, 16)

	for name, q := range map[string]knn.Points{
		"no dimension": knn.Cloud{Data: []float64{0, 0}},
		"ragged":       knn.Cloud{Data: []float64{0, 0, 1}, D: 2},
		"3-D":          knn.Cloud{Data: []float64{0, 0, 0}, D: 3},
	} {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := l.ForwardPoints([]knn.Points{l.Grid(), q}, w)
				require.ErrorIs(t, err, knn.ErrDimensionMismatch)
				assert.Contains(t, err.Error(), "sample 1")
			})
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.M0 = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = cfg
	bad.M0 = 1.5
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = cfg
	bad.R = 0.5
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = cfg
	bad.KNN = KNNMode(7)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = cfg
	bad.Grid.Size = []int{28}
	assert.ErrorIs(t, bad.Validate(), grid.ErrShapeMismatch)
}

// TestBackward_FiniteDifference checks the hand-derived weight gradient
// against central differences of L = sum(g * dtm).
func TestBackward_FiniteDifference(t *testing.T) {
	rng := rand.New(rand.NewPCG(12, 13))
	const eps = 1e-6

	for _, r := range []float64{1, 2, 3} {
		l := newLayer(t, 4, 0.3, r, StaticTable)
		w := randomWeights(rng, 2, 16)
		up := tensor.Zeros(2, 16)
		for i := range up.Data() {
			up.Data()[i] = rng.Float64()*2 - 1
		}

		res, err := l.Forward(w)
		require.NoError(t, err)
		grad, err := l.Backward(res, up)
		require.NoError(t, err)

		loss := func(x *tensor.Tensor) float64 {
			out, err := l.Forward(x)
			require.NoError(t, err)
			var s float64
			for i, v := range out.Values.Data() {
				s += up.Data()[i] * v
			}
			return s
		}

		for i := range w.Data() {
			plus, minus := w.Clone(), w.Clone()
			plus.Data()[i] += eps
			minus.Data()[i] -= eps
			numeric := (loss(plus) - loss(minus)) / (2 * eps)
			assert.InDelta(t, numeric, grad.Data()[i], 1e-5, "r=%v weight %d", r, i)
		}
	}
}

func TestBackward_ShapeMismatch(t *testing.T) {
	l := newLayer(t, 3, 0.5, 2, StaticTable)
	res, err := l.Forward(tensor.Full(1, 1, 9))
	require.NoError(t, err)
	_, err = l.Backward(res, tensor.Zeros(1, 8))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
