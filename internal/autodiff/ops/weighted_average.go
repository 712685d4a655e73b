package ops

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/pllay/internal/tensor"
)

// WeightedAverageOp averages landscapes over the rank axis with softmax
// weights, then flattens (dimension, t).
//
// Shapes: landscape [batch, dims, tseq, kmax], logits [1, dims, 1, kmax],
// output [batch, dims*tseq]. With w = softmax(logits) over kmax:
//
//	output[b, d*tseq+t] = sum_k landscape[b, d, t, k] * w[d, k]
//
// Backward pass:
//   - d/dlandscape[b, d, t, k] = outputGrad[b, d*tseq+t] * w[d, k]
//   - d/dlogits[d, k] = w[d, k] * (gw[d, k] - sum_j w[d, j] * gw[d, j]),
//     with gw[d, k] = sum_{b,t} outputGrad[b, d*tseq+t] * landscape[b, d, t, k]
type WeightedAverageOp struct {
	landscape *tensor.Tensor
	logits    *tensor.Tensor
	weights   []float64 // softmax(logits), [dims*kmax]
	output    *tensor.Tensor
}

// NewWeightedAverageOp computes the weighted average and returns the recorded
// operation.
func NewWeightedAverageOp(landscape, logits *tensor.Tensor) *WeightedAverageOp {
	if landscape.Rank() != 4 || logits.Rank() != 4 ||
		logits.Dim(0) != 1 || logits.Dim(2) != 1 ||
		logits.Dim(1) != landscape.Dim(1) || logits.Dim(3) != landscape.Dim(3) {
		panic(fmt.Sprintf("WeightedAverageOp: landscape %v with logits %v", landscape.Shape(), logits.Shape()))
	}
	batch, dims, tlen, kmax := landscape.Dim(0), landscape.Dim(1), landscape.Dim(2), landscape.Dim(3)
	w := Softmax(logits.Data(), kmax)

	output := tensor.Zeros(batch, dims*tlen)
	land := landscape.Data()
	out := output.Data()
	for b := 0; b < batch; b++ {
		for d := 0; d < dims; d++ {
			wd := w[d*kmax : (d+1)*kmax]
			for t := 0; t < tlen; t++ {
				base := ((b*dims+d)*tlen + t) * kmax
				out[(b*dims+d)*tlen+t] = floats.Dot(land[base:base+kmax], wd)
			}
		}
	}
	return &WeightedAverageOp{landscape: landscape, logits: logits, weights: w, output: output}
}

// Weights returns the softmax weights, [dims*kmax] row-major.
func (op *WeightedAverageOp) Weights() []float64 {
	return op.weights
}

// Backward computes gradients for the landscape and the logits.
func (op *WeightedAverageOp) Backward(outputGrad *tensor.Tensor) []*tensor.Tensor {
	batch, dims, tlen, kmax := op.landscape.Dim(0), op.landscape.Dim(1), op.landscape.Dim(2), op.landscape.Dim(3)
	land := op.landscape.Data()
	g := outputGrad.Data()

	gradLand := tensor.Zeros(op.landscape.Shape()...)
	gl := gradLand.Data()
	gw := make([]float64, dims*kmax)
	for b := 0; b < batch; b++ {
		for d := 0; d < dims; d++ {
			wd := op.weights[d*kmax : (d+1)*kmax]
			gwd := gw[d*kmax : (d+1)*kmax]
			for t := 0; t < tlen; t++ {
				up := g[(b*dims+d)*tlen+t]
				base := ((b*dims+d)*tlen + t) * kmax
				floats.AddScaled(gl[base:base+kmax], up, wd)
				floats.AddScaled(gwd, up, land[base:base+kmax])
			}
		}
	}

	gradLogits := tensor.Zeros(op.logits.Shape()...)
	gz := gradLogits.Data()
	for d := 0; d < dims; d++ {
		wd := op.weights[d*kmax : (d+1)*kmax]
		gwd := gw[d*kmax : (d+1)*kmax]
		mean := floats.Dot(wd, gwd)
		for k := range wd {
			gz[d*kmax+k] = wd[k] * (gwd[k] - mean)
		}
	}
	return []*tensor.Tensor{gradLand, gradLogits}
}

// Inputs returns [landscape, logits].
func (op *WeightedAverageOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.landscape, op.logits}
}

// Output returns the averaged features [batch, dims*tseq].
func (op *WeightedAverageOp) Output() *tensor.Tensor {
	return op.output
}

// Softmax applies a numerically stable softmax to consecutive groups of n
// values and returns a new slice.
func Softmax(logits []float64, n int) []float64 {
	if n <= 0 || len(logits)%n != 0 {
		panic(fmt.Sprintf("Softmax: %d values in groups of %d", len(logits), n))
	}
	out := make([]float64, len(logits))
	for start := 0; start < len(logits); start += n {
		group := logits[start : start+n]
		lse := floats.LogSumExp(group)
		for i, z := range group {
			out[start+i] = math.Exp(z - lse)
		}
	}
	return out
}
