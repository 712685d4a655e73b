package ops

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/pllay/internal/tensor"
)

// CrossEntropyOp represents the softmax cross-entropy loss.
//
// Forward:
//
//	Loss = mean(logsumexp(logits[b]) - logits[b][targets[b]])
//
// Backward:
//
//	dL/dlogits = (softmax(logits) - y_one_hot) / batch_size
type CrossEntropyOp struct {
	logits  *tensor.Tensor // [batch_size, num_classes]
	targets []int          // [batch_size] class indices
	output  *tensor.Tensor // [1]
}

// NewCrossEntropyOp computes the loss of logits against targets.
func NewCrossEntropyOp(logits *tensor.Tensor, targets []int) *CrossEntropyOp {
	if logits.Rank() != 2 || logits.Dim(0) != len(targets) {
		panic(fmt.Sprintf("CrossEntropyOp: logits %v with %d targets", logits.Shape(), len(targets)))
	}
	classes := logits.Dim(1)
	var loss float64
	for b, y := range targets {
		if y < 0 || y >= classes {
			panic(fmt.Sprintf("CrossEntropyOp: target %d out of range [0, %d)", y, classes))
		}
		row := logits.Row(b)
		loss += floats.LogSumExp(row) - row[y]
	}
	loss /= float64(len(targets))

	return &CrossEntropyOp{
		logits:  logits,
		targets: targets,
		output:  tensor.MustFromSlice([]float64{loss}, 1),
	}
}

// Loss returns the scalar loss value.
func (op *CrossEntropyOp) Loss() float64 {
	return op.output.Data()[0]
}

// Backward computes the gradient with respect to logits.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.Tensor) []*tensor.Tensor {
	batch := len(op.targets)
	scale := outputGrad.Data()[0] / float64(batch)
	grad := tensor.Zeros(op.logits.Shape()...)
	for b, y := range op.targets {
		row := op.logits.Row(b)
		lse := floats.LogSumExp(row)
		g := grad.Row(b)
		for i, z := range row {
			g[i] = math.Exp(z-lse) * scale
		}
		g[y] -= scale
	}
	return []*tensor.Tensor{grad}
}

// Inputs returns [logits]. Targets receive no gradient.
func (op *CrossEntropyOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.logits}
}

// Output returns the scalar loss tensor.
func (op *CrossEntropyOp) Output() *tensor.Tensor {
	return op.output
}
