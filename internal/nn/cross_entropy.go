package nn

import (
	"fmt"

	"github.com/born-ml/pllay/internal/autodiff"
	"github.com/born-ml/pllay/internal/autodiff/ops"
	"github.com/born-ml/pllay/internal/tensor"
)

// CrossEntropyLoss computes softmax cross-entropy for multi-class
// classification.
//
//	Loss = mean_b(logsumexp(logits[b]) - logits[b][target[b]])
//
// Gradient:
//
//	dL/dlogits = (softmax(logits) - y_one_hot) / batch_size
//
// Usage:
//
//	criterion := nn.NewCrossEntropyLoss(tape)
//	logits, _ := model.Forward(input)         // [batch_size, num_classes]
//	loss, _ := criterion.Forward(logits, ys)  // ys: class indices
//	grads := autodiff.Backward(tape, loss)
type CrossEntropyLoss struct {
	tape *autodiff.GradientTape
}

// NewCrossEntropyLoss creates a new cross-entropy loss function.
func NewCrossEntropyLoss(tape *autodiff.GradientTape) *CrossEntropyLoss {
	return &CrossEntropyLoss{tape: tape}
}

// Forward returns the mean loss as a one-element tensor.
func (c *CrossEntropyLoss) Forward(logits *tensor.Tensor, targets []int) (*tensor.Tensor, error) {
	if logits.Rank() != 2 || logits.Dim(0) != len(targets) {
		return nil, fmt.Errorf("%w: logits %v with %d targets", ErrShapeMismatch, logits.Shape(), len(targets))
	}
	for i, y := range targets {
		if y < 0 || y >= logits.Dim(1) {
			return nil, fmt.Errorf("%w: target %d = %d, want [0, %d)", ErrUnexpectedInput, i, y, logits.Dim(1))
		}
	}
	op := ops.NewCrossEntropyOp(logits, targets)
	c.tape.Record(op)
	return op.Output(), nil
}

// Accuracy returns the fraction of rows whose argmax equals the target.
func Accuracy(logits *tensor.Tensor, targets []int) float64 {
	if len(targets) == 0 {
		return 0
	}
	correct := 0
	for b, y := range targets {
		if Argmax(logits.Row(b)) == y {
			correct++
		}
	}
	return float64(correct) / float64(len(targets))
}

// Argmax returns the index of the first maximum of row.
func Argmax(row []float64) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}
