// Package autodiff implements reverse-mode automatic differentiation for the
// pllay layers.
//
// Modules record one ops.Operation per forward step on a GradientTape. After
// the forward pass, Backward walks the tape in reverse and accumulates a
// gradient for every tensor that took part in the computation, parameters
// included.
//
// Usage:
//
//	tape := autodiff.NewGradientTape()
//	tape.StartRecording()
//	// ... forward pass through modules built with this tape ...
//	grads := autodiff.Backward(tape, loss)
package autodiff

import (
	"github.com/born-ml/pllay/internal/autodiff/ops"
	"github.com/born-ml/pllay/internal/tensor"
)

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode automatic differentiation.
//
// A tape is not safe for concurrent recording.
type GradientTape struct {
	operations []ops.Operation // Recorded operations (in execution order)
	recording  bool
}

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 16),
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t != nil && t.recording
}

// Record adds an operation to the tape.
// Only records if the tape is currently recording; a nil tape ignores it.
func (t *GradientTape) Record(op ops.Operation) {
	if t.IsRecording() {
		t.operations = append(t.operations, op)
	}
}

// Clear resets the tape, removing all recorded operations.
// Recording state is preserved.
func (t *GradientTape) Clear() {
	clear(t.operations)
	t.operations = t.operations[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}

// Backward computes gradients for all inputs by walking the tape in reverse,
// seeding output with outputGrad.
//
// Operations whose output received no gradient are skipped. Gradients of a
// tensor used several times are summed. Returns a map from tensor to its
// accumulated gradient.
func (t *GradientTape) Backward(output, outputGrad *tensor.Tensor) map[*tensor.Tensor]*tensor.Tensor {
	grads := make(map[*tensor.Tensor]*tensor.Tensor)
	if len(t.operations) == 0 {
		return grads
	}

	// Stop recording during backward pass to prevent recording gradient operations
	wasRecording := t.recording
	t.recording = false
	defer func() {
		t.recording = wasRecording
	}()

	grads[output] = outputGrad
	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		outGrad, ok := grads[op.Output()]
		if !ok {
			continue
		}
		inputGrads := op.Backward(outGrad)
		for j, input := range op.Inputs() {
			if j >= len(inputGrads) || inputGrads[j] == nil {
				continue
			}
			accumulate(grads, input, inputGrads[j])
		}
	}
	return grads
}

func accumulate(grads map[*tensor.Tensor]*tensor.Tensor, key, grad *tensor.Tensor) {
	existing, ok := grads[key]
	if !ok {
		grads[key] = grad
		return
	}
	sum := existing.Clone()
	if err := sum.AddInPlace(grad); err != nil {
		panic(err)
	}
	grads[key] = sum
}
