package autodiff

import (
	"github.com/born-ml/pllay/internal/tensor"
)

// Backward computes gradients of output with respect to everything recorded
// on tape, seeding the output gradient with ones.
//
// For a scalar loss this yields dLoss/dx for every recorded tensor x.
//
// Example:
//
//	tape.StartRecording()
//	loss := model.Loss(input, targets)
//	grads := autodiff.Backward(tape, loss)
//	grad := grads[param.Tensor()]
func Backward(tape *GradientTape, output *tensor.Tensor) map[*tensor.Tensor]*tensor.Tensor {
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call StartRecording()?)")
	}
	return tape.Backward(output, tensor.Full(1, output.Shape()...))
}
