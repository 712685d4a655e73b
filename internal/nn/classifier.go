package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/pllay/internal/autodiff"
	"github.com/born-ml/pllay/internal/tensor"
)

// HeadPrefix names the classification head in a TopoClassifier state dict.
const HeadPrefix = "head."

// TopoClassifier is TopoLayer -> ReLU -> Linear(out_features, classes).
//
// State dict names are "topo.avg.logits", "topo.readout.weight",
// "topo.readout.bias", "head.weight" and "head.bias".
type TopoClassifier struct {
	*Sequential
	topo *TopoLayer
	head *Linear
}

// NewTopoClassifier builds a classifier over the given topological layer
// configuration.
func NewTopoClassifier(cfg TopoLayerConfig, classes int, rng *rand.Rand, tape *autodiff.GradientTape) (*TopoClassifier, error) {
	if classes < 2 {
		return nil, fmt.Errorf("%w: classes=%d", ErrInvalidConfig, classes)
	}
	topo, err := NewTopoLayer(cfg, rng, tape)
	if err != nil {
		return nil, err
	}
	head := NewLinear(cfg.OutFeatures, classes, rng, tape)
	return &TopoClassifier{
		Sequential: NewSequential(
			Named{Name: "topo", Module: topo},
			Named{Name: "relu", Module: NewReLU(tape)},
			Named{Name: "head", Module: head},
		),
		topo: topo,
		head: head,
	}, nil
}

// Topo returns the topological layer.
func (c *TopoClassifier) Topo() *TopoLayer {
	return c.topo
}

// Head returns the classification head.
func (c *TopoClassifier) Head() *Linear {
	return c.head
}

// LoadPretrained copies every tensor of saved that matches this model by name
// and shape, except the classification head, and freezes the topological
// layer. It returns the names that were loaded.
func (c *TopoClassifier) LoadPretrained(saved map[string]*tensor.Tensor) ([]string, error) {
	merged, taken := MergeStateDict(c.StateDict(), saved, HeadPrefix)
	if err := c.LoadStateDict(merged); err != nil {
		return nil, err
	}
	Freeze(c.topo)
	return taken, nil
}
