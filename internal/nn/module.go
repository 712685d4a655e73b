// Package nn implements the trainable modules of the pllay framework.
//
// This package provides:
//   - Module interface and Parameter with freeze support
//   - Linear readout and ReLU
//   - WeightedAverage: softmax-weighted average of persistence landscapes
//   - TopoLayer: DTM -> persistence landscape -> weighted average -> readout
//   - TopoClassifier and CrossEntropyLoss for end-to-end training
//   - State dictionaries, pretrained merging and checkpoints
//
// Modules record their operations on the gradient tape they were built with.
// A nil tape builds an inference-only module.
package nn

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/born-ml/pllay/internal/tensor"
)

// Errors returned by modules.
var (
	ErrShapeMismatch   = errors.New("nn: shape mismatch")
	ErrMissingTensor   = errors.New("nn: missing tensor in state dict")
	ErrInvalidConfig   = errors.New("nn: invalid config")
	ErrUnexpectedInput = errors.New("nn: unexpected input")
)

// Module is the base interface for all neural network components.
type Module interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)

	// Parameters returns all trainable parameters of this module,
	// including those of nested modules.
	Parameters() []*Parameter

	// StateDict maps parameter names to their tensors. The tensors are
	// shared with the module, not copied.
	StateDict() map[string]*tensor.Tensor

	// LoadStateDict copies matching tensors into the module parameters.
	LoadStateDict(stateDict map[string]*tensor.Tensor) error
}

// paramStateDict builds a state dict from a flat parameter list.
func paramStateDict(params ...*Parameter) map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor, len(params))
	for _, p := range params {
		sd[p.Name()] = p.Tensor()
	}
	return sd
}

// loadParams loads every parameter from stateDict; all must be present.
func loadParams(stateDict map[string]*tensor.Tensor, params ...*Parameter) error {
	for _, p := range params {
		src, ok := stateDict[p.Name()]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingTensor, p.Name())
		}
		if err := p.load(src); err != nil {
			return err
		}
	}
	return nil
}

// withPrefix returns stateDict with every key prefixed by prefix + ".".
func withPrefix(prefix string, stateDict map[string]*tensor.Tensor) map[string]*tensor.Tensor {
	out := make(map[string]*tensor.Tensor, len(stateDict))
	for k, v := range stateDict {
		out[prefix+"."+k] = v
	}
	return out
}

// subDict returns the entries of stateDict under prefix + ".", with the
// prefix removed.
func subDict(prefix string, stateDict map[string]*tensor.Tensor) map[string]*tensor.Tensor {
	out := make(map[string]*tensor.Tensor)
	for k, v := range stateDict {
		if rest, ok := strings.CutPrefix(k, prefix+"."); ok {
			out[rest] = v
		}
	}
	return out
}

// MergeStateDict overlays saved onto current: entries of saved whose name
// exists in current with the same shape replace the current tensor, except
// names under one of the excluded prefixes. It returns the merged dict and
// the sorted names taken from saved. Neither input is modified.
func MergeStateDict(current, saved map[string]*tensor.Tensor, exclude ...string) (map[string]*tensor.Tensor, []string) {
	merged := maps.Clone(current)
	var taken []string
	for name, t := range saved {
		cur, ok := current[name]
		if !ok || !cur.Shape().Equal(t.Shape()) {
			continue
		}
		if slices.ContainsFunc(exclude, func(p string) bool { return strings.HasPrefix(name, p) }) {
			continue
		}
		merged[name] = t
		taken = append(taken, name)
	}
	slices.Sort(taken)
	return merged, taken
}

// Freeze freezes every parameter of m.
func Freeze(m Module) {
	for _, p := range m.Parameters() {
		p.Freeze()
	}
}

// Trainable returns the parameters of m that are not frozen.
func Trainable(m Module) []*Parameter {
	var out []*Parameter
	for _, p := range m.Parameters() {
		if !p.Frozen() {
			out = append(out, p)
		}
	}
	return out
}
