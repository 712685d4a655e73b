package nn

import (
	"fmt"

	"github.com/born-ml/pllay/internal/tensor"
)

// Named pairs a module with the prefix of its state dict entries.
type Named struct {
	Name   string
	Module Module
}

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input. State dict entries
// are prefixed with the child name, e.g. "head.weight".
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.Named{Name: "topo", Module: topo},
//	    nn.Named{Name: "relu", Module: nn.NewReLU(tape)},
//	    nn.Named{Name: "head", Module: nn.NewLinear(32, 10, rng, tape)},
//	)
type Sequential struct {
	modules []Named
}

// NewSequential creates a new Sequential container.
func NewSequential(modules ...Named) *Sequential {
	return &Sequential{modules: modules}
}

// Forward applies all modules in sequence.
func (s *Sequential) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	output := input
	for _, m := range s.modules {
		var err error
		output, err = m.Module.Forward(output)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name, err)
		}
	}
	return output, nil
}

// Parameters returns all trainable parameters from all modules.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, m := range s.modules {
		params = append(params, m.Module.Parameters()...)
	}
	return params
}

// Len returns the number of modules in the sequence.
func (s *Sequential) Len() int {
	return len(s.modules)
}

// Module returns the module registered under name, or nil.
func (s *Sequential) Module(name string) Module {
	for _, m := range s.modules {
		if m.Name == name {
			return m.Module
		}
	}
	return nil
}

// StateDict merges the children's state dicts under their names.
func (s *Sequential) StateDict() map[string]*tensor.Tensor {
	stateDict := make(map[string]*tensor.Tensor)
	for _, m := range s.modules {
		for k, v := range withPrefix(m.Name, m.Module.StateDict()) {
			stateDict[k] = v
		}
	}
	return stateDict
}

// LoadStateDict loads every child from the entries under its name.
func (s *Sequential) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	for _, m := range s.modules {
		if err := m.Module.LoadStateDict(subDict(m.Name, stateDict)); err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
	}
	return nil
}
