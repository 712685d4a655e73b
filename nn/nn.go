// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand/v2"

	"github.com/born-ml/pllay/autodiff"
	"github.com/born-ml/pllay/internal/nn"
	"github.com/born-ml/pllay/tensor"
)

// Errors returned by modules.
var (
	ErrShapeMismatch   = nn.ErrShapeMismatch
	ErrMissingTensor   = nn.ErrMissingTensor
	ErrInvalidConfig   = nn.ErrInvalidConfig
	ErrUnexpectedInput = nn.ErrUnexpectedInput
	ErrNotCheckpoint   = nn.ErrNotCheckpoint
)

// Module is the interface shared by all modules.
type Module = nn.Module

// Parameter is a trainable tensor with an optional gradient.
type Parameter = nn.Parameter

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return nn.NewParameter(name, t)
}

// Layers

// Linear represents a fully connected (dense) layer.
type Linear = nn.Linear

// NewLinear creates a new linear layer with Xavier initialization.
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand, tape *autodiff.GradientTape) *Linear {
	return nn.NewLinear(inFeatures, outFeatures, rng, tape)
}

// ReLU represents the Rectified Linear Unit activation function.
type ReLU = nn.ReLU

// NewReLU creates a new ReLU activation layer.
func NewReLU(tape *autodiff.GradientTape) *ReLU {
	return nn.NewReLU(tape)
}

// WeightedAverage averages landscapes over ranks with softmax weights.
type WeightedAverage = nn.WeightedAverage

// NewWeightedAverage creates a rank-weighting module with uniform weights.
func NewWeightedAverage(dims, tseq, kmax int, tape *autodiff.GradientTape) *WeightedAverage {
	return nn.NewWeightedAverage(dims, tseq, kmax, tape)
}

// Sequential chains named modules.
type Sequential = nn.Sequential

// Named pairs a module with its state dict prefix.
type Named = nn.Named

// NewSequential creates a new Sequential container.
func NewSequential(modules ...Named) *Sequential {
	return nn.NewSequential(modules...)
}

// Topological layers

// TopoLayerConfig configures a TopoLayer.
type TopoLayerConfig = nn.TopoLayerConfig

// TopoLayer is the differentiable topological layer.
type TopoLayer = nn.TopoLayer

// Trace holds the intermediate tensors of a TopoLayer forward call.
type Trace = nn.Trace

// DefaultTopoLayerConfig returns the MNIST layer configuration.
func DefaultTopoLayerConfig() TopoLayerConfig {
	return nn.DefaultTopoLayerConfig()
}

// NewTopoLayer builds a topological layer.
func NewTopoLayer(cfg TopoLayerConfig, rng *rand.Rand, tape *autodiff.GradientTape) (*TopoLayer, error) {
	return nn.NewTopoLayer(cfg, rng, tape)
}

// TopoClassifier is TopoLayer -> ReLU -> Linear.
type TopoClassifier = nn.TopoClassifier

// NewTopoClassifier builds a classifier with the given number of classes.
func NewTopoClassifier(cfg TopoLayerConfig, classes int, rng *rand.Rand, tape *autodiff.GradientTape) (*TopoClassifier, error) {
	return nn.NewTopoClassifier(cfg, classes, rng, tape)
}

// Loss

// CrossEntropyLoss is softmax cross-entropy over class indices.
type CrossEntropyLoss = nn.CrossEntropyLoss

// NewCrossEntropyLoss creates a new cross-entropy loss function.
func NewCrossEntropyLoss(tape *autodiff.GradientTape) *CrossEntropyLoss {
	return nn.NewCrossEntropyLoss(tape)
}

// Accuracy returns the fraction of rows whose argmax equals the target.
func Accuracy(logits *tensor.Tensor, targets []int) float64 {
	return nn.Accuracy(logits, targets)
}

// State

// Collect copies gradients from a Backward result into params.
func Collect(params []*Parameter, grads map[*tensor.Tensor]*tensor.Tensor) {
	nn.Collect(params, grads)
}

// MergeStateDict overlays saved onto current, skipping excluded prefixes.
func MergeStateDict(current, saved map[string]*tensor.Tensor, exclude ...string) (map[string]*tensor.Tensor, []string) {
	return nn.MergeStateDict(current, saved, exclude...)
}

// Freeze freezes every parameter of m.
func Freeze(m Module) {
	nn.Freeze(m)
}

// Trainable returns the parameters of m that are not frozen.
func Trainable(m Module) []*Parameter {
	return nn.Trainable(m)
}

// Checkpoint is a training state snapshot.
type Checkpoint = nn.Checkpoint

// OptimizerState is an optimizer whose buffers can be checkpointed.
type OptimizerState = nn.OptimizerState

// LoadCheckpoint restores model and optimizer (which may be nil) from path.
func LoadCheckpoint(path string, model Module, optimizer OptimizerState) (*Checkpoint, error) {
	return nn.LoadCheckpoint(path, model, optimizer)
}

// Save writes the parameters of model to path and returns the model id.
func Save(path string, model Module, modelType string) (string, error) {
	return nn.Save(path, model, modelType)
}

// Load reads the parameters stored at path into model.
func Load(path string, model Module) error {
	return nn.Load(path, model)
}

// ReadStateDict reads the parameter tensors stored at path.
func ReadStateDict(path string) (map[string]*tensor.Tensor, error) {
	return nn.ReadStateDict(path)
}
