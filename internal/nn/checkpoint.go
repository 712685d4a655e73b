package nn

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/born-ml/pllay/internal/serialization"
	"github.com/born-ml/pllay/internal/tensor"
)

// optimizerPrefix marks optimizer state inside a checkpoint state dict.
const optimizerPrefix = "optimizer."

// ErrNotCheckpoint is returned when a parameter file without training state
// is loaded as a checkpoint.
var ErrNotCheckpoint = errors.New("nn: file is not a checkpoint")

// OptimizerState represents an optimizer that can save/load its state.
//
// This interface is used by checkpoints to serialize optimizer state
// without creating import cycles. Optimizers from the optim package
// implement this interface.
type OptimizerState interface {
	// StateDict returns the optimizer state for serialization.
	StateDict() map[string]*tensor.Tensor

	// LoadStateDict loads optimizer state from serialization.
	LoadStateDict(stateDict map[string]*tensor.Tensor) error

	// GetLR returns the current learning rate.
	GetLR() float64
}

// Checkpoint represents a training state snapshot: model parameters,
// optimizer state and progress counters.
//
// Example:
//
//	ckpt := &nn.Checkpoint{Model: model, Optimizer: adam, Epoch: 10, Loss: 0.12}
//	if err := ckpt.Save("epoch10.pllay"); err != nil {
//	    log.Fatal(err)
//	}
type Checkpoint struct {
	Model     Module
	Optimizer OptimizerState // may be nil
	ModelType string
	ModelID   string // kept across saves; empty gets a new UUID
	Epoch     int
	Step      int64
	Loss      float64
	Accuracy  float64
	CreatedAt time.Time
}

// Save writes the checkpoint to path.
func (c *Checkpoint) Save(path string) error {
	combined := make(map[string]*tensor.Tensor)
	for name, t := range c.Model.StateDict() {
		combined[name] = t
	}
	meta := &serialization.CheckpointMeta{
		Epoch:    c.Epoch,
		Step:     c.Step,
		Loss:     c.Loss,
		Accuracy: c.Accuracy,
	}
	if c.Optimizer != nil {
		for name, t := range c.Optimizer.StateDict() {
			combined[optimizerPrefix+name] = t
		}
		meta.OptimizerType = optimizerType(c.Optimizer)
		meta.OptimizerConfig = map[string]float64{"lr": c.Optimizer.GetLR()}
	}

	header, err := serialization.WriteFile(path, combined, serialization.Header{
		ModelType:      c.ModelType,
		ModelID:        c.ModelID,
		CheckpointMeta: meta,
	})
	if err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	c.ModelID = header.ModelID
	c.CreatedAt = header.CreatedAt
	return nil
}

// LoadCheckpoint restores model and optimizer (which may be nil) from path.
// Both must be constructed with the architecture and configuration used
// when the checkpoint was saved.
func LoadCheckpoint(path string, model Module, optimizer OptimizerState) (*Checkpoint, error) {
	f, err := serialization.ReadFile(path, serialization.ReaderOptions{})
	if err != nil {
		return nil, err
	}
	meta := f.Header.CheckpointMeta
	if meta == nil {
		return nil, ErrNotCheckpoint
	}

	modelState := make(map[string]*tensor.Tensor)
	optimizerState := make(map[string]*tensor.Tensor)
	for name, t := range f.Tensors {
		if rest, ok := strings.CutPrefix(name, optimizerPrefix); ok {
			optimizerState[rest] = t
		} else {
			modelState[name] = t
		}
	}
	if err := model.LoadStateDict(modelState); err != nil {
		return nil, fmt.Errorf("failed to load model state: %w", err)
	}
	if optimizer != nil {
		if err := optimizer.LoadStateDict(optimizerState); err != nil {
			return nil, fmt.Errorf("failed to load optimizer state: %w", err)
		}
	}

	return &Checkpoint{
		Model:     model,
		Optimizer: optimizer,
		ModelType: f.Header.ModelType,
		ModelID:   f.Header.ModelID,
		Epoch:     meta.Epoch,
		Step:      meta.Step,
		Loss:      meta.Loss,
		Accuracy:  meta.Accuracy,
		CreatedAt: f.Header.CreatedAt,
	}, nil
}

// Save writes the parameters of model to path and returns the model id.
func Save(path string, model Module, modelType string) (string, error) {
	header, err := serialization.WriteFile(path, model.StateDict(), serialization.Header{ModelType: modelType})
	if err != nil {
		return "", err
	}
	return header.ModelID, nil
}

// ReadStateDict reads the parameter tensors stored at path.
func ReadStateDict(path string) (map[string]*tensor.Tensor, error) {
	f, err := serialization.ReadFile(path, serialization.ReaderOptions{})
	if err != nil {
		return nil, err
	}
	return f.Tensors, nil
}

// Load reads the parameters stored at path into model.
func Load(path string, model Module) error {
	sd, err := ReadStateDict(path)
	if err != nil {
		return err
	}
	return model.LoadStateDict(sd)
}

// optimizerType returns the short type name, e.g. "Adam".
func optimizerType(opt OptimizerState) string {
	name := fmt.Sprintf("%T", opt)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
