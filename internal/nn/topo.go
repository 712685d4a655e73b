package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/pllay/internal/autodiff"
	"github.com/born-ml/pllay/internal/autodiff/ops"
	"github.com/born-ml/pllay/internal/cubical"
	"github.com/born-ml/pllay/internal/dtm"
	"github.com/born-ml/pllay/internal/knn"
	"github.com/born-ml/pllay/internal/landscape"
	"github.com/born-ml/pllay/internal/tensor"
)

// TopoLayerConfig configures a TopoLayer.
type TopoLayerConfig struct {
	OutFeatures int
	DTM         dtm.Config
	// Landscape.GridShape is ignored; the DTM grid size is used instead.
	Landscape landscape.Config
	// Oracle computes persistence diagrams. Nil selects the cubical complex.
	Oracle cubical.Oracle
}

// DefaultTopoLayerConfig returns the MNIST layer: 28x28 grid, m0=0.05,
// tseq {0.5, 0.7, 0.9}, k_max=2, dimensions {0, 1}, 32 outputs.
func DefaultTopoLayerConfig() TopoLayerConfig {
	return TopoLayerConfig{
		OutFeatures: 32,
		DTM:         dtm.DefaultConfig(),
		Landscape:   landscape.DefaultConfig(),
	}
}

// TopoLayer is the differentiable topological layer:
//
//	weights [batch, cells]
//	  -> DTM field [batch, cells]
//	  -> landscapes [batch, dims, tseq, kmax]
//	  -> weighted average [batch, dims*tseq]
//	  -> readout [batch, out_features]
//
// Learnable parameters are the rank weights ("avg.logits") and the readout
// ("readout.weight", "readout.bias").
type TopoLayer struct {
	dtm       *dtm.Layer
	landscape *landscape.Op
	avg       *WeightedAverage
	readout   *Linear
	tape      *autodiff.GradientTape
}

// NewTopoLayer builds the layer, including its grid and distance table.
func NewTopoLayer(cfg TopoLayerConfig, rng *rand.Rand, tape *autodiff.GradientTape) (*TopoLayer, error) {
	if cfg.OutFeatures <= 0 {
		return nil, fmt.Errorf("%w: out_features=%d", ErrInvalidConfig, cfg.OutFeatures)
	}
	d, err := dtm.New(cfg.DTM)
	if err != nil {
		return nil, err
	}
	lcfg := cfg.Landscape
	lcfg.GridShape = d.Grid().Size()
	op, err := landscape.New(lcfg, cfg.Oracle)
	if err != nil {
		return nil, err
	}
	return &TopoLayer{
		dtm:       d,
		landscape: op,
		avg:       NewWeightedAverage(len(lcfg.Dimensions), len(lcfg.TSeq), lcfg.KMax, tape),
		readout:   NewLinear(lcfg.Features(), cfg.OutFeatures, rng, tape),
		tape:      tape,
	}, nil
}

// Trace holds every intermediate tensor of one forward call.
type Trace struct {
	DTM       *tensor.Tensor // [batch, cells]
	Landscape *tensor.Tensor // [batch, dims, tseq, kmax]
	Jacobian  *landscape.Jacobian
	Averaged  *tensor.Tensor // [batch, dims*tseq]
	Output    *tensor.Tensor // [batch, out_features]
}

// Forward maps a batch of weight fields to readout features.
func (l *TopoLayer) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	tr, err := l.Trace(input)
	if err != nil {
		return nil, err
	}
	return tr.Output, nil
}

// Trace runs Forward and keeps the intermediate tensors.
func (l *TopoLayer) Trace(input *tensor.Tensor) (*Trace, error) {
	res, err := l.dtm.Forward(input)
	if err != nil {
		return nil, err
	}
	return l.fromDTM(input, res)
}

// ForwardPoints evaluates the DTM at caller-owned query points instead of the
// grid. Every query set must have as many points as the grid.
func (l *TopoLayer) ForwardPoints(queries []knn.Points, input *tensor.Tensor) (*Trace, error) {
	res, err := l.dtm.ForwardPoints(queries, input)
	if err != nil {
		return nil, err
	}
	return l.fromDTM(input, res)
}

func (l *TopoLayer) fromDTM(input *tensor.Tensor, res *dtm.Result) (*Trace, error) {
	l.tape.Record(ops.NewDTMOp(l.dtm, input, res))

	land, jac, err := l.landscape.Forward(res.Values)
	if err != nil {
		return nil, err
	}
	l.tape.Record(ops.NewLandscapeOp(l.landscape, res.Values, land, jac))

	avg, err := l.avg.Forward(land)
	if err != nil {
		return nil, err
	}
	out, err := l.readout.Forward(avg)
	if err != nil {
		return nil, err
	}
	return &Trace{DTM: res.Values, Landscape: land, Jacobian: jac, Averaged: avg, Output: out}, nil
}

// DTM returns the DTM layer, which owns the grid.
func (l *TopoLayer) DTM() *dtm.Layer {
	return l.dtm
}

// Average returns the rank-weighting module.
func (l *TopoLayer) Average() *WeightedAverage {
	return l.avg
}

// Readout returns the final affine map.
func (l *TopoLayer) Readout() *Linear {
	return l.readout
}

// Parameters returns [avg.logits, readout.weight, readout.bias].
func (l *TopoLayer) Parameters() []*Parameter {
	return append(l.avg.Parameters(), l.readout.Parameters()...)
}

// StateDict returns the layer's learnable tensors under "avg." and "readout.".
func (l *TopoLayer) StateDict() map[string]*tensor.Tensor {
	sd := withPrefix("avg", l.avg.StateDict())
	for k, v := range withPrefix("readout", l.readout.StateDict()) {
		sd[k] = v
	}
	return sd
}

// LoadStateDict loads the rank weights and the readout.
func (l *TopoLayer) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	if err := l.avg.LoadStateDict(subDict("avg", stateDict)); err != nil {
		return fmt.Errorf("avg: %w", err)
	}
	if err := l.readout.LoadStateDict(subDict("readout", stateDict)); err != nil {
		return fmt.Errorf("readout: %w", err)
	}
	return nil
}
