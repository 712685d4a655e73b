// Package config loads topological layer configurations from YAML.
//
// Example document:
//
//	out_features: 32
//	tseq: {start: 0.05, stop: 0.95, num: 10}
//	k_max: 2
//	m0: 0.05
//	r: 2
//	dimensions: [0, 1]
//	grid:
//	  lims: [[1, -1], [-1, 1]]
//	  size: [28, 28]
//	knn: static
//	workers: 0
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/pllay/internal/dtm"
	"github.com/born-ml/pllay/internal/grid"
	"github.com/born-ml/pllay/internal/landscape"
	"github.com/born-ml/pllay/internal/nn"
	"github.com/born-ml/pllay/internal/parallel"
)

// ErrInvalid is returned for documents that do not describe a valid layer.
var ErrInvalid = errors.New("config: invalid")

// Config is the YAML form of nn.TopoLayerConfig.
type Config struct {
	OutFeatures int     `yaml:"out_features"`
	TSeq        TSeq    `yaml:"tseq"`
	KMax        int     `yaml:"k_max"`
	M0          float64 `yaml:"m0"`
	R           float64 `yaml:"r"`
	Dimensions  []int   `yaml:"dimensions"`
	Grid        Grid    `yaml:"grid"`
	KNN         string  `yaml:"knn"`
	Workers     int     `yaml:"workers"` // 0 uses every CPU, 1 runs serially
}

// Grid is the YAML form of grid.Spec.
type Grid struct {
	Lims             [][2]float64 `yaml:"lims"`
	Size             []int        `yaml:"size,omitempty"`
	By               []float64    `yaml:"by,omitempty"`
	ReverseFirstAxis bool         `yaml:"reverse_first_axis,omitempty"`
}

// gridFields lists the keys a grid mapping may carry.
var gridFields = []string{"lims", "size", "by", "reverse_first_axis"}

// UnmarshalYAML decodes a grid mapping into a zero Grid, so a document that
// sets by does not inherit the default size.
func (g *Grid) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: grid at line %d must be a mapping", ErrInvalid, node.Line)
	}
	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i]
		if !slices.Contains(gridFields, key.Value) {
			return fmt.Errorf("%w: line %d: field %s not found in grid", ErrInvalid, key.Line, key.Value)
		}
	}
	type plain Grid
	var out plain
	if err := node.Decode(&out); err != nil {
		return err
	}
	*g = Grid(out)
	return nil
}

// TSeq is either an explicit list of sample points or a linspace
// {start, stop, num}.
type TSeq struct {
	Values []float64
	Start  float64
	Stop   float64
	Num    int
}

type linspace struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Num   int     `yaml:"num"`
}

// UnmarshalYAML accepts a sequence or a {start, stop, num} mapping.
func (t *TSeq) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		*t = TSeq{}
		return node.Decode(&t.Values)
	case yaml.MappingNode:
		var ls linspace
		if err := node.Decode(&ls); err != nil {
			return err
		}
		*t = TSeq{Start: ls.Start, Stop: ls.Stop, Num: ls.Num}
		return nil
	default:
		return fmt.Errorf("%w: tseq at line %d must be a list or {start, stop, num}", ErrInvalid, node.Line)
	}
}

// MarshalYAML writes the form the value was read from.
func (t TSeq) MarshalYAML() (any, error) {
	if t.Num > 0 {
		return linspace{Start: t.Start, Stop: t.Stop, Num: t.Num}, nil
	}
	return t.Values, nil
}

// Points returns the sample points.
func (t TSeq) Points() []float64 {
	if t.Num <= 0 {
		return slices.Clone(t.Values)
	}
	if t.Num == 1 {
		return []float64{t.Start}
	}
	out := make([]float64, t.Num)
	step := (t.Stop - t.Start) / float64(t.Num-1)
	for i := range out {
		out[i] = t.Start + float64(i)*step
	}
	out[t.Num-1] = t.Stop
	return out
}

// Default returns the MNIST layer configuration.
func Default() Config {
	layer := nn.DefaultTopoLayerConfig()
	return Config{
		OutFeatures: layer.OutFeatures,
		TSeq:        TSeq{Values: layer.Landscape.TSeq},
		KMax:        layer.Landscape.KMax,
		M0:          layer.DTM.M0,
		R:           layer.DTM.R,
		Dimensions:  layer.Landscape.Dimensions,
		Grid: Grid{
			Lims:             layer.DTM.Grid.Lims,
			Size:             layer.DTM.Grid.Size,
			By:               layer.DTM.Grid.By,
			ReverseFirstAxis: layer.DTM.Grid.ReverseFirstAxis,
		},
		KNN: dtm.StaticTable.String(),
	}
}

// Parse decodes a YAML document over the defaults and validates it.
// Unknown fields are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the YAML file at path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Parse(f)
}

// Write encodes cfg as YAML.
func (c Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// Validate checks every field by building the layer configuration and
// running the component validators on it.
func (c Config) Validate() error {
	layer, err := c.Layer()
	if err != nil {
		return err
	}
	if layer.OutFeatures <= 0 {
		return fmt.Errorf("%w: out_features=%d", ErrInvalid, layer.OutFeatures)
	}
	if c.TSeq.Num < 0 || (c.TSeq.Num == 0 && len(c.TSeq.Values) == 0) {
		return fmt.Errorf("%w: tseq is empty", ErrInvalid)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers=%d", ErrInvalid, c.Workers)
	}
	if err := layer.DTM.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	lcfg := layer.Landscape
	lcfg.GridShape = []int{1}
	if err := lcfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Layer converts the document to a layer configuration.
func (c Config) Layer() (nn.TopoLayerConfig, error) {
	mode, err := knnMode(c.KNN)
	if err != nil {
		return nn.TopoLayerConfig{}, err
	}
	par := parallel.DefaultConfig()
	switch {
	case c.Workers == 1:
		par = parallel.Serial()
	case c.Workers > 1:
		par.Enabled = true
		par.NumWorkers = c.Workers
	}

	layer := nn.DefaultTopoLayerConfig()
	layer.OutFeatures = c.OutFeatures
	layer.DTM = dtm.Config{
		M0: c.M0,
		R:  c.R,
		Grid: grid.Spec{
			Lims:             slices.Clone(c.Grid.Lims),
			Size:             slices.Clone(c.Grid.Size),
			By:               slices.Clone(c.Grid.By),
			ReverseFirstAxis: c.Grid.ReverseFirstAxis,
		},
		KNN:      mode,
		Parallel: par,
	}
	layer.Landscape = landscape.Config{
		TSeq:       c.TSeq.Points(),
		KMax:       c.KMax,
		Dimensions: slices.Clone(c.Dimensions),
		Parallel:   par,
	}
	return layer, nil
}

func knnMode(s string) (dtm.KNNMode, error) {
	for _, m := range []dtm.KNNMode{dtm.StaticTable, dtm.BruteForce} {
		if s == m.String() {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: knn %q (want %q or %q)", ErrInvalid, s, dtm.StaticTable, dtm.BruteForce)
}
