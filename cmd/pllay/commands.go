package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/born-ml/pllay/internal/config"
	"github.com/born-ml/pllay/internal/dataset"
	"github.com/born-ml/pllay/internal/grid"
	"github.com/born-ml/pllay/internal/nn"
	"github.com/born-ml/pllay/internal/tensor"
)

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	side := fs.Int("side", 0, "Override the grid size with side x side")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg := config.Default()
	if *side > 0 {
		cfg.Grid.Size = []int{*side, *side}
	}
	return cfg.Write(os.Stdout)
}

func runLandscape(args []string) error {
	fs := flag.NewFlagSet("landscape", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Layer configuration (YAML); default is the MNIST layer")
	side := fs.Int("side", 28, "Image side length when no config is given")
	shape := fs.String("shape", "ring", "Synthetic shape: ring or disc")
	noise := fs.Float64("noise", 0.05, "Uniform pixel noise amplitude")
	seed := fs.Uint64("seed", 1, "Random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	layerCfg, img, err := loadLayer(*cfgPath, *side)
	if err != nil {
		return err
	}
	n := img.side
	label := dataset.LabelRing
	switch *shape {
	case "ring":
	case "disc":
		label = dataset.LabelDisc
	default:
		return fmt.Errorf("unknown shape %q", *shape)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed))
	data, err := img.fit(dataset.Synthetic(2, n, *noise, rng))
	if err != nil {
		return err
	}
	layer, err := nn.NewTopoLayer(layerCfg, rng, nil)
	if err != nil {
		return err
	}
	tr, err := layer.Trace(tensor.MustFromSlice(data.Images[label], 1, data.Cells()))
	if err != nil {
		return err
	}

	lcfg := layerCfg.Landscape
	fmt.Printf("%s image, %s, k_max=%d, %d nonzero Jacobian entries\n",
		*shape, img, lcfg.KMax, tr.Jacobian.NonZero())
	for di, dim := range lcfg.Dimensions {
		fmt.Printf("H%d\n", dim)
		for ti, t := range lcfg.TSeq {
			fmt.Printf("  t=%-6.3f", t)
			for k := 0; k < lcfg.KMax; k++ {
				fmt.Printf(" %8.5f", tr.Landscape.At(0, di, ti, k))
			}
			fmt.Println()
		}
	}
	return nil
}

// imageShape is the input layout a layer grid expects: side x side pixels,
// with a leading channel axis when channels > 0.
type imageShape struct {
	channels int
	side     int
}

func newImageShape(size []int) (imageShape, error) {
	switch {
	case len(size) == 2 && size[0] == size[1]:
		return imageShape{side: size[0]}, nil
	case len(size) == 3 && size[1] == size[2]:
		return imageShape{channels: size[0], side: size[1]}, nil
	}
	return imageShape{}, fmt.Errorf("grid size %v is not a square image (H, W) or (C, H, W)", size)
}

func (s imageShape) String() string {
	if s.channels > 0 {
		return fmt.Sprintf("%dx%dx%d", s.channels, s.side, s.side)
	}
	return fmt.Sprintf("%dx%d", s.side, s.side)
}

// fit checks that d has the grid's side and repeats grayscale images across
// the grid's channels.
func (s imageShape) fit(d *dataset.Dataset) (*dataset.Dataset, error) {
	if d.Side != s.side {
		return nil, fmt.Errorf("images are %dx%d but the grid is %s", d.Side, d.Side, s)
	}
	if s.channels == 0 || s.channels == d.Channels {
		return d, nil
	}
	return d.Replicate(s.channels)
}

// loadLayer reads the layer configuration at path, or builds the default
// one on a side x side grid. It returns the image layout of the grid.
func loadLayer(path string, side int) (nn.TopoLayerConfig, imageShape, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nn.TopoLayerConfig{}, imageShape{}, err
		}
	} else {
		cfg.Grid.Size = []int{side, side}
	}
	if err := cfg.Validate(); err != nil {
		return nn.TopoLayerConfig{}, imageShape{}, err
	}
	layer, err := cfg.Layer()
	if err != nil {
		return nn.TopoLayerConfig{}, imageShape{}, err
	}
	g, err := grid.Build(layer.DTM.Grid)
	if err != nil {
		return nn.TopoLayerConfig{}, imageShape{}, err
	}
	img, err := newImageShape(g.Size())
	if err != nil {
		return nn.TopoLayerConfig{}, imageShape{}, err
	}
	return layer, img, nil
}
