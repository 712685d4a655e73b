package nn_test

import (
	"math"
	"math/rand/v2"

	"github.com/born-ml/pllay/internal/dtm"
	"github.com/born-ml/pllay/internal/grid"
	"github.com/born-ml/pllay/internal/landscape"
	"github.com/born-ml/pllay/internal/nn"
	"github.com/born-ml/pllay/internal/tensor"
)

const side = 8

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

// smallConfig is an 8x8 layer small enough for finite differences.
func smallConfig() nn.TopoLayerConfig {
	cfg := nn.DefaultTopoLayerConfig()
	cfg.OutFeatures = 4
	cfg.DTM = dtm.DefaultConfig()
	cfg.DTM.M0 = 0.1
	cfg.DTM.Grid = grid.Spec{Lims: [][2]float64{{1, -1}, {-1, 1}}, Size: []int{side, side}}
	cfg.Landscape = landscape.DefaultConfig()
	cfg.Landscape.TSeq = []float64{0.1, 0.2, 0.3, 0.4}
	cfg.Landscape.KMax = 3
	return cfg
}

// ringImage draws an annulus of radius radius; a disc when radius is 0.
func ringImage(radius float64) []float64 {
	out := make([]float64, side*side)
	for i := 0; i < side; i++ {
		y := 1 - 2*float64(i)/float64(side-1)
		for j := 0; j < side; j++ {
			x := -1 + 2*float64(j)/float64(side-1)
			d := math.Hypot(x, y) - radius
			out[i*side+j] = math.Exp(-d*d/0.08) + 0.01
		}
	}
	return out
}

func batch(images ...[]float64) *tensor.Tensor {
	var data []float64
	for _, im := range images {
		data = append(data, im...)
	}
	return tensor.MustFromSlice(data, len(images), side*side)
}
