// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package topo_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/pllay/nn"
	"github.com/born-ml/pllay/tensor"
	"github.com/born-ml/pllay/topo"
)

// TestPipeline runs grid -> DTM -> landscape by hand and compares it with
// the layer's trace.
func TestPipeline(t *testing.T) {
	spec := topo.GridSpec{Lims: [][2]float64{{1, -1}, {-1, 1}}, Size: []int{6, 6}}
	g, err := topo.BuildGrid(spec)
	require.NoError(t, err)
	assert.Equal(t, 36, g.Len())

	weights := tensor.Zeros(1, 36)
	for i := range weights.Data() {
		weights.Data()[i] = 0.1 + float64(i%5)
	}

	cfg := nn.DefaultTopoLayerConfig()
	cfg.OutFeatures = 3
	cfg.DTM.Grid = spec
	cfg.DTM.M0 = 0.2
	cfg.Landscape.TSeq = []float64{0.2, 0.4}

	d, err := topo.NewDTM(cfg.DTM)
	require.NoError(t, err)
	res, err := d.Forward(weights)
	require.NoError(t, err)

	lcfg := cfg.Landscape
	lcfg.GridShape = g.Size()
	op, err := topo.NewLandscape(lcfg, topo.NewCubical(topo.DefaultCubicalOptions()))
	require.NoError(t, err)
	land, _, err := op.Forward(res.Values)
	require.NoError(t, err)

	layer, err := nn.NewTopoLayer(cfg, nil, nil)
	require.NoError(t, err)
	tr, err := layer.Trace(weights)
	require.NoError(t, err)
	assert.Equal(t, land.Data(), tr.Landscape.Data())
	assert.Equal(t, res.Values.Data(), tr.DTM.Data())
}

func TestTent(t *testing.T) {
	assert.InDelta(t, 1.0, topo.Tent(2, 1, 3), 0)
	assert.InDelta(t, 0.0, topo.Tent(4, 1, 3), 0)
	assert.InDelta(t, 1.0, topo.Tent(2, 1, math.Inf(1)), 0)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("k_max: 5\nknn: brute_force\n"), 0o600))
	cfg, err := topo.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Landscape.KMax)
	assert.Equal(t, topo.BruteForce, cfg.DTM.KNN)
}
