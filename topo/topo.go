// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package topo exposes the building blocks of the topological layer:
// grids, the weighted distance-to-measure, persistence diagrams and
// persistence landscapes.
//
// Most users want nn.TopoLayer, which chains them. Use this package to
// inspect intermediate results or to plug in another persistence oracle:
//
//	cfg := nn.DefaultTopoLayerConfig()
//	cfg.Oracle = myOracle // any topo.Oracle
//
// Layer configurations can be kept in YAML:
//
//	cfg, err := topo.LoadConfig("layer.yaml")
package topo

import (
	"github.com/born-ml/pllay/internal/config"
	"github.com/born-ml/pllay/internal/cubical"
	"github.com/born-ml/pllay/internal/dtm"
	"github.com/born-ml/pllay/internal/grid"
	"github.com/born-ml/pllay/internal/landscape"
	"github.com/born-ml/pllay/nn"
)

// Grids

// GridSpec describes a grid by limits and either size or step per axis.
type GridSpec = grid.Spec

// Grid is an immutable ordered point set.
type Grid = grid.Grid

// BuildGrid constructs the grid described by spec.
func BuildGrid(spec GridSpec) (*Grid, error) {
	return grid.Build(spec)
}

// Distance to measure

// DTMConfig configures a DTM layer.
type DTMConfig = dtm.Config

// DTM turns weight fields into weighted distance-to-measure fields.
type DTM = dtm.Layer

// KNN strategies.
const (
	StaticTable = dtm.StaticTable
	BruteForce  = dtm.BruteForce
)

// NewDTM builds a DTM layer.
func NewDTM(cfg DTMConfig) (*DTM, error) {
	return dtm.New(cfg)
}

// Persistence

// Oracle computes persistence diagrams of scalar fields on grids.
type Oracle = cubical.Oracle

// Pair is one persistence pair with its birth and death cells.
type Pair = cubical.Pair

// Diagram is the persistence diagram of one field.
type Diagram = cubical.Diagram

// CubicalOptions configures the bundled cubical complex.
type CubicalOptions = cubical.Options

// DefaultCubicalOptions keeps every pair (minimum persistence 0).
func DefaultCubicalOptions() CubicalOptions {
	return cubical.DefaultOptions()
}

// NewCubical returns the bundled cubical-complex oracle.
func NewCubical(opts CubicalOptions) Oracle {
	return cubical.New(opts)
}

// Landscapes

// LandscapeConfig configures a landscape op.
type LandscapeConfig = landscape.Config

// Landscape computes persistence landscapes and their Jacobians.
type Landscape = landscape.Op

// Jacobian is the sparse derivative of landscapes with respect to fields.
type Jacobian = landscape.Jacobian

// NewLandscape creates a landscape op; a nil oracle selects the cubical
// complex.
func NewLandscape(cfg LandscapeConfig, oracle Oracle) (*Landscape, error) {
	return landscape.New(cfg, oracle)
}

// Tent evaluates the tent function of (birth, death) at t.
func Tent(t, birth, death float64) float64 {
	return landscape.Tent(t, birth, death)
}

// Configuration

// LoadConfig reads a YAML layer configuration.
func LoadConfig(path string) (nn.TopoLayerConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nn.TopoLayerConfig{}, err
	}
	return cfg.Layer()
}
