// Package cubical computes persistent homology of scalar fields on regular
// grids, seen as cubical complexes of top-dimensional cells.
//
// The landscape layer only depends on the Oracle interface. Complex is the
// bundled implementation: sublevel-set filtration, Z/2 coefficients, standard
// column reduction with clearing.
package cubical

import (
	"cmp"
	"errors"
	"math"
	"slices"
)

// Errors returned by oracles.
var (
	ErrShapeMismatch = errors.New("cubical: field does not match shape")
	ErrInvalidField  = errors.New("cubical: invalid field")
)

// Oracle computes the persistence diagram of a field on a grid.
//
// field is flattened row-major over shape. Implementations must be safe for
// concurrent use.
type Oracle interface {
	Persistence(field []float64, shape []int) (*Diagram, error)
}

// Pair is one persistence pair. BirthCell and DeathCell index the flattened
// field: the top-dimensional cell whose value realizes the birth or death.
type Pair struct {
	Dim       int
	Birth     float64
	Death     float64 // +Inf for essential classes
	BirthCell int
	DeathCell int // -1 for essential classes
}

// Essential reports whether the class never dies.
func (p Pair) Essential() bool {
	return p.DeathCell < 0
}

// Persistence returns death - birth (+Inf for essential classes).
func (p Pair) Persistence() float64 {
	if p.Essential() {
		return math.Inf(1)
	}
	return p.Death - p.Birth
}

// Diagram is the list of persistence pairs of one field.
type Diagram struct {
	Pairs []Pair
}

// OfDim returns the pairs of homology dimension dim, in diagram order.
func (d *Diagram) OfDim(dim int) []Pair {
	var out []Pair
	for _, p := range d.Pairs {
		if p.Dim == dim {
			out = append(out, p)
		}
	}
	return out
}

// Finite returns the pairs with a death.
func (d *Diagram) Finite() []Pair {
	var out []Pair
	for _, p := range d.Pairs {
		if !p.Essential() {
			out = append(out, p)
		}
	}
	return out
}

// EssentialPairs returns the pairs without a death.
func (d *Diagram) EssentialPairs() []Pair {
	var out []Pair
	for _, p := range d.Pairs {
		if p.Essential() {
			out = append(out, p)
		}
	}
	return out
}

// SortCanonical orders pairs by descending dimension, then descending
// persistence with essential classes first. Ties keep the birth cell order.
func SortCanonical(pairs []Pair) {
	slices.SortStableFunc(pairs, func(a, b Pair) int {
		if c := cmp.Compare(b.Dim, a.Dim); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Persistence(), a.Persistence()); c != 0 {
			return c
		}
		return cmp.Compare(a.BirthCell, b.BirthCell)
	})
}
