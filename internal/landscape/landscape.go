// Package landscape turns scalar fields on a grid into persistence
// landscapes and back-propagates through them.
//
// Persistence is combinatorial, so the derivative is assembled by hand: every
// landscape slot is a tent function of one persistence pair, and the pair's
// birth and death values are field values at known cells. Forward returns the
// landscape together with that sparse Jacobian; Backward contracts an upstream
// gradient with it. The Jacobian is treated as a constant: no gradient flows
// into it.
package landscape

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/born-ml/pllay/internal/cubical"
	"github.com/born-ml/pllay/internal/parallel"
	"github.com/born-ml/pllay/internal/tensor"
)

// Errors returned by the landscape op.
var (
	ErrInvalidConfig    = errors.New("landscape: invalid config")
	ErrShapeMismatch    = errors.New("landscape: shape mismatch")
	ErrMalformedDiagram = errors.New("landscape: malformed persistence diagram")
)

// Config configures a landscape op.
type Config struct {
	TSeq       []float64 // Sample points of every landscape function
	KMax       int       // Number of landscape functions kept per dimension
	Dimensions []int     // Homology dimensions to track
	GridShape  []int     // Shape the flattened field is reshaped to
	Parallel   parallel.Config
}

// DefaultConfig returns the MNIST configuration.
func DefaultConfig() Config {
	return Config{
		TSeq:       []float64{0.5, 0.7, 0.9},
		KMax:       2,
		Dimensions: []int{0, 1},
		GridShape:  []int{28, 28},
		Parallel:   parallel.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.TSeq) == 0 {
		return fmt.Errorf("%w: empty tseq", ErrInvalidConfig)
	}
	for _, t := range c.TSeq {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("%w: tseq value %v", ErrInvalidConfig, t)
		}
	}
	if c.KMax <= 0 {
		return fmt.Errorf("%w: k_max=%d", ErrInvalidConfig, c.KMax)
	}
	if len(c.Dimensions) == 0 {
		return fmt.Errorf("%w: no homology dimensions", ErrInvalidConfig)
	}
	for _, d := range c.Dimensions {
		if d < 0 {
			return fmt.Errorf("%w: homology dimension %d", ErrInvalidConfig, d)
		}
	}
	if len(c.GridShape) == 0 {
		return fmt.Errorf("%w: empty grid shape", ErrInvalidConfig)
	}
	for _, s := range c.GridShape {
		if s <= 0 {
			return fmt.Errorf("%w: grid shape %v", ErrInvalidConfig, c.GridShape)
		}
	}
	return nil
}

// Cells returns the number of cells of the grid.
func (c Config) Cells() int {
	n := 1
	for _, s := range c.GridShape {
		n *= s
	}
	return n
}

// Features returns len(Dimensions) * len(TSeq), the width of a landscape
// after averaging over ranks.
func (c Config) Features() int {
	return len(c.Dimensions) * len(c.TSeq)
}

// Op computes persistence landscapes of a batch of fields.
type Op struct {
	cfg    Config
	oracle cubical.Oracle
	cells  int
}

// New creates a landscape op. A nil oracle selects the bundled cubical
// complex with minimum persistence 0.
func New(cfg Config, oracle cubical.Oracle) (*Op, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if oracle == nil {
		oracle = cubical.New(cubical.DefaultOptions())
	}
	cfg.TSeq = slices.Clone(cfg.TSeq)
	cfg.Dimensions = slices.Clone(cfg.Dimensions)
	cfg.GridShape = slices.Clone(cfg.GridShape)
	return &Op{cfg: cfg, oracle: oracle, cells: cfg.Cells()}, nil
}

// Config returns the op configuration.
func (o *Op) Config() Config {
	return o.cfg
}

// Forward computes the landscape [batch, dims, tseq, kmax] of a [batch, cells]
// field tensor and the Jacobian of that landscape with respect to the field.
//
// Samples are independent; they are evaluated concurrently according to the
// op's parallel config.
func (o *Op) Forward(fields *tensor.Tensor) (*tensor.Tensor, *Jacobian, error) {
	if fields.Rank() != 2 || fields.Dim(1) != o.cells {
		return nil, nil, fmt.Errorf("%w: fields %v, want [batch, %d]", ErrShapeMismatch, fields.Shape(), o.cells)
	}
	batch := fields.Dim(0)
	dims, tlen, kmax := len(o.cfg.Dimensions), len(o.cfg.TSeq), o.cfg.KMax

	land := tensor.Zeros(batch, dims, tlen, kmax)
	jac := newJacobian(batch, dims, tlen, kmax, o.cells)

	err := parallel.ForErr(batch, func(b int) error {
		diag, err := o.oracle.Persistence(fields.Row(b), o.cfg.GridShape)
		if err != nil {
			return fmt.Errorf("sample %d: %w", b, err)
		}
		pairs, err := o.canonical(diag)
		if err != nil {
			return fmt.Errorf("sample %d: %w", b, err)
		}
		birth, death := jac.sample(b)
		o.fill(pairs, land.Row(b), birth, death)
		return nil
	}, o.cfg.Parallel.Coarse())
	if err != nil {
		return nil, nil, err
	}
	return land, jac, nil
}

// Backward contracts the upstream gradient [batch, dims, tseq, kmax] with the
// Jacobian and returns the gradient on the field, [batch, cells].
func (o *Op) Backward(upstream *tensor.Tensor, jac *Jacobian) (*tensor.Tensor, error) {
	want := tensor.Shape{jac.batch, jac.dims, jac.tlen, jac.kmax}
	if !upstream.Shape().Equal(want) {
		return nil, fmt.Errorf("%w: upstream %v, want %v", ErrShapeMismatch, upstream.Shape(), want)
	}
	grad := tensor.Zeros(jac.batch, jac.cells)
	up, err := upstream.Reshape(jac.batch, jac.dims*jac.tlen*jac.kmax)
	if err != nil {
		return nil, err
	}
	parallel.For(jac.batch, func(b int) {
		jac.contract(b, up.Row(b), grad.Row(b))
	}, o.cfg.Parallel.Coarse())
	return grad, nil
}

// canonical validates the oracle output and returns the pairs in canonical
// order: descending dimension, then descending persistence, essential first.
func (o *Op) canonical(diag *cubical.Diagram) ([]cubical.Pair, error) {
	if diag == nil {
		return nil, nil
	}
	pairs := slices.Clone(diag.Pairs)
	for i, p := range pairs {
		if p.Dim < 0 || p.BirthCell < 0 || p.BirthCell >= o.cells || p.DeathCell >= o.cells {
			return nil, fmt.Errorf("%w: pair %d %+v on %d cells", ErrMalformedDiagram, i, p, o.cells)
		}
		if math.IsNaN(p.Birth) || math.IsNaN(p.Death) || p.Death < p.Birth {
			return nil, fmt.Errorf("%w: pair %d birth=%v death=%v", ErrMalformedDiagram, i, p.Birth, p.Death)
		}
		if p.Essential() != math.IsInf(p.Death, 1) {
			return nil, fmt.Errorf("%w: pair %d death=%v with death cell %d", ErrMalformedDiagram, i, p.Death, p.DeathCell)
		}
	}
	cubical.SortCanonical(pairs)
	return pairs, nil
}

// fill writes the landscape of one sample into land ([dims, tseq, kmax]
// flattened) and the cells feeding every slot into birth and death.
func (o *Op) fill(pairs []cubical.Pair, land []float64, birth, death []int32) {
	tlen, kmax := len(o.cfg.TSeq), o.cfg.KMax

	var (
		selected []cubical.Pair
		tents    []float64
		rank     []int
	)
	for d, dim := range o.cfg.Dimensions {
		selected = selected[:0]
		for _, p := range pairs {
			if p.Dim == dim {
				selected = append(selected, p)
			}
		}
		// No pair in this dimension: the slots stay zero with no dependency.
		if len(selected) == 0 {
			continue
		}
		keep := min(kmax, len(selected))

		for ti, t := range o.cfg.TSeq {
			tents = tents[:0]
			rank = rank[:0]
			for i, p := range selected {
				tents = append(tents, Tent(t, p.Birth, p.Death))
				rank = append(rank, i)
			}
			// Stable descending sort: equal values keep canonical order.
			slices.SortStableFunc(rank, func(a, b int) int {
				return cmp.Compare(tents[b], tents[a])
			})

			base := (d*tlen + ti) * kmax
			for k := 0; k < keep; k++ {
				p := selected[rank[k]]
				land[base+k] = tents[rank[k]]
				if birthActive(t, p.Birth, p.Death) {
					birth[base+k] = int32(p.BirthCell)
				}
				if !p.Essential() && deathActive(t, p.Birth, p.Death) {
					death[base+k] = int32(p.DeathCell)
				}
			}
		}
	}
}
