package cubical

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// Options configures Complex.
type Options struct {
	// MinPersistence drops finite pairs whose persistence is not strictly
	// greater than it. Essential classes are always kept.
	MinPersistence float64
}

// DefaultOptions keeps every pair with positive persistence.
func DefaultOptions() Options {
	return Options{MinPersistence: 0}
}

// Complex is the bundled Oracle. Layouts (cells, boundaries, cofaces) depend
// only on the grid shape and are cached per shape.
type Complex struct {
	opts    Options
	layouts sync.Map // shape key -> *layout
}

// New creates a cubical oracle.
func New(opts Options) *Complex {
	return &Complex{opts: opts}
}

// Persistence computes the persistence diagram of field over shape.
func (c *Complex) Persistence(field []float64, shape []int) (*Diagram, error) {
	n := 1
	for _, s := range shape {
		if s <= 0 {
			return nil, fmt.Errorf("%w: shape %v", ErrShapeMismatch, shape)
		}
		n *= s
	}
	if len(shape) == 0 || n != len(field) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(field), shape)
	}
	for i, v := range field {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: cell %d = %v", ErrInvalidField, i, v)
		}
	}

	lay := c.layout(shape)
	filt, owner := lay.filtration(field)
	order := lay.order(filt)
	pairs := lay.reduce(order)

	diag := &Diagram{Pairs: make([]Pair, 0, len(pairs))}
	for _, p := range pairs {
		birth := order[p.birth]
		pair := Pair{
			Dim:       int(lay.dim[birth]),
			Birth:     filt[birth],
			Death:     math.Inf(1),
			BirthCell: int(owner[birth]),
			DeathCell: -1,
		}
		if p.death >= 0 {
			death := order[p.death]
			pair.Death = filt[death]
			pair.DeathCell = int(owner[death])
			if pair.Death-pair.Birth <= c.opts.MinPersistence {
				continue
			}
		}
		diag.Pairs = append(diag.Pairs, pair)
	}
	SortCanonical(diag.Pairs)
	return diag, nil
}

func (c *Complex) layout(shape []int) *layout {
	key := shapeKey(shape)
	if v, ok := c.layouts.Load(key); ok {
		return v.(*layout)
	}
	v, _ := c.layouts.LoadOrStore(key, newLayout(shape))
	return v.(*layout)
}

func shapeKey(shape []int) string {
	parts := make([]string, len(shape))
	for i, s := range shape {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, "x")
}

// layout is the cell structure of a cubical complex over a grid of top cells.
//
// Cells live on the extended grid with 2*n+1 positions per axis; a cell's
// dimension is the number of odd coordinates. Top cells have all
// coordinates odd and map to field index (x-1)/2 row-major.
type layout struct {
	numCells  int
	dim       []int8
	boundary  [][]int32 // cell ids of codimension-1 faces
	cofaceOff []int32   // cofaces of cell i are cofaces[cofaceOff[i]:cofaceOff[i+1]]
	cofaces   []int32   // field indices of top-dimensional cofaces
}

func newLayout(shape []int) *layout {
	d := len(shape)
	ext := make([]int, d)
	for a, s := range shape {
		ext[a] = 2*s + 1
	}
	strides := rowMajorStrides(ext)
	fieldStrides := rowMajorStrides(shape)
	total := strides[0] * ext[0]

	lay := &layout{
		numCells:  total,
		dim:       make([]int8, total),
		boundary:  make([][]int32, total),
		cofaceOff: make([]int32, total+1),
	}

	coord := make([]int, d)
	for id := 0; id < total; id++ {
		rem := id
		for a := 0; a < d; a++ {
			coord[a] = rem / strides[a]
			rem %= strides[a]
		}

		var bd []int32
		for a := 0; a < d; a++ {
			if coord[a]%2 == 1 {
				lay.dim[id]++
				bd = append(bd, int32(id-strides[a]), int32(id+strides[a])) //nolint:gosec // bounded by grid size
			}
		}
		lay.boundary[id] = bd

		lay.cofaces = appendTopCofaces(lay.cofaces, coord, ext, fieldStrides)
		lay.cofaceOff[id+1] = int32(len(lay.cofaces)) //nolint:gosec // bounded by grid size
	}
	return lay
}

// appendTopCofaces enumerates the top cells containing the cell at coord:
// each even coordinate may move one step down or up, odd ones stay.
func appendTopCofaces(dst []int32, coord, ext, fieldStrides []int) []int32 {
	d := len(coord)
	var walk func(a, idx int)
	walk = func(a, idx int) {
		if a == d {
			dst = append(dst, int32(idx)) //nolint:gosec // bounded by grid size
			return
		}
		x := coord[a]
		if x%2 == 1 {
			walk(a+1, idx+(x-1)/2*fieldStrides[a])
			return
		}
		if x-1 >= 1 {
			walk(a+1, idx+(x-2)/2*fieldStrides[a])
		}
		if x+1 <= ext[a]-2 {
			walk(a+1, idx+x/2*fieldStrides[a])
		}
	}
	walk(0, 0)
	return dst
}

func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	strides[len(shape)-1] = 1
	for i := len(shape) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * shape[i+1]
	}
	return strides
}

// filtration assigns every cell the minimum value of its top cofaces and
// records which top cell realizes it (lowest field index on ties).
func (l *layout) filtration(field []float64) ([]float64, []int32) {
	filt := make([]float64, l.numCells)
	owner := make([]int32, l.numCells)
	for id := 0; id < l.numCells; id++ {
		cof := l.cofaces[l.cofaceOff[id]:l.cofaceOff[id+1]]
		best := cof[0]
		for _, c := range cof[1:] {
			if field[c] < field[best] || (field[c] == field[best] && c < best) {
				best = c
			}
		}
		filt[id] = field[best]
		owner[id] = best
	}
	return filt, owner
}

// order returns cell ids sorted by (value, dimension, id). Faces never come
// after their cofaces, so this is a valid filtration order.
func (l *layout) order(filt []float64) []int32 {
	order := make([]int32, l.numCells)
	for i := range order {
		order[i] = int32(i) //nolint:gosec // bounded by grid size
	}
	slices.SortFunc(order, func(a, b int32) int {
		if c := cmp.Compare(filt[a], filt[b]); c != 0 {
			return c
		}
		if c := cmp.Compare(l.dim[a], l.dim[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return order
}

// rawPair holds filtration positions; death is -1 for essential classes.
type rawPair struct {
	birth, death int
}

// reduce runs the Z/2 column reduction over the boundary matrix in
// filtration order, highest dimension first so that pivots can clear the
// columns of the dimension below.
func (l *layout) reduce(order []int32) []rawPair {
	n := l.numCells
	pos := make([]int32, n)
	maxDim := int8(0)
	for p, id := range order {
		pos[id] = int32(p) //nolint:gosec // bounded by grid size
		maxDim = max(maxDim, l.dim[id])
	}

	pivot := make([][]int32, n) // pivot[low] = reduced column owning that low
	paired := make([]bool, n)   // by position
	var pairs []rawPair

	for d := maxDim; d >= 1; d-- {
		for j := 0; j < n; j++ {
			id := order[j]
			if l.dim[id] != d || paired[j] {
				continue
			}
			col := make([]int32, len(l.boundary[id]))
			for i, f := range l.boundary[id] {
				col[i] = pos[f]
			}
			slices.Sort(col)

			for len(col) > 0 {
				low := col[len(col)-1]
				other := pivot[low]
				if other == nil {
					break
				}
				col = symmetricDifference(col, other)
			}
			if len(col) == 0 {
				continue
			}
			low := col[len(col)-1]
			pivot[low] = col
			paired[low] = true
			paired[j] = true
			pairs = append(pairs, rawPair{birth: int(low), death: j})
		}
	}

	for j := 0; j < n; j++ {
		if !paired[j] {
			pairs = append(pairs, rawPair{birth: j, death: -1})
		}
	}
	return pairs
}

// symmetricDifference adds two sorted Z/2 columns.
func symmetricDifference(a, b []int32) []int32 {
	out := make([]int32, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
