package landscape

import (
	"fmt"

	"github.com/born-ml/pllay/internal/tensor"
)

// Jacobian is the derivative of a landscape tensor [batch, dims, tseq, kmax]
// with respect to the field tensor [batch, cells].
//
// Each landscape slot depends on at most two field cells: the birth cell of
// the pair holding the slot, with coefficient -1, and its death cell, with
// coefficient +1. Slots store -1 where the coefficient is zero.
type Jacobian struct {
	batch, dims, tlen, kmax, cells int

	birth []int32
	death []int32
}

func newJacobian(batch, dims, tlen, kmax, cells int) *Jacobian {
	n := batch * dims * tlen * kmax
	j := &Jacobian{
		batch: batch, dims: dims, tlen: tlen, kmax: kmax, cells: cells,
		birth: make([]int32, n),
		death: make([]int32, n),
	}
	for i := range j.birth {
		j.birth[i] = -1
		j.death[i] = -1
	}
	return j
}

// Shape returns [batch, dims, tseq, kmax, cells].
func (j *Jacobian) Shape() tensor.Shape {
	return tensor.Shape{j.batch, j.dims, j.tlen, j.kmax, j.cells}
}

func (j *Jacobian) slot(b, d, t, k int) int {
	return ((b*j.dims+d)*j.tlen+t)*j.kmax + k
}

// sample returns the birth and death cell slices of sample b.
func (j *Jacobian) sample(b int) (birth, death []int32) {
	n := j.dims * j.tlen * j.kmax
	return j.birth[b*n : (b+1)*n], j.death[b*n : (b+1)*n]
}

// At returns d landscape[b, d, t, k] / d field[b, cell].
func (j *Jacobian) At(b, d, t, k, cell int) float64 {
	s := j.slot(b, d, t, k)
	var v float64
	if int(j.birth[s]) == cell {
		v--
	}
	if int(j.death[s]) == cell {
		v++
	}
	return v
}

// Cells returns the birth and death cells feeding slot (b, d, t, k), or -1
// where the slot has no dependency on that side.
func (j *Jacobian) Cells(b, d, t, k int) (birth, death int) {
	s := j.slot(b, d, t, k)
	return int(j.birth[s]), int(j.death[s])
}

// NonZero returns the number of non-zero entries.
func (j *Jacobian) NonZero() int {
	n := 0
	for i := range j.birth {
		if j.birth[i] >= 0 {
			n++
		}
		if j.death[i] >= 0 {
			n++
		}
	}
	return n
}

// Dense materializes the Jacobian as a [batch, dims, tseq, kmax, cells] tensor.
func (j *Jacobian) Dense() *tensor.Tensor {
	out := tensor.Zeros(j.batch, j.dims, j.tlen, j.kmax, j.cells)
	data := out.Data()
	for s := range j.birth {
		base := s * j.cells
		if c := j.birth[s]; c >= 0 {
			data[base+int(c)]--
		}
		if c := j.death[s]; c >= 0 {
			data[base+int(c)]++
		}
	}
	return out
}

// contract computes sum over (d, t, k) of upstream[b, d, t, k] * J[b, d, t, k, :]
// for sample b, accumulating into grad.
func (j *Jacobian) contract(b int, upstream, grad []float64) {
	if len(grad) != j.cells {
		panic(fmt.Sprintf("landscape: gradient row has %d cells, want %d", len(grad), j.cells))
	}
	birth, death := j.sample(b)
	for s, g := range upstream {
		if g == 0 {
			continue
		}
		if c := birth[s]; c >= 0 {
			grad[c] -= g
		}
		if c := death[s]; c >= 0 {
			grad[c] += g
		}
	}
}
