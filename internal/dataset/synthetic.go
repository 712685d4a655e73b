package dataset

import (
	"math"
	"math/rand/v2"
)

// Synthetic class labels.
const (
	LabelDisc = 0
	LabelRing = 1
)

// Synthetic returns n side x side images, alternating between filled discs
// (label 0) and rings (label 1). Radius, center and thickness are jittered
// by rng and every pixel carries uniform noise of amplitude noise. The two
// classes differ in their 1-dimensional homology: a ring encloses a hole.
func Synthetic(n, side int, noise float64, rng *rand.Rand) *Dataset {
	d := &Dataset{Images: make([][]float64, n), Labels: make([]int, n), Side: side}
	for i := 0; i < n; i++ {
		label := i % 2
		d.Labels[i] = label
		d.Images[i] = drawShape(side, label == LabelRing, noise, rng)
	}
	return d
}

func drawShape(side int, ring bool, noise float64, rng *rand.Rand) []float64 {
	cx := (rng.Float64() - 0.5) * 0.2
	cy := (rng.Float64() - 0.5) * 0.2
	radius := 0.45 + rng.Float64()*0.15
	width := 0.08 + rng.Float64()*0.04

	img := make([]float64, side*side)
	for i := 0; i < side; i++ {
		y := 1 - 2*float64(i)/float64(side-1)
		for j := 0; j < side; j++ {
			x := -1 + 2*float64(j)/float64(side-1)
			r := math.Hypot(x-cx, y-cy)
			var v float64
			if ring {
				v = math.Exp(-(r - radius) * (r - radius) / (2 * width * width))
			} else {
				v = 1 / (1 + math.Exp((r-radius)/width*4))
			}
			v += noise * rng.Float64()
			img[i*side+j] = math.Min(v, 1)
		}
	}
	return img
}
