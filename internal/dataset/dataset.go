// Package dataset loads image classification data as weight fields for the
// topological layer: MNIST in IDX or CSV form, and synthetic ring/disc
// images for smoke tests.
package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/pllay/internal/tensor"
)

// Errors returned by loaders.
var (
	ErrInvalidFormat = errors.New("dataset: invalid format")
	ErrMismatch      = errors.New("dataset: images and labels length mismatch")
)

// Dataset holds square images and their labels. Multi-channel images are
// stored channel first.
type Dataset struct {
	Images   [][]float64 // [num_samples][channels*side*side], values in [0, 1]
	Labels   []int       // [num_samples]
	Side     int
	Channels int // 0 and 1 both mean grayscale
}

// Cells returns the number of values in one image.
func (d *Dataset) Cells() int {
	return max(d.Channels, 1) * d.Side * d.Side
}

// Replicate returns a copy of a grayscale dataset with every image repeated
// across channels, for layers whose grid has a channel axis.
func (d *Dataset) Replicate(channels int) (*Dataset, error) {
	if d.Channels > 1 {
		return nil, fmt.Errorf("%w: dataset already has %d channels", ErrInvalidFormat, d.Channels)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidFormat, channels)
	}
	plane := d.Side * d.Side
	out := &Dataset{Images: make([][]float64, len(d.Images)), Labels: d.Labels, Side: d.Side, Channels: channels}
	for i, img := range d.Images {
		if len(img) != plane {
			return nil, fmt.Errorf("%w: image %d has %d values, want %d", ErrInvalidFormat, i, len(img), plane)
		}
		rep := make([]float64, channels*plane)
		for c := 0; c < channels; c++ {
			copy(rep[c*plane:], img)
		}
		out.Images[i] = rep
	}
	return out, nil
}

// NumSamples returns the number of samples.
func (d *Dataset) NumSamples() int {
	return len(d.Images)
}

// Split shuffles with rng and returns (train, val) with a valFraction share
// in val.
func (d *Dataset) Split(valFraction float64, rng *rand.Rand) (train, val *Dataset) {
	idx := d.order(rng)
	nVal := int(float64(len(idx)) * valFraction)
	return d.subset(idx[nVal:]), d.subset(idx[:nVal])
}

// Batch is a mini-batch of weight fields.
type Batch struct {
	Images *tensor.Tensor // [size, channels*side*side]
	Labels []int
}

// Size returns the number of samples in the batch.
func (b *Batch) Size() int {
	return len(b.Labels)
}

// Batches splits the data into mini-batches; the last one may be smaller.
// A nil rng keeps the data order.
func (d *Dataset) Batches(batchSize int, rng *rand.Rand) ([]*Batch, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size %d", ErrInvalidFormat, batchSize)
	}
	if len(d.Images) != len(d.Labels) {
		return nil, ErrMismatch
	}
	idx := d.order(rng)
	cells := d.Cells()
	batches := make([]*Batch, 0, (len(idx)+batchSize-1)/batchSize)
	for start := 0; start < len(idx); start += batchSize {
		end := min(start+batchSize, len(idx))
		images := tensor.Zeros(end-start, cells)
		labels := make([]int, end-start)
		for j, i := range idx[start:end] {
			copy(images.Row(j), d.Images[i])
			labels[j] = d.Labels[i]
		}
		batches = append(batches, &Batch{Images: images, Labels: labels})
	}
	return batches, nil
}

func (d *Dataset) order(rng *rand.Rand) []int {
	idx := make([]int, len(d.Images))
	for i := range idx {
		idx[i] = i
	}
	if rng != nil {
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	}
	return idx
}

func (d *Dataset) subset(idx []int) *Dataset {
	out := &Dataset{Images: make([][]float64, len(idx)), Labels: make([]int, len(idx)), Side: d.Side, Channels: d.Channels}
	for j, i := range idx {
		out.Images[j] = d.Images[i]
		out.Labels[j] = d.Labels[i]
	}
	return out
}
