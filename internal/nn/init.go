package nn

import (
	"math"
	"math/rand/v2"

	"github.com/born-ml/pllay/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// A nil rng uses the global source.
func Xavier(rng *rand.Rand, fanIn, fanOut int, dims ...int) *tensor.Tensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	t := tensor.Zeros(dims...)
	data := t.Data()
	for i := range data {
		data[i] = (uniform(rng)*2.0 - 1.0) * bound
	}
	return t
}

func uniform(rng *rand.Rand) float64 {
	if rng == nil {
		//nolint:gosec // Using math/rand for weight initialization (not security-critical)
		return rand.Float64()
	}
	return rng.Float64()
}
