// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense float64 tensor used by pllay layers.
//
// Tensors are row-major. Layers batch along the first axis: weight fields
// are [batch, cells], landscapes [batch, dims, tseq, kmax].
//
//	x := tensor.MustFromSlice([]float64{1, 2, 3, 4}, 2, 2)
//	row := x.Row(1) // [3 4]
package tensor
