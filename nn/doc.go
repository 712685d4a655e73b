// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the trainable pllay modules.
//
// # Overview
//
// This package contains:
//   - TopoLayer: DTM -> persistence landscape -> weighted average -> readout
//   - TopoClassifier: TopoLayer -> ReLU -> Linear head
//   - Building blocks: Linear, ReLU, WeightedAverage, Sequential
//   - Loss: CrossEntropyLoss
//   - State: Parameter, state dicts, pretrained merging, checkpoints
//
// # Basic Usage
//
//	tape := autodiff.NewGradientTape()
//	model, err := nn.NewTopoClassifier(nn.DefaultTopoLayerConfig(), 10, rng, tape)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	tape.StartRecording()
//	logits, err := model.Forward(images) // images: [batch, 784]
//	loss, err := nn.NewCrossEntropyLoss(tape).Forward(logits, labels)
//	grads := autodiff.Backward(tape, loss)
//
// # Pretrained Layers
//
// LoadPretrained copies every matching tensor except the classification
// head and freezes the topological layer:
//
//	saved, _ := nn.ReadStateDict("pretrained.pllay")
//	taken, err := model.LoadPretrained(saved)
//	opt := optim.NewAdam(nn.Trainable(model), optim.DefaultAdamConfig())
package nn
