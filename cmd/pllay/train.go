package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"slices"

	"github.com/born-ml/pllay/internal/autodiff"
	"github.com/born-ml/pllay/internal/dataset"
	"github.com/born-ml/pllay/internal/nn"
	"github.com/born-ml/pllay/internal/optim"
)

// dataFlags are shared by train and eval.
type dataFlags struct {
	config  *string
	dir     *string
	test    *bool
	samples *int
	side    *int
	noise   *float64
	seed    *uint64
}

func addDataFlags(fs *flag.FlagSet) dataFlags {
	return dataFlags{
		config:  fs.String("config", "", "Layer configuration (YAML); default is the MNIST layer"),
		dir:     fs.String("data", "", "Directory with MNIST IDX files; empty uses synthetic rings and discs"),
		test:    fs.Bool("test", false, "Load the MNIST test set instead of the training set"),
		samples: fs.Int("samples", 200, "Max samples to load or generate (0 = all MNIST samples)"),
		side:    fs.Int("side", 16, "Synthetic image side length when no config is given"),
		noise:   fs.Float64("noise", 0.1, "Synthetic pixel noise amplitude"),
		seed:    fs.Uint64("seed", 1, "Random seed"),
	}
}

// load returns the layer configuration and the matching data set.
func (f dataFlags) load(rng *rand.Rand) (nn.TopoLayerConfig, *dataset.Dataset, error) {
	side := *f.side
	if *f.dir != "" {
		side = 28
	}
	layer, img, err := loadLayer(*f.config, side)
	if err != nil {
		return nn.TopoLayerConfig{}, nil, err
	}

	var data *dataset.Dataset
	if *f.dir != "" {
		data, err = dataset.LoadMNIST(*f.dir, !*f.test, *f.samples)
		if err != nil {
			return nn.TopoLayerConfig{}, nil, err
		}
	} else {
		data = dataset.Synthetic(*f.samples, img.side, *f.noise, rng)
	}
	if data, err = img.fit(data); err != nil {
		return nn.TopoLayerConfig{}, nil, err
	}
	if data.NumSamples() == 0 {
		return nn.TopoLayerConfig{}, nil, errors.New("no samples")
	}
	return layer, data, nil
}

func numClasses(labels []int) int {
	return max(slices.Max(labels)+1, 2)
}

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	df := addDataFlags(fs)
	epochs := fs.Int("epochs", 5, "Number of training epochs")
	batchSize := fs.Int("batch", 16, "Batch size for training")
	lr := fs.Float64("lr", 0.01, "Learning rate for Adam optimizer")
	out := fs.String("out", "model.pllay", "Where to save the trained parameters")
	pretrained := fs.String("pretrained", "", "Load and freeze the topological layer from this file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*df.seed, *df.seed))
	layerCfg, data, err := df.load(rng)
	if err != nil {
		return err
	}
	train, val := data.Split(0.2, rng)
	log.Printf("train: %d samples, val: %d samples, %d values per image", train.NumSamples(), val.NumSamples(), data.Cells())

	tape := autodiff.NewGradientTape()
	model, err := nn.NewTopoClassifier(layerCfg, numClasses(data.Labels), rng, tape)
	if err != nil {
		return err
	}
	if *pretrained != "" {
		saved, err := nn.ReadStateDict(*pretrained)
		if err != nil {
			return err
		}
		taken, err := model.LoadPretrained(saved)
		if err != nil {
			return err
		}
		log.Printf("loaded %d pretrained tensors, topological layer frozen", len(taken))
	}

	optimizer := optim.NewAdam(nn.Trainable(model), optim.AdamConfig{LR: *lr})
	criterion := nn.NewCrossEntropyLoss(tape)

	valBatches, err := val.Batches(64, nil)
	if err != nil {
		return err
	}
	var valLoss, valAcc float64
	for epoch := 0; epoch < *epochs; epoch++ {
		batches, err := train.Batches(*batchSize, rng)
		if err != nil {
			return err
		}
		loss, acc, err := trainEpoch(model, criterion, optimizer, tape, batches)
		if err != nil {
			return err
		}
		valLoss, valAcc, err = evaluate(model, valBatches)
		if err != nil {
			return err
		}
		log.Printf("epoch %2d/%d: loss=%.4f train acc=%.2f%% val loss=%.4f val acc=%.2f%%",
			epoch+1, *epochs, loss, acc*100, valLoss, valAcc*100)
	}

	ckpt := &nn.Checkpoint{
		Model:     model,
		Optimizer: optimizer,
		ModelType: "TopoClassifier",
		Epoch:     *epochs,
		Loss:      valLoss,
		Accuracy:  valAcc,
	}
	if err := ckpt.Save(*out); err != nil {
		return err
	}
	log.Printf("saved %s (model id %s)", *out, ckpt.ModelID)
	return nil
}

func runEval(args []string) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	df := addDataFlags(fs)
	modelPath := fs.String("model", "model.pllay", "Saved parameters")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*df.seed+1, *df.seed+1))
	layerCfg, data, err := df.load(rng)
	if err != nil {
		return err
	}
	saved, err := nn.ReadStateDict(*modelPath)
	if err != nil {
		return err
	}
	bias, ok := saved["head.bias"]
	if !ok {
		return fmt.Errorf("%s has no head.bias; not a TopoClassifier", *modelPath)
	}
	model, err := nn.NewTopoClassifier(layerCfg, bias.NumElements(), nil, nil)
	if err != nil {
		return err
	}
	// Checkpoints also hold optimizer state; only the model's names are loaded.
	merged, _ := nn.MergeStateDict(model.StateDict(), saved)
	if err := model.LoadStateDict(merged); err != nil {
		return err
	}

	batches, err := data.Batches(64, nil)
	if err != nil {
		return err
	}
	loss, acc, err := evaluate(model, batches)
	if err != nil {
		return err
	}
	log.Printf("%d samples: loss=%.4f accuracy=%.2f%%", data.NumSamples(), loss, acc*100)
	return nil
}

// trainEpoch runs one pass over batches and returns the mean loss and the
// training accuracy.
func trainEpoch(
	model *nn.TopoClassifier,
	criterion *nn.CrossEntropyLoss,
	optimizer optim.Optimizer,
	tape *autodiff.GradientTape,
	batches []*dataset.Batch,
) (avgLoss, accuracy float64, err error) {
	var totalLoss float64
	var correct, seen int
	for _, batch := range batches {
		tape.Clear()
		tape.StartRecording()
		logits, err := model.Forward(batch.Images)
		if err != nil {
			return 0, 0, err
		}
		loss, err := criterion.Forward(logits, batch.Labels)
		if err != nil {
			return 0, 0, err
		}
		tape.StopRecording()

		grads := autodiff.Backward(tape, loss)
		optimizer.Step(grads)
		optimizer.ZeroGrad()

		totalLoss += loss.Data()[0]
		correct += int(nn.Accuracy(logits, batch.Labels)*float64(batch.Size()) + 0.5)
		seen += batch.Size()
	}
	tape.Clear()
	return totalLoss / float64(len(batches)), float64(correct) / float64(seen), nil
}

// evaluate returns the mean loss and accuracy without recording gradients.
func evaluate(model *nn.TopoClassifier, batches []*dataset.Batch) (avgLoss, accuracy float64, err error) {
	if len(batches) == 0 {
		return 0, 0, nil
	}
	criterion := nn.NewCrossEntropyLoss(nil)
	var totalLoss float64
	var correct, seen int
	for _, batch := range batches {
		logits, err := model.Forward(batch.Images)
		if err != nil {
			return 0, 0, err
		}
		loss, err := criterion.Forward(logits, batch.Labels)
		if err != nil {
			return 0, 0, err
		}
		totalLoss += loss.Data()[0]
		correct += int(nn.Accuracy(logits, batch.Labels)*float64(batch.Size()) + 0.5)
		seen += batch.Size()
	}
	return totalLoss / float64(len(batches)), float64(correct) / float64(seen), nil
}
