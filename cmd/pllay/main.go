// Package main provides the pllay CLI.
//
// Commands:
//
//	pllay version
//	pllay config                       print the default layer configuration
//	pllay landscape [-shape ring|disc] print the landscape of a synthetic image
//	pllay train [-data dir] [-out model.pllay]
//	pllay eval -model model.pllay [-data dir]
//
// Without -data, train and eval use synthetic ring-vs-disc images. A -config
// grid may be 2-D (H, W) or channel first (C, H, W); grayscale images are
// repeated across channels.
package main

import (
	"fmt"
	"log"
	"os"
)

const version = "v0.3.0"

const usage = `pllay: differentiable persistence landscape layers

Commands:
  version    Show version
  config     Print the default layer configuration (YAML)
  landscape  Print the persistence landscape of a synthetic image
  train      Train a topological classifier and save its parameters
  eval       Evaluate saved parameters

A -config grid may be (H, W) or channel first (C, H, W) with H == W;
grayscale images are repeated across channels.
`

func main() {
	log.SetFlags(0)
	log.SetPrefix("pllay: ")

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(2)
	}
	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("pllay %s\n", version)
	case "config":
		err = runConfig(args)
	case "landscape":
		err = runLandscape(args)
	case "train":
		err = runTrain(args)
	case "eval":
		err = runEval(args)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Print(usage)
		log.Fatalf("unknown command %q", os.Args[1])
	}
	if err != nil {
		log.Fatal(err)
	}
}
