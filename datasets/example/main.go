package main

// Example command that prepares the Drone Deploy sample dataset and converts
// a small batch of chips into gomlx tensors.
//
// The datasets use lazy loading: they store chip names and only read the
// image and label chips when an example is requested.
//
// Usage:
//   go run ./datasets/example
//
// Note: the first run downloads the dataset-sample archive into
// ~/work/dronedeploy and cuts it into 300x300 chips, which takes a while.

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/Noofbiz/droneSeg/datasets"
	"github.com/Noofbiz/droneSeg/logger"
)

func main() {
	dd, err := datasets.NewDroneDeploy(context.Background(), "~/work/dronedeploy", datasets.DefaultVariant,
		datasets.DroneDeployOptions{
			Download:   true,
			LoadSplits: true,
			BatchSize:  4,
			Logger:     logger.GetZapLogger(false),
		})
	if err != nil {
		log.Fatalf("failed to prepare Drone Deploy dataset: %+v", err)
	}
	fmt.Printf("Dataset directory: %s\n", dd.Layout.Root)
	fmt.Printf("Total training chips: %d, validation chips: %d\n", dd.Train.Len(), dd.Valid.Len())

	// Prepare a small batch (first N examples)
	n := min(8, dd.Train.Len())
	if n == 0 {
		return
	}
	indices := make([]int, n)
	for i := range n {
		indices[i] = i
	}
	fmt.Printf("Loading batch of %d training chips...\n", n)
	samples, err := dd.Train.Batch(indices)
	if err != nil {
		log.Fatalf("failed to build training batch: %+v", err)
	}

	// Convert to flat contiguous buffers and then to gomlx tensors
	flat, err := datasets.MakeChipBatchFlat(samples)
	if err != nil {
		log.Fatalf("failed to make batch flat: %+v", err)
	}
	images, labels, err := flat.ToGomlxTensors()
	if err != nil {
		log.Fatalf("failed to convert batch to gomlx tensors: %+v", err)
	}
	fmt.Printf("Created tensors: images=%s labels=%s\n", images.Shape(), labels.Shape())

	// Show the classes of the first chip's center pixel
	first := samples[0]
	center := (first.Height/2*first.Width + first.Width/2) * first.NumClasses
	for class, v := range first.Label[center : center+first.NumClasses] {
		if v == 1 {
			fmt.Printf("  %s center pixel: %s\n", first.Name, datasets.ClassNames[class])
		}
	}

	// One epoch through the gomlx train.Dataset interface, then rewind.
	batches, err := epochBatches(dd.Valid)
	if err != nil {
		log.Fatalf("failed to yield validation batch: %+v", err)
	}
	fmt.Printf("Validation epoch: %d batches of up to %d chips\n", batches, dd.Valid.BatchSize)
}

// epochBatches yields ds until the end of the epoch and counts the batches.
// The dataset is Reset afterwards.
func epochBatches(ds datasets.Dataset) (int, error) {
	defer ds.Reset()
	batches := 0
	for {
		_, _, _, err := ds.Yield()
		if err == io.EOF {
			return batches, nil
		}
		if err != nil {
			return batches, err
		}
		batches++
	}
}
