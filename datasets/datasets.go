// Package datasets serves the Drone Deploy aerial segmentation chips as
// training examples.
//
// Layout and intended usage:
//
// DroneDeploy
//   - Acquires the dataset archive (delegated to a Fetcher) and extracts it.
//   - Cuts the source orthomosaics into chips once (see package chips).
//   - Builds the Train and Valid ChipDatasets from train.txt and valid.txt.
//
// ChipDataset
//   - Stores chip names only and loads the image/label pair from disk on each
//     access, so memory use does not grow with the dataset.
//   - Inputs per example: raw RGB values, [300, 300, 3] uint8.
//   - Labels per example: one-hot classes, [300, 300, NumClasses] float32.
//   - Reshuffle (or Reset) at the end of every epoch.
//
// Converting to gomlx tensors is done by Sample.ToGomlxTensors and
// ChipBatchFlat.ToGomlxTensors; Yield already returns batched tensors.
package datasets

import "github.com/gomlx/gomlx/pkg/core/tensors"

// Dataset is what training code needs from a split. ChipDataset implements
// it, and the Name/Yield/Reset methods match gomlx's train.Dataset.
type Dataset interface {
	Len() int
	Example(i int) (*Sample, error)
	Batch(indices []int) ([]*Sample, error)
	Reshuffle()

	// To implement gomlx's train.Dataset interface
	Name() string
	Yield() (any, []*tensors.Tensor, []*tensors.Tensor, error)
	Reset()
}

var _ Dataset = (*ChipDataset)(nil)
