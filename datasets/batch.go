package datasets

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"

	"github.com/Noofbiz/droneSeg/chips"
)

// Sample is one (image chip, one-hot label chip) pair. It is built on every
// access and not cached.
type Sample struct {
	// Name of the chip file, shared by image and label.
	Name string

	Height, Width int
	Channels      int
	NumClasses    int

	// Image holds raw pixel values, row-major [Height, Width, Channels].
	Image []uint8

	// Label is the one-hot label, row-major [Height, Width, NumClasses].
	Label []float32
}

// LoadSample reads the image chip called name and its label chip from layout
// and one-hot encodes the label with numClasses classes.
func LoadSample(layout chips.Layout, name string, numClasses int) (*Sample, error) {
	pixels, height, width, err := loadImagePixels(layout.ImageChip(name))
	if err != nil {
		return nil, err
	}
	ids, lh, lw, err := loadClassIDs(layout.LabelChip(name))
	if err != nil {
		return nil, err
	}
	if lh != height || lw != width {
		return nil, errors.Errorf("chip %q: image is %dx%d but label is %dx%d", name, width, height, lw, lh)
	}
	oneHot, err := ToCategorical(ids, height, width, numClasses)
	if err != nil {
		return nil, errors.WithMessagef(err, "chip %q", name)
	}
	return &Sample{
		Name:       name,
		Height:     height,
		Width:      width,
		Channels:   imageChannels,
		NumClasses: numClasses,
		Image:      pixels,
		Label:      oneHot,
	}, nil
}

// ToGomlxTensors returns the sample as an uint8 [H, W, C] image tensor and a
// float32 [H, W, N] label tensor.
func (s *Sample) ToGomlxTensors() (image, label *tensors.Tensor) {
	image = tensors.FromFlatDataAndDimensions(s.Image, s.Height, s.Width, s.Channels)
	label = tensors.FromFlatDataAndDimensions(s.Label, s.Height, s.Width, s.NumClasses)
	return image, label
}

// ChipBatchFlat stores a batch of samples in flat contiguous buffers.
type ChipBatchFlat struct {
	Images     []uint8
	Labels     []float32
	BatchSize  int
	Height     int
	Width      int
	Channels   int
	NumClasses int
}

// MakeChipBatchFlat packs samples into contiguous buffers. All samples must
// share the same shape.
func MakeChipBatchFlat(samples []*Sample) (*ChipBatchFlat, error) {
	if len(samples) == 0 {
		return &ChipBatchFlat{}, nil
	}
	first := samples[0]
	b := &ChipBatchFlat{
		BatchSize:  len(samples),
		Height:     first.Height,
		Width:      first.Width,
		Channels:   first.Channels,
		NumClasses: first.NumClasses,
	}
	imageSize := b.Height * b.Width * b.Channels
	labelSize := b.Height * b.Width * b.NumClasses
	b.Images = make([]uint8, 0, b.BatchSize*imageSize)
	b.Labels = make([]float32, 0, b.BatchSize*labelSize)

	for i, s := range samples {
		if s.Height != b.Height || s.Width != b.Width || s.Channels != b.Channels || s.NumClasses != b.NumClasses {
			return nil, errors.Errorf("inconsistent shapes: sample 0 (%q) is [%d %d %d|%d], sample %d (%q) is [%d %d %d|%d]",
				first.Name, b.Height, b.Width, b.Channels, b.NumClasses,
				i, s.Name, s.Height, s.Width, s.Channels, s.NumClasses)
		}
		if len(s.Image) != imageSize || len(s.Label) != labelSize {
			return nil, errors.Errorf("sample %d (%q) has wrong buffer sizes: image %d (expected %d), label %d (expected %d)",
				i, s.Name, len(s.Image), imageSize, len(s.Label), labelSize)
		}
		b.Images = append(b.Images, s.Image...)
		b.Labels = append(b.Labels, s.Label...)
	}
	return b, nil
}

// ToGomlxTensors converts the batch to an uint8 [B, H, W, C] image tensor and
// a float32 [B, H, W, N] label tensor.
func (b *ChipBatchFlat) ToGomlxTensors() (images, labels *tensors.Tensor, err error) {
	if b.BatchSize == 0 {
		return nil, nil, errors.New("empty batch")
	}
	images = tensors.FromFlatDataAndDimensions(b.Images, b.BatchSize, b.Height, b.Width, b.Channels)
	labels = tensors.FromFlatDataAndDimensions(b.Labels, b.BatchSize, b.Height, b.Width, b.NumClasses)
	return images, labels, nil
}
