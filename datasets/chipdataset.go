package datasets

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/Noofbiz/droneSeg/chips"
)

// ChipDataset serves (image, one-hot label) samples for a list of chips.
//
// The order of the chips is randomized on construction and again on every
// Reshuffle (or Reset, the gomlx epoch boundary). Each ChipDataset owns its
// random source: by default it is seeded from the clock, so the order is not
// reproducible across runs unless WithRand is used.
//
// Example may be called concurrently. Reshuffle takes a write lock, but callers
// that need a stable order for a whole epoch must not reshuffle mid-epoch.
type ChipDataset struct {
	name       string
	layout     chips.Layout
	numClasses int

	// BatchSize for Yield.
	BatchSize int

	mu    sync.RWMutex
	names []string
	rand  *rand.Rand

	// next is the position of the next Yield in names.
	next int
}

// Option configures a ChipDataset.
type Option func(*ChipDataset)

// WithRand sets the random source used for shuffling.
func WithRand(r *rand.Rand) Option {
	return func(d *ChipDataset) { d.rand = r }
}

// WithNumClasses sets the number of classes of the one-hot labels.
func WithNumClasses(n int) Option {
	return func(d *ChipDataset) { d.numClasses = n }
}

// WithBatchSize sets the number of samples per Yield.
func WithBatchSize(n int) Option {
	return func(d *ChipDataset) { d.BatchSize = n }
}

// NewChipDataset creates a dataset over the chips called names, stored in
// layout. The slice is copied, and then shuffled.
func NewChipDataset(name string, layout chips.Layout, names []string, options ...Option) *ChipDataset {
	d := &ChipDataset{
		name:       name,
		layout:     layout,
		numClasses: NumClasses,
		BatchSize:  16,
		names:      append([]string(nil), names...),
	}
	for _, option := range options {
		option(d)
	}
	if d.rand == nil {
		d.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	d.shuffle()
	return d
}

// Name implements gomlx's train.Dataset.
func (d *ChipDataset) Name() string { return d.name }

// Layout returns where the chips are read from.
func (d *ChipDataset) Layout() chips.Layout { return d.layout }

// NumClasses returns the depth of the one-hot labels.
func (d *ChipDataset) NumClasses() int { return d.numClasses }

// Len returns the number of chips.
func (d *ChipDataset) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.names)
}

// Names returns a copy of the chip names in their current order.
func (d *ChipDataset) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.names...)
}

// Example loads the sample at position idx of the current order.
// It returns a *RangeError if idx is not in [0, Len()).
func (d *ChipDataset) Example(idx int) (*Sample, error) {
	d.mu.RLock()
	if idx < 0 || idx >= len(d.names) {
		n := len(d.names)
		d.mu.RUnlock()
		return nil, &RangeError{What: "index", Value: idx, Limit: n}
	}
	name := d.names[idx]
	d.mu.RUnlock()
	return LoadSample(d.layout, name, d.numClasses)
}

// Batch loads the samples at the given positions.
func (d *ChipDataset) Batch(indices []int) ([]*Sample, error) {
	samples := make([]*Sample, len(indices))
	for i, idx := range indices {
		s, err := d.Example(idx)
		if err != nil {
			return nil, err
		}
		samples[i] = s
	}
	return samples, nil
}

// Reshuffle re-randomizes the order of the chips in place. It is meant to be
// called once at the end of every training epoch.
func (d *ChipDataset) Reshuffle() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shuffle()
}

func (d *ChipDataset) shuffle() {
	d.rand.Shuffle(len(d.names), func(i, j int) {
		d.names[i], d.names[j] = d.names[j], d.names[i]
	})
}

// nextIndices reserves the positions of the next Yield batch.
func (d *ChipDataset) nextIndices() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	size := d.BatchSize
	if size <= 0 {
		size = 1
	}
	end := min(d.next+size, len(d.names))
	indices := make([]int, 0, end-d.next)
	for i := d.next; i < end; i++ {
		indices = append(indices, i)
	}
	d.next = end
	return indices
}

// Yield implements gomlx's train.Dataset. It returns the next BatchSize
// samples (fewer at the end of the epoch) as one [B, H, W, 3] uint8 image
// tensor and one [B, H, W, NumClasses] float32 label tensor, and io.EOF once
// the epoch is over.
func (d *ChipDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	indices := d.nextIndices()
	if len(indices) == 0 {
		return nil, nil, nil, io.EOF
	}
	samples, err := d.Batch(indices)
	if err != nil {
		return nil, nil, nil, err
	}
	flat, err := MakeChipBatchFlat(samples)
	if err != nil {
		return nil, nil, nil, err
	}
	images, oneHot, err := flat.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	return d, []*tensors.Tensor{images}, []*tensors.Tensor{oneHot}, nil
}

// Reset implements gomlx's train.Dataset: it marks the end of an epoch,
// rewinding Yield and reshuffling.
func (d *ChipDataset) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next = 0
	d.shuffle()
}
