package datasets

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Noofbiz/droneSeg/chips"
	"github.com/Noofbiz/droneSeg/fetch"
	"github.com/Noofbiz/droneSeg/manifest"
)

// Resources maps each Drone Deploy dataset variant to its archive URL.
var Resources = map[string]string{
	"dataset-sample": "https://dl.dropboxusercontent.com/s/h8a8kev0rktf4kq/dataset-sample.tar.gz?dl=0",
	"dataset-medium": "https://dl.dropboxusercontent.com/s/r0dj9mhyv4bgbme/dataset-medium.tar.gz?dl=0",
}

// DefaultVariant is the small variant, good for trying things out.
const DefaultVariant = "dataset-sample"

// Variants returns the known dataset variants, sorted.
func Variants() []string {
	variants := make([]string, 0, len(Resources))
	for v := range Resources {
		variants = append(variants, v)
	}
	sort.Strings(variants)
	return variants
}

// Fetcher acquires the dataset archive. Both calls either fully succeed or
// return an error; retry policy is up to the implementation.
type Fetcher interface {
	Download(ctx context.Context, url, dst string) error
	Extract(archive, dstDir string) error
}

// DroneDeployOptions configures NewDroneDeploy.
type DroneDeployOptions struct {
	// Download fetches and extracts the archive if it is not there yet.
	Download bool

	// LoadSplits builds Train and Valid from train.txt and valid.txt.
	LoadSplits bool

	// Fetcher defaults to a fetch.Client.
	Fetcher Fetcher

	// Tiler cuts the chips when they are missing. Defaults to
	// chips.NewDroneDeployTiler(chips.DefaultChipSize), which decodes the color
	// labels and writes train.txt/valid.txt unless the archive has them.
	Tiler *chips.Tiler

	// NewRand returns the random source of each split. Defaults to clock seeded sources.
	NewRand func() *rand.Rand

	// BatchSize of the splits' Yield; 0 keeps the ChipDataset default.
	BatchSize int

	Logger *zap.Logger
}

// DroneDeploy prepares the Drone Deploy semantic segmentation dataset:
//
//   - <Root>/<Variant>.tar.gz is downloaded and extracted into <Root>, giving
//     <Root>/<Variant>/{images,labels,train.txt,valid.txt}.
//   - Chips are cut once, into <Root>/<Variant>/{image-chips,label-chips}.
//   - Train and Valid serve the chips listed by train.txt and valid.txt.
type DroneDeploy struct {
	Root     string
	Variant  string
	Filename string
	Layout   chips.Layout

	Train, Valid *ChipDataset

	opts   DroneDeployOptions
	logger *zap.Logger
}

// NewDroneDeploy validates variant and, depending on opts, downloads the
// dataset, creates the chips and loads the splits.
//
// An unknown variant returns a *ConfigError before anything else happens.
func NewDroneDeploy(ctx context.Context, root, variant string, opts DroneDeployOptions) (*DroneDeploy, error) {
	if _, found := Resources[variant]; !found {
		return nil, &ConfigError{Variant: variant, Available: Variants()}
	}
	root = fsutil.MustReplaceTildeInDir(root)
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dd := &DroneDeploy{
		Root:     root,
		Variant:  variant,
		Filename: variant + ".tar.gz",
		Layout:   chips.NewLayout(filepath.Join(root, variant)),
		opts:     opts,
		logger:   logger,
	}

	if opts.Download {
		if err := dd.Acquire(ctx); err != nil {
			return nil, err
		}
	}
	if opts.Download || opts.LoadSplits {
		if err := dd.EnsureChips(ctx); err != nil {
			return nil, err
		}
	}
	if opts.LoadSplits {
		var err error
		if dd.Train, dd.Valid, err = dd.LoadDataset(); err != nil {
			return nil, err
		}
	}
	return dd, nil
}

// ArchivePath is where the dataset archive is downloaded to.
func (dd *DroneDeploy) ArchivePath() string {
	return filepath.Join(dd.Root, dd.Filename)
}

// URL of the dataset archive.
func (dd *DroneDeploy) URL() string {
	return Resources[dd.Variant]
}

// Acquire downloads the archive unless it is already there, and extracts it
// unless the dataset directory already exists.
func (dd *DroneDeploy) Acquire(ctx context.Context) error {
	fetcher := dd.opts.Fetcher
	if fetcher == nil {
		fetcher = fetch.NewClient(dd.logger, fetch.Config{})
	}
	archive := dd.ArchivePath()
	if _, err := os.Stat(archive); err == nil {
		dd.logger.Info("archive already exists", zap.String("archive", archive))
	} else {
		dd.logger.Info("downloading dataset", zap.String("variant", dd.Variant))
		if err := fetcher.Download(ctx, dd.URL(), archive); err != nil {
			return errors.WithMessagef(err, "dataset %q", dd.Variant)
		}
	}

	if info, err := os.Stat(dd.Layout.Root); err == nil && info.IsDir() {
		dd.logger.Info("dataset directory already exists", zap.String("dir", dd.Layout.Root))
		return nil
	}
	dd.logger.Info("extracting dataset", zap.String("archive", archive))
	if err := fetcher.Extract(archive, dd.Root); err != nil {
		return errors.WithMessagef(err, "dataset %q", dd.Variant)
	}
	if _, err := os.Stat(dd.Layout.Root); err != nil {
		return errors.Errorf("archive %q did not contain the directory %q", archive, dd.Variant)
	}
	return nil
}

// EnsureChips runs the Tiler if neither chip directory exists. If only one of
// them exists it returns ErrPartialChips.
func (dd *DroneDeploy) EnsureChips(ctx context.Context) error {
	images, labels := dd.Layout.ChipsExist()
	switch {
	case images && labels:
		dd.logger.Info("chip directories already exist",
			zap.String("image_chips", dd.Layout.ImageChipsDir()),
			zap.String("label_chips", dd.Layout.LabelChipsDir()))
		return nil
	case images || labels:
		return errors.Wrapf(ErrPartialChips, "in %q, remove the remaining one to re-create the chips", dd.Layout.Root)
	}

	tiler := dd.opts.Tiler
	if tiler == nil {
		tiler = chips.NewDroneDeployTiler(chips.DefaultChipSize)
	}
	if tiler.Logger == nil {
		tiler.Logger = dd.logger
	}
	dd.logger.Info("creating chips", zap.String("dataset", dd.Layout.Root))
	if _, err := tiler.Run(ctx, dd.Layout); err != nil {
		return err
	}
	return nil
}

// LoadDataset builds the train and validation datasets from the manifests.
func (dd *DroneDeploy) LoadDataset() (train, valid *ChipDataset, err error) {
	train, err = dd.loadSplit(chips.TrainSplit)
	if err != nil {
		return nil, nil, err
	}
	valid, err = dd.loadSplit(chips.ValidSplit)
	if err != nil {
		return nil, nil, err
	}
	return train, valid, nil
}

func (dd *DroneDeploy) loadSplit(split string) (*ChipDataset, error) {
	names, err := manifest.Load(dd.Layout.Manifest(split))
	if err != nil {
		return nil, err
	}
	var options []Option
	if dd.opts.NewRand != nil {
		options = append(options, WithRand(dd.opts.NewRand()))
	}
	if dd.opts.BatchSize > 0 {
		options = append(options, WithBatchSize(dd.opts.BatchSize))
	}
	dd.logger.Info("split loaded", zap.String("split", split), zap.Int("chips", len(names)))
	return NewChipDataset(dd.Variant+"/"+split, dd.Layout, names, options...), nil
}
