package main

// dronedeploy downloads the Drone Deploy segmentation dataset, cuts it into
// chips and reports the resulting train/validation splits.
//
// Settings come from the defaults, then the -config YAML file, then CFG_*
// environment variables (e.g. CFG_TILER_CHIPSIZE=256). Flags given explicitly
// on the command line override all of them.
//
// Usage:
//   go run ./cmd/dronedeploy -root ~/work/dronedeploy -variant dataset-sample -report plots/classes.png

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/Noofbiz/droneSeg/chips"
	"github.com/Noofbiz/droneSeg/config"
	"github.com/Noofbiz/droneSeg/datasets"
	"github.com/Noofbiz/droneSeg/fetch"
	"github.com/Noofbiz/droneSeg/logger"
	"github.com/Noofbiz/droneSeg/report"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (optional)")
	rootFlag := flag.String("root", "", "directory holding the dataset archives and their extracted contents")
	variantFlag := flag.String("variant", "", fmt.Sprintf("dataset variant, one of %v", datasets.Variants()))
	downloadFlag := flag.Bool("download", true, "download and extract the dataset if missing")
	loadFlag := flag.Bool("load", true, "load the train/valid splits")
	chipSizeFlag := flag.Int("chip-size", chips.DefaultChipSize, "chip side in pixels")
	edgeFlag := flag.String("edge", "pad", "edge policy for partial chips: pad or drop")
	reportPath := flag.String("report", "", "if set, write a class histogram chart of the splits to this path")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %+v\n", err)
		os.Exit(1)
	}
	cfg := &config.Config

	// explicit CLI flags override the configuration
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "root":
			cfg.Dataset.Root = *rootFlag
		case "variant":
			cfg.Dataset.Variant = *variantFlag
		case "download":
			cfg.Dataset.Download = *downloadFlag
		case "load":
			cfg.Dataset.LoadSplits = *loadFlag
		case "chip-size":
			cfg.Tiler.ChipSize = *chipSizeFlag
		case "edge":
			cfg.Tiler.Edge = *edgeFlag
		}
	})

	log := logger.GetZapLogger(cfg.Log.Debug)
	defer func() { _ = log.Sync() }()

	if err := config.ValidateConfig(cfg); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	tiler, err := newTiler(cfg, log)
	if err != nil {
		log.Fatal("invalid tiler configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := datasets.DroneDeployOptions{
		Download:   cfg.Dataset.Download,
		LoadSplits: cfg.Dataset.LoadSplits || *reportPath != "",
		Fetcher: fetch.NewClient(log, fetch.Config{
			Timeout:    cfg.Fetch.Timeout,
			RetryCount: cfg.Fetch.RetryCount,
			RetryWait:  cfg.Fetch.RetryWait,
		}),
		Tiler:     tiler,
		BatchSize: cfg.Dataset.BatchSize,
		Logger:    log,
	}
	if seed := cfg.Dataset.Seed; seed != 0 {
		opts.NewRand = func() *rand.Rand {
			seed++
			return rand.New(rand.NewSource(seed))
		}
	}

	dd, err := datasets.NewDroneDeploy(ctx, cfg.Dataset.Root, cfg.Dataset.Variant, opts)
	if err != nil {
		var cfgErr *datasets.ConfigError
		if errors.As(err, &cfgErr) {
			log.Fatal("unknown dataset variant",
				zap.String("variant", cfgErr.Variant),
				zap.Strings("available", cfgErr.Available))
		}
		log.Fatal("failed to prepare dataset", zap.Error(err))
	}
	if dd.Train == nil {
		log.Info("dataset prepared", zap.String("dir", dd.Layout.Root))
		return
	}
	log.Info("dataset ready",
		zap.String("dir", dd.Layout.Root),
		zap.Int("train", dd.Train.Len()),
		zap.Int("valid", dd.Valid.Len()))
	fmt.Printf("%s: %d training chips, %d validation chips\n", dd.Variant, dd.Train.Len(), dd.Valid.Len())

	if *reportPath == "" {
		return
	}
	var hists []*report.ClassHistogram
	for _, ds := range []*datasets.ChipDataset{dd.Train, dd.Valid} {
		h, err := report.Histogram(ctx, ds.Name(), ds)
		if err != nil {
			log.Fatal("failed to compute class histogram", zap.String("split", ds.Name()), zap.Error(err))
		}
		fmt.Print(h)
		hists = append(hists, h)
	}
	if err := report.PlotClassHistogram(*reportPath, hists...); err != nil {
		log.Fatal("failed to plot class histogram", zap.Error(err))
	}
	log.Info("report written", zap.String("path", *reportPath))
}

func newTiler(cfg *config.AppConfig, log *zap.Logger) (*chips.Tiler, error) {
	edge, err := chips.ParseEdgePolicy(cfg.Tiler.Edge)
	if err != nil {
		return nil, err
	}
	tiler := chips.NewTiler(cfg.Tiler.ChipSize)
	tiler.Edge = edge
	tiler.LabelFill = cfg.Tiler.LabelFill
	tiler.SkipIgnored = cfg.Tiler.SkipIgnored
	tiler.Progress = cfg.Tiler.Progress
	tiler.Logger = log
	if cfg.Tiler.Palette {
		tiler.Palette = chips.DroneDeployPalette
	}
	if s := cfg.Tiler.Split; s.NumFolds > 0 {
		tiler.Splitter = chips.HashSplit{NumFolds: s.NumFolds, ValidFolds: s.ValidFolds, Seed: s.Seed}
	}
	return tiler, nil
}
