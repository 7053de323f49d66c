package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"
)

// DatasetConfig selects and prepares the Drone Deploy dataset.
type DatasetConfig struct {
	Root       string `koanf:"root"`
	Variant    string `koanf:"variant"`
	Download   bool   `koanf:"download"`
	LoadSplits bool   `koanf:"loadsplits"`
	BatchSize  int    `koanf:"batchsize"`
	// Seed of the splits' shuffling; 0 seeds from the clock.
	Seed int64 `koanf:"seed"`
}

// TilerConfig defines how scenes are cut into chips.
type TilerConfig struct {
	ChipSize    int    `koanf:"chipsize"`
	Edge        string `koanf:"edge"`
	LabelFill   uint8  `koanf:"labelfill"`
	Palette     bool   `koanf:"palette"`
	SkipIgnored bool   `koanf:"skipignored"`
	Progress    bool   `koanf:"progress"`
	// Split, if NumFolds > 0, writes the train/valid manifests while chipping
	// unless the archive already has them.
	Split struct {
		NumFolds   int   `koanf:"numfolds"`
		ValidFolds int   `koanf:"validfolds"`
		Seed       int32 `koanf:"seed"`
	} `koanf:"split"`
}

// FetchConfig related to the archive download
type FetchConfig struct {
	Timeout    time.Duration `koanf:"timeout"`
	RetryCount int           `koanf:"retrycount"`
	RetryWait  time.Duration `koanf:"retrywait"`
}

// LogConfig related to logging
type LogConfig struct {
	Debug bool `koanf:"debug"`
}

// AppConfig defines
type AppConfig struct {
	Dataset DatasetConfig `koanf:"dataset"`
	Tiler   TilerConfig   `koanf:"tiler"`
	Fetch   FetchConfig   `koanf:"fetch"`
	Log     LogConfig     `koanf:"log"`
}

// Config - Global variable to export
var Config AppConfig

// Defaults used for keys neither the file nor the environment set.
var Defaults = map[string]any{
	"dataset.root":           "~/work/dronedeploy",
	"dataset.variant":        "dataset-sample",
	"dataset.download":       true,
	"dataset.loadsplits":     true,
	"dataset.batchsize":      16,
	"tiler.chipsize":         300,
	"tiler.edge":             "pad",
	"tiler.palette":          true,
	"tiler.skipignored":      true,
	"tiler.progress":         true,
	"tiler.split.numfolds":   5,
	"tiler.split.validfolds": 1,
	"fetch.timeout":          "30m",
	"fetch.retrycount":       3,
	"fetch.retrywait":        "5s",
}

// Init - Assign global config to decoded config struct. filePath may be empty,
// then only the defaults and the CFG_ environment variables are used.
func Init(filePath string) error {
	cfg, err := Load(filePath)
	if err != nil {
		return err
	}
	Config = *cfg
	return nil
}

// Load reads the configuration: defaults, then the YAML file at filePath (if
// not empty), then CFG_<SECTION>_<KEY> environment variables.
func Load(filePath string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults, "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load default configuration")
	}

	if filePath != "" {
		if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load configuration file %q", filePath)
		}
	}

	if err := k.Load(env.ProviderWithValue("CFG_", ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CFG_")), "_", ".")
		return key, v
	}), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load environment configuration")
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfig is for custom validation rules for the configuration
func ValidateConfig(cfg *AppConfig) error {
	if cfg.Dataset.Root == "" {
		return errors.New("dataset.root must be set")
	}
	if cfg.Dataset.BatchSize < 0 {
		return errors.Errorf("dataset.batchsize must not be negative, got %d", cfg.Dataset.BatchSize)
	}
	if cfg.Tiler.ChipSize <= 0 {
		return errors.Errorf("tiler.chipsize must be positive, got %d", cfg.Tiler.ChipSize)
	}
	switch cfg.Tiler.Edge {
	case "", "pad", "drop":
	default:
		return errors.Errorf("tiler.edge must be \"pad\" or \"drop\", got %q", cfg.Tiler.Edge)
	}
	if s := cfg.Tiler.Split; s.NumFolds < 0 || s.ValidFolds < 0 || s.ValidFolds > s.NumFolds {
		return errors.Errorf("tiler.split: invalid %d valid folds out of %d", s.ValidFolds, s.NumFolds)
	}
	return nil
}
