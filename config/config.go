// Package config loads housepricer settings from defaults, an optional YAML
// file and HOUSEPRICER_* environment variables through viper.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/YuminosukeSato/housepricer/dataset"
	"github.com/YuminosukeSato/housepricer/evaluation"
	"github.com/YuminosukeSato/housepricer/features"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/pkg/log"
	"github.com/YuminosukeSato/housepricer/registry"
)

// EnvPrefix prefixes every environment variable, e.g. HOUSEPRICER_DATA_TRAIN.
const EnvPrefix = "HOUSEPRICER"

// DefaultFile is the config file name searched in the working directory.
const DefaultFile = "housepricer"

// Config is the fully resolved configuration.
type Config struct {
	Data       Data                      `mapstructure:"data"`
	Features   Features                  `mapstructure:"features"`
	Registry   Registry                  `mapstructure:"registry"`
	Models     map[string]map[string]any `mapstructure:"models"`
	Evaluation Evaluation                `mapstructure:"evaluation"`
	Log        Log                       `mapstructure:"log"`
	Server     Server                    `mapstructure:"server"`
}

type Data struct {
	Train         string   `mapstructure:"train"`
	Test          string   `mapstructure:"test"`
	IDColumn      string   `mapstructure:"id_column"`
	TargetColumn  string   `mapstructure:"target_column"`
	MissingTokens []string `mapstructure:"missing_tokens"`
}

type Features struct {
	Components  int      `mapstructure:"components"`
	Categorical []string `mapstructure:"categorical"`
	Unknown     string   `mapstructure:"unknown"`
}

type Registry struct {
	Cache bool `mapstructure:"cache"`
}

type Evaluation struct {
	Folds         int       `mapstructure:"folds"`
	TrainSizes    []float64 `mapstructure:"train_sizes"`
	Workers       int       `mapstructure:"workers"`
	HistogramBins int       `mapstructure:"histogram_bins"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // zerolog or slog
}

type Server struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// SetDefaults registers every key with its default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data.train", "data/train.csv")
	v.SetDefault("data.test", "data/test.csv")
	v.SetDefault("data.id_column", "Id")
	v.SetDefault("data.target_column", "SalePrice")
	v.SetDefault("data.missing_tokens", []string{"NA"})
	v.SetDefault("features.components", features.DefaultComponents)
	v.SetDefault("features.categorical", features.DefaultCategorical)
	v.SetDefault("features.unknown", "error")
	v.SetDefault("registry.cache", false)
	v.SetDefault("evaluation.folds", evaluation.DefaultFolds)
	v.SetDefault("evaluation.train_sizes", evaluation.DefaultTrainSizes)
	v.SetDefault("evaluation.workers", 0)
	v.SetDefault("evaluation.histogram_bins", 50)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "zerolog")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
}

// New returns a viper instance with defaults, environment binding and, when
// file is non-empty, that config file. An empty file searches for
// housepricer.yaml in the working directory and ignores its absence.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}
		return v, nil
	}
	v.SetConfigName(DefaultFile)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}
	return v, nil
}

// Load decodes v into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Data.IDColumn == "" {
		return errors.NewValidationError("data.id_column", "must not be empty", c.Data.IDColumn)
	}
	if c.Data.TargetColumn == "" {
		return errors.NewValidationError("data.target_column", "must not be empty", c.Data.TargetColumn)
	}
	if c.Features.Components < 0 {
		return errors.NewValidationError("features.components", "must not be negative", c.Features.Components)
	}
	if _, err := features.ParseUnknownPolicy(c.Features.Unknown); err != nil {
		return err
	}
	if c.Evaluation.Folds < 2 {
		return errors.NewValidationError("evaluation.folds", "must be at least 2", c.Evaluation.Folds)
	}
	if len(c.Evaluation.TrainSizes) == 0 {
		return errors.NewValidationError("evaluation.train_sizes", "must not be empty", c.Evaluation.TrainSizes)
	}
	for _, f := range c.Evaluation.TrainSizes {
		if !(f > 0 && f <= 1) {
			return errors.NewValidationError("evaluation.train_sizes", "fractions must be in (0, 1]", f)
		}
	}
	if c.Evaluation.Workers < 0 {
		return errors.NewValidationError("evaluation.workers", "must not be negative", c.Evaluation.Workers)
	}
	if _, err := log.ToLogLevel(c.Log.Level); err != nil {
		return errors.NewValidationError("log.level", "must be debug, info, warn or error", c.Log.Level)
	}
	switch c.Log.Format {
	case "zerolog", "slog":
	default:
		return errors.NewValidationError("log.format", "must be zerolog or slog", c.Log.Format)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return errors.NewValidationError("server.mode", "must be debug, release or test", c.Server.Mode)
	}

	for name, params := range c.Models {
		kind, err := registry.ParseModelKind(name)
		if err != nil {
			return err
		}
		spec := registry.DefaultSpecs()[kind].Merge(params)
		if err := spec.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DatasetOptions returns the loader options for both tables.
func (c *Config) DatasetOptions() []dataset.Option {
	opts := []dataset.Option{
		dataset.WithIDColumn(c.Data.IDColumn),
		dataset.WithTargetColumn(c.Data.TargetColumn),
	}
	if len(c.Data.MissingTokens) > 0 {
		opts = append(opts, dataset.WithMissingTokens(c.Data.MissingTokens...))
	}
	return opts
}

// PipelineOptions returns the feature pipeline options.
func (c *Config) PipelineOptions() []features.Option {
	policy, _ := features.ParseUnknownPolicy(c.Features.Unknown) // validated
	return []features.Option{
		features.WithComponents(c.Features.Components),
		features.WithCategorical(c.Features.Categorical...),
		features.WithUnknownPolicy(policy),
	}
}

// RegistryOptions returns the cache switch and per-kind hyperparameters.
func (c *Config) RegistryOptions() []registry.Option {
	opts := []registry.Option{registry.WithCache(c.Registry.Cache)}
	for name, params := range c.Models {
		kind, err := registry.ParseModelKind(name)
		if err != nil {
			continue // rejected by Validate
		}
		opts = append(opts, registry.WithParams(kind, registry.Params(params)))
	}
	return opts
}

// CurveOptions returns the learning curve options.
func (c *Config) CurveOptions() []evaluation.CurveOption {
	return []evaluation.CurveOption{
		evaluation.WithFolds(c.Evaluation.Folds),
		evaluation.WithTrainSizes(c.Evaluation.TrainSizes...),
		evaluation.WithWorkers(c.Evaluation.Workers),
	}
}
