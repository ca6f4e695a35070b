package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/housepricer/evaluation"
	"github.com/YuminosukeSato/housepricer/features"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
)

func TestDefaults(t *testing.T) {
	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "Id", cfg.Data.IDColumn)
	assert.Equal(t, "SalePrice", cfg.Data.TargetColumn)
	assert.Equal(t, features.DefaultComponents, cfg.Features.Components)
	assert.Equal(t, features.DefaultCategorical, cfg.Features.Categorical)
	assert.Equal(t, "error", cfg.Features.Unknown)
	assert.False(t, cfg.Registry.Cache)
	assert.Equal(t, evaluation.DefaultFolds, cfg.Evaluation.Folds)
	assert.Equal(t, evaluation.DefaultTrainSizes, cfg.Evaluation.TrainSizes)
	assert.Equal(t, ":8080", cfg.Server.Addr)

	assert.Len(t, cfg.PipelineOptions(), 3)
	assert.Len(t, cfg.RegistryOptions(), 1)
	assert.Len(t, cfg.CurveOptions(), 3)
	assert.Len(t, cfg.DatasetOptions(), 3)
}

func TestFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "housepricer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  train: /data/train.csv
features:
  components: 0
  unknown: ignore
registry:
  cache: true
models:
  forest:
    n_estimators: 25
    max_depth: 8
  GradientBoostingRegressor:
    learning_rate: 0.05
evaluation:
  folds: 3
`), 0o600))

	t.Setenv("HOUSEPRICER_SERVER_ADDR", ":9999")
	t.Setenv("HOUSEPRICER_LOG_LEVEL", "debug")

	v, err := New(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/data/train.csv", cfg.Data.Train)
	assert.Equal(t, 0, cfg.Features.Components)
	assert.Equal(t, "ignore", cfg.Features.Unknown)
	assert.True(t, cfg.Registry.Cache)
	assert.Equal(t, 3, cfg.Evaluation.Folds)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.Contains(t, cfg.Models, "forest")
	assert.EqualValues(t, 25, cfg.Models["forest"]["n_estimators"])
	require.Contains(t, cfg.Models, "gradientboostingregressor")
	assert.Len(t, cfg.RegistryOptions(), 3)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{"negative components", func(c *Config) { c.Features.Components = -1 }, "features.components"},
		{"bad unknown policy", func(c *Config) { c.Features.Unknown = "bucket" }, "features.unknown"},
		{"one fold", func(c *Config) { c.Evaluation.Folds = 1 }, "evaluation.folds"},
		{"zero train size", func(c *Config) { c.Evaluation.TrainSizes = []float64{0, 1} }, "evaluation.train_sizes"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "text" }, "log.format"},
		{"server mode", func(c *Config) { c.Server.Mode = "prod" }, "server.mode"},
		{"unknown param", func(c *Config) {
			c.Models = map[string]map[string]any{"tree": {"kernel": "rbf"}}
		}, "models.tree.kernel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := New("")
			require.NoError(t, err)
			cfg, err := Load(v)
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			var verr *errors.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.param, verr.ParamName)
		})
	}

	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)
	cfg.Models = map[string]map[string]any{"svm": {}}
	assert.True(t, errors.Is(cfg.Validate(), errors.ErrUnknownModelKind))
}

func TestMissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
