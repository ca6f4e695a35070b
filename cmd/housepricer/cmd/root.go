// Package cmd implements the housepricer command line.
package cmd

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/housepricer/config"
	"github.com/YuminosukeSato/housepricer/pipeline"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/pkg/log"
	"github.com/YuminosukeSato/housepricer/registry"
)

// configKey annotates a flag with the config key it overrides.
const configKey = "housepricer_config_key"

var rootDescription = "train house price regressors and write Kaggle submissions."

// app carries the state shared by every subcommand of one invocation.
type app struct {
	cfgFile string
	cfg     *config.Config
	stderr  io.Writer
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{stderr: os.Stderr}
	root := &cobra.Command{
		Use:               "housepricer",
		Short:             rootDescription,
		Long:              rootDescription,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file, housepricer.yaml in the working directory when empty")
	flags.String("train", "", "training CSV with the SalePrice column")
	flags.String("test", "", "test CSV to predict for submissions")
	flags.Int("components", 0, "number of PCA components, 0 disables PCA")
	flags.Bool("cache", false, "reuse fitted models while the feature pipeline is unchanged")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: zerolog or slog")
	bindConfigKey(flags, "train", "data.train")
	bindConfigKey(flags, "test", "data.test")
	bindConfigKey(flags, "components", "features.components")
	bindConfigKey(flags, "cache", "registry.cache")
	bindConfigKey(flags, "log-level", "log.level")
	bindConfigKey(flags, "log-format", "log.format")

	root.AddCommand(
		a.trainCommand(),
		a.residualsCommand(),
		a.importanceCommand(),
		a.learningCurveCommand(),
		a.submitCommand(),
		a.plotCommand(),
		a.serveCommand(),
	)
	return root
}

func bindConfigKey(flags *pflag.FlagSet, name, key string) {
	if err := flags.SetAnnotation(name, configKey, []string{key}); err != nil {
		panic(err)
	}
}

// load reads the config and applies every changed flag annotated with a key.
func (a *app) load(cmd *cobra.Command) error {
	v, err := config.New(a.cfgFile)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg.Log, a.stderr); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[configKey]
		if len(keys) == 0 || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(keys[0], f)
	})
	return bindErr
}

func setupLogging(cfg config.Log, w io.Writer) error {
	level, err := log.ToLogLevel(cfg.Level)
	if err != nil {
		return err
	}
	if cfg.Format == "slog" {
		return log.SetupLogger(cfg.Level, w)
	}
	log.SetupZerolog(w, log.Level(level))
	return nil
}

func (a *app) service() (*pipeline.Service, error) {
	return pipeline.FromConfig(a.cfg)
}

// kinds parses --model values; none selects every kind.
func kinds(names []string) ([]registry.ModelKind, error) {
	if len(names) == 0 {
		return registry.Kinds(), nil
	}
	out := make([]registry.ModelKind, 0, len(names))
	for _, name := range names {
		kind, err := registry.ParseModelKind(name)
		if err != nil {
			return nil, err
		}
		out = append(out, kind)
	}
	return out, nil
}

func kindFlag(cmd *cobra.Command) (registry.ModelKind, error) {
	name, err := cmd.Flags().GetString("model")
	if err != nil {
		return 0, err
	}
	if name == "" {
		return 0, errors.NewValidationError("model", "is required", name)
	}
	return registry.ParseModelKind(name)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.WithStack(enc.Encode(v))
}
