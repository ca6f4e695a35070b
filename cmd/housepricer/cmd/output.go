package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/housepricer/pipeline"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/plots"
	"github.com/YuminosukeSato/housepricer/registry"
	"github.com/YuminosukeSato/housepricer/server"
	"github.com/YuminosukeSato/housepricer/submission"
)

// cliSession owns the submissions produced by one CLI invocation.
const cliSession = "cli"

var submitDescription = "predict the test set and write a Kaggle submission CSV."

func (a *app) submitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "submit [--model <kind>] [--label <label>] [flags]",
		Short:        submitDescription,
		Long:         submitDescription,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			model, _ := flags.GetString("model")
			label, _ := flags.GetString("label")
			dir, _ := flags.GetString("out")
			if model == "" && label == "" {
				return errors.NewValidationError("model", "one of --model or --label is required", model)
			}

			svc, err := a.service()
			if err != nil {
				return err
			}
			var table *submission.Table
			if model != "" {
				kind, perr := registry.ParseModelKind(model)
				if perr != nil {
					return perr
				}
				table, err = svc.Submission(cmd.Context(), cliSession, kind, label)
			} else {
				table, err = svc.SubmissionFor(cmd.Context(), cliSession, label)
			}
			if err != nil {
				return err
			}

			path := filepath.Join(dir, table.Filename())
			if err := writeFile(path, table.WriteCSV); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d predictions to %s\n", table.Len(), path)
			return nil
		},
	}
	cmd.Flags().StringP("model", "m", "", "model kind, resolved from --label when empty")
	cmd.Flags().StringP("label", "l", "", "submission label, the kind's default label when empty")
	cmd.Flags().StringP("out", "o", ".", "directory receiving <label>_submission.csv")
	return cmd
}

var plotDescription = "render a chart to an image file."

func (a *app) plotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "plot <chart> --out <file> [--model <kind>]",
		Short:        plotDescription,
		Long:         plotDescription + " Charts: histogram, pca, scatter, residuals, importance, learning-curve.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			chart, err := pipeline.ParseChart(args[0])
			if err != nil {
				return err
			}
			kind := registry.Linear
			if chart.ModelChart() {
				if kind, err = kindFlag(cmd); err != nil {
					return err
				}
			}
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = string(chart) + ".png"
			}

			svc, err := a.service()
			if err != nil {
				return err
			}
			p, err := svc.Render(cmd.Context(), chart, kind)
			if err != nil {
				return err
			}
			if err := plots.Save(p, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringP("model", "m", "", "model kind for model charts")
	cmd.Flags().StringP("out", "o", "", "output file, the extension selects the format (<chart>.png when empty)")
	return cmd
}

var serveDescription = "serve the pipeline as a JSON API."

func (a *app) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "serve [flags]",
		Short:        serveDescription,
		Long:         serveDescription,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.New(svc, a.cfg.Server.Mode).ListenAndServe(ctx, a.cfg.Server.Addr)
		},
	}
	flags := cmd.Flags()
	flags.String("addr", "", "listen address")
	flags.String("mode", "", "gin mode: debug, release or test")
	bindConfigKey(flags, "addr", "server.addr")
	bindConfigKey(flags, "mode", "server.mode")
	return cmd
}

func writeFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
