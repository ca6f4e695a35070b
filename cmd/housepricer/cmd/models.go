package cmd

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/housepricer/pipeline"
	"github.com/YuminosukeSato/housepricer/pkg/log"
)

var trainDescription = "fit models and print their training set metrics."

func (a *app) trainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "train [flags]",
		Short:        trainDescription,
		Long:         trainDescription,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := cmd.Flags().GetStringSlice("model")
			if err != nil {
				return err
			}
			selected, err := kinds(names)
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			reports := make([]*pipeline.Report, 0, len(selected))
			for _, kind := range selected {
				report, err := svc.Train(cmd.Context(), kind)
				if err != nil {
					log.GetLoggerWithName("cli").Error("Training failed", err, log.ModelKindKey, kind.String())
					return err
				}
				reports = append(reports, report)
			}
			return printJSON(cmd.OutOrStdout(), reports)
		},
	}
	cmd.Flags().StringSliceP("model", "m", nil, "model kinds to train, every kind when empty")
	return cmd
}

var residualsDescription = "print per-house residuals and their summary for one model."

func (a *app) residualsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "residuals --model <kind>",
		Short:        residualsDescription,
		Long:         residualsDescription,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindFlag(cmd)
			if err != nil {
				return err
			}
			summaryOnly, err := cmd.Flags().GetBool("summary")
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			report, err := svc.Residuals(cmd.Context(), kind)
			if err != nil {
				return err
			}
			if summaryOnly {
				return printJSON(cmd.OutOrStdout(), report.Summary)
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringP("model", "m", "", "model kind")
	cmd.Flags().Bool("summary", false, "print only the residual summary")
	return cmd
}

var importanceDescription = "print the feature importance ranking of one model."

func (a *app) importanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "importance --model <kind>",
		Short:        importanceDescription,
		Long:         importanceDescription,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindFlag(cmd)
			if err != nil {
				return err
			}
			top, err := cmd.Flags().GetInt("top")
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			imp, err := svc.Importance(cmd.Context(), kind)
			if err != nil {
				return err
			}
			if top > 0 {
				imp.Features = imp.Top(top)
			}
			return printJSON(cmd.OutOrStdout(), imp)
		},
	}
	cmd.Flags().StringP("model", "m", "", "model kind")
	cmd.Flags().Int("top", 0, "keep only the n highest scores, all when 0")
	return cmd
}

var learningCurveDescription = "print cross-validated R2 scores over growing training sizes."

func (a *app) learningCurveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "learning-curve --model <kind>",
		Short:        learningCurveDescription,
		Long:         learningCurveDescription,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindFlag(cmd)
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			points, err := svc.LearningCurve(cmd.Context(), kind)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), points)
		},
	}
	cmd.Flags().StringP("model", "m", "", "model kind")
	cmd.Flags().Int("folds", 0, "number of cross-validation folds")
	bindConfigKey(cmd.Flags(), "folds", "evaluation.folds")
	return cmd
}
