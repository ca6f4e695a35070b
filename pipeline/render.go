package pipeline

import (
	"context"
	"fmt"

	"gonum.org/v1/plot"

	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/plots"
	"github.com/YuminosukeSato/housepricer/registry"
)

// Chart names a renderable diagnostic.
type Chart string

const (
	ChartHistogram     Chart = "histogram"
	ChartPCA           Chart = "pca"
	ChartScatter       Chart = "scatter"
	ChartResiduals     Chart = "residuals"
	ChartImportance    Chart = "importance"
	ChartLearningCurve Chart = "learning-curve"
)

// Charts lists every chart in menu order.
func Charts() []Chart {
	return []Chart{ChartHistogram, ChartPCA, ChartScatter, ChartResiduals, ChartImportance, ChartLearningCurve}
}

// ParseChart validates a chart name.
func ParseChart(s string) (Chart, error) {
	for _, c := range Charts() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", errors.NewValidationError("chart", "unknown chart", s)
}

// ModelChart reports whether the chart depends on a model kind.
func (c Chart) ModelChart() bool {
	return c != ChartHistogram && c != ChartPCA
}

// importanceBars is the number of features drawn in the importance chart.
const importanceBars = 20

// Render builds chart. kind is ignored by the dataset charts.
func (s *Service) Render(ctx context.Context, chart Chart, kind registry.ModelKind) (*plot.Plot, error) {
	title := fmt.Sprintf("%s: %s", kind.EstimatorName(), chart)
	switch chart {
	case ChartHistogram:
		h, err := s.PriceHistogram()
		if err != nil {
			return nil, err
		}
		return plots.PriceHistogram(h)
	case ChartPCA:
		proj, err := s.PCA()
		if err != nil {
			return nil, err
		}
		return plots.PCAScatter(proj)
	case ChartScatter:
		points, err := s.Scatter(ctx, kind)
		if err != nil {
			return nil, err
		}
		return plots.PredictedVsActual(title, points)
	case ChartResiduals:
		res, err := s.Residuals(ctx, kind)
		if err != nil {
			return nil, err
		}
		return plots.Residuals(title, res.Residuals)
	case ChartImportance:
		imp, err := s.Importance(ctx, kind)
		if err != nil {
			return nil, err
		}
		return plots.Importance(title, imp, importanceBars)
	case ChartLearningCurve:
		points, err := s.LearningCurve(ctx, kind)
		if err != nil {
			return nil, err
		}
		return plots.LearningCurve(title, points)
	}
	return nil, errors.NewValidationError("chart", "unknown chart", string(chart))
}
