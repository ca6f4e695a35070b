// Package plots renders the diagnostics of eda and evaluation with gonum/plot.
package plots

import (
	"image/color"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/housepricer/eda"
	"github.com/YuminosukeSato/housepricer/evaluation"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
)

// Default canvas size.
var (
	Width  = 8 * vg.Inch
	Height = 6 * vg.Inch
)

var (
	trainColor = color.RGBA{R: 20, G: 80, B: 200, A: 255}
	validColor = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	pointColor = color.RGBA{R: 20, G: 80, B: 200, A: 160}
	greyColor  = color.RGBA{R: 120, G: 120, B: 120, A: 255}
)

// Formats lists the accepted output formats.
var Formats = []string{"png", "svg", "pdf", "jpg"}

// PriceHistogram draws the SalePrice distribution.
func PriceHistogram(h *eda.Histogram) (*plot.Plot, error) {
	if h == nil || len(h.Counts) == 0 || len(h.Edges) != len(h.Counts)+1 {
		return nil, errors.NewValueError("plots.PriceHistogram", "malformed histogram")
	}
	p := plot.New()
	p.Title.Text = "SalePrice distribution"
	p.X.Label.Text = "SalePrice"
	p.Y.Label.Text = "count"

	bins := make([]plotter.HistogramBin, len(h.Counts))
	for i, c := range h.Counts {
		bins[i] = plotter.HistogramBin{Min: h.Edges[i], Max: h.Edges[i+1], Weight: c}
	}
	hist := &plotter.Histogram{
		Bins:      bins,
		Width:     h.Edges[1] - h.Edges[0],
		FillColor: pointColor,
		LineStyle: plotter.DefaultLineStyle,
	}
	p.Add(hist, plotter.NewGrid())
	return p, nil
}

// PCAScatter draws the two-component projection coloured by SalePrice.
func PCAScatter(proj *eda.Projection) (*plot.Plot, error) {
	if proj == nil || len(proj.Points) == 0 {
		return nil, errors.NewValueError("plots.PCAScatter", "empty projection")
	}
	xys := make(plotter.XYs, len(proj.Points))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, pt := range proj.Points {
		xys[i] = plotter.XY{X: pt[0], Y: pt[1]}
		lo = math.Min(lo, proj.SalePrice[i])
		hi = math.Max(hi, proj.SalePrice[i])
	}
	if lo == hi {
		hi = lo + 1
	}

	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(lo)
	cmap.SetMax(hi)

	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, errors.Wrap(err, "pca scatter")
	}
	sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		style := sc.GlyphStyle
		if c, err := cmap.At(proj.SalePrice[i]); err == nil {
			style.Color = c
		}
		style.Radius = vg.Points(2)
		return style
	}

	p := plot.New()
	p.Title.Text = "PCA projection"
	p.X.Label.Text = axisLabel("PC1", proj.ExplainedVarianceRatio, 0)
	p.Y.Label.Text = axisLabel("PC2", proj.ExplainedVarianceRatio, 1)
	p.Add(sc, plotter.NewGrid())
	return p, nil
}

func axisLabel(name string, ratios []float64, i int) string {
	if i >= len(ratios) {
		return name
	}
	return name + " (" + formatPercent(ratios[i]) + ")"
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 1, 64) + "%"
}

// PredictedVsActual draws predictions against targets with the y = x line.
func PredictedVsActual(title string, points []evaluation.Point) (*plot.Plot, error) {
	if len(points) == 0 {
		return nil, errors.NewValueError("plots.PredictedVsActual", "no points")
	}
	xys := make(plotter.XYs, len(points))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, pt := range points {
		xys[i] = plotter.XY{X: pt.Actual, Y: pt.Predicted}
		lo = math.Min(lo, math.Min(pt.Actual, pt.Predicted))
		hi = math.Max(hi, math.Max(pt.Actual, pt.Predicted))
	}
	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, errors.Wrap(err, "predicted vs actual")
	}
	sc.GlyphStyle.Color = pointColor
	sc.GlyphStyle.Radius = vg.Points(2)

	ideal, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return nil, errors.Wrap(err, "predicted vs actual")
	}
	ideal.Color = greyColor
	ideal.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "actual SalePrice"
	p.Y.Label.Text = "predicted SalePrice"
	p.Add(sc, ideal, plotter.NewGrid())
	return p, nil
}

// Residuals draws residuals against predictions with a zero line.
func Residuals(title string, residuals []evaluation.Residual) (*plot.Plot, error) {
	if len(residuals) == 0 {
		return nil, errors.NewValueError("plots.Residuals", "no residuals")
	}
	xys := make(plotter.XYs, len(residuals))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, r := range residuals {
		xys[i] = plotter.XY{X: r.Predicted, Y: r.Residual}
		lo = math.Min(lo, r.Predicted)
		hi = math.Max(hi, r.Predicted)
	}
	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, errors.Wrap(err, "residuals")
	}
	sc.GlyphStyle.Color = pointColor
	sc.GlyphStyle.Radius = vg.Points(2)

	zero, err := plotter.NewLine(plotter.XYs{{X: lo, Y: 0}, {X: hi, Y: 0}})
	if err != nil {
		return nil, errors.Wrap(err, "residuals")
	}
	zero.Color = greyColor

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "predicted SalePrice"
	p.Y.Label.Text = "residual (actual - predicted)"
	p.Add(sc, zero, plotter.NewGrid())
	return p, nil
}

// Importance draws the top n features as bars. n <= 0 draws every feature.
func Importance(title string, imp *evaluation.Importance, n int) (*plot.Plot, error) {
	if imp == nil || len(imp.Features) == 0 {
		return nil, errors.NewValueError("plots.Importance", "no features")
	}
	top := imp.Top(n)
	if n <= 0 {
		top = imp.Features
	}
	values := make(plotter.Values, len(top))
	names := make([]string, len(top))
	for i, f := range top {
		values[i] = f.Score
		names[i] = f.Name
	}
	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return nil, errors.Wrap(err, "importance")
	}
	bars.Color = trainColor
	bars.LineStyle.Width = 0

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = string(imp.Method)
	p.Add(bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = math.Pi / 3
	p.X.Tick.Label.XAlign = draw.XRight
	return p, nil
}

// LearningCurve draws mean train and validation scores with ±1 std bands.
func LearningCurve(title string, points []evaluation.CurvePoint) (*plot.Plot, error) {
	if len(points) == 0 {
		return nil, errors.NewValueError("plots.LearningCurve", "no points")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "training examples"
	p.Y.Label.Text = "R²"

	series := []struct {
		name  string
		color color.Color
		mean  func(evaluation.CurvePoint) float64
		std   func(evaluation.CurvePoint) float64
	}{
		{"training score", trainColor,
			func(c evaluation.CurvePoint) float64 { return c.TrainMean },
			func(c evaluation.CurvePoint) float64 { return c.TrainStd }},
		{"cross-validation score", validColor,
			func(c evaluation.CurvePoint) float64 { return c.ValidationMean },
			func(c evaluation.CurvePoint) float64 { return c.ValidationStd }},
	}
	for _, s := range series {
		mean := make(plotter.XYs, len(points))
		upper := make(plotter.XYs, len(points))
		lower := make(plotter.XYs, len(points))
		for i, pt := range points {
			x := float64(pt.TrainSize)
			m, sd := s.mean(pt), s.std(pt)
			mean[i] = plotter.XY{X: x, Y: m}
			upper[i] = plotter.XY{X: x, Y: m + sd}
			lower[i] = plotter.XY{X: x, Y: m - sd}
		}
		line, scatter, err := plotter.NewLinePoints(mean)
		if err != nil {
			return nil, errors.Wrap(err, "learning curve")
		}
		line.Color = s.color
		scatter.GlyphStyle.Color = s.color
		p.Add(line, scatter)
		p.Legend.Add(s.name, line, scatter)

		for _, band := range []plotter.XYs{upper, lower} {
			l, err := plotter.NewLine(band)
			if err != nil {
				return nil, errors.Wrap(err, "learning curve")
			}
			l.Color = s.color
			l.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
			p.Add(l)
		}
	}
	p.Add(plotter.NewGrid())
	p.Legend.Top = false
	return p, nil
}

// Save writes p to path; the extension selects the format.
func Save(p *plot.Plot, path string) error {
	if _, err := formatOf(strings.TrimPrefix(filepath.Ext(path), ".")); err != nil {
		return err
	}
	return errors.Wrapf(p.Save(Width, Height, path), "save plot %s", path)
}

// Write renders p in format ("png", "svg", ...) to w.
func Write(p *plot.Plot, w io.Writer, format string) error {
	format, err := formatOf(format)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(Width, Height, format)
	if err != nil {
		return errors.Wrap(err, "render plot")
	}
	_, err = wt.WriteTo(w)
	return errors.Wrap(err, "write plot")
}

// ContentType returns the MIME type of format.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "svg":
		return "image/svg+xml"
	case "pdf":
		return "application/pdf"
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}

func formatOf(ext string) (string, error) {
	ext = strings.ToLower(ext)
	if ext == "jpeg" {
		ext = "jpg"
	}
	for _, f := range Formats {
		if f == ext {
			return ext, nil
		}
	}
	return "", errors.NewValidationError("format", "unsupported plot format", ext)
}
