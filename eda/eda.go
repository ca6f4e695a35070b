// Package eda computes the exploratory views of the training data: the sale
// price distribution and a two-component PCA projection.
package eda

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/housepricer/dataset"
	"github.com/YuminosukeSato/housepricer/features"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/preprocessing"
)

// DefaultBins is the histogram bin count used when none is given.
const DefaultBins = 50

// Histogram is the SalePrice distribution. Edges has len(Counts)+1 entries.
type Histogram struct {
	Edges    []float64 `json:"edges"`
	Counts   []float64 `json:"counts"`
	Mean     float64   `json:"mean"`
	Median   float64   `json:"median"`
	Std      float64   `json:"std"`
	Skew     float64   `json:"skew"`
	Kurtosis float64   `json:"kurtosis"`
}

// PriceHistogram bins the training targets into equal-width bins.
func PriceHistogram(train *dataset.Dataset, bins int) (*Histogram, error) {
	if train == nil || !train.HasTarget() {
		return nil, errors.NewValidationError("train", "training dataset with SalePrice required", nil)
	}
	return Distribution(train.Target, bins)
}

// Distribution bins values into equal-width bins between their minimum and
// maximum. bins <= 0 uses DefaultBins.
func Distribution(values []float64, bins int) (*Histogram, error) {
	if len(values) == 0 {
		return nil, errors.NewModelError("Distribution", "no values", errors.ErrEmptyData)
	}
	if err := errors.CheckNumericalStability("Distribution", values); err != nil {
		return nil, err
	}
	if bins <= 0 {
		bins = DefaultBins
	}

	x := append([]float64(nil), values...)
	sort.Float64s(x)
	lo, hi := x[0], x[len(x)-1]
	if lo == hi {
		hi = lo + 1
	}

	edges := make([]float64, bins+1)
	floats.Span(edges, lo, hi)
	// stat.Histogram needs the maximum strictly inside the last bin
	edges[bins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, edges, x, nil)
	edges[bins] = hi

	mean, std := stat.MeanStdDev(x, nil)
	h := &Histogram{
		Edges:  edges,
		Counts: counts,
		Mean:   mean,
		Median: preprocessing.Median(x),
		Std:    std,
	}
	if len(x) > 2 && std > 0 {
		h.Skew = stat.Skew(x, nil)
		h.Kurtosis = stat.ExKurtosis(x, nil)
	}
	return h, nil
}

// Projection is every training row in the plane of the first two principal
// components, coloured by SalePrice.
type Projection struct {
	IDs                    []int        `json:"ids"`
	Points                 [][2]float64 `json:"points"`
	SalePrice              []float64    `json:"sale_price"`
	ExplainedVarianceRatio []float64    `json:"explained_variance_ratio"`
}

// PCAProjection fits a two-component PCA on fm and projects its rows. The
// ratios are relative to the total variance of fm.
func PCAProjection(fm *features.FeatureMatrix, y []float64) (*Projection, error) {
	if fm == nil || fm.X == nil {
		return nil, errors.NewValueError("PCAProjection", "nil feature matrix")
	}
	rows, cols := fm.Dims()
	if rows != len(y) {
		return nil, errors.NewDimensionError("PCAProjection", rows, len(y), 0)
	}
	if cols < 2 {
		return nil, errors.NewDimensionError("PCAProjection", 2, cols, 1)
	}

	pca := preprocessing.NewPCA(2)
	projected, err := pca.FitTransform(fm.X)
	if err != nil {
		return nil, err
	}
	dense := mat.DenseCopyOf(projected)
	_, k := dense.Dims()

	p := &Projection{
		IDs:                    append([]int(nil), fm.IDs...),
		Points:                 make([][2]float64, rows),
		SalePrice:              append([]float64(nil), y...),
		ExplainedVarianceRatio: append([]float64(nil), pca.ExplainedVarianceRatio...),
	}
	for i := 0; i < rows; i++ {
		p.Points[i][0] = dense.At(i, 0)
		if k > 1 {
			p.Points[i][1] = dense.At(i, 1)
		}
	}
	return p, nil
}
