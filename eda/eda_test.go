package eda

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/housepricer/dataset/datasettest"
	"github.com/YuminosukeSato/housepricer/features"
)

func TestDistribution(t *testing.T) {
	h, err := Distribution([]float64{1, 2, 2, 3, 3, 3, 4, 10}, 3)
	require.NoError(t, err)
	require.Len(t, h.Edges, 4)
	require.Len(t, h.Counts, 3)
	assert.Equal(t, 1.0, h.Edges[0])
	assert.Equal(t, 10.0, h.Edges[3])
	// bins [1,4) [4,7) [7,10]
	assert.Equal(t, []float64{6, 1, 1}, h.Counts)
	assert.InDelta(t, 3.5, h.Mean, 1e-12)
	assert.Equal(t, 3.0, h.Median)
	assert.Greater(t, h.Skew, 0.0, "a long right tail has positive skew")
}

func TestDistributionConstant(t *testing.T) {
	h, err := Distribution([]float64{5, 5, 5}, 4)
	require.NoError(t, err)
	assert.Equal(t, 3.0, floats.Sum(h.Counts))
	assert.Equal(t, 0.0, h.Skew)
	assert.Equal(t, 5.0, h.Median)
}

func TestDistributionErrors(t *testing.T) {
	_, err := Distribution(nil, 10)
	assert.Error(t, err)
}

func TestPriceHistogram(t *testing.T) {
	train, test := datasettest.TrainTest(t, 300, 10)
	h, err := PriceHistogram(train, 0)
	require.NoError(t, err)
	assert.Len(t, h.Counts, DefaultBins)
	assert.Equal(t, 300.0, floats.Sum(h.Counts))

	_, err = PriceHistogram(test, 10)
	assert.Error(t, err, "test rows carry no SalePrice")
}

func TestPCAProjection(t *testing.T) {
	train := datasettest.Houses(t, 120, 1, true)
	for _, components := range []int{0, 10} {
		fm, err := features.New(features.WithComponents(components)).FitEncode(train)
		require.NoError(t, err)

		proj, err := PCAProjection(fm, train.Target)
		require.NoError(t, err)
		assert.Len(t, proj.Points, 120)
		assert.Equal(t, train.IDs, proj.IDs)
		assert.Equal(t, train.Target, proj.SalePrice)
		require.Len(t, proj.ExplainedVarianceRatio, 2)
		assert.GreaterOrEqual(t, proj.ExplainedVarianceRatio[0], proj.ExplainedVarianceRatio[1])
		assert.LessOrEqual(t, proj.ExplainedVarianceRatio[0]+proj.ExplainedVarianceRatio[1], 1.0+1e-9)
	}

	fm, err := features.New(features.WithComponents(3)).FitEncode(train)
	require.NoError(t, err)
	_, err = PCAProjection(fm, train.Target[:5])
	assert.Error(t, err)
}
