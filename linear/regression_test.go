package linear

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/housepricer/pkg/errors"
)

func TestLinearRegressionRecoversWeights(t *testing.T) {
	X, y := createBenchmarkData(500, 4)

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	assert.True(t, lr.IsFitted())
	assert.False(t, lr.Jittered())

	coef := lr.Coefficients()
	require.Len(t, coef, 4)
	for j, w := range coef {
		assert.InDelta(t, float64(j+1)*0.5, w, 0.02, "coefficient %d", j)
	}
	assert.InDelta(t, 1.0, lr.Intercept(), 0.02)

	pred, err := lr.Predict(X)
	require.NoError(t, err)
	rows, cols := pred.Dims()
	assert.Equal(t, 500, rows)
	assert.Equal(t, 1, cols)
	assert.InDelta(t, y.At(0, 0), pred.At(0, 0), 0.1)
}

func TestLinearRegressionWithoutIntercept(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})

	lr := NewLinearRegression(WithFitIntercept(false))
	require.NoError(t, lr.Fit(X, y))
	assert.InDelta(t, 2.0, lr.Coefficients()[0], 1e-9)
	assert.Equal(t, 0.0, lr.Intercept())
	assert.Equal(t, false, lr.GetParams()["fit_intercept"])
}

func TestLinearRegressionSingularFallsBackToJitter(t *testing.T) {
	// second column duplicates the first: XᵀX is rank deficient
	X := mat.NewDense(6, 2, []float64{
		1, 1,
		2, 2,
		3, 3,
		4, 4,
		5, 5,
		6, 6,
	})
	y := mat.NewDense(6, 1, []float64{3, 5, 7, 9, 11, 13})

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	assert.True(t, lr.Jittered())

	coef := lr.Coefficients()
	assert.InDelta(t, 2.0, coef[0]+coef[1], 1e-4)

	pred, err := lr.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		assert.InDelta(t, y.At(i, 0), pred.At(i, 0), 1e-3)
	}
}

func TestLinearRegressionConstantFeatures(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{5, 5, 5})
	y := mat.NewDense(3, 1, []float64{1, 2, 3})

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	assert.Equal(t, []float64{0}, lr.Coefficients())
	assert.InDelta(t, 2.0, lr.Intercept(), 1e-12)
}

func TestLinearRegressionErrors(t *testing.T) {
	lr := NewLinearRegression()

	_, err := lr.Predict(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
	assert.Nil(t, lr.Coefficients())

	err = lr.Fit(mat.NewDense(3, 2, nil), mat.NewDense(2, 1, nil))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))

	err = lr.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 2, nil))
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	require.NoError(t, lr.Fit(mat.NewDense(3, 2, []float64{1, 0, 0, 1, 1, 1}), mat.NewDense(3, 1, []float64{1, 2, 3})))
	_, err = lr.Predict(mat.NewDense(1, 3, nil))
	assert.True(t, errors.As(err, &dim))
}

func TestLinearRegressionPredictionsFinite(t *testing.T) {
	X, y := createBenchmarkData(2000, 10)
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	pred, err := lr.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 2000; i++ {
		assert.False(t, math.IsNaN(pred.At(i, 0)))
	}
}
