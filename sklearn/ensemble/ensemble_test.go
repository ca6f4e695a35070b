package ensemble

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/sklearn/tree"
)

func housing(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed*7+1))
	X := mat.NewDense(n, 4, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		area := 500 + rng.Float64()*3000
		quality := float64(1 + rng.IntN(10))
		age := rng.Float64() * 100
		noise := rng.Float64()
		X.SetRow(i, []float64{area, quality, age, noise})
		y.Set(i, 0, 50000+60*area+15000*quality-300*age+rng.NormFloat64()*5000)
	}
	return X, y
}

func r2(t *testing.T, m interface {
	Predict(mat.Matrix) (mat.Matrix, error)
}, X, y mat.Matrix) float64 {
	t.Helper()
	pred, err := m.Predict(X)
	require.NoError(t, err)
	r, _ := y.Dims()
	var mean float64
	for i := 0; i < r; i++ {
		mean += y.At(i, 0)
	}
	mean /= float64(r)
	var tss, rss float64
	for i := 0; i < r; i++ {
		d := y.At(i, 0) - pred.At(i, 0)
		rss += d * d
		tss += (y.At(i, 0) - mean) * (y.At(i, 0) - mean)
	}
	return 1 - rss/tss
}

func TestRandomForestRegressor(t *testing.T) {
	X, y := housing(300, 1)

	f := NewRandomForestRegressor(WithNEstimators(20), WithRandomState(7))
	require.NoError(t, f.Fit(X, y))
	assert.Len(t, f.Trees(), 20)
	assert.Greater(t, r2(t, f, X, y), 0.9)

	imp, err := f.FeatureImportances()
	require.NoError(t, err)
	require.Len(t, imp, 4)
	var sum float64
	for _, v := range imp {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, imp[0], imp[3], "area should matter more than noise")

	again := NewRandomForestRegressor(WithNEstimators(20), WithRandomState(7), WithNJobs(1))
	require.NoError(t, again.Fit(X, y))
	p1, _ := f.Predict(X)
	p2, _ := again.Predict(X)
	assert.True(t, mat.Equal(p1, p2), "forest must not depend on scheduling")
}

func TestRandomForestWithoutBootstrapMatchesTree(t *testing.T) {
	X, y := housing(80, 2)

	f := NewRandomForestRegressor(WithNEstimators(3), WithBootstrap(false), WithMaxDepth(4))
	require.NoError(t, f.Fit(X, y))

	single := tree.NewDecisionTreeRegressor(tree.WithMaxDepth(4))
	require.NoError(t, single.Fit(X, y))

	pf, err := f.Predict(X)
	require.NoError(t, err)
	pt, err := single.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(pf, pt, 1e-9))
}

func TestRandomForestCancellation(t *testing.T) {
	X, y := housing(100, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewRandomForestRegressor(WithNEstimators(50))
	err := f.FitContext(ctx, X, y)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, f.IsFitted())
}

func TestGradientBoostingRegressor(t *testing.T) {
	X, y := housing(300, 4)

	g := NewGradientBoostingRegressor(WithStages(60), WithBoostingRandomState(1))
	require.NoError(t, g.Fit(X, y))
	assert.Greater(t, r2(t, g, X, y), 0.9)

	require.Len(t, g.TrainLoss, 60)
	for m := 1; m < len(g.TrainLoss); m++ {
		assert.LessOrEqual(t, g.TrainLoss[m], g.TrainLoss[m-1]+1e-6, "full-sample boosting loss never increases")
	}

	imp, err := g.FeatureImportances()
	require.NoError(t, err)
	var sum float64
	for _, v := range imp {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, 3, g.GetParams()["max_depth"])
}

func TestGradientBoostingSubsampleDeterministic(t *testing.T) {
	X, y := housing(120, 5)

	fit := func() mat.Matrix {
		g := NewGradientBoostingRegressor(WithStages(10), WithSubsample(0.5), WithBoostingRandomState(9))
		require.NoError(t, g.Fit(X, y))
		p, err := g.Predict(X)
		require.NoError(t, err)
		return p
	}
	assert.True(t, mat.Equal(fit(), fit()))
}

func TestGradientBoostingSingleStage(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{0, 0, 10, 10})

	g := NewGradientBoostingRegressor(WithStages(1), WithLearningRate(1), WithStageDepth(1))
	require.NoError(t, g.Fit(X, y))
	p, err := g.Predict(X)
	require.NoError(t, err)
	for i, want := range []float64{0, 0, 10, 10} {
		assert.InDelta(t, want, p.At(i, 0), 1e-9)
	}
}

func TestEnsembleErrors(t *testing.T) {
	_, err := NewRandomForestRegressor().Predict(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	_, err = NewGradientBoostingRegressor().FeatureImportances()
	assert.True(t, errors.As(err, &nf))

	X, y := housing(10, 6)
	var ve *errors.ValidationError
	assert.True(t, errors.As(NewRandomForestRegressor(WithNEstimators(0)).Fit(X, y), &ve))
	assert.True(t, errors.As(NewGradientBoostingRegressor(WithSubsample(1.5)).Fit(X, y), &ve))
	assert.True(t, errors.As(NewGradientBoostingRegressor(WithLearningRate(0)).Fit(X, y), &ve))
}
