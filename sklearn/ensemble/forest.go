// Package ensemble implements bagged and boosted ensembles of regression trees.
package ensemble

import (
	"context"
	"math/rand/v2"

	"github.com/YuminosukeSato/housepricer/core/model"
	"github.com/YuminosukeSato/housepricer/core/parallel"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

const predictParallelThreshold = 500

// ForestOption configures a RandomForestRegressor.
type ForestOption func(*RandomForestRegressor)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) ForestOption {
	return func(f *RandomForestRegressor) { f.nEstimators = n }
}

// WithMaxDepth limits the depth of every tree. 0 is unlimited.
func WithMaxDepth(depth int) ForestOption {
	return func(f *RandomForestRegressor) { f.maxDepth = depth }
}

// WithMinSamplesLeaf sets the minimum leaf size of every tree.
func WithMinSamplesLeaf(n int) ForestOption {
	return func(f *RandomForestRegressor) { f.minSamplesLeaf = n }
}

// WithMaxFeatures sets the number of features examined per split. 0 means all.
func WithMaxFeatures(n int) ForestOption {
	return func(f *RandomForestRegressor) { f.maxFeatures = n }
}

// WithBootstrap toggles sampling rows with replacement for each tree.
func WithBootstrap(bootstrap bool) ForestOption {
	return func(f *RandomForestRegressor) { f.bootstrap = bootstrap }
}

// WithRandomState seeds bootstrap sampling and feature subsampling.
func WithRandomState(seed uint64) ForestOption {
	return func(f *RandomForestRegressor) { f.randomState = seed }
}

// WithNJobs limits the number of trees fitted concurrently. 0 uses every CPU.
func WithNJobs(n int) ForestOption {
	return func(f *RandomForestRegressor) { f.nJobs = n }
}

// RandomForestRegressor averages bootstrap-aggregated CART trees. Tree i is
// seeded from (random_state, i), so results do not depend on scheduling.
type RandomForestRegressor struct {
	state *model.StateManager

	nEstimators    int
	maxDepth       int
	minSamplesLeaf int
	maxFeatures    int
	bootstrap      bool
	randomState    uint64
	nJobs          int

	trees []*tree.DecisionTreeRegressor
}

// NewRandomForestRegressor creates an unfitted forest.
func NewRandomForestRegressor(opts ...ForestOption) *RandomForestRegressor {
	f := &RandomForestRegressor{
		state:          model.NewStateManager(),
		nEstimators:    100,
		minSamplesLeaf: 1,
		bootstrap:      true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fit trains every tree in parallel.
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	return f.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation between trees.
func (f *RandomForestRegressor) FitContext(ctx context.Context, X, y mat.Matrix) error {
	target, err := tree.TargetVector("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if f.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be positive", f.nEstimators)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("RandomForestRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	Xd := mat.DenseCopyOf(X)

	trees := make([]*tree.DecisionTreeRegressor, f.nEstimators)
	err = parallel.ForEach(ctx, f.nEstimators, f.nJobs, func(_ context.Context, i int) error {
		seed := f.randomState*1000003 + uint64(i)
		rng := rand.New(rand.NewPCG(f.randomState, uint64(i)))

		indices := make([]int, r)
		for k := range indices {
			if f.bootstrap {
				indices[k] = rng.IntN(r)
			} else {
				indices[k] = k
			}
		}

		t := tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(f.maxDepth),
			tree.WithMinSamplesLeaf(f.minSamplesLeaf),
			tree.WithMaxFeatures(f.maxFeatures),
			tree.WithRandomState(seed),
		)
		if err := t.FitSubset(Xd, target, indices); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		trees[i] = t
		return nil
	})
	if err != nil {
		return err
	}

	f.trees = trees
	f.state.SetFitted(c, r)
	return nil
}

// Predict averages the predictions of all trees.
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := f.state.RequireFeatures("RandomForestRegressor", "Predict", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	n := float64(len(f.trees))
	parallel.ParallelizeWithThreshold(r, predictParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			var sum float64
			for _, t := range f.trees {
				sum += t.PredictRow(X, i)
			}
			out.Set(i, 0, sum/n)
		}
	})
	return out, nil
}

// FeatureImportances returns the mean of the per-tree importances,
// renormalised to sum to 1.
func (f *RandomForestRegressor) FeatureImportances() ([]float64, error) {
	if err := f.state.RequireFitted("RandomForestRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	return averageImportances(f.trees)
}

// Trees returns the fitted trees.
func (f *RandomForestRegressor) Trees() []*tree.DecisionTreeRegressor { return f.trees }

// IsFitted reports whether Fit has completed.
func (f *RandomForestRegressor) IsFitted() bool { return f.state.IsFitted() }

// GetParams returns the hyperparameters of the forest.
func (f *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     f.nEstimators,
		"max_depth":        f.maxDepth,
		"min_samples_leaf": f.minSamplesLeaf,
		"max_features":     f.maxFeatures,
		"bootstrap":        f.bootstrap,
		"random_state":     f.randomState,
	}
}

func averageImportances(trees []*tree.DecisionTreeRegressor) ([]float64, error) {
	var acc []float64
	for _, t := range trees {
		imp, err := t.FeatureImportances()
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = make([]float64, len(imp))
		}
		for j, v := range imp {
			acc[j] += v
		}
	}
	var total float64
	for _, v := range acc {
		total += v
	}
	if total > 0 {
		for j := range acc {
			acc[j] /= total
		}
	}
	return acc, nil
}

var (
	_ model.Regressor          = (*RandomForestRegressor)(nil)
	_ model.FeatureImportancer = (*RandomForestRegressor)(nil)
	_ model.ParamGetter        = (*RandomForestRegressor)(nil)
)
