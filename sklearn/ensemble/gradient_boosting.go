package ensemble

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/housepricer/core/model"
	"github.com/YuminosukeSato/housepricer/core/parallel"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

// BoostingOption configures a GradientBoostingRegressor.
type BoostingOption func(*GradientBoostingRegressor)

// WithStages sets the number of boosting stages.
func WithStages(n int) BoostingOption {
	return func(g *GradientBoostingRegressor) { g.nEstimators = n }
}

// WithLearningRate sets the shrinkage applied to every stage.
func WithLearningRate(lr float64) BoostingOption {
	return func(g *GradientBoostingRegressor) { g.learningRate = lr }
}

// WithStageDepth sets the depth of every stage tree.
func WithStageDepth(depth int) BoostingOption {
	return func(g *GradientBoostingRegressor) { g.maxDepth = depth }
}

// WithSubsample sets the fraction of rows drawn without replacement per stage.
func WithSubsample(fraction float64) BoostingOption {
	return func(g *GradientBoostingRegressor) { g.subsample = fraction }
}

// WithBoostingRandomState seeds row subsampling.
func WithBoostingRandomState(seed uint64) BoostingOption {
	return func(g *GradientBoostingRegressor) { g.randomState = seed }
}

// GradientBoostingRegressor fits least-squares gradient boosting: the initial
// prediction is the target mean and each stage fits a tree to the residuals.
type GradientBoostingRegressor struct {
	state *model.StateManager

	nEstimators  int
	learningRate float64
	maxDepth     int
	subsample    float64
	randomState  uint64

	init   float64
	stages []*tree.DecisionTreeRegressor
	// TrainLoss is the in-sample mean squared error after every stage.
	TrainLoss []float64
}

// NewGradientBoostingRegressor creates an unfitted booster.
func NewGradientBoostingRegressor(opts ...BoostingOption) *GradientBoostingRegressor {
	g := &GradientBoostingRegressor{
		state:        model.NewStateManager(),
		nEstimators:  100,
		learningRate: 0.1,
		maxDepth:     3,
		subsample:    1.0,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fit trains the stages sequentially.
func (g *GradientBoostingRegressor) Fit(X, y mat.Matrix) error {
	return g.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation between stages.
func (g *GradientBoostingRegressor) FitContext(ctx context.Context, X, y mat.Matrix) error {
	target, err := tree.TargetVector("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("GradientBoostingRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if g.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be positive", g.nEstimators)
	}
	if g.learningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", g.learningRate)
	}
	if g.subsample <= 0 || g.subsample > 1 {
		return errors.NewValidationError("subsample", "must be in (0, 1]", g.subsample)
	}

	Xd := mat.DenseCopyOf(X)
	var mean float64
	for _, v := range target {
		mean += v
	}
	mean /= float64(r)

	pred := make([]float64, r)
	for i := range pred {
		pred[i] = mean
	}
	residual := make([]float64, r)
	rng := rand.New(rand.NewPCG(g.randomState, 0x5f3759df))
	sampleSize := int(math.Max(1, math.Round(g.subsample*float64(r))))

	stages := make([]*tree.DecisionTreeRegressor, 0, g.nEstimators)
	losses := make([]float64, 0, g.nEstimators)
	for m := 0; m < g.nEstimators; m++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range residual {
			residual[i] = target[i] - pred[i]
		}

		indices := make([]int, r)
		for i := range indices {
			indices[i] = i
		}
		if sampleSize < r {
			indices = rng.Perm(r)[:sampleSize]
			sort.Ints(indices)
		}

		stage := tree.NewDecisionTreeRegressor(tree.WithMaxDepth(g.maxDepth))
		if err := stage.FitSubset(Xd, residual, indices); err != nil {
			return errors.Wrapf(err, "stage %d", m)
		}

		parallel.ParallelizeWithThreshold(r, predictParallelThreshold, func(start, end int) {
			for i := start; i < end; i++ {
				pred[i] += g.learningRate * stage.PredictRow(Xd, i)
			}
		})

		var loss float64
		for i := range pred {
			d := target[i] - pred[i]
			loss += d * d
		}
		losses = append(losses, loss/float64(r))
		stages = append(stages, stage)
	}

	g.init = mean
	g.stages = stages
	g.TrainLoss = losses
	g.state.SetFitted(c, r)
	return nil
}

// Predict returns init + learning_rate * Σ stage(x).
func (g *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := g.state.RequireFeatures("GradientBoostingRegressor", "Predict", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, predictParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			v := g.init
			for _, s := range g.stages {
				v += g.learningRate * s.PredictRow(X, i)
			}
			out.Set(i, 0, v)
		}
	})
	return out, nil
}

// FeatureImportances returns the summed per-stage importances normalised to 1.
func (g *GradientBoostingRegressor) FeatureImportances() ([]float64, error) {
	if err := g.state.RequireFitted("GradientBoostingRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	return averageImportances(g.stages)
}

// IsFitted reports whether Fit has completed.
func (g *GradientBoostingRegressor) IsFitted() bool { return g.state.IsFitted() }

// GetParams returns the hyperparameters of the booster.
func (g *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":  g.nEstimators,
		"learning_rate": g.learningRate,
		"max_depth":     g.maxDepth,
		"subsample":     g.subsample,
		"random_state":  g.randomState,
	}
}

var (
	_ model.Regressor          = (*GradientBoostingRegressor)(nil)
	_ model.FeatureImportancer = (*GradientBoostingRegressor)(nil)
	_ model.ParamGetter        = (*GradientBoostingRegressor)(nil)
)
