package registry

import (
	"fmt"
	"strconv"

	"github.com/YuminosukeSato/housepricer/core/model"
	"github.com/YuminosukeSato/housepricer/linear"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/sklearn/ensemble"
	"github.com/YuminosukeSato/housepricer/sklearn/tree"
)

// Params holds estimator hyperparameters by their scikit-learn names.
type Params map[string]any

// Spec is the estimator configuration of one kind.
type Spec struct {
	Kind   ModelKind
	Params Params
}

// DefaultSpecs returns the configuration used when nothing is overridden.
func DefaultSpecs() map[ModelKind]Spec {
	return map[ModelKind]Spec{
		Linear: {Kind: Linear, Params: Params{"fit_intercept": true}},
		Tree:   {Kind: Tree, Params: Params{"max_depth": 0, "min_samples_split": 2, "min_samples_leaf": 1, "random_state": 0}},
		Forest: {Kind: Forest, Params: Params{"n_estimators": 100, "max_depth": 0, "min_samples_leaf": 1, "bootstrap": true, "random_state": 0}},
		Gradient: {Kind: Gradient, Params: Params{
			"n_estimators": 100, "learning_rate": 0.1, "max_depth": 3, "subsample": 1.0, "random_state": 0,
		}},
	}
}

var knownParams = map[ModelKind]map[string]struct{}{
	Linear:   set("fit_intercept", "tol", "jitter"),
	Tree:     set("max_depth", "min_samples_split", "min_samples_leaf", "max_features", "min_impurity_decrease", "random_state"),
	Forest:   set("n_estimators", "max_depth", "min_samples_leaf", "max_features", "bootstrap", "random_state", "n_jobs"),
	Gradient: set("n_estimators", "learning_rate", "max_depth", "subsample", "random_state"),
}

func set(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// Merge returns a copy of s with overrides applied.
func (s Spec) Merge(overrides Params) Spec {
	params := make(Params, len(s.Params)+len(overrides))
	for k, v := range s.Params {
		params[k] = v
	}
	for k, v := range overrides {
		params[k] = v
	}
	return Spec{Kind: s.Kind, Params: params}
}

// Validate checks parameter names and value types.
func (s Spec) Validate() error {
	if !s.Kind.Valid() {
		return errors.NewUnknownModelKindError(s.Kind.String())
	}
	known := knownParams[s.Kind]
	for name := range s.Params {
		if _, ok := known[name]; !ok {
			return errors.NewValidationError("models."+s.Kind.String()+"."+name, "unknown parameter", s.Params[name])
		}
	}
	_, err := s.New()
	return err
}

// New builds a fresh unfitted estimator.
func (s Spec) New() (model.Regressor, error) {
	r := paramReader{kind: s.Kind, params: s.Params}
	switch s.Kind {
	case Linear:
		opts := []linear.Option{linear.WithFitIntercept(r.bool("fit_intercept", true))}
		if r.has("tol") {
			opts = append(opts, linear.WithTol(r.float("tol", 0)))
		}
		if r.has("jitter") {
			opts = append(opts, linear.WithJitter(r.float("jitter", 0)))
		}
		return linear.NewLinearRegression(opts...), r.err
	case Tree:
		m := tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(r.int("max_depth", 0)),
			tree.WithMinSamplesSplit(r.int("min_samples_split", 2)),
			tree.WithMinSamplesLeaf(r.int("min_samples_leaf", 1)),
			tree.WithMaxFeatures(r.int("max_features", 0)),
			tree.WithMinImpurityDecrease(r.float("min_impurity_decrease", 0)),
			tree.WithRandomState(uint64(r.int("random_state", 0))),
		)
		return m, r.err
	case Forest:
		m := ensemble.NewRandomForestRegressor(
			ensemble.WithNEstimators(r.int("n_estimators", 100)),
			ensemble.WithMaxDepth(r.int("max_depth", 0)),
			ensemble.WithMinSamplesLeaf(r.int("min_samples_leaf", 1)),
			ensemble.WithMaxFeatures(r.int("max_features", 0)),
			ensemble.WithBootstrap(r.bool("bootstrap", true)),
			ensemble.WithRandomState(uint64(r.int("random_state", 0))),
			ensemble.WithNJobs(r.int("n_jobs", 0)),
		)
		return m, r.err
	case Gradient:
		m := ensemble.NewGradientBoostingRegressor(
			ensemble.WithStages(r.int("n_estimators", 100)),
			ensemble.WithLearningRate(r.float("learning_rate", 0.1)),
			ensemble.WithStageDepth(r.int("max_depth", 3)),
			ensemble.WithSubsample(r.float("subsample", 1.0)),
			ensemble.WithBoostingRandomState(uint64(r.int("random_state", 0))),
		)
		return m, r.err
	}
	return nil, errors.NewUnknownModelKindError(s.Kind.String())
}

// paramReader converts loosely typed config values. The first conversion
// failure is kept in err.
type paramReader struct {
	kind   ModelKind
	params Params
	err    error
}

func (r *paramReader) has(name string) bool {
	_, ok := r.params[name]
	return ok
}

func (r *paramReader) fail(name string, v any, want string) {
	if r.err == nil {
		r.err = errors.NewValidationError("models."+r.kind.String()+"."+name, "must be "+want, v)
	}
}

func (r *paramReader) int(name string, def int) int {
	v, ok := r.params[name]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		if n == float64(int(n)) {
			return int(n)
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	r.fail(name, v, "an integer")
	return def
}

func (r *paramReader) float(name string, def float64) float64 {
	v, ok := r.params[name]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	r.fail(name, v, "a number")
	return def
}

func (r *paramReader) bool(name string, def bool) bool {
	v, ok := r.params[name]
	if !ok || v == nil {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	}
	r.fail(name, v, "a boolean")
	return def
}

// String renders the spec for logs.
func (s Spec) String() string {
	return fmt.Sprintf("%s%v", s.Kind.EstimatorName(), map[string]any(s.Params))
}
