package tree

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/housepricer/pkg/errors"
)

// TestDecisionTreeRegressor_FitPredict_Step tests a piecewise constant target
func TestDecisionTreeRegressor_FitPredict_Step(t *testing.T) {
	X := mat.NewDense(8, 1, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	y := mat.NewDense(8, 1, []float64{10, 10, 10, 10, 50, 50, 50, 50})

	dt := NewDecisionTreeRegressor(WithMaxDepth(3))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	root := dt.Nodes()[0]
	if root.Feature != 0 || root.Threshold != 4.5 {
		t.Errorf("expected root split x0 <= 4.5, got x%d <= %v", root.Feature, root.Threshold)
	}
	if dt.NLeaves() != 2 {
		t.Errorf("pure children must not be split further, got %d leaves", dt.NLeaves())
	}

	XTest := mat.NewDense(2, 1, []float64{0, 100})
	preds, err := dt.Predict(XTest)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	if preds.At(0, 0) != 10 || preds.At(1, 0) != 50 {
		t.Errorf("unexpected predictions %v, %v", preds.At(0, 0), preds.At(1, 0))
	}
}

// TestDecisionTreeRegressor_FullDepthMemorises tests an unconstrained tree on training data
func TestDecisionTreeRegressor_FullDepthMemorises(t *testing.T) {
	X, y := synthetic(200, 3, 7)

	dt := NewDecisionTreeRegressor()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}
	preds, err := dt.Predict(X)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	for i := 0; i < 200; i++ {
		if math.Abs(preds.At(i, 0)-y.At(i, 0)) > 1e-9 {
			t.Fatalf("row %d: expected %v, got %v", i, y.At(i, 0), preds.At(i, 0))
		}
	}
}

// TestDecisionTreeRegressor_MaxDepth tests that depth is respected
func TestDecisionTreeRegressor_MaxDepth(t *testing.T) {
	X, y := synthetic(100, 2, 1)

	dt := NewDecisionTreeRegressor(WithMaxDepth(2))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}
	if dt.Depth() > 2 {
		t.Errorf("depth %d exceeds max_depth 2", dt.Depth())
	}
	if dt.NLeaves() > 4 {
		t.Errorf("expected at most 4 leaves, got %d", dt.NLeaves())
	}
}

// TestDecisionTreeRegressor_MinSamplesLeaf tests the leaf size constraint
func TestDecisionTreeRegressor_MinSamplesLeaf(t *testing.T) {
	X, y := synthetic(60, 2, 3)

	dt := NewDecisionTreeRegressor(WithMinSamplesLeaf(10))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}
	for _, n := range dt.Nodes() {
		if n.IsLeaf() && n.Samples < 10 {
			t.Errorf("leaf with %d samples", n.Samples)
		}
	}
}

// TestDecisionTreeRegressor_FeatureImportance tests that the informative feature dominates
func TestDecisionTreeRegressor_FeatureImportance(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	X := mat.NewDense(100, 3, nil)
	y := mat.NewDense(100, 1, nil)
	for i := 0; i < 100; i++ {
		for j := 0; j < 3; j++ {
			X.Set(i, j, rng.Float64())
		}
		y.Set(i, 0, 100*X.At(i, 1)+rng.Float64())
	}

	dt := NewDecisionTreeRegressor(WithMaxDepth(4))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}
	imp, err := dt.FeatureImportances()
	if err != nil {
		t.Fatalf("FeatureImportances: %v", err)
	}

	var sum float64
	for j, v := range imp {
		if v < 0 {
			t.Errorf("negative importance for feature %d: %v", j, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("importances should sum to 1, got %v", sum)
	}
	if imp[1] < 0.9 {
		t.Errorf("feature 1 should dominate, got %v", imp)
	}
}

// TestDecisionTreeRegressor_ConstantTarget tests that a pure root stays a leaf
func TestDecisionTreeRegressor_ConstantTarget(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{5, 5, 5, 5})

	dt := NewDecisionTreeRegressor()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}
	if dt.NLeaves() != 1 {
		t.Errorf("expected a single leaf, got %d", dt.NLeaves())
	}
	imp, _ := dt.FeatureImportances()
	if imp[0] != 0 {
		t.Errorf("no split means zero importance, got %v", imp)
	}
}

// TestDecisionTreeRegressor_Deterministic tests that feature subsampling is seeded
func TestDecisionTreeRegressor_Deterministic(t *testing.T) {
	X, y := synthetic(150, 6, 11)

	fit := func() mat.Matrix {
		dt := NewDecisionTreeRegressor(WithMaxFeatures(2), WithRandomState(42), WithMaxDepth(6))
		if err := dt.Fit(X, y); err != nil {
			t.Fatalf("Failed to fit model: %v", err)
		}
		p, err := dt.Predict(X)
		if err != nil {
			t.Fatalf("Failed to predict: %v", err)
		}
		return p
	}
	if !mat.Equal(fit(), fit()) {
		t.Error("same random_state must give identical trees")
	}
}

// TestDecisionTreeRegressor_Errors tests invalid input handling
func TestDecisionTreeRegressor_Errors(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	_, err := dt.Predict(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError, got %v", err)
	}
	if _, err := dt.FeatureImportances(); err == nil {
		t.Error("expected error from unfitted FeatureImportances")
	}

	if err := dt.Fit(mat.NewDense(3, 1, nil), mat.NewDense(2, 1, nil)); err == nil {
		t.Error("expected dimension error")
	}

	bad := NewDecisionTreeRegressor(WithMinSamplesSplit(1))
	if err := bad.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{1, 2})); err == nil {
		t.Error("expected validation error for min_samples_split")
	}

	if err := dt.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4}), mat.NewDense(2, 1, []float64{1, 2})); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}
	_, err = dt.Predict(mat.NewDense(1, 3, nil))
	var dim *errors.DimensionError
	if !errors.As(err, &dim) {
		t.Errorf("expected DimensionError, got %v", err)
	}
}

// TestDecisionTreeRegressor_FitSubset tests that repeated indices weight samples
func TestDecisionTreeRegressor_FitSubset(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := []float64{0, 0, 9}

	dt := NewDecisionTreeRegressor(WithMaxDepth(0))
	if err := dt.FitSubset(X, y, []int{0, 0, 1, 1}); err != nil {
		t.Fatalf("FitSubset: %v", err)
	}
	p, err := dt.Predict(mat.NewDense(1, 1, []float64{3}))
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	if p.At(0, 0) != 0 {
		t.Errorf("row 2 was not sampled, expected 0, got %v", p.At(0, 0))
	}
}

func synthetic(n, features int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	X := mat.NewDense(n, features, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		var target float64
		for j := 0; j < features; j++ {
			v := rng.Float64()*10 - 5
			X.Set(i, j, v)
			target += float64(j+1) * v
		}
		y.Set(i, 0, target+rng.NormFloat64())
	}
	return X, y
}
