// Package tree implements CART regression trees with the squared-error
// criterion.
package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/housepricer/core/model"
	"github.com/YuminosukeSato/housepricer/core/parallel"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const predictParallelThreshold = 1000

// Node is a single node of a fitted tree. Leaves have Left == Right == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64 // mean target of the samples reaching the node
	Samples   int
	Impurity  float64 // mean squared error of the samples reaching the node
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool { return n.Left < 0 }

// DecisionTreeRegressor is a CART regressor. Splits minimise the summed
// squared error of the children; thresholds are midpoints between adjacent
// distinct feature values.
type DecisionTreeRegressor struct {
	state *model.StateManager

	maxDepth            int
	minSamplesSplit     int
	minSamplesLeaf      int
	maxFeatures         int
	minImpurityDecrease float64
	randomState         uint64

	nodes       []Node
	importances []float64
	depth       int

	// training scratch
	x   *mat.Dense
	y   []float64
	rng *rand.Rand
}

// NewDecisionTreeRegressor creates an unfitted tree.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		state:           model.NewStateManager(),
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fit builds the tree on all rows of X.
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	r, _ := X.Dims()
	target, err := targetVector("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	indices := make([]int, r)
	for i := range indices {
		indices[i] = i
	}
	return t.FitSubset(X, target, indices)
}

// FitSubset builds the tree on the rows listed in indices. Repeated indices
// act as sample weights, which is how bootstrap samples are passed in.
func (t *DecisionTreeRegressor) FitSubset(X mat.Matrix, y []float64, indices []int) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	r, c := X.Dims()
	if r == 0 || c == 0 || len(indices) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(y) != r {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", r, len(y), 0)
	}
	if t.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", t.minSamplesSplit)
	}
	if t.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", t.minSamplesLeaf)
	}
	if t.maxFeatures < 0 || t.maxFeatures > c {
		return errors.NewValidationError("max_features", "must be between 0 and n_features", t.maxFeatures)
	}

	t.x = denseOf(X)
	t.y = y
	t.rng = rand.New(rand.NewPCG(t.randomState, t.randomState^0x9e3779b97f4a7c15))
	t.nodes = t.nodes[:0]
	t.importances = make([]float64, c)
	t.depth = 0

	rows := append([]int(nil), indices...)
	t.buildNode(rows, 0)

	var total float64
	for _, v := range t.importances {
		total += v
	}
	if total > 0 {
		for j := range t.importances {
			t.importances[j] /= total
		}
	}

	t.x, t.y, t.rng = nil, nil, nil
	t.state.SetFitted(c, len(indices))
	return nil
}

type split struct {
	feature   int
	threshold float64
	gain      float64 // SSE(parent) - SSE(left) - SSE(right)
	pos       int     // rows[:pos] go left after sorting by feature
}

// buildNode recursively builds tree nodes and returns the index of the node
// created for rows.
func (t *DecisionTreeRegressor) buildNode(rows []int, depth int) int {
	nodeIdx := len(t.nodes)
	if depth > t.depth {
		t.depth = depth
	}

	var sum, sumSq float64
	for _, i := range rows {
		sum += t.y[i]
		sumSq += t.y[i] * t.y[i]
	}
	n := float64(len(rows))
	mean := sum / n
	sse := math.Max(sumSq-sum*sum/n, 0)

	t.nodes = append(t.nodes, Node{
		Feature:  -1,
		Left:     -1,
		Right:    -1,
		Value:    mean,
		Samples:  len(rows),
		Impurity: sse / n,
	})

	// Check stopping conditions
	if (t.maxDepth > 0 && depth >= t.maxDepth) ||
		len(rows) < t.minSamplesSplit ||
		len(rows) < 2*t.minSamplesLeaf ||
		sse <= 1e-12*math.Max(1, sumSq) {
		return nodeIdx
	}

	best, ok := t.findBestSplit(rows, sum, sumSq)
	if !ok {
		return nodeIdx
	}
	if best.gain/float64(t.rootSamples()) < t.minImpurityDecrease {
		return nodeIdx
	}

	sortByFeature(t.x, rows, best.feature)
	left := append([]int(nil), rows[:best.pos]...)
	right := append([]int(nil), rows[best.pos:]...)

	t.importances[best.feature] += best.gain
	t.nodes[nodeIdx].Feature = best.feature
	t.nodes[nodeIdx].Threshold = best.threshold

	leftChild := t.buildNode(left, depth+1)
	rightChild := t.buildNode(right, depth+1)
	t.nodes[nodeIdx].Left = leftChild
	t.nodes[nodeIdx].Right = rightChild
	return nodeIdx
}

func (t *DecisionTreeRegressor) rootSamples() int {
	if len(t.nodes) == 0 {
		return 1
	}
	return t.nodes[0].Samples
}

// findBestSplit tries every candidate feature and keeps the first split with
// the strictly largest gain.
func (t *DecisionTreeRegressor) findBestSplit(rows []int, sum, sumSq float64) (split, bool) {
	_, cols := t.x.Dims()
	features := t.candidateFeatures(cols)

	best := split{gain: 0}
	found := false
	sorted := make([]int, len(rows))
	for _, f := range features {
		copy(sorted, rows)
		s, ok := t.findBestSplitForFeature(sorted, f, sum, sumSq)
		if ok && (!found || s.gain > best.gain) {
			best = s
			found = true
		}
	}
	return best, found && best.gain > 0
}

func (t *DecisionTreeRegressor) candidateFeatures(cols int) []int {
	if t.maxFeatures == 0 || t.maxFeatures >= cols {
		features := make([]int, cols)
		for j := range features {
			features[j] = j
		}
		return features
	}
	features := t.rng.Perm(cols)[:t.maxFeatures]
	sort.Ints(features)
	return features
}

func (t *DecisionTreeRegressor) findBestSplitForFeature(rows []int, feature int, sum, sumSq float64) (split, bool) {
	sortByFeature(t.x, rows, feature)

	n := len(rows)
	parentSSE := sumSq - sum*sum/float64(n)
	best := split{feature: feature}
	found := false

	var leftSum, leftSq float64
	for i := 0; i < n-1; i++ {
		yi := t.y[rows[i]]
		leftSum += yi
		leftSq += yi * yi

		v, next := t.x.At(rows[i], feature), t.x.At(rows[i+1], feature)
		if v == next {
			continue
		}
		leftCount := i + 1
		rightCount := n - leftCount
		if leftCount < t.minSamplesLeaf || rightCount < t.minSamplesLeaf {
			continue
		}

		rightSum := sum - leftSum
		rightSq := sumSq - leftSq
		leftSSE := leftSq - leftSum*leftSum/float64(leftCount)
		rightSSE := rightSq - rightSum*rightSum/float64(rightCount)
		gain := parentSSE - leftSSE - rightSSE

		if !found || gain > best.gain {
			best.gain = gain
			best.threshold = v + (next-v)/2
			best.pos = leftCount
			found = true
		}
	}
	return best, found
}

// sortByFeature orders rows by X[:, feature], ties broken by row index so the
// result is independent of the input order.
func sortByFeature(x *mat.Dense, rows []int, feature int) {
	sort.Slice(rows, func(a, b int) bool {
		va, vb := x.At(rows[a], feature), x.At(rows[b], feature)
		if va != vb {
			return va < vb
		}
		return rows[a] < rows[b]
	})
}

// Predict returns the leaf mean for every row of X.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.state.RequireFeatures("DecisionTreeRegressor", "Predict", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, predictParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			out.Set(i, 0, t.predictRow(X, i))
		}
	})
	return out, nil
}

// PredictRow predicts row i of X without dimension checks. Used by ensembles
// that have already validated X.
func (t *DecisionTreeRegressor) PredictRow(X mat.Matrix, i int) float64 {
	return t.predictRow(X, i)
}

func (t *DecisionTreeRegressor) predictRow(X mat.Matrix, i int) float64 {
	node := &t.nodes[0]
	for !node.IsLeaf() {
		if X.At(i, node.Feature) <= node.Threshold {
			node = &t.nodes[node.Left]
		} else {
			node = &t.nodes[node.Right]
		}
	}
	return node.Value
}

// FeatureImportances returns the normalised total squared-error decrease per
// feature. A tree without splits reports all zeros.
func (t *DecisionTreeRegressor) FeatureImportances() ([]float64, error) {
	if err := t.state.RequireFitted("DecisionTreeRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), t.importances...), nil
}

// Nodes returns the fitted nodes; node 0 is the root.
func (t *DecisionTreeRegressor) Nodes() []Node { return t.nodes }

// Depth returns the depth of the fitted tree.
func (t *DecisionTreeRegressor) Depth() int { return t.depth }

// NLeaves returns the number of leaves.
func (t *DecisionTreeRegressor) NLeaves() int {
	leaves := 0
	for i := range t.nodes {
		if t.nodes[i].IsLeaf() {
			leaves++
		}
	}
	return leaves
}

// IsFitted reports whether Fit has completed.
func (t *DecisionTreeRegressor) IsFitted() bool { return t.state.IsFitted() }

// GetParams returns the hyperparameters of the tree.
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":             t.maxDepth,
		"min_samples_split":     t.minSamplesSplit,
		"min_samples_leaf":      t.minSamplesLeaf,
		"max_features":          t.maxFeatures,
		"min_impurity_decrease": t.minImpurityDecrease,
		"random_state":          t.randomState,
	}
}

func denseOf(X mat.Matrix) *mat.Dense {
	if d, ok := X.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(X)
}

func targetVector(op string, X, y mat.Matrix) ([]float64, error) {
	r, _ := X.Dims()
	ry, cy := y.Dims()
	if ry != r {
		return nil, errors.NewDimensionError(op, r, ry, 0)
	}
	if cy != 1 {
		return nil, errors.NewValueError(op, "y must be a column vector")
	}
	return mat.Col(nil, 0, y), nil
}

// TargetVector validates y against X and returns it as a slice.
func TargetVector(op string, X, y mat.Matrix) ([]float64, error) {
	return targetVector(op, X, y)
}

var (
	_ model.Regressor          = (*DecisionTreeRegressor)(nil)
	_ model.FeatureImportancer = (*DecisionTreeRegressor)(nil)
	_ model.ParamGetter        = (*DecisionTreeRegressor)(nil)
)
