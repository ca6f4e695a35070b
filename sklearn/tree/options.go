package tree

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth limits the depth of the tree. 0 grows until leaves are pure.
func WithMaxDepth(depth int) Option {
	return func(t *DecisionTreeRegressor) { t.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) { t.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) { t.minSamplesLeaf = n }
}

// WithMaxFeatures sets the number of features examined per split. 0 means all.
func WithMaxFeatures(n int) Option {
	return func(t *DecisionTreeRegressor) { t.maxFeatures = n }
}

// WithMinImpurityDecrease sets the weighted impurity decrease a split must reach.
func WithMinImpurityDecrease(v float64) Option {
	return func(t *DecisionTreeRegressor) { t.minImpurityDecrease = v }
}

// WithRandomState seeds feature subsampling.
func WithRandomState(seed uint64) Option {
	return func(t *DecisionTreeRegressor) { t.randomState = seed }
}
