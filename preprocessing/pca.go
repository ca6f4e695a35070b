package preprocessing

import (
	"math"

	"github.com/YuminosukeSato/housepricer/core/model"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA is principal component analysis backed by gonum's stat.PC. Component
// signs are fixed so that the largest absolute loading of each component is
// positive, which keeps projections stable across refits.
type PCA struct {
	state *model.StateManager

	// NComponents requested; capped at min(n_samples, n_features) during Fit.
	NComponents int

	Mean                   []float64
	Components             *mat.Dense // n_features × k
	ExplainedVariance      []float64
	ExplainedVarianceRatio []float64
}

// NewPCA creates a PCA projecting onto n components.
func NewPCA(n int) *PCA {
	return &PCA{state: model.NewStateManager(), NComponents: n}
}

// Fit computes the principal directions of X.
func (p *PCA) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r < 2 || c == 0 {
		return errors.NewModelError("PCA.Fit", "at least two samples are required", errors.ErrEmptyData)
	}
	if p.NComponents <= 0 {
		return errors.NewValidationError("n_components", "must be positive", p.NComponents)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(X, nil); !ok {
		return errors.NewModelError("PCA.Fit", "SVD factorization failed", errors.ErrSingularMatrix)
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	_, available := vecs.Dims()
	k := p.NComponents
	if k > available {
		k = available
	}

	components := mat.NewDense(c, k, nil)
	components.Copy(vecs.Slice(0, c, 0, k))
	for j := 0; j < k; j++ {
		var maxAbs, sign float64 = 0, 1
		for i := 0; i < c; i++ {
			if v := components.At(i, j); math.Abs(v) > maxAbs {
				maxAbs = math.Abs(v)
				sign = math.Copysign(1, v)
			}
		}
		if sign < 0 {
			for i := 0; i < c; i++ {
				components.Set(i, j, -components.At(i, j))
			}
		}
	}

	var total float64
	for _, v := range vars {
		total += v
	}
	explained := make([]float64, k)
	ratio := make([]float64, k)
	for j := 0; j < k; j++ {
		explained[j] = vars[j]
		if total > 0 {
			ratio[j] = vars[j] / total
		}
	}

	mean := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mean[j] = stat.Mean(mat.Col(col, j, X), nil)
	}

	p.Mean = mean
	p.Components = components
	p.ExplainedVariance = explained
	p.ExplainedVarianceRatio = ratio
	p.state.SetFitted(c, r)
	return nil
}

// Transform projects X onto the fitted components.
func (p *PCA) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.RequireFeatures("PCA", "Transform", X); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	centered := mat.NewDense(r, c, nil)
	centered.Apply(func(i, j int, v float64) float64 { return v - p.Mean[j] }, X)

	var out mat.Dense
	out.Mul(centered, p.Components)
	return &out, nil
}

// FitTransform fits on X and projects it.
func (p *PCA) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.Fit(X); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

// NFitted returns the number of fitted components.
func (p *PCA) NFitted() int {
	if p.Components == nil {
		return 0
	}
	_, k := p.Components.Dims()
	return k
}

// IsFitted reports whether Fit has completed.
func (p *PCA) IsFitted() bool { return p.state.IsFitted() }

var _ model.Transformer = (*PCA)(nil)
