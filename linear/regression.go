// Package linear は最小二乗法による線形回帰を提供する
package linear

import (
	"math"

	"github.com/YuminosukeSato/housepricer/core/model"
	"github.com/YuminosukeSato/housepricer/core/parallel"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// 並列処理の閾値（この値以下の行数では逐次処理を使用）
const parallelThreshold = 1000

// LinearRegression は正規方程式で解く線形回帰モデル
type LinearRegression struct {
	state *model.StateManager

	fitIntercept bool
	tol          float64
	jitter       float64

	weights   *mat.VecDense // 重み（係数）
	intercept float64       // 切片
	jittered  bool          // 直近の Fit でリッジ項を加えたか
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
		tol:          1e-12,
		jitter:       1e-8,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習させる。
// 正規方程式 (XᵀX) w = Xᵀy をコレスキー分解で解き、XᵀX が特異（または条件数が
// 1/tol を超える）場合は対角に jitter·max(diag) を加えて解き直す。
// 切片は X と y を中心化して求めるため、リッジ項は切片に掛からない。
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}

	xMean := make([]float64, c)
	var yMean float64
	if lr.fitIntercept {
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				xMean[j] += X.At(i, j)
			}
			yMean += y.At(i, 0)
		}
		for j := range xMean {
			xMean[j] /= float64(r)
		}
		yMean /= float64(r)
	}

	// 中心化した Xc と yc
	Xc := mat.NewDense(r, c, nil)
	yc := mat.NewVecDense(r, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				Xc.Set(i, j, X.At(i, j)-xMean[j])
			}
			yc.SetVec(i, y.At(i, 0)-yMean)
		}
	})

	var xtx mat.SymDense
	xtx.SymOuterK(1, Xc.T())
	var xty mat.VecDense
	xty.MulVec(Xc.T(), yc)

	weights, jittered, err := lr.solve(&xtx, &xty)
	if err != nil {
		return err
	}

	lr.weights = weights
	lr.jittered = jittered
	lr.intercept = yMean - mat.Dot(mat.NewVecDense(c, xMean), weights)
	lr.state.SetFitted(c, r)

	if jittered {
		log.GetLoggerWithName("linear").Warn("XᵀX is singular, solved with ridge jitter",
			log.ModelNameKey, "LinearRegression",
			log.SamplesKey, r,
			log.FeaturesKey, c,
		)
	}
	return nil
}

func (lr *LinearRegression) solve(xtx *mat.SymDense, xty *mat.VecDense) (*mat.VecDense, bool, error) {
	c := xtx.SymmetricDim()
	w := mat.NewVecDense(c, nil)

	var chol mat.Cholesky
	if chol.Factorize(xtx) && 1/chol.Cond() > lr.tol {
		if err := chol.SolveVecTo(w, xty); err == nil {
			return w, false, nil
		}
	}

	var maxDiag float64
	for i := 0; i < c; i++ {
		maxDiag = math.Max(maxDiag, xtx.At(i, i))
	}
	if maxDiag == 0 {
		// 全列が定数: 係数はすべて0で切片のみ
		return w, true, nil
	}
	lambda := lr.jitter * maxDiag

	ridge := mat.NewSymDense(c, nil)
	ridge.CopySym(xtx)
	for i := 0; i < c; i++ {
		ridge.SetSym(i, i, ridge.At(i, i)+lambda)
	}
	if !chol.Factorize(ridge) {
		return nil, true, errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.ErrSingularMatrix)
	}
	if err := chol.SolveVecTo(w, xty); err != nil {
		return nil, true, errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.Wrap(errors.ErrSingularMatrix, err.Error()))
	}
	return w, true, nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFeatures("LinearRegression", "Predict", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	predictions := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			pred := lr.intercept
			for j := 0; j < c; j++ {
				pred += X.At(i, j) * lr.weights.AtVec(j)
			}
			predictions.Set(i, 0, pred)
		}
	})
	return predictions, nil
}

// Coefficients は学習された重み（係数）を返す
func (lr *LinearRegression) Coefficients() []float64 {
	if !lr.state.IsFitted() {
		return nil
	}
	return mat.Col(nil, 0, lr.weights)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	if !lr.state.IsFitted() {
		return 0
	}
	return lr.intercept
}

// Jittered は直近の Fit がリッジ項付きで解かれたかを返す
func (lr *LinearRegression) Jittered() bool { return lr.jittered }

// IsFitted はモデルが学習済みかどうかを返す
func (lr *LinearRegression) IsFitted() bool { return lr.state.IsFitted() }

// GetParams returns the parameters of the model
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
		"tol":           lr.tol,
		"jitter":        lr.jitter,
	}
}

var (
	_ model.Regressor           = (*LinearRegression)(nil)
	_ model.CoefficientReporter = (*LinearRegression)(nil)
	_ model.ParamGetter         = (*LinearRegression)(nil)
)
