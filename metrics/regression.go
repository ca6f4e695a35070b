// Package metrics は回帰評価指標を提供する
package metrics

import (
	"math"

	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Report は評価画面に表示される3つの指標をまとめたもの
type Report struct {
	MAE  float64 `json:"mae"`
	MAPE float64 `json:"mape"` // 比率（0.05 = 5%）
	R2   float64 `json:"r2"`
}

// Regression は MAE・MAPE・R² をまとめて計算する
func Regression(yTrue, yPred *mat.VecDense) (Report, error) {
	mae, err := MAE(yTrue, yPred)
	if err != nil {
		return Report{}, err
	}
	mape, err := MAPE(yTrue, yPred)
	if err != nil {
		return Report{}, err
	}
	r2, err := R2Score(yTrue, yPred)
	if err != nil {
		return Report{}, err
	}
	return Report{MAE: mae, MAPE: mape, R2: r2}, nil
}

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yTrue.IsEmpty() {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred == nil || yPred.IsEmpty() {
		return 0, errors.NewDimensionError(op, n, 0, 0)
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MAE = (1/n) * Σ|yTrue - yPred|
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// MAPE は平均絶対パーセンテージ誤差を比率で返す（scikit-learn と同じ定義）。
// 分母は max(|yTrue|, ε) なのでゼロの正解値でも発散しない。
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	eps := math.Nextafter(1, 2) - 1
	var sum float64
	for i := 0; i < n; i++ {
		yTrueVal := yTrue.AtVec(i)
		sum += math.Abs(yTrueVal-yPred.AtVec(i)) / math.Max(math.Abs(yTrueVal), eps)
	}
	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する。
// yTrue の分散が0の場合は完全一致なら1、それ以外は0を返し UndefinedMetricWarning を出す。
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.AtVec(i)
	}
	yMean /= float64(n)

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := 0; i < n; i++ {
		yTrueVal := yTrue.AtVec(i)
		yPredVal := yPred.AtVec(i)
		tss += (yTrueVal - yMean) * (yTrueVal - yMean)
		rss += (yTrueVal - yPredVal) * (yTrueVal - yPredVal)
	}

	if tss == 0 {
		result := 0.0
		if rss == 0 {
			result = 1.0
		}
		errors.Warn(errors.NewUndefinedMetricWarning("R2Score", "constant yTrue", result))
		return result, nil
	}

	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}

// ColumnVector は n×1 行列を VecDense に変換する
func ColumnVector(m mat.Matrix) (*mat.VecDense, error) {
	r, c := m.Dims()
	if c != 1 {
		return nil, errors.NewValueError("ColumnVector", "must be a column vector (n×1 matrix)")
	}
	if r == 0 {
		return nil, errors.NewValueError("ColumnVector", "empty matrix")
	}
	if v, ok := m.(*mat.VecDense); ok {
		return v, nil
	}
	out := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		out.SetVec(i, m.At(i, 0))
	}
	return out, nil
}

// MSEMatrix は行列形式の入力に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, err := ColumnVector(yTrue)
	if err != nil {
		return 0, err
	}
	p, err := ColumnVector(yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}
