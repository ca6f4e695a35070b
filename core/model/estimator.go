// Package model defines the estimator contracts shared by every regressor and
// transformer in housepricer.
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル。
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n×1 行列で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor は回帰モデルの基本インターフェース
type Regressor interface {
	Fitter
	Predictor
}

// FeatureImportancer は不純度ベースの特徴量重要度を持つモデル
type FeatureImportancer interface {
	// FeatureImportances は特徴量ごとの非負の重要度（合計1）を返す
	FeatureImportances() ([]float64, error)
}

// CoefficientReporter は線形係数を公開するモデル
type CoefficientReporter interface {
	// Coefficients は学習された係数を返す。未学習の場合は nil。
	Coefficients() []float64
}

// ParamGetter はハイパーパラメータを公開するモデル
type ParamGetter interface {
	GetParams() map[string]interface{}
}

// Factory は未学習の推定器を生成する
type Factory func() Regressor

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}
