package preprocessing

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/housepricer/pkg/errors"
)

// MissingToken は欠損したカテゴリ値の補完に使うトークン
const MissingToken = "None"

// MedianImputer は数値列の欠損値（NaN）を学習データの中央値で補完する
type MedianImputer struct {
	// Medians は列ごとの中央値。観測値のない列は0。
	Medians []float64
}

// NewMedianImputer は新しい MedianImputer を作成する
func NewMedianImputer() *MedianImputer {
	return &MedianImputer{}
}

// Fit は列ごとの中央値を求める。columns[j] は j 列目の値で NaN を欠損とみなす。
func (m *MedianImputer) Fit(columns [][]float64) error {
	if len(columns) == 0 {
		return errors.NewModelError("MedianImputer.Fit", "empty data", errors.ErrEmptyData)
	}
	medians := make([]float64, len(columns))
	for j, col := range columns {
		medians[j] = Median(col)
	}
	m.Medians = medians
	return nil
}

// Transform は NaN を中央値で置き換えた列のコピーを返す
func (m *MedianImputer) Transform(columns [][]float64) ([][]float64, error) {
	if m.Medians == nil {
		return nil, errors.NewNotFittedError("MedianImputer", "Transform")
	}
	if len(columns) != len(m.Medians) {
		return nil, errors.NewDimensionError("MedianImputer.Transform", len(m.Medians), len(columns), 1)
	}
	out := make([][]float64, len(columns))
	for j, col := range columns {
		filled := make([]float64, len(col))
		for i, v := range col {
			if math.IsNaN(v) {
				v = m.Medians[j]
			}
			filled[i] = v
		}
		out[j] = filled
	}
	return out, nil
}

// Median は NaN を除いた値の中央値を返す（偶数個なら中央2値の平均）。
// 有限値がなければ0。
func Median(values []float64) float64 {
	observed := make([]float64, 0, len(values))
	for _, v := range values {
		if isFinite(v) {
			observed = append(observed, v)
		}
	}
	n := len(observed)
	if n == 0 {
		return 0
	}
	sort.Float64s(observed)
	if n%2 == 1 {
		return observed[n/2]
	}
	return (observed[n/2-1] + observed[n/2]) / 2
}

// ImputeCategorical は空文字を MissingToken に置き換えたコピーを返す
func ImputeCategorical(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if v == "" {
			v = MissingToken
		}
		out[i] = v
	}
	return out
}
