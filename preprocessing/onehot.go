package preprocessing

import (
	"sort"

	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// HandleUnknown は学習時に見ていないカテゴリの扱い
type HandleUnknown int

const (
	// UnknownError は未知カテゴリを EncodingError にする
	UnknownError HandleUnknown = iota
	// UnknownIgnore は未知カテゴリを全ゼロの指示変数として符号化し警告を出す
	UnknownIgnore
)

// String returns the configuration name of the policy.
func (h HandleUnknown) String() string {
	if h == UnknownIgnore {
		return "ignore"
	}
	return "error"
}

// OneHotEncoder はscikit-learn互換のone-hotエンコーダ。
// 語彙は列ごとに辞書順で固定される。
type OneHotEncoder struct {
	// Columns は入力列名（EncodingError と特徴量名に使う）
	Columns []string

	// Categories は列ごとの辞書順の語彙
	Categories [][]string

	HandleUnknown HandleUnknown

	index []map[string]int
	width int
}

// NewOneHotEncoder は新しい OneHotEncoder を作成する
func NewOneHotEncoder(columns []string, handleUnknown HandleUnknown) *OneHotEncoder {
	return &OneHotEncoder{Columns: columns, HandleUnknown: handleUnknown}
}

// Fit は列ごとの語彙を学習する。columns[j] は j 列目の値。
func (e *OneHotEncoder) Fit(columns [][]string) error {
	if len(columns) != len(e.Columns) {
		return errors.NewDimensionError("OneHotEncoder.Fit", len(e.Columns), len(columns), 1)
	}

	categories := make([][]string, len(columns))
	index := make([]map[string]int, len(columns))
	width := 0
	for j, col := range columns {
		seen := make(map[string]struct{})
		for _, v := range col {
			seen[v] = struct{}{}
		}
		vocab := make([]string, 0, len(seen))
		for v := range seen {
			vocab = append(vocab, v)
		}
		sort.Strings(vocab)

		idx := make(map[string]int, len(vocab))
		for k, v := range vocab {
			idx[v] = width + k
		}
		categories[j] = vocab
		index[j] = idx
		width += len(vocab)
	}

	e.Categories = categories
	e.index = index
	e.width = width
	return nil
}

// Width は出力列数を返す
func (e *OneHotEncoder) Width() int { return e.width }

// FeatureNames は出力列名 "<column>_<category>" を返す
func (e *OneHotEncoder) FeatureNames() []string {
	names := make([]string, 0, e.width)
	for j, vocab := range e.Categories {
		for _, v := range vocab {
			names = append(names, e.Columns[j]+"_"+v)
		}
	}
	return names
}

// Transform は列を指示変数行列に変換する。
// UnknownIgnore の場合、未知カテゴリごとに UnknownCategoryWarning を出す。
func (e *OneHotEncoder) Transform(columns [][]string) (*mat.Dense, error) {
	if e.index == nil {
		return nil, errors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	if len(columns) != len(e.Columns) {
		return nil, errors.NewDimensionError("OneHotEncoder.Transform", len(e.Columns), len(columns), 1)
	}
	rows := 0
	if len(columns) > 0 {
		rows = len(columns[0])
	}
	if rows == 0 || e.width == 0 {
		return nil, errors.NewModelError("OneHotEncoder.Transform", "empty data", errors.ErrEmptyData)
	}

	out := mat.NewDense(rows, e.width, nil)
	for j, col := range columns {
		if len(col) != rows {
			return nil, errors.NewDimensionError("OneHotEncoder.Transform", rows, len(col), 0)
		}
		unknown := make(map[string]int)
		var order []string
		for i, v := range col {
			k, ok := e.index[j][v]
			if ok {
				out.Set(i, k, 1)
				continue
			}
			if e.HandleUnknown == UnknownError {
				return nil, errors.NewEncodingError(e.Columns[j], v, "category not seen during fit")
			}
			if unknown[v] == 0 {
				order = append(order, v)
			}
			unknown[v]++
		}
		for _, v := range order {
			errors.Warn(errors.NewUnknownCategoryWarning(e.Columns[j], v, unknown[v]))
		}
	}
	return out, nil
}
