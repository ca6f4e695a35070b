// Package features turns raw dataset cells into a numeric feature matrix.
//
// Numeric columns are median-imputed, categorical columns are filled with
// "None" and one-hot encoded, the combined matrix is standardised and
// optionally projected onto its leading principal components. Every fitted
// parameter comes from the training set and is reused unchanged for the test
// set.
package features

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strconv"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/housepricer/dataset"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/pkg/log"
	"github.com/YuminosukeSato/housepricer/preprocessing"
)

// DefaultComponents is the number of principal components kept by default.
const DefaultComponents = 30

// DefaultCategorical lists numeric-looking Kaggle columns that are codes, not
// quantities.
var DefaultCategorical = []string{"MSSubClass", "MoSold", "YrSold"}

// UnknownPolicy selects how categories unseen during Fit are encoded.
type UnknownPolicy = preprocessing.HandleUnknown

const (
	UnknownError  = preprocessing.UnknownError
	UnknownIgnore = preprocessing.UnknownIgnore
)

// ParseUnknownPolicy accepts "error" or "ignore".
func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	switch s {
	case "error", "":
		return UnknownError, nil
	case "ignore":
		return UnknownIgnore, nil
	}
	return UnknownError, errors.NewValidationError("features.unknown", "must be error or ignore", s)
}

// FeatureMatrix is the numeric encoding of a dataset, one row per dataset row
// in the same order.
type FeatureMatrix struct {
	IDs   []int
	Names []string
	X     *mat.Dense
}

// Dims returns rows and feature count.
func (f *FeatureMatrix) Dims() (int, int) { return f.X.Dims() }

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithComponents sets the number of PCA components. 0 disables PCA.
func WithComponents(n int) Option {
	return func(p *Pipeline) { p.components = n }
}

// WithCategorical forces the named columns to be treated as categorical.
func WithCategorical(names ...string) Option {
	return func(p *Pipeline) { p.categorical = append([]string(nil), names...) }
}

// WithUnknownPolicy sets the unseen-category policy.
func WithUnknownPolicy(policy UnknownPolicy) Option {
	return func(p *Pipeline) { p.unknown = policy }
}

// Pipeline is safe for concurrent Encode calls. Fit replaces the fitted
// parameters atomically.
type Pipeline struct {
	components  int
	categorical []string
	unknown     UnknownPolicy

	mu     sync.RWMutex
	fitted *fittedState
}

type fittedState struct {
	columns     []string // numeric then categorical, as pulled from the dataset
	numeric     []string
	categorical []string

	imputer *preprocessing.MedianImputer
	encoder *preprocessing.OneHotEncoder
	scaler  *preprocessing.StandardScaler
	pca     *preprocessing.PCA

	names       []string
	fingerprint string
}

// New creates an unfitted pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		components:  DefaultComponents,
		categorical: append([]string(nil), DefaultCategorical...),
		unknown:     UnknownError,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fit learns column types, imputation values, vocabularies, scaling and PCA
// directions from train.
func (p *Pipeline) Fit(train *dataset.Dataset) error {
	logger := log.GetLoggerWithName("features")
	start := time.Now()

	if train == nil || train.Len() == 0 {
		return errors.NewModelError("Pipeline.Fit", "empty training dataset", errors.ErrEmptyData)
	}
	if p.components < 0 {
		return errors.NewValidationError("features.components", "must not be negative", p.components)
	}

	forced := make(map[string]struct{}, len(p.categorical))
	for _, name := range p.categorical {
		forced[name] = struct{}{}
	}

	st := &fittedState{}
	numericCols := make([][]float64, 0, len(train.Columns))
	categoricalCols := make([][]string, 0)
	for j, name := range train.Columns {
		cells := columnAt(train, j)
		if _, isForced := forced[name]; !isForced {
			if values, ok := parseNumeric(cells); ok {
				st.numeric = append(st.numeric, name)
				numericCols = append(numericCols, values)
				continue
			}
		}
		st.categorical = append(st.categorical, name)
		categoricalCols = append(categoricalCols, preprocessing.ImputeCategorical(cells))
	}
	st.columns = append(append([]string(nil), st.numeric...), st.categorical...)

	st.imputer = preprocessing.NewMedianImputer()
	if len(numericCols) > 0 {
		if err := st.imputer.Fit(numericCols); err != nil {
			return err
		}
	}
	st.encoder = preprocessing.NewOneHotEncoder(st.categorical, p.unknown)
	if err := st.encoder.Fit(categoricalCols); err != nil {
		return err
	}

	raw, err := st.assemble(numericCols, categoricalCols)
	if err != nil {
		return err
	}

	st.scaler = preprocessing.NewStandardScalerDefault()
	scaled, err := st.scaler.FitTransform(raw)
	if err != nil {
		return err
	}

	st.names = append(append([]string(nil), st.numeric...), st.encoder.FeatureNames()...)
	if p.components > 0 {
		st.pca = preprocessing.NewPCA(p.components)
		if err := st.pca.Fit(scaled); err != nil {
			return errors.Wrap(err, "fit PCA")
		}
		k := st.pca.NFitted()
		if k < p.components {
			logger.Warn("PCA components capped by data rank",
				"requested", p.components, "fitted", k)
		}
		st.names = make([]string, k)
		for i := range st.names {
			st.names[i] = "PC" + strconv.Itoa(i+1)
		}
	}
	st.fingerprint = st.computeFingerprint(p)

	p.mu.Lock()
	p.fitted = st
	p.mu.Unlock()

	logger.Info("Feature pipeline fitted",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhasePreprocessing,
		log.SamplesKey, train.Len(),
		"numeric", len(st.numeric),
		"categorical", len(st.categorical),
		log.FeaturesKey, len(st.names),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Encode applies the fitted parameters to ds. Missing columns, non-numeric
// cells in numeric columns and (under UnknownError) unseen categories fail
// with an EncodingError.
func (p *Pipeline) Encode(ds *dataset.Dataset) (*FeatureMatrix, error) {
	st, err := p.state("Encode")
	if err != nil {
		return nil, err
	}
	if ds == nil || ds.Len() == 0 {
		return nil, errors.NewModelError("Pipeline.Encode", "empty dataset", errors.ErrEmptyData)
	}

	numericCols := make([][]float64, len(st.numeric))
	for k, name := range st.numeric {
		j, ok := ds.ColumnIndex(name)
		if !ok {
			return nil, errors.NewEncodingError(name, "", "column missing from dataset")
		}
		values, bad, ok := parseNumericStrict(columnAt(ds, j))
		if !ok {
			return nil, errors.NewEncodingError(name, bad, "value is not numeric")
		}
		numericCols[k] = values
	}
	categoricalCols := make([][]string, len(st.categorical))
	for k, name := range st.categorical {
		j, ok := ds.ColumnIndex(name)
		if !ok {
			return nil, errors.NewEncodingError(name, "", "column missing from dataset")
		}
		categoricalCols[k] = preprocessing.ImputeCategorical(columnAt(ds, j))
	}

	raw, err := st.assemble(numericCols, categoricalCols)
	if err != nil {
		return nil, err
	}
	scaled, err := st.scaler.Transform(raw)
	if err != nil {
		return nil, err
	}
	out := scaled
	if st.pca != nil {
		if out, err = st.pca.Transform(scaled); err != nil {
			return nil, err
		}
	}

	return &FeatureMatrix{
		IDs:   append([]int(nil), ds.IDs...),
		Names: append([]string(nil), st.names...),
		X:     mat.DenseCopyOf(out),
	}, nil
}

// FitEncode fits on train and encodes it.
func (p *Pipeline) FitEncode(train *dataset.Dataset) (*FeatureMatrix, error) {
	if err := p.Fit(train); err != nil {
		return nil, err
	}
	return p.Encode(train)
}

// IsFitted reports whether Fit has completed.
func (p *Pipeline) IsFitted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fitted != nil
}

// Fingerprint identifies the fitted parameters. It is empty before Fit and
// changes whenever a refit produces different parameters.
func (p *Pipeline) Fingerprint() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.fitted == nil {
		return ""
	}
	return p.fitted.fingerprint
}

// Summary describes the fitted pipeline.
type Summary struct {
	NumericColumns         []string  `json:"numeric_columns"`
	CategoricalColumns     []string  `json:"categorical_columns"`
	EncodedWidth           int       `json:"encoded_width"`
	Features               []string  `json:"features"`
	ExplainedVarianceRatio []float64 `json:"explained_variance_ratio,omitempty"`
}

// Describe returns a Summary of the fitted pipeline.
func (p *Pipeline) Describe() (*Summary, error) {
	st, err := p.state("Describe")
	if err != nil {
		return nil, err
	}
	s := &Summary{
		NumericColumns:     append([]string(nil), st.numeric...),
		CategoricalColumns: append([]string(nil), st.categorical...),
		EncodedWidth:       len(st.numeric) + st.encoder.Width(),
		Features:           append([]string(nil), st.names...),
	}
	if st.pca != nil {
		s.ExplainedVarianceRatio = append([]float64(nil), st.pca.ExplainedVarianceRatio...)
	}
	return s, nil
}

func (p *Pipeline) state(method string) (*fittedState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.fitted == nil {
		return nil, errors.NewNotFittedError("Pipeline", method)
	}
	return p.fitted, nil
}

// assemble imputes numeric columns and lays out [numeric | one-hot].
func (st *fittedState) assemble(numericCols [][]float64, categoricalCols [][]string) (*mat.Dense, error) {
	var filled [][]float64
	if len(numericCols) > 0 {
		var err error
		if filled, err = st.imputer.Transform(numericCols); err != nil {
			return nil, err
		}
	}
	var onehot *mat.Dense
	if len(categoricalCols) > 0 {
		var err error
		if onehot, err = st.encoder.Transform(categoricalCols); err != nil {
			return nil, err
		}
	}

	rows := 0
	switch {
	case len(filled) > 0:
		rows = len(filled[0])
	case onehot != nil:
		rows, _ = onehot.Dims()
	}
	width := len(filled) + st.encoder.Width()
	if rows == 0 || width == 0 {
		return nil, errors.NewModelError("Pipeline", "no features to encode", errors.ErrEmptyData)
	}

	out := mat.NewDense(rows, width, nil)
	for j, col := range filled {
		out.SetCol(j, col)
	}
	if onehot != nil {
		out.Slice(0, rows, len(filled), width).(*mat.Dense).Copy(onehot)
	}
	return out, nil
}

func (st *fittedState) computeFingerprint(p *Pipeline) string {
	h := sha256.New()
	buf := make([]byte, 8)
	writeFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		h.Write(buf)
	}
	writeString := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}

	writeString(strconv.Itoa(p.components))
	writeString(p.unknown.String())
	for _, c := range st.numeric {
		writeString(c)
	}
	writeString("|")
	for j, c := range st.categorical {
		writeString(c)
		for _, v := range st.encoder.Categories[j] {
			writeString(v)
		}
	}
	for _, v := range st.imputer.Medians {
		writeFloat(v)
	}
	for j := range st.scaler.Mean {
		writeFloat(st.scaler.Mean[j])
		writeFloat(st.scaler.Scale[j])
	}
	if st.pca != nil {
		for _, v := range st.pca.Components.RawMatrix().Data {
			writeFloat(v)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func columnAt(ds *dataset.Dataset, j int) []string {
	out := make([]string, ds.Len())
	for i, row := range ds.Values {
		out[i] = row[j]
	}
	return out
}

// parseNumeric reports whether every non-missing cell is a number. A column
// with no observed value is not numeric.
func parseNumeric(cells []string) ([]float64, bool) {
	values, _, ok := parseNumericStrict(cells)
	if !ok {
		return nil, false
	}
	for _, v := range values {
		if !math.IsNaN(v) {
			return values, true
		}
	}
	return nil, false
}

// parseNumericStrict parses cells, mapping missing to NaN. On failure it
// returns the offending cell.
func parseNumericStrict(cells []string) ([]float64, string, bool) {
	values := make([]float64, len(cells))
	for i, c := range cells {
		if c == "" {
			values[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(c, 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, c, false
		}
		values[i] = v
	}
	return values, "", true
}
