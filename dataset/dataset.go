// Package dataset loads the house-price training and test tables.
//
// Cells are kept as raw strings; the feature pipeline decides which columns
// are numeric. Missing cells ("NA" or empty in the Kaggle files) are stored as
// the empty string.
package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/pkg/log"
)

// Default column names of the Kaggle "House Prices" files.
const (
	DefaultIDColumn     = "Id"
	DefaultTargetColumn = "SalePrice"
)

// Dataset is an ordered table of rows keyed by a unique integer ID.
type Dataset struct {
	IDs     []int
	Columns []string   // feature names in file order, ID and target removed
	Values  [][]string // Values[i][j] is row i, column j; "" means missing
	Target  []float64  // nil for a test set

	index map[string]int
}

// Option configures Load.
type Option func(*loadConfig)

type loadConfig struct {
	idColumn      string
	targetColumn  string
	missing       map[string]struct{}
	requireTarget *bool
	comma         rune
}

// WithIDColumn overrides the identifier column name.
func WithIDColumn(name string) Option {
	return func(c *loadConfig) { c.idColumn = name }
}

// WithTargetColumn overrides the target column name.
func WithTargetColumn(name string) Option {
	return func(c *loadConfig) { c.targetColumn = name }
}

// WithMissingTokens replaces the set of tokens read as missing.
func WithMissingTokens(tokens ...string) Option {
	return func(c *loadConfig) {
		c.missing = make(map[string]struct{}, len(tokens)+1)
		c.missing[""] = struct{}{}
		for _, t := range tokens {
			c.missing[t] = struct{}{}
		}
	}
}

// WithRequireTarget fails the load when the target column presence differs
// from want.
func WithRequireTarget(want bool) Option {
	return func(c *loadConfig) { c.requireTarget = &want }
}

// WithComma sets the field delimiter.
func WithComma(r rune) Option {
	return func(c *loadConfig) { c.comma = r }
}

func newLoadConfig(opts []Option) *loadConfig {
	c := &loadConfig{
		idColumn:     DefaultIDColumn,
		targetColumn: DefaultTargetColumn,
		comma:        ',',
	}
	WithMissingTokens("NA")(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadFile opens path and calls Load.
func LoadFile(path string, opts ...Option) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()

	ds, err := Load(f, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "load dataset %s", path)
	}
	log.GetLoggerWithName("dataset").Info("Dataset loaded",
		log.PathKey, path,
		log.SamplesKey, ds.Len(),
		log.FeaturesKey, len(ds.Columns),
		log.DatasetKey, ds.Kind(),
	)
	return ds, nil
}

// Load parses delimited text with a header row.
func Load(r io.Reader, opts ...Option) (*Dataset, error) {
	cfg := newLoadConfig(opts)

	reader := csv.NewReader(r)
	reader.Comma = cfg.comma
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewValueError("dataset.Load", "empty input: missing header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	idCol, targetCol := -1, -1
	var columns []string
	var featureCols []int
	seen := make(map[string]struct{}, len(header))
	for j, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := seen[name]; dup {
			return nil, errors.NewValueError("dataset.Load", "duplicate column "+strconv.Quote(name))
		}
		seen[name] = struct{}{}
		switch name {
		case cfg.idColumn:
			idCol = j
		case cfg.targetColumn:
			targetCol = j
		default:
			columns = append(columns, name)
			featureCols = append(featureCols, j)
		}
	}
	if idCol < 0 {
		return nil, errors.NewValueError("dataset.Load", "missing identifier column "+strconv.Quote(cfg.idColumn))
	}
	hasTarget := targetCol >= 0
	if cfg.requireTarget != nil && *cfg.requireTarget != hasTarget {
		if *cfg.requireTarget {
			return nil, errors.NewValueError("dataset.Load", "missing target column "+strconv.Quote(cfg.targetColumn))
		}
		return nil, errors.NewValueError("dataset.Load", "unexpected target column "+strconv.Quote(cfg.targetColumn))
	}

	var (
		ids    []int
		values [][]string
		target []float64
	)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read line %d", line)
		}

		id, err := strconv.Atoi(strings.TrimSpace(record[idCol]))
		if err != nil {
			return nil, errors.NewValidationError(cfg.idColumn, "identifier must be an integer", record[idCol])
		}
		ids = append(ids, id)

		row := make([]string, len(featureCols))
		for k, j := range featureCols {
			v := strings.TrimSpace(record[j])
			if _, missing := cfg.missing[v]; missing {
				v = ""
			}
			row[k] = v
		}
		values = append(values, row)

		if hasTarget {
			price, err := strconv.ParseFloat(strings.TrimSpace(record[targetCol]), 64)
			if err != nil {
				return nil, errors.NewValidationError(cfg.targetColumn, "target must be numeric", record[targetCol])
			}
			target = append(target, price)
		}
	}

	if !hasTarget {
		target = nil
	}
	return New(ids, columns, values, target)
}

// New builds a Dataset from memory, validating shapes, identifier uniqueness
// and that every target is positive. target may be nil for a test set.
func New(ids []int, columns []string, values [][]string, target []float64) (*Dataset, error) {
	if len(ids) == 0 {
		return nil, errors.NewModelError("dataset.New", "no rows", errors.ErrEmptyData)
	}
	if len(values) != len(ids) {
		return nil, errors.NewDimensionError("dataset.New", len(ids), len(values), 0)
	}
	if target != nil && len(target) != len(ids) {
		return nil, errors.NewDimensionError("dataset.New", len(ids), len(target), 0)
	}

	index := make(map[string]int, len(columns))
	for j, name := range columns {
		if _, dup := index[name]; dup {
			return nil, errors.NewValueError("dataset.New", "duplicate column "+strconv.Quote(name))
		}
		index[name] = j
	}

	seen := make(map[int]struct{}, len(ids))
	for i, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, errors.NewValidationError("Id", "identifiers must be unique", id)
		}
		seen[id] = struct{}{}
		if len(values[i]) != len(columns) {
			return nil, errors.NewDimensionError("dataset.New", len(columns), len(values[i]), 1)
		}
	}
	for _, price := range target {
		if !(price > 0) {
			return nil, errors.NewValidationError("SalePrice", "target must be positive", price)
		}
	}

	return &Dataset{
		IDs:     ids,
		Columns: columns,
		Values:  values,
		Target:  target,
		index:   index,
	}, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.IDs) }

// HasTarget reports whether the dataset carries SalePrice (a training set).
func (d *Dataset) HasTarget() bool { return d.Target != nil }

// Kind returns "train" or "test".
func (d *Dataset) Kind() string {
	if d.HasTarget() {
		return "train"
	}
	return "test"
}

// ColumnIndex returns the position of a feature column.
func (d *Dataset) ColumnIndex(name string) (int, bool) {
	j, ok := d.index[name]
	return j, ok
}

// Column returns a copy of the cells of one feature column.
func (d *Dataset) Column(name string) ([]string, error) {
	j, ok := d.index[name]
	if !ok {
		return nil, errors.NewEncodingError(name, "", "column not present in dataset")
	}
	out := make([]string, len(d.Values))
	for i, row := range d.Values {
		out[i] = row[j]
	}
	return out, nil
}

// Subset returns a dataset with the rows at idx, in that order. Row slices are
// shared with the receiver.
func (d *Dataset) Subset(idx []int) (*Dataset, error) {
	ids := make([]int, len(idx))
	values := make([][]string, len(idx))
	var target []float64
	if d.HasTarget() {
		target = make([]float64, len(idx))
	}
	for k, i := range idx {
		if i < 0 || i >= d.Len() {
			return nil, errors.NewValueError("Dataset.Subset", "row index out of range: "+strconv.Itoa(i))
		}
		ids[k] = d.IDs[i]
		values[k] = d.Values[i]
		if target != nil {
			target[k] = d.Target[i]
		}
	}
	return New(ids, d.Columns, values, target)
}

// CheckCompatible verifies that test has exactly the feature columns of train.
func CheckCompatible(train, test *Dataset) error {
	for _, name := range train.Columns {
		if _, ok := test.index[name]; !ok {
			return errors.NewEncodingError(name, "", "column missing from test dataset")
		}
	}
	for _, name := range test.Columns {
		if _, ok := train.index[name]; !ok {
			return errors.NewEncodingError(name, "", "column not present in training dataset")
		}
	}
	return nil
}
