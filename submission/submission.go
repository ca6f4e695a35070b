// Package submission maps test-set predictions to Kaggle submission tables.
package submission

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/YuminosukeSato/housepricer/dataset"
	"github.com/YuminosukeSato/housepricer/metrics"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/pkg/log"
	"github.com/YuminosukeSato/housepricer/registry"
)

// Header is the first line of every submission file.
var Header = []string{"Id", "SalePrice"}

// Table holds one prediction per test row, in test-set order.
type Table struct {
	Label     string             `json:"label"`
	Kind      registry.ModelKind `json:"kind"`
	IDs       []int              `json:"ids"`
	SalePrice []float64          `json:"sale_price"`
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.IDs) }

// Filename returns "<label>_submission.csv".
func (t *Table) Filename() string { return t.Label + "_submission.csv" }

// WriteCSV writes the Id,SalePrice header and one line per row. Prices are
// plain decimals without exponent.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return errors.Wrap(err, "write submission header")
	}
	record := make([]string, 2)
	for i, id := range t.IDs {
		record[0] = strconv.Itoa(id)
		record[1] = strconv.FormatFloat(t.SalePrice[i], 'f', -1, 64)
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "write submission row %d", id)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush submission")
}

// Mapper predicts the test set with models served by a registry.
type Mapper struct {
	registry *registry.Registry
	test     *dataset.Dataset
}

// NewMapper checks that test has the training schema of the registry's
// pipeline. The pipeline may still be unfitted.
func NewMapper(reg *registry.Registry, test *dataset.Dataset) (*Mapper, error) {
	if reg == nil {
		return nil, errors.NewValidationError("registry", "must not be nil", nil)
	}
	if test == nil || test.Len() == 0 {
		return nil, errors.NewModelError("NewMapper", "empty test dataset", errors.ErrEmptyData)
	}
	if test.HasTarget() {
		return nil, errors.NewValidationError("test", "test dataset must not carry SalePrice", test.Len())
	}
	return &Mapper{registry: reg, test: test}, nil
}

// PredictSubmission trains or fetches the model of kind and predicts every
// test row. label only names the artifact; an empty label becomes
// kind.Label().
func (m *Mapper) PredictSubmission(ctx context.Context, kind registry.ModelKind, label string) (*Table, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		label = kind.Label()
	}
	logger := log.GetLoggerWithName("submission").With(
		log.ModelKindKey, kind.String(),
		log.LabelKey, label,
	)
	start := time.Now()

	trained, err := m.registry.GetOrTrain(ctx, kind)
	if err != nil {
		return nil, err
	}
	fm, err := m.registry.Pipeline().Encode(m.test)
	if err != nil {
		return nil, err
	}
	pred, err := trained.Model.Predict(fm.X)
	if err != nil {
		return nil, errors.NewModelError("PredictSubmission", kind.String(), err)
	}
	vec, err := metrics.ColumnVector(pred)
	if err != nil {
		return nil, err
	}
	if vec.Len() != m.test.Len() {
		return nil, errors.NewDimensionError("PredictSubmission", m.test.Len(), vec.Len(), 0)
	}
	if err := errors.CheckNumericalStability(kind.EstimatorName()+".Predict", vec.RawVector().Data); err != nil {
		return nil, err
	}

	table := &Table{
		Label:     label,
		Kind:      kind,
		IDs:       append([]int(nil), m.test.IDs...),
		SalePrice: make([]float64, vec.Len()),
	}
	for i := range table.SalePrice {
		table.SalePrice[i] = vec.AtVec(i)
	}
	logger.Info("Submission predicted",
		log.OperationKey, log.OperationSubmit,
		log.SamplesKey, table.Len(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return table, nil
}

// ResolveAndPredict resolves label to a model kind and predicts under that
// label. An unresolvable label is an UnknownModelKindError.
func (m *Mapper) ResolveAndPredict(ctx context.Context, label string) (*Table, error) {
	kind, err := registry.ParseModelKind(label)
	if err != nil {
		return nil, err
	}
	return m.PredictSubmission(ctx, kind, label)
}
