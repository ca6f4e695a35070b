// Package evaluation computes in-sample metrics and diagnostic series for a
// fitted regressor: residuals, feature importances and learning curves.
//
// Metrics and residuals are computed on the rows the model was trained on.
// They measure fit quality, not generalisation; the learning curve is the
// only cross-validated diagnostic.
package evaluation

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/housepricer/core/model"
	"github.com/YuminosukeSato/housepricer/features"
	"github.com/YuminosukeSato/housepricer/metrics"
	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/pkg/log"
)

// Metrics returns MAE, MAPE (a fraction) and R² of m's predictions on X.
func Metrics(m model.Predictor, X mat.Matrix, y []float64) (metrics.Report, error) {
	pred, err := predictVector("Metrics", m, X, y)
	if err != nil {
		return metrics.Report{}, err
	}
	report, err := metrics.Regression(mat.NewVecDense(len(y), append([]float64(nil), y...)), pred)
	if err != nil {
		return metrics.Report{}, err
	}
	log.GetLoggerWithName("evaluation").Debug("Metrics computed",
		log.OperationKey, log.OperationEvaluate,
		log.SamplesKey, len(y),
		log.MAEKey, report.MAE,
		log.MAPEKey, report.MAPE,
		log.R2ScoreKey, report.R2,
	)
	return report, nil
}

// Residual is one row's actual and predicted target.
type Residual struct {
	ID        int     `json:"id"`
	Predicted float64 `json:"predicted"`
	Actual    float64 `json:"actual"`
	Residual  float64 `json:"residual"` // actual - predicted
}

// Residuals returns one entry per row of fm, in row order.
func Residuals(m model.Predictor, fm *features.FeatureMatrix, y []float64) ([]Residual, error) {
	if fm == nil {
		return nil, errors.NewValueError("Residuals", "nil feature matrix")
	}
	pred, err := predictVector("Residuals", m, fm.X, y)
	if err != nil {
		return nil, err
	}
	out := make([]Residual, len(y))
	for i, actual := range y {
		p := pred.AtVec(i)
		out[i] = Residual{Predicted: p, Actual: actual, Residual: actual - p}
		if i < len(fm.IDs) {
			out[i].ID = fm.IDs[i]
		}
	}
	return out, nil
}

// Point is one (actual, predicted) pair of a scatter plot.
type Point struct {
	ID        int     `json:"id"`
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
}

// PredictedVsActual returns the scatter series of in-sample predictions.
func PredictedVsActual(m model.Predictor, fm *features.FeatureMatrix, y []float64) ([]Point, error) {
	res, err := Residuals(m, fm, y)
	if err != nil {
		return nil, err
	}
	out := make([]Point, len(res))
	for i, r := range res {
		out[i] = Point{ID: r.ID, Actual: r.Actual, Predicted: r.Predicted}
	}
	return out, nil
}

// ResidualSummary is the descriptive table shown next to a residual plot.
type ResidualSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"q25"`
	Median float64 `json:"median"`
	Q75    float64 `json:"q75"`
	Max    float64 `json:"max"`
}

// SummarizeResiduals describes the residual column. Std is the sample
// standard deviation and quantiles interpolate linearly between order
// statistics.
func SummarizeResiduals(residuals []Residual) ResidualSummary {
	if len(residuals) == 0 {
		return ResidualSummary{}
	}
	values := make([]float64, len(residuals))
	for i, r := range residuals {
		values[i] = r.Residual
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	sort.Float64s(values)
	return ResidualSummary{
		Count:  len(values),
		Mean:   mean,
		Std:    std,
		Min:    values[0],
		Q25:    quantile(values, 0.25),
		Median: quantile(values, 0.5),
		Q75:    quantile(values, 0.75),
		Max:    values[len(values)-1],
	}
}

// quantile expects sorted values.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// ImportanceMethod says how feature scores were obtained.
type ImportanceMethod string

const (
	// ImpurityImportance is the normalised total impurity decrease of tree models.
	ImpurityImportance ImportanceMethod = "impurity"
	// CoefficientMagnitude is |coefficient| normalised to sum 1, used for linear
	// models on standardised features.
	CoefficientMagnitude ImportanceMethod = "coefficient_magnitude"
)

// FeatureScore is one ranked feature.
type FeatureScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Importance is a ranking of features, highest score first.
type Importance struct {
	Method   ImportanceMethod `json:"method"`
	Features []FeatureScore   `json:"features"`
}

// Top returns at most n leading features.
func (imp *Importance) Top(n int) []FeatureScore {
	if n < 0 || n > len(imp.Features) {
		n = len(imp.Features)
	}
	return imp.Features[:n]
}

// FeatureImportance ranks names by m's native importances, or by coefficient
// magnitude for linear models. Any other estimator is unsupported.
func FeatureImportance(m any, names []string) (*Importance, error) {
	var (
		scores []float64
		method ImportanceMethod
	)
	switch est := m.(type) {
	case model.FeatureImportancer:
		imp, err := est.FeatureImportances()
		if err != nil {
			return nil, err
		}
		scores, method = append([]float64(nil), imp...), ImpurityImportance
	case model.CoefficientReporter:
		coef := est.Coefficients()
		if coef == nil {
			return nil, errors.NewNotFittedError(fmt.Sprintf("%T", m), "Coefficients")
		}
		scores = make([]float64, len(coef))
		for i, c := range coef {
			scores[i] = math.Abs(c)
		}
		if total := floats.Sum(scores); total > 0 {
			floats.Scale(1/total, scores)
		}
		method = CoefficientMagnitude
	default:
		return nil, errors.NewUnsupportedOperationError("feature_importance", fmt.Sprintf("%T", m))
	}

	if len(scores) != len(names) {
		return nil, errors.NewDimensionError("FeatureImportance", len(names), len(scores), 1)
	}

	ranked := make([]FeatureScore, len(scores))
	for i, s := range scores {
		ranked[i] = FeatureScore{Name: names[i], Score: s}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return &Importance{Method: method, Features: ranked}, nil
}

func predictVector(op string, m model.Predictor, X mat.Matrix, y []float64) (*mat.VecDense, error) {
	if m == nil || X == nil {
		return nil, errors.NewValueError(op, "nil model or features")
	}
	rows, _ := X.Dims()
	if rows != len(y) {
		return nil, errors.NewDimensionError(op, rows, len(y), 0)
	}
	pred, err := m.Predict(X)
	if err != nil {
		return nil, err
	}
	return metrics.ColumnVector(pred)
}
