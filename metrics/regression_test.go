package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/housepricer/pkg/errors"
)

func vec(values ...float64) *mat.VecDense {
	return mat.NewVecDense(len(values), values)
}

func TestPointwiseMetrics(t *testing.T) {
	type metricFunc func(yTrue, yPred *mat.VecDense) (float64, error)

	tests := []struct {
		name    string
		fn      metricFunc
		yTrue   *mat.VecDense
		yPred   *mat.VecDense
		want    float64
		wantErr bool
	}{
		{"MSE perfect", MSE, vec(1, 2, 3), vec(1, 2, 3), 0, false},
		{"MSE simple", MSE, vec(1, 2, 3, 4), vec(1.5, 2.5, 2.5, 3.5), 0.25, false},
		{"MSE larger errors", MSE, vec(10, 20, 30), vec(12, 18, 33), 17.0 / 3.0, false},
		{"RMSE", RMSE, vec(10, 20, 30), vec(12, 18, 33), math.Sqrt(17.0 / 3.0), false},
		{"MAE", MAE, vec(100000, 200000), vec(110000, 190000), 10000, false},
		{"MAPE is a fraction", MAPE, vec(100, 200), vec(110, 180), 0.1, false},
		{"MAPE perfect", MAPE, vec(5, 6), vec(5, 6), 0, false},
		{"dimension mismatch", MAE, vec(1, 2, 3), vec(1, 2), 0, true},
		{"empty vectors", MSE, &mat.VecDense{}, &mat.VecDense{}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.yTrue, tt.yPred)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-10 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestR2Score(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	tests := []struct {
		name  string
		yTrue *mat.VecDense
		yPred *mat.VecDense
		want  float64
	}{
		{"perfect", vec(1, 2, 3, 4), vec(1, 2, 3, 4), 1},
		{"mean predictor", vec(1, 2, 3, 4), vec(2.5, 2.5, 2.5, 2.5), 0},
		{"worse than mean", vec(1, 2, 3), vec(3, 2, 1), -3},
		{"constant target exact", vec(7, 7, 7), vec(7, 7, 7), 1},
		{"constant target missed", vec(7, 7, 7), vec(6, 7, 8), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := R2Score(tt.yTrue, tt.yPred)
			if err != nil {
				t.Fatalf("R2Score() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-10 {
				t.Errorf("R2Score() = %v, want %v", got, tt.want)
			}
		})
	}

	if len(warnings) != 2 {
		t.Errorf("expected 2 undefined metric warnings, got %d", len(warnings))
	}
}

func TestRegressionReport(t *testing.T) {
	report, err := Regression(vec(100, 200, 300), vec(110, 190, 300))
	if err != nil {
		t.Fatalf("Regression() error = %v", err)
	}
	if math.Abs(report.MAE-20.0/3.0) > 1e-10 {
		t.Errorf("MAE = %v", report.MAE)
	}
	if math.Abs(report.MAPE-(0.1+0.05)/3) > 1e-10 {
		t.Errorf("MAPE = %v", report.MAPE)
	}
	if report.R2 > 1 || report.R2 < 0.9 {
		t.Errorf("R2 = %v", report.R2)
	}
}

func TestMSEMatrix(t *testing.T) {
	got, err := MSEMatrix(mat.NewDense(4, 1, []float64{1, 2, 3, 4}), mat.NewDense(4, 1, []float64{1.5, 2.5, 2.5, 3.5}))
	if err != nil || math.Abs(got-0.25) > 1e-10 {
		t.Errorf("MSEMatrix() = %v, %v", got, err)
	}

	if _, err := MSEMatrix(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil)); err == nil {
		t.Error("expected error for multi-column input")
	}
}

func BenchmarkRegression(b *testing.B) {
	n := 1460
	yTrue := mat.NewVecDense(n, nil)
	yPred := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yTrue.SetVec(i, 100000+float64(i)*100)
		yPred.SetVec(i, 100000+float64(i)*101)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Regression(yTrue, yPred)
	}
}
