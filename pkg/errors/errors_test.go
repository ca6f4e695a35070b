package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "housepricer: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "housepricer: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 30, 12, 1)

	want := "housepricer: Predict: dimension mismatch on axis 1 (features). Expected 30, got 12"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Fatal("Error should be castable to *DimensionError")
	}
	if dimErr.Expected != 30 || dimErr.Got != 12 {
		t.Errorf("unexpected fields: %+v", dimErr)
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("Pipeline", "Encode")

	want := "housepricer: Pipeline: this model is not fitted yet. Call Fit() before using Encode()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var nfErr *NotFittedError
	if !As(err, &nfErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestTaxonomySentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		others   []error
	}{
		{
			name:     "encoding",
			err:      NewEncodingError("Neighborhood", "Atlantis", "category not seen during fit"),
			sentinel: ErrEncoding,
			others:   []error{ErrTraining, ErrUnsupportedOperation, ErrUnknownModelKind},
		},
		{
			name:     "training",
			err:      NewTrainingError("forest", fmt.Errorf("boom")),
			sentinel: ErrTraining,
			others:   []error{ErrEncoding, ErrUnsupportedOperation, ErrUnknownModelKind},
		},
		{
			name:     "unsupported",
			err:      NewUnsupportedOperationError("FeatureImportance", "KNN"),
			sentinel: ErrUnsupportedOperation,
			others:   []error{ErrEncoding, ErrTraining, ErrUnknownModelKind},
		},
		{
			name:     "unknown kind",
			err:      NewUnknownModelKindError("SVR"),
			sentinel: ErrUnknownModelKind,
			others:   []error{ErrEncoding, ErrTraining, ErrUnsupportedOperation},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !Is(tt.err, tt.sentinel) {
				t.Errorf("%v should match its sentinel", tt.err)
			}
			wrapped := Wrap(tt.err, "while rendering")
			if !Is(wrapped, tt.sentinel) {
				t.Errorf("wrapped %v should still match its sentinel", wrapped)
			}
			for _, other := range tt.others {
				if Is(tt.err, other) {
					t.Errorf("%v should not match %v", tt.err, other)
				}
			}
		})
	}
}

func TestEncodingErrorMessage(t *testing.T) {
	withValue := NewEncodingError("MSZoning", "XX", "category not seen during fit")
	if !strings.Contains(withValue.Error(), `value "XX"`) {
		t.Errorf("message should name the value: %s", withValue)
	}

	missing := NewEncodingError("LotArea", "", "column missing from dataset")
	if strings.Contains(missing.Error(), "value") {
		t.Errorf("message should not mention a value: %s", missing)
	}
}

func TestTrainingErrorUnwrap(t *testing.T) {
	cause := ErrSingularMatrix
	err := NewTrainingError("linear", cause)

	if !Is(err, ErrSingularMatrix) {
		t.Error("TrainingError should unwrap to its cause")
	}

	var trErr *TrainingError
	if !As(err, &trErr) {
		t.Fatal("Error should be castable to *TrainingError")
	}
	if trErr.Kind != "linear" {
		t.Errorf("Kind = %s, want linear", trErr.Kind)
	}
}

func TestWarnUsesHandler(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(nil)

	Warn(NewUnknownCategoryWarning("Street", "Dirt", 3))

	if len(got) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(got))
	}
	if !strings.Contains(got[0].Error(), `"Dirt"`) {
		t.Errorf("unexpected warning text: %v", got[0])
	}
}

func TestWrapf(t *testing.T) {
	base := NewValueError("Load", "bad header")
	err := Wrapf(base, "reading %s", "train.csv")

	if !strings.Contains(err.Error(), "reading train.csv") {
		t.Errorf("wrapped message missing context: %v", err)
	}

	var valErr *ValueError
	if !As(err, &valErr) {
		t.Error("wrapped error should still be a *ValueError")
	}
}

func TestCheckMatrix(t *testing.T) {
	m := denseStub{rows: 3, cols: 2, data: []float64{1, 2, 3, nan(), 5, 6}}
	err := CheckMatrix("predict", m)
	if err == nil {
		t.Fatal("expected instability error")
	}

	var numErr *NumericalInstabilityError
	if !As(err, &numErr) {
		t.Fatalf("expected *NumericalInstabilityError, got %T", err)
	}
	if numErr.Row != 1 {
		t.Errorf("Row = %d, want 1", numErr.Row)
	}

	ok := denseStub{rows: 1, cols: 2, data: []float64{1, 2}}
	if err := CheckMatrix("predict", ok); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

type denseStub struct {
	rows, cols int
	data       []float64
}

func (d denseStub) At(i, j int) float64 { return d.data[i*d.cols+j] }
func (d denseStub) Dims() (int, int)    { return d.rows, d.cols }

func nan() float64 {
	zero := 0.0
	return zero / zero
}
