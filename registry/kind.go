// Package registry maps model kinds to estimator configurations and trains
// them on the encoded training set.
package registry

import (
	"strings"

	"github.com/YuminosukeSato/housepricer/pkg/errors"
)

// ModelKind is the closed set of supported regressors.
type ModelKind int

const (
	Linear ModelKind = iota
	Tree
	Forest
	Gradient
)

var kindNames = [...]struct {
	short, estimator, label string
}{
	Linear:   {"linear", "LinearRegression", "LinearRegressionModel"},
	Tree:     {"tree", "DecisionTreeRegressor", "DecisionTreeModel"},
	Forest:   {"forest", "RandomForestRegressor", "RandomForestModel"},
	Gradient: {"gradient", "GradientBoostingRegressor", "GradientBoostingModel"},
}

// Kinds returns every kind in declaration order.
func Kinds() []ModelKind { return []ModelKind{Linear, Tree, Forest, Gradient} }

// Valid reports whether k is one of the declared kinds.
func (k ModelKind) Valid() bool { return k >= Linear && k <= Gradient }

// String returns the short name ("linear", "tree", ...).
func (k ModelKind) String() string {
	if !k.Valid() {
		return "unknown"
	}
	return kindNames[k].short
}

// EstimatorName returns the estimator type name, e.g. "RandomForestRegressor".
func (k ModelKind) EstimatorName() string {
	if !k.Valid() {
		return "unknown"
	}
	return kindNames[k].estimator
}

// Label returns the default submission label, e.g. "RandomForestModel".
func (k ModelKind) Label() string {
	if !k.Valid() {
		return "unknown"
	}
	return kindNames[k].label
}

// MarshalText implements encoding.TextMarshaler.
func (k ModelKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, errors.NewUnknownModelKindError(k.String())
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ModelKind) UnmarshalText(text []byte) error {
	parsed, err := ParseModelKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseModelKind resolves a short name, an estimator name or a submission
// label, case-insensitively.
func ParseModelKind(s string) (ModelKind, error) {
	name := strings.TrimSpace(s)
	for _, k := range Kinds() {
		n := kindNames[k]
		if strings.EqualFold(name, n.short) ||
			strings.EqualFold(name, n.estimator) ||
			strings.EqualFold(name, n.label) {
			return k, nil
		}
	}
	return 0, errors.NewUnknownModelKindError(s)
}
