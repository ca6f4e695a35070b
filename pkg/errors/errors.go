// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// パイプラインの各段階（エンコード、学習、評価、提出）が返すエラーはすべてここで定義され、
// cockroachdb/errors によるスタックトレースを保持します。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("housepricer-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// UnknownCategoryWarning は学習時に見なかったカテゴリを無視して符号化した場合の警告です。
type UnknownCategoryWarning struct {
	Column string
	Value  string
	Rows   int
}

func (w *UnknownCategoryWarning) Error() string {
	return fmt.Sprintf("column %q: unseen category %q in %d row(s) encoded as all-zero indicators", w.Column, w.Value, w.Rows)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *UnknownCategoryWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("column", w.Column).
		Str("value", w.Value).
		Int("rows", w.Rows).
		Str("type", "UnknownCategoryWarning")
}

// NewUnknownCategoryWarning は新しいUnknownCategoryWarningを作成します。
func NewUnknownCategoryWarning(column, value string, rows int) *UnknownCategoryWarning {
	return &UnknownCategoryWarning{Column: column, Value: value, Rows: rows}
}

// UndefinedMetricWarning は評価指標が計算できない場合に発生する警告です。
// 例えば、検証分割の目的変数が定数でR²が定義できない場合など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError はモデルや変換器が未学習の状態で `Predict` や `Transform` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("housepricer: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("housepricer: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError は入力パラメータや設定値の検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("housepricer: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("housepricer: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError は推定器内部の一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("housepricer: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("housepricer: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// ===========================================================================
//
//	パイプラインのエラー分類
//
// ===========================================================================

// EncodingError はデータセットのスキーマ不一致や未知のカテゴリを検出した場合のエラーです。
// Value が空の場合は列そのものが欠落しています。
type EncodingError struct {
	Column string
	Value  string
	Reason string
}

func (e *EncodingError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("housepricer: encoding failed for column %q value %q: %s", e.Column, e.Value, e.Reason)
	}
	return fmt.Sprintf("housepricer: encoding failed for column %q: %s", e.Column, e.Reason)
}

// Is は ErrEncoding との比較を可能にします。
func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *EncodingError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).
		Str("value", e.Value).
		Str("reason", e.Reason).
		Str("type", "EncodingError")
}

// NewEncodingError は新しいEncodingErrorを作成し、スタックトレースを付与します。
func NewEncodingError(column, value, reason string) error {
	return errors.WithStack(&EncodingError{Column: column, Value: value, Reason: reason})
}

// TrainingError は推定器の学習が失敗した場合のエラーです。自動リトライは行いません。
type TrainingError struct {
	Kind string
	Err  error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("housepricer: training %s failed: %v", e.Kind, e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }

// Is は ErrTraining との比較を可能にします。
func (e *TrainingError) Is(target error) bool { return target == ErrTraining }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *TrainingError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_kind", e.Kind).
		AnErr("cause", e.Err).
		Str("type", "TrainingError")
}

// NewTrainingError は新しいTrainingErrorを作成し、スタックトレースを付与します。
func NewTrainingError(kind string, err error) error {
	return errors.WithStack(&TrainingError{Kind: kind, Err: err})
}

// UnsupportedOperationError は診断がそのモデル種別に定義されていない場合のエラーです。
type UnsupportedOperationError struct {
	Operation string
	Model     string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("housepricer: %s is not supported by %s", e.Operation, e.Model)
}

// Is は ErrUnsupportedOperation との比較を可能にします。
func (e *UnsupportedOperationError) Is(target error) bool { return target == ErrUnsupportedOperation }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *UnsupportedOperationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Str("model_name", e.Model).
		Str("type", "UnsupportedOperationError")
}

// NewUnsupportedOperationError は新しいUnsupportedOperationErrorを作成します。
func NewUnsupportedOperationError(operation, model string) error {
	return errors.WithStack(&UnsupportedOperationError{Operation: operation, Model: model})
}

// UnknownModelKindError はモデル種別またはラベルが登録済みの種別に解決できない場合のエラーです。
type UnknownModelKindError struct {
	Name string
}

func (e *UnknownModelKindError) Error() string {
	return fmt.Sprintf("housepricer: unknown model kind %q", e.Name)
}

// Is は ErrUnknownModelKind との比較を可能にします。
func (e *UnknownModelKindError) Is(target error) bool { return target == ErrUnknownModelKind }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *UnknownModelKindError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("name", e.Name).
		Str("type", "UnknownModelKindError")
}

// NewUnknownModelKindError は新しいUnknownModelKindErrorを作成します。
func NewUnknownModelKindError(name string) error {
	return errors.WithStack(&UnknownModelKindError{Name: name})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix は特異行列の場合のエラーです。
	ErrSingularMatrix = New("singular matrix")

	// ErrEncoding は全ての EncodingError に一致します。
	ErrEncoding = New("encoding error")

	// ErrTraining は全ての TrainingError に一致します。
	ErrTraining = New("training error")

	// ErrUnsupportedOperation は全ての UnsupportedOperationError に一致します。
	ErrUnsupportedOperation = New("unsupported operation")

	// ErrUnknownModelKind は全ての UnknownModelKindError に一致します。
	ErrUnknownModelKind = New("unknown model kind")
)
