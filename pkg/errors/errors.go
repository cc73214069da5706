// Package errors はプロジェクト全体のエラーハンドリングを提供します。
// cockroachdb/errors の上に構造化されたエラー型を定義し、スタックトレース付きで返します。
package errors

import (
	"fmt"
	"strings"
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
	warningHandler func(w error)
)

// SetWarningHandler は警告ハンドラを設定します。
// pkg/log はロガー初期化時にここへ zerolog の Warn を登録します（循環importを避けるため）。
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// Warn は警告を発生させます。ハンドラ未設定の場合は何もしません。
func Warn(w error) {
	warningMutex.Lock()
	handler := warningHandler
	warningMutex.Unlock()

	if handler != nil {
		handler(w)
	}
}

// ArtifactMismatchWarning はモデルとメトリクスが別々の学習実行に由来する場合の警告です。
// 読み込み自体は拒否しません。
type ArtifactMismatchWarning struct {
	ModelRunID   string
	MetricsRunID string
}

func (w *ArtifactMismatchWarning) Error() string {
	return fmt.Sprintf("model artifact (run %s) and metrics artifact (run %s) come from different training runs",
		w.ModelRunID, w.MetricsRunID)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *ArtifactMismatchWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("model_run_id", w.ModelRunID).
		Str("metrics_run_id", w.MetricsRunID).
		Str("type", "ArtifactMismatchWarning")
}

// NewArtifactMismatchWarning は新しいArtifactMismatchWarningを作成します。
func NewArtifactMismatchWarning(modelRunID, metricsRunID string) *ArtifactMismatchWarning {
	return &ArtifactMismatchWarning{ModelRunID: modelRunID, MetricsRunID: metricsRunID}
}

// SampleRangeWarning は特徴量が学習データの想定範囲外にある場合の警告です。
type SampleRangeWarning struct {
	Feature string
	Value   float64
	Min     float64
	Max     float64
}

func (w *SampleRangeWarning) Error() string {
	return fmt.Sprintf("feature '%s' = %g is outside the expected range [%g, %g]", w.Feature, w.Value, w.Min, w.Max)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *SampleRangeWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("feature", w.Feature).
		Float64("value", w.Value).
		Float64("min", w.Min).
		Float64("max", w.Max).
		Str("type", "SampleRangeWarning")
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("winequality: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("winequality: %s: dimension mismatch on axis %d (%s). Expected %d, got %d",
		e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
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
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("winequality: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
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
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は引数の値が不適切な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("winequality: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError は機械学習モデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("winequality: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("winequality: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// DataUnavailableError は学習用データセットをネットワークからもローカルキャッシュからも
// 取得できなかった場合のエラーです。学習は中断され、既存の成果物は変更されません。
type DataUnavailableError struct {
	Source string // 取得を試みたURL
	Cache  string // フォールバック先のキャッシュパス
	Err    error  // 最後に発生した原因
}

func (e *DataUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("winequality: dataset unavailable from %s and cache %s: %v", e.Source, e.Cache, e.Err)
	}
	return fmt.Sprintf("winequality: dataset unavailable from %s and cache %s", e.Source, e.Cache)
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DataUnavailableError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("source", e.Source).
		Str("cache", e.Cache).
		Str("type", "DataUnavailableError")
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewDataUnavailableError は新しいDataUnavailableErrorを作成し、スタックトレースを付与します。
func NewDataUnavailableError(source, cache string, err error) error {
	return errors.WithStack(&DataUnavailableError{Source: source, Cache: cache, Err: err})
}

// ArtifactMissingError は学習済みモデルまたはメトリクスが存在しない、
// もしくは読み込めない場合のエラーです。サービスは "not ready" 状態になります。
type ArtifactMissingError struct {
	Paths []string
	Err   error
}

func (e *ArtifactMissingError) Error() string {
	msg := fmt.Sprintf("winequality: artifacts not available: %s", strings.Join(e.Paths, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ArtifactMissingError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ArtifactMissingError) MarshalZerologObject(event *zerolog.Event) {
	event.Strs("paths", e.Paths).
		Str("type", "ArtifactMissingError")
}

// NewArtifactMissingError は新しいArtifactMissingErrorを作成し、スタックトレースを付与します。
func NewArtifactMissingError(paths []string, err error) error {
	return errors.WithStack(&ArtifactMissingError{Paths: paths, Err: err})
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

// CombineErrors は2つのエラーを1つにまとめます。どちらかがnilならもう一方を返します。
func CombineErrors(err, other error) error {
	return errors.CombineErrors(err, other)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrNotReady は成果物が読み込まれていないサービスに予測を要求した場合のエラーです。
	ErrNotReady = New("service not ready: model artifacts are not loaded")
)
