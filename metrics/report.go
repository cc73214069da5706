package metrics

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"sort"
	"time"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// ReportPrecision は保存されるメトリクスの小数点以下の桁数
const ReportPrecision = 4

// Report は1回の学習実行の評価結果。JSON のキーは表示用のラベルをそのまま使う。
type Report struct {
	MSE               float64            `json:"Mean Squared Error (MSE)"`
	RMSE              float64            `json:"Root Mean Squared Error (RMSE)"`
	MAE               float64            `json:"Mean Absolute Error (MAE)"`
	R2                float64            `json:"R-squared (R2)"`
	CVR2Mean          float64            `json:"Cross-Validation R2 (Mean)"`
	FeatureImportance map[string]float64 `json:"feature_importance"`

	RunID        string    `json:"run_id,omitempty"`
	TrainedAt    time.Time `json:"trained_at"`
	Samples      int       `json:"samples"`
	TrainSamples int       `json:"train_samples"`
	TestSamples  int       `json:"test_samples"`
}

// NewReport はホールドアウト評価、交差検証の平均、特徴量重要度からレポートを作る
func NewReport(holdout Regression, cvR2Mean float64, importance map[string]float64) *Report {
	imp := make(map[string]float64, len(importance))
	for k, v := range importance {
		imp[k] = v
	}
	return &Report{
		MSE:               holdout.MSE,
		RMSE:              holdout.RMSE,
		MAE:               holdout.MAE,
		R2:                holdout.R2,
		CVR2Mean:          cvR2Mean,
		FeatureImportance: imp,
	}
}

// Rounded は数値をすべて places 桁に丸めたコピーを返す
func (r *Report) Rounded(places int) *Report {
	out := *r
	out.MSE = Round(r.MSE, places)
	out.RMSE = Round(r.RMSE, places)
	out.MAE = Round(r.MAE, places)
	out.R2 = Round(r.R2, places)
	out.CVR2Mean = Round(r.CVR2Mean, places)
	out.FeatureImportance = make(map[string]float64, len(r.FeatureImportance))
	for k, v := range r.FeatureImportance {
		out.FeatureImportance[k] = Round(v, places)
	}
	return &out
}

// requiredKeys は保存されたレポートに必ず存在するキー
var requiredKeys = []string{
	"Mean Squared Error (MSE)",
	"Root Mean Squared Error (RMSE)",
	"Mean Absolute Error (MAE)",
	"R-squared (R2)",
	"Cross-Validation R2 (Mean)",
	"feature_importance",
}

// DecodeReport は保存されたレポートを読み込む。未知のキー、欠けているキー、
// 不正な値はエラーになる
func DecodeReport(r io.Reader) (*Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read metrics report")
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, errors.Wrap(err, "failed to decode metrics report")
	}
	for _, key := range requiredKeys {
		if _, ok := keys[key]; !ok {
			return nil, errors.NewValidationError(key, "missing from metrics report", nil)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var report Report
	if err := dec.Decode(&report); err != nil {
		return nil, errors.Wrap(err, "failed to decode metrics report")
	}
	if err := report.Validate(); err != nil {
		return nil, err
	}
	return &report, nil
}

// Validate は読み込んだレポートに NaN や無限大が含まれていないか、
// 特徴量重要度が空でないかを確認する
func (r *Report) Validate() error {
	if len(r.FeatureImportance) == 0 {
		return errors.NewValidationError("feature_importance", "must not be empty", nil)
	}
	values := []float64{r.MSE, r.RMSE, r.MAE, r.R2, r.CVR2Mean}
	names := []string{"MSE", "RMSE", "MAE", "R2", "CVR2Mean"}
	if err := errors.CheckFinite("Report", values, names); err != nil {
		return err
	}
	for _, name := range r.FeatureNames() {
		v := r.FeatureImportance[name]
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return errors.NewValidationError("feature_importance."+name, "must be a finite non-negative number", v)
		}
	}
	return nil
}

// FeatureNames は重要度が記録されている特徴量名を辞書順で返す
func (r *Report) FeatureNames() []string {
	names := make([]string, 0, len(r.FeatureImportance))
	for name := range r.FeatureImportance {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
