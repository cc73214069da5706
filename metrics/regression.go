// Package metrics は回帰モデルの評価指標を提供する
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// checkPair は2つのベクトルが空でなく同じ長さであることを検証する
func checkPair(op string, yTrue, yPred mat.Vector) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred mat.Vector) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する。
// yTrue に分散がない場合、完全一致なら 1、それ以外は 0 を返す（scikit-learn と同じ扱い）。
func R2Score(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	truth := make([]float64, n)
	for i := range truth {
		truth[i] = yTrue.AtVec(i)
	}
	yMean := stat.Mean(truth, nil)

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i, v := range truth {
		d := v - yPred.AtVec(i)
		tss += (v - yMean) * (v - yMean)
		rss += d * d
	}

	if tss == 0 {
		if rss == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 1 - rss/tss, nil
}

// Round は x を小数点以下 places 桁に四捨五入する（0.5 は 0 から遠い方へ）
func Round(x float64, places int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	scale := math.Pow(10, float64(places))
	return math.Round(x*scale) / scale
}

// Regression はホールドアウト評価の結果
type Regression struct {
	MSE  float64
	RMSE float64
	MAE  float64
	R2   float64
}

// Rounded は各指標を places 桁に丸めたコピーを返す
func (r Regression) Rounded(places int) Regression {
	return Regression{
		MSE:  Round(r.MSE, places),
		RMSE: Round(r.RMSE, places),
		MAE:  Round(r.MAE, places),
		R2:   Round(r.R2, places),
	}
}

// EvaluateRegression は MSE, RMSE, MAE, R² をまとめて計算する
func EvaluateRegression(yTrue, yPred mat.Vector) (Regression, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return Regression{}, err
	}
	mae, err := MAE(yTrue, yPred)
	if err != nil {
		return Regression{}, err
	}
	r2, err := R2Score(yTrue, yPred)
	if err != nil {
		return Regression{}, err
	}
	return Regression{MSE: mse, RMSE: math.Sqrt(mse), MAE: mae, R2: r2}, nil
}
