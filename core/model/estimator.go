// Package model defines the estimator interfaces and shared fitted-state
// handling used by the tree and forest regressors.
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer はスコアを計算できるモデルのインターフェース
type Scorer interface {
	// Score は予測の決定係数 R² を返す
	Score(X, y mat.Matrix) (float64, error)
}

// Regressor は回帰モデルのインターフェース
type Regressor interface {
	Fitter
	Predictor
	Scorer
}

// FeatureImportancer は特徴量重要度を公開するモデルのインターフェース
type FeatureImportancer interface {
	// FeatureImportances は合計1に正規化された重要度を特徴量の順に返す
	FeatureImportances() ([]float64, error)
}

// RegressorFactory は交差検証のたびに未学習のモデルを生成する
type RegressorFactory func() Regressor
