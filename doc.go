// Command winequality trains a random forest regressor on the UCI red wine
// quality dataset and serves quality predictions from it.
//
// # Training
//
// The train command downloads winequality-red.csv, falling back to the local
// cache under data/ when the network is unavailable, holds out 20% of the rows,
// fits 100 trees and evaluates them on the holdout set and with 5-fold
// cross-validation. The model is written to wine_quality_model.gob and the
// metrics to metrics.json. Both files are replaced together or not at all.
//
//	winequality train
//	winequality train --offline --trees 200 --seed 7
//
// # Prediction
//
// Scores are rounded to two decimals and graded: 7 and above is Elite Reserve,
// 5 up to 7 is Vintage Standard, anything lower is Entry Blend.
//
//	winequality predict --alcohol 12.8 --sulphates 0.75
//	winequality predict --interactive
//	winequality metrics
//	winequality importance --chart importance.png
//
// # HTTP API
//
//	winequality serve --addr :8080
//
//	GET  /api/health
//	GET  /api/metrics
//	GET  /api/importance
//	GET  /api/importance/chart.png
//	POST /api/predict   {"alcohol": 12.8, ...} or {"features": [11 numbers]}
//	GET  /api/dataset?limit=100
//
// # Configuration
//
// Settings are read from .winequality.yaml in $HOME, ./config or the working
// directory, from WINEQUALITY_* environment variables (for example
// WINEQUALITY_DATA_URL or WINEQUALITY_TRAINING_TREES) and from flags.
package main
