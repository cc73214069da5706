package model_selection

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/winequality/core/model"
	"github.com/YuminosukeSato/winequality/core/parallel"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
)

// contextFitter is implemented by estimators whose training can be cancelled.
type contextFitter interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
}

// CVResult stores cross-validation results
type CVResult struct {
	TestScores []float64
	FitTimes   []time.Duration
}

// Mean returns the mean test score.
func (cv *CVResult) Mean() float64 {
	if len(cv.TestScores) == 0 {
		return 0
	}
	return stat.Mean(cv.TestScores, nil)
}

// Std returns the sample standard deviation of the test scores.
func (cv *CVResult) Std() float64 {
	if len(cv.TestScores) <= 1 {
		return 0
	}
	return stat.StdDev(cv.TestScores, nil)
}

// CVOption configures CrossValScore.
type CVOption func(*cvConfig)

type cvConfig struct {
	nJobs  int
	logger log.Logger
}

// WithCVJobs sets how many folds are fitted concurrently. The default is 1,
// since the estimators usually parallelise internally.
func WithCVJobs(n int) CVOption {
	return func(c *cvConfig) {
		c.nJobs = n
	}
}

// WithCVLogger overrides the logger.
func WithCVLogger(l log.Logger) CVOption {
	return func(c *cvConfig) {
		c.logger = l
	}
}

// CrossValScore fits a fresh estimator from newEstimator on each training
// fold and records its R² on the held-out fold.
func CrossValScore(ctx context.Context, newEstimator model.RegressorFactory, X, y mat.Matrix, splitter Splitter, opts ...CVOption) (*CVResult, error) {
	cfg := cvConfig{nJobs: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.GetLoggerWithName("model_selection.cv")
	}

	rows, _ := X.Dims()
	yRows, _ := y.Dims()
	if rows != yRows {
		return nil, errors.NewDimensionError("CrossValScore", rows, yRows, 0)
	}

	folds, err := splitter.Split(rows)
	if err != nil {
		return nil, err
	}

	result := &CVResult{
		TestScores: make([]float64, len(folds)),
		FitTimes:   make([]time.Duration, len(folds)),
	}

	err = parallel.ForEach(ctx, len(folds), cfg.nJobs, "CrossValScore.fold", func(i int) error {
		fold := folds[i]
		trainX, trainY := Subset(X, y, fold.TrainIndices)
		testX, testY := Subset(X, y, fold.TestIndices)

		est := newEstimator()
		start := time.Now()
		var fitErr error
		if cf, ok := est.(contextFitter); ok {
			fitErr = cf.FitContext(ctx, trainX, trainY)
		} else {
			fitErr = est.Fit(trainX, trainY)
		}
		if fitErr != nil {
			return errors.Wrapf(fitErr, "fold %d", i)
		}
		result.FitTimes[i] = time.Since(start)

		score, err := est.Score(testX, testY)
		if err != nil {
			return errors.Wrapf(err, "fold %d", i)
		}
		result.TestScores[i] = score

		cfg.logger.Debug("Fold scored",
			log.FoldKey, i,
			log.R2ScoreKey, score,
			log.DurationMsKey, result.FitTimes[i].Milliseconds(),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
