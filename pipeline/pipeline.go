// Package pipeline trains the wine quality forest: it fetches the dataset,
// splits it, fits the model, evaluates it and persists the artifacts.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/winequality/artifact"
	"github.com/YuminosukeSato/winequality/core/model"
	"github.com/YuminosukeSato/winequality/metrics"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
	"github.com/YuminosukeSato/winequality/sklearn/ensemble"
	"github.com/YuminosukeSato/winequality/sklearn/model_selection"
	"github.com/YuminosukeSato/winequality/wine"
)

// MetricsReport is the evaluation summary persisted next to the model.
type MetricsReport = metrics.Report

// Config holds the training parameters.
type Config struct {
	TestSize    float64
	Seed        int64
	NEstimators int
	CVFolds     int
	// NJobs bounds tree fitting concurrency; 0 means runtime.NumCPU.
	NJobs int
}

// DefaultConfig returns a 20% hold-out, seed 42, 100 trees and 5 folds.
func DefaultConfig() Config {
	return Config{
		TestSize:    0.2,
		Seed:        42,
		NEstimators: 100,
		CVFolds:     5,
	}
}

// Validate checks the parameters before any work is done.
func (c Config) Validate() error {
	if c.TestSize <= 0 || c.TestSize >= 1 {
		return errors.NewValidationError("test_size", "must be in the open interval (0, 1)", c.TestSize)
	}
	if c.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", c.NEstimators)
	}
	if c.CVFolds < 2 {
		return errors.NewValidationError("cv_folds", "must be at least 2", c.CVFolds)
	}
	if c.NJobs < 0 {
		return errors.NewValidationError("n_jobs", "must not be negative", c.NJobs)
	}
	return nil
}

// DatasetLoader supplies the labelled dataset. *wine.Fetcher implements it.
type DatasetLoader interface {
	FetchOrLoad(ctx context.Context) (*wine.Table, error)
}

// Result describes a completed run.
type Result struct {
	RunID    string
	Model    *ensemble.RandomForestRegressor
	Report   *MetricsReport
	Origin   wine.Origin
	Duration time.Duration
}

// Pipeline runs one training job end to end.
type Pipeline struct {
	cfg    Config
	loader DatasetLoader
	store  *artifact.Store
	logger log.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger overrides the logger.
func WithLogger(l log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithClock overrides the clock used to stamp TrainedAt.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithRunIDGenerator overrides how run IDs are generated.
func WithRunIDGenerator(gen func() string) Option {
	return func(p *Pipeline) {
		p.newID = gen
	}
}

// New creates a Pipeline that reads from loader and writes to store.
func New(cfg Config, loader DatasetLoader, store *artifact.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		loader: loader,
		store:  store,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.GetLoggerWithName("pipeline")
	}
	return p
}

// Run fetches, splits, fits, evaluates and persists. Artifacts are only
// written when every earlier step succeeded.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	start := p.now()
	runID := p.newID()
	logger := p.logger.With(log.RunIDKey, runID, log.PhaseKey, log.PhaseTraining)
	logger.Info("Training run started",
		log.RandomSeedKey, p.cfg.Seed,
		log.TestSizeKey, p.cfg.TestSize,
		log.NEstimatorKey, p.cfg.NEstimators,
		log.CVFoldsKey, p.cfg.CVFolds,
	)

	table, err := p.loader.FetchOrLoad(ctx)
	if err != nil {
		logger.Error("Dataset unavailable", err, log.OperationKey, log.OperationFetch)
		return nil, err
	}
	X, y, err := table.Matrices()
	if err != nil {
		return nil, err
	}
	logger.Info("Dataset ready",
		log.OperationKey, log.OperationFetch,
		log.DataSourceKey, string(table.Origin),
		log.SamplesKey, table.Len(),
		log.FeaturesKey, wine.NumFeatures,
	)

	split, err := model_selection.TrainTestSplit(X, y, p.cfg.TestSize, p.cfg.Seed)
	if err != nil {
		return nil, err
	}

	fitStart := time.Now()
	forest, err := Fit(ctx, split.XTrain, split.YTrain, p.forestOptions(logger)...)
	if err != nil {
		logger.Error("Fit failed", err, log.OperationKey, log.OperationFit)
		return nil, err
	}
	logger.Info("Model fitted",
		log.OperationKey, log.OperationFit,
		log.TrainSamplesKey, len(split.TrainIndices),
		log.DurationMsKey, time.Since(fitStart).Milliseconds(),
	)

	evalStart := time.Now()
	report, err := Evaluate(ctx, forest, split.XTest, split.YTest, X, y, p.cfg.CVFolds)
	if err != nil {
		logger.Error("Evaluation failed", err, log.OperationKey, log.OperationEvaluate)
		return nil, err
	}
	logger.Info("Model evaluated",
		log.OperationKey, log.OperationEvaluate,
		log.TestSamplesKey, len(split.TestIndices),
		log.MSEKey, report.MSE,
		log.RMSEKey, report.RMSE,
		log.MAEKey, report.MAE,
		log.R2ScoreKey, report.R2,
		log.CVR2Key, report.CVR2Mean,
		log.DurationMsKey, time.Since(evalStart).Milliseconds(),
	)

	trainedAt := p.now().UTC()
	forest.SetProvenance(runID, trainedAt)
	report.RunID = runID
	report.TrainedAt = trainedAt
	report.Samples = table.Len()
	report.TrainSamples = len(split.TrainIndices)
	report.TestSamples = len(split.TestIndices)

	if err := p.store.Persist(forest, report); err != nil {
		logger.Error("Persist failed", err, log.OperationKey, log.OperationPersist)
		return nil, err
	}

	res := &Result{
		RunID:    runID,
		Model:    forest,
		Report:   report,
		Origin:   table.Origin,
		Duration: p.now().Sub(start),
	}
	logger.Info("Training run finished",
		log.PathKey, p.store.Dir(),
		log.DurationMsKey, res.Duration.Milliseconds(),
	)
	return res, nil
}

func (p *Pipeline) forestOptions(logger log.Logger) []ensemble.Option {
	return []ensemble.Option{
		ensemble.WithNEstimators(p.cfg.NEstimators),
		ensemble.WithRandomState(p.cfg.Seed),
		ensemble.WithNJobs(p.cfg.NJobs),
		ensemble.WithLogger(logger),
	}
}

// Fit trains a forest on the wine features. Without options it uses 100
// trees, random state 42 and fully grown trees over all features.
func Fit(ctx context.Context, X, y mat.Matrix, opts ...ensemble.Option) (*ensemble.RandomForestRegressor, error) {
	rows, cols := X.Dims()
	if err := errors.CheckMatrix("pipeline.Fit", X, rows, cols); err != nil {
		return nil, err
	}
	base := []ensemble.Option{
		ensemble.WithNEstimators(100),
		ensemble.WithRandomState(42),
		ensemble.WithFeatureNames(wine.ColumnNames()...),
	}
	forest := ensemble.NewRandomForestRegressor(append(base, opts...)...)
	if err := forest.FitContext(ctx, X, y); err != nil {
		return nil, err
	}
	return forest, nil
}

// Evaluate scores forest on the hold-out set, cross-validates fresh forests
// with the same parameters on the full data using unshuffled k-fold, and
// collects the feature importances. Values are rounded to four decimals.
func Evaluate(ctx context.Context, forest *ensemble.RandomForestRegressor, XTest, yTest, XFull, yFull mat.Matrix, folds int) (*MetricsReport, error) {
	pred, err := forest.Predict(XTest)
	if err != nil {
		return nil, err
	}
	rows, _ := yTest.Dims()
	holdout, err := metrics.EvaluateRegression(
		mat.NewVecDense(rows, mat.Col(nil, 0, yTest)),
		mat.NewVecDense(rows, mat.Col(nil, 0, pred)),
	)
	if err != nil {
		return nil, err
	}

	cv, err := model_selection.CrossValScore(ctx,
		func() model.Regressor { return forest.Clone() },
		XFull, yFull,
		model_selection.NewKFold(folds, false, 0),
	)
	if err != nil {
		return nil, errors.Wrap(err, "cross-validation failed")
	}

	importance, err := forest.FeatureImportanceMap()
	if err != nil {
		return nil, err
	}

	return metrics.NewReport(holdout, cv.Mean(), importance).Rounded(metrics.ReportPrecision), nil
}
