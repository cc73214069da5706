// Package inference serves predictions from the persisted forest and exposes
// the metrics of the run that trained it.
package inference

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/YuminosukeSato/winequality/artifact"
	"github.com/YuminosukeSato/winequality/metrics"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
	"github.com/YuminosukeSato/winequality/sklearn/ensemble"
	"github.com/YuminosukeSato/winequality/wine"
)

// ScorePrecision is the number of decimals kept in a predicted score.
const ScorePrecision = 2

// DefaultCacheSize is the number of memoised predictions.
const DefaultCacheSize = 256

// Loader supplies the model and metrics pair. *artifact.Store implements it.
type Loader interface {
	Load() (*artifact.Artifacts, error)
}

// Assessment is a prediction together with its grade.
type Assessment struct {
	Sample     wine.Sample
	Score      float64
	Grade      Grade
	OutOfRange []wine.Feature
}

// Service answers prediction requests. It is created once, never mutated
// afterwards and safe for concurrent use.
type Service struct {
	model  *ensemble.RandomForestRegressor
	report *metrics.Report
	err    error

	cache     *lru.Cache[wine.Sample, float64]
	cacheSize int
	hits      atomic.Int64
	misses    atomic.Int64

	logger log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger overrides the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithCacheSize sets the prediction cache capacity. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(s *Service) {
		s.cacheSize = n
	}
}

// New loads the artifacts and returns a Service. A load failure does not fail
// construction: the service is returned not ready and Err reports why.
func New(loader Loader, opts ...Option) *Service {
	s := newService(opts)
	a, err := loader.Load()
	if err != nil {
		s.err = err
		s.logger.Warn("Artifacts unavailable, service is not ready", err, log.OperationKey, log.OperationLoad)
		return s
	}
	s.init(a)
	return s
}

// NewFromArtifacts returns a ready Service around an already loaded pair.
func NewFromArtifacts(a *artifact.Artifacts, opts ...Option) *Service {
	s := newService(opts)
	if a == nil || a.Model == nil || a.Metrics == nil {
		s.err = errors.NewArtifactMissingError(nil, errors.New("incomplete artifacts"))
		return s
	}
	s.init(a)
	return s
}

func newService(opts []Option) *Service {
	s := &Service{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("inference")
	}
	return s
}

func (s *Service) init(a *artifact.Artifacts) {
	s.model = a.Model
	s.report = a.Metrics
	if s.cacheSize > 0 {
		cache, err := lru.New[wine.Sample, float64](s.cacheSize)
		if err != nil {
			s.logger.Warn("Prediction cache disabled", err, log.CacheSizeKey, s.cacheSize)
		}
		s.cache = cache
	}
	s.logger.Info("Service ready",
		log.OperationKey, log.OperationLoad,
		log.RunIDKey, a.Model.RunID(),
		log.R2ScoreKey, a.Metrics.R2,
	)
}

// Ready reports whether the artifacts were loaded.
func (s *Service) Ready() bool {
	return s.err == nil
}

// Err returns why the service is not ready, or nil.
func (s *Service) Err() error {
	return s.err
}

// Metrics returns the loaded report, or nil when not ready.
func (s *Service) Metrics() *metrics.Report {
	if !s.Ready() {
		return nil
	}
	return s.report
}

// Model returns the loaded forest, or nil when not ready.
func (s *Service) Model() *ensemble.RandomForestRegressor {
	if !s.Ready() {
		return nil
	}
	return s.model
}

// Predict returns the predicted quality score rounded to two decimals.
func (s *Service) Predict(sample wine.Sample) (float64, error) {
	if !s.Ready() {
		return 0, errors.WithStack(errors.ErrNotReady)
	}
	if err := sample.Validate(); err != nil {
		return 0, err
	}

	if s.cache != nil {
		if score, ok := s.cache.Get(sample); ok {
			s.hits.Add(1)
			return score, nil
		}
	}
	s.misses.Add(1)

	raw, err := s.model.PredictRow(sample.Slice())
	if err != nil {
		return 0, err
	}
	score := metrics.Round(raw, ScorePrecision)
	if s.cache != nil {
		s.cache.Add(sample, score)
	}

	s.logger.Debug("Prediction",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
		log.PredictionKey, score,
	)
	return score, nil
}

// Assess predicts the score of sample and grades it. Features outside their
// usual range are reported and warned about but still scored.
func (s *Service) Assess(sample wine.Sample) (Assessment, error) {
	score, err := s.Predict(sample)
	if err != nil {
		return Assessment{}, err
	}
	sample.WarnOutOfRange()
	grade := Classify(score)
	s.logger.Debug("Assessment",
		log.PredictionKey, score,
		log.GradeKey, grade.Label,
	)
	return Assessment{
		Sample:     sample,
		Score:      score,
		Grade:      grade,
		OutOfRange: sample.OutOfRange(),
	}, nil
}

// FeatureImportance returns the importance view of the loaded report.
func (s *Service) FeatureImportance() []FeatureWeight {
	return FeatureImportanceView(s.Metrics())
}

// CacheStats returns prediction cache hits and misses.
func (s *Service) CacheStats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}
