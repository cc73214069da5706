// Package artifact persists and loads the trained forest together with the
// metrics of the run that produced it.
package artifact

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/winequality/core/model"
	"github.com/YuminosukeSato/winequality/metrics"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
	"github.com/YuminosukeSato/winequality/sklearn/ensemble"
	"github.com/YuminosukeSato/winequality/wine"
)

const (
	DefaultModelFile   = "wine_quality_model.gob"
	DefaultMetricsFile = "metrics.json"
)

// Artifacts is a loaded model and metrics pair.
type Artifacts struct {
	Model   *ensemble.RandomForestRegressor
	Metrics *metrics.Report
}

// Store reads and writes the two artifact files inside one directory.
type Store struct {
	dir         string
	modelFile   string
	metricsFile string
	logger      log.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithModelFile overrides the model file name.
func WithModelFile(name string) StoreOption {
	return func(s *Store) {
		s.modelFile = name
	}
}

// WithMetricsFile overrides the metrics file name.
func WithMetricsFile(name string) StoreOption {
	return func(s *Store) {
		s.metricsFile = name
	}
}

// WithLogger overrides the logger.
func WithLogger(l log.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{
		dir:         dir,
		modelFile:   DefaultModelFile,
		metricsFile: DefaultMetricsFile,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("artifact.store")
	}
	return s
}

// Dir returns the artifact directory.
func (s *Store) Dir() string {
	return s.dir
}

// ModelPath returns the path of the model file.
func (s *Store) ModelPath() string {
	return filepath.Join(s.dir, s.modelFile)
}

// MetricsPath returns the path of the metrics file.
func (s *Store) MetricsPath() string {
	return filepath.Join(s.dir, s.metricsFile)
}

// Persist writes the model and metrics. Both files are fully written and
// synced to temporary files before either replaces its destination, and a
// failed replacement rolls the model back, so the previous pair stays intact.
func (s *Store) Persist(m *ensemble.RandomForestRegressor, report *metrics.Report) error {
	if m == nil || !m.IsFitted() {
		return errors.NewNotFittedError("RandomForestRegressor", "Persist")
	}
	if report == nil {
		return errors.NewValueError("Store.Persist", "metrics report is nil")
	}

	stagedModel, err := model.StageFile(s.ModelPath(), func(w io.Writer) error {
		return model.SaveModelToWriter(m, w)
	})
	if err != nil {
		return errors.Wrap(err, "failed to write model artifact")
	}

	stagedMetrics, err := model.StageFile(s.MetricsPath(), func(w io.Writer) error {
		return writeReport(w, report)
	})
	if err != nil {
		stagedModel.Abort()
		return errors.Wrap(err, "failed to write metrics artifact")
	}

	if err := model.CommitAll(stagedModel, stagedMetrics); err != nil {
		return errors.Wrap(err, "failed to replace artifacts")
	}

	s.logger.Info("Artifacts persisted",
		log.OperationKey, log.OperationPersist,
		log.RunIDKey, report.RunID,
		log.PathKey, s.dir,
	)
	return nil
}

func writeReport(w io.Writer, report *metrics.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(report); err != nil {
		return errors.Wrap(err, "failed to encode metrics")
	}
	return nil
}

// Load reads both artifacts. Either both are returned or an
// ArtifactMissingError naming every file that is absent or unreadable.
// A run ID mismatch between the two is reported as a warning only.
func (s *Store) Load() (*Artifacts, error) {
	var missing []string
	var cause error

	m, err := s.LoadModel()
	if err != nil {
		missing = append(missing, s.ModelPath())
		cause = errors.CombineErrors(cause, err)
	}
	report, err := s.LoadMetrics()
	if err != nil {
		missing = append(missing, s.MetricsPath())
		cause = errors.CombineErrors(cause, err)
	}
	if len(missing) > 0 {
		return nil, errors.NewArtifactMissingError(missing, cause)
	}

	if m.RunID() != report.RunID {
		w := errors.NewArtifactMismatchWarning(m.RunID(), report.RunID)
		s.logger.Warn("Model and metrics come from different runs", log.ErrorKey, w)
		errors.Warn(w)
	}

	s.logger.Debug("Artifacts loaded",
		log.OperationKey, log.OperationLoad,
		log.RunIDKey, m.RunID(),
		log.PathKey, s.dir,
	)
	return &Artifacts{Model: m, Metrics: report}, nil
}

// LoadModel reads and checks the model file alone.
func (s *Store) LoadModel() (*ensemble.RandomForestRegressor, error) {
	m := ensemble.NewRandomForestRegressor(ensemble.WithLogger(s.logger))
	if err := model.LoadModel(m, s.ModelPath()); err != nil {
		return nil, err
	}
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "Load")
	}
	if m.NFeatures() != wine.NumFeatures {
		return nil, errors.NewDimensionError("Store.Load", wine.NumFeatures, m.NFeatures(), 1)
	}
	return m, nil
}

// LoadMetrics reads and validates the metrics file alone.
func (s *Store) LoadMetrics() (*metrics.Report, error) {
	file, err := os.Open(s.MetricsPath())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", s.MetricsPath())
	}
	defer file.Close()

	report, err := metrics.DecodeReport(file)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid metrics file %s", s.MetricsPath())
	}
	return report, nil
}

// Exists reports which of the two files are present on disk.
func (s *Store) Exists() (modelOK, metricsOK bool) {
	_, err := os.Stat(s.ModelPath())
	modelOK = err == nil
	_, err = os.Stat(s.MetricsPath())
	metricsOK = err == nil
	return modelOK, metricsOK
}
