package pipeline

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/YuminosukeSato/winequality/artifact"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
	"github.com/YuminosukeSato/winequality/sklearn/model_selection"
	"github.com/YuminosukeSato/winequality/wine"
)

type stubLoader struct {
	table *wine.Table
	err   error
	calls int
}

func (s *stubLoader) FetchOrLoad(ctx context.Context) (*wine.Table, error) {
	s.calls++
	return s.table, s.err
}

// syntheticTable makes quality depend mostly on alcohol and a little on
// volatile acidity.
func syntheticTable(n int) *wine.Table {
	rng := rand.New(rand.NewPCG(7, 7))
	t := &wine.Table{Origin: wine.OriginCache}
	for i := 0; i < n; i++ {
		s := wine.DefaultSample()
		for _, f := range wine.Features() {
			lo, hi := f.Range()
			s.Set(f, lo+rng.Float64()*(hi-lo))
		}
		q := 0.6*s.Get(wine.Alcohol) - 1.5*s.Get(wine.VolatileAcidity) + rng.NormFloat64()*0.1
		t.Samples = append(t.Samples, s)
		t.Quality = append(t.Quality, math.Round(q))
	}
	return t
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.NEstimators = 8
	cfg.CVFolds = 3
	return cfg
}

func fixedClock() func() time.Time {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestRun(t *testing.T) {
	logger := log.NewTestLogger(log.LevelInfo)
	store := artifact.NewStore(t.TempDir(), artifact.WithLogger(logger))
	loader := &stubLoader{table: syntheticTable(150)}

	p := New(testConfig(), loader, store,
		WithLogger(logger),
		WithClock(fixedClock()),
		WithRunIDGenerator(func() string { return "run-1" }),
	)
	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.RunID != "run-1" || res.Model.RunID() != "run-1" || res.Report.RunID != "run-1" {
		t.Errorf("run id not stamped everywhere: %+v", res)
	}
	if res.Report.Samples != 150 || res.Report.TestSamples != 30 || res.Report.TrainSamples != 120 {
		t.Errorf("sample counts = %d/%d/%d", res.Report.Samples, res.Report.TrainSamples, res.Report.TestSamples)
	}
	if !res.Report.TrainedAt.Equal(fixedClock()()) {
		t.Errorf("TrainedAt = %v", res.Report.TrainedAt)
	}
	if res.Report.R2 <= 0.5 {
		t.Errorf("hold-out R² = %v, expected the signal to be learned", res.Report.R2)
	}
	if math.Abs(res.Report.RMSE-math.Sqrt(res.Report.MSE)) > 1e-3 {
		t.Errorf("RMSE %v is not sqrt(MSE %v)", res.Report.RMSE, res.Report.MSE)
	}
	if len(res.Report.FeatureImportance) != wine.NumFeatures {
		t.Errorf("importance has %d entries", len(res.Report.FeatureImportance))
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("artifacts not persisted: %v", err)
	}
	if loaded.Metrics.R2 != res.Report.R2 {
		t.Errorf("persisted R² %v, returned %v", loaded.Metrics.R2, res.Report.R2)
	}

	if !logger.ContainsMessage("Training run finished") {
		t.Error("missing completion log")
	}
	if !logger.ContainsField(log.RunIDKey, "run-1") {
		t.Error("logs lack run id")
	}
}

func TestRunIsDeterministic(t *testing.T) {
	table := syntheticTable(100)
	run := func() *MetricsReport {
		store := artifact.NewStore(t.TempDir(), artifact.WithLogger(log.NewTestLogger(log.LevelError)))
		p := New(testConfig(), &stubLoader{table: table}, store, WithLogger(log.NewTestLogger(log.LevelError)))
		res, err := p.Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return res.Report
	}

	a, b := run(), run()
	if a.MSE != b.MSE || a.MAE != b.MAE || a.R2 != b.R2 || a.CVR2Mean != b.CVR2Mean {
		t.Errorf("metrics differ between runs: %+v vs %+v", a, b)
	}
	for k, v := range a.FeatureImportance {
		if b.FeatureImportance[k] != v {
			t.Errorf("importance[%s] %v vs %v", k, v, b.FeatureImportance[k])
		}
	}
	if a.RunID == b.RunID {
		t.Error("each run must get its own id")
	}
}

func TestRunDataUnavailableTouchesNothing(t *testing.T) {
	store := artifact.NewStore(t.TempDir(), artifact.WithLogger(log.NewTestLogger(log.LevelError)))
	unavailable := errors.NewDataUnavailableError("http://example.invalid/wine.csv", "data/wine.csv", errors.New("offline"))
	p := New(testConfig(), &stubLoader{err: unavailable}, store, WithLogger(log.NewTestLogger(log.LevelError)))

	_, err := p.Run(context.Background())
	var derr *errors.DataUnavailableError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DataUnavailableError, got %v", err)
	}
	if m, r := store.Exists(); m || r {
		t.Error("artifacts written after a failed fetch")
	}
}

func TestRunInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"test size zero", func(c *Config) { c.TestSize = 0 }},
		{"test size one", func(c *Config) { c.TestSize = 1 }},
		{"no trees", func(c *Config) { c.NEstimators = 0 }},
		{"one fold", func(c *Config) { c.CVFolds = 1 }},
		{"negative jobs", func(c *Config) { c.NJobs = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			loader := &stubLoader{table: syntheticTable(20)}
			store := artifact.NewStore(t.TempDir(), artifact.WithLogger(log.NewTestLogger(log.LevelError)))
			_, err := New(cfg, loader, store, WithLogger(log.NewTestLogger(log.LevelError))).Run(context.Background())

			var verr *errors.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if loader.calls != 0 {
				t.Error("dataset fetched despite invalid config")
			}
		})
	}
}

func TestFitAndEvaluate(t *testing.T) {
	X, y, err := syntheticTable(120).Matrices()
	if err != nil {
		t.Fatal(err)
	}
	split, err := model_selection.TrainTestSplit(X, y, 0.2, 42)
	if err != nil {
		t.Fatal(err)
	}
	forest, err := Fit(context.Background(), split.XTrain, split.YTrain)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if got := forest.GetParams()["n_estimators"]; got != 100 {
		t.Errorf("default n_estimators = %v, want 100", got)
	}
	if got := forest.FeatureNames(); len(got) != wine.NumFeatures || got[0] != "fixed acidity" {
		t.Errorf("feature names = %v", got)
	}

	report, err := Evaluate(context.Background(), forest, split.XTest, split.YTest, X, y, 5)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	var sum float64
	for _, v := range report.FeatureImportance {
		sum += v
		if v != math.Round(v*1e4)/1e4 {
			t.Errorf("importance %v not rounded to 4 places", v)
		}
	}
	if math.Abs(sum-1) > 1e-3 {
		t.Errorf("importances sum to %v", sum)
	}
	if report.FeatureImportance["alcohol"] < report.FeatureImportance["citric acid"] {
		t.Error("alcohol should dominate citric acid")
	}
}

func TestFitRejectsNonFinite(t *testing.T) {
	X, y, err := syntheticTable(20).Matrices()
	if err != nil {
		t.Fatal(err)
	}
	X.Set(3, int(wine.Density), math.NaN())
	_, err = Fit(context.Background(), X, y)
	var valErr *errors.ValueError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValueError, got %v", err)
	}
}
