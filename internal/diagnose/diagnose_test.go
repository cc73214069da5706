package diagnose

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/winequality/internal/config"
	"github.com/YuminosukeSato/winequality/metrics"
	"github.com/YuminosukeSato/winequality/pkg/log"
	"github.com/YuminosukeSato/winequality/sklearn/ensemble"
	"github.com/YuminosukeSato/winequality/wine"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Artifacts.Dir = filepath.Join(dir, "artifacts")
	cfg.Data.CachePath = filepath.Join(dir, "data", "winequality-red.csv")
	if err := os.MkdirAll(cfg.Artifacts.Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func testTable() *wine.Table {
	t := &wine.Table{}
	for i := 0; i < 4; i++ {
		s := wine.DefaultSample()
		s.Set(wine.Alcohol, 9+float64(i))
		t.Samples = append(t.Samples, s)
		t.Quality = append(t.Quality, float64(5+i%2))
	}
	return t
}

func persistPair(t *testing.T, cfg *config.Config, modelRun, metricsRun string) {
	t.Helper()
	X, y, err := testTable().Matrices()
	if err != nil {
		t.Fatal(err)
	}
	forest := ensemble.NewRandomForestRegressor(
		ensemble.WithNEstimators(3),
		ensemble.WithFeatureNames(wine.ColumnNames()...),
		ensemble.WithLogger(log.NewTestLogger(log.LevelError)),
	)
	if err := forest.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	forest.SetProvenance(modelRun, forest.TrainedAt())
	imp, err := forest.FeatureImportanceMap()
	if err != nil {
		t.Fatal(err)
	}
	report := metrics.NewReport(metrics.Regression{}, 0, imp)
	report.RunID = metricsRun

	store := cfg.Store()
	if err := store.Persist(forest, report); err != nil {
		t.Fatal(err)
	}
}

func writeCache(t *testing.T, cfg *config.Config) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(cfg.Data.CachePath), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(cfg.Data.CachePath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := wine.WriteCSV(f, testTable()); err != nil {
		t.Fatal(err)
	}
}

func checkStatus(t *testing.T, r *Report, name string, want Status) {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			if c.Status != want {
				t.Errorf("%s: status = %s, want %s (%s)", name, c.Status, want, c.Detail)
			}
			return
		}
	}
	t.Errorf("%s: check missing", name)
}

func TestRunEmptyWorkspace(t *testing.T) {
	cfg := testConfig(t)
	r := Run(cfg)

	checkStatus(t, r, "artifact dir", StatusOK)
	checkStatus(t, r, "model", StatusWarning)
	checkStatus(t, r, "metrics", StatusWarning)
	checkStatus(t, r, "dataset cache", StatusWarning)
	if !r.Healthy() {
		t.Error("missing artifacts are warnings, report should be healthy")
	}
	if r.Dataset != nil {
		t.Error("dataset summary without a cache")
	}
}

func TestRunComplete(t *testing.T) {
	cfg := testConfig(t)
	persistPair(t, cfg, "run-a", "run-a")
	writeCache(t, cfg)

	r := Run(cfg)
	for _, name := range []string{"artifact dir", "model", "metrics", "run id", "dataset cache"} {
		checkStatus(t, r, name, StatusOK)
	}
	if len(r.Files) != 2 {
		t.Errorf("files = %+v", r.Files)
	}

	if r.Dataset == nil || r.Dataset.Rows != 4 {
		t.Fatalf("dataset = %+v", r.Dataset)
	}
	if got := len(r.Dataset.Columns); got != wine.NumFeatures+1 {
		t.Fatalf("columns = %d", got)
	}
	alcohol := r.Dataset.Columns[wine.Alcohol]
	if alcohol.Column != "alcohol" || alcohol.Mean != 10.5 || alcohol.Min != 9 || alcohol.Max != 12 {
		t.Errorf("alcohol = %+v", alcohol)
	}
	// sample standard deviation of 9, 10, 11, 12
	if math.Abs(alcohol.Std-math.Sqrt(5.0/3.0)) > 1e-12 {
		t.Errorf("alcohol std = %v", alcohol.Std)
	}
	if acid := r.Dataset.Columns[wine.FixedAcidity]; acid.Std > 1e-9 {
		t.Errorf("constant column std = %v", acid.Std)
	}
}

func TestRunMismatchedRunIDs(t *testing.T) {
	cfg := testConfig(t)
	persistPair(t, cfg, "run-a", "run-b")

	r := Run(cfg)
	checkStatus(t, r, "run id", StatusWarning)
	if !r.Healthy() {
		t.Error("run id mismatch must not fail diagnostics")
	}
}

func TestRunCorruptMetrics(t *testing.T) {
	cfg := testConfig(t)
	persistPair(t, cfg, "run-a", "run-a")
	if err := os.WriteFile(cfg.Store().MetricsPath(), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := Run(cfg)
	checkStatus(t, r, "model", StatusOK)
	checkStatus(t, r, "metrics", StatusFailed)
	if r.Healthy() {
		t.Error("corrupt metrics should fail diagnostics")
	}
}

func TestRunMissingArtifactDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Artifacts.Dir = filepath.Join(cfg.Artifacts.Dir, "absent")

	r := Run(cfg)
	checkStatus(t, r, "artifact dir", StatusFailed)
}
