package artifact

import (
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/winequality/metrics"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
	"github.com/YuminosukeSato/winequality/sklearn/ensemble"
	"github.com/YuminosukeSato/winequality/wine"
)

func fittedForest(t *testing.T, runID string) *ensemble.RandomForestRegressor {
	t.Helper()
	rng := rand.New(rand.NewPCG(3, 3))
	n := 60
	X := mat.NewDense(n, wine.NumFeatures, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < wine.NumFeatures; j++ {
			X.Set(i, j, rng.Float64())
		}
		y.Set(i, 0, 3+5*X.At(i, int(wine.Alcohol)))
	}
	f := ensemble.NewRandomForestRegressor(
		ensemble.WithNEstimators(5),
		ensemble.WithRandomState(42),
		ensemble.WithFeatureNames(wine.ColumnNames()...),
		ensemble.WithLogger(log.NewTestLogger(log.LevelError)),
	)
	if err := f.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	f.SetProvenance(runID, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	return f
}

func testReport(runID string) *metrics.Report {
	r := metrics.NewReport(metrics.Regression{MSE: 0.4, RMSE: 0.6325, MAE: 0.5, R2: 0.41}, 0.38,
		map[string]float64{"alcohol": 0.9, "pH": 0.1})
	r.RunID = runID
	return r
}

func newTestStore(dir string) *Store {
	return NewStore(dir, WithLogger(log.NewTestLogger(log.LevelError)))
}

func TestPersistAndLoad(t *testing.T) {
	store := newTestStore(t.TempDir())
	forest := fittedForest(t, "run-a")

	if err := store.Persist(forest, testReport("run-a")); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Model.RunID() != "run-a" || got.Metrics.RunID != "run-a" {
		t.Errorf("run ids = %q/%q", got.Model.RunID(), got.Metrics.RunID)
	}
	if got.Metrics.R2 != 0.41 || got.Metrics.FeatureImportance["alcohol"] != 0.9 {
		t.Errorf("metrics = %+v", got.Metrics)
	}

	row := wine.DefaultSample().Slice()
	want, _ := forest.PredictRow(row)
	have, err := got.Model.PredictRow(row)
	if err != nil {
		t.Fatal(err)
	}
	if want != have {
		t.Errorf("loaded model predicts %v, original %v", have, want)
	}

	raw, err := os.ReadFile(store.MetricsPath())
	if err != nil {
		t.Fatal(err)
	}
	if want := "{\n    \"Mean Squared Error (MSE)\": 0.4,"; string(raw[:len(want)]) != want {
		t.Errorf("metrics file not indented with four spaces: %q", raw[:40])
	}
}

func TestLoadMissing(t *testing.T) {
	tests := []struct {
		name        string
		keepModel   bool
		keepMetrics bool
		corrupt     string
		wantPaths   int
	}{
		{"nothing", false, false, "", 2},
		{"model only", true, false, "", 1},
		{"metrics only", false, true, "", 1},
		{"corrupt metrics", true, true, "metrics", 1},
		{"corrupt model", true, true, "model", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t.TempDir())
			if err := store.Persist(fittedForest(t, "r"), testReport("r")); err != nil {
				t.Fatal(err)
			}
			if !tt.keepModel {
				os.Remove(store.ModelPath())
			}
			if !tt.keepMetrics {
				os.Remove(store.MetricsPath())
			}
			switch tt.corrupt {
			case "metrics":
				os.WriteFile(store.MetricsPath(), []byte("{not json"), 0o644)
			case "model":
				os.WriteFile(store.ModelPath(), []byte("garbage"), 0o644)
			}

			got, err := store.Load()
			if got != nil {
				t.Error("Load() must not return a partial pair")
			}
			var missing *errors.ArtifactMissingError
			if !errors.As(err, &missing) {
				t.Fatalf("expected ArtifactMissingError, got %v", err)
			}
			if len(missing.Paths) != tt.wantPaths {
				t.Errorf("Paths = %v, want %d entries", missing.Paths, tt.wantPaths)
			}
		})
	}
}

func TestPersistFailureKeepsPreviousPair(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(dir)
	if err := store.Persist(fittedForest(t, "old"), testReport("old")); err != nil {
		t.Fatal(err)
	}

	// NaN cannot be encoded as JSON, so the metrics write fails after the
	// model has already been staged.
	bad := testReport("new")
	bad.R2 = math.NaN()
	if err := store.Persist(fittedForest(t, "new"), bad); err == nil {
		t.Fatal("expected Persist to fail")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("temp files left behind: %v", entries)
	}

	err = store.Persist(ensemble.NewRandomForestRegressor(), testReport("x"))
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError, got %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("previous artifacts damaged: %v", err)
	}
	if got.Model.RunID() != "old" || got.Metrics.RunID != "old" {
		t.Errorf("run ids = %q/%q, want old/old", got.Model.RunID(), got.Metrics.RunID)
	}
}

func TestPersistRollsBackModelWhenMetricsCannotBeReplaced(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(dir)
	if err := store.Persist(fittedForest(t, "old"), testReport("old")); err != nil {
		t.Fatal(err)
	}

	// a non-empty directory at the metrics path makes its rename fail after
	// the model has been replaced
	if err := os.Remove(store.MetricsPath()); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(store.MetricsPath(), "keep"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := store.Persist(fittedForest(t, "new"), testReport("new")); err == nil {
		t.Fatal("expected Persist to fail")
	}

	m, err := store.LoadModel()
	if err != nil {
		t.Fatalf("model damaged: %v", err)
	}
	if m.RunID() != "old" {
		t.Errorf("model run id = %q, want old", m.RunID())
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("temp or backup files left behind: %v", entries)
	}
}

func TestLoadWarnsOnRunMismatch(t *testing.T) {
	var mu sync.Mutex
	var warnings []error
	errors.SetWarningHandler(func(w error) {
		mu.Lock()
		defer mu.Unlock()
		warnings = append(warnings, w)
	})
	defer errors.SetWarningHandler(nil)

	dir := t.TempDir()
	store := newTestStore(dir)
	if err := store.Persist(fittedForest(t, "model-run"), testReport("metrics-run")); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Load(); err != nil {
		t.Fatalf("mismatch must not prevent loading: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}
	var mw *errors.ArtifactMismatchWarning
	if !errors.As(warnings[0], &mw) || mw.ModelRunID != "model-run" || mw.MetricsRunID != "metrics-run" {
		t.Errorf("warning = %v", warnings[0])
	}
}

func TestExists(t *testing.T) {
	store := newTestStore(t.TempDir())
	if m, r := store.Exists(); m || r {
		t.Error("empty dir reported artifacts")
	}
	if err := store.Persist(fittedForest(t, "r"), testReport("r")); err != nil {
		t.Fatal(err)
	}
	if m, r := store.Exists(); !m || !r {
		t.Error("persisted artifacts not found")
	}
}
