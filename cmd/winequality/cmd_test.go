package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/wine"
)

type workspace struct {
	dir       string
	artifacts string
	cache     string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return workspace{
		dir:       dir,
		artifacts: filepath.Join(dir, "artifacts"),
		cache:     filepath.Join(dir, "data", "winequality-red.csv"),
	}
}

func (w workspace) writeCache(t *testing.T) {
	t.Helper()
	table := &wine.Table{}
	for i := 0; i < 60; i++ {
		s := wine.DefaultSample()
		s.Set(wine.Alcohol, 8.5+float64(i%10)*0.6)
		s.Set(wine.VolatileAcidity, 0.3+float64(i%7)*0.1)
		table.Samples = append(table.Samples, s)
		table.Quality = append(table.Quality, float64(3+i%10/2))
	}
	if err := os.MkdirAll(filepath.Dir(w.cache), 0o755); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := wine.WriteCSV(&buf, table); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(w.cache, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

// run executes the CLI with the workspace paths and quiet logging.
func (w workspace) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd(viper.New())
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append(args, "--artifacts", w.artifacts, "--log-level", "error"))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (w workspace) train(t *testing.T) {
	t.Helper()
	if _, stderr, err := w.run(t, "train", "--offline", "--cache", w.cache, "--trees", "5", "--cv-folds", "3"); err != nil {
		t.Fatalf("train: %v\n%s", err, stderr)
	}
}

func TestTrain(t *testing.T) {
	w := newWorkspace(t)
	w.writeCache(t)

	out, stderr, err := w.run(t, "train", "--offline", "--cache", w.cache, "--trees", "5", "--cv-folds", "3")
	if err != nil {
		t.Fatalf("train: %v\n%s", err, stderr)
	}
	for _, want := range []string{"Trained on 60 rows", "cache", "R-squared (Test)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
	for _, name := range []string{"wine_quality_model.gob", "metrics.json"} {
		if _, err := os.Stat(filepath.Join(w.artifacts, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}

func TestTrainDataUnavailable(t *testing.T) {
	w := newWorkspace(t)

	_, stderr, err := w.run(t, "train", "--offline", "--cache", w.cache)
	var unavailable *errors.DataUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected DataUnavailableError, got %v", err)
	}
	if !strings.Contains(stderr, "Re-run when network is available") {
		t.Errorf("hint missing from stderr:\n%s", stderr)
	}
	if _, err := os.Stat(w.artifacts); !os.IsNotExist(err) {
		t.Error("artifact directory must not be created when training fails")
	}
}

func TestCommandsWithoutArtifacts(t *testing.T) {
	w := newWorkspace(t)
	for _, args := range [][]string{{"predict"}, {"metrics"}, {"importance"}, {"modelcard"}} {
		t.Run(args[0], func(t *testing.T) {
			_, _, err := w.run(t, args...)
			var missing *errors.ArtifactMissingError
			if !errors.As(err, &missing) {
				t.Fatalf("expected ArtifactMissingError, got %v", err)
			}
		})
	}
}

func TestPredict(t *testing.T) {
	w := newWorkspace(t)
	w.writeCache(t)
	w.train(t)

	out, _, err := w.run(t, "predict", "--json", "--alcohol", "13.5", "--free-sulfur-dioxide", "15")
	if err != nil {
		t.Fatal(err)
	}
	var got predictOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got.Features["alcohol"] != 13.5 || got.Features["free sulfur dioxide"] != 15 {
		t.Errorf("flags not applied: %v", got.Features)
	}
	if got.Score < 3 || got.Score > 8 {
		t.Errorf("score %v outside the training label range", got.Score)
	}
	if got.Grade.Label == "" || got.Summary == "" {
		t.Errorf("grade missing: %+v", got)
	}

	text, _, err := w.run(t, "predict")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "Score:") {
		t.Errorf("styled output lacks the score:\n%s", text)
	}
}

func TestReports(t *testing.T) {
	w := newWorkspace(t)
	w.writeCache(t)
	w.train(t)

	out, _, err := w.run(t, "metrics", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var metrics map[string]any
	if err := json.Unmarshal([]byte(out), &metrics); err != nil {
		t.Fatal(err)
	}
	if _, ok := metrics["Cross-Validation R2 (Mean)"]; !ok {
		t.Errorf("metrics = %v", metrics)
	}

	chart := filepath.Join(w.dir, "importance.svg")
	out, _, err = w.run(t, "importance", "--chart", chart)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "alcohol") {
		t.Errorf("importance output:\n%s", out)
	}
	if data, err := os.ReadFile(chart); err != nil || !bytes.HasPrefix(data, []byte("<?xml")) {
		t.Errorf("chart not written as svg: %v", err)
	}

	card := filepath.Join(w.dir, "bom.json")
	if _, _, err := w.run(t, "modelcard", "-o", card); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(card)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "machine-learning-model") {
		t.Errorf("model card lacks the model component:\n%s", data)
	}
}

func TestDiagnose(t *testing.T) {
	w := newWorkspace(t)
	w.writeCache(t)
	w.train(t)

	out, _, err := w.run(t, "diagnose", "--json")
	if err != nil {
		t.Fatalf("diagnose: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"dataset cache"`) || !strings.Contains(out, `"rows": 60`) {
		t.Errorf("diagnose output:\n%s", out)
	}

	if err := os.WriteFile(filepath.Join(w.artifacts, "metrics.json"), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := w.run(t, "diagnose"); !errors.Is(err, errUnhealthy) {
		t.Errorf("expected errUnhealthy, got %v", err)
	}
}

func TestFlagNames(t *testing.T) {
	tests := map[wine.Feature]string{
		wine.FixedAcidity:      "fixed-acidity",
		wine.FreeSulfurDioxide: "free-sulfur-dioxide",
		wine.PH:                "ph",
		wine.Alcohol:           "alcohol",
	}
	for f, want := range tests {
		if got := flagName(f); got != want {
			t.Errorf("flagName(%s) = %q, want %q", f.Column(), got, want)
		}
	}
}

func TestBindFlagsUnknownFlag(t *testing.T) {
	a := &app{v: viper.New()}
	fs := pflag.NewFlagSet("train", pflag.ContinueOnError)
	fs.Int("trees", 0, "")
	a.bindFlags(fs, map[string]string{
		"training.trees": "trees",
		"training.seed":  "sead",
	})
	err := a.init(&cobra.Command{})
	if err == nil || !strings.Contains(err.Error(), "--sead") {
		t.Errorf("init() error = %v, want the unbound flag named", err)
	}
}
