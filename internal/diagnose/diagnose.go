// Package diagnose inspects the artifact directory and the dataset cache and
// reports what a training or serving run would find there.
package diagnose

import (
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/winequality/artifact"
	"github.com/YuminosukeSato/winequality/internal/config"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
	"github.com/YuminosukeSato/winequality/wine"
)

// Status is the outcome of a single check.
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Check names one inspected item.
type Check struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail"`
}

// File is one entry of the artifact directory.
type File struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	IsDir bool   `json:"is_dir"`
}

// ColumnStats summarises one dataset column.
type ColumnStats struct {
	Column string  `json:"column"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Dataset summarises the cached dataset.
type Dataset struct {
	Path    string        `json:"path"`
	Rows    int           `json:"rows"`
	Columns []ColumnStats `json:"columns"`
}

// Report is the result of Run.
type Report struct {
	ArtifactDir string   `json:"artifact_dir"`
	Files       []File   `json:"files"`
	Checks      []Check  `json:"checks"`
	Dataset     *Dataset `json:"dataset,omitempty"`
}

// Healthy reports whether no check failed. Warnings do not count.
func (r *Report) Healthy() bool {
	for _, c := range r.Checks {
		if c.Status == StatusFailed {
			return false
		}
	}
	return true
}

func (r *Report) add(name string, status Status, detail string) {
	r.Checks = append(r.Checks, Check{Name: name, Status: status, Detail: detail})
}

// Run performs every check. It never fails; problems are reported as checks.
func Run(cfg *config.Config) *Report {
	logger := log.GetLoggerWithName("diagnose")
	store := cfg.Store(artifact.WithLogger(logger))
	r := &Report{ArtifactDir: store.Dir()}

	r.listDir(store.Dir())

	m, modelErr := store.LoadModel()
	if modelErr != nil {
		r.add("model", statusFor(modelErr), modelErr.Error())
	} else {
		r.add("model", StatusOK, store.ModelPath()+" ("+m.String()+")")
	}

	report, metricsErr := store.LoadMetrics()
	if metricsErr != nil {
		r.add("metrics", statusFor(metricsErr), metricsErr.Error())
	} else {
		r.add("metrics", StatusOK, store.MetricsPath())
	}

	if modelErr == nil && metricsErr == nil {
		if m.RunID() == report.RunID {
			r.add("run id", StatusOK, "model and metrics come from run "+displayRunID(m.RunID()))
		} else {
			w := errors.NewArtifactMismatchWarning(m.RunID(), report.RunID)
			r.add("run id", StatusWarning, w.Error())
		}
	}

	r.inspectDataset(cfg.Data.CachePath)

	logger.Debug("Diagnostics finished",
		log.PathKey, store.Dir(),
		"healthy", r.Healthy(),
	)
	return r
}

func (r *Report) listDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		r.add("artifact dir", StatusFailed, err.Error())
		return
	}
	for _, e := range entries {
		f := File{Name: e.Name(), IsDir: e.IsDir()}
		if info, err := e.Info(); err == nil {
			f.Size = info.Size()
		}
		r.Files = append(r.Files, f)
	}
	sort.Slice(r.Files, func(i, j int) bool { return r.Files[i].Name < r.Files[j].Name })
	r.add("artifact dir", StatusOK, dir)
}

func (r *Report) inspectDataset(path string) {
	t, err := wine.LoadFile(path)
	if err != nil {
		status := StatusFailed
		if errors.Is(err, os.ErrNotExist) {
			// training can still download it
			status = StatusWarning
		}
		r.add("dataset cache", status, err.Error())
		return
	}

	ds := &Dataset{Path: path, Rows: t.Len()}
	for _, f := range wine.Features() {
		ds.Columns = append(ds.Columns, summarize(f.Column(), t.Column(f)))
	}
	ds.Columns = append(ds.Columns, summarize(wine.QualityColumn, t.Quality))
	r.Dataset = ds
	r.add("dataset cache", StatusOK, path)
}

func summarize(name string, values []float64) ColumnStats {
	mean, std := stat.MeanStdDev(values, nil)
	cs := ColumnStats{Column: name, Mean: mean, Std: std}
	if len(values) > 0 {
		cs.Min, cs.Max = values[0], values[0]
		for _, v := range values[1:] {
			cs.Min = min(cs.Min, v)
			cs.Max = max(cs.Max, v)
		}
	}
	if len(values) < 2 {
		cs.Std = 0
	}
	return cs
}

// statusFor treats an absent file as a warning since training creates it.
func statusFor(err error) Status {
	if errors.Is(err, os.ErrNotExist) {
		return StatusWarning
	}
	return StatusFailed
}

func displayRunID(id string) string {
	if id == "" {
		return "(none)"
	}
	return id
}
