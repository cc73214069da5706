package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/winequality/inference"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
	"github.com/YuminosukeSato/winequality/report"
	"github.com/YuminosukeSato/winequality/wine"
)

// DefaultDatasetLimit is the number of rows /api/dataset returns by default.
const DefaultDatasetLimit = 100

// PredictResponse is the body returned by /api/predict.
type PredictResponse struct {
	Score      float64            `json:"score"`
	Grade      inference.Grade    `json:"grade"`
	Summary    string             `json:"summary"`
	Features   map[string]float64 `json:"features"`
	OutOfRange []string           `json:"out_of_range"`
}

// DatasetResponse is the body returned by /api/dataset.
type DatasetResponse struct {
	Columns []string             `json:"columns"`
	Rows    []map[string]float64 `json:"rows"`
	Total   int                  `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) healthHandler(c *gin.Context) {
	if !s.svc.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  s.svc.Err().Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"run_id": s.svc.Metrics().RunID,
	})
}

func (s *Server) metricsHandler(c *gin.Context) {
	if !s.requireReady(c) {
		return
	}
	c.JSON(http.StatusOK, s.svc.Metrics())
}

func (s *Server) importanceHandler(c *gin.Context) {
	if !s.requireReady(c) {
		return
	}
	c.JSON(http.StatusOK, s.svc.FeatureImportance())
}

func (s *Server) chartHandler(c *gin.Context) {
	if !s.requireReady(c) {
		return
	}
	// render fully before writing so a failure still gets a JSON error
	var buf bytes.Buffer
	if err := report.WriteImportanceChart(&buf, s.svc.FeatureImportance(), "png"); err != nil {
		s.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) predictHandler(c *gin.Context) {
	if !s.requireReady(c) {
		return
	}

	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request payload: " + err.Error()})
		return
	}
	sample, err := decodeSample(body)
	if err != nil {
		s.writeError(c, err)
		return
	}

	a, err := s.svc.Assess(sample)
	if err != nil {
		s.writeError(c, err)
		return
	}

	out := make([]string, 0, len(a.OutOfRange))
	for _, f := range a.OutOfRange {
		out = append(out, f.Column())
	}
	c.JSON(http.StatusOK, PredictResponse{
		Score:      a.Score,
		Grade:      a.Grade,
		Summary:    a.Grade.Summary(),
		Features:   a.Sample.Map(),
		OutOfRange: out,
	})
}

// decodeSample accepts {"features": [11 numbers]} or an object keyed by
// feature name.
func decodeSample(body map[string]json.RawMessage) (wine.Sample, error) {
	if raw, ok := body["features"]; ok && len(body) == 1 {
		var values []float64
		if err := json.Unmarshal(raw, &values); err != nil {
			return wine.Sample{}, errors.NewValidationError("features", "must be an array of numbers", string(raw))
		}
		return wine.SampleFromSlice(values)
	}

	values := make(map[string]float64, len(body))
	for name, raw := range body {
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return wine.Sample{}, errors.NewValidationError(name, "must be a number", string(raw))
		}
		values[name] = v
	}
	return wine.SampleFromMap(values)
}

func (s *Server) datasetHandler(c *gin.Context) {
	limit := DefaultDatasetLimit
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			s.writeError(c, errors.NewValidationError("limit", "must be a non-negative integer", q))
			return
		}
		limit = n
	}

	t, err := wine.LoadFile(s.datasetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "dataset cache not found, run train first"})
			return
		}
		s.writeError(c, err)
		return
	}

	head := t.Head(limit)
	rows := make([]map[string]float64, head.Len())
	for i, sample := range head.Samples {
		row := sample.Map()
		row[wine.QualityColumn] = head.Quality[i]
		rows[i] = row
	}
	c.JSON(http.StatusOK, DatasetResponse{
		Columns: append(wine.ColumnNames(), wine.QualityColumn),
		Rows:    rows,
		Total:   t.Len(),
	})
}

func (s *Server) requireReady(c *gin.Context) bool {
	if s.svc.Ready() {
		return true
	}
	s.writeError(c, errors.WithStack(errors.ErrNotReady))
	return false
}

// writeError maps err to a status code and a JSON body.
func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("Request failed", err, log.HTTPPathKey, c.Request.URL.Path)
	}
	c.JSON(status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	var (
		validation *errors.ValidationError
		dimension  *errors.DimensionError
		value      *errors.ValueError
	)
	switch {
	case errors.Is(err, errors.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.As(err, &validation), errors.As(err, &dimension), errors.As(err, &value):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
