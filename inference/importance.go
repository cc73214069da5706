package inference

import (
	"sort"

	"github.com/YuminosukeSato/winequality/metrics"
)

// FeatureWeight is one bar of the importance chart.
type FeatureWeight struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// FeatureImportanceView returns the importances of report sorted ascending by
// weight, ties ordered by feature name. A nil report or an empty mapping gives
// an empty slice.
func FeatureImportanceView(report *metrics.Report) []FeatureWeight {
	if report == nil {
		return []FeatureWeight{}
	}
	out := make([]FeatureWeight, 0, len(report.FeatureImportance))
	for name, w := range report.FeatureImportance {
		out = append(out, FeatureWeight{Feature: name, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight < out[j].Weight
		}
		return out[i].Feature < out[j].Feature
	})
	return out
}
