package wine

import (
	"sort"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// Sample is one wine described by its eleven measurements in Feature order.
type Sample [NumFeatures]float64

// DefaultSample returns the preset measurements offered to interactive users.
func DefaultSample() Sample {
	var s Sample
	for i := range featureTable {
		s[i] = featureTable[i].def
	}
	return s
}

// Get returns the value of f.
func (s Sample) Get(f Feature) float64 {
	return s[f]
}

// Set assigns the value of f.
func (s *Sample) Set(f Feature, v float64) {
	s[f] = v
}

// Slice returns a copy of the values as a row vector.
func (s Sample) Slice() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, s[:])
	return out
}

// Map returns the values keyed by column name.
func (s Sample) Map() map[string]float64 {
	out := make(map[string]float64, NumFeatures)
	for i, v := range s {
		out[featureTable[i].column] = v
	}
	return out
}

// Validate rejects NaN and infinite values.
func (s Sample) Validate() error {
	return errors.CheckFinite("Sample", s[:], ColumnNames())
}

// OutOfRange lists the features whose value lies outside Feature.Range.
func (s Sample) OutOfRange() []Feature {
	var out []Feature
	for _, f := range Features() {
		lo, hi := f.Range()
		if v := s[f]; v < lo || v > hi {
			out = append(out, f)
		}
	}
	return out
}

// WarnOutOfRange emits a SampleRangeWarning for each out of range feature.
func (s Sample) WarnOutOfRange() {
	for _, f := range s.OutOfRange() {
		lo, hi := f.Range()
		errors.Warn(&errors.SampleRangeWarning{Feature: f.Column(), Value: s[f], Min: lo, Max: hi})
	}
}

// SampleFromSlice builds a Sample from values in Feature order.
func SampleFromSlice(values []float64) (Sample, error) {
	var s Sample
	if len(values) != NumFeatures {
		return s, errors.NewDimensionError("SampleFromSlice", NumFeatures, len(values), 1)
	}
	copy(s[:], values)
	return s, nil
}

// SampleFromMap builds a Sample from values keyed by column name or key.
// Every feature must be present exactly once and unknown names are rejected.
func SampleFromMap(values map[string]float64) (Sample, error) {
	var s Sample
	var seen [NumFeatures]bool

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f, ok := ParseFeature(name)
		if !ok {
			return s, errors.NewValidationError(name, "unknown feature", values[name])
		}
		if seen[f] {
			return s, errors.NewValidationError(name, "feature given more than once", values[name])
		}
		seen[f] = true
		s[f] = values[name]
	}

	for i, ok := range seen {
		if !ok {
			return s, errors.NewValidationError(featureTable[i].column, "missing feature", nil)
		}
	}
	return s, nil
}
