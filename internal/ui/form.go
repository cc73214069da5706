package ui

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/wine"
)

// ErrCancelled is returned when the user leaves the form without submitting.
var ErrCancelled = errors.New("operation cancelled")

// SampleForm collects the eleven measurements, one input per feature,
// prefilled with initial.
type SampleForm struct {
	values [wine.NumFeatures]string
	form   *huh.Form
}

// NewSampleForm builds the form.
func NewSampleForm(initial wine.Sample) *SampleForm {
	sf := &SampleForm{}
	fields := make([]huh.Field, 0, wine.NumFeatures)
	for _, f := range wine.Features() {
		sf.values[f] = strconv.FormatFloat(initial.Get(f), 'g', -1, 64)
		lo, hi := f.Range()
		fields = append(fields, huh.NewInput().
			Title(f.Label()).
			Description("usual range "+formatRange(lo, hi)).
			Value(&sf.values[f]).
			Validate(ParseMeasurement))
	}

	sf.form = huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Wine Composition").
				Description("Adjust the physicochemical measurements and submit to analyse."),
		),
		huh.NewGroup(fields[:6]...),
		huh.NewGroup(fields[6:]...),
	)
	return sf
}

// Form exposes the underlying huh form, e.g. to enable accessible mode.
func (sf *SampleForm) Form() *huh.Form {
	return sf.form
}

// Run shows the form and returns the sample entered.
func (sf *SampleForm) Run(ctx context.Context) (wine.Sample, error) {
	if err := sf.form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return wine.Sample{}, ErrCancelled
		}
		return wine.Sample{}, errors.Wrap(err, "sample form failed")
	}
	return sf.Sample()
}

// Sample converts the current field values.
func (sf *SampleForm) Sample() (wine.Sample, error) {
	var s wine.Sample
	for _, f := range wine.Features() {
		v, err := strconv.ParseFloat(strings.TrimSpace(sf.values[f]), 64)
		if err != nil {
			return s, errors.NewValidationError(f.Column(), "not a number", sf.values[f])
		}
		s.Set(f, v)
	}
	return s, s.Validate()
}

// ParseMeasurement validates one input field.
func ParseMeasurement(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return errors.New("enter a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.New("enter a finite number")
	}
	return nil
}

func formatRange(lo, hi float64) string {
	return strconv.FormatFloat(lo, 'g', -1, 64) + " – " + strconv.FormatFloat(hi, 'g', -1, 64)
}
