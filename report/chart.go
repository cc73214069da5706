// Package report renders the feature importance chart.
package report

import (
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	_ "gonum.org/v1/plot/vg/vgimg"
	_ "gonum.org/v1/plot/vg/vgsvg"

	"github.com/YuminosukeSato/winequality/core/model"
	"github.com/YuminosukeSato/winequality/inference"
	"github.com/YuminosukeSato/winequality/pkg/errors"
)

const (
	ChartTitle  = "Random Forest Feature Importance"
	ChartXLabel = "Importance Factor"
)

// Default canvas size.
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 5 * vg.Inch
)

// BarColor is the fill of every bar.
var BarColor = color.RGBA{R: 0x8b, G: 0x5c, B: 0xf6, A: 0xff}

var formats = map[string]bool{"png": true, "svg": true, "jpg": true, "jpeg": true}

// ImportanceChart builds a horizontal bar chart with one bar per feature, in
// the order of view, so the ascending view puts the strongest feature on top.
func ImportanceChart(view []inference.FeatureWeight) (*plot.Plot, error) {
	if len(view) == 0 {
		return nil, errors.NewValueError("ImportanceChart", "no feature importances to plot")
	}

	values := make(plotter.Values, len(view))
	names := make([]string, len(view))
	for i, fw := range view {
		values[i] = fw.Weight
		names[i] = fw.Feature
	}

	p := plot.New()
	p.Title.Text = ChartTitle
	p.X.Label.Text = ChartXLabel
	p.X.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build bar chart")
	}
	bars.Horizontal = true
	bars.Color = BarColor
	bars.LineStyle.Width = 0

	p.Add(bars)
	p.NominalY(names...)
	return p, nil
}

// WriteImportanceChart renders the chart in format (png, svg, jpg) to w.
func WriteImportanceChart(w io.Writer, view []inference.FeatureWeight, format string) error {
	format = strings.ToLower(format)
	if !formats[format] {
		return errors.NewValidationError("format", "unsupported chart format", format)
	}
	p, err := ImportanceChart(view)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(DefaultWidth, DefaultHeight, format)
	if err != nil {
		return errors.Wrap(err, "failed to render chart")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "failed to write chart")
	}
	return nil
}

// SaveImportanceChart writes the chart to path, choosing the format from the
// file extension. The file is replaced atomically.
func SaveImportanceChart(path string, view []inference.FeatureWeight) error {
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	staged, err := model.StageFile(path, func(w io.Writer) error {
		return WriteImportanceChart(w, view, format)
	})
	if err != nil {
		return err
	}
	return staged.Commit()
}
