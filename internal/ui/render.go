package ui

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/YuminosukeSato/winequality/inference"
	"github.com/YuminosukeSato/winequality/internal/diagnose"
	"github.com/YuminosukeSato/winequality/metrics"
)

// RenderAssessment draws the grade card shown after a prediction.
func RenderAssessment(a inference.Assessment) string {
	head := lipgloss.NewStyle().Foreground(SeverityColor(a.Grade.Severity)).Bold(true).
		Render(fmt.Sprintf("%s (Score: %.2f)", a.Grade, a.Score))
	body := Dim.Render(a.Grade.Summary())

	lines := []string{head, body}
	if len(a.OutOfRange) > 0 {
		names := make([]string, len(a.OutOfRange))
		for i, f := range a.OutOfRange {
			lo, hi := f.Range()
			names[i] = fmt.Sprintf("%s=%g (usual %g–%g)", f.Column(), a.Sample.Get(f), lo, hi)
		}
		lines = append(lines, WarnMark()+" "+Warning.Render("outside usual range: "+strings.Join(names, ", ")))
	}
	return GradeCard(a.Grade.Severity).Render(strings.Join(lines, "\n"))
}

// RenderMetrics draws the model performance panel.
func RenderMetrics(r *metrics.Report) string {
	if r == nil {
		return Error.Render("no metrics available")
	}
	rows := []struct {
		label string
		value float64
	}{
		{"R-squared (Test)", r.R2},
		{"Mean Absolute Error", r.MAE},
		{"Cross-Validation Score", r.CVR2Mean},
		{"Mean Squared Error", r.MSE},
		{"Root Mean Squared Error", r.RMSE},
	}

	var b strings.Builder
	b.WriteString(Title.Render("Model DNA & Performance Metrics"))
	b.WriteString("\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "%s %s\n", Dim.Render(fmt.Sprintf("%-24s", row.label)), Bold.Render(fmt.Sprintf("%.4f", row.value)))
	}
	if r.RunID != "" {
		fmt.Fprintf(&b, "%s %s\n", Muted.Render(fmt.Sprintf("%-24s", "Run")), Muted.Render(r.RunID))
	}
	if !r.TrainedAt.IsZero() {
		fmt.Fprintf(&b, "%s %s\n", Muted.Render(fmt.Sprintf("%-24s", "Trained")), Muted.Render(r.TrainedAt.Format("2006-01-02 15:04:05 MST")))
	}
	if r.Samples > 0 {
		fmt.Fprintf(&b, "%s %s\n", Muted.Render(fmt.Sprintf("%-24s", "Samples")),
			Muted.Render(fmt.Sprintf("%d (train %d / test %d)", r.Samples, r.TrainSamples, r.TestSamples)))
	}
	return Box.Render(strings.TrimRight(b.String(), "\n"))
}

// RenderImportance draws one text bar per feature, strongest first. width is
// the length of the longest bar.
func RenderImportance(view []inference.FeatureWeight, width int) string {
	if len(view) == 0 {
		return Muted.Render("no feature importances")
	}
	if width <= 0 {
		width = 40
	}
	maxW, nameW := 0.0, 0
	for _, fw := range view {
		maxW = max(maxW, fw.Weight)
		nameW = max(nameW, len(fw.Feature))
	}

	var b strings.Builder
	for i := len(view) - 1; i >= 0; i-- {
		fw := view[i]
		n := 0
		if maxW > 0 {
			n = int(fw.Weight / maxW * float64(width))
		}
		fmt.Fprintf(&b, "%s %s %s\n",
			Dim.Render(fmt.Sprintf("%*s", nameW, fw.Feature)),
			Primary.Render(strings.Repeat("█", n)),
			fmt.Sprintf("%.4f", fw.Weight),
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderDiagnostics draws one marked line per check followed by the artifact
// listing and the dataset summary.
func RenderDiagnostics(r *diagnose.Report) string {
	var b strings.Builder
	b.WriteString(Title.Render("Diagnostics"))
	b.WriteString("\n")
	for _, c := range r.Checks {
		mark := CheckMark()
		switch c.Status {
		case diagnose.StatusWarning:
			mark = WarnMark()
		case diagnose.StatusFailed:
			mark = CrossMark()
		}
		fmt.Fprintf(&b, "%s %s %s\n", mark, Bold.Render(fmt.Sprintf("%-14s", c.Name)), Dim.Render(c.Detail))
	}

	if len(r.Files) > 0 {
		fmt.Fprintf(&b, "\n%s\n", Title.Render("Files in "+r.ArtifactDir))
		for _, f := range r.Files {
			name := f.Name
			if f.IsDir {
				name += "/"
			}
			fmt.Fprintf(&b, "  %-32s %s\n", name, Muted.Render(fmt.Sprintf("%d bytes", f.Size)))
		}
	}

	if ds := r.Dataset; ds != nil {
		fmt.Fprintf(&b, "\n%s\n", Title.Render(fmt.Sprintf("Dataset %s (%d rows)", ds.Path, ds.Rows)))
		fmt.Fprintf(&b, "  %s\n", Dim.Render(fmt.Sprintf("%-22s %10s %10s %10s %10s", "column", "mean", "std", "min", "max")))
		for _, c := range ds.Columns {
			fmt.Fprintf(&b, "  %-22s %10.4f %10.4f %10.4f %10.4f\n", c.Column, c.Mean, c.Std, c.Min, c.Max)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
