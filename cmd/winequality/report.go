package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/winequality/internal/diagnose"
	"github.com/YuminosukeSato/winequality/internal/modelcard"
	"github.com/YuminosukeSato/winequality/internal/ui"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/report"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) newMetricsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show the evaluation metrics of the trained model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), svc.Metrics())
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderMetrics(svc.Metrics()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func (a *app) newImportanceCmd() *cobra.Command {
	var (
		chart  string
		asJSON bool
		width  int
	)
	cmd := &cobra.Command{
		Use:   "importance",
		Short: "Show the feature importances of the trained model",
		Long:  "Print the feature importances as text bars and optionally render them as a bar chart (png, svg or jpg).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			view := svc.FeatureImportance()
			out := cmd.OutOrStdout()

			if asJSON {
				if err := writeJSON(out, view); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, ui.Title.Render(report.ChartTitle))
				fmt.Fprintln(out, ui.RenderImportance(view, width))
			}

			if chart != "" {
				if err := report.SaveImportanceChart(chart, view); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), ui.CheckMark()+" Chart written to "+chart)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&chart, "chart", "", "write a bar chart to this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the importances as JSON")
	cmd.Flags().IntVar(&width, "width", 40, "length of the longest text bar")
	return cmd
}

func (a *app) newModelCardCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "modelcard",
		Short: "Export the trained model as a CycloneDX ML-BOM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			artifacts, err := a.store().Load()
			if err != nil {
				return err
			}
			bom, err := modelcard.Build(artifacts, a.cfg.Source())
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return modelcard.Write(cmd.OutOrStdout(), bom)
			}
			if err := modelcard.Save(output, bom); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), ui.CheckMark()+" Model card written to "+output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

// errUnhealthy makes diagnose exit non-zero after printing its report.
var errUnhealthy = errors.New("diagnostics found failing checks")

func (a *app) newDiagnoseCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Check the artifact directory and the dataset cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := diagnose.Run(a.cfg)
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), r); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), ui.RenderDiagnostics(r))
			}
			if !r.Healthy() {
				return errUnhealthy
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
