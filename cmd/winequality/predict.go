package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/winequality/inference"
	"github.com/YuminosukeSato/winequality/internal/ui"
	"github.com/YuminosukeSato/winequality/wine"
)

type predictOutput struct {
	Score      float64            `json:"score"`
	Grade      inference.Grade    `json:"grade"`
	Summary    string             `json:"summary"`
	Features   map[string]float64 `json:"features"`
	OutOfRange []string           `json:"out_of_range"`
}

// flagName is the command line name of a feature, e.g. free-sulfur-dioxide.
func flagName(f wine.Feature) string {
	return strings.ReplaceAll(f.Key(), "_", "-")
}

func (a *app) newPredictCmd() *cobra.Command {
	var (
		interactive bool
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict and grade the quality of one wine sample",
		Long: "Score a wine sample with the trained forest. Measurements default to the " +
			"reference sample; override them with flags or enter them in a form with --interactive.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPredict(cmd, interactive, asJSON)
		},
	}

	def := wine.DefaultSample()
	for _, f := range wine.Features() {
		lo, hi := f.Range()
		cmd.Flags().Float64(flagName(f), def.Get(f), fmt.Sprintf("%s (usual range %g to %g)", f.Label(), lo, hi))
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "enter the measurements in a form")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func (a *app) runPredict(cmd *cobra.Command, interactive, asJSON bool) error {
	svc, err := a.service()
	if err != nil {
		return err
	}

	sample, err := sampleFromFlags(cmd)
	if err != nil {
		return err
	}
	if interactive {
		sample, err = ui.NewSampleForm(sample).Run(cmd.Context())
		if err != nil {
			return err
		}
	}

	assessment, err := svc.Assess(sample)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		names := make([]string, 0, len(assessment.OutOfRange))
		for _, f := range assessment.OutOfRange {
			names = append(names, f.Column())
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(predictOutput{
			Score:      assessment.Score,
			Grade:      assessment.Grade,
			Summary:    assessment.Grade.Summary(),
			Features:   assessment.Sample.Map(),
			OutOfRange: names,
		})
	}
	fmt.Fprintln(out, ui.RenderAssessment(assessment))
	return nil
}

func sampleFromFlags(cmd *cobra.Command) (wine.Sample, error) {
	var s wine.Sample
	for _, f := range wine.Features() {
		v, err := cmd.Flags().GetFloat64(flagName(f))
		if err != nil {
			return s, err
		}
		s.Set(f, v)
	}
	return s, s.Validate()
}
