package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/winequality/internal/ui"
	"github.com/YuminosukeSato/winequality/pipeline"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/wine"
)

func (a *app) newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fetch the dataset, train the forest and persist model and metrics",
		Long: "Download the red wine dataset (falling back to the local cache), split it, " +
			"fit a random forest, evaluate it with a holdout set and k-fold cross-validation, " +
			"then write the model and metrics files.",
		Args: cobra.NoArgs,
		RunE: a.runTrain,
	}

	f := cmd.Flags()
	f.Bool("offline", false, "skip the download and train from the local cache")
	f.String("data-url", "", "dataset URL")
	f.String("cache", "", "dataset cache path")
	f.Float64("test-size", 0, "fraction of rows held out for testing")
	f.Int64("seed", 0, "random seed for the split and the forest")
	f.Int("trees", 0, "number of trees")
	f.Int("cv-folds", 0, "cross-validation folds")
	f.Int("jobs", 0, "parallel workers, 0 uses every CPU")
	a.bindFlags(f, map[string]string{
		"data.offline":       "offline",
		"data.url":           "data-url",
		"data.cache_path":    "cache",
		"training.test_size": "test-size",
		"training.seed":      "seed",
		"training.trees":     "trees",
		"training.cv_folds":  "cv-folds",
		"training.jobs":      "jobs",
	})
	return cmd
}

func (a *app) runTrain(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fetcher := wine.NewFetcher(a.cfg.Source())
	p := pipeline.New(a.cfg.PipelineConfig(), fetcher, a.store())

	res, err := p.Run(cmd.Context())
	if err != nil {
		var unavailable *errors.DataUnavailableError
		if errors.As(err, &unavailable) {
			fmt.Fprintln(cmd.ErrOrStderr(), ui.CrossMark()+" "+ui.Error.Render("Dataset unavailable from network and cache."))
			fmt.Fprintln(cmd.ErrOrStderr(), ui.Dim.Render("  Existing artifacts were left untouched. Re-run when network is available."))
		}
		return err
	}

	fmt.Fprintf(out, "%s Trained on %d rows from %s in %s\n",
		ui.CheckMark(), res.Report.Samples, res.Origin, res.Duration.Round(time.Millisecond))
	fmt.Fprintln(out, ui.RenderMetrics(res.Report))
	fmt.Fprintf(out, "%s %s\n%s %s\n",
		ui.Dim.Render("Model saved to  "), a.store().ModelPath(),
		ui.Dim.Render("Metrics saved to"), a.store().MetricsPath())
	return nil
}
