// Package cmd holds the cobra commands of the winequality CLI.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/winequality/artifact"
	"github.com/YuminosukeSato/winequality/inference"
	"github.com/YuminosukeSato/winequality/internal/config"
	"github.com/YuminosukeSato/winequality/internal/ui"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
)

const longDescription = "Train a random forest on the UCI red wine quality dataset, " +
	"then score and grade wine samples from the command line or over HTTP."

var version = "dev"

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	version = v
}

// app carries the state shared by the commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	bindErr error
}

// GetRootCmd returns a fresh command tree for use with fang.
func GetRootCmd() *cobra.Command {
	return newRootCmd(viper.New())
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	a := &app{v: v}

	rootCmd := &cobra.Command{
		Use:           "winequality",
		Short:         "Red wine quality trainer and grading service",
		Long:          longDescription,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.winequality.yaml or ./config/.winequality.yaml)")
	pf.String("artifacts", "", "directory holding the model and metrics files")
	pf.String("log-level", "", "log level: debug|info|warn|error")
	pf.String("log-format", "", "log format: console|json")
	pf.String("log-file", "", "also write JSON logs to this rotating file")
	a.bindFlags(pf, map[string]string{
		"artifacts.dir": "artifacts",
		"log.level":     "log-level",
		"log.format":    "log-format",
		"log.file":      "log-file",
	})

	rootCmd.AddCommand(
		a.newTrainCmd(),
		a.newPredictCmd(),
		a.newMetricsCmd(),
		a.newImportanceCmd(),
		a.newModelCardCmd(),
		a.newDiagnoseCmd(),
		a.newServeCmd(),
	)
	return rootCmd
}

// bindFlags ties config keys to flags. A failed binding surfaces when the
// command runs.
func (a *app) bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := a.v.BindPFlag(key, fs.Lookup(name)); err != nil {
			a.bindErr = errors.CombineErrors(a.bindErr, errors.Wrapf(err, "flag --%s for %s", name, key))
		}
	}
}

// init loads the configuration and sets up logging.
func (a *app) init(cmd *cobra.Command) error {
	if a.bindErr != nil {
		return a.bindErr
	}
	cfg, used, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	if err := log.SetupLogger(cfg.Log); err != nil {
		return err
	}
	if used != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.Dim.Render("Using config file: ")+ui.Secondary.Render(used))
	}
	a.cfg = cfg
	return nil
}

func (a *app) store() *artifact.Store {
	return a.cfg.Store()
}

// service loads the artifacts and fails when they are unavailable.
func (a *app) service() (*inference.Service, error) {
	svc := inference.New(a.store(), inference.WithCacheSize(a.cfg.Server.CacheSize))
	if !svc.Ready() {
		return nil, svc.Err()
	}
	return svc, nil
}
