package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/winequality/inference"
	"github.com/YuminosukeSato/winequality/server"
)

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions, metrics and the dataset over HTTP",
		Long: "Start the JSON API. The artifacts are loaded once at start; when they are missing " +
			"the server still starts and reports 503 until restarted after training.",
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}
	cmd.Flags().String("addr", "", "listen address")
	cmd.Flags().Int("cache-size", 0, "number of memoised predictions")
	a.bindFlags(cmd.Flags(), map[string]string{
		"server.addr":       "addr",
		"server.cache_size": "cache-size",
	})
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, args []string) error {
	if a.cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// not ready is a valid serving state
	svc := inference.New(a.store(), inference.WithCacheSize(a.cfg.Server.CacheSize))
	srv := server.New(svc,
		server.WithAddr(a.cfg.Server.Addr),
		server.WithDatasetPath(a.cfg.Data.CachePath),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
