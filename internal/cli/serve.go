package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/redhat-data-and-ai/userpool/internal/httpapi/server"
	"github.com/redhat-data-and-ai/userpool/pkg/telemetry"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the user pool over HTTP",
		Long: `Open the configured user pool and serve the admin API until interrupted.

Examples:
  userpool serve --config ./config.yaml
  USERPOOL_STORE_BACKEND=sqlite userpool serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg := opts.Config

	if err := telemetry.Init(ctx, cfg.Telemetry); err != nil {
		return err
	}
	defer func() {
		if err := telemetry.Shutdown(context.Background()); err != nil {
			logrus.WithError(err).Warn("failed to shut down telemetry")
		}
	}()
	if err := telemetry.InitStoreMetrics(telemetry.GetMeter(cfg.App.Name)); err != nil {
		return err
	}

	pool, closePool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closePool(); err != nil {
			logrus.WithError(err).Warn("failed to close data store")
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.NewAPIServer(cfg, pool).Start(ctx)
	})
	return g.Wait()
}
