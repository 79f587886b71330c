package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vulndash/internal/dashboard"
	"vulndash/internal/telemetry"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the upload dashboard",
		Example: "vulndash serve --addr :8501",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return a.serve(ctx)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default :8501)")
	cmd.Flags().String("title", "", "Page title")

	return cmd
}

func (a *app) serve(ctx context.Context) error {
	provider, err := telemetry.NewProvider(ctx, "vulndash")
	if err != nil {
		return err
	}

	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			a.log.Warn("metrics shutdown failed", "error", err)
		}
	}()

	metrics, err := provider.Metrics()
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	srv, err := dashboard.NewServer(a.cfg, a.newPipeline(metrics), a.log, dashboard.WithTelemetry(provider))
	if err != nil {
		return err
	}

	a.log.Info("🚀 Starting vulnerability dashboard", "config", a.cfg.String())

	return srv.ListenAndServe(ctx)
}
