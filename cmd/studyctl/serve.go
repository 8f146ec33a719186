package main

import (
	"github.com/spf13/cobra"

	"pkt.systems/pslog"

	"studysync/internal/bootstrap"
	"studysync/internal/httpapi"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tutor HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := buildServices(cmd, bootstrap.WithRuntimeMetrics())
			if err != nil {
				return err
			}
			cfg := services.Config
			if addr == "" {
				addr = cfg.HTTP.Addr
			}

			deps := httpapi.Deps{
				Requests:  services.Requests,
				Log:       pslog.Ctx(cmd.Context()),
				MaxImages: cfg.Request.MaxImages,
			}
			if services.Synthesizer != nil {
				deps.Synthesizer = services.Synthesizer
			}
			if cfg.HTTP.Metrics {
				deps.Metrics = services.Metrics.Handler()
			}

			deps.Log.Info("http api listening", "addr", addr, "metrics", cfg.HTTP.Metrics)
			return httpapi.Serve(cmd.Context(), httpapi.New(deps), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to STUDYSYNC_HTTP_ADDR)")
	return cmd
}
