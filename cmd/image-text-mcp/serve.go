package main

import (
	"github.com/spf13/cobra"

	"github.com/ironsheep/image-text-mcp/internal/httpapi"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the HTTP API:

  POST /v1/extract    multipart field "image" (plus "languages", "policy")
                      or a raw image body; add ?format=text for a download
  GET  /v1/languages  supported languages
  GET  /health        liveness
  GET  /metrics       Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, flags.appOptions())
			if err != nil {
				return err
			}
			defer a.close()

			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			api := httpapi.New(httpapi.Options{
				Orchestrator: a.orchestrator,
				Config:       a.cfg,
				Metrics:      a.metrics,
				Gatherer:     a.registry,
				Logger:       a.log,
				Version:      Version,
			})
			return api.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from IMAGE_TEXT_HTTP_ADDR or :8085)")
	return cmd
}
