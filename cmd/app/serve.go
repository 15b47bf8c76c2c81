package main

import (
	"net/http"

	"github.com/spf13/cobra"

	cfgpkg "github.com/sehenaz/docsort/internal/config"
	"github.com/sehenaz/docsort/internal/orchestrator"
	"github.com/sehenaz/docsort/internal/pipeline"
)

func newServeCmd(cfg *cfgpkg.Config) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Example: `  # Listen on $PORT (default 8080)
  docsort serve

  # Custom port
  docsort serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if port == "" {
				port = cfg.Server.Port
			}
			orch := orchestrator.New(orchestrator.Dependencies{
				Sessions:    pipeline.NewRegistry(a.deps),
				Ledger:      a.ledger,
				Status:      a.checker,
				BaseContext: ctx,
				MaxUploadMB: cfg.Server.MaxUploadMB,
			})
			mux := http.NewServeMux()
			orch.RegisterRoutes(mux)

			srv := &http.Server{
				Addr:         ":" + port,
				Handler:      mux,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}
			return orchestrator.Serve(ctx, srv)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides PORT)")
	return cmd
}
