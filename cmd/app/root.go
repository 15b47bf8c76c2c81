package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cfgpkg "github.com/sehenaz/docsort/internal/config"
	logpkg "github.com/sehenaz/docsort/internal/logger"
	"github.com/sehenaz/docsort/internal/metrics"
)

func newRootCmd() *cobra.Command {
	var cfg cfgpkg.Config

	cmd := &cobra.Command{
		Use:   "docsort",
		Short: "Split, classify and export scanned loan document bundles",
		Long: `docsort rasterizes uploaded PDFs page by page, labels every page with a
vision model and exports the pages merged, split per document type, or as images.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional
			_ = godotenv.Load()
			cfg = cfgpkg.FromEnv()
			metrics.Init()
			return logpkg.Init(logpkg.Options{
				Level:        cfg.Logging.Level,
				Pretty:       cfg.Logging.Pretty,
				File:         cfg.Logging.File,
				MaxSizeMB:    cfg.Logging.MaxSizeMB,
				MaxBackups:   cfg.Logging.MaxBackups,
				MaxAgeDays:   cfg.Logging.MaxAgeDays,
				Compress:     cfg.Logging.Compress,
				SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
				AxiomAPIKey:  cfg.Axiom.APIKey,
				AxiomOrgID:   cfg.Axiom.OrgID,
				AxiomDataset: cfg.Axiom.Dataset,
				AxiomFlush:   cfg.Axiom.FlushInterval,
			})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logpkg.Close()
		},
	}

	cmd.AddCommand(newServeCmd(&cfg), newRunCmd(&cfg), newHistoryCmd(&cfg))
	return cmd
}
