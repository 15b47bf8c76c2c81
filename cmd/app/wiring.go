package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/sehenaz/docsort/internal/ai"
	cfgpkg "github.com/sehenaz/docsort/internal/config"
	"github.com/sehenaz/docsort/internal/dispatcher"
	"github.com/sehenaz/docsort/internal/export"
	"github.com/sehenaz/docsort/internal/history"
	"github.com/sehenaz/docsort/internal/imagerender"
	"github.com/sehenaz/docsort/internal/ingest"
	"github.com/sehenaz/docsort/internal/pipeline"
	"github.com/sehenaz/docsort/internal/statuscheck"
	"github.com/sehenaz/docsort/internal/storage"
)

type sink interface {
	storage.Sink
	statuscheck.Pinger
}

// app holds the long-lived collaborators shared by every session.
type app struct {
	client  ai.Client
	deps    pipeline.Deps
	ledger  *history.Ledger
	sink    sink
	checker *statuscheck.Checker
}

func openLedger(ctx context.Context, cfg cfgpkg.Config) *history.Ledger {
	return history.Open(ctx, history.Options{
		RedisURL:    cfg.History.RedisURL,
		SQLitePath:  cfg.History.SQLitePath,
		Key:         cfg.History.Key,
		Limit:       cfg.History.Limit,
		DialTimeout: cfg.History.DialTimeout,
	})
}

func openSink(ctx context.Context, cfg cfgpkg.ExportConfig) (sink, error) {
	switch {
	case cfg.S3Bucket != "":
		return storage.NewS3Sink(ctx, storage.S3Options{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	case cfg.OutputDir != "":
		return storage.NewDirSink(cfg.OutputDir)
	}
	return nil, nil
}

func oracleKey(o cfgpkg.OracleConfig) string {
	switch o.Engine {
	case "openai":
		return o.OpenAIKey
	case "anthropic", "claude":
		return o.AnthropicKey
	default:
		return o.GeminiKey
	}
}

func newApp(ctx context.Context, cfg cfgpkg.Config) (*app, error) {
	client, err := ai.NewClient(cfg.Oracle.Engine, ai.Keys{
		OpenAI:    cfg.Oracle.OpenAIKey,
		Anthropic: cfg.Oracle.AnthropicKey,
		Gemini:    cfg.Oracle.GeminiKey,
	})
	if err != nil {
		return nil, err
	}

	s, err := openSink(ctx, cfg.Export)
	if err != nil {
		return nil, fmt.Errorf("export sink: %w", err)
	}
	var exportSink storage.Sink
	if s != nil {
		exportSink = s
	}

	color := imagerender.ColorRGB
	if cfg.Render.Grayscale {
		color = imagerender.ColorGray
	}
	renderer := imagerender.NewFitzRenderer(imagerender.Options{Quality: cfg.Render.Quality, ColorMode: color})

	ledger := openLedger(ctx, cfg)
	a := &app{
		client: client,
		deps: pipeline.Deps{
			Coordinator: ingest.NewCoordinator(renderer, ingest.Options{Scale: cfg.Render.Scale}),
			Client:      client,
			Ledger:      ledger,
			Exporter:    export.New(export.NewPDFWriter(), exportSink),
			Scheduler: dispatcher.Config{
				WindowSize: cfg.Oracle.WindowSize,
				Timeout:    cfg.Oracle.Timeout,
				Model:      cfg.Oracle.Model(),
			},
		},
		ledger: ledger,
		sink:   s,
	}

	opts := statuscheck.Options{Ledger: ledger, Engine: client.Name(), OracleKey: oracleKey(cfg.Oracle)}
	if s != nil {
		opts.Sink = s
	}
	a.checker = statuscheck.New(opts)

	log.Info().
		Str("engine", client.Name()).
		Str("model", cfg.Oracle.Model()).
		Bool("history_degraded", ledger.Degraded()).
		Bool("sink", s != nil).
		Msg("docsort initialised")
	return a, nil
}

func (a *app) Close() {
	if c, ok := a.client.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Str("engine", a.client.Name()).Msg("close oracle client")
		}
	}
	if err := a.ledger.Close(); err != nil {
		log.Warn().Err(err).Msg("close history ledger")
	}
}
