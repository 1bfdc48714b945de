package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/toolscope/internal/api"
	"github.com/matiasleandrokruk/toolscope/internal/domain/tool"
	"github.com/matiasleandrokruk/toolscope/internal/infra/config"
	"github.com/matiasleandrokruk/toolscope/internal/infra/eventbus"
	"github.com/matiasleandrokruk/toolscope/internal/infra/metrics"
	"github.com/matiasleandrokruk/toolscope/internal/infra/sqlite"
	"github.com/matiasleandrokruk/toolscope/internal/server"
	"github.com/matiasleandrokruk/toolscope/pkg/auth"
)

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the catalog HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	if err := auth.CheckJWTSecret(); err != nil {
		return fmt.Errorf("%w (run `toolscope env init` to generate one)", err)
	}

	db, err := sqlite.Open(a.cfg.DBPath, a.logger)
	if err != nil {
		return err
	}

	collector := metrics.New()
	bus := eventbus.New()
	defer bus.Close()
	go logEvents(a.logger, bus.Subscribe(tool.TopicSourceSynced), bus.Subscribe(tool.TopicKeywordsReloaded))

	classifier := tool.NewClassifier(a.logger, tool.WithRecorder(collector))
	if a.cfg.KeywordsFile != "" {
		watcher, err := watchKeywords(ctx, a, classifier, bus)
		if err != nil {
			db.Close()
			return err
		}
		defer watcher.Close()
	}

	registry := tool.NewToolRegistry(db, classifier)
	router := api.NewRouter(api.Deps{
		DB:         db,
		Classifier: classifier,
		Registry:   registry,
		Sync:       tool.NewSyncService(registry, bus, a.logger).WithObserver(collector),
		Metrics:    collector,
		Sources:    api.SourcePolicy{MCPCommands: a.cfg.MCPCommands, FileRoot: a.cfg.SourcesRoot},
		Logger:     a.logger,
	})

	cfg := server.DefaultConfig()
	cfg.Addr = a.cfg.Addr()
	return server.NewServer(router, db, cfg, a.logger).Run(ctx)
}

// watchKeywords applies the keywords file once, then on every valid edit.
func watchKeywords(ctx context.Context, a *app, classifier *tool.Classifier, bus *eventbus.Bus) (*config.KeywordsWatcher, error) {
	apply := func(k config.Keywords) error {
		if err := classifier.SetKeywords(k.Search, k.Action); err != nil {
			return err
		}
		bus.Publish(tool.TopicKeywordsReloaded, k)
		return nil
	}

	initial, err := config.LoadKeywords(a.cfg.KeywordsFile)
	if err != nil {
		return nil, err
	}
	if err := apply(initial); err != nil {
		return nil, fmt.Errorf("apply keywords file: %w", err)
	}

	watcher, err := config.NewKeywordsWatcher(a.cfg.KeywordsFile, a.logger, apply)
	if err != nil {
		return nil, err
	}
	if err := watcher.Start(ctx); err != nil {
		watcher.Close()
		return nil, err
	}
	return watcher, nil
}

// logEvents runs until the bus is closed.
func logEvents(logger zerolog.Logger, synced, reloaded <-chan eventbus.Event) {
	logger = logger.With().Str("component", "events").Logger()
	for synced != nil || reloaded != nil {
		select {
		case evt, ok := <-synced:
			if !ok {
				synced = nil
				continue
			}
			if p, ok := evt.Payload.(tool.SourceSyncedEvent); ok {
				logger.Info().Str("source_id", p.SourceID).Int("total", p.Total).Int("search", p.Search).Msg("source synced")
			}
		case _, ok := <-reloaded:
			if !ok {
				reloaded = nil
				continue
			}
			logger.Info().Msg("keyword vocabularies reloaded")
		}
	}
}
