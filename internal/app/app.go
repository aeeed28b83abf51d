// Package app assembles the services shared by the API server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/categorizer"
	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/followup"
	"github.com/dvloznov/finance-dashboard/internal/gcsuploader"
	infraBQ "github.com/dvloznov/finance-dashboard/internal/infra/bigquery"
	"github.com/dvloznov/finance-dashboard/internal/infra/sqlite"
	"github.com/dvloznov/finance-dashboard/internal/pipeline"
	"github.com/rs/zerolog"
)

// App holds the long-lived clients. Optional integrations are nil when
// disabled by configuration.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Store    *sqlite.Store
	Ingestor *pipeline.Ingestor

	Storage     *gcsuploader.GCSStorageService
	Archiver    *gcsuploader.Archiver
	Exporter    *infraBQ.Exporter
	Categorizer *categorizer.Service

	closers []func() error
}

// New opens the database, applies migrations and creates the clients
// enabled in cfg.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}
	a.Store = sqlite.NewStore(db)
	a.closers = append(a.closers, a.Store.Close)

	if err := sqlite.RunMigrations(db); err != nil {
		a.Close()
		return nil, fmt.Errorf("New: %w", err)
	}
	if cfg.Database.SeedTaxonomy {
		if err := a.Store.SeedDefaults(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("New: seeding taxonomy: %w", err)
		}
	}
	log.Info().Str("path", cfg.Database.Path).Msg("Database ready")

	a.Ingestor = pipeline.NewIngestor(a.Store, pipeline.Options{ReconcileMPPB: cfg.Ingest.ReconcileMPPB})

	if cfg.ArchiveEnabled() {
		svc, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("New: %w", err)
		}
		a.Storage = svc
		a.Archiver = gcsuploader.NewArchiver(svc, cfg.GCS.Bucket)
		a.closers = append(a.closers, svc.Close)
		log.Info().Str("bucket", cfg.GCS.Bucket).Msg("Upload archiving enabled")
	} else {
		log.Warn().Msg("No GCS bucket configured - upload archiving disabled")
	}

	if cfg.ExportEnabled() {
		exp, err := infraBQ.NewExporter(ctx, infraBQ.TableRef{
			Project: cfg.BigQuery.Project,
			Dataset: cfg.BigQuery.Dataset,
			Table:   cfg.BigQuery.Table,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("New: %w", err)
		}
		a.closers = append(a.closers, exp.Close)
		if err := exp.EnsureTable(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("New: %w", err)
		}
		a.Exporter = exp
		log.Info().Str("project", cfg.BigQuery.Project).Str("table", cfg.BigQuery.Table).Msg("BigQuery export enabled")
	}

	if cfg.AI.Enabled {
		suggester, err := categorizer.NewGeminiSuggester(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("New: %w", err)
		}
		a.Categorizer = categorizer.NewService(a.Store, suggester)
		log.Info().Str("model", cfg.AI.Model).Msg("AI categorization enabled")
	}

	return a, nil
}

// FollowupTargets returns the configured exporter and categorizer as
// interfaces, leaving them untyped nil when disabled.
func (a *App) FollowupTargets() (followup.Exporter, followup.Categorizer) {
	var exp followup.Exporter
	var cat followup.Categorizer
	if a.Exporter != nil {
		exp = a.Exporter
	}
	if a.Categorizer != nil {
		cat = a.Categorizer
	}
	return exp, cat
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Error().Err(err).Msg("Failed to close client")
		}
	}
	a.closers = nil
}
