// Package app wires configuration, the metastore, storage and the validators
// into a single validation run.
package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arkilian/sortcheck/internal/config"
	"github.com/arkilian/sortcheck/internal/metastore"
	"github.com/arkilian/sortcheck/internal/observability"
	"github.com/arkilian/sortcheck/internal/reader"
	"github.com/arkilian/sortcheck/internal/remotefs"
	"github.com/arkilian/sortcheck/internal/storage"
	"github.com/arkilian/sortcheck/internal/validation"
)

// App holds the shared resources of a validation run.
type App struct {
	cfg    *config.Config
	logger zerolog.Logger

	storage storage.ObjectStorage
	catalog *metastore.SQLiteCatalog
	fs      *remotefs.Materializer
	reader  *reader.Dispatcher
}

// New creates an App with the given configuration.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	// Resolve paths and validate
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Ensure directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		reader: reader.NewDispatcher(reader.Config{BatchSize: cfg.Reader.BatchSize}),
	}
	if err := a.initSharedResources(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// initSharedResources initializes storage, the metastore catalog and the materializer.
func (a *App) initSharedResources(ctx context.Context) error {
	var err error

	// Initialize storage
	switch a.cfg.Storage.Type {
	case config.StorageNone:
	case config.StorageLocal:
		var local *storage.LocalStorage
		if local, err = storage.NewLocalStorage(a.cfg.Storage.Path); err == nil {
			a.storage = local
		}
	case config.StorageS3:
		s3Cfg := storage.DefaultS3Config()
		if a.cfg.Storage.S3.Region != "" {
			s3Cfg.Region = a.cfg.Storage.S3.Region
		}
		s3Cfg.Endpoint = a.cfg.Storage.S3.Endpoint
		s3Cfg.UsePathStyle = a.cfg.Storage.S3.UsePathStyle

		var s3Store *storage.S3Storage
		if s3Store, err = storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, s3Cfg); err == nil {
			a.storage = s3Store
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.logger.Debug().
		Str("type", a.cfg.Storage.Type).
		Str("bucket", a.cfg.Storage.S3.Bucket).
		Str("path", a.cfg.Storage.Path).
		Msg("storage initialized")

	// Open the metastore catalog; validation never writes to it
	a.catalog, err = metastore.OpenCatalogReadOnly(ctx, a.cfg.Metastore.Path)
	if err != nil {
		return fmt.Errorf("failed to open metastore catalog: %w", err)
	}
	a.logger.Debug().Str("path", a.cfg.Metastore.Path).Msg("metastore catalog initialized")

	a.fs, err = remotefs.New(remotefs.Config{
		LocalDir:            a.cfg.Local.Dir,
		Compression:         remotefs.Compression(a.cfg.Storage.Compression),
		MaxCacheBytes:       a.cfg.Local.MaxCacheBytes,
		DownloadConcurrency: a.cfg.Storage.DownloadConcurrency,
	}, a.storage, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize local files: %w", err)
	}
	return nil
}

// Validate checks every file of every index of schema.table and returns the
// first error found. The returned stats are valid even when err is not nil.
func (a *App) Validate(ctx context.Context, schema, table string) (*observability.RunStats, error) {
	log := a.logger.With().Str("run_id", uuid.New().String()).Logger()
	stats := observability.NewRunStats()

	v := validation.NewTableValidator(a.catalog, a.fs, a.reader,
		validation.WithLogger(log),
		validation.WithStats(stats),
		validation.WithParallelism(a.cfg.Validation.Parallelism),
		validation.WithPrefetch(a.cfg.Validation.Prefetch),
	)

	log.Info().Str("schema", schema).Str("table", table).Msg("validating table")
	if err := v.ValidateTable(ctx, schema, table); err != nil {
		return stats, err
	}

	totals := stats.Totals()
	log.Info().
		Str("schema", schema).
		Str("table", table).
		Int("indexes", len(stats.Snapshot())).
		Int64("files", totals.Files).
		Int64("batches", totals.Batches).
		Int64("rows", totals.Rows).
		Dur("elapsed", stats.Elapsed()).
		Msg("table ok")
	return stats, nil
}

// Close releases all shared resources.
func (a *App) Close() error {
	if a.catalog != nil {
		err := a.catalog.Close()
		a.catalog = nil
		return err
	}
	return nil
}
