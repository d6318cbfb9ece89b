// Package main implements the sortcheck binary, which checks that every
// partition and chunk file of a table is sorted by its index's sort key.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/arkilian/sortcheck/internal/app"
	"github.com/arkilian/sortcheck/internal/config"
	"github.com/arkilian/sortcheck/internal/errors"
	"github.com/arkilian/sortcheck/internal/observability"
)

const usage = "Usage: sortcheck <schema> <table>\n\nUse SORTCHECK_* environment variables or SORTCHECK_CONFIG for configuration.\n"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one validation and returns the process exit code. A table
// that fails validation, including one whose metastore cannot be opened, is
// reported in the log and still exits 0. Only an unusable configuration or
// storage setup exits non-zero.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) != 2 {
		fmt.Fprint(stdout, usage)
		return 0
	}
	schema, table := args[0], args[1]

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	logger, err := observability.NewLogger(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)
		return 1
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		// An unreachable metastore means the table cannot be validated.
		if errors.GetCategory(err) == errors.ErrCategoryCatalog {
			logger.Error().Err(err).Str("schema", schema).Str("table", table).Msg("validation failed")
			return 0
		}
		logger.Error().Err(err).Msg("failed to create application")
		return 1
	}
	defer application.Close()

	if _, err := application.Validate(ctx, schema, table); err != nil {
		logger.Error().Err(err).Str("schema", schema).Str("table", table).Msg("validation failed")
	}
	return 0
}

