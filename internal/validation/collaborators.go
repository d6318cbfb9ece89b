package validation

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/arkilian/sortcheck/internal/observability"
	"github.com/arkilian/sortcheck/internal/reader"
	"github.com/arkilian/sortcheck/pkg/types"
)

// Catalog is the read-only view of the metastore the table validator needs.
type Catalog interface {
	// GetTable resolves a table by schema and name.
	GetTable(ctx context.Context, schema, name string) (*types.Table, error)

	// GetTableIndexes returns every index of a table.
	GetTableIndexes(ctx context.Context, tableID int64) ([]types.Index, error)

	// GetActivePartitionsAndChunks returns, for each index ID in order, the
	// active partitions of that index paired with their chunks.
	GetActivePartitionsAndChunks(ctx context.Context, indexIDs []int64) ([][]types.PartitionChunks, error)
}

// Materializer makes a remote file available on local disk. A path returned
// by LocalFile stays valid until Release is called for the same remote path.
type Materializer interface {
	LocalFile(ctx context.Context, remotePath string) (string, error)
	Release(remotePath string)
}

// Prefetcher is implemented by materializers that can fetch many files at once.
type Prefetcher interface {
	Prefetch(ctx context.Context, remotePaths []string) error
}

// Reader opens a local file as a stream of record batches.
type Reader interface {
	Open(ctx context.Context, localPath string) (reader.BatchStream, error)
}

// Option configures validation.
type Option func(*options)

type options struct {
	logger      zerolog.Logger
	stats       *observability.RunStats
	parallelism int
	prefetch    bool
}

func newOptions(opts []Option) options {
	o := options{
		logger:      zerolog.Nop(),
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for progress and diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStats collects per-index counters of validated files, batches and rows.
func WithStats(stats *observability.RunStats) Option {
	return func(o *options) {
		o.stats = stats
	}
}

// WithParallelism validates up to n files of the same index concurrently.
// Values below 2 keep validation strictly sequential.
func WithParallelism(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.parallelism = n
	}
}

// WithPrefetch downloads every file of an index before validating it when the
// materializer supports it. Prefetch failures are logged and the files are
// fetched again one at a time.
func WithPrefetch(enabled bool) Option {
	return func(o *options) {
		o.prefetch = enabled
	}
}
