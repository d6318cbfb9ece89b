// Package reader opens partition and chunk files and streams their rows as
// arrow record batches, one batch at a time and in file order.
package reader

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/arkilian/sortcheck/internal/errors"
	"github.com/arkilian/sortcheck/pkg/types"
)

// DefaultBatchSize is the number of rows per batch when none is configured.
const DefaultBatchSize = 4096

// BatchStream is a single, in-order sequence of record batches read from one file.
type BatchStream interface {
	// Next returns the next batch, or io.EOF once the file is exhausted.
	// The caller owns the returned record and must Release it.
	Next(ctx context.Context) (arrow.Record, error)

	// Close releases the underlying file handles.
	Close() error
}

// Config controls how files are decoded.
type Config struct {
	// BatchSize is the maximum number of rows per batch
	BatchSize int

	// Allocator backs every array built by the readers (default: memory.DefaultAllocator)
	Allocator memory.Allocator
}

func (c Config) batchSize() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

func (c Config) allocator() memory.Allocator {
	if c.Allocator == nil {
		return memory.DefaultAllocator
	}
	return c.Allocator
}

// Dispatcher picks the reader for a local file from its extension.
type Dispatcher struct {
	cfg Config
}

// NewDispatcher creates a reader that understands every supported file format.
func NewDispatcher(cfg Config) *Dispatcher {
	return &Dispatcher{cfg: cfg}
}

// Open starts streaming the file at localPath.
func (d *Dispatcher) Open(ctx context.Context, localPath string) (BatchStream, error) {
	format, ok := types.FormatFromPath(localPath)
	if !ok {
		return nil, errors.NewParseError(errors.CodeUnsupportedFormat,
			fmt.Sprintf("unsupported file format: %s", localPath), nil)
	}

	switch format {
	case types.FormatSQLite:
		return OpenSQLite(ctx, localPath, d.cfg)
	default:
		return OpenParquet(ctx, localPath, d.cfg)
	}
}

// recordStream serves batches that are already in memory.
type recordStream struct {
	records []arrow.Record
	pos     int
}

// NewRecordStream returns a stream over in-memory records. Ownership of the
// records passes to the stream and from there to whoever calls Next.
func NewRecordStream(records ...arrow.Record) BatchStream {
	return &recordStream{records: records}
}

func (s *recordStream) Next(ctx context.Context) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	rec := s.records[s.pos]
	s.records[s.pos] = nil
	s.pos++
	return rec, nil
}

func (s *recordStream) Close() error {
	for i := s.pos; i < len(s.records); i++ {
		if s.records[i] != nil {
			s.records[i].Release()
			s.records[i] = nil
		}
	}
	s.pos = len(s.records)
	return nil
}
