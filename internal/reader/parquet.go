package reader

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/arkilian/sortcheck/internal/errors"
)

// parquetStream reads every row group of a Parquet file through a single
// record reader, so batches come back in file order.
type parquetStream struct {
	path string
	pf   *file.Reader
	rr   pqarrow.RecordReader
}

// OpenParquet opens a Parquet file for sequential batch reads.
func OpenParquet(ctx context.Context, path string, cfg Config) (BatchStream, error) {
	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewStorageError(errors.CodeReadFailed,
				fmt.Sprintf("failed to open %s", path), err)
		}
		return nil, errors.NewParseError(errors.CodeMalformedFile,
			fmt.Sprintf("failed to read parquet footer of %s", path), err)
	}

	// One sequence in file order; the order check depends on it.
	props := pqarrow.ArrowReadProperties{
		Parallel:  false,
		BatchSize: int64(cfg.batchSize()),
	}
	fr, err := pqarrow.NewFileReader(pf, props, cfg.allocator())
	if err != nil {
		pf.Close()
		return nil, errors.NewParseError(errors.CodeMalformedFile,
			fmt.Sprintf("failed to map parquet schema of %s", path), err)
	}

	rr, err := fr.GetRecordReader(ctx, nil, nil)
	if err != nil {
		pf.Close()
		return nil, errors.NewParseError(errors.CodeMalformedFile,
			fmt.Sprintf("failed to create record reader for %s", path), err)
	}

	return &parquetStream{path: path, pf: pf, rr: rr}, nil
}

func (s *parquetStream) Next(ctx context.Context) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !s.rr.Next() {
		if err := s.rr.Err(); err != nil && !stderrors.Is(err, io.EOF) {
			return nil, errors.NewParseError(errors.CodeMalformedFile,
				fmt.Sprintf("failed to decode %s", s.path), err)
		}
		return nil, io.EOF
	}

	// The reader reuses its current record on the next call.
	rec := s.rr.Record()
	rec.Retain()
	return rec, nil
}

func (s *parquetStream) Close() error {
	s.rr.Release()
	return s.pf.Close()
}
