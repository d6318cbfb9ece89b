package validation

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/rs/zerolog"

	"github.com/arkilian/sortcheck/internal/errors"
	"github.com/arkilian/sortcheck/internal/reader"
)

// fileResult counts what a successful file validation looked at.
type fileResult struct {
	batches int64
	rows    int64
}

// ValidateFile checks that the rows of a local file are non-decreasing by
// their first keyLen columns.
func ValidateFile(ctx context.Context, r Reader, file string, keyLen int, opts ...Option) error {
	o := newOptions(opts)
	_, err := validateFile(ctx, r, file, keyLen, o.logger)
	return err
}

// ValidateStream checks an already opened batch stream. file only labels diagnostics.
func ValidateStream(ctx context.Context, stream reader.BatchStream, file string, keyLen int, opts ...Option) error {
	o := newOptions(opts)
	_, err := validateStream(ctx, stream, file, keyLen, o.logger)
	return err
}

func validateFile(ctx context.Context, r Reader, file string, keyLen int, logger zerolog.Logger) (fileResult, error) {
	if keyLen < 0 {
		return fileResult{}, invalidKeyLen(keyLen)
	}

	stream, err := r.Open(ctx, file)
	if err != nil {
		return fileResult{}, err
	}
	defer stream.Close()

	return validateStream(ctx, stream, file, keyLen, logger)
}

func validateStream(ctx context.Context, stream reader.BatchStream, file string, keyLen int, logger zerolog.Logger) (fileResult, error) {
	if keyLen < 0 {
		return fileResult{}, invalidKeyLen(keyLen)
	}

	log := logger.With().Str("file", file).Logger()
	log.Info().Int("key_len", keyLen).Msg("validating file")

	p := NewPeekable(stream)
	defer p.Release()

	var res fileResult
	for {
		b, err := p.Next(ctx)
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, err
		}

		err = checkBatch(ctx, p, b, file, keyLen, int(res.batches), res.rows)
		rows := b.NumRows()
		b.Release()
		if err != nil {
			var unsorted *UnsortedDataError
			if stderrors.As(err, &unsorted) {
				log.Error().
					Int("batch", unsorted.Batch).
					Int("row", unsorted.Row).
					Int64("file_row", unsorted.FileRow).
					Bool("between_batches", unsorted.BetweenBatches).
					Str("prev", unsorted.Prev).
					Str("next", unsorted.Next).
					Msg("unsorted data")
			}
			return res, err
		}

		res.batches++
		res.rows += rows
	}

	log.Info().Int64("batches", res.batches).Int64("rows", res.rows).Msg("file ok")
	return res, nil
}

// checkBatch verifies the rows of b and the boundary between b and the next
// non-empty batch. fileRow is the file position of b's first row.
func checkBatch(ctx context.Context, p *Peekable, b arrow.Record, file string, keyLen, batch int, fileRow int64) error {
	key, err := keyColumns(b, keyLen, file)
	if err != nil {
		return err
	}

	n := int(b.NumRows())
	for i := 1; i < n; i++ {
		if CompareRows(key, i, key, i-1) < 0 {
			return &UnsortedDataError{
				File:    file,
				Batch:   batch,
				Row:     i,
				FileRow: fileRow + int64(i),
				Prev:    DisplayRow(key, i-1),
				Next:    DisplayRow(key, i),
			}
		}
	}

	next, err := p.Peek(ctx)
	if stderrors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}

	nextKey, err := keyColumns(next, keyLen, file)
	if err != nil {
		return err
	}
	if CompareRows(nextKey, 0, key, n-1) < 0 {
		return &UnsortedDataError{
			File:           file,
			Batch:          batch + 1,
			Row:            0,
			FileRow:        fileRow + int64(n),
			BetweenBatches: true,
			Prev:           DisplayRow(key, n-1),
			Next:           DisplayRow(nextKey, 0),
		}
	}
	return nil
}

// keyColumns returns the leading keyLen columns of b after checking they can be ordered.
func keyColumns(b arrow.Record, keyLen int, file string) ([]arrow.Array, error) {
	if keyLen > int(b.NumCols()) {
		return nil, errors.NewParseError(errors.CodeMalformedFile,
			fmt.Sprintf("%s has %d columns but the sort key needs %d", file, b.NumCols(), keyLen), nil)
	}
	cols := b.Columns()[:keyLen]
	for i, col := range cols {
		if !Comparable(col.DataType()) {
			return nil, errors.NewParseError(errors.CodeUnsupportedType,
				fmt.Sprintf("%s: key column %s has unsupported type %s", file, b.ColumnName(i), col.DataType()), nil)
		}
	}
	return cols, nil
}

func invalidKeyLen(keyLen int) error {
	return errors.NewValidationError(errors.CodeInvalidKeyLen,
		fmt.Sprintf("sort key length must not be negative, got %d", keyLen))
}
