package validation

import (
	"fmt"

	"github.com/arkilian/sortcheck/internal/errors"
)

// UnsortedDataError reports the first pair of rows found out of order in a file.
type UnsortedDataError struct {
	// File is the local path of the file being validated
	File string

	// Batch is the index (among non-empty batches) of the batch holding the later row
	Batch int

	// Row is the position of the later row inside Batch
	Row int

	// FileRow is the position of the later row counted from the start of the file
	FileRow int64

	// BetweenBatches is set when the pair straddles two batches
	BetweenBatches bool

	// Prev and Next render the keys of the earlier and later row
	Prev string
	Next string
}

func (e *UnsortedDataError) Error() string {
	if e.BetweenBatches {
		return fmt.Sprintf("unsorted data in %s between batches %d and %d (file row %d): %s and %s",
			e.File, e.Batch-1, e.Batch, e.FileRow, e.Prev, e.Next)
	}
	return fmt.Sprintf("unsorted data in %s at row %d of batch %d (file row %d): %s and %s",
		e.File, e.Row, e.Batch, e.FileRow, e.Prev, e.Next)
}

// Unwrap exposes the structured VALIDATION/UNSORTED_DATA error so callers can
// match it with errors.Is or errors.GetCode.
func (e *UnsortedDataError) Unwrap() error {
	return errors.NewValidationError(errors.CodeUnsortedData, "unsorted data in partition").
		WithDetails(map[string]interface{}{
			"file":     e.File,
			"batch":    e.Batch,
			"row":      e.Row,
			"file_row": e.FileRow,
			"prev":     e.Prev,
			"next":     e.Next,
		})
}
