package validation

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/sortcheck/internal/errors"
	"github.com/arkilian/sortcheck/internal/reader"
)

// validate runs ValidateStream over the given batches and checks that every
// batch was released afterwards.
func validate(t *testing.T, mem *memory.CheckedAllocator, keyLen int, batches ...arrow.Record) error {
	t.Helper()
	stream := reader.NewRecordStream(batches...)
	err := ValidateStream(context.Background(), stream, "1.parquet", keyLen)
	require.NoError(t, stream.Close())
	mem.AssertSize(t, 0)
	return err
}

func requireUnsorted(t *testing.T, err error) *UnsortedDataError {
	t.Helper()
	require.Error(t, err)
	var unsorted *UnsortedDataError
	require.True(t, stderrors.As(err, &unsorted), "expected UnsortedDataError, got %v", err)
	assert.Equal(t, errors.ErrCategoryValidation, errors.GetCategory(err))
	assert.Equal(t, errors.CodeUnsortedData, errors.GetCode(err))
	return unsorted
}

func TestValidateStream_SingleSortedBatch(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	err := validate(t, mem, 1, ints(mem, 1, 2, 2, 3))
	assert.NoError(t, err)
}

func TestValidateStream_NoBatches(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	assert.NoError(t, validate(t, mem, 1))
}

func TestValidateStream_IntraBatchViolation(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	err := validate(t, mem, 1, ints(mem, 1, 3, 2))

	u := requireUnsorted(t, err)
	assert.Equal(t, "1.parquet", u.File)
	assert.Equal(t, 0, u.Batch)
	assert.Equal(t, 2, u.Row)
	assert.Equal(t, int64(2), u.FileRow)
	assert.False(t, u.BetweenBatches)
	assert.Equal(t, "[[3]]", u.Prev)
	assert.Equal(t, "[[2]]", u.Next)
	assert.Contains(t, err.Error(), "row 2 of batch 0")
}

func TestValidateStream_ViolationInLaterBatch(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	err := validate(t, mem, 1, ints(mem, 1, 2), ints(mem, 3, 5, 4))

	u := requireUnsorted(t, err)
	assert.Equal(t, 1, u.Batch)
	assert.Equal(t, 2, u.Row)
	assert.Equal(t, int64(4), u.FileRow)
}

func TestValidateStream_CrossBatchViolation(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	err := validate(t, mem, 1, ints(mem, 1, 3), ints(mem, 2))

	u := requireUnsorted(t, err)
	assert.True(t, u.BetweenBatches)
	assert.Equal(t, 1, u.Batch)
	assert.Equal(t, 0, u.Row)
	assert.Equal(t, int64(2), u.FileRow)
	assert.Equal(t, "[[3]]", u.Prev)
	assert.Equal(t, "[[2]]", u.Next)
	assert.Contains(t, err.Error(), "between batches 0 and 1")
}

func TestValidateStream_EqualKeysAcrossBatches(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	err := validate(t, mem, 1, ints(mem, 1, 2), ints(mem, 2, 3))
	assert.NoError(t, err)
}

func TestValidateStream_EmptyBatchesAreSkipped(t *testing.T) {
	t.Run("sorted", func(t *testing.T) {
		mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
		err := validate(t, mem, 1, ints(mem), ints(mem, 1, 2), ints(mem), ints(mem), ints(mem, 2, 3), ints(mem))
		assert.NoError(t, err)
	})

	t.Run("unsorted", func(t *testing.T) {
		mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
		err := validate(t, mem, 1, ints(mem, 1, 3), ints(mem), ints(mem, 2))

		u := requireUnsorted(t, err)
		assert.True(t, u.BetweenBatches)
		assert.Equal(t, 1, u.Batch, "empty batches are not counted")
		assert.Equal(t, int64(2), u.FileRow)
	})
}

func TestValidateStream_ZeroKeyLenAlwaysPasses(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	err := validate(t, mem, 0, ints(mem, 5, 1), ints(mem, 0))
	assert.NoError(t, err)
}

func TestValidateStream_NegativeKeyLen(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	err := validate(t, mem, -1, ints(mem, 1))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCategoryValidation, errors.GetCategory(err))
	assert.Equal(t, errors.CodeInvalidKeyLen, errors.GetCode(err))
}

func TestValidateStream_KeyLongerThanBatch(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	err := validate(t, mem, 3, ints(mem, 1, 2))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCategoryParse, errors.GetCategory(err))
	assert.Equal(t, errors.CodeMalformedFile, errors.GetCode(err))
}

func TestValidateStream_UnsupportedKeyType(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "tags", Type: arrow.ListOf(arrow.PrimitiveTypes.Int64)},
	}, nil)
	b := array.NewRecordBuilder(mem, schema)
	lb := b.Field(0).(*array.ListBuilder)
	lb.Append(true)
	lb.ValueBuilder().(*array.Int64Builder).Append(1)
	rec := b.NewRecord()
	b.Release()

	err := validate(t, mem, 1, rec)
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnsupportedType, errors.GetCode(err))
}

func TestValidateStream_CompositeKey(t *testing.T) {
	t.Run("second column breaks ties", func(t *testing.T) {
		mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
		err := validate(t, mem, 2, pairs(mem, pair{1, "a"}, pair{1, "b"}, pair{2, "a"}))
		assert.NoError(t, err)
	})

	t.Run("violation in second column", func(t *testing.T) {
		mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
		err := validate(t, mem, 2, pairs(mem, pair{1, "b"}, pair{1, "a"}))

		u := requireUnsorted(t, err)
		assert.Equal(t, 1, u.Row)
		assert.Equal(t, `[[1] ["b"]]`, u.Prev)
		assert.Equal(t, `[[1] ["a"]]`, u.Next)
	})

	t.Run("columns past the key are ignored", func(t *testing.T) {
		mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
		err := validate(t, mem, 1, pairs(mem, pair{1, "b"}, pair{1, "a"}))
		assert.NoError(t, err)
	})
}

func TestValidateStream_NullsSortFirst(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	assert.NoError(t, validate(t, mem, 1, intBatch(mem, nil, nil, i64(1))))

	mem = memory.NewCheckedAllocator(memory.NewGoAllocator())
	u := requireUnsorted(t, validate(t, mem, 1, intBatch(mem, i64(1)), intBatch(mem, nil)))
	assert.True(t, u.BetweenBatches)
}

func TestValidateStream_ReadErrorIsReturned(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	readErr := errors.NewParseError(errors.CodeMalformedFile, "bad page", nil)
	stream := &failingStream{records: []arrow.Record{ints(mem, 1, 2)}, err: readErr}

	err := ValidateStream(context.Background(), stream, "2.parquet", 1)
	require.NoError(t, stream.Close())
	mem.AssertSize(t, 0)

	assert.ErrorIs(t, err, readErr)
}

func TestValidateStream_LogsViolation(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	stream := reader.NewRecordStream(ints(mem, 4, 3))
	err := ValidateStream(context.Background(), stream, "7.parquet", 1, WithLogger(logger))
	require.NoError(t, stream.Close())
	requireUnsorted(t, err)

	out := buf.String()
	assert.Contains(t, out, `"message":"unsorted data"`)
	assert.Contains(t, out, `"file":"7.parquet"`)
	assert.Contains(t, out, `"file_row":1`)
	assert.Contains(t, out, `"prev":"[[4]]"`)
	assert.NotContains(t, out, "file ok")
}

type streamReader struct {
	stream *closeTracker
	path   string
}

type closeTracker struct {
	reader.BatchStream
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return c.BatchStream.Close()
}

func (r *streamReader) Open(ctx context.Context, localPath string) (reader.BatchStream, error) {
	r.path = localPath
	return r.stream, nil
}

func TestValidateFile_OpensAndClosesStream(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	r := &streamReader{stream: &closeTracker{BatchStream: reader.NewRecordStream(ints(mem, 9, 1), ints(mem, 2))}}

	err := ValidateFile(context.Background(), r, "/tmp/local/3.chunk.parquet", 1)
	requireUnsorted(t, err)

	assert.Equal(t, "/tmp/local/3.chunk.parquet", r.path)
	assert.True(t, r.stream.closed)
	mem.AssertSize(t, 0)
}

func TestValidateFile_NegativeKeyLenDoesNotOpen(t *testing.T) {
	r := &streamReader{}
	err := ValidateFile(context.Background(), r, "x.parquet", -2)
	assert.Equal(t, errors.CodeInvalidKeyLen, errors.GetCode(err))
	assert.Empty(t, r.path)
}
