package validation

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

var intSchema = arrow.NewSchema([]arrow.Field{
	{Name: "k", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "payload", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

var pairSchema = arrow.NewSchema([]arrow.Field{
	{Name: "tenant", Type: arrow.PrimitiveTypes.Int64},
	{Name: "name", Type: arrow.BinaryTypes.String},
}, nil)

// intBatch builds a batch whose first column holds keys. A nil entry is a null key.
func intBatch(mem memory.Allocator, keys ...*int64) arrow.Record {
	b := array.NewRecordBuilder(mem, intSchema)
	defer b.Release()
	kb := b.Field(0).(*array.Int64Builder)
	pb := b.Field(1).(*array.StringBuilder)
	for _, k := range keys {
		if k == nil {
			kb.AppendNull()
		} else {
			kb.Append(*k)
		}
		pb.Append("x")
	}
	return b.NewRecord()
}

func ints(mem memory.Allocator, keys ...int64) arrow.Record {
	ptrs := make([]*int64, len(keys))
	for i := range keys {
		ptrs[i] = &keys[i]
	}
	return intBatch(mem, ptrs...)
}

type pair struct {
	tenant int64
	name   string
}

func pairs(mem memory.Allocator, rows ...pair) arrow.Record {
	b := array.NewRecordBuilder(mem, pairSchema)
	defer b.Release()
	for _, r := range rows {
		b.Field(0).(*array.Int64Builder).Append(r.tenant)
		b.Field(1).(*array.StringBuilder).Append(r.name)
	}
	return b.NewRecord()
}

func i64(v int64) *int64 { return &v }

// failingStream yields its records, then err.
type failingStream struct {
	records []arrow.Record
	err     error
}

func (s *failingStream) Next(ctx context.Context) (arrow.Record, error) {
	if len(s.records) == 0 {
		return nil, s.err
	}
	rec := s.records[0]
	s.records = s.records[1:]
	return rec, nil
}

func (s *failingStream) Close() error {
	for _, rec := range s.records {
		rec.Release()
	}
	s.records = nil
	return nil
}
