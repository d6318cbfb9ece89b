package validation

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareRows_SingleColumn(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := ints(mem, 1, 2, 2, -5)
	defer rec.Release()
	key := rec.Columns()[:1]

	assert.Equal(t, -1, CompareRows(key, 0, key, 1))
	assert.Equal(t, 1, CompareRows(key, 1, key, 0))
	assert.Equal(t, 0, CompareRows(key, 1, key, 2))
	assert.Equal(t, -1, CompareRows(key, 3, key, 0))
}

func TestCompareRows_Composite(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := pairs(mem,
		pair{1, "b"},
		pair{1, "a"},
		pair{2, "a"},
		pair{1, "b"},
	)
	defer rec.Release()
	key := rec.Columns()

	// First column decides when it differs.
	assert.Equal(t, -1, CompareRows(key, 1, key, 2))
	// Ties fall through to the next column.
	assert.Equal(t, 1, CompareRows(key, 0, key, 1))
	assert.Equal(t, 0, CompareRows(key, 0, key, 3))
	// Only the prefix participates.
	assert.Equal(t, 0, CompareRows(key[:1], 0, key[:1], 1))
}

func TestCompareRows_EmptyKeyIsEqual(t *testing.T) {
	assert.Equal(t, 0, CompareRows(nil, 0, nil, 7))
}

func TestCompareRows_NullsFirst(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := intBatch(mem, nil, i64(-100), nil)
	defer rec.Release()
	key := rec.Columns()[:1]

	assert.Equal(t, -1, CompareRows(key, 0, key, 1))
	assert.Equal(t, 1, CompareRows(key, 1, key, 0))
	assert.Equal(t, 0, CompareRows(key, 0, key, 2))
}

func TestCompareRows_Types(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	build := func(b array.Builder, fill func()) arrow.Array {
		defer b.Release()
		fill()
		return b.NewArray()
	}

	u8 := array.NewUint8Builder(mem)
	f64 := array.NewFloat64Builder(mem)
	bl := array.NewBooleanBuilder(mem)
	bin := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	ts := array.NewTimestampBuilder(mem, &arrow.TimestampType{Unit: arrow.Microsecond})
	dec := array.NewDecimal128Builder(mem, &arrow.Decimal128Type{Precision: 10, Scale: 2})
	d32 := array.NewDate32Builder(mem)

	cases := []struct {
		name string
		arr  arrow.Array
	}{
		{"uint8", build(u8, func() { u8.AppendValues([]uint8{3, 200}, nil) })},
		{"float64", build(f64, func() { f64.AppendValues([]float64{-0.5, 1.25}, nil) })},
		{"bool", build(bl, func() { bl.AppendValues([]bool{false, true}, nil) })},
		{"binary", build(bin, func() { bin.AppendValues([][]byte{{0x01, 0xff}, {0x02}}, nil) })},
		{"timestamp", build(ts, func() { ts.AppendValues([]arrow.Timestamp{10, 11}, nil) })},
		{"decimal128", build(dec, func() {
			dec.AppendValues([]decimal128.Num{decimal128.FromI64(-1), decimal128.FromI64(1)}, nil)
		})},
		{"date32", build(d32, func() { d32.AppendValues([]arrow.Date32{19000, 19001}, nil) })},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			defer tc.arr.Release()
			require.True(t, Comparable(tc.arr.DataType()))

			key := []arrow.Array{tc.arr}
			assert.Equal(t, -1, CompareRows(key, 0, key, 1))
			assert.Equal(t, 1, CompareRows(key, 1, key, 0))
			assert.Equal(t, 0, CompareRows(key, 1, key, 1))
		})
	}
}

func TestCompareRows_AcrossBatches(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	a := ints(mem, 1, 3)
	defer a.Release()
	b := ints(mem, 2)
	defer b.Release()

	assert.Equal(t, -1, CompareRows(b.Columns()[:1], 0, a.Columns()[:1], 1))
	assert.Equal(t, 1, CompareRows(b.Columns()[:1], 0, a.Columns()[:1], 0))
}

func TestCompareRows_LengthMismatchPanics(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := pairs(mem, pair{1, "a"})
	defer rec.Release()

	assert.PanicsWithValue(t, "validation: comparing key of 2 columns with key of 1 columns", func() {
		CompareRows(rec.Columns(), 0, rec.Columns()[:1], 0)
	})
}

func TestCompareRows_TypeMismatchPanics(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := pairs(mem, pair{1, "a"})
	defer rec.Release()

	assert.Panics(t, func() {
		CompareRows(rec.Columns()[:1], 0, rec.Columns()[1:], 0)
	})
}

func TestComparable(t *testing.T) {
	assert.True(t, Comparable(arrow.PrimitiveTypes.Int32))
	assert.True(t, Comparable(arrow.BinaryTypes.LargeString))
	assert.True(t, Comparable(&arrow.FixedSizeBinaryType{ByteWidth: 16}))
	assert.True(t, Comparable(arrow.FixedWidthTypes.Duration_ms))
	assert.False(t, Comparable(arrow.ListOf(arrow.PrimitiveTypes.Int64)))
	assert.False(t, Comparable(arrow.StructOf(arrow.Field{Name: "a", Type: arrow.PrimitiveTypes.Int64})))
	assert.False(t, Comparable(arrow.MapOf(arrow.BinaryTypes.String, arrow.PrimitiveTypes.Int64)))
}

func TestDisplayRow(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := pairs(mem, pair{1, "a"}, pair{42, "acme"})
	defer rec.Release()

	assert.Equal(t, `[[42] ["acme"]]`, DisplayRow(rec.Columns(), 1))
	assert.Equal(t, `[[1]]`, DisplayRow(rec.Columns()[:1], 0))
	assert.Equal(t, `[]`, DisplayRow(nil, 0))
}
