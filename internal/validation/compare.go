// Package validation checks that index files are physically sorted by their
// composite sort key, one file at a time and batch by batch.
package validation

import (
	"bytes"
	"cmp"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// CompareRows lexicographically compares row leftRow of the left key columns
// with row rightRow of the right key columns. It returns -1, 0 or +1.
//
// Both slices must have the same length and paired columns must share a type;
// either violation is a programming error and panics. Nulls sort first.
func CompareRows(left []arrow.Array, leftRow int, right []arrow.Array, rightRow int) int {
	if len(left) != len(right) {
		panic(fmt.Sprintf("validation: comparing key of %d columns with key of %d columns", len(left), len(right)))
	}
	for i := range left {
		if o := compareValues(left[i], leftRow, right[i], rightRow); o != 0 {
			return o
		}
	}
	return 0
}

// Comparable reports whether CompareRows can order values of the given type.
func Comparable(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.NULL,
		arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64,
		arrow.BOOL,
		arrow.STRING, arrow.LARGE_STRING, arrow.STRING_VIEW,
		arrow.BINARY, arrow.LARGE_BINARY, arrow.BINARY_VIEW, arrow.FIXED_SIZE_BINARY,
		arrow.DATE32, arrow.DATE64, arrow.TIME32, arrow.TIME64,
		arrow.TIMESTAMP, arrow.DURATION,
		arrow.DECIMAL128, arrow.DECIMAL256:
		return true
	default:
		return false
	}
}

func compareValues(l arrow.Array, li int, r arrow.Array, ri int) int {
	if l.DataType().ID() != r.DataType().ID() {
		panic(fmt.Sprintf("validation: comparing %s column with %s column", l.DataType(), r.DataType()))
	}

	ln, rn := l.IsNull(li), r.IsNull(ri)
	switch {
	case ln && rn:
		return 0
	case ln:
		return -1
	case rn:
		return 1
	}

	switch l := l.(type) {
	case *array.Null:
		return 0
	case *array.Int8:
		return cmp.Compare(l.Value(li), r.(*array.Int8).Value(ri))
	case *array.Int16:
		return cmp.Compare(l.Value(li), r.(*array.Int16).Value(ri))
	case *array.Int32:
		return cmp.Compare(l.Value(li), r.(*array.Int32).Value(ri))
	case *array.Int64:
		return cmp.Compare(l.Value(li), r.(*array.Int64).Value(ri))
	case *array.Uint8:
		return cmp.Compare(l.Value(li), r.(*array.Uint8).Value(ri))
	case *array.Uint16:
		return cmp.Compare(l.Value(li), r.(*array.Uint16).Value(ri))
	case *array.Uint32:
		return cmp.Compare(l.Value(li), r.(*array.Uint32).Value(ri))
	case *array.Uint64:
		return cmp.Compare(l.Value(li), r.(*array.Uint64).Value(ri))
	case *array.Float16:
		return cmp.Compare(l.Value(li).Float32(), r.(*array.Float16).Value(ri).Float32())
	case *array.Float32:
		return cmp.Compare(l.Value(li), r.(*array.Float32).Value(ri))
	case *array.Float64:
		return cmp.Compare(l.Value(li), r.(*array.Float64).Value(ri))
	case *array.Boolean:
		return compareBool(l.Value(li), r.(*array.Boolean).Value(ri))
	case *array.String:
		return cmp.Compare(l.Value(li), r.(*array.String).Value(ri))
	case *array.LargeString:
		return cmp.Compare(l.Value(li), r.(*array.LargeString).Value(ri))
	case *array.StringView:
		return cmp.Compare(l.Value(li), r.(*array.StringView).Value(ri))
	case *array.Binary:
		return bytes.Compare(l.Value(li), r.(*array.Binary).Value(ri))
	case *array.LargeBinary:
		return bytes.Compare(l.Value(li), r.(*array.LargeBinary).Value(ri))
	case *array.BinaryView:
		return bytes.Compare(l.Value(li), r.(*array.BinaryView).Value(ri))
	case *array.FixedSizeBinary:
		return bytes.Compare(l.Value(li), r.(*array.FixedSizeBinary).Value(ri))
	case *array.Date32:
		return cmp.Compare(l.Value(li), r.(*array.Date32).Value(ri))
	case *array.Date64:
		return cmp.Compare(l.Value(li), r.(*array.Date64).Value(ri))
	case *array.Time32:
		return cmp.Compare(l.Value(li), r.(*array.Time32).Value(ri))
	case *array.Time64:
		return cmp.Compare(l.Value(li), r.(*array.Time64).Value(ri))
	case *array.Timestamp:
		return cmp.Compare(l.Value(li), r.(*array.Timestamp).Value(ri))
	case *array.Duration:
		return cmp.Compare(l.Value(li), r.(*array.Duration).Value(ri))
	case *array.Decimal128:
		return l.Value(li).Cmp(r.(*array.Decimal128).Value(ri))
	case *array.Decimal256:
		return l.Value(li).Cmp(r.(*array.Decimal256).Value(ri))
	default:
		panic(fmt.Sprintf("validation: cannot compare values of type %s", l.DataType()))
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
