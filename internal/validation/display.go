package validation

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// DisplayRow renders one row of the key columns for diagnostics, e.g.
// `[[42] ["acme"]]`. Each column is sliced to the single row and printed on its own.
func DisplayRow(cols []arrow.Array, row int) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, col := range cols {
		if i > 0 {
			sb.WriteByte(' ')
		}
		s := array.NewSlice(col, int64(row), int64(row+1))
		sb.WriteString(s.String())
		s.Release()
	}
	sb.WriteByte(']')
	return sb.String()
}
