package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionFullName(t *testing.T) {
	suffix := "a1b2"

	tests := []struct {
		name     string
		p        Partition
		format   FileFormat
		want     string
		wantFile bool
	}{
		{"no main table file", Partition{ID: 4, MainTableRowCount: 0}, FormatParquet, "", false},
		{"plain parquet", Partition{ID: 4, MainTableRowCount: 10}, FormatParquet, "4.parquet", true},
		{"suffixed", Partition{ID: 4, MainTableRowCount: 10, Suffix: &suffix}, FormatParquet, "4-a1b2.parquet", true},
		{"sqlite", Partition{ID: 12, MainTableRowCount: 1}, FormatSQLite, "12.sqlite", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.p.FullName(tt.format)
			assert.Equal(t, tt.wantFile, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChunkFullName(t *testing.T) {
	c := Chunk{ID: 31}
	assert.Equal(t, "31.chunk.parquet", c.FullName(FormatParquet))
	assert.Equal(t, "31.chunk.sqlite", c.FullName(FormatSQLite))
}

func TestParseFileFormat(t *testing.T) {
	f, err := ParseFileFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, f)

	f, err = ParseFileFormat("SQLite")
	require.NoError(t, err)
	assert.Equal(t, FormatSQLite, f)

	_, err = ParseFileFormat("orc")
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	f, ok := FormatFromPath("/data/local/7.chunk.parquet")
	assert.True(t, ok)
	assert.Equal(t, FormatParquet, f)

	f, ok = FormatFromPath("3.sqlite")
	assert.True(t, ok)
	assert.Equal(t, FormatSQLite, f)

	_, ok = FormatFromPath("3.csv")
	assert.False(t, ok)
}
