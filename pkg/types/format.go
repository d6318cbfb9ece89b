package types

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FileFormat is the physical format of partition and chunk files.
type FileFormat string

const (
	// FormatParquet stores rows as Parquet row groups
	FormatParquet FileFormat = "parquet"

	// FormatSQLite stores rows in a single-table SQLite database
	FormatSQLite FileFormat = "sqlite"
)

// Extension returns the file extension (without the dot) for the format.
// Unknown formats fall back to parquet.
func (f FileFormat) Extension() string {
	switch f {
	case FormatSQLite:
		return "sqlite"
	default:
		return "parquet"
	}
}

// ParseFileFormat validates a format name. The empty string means parquet.
func ParseFileFormat(s string) (FileFormat, error) {
	switch FileFormat(strings.ToLower(s)) {
	case "", FormatParquet:
		return FormatParquet, nil
	case FormatSQLite:
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("unknown file format %q (must be parquet or sqlite)", s)
	}
}

// FormatFromPath infers the file format from a path's extension.
func FormatFromPath(path string) (FileFormat, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return FormatParquet, true
	case ".sqlite", ".db":
		return FormatSQLite, true
	default:
		return "", false
	}
}

// PartitionFileName returns "<id>.<ext>" or "<id>-<suffix>.<ext>".
func PartitionFileName(partitionID int64, suffix *string, format FileFormat) string {
	if suffix != nil && *suffix != "" {
		return fmt.Sprintf("%d-%s.%s", partitionID, *suffix, format.Extension())
	}
	return fmt.Sprintf("%d.%s", partitionID, format.Extension())
}

// ChunkFileName returns "<id>.chunk.<ext>".
func ChunkFileName(chunkID int64, format FileFormat) string {
	return fmt.Sprintf("%d.chunk.%s", chunkID, format.Extension())
}
