// Package types provides the catalog entities sortcheck reads: tables, their
// indexes, and the partitions and chunks that hold each index's files.
package types

import "time"

// Table is a logical table registered in the metastore.
type Table struct {
	// ID is the metastore identifier of the table
	ID int64 `json:"id"`

	// SchemaID identifies the schema the table belongs to
	SchemaID int64 `json:"schema_id"`

	// SchemaName is the name of the owning schema
	SchemaName string `json:"schema_name"`

	// Name is the table name, unique within its schema
	Name string `json:"name"`

	// Columns lists the table columns in declared order
	Columns []Column `json:"columns"`

	// Format is the on-disk format of every partition and chunk file of the table
	Format FileFormat `json:"format"`

	// CreatedAt is when the table was registered
	CreatedAt time.Time `json:"created_at"`
}

// Column describes a single table column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Index is a sorted copy of a table's data. Its first SortKeySize columns
// form the composite sort key every file of the index is ordered by.
type Index struct {
	ID          int64    `json:"id"`
	TableID     int64    `json:"table_id"`
	Name        string   `json:"name"`
	Columns     []string `json:"columns"`
	SortKeySize int      `json:"sort_key_size"`
}

// Partition is a slice of an index's data. It owns at most one partition
// file and any number of chunks.
type Partition struct {
	ID                int64   `json:"id"`
	IndexID           int64   `json:"index_id"`
	ParentPartitionID *int64  `json:"parent_partition_id,omitempty"`
	Active            bool    `json:"active"`
	MainTableRowCount int64   `json:"main_table_row_count"`
	Suffix            *string `json:"suffix,omitempty"`
}

// HasMainTableFile reports whether the partition has been written to its own file.
func (p *Partition) HasMainTableFile() bool {
	return p.MainTableRowCount > 0
}

// FullName returns the remote name of the partition file, or false when the
// partition has no file yet.
func (p *Partition) FullName(format FileFormat) (string, bool) {
	if !p.HasMainTableFile() {
		return "", false
	}
	return PartitionFileName(p.ID, p.Suffix, format), true
}

// Chunk is a recently ingested slice of a partition stored in its own file.
type Chunk struct {
	ID          int64 `json:"id"`
	PartitionID int64 `json:"partition_id"`
	RowCount    int64 `json:"row_count"`
	Uploaded    bool  `json:"uploaded"`
	Active      bool  `json:"active"`
}

// FullName returns the remote name of the chunk file.
func (c *Chunk) FullName(format FileFormat) string {
	return ChunkFileName(c.ID, format)
}

// PartitionChunks pairs an active partition with its active, uploaded chunks.
type PartitionChunks struct {
	Partition Partition
	Chunks    []Chunk
}
