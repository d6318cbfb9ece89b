// Package metastore provides the SQLite catalog describing tables, their
// indexes, and the partition and chunk files that hold each index.
package metastore

// CreateSchemasTableSQL creates the schemas table. Schemas namespace tables.
const CreateSchemasTableSQL = `
CREATE TABLE IF NOT EXISTS schemas (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    created_at INTEGER NOT NULL
)`

// CreateTablesTableSQL creates the tables table.
// columns_json holds the declared columns; format decides the extension of
// every partition and chunk file of the table.
const CreateTablesTableSQL = `
CREATE TABLE IF NOT EXISTS tables (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    schema_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    columns_json TEXT NOT NULL DEFAULT '[]',
    format TEXT NOT NULL DEFAULT 'parquet',
    created_at INTEGER NOT NULL,
    UNIQUE (schema_id, name),
    FOREIGN KEY (schema_id) REFERENCES schemas(id)
)`

// CreateIndexesTableSQL creates the indexes table.
// The first sort_key_size entries of columns_json form the index sort key.
const CreateIndexesTableSQL = `
CREATE TABLE IF NOT EXISTS indexes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    table_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    columns_json TEXT NOT NULL DEFAULT '[]',
    sort_key_size INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    UNIQUE (table_id, name),
    FOREIGN KEY (table_id) REFERENCES tables(id)
)`

// CreatePartitionsTableSQL creates the partitions table.
// A partition has a file only once main_table_row_count is positive.
// Split partitions keep a pointer to the partition they came from.
const CreatePartitionsTableSQL = `
CREATE TABLE IF NOT EXISTS partitions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    index_id INTEGER NOT NULL,
    parent_partition_id INTEGER,
    active INTEGER NOT NULL DEFAULT 1,
    main_table_row_count INTEGER NOT NULL DEFAULT 0,
    suffix TEXT,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (index_id) REFERENCES indexes(id),
    FOREIGN KEY (parent_partition_id) REFERENCES partitions(id)
)`

// CreateChunksTableSQL creates the chunks table.
// A chunk is visible to readers once it is both uploaded and active.
const CreateChunksTableSQL = `
CREATE TABLE IF NOT EXISTS chunks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    partition_id INTEGER NOT NULL,
    row_count INTEGER NOT NULL DEFAULT 0,
    uploaded INTEGER NOT NULL DEFAULT 0,
    active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (partition_id) REFERENCES partitions(id)
)`

// CreateCatalogIndexesSQL creates lookup indexes for the validation queries.
var CreateCatalogIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_indexes_table ON indexes(table_id)`,

	// Active partitions of an index, in id order
	`CREATE INDEX IF NOT EXISTS idx_partitions_index ON partitions(index_id, id)
		WHERE active = 1`,

	`CREATE INDEX IF NOT EXISTS idx_chunks_partition ON chunks(partition_id, id)
		WHERE active = 1 AND uploaded = 1`,
}

// AllSchemaSQL returns all SQL statements needed to initialize the metastore.
func AllSchemaSQL() []string {
	statements := []string{
		CreateSchemasTableSQL,
		CreateTablesTableSQL,
		CreateIndexesTableSQL,
		CreatePartitionsTableSQL,
		CreateChunksTableSQL,
	}
	return append(statements, CreateCatalogIndexesSQL...)
}
