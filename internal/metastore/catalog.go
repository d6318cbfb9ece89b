package metastore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arkilian/sortcheck/internal/errors"
	"github.com/arkilian/sortcheck/pkg/types"
)

// SQLiteCatalog implements the validation catalog on a SQLite metastore file.
type SQLiteCatalog struct {
	db     *sql.DB // Write connection (single writer), nil when read-only
	readDB *sql.DB // Read-only connection pool
	dbPath string
	mu     sync.Mutex // Serializes writers
}

// NewCatalog opens (creating if needed) the metastore at dbPath.
func NewCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("metastore: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	catalog := &SQLiteCatalog{db: db, dbPath: dbPath}

	// The schema must exist before the read-only pool can open the file.
	if err := catalog.initSchema(); err != nil {
		db.Close()
		return nil, errors.NewCatalogError(errors.CodeUnavailable,
			fmt.Sprintf("metastore: failed to initialize schema in %s", dbPath), err)
	}

	readDB, err := openReadPool(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("metastore: failed to open read database: %w", err)
	}
	catalog.readDB = readDB

	return catalog, nil
}

// OpenCatalogReadOnly opens an existing metastore for reading only. It runs
// no DDL, leaves the journal mode alone and never creates the file. A
// missing or unreadable metastore is a CATALOG/UNAVAILABLE error.
func OpenCatalogReadOnly(ctx context.Context, dbPath string) (*SQLiteCatalog, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		return nil, unavailable(fmt.Sprintf("cannot open %s", dbPath), err)
	}
	if !info.Mode().IsRegular() {
		return nil, unavailable(fmt.Sprintf("%s is not a file", dbPath), nil)
	}

	readDB, err := openReadPool(dbPath)
	if err != nil {
		return nil, unavailable(fmt.Sprintf("cannot open %s", dbPath), err)
	}
	if err := readDB.PingContext(ctx); err != nil {
		readDB.Close()
		return nil, unavailable(fmt.Sprintf("cannot open %s", dbPath), err)
	}
	return &SQLiteCatalog{readDB: readDB, dbPath: dbPath}, nil
}

func openReadPool(dbPath string) (*sql.DB, error) {
	readDB, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	return readDB, nil
}

func (c *SQLiteCatalog) initSchema() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Path returns the metastore file path.
func (c *SQLiteCatalog) Path() string {
	return c.dbPath
}

// GetTable resolves schema.name. A missing table is a CATALOG/NOT_FOUND error.
func (c *SQLiteCatalog) GetTable(ctx context.Context, schema, name string) (*types.Table, error) {
	query := `
		SELECT t.id, t.schema_id, s.name, t.name, t.columns_json, t.format, t.created_at
		FROM tables t
		JOIN schemas s ON s.id = t.schema_id
		WHERE s.name = ? AND t.name = ?`

	var (
		table         types.Table
		columnsJSON   string
		format        string
		createdAtUnix int64
	)
	err := c.readDB.QueryRowContext(ctx, query, schema, name).Scan(
		&table.ID, &table.SchemaID, &table.SchemaName, &table.Name,
		&columnsJSON, &format, &createdAtUnix,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewCatalogError(errors.CodeNotFound,
				fmt.Sprintf("table %s.%s not found", schema, name), nil)
		}
		return nil, unavailable("failed to get table", err)
	}

	if err := json.Unmarshal([]byte(columnsJSON), &table.Columns); err != nil {
		return nil, fmt.Errorf("metastore: failed to unmarshal columns of %s.%s: %w", schema, name, err)
	}
	if table.Format, err = types.ParseFileFormat(format); err != nil {
		return nil, fmt.Errorf("metastore: table %s.%s: %w", schema, name, err)
	}
	table.CreatedAt = time.Unix(createdAtUnix, 0)
	return &table, nil
}

// GetTableIndexes returns the indexes of a table ordered by id.
func (c *SQLiteCatalog) GetTableIndexes(ctx context.Context, tableID int64) ([]types.Index, error) {
	rows, err := c.readDB.QueryContext(ctx, `
		SELECT id, table_id, name, columns_json, sort_key_size
		FROM indexes
		WHERE table_id = ?
		ORDER BY id`, tableID)
	if err != nil {
		return nil, unavailable("failed to query indexes", err)
	}
	defer rows.Close()

	var indexes []types.Index
	for rows.Next() {
		var (
			idx         types.Index
			columnsJSON string
		)
		if err := rows.Scan(&idx.ID, &idx.TableID, &idx.Name, &columnsJSON, &idx.SortKeySize); err != nil {
			return nil, fmt.Errorf("metastore: failed to scan index: %w", err)
		}
		if err := json.Unmarshal([]byte(columnsJSON), &idx.Columns); err != nil {
			return nil, fmt.Errorf("metastore: failed to unmarshal columns of index %d: %w", idx.ID, err)
		}
		indexes = append(indexes, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("failed to iterate indexes", err)
	}
	return indexes, nil
}

// GetActivePartitionsAndChunks returns, for each index ID in order, the active
// partitions of the index (by id) paired with their active, uploaded chunks
// (by id). All indexes are read in one transaction so the result is a
// consistent snapshot.
func (c *SQLiteCatalog) GetActivePartitionsAndChunks(ctx context.Context, indexIDs []int64) ([][]types.PartitionChunks, error) {
	tx, err := c.readDB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, unavailable("failed to begin read transaction", err)
	}
	defer tx.Rollback()

	out := make([][]types.PartitionChunks, len(indexIDs))
	for i, indexID := range indexIDs {
		parts, err := activePartitions(ctx, tx, indexID)
		if err != nil {
			return nil, err
		}
		if err := attachChunks(ctx, tx, indexID, parts); err != nil {
			return nil, err
		}
		out[i] = parts
	}
	return out, nil
}

func activePartitions(ctx context.Context, tx *sql.Tx, indexID int64) ([]types.PartitionChunks, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, index_id, parent_partition_id, active, main_table_row_count, suffix
		FROM partitions
		WHERE index_id = ? AND active = 1
		ORDER BY id`, indexID)
	if err != nil {
		return nil, unavailable("failed to query partitions", err)
	}
	defer rows.Close()

	var parts []types.PartitionChunks
	for rows.Next() {
		var p types.Partition
		if err := rows.Scan(&p.ID, &p.IndexID, &p.ParentPartitionID, &p.Active, &p.MainTableRowCount, &p.Suffix); err != nil {
			return nil, fmt.Errorf("metastore: failed to scan partition: %w", err)
		}
		parts = append(parts, types.PartitionChunks{Partition: p})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("failed to iterate partitions", err)
	}
	return parts, nil
}

func attachChunks(ctx context.Context, tx *sql.Tx, indexID int64, parts []types.PartitionChunks) error {
	if len(parts) == 0 {
		return nil
	}
	pos := make(map[int64]int, len(parts))
	for i, pc := range parts {
		pos[pc.Partition.ID] = i
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT c.id, c.partition_id, c.row_count, c.uploaded, c.active
		FROM chunks c
		JOIN partitions p ON p.id = c.partition_id
		WHERE p.index_id = ? AND p.active = 1 AND c.active = 1 AND c.uploaded = 1
		ORDER BY c.partition_id, c.id`, indexID)
	if err != nil {
		return unavailable("failed to query chunks", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ch types.Chunk
		if err := rows.Scan(&ch.ID, &ch.PartitionID, &ch.RowCount, &ch.Uploaded, &ch.Active); err != nil {
			return fmt.Errorf("metastore: failed to scan chunk: %w", err)
		}
		if i, ok := pos[ch.PartitionID]; ok {
			parts[i].Chunks = append(parts[i].Chunks, ch)
		}
	}
	if err := rows.Err(); err != nil {
		return unavailable("failed to iterate chunks", err)
	}
	return nil
}

// CreateSchema registers a schema and returns its id.
func (c *SQLiteCatalog) CreateSchema(ctx context.Context, name string) (int64, error) {
	return c.insert(ctx, "schema",
		"INSERT INTO schemas (name, created_at) VALUES (?, ?)",
		name, time.Now().Unix())
}

// CreateTable registers a table under an existing schema and returns its id.
func (c *SQLiteCatalog) CreateTable(ctx context.Context, schemaID int64, name string, columns []types.Column, format types.FileFormat) (int64, error) {
	if columns == nil {
		columns = []types.Column{}
	}
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return 0, fmt.Errorf("metastore: failed to marshal columns: %w", err)
	}
	if format, err = types.ParseFileFormat(string(format)); err != nil {
		return 0, fmt.Errorf("metastore: %w", err)
	}
	return c.insert(ctx, "table",
		"INSERT INTO tables (schema_id, name, columns_json, format, created_at) VALUES (?, ?, ?, ?, ?)",
		schemaID, name, string(columnsJSON), string(format), time.Now().Unix())
}

// CreateIndex registers an index whose first sortKeySize columns form its sort key.
func (c *SQLiteCatalog) CreateIndex(ctx context.Context, tableID int64, name string, columns []string, sortKeySize int) (int64, error) {
	if sortKeySize < 0 || sortKeySize > len(columns) {
		return 0, fmt.Errorf("metastore: sort key size %d out of range for %d columns", sortKeySize, len(columns))
	}
	if columns == nil {
		columns = []string{}
	}
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return 0, fmt.Errorf("metastore: failed to marshal index columns: %w", err)
	}
	return c.insert(ctx, "index",
		"INSERT INTO indexes (table_id, name, columns_json, sort_key_size, created_at) VALUES (?, ?, ?, ?, ?)",
		tableID, name, string(columnsJSON), sortKeySize, time.Now().Unix())
}

// CreatePartition registers a partition. p.ID is ignored and the new id is returned.
func (c *SQLiteCatalog) CreatePartition(ctx context.Context, p types.Partition) (int64, error) {
	return c.insert(ctx, "partition", `
		INSERT INTO partitions (index_id, parent_partition_id, active, main_table_row_count, suffix, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.IndexID, p.ParentPartitionID, p.Active, p.MainTableRowCount, p.Suffix, time.Now().Unix())
}

// CreateChunk registers a chunk. ch.ID is ignored and the new id is returned.
func (c *SQLiteCatalog) CreateChunk(ctx context.Context, ch types.Chunk) (int64, error) {
	return c.insert(ctx, "chunk", `
		INSERT INTO chunks (partition_id, row_count, uploaded, active, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		ch.PartitionID, ch.RowCount, ch.Uploaded, ch.Active, time.Now().Unix())
}

// DeactivatePartition hides a partition (and with it its chunks) from validation.
func (c *SQLiteCatalog) DeactivatePartition(ctx context.Context, partitionID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return errReadOnly
	}
	res, err := c.db.ExecContext(ctx, "UPDATE partitions SET active = 0 WHERE id = ?", partitionID)
	if err != nil {
		return fmt.Errorf("metastore: failed to deactivate partition %d: %w", partitionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewCatalogError(errors.CodeNotFound,
			fmt.Sprintf("partition %d not found", partitionID), nil)
	}
	return nil
}

func (c *SQLiteCatalog) insert(ctx context.Context, what, query string, args ...interface{}) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return 0, errReadOnly
	}
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("metastore: failed to create %s: %w", what, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("metastore: failed to read %s id: %w", what, err)
	}
	return id, nil
}

// Close closes both database pools.
func (c *SQLiteCatalog) Close() error {
	err := c.readDB.Close()
	if c.db != nil {
		if werr := c.db.Close(); err == nil {
			err = werr
		}
	}
	return err
}

var errReadOnly = stderrors.New("metastore: catalog is opened read-only")

func unavailable(msg string, err error) error {
	return errors.NewCatalogError(errors.CodeUnavailable, "metastore: "+msg, err)
}
