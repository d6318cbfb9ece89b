package reader

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	_ "github.com/mattn/go-sqlite3"

	"github.com/arkilian/sortcheck/internal/errors"
)

// sqliteStream reads a SQLite partition file. The file holds one data table
// (internal tables are prefixed with "_") whose rows are scanned in storage order.
type sqliteStream struct {
	path      string
	db        *sql.DB
	rows      *sql.Rows
	builder   *array.RecordBuilder
	batchSize int
	values    []interface{}
	dest      []interface{}
	done      bool
}

const dataTableSQL = `
SELECT name FROM sqlite_master
WHERE type = 'table'
  AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
  AND name NOT LIKE '\_%' ESCAPE '\'
ORDER BY rowid
LIMIT 1`

// OpenSQLite opens a SQLite partition file for sequential batch reads.
func OpenSQLite(ctx context.Context, path string, cfg Config) (BatchStream, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewStorageError(errors.CodeReadFailed,
			fmt.Sprintf("failed to open %s", path), err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeReadFailed,
			fmt.Sprintf("failed to open %s", path), err)
	}

	var table string
	if err := db.QueryRowContext(ctx, dataTableSQL).Scan(&table); err != nil {
		db.Close()
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewParseError(errors.CodeMalformedFile,
				fmt.Sprintf("no data table in %s", path), nil)
		}
		return nil, errors.NewParseError(errors.CodeMalformedFile,
			fmt.Sprintf("failed to read schema of %s", path), err)
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		db.Close()
		return nil, errors.NewParseError(errors.CodeMalformedFile,
			fmt.Sprintf("failed to scan table %s in %s", table, path), err)
	}

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		db.Close()
		return nil, errors.NewParseError(errors.CodeMalformedFile,
			fmt.Sprintf("failed to read column types of %s", path), err)
	}

	fields := make([]arrow.Field, len(colTypes))
	for i, ct := range colTypes {
		fields[i] = arrow.Field{
			Name:     ct.Name(),
			Type:     arrowTypeFor(ct.DatabaseTypeName()),
			Nullable: true,
		}
	}
	schema := arrow.NewSchema(fields, nil)

	s := &sqliteStream{
		path:      path,
		db:        db,
		rows:      rows,
		builder:   array.NewRecordBuilder(cfg.allocator(), schema),
		batchSize: cfg.batchSize(),
		values:    make([]interface{}, len(fields)),
		dest:      make([]interface{}, len(fields)),
	}
	for i := range s.values {
		s.dest[i] = &s.values[i]
	}
	return s, nil
}

func (s *sqliteStream) Next(ctx context.Context) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.done {
		return nil, io.EOF
	}

	n := 0
	for n < s.batchSize {
		if !s.rows.Next() {
			if err := s.rows.Err(); err != nil {
				return nil, errors.NewParseError(errors.CodeMalformedFile,
					fmt.Sprintf("failed to read rows of %s", s.path), err)
			}
			s.done = true
			break
		}
		if err := s.rows.Scan(s.dest...); err != nil {
			return nil, errors.NewParseError(errors.CodeMalformedFile,
				fmt.Sprintf("failed to scan row of %s", s.path), err)
		}
		for i, v := range s.values {
			if err := appendValue(s.builder.Field(i), v); err != nil {
				code := errors.CodeMalformedFile
				if stderrors.Is(err, errInexactInteger) {
					code = errors.CodeUnsupportedType
				}
				return nil, errors.NewParseError(code,
					fmt.Sprintf("%s: column %s", s.path, s.builder.Schema().Field(i).Name), err)
			}
		}
		n++
	}

	if n == 0 {
		return nil, io.EOF
	}
	return s.builder.NewRecord(), nil
}

func (s *sqliteStream) Close() error {
	s.builder.Release()
	s.rows.Close()
	return s.db.Close()
}

// maxExactInteger is the largest magnitude an int64 can have and still
// convert to float64 without rounding.
const maxExactInteger = 1 << 53

// errInexactInteger is returned for integers stored in a REAL or NUMERIC
// column that float64 cannot hold exactly.
var errInexactInteger = stderrors.New("integer cannot be represented exactly as float64")

// arrowTypeFor maps a declared column type to an arrow type using SQLite's
// type affinity rules.
func arrowTypeFor(declType string) arrow.DataType {
	t := strings.ToUpper(declType)
	switch {
	case strings.Contains(t, "INT"):
		return arrow.PrimitiveTypes.Int64
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return arrow.BinaryTypes.String
	case t == "", strings.Contains(t, "BLOB"):
		return arrow.BinaryTypes.Binary
	case t == "BOOL", t == "BOOLEAN":
		return arrow.FixedWidthTypes.Boolean
	case t == "DATE", t == "DATETIME", t == "TIMESTAMP":
		return arrow.FixedWidthTypes.Timestamp_us
	default:
		// REAL and NUMERIC affinity. Integer values must fit in 53 bits.
		return arrow.PrimitiveTypes.Float64
	}
}

func appendValue(b array.Builder, v interface{}) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch b := b.(type) {
	case *array.Int64Builder:
		switch x := v.(type) {
		case int64:
			b.Append(x)
			return nil
		case bool:
			if x {
				b.Append(1)
			} else {
				b.Append(0)
			}
			return nil
		}
	case *array.Float64Builder:
		switch x := v.(type) {
		case float64:
			b.Append(x)
			return nil
		case int64:
			if x > maxExactInteger || x < -maxExactInteger {
				return fmt.Errorf("%w: %d", errInexactInteger, x)
			}
			b.Append(float64(x))
			return nil
		}
	case *array.StringBuilder:
		switch x := v.(type) {
		case string:
			b.Append(x)
			return nil
		case []byte:
			b.Append(string(x))
			return nil
		}
	case *array.BinaryBuilder:
		switch x := v.(type) {
		case []byte:
			b.Append(x)
			return nil
		case string:
			b.AppendString(x)
			return nil
		}
	case *array.BooleanBuilder:
		switch x := v.(type) {
		case bool:
			b.Append(x)
			return nil
		case int64:
			b.Append(x != 0)
			return nil
		}
	case *array.TimestampBuilder:
		if x, ok := v.(time.Time); ok {
			b.Append(arrow.Timestamp(x.UnixMicro()))
			return nil
		}
	}
	return fmt.Errorf("value of type %T does not fit %T", v, b)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
