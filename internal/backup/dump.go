package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/askdb/askdb/internal/schema"
)

type SchemaSource interface {
	Refresh(ctx context.Context) (schema.Snapshot, error)
}

// Dumper serializes every user table into a plain SQL script that recreates
// structure and data.
type Dumper struct {
	db     *sql.DB
	schema SchemaSource
}

func NewDumper(db *sql.DB, schemaSrc SchemaSource) *Dumper {
	return &Dumper{db: db, schema: schemaSrc}
}

// Dump writes the script to w and reports how many tables and rows it
// covered. The schema is re-read so the dump never trails a cached view.
func (d *Dumper) Dump(ctx context.Context, w io.Writer) (tables, rows int, err error) {
	snap, err := d.schema.Refresh(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("read schema for backup: %w", err)
	}

	header := fmt.Sprintf("-- askdb backup\n-- generated: %s\n\n", time.Now().UTC().Format(time.RFC3339))
	if _, err := io.WriteString(w, header); err != nil {
		return 0, 0, err
	}

	for _, table := range snap.Tables {
		if err := d.dumpTable(ctx, w, table); err != nil {
			return tables, rows, fmt.Errorf("dump table %q: %w", table.Name, err)
		}
		n, err := d.dumpRows(ctx, w, table)
		if err != nil {
			return tables, rows, fmt.Errorf("dump rows of %q: %w", table.Name, err)
		}
		tables++
		rows += n
	}
	return tables, rows, nil
}

// tableIdentifier renders a quoted, schema-qualified table reference.
func tableIdentifier(table schema.Table) string {
	if table.Schema != "" {
		return pgx.Identifier{table.Schema, table.Name}.Sanitize()
	}
	return pgx.Identifier{table.Name}.Sanitize()
}

func (d *Dumper) dumpTable(ctx context.Context, w io.Writer, table schema.Table) error {
	name := tableIdentifier(table)
	var sb strings.Builder
	fmt.Fprintf(&sb, "DROP TABLE IF EXISTS %s CASCADE;\n", name)
	fmt.Fprintf(&sb, "CREATE TABLE %s (\n", name)
	for i, col := range table.Columns {
		sb.WriteString("  ")
		sb.WriteString(pgx.Identifier{col.Name}.Sanitize())
		sb.WriteString(" ")
		sb.WriteString(col.Type)
		if i < len(table.Columns)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(");\n\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func (d *Dumper) dumpRows(ctx context.Context, w io.Writer, table schema.Table) (int, error) {
	name := tableIdentifier(table)
	columns := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		columns[i] = pgx.Identifier{col.Name}.Sanitize()
	}

	result, err := d.db.QueryContext(ctx, "SELECT * FROM "+name)
	if err != nil {
		return 0, err
	}
	defer result.Close()

	count := 0
	values := make([]any, len(table.Columns))
	ptrs := make([]any, len(table.Columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for result.Next() {
		if err := result.Scan(ptrs...); err != nil {
			return count, err
		}
		literals := make([]string, len(values))
		for i, v := range values {
			literals[i] = literal(v)
		}
		line := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);\n",
			name, strings.Join(columns, ", "), strings.Join(literals, ", "))
		if _, err := io.WriteString(w, line); err != nil {
			return count, err
		}
		count++
	}
	if err := result.Err(); err != nil {
		return count, err
	}
	if count > 0 {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return count, err
		}
	}
	return count, nil
}

// literal renders one scanned value as a SQL literal. Strings are quoted
// with doubled single quotes, which is enough because the dump is only ever
// replayed, never composed with user input.
func literal(v any) string {
	switch value := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if value {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return strconv.FormatInt(value, 10)
	case float64:
		return strconv.FormatFloat(value, 'g', -1, 64)
	case time.Time:
		return "'" + value.UTC().Format("2006-01-02 15:04:05.999999") + "'"
	case []byte:
		return quote(string(value))
	case string:
		return quote(value)
	default:
		return quote(fmt.Sprintf("%v", value))
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
