package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Yrrrrrf/ts-forge/internal/schema"
)

// SQLiteMainSchema is the name SQLite gives the primary database
const SQLiteMainSchema = "main"

// SQLiteSource reads metadata from SQLite's catalog and PRAGMAs
type SQLiteSource struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteSource opens the database file at path
func NewSQLiteSource(ctx context.Context, path string, logger *zap.Logger) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteSource{db: db, logger: logger.With(zap.String("driver", string(SQLite)))}, nil
}

// Close closes the database connection
func (q *SQLiteSource) Close(context.Context) error {
	return q.db.Close()
}

// FetchSchemas reads the main database. SQLite has a single schema, so any
// other requested name yields an empty schema.
func (q *SQLiteSource) FetchSchemas(ctx context.Context, names []string) ([]schema.SchemaMetadata, error) {
	if len(names) == 0 {
		names = []string{SQLiteMainSchema}
	}

	schemas := make([]schema.SchemaMetadata, 0, len(names))
	for _, name := range names {
		s := newSchema(name)
		if name == SQLiteMainSchema {
			if err := q.extractSchema(ctx, &s); err != nil {
				return nil, fmt.Errorf("failed to extract schema %s: %w", name, err)
			}
		} else {
			q.logger.Warn("SQLite has no such schema", zap.String("schema", name))
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}

func (q *SQLiteSource) extractSchema(ctx context.Context, s *schema.SchemaMetadata) error {
	query := `
		SELECT name, type
		FROM sqlite_master
		WHERE type IN ('table', 'view', 'trigger') AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	type object struct{ name, kind string }
	var objects []object
	for rows.Next() {
		var o object
		if err := rows.Scan(&o.name, &o.kind); err != nil {
			_ = rows.Close()
			return err
		}
		objects = append(objects, o)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, o := range objects {
		switch o.kind {
		case "table":
			table, err := q.extractTable(ctx, s.Name, o.name)
			if err != nil {
				return fmt.Errorf("failed to extract table %s: %w", o.name, err)
			}
			s.Tables[o.name] = *table
		case "view":
			view, err := q.extractView(ctx, s.Name, o.name)
			if err != nil {
				return fmt.Errorf("failed to extract view %s: %w", o.name, err)
			}
			s.Views[o.name] = *view
		case "trigger":
			s.Triggers[o.name] = schema.FunctionMetadata{
				Name:       o.name,
				Schema:     s.Name,
				ObjectType: schema.ObjectTrigger,
				ReturnType: "trigger",
				Parameters: []schema.FunctionParameter{},
			}
		}
	}
	return nil
}

type sqliteColumn struct {
	name     string
	colType  string
	nullable bool
	pk       bool
}

func (q *SQLiteSource) tableInfo(ctx context.Context, name string) ([]sqliteColumn, error) {
	rows, err := q.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(name)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []sqliteColumn
	for rows.Next() {
		var cid int
		var colName, colType string
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &colName, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, sqliteColumn{
			name:     colName,
			colType:  colType,
			nullable: notNull == 0 && pk == 0,
			pk:       pk > 0,
		})
	}
	return columns, rows.Err()
}

func (q *SQLiteSource) extractTable(ctx context.Context, schemaName, name string) (*schema.TableMetadata, error) {
	info, err := q.tableInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}

	table := &schema.TableMetadata{Name: name, Schema: schemaName, Columns: make([]schema.ColumnMetadata, 0, len(info))}
	for _, col := range info {
		table.Columns = append(table.Columns, schema.ColumnMetadata{
			Name:         col.name,
			Type:         col.colType,
			Nullable:     col.nullable,
			IsPrimaryKey: col.pk,
		})
	}

	if err := q.extractForeignKeys(ctx, schemaName, table); err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	return table, nil
}

func (q *SQLiteSource) extractView(ctx context.Context, schemaName, name string) (*schema.ViewMetadata, error) {
	info, err := q.tableInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}

	view := &schema.ViewMetadata{Name: name, Schema: schemaName, Columns: make([]schema.ViewColumnMetadata, 0, len(info))}
	for _, col := range info {
		view.Columns = append(view.Columns, schema.ViewColumnMetadata{
			Name:     col.name,
			Type:     col.colType,
			Nullable: true,
		})
	}
	return view, nil
}

func (q *SQLiteSource) extractForeignKeys(ctx context.Context, schemaName string, table *schema.TableMetadata) error {
	rows, err := q.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(table.Name)))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, seq int
		var targetTable, fromCol, onUpdate, onDelete, match string
		var toCol sql.NullString

		if err := rows.Scan(&id, &seq, &targetTable, &fromCol, &toCol, &onUpdate, &onDelete, &match); err != nil {
			return err
		}

		for i := range table.Columns {
			if table.Columns[i].Name == fromCol && table.Columns[i].References == nil {
				table.Columns[i].References = &schema.ColumnRef{
					Schema: schemaName,
					Table:  targetTable,
					// a missing target column refers to the target's primary key
					Column: toCol.String,
				}
			}
		}
	}
	return rows.Err()
}

// quoteIdent quotes an identifier for use in a PRAGMA
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
