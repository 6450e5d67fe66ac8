package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/Yrrrrrf/ts-forge/internal/apperrors"
	"github.com/Yrrrrrf/ts-forge/internal/schema"
)

// MySQLSource reads metadata from MySQL's information_schema. A MySQL
// database plays the role of a schema.
type MySQLSource struct {
	db       *sql.DB
	database string
	logger   *zap.Logger
}

// NewMySQLSource connects to MySQL using a driver DSN (user:pass@tcp(host:port)/db)
func NewMySQLSource(ctx context.Context, dsn string, logger *zap.Logger) (*MySQLSource, error) {
	database, err := ParseDatabaseName(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &MySQLSource{db: db, database: database, logger: logger.With(zap.String("driver", string(MySQL)))}, nil
}

// ParseDatabaseName returns the database named in a MySQL DSN
func ParseDatabaseName(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("%w: invalid MySQL DSN: %v", apperrors.ErrInvalidInput, err)
	}
	if cfg.DBName == "" {
		return "", fmt.Errorf("%w: MySQL DSN names no database", apperrors.ErrInvalidInput)
	}
	return cfg.DBName, nil
}

// Close closes the database connection
func (m *MySQLSource) Close(context.Context) error {
	return m.db.Close()
}

// FetchSchemas reads the named databases, or the connected one when names is empty
func (m *MySQLSource) FetchSchemas(ctx context.Context, names []string) ([]schema.SchemaMetadata, error) {
	if len(names) == 0 {
		names = []string{m.database}
	}

	schemas := make([]schema.SchemaMetadata, 0, len(names))
	for _, name := range names {
		s := newSchema(name)
		steps := []struct {
			what string
			run  func(context.Context, *schema.SchemaMetadata) error
		}{
			{"columns", m.extractColumns},
			{"foreign keys", m.extractForeignKeys},
			{"routines", m.extractRoutines},
			{"triggers", m.extractTriggers},
		}
		for _, step := range steps {
			if err := step.run(ctx, &s); err != nil {
				return nil, fmt.Errorf("failed to extract %s of %s: %w", step.what, name, err)
			}
		}
		m.logger.Debug("Extracted schema", zap.String("schema", name), zap.Int("elements", s.Counts().Total()))
		schemas = append(schemas, s)
	}
	return schemas, nil
}

// extractColumns reads table and view columns. Inline enum columns become
// enums named <table>_<column>, and the column is typed by that enum.
func (m *MySQLSource) extractColumns(ctx context.Context, s *schema.SchemaMetadata) error {
	query := `
		SELECT
			t.table_name,
			t.table_type,
			c.column_name,
			c.data_type,
			c.column_type,
			c.is_nullable,
			c.column_key
		FROM information_schema.tables t
		JOIN information_schema.columns c
			ON c.table_schema = t.table_schema AND c.table_name = t.table_name
		WHERE t.table_schema = ? AND t.table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY t.table_name, c.ordinal_position
	`

	rows, err := m.db.QueryContext(ctx, query, s.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, tableType, columnName, dataType, columnType, nullable, columnKey string
		if err := rows.Scan(&tableName, &tableType, &columnName, &dataType, &columnType, &nullable, &columnKey); err != nil {
			return err
		}

		colType := dataType
		isEnum := false
		if dataType == "enum" {
			values, err := parseEnumValues(columnType)
			if err != nil {
				return err
			}
			colType = tableName + "_" + columnName
			isEnum = true
			if _, exists := s.Enums[colType]; !exists {
				s.Enums[colType] = schema.EnumInfo{Name: colType, Values: values}
			}
		}

		if tableType == "VIEW" {
			view, ok := s.Views[tableName]
			if !ok {
				view = schema.ViewMetadata{Name: tableName, Schema: s.Name}
			}
			view.Columns = append(view.Columns, schema.ViewColumnMetadata{
				Name:     columnName,
				Type:     colType,
				Nullable: nullable == "YES",
			})
			s.Views[tableName] = view
			continue
		}

		table, ok := s.Tables[tableName]
		if !ok {
			table = schema.TableMetadata{Name: tableName, Schema: s.Name}
		}
		table.Columns = append(table.Columns, schema.ColumnMetadata{
			Name:         columnName,
			Type:         colType,
			Nullable:     nullable == "YES",
			IsPrimaryKey: columnKey == "PRI",
			IsEnum:       isEnum,
		})
		s.Tables[tableName] = table
	}
	return rows.Err()
}

func (m *MySQLSource) extractForeignKeys(ctx context.Context, s *schema.SchemaMetadata) error {
	query := `
		SELECT
			kcu.table_name,
			kcu.column_name,
			kcu.referenced_table_schema,
			kcu.referenced_table_name,
			kcu.referenced_column_name
		FROM information_schema.key_column_usage kcu
		WHERE kcu.table_schema = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.table_name, kcu.ordinal_position
	`

	rows, err := m.db.QueryContext(ctx, query, s.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, columnName string
		var ref schema.ColumnRef
		if err := rows.Scan(&tableName, &columnName, &ref.Schema, &ref.Table, &ref.Column); err != nil {
			return err
		}
		if col := findColumn(s, tableName, columnName); col != nil && col.References == nil {
			col.References = &ref
		}
	}
	return rows.Err()
}

func (m *MySQLSource) extractRoutines(ctx context.Context, s *schema.SchemaMetadata) error {
	query := `
		SELECT
			r.routine_name,
			r.routine_type,
			COALESCE(r.data_type, ''),
			COALESCE(r.routine_comment, ''),
			COALESCE(p.parameter_name, ''),
			COALESCE(p.parameter_mode, ''),
			COALESCE(p.data_type, ''),
			COALESCE(p.ordinal_position, 0)
		FROM information_schema.routines r
		LEFT JOIN information_schema.parameters p
			ON p.specific_schema = r.routine_schema
			AND p.specific_name = r.specific_name
			AND p.ordinal_position > 0
		WHERE r.routine_schema = ?
		ORDER BY r.routine_name, p.ordinal_position
	`

	rows, err := m.db.QueryContext(ctx, query, s.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, routineType, returnType, comment, paramName, paramMode, paramType string
		var position int
		if err := rows.Scan(&name, &routineType, &returnType, &comment, &paramName, &paramMode, &paramType, &position); err != nil {
			return err
		}

		target, kind := s.Functions, schema.ObjectFunction
		if routineType == "PROCEDURE" {
			target, kind = s.Procedures, schema.ObjectProcedure
		}
		fn, ok := target[name]
		if !ok {
			fn = schema.FunctionMetadata{
				Name:        name,
				Schema:      s.Name,
				ObjectType:  kind,
				Description: comment,
				Parameters:  []schema.FunctionParameter{},
				ReturnType:  returnType,
			}
		}
		if position > 0 {
			mode := schema.ParamMode(strings.ToLower(paramMode))
			if mode == "" {
				mode = schema.ParamIn
			}
			fn.Parameters = append(fn.Parameters, schema.FunctionParameter{Name: paramName, Type: paramType, Mode: mode})
		}
		target[name] = fn
	}
	return rows.Err()
}

func (m *MySQLSource) extractTriggers(ctx context.Context, s *schema.SchemaMetadata) error {
	query := `
		SELECT trigger_name, action_timing, event_manipulation, event_object_table
		FROM information_schema.triggers
		WHERE trigger_schema = ?
		ORDER BY trigger_name
	`

	rows, err := m.db.QueryContext(ctx, query, s.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, timing, event, table string
		if err := rows.Scan(&name, &timing, &event, &table); err != nil {
			return err
		}
		addTrigger(s, name, timing, event, table)
	}
	return rows.Err()
}

// parseEnumValues parses the values of a MySQL column type such as
// enum('value1','value2'). Quotes inside values are doubled ('it''s').
func parseEnumValues(columnType string) ([]string, error) {
	if !strings.HasPrefix(strings.ToLower(columnType), "enum(") {
		return nil, nil
	}

	start := strings.Index(columnType, "(")
	end := strings.LastIndex(columnType, ")")
	if start == -1 || end == -1 || start >= end {
		return nil, fmt.Errorf("invalid enum type format: %s", columnType)
	}
	list := columnType[start+1 : end]

	var values []string
	var current strings.Builder
	inQuote := false
	for i := 0; i < len(list); i++ {
		c := list[i]
		switch {
		case c == '\'' && inQuote && i+1 < len(list) && list[i+1] == '\'':
			current.WriteByte('\'')
			i++
		case c == '\'':
			inQuote = !inQuote
		case c == ',' && !inQuote:
			values = append(values, current.String())
			current.Reset()
		case inQuote:
			current.WriteByte(c)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("invalid enum type format: %s", columnType)
	}
	values = append(values, current.String())
	return values, nil
}
