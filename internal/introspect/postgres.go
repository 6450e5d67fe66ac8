package introspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Yrrrrrf/ts-forge/internal/schema"
)

const varcharType = "varchar"

// PostgresSource reads metadata from PostgreSQL's catalogs
type PostgresSource struct {
	conn   *pgx.Conn
	logger *zap.Logger
}

// NewPostgresSource connects to PostgreSQL
func NewPostgresSource(ctx context.Context, connString string, logger *zap.Logger) (*PostgresSource, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// Test the connection
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresSource{conn: conn, logger: logger.With(zap.String("driver", string(Postgres)))}, nil
}

// Close closes the database connection
func (p *PostgresSource) Close(ctx context.Context) error {
	return p.conn.Close(ctx)
}

// FetchSchemas reads the named schemas, or every non-system schema when names is empty
func (p *PostgresSource) FetchSchemas(ctx context.Context, names []string) ([]schema.SchemaMetadata, error) {
	if len(names) == 0 {
		var err error
		names, err = p.schemaNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list schemas: %w", err)
		}
	}

	schemas := make([]schema.SchemaMetadata, 0, len(names))
	for _, name := range names {
		s, err := p.extractSchema(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to extract schema %s: %w", name, err)
		}
		p.logger.Debug("Extracted schema", zap.String("schema", name), zap.Int("elements", s.Counts().Total()))
		schemas = append(schemas, s)
	}
	return schemas, nil
}

func (p *PostgresSource) schemaNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT nspname
		FROM pg_namespace
		WHERE nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
			AND nspname NOT LIKE 'pg_temp_%'
			AND nspname NOT LIKE 'pg_toast_temp_%'
		ORDER BY nspname
	`

	rows, err := p.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (p *PostgresSource) extractSchema(ctx context.Context, name string) (schema.SchemaMetadata, error) {
	s := newSchema(name)

	steps := []struct {
		what string
		run  func(context.Context, *schema.SchemaMetadata) error
	}{
		{"enums", p.extractEnums},
		{"columns", p.extractColumns},
		{"primary keys", p.extractPrimaryKeys},
		{"foreign keys", p.extractForeignKeys},
		{"routines", p.extractRoutines},
		{"triggers", p.extractTriggers},
	}
	for _, step := range steps {
		if err := step.run(ctx, &s); err != nil {
			return s, fmt.Errorf("failed to extract %s: %w", step.what, err)
		}
	}
	return s, nil
}

func (p *PostgresSource) extractEnums(ctx context.Context, s *schema.SchemaMetadata) error {
	query := `
		SELECT t.typname, e.enumlabel
		FROM pg_type t
		JOIN pg_enum e ON e.enumtypid = t.oid
		JOIN pg_namespace n ON n.oid = t.typnamespace
		WHERE n.nspname = $1
		ORDER BY t.typname, e.enumsortorder
	`

	rows, err := p.conn.Query(ctx, query, s.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var typeName, label string
		if err := rows.Scan(&typeName, &label); err != nil {
			return err
		}
		enum := s.Enums[typeName]
		enum.Name = typeName
		enum.Values = append(enum.Values, label)
		s.Enums[typeName] = enum
	}
	return rows.Err()
}

// extractColumns reads table and view columns in one pass
func (p *PostgresSource) extractColumns(ctx context.Context, s *schema.SchemaMetadata) error {
	query := `
		SELECT
			t.table_name,
			t.table_type,
			c.column_name,
			c.data_type,
			c.udt_name,
			c.character_maximum_length,
			c.is_nullable
		FROM information_schema.tables t
		LEFT JOIN information_schema.columns c
			ON c.table_schema = t.table_schema AND c.table_name = t.table_name
		WHERE t.table_schema = $1 AND t.table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY t.table_name, c.ordinal_position
	`

	rows, err := p.conn.Query(ctx, query, s.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, tableType string
		var columnName, dataType, udtName, nullable *string
		var charMaxLength *int

		if err := rows.Scan(&tableName, &tableType, &columnName, &dataType, &udtName, &charMaxLength, &nullable); err != nil {
			return err
		}

		if tableType == "VIEW" {
			view, ok := s.Views[tableName]
			if !ok {
				view = schema.ViewMetadata{Name: tableName, Schema: s.Name, Columns: []schema.ViewColumnMetadata{}}
			}
			if columnName != nil {
				view.Columns = append(view.Columns, schema.ViewColumnMetadata{
					Name:     *columnName,
					Type:     normalizePostgresType(deref(dataType), deref(udtName), charMaxLength),
					Nullable: deref(nullable) == "YES",
				})
			}
			s.Views[tableName] = view
			continue
		}

		table, ok := s.Tables[tableName]
		if !ok {
			table = schema.TableMetadata{Name: tableName, Schema: s.Name, Columns: []schema.ColumnMetadata{}}
		}
		if columnName != nil {
			colType := normalizePostgresType(deref(dataType), deref(udtName), charMaxLength)
			_, isEnum := s.Enums[colType]
			table.Columns = append(table.Columns, schema.ColumnMetadata{
				Name:     *columnName,
				Type:     colType,
				Nullable: deref(nullable) == "YES",
				IsEnum:   isEnum,
			})
		}
		s.Tables[tableName] = table
	}
	return rows.Err()
}

func (p *PostgresSource) extractPrimaryKeys(ctx context.Context, s *schema.SchemaMetadata) error {
	query := `
		SELECT kcu.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.table_schema = $1 AND tc.constraint_type = 'PRIMARY KEY'
	`

	rows, err := p.conn.Query(ctx, query, s.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, columnName string
		if err := rows.Scan(&tableName, &columnName); err != nil {
			return err
		}
		if col := findColumn(s, tableName, columnName); col != nil {
			col.IsPrimaryKey = true
		}
	}
	return rows.Err()
}

// extractForeignKeys pairs each referencing column with its referenced
// column by position within the constraint, so composite keys map one to one
func (p *PostgresSource) extractForeignKeys(ctx context.Context, s *schema.SchemaMetadata) error {
	query := `
		SELECT
			cl.relname AS table_name,
			a.attname AS column_name,
			fn.nspname AS foreign_table_schema,
			fcl.relname AS foreign_table_name,
			fa.attname AS foreign_column_name
		FROM pg_constraint c
		JOIN pg_class cl ON cl.oid = c.conrelid
		JOIN pg_namespace n ON n.oid = cl.relnamespace
		JOIN pg_class fcl ON fcl.oid = c.confrelid
		JOIN pg_namespace fn ON fn.oid = fcl.relnamespace
		CROSS JOIN LATERAL unnest(c.conkey, c.confkey) WITH ORDINALITY AS k(attnum, fattnum, position)
		JOIN pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = k.attnum
		JOIN pg_attribute fa ON fa.attrelid = c.confrelid AND fa.attnum = k.fattnum
		WHERE c.contype = 'f'
			AND n.nspname = $1
		ORDER BY cl.relname, c.conname, k.position
	`

	rows, err := p.conn.Query(ctx, query, s.Name)
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

type pgRoutine struct {
	specificName string
	name         string
	routineType  string
	returnType   string
	strict       bool
	description  string
}

// extractRoutines reads functions and procedures with their parameters.
// Trigger functions are left out; overloads keep the first signature.
func (p *PostgresSource) extractRoutines(ctx context.Context, s *schema.SchemaMetadata) error {
	query := `
		SELECT
			r.specific_name,
			r.routine_name,
			r.routine_type,
			CASE WHEN r.data_type = 'USER-DEFINED' OR r.data_type = 'ARRAY' THEN COALESCE(r.type_udt_name, '')
				ELSE COALESCE(r.data_type, '') END,
			COALESCE(r.is_null_call = 'YES', false),
			COALESCE(obj_description(p.oid, 'pg_proc'), '')
		FROM information_schema.routines r
		JOIN pg_proc p ON p.proname = r.routine_name
			AND r.specific_name = p.proname || '_' || p.oid
		WHERE r.specific_schema = $1
			AND r.routine_type IN ('FUNCTION', 'PROCEDURE')
			AND COALESCE(r.data_type, '') <> 'trigger'
		ORDER BY r.routine_name, r.specific_name
	`

	rows, err := p.conn.Query(ctx, query, s.Name)
	if err != nil {
		return err
	}
	routines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (pgRoutine, error) {
		var r pgRoutine
		err := row.Scan(&r.specificName, &r.name, &r.routineType, &r.returnType, &r.strict, &r.description)
		return r, err
	})
	if err != nil {
		return err
	}

	params, err := p.routineParameters(ctx, s.Name)
	if err != nil {
		return fmt.Errorf("failed to extract parameters: %w", err)
	}

	for _, r := range routines {
		target, kind := s.Functions, schema.ObjectFunction
		if r.routineType == "PROCEDURE" {
			target, kind = s.Procedures, schema.ObjectProcedure
		}
		if _, exists := target[r.name]; exists {
			p.logger.Debug("Skipping overload", zap.String("schema", s.Name), zap.String("routine", r.specificName))
			continue
		}

		fn := schema.FunctionMetadata{
			Name:        r.name,
			Schema:      s.Name,
			ObjectType:  kind,
			Description: r.description,
			Parameters:  []schema.FunctionParameter{},
			ReturnType:  r.returnType,
			IsStrict:    r.strict,
		}
		for _, param := range params[r.specificName] {
			// OUT and INOUT parameters of a record-returning function are its result columns
			if fn.ReturnType == "record" && param.Mode != schema.ParamIn {
				fn.ReturnColumns = append(fn.ReturnColumns, schema.ReturnColumn{Name: param.Name, Type: param.Type})
			}
			fn.Parameters = append(fn.Parameters, param)
		}
		target[r.name] = fn
	}
	return nil
}

func (p *PostgresSource) routineParameters(ctx context.Context, schemaName string) (map[string][]schema.FunctionParameter, error) {
	query := `
		SELECT
			specific_name,
			COALESCE(parameter_name, ''),
			COALESCE(parameter_mode, 'IN'),
			data_type,
			udt_name,
			parameter_default
		FROM information_schema.parameters
		WHERE specific_schema = $1
		ORDER BY specific_name, ordinal_position
	`

	rows, err := p.conn.Query(ctx, query, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	params := make(map[string][]schema.FunctionParameter)
	for rows.Next() {
		var specificName, name, mode, dataType, udtName string
		var defaultValue *string
		if err := rows.Scan(&specificName, &name, &mode, &dataType, &udtName, &defaultValue); err != nil {
			return nil, err
		}
		params[specificName] = append(params[specificName], schema.FunctionParameter{
			Name:         name,
			Type:         normalizePostgresType(dataType, udtName, nil),
			Mode:         schema.ParamMode(strings.ToLower(mode)),
			HasDefault:   defaultValue != nil,
			DefaultValue: defaultValue,
		})
	}
	return params, rows.Err()
}

func (p *PostgresSource) extractTriggers(ctx context.Context, s *schema.SchemaMetadata) error {
	query := `
		SELECT trigger_name, action_timing, event_manipulation, event_object_table
		FROM information_schema.triggers
		WHERE trigger_schema = $1
		ORDER BY trigger_name, event_manipulation
	`

	rows, err := p.conn.Query(ctx, query, s.Name)
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

// normalizePostgresType maps information_schema type names to the names the
// type mapper understands. Arrays keep their underscore-prefixed udt name
// ("_int4"), user-defined types (enums, extensions) their own name.
func normalizePostgresType(dataType, udtName string, charMaxLength *int) string {
	switch dataType {
	case "character varying":
		if charMaxLength != nil {
			return fmt.Sprintf("varchar(%d)", *charMaxLength)
		}
		return varcharType
	case "character":
		if charMaxLength != nil {
			return fmt.Sprintf("char(%d)", *charMaxLength)
		}
		return "char"
	case "ARRAY":
		if strings.HasPrefix(udtName, "_") {
			return udtName
		}
		return "array"
	case "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}

func findColumn(s *schema.SchemaMetadata, tableName, columnName string) *schema.ColumnMetadata {
	table, ok := s.Tables[tableName]
	if !ok {
		return nil
	}
	for i := range table.Columns {
		if table.Columns[i].Name == columnName {
			return &table.Columns[i]
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
