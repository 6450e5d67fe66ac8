package introspect

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yrrrrrf/ts-forge/internal/apperrors"
	"github.com/Yrrrrrf/ts-forge/internal/schema"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantDriver Driver
		wantConn   string
		wantErr    bool
	}{
		{
			name:       "postgres",
			url:        "postgres://u:p@localhost:5432/app?sslmode=disable",
			wantDriver: Postgres,
			wantConn:   "postgres://u:p@localhost:5432/app?sslmode=disable",
		},
		{
			name:       "postgresql scheme",
			url:        "postgresql://localhost/app",
			wantDriver: Postgres,
			wantConn:   "postgresql://localhost/app",
		},
		{
			name:       "mysql drops scheme",
			url:        "mysql://root:pw@tcp(localhost:3306)/shop",
			wantDriver: MySQL,
			wantConn:   "root:pw@tcp(localhost:3306)/shop",
		},
		{
			name:       "sqlite path",
			url:        "sqlite://./data/app.db",
			wantDriver: SQLite,
			wantConn:   "./data/app.db",
		},
		{name: "empty", url: "", wantErr: true},
		{name: "sqlite without path", url: "sqlite://", wantErr: true},
		{name: "unknown scheme", url: "mongodb://localhost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, conn, err := ParseURL(tt.url)
			if tt.wantErr {
				require.ErrorIs(t, err, apperrors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDriver, driver)
			assert.Equal(t, tt.wantConn, conn)
		})
	}
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open(context.Background(), "redis://localhost", nil)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestParseDatabaseName(t *testing.T) {
	name, err := ParseDatabaseName("root:pw@tcp(localhost:3306)/shop?parseTime=true")
	require.NoError(t, err)
	assert.Equal(t, "shop", name)

	_, err = ParseDatabaseName("root:pw@tcp(localhost:3306)/")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestParseEnumValues(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{in: "enum('active','inactive','banned')", want: []string{"active", "inactive", "banned"}},
		{in: "ENUM('a')", want: []string{"a"}},
		{in: "enum('it''s','with,comma')", want: []string{"it's", "with,comma"}},
		{in: "enum('')", want: []string{""}},
		{in: "varchar(20)", want: nil},
		{in: "enum('open", wantErr: true},
		{in: "enum('open)", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseEnumValues(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePostgresType(t *testing.T) {
	n := 64
	tests := []struct {
		dataType, udt string
		length        *int
		want          string
	}{
		{dataType: "character varying", length: &n, want: "varchar(64)"},
		{dataType: "character varying", want: "varchar"},
		{dataType: "character", length: &n, want: "char(64)"},
		{dataType: "ARRAY", udt: "_int4", want: "_int4"},
		{dataType: "USER-DEFINED", udt: "order_status", want: "order_status"},
		{dataType: "timestamp with time zone", want: "timestamp with time zone"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePostgresType(tt.dataType, tt.udt, tt.length))
		})
	}
}

func TestAddTriggerMergesEvents(t *testing.T) {
	s := newSchema("public")
	addTrigger(&s, "audit_users", "AFTER", "INSERT", "users")
	addTrigger(&s, "audit_users", "AFTER", "UPDATE", "users")
	addTrigger(&s, "touch", "BEFORE", "UPDATE", "orders")

	require.Len(t, s.Triggers, 2)
	audit := s.Triggers["audit_users"]
	assert.Equal(t, "AFTER INSERT OR UPDATE ON users", audit.Description)
	assert.Equal(t, schema.ObjectTrigger, audit.Kind())
	assert.Equal(t, "public", audit.Schema)
	assert.NotNil(t, audit.Parameters)
	assert.Equal(t, "BEFORE UPDATE ON orders", s.Triggers["touch"].Description)
}

func TestSQLiteSource(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")

	src, err := NewSQLiteSource(ctx, path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close(ctx) })

	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL, bio TEXT)`,
		`CREATE TABLE "order items" (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id),
			price REAL
		)`,
		`CREATE VIEW user_emails AS SELECT id, email FROM users`,
		`CREATE TRIGGER touch_users AFTER UPDATE ON users BEGIN SELECT 1; END`,
	} {
		_, err := src.db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	schemas, err := src.FetchSchemas(ctx, nil)
	require.NoError(t, err)
	require.Len(t, schemas, 1)

	s := schemas[0]
	assert.Equal(t, SQLiteMainSchema, s.Name)
	assert.Equal(t, schema.Counts{Tables: 2, Views: 1, Triggers: 1}, s.Counts())

	users := s.Tables["users"]
	assert.Equal(t, []string{"id"}, users.PrimaryKey())
	require.Len(t, users.Columns, 3)
	assert.Equal(t, schema.ColumnMetadata{Name: "email", Type: "TEXT"}, users.Columns[1])
	assert.True(t, users.Columns[2].Nullable)

	items := s.Tables["order items"]
	require.Len(t, items.Columns, 3)
	assert.Equal(t, &schema.ColumnRef{Schema: "main", Table: "users", Column: "id"}, items.Columns[1].References)

	view := s.Views["user_emails"]
	require.Len(t, view.Columns, 2)
	assert.Equal(t, "email", view.Columns[1].Name)

	other, err := src.FetchSchemas(ctx, []string{"temp"})
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Zero(t, other[0].Counts().Total())
}
