package main

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yrrrrrf/ts-forge/internal/schema"
)

const discoveryPayload = `[
	{
		"name": "public",
		"tables": {
			"users": {"name": "users", "schema": "public", "columns": [
				{"name": "id", "type": "uuid", "nullable": false, "is_pk": true},
				{"name": "email", "type": "text", "nullable": true}
			]},
			"audit_log": {"name": "audit_log", "schema": "public", "columns": [
				{"name": "id", "type": "int8", "nullable": false, "is_pk": true}
			]}
		},
		"enums": {"status": {"name": "status", "values": ["active", "banned"]}}
	}
]`

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /dt/schemas", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(discoveryPayload))
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy","timestamp":"2026-01-02T03:04:05Z","version":"1.0.0","uptime":90}`))
	})
	mux.HandleFunc("GET /health/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`"pong"`))
	})
	mux.HandleFunc("GET /health/cache", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"last_updated":"2026-01-02T03:00:00Z","total_items":7}`))
	})
	mux.HandleFunc("POST /health/clear-cache", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","message":"cache cleared"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGenerateCommand(t *testing.T) {
	srv := newBackend(t)
	dir := t.TempDir()

	out, err := run(t, "generate", "--base-url", srv.URL, "-d", dir, "--exclude", "audit_log", "--dump")
	require.NoError(t, err)

	assert.Contains(t, out, filepath.Join(dir, "types-public.ts"))
	assert.Contains(t, out, filepath.Join(dir, "index.ts"))
	assert.Contains(t, out, filepath.Join(dir, "metadata.json"))

	types, err := os.ReadFile(filepath.Join(dir, "types-public.ts"))
	require.NoError(t, err)
	assert.Contains(t, string(types), "export interface Users {")
	assert.Contains(t, string(types), "export enum Status {")
	assert.NotContains(t, string(types), "AuditLog")
}

func TestDumpCommand(t *testing.T) {
	srv := newBackend(t)

	out, err := run(t, "dump", "--base-url", srv.URL, "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "- name: public")

	file := filepath.Join(t.TempDir(), "meta.json")
	_, err = run(t, "dump", "--base-url", srv.URL, "-o", file)
	require.NoError(t, err)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "public"`)

	_, err = run(t, "dump", "--base-url", srv.URL, "--format", "toml")
	require.Error(t, err)
}

func TestStatsCommand(t *testing.T) {
	srv := newBackend(t)

	out, err := run(t, "stats", "--base-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "SCHEMA")
	assert.Contains(t, out, "public")
	assert.Contains(t, out, "TOTAL")
}

func TestDescribeCommand(t *testing.T) {
	srv := newBackend(t)

	out, err := run(t, "describe", "public", "--base-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "SCHEMA public")
	assert.Contains(t, out, "TABLE users (PK: id)")
	assert.Contains(t, out, "ENUM status (active|banned)")
}

func TestHealthCommand(t *testing.T) {
	srv := newBackend(t)

	out, err := run(t, "health", "--base-url", srv.URL, "--clear-cache")
	require.NoError(t, err)
	assert.Contains(t, out, "status:  healthy")
	assert.Contains(t, out, "ping:    pong")
	assert.Contains(t, out, "cache:   7 items")
	assert.Contains(t, out, "cleared: cache cleared")
}

func TestGenerateFromSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE user_accounts (id INTEGER PRIMARY KEY, name TEXT NOT NULL, bio TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	dir := t.TempDir()
	_, err = run(t, "generate", "--db-url", "sqlite://"+path, "-d", dir)
	require.NoError(t, err)

	types, err := os.ReadFile(filepath.Join(dir, "types-main.ts"))
	require.NoError(t, err)
	assert.Contains(t, string(types), "export interface UserAccounts {\n  id: number;\n  name: string;\n  bio?: string;\n}")
}

func TestHealthNeedsBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	_, err := run(t, "health", "--db-url", "sqlite://"+path, "--base-url", "")
	require.Error(t, err)
}

func TestExcludeTables(t *testing.T) {
	newSchemas := func() []schema.SchemaMetadata {
		return []schema.SchemaMetadata{
			{Name: "public", Tables: map[string]schema.TableMetadata{
				"users": {Name: "users"}, "posts": {Name: "posts"}, "comments": {Name: "comments"},
			}},
			{Name: "audit", Tables: map[string]schema.TableMetadata{
				"posts": {Name: "posts"}, "events": {Name: "events"},
			}},
		}
	}

	tests := []struct {
		name       string
		exclude    []string
		wantPublic []string
		wantAudit  []string
	}{
		{
			name:       "exclude nothing",
			exclude:    nil,
			wantPublic: []string{"comments", "posts", "users"},
			wantAudit:  []string{"events", "posts"},
		},
		{
			name:       "bare name matches every schema",
			exclude:    []string{"posts"},
			wantPublic: []string{"comments", "users"},
			wantAudit:  []string{"events"},
		},
		{
			name:       "qualified name matches one schema",
			exclude:    []string{"audit.posts"},
			wantPublic: []string{"comments", "posts", "users"},
			wantAudit:  []string{"events"},
		},
		{
			name:       "exclude multiple with spaces",
			exclude:    []string{" users", "public.comments "},
			wantPublic: []string{"posts"},
			wantAudit:  []string{"events", "posts"},
		},
		{
			name:       "exclude non-existent table",
			exclude:    []string{"products", "nope.users"},
			wantPublic: []string{"comments", "posts", "users"},
			wantAudit:  []string{"events", "posts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schemas := newSchemas()
			excludeTables(schemas, tt.exclude)
			assert.Equal(t, tt.wantPublic, schema.SortedKeys(schemas[0].Tables))
			assert.Equal(t, tt.wantAudit, schema.SortedKeys(schemas[1].Tables))
		})
	}
}
