//go:build integration

package introspect

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Yrrrrrf/ts-forge/internal/schema"
)

const postgresFixture = `
CREATE SCHEMA shop;
CREATE TYPE shop.order_status AS ENUM ('pending', 'shipped', 'in progress');
CREATE TABLE shop.users (
	id uuid PRIMARY KEY,
	email varchar(255) NOT NULL,
	tags text[],
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE shop.orders (
	id serial PRIMARY KEY,
	user_id uuid NOT NULL REFERENCES shop.users(id),
	status shop.order_status NOT NULL,
	total numeric(10, 2)
);
CREATE TABLE shop.skus (
	product_id int NOT NULL,
	variant text NOT NULL,
	PRIMARY KEY (product_id, variant)
);
CREATE TABLE shop.order_lines (
	id serial PRIMARY KEY,
	variant text NOT NULL,
	product_id int NOT NULL,
	FOREIGN KEY (product_id, variant) REFERENCES shop.skus (product_id, variant)
);
CREATE VIEW shop.order_totals AS
	SELECT user_id, sum(total) AS total FROM shop.orders GROUP BY user_id;
CREATE FUNCTION shop.user_orders(uid uuid, lim int DEFAULT 10)
	RETURNS TABLE(order_id int, order_total numeric)
	LANGUAGE sql AS $$ SELECT id, total FROM shop.orders WHERE user_id = uid LIMIT lim $$;
CREATE PROCEDURE shop.archive(before timestamptz)
	LANGUAGE sql AS $$ SELECT 1 $$;
CREATE FUNCTION shop.touch() RETURNS trigger
	LANGUAGE plpgsql AS $$ BEGIN RETURN NEW; END $$;
CREATE TRIGGER orders_touch BEFORE INSERT OR UPDATE ON shop.orders
	FOR EACH ROW EXECUTE FUNCTION shop.touch();
`

func startPostgres(t *testing.T) string {
	t.Helper()

	if url := os.Getenv("POSTGRES_TEST_URL"); url != "" {
		return url
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "testdb",
				"POSTGRES_USER":     "testuser",
				"POSTGRES_PASSWORD": "testpassword",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://testuser:testpassword@%s:%s/testdb?sslmode=disable", host, port.Port())
}

func TestPostgresSourceIntegration(t *testing.T) {
	ctx := context.Background()
	url := startPostgres(t)

	conn, err := pgx.Connect(ctx, url)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, postgresFixture)
	require.NoError(t, err)
	require.NoError(t, conn.Close(ctx))

	src, err := Open(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close(ctx) })

	schemas, err := src.FetchSchemas(ctx, []string{"shop"})
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	s := schemas[0]

	assert.Equal(t, schema.Counts{Tables: 4, Views: 1, Enums: 1, Functions: 1, Procedures: 1, Triggers: 1}, s.Counts())
	assert.Equal(t, []string{"pending", "shipped", "in progress"}, s.Enums["order_status"].Values)

	users := s.Tables["users"]
	assert.Equal(t, []string{"id"}, users.PrimaryKey())
	require.Len(t, users.Columns, 4)
	assert.Equal(t, "varchar(255)", users.Columns[1].Type)
	assert.Equal(t, "_text", users.Columns[2].Type)
	assert.True(t, users.Columns[2].Nullable)

	orders := s.Tables["orders"]
	require.Len(t, orders.Columns, 4)
	assert.Equal(t, &schema.ColumnRef{Schema: "shop", Table: "users", Column: "id"}, orders.Columns[1].References)
	assert.Equal(t, "order_status", orders.Columns[2].Type)
	assert.True(t, orders.Columns[2].IsEnum)

	lines := s.Tables["order_lines"]
	require.Len(t, lines.Columns, 3)
	assert.Equal(t, &schema.ColumnRef{Schema: "shop", Table: "skus", Column: "variant"}, lines.Columns[1].References)
	assert.Equal(t, &schema.ColumnRef{Schema: "shop", Table: "skus", Column: "product_id"}, lines.Columns[2].References)

	fn := s.Functions["user_orders"]
	require.GreaterOrEqual(t, len(fn.Parameters), 2)
	assert.Equal(t, "uid", fn.Parameters[0].Name)
	assert.True(t, fn.Parameters[1].HasDefault)
	assert.Len(t, fn.ReturnColumns, 2)

	assert.Equal(t, "BEFORE INSERT OR UPDATE ON orders", s.Triggers["orders_touch"].Description)
}

func TestPostgresDiscoversSchemas(t *testing.T) {
	ctx := context.Background()
	url := startPostgres(t)

	src, err := Open(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close(ctx) })

	schemas, err := src.FetchSchemas(ctx, nil)
	require.NoError(t, err)

	var names []string
	for _, s := range schemas {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "public")
	assert.NotContains(t, names, "pg_catalog")
	assert.NotContains(t, names, "information_schema")
}

func TestMySQLSourceIntegration(t *testing.T) {
	url := os.Getenv("MYSQL_TEST_URL")
	if url == "" {
		t.Skip("MYSQL_TEST_URL not set")
	}
	ctx := context.Background()

	src, err := Open(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close(ctx) })

	schemas, err := src.FetchSchemas(ctx, nil)
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	assert.NotEmpty(t, schemas[0].Tables)
}
