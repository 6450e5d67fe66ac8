package crud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yrrrrrf/ts-forge/internal/apperrors"
	"github.com/Yrrrrrf/ts-forge/internal/request"
	"github.com/Yrrrrrf/ts-forge/internal/schema"
)

type user struct {
	ID    string  `json:"id"`
	Email *string `json:"email"`
}

type recorded struct {
	path string
	opts request.Options
}

// spyRequester records calls and answers with a fixed body or error
type spyRequester struct {
	body  string
	err   error
	calls []recorded
}

func (s *spyRequester) Do(ctx context.Context, path string, opts request.Options, out any) error {
	s.calls = append(s.calls, recorded{path: path, opts: opts})
	if s.err != nil {
		return s.err
	}
	if out == nil || s.body == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.body), out)
}

func notFound(path string) error {
	return &request.Error{Method: http.MethodGet, Path: path, Status: http.StatusNotFound}
}

func usersTable() *schema.TableMetadata {
	return &schema.TableMetadata{
		Name:   "users",
		Schema: "public",
		Columns: []schema.ColumnMetadata{
			{Name: "id", Type: "uuid", IsPrimaryKey: true},
			{Name: "email", Type: "varchar(255)", Nullable: true},
		},
	}
}

func newUsers(t *testing.T, spy *spyRequester) *Operations[user] {
	t.Helper()
	ops, err := New[user](spy, usersTable(), nil)
	require.NoError(t, err)
	return ops
}

func TestNewValidatesEagerly(t *testing.T) {
	tests := []struct {
		name  string
		table *schema.TableMetadata
	}{
		{name: "nil table", table: nil},
		{name: "missing name", table: &schema.TableMetadata{Schema: "public"}},
		{name: "missing schema", table: &schema.TableMetadata{Name: "users"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyRequester{}
			ops, err := New[user](spy, tt.table, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Nil(t, ops)
			assert.Empty(t, spy.calls, "no request before validation passes")
		})
	}

	_, err := New[user](nil, usersTable(), nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestOperationsBinding(t *testing.T) {
	ops := newUsers(t, &spyRequester{})
	assert.Equal(t, "/public/users", ops.Path())
	assert.Equal(t, []string{"id"}, ops.PrimaryKey())
}

func TestFindAll(t *testing.T) {
	spy := &spyRequester{body: `[{"id":"1","email":"a@example.com"},{"id":"2","email":null}]`}
	ops := newUsers(t, spy)

	users, err := ops.FindAll(context.Background(), &Filter{Where: map[string]any{"active": true}, Limit: 2})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "1", users[0].ID)
	require.NotNil(t, users[0].Email)
	assert.Equal(t, "a@example.com", *users[0].Email)
	assert.Nil(t, users[1].Email)

	require.Len(t, spy.calls, 1)
	call := spy.calls[0]
	assert.Equal(t, "/public/users", call.path)
	assert.Equal(t, http.MethodGet, call.opts.Method)
	assert.Equal(t, `{"active":true}`, call.opts.Params.Get("where"))
	assert.Equal(t, "2", call.opts.Params.Get("limit"))
	assert.False(t, call.opts.Params.Has("offset"))
}

func TestFindAllWithoutFilterSendsNoParams(t *testing.T) {
	spy := &spyRequester{body: `[]`}
	ops := newUsers(t, spy)

	users, err := ops.FindAll(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
	assert.Empty(t, spy.calls[0].opts.Params)
}

func TestFindAllEmptyResults(t *testing.T) {
	tests := []struct {
		name string
		spy  *spyRequester
	}{
		{name: "not found", spy: &spyRequester{err: notFound("/public/users")}},
		{name: "null body", spy: &spyRequester{body: `null`}},
		{name: "no body", spy: &spyRequester{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := newUsers(t, tt.spy).FindAll(context.Background(), nil)
			require.NoError(t, err)
			assert.NotNil(t, users)
			assert.Empty(t, users)
		})
	}
}

func TestFindAllTransportFailure(t *testing.T) {
	spy := &spyRequester{err: &request.Error{Method: http.MethodGet, Path: "/public/users", Status: 503, Attempts: 3}}
	_, err := newUsers(t, spy).FindAll(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTransport)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 503, request.StatusCode(err))
}

func TestFindMany(t *testing.T) {
	spy := &spyRequester{body: `[{"id":"3"}]`}
	users, err := newUsers(t, spy).FindMany(context.Background(), Filter{
		OrderBy: OrderBy{{Column: "email", Direction: Desc}},
		Offset:  20,
	})
	require.NoError(t, err)
	require.Len(t, users, 1)

	params := spy.calls[0].opts.Params
	assert.Equal(t, url.Values{"order_by": {`{"email":"desc"}`}, "offset": {"20"}}, params)
}

func TestFindOne(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantID string
	}{
		{name: "object", body: `{"id":"42","email":"x@example.com"}`, wantID: "42"},
		{name: "single element array", body: `[{"id":"42"}]`, wantID: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyRequester{body: tt.body}
			got, err := newUsers(t, spy).FindOne(context.Background(), 42)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)

			require.Len(t, spy.calls, 1)
			assert.Equal(t, "/public/users/42", spy.calls[0].path)
			assert.Equal(t, http.MethodGet, spy.calls[0].opts.Method)
			assert.Empty(t, spy.calls[0].opts.Params)
		})
	}
}

func TestFindOneNotFound(t *testing.T) {
	tests := []struct {
		name string
		spy  *spyRequester
	}{
		{name: "404", spy: &spyRequester{err: notFound("/public/users/999")}},
		{name: "null", spy: &spyRequester{body: `null`}},
		{name: "empty object", spy: &spyRequester{body: `{}`}},
		{name: "empty array", spy: &spyRequester{body: `[]`}},
		{name: "array of null", spy: &spyRequester{body: `[null]`}},
		{name: "no body", spy: &spyRequester{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newUsers(t, tt.spy).FindOne(context.Background(), "999")
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrNotFound)
			assert.NotErrorIs(t, err, apperrors.ErrTransport)
			assert.Equal(t, user{}, got)
		})
	}
}

func TestFindOneAmbiguous(t *testing.T) {
	spy := &spyRequester{body: `[{"id":"1"},{"id":"1"}]`}
	_, err := newUsers(t, spy).FindOne(context.Background(), "1")
	assert.ErrorIs(t, err, apperrors.ErrAmbiguous)
}

func TestFindOneEscapesID(t *testing.T) {
	spy := &spyRequester{body: `{"id":"a/b"}`}
	_, err := newUsers(t, spy).FindOne(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "/public/users/a%2Fb", spy.calls[0].path)
}

func TestInvalidID(t *testing.T) {
	spy := &spyRequester{}
	ops := newUsers(t, spy)
	ctx := context.Background()

	_, err := ops.FindOne(ctx, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = ops.Update(ctx, "", map[string]any{"email": "x"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.ErrorIs(t, ops.Delete(ctx, nil), apperrors.ErrInvalidInput)
	assert.Empty(t, spy.calls)
}

func TestCreate(t *testing.T) {
	spy := &spyRequester{body: `{"id":"generated-1","email":"new@example.com"}`}
	data := map[string]any{"email": "new@example.com"}

	created, err := newUsers(t, spy).Create(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "generated-1", created.ID, "server-assigned fields come back")

	call := spy.calls[0]
	assert.Equal(t, "/public/users", call.path)
	assert.Equal(t, http.MethodPost, call.opts.Method)
	assert.Equal(t, data, call.opts.Body)

	_, err = newUsers(t, &spyRequester{}).Create(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUpdate(t *testing.T) {
	spy := &spyRequester{body: `{"id":"7","email":"changed@example.com"}`}
	data := map[string]any{"email": "changed@example.com"}

	updated, err := newUsers(t, spy).Update(context.Background(), "7", data)
	require.NoError(t, err)
	require.NotNil(t, updated.Email)
	assert.Equal(t, "changed@example.com", *updated.Email)

	call := spy.calls[0]
	assert.Equal(t, "/public/users/7", call.path)
	assert.Equal(t, http.MethodPut, call.opts.Method)
	assert.Equal(t, data, call.opts.Body)
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name    string
		spy     *spyRequester
		wantErr error
	}{
		{name: "deleted", spy: &spyRequester{}},
		{name: "already absent", spy: &spyRequester{err: notFound("/public/users/7")}},
		{name: "server error", spy: &spyRequester{err: &request.Error{Status: 500}}, wantErr: apperrors.ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newUsers(t, tt.spy).Delete(context.Background(), 7)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			require.Len(t, tt.spy.calls, 1)
			assert.Equal(t, "/public/users/7", tt.spy.calls[0].path)
			assert.Equal(t, http.MethodDelete, tt.spy.calls[0].opts.Method)
		})
	}
}

func TestCount(t *testing.T) {
	tests := []struct {
		name string
		spy  *spyRequester
		want int64
	}{
		{name: "wrapped", spy: &spyRequester{body: `{"count": 12}`}, want: 12},
		{name: "bare number", spy: &spyRequester{body: `5`}, want: 5},
		{name: "not found", spy: &spyRequester{err: notFound("/public/users")}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := newUsers(t, tt.spy).Count(context.Background(), &Filter{Where: map[string]any{"active": true}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)

			call := tt.spy.calls[0]
			assert.Equal(t, "/public/users", call.path)
			assert.Equal(t, "true", call.opts.Params.Get("count"))
			assert.Equal(t, `{"active":true}`, call.opts.Params.Get("where"))
		})
	}
}

func TestCountUnexpectedResponse(t *testing.T) {
	_, err := newUsers(t, &spyRequester{body: `{"total": 3}`}).Count(context.Background(), nil)
	assert.Error(t, err)

	_, err = newUsers(t, &spyRequester{err: errors.New("boom")}).Count(context.Background(), nil)
	assert.Error(t, err)
}

func TestViewReader(t *testing.T) {
	spy := &spyRequester{body: `[{"id":"1"}]`}
	view := &schema.ViewMetadata{Name: "active_users", Schema: "public"}

	reader, err := NewViewReader[user](spy, view, nil)
	require.NoError(t, err)
	assert.Equal(t, "/public/active_users", reader.Path())

	rows, err := reader.FindAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = NewViewReader[user](spy, &schema.ViewMetadata{Schema: "public"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = NewViewReader[user](spy, nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestGenericRows(t *testing.T) {
	spy := &spyRequester{body: `{"id":"1","extra":3}`}
	ops, err := New[Row](spy, usersTable(), nil)
	require.NoError(t, err)

	row, err := ops.FindOne(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, Row{"id": "1", "extra": float64(3)}, row)
}
