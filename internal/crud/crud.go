// Package crud builds record operations bound to one table or view resource.
//
// Tables get the full create/read/update/delete/count set; views are
// read-only. Collection reads treat a missing resource as an empty result,
// single-record reads fail with apperrors.ErrNotFound.
package crud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/Yrrrrrf/ts-forge/internal/apperrors"
	"github.com/Yrrrrrf/ts-forge/internal/request"
	"github.com/Yrrrrrf/ts-forge/internal/schema"
)

// Row is the record type used when no generated Go type is available
type Row = map[string]any

// Reader reads records from a table or view resource
type Reader[T any] struct {
	req      request.Requester
	logger   *zap.Logger
	schema   string
	name     string
	basePath string
}

// Operations is the full record operation set for one table
type Operations[T any] struct {
	*Reader[T]
	primaryKey []string
}

// New validates table eagerly and binds operations to /{schema}/{table}.
// Malformed metadata fails with apperrors.ErrInvalidInput before any request.
func New[T any](req request.Requester, table *schema.TableMetadata, logger *zap.Logger) (*Operations[T], error) {
	if table == nil {
		return nil, fmt.Errorf("%w: invalid table metadata: nil", apperrors.ErrInvalidInput)
	}
	reader, err := newReader[T](req, table.Schema, table.Name, "table", logger)
	if err != nil {
		return nil, err
	}
	return &Operations[T]{Reader: reader, primaryKey: table.PrimaryKey()}, nil
}

// NewViewReader binds read-only operations to /{schema}/{view}
func NewViewReader[T any](req request.Requester, view *schema.ViewMetadata, logger *zap.Logger) (*Reader[T], error) {
	if view == nil {
		return nil, fmt.Errorf("%w: invalid view metadata: nil", apperrors.ErrInvalidInput)
	}
	return newReader[T](req, view.Schema, view.Name, "view", logger)
}

func newReader[T any](req request.Requester, schemaName, name, kind string, logger *zap.Logger) (*Reader[T], error) {
	if name == "" {
		return nil, fmt.Errorf("%w: invalid %s metadata: missing name", apperrors.ErrInvalidInput, kind)
	}
	if schemaName == "" {
		return nil, fmt.Errorf("%w: invalid %s metadata: %s has no schema", apperrors.ErrInvalidInput, kind, name)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: request client is required", apperrors.ErrInvalidInput)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader[T]{
		req:      req,
		logger:   logger.Named("crud").With(zap.String("schema", schemaName), zap.String(kind, name)),
		schema:   schemaName,
		name:     name,
		basePath: "/" + url.PathEscape(schemaName) + "/" + url.PathEscape(name),
	}, nil
}

// Path returns the collection path the operations are bound to
func (r *Reader[T]) Path() string {
	return r.basePath
}

// PrimaryKey returns the primary key columns of the table, if known
func (o *Operations[T]) PrimaryKey() []string {
	return o.primaryKey
}

// FindAll reads every record matching filter (nil reads everything).
// A missing resource yields an empty, non-nil slice.
func (r *Reader[T]) FindAll(ctx context.Context, filter *Filter) ([]T, error) {
	params, err := filter.Params()
	if err != nil {
		return nil, err
	}

	var records []T
	err = r.req.Do(ctx, r.basePath, request.Options{Method: http.MethodGet, Params: params}, &records)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			r.logger.Debug("Collection not found, returning empty result")
			return []T{}, nil
		}
		return nil, fmt.Errorf("failed to read %s.%s: %w", r.schema, r.name, err)
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

// FindMany is FindAll with a mandatory filter
func (r *Reader[T]) FindMany(ctx context.Context, filter Filter) ([]T, error) {
	return r.FindAll(ctx, &filter)
}

// Count returns the number of records matching filter. The backend may answer
// {"count": n} or a bare number; a missing resource counts as zero.
func (r *Reader[T]) Count(ctx context.Context, filter *Filter) (int64, error) {
	params, err := filter.Params()
	if err != nil {
		return 0, err
	}
	params.Set(ParamCount, "true")

	var raw json.RawMessage
	err = r.req.Do(ctx, r.basePath, request.Options{Method: http.MethodGet, Params: params}, &raw)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count %s.%s: %w", r.schema, r.name, err)
	}
	return decodeCount(raw)
}

func decodeCount(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)

	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var wrapped struct {
		Count *int64 `json:"count"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Count != nil {
		return *wrapped.Count, nil
	}
	return 0, fmt.Errorf("unexpected count response: %s", raw)
}

// FindOne reads the record addressed by id. No match (404, null, {} or [])
// fails with apperrors.ErrNotFound; a multi-record answer fails with
// apperrors.ErrAmbiguous.
func (o *Operations[T]) FindOne(ctx context.Context, id any) (T, error) {
	var zero T
	path, err := o.recordPath(id)
	if err != nil {
		return zero, err
	}

	var raw json.RawMessage
	if err := o.req.Do(ctx, path, request.Options{Method: http.MethodGet}, &raw); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return zero, o.notFound(id, err)
		}
		return zero, fmt.Errorf("failed to read %s.%s id %v: %w", o.schema, o.name, id, err)
	}

	record, err := o.single(raw, id)
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(record, &out); err != nil {
		return zero, fmt.Errorf("failed to decode %s.%s record: %w", o.schema, o.name, err)
	}
	return out, nil
}

// single reduces a response to exactly one JSON object
func (o *Operations[T]) single(raw json.RawMessage, id any) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, o.notFound(id, nil)
	}

	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("failed to decode %s.%s response: %w", o.schema, o.name, err)
		}
		switch len(items) {
		case 0:
			return nil, o.notFound(id, nil)
		case 1:
			return o.single(items[0], id)
		default:
			return nil, fmt.Errorf("%w: %d %s.%s records match id %v",
				apperrors.ErrAmbiguous, len(items), o.schema, o.name, id)
		}
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode %s.%s response: %w", o.schema, o.name, err)
		}
		if len(fields) == 0 {
			return nil, o.notFound(id, nil)
		}
	}
	return raw, nil
}

func (o *Operations[T]) notFound(id any, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: no %s.%s record with id %v (%v)", apperrors.ErrNotFound, o.schema, o.name, id, cause)
	}
	return fmt.Errorf("%w: no %s.%s record with id %v", apperrors.ErrNotFound, o.schema, o.name, id)
}

// Create sends data (typically a partial record) and returns the created
// record as the backend represents it
func (o *Operations[T]) Create(ctx context.Context, data any) (T, error) {
	var out T
	if data == nil {
		return out, fmt.Errorf("%w: create requires data", apperrors.ErrInvalidInput)
	}
	if err := o.req.Do(ctx, o.basePath, request.Options{Method: http.MethodPost, Body: data}, &out); err != nil {
		return out, fmt.Errorf("failed to create %s.%s record: %w", o.schema, o.name, err)
	}
	o.logger.Debug("Created record")
	return out, nil
}

// Update applies a partial update to the record addressed by id
func (o *Operations[T]) Update(ctx context.Context, id any, data any) (T, error) {
	var out T
	path, err := o.recordPath(id)
	if err != nil {
		return out, err
	}
	if data == nil {
		return out, fmt.Errorf("%w: update requires data", apperrors.ErrInvalidInput)
	}
	if err := o.req.Do(ctx, path, request.Options{Method: http.MethodPut, Body: data}, &out); err != nil {
		return out, fmt.Errorf("failed to update %s.%s id %v: %w", o.schema, o.name, id, err)
	}
	o.logger.Debug("Updated record", zap.Any("id", id))
	return out, nil
}

// Delete removes the record addressed by id. Deleting an absent record is not an error.
func (o *Operations[T]) Delete(ctx context.Context, id any) error {
	path, err := o.recordPath(id)
	if err != nil {
		return err
	}
	if err := o.req.Do(ctx, path, request.Options{Method: http.MethodDelete}, nil); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			o.logger.Debug("Record already absent", zap.Any("id", id))
			return nil
		}
		return fmt.Errorf("failed to delete %s.%s id %v: %w", o.schema, o.name, id, err)
	}
	return nil
}

// recordPath addresses one record: /{schema}/{table}/{id}
func (o *Operations[T]) recordPath(id any) (string, error) {
	if id == nil {
		return "", fmt.Errorf("%w: record id is required", apperrors.ErrInvalidInput)
	}
	segment := fmt.Sprint(id)
	if segment == "" {
		return "", fmt.Errorf("%w: record id is required", apperrors.ErrInvalidInput)
	}
	return o.basePath + "/" + url.PathEscape(segment), nil
}
