// Package metadata retrieves schema metadata from the backend's /dt endpoints.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/Yrrrrrf/ts-forge/internal/apperrors"
	"github.com/Yrrrrrf/ts-forge/internal/request"
	"github.com/Yrrrrrf/ts-forge/internal/schema"
)

// Source produces a full metadata snapshot. The REST Fetcher and the direct
// database introspectors both implement it.
type Source interface {
	FetchSchemas(ctx context.Context, schemaNames []string) ([]schema.SchemaMetadata, error)
}

// Fetcher reads metadata through a request primitive
type Fetcher struct {
	req    request.Requester
	logger *zap.Logger
}

// NewFetcher creates a metadata fetcher
func NewFetcher(req request.Requester, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{req: req, logger: logger.Named("metadata")}
}

// FetchSchemas retrieves the named schemas (all schemas if none are named) in a
// single request. The result is normalized and keeps the backend's order.
func (f *Fetcher) FetchSchemas(ctx context.Context, schemaNames []string) ([]schema.SchemaMetadata, error) {
	var params url.Values
	if len(schemaNames) > 0 {
		params = url.Values{"schemas": {strings.Join(schemaNames, ",")}}
	}

	var raw []schema.SchemaMetadata
	if err := f.get(ctx, "/dt/schemas", params, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch schemas: %w", err)
	}

	schemas := make([]schema.SchemaMetadata, 0, len(raw))
	for _, s := range raw {
		if s.Name == "" {
			return nil, fmt.Errorf("%w: backend returned a schema without a name", apperrors.ErrInvalidInput)
		}
		// the backend may ignore the filter; honour it here
		if len(schemaNames) > 0 && !slices.Contains(schemaNames, s.Name) {
			continue
		}
		schemas = append(schemas, s.Normalize())
	}

	f.logger.Debug("Fetched schema metadata",
		zap.Int("schemas", len(schemas)),
		zap.Strings("requested", schemaNames))

	return schemas, nil
}

// Tables lists the tables of one schema
func (f *Fetcher) Tables(ctx context.Context, schemaName string) ([]schema.TableMetadata, error) {
	var tables []schema.TableMetadata
	if err := f.getCategory(ctx, schemaName, "tables", &tables); err != nil {
		return nil, err
	}
	for i := range tables {
		if tables[i].Schema == "" {
			tables[i].Schema = schemaName
		}
	}
	return tables, nil
}

// Views lists the views of one schema
func (f *Fetcher) Views(ctx context.Context, schemaName string) ([]schema.ViewMetadata, error) {
	var views []schema.ViewMetadata
	if err := f.getCategory(ctx, schemaName, "views", &views); err != nil {
		return nil, err
	}
	for i := range views {
		if views[i].Schema == "" {
			views[i].Schema = schemaName
		}
	}
	return views, nil
}

// Enums lists the enums of one schema
func (f *Fetcher) Enums(ctx context.Context, schemaName string) ([]schema.EnumInfo, error) {
	var enums []schema.EnumInfo
	if err := f.getCategory(ctx, schemaName, "enums", &enums); err != nil {
		return nil, err
	}
	return enums, nil
}

// Functions lists the functions of one schema
func (f *Fetcher) Functions(ctx context.Context, schemaName string) ([]schema.FunctionMetadata, error) {
	return f.callables(ctx, schemaName, "functions", schema.ObjectFunction)
}

// Procedures lists the procedures of one schema
func (f *Fetcher) Procedures(ctx context.Context, schemaName string) ([]schema.FunctionMetadata, error) {
	return f.callables(ctx, schemaName, "procedures", schema.ObjectProcedure)
}

// Triggers lists the triggers of one schema
func (f *Fetcher) Triggers(ctx context.Context, schemaName string) ([]schema.FunctionMetadata, error) {
	return f.callables(ctx, schemaName, "triggers", schema.ObjectTrigger)
}

func (f *Fetcher) callables(ctx context.Context, schemaName, category string, kind schema.ObjectType) ([]schema.FunctionMetadata, error) {
	var fns []schema.FunctionMetadata
	if err := f.getCategory(ctx, schemaName, category, &fns); err != nil {
		return nil, err
	}
	for i := range fns {
		if fns[i].ObjectType == "" {
			fns[i].ObjectType = kind
		}
		if fns[i].Schema == "" {
			fns[i].Schema = schemaName
		}
	}
	return fns, nil
}

func (f *Fetcher) getCategory(ctx context.Context, schemaName, category string, out any) error {
	if schemaName == "" {
		return fmt.Errorf("%w: schema name is required", apperrors.ErrInvalidInput)
	}
	path := "/dt/" + url.PathEscape(schemaName) + "/" + category
	if err := f.get(ctx, path, nil, out); err != nil {
		return fmt.Errorf("failed to fetch %s for schema %s: %w", category, schemaName, err)
	}
	return nil
}

// get treats a 404 as an empty collection: these endpoints describe optional metadata
func (f *Fetcher) get(ctx context.Context, path string, params url.Values, out any) error {
	err := f.req.Do(ctx, path, request.Options{Method: http.MethodGet, Params: params}, out)
	if err != nil && errors.Is(err, apperrors.ErrNotFound) {
		f.logger.Debug("Metadata endpoint not found, treating as empty", zap.String("path", path))
		return nil
	}
	return err
}
