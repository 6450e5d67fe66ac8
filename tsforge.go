// Package tsforge is a client for REST backends that front a relational
// database. It discovers the backend's schema metadata, exposes name-based
// lookups and CRUD operations over it, and generates TypeScript declarations
// for every table, view, enum and callable.
//
// # Quick Start
//
//	forge, err := tsforge.New(ctx, tsforge.ClientConfig{BaseURL: "http://localhost:8000"}, nil)
//	if err != nil {
//		return err
//	}
//	users, err := tsforge.Table[User](ctx, forge, "public", "users")
//	if err != nil {
//		return err
//	}
//	active, err := users.FindMany(ctx, tsforge.Filter{Where: map[string]any{"status": "active"}})
//
// # Initialization
//
// New returns immediately and loads metadata in the background. Every method
// that needs metadata waits for that load to finish (or for its context to
// end), so callers never observe a partially loaded snapshot. Refresh
// replaces the snapshot wholesale; readers holding the previous one are
// unaffected.
//
// # Generation
//
//	files, err := forge.WriteTypes(ctx, "src/gen")
//
// writes one types-<schema>.ts file per schema and an index.ts re-exporting
// them all.
package tsforge

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Yrrrrrf/ts-forge/internal/apperrors"
	"github.com/Yrrrrrf/ts-forge/internal/crud"
	"github.com/Yrrrrrf/ts-forge/internal/generator"
	"github.com/Yrrrrrf/ts-forge/internal/health"
	"github.com/Yrrrrrf/ts-forge/internal/metadata"
	"github.com/Yrrrrrf/ts-forge/internal/operators"
	"github.com/Yrrrrrf/ts-forge/internal/output"
	"github.com/Yrrrrrf/ts-forge/internal/request"
	"github.com/Yrrrrrf/ts-forge/internal/schema"
)

// Metadata model
type (
	SchemaMetadata   = schema.SchemaMetadata
	TableMetadata    = schema.TableMetadata
	ViewMetadata     = schema.ViewMetadata
	ColumnMetadata   = schema.ColumnMetadata
	EnumInfo         = schema.EnumInfo
	FunctionMetadata = schema.FunctionMetadata
	Counts           = schema.Counts
	HealthStatus     = schema.HealthStatus
	CacheStatus      = schema.CacheStatus
	ClearCacheResult = schema.ClearCacheResult
)

// Record operations
type (
	Row               = crud.Row
	Filter            = crud.Filter
	Order             = crud.Order
	OrderBy           = crud.OrderBy
	Operations[T any] = crud.Operations[T]
	Reader[T any]     = crud.Reader[T]
)

// Transport, generation and health
type (
	ClientConfig      = request.Config
	RequestOptions    = request.Options
	RequestError      = request.Error
	MetadataSource    = metadata.Source
	GeneratedFile     = generator.File
	GenerationWarning = generator.Warning
	GenerationResult  = generator.Result
	HealthReporter    = health.Reporter
)

// Error conditions, usable with errors.Is
var (
	ErrTransport     = apperrors.ErrTransport
	ErrNotFound      = apperrors.ErrNotFound
	ErrInvalidInput  = apperrors.ErrInvalidInput
	ErrUnknownType   = apperrors.ErrUnknownType
	ErrNameCollision = apperrors.ErrNameCollision
	ErrAmbiguous     = apperrors.ErrAmbiguous
)

// Options configures a Forge. All fields are optional.
type Options struct {
	// Schemas limits discovery to the named schemas. Empty loads every schema.
	Schemas []string

	// Source replaces the backend's discovery endpoint as the metadata
	// source, e.g. a direct database introspector.
	Source MetadataSource

	Logger *zap.Logger
}

// Forge is the client facade. It is safe for concurrent use.
type Forge struct {
	client  *request.Client
	source  metadata.Source
	health  *health.Client
	schemas []string
	logger  *zap.Logger

	ready    chan struct{}
	initErr  error
	snapshot atomic.Pointer[operators.Operators]

	// serializes refreshes
	refreshMu sync.Mutex
}

// New creates a Forge for the backend described by cfg and starts loading
// metadata in the background. ctx bounds the initial load only.
func New(ctx context.Context, cfg ClientConfig, opts *Options) (*Forge, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := request.NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	source := opts.Source
	if source == nil {
		source = metadata.NewFetcher(client, logger)
	}

	f := &Forge{
		client:  client,
		source:  source,
		health:  health.NewClient(client, logger),
		schemas: append([]string(nil), opts.Schemas...),
		logger:  logger.Named("forge"),
		ready:   make(chan struct{}),
	}

	go f.initialize(ctx)

	return f, nil
}

func (f *Forge) initialize(ctx context.Context) {
	defer close(f.ready)

	ops, err := f.load(ctx)
	if err != nil {
		f.initErr = fmt.Errorf("failed to load schema metadata: %w", err)
		f.logger.Error("Initialization failed", zap.Error(err))
		return
	}
	f.snapshot.Store(ops)
	f.logger.Info("Loaded schema metadata",
		zap.Strings("schemas", ops.SchemaNames()),
		zap.Int("elements", ops.Counts().Total()))
}

func (f *Forge) load(ctx context.Context) (*operators.Operators, error) {
	schemas, err := f.source.FetchSchemas(ctx, f.schemas)
	if err != nil {
		return nil, err
	}
	return operators.New(schemas, f.client, f.logger), nil
}

// Operators waits for initialization and returns the current snapshot
func (f *Forge) Operators(ctx context.Context) (*operators.Operators, error) {
	select {
	case <-f.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	// a successful refresh supersedes a failed initial load
	if ops := f.snapshot.Load(); ops != nil {
		return ops, nil
	}
	return nil, f.initErr
}

// Ready blocks until metadata is loaded and reports the load error, if any
func (f *Forge) Ready(ctx context.Context) error {
	_, err := f.Operators(ctx)
	return err
}

// Refresh refetches metadata and atomically replaces the snapshot. On
// failure the previous snapshot stays in place.
func (f *Forge) Refresh(ctx context.Context) error {
	select {
	case <-f.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	ops, err := f.load(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh schema metadata: %w", err)
	}
	f.snapshot.Store(ops)
	f.logger.Info("Refreshed schema metadata", zap.Int("elements", ops.Counts().Total()))
	return nil
}

// BaseURL returns the backend root
func (f *Forge) BaseURL() string {
	return f.client.BaseURL()
}

// Health exposes the backend's health endpoints
func (f *Forge) Health() HealthReporter {
	return f.health
}

// Schemas returns the loaded schemas in load order
func (f *Forge) Schemas(ctx context.Context) ([]SchemaMetadata, error) {
	ops, err := f.Operators(ctx)
	if err != nil {
		return nil, err
	}
	return ops.Schemas(), nil
}

// GetSchema looks up a schema. A miss is reported by ok, not by err.
func (f *Forge) GetSchema(ctx context.Context, name string) (s SchemaMetadata, ok bool, err error) {
	ops, err := f.Operators(ctx)
	if err != nil {
		return s, false, err
	}
	s, ok = ops.GetSchema(name)
	return s, ok, nil
}

// GetTable looks up a table
func (f *Forge) GetTable(ctx context.Context, schemaName, table string) (t TableMetadata, ok bool, err error) {
	ops, err := f.Operators(ctx)
	if err != nil {
		return t, false, err
	}
	t, ok = ops.GetTable(schemaName, table)
	return t, ok, nil
}

// GetView looks up a view
func (f *Forge) GetView(ctx context.Context, schemaName, view string) (v ViewMetadata, ok bool, err error) {
	ops, err := f.Operators(ctx)
	if err != nil {
		return v, false, err
	}
	v, ok = ops.GetView(schemaName, view)
	return v, ok, nil
}

// GetEnum looks up an enum
func (f *Forge) GetEnum(ctx context.Context, schemaName, enum string) (e EnumInfo, ok bool, err error) {
	ops, err := f.Operators(ctx)
	if err != nil {
		return e, false, err
	}
	e, ok = ops.GetEnum(schemaName, enum)
	return e, ok, nil
}

// GetFunction looks up a function
func (f *Forge) GetFunction(ctx context.Context, schemaName, fn string) (m FunctionMetadata, ok bool, err error) {
	ops, err := f.Operators(ctx)
	if err != nil {
		return m, false, err
	}
	m, ok = ops.GetFunction(schemaName, fn)
	return m, ok, nil
}

// TableOperations returns untyped record operations for a table. An unknown
// table fails with ErrNotFound.
func (f *Forge) TableOperations(ctx context.Context, schemaName, table string) (*Operations[Row], error) {
	return Table[Row](ctx, f, schemaName, table)
}

// ViewOperations returns untyped read-only operations for a view
func (f *Forge) ViewOperations(ctx context.Context, schemaName, view string) (*Reader[Row], error) {
	return View[Row](ctx, f, schemaName, view)
}

// Table returns record operations for a table decoding rows into T
func Table[T any](ctx context.Context, f *Forge, schemaName, table string) (*Operations[T], error) {
	ops, err := f.Operators(ctx)
	if err != nil {
		return nil, err
	}
	return operators.Table[T](ops, schemaName, table)
}

// View returns read-only operations for a view decoding rows into T
func View[T any](ctx context.Context, f *Forge, schemaName, view string) (*Reader[T], error) {
	ops, err := f.Operators(ctx)
	if err != nil {
		return nil, err
	}
	return operators.View[T](ops, schemaName, view)
}

// Counts totals element counts across all loaded schemas
func (f *Forge) Counts(ctx context.Context) (Counts, error) {
	ops, err := f.Operators(ctx)
	if err != nil {
		return Counts{}, err
	}
	return ops.Counts(), nil
}

// Generate renders TypeScript declarations for the loaded schemas
func (f *Forge) Generate(ctx context.Context) (*GenerationResult, error) {
	ops, err := f.Operators(ctx)
	if err != nil {
		return nil, err
	}
	return generator.New(f.logger).Generate(ops.Schemas())
}

// WriteTypes generates declarations and writes them under dir, returning the
// written paths
func (f *Forge) WriteTypes(ctx context.Context, dir string) ([]string, error) {
	result, err := f.Generate(ctx)
	if err != nil {
		return nil, err
	}
	return output.NewWriter(dir, f.logger).Write(result.Files)
}

// Dump encodes the loaded metadata to w as "json" or "yaml"
func (f *Forge) Dump(ctx context.Context, w io.Writer, format string) error {
	ops, err := f.Operators(ctx)
	if err != nil {
		return err
	}
	return output.EncodeDump(w, ops.Schemas(), format)
}
