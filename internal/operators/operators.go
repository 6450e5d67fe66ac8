// Package operators serves name-based lookups over a loaded metadata snapshot
// and hands resolved tables and views to the crud factory.
//
// An Operators value is immutable once built. Refreshing metadata means
// building a new one and swapping it in, so concurrent readers never see a
// partially populated set.
package operators

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Yrrrrrf/ts-forge/internal/apperrors"
	"github.com/Yrrrrrf/ts-forge/internal/crud"
	"github.com/Yrrrrrf/ts-forge/internal/request"
	"github.com/Yrrrrrf/ts-forge/internal/schema"
)

// Operators resolves schema elements by name
type Operators struct {
	schemas []schema.SchemaMetadata
	index   map[string]int
	req     request.Requester
	logger  *zap.Logger
}

// New builds an immutable snapshot from schemas. The input is copied; a
// repeated schema name keeps its first occurrence.
func New(schemas []schema.SchemaMetadata, req request.Requester, logger *zap.Logger) *Operators {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Operators{
		schemas: make([]schema.SchemaMetadata, 0, len(schemas)),
		index:   make(map[string]int, len(schemas)),
		req:     req,
		logger:  logger.Named("operators"),
	}
	for _, s := range schemas {
		if _, dup := o.index[s.Name]; dup {
			o.logger.Warn("Ignoring repeated schema", zap.String("schema", s.Name))
			continue
		}
		o.index[s.Name] = len(o.schemas)
		o.schemas = append(o.schemas, s.Normalize())
	}
	return o
}

// Schemas returns the snapshot in load order. Callers must not modify it.
func (o *Operators) Schemas() []schema.SchemaMetadata {
	return o.schemas
}

// SchemaNames returns schema names in load order
func (o *Operators) SchemaNames() []string {
	names := make([]string, len(o.schemas))
	for i, s := range o.schemas {
		names[i] = s.Name
	}
	return names
}

// GetSchema finds a schema by name
func (o *Operators) GetSchema(name string) (schema.SchemaMetadata, bool) {
	i, ok := o.index[name]
	if !ok {
		return schema.SchemaMetadata{}, false
	}
	return o.schemas[i], true
}

// GetTable finds a table in a schema
func (o *Operators) GetTable(schemaName, table string) (schema.TableMetadata, bool) {
	return lookup(o, schemaName, table, func(s schema.SchemaMetadata) map[string]schema.TableMetadata { return s.Tables })
}

// GetView finds a view in a schema
func (o *Operators) GetView(schemaName, view string) (schema.ViewMetadata, bool) {
	return lookup(o, schemaName, view, func(s schema.SchemaMetadata) map[string]schema.ViewMetadata { return s.Views })
}

// GetEnum finds an enum in a schema
func (o *Operators) GetEnum(schemaName, enum string) (schema.EnumInfo, bool) {
	return lookup(o, schemaName, enum, func(s schema.SchemaMetadata) map[string]schema.EnumInfo { return s.Enums })
}

// GetFunction finds a function in a schema
func (o *Operators) GetFunction(schemaName, fn string) (schema.FunctionMetadata, bool) {
	return lookup(o, schemaName, fn, func(s schema.SchemaMetadata) map[string]schema.FunctionMetadata { return s.Functions })
}

// GetProcedure finds a procedure in a schema
func (o *Operators) GetProcedure(schemaName, proc string) (schema.FunctionMetadata, bool) {
	return lookup(o, schemaName, proc, func(s schema.SchemaMetadata) map[string]schema.FunctionMetadata { return s.Procedures })
}

// GetTrigger finds a trigger in a schema
func (o *Operators) GetTrigger(schemaName, trigger string) (schema.FunctionMetadata, bool) {
	return lookup(o, schemaName, trigger, func(s schema.SchemaMetadata) map[string]schema.FunctionMetadata { return s.Triggers })
}

func lookup[V any](o *Operators, schemaName, name string, category func(schema.SchemaMetadata) map[string]V) (V, bool) {
	var zero V
	s, ok := o.GetSchema(schemaName)
	if !ok {
		return zero, false
	}
	v, ok := category(s)[name]
	return v, ok
}

// TableOperations returns untyped record operations for a table
func (o *Operators) TableOperations(schemaName, table string) (*crud.Operations[crud.Row], error) {
	return Table[crud.Row](o, schemaName, table)
}

// ViewOperations returns untyped read-only operations for a view
func (o *Operators) ViewOperations(schemaName, view string) (*crud.Reader[crud.Row], error) {
	return View[crud.Row](o, schemaName, view)
}

// Table resolves a table by name and builds typed operations for it. An
// unknown table fails with apperrors.ErrNotFound.
func Table[T any](o *Operators, schemaName, table string) (*crud.Operations[T], error) {
	meta, ok := o.GetTable(schemaName, table)
	if !ok {
		return nil, fmt.Errorf("%w: table %s.%s not found", apperrors.ErrNotFound, schemaName, table)
	}
	return crud.New[T](o.req, &meta, o.logger)
}

// View resolves a view by name and builds typed read-only operations for it
func View[T any](o *Operators, schemaName, view string) (*crud.Reader[T], error) {
	meta, ok := o.GetView(schemaName, view)
	if !ok {
		return nil, fmt.Errorf("%w: view %s.%s not found", apperrors.ErrNotFound, schemaName, view)
	}
	return crud.NewViewReader[T](o.req, &meta, o.logger)
}

// Counts totals element counts across the snapshot
func (o *Operators) Counts() schema.Counts {
	var total schema.Counts
	for _, s := range o.schemas {
		total = total.Add(s.Counts())
	}
	return total
}
