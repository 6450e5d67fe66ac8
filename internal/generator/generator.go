// Package generator emits TypeScript declarations from schema metadata.
//
// Generate is pure: it returns file paths and contents and leaves writing them
// to the caller. Output is deterministic. Schemas are emitted in input order,
// elements inside a schema in ascending key order, and columns in stored order.
package generator

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/Yrrrrrf/ts-forge/internal/apperrors"
	"github.com/Yrrrrrf/ts-forge/internal/schema"
	"github.com/Yrrrrrf/ts-forge/internal/typemap"
)

const (
	indent = "  "

	// Header opens every generated file
	Header = "// Code generated by ts-forge. DO NOT EDIT."

	// IndexFile re-exports every schema file
	IndexFile = "index.ts"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// File is one generated artifact
type File struct {
	Path    string
	Content string
}

// Warning records a column whose source type could not be mapped
type Warning struct {
	Schema     string
	Kind       schema.ObjectType
	Object     string
	Column     string
	SourceType string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s.%s.%s: unmapped source type %q", w.Schema, w.Object, w.Column, w.SourceType)
}

// Result holds the generated files (schema files in input order, index last)
type Result struct {
	Files    []File
	Warnings []Warning
}

// Generator emits TypeScript declarations
type Generator struct {
	logger *zap.Logger
}

// New creates a generator
func New(logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger.Named("generator")}
}

// SchemaFileName returns the file a schema's declarations are written to
func SchemaFileName(schemaName string) string {
	return "types-" + unsafeFileChars.ReplaceAllString(schemaName, "_") + ".ts"
}

// Generate emits one file per schema plus the index file. A schema declaring
// an identifier that another schema also declares is re-exported from the
// index as a namespace named after the schema instead of flat.
func (g *Generator) Generate(schemas []schema.SchemaMetadata) (*Result, error) {
	result := &Result{}
	files := make(map[string]string, len(schemas))
	declared := make([]map[string]string, 0, len(schemas))

	for _, s := range schemas {
		fileName := SchemaFileName(s.Name)
		if prev, ok := files[fileName]; ok {
			return nil, fmt.Errorf("%w: schemas %q and %q both map to file %s",
				apperrors.ErrNameCollision, prev, s.Name, fileName)
		}
		files[fileName] = s.Name

		w, err := g.generateSchema(s)
		if err != nil {
			return nil, fmt.Errorf("failed to generate schema %s: %w", s.Name, err)
		}
		result.Files = append(result.Files, File{Path: fileName, Content: w.b.String()})
		result.Warnings = append(result.Warnings, w.warnings...)
		declared = append(declared, w.declared)

		g.logger.Debug("Generated types", zap.String("schema", s.Name), zap.String("file", fileName))
	}

	exports, err := g.indexExports(schemas, declared)
	if err != nil {
		return nil, err
	}
	for i := range exports {
		exports[i].module = strings.TrimSuffix(result.Files[i].Path, ".ts")
	}

	result.Files = append(result.Files, File{Path: IndexFile, Content: generateIndex(exports)})
	return result, nil
}

// indexExport is one re-export line of the index; namespace is empty for a
// flat re-export
type indexExport struct {
	module    string
	namespace string
}

// indexExports decides which schemas are re-exported flat and which under a
// namespace. Every name the index exports must be unique.
func (g *Generator) indexExports(schemas []schema.SchemaMetadata, declared []map[string]string) ([]indexExport, error) {
	owners := make(map[string][]string)
	for i, idents := range declared {
		for ident := range idents {
			owners[ident] = append(owners[ident], schemas[i].Name)
		}
	}

	exports := make([]indexExport, len(schemas))
	exported := make(map[string]string)
	var qualified []int
	for i, idents := range declared {
		shared := false
		for ident := range idents {
			if len(owners[ident]) > 1 {
				shared = true
				break
			}
		}
		if shared {
			qualified = append(qualified, i)
			continue
		}
		for ident := range idents {
			exported[ident] = "schema " + schemas[i].Name
		}
	}

	for _, i := range qualified {
		ns := typeName(schemas[i].Name)
		if prev, ok := exported[ns]; ok {
			return nil, fmt.Errorf("%w: namespace for schema %s and %s both export %q from the index",
				apperrors.ErrNameCollision, schemas[i].Name, prev, ns)
		}
		exported[ns] = "namespace of schema " + schemas[i].Name
		exports[i].namespace = ns
		g.logger.Warn("Schema shares generated names with another schema, exporting it as a namespace",
			zap.String("schema", schemas[i].Name),
			zap.String("namespace", ns))
	}
	return exports, nil
}

func generateIndex(exports []indexExport) string {
	var b strings.Builder
	b.WriteString(Header + "\n\n")
	for _, e := range exports {
		if e.namespace != "" {
			fmt.Fprintf(&b, "export * as %s from './%s';\n", e.namespace, e.module)
			continue
		}
		fmt.Fprintf(&b, "export * from './%s';\n", e.module)
	}
	return b.String()
}

// schemaWriter accumulates one schema file and tracks the identifiers it declares
type schemaWriter struct {
	logger   *zap.Logger
	schema   string
	b        strings.Builder
	declared map[string]string
	// enums maps an enum's source name to its declared identifier
	enums    map[string]string
	warnings []Warning
}

func (g *Generator) generateSchema(s schema.SchemaMetadata) (*schemaWriter, error) {
	w := &schemaWriter{
		logger:   g.logger,
		schema:   s.Name,
		declared: make(map[string]string),
		enums:    make(map[string]string, len(s.Enums)),
	}
	for key, e := range s.Enums {
		ident := typeName(nameOr(e.Name, key))
		w.enums[strings.ToLower(key)] = ident
		w.enums[strings.ToLower(nameOr(e.Name, key))] = ident
	}

	w.b.WriteString(Header + "\n")
	fmt.Fprintf(&w.b, "// Generated types for schema: %s\n", s.Name)

	for _, key := range schema.SortedKeys(s.Tables) {
		table := s.Tables[key]
		if err := w.table(key, table); err != nil {
			return nil, err
		}
	}
	for _, key := range schema.SortedKeys(s.Views) {
		view := s.Views[key]
		if err := w.view(key, view); err != nil {
			return nil, err
		}
	}
	for _, key := range schema.SortedKeys(s.Enums) {
		if err := w.enum(key, s.Enums[key]); err != nil {
			return nil, err
		}
	}
	for _, group := range []map[string]schema.FunctionMetadata{s.Functions, s.Procedures} {
		for _, key := range schema.SortedKeys(group) {
			if err := w.callable(key, group[key]); err != nil {
				return nil, err
			}
		}
	}

	return w, nil
}

// declare claims ident for source, failing if another element already has it
func (w *schemaWriter) declare(ident, source string) error {
	if prev, ok := w.declared[ident]; ok {
		return fmt.Errorf("%w: %s and %s both generate %q",
			apperrors.ErrNameCollision, prev, source, ident)
	}
	w.declared[ident] = source
	return nil
}

func nameOr(name, key string) string {
	if name != "" {
		return name
	}
	return key
}

func (w *schemaWriter) table(key string, t schema.TableMetadata) error {
	name := nameOr(t.Name, key)
	ident := typeName(name)
	if err := w.declare(ident, "table "+name); err != nil {
		return err
	}

	w.open(ident)
	for _, col := range t.Columns {
		w.property(schema.ObjectTable, name, col.Name, col.Type, col.Nullable)
	}
	w.b.WriteString("}\n")
	return nil
}

func (w *schemaWriter) view(key string, v schema.ViewMetadata) error {
	name := nameOr(v.Name, key)
	ident := typeName(name) + "View"
	if err := w.declare(ident, "view "+name); err != nil {
		return err
	}

	w.open(ident)
	for _, col := range v.Columns {
		w.property(schema.ObjectView, name, col.Name, col.Type, col.Nullable)
	}
	w.b.WriteString("}\n")
	return nil
}

func (w *schemaWriter) enum(key string, e schema.EnumInfo) error {
	name := nameOr(e.Name, key)
	ident := typeName(name)
	if err := w.declare(ident, "enum "+name); err != nil {
		return err
	}

	members := make(map[string]string, len(e.Values))
	fmt.Fprintf(&w.b, "\nexport enum %s {\n", ident)
	for _, value := range e.Values {
		member := enumMemberName(value)
		if prev, ok := members[member]; ok {
			return fmt.Errorf("%w: enum %s values %q and %q both generate member %s",
				apperrors.ErrNameCollision, name, prev, value, member)
		}
		members[member] = value
		fmt.Fprintf(&w.b, "%s%s = %s,\n", indent, member, quote(value))
	}
	w.b.WriteString("}\n")
	return nil
}

func (w *schemaWriter) callable(key string, fn schema.FunctionMetadata) error {
	name := nameOr(fn.Name, key)
	base := typeName(name)
	kind := fn.Kind()

	argsIdent := base + "Args"
	if err := w.declare(argsIdent, string(kind)+" "+name); err != nil {
		return err
	}
	w.open(argsIdent)
	position := 0
	for _, p := range fn.Parameters {
		position++
		if !p.Mode.IsInput() {
			continue
		}
		paramName := p.Name
		if paramName == "" {
			paramName = fmt.Sprintf("arg%d", position)
		}
		w.property(kind, name, paramName, p.Type, p.HasDefault)
	}
	w.b.WriteString("}\n")

	if len(fn.ReturnColumns) == 0 {
		return nil
	}

	rowIdent := base + "Row"
	if err := w.declare(rowIdent, string(kind)+" "+name); err != nil {
		return err
	}
	w.open(rowIdent)
	for _, col := range fn.ReturnColumns {
		w.property(kind, name, col.Name, col.Type, false)
	}
	w.b.WriteString("}\n")
	return nil
}

func (w *schemaWriter) open(ident string) {
	fmt.Fprintf(&w.b, "\nexport interface %s {\n", ident)
}

// property writes "name[?]: Type;" and records unmapped source types
func (w *schemaWriter) property(kind schema.ObjectType, object, column, sourceType string, optional bool) {
	tsType, known := w.resolve(sourceType)

	marker := ""
	if optional {
		marker = "?"
	}
	fmt.Fprintf(&w.b, "%s%s%s: %s;", indent, propertyName(column), marker, tsType)

	if !known {
		fmt.Fprintf(&w.b, " // unmapped source type: %s", sourceType)
		warning := Warning{
			Schema:     w.schema,
			Kind:       kind,
			Object:     object,
			Column:     column,
			SourceType: sourceType,
		}
		w.warnings = append(w.warnings, warning)
		w.logger.Warn("Unknown source type, emitting unknown",
			zap.String("schema", w.schema),
			zap.String("object", object),
			zap.String("column", column),
			zap.String("source_type", sourceType),
			zap.Error(apperrors.ErrUnknownType))
	}
	w.b.WriteString("\n")
}

// resolve maps a source type to TypeScript. Types the mapper does not know
// may still name an enum of the same schema, optionally schema-qualified or
// as an array.
func (w *schemaWriter) resolve(sourceType string) (string, bool) {
	target := typemap.Map(sourceType)
	if !target.IsUnknown() {
		return target.TypeScript(), true
	}

	name := typemap.Normalize(sourceType)
	suffix := ""
	switch {
	case strings.HasSuffix(name, "[]"):
		name, suffix = strings.TrimSpace(strings.TrimSuffix(name, "[]")), "[]"
	case strings.HasPrefix(name, "_"):
		name, suffix = name[1:], "[]"
	}
	name = strings.ReplaceAll(name, `"`, "")
	name = strings.TrimPrefix(name, strings.ToLower(w.schema)+".")

	if ident, ok := w.enums[name]; ok {
		return ident + suffix, true
	}
	return target.TypeScript(), false
}
