package schema

import (
	"maps"
	"slices"
	"strings"
)

// ObjectType discriminates the kinds of element a schema can hold
type ObjectType string

const (
	ObjectTable     ObjectType = "table"
	ObjectView      ObjectType = "view"
	ObjectEnum      ObjectType = "enum"
	ObjectFunction  ObjectType = "function"
	ObjectProcedure ObjectType = "procedure"
	ObjectTrigger   ObjectType = "trigger"
)

// Element is implemented by every named schema element so callers can switch
// on Kind() instead of probing structure
type Element interface {
	Kind() ObjectType
	ElementName() string
}

// SchemaMetadata represents one namespace as reported by the backend
type SchemaMetadata struct {
	Name       string                      `json:"name" yaml:"name"`
	Tables     map[string]TableMetadata    `json:"tables" yaml:"tables"`
	Views      map[string]ViewMetadata     `json:"views" yaml:"views"`
	Enums      map[string]EnumInfo         `json:"enums" yaml:"enums"`
	Functions  map[string]FunctionMetadata `json:"functions" yaml:"functions"`
	Procedures map[string]FunctionMetadata `json:"procedures" yaml:"procedures"`
	Triggers   map[string]FunctionMetadata `json:"triggers" yaml:"triggers"`
}

// ColumnRef is the target of a foreign key
type ColumnRef struct {
	Schema string `json:"schema" yaml:"schema"`
	Table  string `json:"table" yaml:"table"`
	Column string `json:"column" yaml:"column"`
}

// ColumnMetadata represents a table column
type ColumnMetadata struct {
	Name         string     `json:"name" yaml:"name"`
	Type         string     `json:"type" yaml:"type"`
	Nullable     bool       `json:"nullable" yaml:"nullable"`
	IsPrimaryKey bool       `json:"is_pk,omitempty" yaml:"is_pk,omitempty"`
	IsEnum       bool       `json:"is_enum,omitempty" yaml:"is_enum,omitempty"`
	References   *ColumnRef `json:"references,omitempty" yaml:"references,omitempty"`
}

// TableMetadata represents a database table
type TableMetadata struct {
	Name    string           `json:"name" yaml:"name"`
	Schema  string           `json:"schema" yaml:"schema"`
	Columns []ColumnMetadata `json:"columns" yaml:"columns"`
}

// ViewColumnMetadata represents a view column
type ViewColumnMetadata struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Nullable bool   `json:"nullable" yaml:"nullable"`
}

// ViewMetadata represents a database view
type ViewMetadata struct {
	Name    string               `json:"name" yaml:"name"`
	Schema  string               `json:"schema" yaml:"schema"`
	Columns []ViewColumnMetadata `json:"view_columns" yaml:"view_columns"`
}

// EnumInfo represents an enumerated type; Values keep their declared order
type EnumInfo struct {
	Name   string   `json:"name" yaml:"name"`
	Values []string `json:"values" yaml:"values"`
}

// ParamMode is the direction of a function parameter (IN, OUT, INOUT)
type ParamMode string

const (
	ParamIn    ParamMode = "in"
	ParamOut   ParamMode = "out"
	ParamInOut ParamMode = "inout"
)

// IsInput reports whether a caller supplies this parameter
func (m ParamMode) IsInput() bool {
	switch ParamMode(strings.ToLower(string(m))) {
	case ParamOut:
		return false
	default:
		return true
	}
}

// FunctionParameter represents one parameter of a callable
type FunctionParameter struct {
	Name         string    `json:"name" yaml:"name"`
	Type         string    `json:"type" yaml:"type"`
	Mode         ParamMode `json:"mode" yaml:"mode"`
	HasDefault   bool      `json:"has_default" yaml:"has_default"`
	DefaultValue *string   `json:"default_value" yaml:"default_value"`
}

// ReturnColumn is a column of a set-returning callable
type ReturnColumn struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// FunctionMetadata represents a function, procedure or trigger
type FunctionMetadata struct {
	Name          string              `json:"name" yaml:"name"`
	Schema        string              `json:"schema" yaml:"schema"`
	ObjectType    ObjectType          `json:"object_type" yaml:"object_type"`
	Description   string              `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters    []FunctionParameter `json:"parameters" yaml:"parameters"`
	ReturnType    string              `json:"return_type,omitempty" yaml:"return_type,omitempty"`
	ReturnColumns []ReturnColumn      `json:"return_columns,omitempty" yaml:"return_columns,omitempty"`
	IsStrict      bool                `json:"is_strict" yaml:"is_strict"`
}

func (t *TableMetadata) Kind() ObjectType    { return ObjectTable }
func (t *TableMetadata) ElementName() string { return t.Name }
func (v *ViewMetadata) Kind() ObjectType     { return ObjectView }
func (v *ViewMetadata) ElementName() string  { return v.Name }
func (e *EnumInfo) Kind() ObjectType         { return ObjectEnum }
func (e *EnumInfo) ElementName() string      { return e.Name }

func (f *FunctionMetadata) Kind() ObjectType {
	if f.ObjectType == "" {
		return ObjectFunction
	}
	return f.ObjectType
}

func (f *FunctionMetadata) ElementName() string { return f.Name }

// PrimaryKey returns the names of the columns flagged as primary key, in column order
func (t *TableMetadata) PrimaryKey() []string {
	var pk []string
	for _, col := range t.Columns {
		if col.IsPrimaryKey {
			pk = append(pk, col.Name)
		}
	}
	return pk
}

// SortedKeys returns the keys of m in ascending order. Generation and display
// iterate through it so output never depends on map order.
func SortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// Counts summarises a schema by element kind
type Counts struct {
	Tables     int
	Views      int
	Enums      int
	Functions  int
	Procedures int
	Triggers   int
}

// Total returns the number of elements across all kinds
func (c Counts) Total() int {
	return c.Tables + c.Views + c.Enums + c.Functions + c.Procedures + c.Triggers
}

// Add returns the element-wise sum of c and other
func (c Counts) Add(other Counts) Counts {
	return Counts{
		Tables:     c.Tables + other.Tables,
		Views:      c.Views + other.Views,
		Enums:      c.Enums + other.Enums,
		Functions:  c.Functions + other.Functions,
		Procedures: c.Procedures + other.Procedures,
		Triggers:   c.Triggers + other.Triggers,
	}
}

// Counts returns the element counts for s
func (s SchemaMetadata) Counts() Counts {
	return Counts{
		Tables:     len(s.Tables),
		Views:      len(s.Views),
		Enums:      len(s.Enums),
		Functions:  len(s.Functions),
		Procedures: len(s.Procedures),
		Triggers:   len(s.Triggers),
	}
}

// Normalize fills nil maps with empty ones and stamps missing schema names and
// object types. It returns a new value; s is left untouched.
func (s SchemaMetadata) Normalize() SchemaMetadata {
	out := SchemaMetadata{
		Name:       s.Name,
		Tables:     make(map[string]TableMetadata, len(s.Tables)),
		Views:      make(map[string]ViewMetadata, len(s.Views)),
		Enums:      make(map[string]EnumInfo, len(s.Enums)),
		Functions:  normalizeCallables(s.Name, s.Functions, ObjectFunction),
		Procedures: normalizeCallables(s.Name, s.Procedures, ObjectProcedure),
		Triggers:   normalizeCallables(s.Name, s.Triggers, ObjectTrigger),
	}
	for key, t := range s.Tables {
		if t.Name == "" {
			t.Name = key
		}
		if t.Schema == "" {
			t.Schema = s.Name
		}
		t.Columns = slices.Clone(t.Columns)
		out.Tables[key] = t
	}
	for key, v := range s.Views {
		if v.Name == "" {
			v.Name = key
		}
		if v.Schema == "" {
			v.Schema = s.Name
		}
		v.Columns = slices.Clone(v.Columns)
		out.Views[key] = v
	}
	for key, e := range s.Enums {
		if e.Name == "" {
			e.Name = key
		}
		e.Values = slices.Clone(e.Values)
		out.Enums[key] = e
	}
	return out
}

func normalizeCallables(schemaName string, in map[string]FunctionMetadata, kind ObjectType) map[string]FunctionMetadata {
	out := make(map[string]FunctionMetadata, len(in))
	for key, f := range in {
		if f.Name == "" {
			f.Name = key
		}
		if f.Schema == "" {
			f.Schema = schemaName
		}
		if f.ObjectType == "" {
			f.ObjectType = kind
		}
		f.Parameters = slices.Clone(f.Parameters)
		f.ReturnColumns = slices.Clone(f.ReturnColumns)
		out[key] = f
	}
	return out
}
