// Package typemap translates database column types into TypeScript type tags.
//
// Map is pure and total: every input yields a TargetType, and inputs it does not
// recognise yield the Unknown marker so callers can tell "opaque" from "recognised".
package typemap

import (
	"strings"
)

// Kind is the semantic category of a target type
type Kind int

const (
	Unknown Kind = iota
	Number
	String
	Boolean
	Timestamp
	Object
	Array
)

var kindNames = map[Kind]string{
	Unknown:   "unknown",
	Number:    "number",
	String:    "string",
	Boolean:   "boolean",
	Timestamp: "timestamp",
	Object:    "object",
	Array:     "array",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// TargetType is the result of mapping one source type. Elem is set only for arrays.
type TargetType struct {
	Kind Kind
	Elem Kind
}

// IsUnknown reports whether the source type was not recognised
func (t TargetType) IsUnknown() bool {
	return t.Kind == Unknown
}

// TypeScript renders the type as it appears in a generated declaration
func (t TargetType) TypeScript() string {
	if t.Kind == Array {
		return scalarTypeScript(t.Elem) + "[]"
	}
	return scalarTypeScript(t.Kind)
}

func (t TargetType) String() string {
	if t.Kind == Array {
		return "array<" + t.Elem.String() + ">"
	}
	return t.Kind.String()
}

func scalarTypeScript(k Kind) string {
	switch k {
	case Number:
		return "number"
	case String:
		return "string"
	case Boolean:
		return "boolean"
	case Timestamp:
		return "Date"
	case Object:
		return "Record<string, unknown>"
	default:
		return "unknown"
	}
}

// scalarTypes covers PostgreSQL base types and their common aliases, plus the
// MySQL and SQLite spellings introspection can report
var scalarTypes = map[string]Kind{
	// numeric
	"smallint":         Number,
	"integer":          Number,
	"int":              Number,
	"int2":             Number,
	"int4":             Number,
	"int8":             Number,
	"bigint":           Number,
	"decimal":          Number,
	"numeric":          Number,
	"real":             Number,
	"float4":           Number,
	"float8":           Number,
	"double precision": Number,
	"smallserial":      Number,
	"serial":           Number,
	"serial2":          Number,
	"serial4":          Number,
	"serial8":          Number,
	"bigserial":        Number,
	"oid":              Number,

	// character
	"character":         String,
	"character varying": String,
	"varchar":           String,
	"char":              String,
	"bpchar":            String,
	"text":              String,
	"citext":            String,
	"name":              String,

	"boolean": Boolean,
	"bool":    Boolean,

	// date/time; bare time and interval have no Date equivalent
	"timestamp":                   Timestamp,
	"timestamptz":                 Timestamp,
	"timestamp with time zone":    Timestamp,
	"timestamp without time zone": Timestamp,
	"date":                        Timestamp,
	"time":                        String,
	"timetz":                      String,
	"time with time zone":         String,
	"time without time zone":      String,
	"interval":                    String,

	"uuid": String,

	"json":  Object,
	"jsonb": Object,

	// network
	"inet":     String,
	"cidr":     String,
	"macaddr":  String,
	"macaddr8": String,

	// geometric
	"point":   String,
	"line":    String,
	"lseg":    String,
	"box":     String,
	"path":    String,
	"polygon": String,
	"circle":  String,

	"money": String,

	// bit strings
	"bit":         String,
	"bit varying": String,
	"varbit":      String,

	// text search
	"tsvector": String,
	"tsquery":  String,

	"xml":   String,
	"bytea": String,

	// MySQL / SQLite
	"tinyint":    Number,
	"mediumint":  Number,
	"float":      Number,
	"double":     Number,
	"year":       Number,
	"datetime":   Timestamp,
	"tinytext":   String,
	"mediumtext": String,
	"longtext":   String,
	"binary":     String,
	"varbinary":  String,
	"blob":       String,
	"tinyblob":   String,
	"mediumblob": String,
	"longblob":   String,
	"set":        String,
}

// Normalize lower-cases raw, drops parenthesised qualifiers such as "(255)" or
// "(10,2)" and collapses whitespace
func Normalize(raw string) string {
	var b strings.Builder
	depth := 0
	for _, r := range strings.ToLower(raw) {
		switch {
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Map maps a raw source type to its target type
func Map(raw string) TargetType {
	base := Normalize(raw)

	if kind, ok := scalarTypes[base]; ok {
		return TargetType{Kind: kind}
	}

	// array pseudo-types: "_int4" (catalog form) or "integer[]" (declared form)
	elem := ""
	switch {
	case strings.HasPrefix(base, "_"):
		elem = strings.TrimPrefix(base, "_")
	case strings.HasSuffix(base, "[]"):
		elem = strings.TrimSpace(strings.TrimRight(base, "[]"))
	}
	if elem != "" {
		if kind, ok := scalarTypes[elem]; ok {
			return TargetType{Kind: Array, Elem: kind}
		}
	}

	return TargetType{Kind: Unknown}
}
