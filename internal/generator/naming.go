package generator

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// PascalCase splits name on underscores, upper-cases the first letter of each
// segment and concatenates them: user_profile_settings -> UserProfileSettings
func PascalCase(name string) string {
	var b strings.Builder
	for _, segment := range strings.Split(name, "_") {
		if segment == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(segment)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(segment[size:])
	}
	return b.String()
}

// isIdentifier reports whether s can be used bare as a TypeScript identifier
func isIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// typeName turns an element name into a declaration name. Names whose
// PascalCase form is not a valid identifier get their offending characters
// replaced.
func typeName(name string) string {
	pascal := PascalCase(name)
	if isIdentifier(pascal) {
		return pascal
	}

	var b strings.Builder
	for i, r := range pascal {
		switch {
		case r == '_' || r == '$' || (r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))):
			if i == 0 && unicode.IsDigit(r) {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// propertyName returns name bare when possible, quoted otherwise
func propertyName(name string) string {
	if isIdentifier(name) {
		return name
	}
	return quote(name)
}

// quote renders s as a double-quoted string literal
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// encoding a string cannot fail
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

// enumMemberName returns the member name for an enum value. TypeScript
// rejects members whose name reads as a number ("1", "-2", "NaN"), so those
// get a leading underscore; the member's value stays the original string.
func enumMemberName(value string) string {
	if isNumericName(value) {
		return propertyName("_" + value)
	}
	return propertyName(value)
}

// isNumericName reports whether s is the canonical string form of a
// JavaScript number, i.e. String(Number(s)) === s
func isNumericName(s string) bool {
	switch s {
	case "NaN", "Infinity", "-Infinity":
		return true
	}
	if s == "" || strings.ContainsAny(s, "_xXoObBiInN") {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return false
	}
	return jsNumberString(f) == s
}

// jsNumberString formats f the way JavaScript's Number.prototype.toString does
func jsNumberString(f float64) string {
	if f == 0 {
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	out := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(out, "e")
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	return mantissa + "e" + sign + digits
}
