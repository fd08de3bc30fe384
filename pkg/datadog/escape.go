package datadog

import (
	"strings"
	"unicode"

	"github.com/markuskont/go-sigma-datadog"
)

// reserved query syntax characters that are preceded by a backslash in values
var reservedValueChars = map[rune]bool{
	'<': true,
	'>': true,
}

// EscapeField precedes every whitespace character in a field name with a backslash
func EscapeField(name string) string {
	if !strings.ContainsFunc(name, unicode.IsSpace) {
		return name
	}
	var b strings.Builder
	b.Grow(len(name) + 2)
	for _, r := range name {
		if unicode.IsSpace(r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EscapeValue makes a raw value safe for the query language
// Backslashes are doubled and reserved characters are escaped
// Wildcards already present in the value are kept, so rule writers can use them
// Network ranges are passed through for the cidr expander
func EscapeValue(mod sigma.TextPatternModifier, value string) string {
	if mod == sigma.TextPatternCidr {
		return value
	}
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case reservedValueChars[r]:
			b.WriteRune('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
