package datadog

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/markuskont/go-sigma-datadog"
)

const (
	attackTagPrefix = "attack."
	namePrefix      = "SIGMA Threshold Detection - "
	// trailing parenthesis after false positives is part of the format consumed downstream
	messageTemplate = "SIGMA Rule ID: %s \n False Positives: %s) \n Description: %s"
)

// MapTags rewrites MITRE ATT&CK tags into the dash separated form
// attack.t1550.001 -> attack-t1550.001, other tags are kept as they are
func MapTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if strings.HasPrefix(tag, attackTagPrefix) {
			tag = strings.Replace(tag, ".", "-", 1)
		}
		out = append(out, tag)
	}
	return out
}

// MapLevel returns case status for rule level, defaulting to low
func MapLevel(level sigma.Level) string {
	if level == "" {
		return string(sigma.LevelLow)
	}
	return strings.ToLower(string(level))
}

// MapMessage builds the signal message body
func MapMessage(id string, falsepositives []string, description string) string {
	if description == "" {
		description = "None"
	}
	return fmt.Sprintf(messageTemplate, id, listRepr(falsepositives), description)
}

// MapName builds the signal rule name
func MapName(title string) string {
	return namePrefix + title
}

// listRepr renders a string list in the bracketed quoted form
// ['a', 'b'] with double quotes only for items that contain a single quote
func listRepr(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, strRepr(item))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func strRepr(s string) string {
	quote := '\''
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}
	var b strings.Builder
	b.WriteRune(quote)
	for _, r := range s {
		switch {
		case r == quote || r == '\\':
			b.WriteRune('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		case !unicode.IsPrint(r) && r != ' ':
			if r <= 0xff {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else if r <= 0xffff {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				fmt.Fprintf(&b, `\U%08x`, r)
			}
		default:
			b.WriteRune(r)
		}
	}
	b.WriteRune(quote)
	return b.String()
}
