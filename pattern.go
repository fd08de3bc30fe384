package sigma

import (
	"fmt"
	"strings"
)

// TextPatternModifier is the comparison semantics applied to selection values
type TextPatternModifier int

const (
	TextPatternNone TextPatternModifier = iota
	TextPatternContains
	TextPatternPrefix
	TextPatternSuffix
	TextPatternCidr
	// TextPatternRegex is parsed so it can be reported, no backend lowers it yet
	TextPatternRegex
)

func (t TextPatternModifier) String() string {
	switch t {
	case TextPatternNone:
		return "equals"
	case TextPatternContains:
		return "contains"
	case TextPatternPrefix:
		return "startswith"
	case TextPatternSuffix:
		return "endswith"
	case TextPatternCidr:
		return "cidr"
	case TextPatternRegex:
		return "re"
	default:
		return fmt.Sprintf("modifier(%d)", int(t))
	}
}

// fieldKey is a selection key split into field name and modifier chain
// For example, CommandLine|contains|all
type fieldKey struct {
	Field string
	Mod   TextPatternModifier
	// all joins values with conjunction instead of disjunction
	All bool
	// expand substitutes %placeholder% values
	Expand bool
}

func parseFieldKey(key string) (fieldKey, error) {
	bits := strings.Split(key, "|")
	fk := fieldKey{Field: bits[0]}
	var textMods int
	for _, mod := range bits[1:] {
		switch strings.ToLower(mod) {
		case "contains":
			fk.Mod = TextPatternContains
			textMods++
		case "startswith":
			fk.Mod = TextPatternPrefix
			textMods++
		case "endswith":
			fk.Mod = TextPatternSuffix
			textMods++
		case "cidr":
			fk.Mod = TextPatternCidr
			textMods++
		case "re":
			fk.Mod = TextPatternRegex
			textMods++
		case "all":
			fk.All = true
		case "expand":
			fk.Expand = true
		default:
			return fk, ErrUnsupportedFeature{
				Feature: fmt.Sprintf("modifier %s", mod),
				Msg:     fmt.Sprintf("selection key %s", key),
			}
		}
	}
	if textMods > 1 {
		return fk, ErrUnsupportedFeature{
			Feature: "modifier chain",
			Msg:     fmt.Sprintf("selection key %s combines %d comparison modifiers", key, textMods),
		}
	}
	return fk, nil
}
