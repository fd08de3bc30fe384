package datadog

import (
	"fmt"
	"math"
	"strings"

	"github.com/markuskont/go-sigma-datadog"
)

// operator precedence, higher binds tighter
const (
	precOr   = 1
	precAnd  = 2
	precNot  = 3
	precAtom = math.MaxInt
)

const (
	opAnd = " AND "
	opOr  = " OR "
	opNot = "NOT "
)

// Compiler lowers sigma condition trees into query strings
// Zero value is usable, Compiler is safe for concurrent use as long as FieldMapping is not modified
type Compiler struct {
	// FieldMapping renames rule fields before escaping
	FieldMapping map[string]string
}

// Compile renders condition as a single query string
// Parentheses are only emitted where a child binds looser than its parent
func (c Compiler) Compile(cond sigma.Condition) (string, error) {
	out, _, err := c.lower(cond)
	if err != nil {
		return "", err
	}
	return out, nil
}

func (c Compiler) lower(cond sigma.Condition) (string, int, error) {
	switch v := cond.(type) {
	case sigma.Selection:
		return c.selection(v)
	case sigma.NodeAnd:
		return c.group(v, precAnd, opAnd)
	case sigma.NodeOr:
		return c.group(v, precOr, opOr)
	case sigma.NodeNot:
		if v.B == nil {
			return "", 0, sigma.ErrMalformedRule{Msg: "negation without operand"}
		}
		inner, prec, err := c.lower(v.B)
		if err != nil {
			return "", 0, err
		}
		return opNot + wrap(inner, prec, precNot), precNot, nil
	case nil:
		return "", 0, sigma.ErrMalformedRule{Msg: "missing condition node"}
	default:
		return "", 0, sigma.ErrUnsupportedFeature{
			Feature: fmt.Sprintf("condition node %T", cond),
		}
	}
}

func (c Compiler) group(children []sigma.Condition, prec int, op string) (string, int, error) {
	switch len(children) {
	case 0:
		return "", 0, sigma.ErrMalformedRule{
			Msg: fmt.Sprintf("empty%sgroup", strings.ToLower(op)),
		}
	case 1:
		// single child groups are pass-through
		return c.lower(children[0])
	}
	parts := make([]string, 0, len(children))
	for _, child := range children {
		out, childPrec, err := c.lower(child)
		if err != nil {
			return "", 0, err
		}
		parts = append(parts, wrap(out, childPrec, prec))
	}
	return strings.Join(parts, op), prec, nil
}

func (c Compiler) selection(s sigma.Selection) (string, int, error) {
	if len(s.Match.Values) == 0 {
		return "", 0, sigma.ErrMalformedRule{
			Msg: fmt.Sprintf("selection on field %q has no values", s.Field),
		}
	}
	var prefix string
	if !s.Keyword() {
		prefix = "@" + EscapeField(c.field(s.Field)) + ":"
	}
	terms := make([]string, 0, len(s.Match.Values))
	for _, val := range s.Match.Values {
		term, err := Expand(s.Match.Modifier, EscapeValue(s.Match.Modifier, val))
		if err != nil {
			return "", 0, err
		}
		terms = append(terms, prefix+term)
	}
	if len(terms) == 1 {
		return terms[0], precAtom, nil
	}
	return strings.Join(terms, opOr), precOr, nil
}

func (c Compiler) field(name string) string {
	if mapped, ok := c.FieldMapping[name]; ok && mapped != "" {
		return mapped
	}
	return name
}

func wrap(out string, childPrec, parentPrec int) string {
	if childPrec < parentPrec {
		return "(" + out + ")"
	}
	return out
}
