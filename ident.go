package sigma

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

// newConditionFromIdent builds a condition from a single detection identifier
// map is a conjunction of fields, list of maps is a disjunction of those conjunctions
// scalar or list of scalars is a keyword selection
func newConditionFromIdent(key string, val interface{}, ph *Placeholders) (Condition, error) {
	switch v := val.(type) {
	case yaml.MapSlice:
		return newFieldConjunction(key, v, ph)
	case []interface{}:
		if len(v) == 0 {
			return nil, ErrMalformedRule{Msg: fmt.Sprintf("selection %s has no values", key)}
		}
		switch identListKind(v) {
		case identMaps:
			or := make(NodeOr, 0, len(v))
			for _, item := range v {
				c, err := newFieldConjunction(key, item.(yaml.MapSlice), ph)
				if err != nil {
					return nil, err
				}
				or = append(or, c)
			}
			return or.Reduce(), nil
		case identKeywords:
			values, err := castValues(key, v)
			if err != nil {
				return nil, err
			}
			return Selection{Match: ValueMatch{Values: values}}, nil
		default:
			return nil, ErrInvalidSelectionConstruct{Key: key, Expr: val}
		}
	case nil:
		return nil, ErrInvalidSelectionConstruct{Key: key}
	default:
		values, err := castValues(key, []interface{}{v})
		if err != nil {
			return nil, err
		}
		return Selection{Match: ValueMatch{Values: values}}, nil
	}
}

type identKind int

const (
	identMixed identKind = iota
	identMaps
	identKeywords
)

func identListKind(in []interface{}) identKind {
	var maps, scalars int
	for _, item := range in {
		switch item.(type) {
		case yaml.MapSlice:
			maps++
		case []interface{}:
			return identMixed
		default:
			scalars++
		}
	}
	switch {
	case maps == len(in):
		return identMaps
	case scalars == len(in):
		return identKeywords
	default:
		return identMixed
	}
}

func newFieldConjunction(key string, fields yaml.MapSlice, ph *Placeholders) (Condition, error) {
	if len(fields) == 0 {
		return nil, ErrMalformedRule{Msg: fmt.Sprintf("selection %s has no fields", key)}
	}
	and := make(NodeAnd, 0, len(fields))
	for _, item := range fields {
		field, ok := item.Key.(string)
		if !ok {
			return nil, ErrInvalidSelectionConstruct{Key: key, Expr: item.Key}
		}
		c, err := newFieldSelection(field, item.Value, ph)
		if err != nil {
			return nil, err
		}
		and = append(and, c)
	}
	return and.Reduce(), nil
}

func newFieldSelection(key string, val interface{}, ph *Placeholders) (Condition, error) {
	fk, err := parseFieldKey(key)
	if err != nil {
		return nil, err
	}
	var raw []interface{}
	switch v := val.(type) {
	case []interface{}:
		raw = v
	case yaml.MapSlice:
		return nil, ErrInvalidSelectionConstruct{Key: key, Expr: val}
	default:
		raw = []interface{}{v}
	}
	values, err := castValues(key, raw)
	if err != nil {
		return nil, err
	}
	if fk.Expand {
		if values, err = ph.expandAll(values); err != nil {
			return nil, err
		}
	}
	if len(values) == 0 {
		return nil, ErrMalformedRule{Msg: fmt.Sprintf("field %s has no values", key)}
	}
	if fk.All && len(values) > 1 {
		and := make(NodeAnd, 0, len(values))
		for _, v := range values {
			and = append(and, NewSelection(fk.Field, fk.Mod, v))
		}
		return and, nil
	}
	return NewSelection(fk.Field, fk.Mod, values...), nil
}

func castValues(key string, in []interface{}) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, item := range in {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case nil:
			return nil, ErrUnsupportedFeature{
				Feature: "null value",
				Msg:     fmt.Sprintf("selection key %s", key),
			}
		default:
			return nil, ErrInvalidSelectionConstruct{Key: key, Expr: item}
		}
	}
	return out, nil
}
