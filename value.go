package sigma

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

// yamlValue decodes detection content into the generic shapes of yaml.v2
// (yaml.MapSlice, []interface{}, nil), but scalars are kept as their source text
// so 1.0 stays 1.0 and y is not turned into a boolean
type yamlValue struct {
	v interface{}
}

// UnmarshalYAML implements yaml.Unmarshaler
func (y *yamlValue) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var text *string
	if err := unmarshal(&text); err == nil {
		if text != nil {
			y.v = *text
		}
		return nil
	}
	var list []yamlValue
	if err := unmarshal(&list); err == nil {
		out := make([]interface{}, len(list))
		for i, item := range list {
			out[i] = item.v
		}
		y.v = out
		return nil
	}
	m, err := decodeOrderedMap(unmarshal)
	if err != nil {
		return err
	}
	y.v = m
	return nil
}

// yamlKey is a mapping key along with the value yaml.v2 resolves it to
// the resolved form is only used to line keys up with yaml.MapSlice order
type yamlKey struct {
	text     string
	resolved interface{}
}

// UnmarshalYAML implements yaml.Unmarshaler
func (k *yamlKey) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var text *string
	if err := unmarshal(&text); err != nil {
		return err
	}
	if text != nil {
		k.text = *text
	}
	return unmarshal(&k.resolved)
}

func decodeOrderedMap(unmarshal func(interface{}) error) (yaml.MapSlice, error) {
	var fields map[yamlKey]yamlValue
	if err := unmarshal(&fields); err != nil {
		return nil, err
	}
	var order yaml.MapSlice
	if err := unmarshal(&order); err != nil {
		return nil, err
	}
	keys := make(map[interface{}]yamlKey, len(fields))
	for k := range fields {
		keys[k.resolved] = k
	}
	out := make(yaml.MapSlice, 0, len(order))
	for _, item := range order {
		k, ok := keys[item.Key]
		if !ok {
			return nil, fmt.Errorf("unsupported mapping key %v", item.Key)
		}
		out = append(out, yaml.MapItem{Key: k.text, Value: fields[k].v})
	}
	return out, nil
}
