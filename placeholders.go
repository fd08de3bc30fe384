package sigma

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

type placeholder []string
type placeholderMap map[string]placeholder

// Placeholders holds values for the expand modifier
// Field|expand: '%name%' is replaced with every value listed under name
type Placeholders struct {
	data placeholderMap
	path string
}

// NewPlaceholders loads placeholder definitions from a yaml file
func NewPlaceholders(path string) (*Placeholders, error) {
	p := &Placeholders{
		data: make(placeholderMap),
		path: path,
	}
	if err := p.load(); err != nil {
		return nil, fmt.Errorf("placeholders %s: %w", path, err)
	}
	return p, nil
}

// NewPlaceholdersFromMap is a helper for building placeholders in memory
func NewPlaceholdersFromMap(data map[string][]string) *Placeholders {
	p := &Placeholders{data: make(placeholderMap, len(data))}
	for k, v := range data {
		p.data[k] = v
	}
	return p
}

func (p *Placeholders) load() error {
	f, err := os.Open(p.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return yaml.NewDecoder(f).Decode(&p.data)
}

// Len returns the number of defined placeholders
func (p *Placeholders) Len() int {
	if p == nil {
		return 0
	}
	return len(p.data)
}

func (p *Placeholders) expandAll(values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		vals, err := p.expand(v)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	}
	return out, nil
}

// expand resolves a single %name% value
// values not wrapped in percent signs are kept as-is
func (p *Placeholders) expand(value string) ([]string, error) {
	if len(value) < 3 || !strings.HasPrefix(value, "%") || !strings.HasSuffix(value, "%") {
		return []string{value}, nil
	}
	// keys may be written with or without the surrounding percent signs
	if p != nil {
		for _, key := range []string{value, value[1 : len(value)-1]} {
			if val, ok := p.data[key]; ok && len(val) > 0 {
				return val, nil
			}
		}
	}
	return nil, ErrUnsupportedFeature{
		Feature: "placeholder",
		Msg:     fmt.Sprintf("%s is not defined", value),
	}
}
