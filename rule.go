package sigma

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ryanuber/go-glob"
	"gopkg.in/yaml.v2"
)

// RuleHandle is a meta object containing all fields from raw yaml, but is enhanced to also
// hold debugging info from the tool, such as source file path, etc
type RuleHandle struct {
	RawRule

	Path      string `json:"path"`
	Multipart bool   `json:"multipart"`
}

// RawRule defines raw rule conforming to sigma rule specification
// https://github.com/SigmaHQ/sigma-specification
// only meant to be used for parsing yaml that matches Sigma rule definition
type RawRule struct {
	Author         string     `yaml:"author" json:"author"`
	Description    string     `yaml:"description" json:"description"`
	Falsepositives StringList `yaml:"falsepositives" json:"falsepositives"`
	Fields         []string   `yaml:"fields" json:"fields"`
	ID             string     `yaml:"id" json:"id"`
	Level          string     `yaml:"level" json:"level"`
	Title          string     `yaml:"title" json:"title"`
	Status         string     `yaml:"status" json:"status"`
	References     StringList `yaml:"references" json:"references"`

	Logsource Logsource `yaml:"logsource" json:"logsource"`
	Tags      Tags      `yaml:"tags" json:"tags"`

	// keeps identifier and field order of the source document
	Detection Detection `yaml:"detection" json:"-"`
}

// Metadata extracts backend relevant fields from raw rule
func (r RawRule) Metadata() (*RuleMetadata, error) {
	level, err := ParseLevel(r.Level)
	if err != nil {
		return nil, ErrMalformedRule{RuleID: r.ID, Msg: err.Error()}
	}
	return &RuleMetadata{
		ID:               r.ID,
		Title:            r.Title,
		Description:      r.Description,
		Falsepositives:   nonNil(r.Falsepositives),
		Tags:             nonNil(r.Tags),
		Level:            level,
		LogsourceService: r.Logsource.Service,
	}, nil
}

// StringList is a yaml list of strings that also accepts a single scalar
// Some community rules write falsepositives as plain text
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler
func (s *StringList) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var list []string
	if err := unmarshal(&list); err == nil {
		*s = list
		return nil
	}
	var single string
	if err := unmarshal(&single); err != nil {
		return err
	}
	*s = StringList{single}
	return nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// Logsource represents the logsource field in sigma rule
// It defines relevant event streams and is used for pre-filtering
type Logsource struct {
	Product    string `yaml:"product" json:"product"`
	Category   string `yaml:"category" json:"category"`
	Service    string `yaml:"service" json:"service"`
	Definition string `yaml:"definition" json:"definition"`
}

// Tags contains a metadata list for tying positive matches together with other threat intel sources
// For example, for attaching MITRE ATT&CK tactics or techniques to the event
type Tags []string

// Detection represents the detection field in sigma rule
// contains condition expression and identifier fields for building AST
// nested maps are decoded as yaml.MapSlice, scalars as their source text
type Detection yaml.MapSlice

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Detection) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v yamlValue
	if err := unmarshal(&v); err != nil {
		return err
	}
	m, ok := v.v.(yaml.MapSlice)
	if !ok {
		return fmt.Errorf("detection must be a map, got %T", v.v)
	}
	*d = Detection(m)
	return nil
}

// Get returns the value of a top level detection key
func (d Detection) Get(key string) (interface{}, bool) {
	for _, item := range d {
		if k, ok := item.Key.(string); ok && k == key {
			return item.Value, true
		}
	}
	return nil, false
}

// Extract returns selection identifiers in document order
func (d Detection) Extract() yaml.MapSlice {
	tx := make(yaml.MapSlice, 0, len(d))
	for _, item := range d {
		if k, ok := item.Key.(string); ok && isReservedKey(k) {
			continue
		}
		tx = append(tx, item)
	}
	return tx
}

func isReservedKey(key string) bool {
	return key == "condition" || key == "timeframe"
}

// Level is the risk level of a rule
type Level string

const (
	LevelInformational Level = "informational"
	LevelLow           Level = "low"
	LevelMedium        Level = "medium"
	LevelHigh          Level = "high"
	LevelCritical      Level = "critical"
)

// ParseLevel maps rule level to enum
// empty value defaults to low
func ParseLevel(raw string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(raw))); l {
	case "":
		return LevelLow, nil
	case LevelInformational, LevelLow, LevelMedium, LevelHigh, LevelCritical:
		return l, nil
	default:
		return "", fmt.Errorf("unknown level %q", raw)
	}
}

// RuleMetadata holds the rule fields that are carried into backend documents
type RuleMetadata struct {
	ID               string `validate:"required"`
	Title            string
	Description      string
	Falsepositives   []string
	Tags             []string
	Level            Level `validate:"omitempty,oneof=informational low medium high critical"`
	LogsourceService string
}

// NewRuleList reads a list of sigma rule paths and parses them to rule objects
func NewRuleList(files []string, skip bool) ([]RuleHandle, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("missing rule file list")
	}
	errs := make([]ErrParseYaml, 0)
	rules := make([]RuleHandle, 0)
loop:
	for i, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		handle, err := NewRuleHandle(data)
		if err != nil {
			if skip {
				errs = append(errs, ErrParseYaml{
					Path:  path,
					Count: i,
					Err:   err,
				})
				continue loop
			}
			return nil, &ErrParseYaml{Err: err, Path: path}
		}
		handle.Path = path
		rules = append(rules, *handle)
	}
	return rules, func() error {
		if len(errs) > 0 {
			return ErrBulkParseYaml{Errs: errs}
		}
		return nil
	}()
}

// isMultipart reports if data holds more than one yaml document
// a leading document marker does not count
func isMultipart(data []byte) bool {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	var content bool
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		switch {
		case line == "---":
			if content {
				return true
			}
		case line != "" && !strings.HasPrefix(line, "#"):
			content = true
		}
	}
	return false
}

// NewRuleFileList finds all yaml files from defined root directories
// Subtree is scanned recursively
// include is a list of glob patterns matched against the full path, empty list matches everything
// No file validation, other than suffix matching
func NewRuleFileList(dirs []string, include []string) ([]string, error) {
	out := make([]string, 0)
	for _, dir := range dirs {
		if err := filepath.Walk(dir, func(
			path string,
			info os.FileInfo,
			err error,
		) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && isYamlFile(path) && included(path, include) {
				out = append(out, path)
			}
			return nil
		}); err != nil {
			return out, err
		}
	}
	return out, nil
}

func isYamlFile(path string) bool {
	return strings.HasSuffix(path, ".yml") || strings.HasSuffix(path, ".yaml")
}

func included(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if glob.Glob(p, path) {
			return true
		}
	}
	return false
}
