package datadog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/markuskont/go-dispatch"
	"github.com/markuskont/go-sigma-datadog"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OutputMode selects the shape of conversion output
type OutputMode int

const (
	// ModeQuery returns the raw query string
	ModeQuery OutputMode = iota
	// ModeSiemRule returns a full detection rule document
	ModeSiemRule
)

func (m OutputMode) String() string {
	switch m {
	case ModeQuery:
		return "query"
	case ModeSiemRule:
		return "siem_rule"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseOutputMode maps textual mode to enum, empty value defaults to query
func ParseOutputMode(raw string) (OutputMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "query":
		return ModeQuery, nil
	case "siem_rule":
		return ModeSiemRule, nil
	default:
		return ModeQuery, fmt.Errorf("unknown output mode %q, supported values are query and siem_rule", raw)
	}
}

// Config is used as argument to creating a new backend
type Config struct {
	// number of parallel workers for collection conversion
	// values below 2 convert sequentially
	Workers int
	// FieldMapping renames rule fields before escaping
	FieldMapping map[string]string
	// Validate checks every siem_rule document against the import schema
	Validate bool
	// Logger receives per-rule conversion failures, nil disables logging
	Logger logrus.FieldLogger
}

func (c Config) validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("invalid worker count %d", c.Workers)
	}
	for k, v := range c.FieldMapping {
		if k == "" || v == "" {
			return fmt.Errorf("invalid field mapping %q -> %q", k, v)
		}
	}
	return nil
}

// Backend converts parsed sigma rules into datadog queries and rule documents
type Backend struct {
	compiler Compiler
	validate *validator.Validate
	workers  int
	schema   bool
	logger   logrus.FieldLogger
}

// New instanciates a backend object
func New(c Config) (*Backend, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	mapping := make(map[string]string, len(c.FieldMapping))
	for k, v := range c.FieldMapping {
		mapping[k] = v
	}
	return &Backend{
		compiler: Compiler{FieldMapping: mapping},
		validate: validator.New(),
		workers:  c.Workers,
		schema:   c.Validate,
		logger:   c.Logger,
	}, nil
}

// Output is the result of converting a single rule
// Exactly one of Query or Document is relevant, depending on mode
type Output struct {
	Mode     OutputMode
	Query    string
	Document *RuleDocument
}

// MarshalJSON encodes output as either query string or rule document
func (o Output) MarshalJSON() ([]byte, error) {
	if o.Mode == ModeSiemRule {
		return json.Marshal(o.Document)
	}
	return json.Marshal(o.Query)
}

// String returns the query, or the json encoded document
func (o Output) String() string {
	if o.Mode == ModeQuery {
		return o.Query
	}
	data, err := json.Marshal(o.Document)
	if err != nil {
		return err.Error()
	}
	return string(data)
}

// Compile lowers a condition tree into a query string
func (b Backend) Compile(cond sigma.Condition) (string, error) {
	return b.compiler.Compile(cond)
}

// Convert transforms a single rule according to mode
// Returned errors carry the rule id
func (b Backend) Convert(rule *sigma.Rule, mode OutputMode) (Output, error) {
	if rule == nil {
		return Output{}, sigma.ErrMalformedRule{Msg: "nil rule"}
	}
	query, err := b.compiler.Compile(rule.Root)
	if err != nil {
		return Output{}, sigma.WithRuleID(err, rule.Metadata.ID)
	}
	switch mode {
	case ModeQuery:
		return Output{Mode: mode, Query: query}, nil
	case ModeSiemRule:
		if err := b.validate.Struct(rule.Metadata); err != nil {
			return Output{}, sigma.ErrMalformedRule{
				RuleID: rule.Metadata.ID,
				Msg:    fmt.Sprintf("invalid metadata: %s", err),
			}
		}
		if _, err := uuid.Parse(rule.Metadata.ID); err != nil {
			if b.schema {
				return Output{}, sigma.ErrMalformedRule{
					RuleID: rule.Metadata.ID,
					Msg:    fmt.Sprintf("rule id %q is not a uuid: %s", rule.Metadata.ID, err),
				}
			}
			if b.logger != nil {
				b.logger.WithField("rule_id", rule.Metadata.ID).Warn("rule id is not a uuid")
			}
		}
		doc := Assemble(rule.Metadata, query)
		if b.schema {
			if err := ValidateDocument(rule.Metadata.ID, doc); err != nil {
				return Output{}, err
			}
		}
		return Output{Mode: mode, Query: query, Document: doc}, nil
	default:
		return Output{}, fmt.Errorf("unknown output mode %s", mode)
	}
}

// Result is conversion output for rule at Index of input collection
type Result struct {
	Index  int
	RuleID string
	Output Output
	Err    error
}

// Results are ordered by input index
type Results []Result

// Outputs returns outputs of successful conversions, keeping order
func (r Results) Outputs() []Output {
	out := make([]Output, 0, len(r))
	for _, res := range r {
		if res.Err == nil {
			out = append(out, res.Output)
		}
	}
	return out
}

// Err collects failed conversions, nil if every rule was converted
func (r Results) Err() error {
	errs := make([]error, 0)
	for _, res := range r {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return ErrBulkConvert{Errs: errs}
}

// ErrBulkConvert is a bulk error handler for rules that could not be converted
// Caller decides if they should be only reported or it warrants full exit
type ErrBulkConvert struct {
	Errs []error
}

func (e ErrBulkConvert) Error() string {
	return fmt.Sprintf("failed to convert %d rules", len(e.Errs))
}

// Unwrap exposes individual errors to errors.Is and errors.As
func (e ErrBulkConvert) Unwrap() []error { return e.Errs }

// ConvertCollection converts every rule independently
// Result slot i always belongs to rules[i], regardless of worker scheduling
func (b Backend) ConvertCollection(rules []*sigma.Rule, mode OutputMode) Results {
	results := make(Results, len(rules))
	convert := func(i int) {
		res := Result{Index: i}
		if rules[i] != nil {
			res.RuleID = rules[i].Metadata.ID
		}
		res.Output, res.Err = b.Convert(rules[i], mode)
		if res.Err != nil {
			res.Output = Output{}
			if b.logger != nil {
				b.logger.WithFields(logrus.Fields{
					"rule_id": res.RuleID,
					"index":   i,
					"mode":    mode.String(),
				}).Warn(res.Err)
			}
		}
		results[i] = res
	}

	if b.workers < 2 || len(rules) < 2 {
		for i := range rules {
			convert(i)
		}
		return results
	}

	workers := b.workers
	if workers > len(rules) {
		workers = len(rules)
	}
	indices := make(chan int, len(rules))
	for i := range rules {
		indices <- i
	}
	close(indices)

	if err := dispatch.Run(dispatch.Config{
		Async:   false,
		Workers: workers,
		FeederFunc: func(tasks chan<- dispatch.Task, stop <-chan struct{}) {
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				tasks <- func(id, count int, ctx context.Context) error {
					defer wg.Done()
					for idx := range indices {
						convert(idx)
					}
					return nil
				}
			}
			wg.Wait()
		},
		ErrFunc: func(err error) bool {
			return true
		},
	}); err != nil && b.logger != nil {
		b.logger.Error(err)
	}
	// slots left empty by an aborted pool are converted here
	for idx := range indices {
		convert(idx)
	}
	return results
}
