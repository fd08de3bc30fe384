package sigma

import (
	"fmt"
	"reflect"
)

// ErrUnsupportedFeature indicates a modifier, operator or value that cannot be lowered
// Raised per rule, caller decides if the rule is skipped or the run is aborted
type ErrUnsupportedFeature struct {
	RuleID  string
	Feature string
	Msg     string
}

func (e ErrUnsupportedFeature) Error() string {
	out := fmt.Sprintf("unsupported feature: %s", e.Feature)
	if e.Msg != "" {
		out = fmt.Sprintf("%s, %s", out, e.Msg)
	}
	return withRuleIDSuffix(out, e.RuleID)
}

// ErrMalformedRule indicates a structural violation of the condition tree
// such as empty groups or selections without values
type ErrMalformedRule struct {
	RuleID string
	Msg    string
}

func (e ErrMalformedRule) Error() string {
	return withRuleIDSuffix(fmt.Sprintf("malformed rule: %s", e.Msg), e.RuleID)
}

func withRuleIDSuffix(msg, id string) string {
	if id == "" {
		return msg
	}
	return fmt.Sprintf("%s [rule %s]", msg, id)
}

// WithRuleID attaches rule identifier to taxonomy errors
// Other errors are returned as-is
func WithRuleID(err error, id string) error {
	switch e := err.(type) {
	case ErrUnsupportedFeature:
		if e.RuleID == "" {
			e.RuleID = id
		}
		return e
	case ErrMalformedRule:
		if e.RuleID == "" {
			e.RuleID = id
		}
		return e
	default:
		return err
	}
}

// ErrMissingDetection indicates missing detection field
type ErrMissingDetection struct{}

func (e ErrMissingDetection) Error() string { return "sigma rule is missing detection field" }

// ErrMissingConditionItem indicates that identifier in condition is missing in detection map
type ErrMissingConditionItem struct {
	Key string
}

func (e ErrMissingConditionItem) Error() string {
	return fmt.Sprintf("missing condition identifier %s", e.Key)
}

// ErrMissingCondition indicates missing condition field
type ErrMissingCondition struct{}

func (e ErrMissingCondition) Error() string { return "sigma rule is missing condition" }

// ErrUnsupportedToken is a parser error indicating lexical token that is not yet supported
// Meant to be used as informational warning, rather than application breaking error
type ErrUnsupportedToken struct{ Msg string }

func (e ErrUnsupportedToken) Error() string { return fmt.Sprintf("UNSUPPORTED TOKEN: %s", e.Msg) }

// ErrParseYaml indicates YAML parsing error
type ErrParseYaml struct {
	Path  string
	Err   error
	Count int
}

func (e ErrParseYaml) Error() string {
	return fmt.Sprintf("%d - File: %s; Err: %s", e.Count, e.Path, e.Err)
}

// ErrBulkParseYaml is a bulk error handler for dealing with broken sigma rules
// Some rules are bound to fail, no reason to exit entire application
// Individual errors can be collected and returned at the end
// Caller decides if they should be only reported or it warrants full exit
type ErrBulkParseYaml struct {
	Errs []ErrParseYaml
}

func (e ErrBulkParseYaml) Error() string {
	return fmt.Sprintf("got %d broken yaml files", len(e.Errs))
}

// ErrInvalidTokenSeq indicates expression syntax error from rule writer
// For example, two indents should be separated by a logical AND / OR operator
type ErrInvalidTokenSeq struct {
	Prev, Next Item
	Collected  []Item
}

func (e ErrInvalidTokenSeq) Error() string {
	return fmt.Sprintf(`seq error after collecting %d elements.`+
		` Invalid token sequence %s -> %s. Values: %s -> %s.`,
		len(e.Collected), e.Prev.T, e.Next.T, e.Prev.Val, e.Next.Val)
}

// ErrIncompleteTokenSeq is invoked when lex channel drain does not end with EOF
// thus indicating incomplete lexing sequence
type ErrIncompleteTokenSeq struct {
	Expression string
	Items      []Item
	Last       Item
}

func (e ErrIncompleteTokenSeq) Error() string {
	return fmt.Sprintf("last element should be EOF, got token %s with value %s",
		e.Last.T.String(), e.Last.Val)
}

// ErrInvalidSelectionConstruct indicates that parser found a selection expression
// that did not match any known selection rule structure
type ErrInvalidSelectionConstruct struct {
	Key  string
	Expr interface{}
}

func (e ErrInvalidSelectionConstruct) Error() string {
	if e.Expr == nil {
		return fmt.Sprintf("invalid selection %s, got empty value", e.Key)
	}
	return fmt.Sprintf("invalid selection %s. Got |%+v| with type |%s|",
		e.Key, e.Expr, reflect.TypeOf(e.Expr).String())
}
