package sigma

import (
	"errors"
	"fmt"
	"os"
)

// Config is used as argument to creating a new ruleset
type Config struct {
	// root directory for recursive rule search
	// rules must be readable files with "yml" or "yaml" suffix
	Directory []string
	// glob patterns for filtering rule paths, empty list loads everything
	Include []string
	// path to yaml file with values for expand modifier, optional
	Placeholders string
	// by default, a rule parse fail will simply increment Ruleset.Failed counter when failing to
	// parse yaml or rule AST
	// this parameter will cause an early error return instead
	FailOnRuleParse, FailOnYamlParse bool
}

func (c Config) validate() error {
	if len(c.Directory) == 0 {
		return fmt.Errorf("missing root directory for sigma rules")
	}
	for _, dir := range c.Directory {
		info, err := os.Stat(dir)
		if os.IsNotExist(err) {
			return fmt.Errorf("%s does not exist", dir)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
	}
	return nil
}

// Ruleset is a collection of rules
// Rules keeps the order of the file listing
type Ruleset struct {
	Rules []*Rule
	root  []string

	Total, Ok, Failed, Unsupported int
}

// NewRuleset instanciates a Ruleset object
func NewRuleset(c Config) (*Ruleset, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	var ph *Placeholders
	if c.Placeholders != "" {
		var err error
		if ph, err = NewPlaceholders(c.Placeholders); err != nil {
			return nil, err
		}
	}
	files, err := NewRuleFileList(c.Directory, c.Include)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return &Ruleset{root: c.Directory, Rules: make([]*Rule, 0)}, nil
	}
	var fail, unsupp int
	rules, err := NewRuleList(files, !c.FailOnYamlParse)
	if err != nil {
		switch e := err.(type) {
		case ErrBulkParseYaml:
			fail += len(e.Errs)
		default:
			return nil, err
		}
	}
	set := make([]*Rule, 0)
loop:
	for _, raw := range rules {
		rule, err := NewRule(raw, ph)
		if err != nil {
			if c.FailOnRuleParse {
				return nil, fmt.Errorf("%s: %w", raw.Path, err)
			}
			if IsUnsupported(err) {
				unsupp++
			} else {
				fail++
			}
			continue loop
		}
		set = append(set, rule)
	}
	return &Ruleset{
		root:        c.Directory,
		Rules:       set,
		Failed:      fail,
		Ok:          len(set),
		Unsupported: unsupp,
		Total:       len(files),
	}, nil
}

// IsUnsupported reports if error stems from a valid rule using constructs that cannot be converted
func IsUnsupported(err error) bool {
	var tok ErrUnsupportedToken
	var feat ErrUnsupportedFeature
	return errors.As(err, &tok) || errors.As(err, &feat)
}
