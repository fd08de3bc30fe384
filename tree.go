package sigma

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v2"
)

// Rule is a fully parsed sigma rule
// Root holds the detection condition tree, Metadata the fields needed by backends
// Rule is not modified after NewRule returns
type Rule struct {
	Root     Condition
	Metadata RuleMetadata

	// Path of source file, empty for rules parsed from memory
	Path string
}

// ParseRule decodes a single yaml document and builds the rule
func ParseRule(data []byte, ph *Placeholders) (*Rule, error) {
	handle, err := NewRuleHandle(data)
	if err != nil {
		return nil, err
	}
	return NewRule(*handle, ph)
}

// NewRule parses rule handle into an abstract syntax tree
func NewRule(r RuleHandle, ph *Placeholders) (*Rule, error) {
	if r.Multipart {
		return nil, ErrUnsupportedFeature{
			RuleID:  r.ID,
			Feature: "multi-document rule",
			Msg:     r.Path,
		}
	}
	meta, err := r.Metadata()
	if err != nil {
		return nil, err
	}
	if r.Detection == nil {
		return nil, ErrMissingDetection{}
	}
	d := r.Detection
	raw, ok := d.Get("condition")
	if !ok {
		return nil, ErrMissingCondition{}
	}
	var expr string
	switch v := raw.(type) {
	case string:
		expr = v
	case []interface{}:
		return nil, ErrUnsupportedFeature{
			RuleID:  meta.ID,
			Feature: "condition list",
			Msg:     fmt.Sprintf("rule defines %d conditions", len(v)),
		}
	default:
		return nil, ErrMissingCondition{}
	}
	if strings.TrimSpace(expr) == "" {
		return nil, ErrMissingCondition{}
	}

	p := newParser(expr, d, ph)
	if err := p.run(); err != nil {
		return nil, WithRuleID(err, meta.ID)
	}
	return &Rule{
		Root:     p.result,
		Metadata: *meta,
		Path:     r.Path,
	}, nil
}

// newBranch builds a condition tree from token list
// sequence and group validation should be done before invoking newBranch
func newBranch(d Detection, t []Item, depth int, ph *Placeholders) (Condition, error) {
	rx := genItems(t)

	and := make(NodeAnd, 0)
	or := make(NodeOr, 0)
	var negated bool
	var wildcard Token

	for item := range rx {
		switch item.T {
		case TokIdentifier:
			val, ok := d.Get(item.Val)
			if !ok || isReservedKey(item.Val) {
				return nil, ErrMissingConditionItem{Key: item.Val}
			}
			c, err := newConditionFromIdent(item.Val, val, ph)
			if err != nil {
				return nil, err
			}
			and = append(and, newNodeNotIfNegated(c, negated))
			negated = false
			wildcard = TokBegin
		case TokKeywordAnd:
			// no need to do anything special here
		case TokKeywordOr:
			// fill OR gate with collected AND nodes
			// reduce will strip AND logic if only one token has been collected
			if len(and) == 0 {
				return nil, ErrMalformedRule{Msg: "empty operand before or"}
			}
			or = append(or, and.Reduce())
			// reset existing AND collector
			and = make(NodeAnd, 0)
		case TokKeywordNot:
			negated = !negated
		case TokSepLpar:
			// recursively create new branch and append to existing list
			// then skip to next token after grouping
			c, err := newBranch(d, extractGroup(rx), depth+1, ph)
			if err != nil {
				return nil, err
			}
			and = append(and, newNodeNotIfNegated(c, negated))
			negated = false
		case TokIdentifierAll, TokIdentifierWithWildcard:
			var g glob.Glob
			if item.T == TokIdentifierWithWildcard {
				var err error
				if g, err = item.Glob(); err != nil {
					return nil, err
				}
			}
			conds, err := extractQuantified(d, g, ph)
			if err != nil {
				return nil, err
			}
			if len(conds) == 0 {
				return nil, ErrMissingConditionItem{Key: item.Val}
			}
			switch wildcard {
			case TokStAll:
				and = append(and, newNodeNotIfNegated(NodeAnd(conds).Reduce(), negated))
			case TokStOne:
				and = append(and, newNodeNotIfNegated(NodeOr(conds).Reduce(), negated))
			default:
				// invalid case, did not see 1of/allof statement before wildcard ident
				return nil, fmt.Errorf("invalid wildcard ident %s, missing 1 of/ all of prefix", item)
			}
			negated = false
			wildcard = TokBegin
		case TokStAll:
			wildcard = TokStAll
		case TokStOne:
			wildcard = TokStOne
		case TokSepRpar:
			return nil, fmt.Errorf("parser error, should not see %s",
				TokSepRpar)
		default:
			return nil, ErrUnsupportedToken{
				Msg: fmt.Sprintf("unexpected %s %q", item.T, item.Val),
			}
		}
	}
	if len(and) == 0 {
		return nil, ErrMalformedRule{Msg: fmt.Sprintf("empty expression at depth %d", depth)}
	}
	or = append(or, and.Reduce())

	return or.Reduce(), nil
}

func genItems(t []Item) <-chan Item {
	tx := make(chan Item, len(t))
	for _, item := range t {
		tx <- item
	}
	close(tx)
	return tx
}

func extractGroup(rx <-chan Item) []Item {
	// fn is called when newBranch hits TokSepLpar
	// it will be consumed, so balance is already 1
	balance := 1
	group := make([]Item, 0)
	for item := range rx {
		if balance > 0 {
			group = append(group, item)
		}
		switch item.T {
		case TokSepLpar:
			balance++
		case TokSepRpar:
			balance--
			if balance == 0 {
				return group[:len(group)-1]
			}
		default:
		}
	}
	return group
}

// extractQuantified builds conditions for every detection identifier matched by g
// nil glob stands for "them", which skips identifiers with underscore prefix
func extractQuantified(d Detection, g glob.Glob, ph *Placeholders) ([]Condition, error) {
	conds := make([]Condition, 0)
	for _, item := range d.Extract() {
		key := fmt.Sprintf("%v", item.Key)
		if g == nil && strings.HasPrefix(key, "_") {
			continue
		}
		if g != nil && !g.Match(key) {
			continue
		}
		c, err := newConditionFromIdent(key, item.Value, ph)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}

// NewRuleHandle decodes raw yaml into rule handle
func NewRuleHandle(data []byte) (*RuleHandle, error) {
	var r RawRule
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &RuleHandle{RawRule: r, Multipart: isMultipart(data)}, nil
}
