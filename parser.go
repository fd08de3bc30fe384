package sigma

import "fmt"

type parser struct {
	// lexer that tokenizes input string
	lex *lexer

	tokens []Item
	// memorize last token to validate proper sequence
	// for example, two identifiers have to be joined via logical AND or OR, otherwise the sequence is invalid
	previous Item

	// sigma detection map that contains condition query and relevant fields
	sigma Detection

	// values for |expand modifier, may be nil
	placeholders *Placeholders

	// for debug
	condition string

	// resulting rule that can be collected later
	result Condition
}

func newParser(expr string, d Detection, ph *Placeholders) *parser {
	return &parser{
		lex:          lex(expr),
		condition:    expr,
		sigma:        d,
		placeholders: ph,
		previous:     Item{T: TokBegin},
		tokens:       make([]Item, 0),
	}
}

func (p *parser) run() error {
	if p.lex == nil {
		return fmt.Errorf("cannot run condition parser, lexer not initialized")
	}
	// Pass 1: collect tokens, do basic sequence validation
	if err := p.collect(); err != nil {
		return err
	}
	// Pass 2: build the tree, groups are handled recursively
	c, err := newBranch(p.sigma, p.tokens, 0, p.placeholders)
	if err != nil {
		return err
	}
	p.result = c
	return nil
}

// collect gathers all items from lexer and does preliminary sequence validation
func (p *parser) collect() error {
	// lexer goroutine blocks on send until channel is drained
	defer func() {
		for range p.lex.items {
		}
	}()
	for item := range p.lex.items {
		switch item.T {
		case TokUnsupp:
			return ErrUnsupportedToken{Msg: item.Val}
		case TokErr:
			return fmt.Errorf("condition lexer error: %s", item.Val)
		}
		if !validTokenSequence(p.previous.T, item.T) {
			return ErrInvalidTokenSeq{
				Prev:      p.previous,
				Next:      item,
				Collected: p.tokens,
			}
		}
		if item.T != TokLitEof {
			p.tokens = append(p.tokens, item)
		}
		p.previous = item
	}
	if p.previous.T != TokLitEof {
		return ErrIncompleteTokenSeq{
			Expression: p.condition,
			Items:      p.tokens,
			Last:       p.previous,
		}
	}
	return nil
}
