package sigma

import (
	"fmt"

	"github.com/gobwas/glob"
)

var eof = rune(0)

// Item is a token emitted by the condition lexer, along with the text it was read from
type Item struct {
	T   Token
	Val string
}

// Glob compiles a wildcard identifier for matching detection keys
func (i Item) Glob() (glob.Glob, error) {
	g, err := glob.Compile(i.Val)
	if err != nil {
		return nil, fmt.Errorf("invalid wildcard identifier %s: %s", i.Val, err)
	}
	return g, nil
}

func (i Item) String() string { return i.Val }

// Token is a lexical token of a condition expression
type Token int

const (
	TokErr Token = iota

	// parser and lexer state
	TokUnsupp
	TokBegin
	TokNil

	// detection identifiers
	TokIdentifier
	TokIdentifierWithWildcard
	TokIdentifierAll

	TokLitEof

	TokSepLpar
	TokSepRpar
	TokSepPipe

	TokKeywordAnd
	TokKeywordOr
	TokKeywordNot

	// quantifiers, 1 of and all of
	TokStOne
	TokStAll
)

type tokenInfo struct {
	name    string
	literal string
}

var tokens = map[Token]tokenInfo{
	TokErr:                    {name: "ERR"},
	TokUnsupp:                 {name: "UNSUPPORTED"},
	TokBegin:                  {name: "BEGINNING"},
	TokNil:                    {name: "NIL"},
	TokIdentifier:             {name: "IDENT"},
	TokIdentifierWithWildcard: {name: "WILDCARDIDENT"},
	TokIdentifierAll:          {name: "THEM", literal: "them"},
	TokLitEof:                 {name: "EOF"},
	TokSepLpar:                {name: "LPAR", literal: "("},
	TokSepRpar:                {name: "RPAR", literal: ")"},
	TokSepPipe:                {name: "PIPE", literal: "|"},
	TokKeywordAnd:             {name: "AND", literal: "and"},
	TokKeywordOr:              {name: "OR", literal: "or"},
	TokKeywordNot:             {name: "NOT", literal: "not"},
	TokStOne:                  {name: "ONE", literal: "1 of"},
	TokStAll:                  {name: "ALL", literal: "all of"},
}

// String is the uppercase debug name of the token
func (t Token) String() string {
	if info, ok := tokens[t]; ok {
		return info.name
	}
	return "Unk"
}

// Literal is the text of a keyword, separator or statement in lowercase
// identifiers have no fixed literal and return an empty string
func (t Token) Literal() string {
	return tokens[t].literal
}

// Rune returns the symbol of a separator, eof for other tokens
func (t Token) Rune() rune {
	if lit := t.Literal(); len(lit) == 1 && t >= TokSepLpar && t <= TokSepPipe {
		return rune(lit[0])
	}
	return eof
}

var (
	operands  = []Token{TokIdentifier, TokIdentifierWithWildcard, TokIdentifierAll, TokSepRpar}
	operators = []Token{TokBegin, TokSepLpar, TokKeywordAnd, TokKeywordOr, TokKeywordNot}
)

// predecessors lists the tokens that may directly precede a token
var predecessors = map[Token][]Token{
	TokStOne:                  operators,
	TokStAll:                  operators,
	TokIdentifierAll:          {TokStOne, TokStAll},
	TokIdentifier:             append(operators[:len(operators):len(operators)], TokStOne, TokStAll),
	TokIdentifierWithWildcard: append(operators[:len(operators):len(operators)], TokStOne, TokStAll),
	TokKeywordNot:             operators,
	TokSepLpar:                operators,
	TokKeywordAnd:             operands,
	TokKeywordOr:              operands,
	TokSepRpar:                operands,
	TokSepPipe:                operands,
	TokLitEof:                 operands,
}

// validTokenSequence is a quick check that next may follow prev
// it does not replace the parser, only rejects obviously broken expressions early
func validTokenSequence(prev, next Token) bool {
	for _, t := range predecessors[next] {
		if t == prev {
			return true
		}
	}
	return false
}
