package sigma

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type lexer struct {
	input    string    // we'll store the string being parsed
	start    int       // the position we started scanning
	position int       // the current position of our scan
	width    int       // we'll be using runes which can be double byte
	items    chan Item // the channel we'll use to communicate between the lexer and the parser
}

// lex creates a lexer and starts scanning the provided input.
func lex(input string) *lexer {
	l := &lexer{
		input: input,
		items: make(chan Item),
	}
	go l.scan()
	return l
}

// ignore resets the start position to the current scan position effectively
// ignoring any input.
func (l *lexer) ignore() {
	l.start = l.position
}

// next advances the lexer state to the next rune.
func (l *lexer) next() (r rune) {
	if l.position >= len(l.input) {
		l.width = 0
		return eof
	}

	r, l.width = utf8.DecodeRuneInString(l.todo())
	l.position += l.width
	return r
}

// backup steps back one rune, only valid once per call of next
func (l *lexer) backup() {
	l.position -= l.width
}

// scan will step through the provided text and execute state functions as
// state changes are observed in the provided input.
func (l *lexer) scan() {
	for fn := lexCondition; fn != nil; {
		fn = fn(l)
	}
	close(l.items)
}

func (l *lexer) unsuppf(format string, args ...interface{}) stateFn {
	msg := fmt.Sprintf(format, args...)
	l.items <- Item{T: TokUnsupp, Val: msg}
	return nil
}

// emit sends a item over the channel so the parser can collect and manage
// each segment.
func (l *lexer) emit(k Token) {
	i := Item{T: k, Val: l.input[l.start:l.position]}
	l.items <- i
	l.ignore() // reset our scanner now that we've dispatched a segment
}

// emitWord dispatches accumulated text as keyword or identifier, if any
func (l *lexer) emitWord() {
	if l.position > l.start {
		l.emit(checkKeyWord(l.collected()))
	}
}

func (l lexer) collected() string { return l.input[l.start:l.position] }
func (l lexer) todo() string      { return l.input[l.position:] }

// stateFn is a function that is specific to a state within the string.
type stateFn func(*lexer) stateFn

// lexCondition scans what is expected to be text.
func lexCondition(l *lexer) stateFn {
	for {
		// statements can only start a new word
		if l.position == l.start {
			for _, t := range []Token{TokStOne, TokStAll} {
				if n := statementLen(l.todo(), t); n > 0 {
					l.position += n
					l.emit(t)
					return lexCondition
				}
			}
		}
		switch r := l.next(); {
		case r == eof:
			return lexEOF
		case r == TokSepLpar.Rune(), r == TokSepRpar.Rune(), r == TokSepPipe.Rune():
			l.backup()
			l.emitWord()
			return lexSeparator
		case unicode.IsSpace(r):
			l.backup()
			l.emitWord()
			return lexWhitespace
		}
	}
}

// statementLen returns the length of statement t at the start of input, or 0
// words of the statement may be separated by any run of whitespace
func statementLen(in string, t Token) int {
	var pos int
	for i, word := range strings.Fields(t.Literal()) {
		if i > 0 {
			n := spaceLen(in[pos:])
			if n == 0 {
				return 0
			}
			pos += n
		}
		if len(in)-pos < len(word) || !strings.EqualFold(in[pos:pos+len(word)], word) {
			return 0
		}
		pos += len(word)
	}
	if pos < len(in) && spaceLen(in[pos:]) == 0 {
		return 0
	}
	return pos
}

func spaceLen(in string) int {
	for i, r := range in {
		if !unicode.IsSpace(r) {
			return i
		}
	}
	return len(in)
}

func lexAggs(l *lexer) stateFn {
	return l.unsuppf("aggregation not supported yet [%s]", l.input)
}

func lexEOF(l *lexer) stateFn {
	l.emitWord()
	l.emit(TokLitEof)
	return nil
}

func lexSeparator(l *lexer) stateFn {
	switch l.next() {
	case TokSepLpar.Rune():
		l.emit(TokSepLpar)
	case TokSepRpar.Rune():
		l.emit(TokSepRpar)
	default:
		l.emit(TokSepPipe)
		return lexAggs
	}
	return lexCondition
}

// lexWhitespace scans what is expected to be whitespace.
func lexWhitespace(l *lexer) stateFn {
	for {
		switch r := l.next(); {
		case r == eof:
			return lexEOF
		case !unicode.IsSpace(r):
			l.backup()
			return lexCondition
		default:
			l.ignore()
		}
	}
}

func checkKeyWord(in string) Token {
	if len(in) == 0 {
		return TokNil
	}
	switch strings.ToLower(in) {
	case TokKeywordAnd.Literal():
		return TokKeywordAnd
	case TokKeywordOr.Literal():
		return TokKeywordOr
	case TokKeywordNot.Literal():
		return TokKeywordNot
	case TokIdentifierAll.Literal():
		return TokIdentifierAll
	default:
		if strings.ContainsAny(in, "*?") {
			return TokIdentifierWithWildcard
		}
		return TokIdentifier
	}
}
