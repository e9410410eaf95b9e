package expr

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenDot
	tokenComma
	tokenLParen
	tokenRParen
	tokenNot
	tokenAnd
	tokenOr
	tokenEq
	tokenNotEq
	tokenLess
	tokenLessEq
	tokenGreater
	tokenGreaterEq
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, *EvalError) {
	for l.pos < len(l.input) && (l.input[l.pos] == ' ' || l.input[l.pos] == '\t') {
		l.pos++
	}

	if l.pos >= len(l.input) {
		return token{kind: tokenEOF, pos: l.pos}, nil
	}

	start := l.pos
	ch := l.input[l.pos]

	switch {
	case ch == '(':
		l.pos++

		return token{kind: tokenLParen, text: "(", pos: start}, nil
	case ch == ')':
		l.pos++

		return token{kind: tokenRParen, text: ")", pos: start}, nil
	case ch == '.':
		l.pos++

		return token{kind: tokenDot, text: ".", pos: start}, nil
	case ch == ',':
		l.pos++

		return token{kind: tokenComma, text: ",", pos: start}, nil
	case ch == '\'':
		return l.lexString(start)
	case ch == '!':
		if l.peekAt(l.pos+1) == '=' {
			l.pos += 2

			return token{kind: tokenNotEq, text: "!=", pos: start}, nil
		}

		l.pos++

		return token{kind: tokenNot, text: "!", pos: start}, nil
	case ch == '=':
		if l.peekAt(l.pos+1) == '=' {
			l.pos += 2

			return token{kind: tokenEq, text: "==", pos: start}, nil
		}

		return token{}, newError(ErrKindSyntax, l.input, start, "unexpected character %q", ch)
	case ch == '&':
		if l.peekAt(l.pos+1) == '&' {
			l.pos += 2

			return token{kind: tokenAnd, text: "&&", pos: start}, nil
		}

		return token{}, newError(ErrKindSyntax, l.input, start, "unexpected character %q", ch)
	case ch == '|':
		if l.peekAt(l.pos+1) == '|' {
			l.pos += 2

			return token{kind: tokenOr, text: "||", pos: start}, nil
		}

		return token{}, newError(ErrKindSyntax, l.input, start, "unexpected character %q", ch)
	case ch == '<':
		if l.peekAt(l.pos+1) == '=' {
			l.pos += 2

			return token{kind: tokenLessEq, text: "<=", pos: start}, nil
		}

		l.pos++

		return token{kind: tokenLess, text: "<", pos: start}, nil
	case ch == '>':
		if l.peekAt(l.pos+1) == '=' {
			l.pos += 2

			return token{kind: tokenGreaterEq, text: ">=", pos: start}, nil
		}

		l.pos++

		return token{kind: tokenGreater, text: ">", pos: start}, nil
	case ch == '-' || unicode.IsDigit(rune(ch)):
		return l.lexNumber(start)
	case isIdentStart(ch):
		return l.lexIdent(start)
	default:
		return token{}, newError(ErrKindSyntax, l.input, start, "unexpected character %q", ch)
	}
}

// lexString scans a single-quoted string literal. Two consecutive
// quotes inside the literal escape one quote.
func (l *lexer) lexString(start int) (token, *EvalError) {
	l.pos++ // opening quote

	var sb strings.Builder

	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\'' {
			if l.peekAt(l.pos+1) == '\'' {
				sb.WriteByte('\'')
				l.pos += 2

				continue
			}

			l.pos++

			return token{kind: tokenString, text: sb.String(), pos: start}, nil
		}

		sb.WriteByte(ch)
		l.pos++
	}

	return token{}, newError(ErrKindSyntax, l.input, start, "unterminated string literal")
}

func (l *lexer) lexNumber(start int) (token, *EvalError) {
	l.pos++
	for l.pos < len(l.input) && (unicode.IsDigit(rune(l.input[l.pos])) || l.input[l.pos] == '.') {
		l.pos++
	}

	return token{kind: tokenNumber, text: l.input[start:l.pos], pos: start}, nil
}

func (l *lexer) lexIdent(start int) (token, *EvalError) {
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}

	return token{kind: tokenIdent, text: l.input[start:l.pos], pos: start}, nil
}

func (l *lexer) peekAt(i int) byte {
	if i >= len(l.input) {
		return 0
	}

	return l.input[i]
}

func isIdentStart(ch byte) bool {
	return ch == '_' || unicode.IsLetter(rune(ch))
}

func isIdentPart(ch byte) bool {
	return ch == '_' || ch == '-' || unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch))
}
