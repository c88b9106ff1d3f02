// Package lexer tokenizes cube rule text, in the same scan-loop,
// peekable-Item shape as freeeve/machparse's SQL lexer, retargeted to
// the rule grammar's tokens.
package lexer

import (
	"strings"

	"github.com/dreamware/molap/internal/rule/token"
)

// Lexer tokenizes rule text.
type Lexer struct {
	input  string
	start  int
	pos    int
	item   token.Item
	peeked bool
}

// New creates a Lexer over input.
func New(input string) *Lexer {
	return &Lexer{input: input}
}

// Next returns the next token, consuming it.
func (l *Lexer) Next() token.Item {
	if l.peeked {
		l.peeked = false
		return l.item
	}
	l.item = l.scan()
	return l.item
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() token.Item {
	if !l.peeked {
		l.item = l.scan()
		l.peeked = true
	}
	return l.item
}

func (l *Lexer) scan() token.Item {
	l.skipWhitespace()
	l.start = l.pos

	if l.pos >= len(l.input) {
		return l.make(token.EOF, "")
	}

	ch := l.input[l.pos]
	switch ch {
	case '(':
		l.pos++
		return l.make(token.LPAREN, "(")
	case ')':
		l.pos++
		return l.make(token.RPAREN, ")")
	case '[':
		l.pos++
		return l.make(token.LBRACKET, "[")
	case ']':
		l.pos++
		return l.make(token.RBRACKET, "]")
	case ',':
		l.pos++
		return l.make(token.COMMA, ",")
	case '+':
		l.pos++
		return l.make(token.PLUS, "+")
	case '-':
		l.pos++
		return l.make(token.MINUS, "-")
	case '*':
		l.pos++
		return l.make(token.ASTERISK, "*")
	case '/':
		l.pos++
		return l.make(token.SLASH, "/")
	case '=':
		l.pos++
		return l.make(token.EQ, "=")
	case '<':
		l.pos++
		if l.pos < len(l.input) && l.input[l.pos] == '=' {
			l.pos++
			return l.make(token.LE, "<=")
		}
		if l.pos < len(l.input) && l.input[l.pos] == '>' {
			l.pos++
			return l.make(token.NE, "<>")
		}
		return l.make(token.LT, "<")
	case '>':
		l.pos++
		if l.pos < len(l.input) && l.input[l.pos] == '=' {
			l.pos++
			return l.make(token.GE, ">=")
		}
		return l.make(token.GT, ">")
	case '\'', '"':
		return l.scanString(ch)
	}

	if isDigit(ch) {
		return l.scanNumber()
	}
	if isIdentStart(ch) {
		return l.scanIdent()
	}

	// Unrecognized byte: consume it as its own single-char IDENT so the
	// parser rejects it with an error (an IDENT not followed by '(')
	// instead of the lexer silently swallowing input.
	l.pos++
	return l.make(token.IDENT, string(ch))
}

func (l *Lexer) scanString(quote byte) token.Item {
	l.pos++ // consume opening quote
	start := l.pos
	for l.pos < len(l.input) && l.input[l.pos] != quote {
		l.pos++
	}
	val := l.input[start:l.pos]
	if l.pos < len(l.input) {
		l.pos++ // consume closing quote
	}
	return token.Item{Kind: token.STRING, Val: val}
}

func (l *Lexer) scanNumber() token.Item {
	start := l.pos
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	return token.Item{Kind: token.NUMBER, Val: l.input[start:l.pos]}
}

func (l *Lexer) scanIdent() token.Item {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	val := l.input[start:l.pos]
	if kind, ok := token.Lookup(val); ok {
		return token.Item{Kind: kind, Val: strings.ToUpper(val)}
	}
	return token.Item{Kind: token.IDENT, Val: val}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case ' ', '\t', '\r', '\n':
			l.pos++
		default:
			return
		}
	}
}

func (l *Lexer) make(kind token.Kind, val string) token.Item {
	return token.Item{Kind: kind, Val: val}
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
