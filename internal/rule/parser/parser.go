// Package parser builds an ast.Node tree from rule text via recursive
// descent, in the same Lexer-wrapping shape as freeeve/machparse's SQL
// parser, retargeted to the cube rule grammar:
//
//	expr       := comparison
//	comparison := arithmetic ( ('='|'<>'|'<'|'<='|'>'|'>=') arithmetic )?
//	arithmetic := term ( ('+'|'-') term )*
//	term       := factor ( ('*'|'/') factor )*
//	factor     := NUMBER | STRING | '-' factor | '(' expr ')' | source | call
//	source     := '[' ( STRING (',' STRING)* )? ']'
//	call       := IF '(' expr ',' expr ',' expr ')' | IDENT '(' (expr (',' expr)*)? ')'
package parser

import (
	"fmt"

	"github.com/dreamware/molap/internal/molaperr"
	"github.com/dreamware/molap/internal/rule/ast"
	"github.com/dreamware/molap/internal/rule/lexer"
	"github.com/dreamware/molap/internal/rule/token"
)

// Parser consumes a Lexer and produces an ast.Node.
type Parser struct {
	lex *lexer.Lexer
}

// Parse parses text into a rule expression tree.
func Parse(text string) (ast.Node, error) {
	p := &Parser{lex: lexer.New(text)}
	expr, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if tok := p.lex.Peek(); tok.Kind != token.EOF {
		return nil, p.errorf("unexpected trailing token %q", tok.Val)
	}
	return expr, nil
}

func (p *Parser) errorf(format string, args ...any) error {
	return molaperr.Wrap(molaperr.KindInput, "rule.Parse", fmt.Errorf(format, args...))
}

func (p *Parser) parseComparison() (ast.Node, error) {
	left, err := p.parseArithmetic()
	if err != nil {
		return nil, err
	}
	op := ""
	switch p.lex.Peek().Kind {
	case token.EQ:
		op = "="
	case token.NE:
		op = "<>"
	case token.LT:
		op = "<"
	case token.LE:
		op = "<="
	case token.GT:
		op = ">"
	case token.GE:
		op = ">="
	default:
		return left, nil
	}
	p.lex.Next()
	right, err := p.parseArithmetic()
	if err != nil {
		return nil, err
	}
	return &ast.Comparison{Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseArithmetic() (ast.Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.lex.Peek().Kind {
		case token.PLUS:
			op = "+"
		case token.MINUS:
			op = "-"
		default:
			return left, nil
		}
		p.lex.Next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &ast.Arithmetic{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseTerm() (ast.Node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.lex.Peek().Kind {
		case token.ASTERISK:
			op = "*"
		case token.SLASH:
			op = "/"
		default:
			return left, nil
		}
		p.lex.Next()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &ast.Arithmetic{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseFactor() (ast.Node, error) {
	tok := p.lex.Peek()
	switch tok.Kind {
	case token.MINUS:
		p.lex.Next()
		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &ast.Arithmetic{Op: "-", Left: &ast.Constant{Num: 0}, Right: inner}, nil
	case token.NUMBER:
		p.lex.Next()
		return &ast.Constant{Num: parseFloat(tok.Val)}, nil
	case token.STRING:
		p.lex.Next()
		return &ast.Constant{IsString: true, Str: tok.Val}, nil
	case token.LPAREN:
		p.lex.Next()
		inner, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if p.lex.Next().Kind != token.RPAREN {
			return nil, p.errorf("expected ')'")
		}
		return inner, nil
	case token.LBRACKET:
		return p.parseSource()
	case token.IF:
		return p.parseIf()
	case token.IDENT:
		return p.parseCall()
	default:
		return nil, p.errorf("unexpected token %q", tok.Val)
	}
}

func (p *Parser) parseSource() (ast.Node, error) {
	p.lex.Next() // consume '['
	var coords []string
	if p.lex.Peek().Kind != token.RBRACKET {
		for {
			tok := p.lex.Next()
			if tok.Kind != token.STRING {
				return nil, p.errorf("expected element name in cell reference, got %q", tok.Val)
			}
			coords = append(coords, tok.Val)
			if p.lex.Peek().Kind != token.COMMA {
				break
			}
			p.lex.Next()
		}
	}
	if p.lex.Next().Kind != token.RBRACKET {
		return nil, p.errorf("expected ']'")
	}
	return &ast.Source{Coords: coords}, nil
}

func (p *Parser) parseIf() (ast.Node, error) {
	p.lex.Next() // consume IF
	if p.lex.Next().Kind != token.LPAREN {
		return nil, p.errorf("expected '(' after IF")
	}
	cond, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if p.lex.Next().Kind != token.COMMA {
		return nil, p.errorf("expected ',' after IF condition")
	}
	then, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if p.lex.Next().Kind != token.COMMA {
		return nil, p.errorf("expected ',' after IF then-branch")
	}
	els, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if p.lex.Next().Kind != token.RPAREN {
		return nil, p.errorf("expected ')' to close IF")
	}
	return &ast.If{Cond: cond, Then: then, Else: els}, nil
}

func (p *Parser) parseCall() (ast.Node, error) {
	name := p.lex.Next().Val
	if p.lex.Peek().Kind != token.LPAREN {
		return nil, p.errorf("expected '(' after function name %q", name)
	}
	p.lex.Next()
	var args []ast.Node
	if p.lex.Peek().Kind != token.RPAREN {
		for {
			arg, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.lex.Peek().Kind != token.COMMA {
				break
			}
			p.lex.Next()
		}
	}
	if p.lex.Next().Kind != token.RPAREN {
		return nil, p.errorf("expected ')' to close call to %q", name)
	}
	return &ast.Function{Name: name, Args: args}, nil
}

func parseFloat(s string) float64 {
	var n float64
	var frac float64 = 1
	var inFrac bool
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '.' {
			inFrac = true
			continue
		}
		d := float64(ch - '0')
		if inFrac {
			frac /= 10
			n += d * frac
		} else {
			n = n*10 + d
		}
	}
	return n
}
