package searchdata

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSyntax is wrapped by every *SyntaxError
var ErrSyntax = errors.New("search data syntax error")

// SyntaxError reports malformed search data with the byte offset it was found at
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("search data: offset %d: %s", e.Offset, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lexer tokenizes the subset of JavaScript used by shard files:
// var statements, arrays, objects, quoted strings and integers.
type lexer struct {
	src []byte
	pos int
}

func (l *lexer) errorf(pos int, format string, args ...any) error {
	return &SyntaxError{Offset: pos, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) skipSpaceAndComments() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.pos++
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '*':
			end := strings.Index(string(l.src[l.pos+2:]), "*/")
			if end < 0 {
				return l.errorf(l.pos, "unterminated comment")
			}
			l.pos += end + 4
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) next() (token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return token{}, err
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]
	switch {
	case c == '\'' || c == '"':
		return l.lexString(c)
	case c == '-' || isDigit(c):
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		text := string(l.src[start:l.pos])
		if text == "-" {
			return token{}, l.errorf(start, "expected digit after '-'")
		}
		return token{kind: tokNumber, text: text, pos: start}, nil
	case isIdentStart(c):
		for l.pos < len(l.src) && (isIdentStart(l.src[l.pos]) || isDigit(l.src[l.pos])) {
			l.pos++
		}
		return token{kind: tokIdent, text: string(l.src[start:l.pos]), pos: start}, nil
	case strings.IndexByte("[]{},:;=", c) >= 0:
		l.pos++
		return token{kind: tokPunct, text: string(c), pos: start}, nil
	}
	return token{}, l.errorf(start, "unexpected character %q", c)
}

func (l *lexer) lexString(quote byte) (token, error) {
	start := l.pos
	l.pos++ // opening quote

	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case quote:
			l.pos++
			return token{kind: tokString, text: b.String(), pos: start}, nil
		case '\n':
			return token{}, l.errorf(l.pos, "newline in string literal")
		case '\\':
			if l.pos+1 >= len(l.src) {
				return token{}, l.errorf(l.pos, "unterminated escape")
			}
			l.pos++
			esc := l.src[l.pos]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'u':
				if l.pos+4 >= len(l.src) {
					return token{}, l.errorf(l.pos, "short \\u escape")
				}
				code, err := strconv.ParseUint(string(l.src[l.pos+1:l.pos+5]), 16, 16)
				if err != nil {
					return token{}, l.errorf(l.pos, "invalid \\u escape")
				}
				b.WriteRune(rune(code))
				l.pos += 4
			default:
				b.WriteByte(esc)
			}
			l.pos++
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return token{}, l.errorf(start, "unterminated string literal")
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// parser builds generic values ([]any, map[string]any, string, int64) from tokens
type parser struct {
	lex lexer
	tok token
}

func newParser(src []byte) (*parser, error) {
	p := &parser{lex: lexer{src: src}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) isPunct(text string) bool {
	return p.tok.kind == tokPunct && p.tok.text == text
}

func (p *parser) expect(text string) error {
	if !p.isPunct(text) {
		return p.lex.errorf(p.tok.pos, "expected %q, found %q", text, p.tok.text)
	}
	return p.advance()
}

func (p *parser) value() (any, error) {
	tok := p.tok
	switch {
	case tok.kind == tokString:
		return tok.text, p.advance()
	case tok.kind == tokNumber:
		n, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return nil, p.lex.errorf(tok.pos, "invalid number %q", tok.text)
		}
		return n, p.advance()
	case p.isPunct("["):
		return p.array()
	case p.isPunct("{"):
		return p.object()
	case tok.kind == tokEOF:
		return nil, p.lex.errorf(tok.pos, "unexpected end of input")
	}
	return nil, p.lex.errorf(tok.pos, "unexpected %q", tok.text)
}

func (p *parser) array() ([]any, error) {
	if err := p.expect("["); err != nil {
		return nil, err
	}
	items := []any{}
	for !p.isPunct("]") {
		item, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.isPunct(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if !p.isPunct("]") {
			return nil, p.lex.errorf(p.tok.pos, "expected ',' or ']', found %q", p.tok.text)
		}
	}
	return items, p.advance()
}

func (p *parser) object() (map[string]any, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	for !p.isPunct("}") {
		if p.tok.kind != tokString && p.tok.kind != tokNumber && p.tok.kind != tokIdent {
			return nil, p.lex.errorf(p.tok.pos, "expected object key, found %q", p.tok.text)
		}
		key := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		fields[key] = val
		if p.isPunct(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if !p.isPunct("}") {
			return nil, p.lex.errorf(p.tok.pos, "expected ',' or '}', found %q", p.tok.text)
		}
	}
	return fields, p.advance()
}

// statements parses a sequence of "var name = value;" bindings
func (p *parser) statements() (map[string]any, error) {
	bindings := map[string]any{}
	for p.tok.kind != tokEOF {
		if p.tok.kind != tokIdent || p.tok.text != "var" {
			return nil, p.lex.errorf(p.tok.pos, "expected 'var', found %q", p.tok.text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokIdent {
			return nil, p.lex.errorf(p.tok.pos, "expected identifier, found %q", p.tok.text)
		}
		name := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expect("="); err != nil {
			return nil, err
		}
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		bindings[name] = val
		if p.isPunct(";") {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	return bindings, nil
}
