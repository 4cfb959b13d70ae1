// Package lexer scans tela source text into a stream of tokens.
package lexer

import (
	"strings"

	"github.com/xirelogy/tela/internal/errs"
	"github.com/xirelogy/tela/internal/token"
)

// Lexer converts source text into a stream of tokens.
type Lexer struct {
	input    string
	pos      int // current position in bytes
	readPos  int // next read position
	ch       byte
	line     int
	column   int
	reporter *errs.Reporter
}

// New creates a lexer for the provided source text. reporter may be nil, in
// which case unexpected characters and unterminated strings are only
// observable as Illegal tokens; an unterminated block comment produces no
// token and is then not reported at all.
func New(input string, reporter *errs.Reporter) *Lexer {
	l := &Lexer{
		input:    input,
		line:     1,
		column:   0,
		reporter: reporter,
	}
	l.readChar()
	return l
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespace()

	for l.ch == '/' && (l.peekChar() == '/' || l.peekChar() == '*') {
		if l.peekChar() == '/' {
			l.skipLineComment()
		} else {
			l.skipBlockComment()
		}
		l.skipWhitespace()
	}

	if l.ch == 0 {
		return l.makeToken(token.EOF, "")
	}

	switch l.ch {
	case '=':
		if l.peekChar() == '=' {
			return l.two(token.Equal)
		}
		return l.one(token.Assign)
	case '+':
		return l.one(token.Plus)
	case '-':
		return l.one(token.Minus)
	case '*':
		return l.one(token.Star)
	case '/':
		return l.one(token.Slash)
	case '%':
		return l.one(token.Percent)
	case '!':
		if l.peekChar() == '=' {
			return l.two(token.NotEqual)
		}
		return l.one(token.Bang)
	case '<':
		if l.peekChar() == '=' {
			return l.two(token.LessEqual)
		}
		return l.one(token.Less)
	case '>':
		if l.peekChar() == '=' {
			return l.two(token.GreaterEqual)
		}
		return l.one(token.Greater)
	case '&':
		if l.peekChar() == '&' {
			return l.two(token.AndAnd)
		}
		return l.illegal(string(l.ch))
	case '|':
		if l.peekChar() == '|' {
			return l.two(token.OrOr)
		}
		return l.illegal(string(l.ch))
	case '.':
		return l.one(token.Dot)
	case ',':
		return l.one(token.Comma)
	case ';':
		return l.one(token.Semicolon)
	case '(':
		return l.one(token.LParen)
	case ')':
		return l.one(token.RParen)
	case '{':
		return l.one(token.LBrace)
	case '}':
		return l.one(token.RBrace)
	case '"':
		return l.readString()
	default:
		if isLetter(l.ch) {
			return l.readIdentifier()
		}
		if isDigit(l.ch) {
			return l.readNumber()
		}
		return l.illegal(string(l.ch))
	}
}

func (l *Lexer) one(t token.Type) token.Token {
	tok := l.makeToken(t, string(l.ch))
	l.readChar()
	return tok
}

func (l *Lexer) two(t token.Type) token.Token {
	ch := l.ch
	tok := l.makeToken(t, "")
	l.readChar()
	tok.Literal = string(ch) + string(l.ch)
	l.readChar()
	return tok
}

func (l *Lexer) illegal(lit string) token.Token {
	tok := l.makeToken(token.Illegal, lit)
	if l.reporter != nil {
		l.reporter.Report(errs.Lexical, errs.Span{Line: tok.Pos.Line, Column: tok.Pos.Column}, "unexpected character %q", lit)
	}
	l.readChar()
	return tok
}

func (l *Lexer) makeToken(t token.Type, lit string) token.Token {
	return token.Token{
		Type:    t,
		Literal: lit,
		Pos: token.Position{
			Offset: l.pos,
			Line:   l.line,
			Column: l.column,
		},
	}
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
		l.readChar()
	}
}

func (l *Lexer) skipLineComment() {
	for l.ch != 0 && l.ch != '\n' {
		l.readChar()
	}
}

func (l *Lexer) skipBlockComment() {
	start := l.makeToken(token.Illegal, "")
	l.readChar() // consume '/'
	l.readChar() // consume '*'
	for {
		if l.ch == 0 {
			if l.reporter != nil {
				l.reporter.Report(errs.Lexical, errs.Span{Line: start.Pos.Line, Column: start.Pos.Column}, "unterminated block comment")
			}
			return
		}
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar() // '*'
			l.readChar() // '/'
			return
		}
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() token.Token {
	start := l.makeToken(token.Ident, "")
	var sb strings.Builder
	for isLetter(l.ch) || isDigit(l.ch) {
		sb.WriteByte(l.ch)
		l.readChar()
	}
	lit := sb.String()
	start.Type = token.LookupIdent(lit)
	start.Literal = lit
	return start
}

func (l *Lexer) readNumber() token.Token {
	start := l.makeToken(token.Number, "")
	var sb strings.Builder
	for isDigit(l.ch) {
		sb.WriteByte(l.ch)
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		sb.WriteByte(l.ch)
		l.readChar()
		for isDigit(l.ch) {
			sb.WriteByte(l.ch)
			l.readChar()
		}
	}
	start.Literal = sb.String()
	return start
}

func (l *Lexer) readString() token.Token {
	start := l.makeToken(token.String, "")
	var sb strings.Builder

	for {
		l.readChar()
		if l.ch == 0 {
			if l.reporter != nil {
				l.reporter.Report(errs.Lexical, errs.Span{Line: start.Pos.Line, Column: start.Pos.Column}, "unterminated string")
			}
			start.Type = token.Illegal
			start.Literal = "unterminated string"
			return start
		}
		if l.ch == '"' {
			l.readChar()
			break
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case '"', '\\':
				sb.WriteByte(l.ch)
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(l.ch)
			}
			continue
		}
		sb.WriteByte(l.ch)
	}

	start.Literal = sb.String()
	return start
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.pos = l.readPos
		l.ch = 0
		return
	}

	l.ch = l.input[l.readPos]
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}
