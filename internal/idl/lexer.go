package idl

import (
	"strconv"
	"strings"
)

// lexer turns .x source text into a token stream. It holds the whole
// file in memory (libvirt protocol files are small) and tracks
// line/column for diagnostics as it scans.
type lexer struct {
	src    string
	pos    int
	line   int
	column int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, column: 1}
}

func (l *lexer) peekByte() (byte, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return c
}

func (l *lexer) skipToEOL() {
	for {
		c, ok := l.peekByte()
		if !ok || c == '\n' {
			return
		}
		l.advance()
	}
}

// skipSeparators consumes whitespace, block/line comments, and
// preprocessor/line-marker directives, all of which are valid separators
// anywhere a token boundary is valid.
func (l *lexer) skipSeparators() {
	for {
		c, ok := l.peekByte()
		if !ok {
			return
		}
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '%' || c == '#':
			l.skipToEOL()
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/':
			l.skipToEOL()
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '*':
			l.advance()
			l.advance()
			for {
				cc, ok := l.peekByte()
				if !ok {
					return
				}
				if cc == '*' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
		default:
			return
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// next returns the next token, consuming it.
func (l *lexer) next() (token, *ParseError) {
	l.skipSeparators()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: l.line, column: l.column}, nil
	}

	startLine, startCol := l.line, l.column
	c, _ := l.peekByte()

	switch c {
	case '{':
		l.advance()
		return token{kind: tokLBrace, line: startLine, column: startCol}, nil
	case '}':
		l.advance()
		return token{kind: tokRBrace, line: startLine, column: startCol}, nil
	case '(':
		l.advance()
		return token{kind: tokLParen, line: startLine, column: startCol}, nil
	case ')':
		l.advance()
		return token{kind: tokRParen, line: startLine, column: startCol}, nil
	case '[':
		l.advance()
		return token{kind: tokLBracket, line: startLine, column: startCol}, nil
	case ']':
		l.advance()
		return token{kind: tokRBracket, line: startLine, column: startCol}, nil
	case '<':
		l.advance()
		return token{kind: tokLAngle, line: startLine, column: startCol}, nil
	case '>':
		l.advance()
		return token{kind: tokRAngle, line: startLine, column: startCol}, nil
	case '*':
		l.advance()
		return token{kind: tokStar, line: startLine, column: startCol}, nil
	case ',':
		l.advance()
		return token{kind: tokComma, line: startLine, column: startCol}, nil
	case ';':
		l.advance()
		return token{kind: tokSemicolon, line: startLine, column: startCol}, nil
	case ':':
		l.advance()
		return token{kind: tokColon, line: startLine, column: startCol}, nil
	case '=':
		l.advance()
		return token{kind: tokEquals, line: startLine, column: startCol}, nil
	}

	if c == '-' || isDigit(c) {
		return l.lexNumber(startLine, startCol)
	}
	if isIdentStart(c) {
		start := l.pos
		for {
			cc, ok := l.peekByte()
			if !ok || !isIdentCont(cc) {
				break
			}
			l.advance()
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], line: startLine, column: startCol}, nil
	}

	return token{}, &ParseError{
		Kind: UnexpectedToken, Line: startLine, Column: startCol,
		Snippet: string(c), Msg: "unrecognized character",
	}
}

func (l *lexer) lexNumber(startLine, startCol int) (token, *ParseError) {
	start := l.pos
	if c, ok := l.peekByte(); ok && c == '-' {
		l.advance()
	}
	hex := false
	if c, ok := l.peekByte(); ok && c == '0' {
		l.advance()
		if c2, ok2 := l.peekByte(); ok2 && (c2 == 'x' || c2 == 'X') {
			l.advance()
			hex = true
		}
	}
	for {
		c, ok := l.peekByte()
		if !ok {
			break
		}
		if hex {
			if isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
				l.advance()
				continue
			}
		} else if isDigit(c) {
			l.advance()
			continue
		}
		break
	}
	text := l.src[start:l.pos]

	var v int64
	var err error
	if hex {
		neg := strings.HasPrefix(text, "-")
		unsigned := strings.TrimPrefix(text, "-")
		unsigned = strings.TrimPrefix(strings.TrimPrefix(unsigned, "0x"), "0X")
		var uv uint64
		uv, err = strconv.ParseUint(unsigned, 16, 64)
		v = int64(uv)
		if neg {
			v = -v
		}
	} else {
		v, err = strconv.ParseInt(text, 10, 64)
	}
	if err != nil {
		return token{}, &ParseError{
			Kind: NumberOutOfRange, Line: startLine, Column: startCol,
			Snippet: text, Msg: "number out of range",
		}
	}

	return token{kind: tokNumber, text: text, num: v, line: startLine, column: startCol}, nil
}
