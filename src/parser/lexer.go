package parser

import (
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// lexer scans decoded BR source text into a token stream. It never
// fails: unrecognized characters become tokenIllegal tokens and
// unterminated strings are closed at end of line.
type lexer struct {
	src    string
	pos    int    // byte offset of next rune
	line   uint32 // 0-based
	col    uint32 // 0-based, UTF-16 units
	tokens []Token
}

func newLexer(src string) *lexer {
	return &lexer{src: src, tokens: make([]Token, 0, len(src)/4)}
}

func (l *lexer) run() []Token {
	for {
		r, ok := l.peek()
		if !ok {
			break
		}
		switch {
		case r == '\n':
			l.emitAt(tokenEOL, "\n", l.pos, l.line, l.col)
			l.advance()
		case r == '\r':
			l.advance() // CRLF normalization, the EOL comes from the \n
		case r == ' ' || r == '\t':
			l.advance()
		case r == '!':
			l.lexLineComment()
		case r == '/' && strings.HasPrefix(l.src[l.pos:], "/**"):
			l.lexDocComment()
		case r == '/' && strings.HasPrefix(l.src[l.pos:], "//"):
			l.lexLineComment()
		case r == '"' || r == '\'':
			l.lexString(r)
		case r >= '0' && r <= '9':
			l.lexNumber()
		case r == '.' && l.digitAt(l.pos+1):
			l.lexNumber()
		case isIdentStart(r):
			l.lexIdent()
		default:
			l.lexPunct(r)
		}
	}
	l.emitAt(tokenEOF, "", l.pos, l.line, l.col)
	return l.tokens
}

func (l *lexer) peek() (rune, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return r, true
}

func (l *lexer) digitAt(off int) bool {
	return off < len(l.src) && l.src[off] >= '0' && l.src[off] <= '9'
}

// advance consumes one rune, tracking line/col
func (l *lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col += uint32(utf16.RuneLen(r))
	}
	return r
}

func (l *lexer) emitAt(tt TokenType, text string, offset int, line, col uint32) {
	l.tokens = append(l.tokens, Token{Type: tt, Text: text, Line: line, Col: col, Offset: offset})
}

func (l *lexer) lexLineComment() {
	start, line, col := l.pos, l.line, l.col
	for {
		r, ok := l.peek()
		if !ok || r == '\n' {
			break
		}
		l.advance()
	}
	l.emitAt(tokenComment, l.src[start:l.pos], start, line, col)
}

// lexDocComment scans a /** ... */ block, possibly spanning lines
func (l *lexer) lexDocComment() {
	start, line, col := l.pos, l.line, l.col
	l.advance() // /
	l.advance() // *
	l.advance() // *
	for {
		r, ok := l.peek()
		if !ok {
			break
		}
		if r == '*' && strings.HasPrefix(l.src[l.pos:], "*/") {
			l.advance()
			l.advance()
			break
		}
		l.advance()
	}
	l.emitAt(tokenDocComment, l.src[start:l.pos], start, line, col)
}

// lexString scans a quoted string. Doubled quotes escape the delimiter.
// An unterminated string ends at the line break.
func (l *lexer) lexString(quote rune) {
	start, line, col := l.pos, l.line, l.col
	l.advance() // opening quote
	for {
		r, ok := l.peek()
		if !ok || r == '\n' {
			break
		}
		l.advance()
		if r == quote {
			if next, ok := l.peek(); ok && next == quote {
				l.advance() // escaped delimiter
				continue
			}
			break
		}
	}
	l.emitAt(tokenString, l.src[start:l.pos], start, line, col)
}

func (l *lexer) lexNumber() {
	start, line, col := l.pos, l.line, l.col
	seenDot := false
	for {
		r, ok := l.peek()
		if !ok {
			break
		}
		if r >= '0' && r <= '9' {
			l.advance()
			continue
		}
		if r == '.' && !seenDot && l.digitAt(l.pos+1) {
			seenDot = true
			l.advance()
			continue
		}
		if (r == 'e' || r == 'E') && exponentFollows(l.src[l.pos:]) {
			l.advance()
			if s, ok := l.peek(); ok && (s == '+' || s == '-') {
				l.advance()
			}
			continue
		}
		break
	}
	l.emitAt(tokenNumber, l.src[start:l.pos], start, line, col)
}

func exponentFollows(rest string) bool {
	if len(rest) < 2 {
		return false
	}
	i := 1
	if rest[i] == '+' || rest[i] == '-' {
		i++
	}
	return i < len(rest) && rest[i] >= '0' && rest[i] <= '9'
}

func (l *lexer) lexIdent() {
	start, line, col := l.pos, l.line, l.col
	for {
		r, ok := l.peek()
		if !ok || !isIdentPart(r) {
			break
		}
		l.advance()
	}
	tt := tokenIdent
	if r, ok := l.peek(); ok && r == '$' {
		l.advance()
		tt = tokenStringIdent
	}
	text := l.src[start:l.pos]
	if tt == tokenIdent && keywords[lower(text)] {
		// rem introduces a comment running to end of line
		if lower(text) == "rem" {
			for {
				r, ok := l.peek()
				if !ok || r == '\n' {
					break
				}
				l.advance()
			}
			l.emitAt(tokenComment, l.src[start:l.pos], start, line, col)
			return
		}
		tt = tokenKeyword
	}
	l.emitAt(tt, text, start, line, col)
}

func (l *lexer) lexPunct(r rune) {
	start, line, col := l.pos, l.line, l.col
	l.advance()
	switch r {
	case ':':
		l.emitAt(tokenColon, ":", start, line, col)
	case ';':
		l.emitAt(tokenSemicolon, ";", start, line, col)
	case ',':
		l.emitAt(tokenComma, ",", start, line, col)
	case '(':
		l.emitAt(tokenLParen, "(", start, line, col)
	case ')':
		l.emitAt(tokenRParen, ")", start, line, col)
	case '#':
		l.emitAt(tokenHash, "#", start, line, col)
	case '&':
		l.emitAt(tokenAmp, "&", start, line, col)
	case '<', '>':
		// <=, >=, <>
		if next, ok := l.peek(); ok && (next == '=' || (r == '<' && next == '>')) {
			l.advance()
		}
		l.emitAt(tokenOperator, l.src[start:l.pos], start, line, col)
	case '=', '+', '-', '*', '/', '^':
		l.emitAt(tokenOperator, l.src[start:l.pos], start, line, col)
	default:
		l.emitAt(tokenIllegal, l.src[start:l.pos], start, line, col)
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
