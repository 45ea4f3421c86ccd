package parser

// TokenType identifies the lexical class of a token.
type TokenType int

const (
	tokenEOF TokenType = iota
	tokenEOL
	tokenNumber
	tokenString
	tokenIdent       // numeric identifier: X, Count2
	tokenStringIdent // string identifier: X$, Name$
	tokenKeyword
	tokenComment
	tokenDocComment
	tokenColon
	tokenSemicolon
	tokenComma
	tokenLParen
	tokenRParen
	tokenHash
	tokenAmp
	tokenOperator // + - * / ^ = < > <= >= <> etc.
	tokenIllegal
)

// Token is a lexical token with its source position.
type Token struct {
	Type   TokenType
	Text   string
	Line   uint32 // 0-based
	Col    uint32 // 0-based, in UTF-16 code units
	Offset int    // byte offset into the decoded text
}

// BR keywords, lowercased. Identifier/keyword matching in BR is
// case-insensitive throughout.
var keywords = map[string]bool{
	"let": true, "def": true, "fnend": true, "library": true, "dim": true,
	"goto": true, "gosub": true, "return": true, "if": true, "then": true,
	"else": true, "end": true, "for": true, "to": true, "step": true,
	"next": true, "do": true, "loop": true, "while": true, "until": true,
	"exit": true, "on": true, "print": true, "input": true, "linput": true,
	"rinput": true, "open": true, "close": true, "read": true, "write": true,
	"rewrite": true, "reread": true, "restore": true, "delete": true,
	"data": true, "form": true, "using": true, "mat": true, "chain": true,
	"execute": true, "pause": true, "stop": true, "retry": true,
	"continue": true, "randomize": true, "trace": true, "fields": true,
	"select": true, "wait": true, "error": true, "not": true, "and": true,
	"or": true, "rem": true,
}

// IsKeyword reports whether name is a reserved BR keyword
func IsKeyword(name string) bool {
	return keywords[lower(name)]
}

func lower(s string) string {
	b := []byte(s)
	changed := false
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(b)
}
