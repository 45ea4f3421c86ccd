package parser

import (
	"strings"

	"go.lsp.dev/protocol"
)

// Parser builds an error-tolerant syntax tree from BR source. It is
// line oriented: recovery from a malformed statement never consumes
// past the end of the current line, so one bad line cannot poison the
// rest of the document.
type Parser struct {
	isBuiltin func(name string) bool

	toks []Token
	pos  int
	doc  string // pending doc comment text for the next def
}

// NewParser returns a reusable parser. isBuiltin classifies call names
// that are not fn-prefixed; nil means no names are builtins.
func NewParser(isBuiltin func(name string) bool) *Parser {
	if isBuiltin == nil {
		isBuiltin = func(string) bool { return false }
	}
	return &Parser{isBuiltin: isBuiltin}
}

// Parse scans and parses src. It always returns a tree; syntax
// problems surface as ERROR and MISSING nodes.
func (p *Parser) Parse(src string) *Tree {
	p.toks = newLexer(src).run()
	p.pos = 0
	p.doc = ""

	root := &Node{Kind: KindSource}
	for !p.atEOF() {
		if p.cur().Type == tokenEOL {
			p.pos++
			continue
		}
		root.add(p.parseLine())
	}
	if len(root.Children) == 0 {
		root.Range = protocol.Range{}
	}
	return &Tree{Root: root}
}

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) atEOF() bool { return p.cur().Type == tokenEOF }

func (p *Parser) atEOL() bool {
	t := p.cur().Type
	return t == tokenEOL || t == tokenEOF
}

func (p *Parser) next() Token {
	t := p.toks[p.pos]
	if t.Type != tokenEOF {
		p.pos++
	}
	return t
}

func (p *Parser) peekType() TokenType {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1].Type
	}
	return tokenEOF
}

// leaf builds a childless node for one token. Columns count UTF-16
// units; block doc comments may span lines.
func leaf(kind string, t Token) *Node {
	endLine, endCol := t.Line, t.Col
	for _, r := range t.Text {
		switch {
		case r == '\n':
			endLine++
			endCol = 0
		case r > 0xFFFF:
			endCol += 2
		default:
			endCol++
		}
	}
	return &Node{
		Kind: kind,
		Range: protocol.Range{
			Start: protocol.Position{Line: t.Line, Character: t.Col},
			End:   protocol.Position{Line: endLine, Character: endCol},
		},
		StartOff: t.Offset,
		EndOff:   t.Offset + len(t.Text),
		Text:     t.Text,
	}
}

// missing fabricates a zero-width placeholder at the current position.
// expected names the absent syntax for diagnostics.
func (p *Parser) missing(kind, expected string) *Node {
	t := p.cur()
	return &Node{
		Kind: kind,
		Range: protocol.Range{
			Start: protocol.Position{Line: t.Line, Character: t.Col},
			End:   protocol.Position{Line: t.Line, Character: t.Col},
		},
		StartOff: t.Offset,
		EndOff:   t.Offset,
		Text:     expected,
		Missing:  true,
	}
}

// errorToEOL consumes the rest of the line into an ERROR node.
func (p *Parser) errorToEOL() *Node {
	n := &Node{Kind: KindError, Err: true}
	for !p.atEOL() {
		t := p.next()
		n.add(leaf(kindForToken(t), t))
	}
	if len(n.Children) == 0 {
		t := p.cur()
		n.Range = protocol.Range{
			Start: protocol.Position{Line: t.Line, Character: t.Col},
			End:   protocol.Position{Line: t.Line, Character: t.Col},
		}
		n.StartOff, n.EndOff = t.Offset, t.Offset
	}
	return n
}

func kindForToken(t Token) string {
	switch t.Type {
	case tokenNumber:
		return KindNumberLiteral
	case tokenString:
		return KindStringLiteral
	case tokenStringIdent:
		return KindStringIdent
	case tokenIdent:
		return KindNumberIdent
	case tokenKeyword:
		return KindKeyword
	case tokenComment:
		return KindComment
	case tokenDocComment:
		return KindDocComment
	default:
		return KindOperator
	}
}

// parseLine handles one physical line: optional line number, optional
// label, then colon-separated statements.
func (p *Parser) parseLine() *Node {
	line := &Node{Kind: KindLine}

	// leading doc comment lines attach to the following def
	for p.cur().Type == tokenDocComment || p.cur().Type == tokenComment {
		t := p.next()
		if t.Type == tokenDocComment {
			p.doc = t.Text
			line.add(leaf(KindDocComment, t))
		} else {
			line.add(leaf(KindComment, t))
		}
		if p.cur().Type == tokenEOL {
			p.pos++
			if len(line.Children) > 0 && p.cur().Type != tokenDocComment {
				return line
			}
		}
	}

	if p.cur().Type == tokenNumber && p.cur().Col == 0 {
		line.add(leaf(KindLineNumber, p.next()))
	}

	// NAME: at statement start is a label, unless what follows the
	// colon makes this look like an io statement (#handle usage).
	if (p.cur().Type == tokenIdent || p.cur().Type == tokenStringIdent) &&
		p.peekType() == tokenColon {
		line.add(leaf(KindLabel, p.next()))
		p.next() // colon, excluded from the label range
	}

	for !p.atEOL() {
		if p.cur().Type == tokenComment || p.cur().Type == tokenDocComment {
			line.add(leaf(kindForToken(p.next()), p.toks[p.pos-1]))
			continue
		}
		line.add(p.parseStatement())
		if p.cur().Type == tokenColon {
			p.next() // statement separator
		}
	}
	if p.cur().Type == tokenEOL {
		p.pos++
	}
	return line
}

func (p *Parser) parseStatement() *Node {
	t := p.cur()
	if t.Type == tokenKeyword {
		switch lower(t.Text) {
		case "def":
			return p.parseDef()
		case "fnend":
			n := &Node{Kind: KindFnendStatement}
			n.add(leaf(KindKeyword, p.next()))
			return n
		case "end":
			return p.parseEnd()
		case "library":
			return p.parseLibrary()
		case "dim":
			return p.parseDim()
		case "let":
			p.next()
			return p.parseAssignment(leaf(KindKeyword, t))
		case "goto", "gosub":
			return p.parseGoto(lower(t.Text))
		case "on":
			return p.parseOn()
		case "for":
			return p.parseFor()
		case "next":
			return p.parseNext()
		case "if":
			return p.parseIf()
		case "input", "linput", "rinput":
			return p.parseInput()
		case "print":
			return p.parsePrint()
		case "open", "close", "read", "write", "rewrite", "reread",
			"restore", "delete":
			return p.parseIO()
		default:
			return p.parseGeneric()
		}
	}
	// NAME = expr or NAME(i) = expr is an implicit let
	if t.Type == tokenIdent || t.Type == tokenStringIdent {
		if p.looksLikeAssignment() {
			return p.parseAssignment(nil)
		}
	}
	return p.parseGeneric()
}

// looksLikeAssignment scans ahead for `=` before any comparison use,
// from a statement that begins with an identifier.
func (p *Parser) looksLikeAssignment() bool {
	i := p.pos + 1
	// skip a parenthesized subscript
	if i < len(p.toks) && p.toks[i].Type == tokenLParen {
		depth := 1
		i++
		for i < len(p.toks) && depth > 0 {
			switch p.toks[i].Type {
			case tokenLParen:
				depth++
			case tokenRParen:
				depth--
			case tokenEOL, tokenEOF:
				return false
			}
			i++
		}
	}
	return i < len(p.toks) && p.toks[i].Type == tokenOperator && p.toks[i].Text == "="
}

// parseDef handles both block and inline definitions:
//
//	def fnTotal(a, b; c)         block, closed by fnend / end def
//	def fnDouble(x) = x * 2      inline, self contained
func (p *Parser) parseDef() *Node {
	n := &Node{Kind: KindDefStatement}
	n.add(leaf(KindKeyword, p.next()))
	if p.doc != "" {
		n.add(&Node{Kind: KindDocComment, Text: p.doc, Range: n.Range, StartOff: n.StartOff, EndOff: n.StartOff})
		p.doc = ""
	}

	if p.cur().Type != tokenIdent && p.cur().Type != tokenStringIdent {
		n.add(p.missing(KindFunctionName, "function name"))
		n.add(p.errorToEOL())
		return n
	}
	nameTok := p.next()
	name := leaf(KindFunctionName, nameTok)
	n.add(name)
	if !strings.HasPrefix(lower(nameTok.Text), "fn") {
		name.Err = true
	}

	if p.cur().Type == tokenLParen {
		n.add(p.parseParameterList())
	}

	// inline body
	if p.cur().Type == tokenOperator && p.cur().Text == "=" {
		n.add(leaf(KindOperator, p.next()))
		p.parseExprUntil(n, nil)
	}
	return n
}

func (p *Parser) parseParameterList() *Node {
	list := &Node{Kind: KindParameterList}
	list.add(leaf(KindOperator, p.next())) // (
	for !p.atEOL() && p.cur().Type != tokenRParen {
		switch p.cur().Type {
		case tokenSemicolon, tokenComma:
			list.add(leaf(KindOperator, p.next()))
		default:
			list.add(p.parseParameter())
		}
	}
	if p.cur().Type == tokenRParen {
		list.add(leaf(KindOperator, p.next()))
	} else {
		list.add(p.missing(KindOperator, ")"))
	}
	return list
}

// parseParameter scans one parameter: [&] [mat] name[$] [*len]
func (p *Parser) parseParameter() *Node {
	param := &Node{Kind: KindParameter}
	if p.cur().Type == tokenAmp {
		param.add(leaf(KindOperator, p.next()))
	}
	if p.cur().Type == tokenKeyword && lower(p.cur().Text) == "mat" {
		param.add(leaf(KindKeyword, p.next()))
	}
	switch p.cur().Type {
	case tokenIdent:
		param.add(leaf(KindNumberIdent, p.next()))
	case tokenStringIdent:
		param.add(leaf(KindStringIdent, p.next()))
	default:
		param.add(p.missing(KindNumberIdent, "parameter name"))
		if !p.atEOL() && p.cur().Type != tokenRParen &&
			p.cur().Type != tokenComma && p.cur().Type != tokenSemicolon {
			param.Err = true
			param.add(leaf(kindForToken(p.next()), p.toks[p.pos-1]))
		}
		return param
	}
	// length spec: name$*20
	if p.cur().Type == tokenOperator && p.cur().Text == "*" {
		param.add(leaf(KindOperator, p.next()))
		if p.cur().Type == tokenNumber {
			param.add(leaf(KindNumberLiteral, p.next()))
		} else {
			param.add(p.missing(KindNumberLiteral, "length"))
		}
	}
	return param
}

func (p *Parser) parseEnd() *Node {
	endTok := p.next()
	if p.cur().Type == tokenKeyword && lower(p.cur().Text) == "def" {
		n := &Node{Kind: KindEndDefStatement}
		n.add(leaf(KindKeyword, endTok))
		n.add(leaf(KindKeyword, p.next()))
		return n
	}
	n := &Node{Kind: KindExprStatement}
	n.add(leaf(KindKeyword, endTok))
	return n
}

// parseLibrary handles `library "path": fnA, fnB$`.
func (p *Parser) parseLibrary() *Node {
	n := &Node{Kind: KindLibraryStmt}
	n.add(leaf(KindKeyword, p.next()))
	if p.cur().Type == tokenString {
		n.add(leaf(KindStringLiteral, p.next()))
	} else {
		n.add(p.missing(KindStringLiteral, "library path"))
	}
	if p.cur().Type == tokenColon {
		n.add(leaf(KindOperator, p.next()))
	} else {
		n.add(p.missing(KindOperator, ":"))
		if !p.atEOL() {
			n.add(p.errorToEOL())
		}
		return n
	}
	for !p.atEOL() {
		switch p.cur().Type {
		case tokenIdent:
			n.add(leaf(KindFunctionName, p.next()))
		case tokenStringIdent:
			n.add(leaf(KindFunctionName, p.next()))
		case tokenComma:
			n.add(leaf(KindOperator, p.next()))
		default:
			n.add(p.errorToEOL())
			return n
		}
	}
	return n
}

func (p *Parser) parseDim() *Node {
	n := &Node{Kind: KindDimStatement}
	n.add(leaf(KindKeyword, p.next()))
	for !p.atEOL() && p.cur().Type != tokenColon {
		switch p.cur().Type {
		case tokenIdent, tokenStringIdent:
			n.add(p.parsePrimary())
		case tokenComma:
			n.add(leaf(KindOperator, p.next()))
		case tokenOperator, tokenNumber:
			n.add(leaf(kindForToken(p.next()), p.toks[p.pos-1]))
		default:
			n.add(p.errorToEOL())
			return n
		}
	}
	return n
}

// parseAssignment parses `target = expr` with an already-consumed
// optional LET keyword.
func (p *Parser) parseAssignment(letKw *Node) *Node {
	n := &Node{Kind: KindLetStatement}
	if letKw != nil {
		n.add(letKw)
	}
	switch p.cur().Type {
	case tokenIdent, tokenStringIdent:
		n.add(p.parsePrimary())
	default:
		n.add(p.missing(KindNumberIdent, "assignment target"))
		n.add(p.errorToEOL())
		return n
	}
	if p.cur().Type == tokenOperator && p.cur().Text == "=" {
		n.add(leaf(KindOperator, p.next()))
	} else {
		n.add(p.missing(KindOperator, "="))
	}
	p.parseExprUntil(n, nil)
	return n
}

func (p *Parser) parseGoto(kw string) *Node {
	kind := KindGotoStatement
	if kw == "gosub" {
		kind = KindGosubStatement
	}
	n := &Node{Kind: kind}
	n.add(leaf(KindKeyword, p.next()))
	p.parseJumpTarget(n)
	return n
}

func (p *Parser) parseJumpTarget(n *Node) {
	switch p.cur().Type {
	case tokenNumber:
		n.add(leaf(KindLineReference, p.next()))
	case tokenIdent, tokenStringIdent:
		n.add(leaf(KindLabelReference, p.next()))
	default:
		n.add(p.missing(KindLabelReference, "jump target"))
	}
}

// parseOn handles `on expr goto t1, t2, ...` and the gosub form.
func (p *Parser) parseOn() *Node {
	n := &Node{Kind: KindGotoStatement}
	n.add(leaf(KindKeyword, p.next()))
	p.parseExprUntil(n, func(t Token) bool {
		return t.Type == tokenKeyword && (lower(t.Text) == "goto" || lower(t.Text) == "gosub")
	})
	if p.cur().Type == tokenKeyword {
		if lower(p.cur().Text) == "gosub" {
			n.Kind = KindGosubStatement
		}
		n.add(leaf(KindKeyword, p.next()))
		for !p.atEOL() {
			p.parseJumpTarget(n)
			if p.cur().Type == tokenComma {
				n.add(leaf(KindOperator, p.next()))
				continue
			}
			break
		}
	} else {
		n.add(p.missing(KindKeyword, "goto"))
	}
	return n
}

func (p *Parser) parseFor() *Node {
	n := &Node{Kind: KindForStatement}
	n.add(leaf(KindKeyword, p.next()))
	switch p.cur().Type {
	case tokenIdent:
		n.add(leaf(KindNumberIdent, p.next()))
	case tokenStringIdent:
		n.add(leaf(KindStringIdent, p.next()))
	default:
		n.add(p.missing(KindNumberIdent, "loop variable"))
	}
	if p.cur().Type == tokenOperator && p.cur().Text == "=" {
		n.add(leaf(KindOperator, p.next()))
	} else {
		n.add(p.missing(KindOperator, "="))
	}
	p.parseExprUntil(n, nil)
	return n
}

func (p *Parser) parseNext() *Node {
	n := &Node{Kind: KindNextStatement}
	n.add(leaf(KindKeyword, p.next()))
	if p.cur().Type == tokenIdent || p.cur().Type == tokenStringIdent {
		n.add(p.parsePrimary())
	}
	return n
}

// parseIf handles `if cond then stmt-or-target [else stmt-or-target]`.
// A bare number after then/else is a line reference.
func (p *Parser) parseIf() *Node {
	n := &Node{Kind: KindIfStatement}
	n.add(leaf(KindKeyword, p.next()))
	p.parseExprUntil(n, func(t Token) bool {
		return t.Type == tokenKeyword && lower(t.Text) == "then"
	})
	if p.cur().Type == tokenKeyword && lower(p.cur().Text) == "then" {
		n.add(leaf(KindKeyword, p.next()))
	} else {
		n.add(p.missing(KindKeyword, "then"))
		if !p.atEOL() {
			n.add(p.errorToEOL())
		}
		return n
	}
	p.parseIfBranch(n)
	if p.cur().Type == tokenKeyword && lower(p.cur().Text) == "else" {
		n.add(leaf(KindKeyword, p.next()))
		p.parseIfBranch(n)
	}
	return n
}

func (p *Parser) parseIfBranch(n *Node) {
	if p.atEOL() {
		return
	}
	if p.cur().Type == tokenNumber {
		n.add(leaf(KindLineReference, p.next()))
		return
	}
	if p.cur().Type == tokenKeyword && lower(p.cur().Text) == "else" {
		return
	}
	n.add(p.parseStatement())
}

// parseInput covers input, linput and rinput. Identifier operands are
// write targets.
func (p *Parser) parseInput() *Node {
	n := &Node{Kind: KindInputStatement}
	n.add(leaf(KindKeyword, p.next()))
	p.parseFileClause(n)
	for !p.atEOL() && p.cur().Type != tokenColon {
		switch p.cur().Type {
		case tokenIdent, tokenStringIdent:
			n.add(p.parsePrimary())
		case tokenComma, tokenSemicolon:
			n.add(leaf(KindOperator, p.next()))
		case tokenString:
			n.add(leaf(KindStringLiteral, p.next()))
		case tokenKeyword:
			n.add(leaf(KindKeyword, p.next()))
		default:
			n.add(leaf(kindForToken(p.next()), p.toks[p.pos-1]))
		}
	}
	return n
}

func (p *Parser) parsePrint() *Node {
	n := &Node{Kind: KindPrintStatement}
	n.add(leaf(KindKeyword, p.next()))
	p.parseFileClause(n)
	p.parseExprUntil(n, nil)
	return n
}

// parseIO covers record io statements. Identifiers listed after the
// colon in read-class statements are write targets; the index package
// decides that by statement keyword.
func (p *Parser) parseIO() *Node {
	n := &Node{Kind: KindIOStatement}
	n.add(leaf(KindKeyword, p.next()))
	p.parseFileClause(n)
	for !p.atEOL() {
		switch p.cur().Type {
		case tokenIdent, tokenStringIdent:
			n.add(p.parsePrimary())
		case tokenColon:
			n.add(leaf(KindOperator, p.next()))
		case tokenComma, tokenSemicolon:
			n.add(leaf(KindOperator, p.next()))
		case tokenString:
			n.add(leaf(KindStringLiteral, p.next()))
		case tokenNumber:
			n.add(leaf(KindNumberLiteral, p.next()))
		case tokenKeyword:
			n.add(leaf(KindKeyword, p.next()))
		case tokenOperator, tokenLParen, tokenRParen, tokenHash, tokenAmp:
			n.add(leaf(KindOperator, p.next()))
		default:
			n.add(p.errorToEOL())
			return n
		}
	}
	return n
}

// parseFileClause consumes `#expr,` or `#expr:` file handle prefixes.
func (p *Parser) parseFileClause(n *Node) {
	if p.cur().Type != tokenHash {
		return
	}
	n.add(leaf(KindOperator, p.next()))
	for !p.atEOL() && p.cur().Type != tokenComma && p.cur().Type != tokenColon {
		switch p.cur().Type {
		case tokenNumber:
			n.add(leaf(KindNumberLiteral, p.next()))
		case tokenIdent, tokenStringIdent:
			n.add(p.parsePrimary())
		default:
			return
		}
	}
	if p.cur().Type == tokenComma {
		n.add(leaf(KindOperator, p.next()))
	}
}

// parseGeneric is the fallback for statements with no dedicated
// handling. It still classifies identifier uses and calls so that
// references resolve inside unmodeled statements.
func (p *Parser) parseGeneric() *Node {
	n := &Node{Kind: KindExprStatement}
	if p.cur().Type == tokenKeyword {
		n.add(leaf(KindKeyword, p.next()))
	}
	p.parseExprUntil(n, nil)
	if len(n.Children) == 0 {
		// nothing recognizable, swallow one token as an error
		n.Err = true
		n.add(leaf(kindForToken(p.next()), p.toks[p.pos-1]))
	}
	return n
}

// parseExprUntil consumes expression tokens until end of line, a colon
// separator, or the stop predicate matches.
func (p *Parser) parseExprUntil(n *Node, stop func(Token) bool) {
	for !p.atEOL() && p.cur().Type != tokenColon {
		if stop != nil && stop(p.cur()) {
			return
		}
		switch p.cur().Type {
		case tokenIdent, tokenStringIdent:
			n.add(p.parsePrimary())
		case tokenKeyword:
			n.add(leaf(KindKeyword, p.next()))
		case tokenNumber:
			n.add(leaf(KindNumberLiteral, p.next()))
		case tokenString:
			n.add(leaf(KindStringLiteral, p.next()))
		case tokenLParen, tokenRParen, tokenOperator, tokenComma,
			tokenSemicolon, tokenHash, tokenAmp:
			n.add(leaf(KindOperator, p.next()))
		case tokenComment, tokenDocComment:
			n.add(leaf(kindForToken(p.next()), p.toks[p.pos-1]))
		default:
			n.add(p.errorToEOL())
			return
		}
	}
}

// parsePrimary classifies an identifier occurrence: a call when a
// parenthesized argument list follows (user function for fn-prefixed
// names, system function for known builtins, array element otherwise),
// a plain identifier when not.
func (p *Parser) parsePrimary() *Node {
	t := p.next()
	isString := t.Type == tokenStringIdent
	if p.cur().Type != tokenLParen {
		if strings.HasPrefix(lower(t.Text), "fn") && len(t.Text) > 2 {
			// bare fn reference, e.g. a library import list entry
			return p.callNode(t, isString, nil)
		}
		if isString {
			return leaf(KindStringIdent, t)
		}
		return leaf(KindNumberIdent, t)
	}
	args := p.parseArgumentList()
	return p.callNode(t, isString, args)
}

func (p *Parser) callNode(t Token, isString bool, args *Node) *Node {
	name := lower(t.Text)
	var kind string
	switch {
	case strings.HasPrefix(name, "fn") && len(name) > 2:
		if isString {
			kind = KindStringUserFn
		} else {
			kind = KindNumericUserFn
		}
	case p.isBuiltin(name) || (isString && p.isBuiltin(name+"$")):
		if isString {
			kind = KindStringSysFn
		} else {
			kind = KindNumericSysFn
		}
	default:
		if args == nil {
			if isString {
				return leaf(KindStringIdent, t)
			}
			return leaf(KindNumberIdent, t)
		}
		kind = KindElementRef
	}
	n := &Node{Kind: kind}
	n.add(leaf(KindFunctionName, t))
	if kind == KindElementRef {
		// the name child of an element reference is the identifier
		n.Children[0].Kind = KindNumberIdent
		if isString {
			n.Children[0].Kind = KindStringIdent
		}
	}
	if args != nil {
		n.add(args)
	}
	return n
}

func (p *Parser) parseArgumentList() *Node {
	list := &Node{Kind: KindArgumentList}
	list.add(leaf(KindOperator, p.next())) // (
	depth := 1
	for !p.atEOL() && depth > 0 {
		switch p.cur().Type {
		case tokenLParen:
			depth++
			list.add(leaf(KindOperator, p.next()))
		case tokenRParen:
			depth--
			list.add(leaf(KindOperator, p.next()))
		case tokenIdent, tokenStringIdent:
			list.add(p.parsePrimary())
		case tokenNumber:
			list.add(leaf(KindNumberLiteral, p.next()))
		case tokenString:
			list.add(leaf(KindStringLiteral, p.next()))
		case tokenKeyword:
			list.add(leaf(KindKeyword, p.next()))
		case tokenComma, tokenSemicolon, tokenOperator, tokenAmp, tokenHash:
			list.add(leaf(KindOperator, p.next()))
		default:
			list.add(leaf(kindForToken(p.next()), p.toks[p.pos-1]))
		}
	}
	if depth > 0 {
		list.add(p.missing(KindOperator, ")"))
	}
	return list
}
