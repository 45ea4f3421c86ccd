package server

import (
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"br-analyzer/src/index"
	"br-analyzer/src/parser"
)

// TokenTypes is the semantic token legend, indexed by the type ids
// emitted in the token data.
var TokenTypes = []string{
	"keyword",
	"function",
	"variable",
	"parameter",
	"string",
	"number",
	"comment",
	"operator",
	"label",
}

const (
	tokKeyword uint32 = iota
	tokFunction
	tokVariable
	tokParameter
	tokString
	tokNumber
	tokComment
	tokOperator
	tokLabel
)

// TokenModifiers is the modifier legend; positions are bit indices in
// the modifier bitset.
var TokenModifiers = []string{
	"declaration",
	"defaultLibrary",
	"definition",
	"controlFlow",
}

const (
	modDeclaration uint32 = 1 << iota
	modDefaultLibrary
	modDefinition
	modControlFlow
)

// SemanticTokens produces delta-encoded token data for a document,
// five values per token as the protocol prescribes. Identifiers are
// classified through the symbol index where it resolves them; the
// syntactic node kind is the fallback.
func (e *Engine) SemanticTokens(u uri.URI) *protocol.SemanticTokens {
	idx, ok := e.indexFor(u)
	if !ok || idx.Tree == nil || idx.Tree.Root == nil {
		return nil
	}

	type tok struct {
		line, start, length, typ, mod uint32
	}
	var toks []tok
	idx.Tree.Root.Walk(func(n *parser.Node) bool {
		if n.Missing || len(n.Children) > 0 {
			return true
		}
		typ, mod, ok := classifyToken(idx, n)
		if !ok {
			return true
		}
		length := n.Range.End.Character - n.Range.Start.Character
		if length == 0 || n.Range.Start.Line != n.Range.End.Line {
			// multi-line leaves (block doc comments) are skipped
			return true
		}
		toks = append(toks, tok{
			line:   n.Range.Start.Line,
			start:  n.Range.Start.Character,
			length: length,
			typ:    typ,
			mod:    mod,
		})
		return true
	})

	data := make([]uint32, 0, len(toks)*5)
	var prevLine, prevStart uint32
	for _, t := range toks {
		deltaLine := t.line - prevLine
		deltaStart := t.start
		if deltaLine == 0 {
			deltaStart = t.start - prevStart
		}
		data = append(data, deltaLine, deltaStart, t.length, t.typ, t.mod)
		prevLine, prevStart = t.line, t.start
	}
	return &protocol.SemanticTokens{Data: data}
}

func classifyToken(idx *index.DocumentIndex, n *parser.Node) (uint32, uint32, bool) {
	switch n.Kind {
	case parser.KindKeyword:
		switch strings.ToLower(n.Text) {
		case "goto", "gosub", "return":
			return tokKeyword, modControlFlow, true
		}
		return tokKeyword, 0, true
	case parser.KindFunctionName:
		mod := uint32(0)
		if n.Parent != nil {
			switch n.Parent.Kind {
			case parser.KindDefStatement:
				mod = modDeclaration
			case parser.KindNumericSysFn, parser.KindStringSysFn:
				mod = modDefaultLibrary
			}
		}
		return tokFunction, mod, true
	case parser.KindNumberIdent, parser.KindStringIdent:
		if n.Parent != nil && n.Parent.Kind == parser.KindParameter {
			return tokParameter, modDeclaration, true
		}
		if resolvesToParam(idx, n) {
			return tokParameter, 0, true
		}
		if n.NamedAncestor(parser.KindDimStatement) != nil {
			return tokVariable, modDeclaration, true
		}
		return tokVariable, 0, true
	case parser.KindStringLiteral:
		return tokString, 0, true
	case parser.KindNumberLiteral, parser.KindLineNumber, parser.KindLineReference:
		return tokNumber, 0, true
	case parser.KindComment, parser.KindDocComment:
		return tokComment, 0, true
	case parser.KindOperator:
		return tokOperator, 0, true
	case parser.KindLabel:
		return tokLabel, modDefinition, true
	case parser.KindLabelReference:
		return tokLabel, 0, true
	default:
		return 0, 0, false
	}
}

// resolvesToParam reports whether an identifier occurrence resolves
// to a parameter of the enclosing function scope.
func resolvesToParam(idx *index.DocumentIndex, n *parser.Node) bool {
	key := strings.ToLower(n.Text)
	scope := idx.ScopeAt(n.Range.Start)
	v := idx.Variable(idx.ResolveVariable(scope, key), key)
	return v != nil && v.FromParam
}
