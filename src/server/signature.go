package server

import (
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"br-analyzer/src/builtins"
	"br-analyzer/src/index"
	"br-analyzer/src/parser"
)

// SignatureHelpAt describes the call surrounding pos: the callee's
// signatures and which parameter the cursor sits on.
func (e *Engine) SignatureHelpAt(u uri.URI, pos protocol.Position) *protocol.SignatureHelp {
	idx, ok := e.indexFor(u)
	if !ok || idx.Tree == nil {
		return nil
	}
	node := idx.Tree.NodeAt(pos)
	if node == nil {
		return nil
	}
	call := enclosingCall(node)
	if call == nil {
		return nil
	}
	nameNode := call.ChildOfKind(parser.KindFunctionName)
	if nameNode == nil {
		return nil
	}
	active := activeParameter(call, pos)

	switch call.Kind {
	case parser.KindNumericSysFn, parser.KindStringSysFn:
		sigs := builtins.Lookup(nameNode.Text)
		if len(sigs) == 0 {
			return nil
		}
		help := &protocol.SignatureHelp{ActiveParameter: active}
		for _, sig := range sigs {
			info := protocol.SignatureInformation{
				Label:         sig.Label(),
				Documentation: sig.Doc,
			}
			for _, p := range sig.Params {
				info.Parameters = append(info.Parameters, protocol.ParameterInformation{Label: p.Name})
			}
			help.Signatures = append(help.Signatures, info)
		}
		// prefer the overload that still has room for the cursor
		for i, sig := range sigs {
			if int(active) < len(sig.Params) {
				help.ActiveSignature = uint32(i)
				break
			}
		}
		return help
	case parser.KindNumericUserFn, parser.KindStringUserFn:
		fn := e.lookupUserFunction(idx, nameNode.Text)
		if fn == nil {
			return nil
		}
		info := protocol.SignatureInformation{
			Label:         "def " + fn.Label(),
			Documentation: fn.Doc,
		}
		for _, p := range fn.VisibleParams() {
			pi := protocol.ParameterInformation{Label: p.Name}
			if p.Doc != "" {
				pi.Documentation = p.Doc
			}
			info.Parameters = append(info.Parameters, pi)
		}
		return &protocol.SignatureHelp{
			Signatures:      []protocol.SignatureInformation{info},
			ActiveParameter: active,
		}
	}
	return nil
}

func (e *Engine) lookupUserFunction(idx *index.DocumentIndex, name string) *index.SymbolEntry {
	key := strings.ToLower(name)
	if fn, ok := idx.Functions[key]; ok {
		return fn
	}
	if defs := e.ws.LookupFunction(key); len(defs) > 0 {
		return defs[0]
	}
	return nil
}

// enclosingCall walks up from a node to the innermost call whose
// argument list is under construction.
func enclosingCall(n *parser.Node) *parser.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		switch cur.Kind {
		case parser.KindNumericUserFn, parser.KindStringUserFn,
			parser.KindNumericSysFn, parser.KindStringSysFn:
			return cur
		}
	}
	return nil
}

// activeParameter counts top-level separators before pos inside the
// call's argument list.
func activeParameter(call *parser.Node, pos protocol.Position) uint32 {
	args := call.ChildOfKind(parser.KindArgumentList)
	if args == nil {
		return 0
	}
	var active uint32
	depth := 0
	for _, c := range args.Children {
		if c.Kind != parser.KindOperator {
			continue
		}
		if !beforePos(c.Range.Start, pos) {
			break
		}
		switch c.Text {
		case "(":
			depth++
		case ")":
			depth--
		case ",", ";":
			if depth == 1 {
				active++
			}
		}
	}
	return active
}

func beforePos(a, b protocol.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Character < b.Character
}
