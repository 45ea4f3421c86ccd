package server

import (
	"fmt"
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"br-analyzer/src/builtins"
	"br-analyzer/src/index"
	"br-analyzer/src/parser"
)

// HoverAt renders a markdown card for the symbol under pos, or nil
// when nothing hoverable is there.
func (e *Engine) HoverAt(u uri.URI, pos protocol.Position) *protocol.Hover {
	idx, ok := e.indexFor(u)
	if !ok {
		return nil
	}
	if entry, ref := e.resolver.LookupSymbol(u, pos); entry != nil {
		return &protocol.Hover{
			Contents: protocol.MarkupContent{
				Kind:  protocol.Markdown,
				Value: renderEntry(entry),
			},
			Range: &ref.Range,
		}
	}
	// builtins have no symbol entry; read the name from the tree
	if idx.Tree == nil {
		return nil
	}
	node := idx.Tree.NodeAt(pos)
	if node == nil || node.Kind != parser.KindFunctionName || node.Parent == nil {
		return nil
	}
	switch node.Parent.Kind {
	case parser.KindNumericSysFn, parser.KindStringSysFn:
	default:
		return nil
	}
	sigs := builtins.Lookup(node.Text)
	if len(sigs) == 0 {
		return nil
	}
	var b strings.Builder
	for i, sig := range sigs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "```br\n%s\n```", sig.Label())
		if sig.Doc != "" {
			b.WriteString("\n\n")
			b.WriteString(sig.Doc)
		}
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: b.String(),
		},
		Range: &node.Range,
	}
}

func renderEntry(entry *index.SymbolEntry) string {
	var b strings.Builder
	switch entry.Kind {
	case index.SymbolFunction:
		fmt.Fprintf(&b, "```br\ndef %s\n```", entry.Label())
		if entry.Doc != "" {
			b.WriteString("\n\n")
			b.WriteString(entry.Doc)
		}
		for _, p := range entry.VisibleParams() {
			if p.Doc == "" {
				continue
			}
			fmt.Fprintf(&b, "\n\n*@param* `%s` %s", p.Name, p.Doc)
		}
		if entry.ReturnDoc != "" {
			fmt.Fprintf(&b, "\n\n*@returns* %s", entry.ReturnDoc)
		}
	case index.SymbolImport:
		fmt.Fprintf(&b, "```br\nlibrary \"%s\": %s\n```", entry.LibraryPath, entry.Name)
	case index.SymbolVariable:
		fmt.Fprintf(&b, "```br\n%s\n```\n\n%s variable", entry.Name, entry.VarKind)
	case index.SymbolLabel:
		fmt.Fprintf(&b, "```br\n%s:\n```\n\nlabel", entry.Name)
	case index.SymbolLineNumber:
		fmt.Fprintf(&b, "```br\n%s\n```\n\nline number", entry.Name)
	}
	return b.String()
}
