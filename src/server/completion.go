package server

import (
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"br-analyzer/src/builtins"
	"br-analyzer/src/documents"
	"br-analyzer/src/index"
)

// statement keywords offered at completion time
var completionKeywords = []string{
	"chain", "close", "def", "dim", "do", "else", "end", "execute",
	"fnend", "for", "form", "gosub", "goto", "if", "input", "let",
	"library", "linput", "loop", "mat", "next", "on", "open", "pause",
	"print", "read", "restore", "return", "rewrite", "rinput", "stop",
	"then", "while", "write",
}

// CompletionAt offers keywords, system functions, user functions and
// in-scope variables matching the identifier prefix under pos.
func (e *Engine) CompletionAt(u uri.URI, pos protocol.Position) []protocol.CompletionItem {
	idx, ok := e.indexFor(u)
	if !ok {
		return nil
	}
	prefix := completionPrefix(e, u, pos)
	lowPrefix := strings.ToLower(prefix)

	var items []protocol.CompletionItem
	seen := make(map[string]bool)
	add := func(item protocol.CompletionItem) {
		key := strings.ToLower(item.Label)
		if seen[key] {
			return
		}
		if lowPrefix != "" && !strings.HasPrefix(key, lowPrefix) {
			return
		}
		seen[key] = true
		items = append(items, item)
	}

	for _, kw := range completionKeywords {
		add(protocol.CompletionItem{
			Label: kw,
			Kind:  protocol.CompletionItemKindKeyword,
		})
	}
	for _, sig := range builtins.All() {
		add(protocol.CompletionItem{
			Label:         sig.Name,
			Kind:          protocol.CompletionItemKindFunction,
			Detail:        sig.Label(),
			Documentation: sig.Doc,
		})
	}
	for _, fn := range e.ws.Functions("") {
		add(protocol.CompletionItem{
			Label:         fn.Name,
			Kind:          protocol.CompletionItemKindFunction,
			Detail:        fn.Label(),
			Documentation: fn.Doc,
		})
	}
	for _, imp := range idx.Imports {
		add(protocol.CompletionItem{
			Label:  imp.Name,
			Kind:   protocol.CompletionItemKindFunction,
			Detail: "library " + imp.LibraryPath,
		})
	}

	scope := idx.ScopeAt(pos)
	for _, v := range idx.Variables {
		if v.ScopeID != index.GlobalScopeID && v.ScopeID != scope.ID {
			continue
		}
		add(protocol.CompletionItem{
			Label:  v.Name,
			Kind:   protocol.CompletionItemKindVariable,
			Detail: v.VarKind.String(),
		})
	}
	for _, l := range idx.Labels {
		add(protocol.CompletionItem{
			Label: l.Name,
			Kind:  protocol.CompletionItemKindReference,
		})
	}
	return items
}

// completionPrefix extracts the partial identifier just before pos.
func completionPrefix(e *Engine, u uri.URI, pos protocol.Position) string {
	doc, ok := e.store.Get(u)
	if !ok {
		return ""
	}
	line := documents.LineText(doc.Text, pos.Line)
	end := int(pos.Character)
	if end > len(line) {
		end = len(line)
	}
	start := end
	for start > 0 {
		c := line[start-1]
		if c == '_' || c == '$' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') {
			start--
			continue
		}
		break
	}
	return line[start:end]
}
