package server

import (
	"sort"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"br-analyzer/src/index"
)

// ListDocumentSymbols returns the outline of one document: functions
// with their parameters, labels, and global variables.
func (e *Engine) ListDocumentSymbols(u uri.URI) []protocol.DocumentSymbol {
	idx, ok := e.indexFor(u)
	if !ok {
		return nil
	}
	var out []protocol.DocumentSymbol
	for _, fn := range idx.Functions {
		sym := protocol.DocumentSymbol{
			Name:           fn.Name,
			Detail:         fn.Label(),
			Kind:           protocol.SymbolKindFunction,
			Range:          scopeRange(idx, fn),
			SelectionRange: fn.SelectionRange,
		}
		for _, p := range fn.Params {
			sym.Children = append(sym.Children, protocol.DocumentSymbol{
				Name:           p.Name,
				Detail:         p.Kind.String(),
				Kind:           protocol.SymbolKindVariable,
				Range:          fn.SelectionRange,
				SelectionRange: fn.SelectionRange,
			})
		}
		out = append(out, sym)
	}
	for _, l := range idx.Labels {
		out = append(out, protocol.DocumentSymbol{
			Name:           l.Name,
			Kind:           protocol.SymbolKindKey,
			Range:          l.Range,
			SelectionRange: l.SelectionRange,
		})
	}
	for _, v := range idx.Variables {
		if v.ScopeID != index.GlobalScopeID {
			continue
		}
		out = append(out, protocol.DocumentSymbol{
			Name:           v.Name,
			Detail:         v.VarKind.String(),
			Kind:           protocol.SymbolKindVariable,
			Range:          v.Range,
			SelectionRange: v.SelectionRange,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Range.Start, out[j].Range.Start
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Character < b.Character
	})
	return out
}

// scopeRange widens a block function's range to cover its body.
func scopeRange(idx *index.DocumentIndex, fn *index.SymbolEntry) protocol.Range {
	if fn.ScopeID > 0 && fn.ScopeID < len(idx.Scopes) {
		return idx.Scopes[fn.ScopeID].Range
	}
	return fn.Range
}

// ListWorkspaceSymbols returns every function definition in the
// workspace whose name starts with query, case insensitively.
func (e *Engine) ListWorkspaceSymbols(query string) []protocol.SymbolInformation {
	var out []protocol.SymbolInformation
	for _, fn := range e.ws.Functions(query) {
		out = append(out, protocol.SymbolInformation{
			Name: fn.Name,
			Kind: protocol.SymbolKindFunction,
			Location: protocol.Location{
				URI:   fn.URI,
				Range: fn.SelectionRange,
			},
		})
	}
	return out
}
