// Package analysis answers scope-aware queries over indexed
// documents: reference listing, definition lookup and symbol rename.
package analysis

import (
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"br-analyzer/src/index"
	"br-analyzer/src/workspace"
)

// Resolver resolves symbol queries against the workspace index.
type Resolver struct {
	ws *workspace.Indexer
}

// NewResolver creates a resolver over the given workspace.
func NewResolver(ws *workspace.Indexer) *Resolver {
	return &Resolver{ws: ws}
}

// ReferenceAt locates the indexed reference under a position. The end
// boundary of a reference counts as inside it, so a cursor sitting
// just past the last character still resolves; when two references
// touch, the one starting earlier wins, which keeps a function-local
// occurrence ahead of a following global one.
func ReferenceAt(idx *index.DocumentIndex, pos protocol.Position) *index.Reference {
	var best *index.Reference
	for _, ref := range idx.References {
		if !inRange(ref.Range, pos) {
			continue
		}
		if best == nil || startsBefore(ref.Range.Start, best.Range.Start) {
			best = ref
		}
	}
	return best
}

func inRange(r protocol.Range, p protocol.Position) bool {
	if p.Line < r.Start.Line || p.Line > r.End.Line {
		return false
	}
	if p.Line == r.Start.Line && p.Character < r.Start.Character {
		return false
	}
	if p.Line == r.End.Line && p.Character > r.End.Character {
		return false
	}
	return true
}

func startsBefore(a, b protocol.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Character < b.Character
}

// FindReferences lists every occurrence of the symbol under pos.
// Function references cross file boundaries; variables, labels and
// line numbers stay within their document. An unknown position yields
// an empty list, not an error.
func (r *Resolver) FindReferences(u uri.URI, pos protocol.Position, includeDecl bool) []protocol.Location {
	idx, ok := r.ws.Get(u)
	if !ok {
		return nil
	}
	target := ReferenceAt(idx, pos)
	if target == nil {
		return nil
	}
	var out []protocol.Location
	switch target.Symbol {
	case index.SymbolFunction:
		for _, docURI := range r.ws.Documents() {
			docIdx, ok := r.ws.Get(docURI)
			if !ok {
				continue
			}
			out = append(out, matchRefs(docIdx, target, includeDecl)...)
		}
	default:
		out = matchRefs(idx, target, includeDecl)
	}
	return out
}

func matchRefs(idx *index.DocumentIndex, target *index.Reference, includeDecl bool) []protocol.Location {
	var out []protocol.Location
	for _, ref := range idx.References {
		if ref.Symbol != target.Symbol || ref.Key != target.Key {
			continue
		}
		if ref.Symbol == index.SymbolVariable && ref.ScopeID != target.ScopeID {
			continue
		}
		if ref.Kind == index.RefDefinition && !includeDecl {
			continue
		}
		out = append(out, protocol.Location{URI: idx.URI, Range: ref.Range})
	}
	return out
}

// FindDefinition resolves the symbol under pos to its definition
// sites. Function calls may resolve to several files; builtins have
// no definition and yield an empty list.
func (r *Resolver) FindDefinition(u uri.URI, pos protocol.Position) []protocol.Location {
	idx, ok := r.ws.Get(u)
	if !ok {
		return nil
	}
	target := ReferenceAt(idx, pos)
	if target == nil {
		return nil
	}
	switch target.Symbol {
	case index.SymbolFunction:
		if fn, ok := idx.Functions[target.Key]; ok {
			return []protocol.Location{{URI: fn.URI, Range: fn.SelectionRange}}
		}
		var out []protocol.Location
		for _, def := range r.ws.LookupFunction(target.Key) {
			out = append(out, protocol.Location{URI: def.URI, Range: def.SelectionRange})
		}
		return out
	case index.SymbolVariable:
		if v := idx.Variable(target.ScopeID, target.Key); v != nil {
			return []protocol.Location{{URI: v.URI, Range: v.SelectionRange}}
		}
	case index.SymbolLabel:
		if l, ok := idx.Labels[target.Key]; ok {
			return []protocol.Location{{URI: l.URI, Range: l.SelectionRange}}
		}
	case index.SymbolLineNumber:
		if ln, ok := idx.LineNumbers[target.Key]; ok {
			return []protocol.Location{{URI: ln.URI, Range: ln.SelectionRange}}
		}
	}
	return nil
}

// LookupSymbol describes the symbol under pos for hover-style
// consumers: the matching entry plus the reference it was reached
// through.
func (r *Resolver) LookupSymbol(u uri.URI, pos protocol.Position) (*index.SymbolEntry, *index.Reference) {
	idx, ok := r.ws.Get(u)
	if !ok {
		return nil, nil
	}
	target := ReferenceAt(idx, pos)
	if target == nil {
		return nil, nil
	}
	switch target.Symbol {
	case index.SymbolFunction:
		if fn, ok := idx.Functions[target.Key]; ok {
			return fn, target
		}
		if defs := r.ws.LookupFunction(target.Key); len(defs) > 0 {
			return defs[0], target
		}
	case index.SymbolVariable:
		return idx.Variable(target.ScopeID, target.Key), target
	case index.SymbolLabel:
		return idx.Labels[target.Key], target
	case index.SymbolLineNumber:
		return idx.LineNumbers[target.Key], target
	}
	return nil, target
}
