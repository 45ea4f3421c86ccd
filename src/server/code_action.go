package server

import (
	"fmt"
	"strconv"
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"br-analyzer/src/diagnostics"
	"br-analyzer/src/index"
	"br-analyzer/src/parser"
)

// CodeActionsAt returns quick fixes for the given diagnostics. The
// fix offered for an undefined-function finding appends a stub
// definition of the missing function at the end of the file.
func (e *Engine) CodeActionsAt(u uri.URI, diags []protocol.Diagnostic) []protocol.CodeAction {
	idx, ok := e.indexFor(u)
	if !ok {
		return nil
	}
	var out []protocol.CodeAction
	for _, d := range diags {
		if code, _ := d.Code.(string); code != diagnostics.CodeUndefinedFunction {
			continue
		}
		if action := e.stubAction(u, idx, d); action != nil {
			out = append(out, *action)
		}
	}
	return out
}

func (e *Engine) stubAction(u uri.URI, idx *index.DocumentIndex, d protocol.Diagnostic) *protocol.CodeAction {
	name := quotedName(d.Message)
	if name == "" {
		return nil
	}
	call := callAt(idx, d.Range.Start)
	if call == nil {
		return nil
	}

	params := make([]string, 0, len(call.Args))
	for i, arg := range call.Args {
		params = append(params, stubParam(idx.Tree, arg, i))
	}
	stub := stubText(name, params, nextLineNumber(idx))

	insert := protocol.Position{Line: endOfDocumentLine(e, u, idx)}
	action := protocol.CodeAction{
		Title:       fmt.Sprintf("Generate function stub for '%s'", name),
		Kind:        protocol.QuickFix,
		Diagnostics: []protocol.Diagnostic{d},
		Edit: &protocol.WorkspaceEdit{
			Changes: map[uri.URI][]protocol.TextEdit{
				u: {{Range: protocol.Range{Start: insert, End: insert}, NewText: stub}},
			},
		},
	}
	return &action
}

// quotedName extracts the single-quoted name from a diagnostic
// message.
func quotedName(message string) string {
	i := strings.IndexByte(message, '\'')
	if i < 0 {
		return ""
	}
	j := strings.IndexByte(message[i+1:], '\'')
	if j < 0 {
		return ""
	}
	return message[i+1 : i+1+j]
}

func callAt(idx *index.DocumentIndex, pos protocol.Position) *index.Reference {
	for _, ref := range idx.References {
		if ref.Kind == index.RefCall && ref.Symbol == index.SymbolFunction &&
			ref.Range.Start == pos {
			return ref
		}
	}
	return nil
}

// stubParam names one stub parameter: a plain variable argument keeps
// its own name, anything else gets a positional name of the argument's
// kind.
func stubParam(tree *parser.Tree, arg index.CallArg, i int) string {
	if tree != nil {
		if n := tree.NodeAt(arg.Range.Start); n != nil && n.Range == arg.Range {
			switch n.Kind {
			case parser.KindNumberIdent, parser.KindStringIdent:
				return n.Text
			}
		}
	}
	name := fmt.Sprintf("Param%d", i+1)
	switch arg.Kind {
	case index.VarString:
		return name + "$"
	case index.VarNumberArray:
		return "mat " + name
	case index.VarStringArray:
		return "mat " + name + "$"
	}
	return name
}

// nextLineNumber picks the stub's first line number: the highest
// numeric line in the file rounded up to the next multiple of ten.
func nextLineNumber(idx *index.DocumentIndex) int {
	last := 0
	for key := range idx.LineNumbers {
		if n, err := strconv.Atoi(key); err == nil && n > last {
			last = n
		}
	}
	return (last/10 + 1) * 10
}

func stubText(name string, params []string, start int) string {
	value := "0"
	if strings.HasSuffix(name, "$") {
		value = `""`
	}
	paramList := ""
	if len(params) > 0 {
		paramList = "(" + strings.Join(params, ",") + ")"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n%05d DEF %s%s\n", start, name, paramList)
	fmt.Fprintf(&b, "%05d ! TODO: Implement %s\n", start+10, name)
	fmt.Fprintf(&b, "%05d LET %s=%s\n", start+20, name, value)
	fmt.Fprintf(&b, "%05d FNEND\n", start+30)
	return b.String()
}

// endOfDocumentLine returns the line index just past the last line of
// the document, preferring the open buffer's text over the tree span.
func endOfDocumentLine(e *Engine, u uri.URI, idx *index.DocumentIndex) uint32 {
	if doc, open := e.store.Get(u); open {
		line := uint32(strings.Count(doc.Text, "\n"))
		if len(doc.Text) > 0 && !strings.HasSuffix(doc.Text, "\n") {
			line++
		}
		return line
	}
	if idx.Tree != nil && idx.Tree.Root != nil {
		return idx.Tree.Root.Range.End.Line + 1
	}
	return 0
}
