package server

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

const testURI = uri.URI("file:///work/main.brs")

func pos(line, char uint32) protocol.Position {
	return protocol.Position{Line: line, Character: char}
}

func TestOpenDocumentReportsDiagnostics(t *testing.T) {
	e := NewEngine(nil)
	diags := e.OpenDocument(testURI, 1, "let X = fnMissing(1)\nprint X\n")
	require.Len(t, diags, 1)
	assert.Equal(t, "Function 'fnMissing' is not defined in the workspace", diags[0].Message)
}

func TestChangeDocumentReanalyzes(t *testing.T) {
	e := NewEngine(nil)
	diags := e.OpenDocument(testURI, 1, "let X = fnMissing(1)\nprint X\n")
	require.Len(t, diags, 1)

	diags, err := e.ChangeDocument(testURI, 2, "def fnMissing(A)\nfnend\nlet X = fnMissing(1)\nprint X\n")
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestChangeDocumentStaleVersionKeepsAnalysis(t *testing.T) {
	e := NewEngine(nil)
	e.OpenDocument(testURI, 5, "let X = 1\nprint X\n")

	diags, err := e.ChangeDocument(testURI, 3, "def\n")
	require.NoError(t, err)
	assert.Empty(t, diags)

	idx, ok := e.Workspace().Get(testURI)
	require.True(t, ok)
	assert.Equal(t, int32(5), idx.Version)
}

func TestChangeDocumentUnknown(t *testing.T) {
	e := NewEngine(nil)
	_, err := e.ChangeDocument(testURI, 1, "let X = 1\n")
	assert.Error(t, err)
}

func TestDiagnosticsPushHandler(t *testing.T) {
	e := NewEngine(nil)
	var pushed []protocol.Diagnostic
	var pushedVersion int32
	e.SetDiagnosticsHandler(func(u uri.URI, version int32, diags []protocol.Diagnostic) {
		pushed = diags
		pushedVersion = version
	})

	e.OpenDocument(testURI, 7, "let Unused = 1\n")
	require.Len(t, pushed, 1)
	assert.Equal(t, int32(7), pushedVersion)
	assert.Equal(t, "Variable 'Unused' is assigned but never read", pushed[0].Message)
}

func TestCloseDocumentKeepsIndex(t *testing.T) {
	e := NewEngine(nil)
	e.OpenDocument(testURI, 1, "def fnKeep(A)\nfnend\n")
	require.NoError(t, e.CloseDocument(testURI))

	// cross-file queries still see the last known content
	assert.True(t, e.Workspace().IsDefined("fnKeep"))
	assert.Error(t, e.CloseDocument(testURI))
}

func TestCompletionPrefixFilter(t *testing.T) {
	e := NewEngine(nil)
	src := "def fnTotal(Amount)\nfnend\nlet Y = fnT"
	e.OpenDocument(testURI, 1, src)

	items := e.CompletionAt(testURI, pos(2, 11))
	require.Len(t, items, 1)
	assert.Equal(t, "fnTotal", items[0].Label)
	assert.Equal(t, protocol.CompletionItemKindFunction, items[0].Kind)
}

func TestCompletionScopesVariables(t *testing.T) {
	e := NewEngine(nil)
	src := "def fnTotal(Amount)\nlet Local = Amount\nfnend\nlet Grand = 1\nprint Grand\n"
	e.OpenDocument(testURI, 1, src)

	labels := func(items []protocol.CompletionItem) map[string]bool {
		out := make(map[string]bool)
		for _, it := range items {
			out[it.Label] = true
		}
		return out
	}

	inside := labels(e.CompletionAt(testURI, pos(1, 0)))
	assert.True(t, inside["Local"])
	assert.True(t, inside["Amount"])
	assert.True(t, inside["Grand"])

	outside := labels(e.CompletionAt(testURI, pos(3, 0)))
	assert.False(t, outside["Local"])
	assert.True(t, outside["Grand"])
}

func TestCompletionIncludesBuiltinsAndKeywords(t *testing.T) {
	e := NewEngine(nil)
	e.OpenDocument(testURI, 1, "let X = 1\nprint X\n")

	items := e.CompletionAt(testURI, pos(1, 0))
	byLabel := make(map[string]protocol.CompletionItem)
	for _, it := range items {
		byLabel[it.Label] = it
	}
	assert.Equal(t, protocol.CompletionItemKindKeyword, byLabel["print"].Kind)
	require.Contains(t, byLabel, "Len")
	assert.Equal(t, "Len(value$)", byLabel["Len"].Detail)
}

func TestHoverUserFunction(t *testing.T) {
	e := NewEngine(nil)
	src := "/** Adds two numbers. @param A first @param B second @returns their sum */\n" +
		"def fnAdd(A, B)\nfnend\nlet X = fnAdd(1, 2)\nprint X\n"
	e.OpenDocument(testURI, 1, src)

	h := e.HoverAt(testURI, pos(3, 8))
	require.NotNil(t, h)
	assert.Contains(t, h.Contents.Value, "def fnAdd(A, B)")
	assert.Contains(t, h.Contents.Value, "Adds two numbers.")
	assert.Contains(t, h.Contents.Value, "*@param* `A` first")
	assert.Contains(t, h.Contents.Value, "*@returns* their sum")
}

func TestHoverBuiltin(t *testing.T) {
	e := NewEngine(nil)
	e.OpenDocument(testURI, 1, "let X = Len(\"abc\")\nprint X\n")

	h := e.HoverAt(testURI, pos(0, 9))
	require.NotNil(t, h)
	assert.Contains(t, h.Contents.Value, "Len(value$)")
	assert.Contains(t, h.Contents.Value, "length of a string")
}

func TestHoverVariable(t *testing.T) {
	e := NewEngine(nil)
	e.OpenDocument(testURI, 1, "let Name$ = \"x\"\nprint Name$\n")

	h := e.HoverAt(testURI, pos(1, 6))
	require.NotNil(t, h)
	assert.Contains(t, h.Contents.Value, "Name$")
	assert.Contains(t, h.Contents.Value, "string variable")
}

func TestHoverNothing(t *testing.T) {
	e := NewEngine(nil)
	e.OpenDocument(testURI, 1, "let X = 1\nprint X\n")
	assert.Nil(t, e.HoverAt(testURI, pos(0, 6)))
}

func TestSignatureHelpBuiltin(t *testing.T) {
	e := NewEngine(nil)
	e.OpenDocument(testURI, 1, "let X = Max(1, 2)\nprint X\n")

	help := e.SignatureHelpAt(testURI, pos(0, 15))
	require.NotNil(t, help)
	require.Len(t, help.Signatures, 1)
	assert.Equal(t, "Max(x, y)", help.Signatures[0].Label)
	assert.Equal(t, uint32(1), help.ActiveParameter)
}

func TestSignatureHelpUserFunction(t *testing.T) {
	e := NewEngine(nil)
	src := "def fnAdd(A, B; C)\nfnend\nlet X = fnAdd(1, 2)\nprint X\n"
	e.OpenDocument(testURI, 1, src)

	help := e.SignatureHelpAt(testURI, pos(2, 15))
	require.NotNil(t, help)
	require.Len(t, help.Signatures, 1)
	assert.Equal(t, "def fnAdd(A, B[, C])", help.Signatures[0].Label)
	require.Len(t, help.Signatures[0].Parameters, 3)
	assert.Equal(t, uint32(0), help.ActiveParameter)
}

func TestSignatureHelpOutsideCall(t *testing.T) {
	e := NewEngine(nil)
	e.OpenDocument(testURI, 1, "let X = 1\nprint X\n")
	assert.Nil(t, e.SignatureHelpAt(testURI, pos(0, 4)))
}

func TestSemanticTokens(t *testing.T) {
	e := NewEngine(nil)
	e.OpenDocument(testURI, 1, "let X = 1\n")

	st := e.SemanticTokens(testURI)
	require.NotNil(t, st)
	want := []uint32{
		0, 0, 3, tokKeyword, 0,
		0, 4, 1, tokVariable, 0,
		0, 2, 1, tokOperator, 0,
		0, 2, 1, tokNumber, 0,
	}
	assert.Equal(t, want, st.Data)
}

func TestSemanticTokensMultiLine(t *testing.T) {
	e := NewEngine(nil)
	e.OpenDocument(testURI, 1, "TOP: print 1\ngoto TOP\n")

	st := e.SemanticTokens(testURI)
	require.NotNil(t, st)
	// first token of the second line carries a line delta of one
	require.GreaterOrEqual(t, len(st.Data), 10)
	assert.Equal(t, uint32(0), st.Data[0])
	assert.Equal(t, []uint32{3, tokLabel, modDefinition}, st.Data[2:5])
	assert.Equal(t, uint32(1), st.Data[len(st.Data)-10])
}

type semTok struct {
	line, start, length, typ, mod uint32
}

func decodeTokens(data []uint32) []semTok {
	var out []semTok
	var line, start uint32
	for i := 0; i+4 < len(data); i += 5 {
		if data[i] > 0 {
			line += data[i]
			start = data[i+1]
		} else {
			start += data[i+1]
		}
		out = append(out, semTok{line, start, data[i+2], data[i+3], data[i+4]})
	}
	return out
}

func tokenAt(toks []semTok, line, start uint32) *semTok {
	for i := range toks {
		if toks[i].line == line && toks[i].start == start {
			return &toks[i]
		}
	}
	return nil
}

func TestSemanticTokenModifiers(t *testing.T) {
	e := NewEngine(nil)
	e.OpenDocument(testURI, 1, "def fnAdd(A, B)\nlet A = B + Len(\"x\")\nfnend\n")

	st := e.SemanticTokens(testURI)
	require.NotNil(t, st)
	toks := decodeTokens(st.Data)

	name := tokenAt(toks, 0, 4)
	require.NotNil(t, name)
	assert.Equal(t, tokFunction, name.typ)
	assert.Equal(t, modDeclaration, name.mod)

	declared := tokenAt(toks, 0, 10)
	require.NotNil(t, declared)
	assert.Equal(t, tokParameter, declared.typ)
	assert.Equal(t, modDeclaration, declared.mod)

	// parameter uses resolve through the index
	written := tokenAt(toks, 1, 4)
	require.NotNil(t, written)
	assert.Equal(t, tokParameter, written.typ)
	assert.Equal(t, uint32(0), written.mod)

	read := tokenAt(toks, 1, 8)
	require.NotNil(t, read)
	assert.Equal(t, tokParameter, read.typ)

	builtin := tokenAt(toks, 1, 12)
	require.NotNil(t, builtin)
	assert.Equal(t, tokFunction, builtin.typ)
	assert.Equal(t, modDefaultLibrary, builtin.mod)
}

func TestSemanticTokensDimDeclaration(t *testing.T) {
	e := NewEngine(nil)
	e.OpenDocument(testURI, 1, "dim Arr(10)\nprint Arr(1)\n")

	st := e.SemanticTokens(testURI)
	require.NotNil(t, st)
	toks := decodeTokens(st.Data)

	declared := tokenAt(toks, 0, 4)
	require.NotNil(t, declared)
	assert.Equal(t, tokVariable, declared.typ)
	assert.Equal(t, modDeclaration, declared.mod)

	used := tokenAt(toks, 1, 6)
	require.NotNil(t, used)
	assert.Equal(t, tokVariable, used.typ)
	assert.Equal(t, uint32(0), used.mod)
}

func TestSemanticTokensControlFlowKeyword(t *testing.T) {
	e := NewEngine(nil)
	e.OpenDocument(testURI, 1, "TOP: print 1\ngoto TOP\n")

	st := e.SemanticTokens(testURI)
	require.NotNil(t, st)
	toks := decodeTokens(st.Data)

	kw := tokenAt(toks, 1, 0)
	require.NotNil(t, kw)
	assert.Equal(t, tokKeyword, kw.typ)
	assert.Equal(t, modControlFlow, kw.mod)
}

func TestDocumentSymbols(t *testing.T) {
	e := NewEngine(nil)
	src := "let Count = 1\nTOP: print Count\ndef fnCalc(A)\nfnend\n"
	e.OpenDocument(testURI, 1, src)

	syms := e.ListDocumentSymbols(testURI)
	require.Len(t, syms, 3)
	assert.Equal(t, "Count", syms[0].Name)
	assert.Equal(t, protocol.SymbolKindVariable, syms[0].Kind)
	assert.Equal(t, "TOP", syms[1].Name)
	assert.Equal(t, "fnCalc", syms[2].Name)
	require.Len(t, syms[2].Children, 1)
	assert.Equal(t, "A", syms[2].Children[0].Name)
	// a block function's range spans through its fnend
	assert.Equal(t, uint32(3), syms[2].Range.End.Line)
}

func TestWorkspaceSymbols(t *testing.T) {
	e := NewEngine(nil)
	e.OpenDocument(testURI, 1, "def fnAlpha(A)\nfnend\ndef fnBeta(B)\nfnend\n")

	all := e.ListWorkspaceSymbols("")
	require.Len(t, all, 2)

	filtered := e.ListWorkspaceSymbols("fnB")
	require.Len(t, filtered, 1)
	assert.Equal(t, "fnBeta", filtered[0].Name)
	assert.Equal(t, testURI, filtered[0].Location.URI)
}

func TestCodeActionGeneratesStub(t *testing.T) {
	e := NewEngine(nil)
	src := "00010 let Total = fnCalc(Amount, Name$)\n00020 print Total\n"
	diags := e.OpenDocument(testURI, 1, src)
	require.Len(t, diags, 1)

	actions := e.CodeActionsAt(testURI, diags)
	require.Len(t, actions, 1)
	assert.Equal(t, "Generate function stub for 'fnCalc'", actions[0].Title)
	assert.Equal(t, protocol.QuickFix, actions[0].Kind)

	edits := actions[0].Edit.Changes[testURI]
	require.Len(t, edits, 1)
	// inserted past the last line, numbered past the last line number
	assert.Equal(t, uint32(2), edits[0].Range.Start.Line)
	assert.Contains(t, edits[0].NewText, "00030 DEF fnCalc(Amount,Name$)\n")
	assert.Contains(t, edits[0].NewText, "00050 LET fnCalc=0\n")
	assert.Contains(t, edits[0].NewText, "00060 FNEND\n")
}

func TestCodeActionStringFunctionStub(t *testing.T) {
	e := NewEngine(nil)
	diags := e.OpenDocument(testURI, 1, "let A$ = fnFmt$(1 + 2)\nprint A$\n")
	require.Len(t, diags, 1)

	actions := e.CodeActionsAt(testURI, diags)
	require.Len(t, actions, 1)
	text := actions[0].Edit.Changes[testURI][0].NewText
	// complex argument falls back to a positional name
	assert.Contains(t, text, "00010 DEF fnFmt$(Param1)\n")
	assert.Contains(t, text, `LET fnFmt$=""`)
}

func TestCodeActionIgnoresOtherDiagnostics(t *testing.T) {
	e := NewEngine(nil)
	diags := e.OpenDocument(testURI, 1, "let Unused = 1\n")
	require.Len(t, diags, 1)
	assert.Empty(t, e.CodeActionsAt(testURI, diags))
}

func TestScanWorkspaceEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.brs")
	require.NoError(t, os.WriteFile(path, []byte("let X = fnGone(1)\nprint X\n"), 0o644))

	e := NewEngine(nil)
	report, err := e.ScanWorkspace(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scan.Indexed)
	assert.Equal(t, 1, report.Total())

	var buf bytes.Buffer
	require.NoError(t, e.WriteReportCSV(&buf, report))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "file,line,column,severity,code,message\n"))
	assert.Contains(t, out, "fnGone")
	assert.Contains(t, out, "undefined-function")
}
