// Package diagnostics turns parsed and indexed documents into
// analyzer findings. Every rule can be switched off individually
// through the rules configuration.
package diagnostics

import (
	"fmt"
	"sort"
	"strings"

	"go.lsp.dev/protocol"

	"br-analyzer/src/builtins"
	"br-analyzer/src/config"
	"br-analyzer/src/index"
	"br-analyzer/src/parser"
)

// Diagnostic codes attached to findings.
const (
	CodeSyntax            = "syntax"
	CodeMissingFnend      = "missing-fnend"
	CodeDuplicateFunction = "duplicate-function"
	CodeDuplicateLabel    = "duplicate-label"
	CodeUndefinedFunction = "undefined-function"
	CodeUnusedVariable    = "unused-variable"
	CodeUnusedImport      = "unused-import"
	CodeArgumentCount     = "argument-count"
	CodeArgumentType      = "argument-type"
)

// FunctionLookup answers whether a function name is defined anywhere
// in the workspace. The workspace indexer implements it.
type FunctionLookup interface {
	IsDefined(name string) bool
}

// Engine evaluates diagnostic rules for one document at a time.
type Engine struct {
	rules  config.RulesConfig
	lookup FunctionLookup
}

// NewEngine creates a diagnostic engine. lookup may be nil, in which
// case the undefined-function rule treats every call as undefined
// unless the document itself defines or imports the name.
func NewEngine(rules config.RulesConfig, lookup FunctionLookup) *Engine {
	return &Engine{rules: rules, lookup: lookup}
}

// Check runs every enabled rule against one document. Findings come
// back ordered by position.
func (e *Engine) Check(tree *parser.Tree, idx *index.DocumentIndex) []protocol.Diagnostic {
	var out []protocol.Diagnostic
	if e.rules.Syntax {
		out = append(out, e.syntaxRule(tree)...)
	}
	if e.rules.Structural {
		out = append(out, e.structuralRule(idx)...)
	}
	if e.rules.UndefinedFunctions {
		out = append(out, e.undefinedRule(idx)...)
	}
	if e.rules.UnusedVariables {
		out = append(out, e.unusedRule(idx)...)
	}
	if e.rules.ParameterCheck {
		out = append(out, e.parameterRule(idx)...)
	}
	sortDiagnostics(out)
	return out
}

// syntaxRule reports every error and missing node in the tree. Nested
// problems inside an error region are folded into the outer report.
func (e *Engine) syntaxRule(tree *parser.Tree) []protocol.Diagnostic {
	var out []protocol.Diagnostic
	if tree == nil || tree.Root == nil {
		return out
	}
	tree.Root.Walk(func(n *parser.Node) bool {
		if n.Err {
			out = append(out, protocol.Diagnostic{
				Range:    n.Range,
				Severity: protocol.DiagnosticSeverityError,
				Code:     CodeSyntax,
				Source:   "br-analyzer",
				Message:  fmt.Sprintf("Syntax error: unexpected `%s`", errorText(n)),
			})
			return false
		}
		if n.Missing {
			out = append(out, protocol.Diagnostic{
				Range:    n.Range,
				Severity: protocol.DiagnosticSeverityError,
				Code:     CodeSyntax,
				Source:   "br-analyzer",
				Message:  fmt.Sprintf("Syntax error: missing `%s`", n.Text),
			})
			return false
		}
		return true
	})
	return out
}

// errorText picks the text shown for an error region: the region's own
// text when it is a leaf, otherwise the first leaf inside it.
func errorText(n *parser.Node) string {
	if len(n.Children) == 0 {
		return n.Text
	}
	first := n.Children[0]
	for len(first.Children) > 0 {
		first = first.Children[0]
	}
	return first.Text
}

// structuralRule reports unterminated definitions and duplicate
// function or label names within one file.
func (e *Engine) structuralRule(idx *index.DocumentIndex) []protocol.Diagnostic {
	var out []protocol.Diagnostic
	for _, fn := range idx.Functions {
		out = append(out, missingEnd(fn)...)
		for _, dup := range fn.Duplicates {
			out = append(out, protocol.Diagnostic{
				Range:    dup,
				Severity: protocol.DiagnosticSeverityError,
				Code:     CodeDuplicateFunction,
				Source:   "br-analyzer",
				Message:  fmt.Sprintf("Function '%s' is already defined in this file", fn.Name),
				RelatedInformation: []protocol.DiagnosticRelatedInformation{{
					Location: protocol.Location{URI: fn.URI, Range: fn.SelectionRange},
					Message:  "first definition is here",
				}},
			})
		}
	}
	for _, lbl := range idx.Labels {
		for _, dup := range lbl.Duplicates {
			out = append(out, protocol.Diagnostic{
				Range:    dup,
				Severity: protocol.DiagnosticSeverityError,
				Code:     CodeDuplicateLabel,
				Source:   "br-analyzer",
				Message:  fmt.Sprintf("Label '%s' is already defined in this file", lbl.Name),
				RelatedInformation: []protocol.DiagnosticRelatedInformation{{
					Location: protocol.Location{URI: lbl.URI, Range: lbl.SelectionRange},
					Message:  "first definition is here",
				}},
			})
		}
	}
	for _, fn := range idx.ShadowedDefs {
		out = append(out, missingEnd(fn)...)
	}
	for _, ln := range idx.LineNumbers {
		for _, dup := range ln.Duplicates {
			out = append(out, protocol.Diagnostic{
				Range:    dup,
				Severity: protocol.DiagnosticSeverityError,
				Code:     CodeDuplicateLabel,
				Source:   "br-analyzer",
				Message:  fmt.Sprintf("Line number '%s' is already defined in this file", ln.Name),
				RelatedInformation: []protocol.DiagnosticRelatedInformation{{
					Location: protocol.Location{URI: ln.URI, Range: ln.SelectionRange},
					Message:  "first definition is here",
				}},
			})
		}
	}
	return out
}

func missingEnd(fn *index.SymbolEntry) []protocol.Diagnostic {
	if !fn.MissingEnd {
		return nil
	}
	return []protocol.Diagnostic{{
		Range:    fn.Range,
		Severity: protocol.DiagnosticSeverityError,
		Code:     CodeMissingFnend,
		Source:   "br-analyzer",
		Message:  fmt.Sprintf("Function '%s' is missing FNEND", fn.Name),
	}}
}

// undefinedRule flags calls to user functions that no file in the
// workspace defines. Imported names count as defined; whether the
// library file itself resolves is the import's own concern.
func (e *Engine) undefinedRule(idx *index.DocumentIndex) []protocol.Diagnostic {
	imported := make(map[string]bool, len(idx.Imports))
	for _, imp := range idx.Imports {
		imported[imp.Key] = true
	}
	var out []protocol.Diagnostic
	for _, ref := range idx.References {
		if ref.Kind != index.RefCall || ref.Symbol != index.SymbolFunction {
			continue
		}
		if _, ok := idx.Functions[ref.Key]; ok {
			continue
		}
		if imported[ref.Key] {
			continue
		}
		if builtins.IsBuiltin(ref.Key) {
			continue
		}
		if e.lookup != nil && e.lookup.IsDefined(ref.Key) {
			continue
		}
		out = append(out, protocol.Diagnostic{
			Range:    ref.Range,
			Severity: protocol.DiagnosticSeverityWarning,
			Code:     CodeUndefinedFunction,
			Source:   "br-analyzer",
			Message:  fmt.Sprintf("Function '%s' is not defined in the workspace", ref.Name),
		})
	}
	return out
}

// unusedRule flags variables that are written but never read, and
// library imports no call ever uses. Parameters are exempt; they are
// part of the function's surface.
func (e *Engine) unusedRule(idx *index.DocumentIndex) []protocol.Diagnostic {
	reads := make(map[string]int)
	writes := make(map[string]int)
	calls := make(map[string]bool)
	for _, ref := range idx.References {
		switch {
		case ref.Symbol == index.SymbolVariable && ref.Kind == index.RefRead:
			reads[index.VarKey(ref.ScopeID, ref.Key)]++
		case ref.Symbol == index.SymbolVariable && ref.Kind == index.RefWrite:
			writes[index.VarKey(ref.ScopeID, ref.Key)]++
		case ref.Symbol == index.SymbolFunction && ref.Kind == index.RefCall:
			calls[ref.Key] = true
		}
	}

	var out []protocol.Diagnostic
	for vk, v := range idx.Variables {
		if v.FromParam {
			continue
		}
		if reads[vk] > 0 || writes[vk] == 0 {
			continue
		}
		out = append(out, protocol.Diagnostic{
			Range:    v.SelectionRange,
			Severity: protocol.DiagnosticSeverityHint,
			Code:     CodeUnusedVariable,
			Source:   "br-analyzer",
			Message:  fmt.Sprintf("Variable '%s' is assigned but never read", v.Name),
			Tags:     []protocol.DiagnosticTag{protocol.DiagnosticTagUnnecessary},
		})
	}
	for _, imp := range idx.Imports {
		if calls[imp.Key] {
			continue
		}
		out = append(out, protocol.Diagnostic{
			Range:    imp.SelectionRange,
			Severity: protocol.DiagnosticSeverityHint,
			Code:     CodeUnusedImport,
			Source:   "br-analyzer",
			Message:  fmt.Sprintf("Imported function '%s' is never used", imp.Name),
			Tags:     []protocol.DiagnosticTag{protocol.DiagnosticTagUnnecessary},
		})
	}
	return out
}

// parameterRule checks call sites against the callee's signature:
// argument count first, then per-position value kinds. Calls into
// other files or libraries are skipped; only same-file definitions
// carry reliable signatures here.
func (e *Engine) parameterRule(idx *index.DocumentIndex) []protocol.Diagnostic {
	var out []protocol.Diagnostic
	for _, ref := range idx.References {
		if ref.Kind != index.RefCall || ref.Symbol != index.SymbolFunction {
			continue
		}
		if fn, ok := idx.Functions[ref.Key]; ok {
			out = append(out, checkUserCall(ref, fn)...)
			continue
		}
		if sigs := builtins.Lookup(ref.Key); len(sigs) > 0 {
			out = append(out, checkBuiltinCall(ref, sigs)...)
		}
	}
	return out
}

func checkUserCall(ref *index.Reference, fn *index.SymbolEntry) []protocol.Diagnostic {
	visible := fn.VisibleParams()
	min, max := fn.MinArgs(), len(visible)
	if got := len(ref.Args); got < min || got > max {
		return []protocol.Diagnostic{{
			Range:    ref.Range,
			Severity: protocol.DiagnosticSeverityError,
			Code:     CodeArgumentCount,
			Source:   "br-analyzer",
			Message:  fmt.Sprintf("Function '%s' expects %s parameter(s), but %d provided", fn.Name, countSpec(min, max), got),
		}}
	}
	var out []protocol.Diagnostic
	for i, arg := range ref.Args {
		if i >= len(visible) {
			break
		}
		if !argCompatible(visible[i].Kind, arg.Kind) {
			out = append(out, protocol.Diagnostic{
				Range:    arg.Range,
				Severity: protocol.DiagnosticSeverityError,
				Code:     CodeArgumentType,
				Source:   "br-analyzer",
				Message:  fmt.Sprintf("Expected %s argument at position %d, got %s", visible[i].Kind, i+1, arg.Kind),
			})
		}
	}
	return out
}

// checkBuiltinCall accepts the call if any overload matches and
// reports against the closest overload otherwise.
func checkBuiltinCall(ref *index.Reference, sigs []builtins.Signature) []protocol.Diagnostic {
	var best []protocol.Diagnostic
	for _, sig := range sigs {
		probs := checkBuiltinSig(ref, sig)
		if len(probs) == 0 {
			return nil
		}
		if best == nil || len(probs) < len(best) {
			best = probs
		}
	}
	return best
}

func checkBuiltinSig(ref *index.Reference, sig builtins.Signature) []protocol.Diagnostic {
	min, max := sig.MinArgs(), len(sig.Params)
	if got := len(ref.Args); got < min || got > max {
		return []protocol.Diagnostic{{
			Range:    ref.Range,
			Severity: protocol.DiagnosticSeverityError,
			Code:     CodeArgumentCount,
			Source:   "br-analyzer",
			Message:  fmt.Sprintf("Function '%s' expects %s parameter(s), but %d provided", sig.Name, countSpec(min, max), got),
		}}
	}
	var out []protocol.Diagnostic
	for i, arg := range ref.Args {
		want := builtinKind(sig.Params[i].Kind)
		if !argCompatible(want, arg.Kind) {
			out = append(out, protocol.Diagnostic{
				Range:    arg.Range,
				Severity: protocol.DiagnosticSeverityError,
				Code:     CodeArgumentType,
				Source:   "br-analyzer",
				Message:  fmt.Sprintf("Expected %s argument at position %d, got %s", want, i+1, arg.Kind),
			})
		}
	}
	return out
}

func builtinKind(k builtins.ParamKind) index.VarKind {
	switch k {
	case builtins.ParamNumber:
		return index.VarNumber
	case builtins.ParamString:
		return index.VarString
	case builtins.ParamNumberArray:
		return index.VarNumberArray
	case builtins.ParamStringArray:
		return index.VarStringArray
	default:
		return index.VarUnknown
	}
}

// argCompatible decides whether an argument kind satisfies a
// parameter kind. A scalar is passable where an array of the same
// base type is expected.
func argCompatible(want, got index.VarKind) bool {
	if want == index.VarUnknown || got == index.VarUnknown {
		return true
	}
	if want == got {
		return true
	}
	if want == index.VarNumberArray && (got == index.VarNumber || got == index.VarNumberArray) {
		return true
	}
	if want == index.VarStringArray && (got == index.VarString || got == index.VarStringArray) {
		return true
	}
	return false
}

func countSpec(min, max int) string {
	if min == max {
		return fmt.Sprintf("%d", min)
	}
	return fmt.Sprintf("%d to %d", min, max)
}

func sortDiagnostics(diags []protocol.Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool { return lessDiag(diags[i], diags[j]) })
}

func lessDiag(a, b protocol.Diagnostic) bool {
	if a.Range.Start.Line != b.Range.Start.Line {
		return a.Range.Start.Line < b.Range.Start.Line
	}
	if a.Range.Start.Character != b.Range.Start.Character {
		return a.Range.Start.Character < b.Range.Start.Character
	}
	return strings.Compare(fmt.Sprintf("%v", a.Code), fmt.Sprintf("%v", b.Code)) < 0
}
