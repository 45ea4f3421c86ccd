package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"br-analyzer/src/builtins"
	"br-analyzer/src/config"
	"br-analyzer/src/index"
	"br-analyzer/src/parser"
)

const testURI = uri.URI("file:///work/main.brs")

// stubLookup answers IsDefined from a fixed set
type stubLookup struct {
	defined map[string]bool
}

func (s *stubLookup) IsDefined(name string) bool {
	return s.defined[name]
}

func check(t *testing.T, src string, rules config.RulesConfig, lookup FunctionLookup) []protocol.Diagnostic {
	t.Helper()
	svc := parser.NewService(builtins.IsBuiltin)
	tree := svc.Parse(src)
	idx := index.Build(testURI, 1, tree)
	return NewEngine(rules, lookup).Check(tree, idx)
}

func allRules() config.RulesConfig {
	return config.GetDefaultConfig().Rules
}

func filterCode(diags []protocol.Diagnostic, code string) []protocol.Diagnostic {
	var out []protocol.Diagnostic
	for _, d := range diags {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

func TestSyntaxRule(t *testing.T) {
	diags := check(t, "def\n", config.RulesConfig{Syntax: true}, nil)
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "Syntax error: missing `function name`")
}

func TestSyntaxRuleCleanSource(t *testing.T) {
	diags := check(t, "let X = 1\nprint X\n", allRules(), &stubLookup{})
	assert.Empty(t, diags)
}

func TestMissingFnendDiagnostic(t *testing.T) {
	src := "def fnBroken(A)\nlet A = 1\n"
	diags := check(t, src, config.RulesConfig{Structural: true}, nil)
	require.Len(t, diags, 1)
	assert.Equal(t, "Function 'fnBroken' is missing FNEND", diags[0].Message)
	assert.Equal(t, protocol.DiagnosticSeverityError, diags[0].Severity)
	assert.Equal(t, uint32(0), diags[0].Range.Start.Line)
}

func TestDuplicateFunctionDiagnostic(t *testing.T) {
	src := "def fnCalc(A)\nfnend\ndef fnCalc(B)\nfnend\n"
	diags := check(t, src, config.RulesConfig{Structural: true}, nil)
	require.Len(t, diags, 1)
	assert.Equal(t, "Function 'fnCalc' is already defined in this file", diags[0].Message)
	// points at the second definition, related info at the first
	assert.Equal(t, uint32(2), diags[0].Range.Start.Line)
	require.Len(t, diags[0].RelatedInformation, 1)
	assert.Equal(t, uint32(0), diags[0].RelatedInformation[0].Location.Range.Start.Line)
}

func TestMissingFnendOnDuplicateDefinition(t *testing.T) {
	src := "def fnCalc(A)\nfnend\ndef fnCalc(B)\nlet B = 1\n"
	diags := check(t, src, config.RulesConfig{Structural: true}, nil)
	require.Len(t, diags, 2)
	// both findings anchor at the second definition
	assert.Equal(t, "Function 'fnCalc' is missing FNEND", diags[0].Message)
	assert.Equal(t, uint32(2), diags[0].Range.Start.Line)
	assert.Equal(t, CodeDuplicateFunction, diags[1].Code)
	assert.Equal(t, uint32(2), diags[1].Range.Start.Line)
}

func TestDuplicateLineNumberDiagnostic(t *testing.T) {
	src := "00100 let X = 1\n00100 print X\n"
	diags := check(t, src, config.RulesConfig{Structural: true}, nil)
	require.Len(t, diags, 1)
	assert.Equal(t, "Line number '00100' is already defined in this file", diags[0].Message)
	assert.Equal(t, CodeDuplicateLabel, diags[0].Code)
	assert.Equal(t, uint32(1), diags[0].Range.Start.Line)
	require.Len(t, diags[0].RelatedInformation, 1)
	assert.Equal(t, uint32(0), diags[0].RelatedInformation[0].Location.Range.Start.Line)
}

func TestDuplicateLabelDiagnostic(t *testing.T) {
	src := "TOP: let X = 1\ngoto TOP\nTOP: print X\n"
	diags := check(t, src, config.RulesConfig{Structural: true}, nil)
	require.Len(t, diags, 1)
	assert.Equal(t, "Label 'TOP' is already defined in this file", diags[0].Message)
	assert.Equal(t, CodeDuplicateLabel, diags[0].Code)
	assert.Equal(t, uint32(2), diags[0].Range.Start.Line)
	require.Len(t, diags[0].RelatedInformation, 1)
	assert.Equal(t, uint32(0), diags[0].RelatedInformation[0].Location.Range.Start.Line)
}

func TestUndefinedFunctionDiagnostic(t *testing.T) {
	src := "let X = fnMissing(1)\n"
	rules := config.RulesConfig{UndefinedFunctions: true}

	diags := check(t, src, rules, &stubLookup{})
	require.Len(t, diags, 1)
	assert.Equal(t, "Function 'fnMissing' is not defined in the workspace", diags[0].Message)
	assert.Equal(t, protocol.DiagnosticSeverityWarning, diags[0].Severity)
	assert.Equal(t, CodeUndefinedFunction, diags[0].Code)

	// defined elsewhere in the workspace
	diags = check(t, src, rules, &stubLookup{defined: map[string]bool{"fnmissing": true}})
	assert.Empty(t, diags)
}

func TestUndefinedFunctionSkipsImportsAndLocals(t *testing.T) {
	src := "library \"lib/util\": fnLib\n" +
		"def fnLocal(A)\nfnend\n" +
		"let X = fnLocal(1) + fnLib(2)\n"
	diags := check(t, src, config.RulesConfig{UndefinedFunctions: true}, &stubLookup{})
	assert.Empty(t, diags)
}

func TestUnusedVariableDiagnostic(t *testing.T) {
	src := "let Unused = 1\nlet Used = 2\nprint Used\n"
	diags := check(t, src, config.RulesConfig{UnusedVariables: true}, nil)
	require.Len(t, diags, 1)
	assert.Equal(t, "Variable 'Unused' is assigned but never read", diags[0].Message)
	assert.Equal(t, protocol.DiagnosticSeverityHint, diags[0].Severity)
}

func TestUnusedVariableSkipsParams(t *testing.T) {
	src := "def fnCalc(Ignored)\nfnend\nlet X = fnCalc(1)\nprint X\n"
	diags := check(t, src, config.RulesConfig{UnusedVariables: true}, nil)
	assert.Empty(t, diags)
}

func TestUnusedImportDiagnostic(t *testing.T) {
	src := "library \"lib/util\": fnNever\n"
	diags := check(t, src, config.RulesConfig{UnusedVariables: true}, nil)
	require.Len(t, diags, 1)
	assert.Equal(t, "Imported function 'fnNever' is never used", diags[0].Message)
}

func TestArgumentCountDiagnostic(t *testing.T) {
	src := "def fnAdd(A, B; C)\nfnend\nlet X = fnAdd(1)\n"
	diags := check(t, src, config.RulesConfig{ParameterCheck: true}, nil)
	require.Len(t, diags, 1)
	assert.Equal(t, "Function 'fnAdd' expects 2 to 3 parameter(s), but 1 provided", diags[0].Message)
}

func TestArgumentCountOptionalSatisfied(t *testing.T) {
	src := "def fnAdd(A, B; C)\nfnend\nlet X = fnAdd(1, 2)\nlet Y = fnAdd(1, 2, 3)\n"
	diags := check(t, src, config.RulesConfig{ParameterCheck: true}, nil)
	assert.Empty(t, diags)
}

func TestArgumentTypeDiagnostic(t *testing.T) {
	src := "def fnFmt(N, S$)\nfnend\nlet X = fnFmt(1, 2)\n"
	diags := check(t, src, config.RulesConfig{ParameterCheck: true}, nil)
	require.Len(t, diags, 1)
	assert.Equal(t, "Expected string argument at position 2, got numeric", diags[0].Message)
}

func TestScalarPassableForArray(t *testing.T) {
	src := "def fnSumUp(mat Values)\nfnend\nlet X = fnSumUp(3)\n"
	diags := check(t, src, config.RulesConfig{ParameterCheck: true}, nil)
	assert.Empty(t, diags)
}

func TestBuiltinOverloads(t *testing.T) {
	// Decrypt$ accepts one or two string arguments
	okOne := "let A$ = Decrypt$(B$)\nlet B$ = \"x\"\n"
	diags := check(t, okOne, config.RulesConfig{ParameterCheck: true}, nil)
	assert.Empty(t, filterCode(diags, CodeArgumentCount))

	bad := "let A$ = Decrypt$(1)\n"
	diags = check(t, bad, config.RulesConfig{ParameterCheck: true}, nil)
	require.NotEmpty(t, diags)
	assert.Equal(t, CodeArgumentType, diags[0].Code)
}

func TestRuleToggles(t *testing.T) {
	src := "def fnBroken(A)\nlet X = fnNope(1)\n"
	diags := check(t, src, config.RulesConfig{}, &stubLookup{})
	assert.Empty(t, diags)
}

func TestDiagnosticsSortedByPosition(t *testing.T) {
	src := "let Z = 1\nlet A = 2\n"
	diags := check(t, src, config.RulesConfig{UnusedVariables: true}, nil)
	require.Len(t, diags, 2)
	assert.True(t, diags[0].Range.Start.Line < diags[1].Range.Start.Line)
}
