package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

func parseSource(t *testing.T, src string) *Tree {
	t.Helper()
	svc := NewService(func(name string) bool {
		switch name {
		case "len", "str$", "val":
			return true
		}
		return false
	})
	tree := svc.Parse(src)
	require.NotNil(t, tree)
	require.NotNil(t, tree.Root)
	return tree
}

func findKind(root *Node, kind string) []*Node {
	var out []*Node
	root.Walk(func(n *Node) bool {
		if n.Kind == kind {
			out = append(out, n)
		}
		return true
	})
	return out
}

func TestParseLineNumberAndLabel(t *testing.T) {
	tree := parseSource(t, "00100 MAIN: let X = 1\n")

	nums := findKind(tree.Root, KindLineNumber)
	require.Len(t, nums, 1)
	assert.Equal(t, "00100", nums[0].Text)
	assert.Equal(t, uint32(0), nums[0].Range.Start.Character)

	labels := findKind(tree.Root, KindLabel)
	require.Len(t, labels, 1)
	assert.Equal(t, "MAIN", labels[0].Text)
	// the colon stays outside the label range
	assert.Equal(t, uint32(10), labels[0].Range.End.Character)

	lets := findKind(tree.Root, KindLetStatement)
	require.Len(t, lets, 1)
}

func TestParseBlockDef(t *testing.T) {
	src := "def fnAdd(A, B; C)\n  let A = A + B\nfnend\n"
	tree := parseSource(t, src)

	defs := findKind(tree.Root, KindDefStatement)
	require.Len(t, defs, 1)
	name := defs[0].ChildOfKind(KindFunctionName)
	require.NotNil(t, name)
	assert.Equal(t, "fnAdd", name.Text)

	params := findKind(defs[0], KindParameter)
	require.Len(t, params, 3)

	fnends := findKind(tree.Root, KindFnendStatement)
	assert.Len(t, fnends, 1)
	assert.False(t, tree.Root.HasProblems())
}

func TestParseInlineDef(t *testing.T) {
	tree := parseSource(t, "def fnDouble(X) = X * 2\n")

	defs := findKind(tree.Root, KindDefStatement)
	require.Len(t, defs, 1)
	assert.False(t, tree.Root.HasProblems())
	// the body expression is part of the def statement
	nums := findKind(defs[0], KindNumberLiteral)
	require.Len(t, nums, 1)
	assert.Equal(t, "2", nums[0].Text)
}

func TestParseRefSuffixAndByRefParams(t *testing.T) {
	tree := parseSource(t, "def fnFmt$(&Name$*30, mat Values)\nfnend\n")

	params := findKind(tree.Root, KindParameter)
	require.Len(t, params, 2)
	first := params[0]
	assert.NotNil(t, first.ChildOfKind(KindStringIdent))
	require.NotNil(t, first.ChildOfKind(KindNumberLiteral))
	assert.Equal(t, "30", first.ChildOfKind(KindNumberLiteral).Text)
}

func TestParseLibraryStatement(t *testing.T) {
	tree := parseSource(t, `library "utils\math.brs": fnSum, fnAvg$`+"\n")

	libs := findKind(tree.Root, KindLibraryStmt)
	require.Len(t, libs, 1)
	fns := libs[0].ChildrenOfKind(KindFunctionName)
	require.Len(t, fns, 2)
	assert.Equal(t, "fnSum", fns[0].Text)
	assert.Equal(t, "fnAvg$", fns[1].Text)
}

func TestCallClassification(t *testing.T) {
	src := "let X = fnCalc(1) + Len(A$) + Totals(2)\n"
	tree := parseSource(t, src)

	assert.Len(t, findKind(tree.Root, KindNumericUserFn), 1)
	assert.Len(t, findKind(tree.Root, KindNumericSysFn), 1)
	assert.Len(t, findKind(tree.Root, KindElementRef), 1)
}

func TestGotoTargets(t *testing.T) {
	tree := parseSource(t, "goto 200\ngosub CLEANUP\n")

	lineRefs := findKind(tree.Root, KindLineReference)
	require.Len(t, lineRefs, 1)
	assert.Equal(t, "200", lineRefs[0].Text)

	labelRefs := findKind(tree.Root, KindLabelReference)
	require.Len(t, labelRefs, 1)
	assert.Equal(t, "CLEANUP", labelRefs[0].Text)
}

func TestIfThenLineTargets(t *testing.T) {
	tree := parseSource(t, "if X > 1 then 100 else 200\n")

	refs := findKind(tree.Root, KindLineReference)
	assert.Len(t, refs, 2)
}

func TestErrorRecoveryStaysOnLine(t *testing.T) {
	src := "def\nlet X = 1\n"
	tree := parseSource(t, src)

	// the malformed def produces problems
	assert.True(t, tree.Root.HasProblems())
	// but the next line still parses cleanly
	lets := findKind(tree.Root, KindLetStatement)
	require.Len(t, lets, 1)
	assert.False(t, lets[0].HasProblems())
}

func TestUnterminatedStringDoesNotConsumeNextLine(t *testing.T) {
	tree := parseSource(t, "let A$ = \"oops\nlet B = 2\n")

	lets := findKind(tree.Root, KindLetStatement)
	assert.Len(t, lets, 2)
}

func TestCommentsAndRem(t *testing.T) {
	tree := parseSource(t, "! whole line comment\nrem another one\nlet X = 1\n")

	comments := findKind(tree.Root, KindComment)
	assert.Len(t, comments, 2)
	assert.Len(t, findKind(tree.Root, KindLetStatement), 1)
}

func TestDocCommentAttachesToDef(t *testing.T) {
	src := "/** Adds two numbers. @param A first @returns the sum */\ndef fnAdd(A, B)\nfnend\n"
	tree := parseSource(t, src)

	defs := findKind(tree.Root, KindDefStatement)
	require.Len(t, defs, 1)
	doc := defs[0].ChildOfKind(KindDocComment)
	require.NotNil(t, doc)
	assert.Contains(t, doc.Text, "Adds two numbers.")
}

func TestNodeAt(t *testing.T) {
	tree := parseSource(t, "let Total = 5\n")

	n := tree.NodeAt(protocol.Position{Line: 0, Character: 5})
	require.NotNil(t, n)
	assert.Equal(t, "Total", n.Text)

	// position at the very end of the token still resolves to it
	n = tree.NodeAt(protocol.Position{Line: 0, Character: 9})
	require.NotNil(t, n)
	assert.Equal(t, "Total", n.Text)
}

func TestMissingNodesCarryExpectedText(t *testing.T) {
	tree := parseSource(t, "for I\n")

	var missing []*Node
	tree.Root.Walk(func(n *Node) bool {
		if n.Missing {
			missing = append(missing, n)
		}
		return true
	})
	require.NotEmpty(t, missing)
	assert.Equal(t, "=", missing[0].Text)
}
