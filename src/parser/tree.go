package parser

import (
	"go.lsp.dev/protocol"
)

// Node kinds produced by the parser. Statement-level kinds carry the
// "_statement" suffix; leaf kinds name the token class.
const (
	KindSource          = "source_file"
	KindLine            = "line"
	KindLineNumber      = "line_number"
	KindLineReference   = "line_reference"
	KindLabel           = "label"
	KindLabelReference  = "label_reference"
	KindComment         = "comment"
	KindDocComment      = "doc_comment"
	KindDefStatement    = "def_statement"
	KindFnendStatement  = "fnend_statement"
	KindEndDefStatement = "end_def_statement"
	KindLibraryStmt     = "library_statement"
	KindDimStatement    = "dim_statement"
	KindLetStatement    = "let_statement"
	KindGotoStatement   = "goto_statement"
	KindGosubStatement  = "gosub_statement"
	KindForStatement    = "for_statement"
	KindNextStatement   = "next_statement"
	KindIfStatement     = "if_statement"
	KindInputStatement  = "input_statement"
	KindPrintStatement  = "print_statement"
	KindIOStatement     = "io_statement"
	KindExprStatement   = "expression_statement"
	KindParameterList   = "parameter_list"
	KindParameter       = "parameter"
	KindArgumentList    = "argument_list"
	KindFunctionName    = "function_name"
	KindNumericUserFn   = "numeric_user_function"
	KindStringUserFn    = "string_user_function"
	KindNumericSysFn    = "numeric_system_function"
	KindStringSysFn     = "string_system_function"
	KindElementRef      = "element_reference"
	KindNumberIdent     = "numberidentifier"
	KindStringIdent     = "stringidentifier"
	KindStringLiteral   = "string_literal"
	KindNumberLiteral   = "number_literal"
	KindKeyword         = "keyword"
	KindOperator        = "operator"
	KindError           = "ERROR"
	KindMissing         = "MISSING"
)

// Node is a syntax tree node. Ranges use 0-based line and UTF-16
// column positions. Missing nodes are zero-width placeholders the
// parser inserts where required syntax was absent; Err marks error
// recovery regions.
type Node struct {
	Kind     string
	Range    protocol.Range
	StartOff int
	EndOff   int
	Text     string
	Missing  bool
	Err      bool
	Parent   *Node
	Children []*Node
}

// Tree is the parse result for one document.
type Tree struct {
	Root *Node
}

func (n *Node) add(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
	// grow parent span to cover the child
	if len(n.Children) == 1 && n.StartOff == 0 && n.EndOff == 0 {
		n.Range = child.Range
		n.StartOff, n.EndOff = child.StartOff, child.EndOff
		return
	}
	if before(child.Range.Start, n.Range.Start) {
		n.Range.Start = child.Range.Start
		n.StartOff = child.StartOff
	}
	if before(n.Range.End, child.Range.End) {
		n.Range.End = child.Range.End
		n.EndOff = child.EndOff
	}
}

func before(a, b protocol.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Character < b.Character
}

func contains(r protocol.Range, p protocol.Position) bool {
	if before(p, r.Start) {
		return false
	}
	return before(p, r.End)
}

// NodeAt returns the smallest node covering the position. Positions at
// the end boundary of a token resolve to that token, matching editor
// cursor placement just past the last character.
func (t *Tree) NodeAt(pos protocol.Position) *Node {
	if t == nil || t.Root == nil {
		return nil
	}
	n := nodeAt(t.Root, pos)
	if n != nil && len(n.Children) == 0 {
		return n
	}
	if pos.Character > 0 {
		shifted := protocol.Position{Line: pos.Line, Character: pos.Character - 1}
		if m := nodeAt(t.Root, shifted); m != nil && len(m.Children) == 0 && m.Range.End == pos {
			return m
		}
	}
	return n
}

func nodeAt(n *Node, pos protocol.Position) *Node {
	if !contains(n.Range, pos) {
		return nil
	}
	for _, c := range n.Children {
		if found := nodeAt(c, pos); found != nil {
			return found
		}
	}
	return n
}

// NamedAncestor walks up until a node of the given kind is found.
func (n *Node) NamedAncestor(kind string) *Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Kind == kind {
			return cur
		}
	}
	return nil
}

// ChildOfKind returns the first direct child of the given kind.
func (n *Node) ChildOfKind(kind string) *Node {
	for _, c := range n.Children {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

// ChildrenOfKind returns all direct children of the given kind.
func (n *Node) ChildrenOfKind(kind string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Walk visits the subtree in document order. Returning false from the
// visitor skips the node's children.
func (n *Node) Walk(visit func(*Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(visit)
	}
}

// HasProblems reports whether any node in the subtree is an error or
// missing node.
func (n *Node) HasProblems() bool {
	found := false
	n.Walk(func(c *Node) bool {
		if c.Err || c.Missing {
			found = true
			return false
		}
		return true
	})
	return found
}
