// Package index derives symbol tables, scopes and reference lists
// from parsed BR documents. All symbol keys are lower case; BR names
// are case insensitive.
package index

import (
	"fmt"
	"strconv"
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"br-analyzer/src/parser"
)

// SymbolKind classifies an indexed symbol.
type SymbolKind int

const (
	SymbolFunction SymbolKind = iota
	SymbolVariable
	SymbolLabel
	SymbolLineNumber
	SymbolImport
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolFunction:
		return "function"
	case SymbolVariable:
		return "variable"
	case SymbolLabel:
		return "label"
	case SymbolLineNumber:
		return "line number"
	case SymbolImport:
		return "library import"
	default:
		return "unknown"
	}
}

// VarKind is the value type of a variable or parameter.
type VarKind int

const (
	VarNumber VarKind = iota
	VarString
	VarNumberArray
	VarStringArray
	VarUnknown
)

func (k VarKind) String() string {
	switch k {
	case VarNumber:
		return "numeric"
	case VarString:
		return "string"
	case VarNumberArray:
		return "numeric array"
	case VarStringArray:
		return "string array"
	default:
		return "unknown"
	}
}

// RefKind classifies how a reference uses its symbol.
type RefKind int

const (
	RefDefinition RefKind = iota
	RefRead
	RefWrite
	RefCall
	RefGoto
	RefImport
)

// Param is one declared parameter of a user function.
type Param struct {
	Name      string
	Kind      VarKind
	Optional  bool
	Reference bool
	Hidden    bool
	Doc       string
	MaxLen    int
}

// SymbolEntry is one definition-site symbol.
type SymbolEntry struct {
	Kind           SymbolKind
	Name           string
	Key            string
	URI            uri.URI
	Range          protocol.Range
	SelectionRange protocol.Range
	ScopeID        int
	VarKind        VarKind
	Params         []Param
	Inline         bool
	ImportOnly     bool
	LibraryPath    string
	Doc            string
	ReturnDoc      string
	Duplicates     []protocol.Range
	MissingEnd     bool
	FromParam      bool
}

// VisibleParams returns the parameters up to the first hidden one.
func (e *SymbolEntry) VisibleParams() []Param {
	for i, p := range e.Params {
		if p.Hidden {
			return e.Params[:i]
		}
	}
	return e.Params
}

// MinArgs returns how many leading required parameters the function has.
func (e *SymbolEntry) MinArgs() int {
	n := 0
	for _, p := range e.Params {
		if p.Optional || p.Hidden {
			break
		}
		n++
	}
	return n
}

// Label renders a call signature for display.
func (e *SymbolEntry) Label() string {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteByte('(')
	opt := false
	for i, p := range e.VisibleParams() {
		switch {
		case p.Optional && !opt && i > 0:
			opt = true
			b.WriteString("[, ")
		case p.Optional && !opt:
			opt = true
			b.WriteByte('[')
		case i > 0:
			b.WriteString(", ")
		}
		if p.Reference {
			b.WriteByte('&')
		}
		if p.Kind == VarNumberArray || p.Kind == VarStringArray {
			b.WriteString("mat ")
		}
		b.WriteString(p.Name)
	}
	if opt {
		b.WriteByte(']')
	}
	b.WriteByte(')')
	return b.String()
}

// GlobalScopeID is the scope id of the file-level scope.
const GlobalScopeID = 0

// ScopeKind distinguishes the two scope levels BR has.
type ScopeKind int

const (
	ScopeGlobal ScopeKind = iota
	ScopeFunction
)

// Scope is a name resolution region. Function scopes are flat; they
// never nest.
type Scope struct {
	ID       int
	Kind     ScopeKind
	Function string // function key, empty for the global scope
	Range    protocol.Range
	Assigned map[string]bool
}

// CallArg summarizes one argument at a call site.
type CallArg struct {
	Kind  VarKind
	Range protocol.Range
}

// Reference is one occurrence of a symbol in a document.
type Reference struct {
	URI      uri.URI
	Range    protocol.Range
	Kind     RefKind
	Symbol   SymbolKind
	Key      string
	Name     string
	ScopeID  int
	Resolved bool
	Args     []CallArg
}

// DocumentIndex is the complete per-document symbol information.
// ShadowedDefs holds later definitions of an already defined function;
// calls never resolve to them, but they keep their own structural state.
type DocumentIndex struct {
	URI          uri.URI
	Version      int32
	Functions    map[string]*SymbolEntry
	ShadowedDefs []*SymbolEntry
	Imports      []*SymbolEntry
	Labels       map[string]*SymbolEntry
	LineNumbers  map[string]*SymbolEntry
	Variables    map[string]*SymbolEntry
	Scopes       []*Scope
	References   []*Reference
	Tree         *parser.Tree
}

// ScopeAt returns the innermost scope containing pos. Outside every
// function scope this is the global scope.
func (d *DocumentIndex) ScopeAt(pos protocol.Position) *Scope {
	for _, s := range d.Scopes {
		if s.Kind == ScopeFunction && containsPos(s.Range, pos) {
			return s
		}
	}
	return d.Scopes[GlobalScopeID]
}

// ResolveVariable maps a variable name occurring in the given scope to
// the scope that owns it: the function scope when the name is assigned
// anywhere inside the function, the global scope otherwise.
func (d *DocumentIndex) ResolveVariable(s *Scope, key string) int {
	if s.Kind == ScopeFunction && s.Assigned[key] {
		return s.ID
	}
	return GlobalScopeID
}

// Variable returns the variable entry for a key resolved in scopeID.
func (d *DocumentIndex) Variable(scopeID int, key string) *SymbolEntry {
	return d.Variables[VarKey(scopeID, key)]
}

// VarKey builds the Variables map key for a name owned by a scope.
func VarKey(scopeID int, key string) string {
	return fmt.Sprintf("%d\x00%s", scopeID, key)
}

// CanonicalLineNumber normalizes a line number literal, so that 00100
// and 100 share one key. Non-numeric input is returned lower cased.
func CanonicalLineNumber(text string) string {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return strings.ToLower(text)
	}
	return strconv.Itoa(n)
}

// NormalizeLibraryPath canonicalizes a library path for matching:
// backslashes become slashes, case folds, and a source extension is
// stripped.
func NormalizeLibraryPath(path string) string {
	p := strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
	for _, ext := range []string{".brs", ".wbs", ".dll"} {
		if strings.HasSuffix(p, ext) {
			return strings.TrimSuffix(p, ext)
		}
	}
	return p
}

func containsPos(r protocol.Range, p protocol.Position) bool {
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
