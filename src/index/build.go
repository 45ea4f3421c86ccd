package index

import (
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"br-analyzer/src/parser"
)

// builder accumulates document index state across the passes.
type builder struct {
	doc      *DocumentIndex
	openDef  *SymbolEntry
	openScp  *Scope
	writeSet map[*parser.Node]bool
}

// Build derives the full symbol index for one parsed document. The
// result depends only on the tree, so rebuilding from identical text
// yields an identical index.
func Build(u uri.URI, version int32, tree *parser.Tree) *DocumentIndex {
	b := &builder{
		doc: &DocumentIndex{
			URI:         u,
			Version:     version,
			Functions:   make(map[string]*SymbolEntry),
			Labels:      make(map[string]*SymbolEntry),
			LineNumbers: make(map[string]*SymbolEntry),
			Variables:   make(map[string]*SymbolEntry),
			Tree:        tree,
		},
		writeSet: make(map[*parser.Node]bool),
	}
	global := &Scope{ID: GlobalScopeID, Kind: ScopeGlobal, Assigned: make(map[string]bool)}
	if tree.Root != nil {
		global.Range = tree.Root.Range
	}
	b.doc.Scopes = append(b.doc.Scopes, global)

	if tree.Root == nil {
		return b.doc
	}
	b.structurePass(tree.Root)
	b.assignPass(tree.Root)
	b.referencePass(tree.Root)
	return b.doc
}

// --- pass one: functions, scopes, labels, line numbers, imports ---

func (b *builder) structurePass(root *parser.Node) {
	for _, line := range root.Children {
		for _, child := range line.Children {
			switch child.Kind {
			case parser.KindLineNumber:
				b.addLineNumber(child)
			case parser.KindLabel:
				b.addLabel(child)
			case parser.KindDefStatement:
				b.addDef(child)
			case parser.KindFnendStatement, parser.KindEndDefStatement:
				b.closeDef(child.Range.End, false)
			case parser.KindLibraryStmt:
				b.addLibrary(child)
			case parser.KindIfStatement:
				// fnend can sit in a then/else branch
				for _, nested := range child.Children {
					if nested.Kind == parser.KindFnendStatement ||
						nested.Kind == parser.KindEndDefStatement {
						b.closeDef(nested.Range.End, false)
					}
				}
			}
		}
	}
	b.closeDef(root.Range.End, true)
}

func (b *builder) addLineNumber(n *parser.Node) {
	key := CanonicalLineNumber(n.Text)
	if prev, ok := b.doc.LineNumbers[key]; ok {
		prev.Duplicates = append(prev.Duplicates, n.Range)
		return
	}
	b.doc.LineNumbers[key] = &SymbolEntry{
		Kind:           SymbolLineNumber,
		Name:           n.Text,
		Key:            key,
		URI:            b.doc.URI,
		Range:          n.Range,
		SelectionRange: n.Range,
	}
}

func (b *builder) addLabel(n *parser.Node) {
	key := strings.ToLower(n.Text)
	if prev, ok := b.doc.Labels[key]; ok {
		prev.Duplicates = append(prev.Duplicates, n.Range)
		return
	}
	b.doc.Labels[key] = &SymbolEntry{
		Kind:           SymbolLabel,
		Name:           n.Text,
		Key:            key,
		URI:            b.doc.URI,
		Range:          n.Range,
		SelectionRange: n.Range,
	}
}

// addDef records a function definition and opens its scope. A def
// arriving while another block def is still open closes the previous
// one as missing its fnend.
func (b *builder) addDef(def *parser.Node) {
	b.closeDef(def.Range.Start, true)

	nameNode := def.ChildOfKind(parser.KindFunctionName)
	if nameNode == nil || nameNode.Missing {
		return
	}
	name := nameNode.Text
	key := strings.ToLower(name)

	entry := &SymbolEntry{
		Kind:           SymbolFunction,
		Name:           name,
		Key:            key,
		URI:            b.doc.URI,
		Range:          def.Range,
		SelectionRange: nameNode.Range,
		VarKind:        varKindForName(name),
		Inline:         isInlineDef(def),
	}

	var doc docInfo
	if dc := def.ChildOfKind(parser.KindDocComment); dc != nil {
		doc = parseDocComment(dc.Text)
		entry.Doc = doc.summary
		entry.ReturnDoc = doc.returns
	}
	if pl := def.ChildOfKind(parser.KindParameterList); pl != nil {
		entry.Params = parseParams(pl, doc.params)
	}

	if prev, ok := b.doc.Functions[key]; ok {
		prev.Duplicates = append(prev.Duplicates, nameNode.Range)
		// the later definition keeps its own structural state
		b.doc.ShadowedDefs = append(b.doc.ShadowedDefs, entry)
	} else {
		b.doc.Functions[key] = entry
	}

	scope := &Scope{
		ID:       len(b.doc.Scopes),
		Kind:     ScopeFunction,
		Function: key,
		Range:    def.Range,
		Assigned: make(map[string]bool),
	}
	for _, p := range entry.Params {
		scope.Assigned[strings.ToLower(p.Name)] = true
	}
	entry.ScopeID = scope.ID
	b.doc.Scopes = append(b.doc.Scopes, scope)

	if entry.Inline {
		return
	}
	b.openDef = entry
	b.openScp = scope
}

// closeDef ends the open block definition, if any. When recovering at
// a following def or at end of file the entry is flagged as missing
// its fnend.
func (b *builder) closeDef(end protocol.Position, recovery bool) {
	if b.openDef == nil {
		return
	}
	if recovery {
		b.openDef.MissingEnd = true
	}
	b.openScp.Range.End = end
	b.openDef = nil
	b.openScp = nil
}

func (b *builder) addLibrary(lib *parser.Node) {
	path := ""
	if lit := lib.ChildOfKind(parser.KindStringLiteral); lit != nil && !lit.Missing {
		path = NormalizeLibraryPath(strings.Trim(lit.Text, `"'`))
	}
	for _, fn := range lib.ChildrenOfKind(parser.KindFunctionName) {
		key := strings.ToLower(fn.Text)
		entry := &SymbolEntry{
			Kind:           SymbolImport,
			Name:           fn.Text,
			Key:            key,
			URI:            b.doc.URI,
			Range:          fn.Range,
			SelectionRange: fn.Range,
			VarKind:        varKindForName(fn.Text),
			ImportOnly:     true,
			LibraryPath:    path,
		}
		b.doc.Imports = append(b.doc.Imports, entry)
	}
}

func isInlineDef(def *parser.Node) bool {
	for _, c := range def.Children {
		if c.Kind == parser.KindOperator && c.Text == "=" {
			return true
		}
	}
	return false
}

func varKindForName(name string) VarKind {
	if strings.HasSuffix(name, "$") {
		return VarString
	}
	return VarNumber
}

// parseParams converts a parameter_list node into Param values.
// Everything from the first triple-underscore name onward is hidden
// from callers.
func parseParams(list *parser.Node, docs map[string]string) []Param {
	var out []Param
	optional := false
	hidden := false
	for _, c := range list.Children {
		switch c.Kind {
		case parser.KindOperator:
			if c.Text == ";" {
				optional = true
			}
		case parser.KindParameter:
			p := Param{Optional: optional}
			for _, pc := range c.Children {
				switch pc.Kind {
				case parser.KindOperator:
					if pc.Text == "&" {
						p.Reference = true
					}
				case parser.KindKeyword:
					if strings.EqualFold(pc.Text, "mat") {
						p.Kind = VarNumberArray
					}
				case parser.KindNumberIdent, parser.KindStringIdent:
					p.Name = pc.Text
					if pc.Kind == parser.KindStringIdent {
						if p.Kind == VarNumberArray {
							p.Kind = VarStringArray
						} else {
							p.Kind = VarString
						}
					}
				case parser.KindNumberLiteral:
					p.MaxLen = atoiSafe(pc.Text)
				}
			}
			if p.Name == "" {
				continue
			}
			if strings.HasPrefix(p.Name, "___") {
				hidden = true
			}
			p.Hidden = hidden
			if docs != nil {
				p.Doc = docs[strings.ToLower(p.Name)]
			}
			out = append(out, p)
		}
	}
	return out
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// --- pass two: assigned-name sets per scope ---

func (b *builder) assignPass(root *parser.Node) {
	for _, line := range root.Children {
		for _, stmt := range line.Children {
			b.collectWrites(stmt)
		}
	}
}

// collectWrites marks the identifier leaves a statement writes to and
// records their names in the owning scope's assigned set.
func (b *builder) collectWrites(stmt *parser.Node) {
	switch stmt.Kind {
	case parser.KindLetStatement:
		for _, c := range stmt.Children {
			if c.Kind == parser.KindOperator && c.Text == "=" {
				break
			}
			if name := targetName(c); name != nil {
				b.markWrite(name)
				break
			}
		}
	case parser.KindForStatement:
		for _, c := range stmt.Children {
			if name := targetName(c); name != nil {
				b.markWrite(name)
				break
			}
		}
	case parser.KindDimStatement, parser.KindInputStatement:
		for _, c := range stmt.Children {
			if name := targetName(c); name != nil {
				b.markWrite(name)
			}
		}
	case parser.KindIOStatement:
		kw := stmt.ChildOfKind(parser.KindKeyword)
		if kw == nil {
			return
		}
		switch strings.ToLower(kw.Text) {
		case "read", "reread":
		default:
			return
		}
		seenColon := false
		for _, c := range stmt.Children {
			if c.Kind == parser.KindOperator && c.Text == ":" {
				seenColon = true
				continue
			}
			if !seenColon {
				continue
			}
			if name := targetName(c); name != nil {
				b.markWrite(name)
			}
		}
	case parser.KindIfStatement:
		for _, c := range stmt.Children {
			if strings.HasSuffix(c.Kind, "_statement") {
				b.collectWrites(c)
			}
		}
	}
}

// targetName unwraps an assignable operand to its name leaf.
func targetName(n *parser.Node) *parser.Node {
	switch n.Kind {
	case parser.KindNumberIdent, parser.KindStringIdent:
		return n
	case parser.KindElementRef:
		if len(n.Children) > 0 {
			return n.Children[0]
		}
	}
	return nil
}

func (b *builder) markWrite(name *parser.Node) {
	if name.Missing || name.Text == "" {
		return
	}
	b.writeSet[name] = true
	scope := b.doc.ScopeAt(name.Range.Start)
	scope.Assigned[strings.ToLower(name.Text)] = true
}

// --- pass three: references ---

func (b *builder) referencePass(root *parser.Node) {
	root.Walk(func(n *parser.Node) bool {
		switch n.Kind {
		case parser.KindLineNumber:
			b.addRef(&Reference{
				Kind: RefDefinition, Symbol: SymbolLineNumber,
				Key: CanonicalLineNumber(n.Text), Name: n.Text, Range: n.Range,
				Resolved: true,
			})
		case parser.KindLineReference:
			key := CanonicalLineNumber(n.Text)
			_, ok := b.doc.LineNumbers[key]
			b.addRef(&Reference{
				Kind: RefGoto, Symbol: SymbolLineNumber,
				Key: key, Name: n.Text, Range: n.Range, Resolved: ok,
			})
		case parser.KindLabel:
			b.addRef(&Reference{
				Kind: RefDefinition, Symbol: SymbolLabel,
				Key: strings.ToLower(n.Text), Name: n.Text, Range: n.Range,
				Resolved: true,
			})
		case parser.KindLabelReference:
			key := strings.ToLower(n.Text)
			_, ok := b.doc.Labels[key]
			b.addRef(&Reference{
				Kind: RefGoto, Symbol: SymbolLabel,
				Key: key, Name: n.Text, Range: n.Range, Resolved: ok,
			})
		case parser.KindDefStatement:
			b.refDef(n)
			// keep walking so an inline body still gets references;
			// the parameter list is excluded below
			return true
		case parser.KindParameterList:
			return false
		case parser.KindLibraryStmt:
			for _, fn := range n.ChildrenOfKind(parser.KindFunctionName) {
				b.addRef(&Reference{
					Kind: RefImport, Symbol: SymbolFunction,
					Key: strings.ToLower(fn.Text), Name: fn.Text, Range: fn.Range,
					Resolved: true,
				})
			}
			return false
		case parser.KindNumericUserFn, parser.KindStringUserFn,
			parser.KindNumericSysFn, parser.KindStringSysFn:
			// argument identifiers are picked up as the walk descends
			b.refCall(n)
		case parser.KindNumberIdent, parser.KindStringIdent:
			b.refVariable(n)
		}
		return true
	})
}

// refDef emits references for a definition: the function name and its
// parameter declarations.
func (b *builder) refDef(def *parser.Node) {
	nameNode := def.ChildOfKind(parser.KindFunctionName)
	if nameNode == nil || nameNode.Missing {
		return
	}
	b.addRef(&Reference{
		Kind: RefDefinition, Symbol: SymbolFunction,
		Key: strings.ToLower(nameNode.Text), Name: nameNode.Text,
		Range: nameNode.Range, Resolved: true,
	})
	if pl := def.ChildOfKind(parser.KindParameterList); pl != nil {
		for _, param := range pl.ChildrenOfKind(parser.KindParameter) {
			for _, pc := range param.Children {
				if pc.Kind == parser.KindNumberIdent || pc.Kind == parser.KindStringIdent {
					b.refParam(def, pc)
				}
			}
		}
	}
}

func (b *builder) refParam(def, name *parser.Node) {
	key := strings.ToLower(name.Text)
	scope := b.doc.ScopeAt(name.Range.Start)
	scopeID := scope.ID
	if scope.Kind != ScopeFunction {
		// inline def params live in the def's own scope
		for _, s := range b.doc.Scopes {
			if s.Kind == ScopeFunction && s.Range == def.Range {
				scopeID = s.ID
			}
		}
	}
	b.ensureVariable(scopeID, name, true)
	if v := b.doc.Variables[VarKey(scopeID, key)]; v != nil {
		v.FromParam = true
	}
	b.addRef(&Reference{
		Kind: RefDefinition, Symbol: SymbolVariable,
		Key: key, Name: name.Text, Range: name.Range,
		ScopeID: scopeID, Resolved: true,
	})
}

func (b *builder) refCall(call *parser.Node) {
	nameNode := call.ChildOfKind(parser.KindFunctionName)
	if nameNode == nil {
		return
	}
	ref := &Reference{
		Kind: RefCall, Symbol: SymbolFunction,
		Key: strings.ToLower(nameNode.Text), Name: nameNode.Text,
		Range: nameNode.Range,
	}
	if args := call.ChildOfKind(parser.KindArgumentList); args != nil {
		ref.Args = CollectCallArgs(args)
	}
	b.addRef(ref)
}

func (b *builder) refVariable(n *parser.Node) {
	if n.Missing || n.Text == "" {
		return
	}
	key := strings.ToLower(n.Text)
	scope := b.doc.ScopeAt(n.Range.Start)
	scopeID := b.doc.ResolveVariable(scope, key)
	kind := RefRead
	if b.writeSet[n] {
		kind = RefWrite
	}
	b.ensureVariable(scopeID, n, kind == RefWrite)
	b.addRef(&Reference{
		Kind: kind, Symbol: SymbolVariable,
		Key: key, Name: n.Text, Range: n.Range,
		ScopeID: scopeID, Resolved: true,
	})
}

// ensureVariable creates the variable entry on first sight. The first
// write becomes the definition site; a read-only variable keeps its
// first read as the site.
func (b *builder) ensureVariable(scopeID int, n *parser.Node, isWrite bool) {
	key := strings.ToLower(n.Text)
	vk := VarKey(scopeID, key)
	if _, ok := b.doc.Variables[vk]; ok {
		return
	}
	kind := varKindForName(n.Text)
	if n.Parent != nil && n.Parent.Kind == parser.KindElementRef {
		if kind == VarString {
			kind = VarStringArray
		} else {
			kind = VarNumberArray
		}
	} else if prevSiblingIsMat(n) {
		if kind == VarString {
			kind = VarStringArray
		} else {
			kind = VarNumberArray
		}
	}
	b.doc.Variables[vk] = &SymbolEntry{
		Kind:           SymbolVariable,
		Name:           n.Text,
		Key:            key,
		URI:            b.doc.URI,
		Range:          n.Range,
		SelectionRange: n.Range,
		ScopeID:        scopeID,
		VarKind:        kind,
	}
}

func prevSiblingIsMat(n *parser.Node) bool {
	if n.Parent == nil {
		return false
	}
	var prev *parser.Node
	for _, c := range n.Parent.Children {
		if c == n {
			break
		}
		prev = c
	}
	return prev != nil && prev.Kind == parser.KindKeyword && strings.EqualFold(prev.Text, "mat")
}

// CollectCallArgs splits an argument list on top-level commas and infers
// each argument's value kind.
func CollectCallArgs(list *parser.Node) []CallArg {
	var out []CallArg
	var current []*parser.Node
	depth := 0
	flush := func() {
		if len(current) == 0 {
			return
		}
		out = append(out, CallArg{
			Kind:  argKind(current),
			Range: spanOf(current),
		})
		current = nil
	}
	for _, c := range list.Children {
		if c.Kind == parser.KindOperator {
			switch c.Text {
			case "(":
				if depth > 0 {
					current = append(current, c)
				}
				depth++
				continue
			case ")":
				depth--
				if depth > 0 {
					current = append(current, c)
				}
				continue
			case ",", ";":
				if depth == 1 {
					flush()
					continue
				}
			}
		}
		if depth >= 1 {
			current = append(current, c)
		}
	}
	flush()
	return out
}

func spanOf(nodes []*parser.Node) protocol.Range {
	r := nodes[0].Range
	r.End = nodes[len(nodes)-1].Range.End
	return r
}

// argKind infers the value kind of one argument expression. Mixed or
// operator-bearing expressions default to numeric unless a string
// operand is present.
func argKind(nodes []*parser.Node) VarKind {
	isMat := false
	for _, n := range nodes {
		if n.Kind == parser.KindKeyword && strings.EqualFold(n.Text, "mat") {
			isMat = true
			continue
		}
		switch n.Kind {
		case parser.KindStringLiteral, parser.KindStringIdent, parser.KindStringUserFn, parser.KindStringSysFn:
			if isMat {
				return VarStringArray
			}
			return VarString
		case parser.KindNumberLiteral, parser.KindNumberIdent, parser.KindNumericUserFn, parser.KindNumericSysFn, parser.KindElementRef:
			if isMat {
				return VarNumberArray
			}
			return VarNumber
		}
	}
	return VarUnknown
}

func (b *builder) addRef(r *Reference) {
	r.URI = b.doc.URI
	b.doc.References = append(b.doc.References, r)
}
