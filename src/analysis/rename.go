package analysis

import (
	"fmt"
	"strings"
	"unicode"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"br-analyzer/src/builtins"
	"br-analyzer/src/index"
	"br-analyzer/src/internal/errors"
	"br-analyzer/src/parser"
)

// Rename renames the symbol under pos to newName across the
// workspace. The returned edit set is complete or absent: a rejection
// produces no edits at all. Line numbers and builtins cannot be
// renamed.
func (r *Resolver) Rename(u uri.URI, pos protocol.Position, newName string) (*protocol.WorkspaceEdit, error) {
	idx, ok := r.ws.Get(u)
	if !ok {
		return nil, errors.NewUnresolvedSymbolError(fmt.Sprintf("document %s is not indexed", u))
	}
	target := ReferenceAt(idx, pos)
	if target == nil {
		return nil, errors.NewUnresolvedSymbolError("no symbol at the requested position")
	}

	switch target.Symbol {
	case index.SymbolLineNumber:
		return nil, errors.NewUnresolvedSymbolError("line numbers cannot be renamed")
	case index.SymbolFunction:
		if _, local := idx.Functions[target.Key]; !local {
			if len(r.ws.LookupFunction(target.Key)) == 0 && builtins.IsBuiltin(target.Key) {
				return nil, errors.NewUnresolvedSymbolError(
					fmt.Sprintf("'%s' is a system function", target.Name))
			}
		}
	}

	if err := r.validateNewName(idx, target, newName); err != nil {
		return nil, err
	}

	locs := r.FindReferences(u, pos, true)
	if len(locs) == 0 {
		return nil, errors.NewUnresolvedSymbolError("symbol has no occurrences to rename")
	}

	changes := make(map[uri.URI][]protocol.TextEdit)
	for _, loc := range locs {
		changes[loc.URI] = append(changes[loc.URI], protocol.TextEdit{
			Range:   loc.Range,
			NewText: newName,
		})
	}
	return &protocol.WorkspaceEdit{Changes: changes}, nil
}

// validateNewName rejects malformed names and names already taken in
// the target's resolution scope.
func (r *Resolver) validateNewName(idx *index.DocumentIndex, target *index.Reference, newName string) error {
	if !isValidIdent(newName) {
		return errors.NewNameConflictError(target.Name, newName,
			fmt.Sprintf("'%s' is not a valid identifier", newName))
	}
	newKey := strings.ToLower(newName)
	if newKey == target.Key {
		return errors.NewNameConflictError(target.Name, newName,
			"new name is identical to the current name")
	}

	switch target.Symbol {
	case index.SymbolFunction:
		if !strings.HasPrefix(newKey, "fn") || len(newKey) <= 2 {
			return errors.NewNameConflictError(target.Name, newName,
				"user function names must start with 'fn'")
		}
		if stringName(newKey) != stringName(target.Key) {
			return errors.NewNameConflictError(target.Name, newName,
				"renaming cannot change a function's value type")
		}
		if builtins.IsBuiltin(newKey) {
			return errors.NewNameConflictError(target.Name, newName,
				fmt.Sprintf("'%s' is a system function", newName))
		}
		if len(r.ws.LookupFunction(newKey)) > 0 {
			return errors.NewNameConflictError(target.Name, newName,
				fmt.Sprintf("function '%s' is already defined in the workspace", newName))
		}
	case index.SymbolVariable:
		if stringName(newKey) != stringName(target.Key) {
			return errors.NewNameConflictError(target.Name, newName,
				"renaming cannot change a variable's value type")
		}
		if parser.IsKeyword(newKey) {
			return errors.NewNameConflictError(target.Name, newName,
				fmt.Sprintf("'%s' is a reserved word", newName))
		}
		if r.variableTaken(idx, target.ScopeID, newKey) {
			return errors.NewNameConflictError(target.Name, newName,
				fmt.Sprintf("variable '%s' already exists in the target scope", newName))
		}
	case index.SymbolLabel:
		if _, exists := idx.Labels[newKey]; exists {
			return errors.NewNameConflictError(target.Name, newName,
				fmt.Sprintf("label '%s' already exists in this file", newName))
		}
	}
	return nil
}

// variableTaken reports whether newKey already names a variable that
// is visible in the scope owning the target. A function-scope rename
// collides with both its own locals and the globals it reads; a
// global rename collides with the global scope only.
func (r *Resolver) variableTaken(idx *index.DocumentIndex, scopeID int, newKey string) bool {
	if idx.Variable(scopeID, newKey) != nil {
		return true
	}
	if scopeID != index.GlobalScopeID {
		scope := idx.Scopes[scopeID]
		if scope.Assigned[newKey] {
			return true
		}
		// a global with the same name would capture reads inside the
		// function after the rename
		if idx.Variable(index.GlobalScopeID, newKey) != nil {
			return true
		}
	}
	return false
}

func stringName(key string) bool {
	return strings.HasSuffix(key, "$")
}

func isValidIdent(name string) bool {
	base := strings.TrimSuffix(name, "$")
	if base == "" {
		return false
	}
	for i, r := range base {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
