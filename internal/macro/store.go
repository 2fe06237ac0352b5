// Package macro implements the macro subsystem of spec.md §4.3/§4.4: a
// store of typed-capture rules, a backtracking matcher, a template
// transcriber, and an expander that replaces macro invocations in an
// already-parsed ast.Root with the statements their matching rule
// produces.
//
// This is kept separate from internal/ast deliberately: ast.Parser parses
// a macro-invocation-preserving tree (it never expands anything itself),
// and this package walks that tree afterward. Splitting it this way
// avoids an import cycle — this package needs to import internal/ast for
// its node types, so internal/ast cannot import this package back.
package macro

import (
	"github.com/rvasm/rvasm/internal/ast"
	"github.com/rvasm/rvasm/internal/diag"
)

// Store holds every macro definition visible during expansion, keyed by
// name; each definition keeps its rules in declaration order for
// deterministic first-match-wins lookup (spec.md §4.4 step 1).
type Store struct {
	defs map[string]*ast.MacroDefinition
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{defs: make(map[string]*ast.MacroDefinition)}
}

// Define registers a macro definition, reporting CodeRedefinedMacro if the
// name is already bound (spec.md §4.3: redefinition is a diagnostic, not
// silently allowed to shadow).
func (s *Store) Define(def *ast.MacroDefinition, sink *diag.Sink) {
	if existing, ok := s.defs[def.Name]; ok {
		sink.AddAt(def, diag.SeverityError, diag.CodeRedefinedMacro,
			"macro %q redefined (first defined at %s)", def.Name, existing.Span().Position())
		return
	}
	s.defs[def.Name] = def
}

// Lookup returns the definition for name, if any.
func (s *Store) Lookup(name string) (*ast.MacroDefinition, bool) {
	d, ok := s.defs[name]
	return d, ok
}

// CollectDefinitions walks the preamble (the only place definitions are
// legal, per the GLOSSARY) and registers every macro it finds.
func CollectDefinitions(root *ast.Root, sink *diag.Sink) *Store {
	store := NewStore()
	if root.Preamble == nil {
		return store
	}
	for _, line := range root.Preamble.Lines {
		if def, ok := line.Stmt.(*ast.MacroDefinition); ok {
			store.Define(def, sink)
		}
	}
	return store
}
