package macro

import (
	"github.com/rvasm/rvasm/internal/ast"
	"github.com/rvasm/rvasm/internal/diag"
)

// Expand replaces every macro invocation reachable from root (preamble,
// section bodies, and nested labeled blocks) with the macro-free
// statements its matching rule expands to (spec.md §4.2, §4.4). It
// mutates root's Lines slices in place. maxDepth bounds recursive
// expansion (a macro invocation whose own expansion invokes the same or
// another macro), guarding against runaway recursion the way the
// teacher's #include depth limit guards file inclusion (asm/error.go's
// ecIncludeDepthLimit). The preamble's macro definitions, already
// registered in store, are removed from the tree.
func Expand(root *ast.Root, store *Store, sink *diag.Sink, maxDepth int) {
	if root.Preamble != nil {
		kept := root.Preamble.Lines[:0]
		for _, line := range root.Preamble.Lines {
			if _, isDef := line.Stmt.(*ast.MacroDefinition); !isDef {
				kept = append(kept, line)
			}
		}
		root.Preamble.Lines = expandLines(kept, store, sink, 0, maxDepth)
	}
	for _, sec := range root.Sections {
		sec.Lines = expandLines(sec.Lines, store, sink, 0, maxDepth)
	}
}

func expandLines(lines []*ast.Line, store *Store, sink *diag.Sink, depth, maxDepth int) []*ast.Line {
	out := make([]*ast.Line, 0, len(lines))
	for _, line := range lines {
		switch stmt := line.Stmt.(type) {
		case nil:
			out = append(out, line)
		case *ast.MacroInvocation:
			expanded := expandInvocation(stmt, store, sink, depth, maxDepth)
			for i, st := range expanded {
				var comment *ast.Token
				if i == len(expanded)-1 {
					comment = line.Comment
				}
				out = append(out, ast.NewLine(st, comment))
			}
		case *ast.LabeledBlock:
			stmt.Lines = expandLines(stmt.Lines, store, sink, depth, maxDepth)
			out = append(out, line)
		default:
			out = append(out, line)
		}
	}
	return out
}

// expandInvocation fully resolves one invocation: it matches a rule,
// transcribes the rule's template, re-parses the result into statements,
// and recursively expands any macro invocations nested inside those
// statements before returning.
func expandInvocation(inv *ast.MacroInvocation, store *Store, sink *diag.Sink, depth, maxDepth int) []ast.Statement {
	if depth >= maxDepth {
		sink.AddAt(inv, diag.SeverityError, diag.CodeMacroRecursionLimit,
			"macro %q exceeded the maximum expansion depth of %d", inv.Name, maxDepth)
		return nil
	}
	def, ok := store.Lookup(inv.Name)
	if !ok {
		sink.AddAt(inv, diag.SeverityError, diag.CodeUndefinedMacro, "undefined macro %q", inv.Name)
		return nil
	}
	if def.Delim != inv.Delim {
		sink.AddAt(inv, diag.SeverityError, diag.CodeMacroDelimiterMismatch,
			"invocation of %q uses delimiter %q, definition uses %q", inv.Name, inv.Delim.Open(), def.Delim.Open())
		return nil
	}
	for _, rule := range def.Rules {
		res, ok := tryMatchRule(rule, inv.Body)
		if !ok {
			continue
		}
		tokens, ok := transcribe(rule, res, sink)
		if !ok {
			return nil
		}
		stmts, errs := ast.ParseStatementSequence(tokens)
		sink.AddErrorList(errs)
		expanded := expandStatements(stmts, store, sink, depth+1, maxDepth)
		inv.Expanded = expanded
		return expanded
	}
	sink.AddAt(inv, diag.SeverityError, diag.CodeMacroNoMatch, "no rule of macro %q matches this invocation", inv.Name)
	return nil
}

// expandStatements recursively expands any macro invocations found among
// stmts (directly, or nested inside a labeled block), in place.
func expandStatements(stmts []ast.Statement, store *Store, sink *diag.Sink, depth, maxDepth int) []ast.Statement {
	out := make([]ast.Statement, 0, len(stmts))
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.MacroInvocation:
			out = append(out, expandInvocation(s, store, sink, depth, maxDepth)...)
		case *ast.LabeledBlock:
			s.Lines = expandLines(s.Lines, store, sink, depth, maxDepth)
			out = append(out, s)
		default:
			out = append(out, stmt)
		}
	}
	return out
}
