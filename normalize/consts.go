package normalize

import (
	"sort"

	"golang.org/x/exp/maps"

	"github.com/rvasm/rvasm/internal/ast"
	"github.com/rvasm/rvasm/internal/diag"
)

// constDef is one #CONST binding collected from the preamble or a
// section body (spec.md §4.5 item 1: names are globally unique across the
// translation unit, wherever they are declared).
type constDef struct {
	name  string
	value ast.Immediate
	node  *ast.Directive
}

// BuildConstEnv collects every #CONST in the translation unit, rejects
// duplicate names, detects cyclic dependencies between constants with a
// classical DFS over color marks (spec.md §9), and returns the fully
// folded value of every acyclic constant, ready for foldImmediate to
// substitute into LabelRef nodes.
func BuildConstEnv(root *ast.Root, labels map[string]bool, sink *diag.Sink) map[string]int64 {
	defs := map[string]*constDef{}
	var order []string

	collect := func(lines []*ast.Line) {
		for _, line := range lines {
			d, ok := line.Stmt.(*ast.Directive)
			if !ok || d.Kind != ast.DirConst {
				continue
			}
			if existing, dup := defs[d.ConstName]; dup {
				sink.AddAt(d, diag.SeverityError, diag.CodeRedefinedConst,
					"constant %q redefined (first defined at %s)", d.ConstName, existing.node.Span().Position())
				continue
			}
			defs[d.ConstName] = &constDef{name: d.ConstName, value: d.ConstValue, node: d}
			order = append(order, d.ConstName)
		}
	}
	if root.Preamble != nil {
		collect(root.Preamble.Lines)
	}
	for _, sec := range root.Sections {
		collect(sec.Lines)
	}

	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS path
		black = 2 // fully resolved
	)
	color := make(map[string]int, len(defs))
	resolved := make(map[string]int64, len(defs))

	var path []string
	var visit func(name string) (int64, bool)
	visit = func(name string) (int64, bool) {
		def, ok := defs[name]
		if !ok {
			return 0, false // not a constant; caller treats it as a label reference
		}
		switch color[name] {
		case black:
			return resolved[name], true
		case gray:
			reportCycle(sink, def.node, append(append([]string{}, path...), name))
			return 0, false
		}
		color[name] = gray
		path = append(path, name)
		v, ok := evalConstExpr(def.value, defs, labels, color, resolved, visit, sink)
		path = path[:len(path)-1]
		color[name] = black
		if ok {
			resolved[name] = v
		}
		return v, ok
	}

	for _, name := range order {
		visit(name)
	}
	return resolved
}

// evalConstExpr folds a #CONST's value expression against the in-progress
// const environment, resolving nested #CONST references via visit so the
// DFS cycle check applies transitively. A name that is neither a #CONST nor
// a label anywhere in the unit is reported here, at the const's own
// definition, rather than deferred to whichever instruction happens to use
// the unresolved constant later (that would blame the usage site for a
// problem that belongs to the definition).
func evalConstExpr(imm ast.Immediate, defs map[string]*constDef, labels map[string]bool, color map[string]int, resolved map[string]int64, visit func(string) (int64, bool), sink *diag.Sink) (int64, bool) {
	switch e := imm.(type) {
	case *ast.Literal:
		return e.Int, true
	case *ast.LabelRef:
		if _, isConst := defs[e.Name]; isConst {
			return visit(e.Name)
		}
		if !labels[e.Name] {
			sink.AddAt(e, diag.SeverityError, diag.CodeUndefinedConst,
				"constant expression references undefined name %q", e.Name)
		}
		return 0, false // reference to an ordinary label (or undefined), not foldable here
	case *ast.UnaryExpr:
		v, ok := evalConstExpr(e.Operand, defs, labels, color, resolved, visit, sink)
		if !ok {
			return 0, false
		}
		return evalUnary(e.Op, v), true
	case *ast.BinaryExpr:
		l, lok := evalConstExpr(e.Left, defs, labels, color, resolved, visit, sink)
		r, rok := evalConstExpr(e.Right, defs, labels, color, resolved, visit, sink)
		if !lok || !rok {
			return 0, false
		}
		v, ok := evalBinary(e.Op, l, r)
		if !ok {
			sink.AddAt(e, diag.SeverityError, diag.CodeDivByZero, "division or remainder by zero")
		}
		return v, ok
	case *ast.TernaryExpr:
		c, ok := evalConstExpr(e.Cond, defs, labels, color, resolved, visit, sink)
		if !ok {
			return 0, false
		}
		if c != 0 {
			return evalConstExpr(e.Then, defs, labels, color, resolved, visit, sink)
		}
		return evalConstExpr(e.Else, defs, labels, color, resolved, visit, sink)
	default:
		return 0, false
	}
}

func reportCycle(sink *diag.Sink, node *ast.Directive, path []string) {
	names := maps.Keys(uniqueSet(path))
	sort.Strings(names)
	sink.AddAt(node, diag.SeverityError, diag.CodeConstCycle,
		"cyclic #CONST dependency involving %v", names)
}

func uniqueSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
