// Package rvasm is the library facade for the RISC-V-compatible integer-ISA
// assembler front end: it wires the lexer, parser, macro expander, and
// normalizer into a single pipeline and hands back a macro-free, fully
// folded AST ready for a code generator (out of scope for this module)
// to consume, mirroring the teacher's asm.Compiler facade shape.
package rvasm

import (
	"errors"
	"os"

	"github.com/rvasm/rvasm/internal/ast"
	"github.com/rvasm/rvasm/internal/config"
	"github.com/rvasm/rvasm/internal/diag"
	"github.com/rvasm/rvasm/internal/macro"
	"github.com/rvasm/rvasm/normalize"
)

// errCompileFailed is returned from CompileString/CompileFile whenever the
// diagnostic sink recorded at least one error; the diagnostics themselves,
// with position and code, are available from Errors.
var errCompileFailed = errors.New("rvasm: compilation failed, see Errors")

// Assembler runs the full front end over one compilation unit at a time.
// It is not safe for concurrent use: each Compile* call replaces the
// diagnostic sink from the previous one (spec.md §5: single-threaded,
// synchronous, no shared-mutable resources across components).
type Assembler struct {
	opts *config.Options
	sink *diag.Sink
}

// New creates an Assembler. A nil opts uses config.Default().
func New(opts *config.Options) *Assembler {
	if opts == nil {
		opts = config.Default()
	}
	return &Assembler{opts: opts}
}

// CompileString runs the pipeline over program text already held in
// memory. name is used only to annotate diagnostic positions.
func (a *Assembler) CompileString(name, src string) (*ast.Root, error) {
	return a.compile(name, src)
}

// CompileFile reads path from disk and runs the pipeline over its
// contents.
func (a *Assembler) CompileFile(path string) (*ast.Root, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		a.sink = diag.NewSink(a.opts.Diagnostics.MaxErrors)
		return nil, err
	}
	return a.compile(path, string(content))
}

// Errors returns every diagnostic recorded by the most recent Compile*
// call, in the order they were produced.
func (a *Assembler) Errors() []*diag.Diagnostic {
	if a.sink == nil {
		return nil
	}
	return a.sink.All()
}

func (a *Assembler) compile(name, src string) (root *ast.Root, err error) {
	sink := diag.NewSink(a.opts.Diagnostics.MaxErrors)
	a.sink = sink
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok && diag.ErrAborted(e) {
			root, err = nil, errCompileFailed
			return
		}
		panic(r)
	}()

	buf := ast.NewSourceBuffer(name, src)
	tokens, lexErrs := ast.Tokenize(buf)
	sink.AddErrorList(lexErrs)

	p := ast.NewParser(tokens)
	root = p.ParseRoot()
	sink.AddErrorList(p.Errors())
	if sink.HasError() {
		return nil, errCompileFailed
	}

	store := macro.CollectDefinitions(root, sink)
	macro.Expand(root, store, sink, a.opts.Macro.MaxExpansionDepth)
	if sink.HasError() {
		return nil, errCompileFailed
	}

	normalize.Normalize(root, a.opts.ExtensionSet(), sink)
	if sink.HasError() {
		return nil, errCompileFailed
	}
	return root, nil
}
