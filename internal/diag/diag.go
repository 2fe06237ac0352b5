// Package diag collects the diagnostics produced by every stage of the
// front end beyond lexing and parsing (which use ast.ErrorList directly).
// It generalizes the teacher's internal/loader/errorlist.go ErrorList: a
// flat diagnostic list with a warning/error split and a panic-based abort
// once too many real errors have accumulated.
package diag

import (
	"errors"
	"fmt"

	"github.com/rvasm/rvasm/internal/ast"
)

// Severity classifies a Diagnostic. Warnings never trigger the max-error
// abort; only Errors count toward it (spec.md §7, SPEC_FULL.md Supplemented
// Features: "diagnostic severities beyond error/fatal").
type Severity byte

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Code is a short, stable identifier for a diagnostic's kind, stable across
// wording changes so tooling built on this module can match on it instead
// of the message text.
type Code string

const (
	CodeUnknownRegister     Code = "unknown-register"
	CodeExtensionDisabled   Code = "extension-disabled"
	CodeSectionRuleViolation Code = "section-rule-violation"
	CodeUndefinedConst      Code = "undefined-const"
	CodeRedefinedConst      Code = "redefined-const"
	CodeConstCycle          Code = "const-cycle"
	CodeDivByZero           Code = "division-by-zero"
	CodeImmediateOverflow   Code = "immediate-overflow"
	CodeRedefinedMacro      Code = "redefined-macro"
	CodeUndefinedMacro      Code = "undefined-macro"
	CodeMacroNoMatch        Code = "macro-no-match"
	CodeMacroRecursionLimit Code = "macro-recursion-limit"
	CodeMacroDelimiterMismatch Code = "macro-delimiter-mismatch"
	CodeMacroCaptureDepthMismatch Code = "macro-capture-depth-mismatch"
	CodeSyntax              Code = "syntax"
	CodeDuplicateLabel      Code = "duplicate-label"
	CodeUnknownSymbol       Code = "unknown-symbol"
	CodeInvalidImmediate    Code = "invalid-immediate"
	// CodeInternalAssertion marks a compiler-internal invariant violation
	// (spec.md §7's InternalAssertion kind): reachable only if an earlier
	// pipeline stage let through something a later stage assumes can't
	// happen, e.g. a macro invocation that survived expand.go unexpanded.
	CodeInternalAssertion   Code = "internal-assertion"
)

// Diagnostic is one reported problem, anchored to a span so a renderer
// built on top of this module (out of scope here, per spec.md §1) can
// underline the offending source text.
type Diagnostic struct {
	Span     ast.Span
	Severity Severity
	Code     Code
	Msg      string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s [%s]: %s", d.Span.Position(), d.Severity, d.Code, d.Msg)
}

// Position satisfies the teacher's PositionError convention
// (asm/error.go's PositionError interface).
func (d *Diagnostic) Position() ast.Position {
	return d.Span.Position()
}

// IsWarning satisfies the teacher's Warning interface (asm/error.go).
func (d *Diagnostic) IsWarning() bool {
	return d.Severity == SeverityWarning
}

// errAbort is the panic sentinel thrown once too many errors accumulate,
// mirroring internal/loader/errorlist.go's errCancelCompilation.
var errAbort = errors.New("diag: too many errors, compilation aborted")

// ErrAborted reports whether err is (or wraps) the abort sentinel.
func ErrAborted(err error) bool {
	return errors.Is(err, errAbort)
}

// Sink accumulates diagnostics for one compilation and aborts it by
// panicking once more than maxErrors real errors have been recorded.
type Sink struct {
	diags     []*Diagnostic
	numErrors int
	maxErrors int
}

// NewSink creates a sink. maxErrors <= 0 means unlimited.
func NewSink(maxErrors int) *Sink {
	return &Sink{maxErrors: maxErrors}
}

// CatchAbort recovers the panic thrown by Add once the error budget is
// exhausted. Call it deferred around any code that calls Add, same idiom
// as ErrorList.CatchAbort in the teacher project.
func (s *Sink) CatchAbort() {
	r := recover()
	if r == nil {
		return
	}
	if r != error(errAbort) {
		panic(r)
	}
}

// Add records a diagnostic and panics errAbort if the error budget (not
// counting warnings) is now exceeded.
func (s *Sink) Add(span ast.Span, sev Severity, code Code, format string, args ...any) {
	d := &Diagnostic{Span: span, Severity: sev, Code: code, Msg: fmt.Sprintf(format, args...)}
	s.diags = append(s.diags, d)
	if sev == SeverityWarning {
		return
	}
	s.numErrors++
	if s.maxErrors > 0 && s.numErrors > s.maxErrors {
		panic(errAbort)
	}
}

// AddAt is Add anchored to a node's span rather than a bare Span.
func (s *Sink) AddAt(node ast.Node, sev Severity, code Code, format string, args ...any) {
	s.Add(node.Span(), sev, code, format, args...)
}

// All returns every recorded diagnostic, warnings and errors together, in
// the order they were added.
func (s *Sink) All() []*Diagnostic {
	return s.diags
}

// Errors returns only the error-severity diagnostics.
func (s *Sink) Errors() []*Diagnostic {
	out := make([]*Diagnostic, 0, s.numErrors)
	for _, d := range s.diags {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns only the warning-severity diagnostics.
func (s *Sink) Warnings() []*Diagnostic {
	var out []*Diagnostic
	for _, d := range s.diags {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

// HasError reports whether any error-severity diagnostic was recorded.
func (s *Sink) HasError() bool {
	return s.numErrors > 0
}

// AddErrorList folds an *ast.ErrorList (lexer/parser diagnostics) into the
// sink, so callers see one unified diagnostic stream regardless of which
// pipeline stage produced it.
func (s *Sink) AddErrorList(list *ast.ErrorList) {
	for _, e := range list.Errors {
		s.Add(e.Span, SeverityError, CodeSyntax, "%s", e.Msg)
	}
}
