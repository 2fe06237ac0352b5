package macro

import (
	"github.com/rvasm/rvasm/internal/ast"
	"github.com/rvasm/rvasm/internal/diag"
)

// transcriber rewrites a matched rule's transcriber template into a flat
// token stream, substituting each capture reference with the tokens it
// was bound to and expanding each repetition group once per iteration.
type transcriber struct {
	binds    bindings
	fallback int // repeat count for a group with no internal capture reference
	sink     *diag.Sink
	ok       bool
}

// transcribe renders rule's transcriber template given a completed match. It
// reports false if the template references a capture at the wrong depth
// (spec.md §4.4 step 5, §9); the sink already carries the diagnostic, and
// the caller should discard whatever partial token stream came back.
func transcribe(rule *ast.MacroRule, m matchResult, sink *diag.Sink) ([]ast.Token, bool) {
	t := &transcriber{binds: m.binds, fallback: m.repeatN, sink: sink, ok: true}
	out := t.items(rule.Transcriber, 0, false)
	return out, t.ok
}

func (t *transcriber) items(items []ast.TransItem, iterIdx int, hasIterCtx bool) []ast.Token {
	var out []ast.Token
	for _, item := range items {
		switch item.Kind {
		case ast.TransLiteral:
			out = append(out, item.LiteralTok)
		case ast.TransRef:
			out = append(out, t.ref(item, iterIdx, hasIterCtx)...)
		case ast.TransGroup:
			out = append(out, t.group(item)...)
		}
	}
	return out
}

// ref substitutes one capture reference. hasIterCtx reports whether the
// reference sits inside a transcriber repetition group; vals[0].repeated
// reports whether the capture was bound inside a matcher repetition group.
// The two must agree — a scalar capture referenced inside a repetition, or
// a vector capture referenced outside one, is a rule-definition error, not
// something the invocation can be blamed for.
func (t *transcriber) ref(item ast.TransItem, iterIdx int, hasIterCtx bool) []ast.Token {
	vals := t.binds[item.RefName]
	if len(vals) == 0 {
		return nil
	}
	repeated := vals[0].repeated
	switch {
	case hasIterCtx && !repeated:
		t.sink.Add(item.Span, diag.SeverityError, diag.CodeMacroCaptureDepthMismatch,
			"capture %q is bound once, but is referenced inside a repetition group", item.RefName)
		t.ok = false
		return nil
	case !hasIterCtx && repeated:
		t.sink.Add(item.Span, diag.SeverityError, diag.CodeMacroCaptureDepthMismatch,
			"capture %q is bound inside a repetition group, but is referenced outside one", item.RefName)
		t.ok = false
		return nil
	}
	idx := 0
	if hasIterCtx {
		idx = iterIdx
		if idx >= len(vals) {
			idx = len(vals) - 1
		}
	}
	return vals[idx].tokens
}

// group expands a transcriber repetition group. The iteration count is
// inferred, not declared: if the group references a capture that was
// bound inside a matcher repetition group, its binding count drives the
// loop; a group with no internal reference (spec.md §8 scenario 4's
// `push!` example has exactly this — one group repeats a literal
// instruction with no capture at all) falls back to the rule's own
// repetition count, inferred once from the matcher side.
func (t *transcriber) group(item ast.TransItem) []ast.Token {
	count := t.groupIterCount(item)
	var out []ast.Token
	for i := 0; i < count && t.ok; i++ {
		out = append(out, t.items(item.Inner, i, true)...)
	}
	return out
}

func (t *transcriber) groupIterCount(item ast.TransItem) int {
	if n, ok := t.firstRefCount(item.Inner); ok {
		return n
	}
	return t.fallback
}

func (t *transcriber) firstRefCount(items []ast.TransItem) (int, bool) {
	for _, item := range items {
		switch item.Kind {
		case ast.TransRef:
			if vals, ok := t.binds[item.RefName]; ok {
				return len(vals), true
			}
		case ast.TransGroup:
			if n, ok := t.firstRefCount(item.Inner); ok {
				return n, true
			}
		}
	}
	return 0, false
}
