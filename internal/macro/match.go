package macro

import "github.com/rvasm/rvasm/internal/ast"

// capture is one bound fragment: the typed kind it was captured as, and
// the exact token range it spanned in the invocation body. Transcription
// splices Tokens back in verbatim rather than re-rendering a parsed AST
// node, so a macro-expanded statement's tokens still carry their original
// spans into the invocation site for diagnostics.
type capture struct {
	kind     ast.CaptureKind
	tokens   []ast.Token
	repeated bool // true if bound inside a matcher repetition group (a vector capture)
}

// bindings maps a capture name to one entry per time it was matched: a
// scalar capture (outside any repetition group) has exactly one entry; a
// capture inside a `$(...)Q` group has one entry per iteration, in order
// (spec.md §9 "parallel vectors keyed by the capture name").
type bindings map[string][]capture

// matchResult is the successful outcome of matching one macro rule.
type matchResult struct {
	binds   bindings
	repeatN int // the iteration count of the rule's own repetition group, if any
}

// maxGroupIterations bounds the matcher's greedy repetition loop so a
// malformed rule (e.g. a group whose body can match zero tokens) cannot
// spin forever.
const maxGroupIterations = 4096

// tryMatchRule attempts rule's matcher against the full token stream of
// an invocation body. It succeeds only if the matcher consumes every
// token (spec.md §4.4 step 2: a rule must match the invocation's entire
// argument list, not a prefix of it).
func tryMatchRule(rule *ast.MacroRule, body []ast.Token) (matchResult, bool) {
	p := ast.NewParser(body)
	binds := bindings{}
	if !matchItems(rule.Matcher, 0, p, binds, false) || !p.Cursor().AtEOF() {
		return matchResult{}, false
	}
	return matchResult{binds: binds, repeatN: firstGroupIterCount(rule.Matcher, binds)}, true
}

// firstGroupIterCount finds the rule's first repetition group in the
// matcher that contains a capture and reports how many iterations it
// matched, by looking up that capture's bindings. Rules with no such group
// report 0.
func firstGroupIterCount(items []ast.MacroMatchItem, binds bindings) int {
	for _, item := range items {
		if item.Kind != ast.MatchGroup {
			continue
		}
		if n, ok := firstCaptureCount(item.Inner, binds); ok {
			return n
		}
	}
	return 0
}

func firstCaptureCount(items []ast.MacroMatchItem, binds bindings) (int, bool) {
	for _, item := range items {
		switch item.Kind {
		case ast.MatchCapture:
			return len(binds[item.CaptureName]), true
		case ast.MatchGroup:
			if n, ok := firstCaptureCount(item.Inner, binds); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// matchItems matches items[idx:] against p's remaining tokens, recording
// captures into binds as it goes. inGroup reports whether items is the body
// of a matcher repetition group (possibly nested inside another one); it is
// threaded down so a capture can record whether it was bound as a scalar or
// as one iteration of a vector (spec.md §4.4 step 5). matchItems returns
// false (and leaves p and binds exactly as it found them) if no match is
// possible, letting the caller try the rule's next alternative or backtrack
// a containing group by one iteration.
func matchItems(items []ast.MacroMatchItem, idx int, p *ast.Parser, binds bindings, inGroup bool) bool {
	if idx == len(items) {
		return true
	}
	item := items[idx]
	switch item.Kind {
	case ast.MatchLiteral:
		return matchLiteral(item, items, idx, p, binds, inGroup)
	case ast.MatchCapture:
		return matchCapture(item, items, idx, p, binds, inGroup)
	case ast.MatchGroup:
		return matchGroup(item, items, idx, p, binds, inGroup)
	default:
		return false
	}
}

func matchLiteral(item ast.MacroMatchItem, items []ast.MacroMatchItem, idx int, p *ast.Parser, binds bindings, inGroup bool) bool {
	tok := p.Cursor().Peek()
	if tok.Kind != item.LiteralTok.Kind || tok.Text() != item.LiteralTok.Text() {
		return false
	}
	mark := p.Cursor().Checkpoint()
	p.Cursor().Next()
	if matchItems(items, idx+1, p, binds, inGroup) {
		return true
	}
	p.Cursor().Restore(mark)
	return false
}

func matchCapture(item ast.MacroMatchItem, items []ast.MacroMatchItem, idx int, p *ast.Parser, binds bindings, inGroup bool) bool {
	mark := p.Cursor().Checkpoint()
	if !captureOne(item.Capture, p) {
		p.Cursor().Restore(mark)
		return false
	}
	c := capture{kind: item.Capture, tokens: p.Cursor().Slice(mark, p.Cursor().Checkpoint()), repeated: inGroup}
	binds[item.CaptureName] = append(binds[item.CaptureName], c)
	if matchItems(items, idx+1, p, binds, inGroup) {
		return true
	}
	binds[item.CaptureName] = binds[item.CaptureName][:len(binds[item.CaptureName])-1]
	p.Cursor().Restore(mark)
	return false
}

// captureOne dispatches to the parser's reentrant sub-procedure for the
// requested typed capture (spec.md §9). It reports success only; the
// parsed value itself is discarded; matchCapture records the consumed
// token range instead.
func captureOne(kind ast.CaptureKind, p *ast.Parser) bool {
	switch kind {
	case ast.CaptureInst:
		_, ok := p.ParseInstruction()
		return ok
	case ast.CaptureReg:
		_, ok := p.ParseReg()
		return ok
	case ast.CaptureDir:
		_, ok := p.ParseDirective()
		return ok
	case ast.CaptureIdent:
		_, ok := p.ParseIdentTok()
		return ok
	case ast.CaptureImm:
		_, ok := p.ParseImm()
		return ok
	case ast.CaptureStmt:
		_, ok := p.ParseStmt()
		return ok
	default:
		return false
	}
}

// matchGroup matches item's body zero or more times (per its quantifier),
// then matches the rest of items. If the rest fails to match, it
// backtracks by giving up the group's last iteration and retrying — the
// one place in this matcher that genuinely needs to search across
// iteration-count alternatives, since a greedy group can over-consume
// tokens the remainder of the rule actually needed (spec.md §4.4 step 2).
func matchGroup(item ast.MacroMatchItem, items []ast.MacroMatchItem, idx int, p *ast.Parser, binds bindings, inGroup bool) bool {
	groupStart := p.Cursor().Checkpoint()
	maxIter := maxGroupIterations
	if item.Quant == ast.RepeatZeroOrOne {
		maxIter = 1
	}

	type iterMark struct {
		cursorBefore int
		added        map[string]int
	}
	var marks []iterMark

	for len(marks) < maxIter {
		before := p.Cursor().Checkpoint()
		lens := captureLens(binds)
		if !matchItems(item.Inner, 0, p, binds, true) {
			break
		}
		if p.Cursor().Checkpoint() == before {
			// Zero-width iteration: stop to avoid looping forever: it would
			// never fail and never make progress.
			break
		}
		marks = append(marks, iterMark{cursorBefore: before, added: lenDeltas(lens, binds)})
	}

	minIter := 0
	if item.Quant == ast.RepeatOneOrMore {
		minIter = 1
	}

	for len(marks) >= minIter {
		if matchItems(items, idx+1, p, binds, inGroup) {
			return true
		}
		if len(marks) == 0 {
			break
		}
		last := marks[len(marks)-1]
		marks = marks[:len(marks)-1]
		for name, n := range last.added {
			binds[name] = binds[name][:len(binds[name])-n]
		}
		p.Cursor().Restore(last.cursorBefore)
	}

	p.Cursor().Restore(groupStart)
	return false
}

func captureLens(binds bindings) map[string]int {
	lens := make(map[string]int, len(binds))
	for name, vals := range binds {
		lens[name] = len(vals)
	}
	return lens
}

func lenDeltas(before map[string]int, binds bindings) map[string]int {
	deltas := make(map[string]int)
	for name, vals := range binds {
		delta := len(vals) - before[name]
		if delta != 0 {
			deltas[name] = delta
		}
	}
	return deltas
}
