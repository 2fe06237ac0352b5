package normalize

import (
	"github.com/rvasm/rvasm/internal/ast"
	"github.com/rvasm/rvasm/internal/diag"
)

// collectLabels walks root once before the main normalization pass,
// recording every LabeledBlock's name and reporting a CodeDuplicateLabel
// diagnostic for any name repeated among the direct siblings of one line
// list — "unique within their enclosing labeled-block scope" (spec.md §3
// invariants). The returned set drives undefined-symbol checking for bare
// label references during folding.
func collectLabels(root *ast.Root, sink *diag.Sink) map[string]bool {
	all := map[string]bool{}
	if root.Preamble != nil {
		collectLabelsInLines(root.Preamble.Lines, all, sink)
	}
	for _, sec := range root.Sections {
		collectLabelsInLines(sec.Lines, all, sink)
	}
	return all
}

func collectLabelsInLines(lines []*ast.Line, all map[string]bool, sink *diag.Sink) {
	seen := map[string]*ast.LabeledBlock{}
	for _, line := range lines {
		blk, ok := line.Stmt.(*ast.LabeledBlock)
		if !ok {
			continue
		}
		if first, dup := seen[blk.Label]; dup {
			sink.AddAt(blk, diag.SeverityError, diag.CodeDuplicateLabel,
				"label %q redefined (first defined at %s)", blk.Label, first.Span().Position())
		} else {
			seen[blk.Label] = blk
		}
		all[blk.Label] = true
		collectLabelsInLines(blk.Lines, all, sink)
	}
}
