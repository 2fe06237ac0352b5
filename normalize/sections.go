package normalize

import (
	"github.com/rvasm/rvasm/internal/ast"
	"github.com/rvasm/rvasm/internal/diag"
)

// checkSectionRule validates one statement against the rules for the
// section it appears in (spec.md §4.5 item 5) and the open-question
// decision that #CONST is permitted in a section body but not inside a
// nested LabeledBlock (SPEC_FULL.md Open Question Decisions #1).
func (n *normalizer) checkSectionRule(stmt ast.Statement, kind ast.SectionKind) {
	if d, ok := stmt.(*ast.Directive); ok && d.Kind == ast.DirConst && n.inBlock() {
		n.sink.AddAt(d, diag.SeverityError, diag.CodeSectionRuleViolation,
			"#CONST is not permitted inside a labeled block")
		return
	}
	if kind == sectionNone {
		return // preamble statements are constrained separately by the parser
	}

	switch s := stmt.(type) {
	case *ast.LabeledBlock:
		return // labels are permitted in every section
	case *ast.Directive:
		n.checkDirectiveSection(s, kind)
	case *ast.Instruction:
		if kind != ast.SectionText {
			n.sink.AddAt(s, diag.SeverityError, diag.CodeSectionRuleViolation,
				"instructions are only permitted in %s", ast.SectionText)
		}
	}
}

func (n *normalizer) checkDirectiveSection(d *ast.Directive, kind ast.SectionKind) {
	isData := d.Kind == ast.DirBytes || d.Kind == ast.DirHalves || d.Kind == ast.DirWords
	isRes := d.Kind == ast.DirResBytes || d.Kind == ast.DirResHalves || d.Kind == ast.DirResWords
	isConst := d.Kind == ast.DirConst

	var ok bool
	switch kind {
	case ast.SectionBSS:
		ok = isRes
	case ast.SectionData:
		ok = isData || isRes || isConst
	case ast.SectionText:
		ok = isConst
	}
	if !ok {
		n.sink.AddAt(d, diag.SeverityError, diag.CodeSectionRuleViolation,
			"this directive is not permitted in a %s section", kind)
	}
}
