package markup

import (
	"github.com/FocuswithJustin/termdoc/core/content"
)

// ClassifyRoundTrip parses markup, re-serializes it and reports how much of
// the input survived.
//
//	L0: the input is already canonical.
//	L1: the canonical form differs only in layout (wrappers, entities).
//	L2: elements, attributes or text outside the grammar were dropped.
func ClassifyRoundTrip(markup string) *content.LossReport {
	_, report := ParseAndClassify(markup)
	return report
}

// ParseAndClassify is ClassifyRoundTrip that also returns the parsed tree.
func ParseAndClassify(markup string) (*content.Root, *content.LossReport) {
	tree, warnings := ParseWithWarnings(markup)
	canonical := Serialize(tree)

	report := &content.LossReport{
		Input:     markup,
		Canonical: canonical,
	}
	switch {
	case canonical == markup:
		report.LossClass = content.LossL0
	case len(warnings) > 0 || !content.Equal(Parse(canonical), tree):
		report.LossClass = content.LossL2
	default:
		report.LossClass = content.LossL1
	}
	for _, w := range warnings {
		report.AddWarning(w)
	}
	return tree, report
}
