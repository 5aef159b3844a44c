package editor

import (
	"strings"

	"github.com/FocuswithJustin/termdoc/core/content"
	"github.com/FocuswithJustin/termdoc/core/errors"
)

// Toggle refusals.
var (
	ErrCrossBlock  = errors.NewRejected("cross-block", "Tagged terms cannot span multiple blocks.")
	ErrNoSelection = errors.NewRejected("no-selection", "Please select some text first")
)

// Selection is a range between two cursors. Anchor is where the selection
// started; it need not precede Focus.
type Selection struct {
	Anchor Position `json:"anchor"`
	Focus  Position `json:"focus"`
}

// Collapsed reports whether the selection is a bare cursor.
func (s Selection) Collapsed() bool {
	return s.Anchor == s.Focus
}

// Caret returns a collapsed selection at pos.
func Caret(pos Position) Selection {
	return Selection{Anchor: pos, Focus: pos}
}

// Prompter supplies the identifier for a new tagged term. Returning an
// empty string cancels.
type Prompter interface {
	TermID(selected string) string
}

// PromptFunc adapts a function to Prompter.
type PromptFunc func(selected string) string

// TermID implements Prompter.
func (f PromptFunc) TermID(selected string) string { return f(selected) }

// FixedID is a Prompter that always answers with the same identifier.
type FixedID string

// TermID implements Prompter.
func (id FixedID) TermID(string) string { return string(id) }

// ToggleResult is what a successful Toggle did.
type ToggleResult int

const (
	// ToggleCancelled means the prompt returned no identifier.
	ToggleCancelled ToggleResult = iota
	// ToggleUnwrapped means one or more tagged terms became plain text.
	ToggleUnwrapped
	// ToggleWrapped means the selection became a new tagged term.
	ToggleWrapped
)

func (r ToggleResult) String() string {
	switch r {
	case ToggleCancelled:
		return "cancelled"
	case ToggleUnwrapped:
		return "unwrapped"
	case ToggleWrapped:
		return "wrapped"
	}
	return "unknown"
}

type span struct {
	start, end int
}

// runSpans returns the visible extent of each run.
func runSpans(runs []content.Run) []span {
	out := make([]span, len(runs))
	at := 0
	for i, r := range runs {
		n := content.VisibleLen(r.Literal())
		out[i] = span{at, at + n}
		at += n
	}
	return out
}

// Toggle wraps the selected text in a tagged term, or unwraps the terms the
// selection touches.
//
// The anchor sitting inside a term unwraps that term. Otherwise every term
// the range touches is unwrapped. Otherwise the range must lie within one
// paragraph or item (ErrCrossBlock) and contain visible text
// (ErrNoSelection), and prompt is asked for the identifier of the new term.
func (d *Document) Toggle(sel Selection, prompt Prompter) (ToggleResult, error) {
	if err := d.checkPosition(sel.Anchor); err != nil {
		return ToggleCancelled, err
	}
	if err := d.checkPosition(sel.Focus); err != nil {
		return ToggleCancelled, err
	}

	anchor := d.get(sel.Anchor.Node)
	for i, sp := range runSpans(anchor.runs) {
		if _, ok := anchor.runs[i].(content.TermRun); ok && sp.start <= sel.Anchor.Offset && sel.Anchor.Offset < sp.end {
			anchor.runs = unwrapRun(anchor.runs, i)
			return ToggleUnwrapped, nil
		}
	}

	start, end := d.ordered(sel)
	if d.unwrapRange(start, end) {
		return ToggleUnwrapped, nil
	}

	if start.Node != end.Node {
		return ToggleCancelled, ErrCrossBlock
	}

	n := d.get(start.Node)
	k, sp, ok := textRunCovering(n.runs, start.Offset, end.Offset)
	if !ok {
		return ToggleCancelled, ErrNoSelection
	}
	value := n.runs[k].Literal()
	from, to := start.Offset-sp.start, end.Offset-sp.start
	selected := content.SliceVisible(value, from, to)
	if content.IsBlank(selected) {
		return ToggleCancelled, ErrNoSelection
	}

	if prompt == nil {
		return ToggleCancelled, nil
	}
	id := strings.TrimSpace(prompt.TermID(content.Visible(selected)))
	if id == "" {
		return ToggleCancelled, nil
	}

	left, rest := content.SplitFragment(value, from)
	_, right := content.SplitFragment(rest, to-from)
	replaced := []content.Run{content.Text(left), content.Term(id, selected), content.Text(right)}

	runs := make([]content.Run, 0, len(n.runs)+2)
	runs = append(runs, n.runs[:k]...)
	runs = append(runs, replaced...)
	runs = append(runs, n.runs[k+1:]...)
	n.runs = content.MergeRuns(runs)
	return ToggleWrapped, nil
}

// ordered returns the selection's endpoints in document order.
func (d *Document) ordered(sel Selection) (start, end Position) {
	a, f := sel.Anchor, sel.Focus
	if a.Node == f.Node {
		if f.Offset < a.Offset {
			return f, a
		}
		return a, f
	}
	for _, id := range d.inlineOrder() {
		switch id {
		case a.Node:
			return a, f
		case f.Node:
			return f, a
		}
	}
	return a, f
}

// unwrapRange unwraps every term touched by [start, end]. A collapsed range
// touches a term when it sits on either edge of it.
func (d *Document) unwrapRange(start, end Position) bool {
	order := d.inlineOrder()
	inside := false
	changed := false
	for _, id := range order {
		if id == start.Node {
			inside = true
		}
		if !inside {
			continue
		}
		lo, hi := 0, -1
		if id == start.Node {
			lo = start.Offset
		}
		if id == end.Node {
			hi = end.Offset
		}
		n := d.get(id)
		spans := runSpans(n.runs)
		for i := len(n.runs) - 1; i >= 0; i-- {
			if _, ok := n.runs[i].(content.TermRun); !ok {
				continue
			}
			if touches(spans[i], lo, hi, start == end) {
				n.runs = unwrapRun(n.runs, i)
				changed = true
			}
		}
		if id == end.Node {
			break
		}
	}
	return changed
}

// touches reports whether sp intersects [lo, hi). hi < 0 means the range
// runs to the end of the node.
func touches(sp span, lo, hi int, collapsed bool) bool {
	if collapsed {
		return sp.start <= lo && lo <= sp.end
	}
	if hi < 0 {
		return sp.end > lo || (sp.start == sp.end && sp.start >= lo)
	}
	return sp.start < hi && lo < sp.end
}

// textRunCovering finds the text run holding [from, to]. Terms in the way
// have already been unwrapped, so a covering run exists unless the node has
// no text there.
func textRunCovering(runs []content.Run, from, to int) (int, span, bool) {
	for i, sp := range runSpans(runs) {
		if _, ok := runs[i].(content.TextRun); !ok {
			continue
		}
		if sp.start <= from && to <= sp.end {
			return i, sp, true
		}
	}
	return 0, span{}, false
}

func unwrapRun(runs []content.Run, i int) []content.Run {
	out := make([]content.Run, len(runs))
	copy(out, runs)
	out[i] = content.Text(runs[i].Literal())
	return content.MergeRuns(out)
}

func (d *Document) checkPosition(pos Position) error {
	n := d.get(pos.Node)
	if n == nil || (n.kind != KindParagraph && n.kind != KindItem) {
		return errors.NewValidation("position", "cursor must be in a paragraph or list item")
	}
	if pos.Offset < 0 || pos.Offset > content.InlineLen(n.runs) {
		return errors.NewValidation("position", "offset out of range")
	}
	return nil
}
