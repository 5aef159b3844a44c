package content

import (
	"strconv"
	"strings"
)

// IsEmpty reports whether every block renders to empty or whitespace-only
// markup. Tagged terms and non-empty lists always count as content.
func IsEmpty(r *Root) bool {
	if r == nil {
		return true
	}
	for _, b := range r.Blocks {
		switch b := b.(type) {
		case *Inline:
			if !inlineBlank(b.Runs) {
				return false
			}
		case *List:
			if len(b.Items) > 0 {
				return false
			}
		}
	}
	return true
}

func inlineBlank(runs []Run) bool {
	for _, run := range runs {
		switch run := run.(type) {
		case TermRun:
			return false
		case TextRun:
			if strings.TrimSpace(run.Value) != "" {
				return false
			}
		}
	}
	return true
}

// InlineText returns the visible text of a run sequence.
func InlineText(runs []Run) string {
	var b strings.Builder
	for _, run := range runs {
		b.WriteString(Visible(run.Literal()))
	}
	return b.String()
}

// InlineLen returns the number of visible runes in a run sequence.
func InlineLen(runs []Run) int {
	n := 0
	for _, run := range runs {
		n += VisibleLen(run.Literal())
	}
	return n
}

// ItemText returns the visible text of an item and all its descendants,
// the way a browser reports textContent.
func ItemText(it *Item) string {
	var b strings.Builder
	b.WriteString(InlineText(it.Content.Runs))
	for _, l := range it.Children {
		for _, child := range l.Items {
			b.WriteString(ItemText(child))
		}
	}
	return b.String()
}

// PlainText renders the visible text of a document, one line per inline
// block or list item. Nested items are indented by two spaces per level.
func PlainText(r *Root) string {
	if r == nil {
		return ""
	}
	var lines []string
	for _, b := range r.Blocks {
		switch b := b.(type) {
		case *Inline:
			lines = append(lines, InlineText(b.Runs))
		case *List:
			lines = appendListText(lines, b, 0)
		}
	}
	return strings.Join(lines, "\n")
}

func appendListText(lines []string, l *List, depth int) []string {
	indent := strings.Repeat("  ", depth)
	for i, it := range l.Items {
		bullet := "- "
		if l.Ordered {
			bullet = strconv.Itoa(i+1) + ". "
		}
		lines = append(lines, indent+bullet+InlineText(it.Content.Runs))
		for _, child := range it.Children {
			lines = appendListText(lines, child, depth+1)
		}
	}
	return lines
}

// Terms returns every tagged term in document order.
func Terms(r *Root) []TermRun {
	var out []TermRun
	collect := func(runs []Run) {
		for _, run := range runs {
			if t, ok := run.(TermRun); ok {
				out = append(out, t)
			}
		}
	}
	var walkList func(l *List)
	walkList = func(l *List) {
		for _, it := range l.Items {
			collect(it.Content.Runs)
			for _, c := range it.Children {
				walkList(c)
			}
		}
	}
	for _, b := range r.Blocks {
		switch b := b.(type) {
		case *Inline:
			collect(b.Runs)
		case *List:
			walkList(b)
		}
	}
	return out
}

// Equal reports whether two trees are structurally identical. Nil and empty
// slices compare equal.
func Equal(a, b *Root) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Blocks) != len(b.Blocks) {
		return false
	}
	for i := range a.Blocks {
		if !blockEqual(a.Blocks[i], b.Blocks[i]) {
			return false
		}
	}
	return true
}

func blockEqual(a, b Block) bool {
	switch a := a.(type) {
	case *Inline:
		bi, ok := b.(*Inline)
		return ok && runsEqual(a.Runs, bi.Runs)
	case *List:
		bl, ok := b.(*List)
		return ok && listEqual(a, bl)
	}
	return false
}

func listEqual(a, b *List) bool {
	if a.Ordered != b.Ordered || len(a.Items) != len(b.Items) {
		return false
	}
	for i := range a.Items {
		x, y := a.Items[i], b.Items[i]
		if !runsEqual(x.Content.Runs, y.Content.Runs) || len(x.Children) != len(y.Children) {
			return false
		}
		for j := range x.Children {
			if !listEqual(x.Children[j], y.Children[j]) {
				return false
			}
		}
	}
	return true
}

func runsEqual(a, b []Run) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
