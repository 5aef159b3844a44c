package markup

import (
	"strings"

	"github.com/FocuswithJustin/termdoc/core/content"
	"github.com/FocuswithJustin/termdoc/core/encoding"
)

// Serialize renders a content tree as canonical markup. Every block is
// wrapped in a <div>; blocks that render to nothing are dropped. Text values
// are written raw so formatting tags survive.
func Serialize(r *content.Root) string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, blk := range r.Blocks {
		inner := renderBlock(blk)
		if inner == "" {
			continue
		}
		b.WriteString("<" + WrapperTag + ">")
		b.WriteString(inner)
		b.WriteString("</" + WrapperTag + ">")
	}
	return b.String()
}

func renderBlock(blk content.Block) string {
	switch v := blk.(type) {
	case *content.Inline:
		return renderInline(v)
	case *content.List:
		return renderList(v)
	}
	return ""
}

func renderInline(in *content.Inline) string {
	if in == nil {
		return ""
	}
	var b strings.Builder
	for _, r := range in.Runs {
		switch v := r.(type) {
		case content.TextRun:
			b.WriteString(v.Value)
		case content.TermRun:
			b.WriteString(`<span ` + AttrContentType + `="` + TermContentType + `" ` + AttrContentID + `="`)
			b.WriteString(encoding.EscapeHTMLAttr(v.ID))
			b.WriteString(`">`)
			b.WriteString(v.Value)
			b.WriteString(`</span>`)
		}
	}
	return b.String()
}

func renderList(l *content.List) string {
	if l == nil || len(l.Items) == 0 {
		return ""
	}
	tag := "ul"
	if l.Ordered {
		tag = "ol"
	}
	var b strings.Builder
	b.WriteString("<" + tag + ">")
	for _, it := range l.Items {
		if it == nil {
			continue
		}
		b.WriteString("<li>")
		b.WriteString(renderInline(&it.Content))
		for _, sub := range it.Children {
			b.WriteString(renderList(sub))
		}
		b.WriteString("</li>")
	}
	b.WriteString("</" + tag + ">")
	return b.String()
}
