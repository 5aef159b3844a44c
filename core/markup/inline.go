package markup

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/FocuswithJustin/termdoc/core/content"
)

// BuildInline converts a sequence of sibling nodes into inline content.
// Text accumulates into a single text run; line breaks become newlines;
// formatting elements are kept as literal tags in the text; tagged-term
// spans become term runs; anything else is unwrapped.
func BuildInline(nodes []*html.Node) *content.Inline {
	return (&parser{}).inline(nodes)
}

func (p *parser) inline(nodes []*html.Node) *content.Inline {
	var runs []content.Run
	var buf strings.Builder

	flush := func() {
		if buf.Len() > 0 {
			runs = append(runs, content.TextRun{Value: buf.String()})
			buf.Reset()
		}
	}

	for _, n := range nodes {
		switch Classify(n) {
		case CategoryText:
			buf.WriteString(n.Data)
		case CategoryBreak:
			buf.WriteByte('\n')
		case CategoryTerm:
			flush()
			var value strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				p.allowed(&value, c)
			}
			runs = append(runs, content.TermRun{
				ID:    attr(n, AttrContentID),
				Value: value.String(),
			})
		default:
			p.allowed(&buf, n)
		}
	}
	flush()

	return &content.Inline{Runs: content.MergeRuns(runs)}
}

// allowed writes the whitelisted serialization of n: text verbatim,
// formatting tags preserved, breaks as newlines, other elements unwrapped.
func (p *parser) allowed(b *strings.Builder, n *html.Node) {
	switch Classify(n) {
	case CategoryText:
		b.WriteString(n.Data)
		return
	case CategoryIgnored:
		p.note("dropped non-content node")
		return
	case CategoryBreak:
		b.WriteByte('\n')
		return
	case CategoryFormat:
		p.checkAttrs(n)
		b.WriteByte('<')
		b.WriteString(n.Data)
		b.WriteByte('>')
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			p.allowed(b, c)
		}
		b.WriteString("</")
		b.WriteString(n.Data)
		b.WriteByte('>')
		return
	case CategoryTerm:
		p.note("unwrapped nested tagged term %q", attr(n, AttrContentID))
	default:
		p.note("unwrapped <%s>", n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.allowed(b, c)
	}
}
