package markup

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/FocuswithJustin/termdoc/core/content"
)

var bodyContext = &html.Node{
	Type:     html.ElementNode,
	Data:     "body",
	DataAtom: atom.Body,
}

// Parse converts markup into a content tree. It never fails: anything
// outside the supported grammar is unwrapped or dropped.
func Parse(markup string) *content.Root {
	root, _ := parse(markup, nil)
	return root
}

// ParseWithWarnings is Parse plus a list of what was unwrapped or dropped
// along the way.
func ParseWithWarnings(markup string) (*content.Root, []string) {
	var warnings []string
	root, _ := parse(markup, func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})
	return root, warnings
}

type parser struct {
	warn func(format string, args ...any)
}

func parse(markup string, warn func(string, ...any)) (*content.Root, error) {
	root := &content.Root{}
	if markup == "" {
		return root, nil
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), bodyContext)
	if err != nil {
		// A strings.Reader never fails, so this only guards parser changes.
		return root, err
	}
	p := &parser{warn: warn}
	root.Blocks = p.blocks(nodes)
	return root, nil
}

func (p *parser) note(format string, args ...any) {
	if p.warn != nil {
		p.warn(format, args...)
	}
}

// blocks splits a sequence of sibling nodes into blocks. Lists end the
// pending inline run; wrappers end it and contribute their own children.
func (p *parser) blocks(nodes []*html.Node) []content.Block {
	var out []content.Block
	var pending []*html.Node

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if in := p.inline(pending); len(in.Runs) > 0 {
			out = append(out, in)
		}
		pending = nil
	}

	for _, n := range nodes {
		switch Classify(n) {
		case CategoryList:
			flush()
			if l := p.list(n); len(l.Items) > 0 {
				out = append(out, l)
			}
		case CategoryWrapper:
			flush()
			p.checkAttrs(n)
			out = append(out, p.blocks(children(n))...)
		default:
			pending = append(pending, n)
		}
	}
	flush()
	return out
}

// list builds a list from a ul/ol element. Only li children are kept.
func (p *parser) list(n *html.Node) *content.List {
	p.checkAttrs(n)
	l := &content.List{Ordered: isOrdered(n)}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch Classify(c) {
		case CategoryItem:
			l.Items = append(l.Items, p.item(c))
		case CategoryText:
			if strings.TrimSpace(c.Data) != "" {
				p.note("dropped text %q directly inside <%s>", c.Data, n.Data)
			}
		case CategoryIgnored:
			p.note("dropped non-content node inside <%s>", n.Data)
		default:
			p.note("dropped <%s> directly inside <%s>", c.Data, n.Data)
		}
	}
	return l
}

// item builds a list item. Nested lists become children; everything else
// feeds the item's inline content, which may end up empty.
func (p *parser) item(li *html.Node) *content.Item {
	p.checkAttrs(li)
	it := &content.Item{}
	var inline []*html.Node
	for c := li.FirstChild; c != nil; c = c.NextSibling {
		if Classify(c) == CategoryList {
			if sub := p.list(c); len(sub.Items) > 0 {
				it.Children = append(it.Children, sub)
			}
			continue
		}
		inline = append(inline, c)
	}
	it.Content = *p.inline(inline)
	return it
}

func (p *parser) checkAttrs(n *html.Node) {
	for _, a := range n.Attr {
		p.note("dropped attribute %s on <%s>", a.Key, n.Data)
	}
}
