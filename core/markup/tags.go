package markup

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Tagged-term marker attributes.
const (
	AttrContentType = "data-content-type"
	AttrContentID   = "data-content-id"

	// TermContentType is the data-content-type value that marks a tagged term.
	TermContentType = "tagged-term"

	// WrapperTag is the element the serializer wraps each block in.
	WrapperTag = "div"
)

// Category is the closed set of roles a markup node can play.
type Category int

const (
	// CategoryIgnored covers comments, doctypes and other non-content nodes.
	CategoryIgnored Category = iota
	// CategoryText is a text node.
	CategoryText
	// CategoryWrapper is a paragraph-like wrapper: div or p.
	CategoryWrapper
	// CategoryList is a list container: ul or ol.
	CategoryList
	// CategoryItem is a list item: li.
	CategoryItem
	// CategoryBreak is a line break: br.
	CategoryBreak
	// CategoryFormat is a whitelisted inline formatting element.
	CategoryFormat
	// CategoryTerm is a span carrying both tagged-term attributes.
	CategoryTerm
	// CategoryOther is any other element; it is unwrapped.
	CategoryOther
)

var categoryNames = [...]string{
	CategoryIgnored: "ignored",
	CategoryText:    "text",
	CategoryWrapper: "wrapper",
	CategoryList:    "list",
	CategoryItem:    "item",
	CategoryBreak:   "break",
	CategoryFormat:  "format",
	CategoryTerm:    "term",
	CategoryOther:   "other",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "unknown"
	}
	return categoryNames[c]
}

// Classify returns the category of n.
func Classify(n *html.Node) Category {
	switch n.Type {
	case html.TextNode:
		return CategoryText
	case html.ElementNode:
	default:
		return CategoryIgnored
	}

	switch n.DataAtom {
	case atom.Div, atom.P:
		return CategoryWrapper
	case atom.Ul, atom.Ol:
		return CategoryList
	case atom.Li:
		return CategoryItem
	case atom.Br:
		return CategoryBreak
	case atom.B, atom.I, atom.Sub, atom.Sup:
		return CategoryFormat
	case atom.Span:
		if attr(n, AttrContentType) == TermContentType && attr(n, AttrContentID) != "" {
			return CategoryTerm
		}
	}
	return CategoryOther
}

// isOrdered reports whether a list container is an ordered list.
func isOrdered(n *html.Node) bool {
	return n.DataAtom == atom.Ol
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}
