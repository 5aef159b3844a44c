// Package query evaluates XPath expressions against a content tree.
//
// The tree is projected into a small XML vocabulary and parsed with
// xmlquery:
//
//	<document>
//	  <inline path="0"><text>Hello </text><term id="g-1">lemma</term></inline>
//	  <list kind="unordered" path="1">
//	    <item path="1.0" depth="0"><text>Item 1</text><list ...>...</list></item>
//	  </list>
//	</document>
//
// Text elements carry the visible text; a raw attribute holds the literal
// value when it embeds formatting markers. Every inline, list and item
// element carries its tree path, so a match can be turned back into an
// editor address.
package query

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/termdoc/core/content"
	"github.com/FocuswithJustin/termdoc/core/encoding"
	"github.com/FocuswithJustin/termdoc/core/errors"
)

// Document is a parsed projection of a content tree.
type Document struct {
	root *xmlquery.Node
}

// Match is one node selected by an expression.
type Match struct {
	// Name is the element name, or "#text" / "@name" for text and
	// attribute nodes.
	Name string `json:"name"`
	// Path is the tree path of the nearest enclosing inline, list or item.
	Path string `json:"path,omitempty"`
	// Text is the node's inner text.
	Text string `json:"text"`
	// Attrs holds the element's attributes.
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Project renders the XML projection of a tree.
func Project(r *content.Root) []byte {
	var b bytes.Buffer
	b.WriteString("<document>")
	if r != nil {
		for i, blk := range r.Blocks {
			path := strconv.Itoa(i)
			switch v := blk.(type) {
			case *content.Inline:
				b.WriteString(`<inline path="` + path + `">`)
				writeRuns(&b, v.Runs)
				b.WriteString("</inline>")
			case *content.List:
				writeList(&b, v, path, 0)
			}
		}
	}
	b.WriteString("</document>")
	return b.Bytes()
}

func writeList(b *bytes.Buffer, l *content.List, path string, depth int) {
	kind := "unordered"
	if l.Ordered {
		kind = "ordered"
	}
	fmt.Fprintf(b, `<list kind="%s" path="%s">`, kind, path)
	for i, it := range l.Items {
		if it == nil {
			continue
		}
		itemPath := path + "." + strconv.Itoa(i)
		fmt.Fprintf(b, `<item path="%s" depth="%d">`, itemPath, depth)
		writeRuns(b, it.Content.Runs)
		for j, sub := range it.Children {
			if sub != nil {
				writeList(b, sub, itemPath+"."+strconv.Itoa(j), depth+1)
			}
		}
		b.WriteString("</item>")
	}
	b.WriteString("</list>")
}

func writeRuns(b *bytes.Buffer, runs []content.Run) {
	for _, run := range runs {
		literal := encoding.StripControl(run.Literal())
		visible := content.Visible(literal)

		switch v := run.(type) {
		case content.TextRun:
			b.WriteString("<text")
		case content.TermRun:
			b.WriteString(`<term id="` + encoding.EscapeXMLAttr(encoding.StripControl(v.ID)) + `"`)
		}
		if visible != literal {
			b.WriteString(` raw="` + encoding.EscapeXMLAttr(literal) + `"`)
		}
		b.WriteString(">")
		b.WriteString(encoding.EscapeXMLText(visible))

		switch run.(type) {
		case content.TextRun:
			b.WriteString("</text>")
		case content.TermRun:
			b.WriteString("</term>")
		}
	}
}

// Load projects a tree and parses the projection.
func Load(r *content.Root) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(Project(r)))
	if err != nil {
		return nil, errors.Wrap(err, "parsing projection")
	}
	return &Document{root: root}, nil
}

func compile(expr string) (*xpath.Expr, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, errors.NewParse("xpath", expr, err.Error())
	}
	return compiled, nil
}

// Select returns the nodes an expression selects, in document order.
func (d *Document) Select(expr string) ([]Match, error) {
	compiled, err := compile(expr)
	if err != nil {
		return nil, err
	}
	nodes := xmlquery.QuerySelectorAll(d.root, compiled)
	matches := make([]Match, 0, len(nodes))
	for _, n := range nodes {
		matches = append(matches, toMatch(n))
	}
	return matches, nil
}

// Evaluate returns the value of an expression: a float64, string or bool
// for scalar expressions, or the number of selected nodes as a float64 for
// node-set expressions.
func (d *Document) Evaluate(expr string) (any, error) {
	compiled, err := compile(expr)
	if err != nil {
		return nil, err
	}
	switch v := compiled.Evaluate(xmlquery.CreateXPathNavigator(d.root)).(type) {
	case *xpath.NodeIterator:
		n := 0
		for v.MoveNext() {
			n++
		}
		return float64(n), nil
	default:
		return v, nil
	}
}

// Count evaluates an expression as a number: count(...) style expressions
// directly, node-set expressions as the number of nodes.
func (d *Document) Count(expr string) (int, error) {
	v, err := d.Evaluate(expr)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, errors.NewValidation("expression", fmt.Sprintf("%q does not evaluate to a number", expr))
	}
	return int(f), nil
}

// Select loads r and runs Document.Select.
func Select(r *content.Root, expr string) ([]Match, error) {
	d, err := Load(r)
	if err != nil {
		return nil, err
	}
	return d.Select(expr)
}

// Count loads r and runs Document.Count.
func Count(r *content.Root, expr string) (int, error) {
	d, err := Load(r)
	if err != nil {
		return 0, err
	}
	return d.Count(expr)
}

func toMatch(n *xmlquery.Node) Match {
	m := Match{Text: n.InnerText()}
	switch n.Type {
	case xmlquery.ElementNode:
		m.Name = n.Data
		if len(n.Attr) > 0 {
			m.Attrs = make(map[string]string, len(n.Attr))
			for _, a := range n.Attr {
				m.Attrs[a.Name.Local] = a.Value
			}
		}
	case xmlquery.AttributeNode:
		m.Name = "@" + n.Data
	case xmlquery.TextNode, xmlquery.CharDataNode:
		m.Name = "#text"
	default:
		m.Name = n.Data
	}
	for p := n; p != nil; p = p.Parent {
		if p.Type == xmlquery.ElementNode {
			if path := p.SelectAttr("path"); path != "" {
				m.Path = path
				break
			}
		}
	}
	return m
}

// Format pretty-prints the projection of r.
func Format(r *content.Root, indent string) string {
	if indent == "" {
		indent = "  "
	}
	d, err := Load(r)
	if err != nil {
		return ""
	}
	var b strings.Builder
	formatNode(&b, d.root, 0, indent)
	return b.String()
}

func formatNode(w *strings.Builder, n *xmlquery.Node, depth int, indent string) {
	switch n.Type {
	case xmlquery.DocumentNode:
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			formatNode(w, child, depth, indent)
		}

	case xmlquery.ElementNode:
		w.WriteString(strings.Repeat(indent, depth))
		w.WriteString("<" + n.Data)
		for _, a := range n.Attr {
			w.WriteString(" " + a.Name.Local + `="` + encoding.EscapeXMLAttr(a.Value) + `"`)
		}

		hasElementChildren := false
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == xmlquery.ElementNode {
				hasElementChildren = true
				break
			}
		}

		switch {
		case n.FirstChild == nil:
			w.WriteString("/>\n")
		case !hasElementChildren:
			w.WriteString(">" + encoding.EscapeXMLText(n.InnerText()) + "</" + n.Data + ">\n")
		default:
			w.WriteString(">\n")
			for child := n.FirstChild; child != nil; child = child.NextSibling {
				formatNode(w, child, depth+1, indent)
			}
			w.WriteString(strings.Repeat(indent, depth))
			w.WriteString("</" + n.Data + ">\n")
		}
	}
}
