package editor

import (
	"strings"

	"github.com/FocuswithJustin/termdoc/core/content"
	"github.com/FocuswithJustin/termdoc/core/markup"
)

// NodeID identifies a node within one Document. IDs are never reused.
type NodeID int

// NoNode is the zero reference.
const NoNode NodeID = -1

// Kind is the role of a node in the arena.
type Kind int

const (
	KindRoot Kind = iota
	KindParagraph
	KindList
	KindItem
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindParagraph:
		return "paragraph"
	case KindList:
		return "list"
	case KindItem:
		return "item"
	}
	return "unknown"
}

// Position is a cursor: a paragraph or item plus a visible rune offset into
// that node's own inline content.
type Position struct {
	Node   NodeID `json:"node"`
	Offset int    `json:"offset"`
}

type node struct {
	kind     Kind
	parent   NodeID
	children []NodeID
	ordered  bool
	runs     []content.Run
}

// Document is the live form of a content tree.
type Document struct {
	nodes []*node
	root  NodeID
}

// New returns an empty document.
func New() *Document {
	d := &Document{}
	d.root = d.alloc(&node{kind: KindRoot, parent: NoNode})
	return d
}

// FromRoot builds a document from a content tree. The tree is copied.
func FromRoot(r *content.Root) *Document {
	d := New()
	if r == nil {
		return d
	}
	for _, blk := range r.Blocks {
		switch v := blk.(type) {
		case *content.Inline:
			d.appendChild(d.root, d.newParagraph(v.Runs))
		case *content.List:
			d.appendChild(d.root, d.buildList(v))
		}
	}
	return d
}

// FromMarkup parses markup into a document.
func FromMarkup(m string) *Document {
	return FromRoot(markup.Parse(m))
}

func (d *Document) buildList(l *content.List) NodeID {
	id := d.alloc(&node{kind: KindList, parent: NoNode, ordered: l.Ordered})
	for _, it := range l.Items {
		if it == nil {
			continue
		}
		d.appendChild(id, d.buildItem(it))
	}
	return id
}

func (d *Document) buildItem(it *content.Item) NodeID {
	id := d.alloc(&node{kind: KindItem, parent: NoNode, runs: copyRuns(it.Content.Runs)})
	for _, sub := range it.Children {
		if sub == nil {
			continue
		}
		d.appendChild(id, d.buildList(sub))
	}
	return id
}

func (d *Document) newParagraph(runs []content.Run) NodeID {
	return d.alloc(&node{kind: KindParagraph, parent: NoNode, runs: copyRuns(runs)})
}

func (d *Document) alloc(n *node) NodeID {
	d.nodes = append(d.nodes, n)
	return NodeID(len(d.nodes) - 1)
}

func (d *Document) get(id NodeID) *node {
	if id < 0 || int(id) >= len(d.nodes) {
		return nil
	}
	return d.nodes[id]
}

func (d *Document) is(id NodeID, k Kind) bool {
	n := d.get(id)
	return n != nil && n.kind == k
}

// Root returns the root node.
func (d *Document) Root() NodeID { return d.root }

// Kind returns the kind of a node. Removed or unknown nodes report
// ok == false.
func (d *Document) Kind(id NodeID) (k Kind, ok bool) {
	n := d.get(id)
	if n == nil {
		return 0, false
	}
	return n.kind, true
}

// Parent returns the parent of a node, or NoNode.
func (d *Document) Parent(id NodeID) NodeID {
	n := d.get(id)
	if n == nil {
		return NoNode
	}
	return n.parent
}

// Children returns a copy of a node's children: blocks for the root, items
// for a list and nested lists for an item.
func (d *Document) Children(id NodeID) []NodeID {
	n := d.get(id)
	if n == nil {
		return nil
	}
	return append([]NodeID(nil), n.children...)
}

// Ordered reports whether a list node is ordered.
func (d *Document) Ordered(id NodeID) bool {
	n := d.get(id)
	return n != nil && n.kind == KindList && n.ordered
}

// Runs returns a copy of the inline content of a paragraph or item.
func (d *Document) Runs(id NodeID) []content.Run {
	n := d.get(id)
	if n == nil {
		return nil
	}
	return copyRuns(n.runs)
}

// Text returns the visible text of a paragraph's or item's own content.
func (d *Document) Text(id NodeID) string {
	n := d.get(id)
	if n == nil {
		return ""
	}
	return content.InlineText(n.runs)
}

// TextLen returns the number of visible runes in a node's own content.
func (d *Document) TextLen(id NodeID) int {
	n := d.get(id)
	if n == nil {
		return 0
	}
	return content.InlineLen(n.runs)
}

// itemText is the visible text of an item including every descendant item.
func (d *Document) itemText(id NodeID) string {
	var b strings.Builder
	var walk func(NodeID)
	walk = func(id NodeID) {
		n := d.get(id)
		b.WriteString(content.InlineText(n.runs))
		for _, l := range n.children {
			for _, it := range d.get(l).children {
				walk(it)
			}
		}
	}
	walk(id)
	return b.String()
}

// Tree re-derives the content tree.
func (d *Document) Tree() *content.Root {
	r := &content.Root{}
	for _, id := range d.get(d.root).children {
		n := d.get(id)
		switch n.kind {
		case KindParagraph:
			r.Blocks = append(r.Blocks, &content.Inline{Runs: copyRuns(n.runs)})
		case KindList:
			r.Blocks = append(r.Blocks, d.treeList(id))
		}
	}
	return r
}

func (d *Document) treeList(id NodeID) *content.List {
	n := d.get(id)
	l := &content.List{Ordered: n.ordered}
	for _, itemID := range n.children {
		in := d.get(itemID)
		it := &content.Item{Content: content.Inline{Runs: copyRuns(in.runs)}}
		for _, sub := range in.children {
			it.Children = append(it.Children, d.treeList(sub))
		}
		l.Items = append(l.Items, it)
	}
	return l
}

// Markup re-serializes the document.
func (d *Document) Markup() string {
	return markup.Serialize(d.Tree())
}

// inlineOrder lists every paragraph and item in document order.
func (d *Document) inlineOrder() []NodeID {
	var out []NodeID
	var walk func(NodeID)
	walk = func(id NodeID) {
		n := d.get(id)
		if n.kind == KindParagraph || n.kind == KindItem {
			out = append(out, id)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(d.root)
	return out
}

func (d *Document) indexOf(parent, child NodeID) int {
	for i, c := range d.get(parent).children {
		if c == child {
			return i
		}
	}
	return -1
}

func (d *Document) appendChild(parent, child NodeID) {
	p := d.get(parent)
	p.children = append(p.children, child)
	d.get(child).parent = parent
}

func (d *Document) insertChild(parent NodeID, at int, child NodeID) {
	p := d.get(parent)
	p.children = append(p.children, NoNode)
	copy(p.children[at+1:], p.children[at:])
	p.children[at] = child
	d.get(child).parent = parent
}

func (d *Document) detach(child NodeID) {
	c := d.get(child)
	if c.parent == NoNode {
		return
	}
	p := d.get(c.parent)
	if i := d.indexOf(c.parent, child); i >= 0 {
		p.children = append(p.children[:i], p.children[i+1:]...)
	}
	c.parent = NoNode
}

// remove detaches a node and frees its subtree.
func (d *Document) remove(id NodeID) {
	d.detach(id)
	var free func(NodeID)
	free = func(id NodeID) {
		for _, c := range d.nodes[id].children {
			free(c)
		}
		d.nodes[id] = nil
	}
	free(id)
}

func copyRuns(runs []content.Run) []content.Run {
	if len(runs) == 0 {
		return nil
	}
	return append([]content.Run(nil), runs...)
}
