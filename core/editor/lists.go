package editor

import (
	"strings"

	"github.com/FocuswithJustin/termdoc/core/content"
)

// depthProbe bounds how far Depth looks upward. Only 0, 1 and 2 matter to
// the commands, so anything deeper reads as 3.
const depthProbe = content.MaxDepth + 1

// Depth counts how many list items enclose item's list, stopping at 3.
// Non-items report 0.
func (d *Document) Depth(item NodeID) int {
	if !d.is(item, KindItem) {
		return 0
	}
	depth := 0
	cur := item
	for depth < depthProbe {
		list := d.Parent(cur)
		owner := d.Parent(list)
		if !d.is(owner, KindItem) {
			break
		}
		depth++
		cur = owner
	}
	return depth
}

// CanIndent reports whether item can be nested under its preceding sibling.
func (d *Document) CanIndent(item NodeID) bool {
	if !d.is(item, KindItem) || d.Depth(item) >= content.MaxDepth {
		return false
	}
	return d.indexOf(d.Parent(item), item) > 0
}

// Indent moves item into a nested list owned by its preceding sibling. A
// nested list of the same kind is reused; otherwise one is created as the
// sibling's last child. Following siblings stay where they are.
func (d *Document) Indent(item NodeID) bool {
	if !d.CanIndent(item) {
		return false
	}
	list := d.Parent(item)
	prev := d.get(list).children[d.indexOf(list, item)-1]
	ordered := d.get(list).ordered

	target := NoNode
	for _, sub := range d.get(prev).children {
		if d.get(sub).ordered == ordered {
			target = sub
		}
	}
	if target == NoNode {
		target = d.alloc(&node{kind: KindList, parent: NoNode, ordered: ordered})
		d.appendChild(prev, target)
	}

	d.detach(item)
	d.appendChild(target, item)
	return true
}

// CanOutdent reports whether item sits inside a nested list.
func (d *Document) CanOutdent(item NodeID) bool {
	return d.Depth(item) > 0
}

// Outdent moves item to directly after the item that owns its list. The
// list is removed if this leaves it empty.
func (d *Document) Outdent(item NodeID) bool {
	if !d.CanOutdent(item) {
		return false
	}
	list := d.Parent(item)
	owner := d.Parent(list)
	outer := d.Parent(owner)

	d.detach(item)
	if len(d.get(list).children) == 0 {
		d.remove(list)
	}
	d.insertChild(outer, d.indexOf(outer, owner)+1, item)
	return true
}

// SplitEmpty applies the split policy to a blank item: a nested item is
// outdented and the cursor goes to its end; a top-level item is replaced by
// a new empty paragraph directly after its list, which is removed if it
// empties. ok is false, and nothing changes, when pos is not in a blank item.
func (d *Document) SplitEmpty(pos Position) (next Position, ok bool) {
	item := pos.Node
	if !d.is(item, KindItem) || strings.TrimSpace(d.itemText(item)) != "" {
		return pos, false
	}

	if d.CanOutdent(item) {
		d.Outdent(item)
		return Position{Node: item, Offset: d.TextLen(item)}, true
	}

	list := d.Parent(item)
	container := d.Parent(list)
	at := d.indexOf(container, list) + 1
	para := d.newParagraph(nil)
	d.insertChild(container, at, para)

	d.remove(item)
	if len(d.get(list).children) == 0 {
		d.remove(list)
	}
	return Position{Node: para, Offset: 0}, true
}

// BackspaceAtStart outdents a non-blank nested item when the cursor is at
// the very start of its text. It reports false, leaving the document
// unchanged, in every other case.
func (d *Document) BackspaceAtStart(pos Position) bool {
	item := pos.Node
	if !d.is(item, KindItem) || pos.Offset != 0 {
		return false
	}
	if strings.TrimSpace(d.itemText(item)) == "" {
		return false
	}
	return d.Outdent(item)
}
