package content

// MaxDepth is the deepest list nesting the edit commands will create.
// 0 is a top-level item, 1 the first nested level. Trees built directly or
// parsed from hand-written markup may exceed it.
const MaxDepth = 2

// Type discriminators used by the JSON schema.
const (
	TypeRoot          = "root"
	TypeInline        = "inline"
	TypeUnorderedList = "unordered-list"
	TypeOrderedList   = "ordered-list"
	TypeListItem      = "list-item"
	TypeText          = "text"
	TypeTaggedTerm    = "tagged-term"
)

// Root is the top-level container of a document.
type Root struct {
	Blocks []Block
}

// Block is one top-level unit of a document: *Inline or *List.
type Block interface {
	// BlockType returns the JSON discriminator of the block.
	BlockType() string
}

// Inline is an ordered sequence of runs forming one paragraph-like unit.
type Inline struct {
	Runs []Run
}

// BlockType implements Block.
func (*Inline) BlockType() string { return TypeInline }

// List is an ordered or unordered list of items.
type List struct {
	Ordered bool
	Items   []*Item
}

// BlockType implements Block.
func (l *List) BlockType() string {
	if l.Ordered {
		return TypeOrderedList
	}
	return TypeUnorderedList
}

// Item is a list entry: its own inline content followed by nested lists.
type Item struct {
	Content  Inline
	Children []*List
}

// Run is one inline unit: TextRun or TermRun.
type Run interface {
	// RunType returns the JSON discriminator of the run.
	RunType() string
	// Literal returns the run's value including embedded markers.
	Literal() string
}

// TextRun is plain text, possibly embedding whitelisted format markers.
type TextRun struct {
	Value string
}

// RunType implements Run.
func (TextRun) RunType() string { return TypeText }

// Literal implements Run.
func (r TextRun) Literal() string { return r.Value }

// TermRun is a tagged term: a caller-supplied identifier and its literal text.
type TermRun struct {
	ID    string
	Value string
}

// RunType implements Run.
func (TermRun) RunType() string { return TypeTaggedTerm }

// Literal implements Run.
func (r TermRun) Literal() string { return r.Value }

// Text returns a TextRun.
func Text(value string) TextRun {
	return TextRun{Value: value}
}

// Term returns a TermRun.
func Term(id, value string) TermRun {
	return TermRun{ID: id, Value: value}
}

// Paragraph returns an Inline block built from runs, merging adjacent text.
func Paragraph(runs ...Run) *Inline {
	return &Inline{Runs: MergeRuns(runs)}
}

// Bullets returns an unordered list.
func Bullets(items ...*Item) *List {
	return &List{Items: items}
}

// Numbered returns an ordered list.
func Numbered(items ...*Item) *List {
	return &List{Ordered: true, Items: items}
}

// NewItem returns an item holding a single text run (none when text is
// empty) and the given nested lists.
func NewItem(text string, children ...*List) *Item {
	it := &Item{Children: children}
	if text != "" {
		it.Content.Runs = []Run{TextRun{Value: text}}
	}
	return it
}

// ItemOf returns an item whose content is built from runs.
func ItemOf(runs []Run, children ...*List) *Item {
	return &Item{Content: Inline{Runs: MergeRuns(runs)}, Children: children}
}

// MergeRuns returns runs with adjacent TextRun entries concatenated and empty
// text runs dropped. Term runs are never merged. The input is not modified.
func MergeRuns(runs []Run) []Run {
	out := make([]Run, 0, len(runs))
	for _, r := range runs {
		t, isText := r.(TextRun)
		if isText && t.Value == "" {
			continue
		}
		if isText && len(out) > 0 {
			if last, ok := out[len(out)-1].(TextRun); ok {
				out[len(out)-1] = TextRun{Value: last.Value + t.Value}
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// Clone returns a deep copy of the root.
func (r *Root) Clone() *Root {
	if r == nil {
		return nil
	}
	out := &Root{Blocks: make([]Block, 0, len(r.Blocks))}
	for _, b := range r.Blocks {
		switch b := b.(type) {
		case *Inline:
			out.Blocks = append(out.Blocks, b.Clone())
		case *List:
			out.Blocks = append(out.Blocks, b.Clone())
		}
	}
	return out
}

// Clone returns a copy of the inline block.
func (in *Inline) Clone() *Inline {
	return &Inline{Runs: append([]Run(nil), in.Runs...)}
}

// Clone returns a deep copy of the list.
func (l *List) Clone() *List {
	out := &List{Ordered: l.Ordered, Items: make([]*Item, 0, len(l.Items))}
	for _, it := range l.Items {
		out.Items = append(out.Items, it.Clone())
	}
	return out
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	out := &Item{Content: Inline{Runs: append([]Run(nil), it.Content.Runs...)}}
	for _, c := range it.Children {
		out.Children = append(out.Children, c.Clone())
	}
	return out
}
