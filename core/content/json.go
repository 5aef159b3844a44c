package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/FocuswithJustin/termdoc/core/errors"
)

// JSON schema: every node carries a "type" discriminator.
//
//	{"type":"root","children":[
//	  {"type":"inline","content":[{"type":"text","value":"Hi"}]},
//	  {"type":"unordered-list","items":[
//	    {"type":"list-item","content":{"type":"inline","content":[]},"children":[...]}]}]}

type wireRoot struct {
	Type     string            `json:"type"`
	Children []json.RawMessage `json:"children"`
}

type wireInline struct {
	Type    string            `json:"type"`
	Content []json.RawMessage `json:"content"`
}

type wireList struct {
	Type  string  `json:"type"`
	Items []*Item `json:"items"`
}

type wireItem struct {
	Type     string            `json:"type"`
	Content  *Inline           `json:"content"`
	Children []json.RawMessage `json:"children,omitempty"`
}

type wireRun struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Value string `json:"value"`
}

type typeProbe struct {
	Type string `json:"type"`
}

// MarshalJSON implements json.Marshaler.
func (r *Root) MarshalJSON() ([]byte, error) {
	children := make([]json.RawMessage, 0, len(r.Blocks))
	for i, b := range r.Blocks {
		data, err := marshalPlain(b)
		if err != nil {
			return nil, fmt.Errorf("children[%d]: %w", i, err)
		}
		children = append(children, data)
	}
	return marshalPlain(wireRoot{Type: TypeRoot, Children: children})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Root) UnmarshalJSON(data []byte) error {
	var w wireRoot
	if err := json.Unmarshal(data, &w); err != nil {
		return wrapJSON("root", err)
	}
	if w.Type != TypeRoot {
		return badType("root", w.Type, TypeRoot)
	}
	r.Blocks = make([]Block, 0, len(w.Children))
	for i, raw := range w.Children {
		b, err := decodeBlock(raw, fmt.Sprintf("children[%d]", i))
		if err != nil {
			return err
		}
		r.Blocks = append(r.Blocks, b)
	}
	return nil
}

func decodeBlock(raw json.RawMessage, path string) (Block, error) {
	var probe typeProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, wrapJSON(path, err)
	}
	switch probe.Type {
	case TypeInline:
		in := &Inline{}
		if err := json.Unmarshal(raw, in); err != nil {
			return nil, errors.Wrap(err, path)
		}
		return in, nil
	case TypeUnorderedList, TypeOrderedList:
		l := &List{}
		if err := json.Unmarshal(raw, l); err != nil {
			return nil, errors.Wrap(err, path)
		}
		return l, nil
	default:
		return nil, badType(path, probe.Type, "inline|unordered-list|ordered-list")
	}
}

// MarshalJSON implements json.Marshaler.
func (in *Inline) MarshalJSON() ([]byte, error) {
	runs := make([]json.RawMessage, 0, len(in.Runs))
	for _, r := range in.Runs {
		data, err := marshalRun(r)
		if err != nil {
			return nil, err
		}
		runs = append(runs, data)
	}
	return marshalPlain(wireInline{Type: TypeInline, Content: runs})
}

// UnmarshalJSON implements json.Unmarshaler.
func (in *Inline) UnmarshalJSON(data []byte) error {
	var w wireInline
	if err := json.Unmarshal(data, &w); err != nil {
		return wrapJSON("inline", err)
	}
	if w.Type != TypeInline {
		return badType("inline", w.Type, TypeInline)
	}
	in.Runs = make([]Run, 0, len(w.Content))
	for i, raw := range w.Content {
		var wr wireRun
		if err := json.Unmarshal(raw, &wr); err != nil {
			return wrapJSON(fmt.Sprintf("content[%d]", i), err)
		}
		switch wr.Type {
		case TypeText:
			in.Runs = append(in.Runs, TextRun{Value: wr.Value})
		case TypeTaggedTerm:
			in.Runs = append(in.Runs, TermRun{ID: wr.ID, Value: wr.Value})
		default:
			return badType(fmt.Sprintf("content[%d]", i), wr.Type, "text|tagged-term")
		}
	}
	in.Runs = MergeRuns(in.Runs)
	return nil
}

func marshalRun(r Run) ([]byte, error) {
	switch r := r.(type) {
	case TextRun:
		return marshalPlain(wireRun{Type: TypeText, Value: r.Value})
	case TermRun:
		return marshalPlain(wireRun{Type: TypeTaggedTerm, ID: r.ID, Value: r.Value})
	default:
		return nil, errors.NewUnsupported("run type", fmt.Sprintf("%T", r))
	}
}

// MarshalJSON implements json.Marshaler.
func (l *List) MarshalJSON() ([]byte, error) {
	items := l.Items
	if items == nil {
		items = []*Item{}
	}
	return marshalPlain(wireList{Type: l.BlockType(), Items: items})
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *List) UnmarshalJSON(data []byte) error {
	var w wireList
	if err := json.Unmarshal(data, &w); err != nil {
		return wrapJSON("list", err)
	}
	switch w.Type {
	case TypeOrderedList:
		l.Ordered = true
	case TypeUnorderedList:
		l.Ordered = false
	default:
		return badType("list", w.Type, "unordered-list|ordered-list")
	}
	l.Items = w.Items
	return nil
}

// MarshalJSON implements json.Marshaler.
func (it *Item) MarshalJSON() ([]byte, error) {
	w := wireItem{Type: TypeListItem, Content: &it.Content}
	for _, c := range it.Children {
		data, err := marshalPlain(c)
		if err != nil {
			return nil, err
		}
		w.Children = append(w.Children, data)
	}
	return marshalPlain(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (it *Item) UnmarshalJSON(data []byte) error {
	var w wireItem
	if err := json.Unmarshal(data, &w); err != nil {
		return wrapJSON("list-item", err)
	}
	if w.Type != TypeListItem {
		return badType("list-item", w.Type, TypeListItem)
	}
	if w.Content != nil {
		it.Content = *w.Content
	}
	it.Children = nil
	for i, raw := range w.Children {
		l := &List{}
		if err := json.Unmarshal(raw, l); err != nil {
			return errors.Wrapf(err, "children[%d]", i)
		}
		it.Children = append(it.Children, l)
	}
	return nil
}

// Encode writes the JSON form of a content tree. Embedded markers such as
// <b> are written literally rather than as \u003c escapes.
func Encode(w io.Writer, r *Root) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// EncodeIndent is Encode with two-space indentation.
func EncodeIndent(w io.Writer, r *Root) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func marshalPlain(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses the JSON form of a content tree.
func Decode(data []byte) (*Root, error) {
	r := &Root{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, err
	}
	return r, nil
}

func wrapJSON(path string, err error) error {
	var pe *errors.ParseError
	if errors.As(err, &pe) {
		return err
	}
	return errors.NewParse("JSON", path, err.Error())
}

func badType(path, got, want string) error {
	return errors.NewParse("JSON", path, fmt.Sprintf("type %q, want %s", got, want))
}
