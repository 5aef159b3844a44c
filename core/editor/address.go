package editor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/termdoc/core/errors"
)

// Address is a cursor expressed against the content tree rather than the
// arena: a child-index path from the root plus a visible rune offset.
//
// Path[0] picks a block, Path[1] an item of that list, Path[2] a nested
// list of that item, Path[3] an item of that list, and so on. The text form
// is "1.0.0.2:5"; the offset part is optional and defaults to 0.
type Address struct {
	Path   []int `json:"path"`
	Offset int   `json:"offset"`
}

// String returns the text form of the address.
func (a Address) String() string {
	return pathString(a.Path) + ":" + strconv.Itoa(a.Offset)
}

type addressGrammar struct {
	Path   []int `parser:"@Int ( \".\" @Int )*"`
	Offset *int  `parser:"( \":\" @Int )?"`
}

func (g *addressGrammar) address() Address {
	a := Address{Path: g.Path}
	if g.Offset != nil {
		a.Offset = *g.Offset
	}
	return a
}

// editLexer tokenizes addresses and edit scripts.
var editLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[a-z][a-z-]*`},
	{Name: "Punct", Pattern: `[.:\-]`},
	{Name: "EOL", Pattern: `[\r\n]+`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})

var addressParser = participle.MustBuild[addressGrammar](
	participle.Lexer(editLexer),
	participle.Elide("Whitespace"),
)

// ParseAddress parses the text form of an address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, errors.NewParse("address", "", "empty address")
	}
	parsed, err := addressParser.ParseString("", s)
	if err != nil {
		return Address{}, errors.NewParse("address", s, err.Error())
	}
	return parsed.address(), nil
}

// Resolve returns the node a child-index path leads to. An empty path is
// the root.
func (d *Document) Resolve(path []int) (NodeID, error) {
	cur := d.root
	for depth, idx := range path {
		kids := d.get(cur).children
		if idx < 0 || idx >= len(kids) {
			return NoNode, errors.NewNotFound("node", pathString(path[:depth+1]))
		}
		cur = kids[idx]
	}
	return cur, nil
}

// Locate turns an address into a cursor. The address must name a paragraph
// or item and the offset must fall within its text.
func (d *Document) Locate(a Address) (Position, error) {
	id, err := d.Resolve(a.Path)
	if err != nil {
		return Position{}, err
	}
	pos := Position{Node: id, Offset: a.Offset}
	if err := d.checkPosition(pos); err != nil {
		return Position{}, errors.Wrapf(err, "address %s", a)
	}
	return pos, nil
}

// AddressOf is the inverse of Locate.
func (d *Document) AddressOf(pos Position) (Address, error) {
	if d.get(pos.Node) == nil {
		return Address{}, errors.NewNotFound("node", fmt.Sprint(pos.Node))
	}
	var path []int
	for cur := pos.Node; cur != d.root; cur = d.Parent(cur) {
		parent := d.Parent(cur)
		if parent == NoNode {
			return Address{}, errors.NewNotFound("node", fmt.Sprint(pos.Node))
		}
		path = append(path, d.indexOf(parent, cur))
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return Address{Path: path, Offset: pos.Offset}, nil
}

func pathString(path []int) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ".")
}
