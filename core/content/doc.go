// Package content defines the structured content tree for termdoc documents.
//
// A document is kept in two interchangeable forms: a markup string (a small
// HTML subset, see package markup) and the tree defined here. The tree is a
// derived view. It is rebuilt from markup on every external change and is not
// meant to be held as long-lived mutable state; package editor owns the live
// structure that commands mutate.
//
// # Shape
//
//   - Root: ordered blocks
//   - Block: either *Inline (a paragraph-like run sequence) or *List
//   - List: ordered or unordered, holding *Item values
//   - Item: its own Inline content plus zero or more nested lists
//   - Run: TextRun or TermRun (a tagged term with an identifier)
//
// Run values may embed the inline formatting markers <b>, <i>, <sub> and
// <sup> as literal markup. The helpers in fragment.go interpret that embedded
// language: visible text, rune offsets, and marker-aware splitting.
//
// # Example
//
//	root := &content.Root{Blocks: []content.Block{
//	    content.Paragraph(content.Text("See "), content.Term("g-7", "lemma")),
//	    content.Bullets(
//	        content.NewItem("first", content.Numbered(content.NewItem("nested"))),
//	        content.NewItem("second"),
//	    ),
//	}}
package content
