// Package markup converts between termdoc markup and the content tree.
//
// The markup is a constrained HTML subset:
//
//   - wrappers: <div>, <p>
//   - lists: <ul>, <ol> holding <li> items
//   - line breaks: <br>
//   - inline formatting: <b>, <i>, <sub>, <sup>
//   - tagged terms: <span data-content-type="tagged-term" data-content-id="ID">
//
// Parse never fails. Unknown elements are unwrapped (the tag is dropped, the
// children are kept), character entities are decoded and <br> becomes a
// newline. Serialize is the inverse for canonical markup: for any m produced
// by Serialize, Serialize(Parse(m)) == m.
package markup
