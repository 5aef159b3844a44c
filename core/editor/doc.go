// Package editor holds a live, editable form of a document and the commands
// that restructure it.
//
// A Document is an arena of nodes with stable identifiers: the root, inline
// paragraphs, lists and list items. Commands move nodes around without
// renumbering them, so a Position taken before a command still names the
// same node afterwards. Tree and Markup re-derive the content tree and its
// canonical markup at any point.
//
// List commands (Indent, Outdent, SplitEmpty, BackspaceAtStart) report
// success as a bool; Toggle reports refusals as *errors.RejectedError
// values. A command that refuses leaves the document untouched.
package editor
