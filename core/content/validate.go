package content

import (
	"fmt"
)

// ValidationError represents a validation finding with its tree path.
// Structural findings make a tree unusable; the rest describe trees that
// are legal data but that the parser or the edit commands never produce.
type ValidationError struct {
	Path       string
	Message    string
	Structural bool
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

func newValidationError(path, message string) error {
	return &ValidationError{Path: path, Message: message, Structural: true}
}

func newValidationNote(path, message string) error {
	return &ValidationError{Path: path, Message: message}
}

// Validate checks the invariants the parser and the edit commands maintain:
// no adjacent text runs, no tagged term without an identifier, no empty
// lists. Nesting deeper than MaxDepth is reported too; such trees are legal
// data but cannot be produced by the indent command.
func Validate(r *Root) []error {
	if r == nil {
		return []error{newValidationError("root", "root is nil")}
	}
	var errs []error
	for i, b := range r.Blocks {
		path := fmt.Sprintf("blocks[%d]", i)
		switch b := b.(type) {
		case *Inline:
			errs = append(errs, validateInline(b, path)...)
		case *List:
			errs = append(errs, validateList(b, path, 0)...)
		case nil:
			errs = append(errs, newValidationError(path, "nil block"))
		default:
			errs = append(errs, newValidationError(path, fmt.Sprintf("unknown block type %T", b)))
		}
	}
	return errs
}

// Structural returns the findings that prevent a tree from being
// serialized.
func Structural(errs []error) []error {
	var out []error
	for _, err := range errs {
		if ve, ok := err.(*ValidationError); ok && !ve.Structural {
			continue
		}
		out = append(out, err)
	}
	return out
}

func validateInline(in *Inline, path string) []error {
	if in == nil {
		return []error{newValidationError(path, "nil inline")}
	}
	var errs []error
	for i, run := range in.Runs {
		runPath := fmt.Sprintf("%s.runs[%d]", path, i)
		switch run := run.(type) {
		case TextRun:
			if i > 0 {
				if _, prevText := in.Runs[i-1].(TextRun); prevText {
					errs = append(errs, newValidationNote(runPath, "adjacent text runs"))
				}
			}
		case TermRun:
			if run.ID == "" {
				errs = append(errs, newValidationError(runPath, "tagged term without id"))
			}
		default:
			errs = append(errs, newValidationError(runPath, fmt.Sprintf("unknown run type %T", run)))
		}
	}
	return errs
}

func validateList(l *List, path string, depth int) []error {
	if l == nil {
		return []error{newValidationError(path, "nil list")}
	}
	var errs []error
	if len(l.Items) == 0 {
		errs = append(errs, newValidationNote(path, "empty list"))
	}
	if depth > MaxDepth {
		errs = append(errs, newValidationNote(path,
			fmt.Sprintf("nesting depth %d exceeds %d", depth, MaxDepth)))
	}
	for i, it := range l.Items {
		itemPath := fmt.Sprintf("%s.items[%d]", path, i)
		if it == nil {
			errs = append(errs, newValidationError(itemPath, "nil item"))
			continue
		}
		errs = append(errs, validateInline(&it.Content, itemPath+".content")...)
		for j, child := range it.Children {
			errs = append(errs, validateList(child, fmt.Sprintf("%s.children[%d]", itemPath, j), depth+1)...)
		}
	}
	return errs
}
