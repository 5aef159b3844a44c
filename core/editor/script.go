package editor

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/termdoc/core/errors"
)

// Script operations.
const (
	OpIndent    = "indent"
	OpOutdent   = "outdent"
	OpSplit     = "split"
	OpBackspace = "backspace"
	OpTerm      = "term"
)

var scriptOps = map[string]bool{
	OpIndent:    true,
	OpOutdent:   true,
	OpSplit:     true,
	OpBackspace: true,
	OpTerm:      true,
}

// Command is one line of an edit script.
type Command struct {
	Line int
	Op   string
	At   Address
	// To is the focus of a term selection; nil means a collapsed selection.
	To *Address
	// ID is the identifier for a new term; empty only unwraps.
	ID string
}

func (c Command) String() string {
	var b strings.Builder
	b.WriteString(c.Op)
	b.WriteByte(' ')
	b.WriteString(c.At.String())
	if c.To != nil {
		b.WriteByte('-')
		b.WriteString(c.To.String())
	}
	if c.ID != "" {
		b.WriteByte(' ')
		b.WriteString(strconv.Quote(c.ID))
	}
	return b.String()
}

// Script is a parsed edit script.
type Script struct {
	Commands []Command
}

type scriptGrammar struct {
	Lines []*commandGrammar `parser:"( @@ | EOL )*"`
}

type commandGrammar struct {
	Pos lexer.Position
	Op  string          `parser:"@Ident"`
	At  *addressGrammar `parser:"@@"`
	To  *addressGrammar `parser:"( \"-\" @@ )?"`
	ID  *string         `parser:"@String?"`
}

var scriptParser = participle.MustBuild[scriptGrammar](
	participle.Lexer(editLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.Unquote("String"),
)

// ParseScript parses an edit script: one command per line, "#" comments.
//
//	indent 1.1
//	outdent 1.0.0.0
//	split 1.2:0
//	backspace 1.1:0
//	term 0:6-0:11 "glossary-7"
func ParseScript(src string) (*Script, error) {
	parsed, err := scriptParser.ParseString("", src)
	if err != nil {
		return nil, errors.NewParse("script", "", err.Error())
	}
	s := &Script{}
	for _, line := range parsed.Lines {
		if !scriptOps[line.Op] {
			return nil, errors.NewParse("script", "line "+strconv.Itoa(line.Pos.Line), "unknown command "+strconv.Quote(line.Op))
		}
		cmd := Command{Line: line.Pos.Line, Op: line.Op, At: line.At.address()}
		if line.To != nil {
			if line.Op != OpTerm {
				return nil, errors.NewParse("script", "line "+strconv.Itoa(line.Pos.Line), line.Op+" takes a single address")
			}
			to := line.To.address()
			cmd.To = &to
		}
		if line.ID != nil {
			if line.Op != OpTerm {
				return nil, errors.NewParse("script", "line "+strconv.Itoa(line.Pos.Line), line.Op+" takes no identifier")
			}
			cmd.ID = *line.ID
		}
		s.Commands = append(s.Commands, cmd)
	}
	return s, nil
}

// StepResult records what one script command did.
type StepResult struct {
	Command Command
	// OK is false when the command refused to act.
	OK bool
	// Outcome is a short description: "applied", "refused", or a toggle
	// result such as "wrapped".
	Outcome string
	// Err holds a rejection from Toggle.
	Err error
	// Cursor is where the split policy left the cursor.
	Cursor *Address
}

// Run applies a script in order. Addresses are resolved against the
// document as it stands when each command runs. Refusals are recorded and
// do not stop the script; an address that does not resolve does, and the
// commands before it stay applied.
func (d *Document) Run(s *Script) ([]StepResult, error) {
	var results []StepResult
	for _, cmd := range s.Commands {
		res, err := d.Apply(cmd)
		if err != nil {
			return results, errors.Wrapf(err, "line %d", cmd.Line)
		}
		results = append(results, res)
	}
	return results, nil
}

// Apply runs a single command. Refusals and rejections are reported in
// the result; the error is reserved for unknown ops and addresses that do
// not resolve, in which case the document is unchanged.
func (d *Document) Apply(cmd Command) (StepResult, error) {
	res := StepResult{Command: cmd}
	if !scriptOps[cmd.Op] {
		return res, errors.NewValidation("op", "unknown operation "+strconv.Quote(cmd.Op))
	}
	at, err := d.Locate(cmd.At)
	if err != nil {
		return res, err
	}

	switch cmd.Op {
	case OpIndent:
		res.OK = d.Indent(at.Node)
	case OpOutdent:
		res.OK = d.Outdent(at.Node)
	case OpBackspace:
		res.OK = d.BackspaceAtStart(at)
	case OpSplit:
		next, ok := d.SplitEmpty(at)
		res.OK = ok
		if ok {
			addr, err := d.AddressOf(next)
			if err != nil {
				return res, err
			}
			res.Cursor = &addr
		}
	case OpTerm:
		sel := Caret(at)
		if cmd.To != nil {
			if sel.Focus, err = d.Locate(*cmd.To); err != nil {
				return res, err
			}
		}
		var prompt Prompter
		if cmd.ID != "" {
			prompt = FixedID(cmd.ID)
		}
		result, err := d.Toggle(sel, prompt)
		if err != nil {
			if !errors.Is(err, errors.ErrRejected) {
				return res, err
			}
			res.Err = err
			res.Outcome = errors.CodeOf(err)
			return res, nil
		}
		res.OK = result != ToggleCancelled
		res.Outcome = result.String()
		return res, nil
	}

	if res.OK {
		res.Outcome = "applied"
	} else {
		res.Outcome = "refused"
	}
	return res, nil
}
