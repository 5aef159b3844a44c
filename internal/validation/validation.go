// Package validation checks command-line inputs before they reach the
// converter: path sanity, size limits and a content sniff that keeps
// archives and databases out of the markup parser.
package validation

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/termdoc/core/errors"
)

// Limits for command-line inputs.
const (
	// MaxInputSize is the largest markup or tree file accepted (64 MB).
	MaxInputSize = 64 << 20
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// ValidatePath rejects empty, overlong and control-character paths.
func ValidatePath(path string) error {
	if path == "" {
		return errors.NewValidation("path", "cannot be empty")
	}
	if len(path) > MaxPathLength {
		return errors.NewValidation("path", "too long")
	}
	for _, r := range path {
		if r == 0 || unicode.IsControl(r) {
			return errors.NewValidation("path", "control character not allowed")
		}
	}
	return nil
}

// InputType is what a file's content looks like.
type InputType string

const (
	TypeMarkup InputType = "markup"
	TypeJSON   InputType = "json"
	TypeXZ     InputType = "xz"
	TypeGzip   InputType = "gzip"
	TypeTar    InputType = "tar"
	TypeSQLite InputType = "sqlite"
	TypeBinary InputType = "binary"
)

var magicBytes = []struct {
	typ    InputType
	magic  []byte
	offset int
}{
	{TypeGzip, []byte{0x1f, 0x8b}, 0},
	{TypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}, 0},
	{TypeSQLite, []byte("SQLite format 3\x00"), 0},
	{TypeTar, []byte("ustar"), 257},
}

// Detect sniffs the first bytes of an input. Empty input is markup.
func Detect(buf []byte) InputType {
	for _, sig := range magicBytes {
		end := sig.offset + len(sig.magic)
		if end <= len(buf) && bytes.Equal(buf[sig.offset:end], sig.magic) {
			return sig.typ
		}
	}
	if len(buf) > 0 && !isLikelyText(buf) {
		return TypeBinary
	}
	if trimmed := bytes.TrimLeft(buf, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '{' {
		return TypeJSON
	}
	return TypeMarkup
}

// RequireText returns a ValidationError naming the detected type when data
// is an archive, a database or otherwise binary.
func RequireText(name string, data []byte) error {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	switch typ := Detect(head); typ {
	case TypeMarkup, TypeJSON:
		return nil
	case TypeXZ, TypeGzip, TypeTar:
		return errors.NewValidation(name, fmt.Sprintf("is a %s archive; use snapshot unpack", typ))
	case TypeSQLite:
		return errors.NewValidation(name, "is a SQLite database; use the doc commands")
	default:
		return errors.NewValidation(name, "is not text")
	}
}

// ReadInput reads at most MaxInputSize bytes of text from r.
func ReadInput(name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInputSize+1))
	if err != nil {
		return "", errors.NewIO("read", name, err)
	}
	if len(data) > MaxInputSize {
		return "", errors.NewValidation(name, fmt.Sprintf("larger than %d bytes", MaxInputSize))
	}
	if err := RequireText(name, data); err != nil {
		return "", err
	}
	return string(data), nil
}

// isLikelyText reports whether buf has no NUL bytes and is at least 95%
// printable ASCII, whitespace or UTF-8.
func isLikelyText(buf []byte) bool {
	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}
	printable, control := 0, 0
	for _, b := range buf {
		switch {
		case b == '\t' || b == '\n' || b == '\r':
			printable++
		case b < 0x20 || b == 0x7f:
			control++
		default:
			printable++
		}
	}
	return float64(printable)/float64(printable+control) > 0.95
}

// Label is a display name for an input path.
func Label(path string) string {
	if path == "-" || strings.TrimSpace(path) == "" {
		return "stdin"
	}
	return path
}
