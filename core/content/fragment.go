package content

import (
	"strings"
	"unicode/utf8"
)

// FormatTags is the whitelist of inline formatting markers that run values
// may embed.
var FormatTags = []string{"b", "i", "sub", "sup"}

// IsFormatTag reports whether tag is a whitelisted formatting marker.
func IsFormatTag(tag string) bool {
	switch tag {
	case "b", "i", "sub", "sup":
		return true
	}
	return false
}

// fragToken is one unit of an embedded fragment: a text chunk or a marker.
type fragToken struct {
	text    string
	tag     string
	closing bool
}

func (t fragToken) String() string {
	switch {
	case t.tag == "":
		return t.text
	case t.closing:
		return "</" + t.tag + ">"
	default:
		return "<" + t.tag + ">"
	}
}

// scanFragment splits s into text chunks and whitelisted markers. Anything
// that is not exactly one of the eight marker spellings is text.
func scanFragment(s string) []fragToken {
	var toks []fragToken
	start := 0
	for i := 0; i < len(s); {
		if s[i] != '<' {
			i++
			continue
		}
		tag, closing, n := matchMarker(s[i:])
		if n == 0 {
			i++
			continue
		}
		if i > start {
			toks = append(toks, fragToken{text: s[start:i]})
		}
		toks = append(toks, fragToken{tag: tag, closing: closing})
		i += n
		start = i
	}
	if start < len(s) {
		toks = append(toks, fragToken{text: s[start:]})
	}
	return toks
}

func matchMarker(s string) (tag string, closing bool, n int) {
	rest := s[1:]
	if strings.HasPrefix(rest, "/") {
		closing = true
		rest = rest[1:]
	}
	for _, t := range FormatTags {
		if strings.HasPrefix(rest, t+">") {
			n = len(t) + 2
			if closing {
				n++
			}
			return t, closing, n
		}
	}
	return "", false, 0
}

// Visible returns the text of a run value with markers removed.
func Visible(value string) string {
	if !strings.Contains(value, "<") {
		return value
	}
	var b strings.Builder
	for _, t := range scanFragment(value) {
		if t.tag == "" {
			b.WriteString(t.text)
		}
	}
	return b.String()
}

// VisibleLen returns the number of visible runes in a run value.
func VisibleLen(value string) int {
	return utf8.RuneCountInString(Visible(value))
}

// IsBlank reports whether the visible text of value is empty or whitespace.
func IsBlank(value string) bool {
	return strings.TrimSpace(Visible(value)) == ""
}

// SplitFragment splits value at a visible rune offset. Markers open at the
// split point are closed at the end of left and reopened at the start of
// right, so both halves stay well formed.
func SplitFragment(value string, at int) (left, right string) {
	if at <= 0 {
		return "", value
	}
	if at >= VisibleLen(value) {
		return value, ""
	}

	toks := scanFragment(value)
	var lb, rb strings.Builder
	var open []string
	seen := 0
	i := 0
	for ; i < len(toks); i++ {
		t := toks[i]
		if t.tag != "" {
			lb.WriteString(t.String())
			open = applyMarker(open, t)
			continue
		}
		n := utf8.RuneCountInString(t.text)
		if seen+n < at {
			lb.WriteString(t.text)
			seen += n
			continue
		}
		cut := byteOffset(t.text, at-seen)
		lb.WriteString(t.text[:cut])
		rb.WriteString(t.text[cut:])
		i++
		break
	}
	for j := len(open) - 1; j >= 0; j-- {
		lb.WriteString("</" + open[j] + ">")
	}
	var prefix strings.Builder
	for _, tag := range open {
		prefix.WriteString("<" + tag + ">")
	}
	for ; i < len(toks); i++ {
		rb.WriteString(toks[i].String())
	}
	return dropEmptyMarkers(lb.String()), dropEmptyMarkers(prefix.String() + rb.String())
}

// SliceVisible returns the part of value between two visible rune offsets,
// markers included and balanced.
func SliceVisible(value string, from, to int) string {
	left, _ := SplitFragment(value, to)
	_, mid := SplitFragment(left, from)
	return mid
}

func applyMarker(open []string, t fragToken) []string {
	if !t.closing {
		return append(open, t.tag)
	}
	for j := len(open) - 1; j >= 0; j-- {
		if open[j] == t.tag {
			return append(open[:j:j], open[j+1:]...)
		}
	}
	return open
}

func byteOffset(s string, runes int) int {
	for i := range s {
		if runes == 0 {
			return i
		}
		runes--
	}
	return len(s)
}

// dropEmptyMarkers removes marker pairs that enclose nothing, such as
// "<b></b>", repeating until none remain.
func dropEmptyMarkers(s string) string {
	for {
		out := s
		for _, t := range FormatTags {
			out = strings.ReplaceAll(out, "<"+t+"></"+t+">", "")
		}
		if out == s {
			return out
		}
		s = out
	}
}
