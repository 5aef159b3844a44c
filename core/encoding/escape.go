// Package encoding provides shared text escaping utilities.
package encoding

import (
	"strings"
)

var (
	xmlTextReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	xmlAttrReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\"", "&quot;")
	htmlReplacer    = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\"", "&quot;")
)

// EscapeXMLText escapes only the basic XML entities for text content.
func EscapeXMLText(s string) string {
	return xmlTextReplacer.Replace(s)
}

// EscapeXMLAttr escapes text for use in XML attributes.
// Includes quote escaping in addition to basic XML entities.
func EscapeXMLAttr(s string) string {
	return xmlAttrReplacer.Replace(s)
}

// EscapeHTMLAttr escapes a value for a double-quoted HTML attribute.
// Escapes: & < > "
func EscapeHTMLAttr(s string) string {
	return htmlReplacer.Replace(s)
}

// StripControl removes C0 control characters that XML 1.0 cannot carry,
// keeping tab, newline and carriage return.
func StripControl(s string) string {
	if strings.IndexFunc(s, isForbiddenControl) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isForbiddenControl(r) {
			return -1
		}
		return r
	}, s)
}

func isForbiddenControl(r rune) bool {
	return r < 0x20 && r != '\t' && r != '\n' && r != '\r'
}
