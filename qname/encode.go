package qname

import (
	"fmt"
	"strings"
	"unicode"
)

// EncodeLocalName escapes the characters of the name that are not allowed in
// an XML local name. An invalid character is written as _xHHHH_ with its
// hexadecimal code point.
func EncodeLocalName(name string) string {
	if isNCName(name) {
		return name
	}

	var b strings.Builder

	for i, r := range name {
		if (i == 0 && isNameStart(r)) || (i > 0 && isNameChar(r)) {
			b.WriteRune(r)
			continue
		}

		fmt.Fprintf(&b, "_x%04X_", r)
	}

	return b.String()
}

func isNCName(name string) bool {
	if name == "" {
		return false
	}

	for i, r := range name {
		if i == 0 && !isNameStart(r) {
			return false
		}
		if i > 0 && !isNameChar(r) {
			return false
		}
	}

	return true
}

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNameChar(r rune) bool {
	return isNameStart(r) || unicode.IsDigit(r) || r == '-' || r == '.'
}
