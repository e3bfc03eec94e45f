package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}

// FileName joins sanitized tokens with dots, e.g. "lm.parts.environment".
func FileName(parts ...string) string {
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		tokens = append(tokens, SanitizeToken(p))
	}
	return strings.Join(tokens, ".")
}

// Identifier builds a VBScript identifier from name parts. Each part is
// title cased word by word with separators dropped, and parts are joined
// with underscores: ("LM", "GI - Left Sling") gives "LM_GILeftSling". A
// leading digit is prefixed with "N".
func Identifier(parts ...string) string {
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if w := identWord(p); w != "" {
			words = append(words, w)
		}
	}
	out := strings.Join(words, "_")
	if out == "" {
		return "Unnamed"
	}
	if unicode.IsDigit(rune(out[0])) {
		out = "N" + out
	}
	return out
}

func identWord(value string) string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
	})
	// casers are stateful, one per call
	titler := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(titler.String(f))
	}
	return b.String()
}
