package update

import "strings"

const sigil = '$'

// Substitute expands $NAME placeholders in template using bindings.
// Substitution is single-pass: replacement text is inserted literally and
// never re-scanned for further placeholders, so a binding value containing
// a sigil can't trigger runaway expansion. Unmatched placeholders are left
// verbatim.
func Substitute(template string, bindings map[string]string) string {
	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); {
		if template[i] != sigil {
			b.WriteByte(template[i])
			i++
			continue
		}

		name, width := placeholderName(template[i+1:])
		if name == "" {
			b.WriteByte(sigil)
			i++
			continue
		}

		if value, ok := bindings[name]; ok {
			b.WriteString(value)
		} else {
			b.WriteByte(sigil)
			b.WriteString(name)
		}
		i += 1 + width
	}

	return b.String()
}

// placeholderName reads a binding name ([A-Za-z_][A-Za-z0-9_]*) from the
// start of s, returning the name and the number of bytes consumed.
func placeholderName(s string) (string, int) {
	n := 0
	for n < len(s) && isNameByte(s[n], n == 0) {
		n++
	}
	return s[:n], n
}

func isNameByte(c byte, first bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		return true
	case c >= '0' && c <= '9':
		return !first
	default:
		return false
	}
}
