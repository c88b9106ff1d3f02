package journal

import "strings"

// EscapeField quote-wraps s, doubling any embedded quote character, the
// same scheme FileWriter::escapeString uses. A field written this way
// round-trips through UnescapeField even if s itself contains ';', '"',
// or a newline.
func EscapeField(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			b.WriteString(`""`)
		} else {
			b.WriteByte(s[i])
		}
	}
	b.WriteByte('"')
	return b.String()
}

// UnescapeField reverses EscapeField. Fields that aren't quote-wrapped
// (integers, id lists) are returned unchanged, since only string fields
// are ever escaped on write.
func UnescapeField(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	inner := s[1 : len(s)-1]
	return strings.ReplaceAll(inner, `""`, `"`)
}

// SplitFields splits a raw line on ';', respecting quoted fields so a
// ';' inside an escaped string doesn't end the field early. The line's
// trailing ';' (every FileWriter field ends with one) produces one
// empty trailing token, which callers should ignore.
func SplitFields(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			inQuotes = !inQuotes
			cur.WriteByte(ch)
		case ch == ';' && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	fields = append(fields, cur.String())
	return fields
}
