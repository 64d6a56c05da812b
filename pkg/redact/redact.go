// Package redact masks password literals in SQL text before it is logged or
// exported.
package redact

import (
	"regexp"
	"slices"
	"strings"
)

const Placeholder = "..."

const keyword = "PASSW"

var (
	insertHead = regexp.MustCompile(`(?is)^(\s*INSERT\s+INTO\s+[^(]*\()([^)]*)(\)\s*VALUES\s*\()`)
	assignment = regexp.MustCompile("(?i)\\bPASSW\\w*[\"`]?\\s*=\\s*")
	roleOption = regexp.MustCompile(`(?i)\bPASSWORD\s+`)
	nextRow    = regexp.MustCompile(`^\s*,\s*\(`)
)

// SQL returns text with password values replaced by Placeholder. Text it
// cannot parse is returned unchanged.
func SQL(text string) string {
	out, _ := Redact(text)
	return out
}

// Redact is SQL that also reports whether a password keyword was present but
// no known statement shape matched, so nothing was masked.
func Redact(text string) (string, bool) {
	if !strings.Contains(strings.ToUpper(text), keyword) {
		return text, false
	}

	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(text)), "INSERT") {
		if out, ok := redactInsert(text); ok {
			return out, false
		}
	}

	out, ok := redactAssignments(text)
	if !ok {
		return text, true
	}
	return out, false
}

// redactInsert handles `prefix (columns) VALUES (values), (values) suffix`,
// masking the value at the same position as every password column in every
// row.
func redactInsert(text string) (string, bool) {
	m := insertHead.FindStringSubmatchIndex(text)
	if m == nil {
		return "", false
	}
	columns := splitList(text[m[4]:m[5]])

	var sb strings.Builder
	sb.WriteString(text[:m[1]])
	masked := false
	pos := m[1]
	var suffix string
	for {
		valEnd := closingParen(text, pos)
		if valEnd < 0 {
			return "", false
		}
		values := splitList(text[pos:valEnd])
		for i, col := range columns {
			if i >= len(values) {
				break
			}
			if isPasswordColumn(col) {
				values[i] = maskElement(values[i])
				masked = true
			}
		}
		sb.WriteString(strings.Join(values, ","))
		sb.WriteByte(')')

		rest := text[valEnd+1:]
		loc := nextRow.FindStringIndex(rest)
		if loc == nil {
			suffix = rest
			break
		}
		sb.WriteString(rest[:loc[1]])
		pos = valEnd + 1 + loc[1]
	}

	// ON CONFLICT ... SET password = ... lives in the suffix.
	if s, ok := redactAssignments(suffix); ok {
		suffix = s
		masked = true
	}
	if !masked {
		return "", false
	}

	sb.WriteString(suffix)
	return sb.String(), true
}

type span struct{ start, end int }

// redactAssignments masks the literal following every `password... =` and
// every `PASSWORD '...'` role option.
func redactAssignments(text string) (string, bool) {
	var spans []span

	for _, loc := range assignment.FindAllStringIndex(text, -1) {
		if end := literalEnd(text, loc[1]); end > loc[1] {
			spans = append(spans, span{loc[1], end})
		}
	}
	for _, loc := range roleOption.FindAllStringIndex(text, -1) {
		if loc[1] < len(text) && (text[loc[1]] == '\'' || isEscapePrefix(text, loc[1])) {
			spans = append(spans, span{loc[1], literalEnd(text, loc[1])})
		}
	}
	if len(spans) == 0 {
		return text, false
	}

	var sb strings.Builder
	last := 0
	slices.SortFunc(spans, func(a, b span) int { return a.start - b.start })
	for _, s := range spans {
		if s.start < last {
			continue
		}
		sb.WriteString(text[last:s.start])
		sb.WriteString(Placeholder)
		last = s.end
	}
	sb.WriteString(text[last:])
	return sb.String(), true
}

func isPasswordColumn(col string) bool {
	name := strings.Trim(strings.TrimSpace(col), "\"`[]")
	return strings.HasPrefix(strings.ToUpper(name), keyword)
}

// maskElement replaces the element body and keeps its surrounding spaces.
func maskElement(el string) string {
	lead := len(el) - len(strings.TrimLeft(el, " \t\r\n"))
	trail := len(strings.TrimRight(el, " \t\r\n"))
	if trail <= lead {
		return el
	}
	return el[:lead] + Placeholder + el[trail:]
}

// literalEnd returns the end of the token starting at start: a quoted or
// escape string (E'...') up to its closing quote, otherwise everything up to
// whitespace, a comma, a closing paren or a semicolon.
func literalEnd(s string, start int) int {
	if start >= len(s) {
		return start
	}
	if isEscapePrefix(s, start) {
		return skipQuoted(s, start+1)
	}
	if s[start] == '\'' {
		return skipQuoted(s, start)
	}
	i := start
	for i < len(s) && !strings.ContainsRune(" \t\r\n,);", rune(s[i])) {
		i++
	}
	return i
}

// isEscapePrefix reports whether s[i:] starts an escape string (E'...').
func isEscapePrefix(s string, i int) bool {
	return i+1 < len(s) && (s[i] == 'E' || s[i] == 'e') && s[i+1] == '\'' && !isIdentByte(s, i-1)
}

func isIdentByte(s string, i int) bool {
	if i < 0 {
		return false
	}
	switch c := s[i]; {
	case c == '_', '0' <= c && c <= '9', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		return true
	}
	return false
}

// skipQuoted returns the index just past the literal or quoted identifier
// opening at from. Doubled quotes are part of the text, and so are backslash
// escapes in an escape string.
func skipQuoted(s string, from int) int {
	q := s[from]
	escapes := q == '\'' && from > 0 && isEscapePrefix(s, from-1)
	for i := from + 1; i < len(s); i++ {
		switch {
		case escapes && s[i] == '\\':
			i++
		case s[i] != q:
		case i+1 < len(s) && s[i+1] == q:
			i++
		default:
			return i + 1
		}
	}
	return len(s)
}

// closingParen finds the paren closing a list that starts at from, skipping
// quoted text and nested calls.
func closingParen(s string, from int) int {
	depth := 0
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '\'', '"':
			i = skipQuoted(s, i) - 1
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// splitList splits on top-level commas. Elements keep their whitespace so the
// list can be joined back byte for byte.
func splitList(s string) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'', '"':
			i = skipQuoted(s, i) - 1
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}
