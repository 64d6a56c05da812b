package proxy

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Resolve substitutes bound values into query for diagnostics. It knows
// `?`, `$N`, `:name` and `@name` placeholders and leaves quoted text,
// comments and `::` casts alone. Placeholders without a bound value are
// kept as written.
func Resolve(query string, args []driver.NamedValue) string {
	if len(args) == 0 {
		return query
	}

	byOrdinal := make(map[int]driver.NamedValue, len(args))
	byName := make(map[string]driver.NamedValue)
	for i, a := range args {
		ord := a.Ordinal
		if ord == 0 {
			ord = i + 1
		}
		byOrdinal[ord] = a
		if a.Name != "" {
			byName[a.Name] = a
		}
	}

	var sb strings.Builder
	sb.Grow(len(query) + 16*len(args))

	positional := 0
	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"':
			end := skipQuoted(query, i)
			sb.WriteString(query[i:end])
			i = end
		case c == '-' && strings.HasPrefix(query[i:], "--"):
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = len(query) - i
			}
			sb.WriteString(query[i : i+end])
			i += end
		case c == '?':
			positional++
			if a, ok := byOrdinal[positional]; ok {
				sb.WriteString(formatValue(a.Value))
			} else {
				sb.WriteByte(c)
			}
			i++
		case c == '$' && i+1 < len(query) && isDigit(query[i+1]):
			j := i + 1
			for j < len(query) && isDigit(query[j]) {
				j++
			}
			n, _ := strconv.Atoi(query[i+1 : j])
			if a, ok := byOrdinal[n]; ok {
				sb.WriteString(formatValue(a.Value))
			} else {
				sb.WriteString(query[i:j])
			}
			i = j
		case c == ':' && i+1 < len(query) && query[i+1] == ':':
			sb.WriteString("::")
			i += 2
		case (c == ':' || c == '@') && i+1 < len(query) && isIdentStart(query[i+1]):
			j := i + 1
			for j < len(query) && isIdentPart(query[j]) {
				j++
			}
			if a, ok := byName[query[i+1:j]]; ok {
				sb.WriteString(formatValue(a.Value))
			} else {
				sb.WriteString(query[i:j])
			}
			i = j
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

func skipQuoted(s string, start int) int {
	q := s[start]
	for i := start + 1; i < len(s); i++ {
		if s[i] != q {
			continue
		}
		if i+1 < len(s) && s[i+1] == q {
			i++
			continue
		}
		return i + 1
	}
	return len(s)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// formatValue renders v as a SQL literal. nil renders as null.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return quote(x)
	case []byte:
		if x == nil {
			return "null"
		}
		if utf8.Valid(x) {
			return quote(string(x))
		}
		return fmt.Sprintf(`'\x%x'`, x)
	case time.Time:
		return quote(x.Format(time.RFC3339Nano))
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case driver.Valuer:
		if rv := reflect.ValueOf(x); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return "null"
		}
		val, err := x.Value()
		if err != nil {
			return "?"
		}
		return formatValue(val)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "null"
		}
		return formatValue(rv.Elem().Interface())
	}
	if rv.Kind() == reflect.String {
		return quote(rv.String())
	}
	return fmt.Sprintf("%v", v)
}
