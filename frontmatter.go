package rushtpl

import (
	"strconv"
	"strings"
)

// ----------------------------- Frontmatter ----------------------------------

const frontmatterDelim = "---"

// splitFrontmatter separates a leading `---` block of `key: value` lines from
// the body. A block without a closing delimiter line is left in the body.
func splitFrontmatter(src string) (map[string]any, string) {
	first, rest, ok := cutLine(src)
	if !ok || strings.TrimRight(first, " \t\r") != frontmatterDelim {
		return nil, src
	}

	var lines []string
	for {
		line, next, more := cutLine(rest)
		if strings.TrimRight(line, " \t\r") == frontmatterDelim {
			return parseFrontmatter(lines), next
		}
		if !more {
			return nil, src
		}
		lines = append(lines, line)
		rest = next
	}
}

// cutLine returns the text before the next newline and the text after it.
// more is false when s has no newline.
func cutLine(s string) (line, rest string, more bool) {
	i := strings.IndexByte(s, '\n')
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

func parseFrontmatter(lines []string) map[string]any {
	fm := make(map[string]any, len(lines))
	for _, line := range lines {
		line = fastTrim(line)
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = fastTrim(key)
		if key == "" {
			continue
		}
		fm[key] = coerceScalar(fastTrim(value))
	}
	return fm
}

// coerceScalar converts a frontmatter value: [a, b] lists, booleans, integers,
// decimals, and optionally quoted strings.
func coerceScalar(v string) any {
	if len(v) >= 2 && v[0] == '[' && v[len(v)-1] == ']' {
		inner := fastTrim(v[1 : len(v)-1])
		if inner == "" {
			return []any{}
		}
		parts := strings.Split(inner, ",")
		list := make([]any, 0, len(parts))
		for _, p := range parts {
			list = append(list, unquote(fastTrim(p)))
		}
		return list
	}
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if n, ok := numberLiteral(v); ok {
		return n
	}
	return unquote(v)
}

// numberLiteral parses integers as int and decimals as float64.
func numberLiteral(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	i := 0
	if s[0] == '-' || s[0] == '+' {
		i++
	}
	digits, dots := 0, 0
	for ; i < len(s); i++ {
		switch c := s[i]; {
		case isDigit(c):
			digits++
		case c == '.':
			dots++
		default:
			return nil, false
		}
	}
	if digits == 0 || dots > 1 {
		return nil, false
	}
	if dots == 0 {
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	return f, true
}
