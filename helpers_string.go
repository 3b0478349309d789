package rushtpl

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Casers are stateful, so each call gets its own.
func upper(s string) string { return cases.Upper(language.Und).String(s) }

func lower(s string) string { return cases.Lower(language.Und).String(s) }

func title(s string) string { return cases.Title(language.Und).String(s) }

// capitalize upper-cases the first letter and leaves the rest alone.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// slugify lowercases s, strips accents and joins words with '-'.
func slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = lower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	dash := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}

func truncateHelper(_ Context, args ...any) (any, error) {
	s := argString(args, 0, "")
	n := argInt(args, 1, 50)
	suffix := argString(args, 2, "...")
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s, nil
	}
	rs := []rune(s)
	return string(rs[:n]) + suffix, nil
}

func replaceHelper(_ Context, args ...any) (any, error) {
	return strings.ReplaceAll(argString(args, 0, ""), argString(args, 1, ""), argString(args, 2, "")), nil
}

func concatHelper(_ Context, args ...any) (any, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(toString(a))
	}
	return b.String(), nil
}
