package rushtpl

import (
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/valyala/fasttemplate"
	"golang.org/x/text/language"
)

// Translations maps a locale to its messages, keyed by dotted message key.
type Translations map[string]map[string]string

// Merge copies other into t, replacing existing keys.
func (t Translations) Merge(other Translations) {
	for locale, msgs := range other {
		if t[locale] == nil {
			t[locale] = make(map[string]string, len(msgs))
		}
		maps.Copy(t[locale], msgs)
	}
}

// LoadTranslations reads one YAML or JSON file per locale from dir; the file
// name without extension is the locale. Nested keys are flattened with dots.
func LoadTranslations(dir string) (Translations, error) {
	const errCtx = "loading translations"
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}
	out := make(Translations)
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml" && ext != ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}
		var tree map[string]any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("%s: parsing %s: %w", errCtx, e.Name(), err)
		}
		msgs := make(map[string]string)
		flattenMessages("", tree, msgs)
		out[strings.TrimSuffix(e.Name(), ext)] = msgs
	}
	return out, nil
}

func flattenMessages(prefix string, tree map[string]any, out map[string]string) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := toMap(v); ok {
			flattenMessages(key, sub, out)
			continue
		}
		out[key] = toString(v)
	}
}

// translator resolves message keys against a locale, falling back to the
// locale's base language and then the fallback locale.
type translator struct {
	table          Translations
	defaultLocale  string
	fallbackLocale string
}

// locale picks the render locale: the context's $locale, else the default.
func (tr *translator) locale(ctx Context) string {
	if s, ok := ctx[localeKey].(string); ok && s != "" {
		return s
	}
	return tr.defaultLocale
}

func (tr *translator) candidates(locale string) []string {
	out := []string{locale}
	if tag, err := language.Parse(locale); err == nil {
		if s := tag.String(); s != locale {
			out = append(out, s)
		}
		if base, conf := tag.Base(); conf != language.No {
			out = append(out, base.String())
		}
	}
	if tr.fallbackLocale != "" {
		out = append(out, tr.fallbackLocale)
	}
	return out
}

func (tr *translator) lookup(locale, key string) (string, bool) {
	for _, loc := range tr.candidates(locale) {
		if msg, ok := tr.table[loc][key]; ok {
			return msg, true
		}
	}
	return "", false
}

// interpolate replaces {name} placeholders from vars first, then ctx.
// Unknown placeholders are kept.
func interpolate(msg string, ctx Context, vars map[string]any) string {
	if !strings.Contains(msg, "{") {
		return msg
	}
	out, err := fasttemplate.ExecuteFuncStringWithErr(msg, "{", "}", func(w io.Writer, tag string) (int, error) {
		if v, ok := vars[tag]; ok {
			return io.WriteString(w, toString(v))
		}
		if v, ok := ctx.Lookup(tag); ok {
			return io.WriteString(w, toString(v))
		}
		return io.WriteString(w, "{"+tag+"}")
	})
	if err != nil {
		return msg
	}
	return out
}

// translateHelper: t key [locale]. A missing key renders as the key itself.
func (b *builtins) translateHelper(ctx Context, args ...any) (any, error) {
	key := argString(args, 0, "")
	locale := argString(args, 1, b.i18n.locale(ctx))
	msg, ok := b.i18n.lookup(locale, key)
	if !ok {
		return key, nil
	}
	return interpolate(msg, ctx, nil), nil
}

// translatePluralHelper: tn key count [locale]. It selects key.zero (when
// present) for 0, key.one for 1 and key.other otherwise.
func (b *builtins) translatePluralHelper(ctx Context, args ...any) (any, error) {
	key := argString(args, 0, "")
	count := argFloat(args, 1, 0)
	locale := argString(args, 2, b.i18n.locale(ctx))

	forms := []string{"other"}
	switch count {
	case 0:
		forms = []string{"zero", "other"}
	case 1:
		forms = []string{"one", "other"}
	}
	vars := map[string]any{"count": strconv.FormatFloat(count, 'f', -1, 64)}
	// a locale's own plural forms win over the fallback locale's
	for _, loc := range b.i18n.candidates(locale) {
		for _, form := range forms {
			if msg, ok := b.i18n.table[loc][key+"."+form]; ok {
				return interpolate(msg, ctx, vars), nil
			}
		}
	}
	if msg, ok := b.i18n.lookup(locale, key); ok {
		return interpolate(msg, ctx, vars), nil
	}
	return key, nil
}
