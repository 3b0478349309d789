package rushtpl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.TemplatesDir = dir
	cfg.PartialsDir = filepath.Join(dir, "partials")
	cfg.ComponentsDir = filepath.Join(dir, "components")
	cfg.LayoutsDir = filepath.Join(dir, "layouts")
	return cfg
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(testConfig(t), opts...)
	require.NoError(t, err)
	return e
}

func renderText(t *testing.T, e *Engine, src string, data map[string]any, opts ...RenderOption) string {
	t.Helper()
	out, err := e.Render(context.Background(), e.Parse(src).Nodes, data, opts...)
	require.NoError(t, err)
	return out
}

func TestRenderBasics(t *testing.T) {
	e := newTestEngine(t)
	tests := []struct {
		name string
		src  string
		data map[string]any
		want string
	}{
		{"escaped variable", "Hello {{name}}!", map[string]any{"name": "<b>Bo</b>"}, "Hello &lt;b&gt;Bo&lt;/b&gt;!"},
		{"each this", "{{#each items}}{{this}}-{{/each}}", map[string]any{"items": []any{1, 2, 3}}, "1-2-3-"},
		{"false condition", "{{#if flag}}yes{{/if}}", map[string]any{"flag": false}, ""},
		{"raw variable", "{{{ html }}}", map[string]any{"html": "<i>x</i>"}, "<i>x</i>"},
		{"safe html is not escaped", "{{ html }}", map[string]any{"html": SafeHTML("<i>x</i>")}, "<i>x</i>"},
		{"quotes escaped", "{{ q }}", map[string]any{"q": `"it's"`}, "&quot;it&#39;s&quot;"},
		{"numbers", "{{ a }} {{ b }}", map[string]any{"a": 3, "b": 9.5}, "3 9.5"},
		{"missing variable", "[{{ missing.path }}]", nil, "[]"},
		{"struct fields", "{{ post.title }}", map[string]any{"post": testPost{Title: "T"}}, "T"},
		{"map as json", "{{ user }}", map[string]any{"user": map[string]any{"name": "A"}}, "{&quot;name&quot;:&quot;A&quot;}"},
		{"sequence joined", "{{ tags }}", map[string]any{"tags": []string{"a", "b"}}, "a,b"},
		{"angle syntax", "<% for x in xs %><%= x %>,<% endfor %><% if ok %>!<% endif %>", map[string]any{"xs": []string{"a", "<"}, "ok": true}, "a,&lt;,!"},
		{"angle raw", "<%- h %>", map[string]any{"h": "<br>"}, "<br>"},
		{"degraded markup is literal", "{{#if a}}x", map[string]any{"a": true}, "{{#if a}}x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderText(t, e, tt.src, tt.data))
		})
	}
}

func TestRenderTruthiness(t *testing.T) {
	e := newTestEngine(t)
	tests := []struct {
		value any
		want  string
	}{
		{nil, ""},
		{false, ""},
		{0, ""},
		{0.0, ""},
		{"", ""},
		{[]any{}, ""},
		{[]string{}, ""},
		{true, "y"},
		{1, "y"},
		{"0", "y"},
		{[]any{0}, "y"},
		{map[string]any{}, "y"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T(%v)", tt.value, tt.value), func(t *testing.T) {
			assert.Equal(t, tt.want, renderText(t, e, "{{#if v}}y{{/if}}", map[string]any{"v": tt.value}))
		})
	}
	assert.Empty(t, renderText(t, e, "{{#if undefinedValue}}y{{/if}}", nil))
}

func TestRenderConditions(t *testing.T) {
	e := newTestEngine(t)
	data := map[string]any{"status": "active", "n": 5, "flag": false}

	assert.Equal(t, "on", renderText(t, e, `{{#if eq status "active"}}on{{/if}}`, data))
	assert.Equal(t, "", renderText(t, e, `{{#if eq status "gone"}}on{{/if}}`, data))
	assert.Equal(t, "big", renderText(t, e, `{{#if gt n 3}}big{{/if}}`, data))
	assert.Equal(t, "neg", renderText(t, e, `{{#if not flag}}neg{{/if}}`, data))
	assert.Equal(t, "", renderText(t, e, `{{#if noSuchHelper status}}x{{/if}}`, data))
	assert.Equal(t, "lit", renderText(t, e, `{{#if true}}lit{{/if}}`, data))
}

func TestRenderEachMetadata(t *testing.T) {
	e := newTestEngine(t)
	data := map[string]any{
		"title": "T",
		"items": []any{map[string]any{"name": "a"}, map[string]any{"name": "b"}},
	}
	src := "{{#each items as item}}{{@index}}:{{item.name}}{{#if @first}}F{{/if}}{{#if @last}}L{{/if}}/{{@length}};{{/each}}"
	assert.Equal(t, "0:aF/2;1:bL/2;", renderText(t, e, src, data))

	assert.Equal(t, "a,b,", renderText(t, e, "{{#each items}}{{name}},{{/each}}", data))
	assert.Equal(t, "TT", renderText(t, e, "{{#each items}}{{title}}{{/each}}", data))
	assert.Equal(t, "", renderText(t, e, "{{#each title}}x{{/each}}", data))
	assert.Equal(t, "01", renderText(t, e, "{{#each items}}{{@index}}{{/each}}", data))
}

func TestRenderHelpersAndFilters(t *testing.T) {
	e := newTestEngine(t, WithFilters(map[string]FilterFunc{
		"shout": func(v any, _ ...any) (any, error) { return toString(v) + "!", nil },
	}))
	data := map[string]any{"name": "alice", "items": []any{"a", "b"}}

	tests := []struct {
		src  string
		want string
	}{
		{"{{ upper name }}", "ALICE"},
		{`{{ concat "<" "b" }}`, "&lt;b"},
		{`{{{ concat "<" "b" }}}`, "<b"},
		{"{{ name | upper | truncate 3 }}", "ALI..."},
		{"{{ name | shout }}", "alice!"},
		{`{{ items | join "-" }}`, "a-b"},
		{`{{ missing | default "n/a" }}`, "n/a"},
		{"{{ name | capitalize }}", "Alice"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, renderText(t, e, tt.src, data))
		})
	}
}

func TestRenderFailuresDegrade(t *testing.T) {
	e := newTestEngine(t, WithHelpers(map[string]HelperFunc{
		"boom": func(Context, ...any) (any, error) { panic("kaboom") },
		"fail": func(Context, ...any) (any, error) { return nil, errors.New("bad input") },
	}))

	tests := []struct {
		src   string
		want  string
		debug string
	}{
		{"a{{ boom x }}b", "ab", `a<!-- rushtpl: helper "boom": panic: kaboom -->b`},
		{"a{{ fail x }}b", "ab", `a<!-- rushtpl: helper "fail": bad input -->b`},
		{"a{{ nope x }}b", "ab", `a<!-- rushtpl: unknown helper "nope" -->b`},
		{"a{{ x | nope }}b", "ab", `a<!-- rushtpl: unknown filter "nope" -->b`},
		{"a{{ missing }}b", "ab", `a<!-- rushtpl: unresolved "missing" -->b`},
		{"a{{> nope }}b", "ab", `a<!-- rushtpl: partial "nope" not found -->b`},
		{"a<Nope />b", "ab", `a<!-- rushtpl: component "Nope" not found -->b`},
		{`a<Layout name="nope">x</Layout>b`, "ab", `a<!-- rushtpl: layout "nope" not found -->b`},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, renderText(t, e, tt.src, nil))
			assert.Equal(t, tt.debug, renderText(t, e, tt.src, nil, WithDebug(true)))
		})
	}

	// there is no else: it is an unresolved variable inside the if
	on := map[string]any{"a": true}
	assert.Equal(t, "xy", renderText(t, e, "{{#if a}}x{{else}}y{{/if}}", on))
	assert.Equal(t, `x<!-- rushtpl: unresolved "else" -->y`, renderText(t, e, "{{#if a}}x{{else}}y{{/if}}", on, WithDebug(true)))
}

func TestRenderPartials(t *testing.T) {
	e := newTestEngine(t)
	e.RegisterPartial("card", "<h2>{{ title }}</h2><p>{{ user.name }}</p>{{ site }}")
	data := map[string]any{
		"author": map[string]any{"name": "Bo"},
		"site":   "S",
		"item":   map[string]any{"title": "T", "user": map[string]any{"name": "Cy"}},
	}

	assert.Equal(t, "<h2>Hi</h2><p>Bo</p>S", renderText(t, e, `{{> card title="Hi" user=author }}`, data))
	assert.Equal(t, "<h2>T</h2><p>Cy</p>S", renderText(t, e, `{{> card item }}`, data))
	assert.Equal(t, "<h2>S</h2><p></p>S", renderText(t, e, `{{> card title=site }}`, data))
}

func TestRenderComponentsWithSlots(t *testing.T) {
	e := newTestEngine(t)
	e.RegisterComponent("Card", `<div class="card"><header>{{{ $slots.header }}}</header><section>{{ $slots.default }}</section>{{ title }}</div>`)
	e.RegisterComponent("Heading", "<h1>{{ text }}</h1>")
	e.RegisterComponent("Badge", "{{ label }}{{ count }}{{#if on}}!{{/if}}")
	e.RegisterComponent("Wrap", "[{{ $children }}]")

	out := renderText(t, e, `<Card title="X"><Heading slot="header" text="H"/>body {{ who }}</Card>`, map[string]any{"who": "<me>"})
	assert.Equal(t, `<div class="card"><header><h1>H</h1></header><section>body &lt;me&gt;</section>X</div>`, out)

	assert.Equal(t, "L3!", renderText(t, e, `<Badge count={n} label="L" on />`, map[string]any{"n": 3}))
	assert.Equal(t, "[<h1>a</h1>b]", renderText(t, e, `<Wrap><Heading text="a"/>b</Wrap>`, nil))
	assert.Equal(t, "A", renderText(t, e, `<Fragment>{{ a }}</Fragment>`, map[string]any{"a": "A"}))

	e.RegisterComponent("Split", "[{{{ $slots.head }}}|{{{ $slots.default }}}]")
	assert.Equal(t, "[H|b]", renderText(t, e, `<Split><Fragment slot={which}>H</Fragment>b</Split>`, map[string]any{"which": "head"}))
	assert.Equal(t, "[H|b]", renderText(t, e, `<Split><Fragment slot="head">H</Fragment>b</Split>`, nil))
	assert.Equal(t, "[|Hb]", renderText(t, e, `<Split><Fragment slot={missing}>H</Fragment>b</Split>`, nil))
}

func TestRenderLayouts(t *testing.T) {
	e := newTestEngine(t)
	e.RegisterLayout("base", "<main>{{ content }}</main>")
	e.RegisterLayout("shell", "<body>{{ content }}|{{ title }}</body>")
	e.RegisterLayout("outer", "<html>{{{ $content }}}</html>")
	e.RegisterLayout("inner", "---\nlayout: outer\n---\n<main>{{ content }}</main>")
	e.RegisterTemplate("page", "---\nlayout: base\n---\nBODY")
	e.RegisterTemplate("nested", "---\nlayout: inner\ntitle: P\n---\n{{ $meta.title }}")
	e.RegisterTemplate("orphan", "---\nlayout: nope\n---\nBODY")
	ctx := context.Background()

	out, err := e.RenderTemplateString(ctx, "page", nil)
	require.NoError(t, err)
	assert.Equal(t, "<main>BODY</main>", out)

	out, err = e.RenderTemplateString(ctx, "nested", nil)
	require.NoError(t, err)
	assert.Equal(t, "<html><main>P</main></html>", out)

	out, err = e.RenderTemplateString(ctx, "orphan", nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	assert.Equal(t, "<body>inner &lt;|T</body>",
		renderText(t, e, `<Layout name="shell" title="T">inner {{ x }}</Layout>`, map[string]any{"x": "<"}))
}

func TestRenderDepthGuard(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxDepth = 3
	e, err := New(cfg)
	require.NoError(t, err)
	e.RegisterPartial("loop", "x{{> loop }}")
	e.RegisterComponent("Self", "y<Self />")

	assert.Equal(t, "xxx", renderText(t, e, "{{> loop }}", nil))
	assert.Equal(t, "yyy", renderText(t, e, "<Self />", nil))
	assert.Equal(t, `xxx<!-- rushtpl: partial "loop" exceeds max depth 3 -->`,
		renderText(t, e, "{{> loop }}", nil, WithDebug(true)))
}

func TestRenderTemplateFromFiles(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.PartialsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.TemplatesDir, "hello.html"), []byte("Hi {{ name }}{{> sig }}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PartialsDir, "sig.html"), []byte(" -- {{ from }}"), 0o644))
	e, err := New(cfg, WithGlobals(map[string]any{"from": "team", "name": "nobody"}))
	require.NoError(t, err)
	ctx := context.Background()

	out, err := e.RenderTemplateString(ctx, "hello", map[string]any{"name": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ann -- team", out)

	_, err = e.RenderTemplateString(ctx, "hello.html", nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{Parses: 2, Hits: 2, Misses: 2}, e.Stats())

	e.ClearCache()
	_, err = e.RenderTemplateString(ctx, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), e.Stats().Parses)
}

func TestRenderMissingEntryTemplate(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.RenderTemplateString(context.Background(), "nope", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), `loading template "nope"`)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRenderStreamPropagatesWriteErrors(t *testing.T) {
	e := newTestEngine(t)
	err := e.RenderStream(context.Background(), failingWriter{}, e.Parse("x{{ y }}").Nodes, map[string]any{"y": 1})
	assert.EqualError(t, err, "disk full")
}

func TestRenderConcurrent(t *testing.T) {
	e := newTestEngine(t)
	e.RegisterPartial("row", "<li>{{ name }}</li>")
	e.RegisterTemplate("list", "<ul>{{#each people}}{{> row }}{{/each}}</ul>")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("p%d", i)
			out, err := e.RenderTemplateString(context.Background(), "list", map[string]any{
				"people": []any{map[string]any{"name": name}},
			})
			assert.NoError(t, err)
			assert.Equal(t, "<ul><li>"+name+"</li></ul>", out)
		}(i)
	}
	wg.Wait()
}

func FuzzRenderPlainText(f *testing.F) {
	for _, seed := range []string{"", "plain", "a } b", "50% off", "}}", "%>", "line\nbreak", "naïve"} {
		f.Add(seed)
	}
	e, err := New(DefaultConfig(), WithSource(emptySource{}))
	require.NoError(f, err)
	f.Fuzz(func(t *testing.T, s string) {
		if strings.ContainsAny(s, "{<") || strings.HasPrefix(s, "---") {
			t.Skip()
		}
		out, err := e.Render(context.Background(), Parse(s).Nodes, nil)
		require.NoError(t, err)
		assert.Equal(t, s, out)
	})
}

func FuzzRenderVariable(f *testing.F) {
	for _, seed := range []string{"", "<b>", `"it's" & more`, "{{ x }}", "<Card/>", "\x00\xff"} {
		f.Add(seed)
	}
	e, err := New(DefaultConfig(), WithSource(emptySource{}))
	require.NoError(f, err)
	escaped := Parse("{{ x }}").Nodes
	raw := Parse("{{{ x }}}").Nodes
	f.Fuzz(func(t *testing.T, s string) {
		data := map[string]any{"x": s}
		out, err := e.Render(context.Background(), escaped, data)
		require.NoError(t, err)
		assert.Equal(t, htmlEscapeFast(s), out)

		out, err = e.Render(context.Background(), raw, data)
		require.NoError(t, err)
		assert.Equal(t, s, out)
	})
}

type emptySource struct{}

func (emptySource) Resolve(kind Kind, name string) string { return kind.String() + "/" + name }

func (emptySource) Read(_ context.Context, ref string) ([]byte, error) {
	return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
}
