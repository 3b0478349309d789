// Package rushtpl is a template engine for HTML that accepts several directive
// syntaxes in the same file:
//
//	{{ user.name }}  {{{ raw }}}  {{ name | upper }}  {{ formatDate date "YYYY" }}
//	{{#if cond}}...{{/if}}  {{#each items as item}}...{{/each}}  {{> partial a=b }}
//	<%= value %>  <%- raw %>  <% if cond %>...<% endif %>  <% for x in xs %>...<% endfor %>
//	<Card title="x" count={n}>children</Card>  <Layout name="base">...</Layout>
//
// Templates may start with a frontmatter block delimited by "---" lines. Its
// keys are available as $meta, and a "layout" key wraps the template in that
// layout, which receives the rendered body as content.
//
// Parsing never fails. Malformed markup is kept as text, or replaced by an
// HTML comment describing the problem when debug mode is on. Missing helpers,
// partials, components and layouts render nothing. The only render error is a
// missing entry template or a failing writer.
//
// An Engine resolves names through a Source (files, Redis or SQL), caches
// parse results and renders concurrently:
//
//	e, err := rushtpl.New(rushtpl.DefaultConfig())
//	if err != nil { ... }
//	err = e.RenderTemplate(ctx, w, "blog/post", map[string]any{"title": "Hi"})
package rushtpl
