package rushtpl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariables(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []Node
	}{
		{
			name: "escaped",
			src:  "Hello {{ name }}!",
			want: []Node{Text{Content: "Hello "}, Variable{Path: "name", Escape: true}, Text{Content: "!"}},
		},
		{
			name: "raw triple braces",
			src:  "{{{ html }}}",
			want: []Node{Variable{Path: "html"}},
		},
		{
			name: "angle escaped",
			src:  "<%= user.name %>",
			want: []Node{Variable{Path: "user.name", Escape: true}},
		},
		{
			name: "angle raw",
			src:  "<%- body %>",
			want: []Node{Variable{Path: "body"}},
		},
		{
			name: "comments are dropped",
			src:  "a{{! note }}b<%# other %>c",
			want: []Node{Text{Content: "abc"}},
		},
		{
			name: "filters",
			src:  "{{ name | upper | truncate 10 }}",
			want: []Node{Variable{Path: "name", Escape: true, Filters: []FilterCall{
				{Name: "upper"},
				{Name: "truncate", Args: []string{"10"}},
			}}},
		},
		{
			name: "colon filter arguments",
			src:  "{{ price | round:2 }}",
			want: []Node{Variable{Path: "price", Escape: true, Filters: []FilterCall{{Name: "round", Args: []string{"2"}}}}},
		},
		{
			name: "helper call",
			src:  `{{ formatDate date "YYYY" }}`,
			want: []Node{Helper{Name: "formatDate", Args: []string{"date", `"YYYY"`}, Escape: true}},
		},
		{
			name: "pipe inside quotes is not a filter",
			src:  `{{ concat "a|b" x }}`,
			want: []Node{Helper{Name: "concat", Args: []string{`"a|b"`, "x"}, Escape: true}},
		},
		{
			name: "lowercase tags are text",
			src:  "<div><p>x</p></div>",
			want: []Node{Text{Content: "<div><p>x</p></div>"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.src).Nodes)
		})
	}
}

func TestParseBlocks(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []Node
	}{
		{
			name: "mustache if",
			src:  "{{#if user}}Hi{{/if}}",
			want: []Node{Block{Kind: BlockIf, Expr: "user", Children: []Node{Text{Content: "Hi"}}}},
		},
		{
			name: "helper condition",
			src:  `{{#if eq status "active"}}on{{/if}}`,
			want: []Node{Block{Kind: BlockIf, Expr: `eq status "active"`, Children: []Node{Text{Content: "on"}}}},
		},
		{
			name: "each default alias",
			src:  "{{#each items}}{{ this }}{{/each}}",
			want: []Node{Block{Kind: BlockEach, Expr: "items", Alias: "this", Children: []Node{Variable{Path: "this", Escape: true}}}},
		},
		{
			name: "each as pipes",
			src:  "{{#each items as |item|}}{{ item }}{{/each}}",
			want: []Node{Block{Kind: BlockEach, Expr: "items", Alias: "item", Children: []Node{Variable{Path: "item", Escape: true}}}},
		},
		{
			name: "each in",
			src:  "{{#each item in items}}x{{/each}}",
			want: []Node{Block{Kind: BlockEach, Expr: "items", Alias: "item", Children: []Node{Text{Content: "x"}}}},
		},
		{
			name: "angle for of",
			src:  "<% for x of xs %><%= x %><% endfor %>",
			want: []Node{Block{Kind: BlockEach, Expr: "xs", Alias: "x", Children: []Node{Variable{Path: "x", Escape: true}}}},
		},
		{
			name: "angle if",
			src:  "<% if a %>y<% endif %>",
			want: []Node{Block{Kind: BlockIf, Expr: "a", Children: []Node{Text{Content: "y"}}}},
		},
		{
			name: "nested",
			src:  "{{#each rows}}{{#if ok}}<% for c in cells %>.<% endfor %>{{/if}}{{/each}}",
			want: []Node{Block{Kind: BlockEach, Expr: "rows", Alias: "this", Children: []Node{
				Block{Kind: BlockIf, Expr: "ok", Children: []Node{
					Block{Kind: BlockEach, Expr: "cells", Alias: "c", Children: []Node{Text{Content: "."}}},
				}},
			}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.src).Nodes)
		})
	}
}

func TestParsePartialsAndComponents(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []Node
	}{
		{
			name: "partial with props",
			src:  `{{> card title="Hi" user=author }}`,
			want: []Node{Partial{Name: "card", Props: []Prop{
				{Name: "title", Value: "Hi", Kind: PropLiteral},
				{Name: "user", Value: "author", Kind: PropExpr},
			}}},
		},
		{
			name: "partial with context map",
			src:  `{{> row item }}`,
			want: []Node{Partial{Name: "row", Props: []Prop{{Value: "item", Kind: PropExpr}}}},
		},
		{
			name: "component with children",
			src:  `<Card title="Hi" count={n} active>body</Card>`,
			want: []Node{Component{Name: "Card", Props: []Prop{
				{Name: "title", Value: "Hi", Kind: PropLiteral},
				{Name: "count", Value: "n", Kind: PropExpr},
				{Name: "active", Value: "true", Kind: PropExpr},
			}, Children: []Node{Text{Content: "body"}}}},
		},
		{
			name: "self closing",
			src:  `<Icon name='star'/>`,
			want: []Node{Component{Name: "Icon", Props: []Prop{{Name: "name", Value: "star", Kind: PropLiteral}}}},
		},
		{
			name: "nested components",
			src:  `<Outer><Inner x={a.b}/></Outer>`,
			want: []Node{Component{Name: "Outer", Children: []Node{
				Component{Name: "Inner", Props: []Prop{{Name: "x", Value: "a.b", Kind: PropExpr}}},
			}}},
		},
		{
			name: "layout tag",
			src:  `<Layout name="base">x</Layout>`,
			want: []Node{Layout{Props: []Prop{{Name: "name", Value: "base", Kind: PropLiteral}}, Children: []Node{Text{Content: "x"}}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.src).Nodes)
		})
	}
}

func TestParseDegradesMalformedMarkup(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		want  []Node
		debug []Node
	}{
		{
			name:  "unclosed block",
			src:   "{{#if a}}x",
			want:  []Node{Text{Content: "{{#if a}}x"}},
			debug: []Node{Text{Content: "<!-- rushtpl: unclosed {{#if}} -->"}, Text{Content: "x"}},
		},
		{
			name:  "stray closer",
			src:   "a{{/if}}b",
			want:  []Node{Text{Content: "a{{/if}}b"}},
			debug: []Node{Text{Content: "a"}, Text{Content: "<!-- rushtpl: unexpected {{/if}} -->"}, Text{Content: "b"}},
		},
		{
			name:  "empty tag",
			src:   "{{}}",
			want:  []Node{Text{Content: "{{}}"}},
			debug: []Node{Text{Content: "<!-- rushtpl: empty tag -->"}},
		},
		{
			name: "unterminated tag",
			src:  "{{ name",
			want: []Node{Text{Content: "{{ name"}},
		},
		{
			name: "unknown block keyword",
			src:  "{{#with x}}y{{/with}}",
			want: []Node{Text{Content: "{{#with x}}y{{/with}}"}},
		},
		{
			name: "unclosed component",
			src:  "<Card>text",
			want: []Node{Text{Content: "<Card>text"}},
		},
		{
			name: "stray component closer",
			src:  "x</Card>",
			want: []Node{Text{Content: "x</Card>"}},
		},
		{
			name: "interleaved closers",
			src:  "{{#if a}}<Card>x{{/if}}</Card>",
			want: []Node{
				Block{Kind: BlockIf, Expr: "a", Children: []Node{Text{Content: "<Card>x"}}},
				Text{Content: "</Card>"},
			},
		},
		{
			name: "mismatched syntax closer",
			src:  "{{#if a}}x<% endif %>",
			want: []Node{Text{Content: "{{#if a}}x<% endif %>"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.src).Nodes)
			if tt.debug != nil {
				assert.Equal(t, tt.debug, ParseDebug(tt.src).Nodes)
			}
		})
	}
}

func TestParseManyUnclosedBlocksTerminates(t *testing.T) {
	src := strings.Repeat("{{#if a}}<Card>", 200)
	pr := Parse(src)
	require.Len(t, pr.Nodes, 1)
	assert.Equal(t, src, pr.Nodes[0].(Text).Content)
}

func TestParseNeverPanics(t *testing.T) {
	inputs := []string{
		"", "{", "{{", "}}", "{{{", "<%", "%>", "<", "</", "<A", "</A", "<A b=", `<A b="`, "<A b={",
		"{{#each}}", "{{#each a b c d}}", "<% for %>", "<% for a at b %>", "{{>}}", "---\n", "---\na: b\n",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Parse(in) }, in)
		assert.NotPanics(t, func() { ParseDebug(in) }, in)
	}
}

func TestParseMetadata(t *testing.T) {
	src := `---
title: Home
tags: [a, "b"]
layout: base
draft: false
count: 3
---
{{> header }}<Card><Icon /></Card><Fragment>x</Fragment>{{> header }}<Layout name="inner">y</Layout>`

	pr := Parse(src)
	m := pr.Metadata
	assert.Equal(t, map[string]any{
		"title":  "Home",
		"tags":   []any{"a", "b"},
		"layout": "base",
		"draft":  false,
		"count":  3,
	}, m.Frontmatter)
	assert.Equal(t, "base", m.Layout)
	assert.Equal(t, []string{"header"}, m.Partials)
	assert.Equal(t, []string{"Card", "Icon"}, m.Components)
	assert.Equal(t, []string{
		"layout:base", "partial:header", "component:Card", "component:Icon", "layout:inner",
	}, m.Dependencies)

	first, ok := pr.Nodes[0].(Partial)
	require.True(t, ok, "frontmatter must not reach the node tree")
	assert.Equal(t, "header", first.Name)
}

func TestParseWithoutFrontmatter(t *testing.T) {
	pr := Parse("---\nnot closed")
	assert.Nil(t, pr.Metadata.Frontmatter)
	assert.Equal(t, []Node{Text{Content: "---\nnot closed"}}, pr.Nodes)
}
