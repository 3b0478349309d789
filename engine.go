package rushtpl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/0xTanzim/rushtpl/internal/logging"
)

// ----------------------------- Public API -----------------------------------

// Engine parses, caches and renders templates. All methods are safe for
// concurrent use.
type Engine struct {
	cfg      Config
	registry *Registry
	loader   *Loader
	source   Source
	globals  Context
	log      *slog.Logger
}

type engineOptions struct {
	helpers      map[string]HelperFunc
	filters      map[string]FilterFunc
	translations Translations
	globals      map[string]any
	source       Source
	logger       *slog.Logger
	clock        func() time.Time
}

// Option configures New.
type Option func(*engineOptions)

// WithHelpers registers helpers after the built-ins, replacing same-named ones.
func WithHelpers(h map[string]HelperFunc) Option {
	return func(o *engineOptions) { o.helpers = h }
}

// WithFilters registers filters.
func WithFilters(f map[string]FilterFunc) Option {
	return func(o *engineOptions) { o.filters = f }
}

// WithTranslations adds messages for the t and tn helpers.
func WithTranslations(t Translations) Option {
	return func(o *engineOptions) { o.translations = t }
}

// WithGlobals sets values visible to every render. Render data overrides them.
func WithGlobals(g map[string]any) Option {
	return func(o *engineOptions) { o.globals = g }
}

// WithSource replaces the default FileSource.
func WithSource(s Source) Option {
	return func(o *engineOptions) { o.source = s }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithClock sets the time source of the now and timeAgo helpers.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) { o.clock = now }
}

// New creates an engine. Unless WithSource is given, templates are read from
// the directories in cfg.
func New(cfg Config, opts ...Option) (*Engine, error) {
	const errCtx = "creating engine"
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}
	o := engineOptions{logger: logging.Nop(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	src := o.source
	if src == nil {
		fsrc, err := NewFileSource(cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}
		src = fsrc
	}

	translations := make(Translations)
	if cfg.LocalesDir != "" {
		loaded, err := LoadTranslations(cfg.LocalesDir)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}
		translations.Merge(loaded)
	}
	translations.Merge(cfg.Translations)
	translations.Merge(o.translations)

	e := &Engine{
		cfg:      cfg,
		registry: NewRegistry(),
		source:   src,
		globals:  Context(cfg.Globals).With(o.globals),
		log:      o.logger,
	}
	e.loader = NewLoader(src, e.Parse, cfg.Cache, o.logger)

	b := &builtins{
		now: o.clock,
		i18n: &translator{
			table:          translations,
			defaultLocale:  cfg.DefaultLocale,
			fallbackLocale: cfg.FallbackLocale,
		},
	}
	b.register(e.registry)
	for name, fn := range o.helpers {
		e.registry.RegisterHelper(name, fn)
	}
	for name, fn := range o.filters {
		e.registry.RegisterFilter(name, fn)
	}
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Registry returns the helper and filter registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Parse parses text, emitting diagnostics when the engine is in debug mode.
func (e *Engine) Parse(text string) *ParseResult {
	return parse(text, e.cfg.Debug)
}

// RegisterHelper adds or replaces a helper.
func (e *Engine) RegisterHelper(name string, fn HelperFunc) {
	e.registry.RegisterHelper(name, fn)
}

// RegisterFilter adds or replaces a filter.
func (e *Engine) RegisterFilter(name string, fn FilterFunc) {
	e.registry.RegisterFilter(name, fn)
}

// RegisterTemplate registers template text under name, ahead of any source.
func (e *Engine) RegisterTemplate(name, text string) {
	e.loader.Register(KindTemplate, name, e.Parse(text))
}

// RegisterPartial registers partial text under name.
func (e *Engine) RegisterPartial(name, text string) {
	e.loader.Register(KindPartial, name, e.Parse(text))
}

// RegisterComponent registers component text under name.
func (e *Engine) RegisterComponent(name, text string) {
	e.loader.Register(KindComponent, name, e.Parse(text))
}

// RegisterLayout registers layout text under name.
func (e *Engine) RegisterLayout(name, text string) {
	e.loader.Register(KindLayout, name, e.Parse(text))
}

// LoadTemplate returns the parse result for name of the given kind.
func (e *Engine) LoadTemplate(ctx context.Context, name string, kind Kind) (*ParseResult, error) {
	return e.loader.Load(ctx, kind, name)
}

// ClearCache drops all cached parse results. Registrations are kept.
func (e *Engine) ClearCache() { e.loader.Clear() }

// Stats reports parse and cache counters.
func (e *Engine) Stats() Stats { return e.loader.Stats() }

// ----- Rendering -----

type renderOptions struct {
	debug  bool
	locale string
}

// RenderOption adjusts a single render call.
type RenderOption func(*renderOptions)

// WithDebug turns diagnostic comments on or off for one render.
func WithDebug(on bool) RenderOption {
	return func(o *renderOptions) { o.debug = on }
}

// WithLocale sets the locale used by t, tn and currency.
func WithLocale(locale string) RenderOption {
	return func(o *renderOptions) { o.locale = locale }
}

func (e *Engine) newRenderer(ctx context.Context, data map[string]any, opts []RenderOption) (*renderer, Context) {
	o := renderOptions{debug: e.cfg.Debug}
	for _, opt := range opts {
		opt(&o)
	}
	scope := e.globals.With(data)
	if o.locale != "" {
		scope[localeKey] = o.locale
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &renderer{
		ctx:      ctx,
		registry: e.registry,
		loader:   e.loader,
		log:      e.log,
		debug:    o.debug,
		maxDepth: e.cfg.MaxDepth,
	}, scope
}

// RenderStream renders nodes against data, writing to w as it goes. Only
// write errors are returned; w is never closed or flushed.
func (e *Engine) RenderStream(ctx context.Context, w io.Writer, nodes []Node, data map[string]any, opts ...RenderOption) error {
	r, scope := e.newRenderer(ctx, data, opts)
	return r.render(w, nodes, scope)
}

// Render renders nodes into a string.
func (e *Engine) Render(ctx context.Context, nodes []Node, data map[string]any, opts ...RenderOption) (string, error) {
	buf := getBuffer()
	defer putBuffer(buf)
	if err := e.RenderStream(ctx, buf, nodes, data, opts...); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderParsed renders a parse result, binding its frontmatter as $meta and
// applying the layout its frontmatter names.
func (e *Engine) RenderParsed(ctx context.Context, w io.Writer, pr *ParseResult, data map[string]any, opts ...RenderOption) error {
	r, scope := e.newRenderer(ctx, data, opts)
	return r.renderResult(w, pr, scope)
}

// RenderTemplate loads the named template and renders it to w. It fails only
// when the template itself cannot be loaded, or on write errors.
func (e *Engine) RenderTemplate(ctx context.Context, w io.Writer, name string, data map[string]any, opts ...RenderOption) error {
	pr, err := e.loader.Load(ctx, KindTemplate, name)
	if err != nil {
		return fmt.Errorf("loading template %q: %w", name, err)
	}
	return e.RenderParsed(ctx, w, pr, data, opts...)
}

// RenderTemplateString is RenderTemplate into a string.
func (e *Engine) RenderTemplateString(ctx context.Context, name string, data map[string]any, opts ...RenderOption) (string, error) {
	buf := getBuffer()
	defer putBuffer(buf)
	if err := e.RenderTemplate(ctx, buf, name, data, opts...); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ----- File system integration -----

var errNoFileSource = errors.New("engine does not read from the file system")

// Preload parses every file under the configured directories into the cache
// and returns how many were loaded.
func (e *Engine) Preload(ctx context.Context) (int, error) {
	const errCtx = "preloading templates"
	fsrc, ok := e.source.(*FileSource)
	if !ok {
		return 0, fmt.Errorf("%s: %w", errCtx, errNoFileSource)
	}
	loaded := 0
	for _, kind := range []Kind{KindPartial, KindComponent, KindLayout, KindTemplate} {
		dir := fsrc.Dir(kind)
		if dir == "" {
			continue
		}
		matches, err := doublestar.FilepathGlob(filepath.Join(dir, "**", "*"+fsrc.Ext()))
		if err != nil {
			return loaded, fmt.Errorf("%s: %w", errCtx, err)
		}
		for _, m := range matches {
			rel, err := filepath.Rel(dir, m)
			if err != nil || isNestedKindDir(fsrc, kind, m) {
				continue
			}
			if _, err := e.loader.Load(ctx, kind, filepath.ToSlash(rel)); err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return loaded, fmt.Errorf("%s: %w", errCtx, err)
			}
			loaded++
		}
	}
	e.log.Debug("templates preloaded", slog.Int("count", loaded))
	return loaded, nil
}

// isNestedKindDir reports whether path lives in another kind's directory
// nested below kind's directory, as partials do under templates by default.
func isNestedKindDir(fsrc *FileSource, kind Kind, path string) bool {
	own := fsrc.Dir(kind)
	for k := range kindNames {
		other := fsrc.Dir(Kind(k))
		if Kind(k) == kind || other == "" || other == own {
			continue
		}
		if strings.HasPrefix(path, other+string(filepath.Separator)) &&
			strings.HasPrefix(other, own+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Watch polls the template directories until ctx is done, dropping cached
// entries for files that change.
func (e *Engine) Watch(ctx context.Context) error {
	fsrc, ok := e.source.(*FileSource)
	if !ok {
		return fmt.Errorf("watching templates: %w", errNoFileSource)
	}
	w := NewWatcher(fsrc.Dirs(), fsrc.Ext(), e.cfg.WatchInterval, e.cfg.WatchDebounce, e.log)
	w.AddCallback(func(paths []string) {
		for _, p := range paths {
			e.loader.Invalidate(p)
		}
	})
	return w.Run(ctx)
}
