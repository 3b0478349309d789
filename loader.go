package rushtpl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/0xTanzim/rushtpl/internal/logging"
)

// ----------------------------- Loader & cache -------------------------------

// Kind is the role a named template plays.
type Kind uint8

const (
	KindTemplate Kind = iota
	KindPartial
	KindComponent
	KindLayout
)

var kindNames = [...]string{"template", "partial", "component", "layout"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps "template", "partial", "component" or "layout" to a Kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown template kind %q", s)
}

// Stats counts parses and cache lookups since the loader was created.
type Stats struct {
	Parses int64 `json:"parses"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Loader resolves names to parse results: in-memory registrations first,
// then the parse cache, then the Source.
type Loader struct {
	source Source
	parse  func(string) *ParseResult
	cache  bool
	log    *slog.Logger

	mu         sync.RWMutex
	registered map[string]*ParseResult // "kind:name"

	// entries holds "kind:ref" -> *ParseResult. Concurrent misses for the
	// same key may both parse; the last store wins.
	entries sync.Map

	parses atomic.Int64
	hits   atomic.Int64
	misses atomic.Int64
}

// NewLoader returns a loader reading from src. parse defaults to Parse.
func NewLoader(src Source, parse func(string) *ParseResult, cache bool, log *slog.Logger) *Loader {
	if parse == nil {
		parse = Parse
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Loader{
		source:     src,
		parse:      parse,
		cache:      cache,
		log:        log,
		registered: make(map[string]*ParseResult),
	}
}

// Register stores text parsed ahead of time under name. Registrations take
// precedence over the source and are not affected by Clear.
func (l *Loader) Register(kind Kind, name string, pr *ParseResult) {
	l.mu.Lock()
	l.registered[kind.String()+":"+name] = pr
	l.mu.Unlock()
}

// Load returns the parse result for name. Errors wrap ErrNotFound when the
// source has no such template.
func (l *Loader) Load(ctx context.Context, kind Kind, name string) (*ParseResult, error) {
	l.mu.RLock()
	pr, ok := l.registered[kind.String()+":"+name]
	l.mu.RUnlock()
	if ok {
		return pr, nil
	}
	if l.source == nil {
		return nil, fmt.Errorf("%s %q: %w", kind, name, ErrNotFound)
	}

	ref := l.source.Resolve(kind, name)
	key := kind.String() + ":" + ref
	if l.cache {
		if v, ok := l.entries.Load(key); ok {
			l.hits.Add(1)
			return v.(*ParseResult), nil
		}
	}
	l.misses.Add(1)

	data, err := l.source.Read(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("reading %s %q: %w", kind, name, err)
	}
	pr = l.parse(string(data))
	l.parses.Add(1)
	l.log.Debug("template parsed", slog.String("kind", kind.String()), slog.String("ref", ref))
	if l.cache {
		l.entries.Store(key, pr)
	}
	return pr, nil
}

// Clear drops every cached parse result.
func (l *Loader) Clear() {
	l.entries.Clear()
}

// Invalidate drops cached results for one resolved reference, whatever kind
// they were loaded as.
func (l *Loader) Invalidate(ref string) {
	for _, k := range kindNames {
		l.entries.Delete(k + ":" + ref)
	}
}

// Stats returns a snapshot of the counters.
func (l *Loader) Stats() Stats {
	return Stats{
		Parses: l.parses.Load(),
		Hits:   l.hits.Load(),
		Misses: l.misses.Load(),
	}
}
