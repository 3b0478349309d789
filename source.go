package rushtpl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// ErrNotFound is wrapped by sources when a template does not exist.
var ErrNotFound = errors.New("template not found")

// Source reads template text by reference.
type Source interface {
	// Resolve maps a name to a reference, applying the kind's location and
	// the default extension.
	Resolve(kind Kind, name string) string
	// Read returns the template text stored under ref.
	Read(ctx context.Context, ref string) ([]byte, error)
}

// withExt appends ext when name has no extension.
func withExt(name, ext string) string {
	if ext == "" || path.Ext(name) != "" {
		return name
	}
	return name + ext
}

// FileSource reads templates from per-kind directories.
type FileSource struct {
	dirs [len(kindNames)]string
	ext  string
	enc  encoding.Encoding
}

// NewFileSource builds a source from the directory, extension and encoding
// settings in cfg.
func NewFileSource(cfg Config) (*FileSource, error) {
	enc, err := lookupEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	s := &FileSource{ext: cfg.Extension, enc: enc}
	s.dirs[KindTemplate] = cfg.TemplatesDir
	s.dirs[KindPartial] = cfg.PartialsDir
	s.dirs[KindComponent] = cfg.ComponentsDir
	s.dirs[KindLayout] = cfg.LayoutsDir
	return s, nil
}

// lookupEncoding returns nil for UTF-8, which needs no decoding.
func lookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == unicode.UTF8 {
		return nil, nil
	}
	return enc, nil
}

// Dirs returns the distinct non-empty directories, in kind order.
func (s *FileSource) Dirs() []string {
	var out []string
	seen := map[string]bool{}
	for _, d := range s.dirs {
		if d != "" && !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

// Ext returns the default extension.
func (s *FileSource) Ext() string { return s.ext }

// Dir returns the directory of kind.
func (s *FileSource) Dir(kind Kind) string {
	if int(kind) < len(s.dirs) {
		return s.dirs[kind]
	}
	return ""
}

// Resolve joins the kind directory with name. Names cannot climb out of the
// directory.
func (s *FileSource) Resolve(kind Kind, name string) string {
	clean := filepath.FromSlash(path.Clean("/" + withExt(name, s.ext)))
	return filepath.Join(s.Dir(kind), strings.TrimPrefix(clean, string(filepath.Separator)))
}

func (s *FileSource) Read(_ context.Context, ref string) ([]byte, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
		}
		return nil, fmt.Errorf("reading template %q: %w", ref, err)
	}
	if s.enc == nil {
		return data, nil
	}
	decoded, err := s.enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decoding template %q: %w", ref, err)
	}
	return decoded, nil
}
