package rushtpl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLSource reads templates from a table with a unique "path" column and a
// "body" column. Paths look like "partial/header.html". Queries use '?'
// placeholders.
type SQLSource struct {
	db    *sql.DB
	table string
	ext   string
}

// NewSQLSource wraps db. The caller registers the driver and owns db.
func NewSQLSource(db *sql.DB, table, ext string) (*SQLSource, error) {
	if table == "" {
		table = "templates"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SQLSource{db: db, table: table, ext: ext}, nil
}

// EnsureSchema creates the table when it does not exist.
func (s *SQLSource) EnsureSchema(ctx context.Context) error {
	q := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (path TEXT PRIMARY KEY, body TEXT NOT NULL)`
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("creating table %s: %w", s.table, err)
	}
	return nil
}

func (s *SQLSource) Resolve(kind Kind, name string) string {
	return kind.String() + "/" + withExt(name, s.ext)
}

func (s *SQLSource) Read(ctx context.Context, ref string) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM `+s.table+` WHERE path = ?`, ref).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying template %q: %w", ref, err)
	}
	return []byte(body), nil
}

// Put inserts or replaces the template text for kind and name.
func (s *SQLSource) Put(ctx context.Context, kind Kind, name, text string) error {
	q := `INSERT INTO ` + s.table + ` (path, body) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET body = excluded.body`
	if _, err := s.db.ExecContext(ctx, q, s.Resolve(kind, name), text); err != nil {
		return fmt.Errorf("storing %s %q: %w", kind, name, err)
	}
	return nil
}
