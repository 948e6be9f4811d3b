package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timeLayout is RFC3339 with fixed-width milliseconds so the TEXT
// columns sort chronologically under ORDER BY.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// SQL implements Store on database/sql. The same statements serve both
// drivers; Postgres gets its placeholders rebound on the way out.
type SQL struct {
	db *sql.DB
	pg bool
}

var _ Store = (*SQL)(nil)

func (s *SQL) Close() error {
	return s.db.Close()
}

// q rewrites ? placeholders to $1..$n for the Postgres driver.
func (s *SQL) q(query string) string {
	if !s.pg {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQL) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.q(query), args...)
}

func (s *SQL) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.q(query), args...)
}

func (s *SQL) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.q(query), args...)
}

func (s *SQL) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// scanner covers *sql.Row and *sql.Rows for the shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

// prefixed qualifies a column list with a table alias for joins.
func prefixed(cols, alias string) string {
	parts := strings.Split(cols, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

func (s *SQL) initSchema(ctx context.Context) error {
	imageID := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.pg {
		imageID = "BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			id           TEXT PRIMARY KEY,
			title        TEXT NOT NULL DEFAULT '',
			description  TEXT NOT NULL DEFAULT '',
			auth_user    TEXT NOT NULL DEFAULT '',
			auth_pass    TEXT NOT NULL DEFAULT '',
			inbound_user TEXT NOT NULL DEFAULT '',
			inbound_hash TEXT NOT NULL DEFAULT '',
			is_active    BOOLEAN NOT NULL DEFAULT TRUE,
			created      TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS authors (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL,
			password_hash TEXT NOT NULL DEFAULT '',
			email         TEXT NOT NULL DEFAULT '',
			display_name  TEXT NOT NULL DEFAULT '',
			host          TEXT NOT NULL,
			bio           TEXT NOT NULL DEFAULT '',
			profile_image TEXT NOT NULL DEFAULT '',
			is_approved   BOOLEAN NOT NULL DEFAULT FALSE,
			created       TEXT NOT NULL
		)`,
		// Usernames are unique among credentialed local authors only;
		// mirrors of remote authors may collide freely.
		`CREATE UNIQUE INDEX IF NOT EXISTS authors_local_username
			ON authors (username) WHERE password_hash <> ''`,
		`CREATE TABLE IF NOT EXISTS entries (
			id           TEXT PRIMARY KEY,
			author       TEXT NOT NULL,
			title        TEXT NOT NULL DEFAULT '',
			content      TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL DEFAULT 'text/plain',
			visibility   TEXT NOT NULL DEFAULT 'PUBLIC',
			published    TEXT NOT NULL,
			updated      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS entries_author ON entries (author)`,
		`CREATE INDEX IF NOT EXISTS entries_published ON entries (published)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id           TEXT PRIMARY KEY,
			entry        TEXT NOT NULL,
			author       TEXT NOT NULL,
			reply_to     TEXT NOT NULL DEFAULT '',
			content      TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT 'text/markdown',
			published    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS comments_entry ON comments (entry)`,
		`CREATE TABLE IF NOT EXISTS likes (
			id        TEXT PRIMARY KEY,
			author    TEXT NOT NULL,
			object    TEXT NOT NULL,
			published TEXT NOT NULL,
			UNIQUE (author, object)
		)`,
		`CREATE INDEX IF NOT EXISTS likes_object ON likes (object)`,
		`CREATE TABLE IF NOT EXISTS follows (
			id        TEXT PRIMARY KEY,
			actor     TEXT NOT NULL,
			object    TEXT NOT NULL,
			state     TEXT NOT NULL DEFAULT 'REQUESTED',
			published TEXT NOT NULL,
			UNIQUE (actor, object)
		)`,
		`CREATE INDEX IF NOT EXISTS follows_object ON follows (object)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS entry_images (
			id            %s,
			entry         TEXT NOT NULL,
			name          TEXT NOT NULL DEFAULT '',
			ref           TEXT NOT NULL,
			display_order INTEGER NOT NULL DEFAULT 0,
			uploaded_at   TEXT NOT NULL
		)`, imageID),
		`CREATE INDEX IF NOT EXISTS entry_images_entry ON entry_images (entry)`,
		`CREATE TABLE IF NOT EXISTS inbox_items (
			id        TEXT PRIMARY KEY,
			owner     TEXT NOT NULL,
			object_id TEXT NOT NULL DEFAULT '',
			raw       TEXT NOT NULL,
			received  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS inbox_owner ON inbox_items (owner)`,
		`CREATE INDEX IF NOT EXISTS inbox_object ON inbox_items (object_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}
