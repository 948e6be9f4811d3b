package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Chloe-lh/Social-Gold/internal/model"
)

const entryCols = "id, author, title, content, content_type, visibility, published, updated"

func scanEntry(r scanner) (*model.Entry, error) {
	var e model.Entry
	var published string
	var updated sql.NullString
	err := r.Scan(&e.ID, &e.Author, &e.Title, &e.Content, &e.ContentType,
		&e.Visibility, &published, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if e.Published, err = decodeTime(published); err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	if updated.Valid {
		t, err := decodeTime(updated.String)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		e.Updated = &t
	}
	return &e, nil
}

func encodeUpdated(e *model.Entry) any {
	if e.Updated == nil {
		return nil
	}
	return encodeTime(*e.Updated)
}

func (s *SQL) CreateEntry(ctx context.Context, e *model.Entry) error {
	_, err := s.exec(ctx,
		`INSERT INTO entries (`+entryCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Author, e.Title, e.Content, e.ContentType, e.Visibility,
		encodeTime(e.Published), encodeUpdated(e))
	if err != nil {
		return fmt.Errorf("creating entry %s: %w", e.ID, err)
	}
	return nil
}

// UpsertEntry refreshes the local copy of an entry pushed by its origin
// node; redelivered creates overwrite rather than error.
func (s *SQL) UpsertEntry(ctx context.Context, e *model.Entry) error {
	_, err := s.exec(ctx,
		`INSERT INTO entries (`+entryCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			content_type = excluded.content_type,
			visibility = excluded.visibility,
			updated = excluded.updated`,
		e.ID, e.Author, e.Title, e.Content, e.ContentType, e.Visibility,
		encodeTime(e.Published), encodeUpdated(e))
	if err != nil {
		return fmt.Errorf("upserting entry %s: %w", e.ID, err)
	}
	return nil
}

func (s *SQL) UpdateEntry(ctx context.Context, e *model.Entry) error {
	res, err := s.exec(ctx,
		`UPDATE entries SET title = ?, content = ?, content_type = ?, visibility = ?,
			updated = ? WHERE id = ?`,
		e.Title, e.Content, e.ContentType, e.Visibility, encodeUpdated(e), e.ID)
	if err != nil {
		return fmt.Errorf("updating entry %s: %w", e.ID, err)
	}
	return oneRow(res)
}

func (s *SQL) GetEntry(ctx context.Context, id string) (*model.Entry, error) {
	return scanEntry(s.queryRow(ctx, `SELECT `+entryCols+` FROM entries WHERE id = ?`, id))
}

// visibleByAuthor gates an author's entries against a viewer. An empty
// viewer is a node peer syncing content: PUBLIC and UNLISTED only.
const visibleByAuthor = `
	author = ? AND visibility <> 'DELETED' AND (
		author = ?
		OR visibility = 'PUBLIC'
		OR (visibility = 'UNLISTED' AND (? = '' OR EXISTS (
			SELECT 1 FROM follows WHERE actor = ? AND object = entries.author AND state = 'ACCEPTED')))
		OR (visibility = 'FRIENDS' AND ? <> ''
			AND EXISTS (SELECT 1 FROM follows WHERE actor = ? AND object = entries.author AND state = 'ACCEPTED')
			AND EXISTS (SELECT 1 FROM follows WHERE actor = entries.author AND object = ? AND state = 'ACCEPTED'))
	)`

func (s *SQL) ListEntriesByAuthor(ctx context.Context, author, viewer string, limit, offset int) ([]*model.Entry, int, error) {
	args := []any{author, viewer, viewer, viewer, viewer, viewer, viewer}
	total, err := s.count(ctx, `SELECT COUNT(*) FROM entries WHERE`+visibleByAuthor, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("counting entries of %s: %w", author, err)
	}
	rows, err := s.query(ctx,
		`SELECT `+entryCols+` FROM entries WHERE`+visibleByAuthor+`
		 ORDER BY published DESC, id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing entries of %s: %w", author, err)
	}
	entries, err := collectEntries(rows)
	return entries, total, err
}

// StreamEntries is the home stream query: everything the viewer may see,
// newest first.
func (s *SQL) StreamEntries(ctx context.Context, viewer string, limit, offset int) ([]*model.Entry, error) {
	rows, err := s.query(ctx,
		`SELECT `+entryCols+` FROM entries
		 WHERE visibility <> 'DELETED' AND (
			author = ?
			OR visibility = 'PUBLIC'
			OR (visibility = 'UNLISTED' AND EXISTS (
				SELECT 1 FROM follows WHERE actor = ? AND object = entries.author AND state = 'ACCEPTED'))
			OR (visibility = 'FRIENDS'
				AND EXISTS (SELECT 1 FROM follows WHERE actor = ? AND object = entries.author AND state = 'ACCEPTED')
				AND EXISTS (SELECT 1 FROM follows WHERE actor = entries.author AND object = ? AND state = 'ACCEPTED'))
		 )
		 ORDER BY published DESC, id LIMIT ? OFFSET ?`,
		viewer, viewer, viewer, viewer, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("streaming entries for %s: %w", viewer, err)
	}
	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]*model.Entry, error) {
	defer rows.Close()
	var out []*model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
