package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Chloe-lh/Social-Gold/internal/model"
)

const commentCols = "id, entry, author, reply_to, content, content_type, published"

func scanComment(r scanner) (*model.Comment, error) {
	var c model.Comment
	var published string
	err := r.Scan(&c.ID, &c.Entry, &c.Author, &c.ReplyTo, &c.Content,
		&c.ContentType, &published)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.Published, err = decodeTime(published); err != nil {
		return nil, fmt.Errorf("comment %s: %w", c.ID, err)
	}
	return &c, nil
}

// CreateComment ignores redelivery of a comment the node already holds.
func (s *SQL) CreateComment(ctx context.Context, c *model.Comment) (bool, error) {
	res, err := s.exec(ctx,
		`INSERT INTO comments (`+commentCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		c.ID, c.Entry, c.Author, c.ReplyTo, c.Content, c.ContentType,
		encodeTime(c.Published))
	if err != nil {
		return false, fmt.Errorf("creating comment %s: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQL) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	return scanComment(s.queryRow(ctx, `SELECT `+commentCols+` FROM comments WHERE id = ?`, id))
}

func (s *SQL) ListCommentsByEntry(ctx context.Context, entry string, limit, offset int) ([]*model.Comment, int, error) {
	total, err := s.count(ctx, `SELECT COUNT(*) FROM comments WHERE entry = ?`, entry)
	if err != nil {
		return nil, 0, fmt.Errorf("counting comments on %s: %w", entry, err)
	}
	rows, err := s.query(ctx,
		`SELECT `+commentCols+` FROM comments WHERE entry = ?
		 ORDER BY published DESC, id LIMIT ? OFFSET ?`, entry, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing comments on %s: %w", entry, err)
	}
	comments, err := collectComments(rows)
	return comments, total, err
}

func (s *SQL) ListCommentsByAuthor(ctx context.Context, author string, limit, offset int) ([]*model.Comment, int, error) {
	total, err := s.count(ctx, `SELECT COUNT(*) FROM comments WHERE author = ?`, author)
	if err != nil {
		return nil, 0, fmt.Errorf("counting comments by %s: %w", author, err)
	}
	rows, err := s.query(ctx,
		`SELECT `+commentCols+` FROM comments WHERE author = ?
		 ORDER BY published DESC, id LIMIT ? OFFSET ?`, author, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing comments by %s: %w", author, err)
	}
	comments, err := collectComments(rows)
	return comments, total, err
}

func collectComments(rows *sql.Rows) ([]*model.Comment, error) {
	defer rows.Close()
	var out []*model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
