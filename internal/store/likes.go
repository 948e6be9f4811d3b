package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Chloe-lh/Social-Gold/internal/model"
)

const likeCols = "id, author, object, published"

func scanLike(r scanner) (*model.Like, error) {
	var l model.Like
	var published string
	err := r.Scan(&l.ID, &l.Author, &l.Object, &published)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if l.Published, err = decodeTime(published); err != nil {
		return nil, fmt.Errorf("like %s: %w", l.ID, err)
	}
	return &l, nil
}

func (s *SQL) CreateLike(ctx context.Context, l *model.Like) (bool, error) {
	res, err := s.exec(ctx,
		`INSERT INTO likes (`+likeCols+`) VALUES (?, ?, ?, ?)
		 ON CONFLICT (author, object) DO NOTHING`,
		l.ID, l.Author, l.Object, encodeTime(l.Published))
	if err != nil {
		return false, fmt.Errorf("creating like %s: %w", l.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQL) GetLike(ctx context.Context, id string) (*model.Like, error) {
	return scanLike(s.queryRow(ctx, `SELECT `+likeCols+` FROM likes WHERE id = ?`, id))
}

func (s *SQL) GetLikeByPair(ctx context.Context, author, object string) (*model.Like, error) {
	return scanLike(s.queryRow(ctx,
		`SELECT `+likeCols+` FROM likes WHERE author = ? AND object = ?`, author, object))
}

func (s *SQL) ListLikesByObject(ctx context.Context, object string, limit, offset int) ([]*model.Like, int, error) {
	total, err := s.count(ctx, `SELECT COUNT(*) FROM likes WHERE object = ?`, object)
	if err != nil {
		return nil, 0, fmt.Errorf("counting likes on %s: %w", object, err)
	}
	rows, err := s.query(ctx,
		`SELECT `+likeCols+` FROM likes WHERE object = ?
		 ORDER BY published DESC, id LIMIT ? OFFSET ?`, object, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing likes on %s: %w", object, err)
	}
	likes, err := collectLikes(rows)
	return likes, total, err
}

func (s *SQL) ListLikesByAuthor(ctx context.Context, author string, limit, offset int) ([]*model.Like, int, error) {
	total, err := s.count(ctx, `SELECT COUNT(*) FROM likes WHERE author = ?`, author)
	if err != nil {
		return nil, 0, fmt.Errorf("counting likes by %s: %w", author, err)
	}
	rows, err := s.query(ctx,
		`SELECT `+likeCols+` FROM likes WHERE author = ?
		 ORDER BY published DESC, id LIMIT ? OFFSET ?`, author, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing likes by %s: %w", author, err)
	}
	likes, err := collectLikes(rows)
	return likes, total, err
}

func collectLikes(rows *sql.Rows) ([]*model.Like, error) {
	defer rows.Close()
	var out []*model.Like
	for rows.Next() {
		l, err := scanLike(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
