package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Chloe-lh/Social-Gold/internal/model"
)

const followCols = "id, actor, object, state, published"

func scanFollow(r scanner) (*model.Follow, error) {
	var f model.Follow
	var published string
	err := r.Scan(&f.ID, &f.Actor, &f.Object, &f.State, &published)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if f.Published, err = decodeTime(published); err != nil {
		return nil, fmt.Errorf("follow %s: %w", f.ID, err)
	}
	return &f, nil
}

// CreateFollow keeps the first request's id and state when the pair
// already exists, so redelivered follows are harmless.
func (s *SQL) CreateFollow(ctx context.Context, f *model.Follow) (bool, error) {
	res, err := s.exec(ctx,
		`INSERT INTO follows (`+followCols+`) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (actor, object) DO NOTHING`,
		f.ID, f.Actor, f.Object, f.State, encodeTime(f.Published))
	if err != nil {
		return false, fmt.Errorf("creating follow %s: %w", f.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQL) GetFollow(ctx context.Context, id string) (*model.Follow, error) {
	return scanFollow(s.queryRow(ctx, `SELECT `+followCols+` FROM follows WHERE id = ?`, id))
}

func (s *SQL) GetFollowByPair(ctx context.Context, actor, object string) (*model.Follow, error) {
	return scanFollow(s.queryRow(ctx,
		`SELECT `+followCols+` FROM follows WHERE actor = ? AND object = ?`, actor, object))
}

func (s *SQL) SetFollowState(ctx context.Context, actor, object, state string) error {
	res, err := s.exec(ctx,
		`UPDATE follows SET state = ? WHERE actor = ? AND object = ?`, state, actor, object)
	if err != nil {
		return fmt.Errorf("setting follow %s -> %s to %s: %w", actor, object, state, err)
	}
	return oneRow(res)
}

func (s *SQL) DeleteFollow(ctx context.Context, actor, object string) error {
	res, err := s.exec(ctx,
		`DELETE FROM follows WHERE actor = ? AND object = ?`, actor, object)
	if err != nil {
		return fmt.Errorf("deleting follow %s -> %s: %w", actor, object, err)
	}
	return oneRow(res)
}

func (s *SQL) ListFollowers(ctx context.Context, object string) ([]*model.Author, error) {
	rows, err := s.query(ctx,
		`SELECT `+prefixed(authorCols, "a")+` FROM authors a
		 JOIN follows f ON f.actor = a.id
		 WHERE f.object = ? AND f.state = 'ACCEPTED'
		 ORDER BY a.id`, object)
	if err != nil {
		return nil, fmt.Errorf("listing followers of %s: %w", object, err)
	}
	return collectAuthors(rows)
}

func (s *SQL) ListFollowing(ctx context.Context, actor string) ([]*model.Author, error) {
	rows, err := s.query(ctx,
		`SELECT `+prefixed(authorCols, "a")+` FROM authors a
		 JOIN follows f ON f.object = a.id
		 WHERE f.actor = ? AND f.state = 'ACCEPTED'
		 ORDER BY a.id`, actor)
	if err != nil {
		return nil, fmt.Errorf("listing following of %s: %w", actor, err)
	}
	return collectAuthors(rows)
}

func (s *SQL) ListFriends(ctx context.Context, author string) ([]*model.Author, error) {
	rows, err := s.query(ctx,
		`SELECT `+prefixed(authorCols, "a")+` FROM authors a
		 WHERE EXISTS (SELECT 1 FROM follows WHERE actor = a.id AND object = ? AND state = 'ACCEPTED')
		   AND EXISTS (SELECT 1 FROM follows WHERE actor = ? AND object = a.id AND state = 'ACCEPTED')
		 ORDER BY a.id`, author, author)
	if err != nil {
		return nil, fmt.Errorf("listing friends of %s: %w", author, err)
	}
	return collectAuthors(rows)
}
