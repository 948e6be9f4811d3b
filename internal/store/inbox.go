package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Chloe-lh/Social-Gold/internal/model"
)

const inboxCols = "id, owner, object_id, raw, received"

func scanInboxItem(r scanner) (*model.InboxItem, error) {
	var it model.InboxItem
	var raw string
	var received string
	err := r.Scan(&it.ID, &it.Owner, &it.ObjectID, &raw, &received)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	it.Raw = []byte(raw)
	if it.Received, err = decodeTime(received); err != nil {
		return nil, fmt.Errorf("inbox item %s: %w", it.ID, err)
	}
	return &it, nil
}

func (s *SQL) AddInboxItem(ctx context.Context, it *model.InboxItem) error {
	_, err := s.exec(ctx,
		`INSERT INTO inbox_items (`+inboxCols+`) VALUES (?, ?, ?, ?, ?)`,
		it.ID, it.Owner, it.ObjectID, string(it.Raw), encodeTime(it.Received))
	if err != nil {
		return fmt.Errorf("adding inbox item for %s: %w", it.Owner, err)
	}
	return nil
}

// ListInbox returns newest first; ULID ids order by mint time.
func (s *SQL) ListInbox(ctx context.Context, owner string, limit, offset int) ([]*model.InboxItem, int, error) {
	total, err := s.count(ctx, `SELECT COUNT(*) FROM inbox_items WHERE owner = ?`, owner)
	if err != nil {
		return nil, 0, fmt.Errorf("counting inbox of %s: %w", owner, err)
	}
	rows, err := s.query(ctx,
		`SELECT `+inboxCols+` FROM inbox_items WHERE owner = ?
		 ORDER BY id DESC LIMIT ? OFFSET ?`, owner, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing inbox of %s: %w", owner, err)
	}
	defer rows.Close()
	var out []*model.InboxItem
	for rows.Next() {
		it, err := scanInboxItem(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, it)
	}
	return out, total, rows.Err()
}

func (s *SQL) ListDeliveredAuthors(ctx context.Context, object string) ([]*model.Author, error) {
	rows, err := s.query(ctx,
		`SELECT DISTINCT `+prefixed(authorCols, "a")+` FROM authors a
		 JOIN inbox_items i ON i.owner = a.id
		 WHERE i.object_id = ?`, object)
	if err != nil {
		return nil, fmt.Errorf("listing delivered authors for %s: %w", object, err)
	}
	return collectAuthors(rows)
}
