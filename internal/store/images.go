package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Chloe-lh/Social-Gold/internal/model"
)

const imageCols = "id, entry, name, ref, display_order, uploaded_at"

func scanImage(r scanner) (*model.EntryImage, error) {
	var img model.EntryImage
	var uploaded string
	err := r.Scan(&img.ID, &img.Entry, &img.Name, &img.Ref,
		&img.Order, &uploaded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if img.UploadedAt, err = decodeTime(uploaded); err != nil {
		return nil, fmt.Errorf("image %d: %w", img.ID, err)
	}
	return &img, nil
}

// AddImage inserts the row and fills img.ID. RETURNING works on both
// drivers; lib/pq has no LastInsertId.
func (s *SQL) AddImage(ctx context.Context, img *model.EntryImage) error {
	err := s.queryRow(ctx,
		`INSERT INTO entry_images (entry, name, ref, display_order, uploaded_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		img.Entry, img.Name, img.Ref, img.Order, encodeTime(img.UploadedAt)).Scan(&img.ID)
	if err != nil {
		return fmt.Errorf("adding image to %s: %w", img.Entry, err)
	}
	return nil
}

func (s *SQL) GetImage(ctx context.Context, id int64) (*model.EntryImage, error) {
	return scanImage(s.queryRow(ctx, `SELECT `+imageCols+` FROM entry_images WHERE id = ?`, id))
}

func (s *SQL) ListImagesByEntry(ctx context.Context, entry string) ([]*model.EntryImage, error) {
	rows, err := s.query(ctx,
		`SELECT `+imageCols+` FROM entry_images WHERE entry = ?
		 ORDER BY display_order, id`, entry)
	if err != nil {
		return nil, fmt.Errorf("listing images of %s: %w", entry, err)
	}
	defer rows.Close()
	var out []*model.EntryImage
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

func (s *SQL) DeleteImage(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM entry_images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting image %d: %w", id, err)
	}
	return oneRow(res)
}
