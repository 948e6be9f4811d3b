package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Chloe-lh/Social-Gold/internal/model"
)

const authorCols = "id, username, password_hash, email, display_name, host, bio, profile_image, is_approved, created"

func scanAuthor(r scanner) (*model.Author, error) {
	var a model.Author
	var created string
	err := r.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Email, &a.DisplayName,
		&a.Host, &a.Bio, &a.ProfileImage, &a.IsApproved, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.Created, err = decodeTime(created); err != nil {
		return nil, fmt.Errorf("author %s: %w", a.ID, err)
	}
	return &a, nil
}

func (s *SQL) CreateAuthor(ctx context.Context, a *model.Author) error {
	_, err := s.exec(ctx,
		`INSERT INTO authors (`+authorCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Username, a.PasswordHash, a.Email, a.DisplayName,
		a.Host, a.Bio, a.ProfileImage, a.IsApproved, encodeTime(a.Created))
	if err != nil {
		return fmt.Errorf("creating author %s: %w", a.ID, err)
	}
	return nil
}

// UpsertRemoteAuthor refreshes the local mirror of an author owned by
// another node. Credentials are never touched.
func (s *SQL) UpsertRemoteAuthor(ctx context.Context, a *model.Author) error {
	_, err := s.exec(ctx,
		`INSERT INTO authors (`+authorCols+`) VALUES (?, ?, '', '', ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			display_name = excluded.display_name,
			host = excluded.host,
			bio = excluded.bio,
			profile_image = excluded.profile_image`,
		a.ID, a.Username, a.DisplayName, a.Host, a.Bio, a.ProfileImage,
		a.IsApproved, encodeTime(a.Created))
	if err != nil {
		return fmt.Errorf("upserting author %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQL) UpdateAuthor(ctx context.Context, a *model.Author) error {
	res, err := s.exec(ctx,
		`UPDATE authors SET username = ?, email = ?, display_name = ?, bio = ?,
			profile_image = ?, is_approved = ? WHERE id = ?`,
		a.Username, a.Email, a.DisplayName, a.Bio, a.ProfileImage, a.IsApproved, a.ID)
	if err != nil {
		return fmt.Errorf("updating author %s: %w", a.ID, err)
	}
	return oneRow(res)
}

func (s *SQL) GetAuthor(ctx context.Context, id string) (*model.Author, error) {
	return scanAuthor(s.queryRow(ctx, `SELECT `+authorCols+` FROM authors WHERE id = ?`, id))
}

// GetAuthorByUsername resolves login names; only credentialed local
// authors count, so remote mirrors can never shadow a login.
func (s *SQL) GetAuthorByUsername(ctx context.Context, username string) (*model.Author, error) {
	return scanAuthor(s.queryRow(ctx,
		`SELECT `+authorCols+` FROM authors WHERE username = ? AND password_hash <> ''`, username))
}

func (s *SQL) ListAuthors(ctx context.Context, host string, limit, offset int) ([]*model.Author, int, error) {
	total, err := s.count(ctx,
		`SELECT COUNT(*) FROM authors WHERE host = ? AND is_approved`, host)
	if err != nil {
		return nil, 0, fmt.Errorf("counting authors: %w", err)
	}
	rows, err := s.query(ctx,
		`SELECT `+authorCols+` FROM authors WHERE host = ? AND is_approved
		 ORDER BY username LIMIT ? OFFSET ?`, host, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing authors: %w", err)
	}
	authors, err := collectAuthors(rows)
	return authors, total, err
}

func collectAuthors(rows *sql.Rows) ([]*model.Author, error) {
	defer rows.Close()
	var out []*model.Author
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// oneRow maps an update that touched nothing to ErrNotFound.
func oneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
