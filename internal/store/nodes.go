package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Chloe-lh/Social-Gold/internal/model"
)

const nodeCols = "id, title, description, auth_user, auth_pass, inbound_user, inbound_hash, is_active, created"

func scanNode(r scanner) (*model.Node, error) {
	var n model.Node
	var created string
	err := r.Scan(&n.ID, &n.Title, &n.Description, &n.AuthUser, &n.AuthPass,
		&n.InboundUser, &n.InboundHash, &n.IsActive, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if n.Created, err = decodeTime(created); err != nil {
		return nil, fmt.Errorf("node %s: %w", n.ID, err)
	}
	return &n, nil
}

func (s *SQL) UpsertNode(ctx context.Context, n *model.Node) error {
	_, err := s.exec(ctx,
		`INSERT INTO nodes (`+nodeCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			auth_user = excluded.auth_user,
			auth_pass = excluded.auth_pass,
			inbound_user = excluded.inbound_user,
			inbound_hash = excluded.inbound_hash,
			is_active = excluded.is_active`,
		n.ID, n.Title, n.Description, n.AuthUser, n.AuthPass,
		n.InboundUser, n.InboundHash, n.IsActive, encodeTime(n.Created))
	if err != nil {
		return fmt.Errorf("upserting node %s: %w", n.ID, err)
	}
	return nil
}

func (s *SQL) GetNode(ctx context.Context, id string) (*model.Node, error) {
	return scanNode(s.queryRow(ctx, `SELECT `+nodeCols+` FROM nodes WHERE id = ?`, id))
}

func (s *SQL) GetNodeByInboundUser(ctx context.Context, user string) (*model.Node, error) {
	return scanNode(s.queryRow(ctx,
		`SELECT `+nodeCols+` FROM nodes WHERE inbound_user = ? AND is_active`, user))
}

func (s *SQL) ListNodes(ctx context.Context, activeOnly bool) ([]*model.Node, error) {
	q := `SELECT ` + nodeCols + ` FROM nodes ORDER BY id`
	if activeOnly {
		q = `SELECT ` + nodeCols + ` FROM nodes WHERE is_active ORDER BY id`
	}
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	defer rows.Close()
	var out []*model.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
