// Package store persists the node's social graph and content behind a
// single interface with Postgres and SQLite drivers.
package store

import (
	"context"
	"errors"

	"github.com/Chloe-lh/Social-Gold/internal/model"
)

// ErrNotFound is returned by every lookup that matches no row.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence surface the handlers and the dispatcher run
// against. Both SQL drivers implement it; tests mock it.
type Store interface {
	// Authors. Local authors carry a password hash; remote mirrors are
	// upserted from inbound activity and carry none.
	CreateAuthor(ctx context.Context, a *model.Author) error
	UpsertRemoteAuthor(ctx context.Context, a *model.Author) error
	UpdateAuthor(ctx context.Context, a *model.Author) error
	GetAuthor(ctx context.Context, id string) (*model.Author, error)
	GetAuthorByUsername(ctx context.Context, username string) (*model.Author, error)
	ListAuthors(ctx context.Context, host string, limit, offset int) ([]*model.Author, int, error)

	// Nodes are the admin-managed federation peers, keyed by base URL.
	UpsertNode(ctx context.Context, n *model.Node) error
	GetNode(ctx context.Context, id string) (*model.Node, error)
	GetNodeByInboundUser(ctx context.Context, user string) (*model.Node, error)
	ListNodes(ctx context.Context, activeOnly bool) ([]*model.Node, error)

	CreateEntry(ctx context.Context, e *model.Entry) error
	UpsertEntry(ctx context.Context, e *model.Entry) error
	UpdateEntry(ctx context.Context, e *model.Entry) error
	GetEntry(ctx context.Context, id string) (*model.Entry, error)
	// ListEntriesByAuthor filters by what viewer may see: authors see all
	// their own, "" (a node peer) sees PUBLIC and UNLISTED, everyone else
	// gets the visibility rules applied against the follow graph.
	ListEntriesByAuthor(ctx context.Context, author, viewer string, limit, offset int) ([]*model.Entry, int, error)
	// StreamEntries is the home stream: own entries plus PUBLIC plus
	// UNLISTED from followed authors plus FRIENDS from friends.
	StreamEntries(ctx context.Context, viewer string, limit, offset int) ([]*model.Entry, error)

	// CreateComment reports false when the comment id already exists;
	// redelivery keeps the original row.
	CreateComment(ctx context.Context, c *model.Comment) (bool, error)
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	ListCommentsByEntry(ctx context.Context, entry string, limit, offset int) ([]*model.Comment, int, error)
	ListCommentsByAuthor(ctx context.Context, author string, limit, offset int) ([]*model.Comment, int, error)

	// CreateLike reports false when the (author, object) pair already
	// liked; the row keeps its original id.
	CreateLike(ctx context.Context, l *model.Like) (bool, error)
	GetLike(ctx context.Context, id string) (*model.Like, error)
	GetLikeByPair(ctx context.Context, author, object string) (*model.Like, error)
	ListLikesByObject(ctx context.Context, object string, limit, offset int) ([]*model.Like, int, error)
	ListLikesByAuthor(ctx context.Context, author string, limit, offset int) ([]*model.Like, int, error)

	// CreateFollow reports false when a follow for (actor, object)
	// already exists; the existing row and state win.
	CreateFollow(ctx context.Context, f *model.Follow) (bool, error)
	GetFollow(ctx context.Context, id string) (*model.Follow, error)
	GetFollowByPair(ctx context.Context, actor, object string) (*model.Follow, error)
	SetFollowState(ctx context.Context, actor, object, state string) error
	DeleteFollow(ctx context.Context, actor, object string) error
	ListFollowers(ctx context.Context, object string) ([]*model.Author, error)
	ListFollowing(ctx context.Context, actor string) ([]*model.Author, error)
	// ListFriends returns authors whose ACCEPTED follow with the given
	// author runs both ways.
	ListFriends(ctx context.Context, author string) ([]*model.Author, error)

	AddImage(ctx context.Context, img *model.EntryImage) error
	GetImage(ctx context.Context, id int64) (*model.EntryImage, error)
	ListImagesByEntry(ctx context.Context, entry string) ([]*model.EntryImage, error)
	DeleteImage(ctx context.Context, id int64) error

	AddInboxItem(ctx context.Context, it *model.InboxItem) error
	ListInbox(ctx context.Context, owner string, limit, offset int) ([]*model.InboxItem, int, error)
	// ListDeliveredAuthors returns the local authors whose inbox already
	// holds an activity about the given object, so updates and deletes
	// reach everyone the create reached.
	ListDeliveredAuthors(ctx context.Context, object string) ([]*model.Author, error)

	Close() error
}
