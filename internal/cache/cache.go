// Package cache is the optional read-through layer for entries and
// their like/comment counters. Misses and failures always fall through
// to the store; a request never fails on the cache.
package cache

import (
	"context"

	"github.com/Chloe-lh/Social-Gold/internal/model"
)

type EntryCache interface {
	GetEntry(ctx context.Context, id string) (*model.Entry, bool)
	SetEntry(ctx context.Context, e *model.Entry)
	InvalidateEntry(ctx context.Context, id string)

	// Counters reports the cached like and comment totals for an entry.
	// ok is false until both counters have been backfilled.
	Counters(ctx context.Context, id string) (likes, comments int64, ok bool)
	SetCounters(ctx context.Context, id string, likes, comments int64)
	AddLikes(ctx context.Context, id string, delta int64)
	AddComments(ctx context.Context, id string, delta int64)

	Close() error
}

// Noop serves nodes running without Redis.
type Noop struct{}

var _ EntryCache = Noop{}

func (Noop) GetEntry(context.Context, string) (*model.Entry, bool) { return nil, false }
func (Noop) SetEntry(context.Context, *model.Entry)                {}
func (Noop) InvalidateEntry(context.Context, string)               {}
func (Noop) Counters(context.Context, string) (int64, int64, bool) { return 0, 0, false }
func (Noop) SetCounters(context.Context, string, int64, int64)     {}
func (Noop) AddLikes(context.Context, string, int64)               {}
func (Noop) AddComments(context.Context, string, int64)            {}
func (Noop) Close() error                                          { return nil }
