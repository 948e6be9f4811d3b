package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Chloe-lh/Social-Gold/internal/model"
)

const entryTTL = 15 * time.Minute

// Redis caches entry JSON under entry:<fqid> and the counters in a
// hash at entry:<fqid>:counters.
type Redis struct {
	client *redis.Client
}

var _ EntryCache = (*Redis)(nil)

func NewRedis(ctx context.Context, addr, password string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return &Redis{client: client}, nil
}

func entryKey(id string) string    { return "entry:" + id }
func countersKey(id string) string { return "entry:" + id + ":counters" }

func (r *Redis) GetEntry(ctx context.Context, id string) (*model.Entry, bool) {
	raw, err := r.client.Get(ctx, entryKey(id)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("Failed to read entry %s from cache: %v", id, err)
		return nil, false
	}
	var e model.Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		log.Printf("Failed to decode cached entry %s: %v", id, err)
		return nil, false
	}
	return &e, true
}

func (r *Redis) SetEntry(ctx context.Context, e *model.Entry) {
	raw, err := json.Marshal(e)
	if err != nil {
		log.Printf("Failed to encode entry %s for cache: %v", e.ID, err)
		return
	}
	if err := r.client.Set(ctx, entryKey(e.ID), raw, entryTTL).Err(); err != nil {
		log.Printf("Failed to cache entry %s: %v", e.ID, err)
	}
}

func (r *Redis) InvalidateEntry(ctx context.Context, id string) {
	if err := r.client.Del(ctx, entryKey(id), countersKey(id)).Err(); err != nil {
		log.Printf("Failed to invalidate entry %s: %v", id, err)
	}
}

func (r *Redis) Counters(ctx context.Context, id string) (int64, int64, bool) {
	fields, err := r.client.HGetAll(ctx, countersKey(id)).Result()
	if err != nil {
		log.Printf("Failed to read counters for %s: %v", id, err)
		return 0, 0, false
	}
	// A hash grown by a stray increment alone is incomplete; wait for
	// the backfill.
	likes, okL := parseCounter(fields, "likes")
	comments, okC := parseCounter(fields, "comments")
	if !okL || !okC {
		return 0, 0, false
	}
	return likes, comments, true
}

func parseCounter(fields map[string]string, name string) (int64, bool) {
	raw, ok := fields[name]
	if !ok {
		return 0, false
	}
	var n int64
	if _, err := fmt.Sscan(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

func (r *Redis) SetCounters(ctx context.Context, id string, likes, comments int64) {
	key := countersKey(id)
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, "likes", likes, "comments", comments)
	pipe.Expire(ctx, key, entryTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("Failed to set counters for %s: %v", id, err)
	}
}

func (r *Redis) AddLikes(ctx context.Context, id string, delta int64) {
	if err := r.client.HIncrBy(ctx, countersKey(id), "likes", delta).Err(); err != nil {
		log.Printf("Failed to bump like counter for %s: %v", id, err)
	}
}

func (r *Redis) AddComments(ctx context.Context, id string, delta int64) {
	if err := r.client.HIncrBy(ctx, countersKey(id), "comments", delta).Err(); err != nil {
		log.Printf("Failed to bump comment counter for %s: %v", id, err)
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
