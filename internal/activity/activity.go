// Package activity builds and reads the JSON envelopes nodes push to
// each other's inboxes.
package activity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Chloe-lh/Social-Gold/internal/fqid"
	"github.com/Chloe-lh/Social-Gold/internal/model"
)

// Wire values for the envelope's type field. Receivers dispatch on
// these lowercased.
const (
	TypeCreate  = "create"
	TypeUpdate  = "update"
	TypeDelete  = "delete"
	TypeComment = "comment"
	TypeLike    = "like"
	TypeFollow  = "follow"
	TypeAccept  = "accept"
	TypeReject  = "reject"
	TypeUndo    = "undo"
)

// Activity is the envelope. Object carries the payload: an embedded
// entry or comment, a bare FQID string for likes and follows, or the
// original follow envelope for accept/reject/undo.
type Activity struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Actor     string          `json:"actor"`
	Summary   string          `json:"summary,omitempty"`
	State     string          `json:"state,omitempty"`
	Published time.Time       `json:"published"`
	Object    json.RawMessage `json:"object"`
}

// ObjectID extracts the FQID the activity is about: the object itself
// when it is a string, its id field when it is embedded.
func (a *Activity) ObjectID() string {
	var s string
	if err := json.Unmarshal(a.Object, &s); err == nil {
		return s
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(a.Object, &obj); err == nil {
		return obj.ID
	}
	return ""
}

// UnmarshalObject decodes the embedded object into v.
func (a *Activity) UnmarshalObject(v any) error {
	if err := json.Unmarshal(a.Object, v); err != nil {
		return fmt.Errorf("decoding %s object: %w", a.Type, err)
	}
	return nil
}

func embed(typ string, actor *model.Author, summary, suffix string, object any) (*Activity, error) {
	raw, err := json.Marshal(object)
	if err != nil {
		return nil, fmt.Errorf("encoding %s object: %w", typ, err)
	}
	return &Activity{
		Type:      typ,
		ID:        fqid.Mint(actor.ID, suffix),
		Actor:     actor.ID,
		Summary:   summary,
		Published: time.Now().UTC(),
		Object:    raw,
	}, nil
}

// CreateEntry announces a freshly published entry.
func CreateEntry(actor *model.Author, e *model.Entry) (*Activity, error) {
	return embed(TypeCreate, actor, actor.Username+" posted an entry", "posts", e)
}

// UpdateEntry announces an edit; the object is the entry's new state.
func UpdateEntry(actor *model.Author, e *model.Entry) (*Activity, error) {
	return embed(TypeUpdate, actor, actor.Username+" updated an entry", "posts", e)
}

// DeleteEntry announces a delete; the object is the tombstoned entry.
func DeleteEntry(actor *model.Author, e *model.Entry) (*Activity, error) {
	return embed(TypeDelete, actor, actor.Username+" deleted an entry", "posts", e)
}

// CommentOnEntry carries the full comment so receivers can store it.
func CommentOnEntry(actor *model.Author, c *model.Comment) (*Activity, error) {
	return embed(TypeComment, actor, actor.Username+" commented on an entry", "comments", c)
}

// LikeObject announces a like. The activity reuses the like's own id and
// the object is the liked FQID.
func LikeObject(actor *model.Author, l *model.Like) (*Activity, error) {
	raw, err := json.Marshal(l.Object)
	if err != nil {
		return nil, fmt.Errorf("encoding like object: %w", err)
	}
	return &Activity{
		Type:      TypeLike,
		ID:        l.ID,
		Actor:     actor.ID,
		Summary:   actor.Username + " liked your post",
		Published: l.Published,
		Object:    raw,
	}, nil
}

// Follow asks the author at target to approve the relationship. The
// activity reuses the follow's own id.
func Follow(actor *model.Author, f *model.Follow) (*Activity, error) {
	raw, err := json.Marshal(f.Object)
	if err != nil {
		return nil, fmt.Errorf("encoding follow object: %w", err)
	}
	return &Activity{
		Type:      TypeFollow,
		ID:        f.ID,
		Actor:     actor.ID,
		Summary:   actor.Username + " wants to follow you",
		State:     model.FollowRequested,
		Published: f.Published,
		Object:    raw,
	}, nil
}

// AcceptFollow wraps the original follow envelope so the requesting
// node can match its pending row.
func AcceptFollow(actor *model.Author, follow *Activity) (*Activity, error) {
	return embed(TypeAccept, actor, actor.Username+" accepted your follow request", "accept", follow)
}

// RejectFollow wraps the original follow envelope.
func RejectFollow(actor *model.Author, follow *Activity) (*Activity, error) {
	return embed(TypeReject, actor, actor.Username+" rejected your follow request", "reject", follow)
}

// UndoFollow retracts a follow; the object is the original envelope.
func UndoFollow(actor *model.Author, follow *Activity) (*Activity, error) {
	return embed(TypeUndo, actor, actor.Username+" unfollowed you", "undo-follow", follow)
}

// FollowEnvelope rebuilds the wire form of a stored follow, for
// accept/reject/undo to wrap.
func FollowEnvelope(f *model.Follow) (*Activity, error) {
	raw, err := json.Marshal(f.Object)
	if err != nil {
		return nil, fmt.Errorf("encoding follow object: %w", err)
	}
	return &Activity{
		Type:      TypeFollow,
		ID:        f.ID,
		Actor:     f.Actor,
		State:     f.State,
		Published: f.Published,
		Object:    raw,
	}, nil
}
