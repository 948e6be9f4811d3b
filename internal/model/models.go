package model

import (
	"encoding/json"
	"time"
)

// Visibility values an entry can carry. DELETED entries stay in the
// database so remote update activities can tombstone instead of drop.
const (
	VisibilityPublic   = "PUBLIC"
	VisibilityUnlisted = "UNLISTED"
	VisibilityFriends  = "FRIENDS"
	VisibilityDeleted  = "DELETED"
)

// Follow request states.
const (
	FollowRequested = "REQUESTED"
	FollowAccepted  = "ACCEPTED"
	FollowRejected  = "REJECTED"
)

// Content types entries and comments accept.
const (
	ContentTypePlain    = "text/plain"
	ContentTypeMarkdown = "text/markdown"
)

// Node is a peer deployment, keyed by its base URL. AuthUser/AuthPass are
// the credentials we present when calling the peer; InboundUser plus the
// bcrypt InboundHash are what the peer must present when calling us.
// Credentials never serialize.
type Node struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	AuthUser    string    `json:"-"`
	AuthPass    string    `json:"-"`
	InboundUser string    `json:"-"`
	InboundHash string    `json:"-"`
	IsActive    bool      `json:"isActive"`
	Created     time.Time `json:"created"`
}

// Author is a profile keyed by FQID. Remote mirrors carry an empty
// PasswordHash and can never authenticate here.
type Author struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email,omitempty"`
	DisplayName  string    `json:"displayName,omitempty"`
	Host         string    `json:"host"`
	Bio          string    `json:"bio,omitempty"`
	ProfileImage string    `json:"profileImage,omitempty"`
	IsApproved   bool      `json:"-"`
	Created      time.Time `json:"-"`
}

// Entry is a post keyed by FQID. Author holds the author's FQID.
type Entry struct {
	ID          string     `json:"id"`
	Author      string     `json:"author"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	ContentType string     `json:"contentType"`
	Visibility  string     `json:"visibility"`
	Published   time.Time  `json:"published"`
	Updated     *time.Time `json:"updated,omitempty"`
}

// Comment on an entry. ReplyTo chains comments into threads.
type Comment struct {
	ID          string    `json:"id"`
	Entry       string    `json:"entry"`
	Author      string    `json:"author"`
	ReplyTo     string    `json:"replyTo,omitempty"`
	Content     string    `json:"content"`
	ContentType string    `json:"contentType"`
	Published   time.Time `json:"published"`
}

// Like targets either an entry or a comment; Object holds the target FQID.
type Like struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Object    string    `json:"object"`
	Published time.Time `json:"published"`
}

// Follow records actor requesting to follow the author at Object.
type Follow struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Object    string    `json:"object"`
	State     string    `json:"state"`
	Published time.Time `json:"published"`
}

// EntryImage is the only integer-keyed entity. Ref is the blob reference
// relative to the media directory.
type EntryImage struct {
	ID         int64     `json:"id"`
	Entry      string    `json:"entry"`
	Name       string    `json:"name"`
	Ref        string    `json:"-"`
	URL        string    `json:"url,omitempty"`
	Order      int       `json:"order"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// InboxItem is one delivered activity in a local author's inbox. IDs are
// ULIDs so inbox listings sort by arrival time. ObjectID is the FQID of
// the activity's object, kept so update/delete activities can be
// redistributed to everyone who already received the original.
type InboxItem struct {
	ID       string          `json:"id"`
	Owner    string          `json:"owner"`
	ObjectID string          `json:"-"`
	Raw      json.RawMessage `json:"activity"`
	Received time.Time       `json:"received"`
}

// ValidVisibility reports whether v is one of the visibility constants.
func ValidVisibility(v string) bool {
	switch v {
	case VisibilityPublic, VisibilityUnlisted, VisibilityFriends, VisibilityDeleted:
		return true
	}
	return false
}
