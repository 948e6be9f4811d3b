package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Chloe-lh/Social-Gold/internal/activity"
	"github.com/Chloe-lh/Social-Gold/internal/fqid"
	"github.com/Chloe-lh/Social-Gold/internal/model"
	"github.com/Chloe-lh/Social-Gold/internal/store"
)

// handleInboxGet is the owner's notification feed: the raw activities
// delivered to them, newest first.
func (s *Server) handleInboxGet(w http.ResponseWriter, r *http.Request) {
	author := requireAuthor(w, r)
	if author == nil {
		return
	}
	owner, ok := s.localAuthor(w, r)
	if !ok {
		return
	}
	if owner.ID != author.ID {
		writeError(w, http.StatusForbidden, "Not your inbox")
		return
	}
	_, size, offset := pageParams(r, defaultInboxPage)
	items, _, err := s.store.ListInbox(r.Context(), owner.ID, size, offset)
	if err != nil {
		internalError(w, "load inbox", err)
		return
	}
	page := inboxPage{Type: "inbox", Items: make([]json.RawMessage, len(items))}
	for i, it := range items {
		page.Items[i] = it.Raw
	}
	writeJSON(w, http.StatusOK, page)
}

// handleInboxPost receives a pushed activity from a peer and applies it
// to local state, dispatching on the envelope's lowercased type.
func (s *Server) handleInboxPost(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.localAuthor(w, r)
	if !ok {
		return
	}
	if !requireJSON(w, r) {
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	var act activity.Activity
	if err := json.Unmarshal(raw, &act); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	ctx := r.Context()
	applied := false
	switch strings.ToLower(act.Type) {
	case activity.TypeCreate:
		applied = s.inboxCreate(ctx, w, &act)
	case activity.TypeUpdate:
		applied = s.inboxUpdate(ctx, w, &act)
	case activity.TypeDelete:
		applied = s.inboxDelete(ctx, w, &act)
	case activity.TypeComment:
		applied = s.inboxComment(ctx, w, &act)
	case activity.TypeLike:
		applied = s.inboxLike(ctx, w, &act)
	case activity.TypeFollow:
		applied = s.inboxFollow(ctx, w, owner, &act)
	case activity.TypeAccept:
		applied = s.inboxFollowState(ctx, w, &act, model.FollowAccepted)
	case activity.TypeReject:
		applied = s.inboxFollowState(ctx, w, &act, model.FollowRejected)
	case activity.TypeUndo:
		applied = s.inboxUndo(ctx, w, &act)
	default:
		writeError(w, http.StatusBadRequest, "Unsupported type")
		return
	}
	if applied {
		s.recordInboxItem(ctx, owner, &act, raw)
	}
}

// recordInboxItem keeps the raw activity in the owner's inbox. The
// response already went out, so a failure here only logs: the feed row
// is bookkeeping, the state mutation is what mattered.
func (s *Server) recordInboxItem(ctx context.Context, owner *model.Author, act *activity.Activity, raw []byte) {
	it := &model.InboxItem{
		ID:       ulid.Make().String(),
		Owner:    owner.ID,
		ObjectID: fqid.Normalize(act.ObjectID()),
		Raw:      raw,
		Received: time.Now().UTC(),
	}
	if err := s.store.AddInboxItem(ctx, it); err != nil {
		log.Printf("Failed to record inbox item for %s: %v", owner.ID, err)
	}
}

// mirrorAuthor makes sure a row exists for an author we only know by
// FQID. Existing mirrors are left alone so richer profile data is not
// clobbered by a stub.
func (s *Server) mirrorAuthor(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if _, err := s.store.GetAuthor(ctx, id); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	stub := &model.Author{
		ID:       id,
		Username: fqid.Serial(id),
		Host:     fqid.HostBase(id),
	}
	return s.store.UpsertRemoteAuthor(ctx, stub)
}

func (s *Server) inboxCreate(ctx context.Context, w http.ResponseWriter, act *activity.Activity) bool {
	var e model.Entry
	if err := act.UnmarshalObject(&e); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid entry object")
		return false
	}
	e.ID = fqid.Normalize(e.ID)
	e.Author = fqid.Normalize(e.Author)
	if e.Author == "" {
		e.Author = fqid.Normalize(act.Actor)
	}
	if e.ID == "" || e.Author == "" {
		writeError(w, http.StatusBadRequest, "Invalid entry object")
		return false
	}
	if e.ContentType == "" {
		e.ContentType = model.ContentTypePlain
	}
	if e.Visibility == "" {
		e.Visibility = model.VisibilityPublic
	}
	if !model.ValidVisibility(e.Visibility) {
		writeError(w, http.StatusBadRequest, "Invalid visibility")
		return false
	}
	if e.Published.IsZero() {
		e.Published = time.Now().UTC()
	}
	if err := s.mirrorAuthor(ctx, e.Author); err != nil {
		internalError(w, "mirror author", err)
		return false
	}
	if err := s.store.UpsertEntry(ctx, &e); err != nil {
		internalError(w, "store entry", err)
		return false
	}
	s.cache.InvalidateEntry(ctx, e.ID)
	writeJSON(w, http.StatusCreated, entryJSON(&e))
	return true
}

func (s *Server) inboxUpdate(ctx context.Context, w http.ResponseWriter, act *activity.Activity) bool {
	var patch struct {
		ID          string  `json:"id"`
		Title       *string `json:"title"`
		Content     *string `json:"content"`
		ContentType *string `json:"contentType"`
		Visibility  *string `json:"visibility"`
	}
	if err := act.UnmarshalObject(&patch); err != nil || patch.ID == "" {
		writeError(w, http.StatusBadRequest, "Invalid update object")
		return false
	}
	e, err := s.store.GetEntry(ctx, fqid.Normalize(patch.ID))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Entry not found")
		return false
	}
	if err != nil {
		internalError(w, "load entry", err)
		return false
	}
	if patch.Title != nil {
		e.Title = *patch.Title
	}
	if patch.Content != nil {
		e.Content = *patch.Content
	}
	if patch.ContentType != nil {
		e.ContentType = *patch.ContentType
	}
	if patch.Visibility != nil {
		if !model.ValidVisibility(*patch.Visibility) {
			writeError(w, http.StatusBadRequest, "Invalid visibility")
			return false
		}
		e.Visibility = *patch.Visibility
		if e.Visibility == model.VisibilityDeleted {
			e.Content = ""
		}
	}
	now := time.Now().UTC()
	e.Updated = &now
	if err := s.store.UpdateEntry(ctx, e); err != nil {
		internalError(w, "update entry", err)
		return false
	}
	s.cache.InvalidateEntry(ctx, e.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "Entry updated"})
	return true
}

func (s *Server) inboxDelete(ctx context.Context, w http.ResponseWriter, act *activity.Activity) bool {
	id := fqid.Normalize(act.ObjectID())
	if id == "" {
		writeError(w, http.StatusBadRequest, "Invalid delete object")
		return false
	}
	e, err := s.store.GetEntry(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Entry not found")
		return false
	}
	if err != nil {
		internalError(w, "load entry", err)
		return false
	}
	e.Visibility = model.VisibilityDeleted
	e.Content = ""
	now := time.Now().UTC()
	e.Updated = &now
	if err := s.store.UpdateEntry(ctx, e); err != nil {
		internalError(w, "delete entry", err)
		return false
	}
	s.cache.InvalidateEntry(ctx, e.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "Entry deleted"})
	return true
}

func (s *Server) inboxComment(ctx context.Context, w http.ResponseWriter, act *activity.Activity) bool {
	var c model.Comment
	if err := act.UnmarshalObject(&c); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid comment object")
		return false
	}
	c.ID = fqid.Normalize(c.ID)
	c.Entry = fqid.Normalize(c.Entry)
	c.Author = fqid.Normalize(c.Author)
	if c.Author == "" {
		c.Author = fqid.Normalize(act.Actor)
	}
	if c.ID == "" || c.Entry == "" || c.Author == "" {
		writeError(w, http.StatusBadRequest, "Invalid comment object")
		return false
	}
	if _, err := s.store.GetEntry(ctx, c.Entry); errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Entry not found")
		return false
	} else if err != nil {
		internalError(w, "load entry", err)
		return false
	}
	if c.ContentType == "" {
		c.ContentType = model.ContentTypePlain
	}
	if c.Published.IsZero() {
		c.Published = time.Now().UTC()
	}
	if err := s.mirrorAuthor(ctx, c.Author); err != nil {
		internalError(w, "mirror author", err)
		return false
	}
	created, err := s.store.CreateComment(ctx, &c)
	if err != nil {
		internalError(w, "store comment", err)
		return false
	}
	if created {
		s.cache.AddComments(ctx, c.Entry, 1)
	}
	writeJSON(w, http.StatusCreated, commentJSON(&c))
	return true
}

func (s *Server) inboxLike(ctx context.Context, w http.ResponseWriter, act *activity.Activity) bool {
	l := model.Like{
		ID:        fqid.Normalize(act.ID),
		Author:    fqid.Normalize(act.Actor),
		Object:    fqid.Normalize(act.ObjectID()),
		Published: act.Published,
	}
	var embedded model.Like
	if err := act.UnmarshalObject(&embedded); err == nil && embedded.ID != "" {
		l = model.Like{
			ID:        fqid.Normalize(embedded.ID),
			Author:    fqid.Normalize(embedded.Author),
			Object:    fqid.Normalize(embedded.Object),
			Published: embedded.Published,
		}
	}
	if l.ID == "" || l.Author == "" || l.Object == "" {
		writeError(w, http.StatusBadRequest, "Invalid like object")
		return false
	}
	if l.Published.IsZero() {
		l.Published = time.Now().UTC()
	}
	if err := s.mirrorAuthor(ctx, l.Author); err != nil {
		internalError(w, "mirror author", err)
		return false
	}
	created, err := s.store.CreateLike(ctx, &l)
	if err != nil {
		internalError(w, "store like", err)
		return false
	}
	if created {
		if _, err := s.store.GetEntry(ctx, l.Object); err == nil {
			s.cache.AddLikes(ctx, l.Object, 1)
		}
	}
	writeJSON(w, http.StatusCreated, likeJSON(&l))
	return true
}

func (s *Server) inboxFollow(ctx context.Context, w http.ResponseWriter, owner *model.Author, act *activity.Activity) bool {
	actor := fqid.Normalize(act.Actor)
	target := fqid.Normalize(act.ObjectID())
	if target == "" {
		target = owner.ID
	}
	if actor == "" || act.ID == "" {
		writeError(w, http.StatusBadRequest, "Invalid follow object")
		return false
	}
	if actor == target {
		writeError(w, http.StatusBadRequest, "Cannot follow yourself")
		return false
	}
	if err := s.mirrorAuthor(ctx, actor); err != nil {
		internalError(w, "mirror author", err)
		return false
	}
	f := &model.Follow{
		ID:        fqid.Normalize(act.ID),
		Actor:     actor,
		Object:    target,
		State:     model.FollowRequested,
		Published: act.Published,
	}
	if f.Published.IsZero() {
		f.Published = time.Now().UTC()
	}
	created, err := s.store.CreateFollow(ctx, f)
	if err != nil {
		internalError(w, "store follow", err)
		return false
	}
	if !created {
		if existing, err := s.store.GetFollowByPair(ctx, actor, target); err == nil {
			f = existing
		}
	}
	writeJSON(w, http.StatusCreated, followBody{"follow", f})
	return true
}

// inboxFollowState applies an accept or reject, whose object is the
// original follow envelope.
func (s *Server) inboxFollowState(ctx context.Context, w http.ResponseWriter, act *activity.Activity, state string) bool {
	actor, target, ok := unwrapFollow(w, act)
	if !ok {
		return false
	}
	err := s.store.SetFollowState(ctx, actor, target, state)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Follow not found")
		return false
	}
	if err != nil {
		internalError(w, "update follow", err)
		return false
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Follow " + strings.ToLower(state)})
	return true
}

func (s *Server) inboxUndo(ctx context.Context, w http.ResponseWriter, act *activity.Activity) bool {
	actor, target, ok := unwrapFollow(w, act)
	if !ok {
		return false
	}
	err := s.store.DeleteFollow(ctx, actor, target)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Follow not found")
		return false
	}
	if err != nil {
		internalError(w, "remove follow", err)
		return false
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Follow removed"})
	return true
}

func unwrapFollow(w http.ResponseWriter, act *activity.Activity) (actor, target string, ok bool) {
	var inner activity.Activity
	if err := act.UnmarshalObject(&inner); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid follow object")
		return "", "", false
	}
	actor = fqid.Normalize(inner.Actor)
	target = fqid.Normalize(inner.ObjectID())
	if actor == "" || target == "" {
		writeError(w, http.StatusBadRequest, "Invalid follow object")
		return "", "", false
	}
	return actor, target, true
}
