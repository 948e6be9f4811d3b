package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Chloe-lh/Social-Gold/internal/activity"
	"github.com/Chloe-lh/Social-Gold/internal/fqid"
	"github.com/Chloe-lh/Social-Gold/internal/model"
	"github.com/Chloe-lh/Social-Gold/internal/store"
)

// Default page sizes per collection.
const (
	defaultAuthorPage  = 50
	defaultEntryPage   = 20
	defaultCommentPage = 10
	defaultLikePage    = 5
	defaultInboxPage   = 20
)

// entryRequest is the client-supplied portion of an entry; pointers so
// PUT can tell an omitted field from an empty one.
type entryRequest struct {
	Title       *string `json:"title"`
	Content     *string `json:"content"`
	ContentType *string `json:"contentType"`
	Visibility  *string `json:"visibility"`
}

func (s *Server) handleEntryGet(w http.ResponseWriter, r *http.Request) {
	id, sub := fqid.SplitResource(r.PathValue("rest"))
	switch sub {
	case "":
		s.entryDetail(w, r, id)
	case "likes":
		s.listLikes(w, r, id, "Entry")
	case "images":
		s.listImages(w, r, id)
	default:
		notFound(w)
	}
}

func (s *Server) handleEntryPost(w http.ResponseWriter, r *http.Request) {
	id, sub := fqid.SplitResource(r.PathValue("rest"))
	switch sub {
	case "":
		s.createEntry(w, r, id)
	case "likes":
		s.likeObject(w, r, id, "Entry")
	case "images":
		s.attachImage(w, r, id)
	default:
		notFound(w)
	}
}

// entryDetail reads through the cache; the store is only hit on a miss.
// Tombstoned entries answer 410 so peers learn the delete stuck.
func (s *Server) entryDetail(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	e, ok := s.cache.GetEntry(ctx, id)
	if !ok {
		var err error
		e, err = s.store.GetEntry(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			notFound(w)
			return
		}
		if err != nil {
			internalError(w, "load entry", err)
			return
		}
		s.cache.SetEntry(ctx, e)
	}
	if e.Visibility == model.VisibilityDeleted {
		gone(w)
		return
	}
	likes, comments, ok := s.cache.Counters(ctx, id)
	if !ok {
		likes, comments = s.entryCounters(ctx, id)
		s.cache.SetCounters(ctx, id, likes, comments)
	}
	writeJSON(w, http.StatusOK, entryDetail{Type: "entry", Entry: e, Likes: likes, Comments: comments})
}

func (s *Server) entryCounters(ctx context.Context, id string) (likes, comments int64) {
	if _, n, err := s.store.ListLikesByObject(ctx, id, 1, 0); err == nil {
		likes = int64(n)
	} else {
		log.Printf("Failed to count likes for %s: %v", id, err)
	}
	if _, n, err := s.store.ListCommentsByEntry(ctx, id, 1, 0); err == nil {
		comments = int64(n)
	} else {
		log.Printf("Failed to count comments for %s: %v", id, err)
	}
	return likes, comments
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request, id string) {
	author := requireAuthor(w, r)
	if author == nil {
		return
	}
	if !requireJSON(w, r) {
		return
	}
	var req entryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if id == "" || !fqid.IsLocal(id, s.siteURL) {
		writeError(w, http.StatusBadRequest, "Entry id must live on this node")
		return
	}

	ctx := r.Context()
	if _, err := s.store.GetEntry(ctx, id); err == nil {
		writeError(w, http.StatusBadRequest, "Entry already exists")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		internalError(w, "check entry", err)
		return
	}

	e := &model.Entry{
		ID:          id,
		Author:      author.ID,
		ContentType: model.ContentTypePlain,
		Visibility:  model.VisibilityPublic,
		Published:   time.Now().UTC(),
	}
	if !applyEntryFields(w, e, &req) {
		return
	}
	if strings.TrimSpace(e.Content) == "" {
		writeError(w, http.StatusBadRequest, "Content is required")
		return
	}
	if err := s.store.CreateEntry(ctx, e); err != nil {
		internalError(w, "create entry", err)
		return
	}
	s.cache.SetEntry(ctx, e)
	act, err := activity.CreateEntry(author, e)
	s.dispatch(ctx, author, act, err)
	writeJSON(w, http.StatusCreated, entryJSON(e))
}

func (s *Server) handleEntryPut(w http.ResponseWriter, r *http.Request) {
	id, sub := fqid.SplitResource(r.PathValue("rest"))
	if sub != "" {
		notFound(w)
		return
	}
	author := requireAuthor(w, r)
	if author == nil {
		return
	}
	if !requireJSON(w, r) {
		return
	}
	var req entryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	e, err := s.store.GetEntry(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		internalError(w, "load entry", err)
		return
	}
	if e.Visibility == model.VisibilityDeleted {
		gone(w)
		return
	}
	if e.Author != author.ID {
		writeError(w, http.StatusForbidden, "Not your entry")
		return
	}
	if !applyEntryFields(w, e, &req) {
		return
	}
	now := time.Now().UTC()
	e.Updated = &now
	if err := s.store.UpdateEntry(ctx, e); err != nil {
		internalError(w, "update entry", err)
		return
	}
	s.cache.SetEntry(ctx, e)
	act, err := activity.UpdateEntry(author, e)
	s.dispatch(ctx, author, act, err)
	writeJSON(w, http.StatusOK, entryJSON(e))
}

// handleEntryDelete tombstones rather than drops the row, so the id
// keeps answering 410 and remote deletes can still find it.
func (s *Server) handleEntryDelete(w http.ResponseWriter, r *http.Request) {
	id, sub := fqid.SplitResource(r.PathValue("rest"))
	if sub != "" {
		notFound(w)
		return
	}
	author := requireAuthor(w, r)
	if author == nil {
		return
	}

	ctx := r.Context()
	e, err := s.store.GetEntry(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		internalError(w, "load entry", err)
		return
	}
	if e.Visibility == model.VisibilityDeleted {
		gone(w)
		return
	}
	if e.Author != author.ID {
		writeError(w, http.StatusForbidden, "Not your entry")
		return
	}
	e.Visibility = model.VisibilityDeleted
	e.Content = ""
	now := time.Now().UTC()
	e.Updated = &now
	if err := s.store.UpdateEntry(ctx, e); err != nil {
		internalError(w, "delete entry", err)
		return
	}
	s.cache.InvalidateEntry(ctx, id)
	act, err := activity.DeleteEntry(author, e)
	s.dispatch(ctx, author, act, err)
	w.WriteHeader(http.StatusNoContent)
}

// handleStream is the authenticated author's home feed.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	author := requireAuthor(w, r)
	if author == nil {
		return
	}
	_, size, offset := pageParams(r, defaultEntryPage)
	entries, err := s.store.StreamEntries(r.Context(), author.ID, size, offset)
	if err != nil {
		internalError(w, "load stream", err)
		return
	}
	writeJSON(w, http.StatusOK, entriesJSON(entries))
}

// The lowercase /api/entries/ namespace is where local entry FQIDs
// live, so a capture is either a bare serial or a pasted full FQID.

func (s *Server) handleEntriesGet(w http.ResponseWriter, r *http.Request) {
	id, sub := fqid.SplitResource(r.PathValue("rest"))
	switch sub {
	case "":
		s.entryDetail(w, r, s.entryFQID(id))
	case "comments":
		s.listComments(w, r, s.entryFQID(id))
	default:
		notFound(w)
	}
}

func (s *Server) handleEntriesPost(w http.ResponseWriter, r *http.Request) {
	id, sub := fqid.SplitResource(r.PathValue("rest"))
	switch sub {
	case "":
		s.createEntry(w, r, s.entryFQID(id))
	case "comments":
		s.createComment(w, r, s.entryFQID(id))
	default:
		notFound(w)
	}
}

// entryFQID resolves a captured id: absolute URLs pass through, bare
// serials become this node's entry FQID.
func (s *Server) entryFQID(raw string) string {
	id := fqid.Normalize(raw)
	if strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://") {
		return id
	}
	return s.siteURL + "/api/entries/" + id
}

func applyEntryFields(w http.ResponseWriter, e *model.Entry, req *entryRequest) bool {
	if req.Title != nil {
		e.Title = *req.Title
	}
	if req.Content != nil {
		e.Content = *req.Content
	}
	if req.ContentType != nil {
		if *req.ContentType != model.ContentTypePlain && *req.ContentType != model.ContentTypeMarkdown {
			writeError(w, http.StatusBadRequest, "Invalid content type")
			return false
		}
		e.ContentType = *req.ContentType
	}
	if req.Visibility != nil {
		if !model.ValidVisibility(*req.Visibility) {
			writeError(w, http.StatusBadRequest, "Invalid visibility")
			return false
		}
		e.Visibility = *req.Visibility
	}
	return true
}
