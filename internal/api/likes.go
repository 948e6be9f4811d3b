package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Chloe-lh/Social-Gold/internal/activity"
	"github.com/Chloe-lh/Social-Gold/internal/fqid"
	"github.com/Chloe-lh/Social-Gold/internal/model"
	"github.com/Chloe-lh/Social-Gold/internal/store"
)

// listLikes serves the likes collection for an entry or a comment.
// kind names the API segment embedded in the collection id.
func (s *Server) listLikes(w http.ResponseWriter, r *http.Request, object, kind string) {
	page, size, offset := pageParams(r, defaultLikePage)
	likes, total, err := s.store.ListLikesByObject(r.Context(), object, size, offset)
	if err != nil {
		internalError(w, "load likes", err)
		return
	}
	id := fmt.Sprintf("%s/api/%s/%s/likes/", s.siteURL, kind, object)
	web := strings.Replace(id, "/api/", "/", 1)
	writeJSON(w, http.StatusOK, likesJSON(id, web, likes, page, size, total))
}

// likeObject records a like on an entry or comment. Liking twice is a
// no-op: the existing like comes back with a 200 instead of a 201.
func (s *Server) likeObject(w http.ResponseWriter, r *http.Request, object, kind string) {
	author := requireAuthor(w, r)
	if author == nil {
		return
	}

	ctx := r.Context()
	switch kind {
	case "Entry":
		e, err := s.store.GetEntry(ctx, object)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Entry not found")
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
	case "Comment":
		if _, err := s.store.GetComment(ctx, object); errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Comment not found")
			return
		} else if err != nil {
			internalError(w, "load comment", err)
			return
		}
	}

	l := &model.Like{
		ID:        fqid.Mint(author.ID, "liked"),
		Author:    author.ID,
		Object:    object,
		Published: time.Now().UTC(),
	}
	created, err := s.store.CreateLike(ctx, l)
	if err != nil {
		internalError(w, "create like", err)
		return
	}
	if !created {
		existing, err := s.store.GetLikeByPair(ctx, author.ID, object)
		if err != nil {
			internalError(w, "load like", err)
			return
		}
		writeJSON(w, http.StatusOK, likeJSON(existing))
		return
	}
	if kind == "Entry" {
		s.cache.AddLikes(ctx, object, 1)
	}
	act, err := activity.LikeObject(author, l)
	s.dispatch(ctx, author, act, err)
	writeJSON(w, http.StatusCreated, likeJSON(l))
}
