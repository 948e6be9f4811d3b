package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Chloe-lh/Social-Gold/internal/fqid"
	"github.com/Chloe-lh/Social-Gold/internal/model"
	"github.com/Chloe-lh/Social-Gold/internal/store"
)

// handleAuthors lists this node's approved authors for peer discovery.
func (s *Server) handleAuthors(w http.ResponseWriter, r *http.Request) {
	page, size, offset := pageParams(r, defaultAuthorPage)
	authors, total, err := s.store.ListAuthors(r.Context(), s.siteURL, size, offset)
	if err != nil {
		internalError(w, "list authors", err)
		return
	}
	writeJSON(w, http.StatusOK, authorsPage{
		Type:  "authors",
		Items: authorsJSON(authors),
		Page:  page,
		Size:  size,
		Total: total,
	})
}

func (s *Server) handleAuthorCollections(w http.ResponseWriter, r *http.Request) {
	id, sub := fqid.SplitResource(r.PathValue("rest"))
	ctx := r.Context()
	a, err := s.store.GetAuthor(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		internalError(w, "load author", err)
		return
	}

	switch sub {
	case "friends":
		friends, err := s.store.ListFriends(ctx, a.ID)
		if err != nil {
			internalError(w, "list friends", err)
			return
		}
		writeJSON(w, http.StatusOK, authorsJSON(friends))
	case "entries":
		viewer := ""
		if p := principalFrom(ctx); p != nil && p.Author != nil {
			viewer = p.Author.ID
		}
		_, size, offset := pageParams(r, defaultEntryPage)
		entries, _, err := s.store.ListEntriesByAuthor(ctx, a.ID, viewer, size, offset)
		if err != nil {
			internalError(w, "list entries", err)
			return
		}
		writeJSON(w, http.StatusOK, entriesJSON(entries))
	case "commented":
		page, size, offset := pageParams(r, defaultCommentPage)
		comments, total, err := s.store.ListCommentsByAuthor(ctx, a.ID, size, offset)
		if err != nil {
			internalError(w, "list comments", err)
			return
		}
		writeJSON(w, http.StatusOK, commentsJSON(a.ID+"/commented", comments, page, size, total))
	case "liked":
		page, size, offset := pageParams(r, defaultLikePage)
		likes, total, err := s.store.ListLikesByAuthor(ctx, a.ID, size, offset)
		if err != nil {
			internalError(w, "list likes", err)
			return
		}
		collID := a.ID + "/liked"
		web := strings.Replace(collID, "/api/", "/", 1)
		writeJSON(w, http.StatusOK, likesJSON(collID, web, likes, page, size, total))
	default:
		notFound(w)
	}
}

// handleFollowerCheck answers whether a foreign author follows the
// local one: their profile when they do, 404 when they do not.
func (s *Server) handleFollowerCheck(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.localAuthor(w, r)
	if !ok {
		return
	}
	foreign := fqid.Normalize(r.PathValue("foreign"))
	f, err := s.store.GetFollowByPair(r.Context(), foreign, owner.ID)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		internalError(w, "load follow", err)
		return
	}
	if f.State != model.FollowAccepted {
		notFound(w)
		return
	}
	a, err := s.store.GetAuthor(r.Context(), foreign)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		internalError(w, "load author", err)
		return
	}
	writeJSON(w, http.StatusOK, authorJSON(a))
}

// localAuthor resolves a path serial against this node's author FQIDs,
// answering the 404 itself when no such author exists.
func (s *Server) localAuthor(w http.ResponseWriter, r *http.Request) (*model.Author, bool) {
	serial := r.PathValue("serial")
	id := fmt.Sprintf("%s/api/authors/%s", s.siteURL, serial)
	a, err := s.store.GetAuthor(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Author not found")
		return nil, false
	}
	if err != nil {
		internalError(w, "load author", err)
		return nil, false
	}
	return a, true
}
