package api

import (
	"errors"
	"net/http"

	"github.com/Chloe-lh/Social-Gold/internal/fqid"
	"github.com/Chloe-lh/Social-Gold/internal/store"
)

// Detail lookups answer 200 with the entity JSON or 404 with an empty
// body. Knowing an FQID is what grants access to it.

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	id := fqid.Normalize(r.PathValue("fqid"))
	a, err := s.store.GetAuthor(r.Context(), id)
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

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	id := fqid.Normalize(r.PathValue("fqid"))
	n, err := s.store.GetNode(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		internalError(w, "load node", err)
		return
	}
	writeJSON(w, http.StatusOK, nodeBody{"node", n})
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	id := fqid.Normalize(r.PathValue("fqid"))
	f, err := s.store.GetFollow(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		internalError(w, "load follow", err)
		return
	}
	writeJSON(w, http.StatusOK, followBody{"follow", f})
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	id := fqid.Normalize(r.PathValue("fqid"))
	l, err := s.store.GetLike(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		internalError(w, "load like", err)
		return
	}
	writeJSON(w, http.StatusOK, likeJSON(l))
}
