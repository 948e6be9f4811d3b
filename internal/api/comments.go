package api

import (
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Chloe-lh/Social-Gold/internal/activity"
	"github.com/Chloe-lh/Social-Gold/internal/fqid"
	"github.com/Chloe-lh/Social-Gold/internal/model"
	"github.com/Chloe-lh/Social-Gold/internal/store"
)

func (s *Server) handleCommentGet(w http.ResponseWriter, r *http.Request) {
	id, sub := fqid.SplitResource(r.PathValue("rest"))
	switch sub {
	case "":
		s.commentDetail(w, r, id)
	case "likes":
		s.listLikes(w, r, id, "Comment")
	default:
		notFound(w)
	}
}

func (s *Server) handleCommentPost(w http.ResponseWriter, r *http.Request) {
	id, sub := fqid.SplitResource(r.PathValue("rest"))
	if sub != "likes" {
		notFound(w)
		return
	}
	s.likeObject(w, r, id, "Comment")
}

func (s *Server) commentDetail(w http.ResponseWriter, r *http.Request, id string) {
	c, err := s.store.GetComment(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		internalError(w, "load comment", err)
		return
	}
	writeJSON(w, http.StatusOK, commentJSON(c))
}

// listComments serves the comments collection for an entry. Entries we
// hold locally answer from the store; entries minted by a known peer
// are proxied to that peer.
func (s *Server) listComments(w http.ResponseWriter, r *http.Request, entryID string) {
	ctx := r.Context()
	e, err := s.store.GetEntry(ctx, entryID)
	if err == nil {
		page, size, offset := pageParams(r, defaultCommentPage)
		comments, total, err := s.store.ListCommentsByEntry(ctx, e.ID, size, offset)
		if err != nil {
			internalError(w, "load comments", err)
			return
		}
		writeJSON(w, http.StatusOK, commentsJSON(e.ID+"/comments", comments, page, size, total))
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		internalError(w, "load entry", err)
		return
	}
	s.proxyRemoteComments(w, r, entryID)
}

func (s *Server) proxyRemoteComments(w http.ResponseWriter, r *http.Request, entryID string) {
	base := fqid.HostBase(entryID)
	if base == "" || fqid.IsLocal(entryID, s.siteURL) {
		notFound(w)
		return
	}
	node, err := s.store.GetNode(r.Context(), base)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		internalError(w, "load node", err)
		return
	}
	if !node.IsActive {
		notFound(w)
		return
	}

	remote := node.ID + "/api/entries/" + url.PathEscape(entryID) + "/comments/"
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, remote, nil)
	if err != nil {
		internalError(w, "build remote request", err)
		return
	}
	req.SetBasicAuth(node.AuthUser, node.AuthPass)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("Failed to fetch remote comments from %s: %v", node.ID, err)
		writeError(w, http.StatusBadGateway, "Failed to fetch remote comments")
		return
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, resp.Body); err != nil {
			log.Printf("Failed to relay remote comments from %s: %v", node.ID, err)
		}
	case http.StatusNotFound:
		notFound(w)
	default:
		writeError(w, http.StatusBadGateway, "Failed to fetch remote comments")
	}
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request, entryID string) {
	author := requireAuthor(w, r)
	if author == nil {
		return
	}
	if !requireJSON(w, r) {
		return
	}
	var req struct {
		Content     string `json:"content"`
		ContentType string `json:"contentType"`
		ReplyTo     string `json:"replyTo"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "Content is required")
		return
	}
	if req.ContentType == "" {
		req.ContentType = model.ContentTypePlain
	}
	if req.ContentType != model.ContentTypePlain && req.ContentType != model.ContentTypeMarkdown {
		writeError(w, http.StatusBadRequest, "Invalid content type")
		return
	}

	ctx := r.Context()
	e, err := s.store.GetEntry(ctx, entryID)
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

	c := &model.Comment{
		ID:          fqid.Mint(author.ID, "commented"),
		Entry:       e.ID,
		Author:      author.ID,
		ReplyTo:     fqid.Normalize(req.ReplyTo),
		Content:     req.Content,
		ContentType: req.ContentType,
		Published:   time.Now().UTC(),
	}
	if _, err := s.store.CreateComment(ctx, c); err != nil {
		internalError(w, "create comment", err)
		return
	}
	s.cache.AddComments(ctx, e.ID, 1)
	act, err := activity.CommentOnEntry(author, c)
	s.dispatch(ctx, author, act, err)
	writeJSON(w, http.StatusCreated, commentJSON(c))
}
