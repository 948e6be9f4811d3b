package api

import (
	"encoding/base64"
	"errors"
	"io/fs"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Chloe-lh/Social-Gold/internal/model"
	"github.com/Chloe-lh/Social-Gold/internal/store"
)

// imageID parses the integer path id. Anything non-numeric answers 404,
// never 400: the route simply does not exist for such a path.
func imageID(r *http.Request) (int64, bool) {
	n, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (s *Server) handleImageGet(w http.ResponseWriter, r *http.Request) {
	id, ok := imageID(r)
	if !ok {
		notFound(w)
		return
	}
	img, err := s.store.GetImage(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		internalError(w, "load image", err)
		return
	}
	writeJSON(w, http.StatusOK, s.imageJSON(img))
}

// handleImageData serves the stored blob itself.
func (s *Server) handleImageData(w http.ResponseWriter, r *http.Request) {
	id, ok := imageID(r)
	if !ok {
		notFound(w)
		return
	}
	img, err := s.store.GetImage(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		internalError(w, "load image", err)
		return
	}
	data, err := s.media.Read(img.Ref)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("Failed to read image blob %s: %v", img.Ref, err)
		notFound(w)
		return
	}
	if err != nil {
		internalError(w, "read image", err)
		return
	}
	ct := mime.TypeByExtension(filepath.Ext(img.Ref))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", ct)
	if _, err := w.Write(data); err != nil {
		log.Printf("Failed to write image %d: %v", img.ID, err)
	}
}

func (s *Server) handleImageDelete(w http.ResponseWriter, r *http.Request) {
	author := requireAuthor(w, r)
	if author == nil {
		return
	}
	id, ok := imageID(r)
	if !ok {
		notFound(w)
		return
	}
	ctx := r.Context()
	img, err := s.store.GetImage(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		internalError(w, "load image", err)
		return
	}
	if e, err := s.store.GetEntry(ctx, img.Entry); err == nil && e.Author != author.ID {
		writeError(w, http.StatusForbidden, "Not your entry")
		return
	}
	if err := s.store.DeleteImage(ctx, id); err != nil {
		internalError(w, "delete image", err)
		return
	}
	if err := s.media.Remove(img.Ref); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Failed to remove image blob %s: %v", img.Ref, err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// listImages serves the metadata of every image attached to an entry.
func (s *Server) listImages(w http.ResponseWriter, r *http.Request, entryID string) {
	ctx := r.Context()
	if _, err := s.store.GetEntry(ctx, entryID); errors.Is(err, store.ErrNotFound) {
		notFound(w)
		return
	} else if err != nil {
		internalError(w, "load entry", err)
		return
	}
	imgs, err := s.store.ListImagesByEntry(ctx, entryID)
	if err != nil {
		internalError(w, "list images", err)
		return
	}
	items := make([]imageBody, len(imgs))
	for i, img := range imgs {
		items[i] = s.imageJSON(img)
	}
	writeJSON(w, http.StatusOK, imagesPage{Type: "images", Items: items})
}

// attachImage stores a base64 payload under the media dir and links the
// row to its entry. Data-URL payloads keep only the part after the comma.
func (s *Server) attachImage(w http.ResponseWriter, r *http.Request, entryID string) {
	author := requireAuthor(w, r)
	if author == nil {
		return
	}
	if !requireJSON(w, r) {
		return
	}
	var req struct {
		Name  string `json:"name"`
		Data  string `json:"data"`
		Order int    `json:"order"`
	}
	if !decodeBody(w, r, &req) {
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
	if e.Author != author.ID {
		writeError(w, http.StatusForbidden, "Not your entry")
		return
	}

	payload := req.Data
	if strings.HasPrefix(payload, "data:") {
		if i := strings.IndexByte(payload, ','); i >= 0 {
			payload = payload[i+1:]
		}
	}
	if payload == "" {
		writeError(w, http.StatusBadRequest, "Image data is required")
		return
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid image data")
		return
	}

	ref, err := s.media.Save(data, req.Name)
	if err != nil {
		internalError(w, "store image", err)
		return
	}
	img := &model.EntryImage{
		Entry:      e.ID,
		Name:       req.Name,
		Ref:        ref,
		Order:      req.Order,
		UploadedAt: time.Now().UTC(),
	}
	if err := s.store.AddImage(ctx, img); err != nil {
		if rmErr := s.media.Remove(ref); rmErr != nil {
			log.Printf("Failed to remove orphaned image blob %s: %v", ref, rmErr)
		}
		internalError(w, "save image", err)
		return
	}
	writeJSON(w, http.StatusCreated, s.imageJSON(img))
}
