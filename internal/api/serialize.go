package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Chloe-lh/Social-Gold/internal/model"
)

// Typed wrappers put the discriminator the wire format carries on top
// of the model's own fields.

type authorBody struct {
	Type string `json:"type"`
	*model.Author
}

func authorJSON(a *model.Author) authorBody { return authorBody{"author", a} }

func authorsJSON(authors []*model.Author) []authorBody {
	out := make([]authorBody, len(authors))
	for i, a := range authors {
		out[i] = authorJSON(a)
	}
	return out
}

type entryBody struct {
	Type string `json:"type"`
	*model.Entry
}

func entryJSON(e *model.Entry) entryBody { return entryBody{"entry", e} }

// entryDetail adds the counters served on the detail route.
type entryDetail struct {
	Type string `json:"type"`
	*model.Entry
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
}

type commentBody struct {
	Type string `json:"type"`
	*model.Comment
}

func commentJSON(c *model.Comment) commentBody { return commentBody{"comment", c} }

type likeBody struct {
	Type string `json:"type"`
	*model.Like
}

func likeJSON(l *model.Like) likeBody { return likeBody{"like", l} }

type followBody struct {
	Type string `json:"type"`
	*model.Follow
}

type nodeBody struct {
	Type string `json:"type"`
	*model.Node
}

type imageBody struct {
	Type string `json:"type"`
	*model.EntryImage
}

func (s *Server) imageJSON(img *model.EntryImage) imageBody {
	img.URL = fmt.Sprintf("%s/api/EntryImage/%d/data", s.siteURL, img.ID)
	return imageBody{"image", img}
}

// Collection shapes, one per wire format.

type commentsPage struct {
	Type  string        `json:"type"`
	ID    string        `json:"id"`
	Size  int           `json:"size"`
	Items []commentBody `json:"items"`
	Next  string        `json:"next,omitempty"`
	Prev  string        `json:"prev,omitempty"`
}

// commentsJSON carries the full comment count in size; next/prev appear
// only when the page window leaves comments on either side.
func commentsJSON(id string, comments []*model.Comment, page, size, total int) commentsPage {
	items := make([]commentBody, len(comments))
	for i, c := range comments {
		items[i] = commentJSON(c)
	}
	p := commentsPage{Type: "comments", ID: id, Size: total, Items: items}
	if page*size < total {
		p.Next = fmt.Sprintf("%s?page=%d&size=%d", id, page+1, size)
	}
	if page > 1 {
		p.Prev = fmt.Sprintf("%s?page=%d&size=%d", id, page-1, size)
	}
	return p
}

type likesPage struct {
	Type       string     `json:"type"`
	ID         string     `json:"id"`
	Web        string     `json:"web"`
	PageNumber int        `json:"page_number"`
	Size       int        `json:"size"`
	Count      int        `json:"count"`
	Src        []likeBody `json:"src"`
}

func likesJSON(id, web string, likes []*model.Like, page, size, total int) likesPage {
	src := make([]likeBody, len(likes))
	for i, l := range likes {
		src[i] = likeJSON(l)
	}
	return likesPage{
		Type:       "likes",
		ID:         id,
		Web:        web,
		PageNumber: page,
		Size:       size,
		Count:      total,
		Src:        src,
	}
}

type authorsPage struct {
	Type  string       `json:"type"`
	Items []authorBody `json:"items"`
	Page  int          `json:"page"`
	Size  int          `json:"size"`
	Total int          `json:"total"`
}

type entriesPage struct {
	Type  string      `json:"type"`
	Items []entryBody `json:"items"`
}

func entriesJSON(entries []*model.Entry) entriesPage {
	items := make([]entryBody, len(entries))
	for i, e := range entries {
		items[i] = entryJSON(e)
	}
	return entriesPage{Type: "entries", Items: items}
}

type imagesPage struct {
	Type  string      `json:"type"`
	Items []imageBody `json:"items"`
}

type inboxPage struct {
	Type  string            `json:"type"`
	Items []json.RawMessage `json:"items"`
}

const maxPageSize = 100

// pageParams reads ?page= (1-based) and ?size=, clamping both.
func pageParams(r *http.Request, defaultSize int) (page, size, offset int) {
	page, size = 1, defaultSize
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxPageSize {
			size = n
		}
	}
	return page, size, (page - 1) * size
}
