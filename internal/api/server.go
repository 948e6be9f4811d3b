// Package api is the node's REST surface: Basic-Auth-guarded JSON
// routes over the store, the entry cache, and the inbox dispatcher.
package api

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Chloe-lh/Social-Gold/internal/activity"
	"github.com/Chloe-lh/Social-Gold/internal/cache"
	"github.com/Chloe-lh/Social-Gold/internal/config"
	"github.com/Chloe-lh/Social-Gold/internal/inbox"
	"github.com/Chloe-lh/Social-Gold/internal/media"
	"github.com/Chloe-lh/Social-Gold/internal/model"
	"github.com/Chloe-lh/Social-Gold/internal/store"
)

type Server struct {
	store   store.Store
	cache   cache.EntryCache
	disp    *inbox.Dispatcher
	media   *media.Store
	siteURL string
	realm   string

	httpSrv *http.Server
	client  *http.Client
	down    atomic.Bool
}

func NewServer(cfg *config.AppConfig, st store.Store, ec cache.EntryCache, d *inbox.Dispatcher, m *media.Store) *Server {
	s := &Server{
		store:   st,
		cache:   ec,
		disp:    d,
		media:   m,
		siteURL: cfg.Site.URL,
		realm:   cfg.Site.Realm,
		client:  &http.Client{Timeout: cfg.Fanout.Timeout()},
	}
	s.httpSrv = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           logMiddleware(s.authMiddleware(s.routes())),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the full middleware chain for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Detail lookups by FQID. The wildcard swallows the identifier's
	// own slashes; handlers normalize what they receive.
	mux.HandleFunc("GET /api/Profile/{fqid...}", s.handleProfile)
	mux.HandleFunc("GET /api/Node/{fqid...}", s.handleNode)
	mux.HandleFunc("GET /api/Follow/{fqid...}", s.handleFollow)
	mux.HandleFunc("GET /api/Like/{fqid...}", s.handleLike)
	mux.HandleFunc("GET /api/Comment/{rest...}", s.handleCommentGet)
	mux.HandleFunc("POST /api/Comment/{rest...}", s.handleCommentPost)

	mux.HandleFunc("GET /api/Entry/{rest...}", s.handleEntryGet)
	mux.HandleFunc("POST /api/Entry/{rest...}", s.handleEntryPost)
	mux.HandleFunc("PUT /api/Entry/{rest...}", s.handleEntryPut)
	mux.HandleFunc("DELETE /api/Entry/{rest...}", s.handleEntryDelete)

	mux.HandleFunc("GET /api/Author/{rest...}", s.handleAuthorCollections)

	exact(mux, "GET /api/entries", s.handleStream)
	mux.HandleFunc("GET /api/entries/{rest...}", s.handleEntriesGet)
	mux.HandleFunc("POST /api/entries/{rest...}", s.handleEntriesPost)

	exact(mux, "GET /api/authors", s.handleAuthors)
	mux.HandleFunc("GET /api/authors/{serial}/followers/{foreign...}", s.handleFollowerCheck)
	exact(mux, "POST /api/authors/{serial}/inbox", s.handleInboxPost)
	exact(mux, "POST /api/author/{serial}/inbox", s.handleInboxPost)
	exact(mux, "GET /api/authors/{serial}/inbox", s.handleInboxGet)

	exact(mux, "GET /api/EntryImage/{id}", s.handleImageGet)
	exact(mux, "GET /api/EntryImage/{id}/data", s.handleImageData)
	exact(mux, "DELETE /api/EntryImage/{id}", s.handleImageDelete)

	return mux
}

// exact registers a pattern plus its trailing-slash twin so POSTs are
// never bounced through a redirect.
func exact(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, h)
	mux.HandleFunc(pattern+"/{$}", h)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.down.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) Start() error {
	log.Printf("Node listening on %s (site %s)", s.httpSrv.Addr, s.siteURL)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, drains the handlers, then waits
// for in-flight inbox deliveries.
func (s *Server) Shutdown(ctx context.Context) error {
	s.down.Store(true)
	err := s.httpSrv.Shutdown(ctx)
	s.disp.Wait()
	return err
}

// dispatch fans an activity out to its recipients. Delivery is best
// effort; a failed fan-out never fails the request that caused it.
func (s *Server) dispatch(ctx context.Context, actor *model.Author, act *activity.Activity, err error) {
	if err != nil {
		log.Printf("Failed to build activity: %v", err)
		return
	}
	if err := s.disp.Dispatch(ctx, actor, act); err != nil {
		log.Printf("Failed to dispatch %s: %v", act.ID, err)
	}
}
