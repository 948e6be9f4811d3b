package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Chloe-lh/Social-Gold/internal/model"
	"github.com/Chloe-lh/Social-Gold/internal/store"
)

// Principal is whoever authenticated the request: a local author or a
// peer node, never both.
type Principal struct {
	Author *model.Author
	Node   *model.Node
}

type principalKey struct{}

func principalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// requireAuthor answers 403 when the caller is a node peer rather than
// an author and returns the author otherwise.
func requireAuthor(w http.ResponseWriter, r *http.Request) *model.Author {
	p := principalFrom(r.Context())
	if p == nil || p.Author == nil {
		writeError(w, http.StatusForbidden, "Author credentials required")
		return nil
	}
	return p.Author
}

// authMiddleware guards every route but the health check with HTTP
// Basic Auth. Credentials match either an approved local author or an
// active peer node's inbound pair; anything else gets the challenge.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok {
			s.challenge(w)
			return
		}
		p := s.authenticate(r.Context(), user, pass)
		if p == nil {
			s.challenge(w)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+s.realm+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}

func (s *Server) authenticate(ctx context.Context, user, pass string) *Principal {
	a, err := s.store.GetAuthorByUsername(ctx, user)
	if err == nil {
		if !a.IsApproved {
			return nil
		}
		if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(pass)) == nil {
			return &Principal{Author: a}
		}
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Printf("Failed to resolve author %q: %v", user, err)
		return nil
	}

	n, err := s.store.GetNodeByInboundUser(ctx, user)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("Failed to resolve node credentials %q: %v", user, err)
		}
		return nil
	}
	if bcrypt.CompareHashAndPassword([]byte(n.InboundHash), []byte(pass)) == nil {
		return &Principal{Node: n}
	}
	return nil
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Printf("%s %s -> %d (%s)", r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}
