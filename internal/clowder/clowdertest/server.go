// Package clowdertest provides an in-process platform API for tests.
package clowdertest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/roman-kulish/gantry-extractors/internal/clowder"
)

// Key is the secret key the server accepts
const Key = "test-key"

// Request is a recorded call
type Request struct {
	Method string
	Path   string
	Query  map[string][]string
	Header http.Header
	Body   []byte
}

// Server is a platform API backed by a chi router. Handlers are registered by
// the test; every request that passes the key check is recorded.
type Server struct {
	*httptest.Server
	Router chi.Router

	mu       sync.Mutex
	requests []Request
}

// NewServer starts a server that is closed when the test ends
func NewServer(t *testing.T) *Server {
	t.Helper()

	s := &Server{Router: chi.NewRouter()}
	s.Router.Use(s.authorize, s.recordRequest)

	s.Server = httptest.NewServer(s.Router)
	t.Cleanup(s.Server.Close)
	return s
}

// Client returns a platform client for the server
func (s *Server) Client(options ...func(c *clowder.Client)) *clowder.Client {
	return clowder.NewClient(s.URL, Key, options...)
}

// Host returns the host as it appears in messages, with a trailing slash
func (s *Server) Host() string {
	return s.URL + "/"
}

// Requests returns the recorded requests for a method and path
func (s *Server) Requests(method, path string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Request
	for _, r := range s.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// All returns every recorded request
func (s *Server) All() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != Key {
			http.Error(w, "not authorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recordRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

// JSON responds with v encoded as JSON
func JSON(v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Raw responds with a literal JSON document
func Raw(doc string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, doc)
	}
}

// Status responds with an empty body and the given status code
func Status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(code), code)
	}
}
