package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Route is a canned response served by Server.
type Route struct {
	Status int
	Body   []byte
}

// Server is an httptest server that answers GET requests from a fixed
// route table and records every requested path.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]Route
	requests []string
}

// NewServer starts a Server that is closed when the test finishes.
// Unknown paths answer 404.
func NewServer(t *testing.T, routes map[string]Route) *Server {
	t.Helper()

	if routes == nil {
		routes = make(map[string]Route)
	}
	s := &Server{routes: routes}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.URL.Path)
	route, ok := s.routes[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	status := route.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(route.Body)
}

// Handle adds or replaces the route for path.
func (s *Server) Handle(path string, route Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = route
}

// Requests returns the paths requested so far, in order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}
