package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// Response is one scripted answer of the fake API.
type Response struct {
	Status int
	Body   any
	Header map[string]string
}

// RecordedRequest captures a request received by the fake API.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// APIServer is an httptest server that answers routes with scripted responses
// and records every request it receives.
type APIServer struct {
	*httptest.Server
	mu       sync.Mutex
	routes   map[string]*route
	requests []RecordedRequest
}

type route struct {
	handler   http.HandlerFunc
	responses []Response
	calls     int
}

// NewAPIServer starts a fake API closed automatically at the end of the test.
func NewAPIServer(t *testing.T) *APIServer {
	t.Helper()
	s := &APIServer{routes: make(map[string]*route)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func routeKey(method, path string) string {
	return method + " " + path
}

// Handle registers a handler for method and path.
func (s *APIServer) Handle(method, path string, handler http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[routeKey(method, path)] = &route{handler: handler}
}

// JSON answers method and path with a fixed status and JSON body.
func (s *APIServer) JSON(method, path string, status int, body any) {
	s.Sequence(method, path, Response{Status: status, Body: body})
}

// Sequence answers successive calls with the given responses; the last one repeats.
func (s *APIServer) Sequence(method, path string, responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[routeKey(method, path)] = &route{responses: responses}
}

// Requests returns a copy of all recorded requests.
func (s *APIServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Calls reports how many requests hit method and path.
func (s *APIServer) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, req := range s.requests {
		if req.Method == method && req.Path == path {
			count++
		}
	}
	return count
}

// Last returns the most recent request for method and path.
func (s *APIServer) Last(method, path string) (RecordedRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Method == method && s.requests[i].Path == path {
			return s.requests[i], true
		}
	}
	return RecordedRequest{}, false
}

func (s *APIServer) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	rt, ok := s.routes[routeKey(r.Method, r.URL.Path)]
	var resp Response
	var handler http.HandlerFunc
	if ok {
		if rt.handler != nil {
			handler = rt.handler
		} else if len(rt.responses) > 0 {
			idx := rt.calls
			if idx >= len(rt.responses) {
				idx = len(rt.responses) - 1
			}
			resp = rt.responses[idx]
		}
		rt.calls++
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "route not found", "path": r.URL.Path})
		return
	}
	if handler != nil {
		handler(w, r)
		return
	}
	for k, v := range resp.Header {
		w.Header().Set(k, v)
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if raw, ok := body.(string); ok {
		_, _ = io.WriteString(w, raw)
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}
