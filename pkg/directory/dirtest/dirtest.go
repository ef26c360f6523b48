// Package dirtest is an in-memory stand-in for the directory REST API.
package dirtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

const apiPrefix = "/api/plugins/netbox-dns"

// Server keeps objects per collection ("nameservers", "views", "zones",
// "records") and answers filtered reads and creates on them.
type Server struct {
	URL   string
	Token string

	mu       sync.Mutex
	objects  map[string][]map[string]any
	nextID   int
	faults   map[string]fault
	requests []string
}

type fault struct {
	status int
	body   string
}

func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		Token:   "secret",
		objects: make(map[string][]map[string]any),
		faults:  make(map[string]fault),
	}

	r := chi.NewRouter()
	r.Use(s.auth)
	r.Route(apiPrefix, func(r chi.Router) {
		r.Get("/{collection}/", s.list)
		r.Post("/{collection}/", s.create)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	s.URL = srv.URL
	return s
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Authorization") != "Token "+s.Token {
			http.Error(w, `{"detail":"Invalid token"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// Seed stores obj in collection and returns its new id.
func (s *Server) Seed(collection string, obj map[string]any) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(collection, obj)
}

func (s *Server) insert(collection string, obj map[string]any) int {
	s.nextID++
	obj["id"] = float64(s.nextID)
	s.objects[collection] = append(s.objects[collection], obj)
	return s.nextID
}

// Objects returns a copy of everything stored in collection.
func (s *Server) Objects(collection string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.objects[collection]...)
}

// Fail makes every method request on collection answer status and body.
func (s *Server) Fail(method, collection string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method+" "+collection] = fault{status: status, body: body}
}

// Count is how many method requests collection has seen.
func (s *Server) Count(method, collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r == method+" "+collection {
			n++
		}
	}
	return n
}

func (s *Server) record(req *http.Request) string {
	collection := chi.URLParam(req, "collection")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req.Method+" "+collection)
	return collection
}

func (s *Server) failed(w http.ResponseWriter, req *http.Request, collection string) bool {
	s.mu.Lock()
	f, ok := s.faults[req.Method+" "+collection]
	s.mu.Unlock()
	if ok {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
	}
	return ok
}

func (s *Server) list(w http.ResponseWriter, req *http.Request) {
	collection := s.record(req)
	if s.failed(w, req, collection) {
		return
	}

	q := req.URL.Query()
	s.mu.Lock()
	results := []map[string]any{}
	for _, obj := range s.objects[collection] {
		if matches(obj, q) {
			results = append(results, obj)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"count": len(results), "results": results})
}

func (s *Server) create(w http.ResponseWriter, req *http.Request) {
	collection := s.record(req)
	if s.failed(w, req, collection) {
		return
	}

	obj := map[string]any{}
	if err := json.NewDecoder(req.Body).Decode(&obj); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.insert(collection, obj)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, obj)
}

// matches treats "<field>_id" filters as filters on <field>, and the
// value "null" as matching an absent or null field.
func matches(obj map[string]any, q map[string][]string) bool {
	for k, vs := range q {
		field := strings.TrimSuffix(k, "_id")
		v, ok := obj[field]
		for _, want := range vs {
			if want == "null" {
				if ok && v != nil {
					return false
				}
				continue
			}
			if !ok || v == nil || fmt.Sprint(v) != want {
				return false
			}
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
