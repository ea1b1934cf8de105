// Package mock implements an in-memory Depot service for tests and
// sandboxing. It speaks the same HTTP surface as the real service: CSRF
// issuance, credential exchange, and bucket-scoped file storage.
package mock

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SessionCookieName mirrors the cookie the real service sets.
const SessionCookieName = "depot.session-token"

type object struct {
	data        []byte
	contentType string
	publicURL   string
}

type session struct {
	requests int
}

// Server is an in-memory Depot service, usable directly as an http.Handler
// or behind httptest.NewServer.
type Server struct {
	// Latency is injected before every request.
	Latency time.Duration
	// FailRate injects random failures with FailCode (default 500).
	FailRate float64
	FailCode int
	// ExpireAfter invalidates a session after it has authorized this many
	// file requests. Zero means sessions never expire.
	ExpireAfter int
	// PublicBase prefixes generated public URLs.
	PublicBase string

	mu       sync.RWMutex
	apiKeys  map[string]bool
	csrf     map[string]bool
	sessions map[string]*session
	buckets  map[string]map[string]*object

	logins atomic.Int64
}

// New constructs an empty service accepting the provided API keys.
func New(apiKeys ...string) *Server {
	s := &Server{
		PublicBase: "https://depot.example/public",
		apiKeys:    make(map[string]bool, len(apiKeys)),
		csrf:       make(map[string]bool),
		sessions:   make(map[string]*session),
		buckets:    make(map[string]map[string]*object),
	}
	for _, k := range apiKeys {
		s.apiKeys[k] = true
	}
	return s
}

// LoginCount reports how many credential exchanges have been attempted.
func (s *Server) LoginCount() int64 {
	return s.logins.Load()
}

// ExpireSessions invalidates every live session, forcing clients through the
// re-login path on their next request.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
}

// Seed stores an object directly, bypassing the HTTP surface.
func (s *Server) Seed(bucket, path string, data []byte, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.buckets[bucket]
	if b == nil {
		b = make(map[string]*object)
		s.buckets[bucket] = b
	}
	b[normalizePath(path)] = &object{
		data:        append([]byte(nil), data...),
		contentType: contentType,
	}
}

// Object returns a stored payload, or nil when absent.
func (s *Server) Object(bucket, path string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b := s.buckets[bucket]
	if b == nil {
		return nil
	}
	obj := b[normalizePath(path)]
	if obj == nil {
		return nil
	}
	return append([]byte(nil), obj.data...)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.Latency > 0 {
		time.Sleep(s.Latency)
	}
	if s.FailRate > 0 && rand.Float64() < s.FailRate {
		code := s.FailCode
		if code == 0 {
			code = http.StatusInternalServerError
		}
		http.Error(w, "failure injected", code)
		return
	}

	switch {
	case r.URL.Path == "/api/auth/csrf":
		s.handleCSRF(w, r)
	case r.URL.Path == "/api/auth/callback/credentials":
		s.handleCredentials(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v2/file/"):
		s.handleFile(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleCSRF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := uuid.NewString()
	s.mu.Lock()
	s.csrf[token] = true
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"csrfToken": token})
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.logins.Add(1)

	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	csrf := r.PostFormValue("csrfToken")
	key := r.PostFormValue("token")

	s.mu.Lock()
	csrfOK := s.csrf[csrf]
	delete(s.csrf, csrf) // single use
	keyOK := s.apiKeys[key]
	s.mu.Unlock()

	if !csrfOK {
		http.Error(w, "invalid csrf token", http.StatusForbidden)
		return
	}
	if !keyOK {
		// The real service answers the callback with a redirect and no
		// session cookie; the absence of the cookie is the failure signal.
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"url":"/login?error=CredentialsSignin"}`)
		return
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = &session{}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"url":"/"}`)
}

func (s *Server) authorize(r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[cookie.Value]
	if !ok {
		return false
	}
	sess.requests++
	if s.ExpireAfter > 0 && sess.requests > s.ExpireAfter {
		delete(s.sessions, cookie.Value)
		return false
	}
	return true
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v2/file/")
	bucket, path, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || path == "" {
		http.Error(w, "bucket and path required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, bucket, path)
	case http.MethodPut:
		s.handlePut(w, r, bucket, path)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, bucket, path string) {
	s.mu.RLock()
	var obj *object
	if b := s.buckets[bucket]; b != nil {
		obj = b[normalizePath(path)]
	}
	s.mu.RUnlock()

	if obj == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if obj.contentType != "" {
		w.Header().Set("Content-Type", obj.contentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	_, _ = w.Write(obj.data)
}

// handlePut consumes the multipart submission part by part so the
// caller-supplied item ordering is observed.
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request, bucket, path string) {
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "multipart body required", http.StatusBadRequest)
		return
	}

	var (
		payload    []byte
		mimeType   string
		requestURL bool
		items      int
	)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		value, err := io.ReadAll(part)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		switch part.FormName() {
		case "file", "html":
			payload = append(payload, value...)
			items++
		case "path":
			resolved := s.Object(bucket, string(value))
			if resolved == nil {
				http.Error(w, fmt.Sprintf("referenced path %q not found", value), http.StatusBadRequest)
				return
			}
			payload = append(payload, resolved...)
			items++
		case "mimeType":
			mimeType = string(value)
		case "requestUrl":
			requestURL = string(value) == "true"
		default:
			http.Error(w, fmt.Sprintf("unknown field %q", part.FormName()), http.StatusBadRequest)
			return
		}
	}
	if items == 0 {
		http.Error(w, "no content items", http.StatusBadRequest)
		return
	}

	obj := &object{data: payload, contentType: mimeType}
	if requestURL {
		obj.publicURL = s.PublicBase + "/" + bucket + normalizePath(path)
	}

	s.mu.Lock()
	b := s.buckets[bucket]
	if b == nil {
		b = make(map[string]*object)
		s.buckets[bucket] = b
	}
	b[normalizePath(path)] = obj
	s.mu.Unlock()

	result := map[string]any{
		"bucket": bucket,
		"path":   normalizePath(path),
		"size":   len(payload),
	}
	if mimeType != "" {
		result["mimeType"] = mimeType
	}
	if requestURL {
		result["url"] = obj.publicURL
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
