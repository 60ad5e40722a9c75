// Package authtest provides a fake auth API for tests.
//
// The server answers the four auth endpoints with canned responses and records every request it receives.
// Unconfigured endpoints answer 404 with a plain text body.
package authtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	LoginPath        = "/api/login"
	LogoutPath       = "/api/logout"
	CheckLoginPath   = "/api/check-login"
	CheckVersionPath = "/api/check-version"
)

// Response is a canned reply.
type Response struct {
	Status int
	Body   string
}

// Request is a recorded call. Body is the decoded JSON request body.
type Request struct {
	Path      string
	RequestID string
	UserAgent string
	Body      map[string]any
}

type Server struct {
	*httptest.Server

	mutex     sync.Mutex
	responses map[string]Response
	requests  []Request
}

// NewServer starts a fake auth API that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{responses: make(map[string]Response)}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	for _, path := range []string{LoginPath, LogoutPath, CheckLoginPath, CheckVersionPath} {
		router.Post(path, s.handle)
	}

	s.Server = httptest.NewServer(router)
	t.Cleanup(s.Close)
	return s
}

// Respond sets the reply for path.
func (s *Server) Respond(path string, status int, body string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.responses[path] = Response{Status: status, Body: body}
}

// Requests returns the calls received on path, oldest first.
func (s *Server) Requests(path string) []Request {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var out []Request
	for _, r := range s.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	rec := Request{
		Path:      r.URL.Path,
		RequestID: middleware.GetReqID(r.Context()),
		UserAgent: r.UserAgent(),
	}
	if b, err := io.ReadAll(r.Body); err == nil && len(b) > 0 {
		_ = json.Unmarshal(b, &rec.Body)
	}

	s.mutex.Lock()
	s.requests = append(s.requests, rec)
	res, ok := s.responses[r.URL.Path]
	s.mutex.Unlock()

	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.Status)
	_, _ = io.WriteString(w, res.Body)
}

// Payload fields used by SuccessBody. Zero values are written as is.
type Payload struct {
	UserID        int64
	DeviceAddress string
	Mail          string
	ServerVersion int64
}

// SuccessBody renders a status:true envelope with a complete login payload.
func SuccessBody(p Payload) string {
	return fmt.Sprintf(`{"status":true,"data":{"agences":[{"id":1,"nom":"Central"}],"version":%d,"idMbr":%d,"adrMac":%q,"mail":%q,"hasContrat":true,"info":{"theme":"dark"},"limits":{"maxStructures":5},"planActions":"basic","structure":{"root":{"children":[{"id":"a","score":3}]}}}}`,
		p.ServerVersion, p.UserID, p.DeviceAddress, p.Mail)
}

// FailureBody renders a status:false envelope.
func FailureBody(code int, txt string) string {
	return fmt.Sprintf(`{"status":false,"error":{"code":%d,"txt":%q}}`, code, txt)
}
