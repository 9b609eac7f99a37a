// Package gatewaytest provides an in-memory message server for tests.
package gatewaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Send is a send_message request as the server received it.
type Send struct {
	To      string
	Message string
}

// Server mimics the message server: one latest message per user, "all"
// overwrites every user's message.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	users       []string
	messages    map[string]string
	sends       []Send
	polls       int
	createError string
	latest      func(call int, username string) (string, int)
	plainText   bool
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	s := &Server{messages: make(map[string]string)}

	r := chi.NewRouter()
	r.Post("/create_user", s.createUser)
	r.Get("/users", s.listUsers)
	r.Post("/send_message", s.sendMessage)
	r.Get("/latest_message", s.latestMessage)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// SetMessage replaces the latest message for username.
func (s *Server) SetMessage(username, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[username] = msg
}

// SetCreateError makes create_user fail with 409 and the given error field.
func (s *Server) SetCreateError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createError = msg
}

// SetLatest overrides latest_message. fn receives the 1-based call number and
// returns the body and status; a non-200 status sends the body as the error.
func (s *Server) SetLatest(fn func(call int, username string) (string, int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = fn
}

// SetPlainText serves latest_message as raw text/html, like the reference
// server does.
func (s *Server) SetPlainText(plain bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plainText = plain
}

// Sends returns every send_message request received so far.
func (s *Server) Sends() []Send {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sends)
}

// Polls returns how many latest_message requests were served.
func (s *Server) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createError != "" {
		writeJSON(w, http.StatusConflict, map[string]string{"error": s.createError})
		return
	}
	if username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username required"})
		return
	}
	if !slices.Contains(s.users, username) {
		s.users = append(s.users, username)
	}
	s.messages[username] = ""
	w.WriteHeader(http.StatusOK)
}

func (s *Server) listUsers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	users := slices.Clone(s.users)
	s.mu.Unlock()
	if users == nil {
		users = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"users": users})
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	to, msg := r.FormValue("sendto"), r.FormValue("message")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, Send{To: to, Message: msg})
	if to == "all" {
		for _, u := range s.users {
			s.messages[u] = msg
		}
	} else {
		s.messages[to] = msg
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) latestMessage(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	s.mu.Lock()
	s.polls++
	call := s.polls
	msg, status := s.messages[username], http.StatusOK
	latest, plain := s.latest, s.plainText
	s.mu.Unlock()

	if latest != nil {
		msg, status = latest(call, username)
	}
	if status != http.StatusOK {
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}
	if plain {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(msg))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
