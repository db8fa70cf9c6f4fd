// Package httpapi exposes the chat backend over HTTP: cookie-based auth,
// session management, and the ask endpoints (plain and streaming).
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/tmcfarlane/parley/internal/analytics"
	"github.com/tmcfarlane/parley/internal/assistant"
	"github.com/tmcfarlane/parley/internal/auth"
	"github.com/tmcfarlane/parley/internal/chat"
	"github.com/tmcfarlane/parley/internal/config"
	"github.com/tmcfarlane/parley/internal/observability"
)

type Server struct {
	cfg       config.Config
	accounts  *auth.Store
	sessions  *chat.Store
	assistant assistant.Client
	collector *analytics.Collector
	metrics   *observability.Metrics
	log       *slog.Logger
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, accounts *auth.Store, sessions *chat.Store, client assistant.Client, collector *analytics.Collector, metrics *observability.Metrics, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		accounts:  accounts,
		sessions:  sessions,
		assistant: client,
		collector: collector,
		metrics:   metrics,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/auth/login", s.handleLogin)

	r.Post("/api/chat", s.handleChat)
	r.Get("/api/chat/ws", s.handleChatWS)

	r.Get("/api/sessions/history", s.handleHistory)
	r.Get("/api/sessions/list", s.handleListSessions)
	r.Get("/api/sessions/{id}", s.handleGetSession)
	r.Delete("/api/sessions/{id}", s.handleDeleteSession)
	r.Post("/api/sessions/new", s.handleNewSession)
	r.Post("/api/sessions/switch/{id}", s.handleSwitchSession)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

// handleLogin authenticates, falling back to signup for unknown emails:
// the login form and the signup form are the same surface.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") || len(email) > 255 {
		respondError(w, http.StatusBadRequest, "invalid_email", "a valid email address is required")
		return
	}
	if req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_password", "password is required")
		return
	}

	ctx := r.Context()
	if !s.accounts.Authenticate(ctx, email, req.Password) {
		created, err := s.accounts.CreateAccount(ctx, email, req.Password, clientIP(r), r.UserAgent())
		if err != nil {
			s.storeError(w, "create account", err)
			return
		}
		if !created {
			// The account exists, so the password was wrong.
			respondError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
			return
		}
		s.log.Info("new account signed up", "email", email)
	}

	id, err := s.sessions.Create(ctx, email)
	if err != nil {
		s.storeError(w, "create session", err)
		return
	}
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	setSessionCookie(w, id, http.SameSiteStrictMode)
	setEmailCookie(w, email)
	respondJSON(w, http.StatusOK, sessionResponse{SessionID: id})
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respondError(w, http.StatusBadRequest, "invalid_question", "question is required")
		return
	}

	ctx := r.Context()
	sessionID := cookieValue(r, sessionCookie)
	email := cookieValue(r, emailCookie)

	answer, err := s.ask(ctx, r, sessionID, email, req.Question, nil)
	if err != nil {
		s.metrics.ComponentErrors.WithLabelValues("assistant").Inc()
		respondError(w, http.StatusBadGateway, "assistant_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, askResponse{Answer: answer})
}

// ask runs one question through the assistant, persists both turns when a
// session is attached, and records the interaction for analytics.
func (s *Server) ask(ctx context.Context, r *http.Request, sessionID, email, question string, onDelta assistant.DeltaHandler) (string, error) {
	var history []chat.PromptMessage
	if sessionID != "" {
		history = s.sessions.HistoryForPrompt(ctx, sessionID)
	}

	start := time.Now()
	res, err := s.assistant.StreamResponse(ctx, assistant.Request{
		SessionID: sessionID,
		Question:  question,
		History:   history,
	}, onDelta)
	if err != nil {
		return "", err
	}
	elapsed := time.Since(start)
	s.metrics.ObserveGeneration(elapsed)

	if sessionID != "" {
		if err := s.sessions.AddMessage(ctx, sessionID, "user", question); err != nil {
			s.metrics.ComponentErrors.WithLabelValues("storage").Inc()
			s.log.Error("failed to persist user message", "session_id", sessionID, "error", err)
		} else {
			s.metrics.ChatMessages.WithLabelValues("user").Inc()
		}
		if err := s.sessions.AddMessage(ctx, sessionID, "assistant", res.Text); err != nil {
			s.metrics.ComponentErrors.WithLabelValues("storage").Inc()
			s.log.Error("failed to persist assistant message", "session_id", sessionID, "error", err)
		} else {
			s.metrics.ChatMessages.WithLabelValues("assistant").Inc()
		}
	}

	if s.collector != nil {
		logSessionID := sessionID
		if logSessionID == "" {
			logSessionID = "no_session"
		}
		s.collector.Record(logSessionID, email, clientIP(r), r.UserAgent(), question, res.Text, elapsed)
	}
	return res.Text, nil
}

type historyResponse struct {
	History []chat.Message `json:"history"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := cookieValue(r, sessionCookie)
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "no_session", "no session found")
		return
	}
	history := s.sessions.History(r.Context(), sessionID)
	if history == nil {
		history = []chat.Message{}
	}
	respondJSON(w, http.StatusOK, historyResponse{History: history})
}

type sessionListResponse struct {
	Sessions []chat.Preview `json:"sessions"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	email := cookieValue(r, emailCookie)
	if email == "" {
		respondError(w, http.StatusUnauthorized, "not_logged_in", "not logged in")
		return
	}
	previews := s.sessions.ListWithPreview(r.Context(), email)
	if previews == nil {
		previews = []chat.Preview{}
	}
	respondJSON(w, http.StatusOK, sessionListResponse{Sessions: previews})
}

// authorize applies the ownership rule for direct session access: the
// caller must either own the session or be holding it as their current
// one. Guest sessions are reachable by whoever holds the id as their
// current session.
func authorize(sess *chat.Session, email, currentSessionID string) bool {
	if sess.UserEmail != "" && sess.UserEmail == email {
		return true
	}
	return sess.SessionID == currentSessionID
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := s.fetchSession(w, r, id)
	if !ok {
		return
	}
	if !authorize(sess, cookieValue(r, emailCookie), cookieValue(r, sessionCookie)) {
		respondError(w, http.StatusForbidden, "forbidden", "not your session")
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := s.fetchSession(w, r, id)
	if !ok {
		return
	}
	email := cookieValue(r, emailCookie)
	if !authorize(sess, email, cookieValue(r, sessionCookie)) {
		respondError(w, http.StatusForbidden, "forbidden", "not your session")
		return
	}

	deleted, err := s.sessions.Delete(r.Context(), id, email)
	if err != nil {
		s.storeError(w, "delete session", err)
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "session_not_found", "session not found")
		return
	}
	s.metrics.SessionEvents.WithLabelValues("deleted").Inc()
	respondJSON(w, http.StatusOK, map[string]string{"message": "session deleted"})
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	email := cookieValue(r, emailCookie)
	id, err := s.sessions.Create(r.Context(), email)
	if err != nil {
		if errors.Is(err, auth.ErrUnknownUser) {
			respondError(w, http.StatusUnauthorized, "unknown_user", "no such account")
			return
		}
		s.storeError(w, "create session", err)
		return
	}
	s.metrics.SessionEvents.WithLabelValues("created").Inc()
	setSessionCookie(w, id, http.SameSiteStrictMode)
	respondJSON(w, http.StatusOK, sessionResponse{SessionID: id})
}

func (s *Server) handleSwitchSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := s.fetchSession(w, r, id)
	if !ok {
		return
	}
	if sess.UserEmail == "" || sess.UserEmail != cookieValue(r, emailCookie) {
		respondError(w, http.StatusForbidden, "forbidden", "not your session")
		return
	}
	s.metrics.SessionEvents.WithLabelValues("switched").Inc()
	// Lax here: the switch target is opened from session-list navigation.
	setSessionCookie(w, id, http.SameSiteLaxMode)
	respondJSON(w, http.StatusOK, map[string]string{"message": "session switched"})
}

// fetchSession loads a session for the handlers above and writes the
// error response itself when the id is malformed or unknown.
func (s *Server) fetchSession(w http.ResponseWriter, r *http.Request, id string) (*chat.Session, bool) {
	sess, err := s.sessions.Get(r.Context(), id)
	if errors.Is(err, chat.ErrInvalidID) {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "malformed session id")
		return nil, false
	}
	if errors.Is(err, chat.ErrNotFound) {
		respondError(w, http.StatusNotFound, "session_not_found", "session not found")
		return nil, false
	}
	if err != nil {
		s.storeError(w, "load session", err)
		return nil, false
	}
	return sess, true
}

func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	s.metrics.ComponentErrors.WithLabelValues("storage").Inc()
	s.log.Error("storage operation failed", "op", op, "error", err)
	respondError(w, http.StatusInternalServerError, "storage_error", "internal storage error")
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
