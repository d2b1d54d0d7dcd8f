// Package httpapi exposes the assistant over HTTP: a chat endpoint, a
// websocket widget, analysis run control with an SSE progress stream, and
// the usual health and metrics surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dentalops/assistant/internal/analysis"
	"github.com/dentalops/assistant/internal/history"
	"github.com/dentalops/assistant/pkg/logging"
)

// Assistant answers one chat message.
type Assistant interface {
	Handle(ctx context.Context, userMessage, chatID, userID string) (string, error)
}

// AnalysisRunner executes one call-analysis batch.
type AnalysisRunner interface {
	Run(ctx context.Context, req analysis.Request) error
}

// ChatHistory replays stored turns for the widget.
type ChatHistory interface {
	Load(ctx context.Context, chatID string) ([]history.Message, error)
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	assistant Assistant
	runner    AnalysisRunner
	sessions  *analysis.Sessions
	history   ChatHistory
	logger    *logging.Logger
}

// Config wires a Server.
type Config struct {
	Assistant Assistant
	Runner    AnalysisRunner
	Sessions  *analysis.Sessions
	// History is optional; without it the history endpoint returns 503 and
	// the widget skips replay.
	History ChatHistory
	Logger  *logging.Logger
}

// NewServer validates the configuration and returns the server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Assistant == nil {
		return nil, errors.New("httpapi: assistant is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Server{
		assistant: cfg.Assistant,
		runner:    cfg.Runner,
		sessions:  cfg.Sessions,
		history:   cfg.History,
		logger:    cfg.Logger,
	}, nil
}

// Router builds the chi route tree.
func (s *Server) Router(adminSecret string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/chat/ws", s.handleChatSocket)
		r.Get("/chat/{chatID}/history", s.handleChatHistory)

		r.Group(func(r chi.Router) {
			r.Use(AdminJWT(adminSecret))
			r.Post("/analysis/runs", s.handleStartAnalysis)
			r.Get("/analysis/runs/{sessionID}/events", s.handleAnalysisEvents)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	Message string `json:"message"`
	ChatID  string `json:"chat_id"`
	UserID  string `json:"user_id"`
}

type chatResponse struct {
	Reply  string `json:"reply"`
	ChatID string `json:"chat_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.ChatID == "" {
		req.ChatID = uuid.NewString()
	}

	reply, err := s.assistant.Handle(r.Context(), req.Message, req.ChatID, req.UserID)
	if err != nil {
		s.logger.Error("chat turn failed", "chat_id", req.ChatID, "error", err)
		writeError(w, http.StatusInternalServerError, "chat turn failed")
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply, ChatID: req.ChatID})
}

// handleChatHistory returns the stored turns of a chat for widget replay.
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not configured")
		return
	}
	chatID := chi.URLParam(r, "chatID")
	messages, err := s.history.Load(r.Context(), chatID)
	if err != nil {
		s.logger.Error("history load failed", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load history")
		return
	}
	if messages == nil {
		messages = []history.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chat_id": chatID, "messages": messages})
}

type startAnalysisRequest struct {
	CallIDs   []string `json:"call_ids"`
	TenantIDs []int64  `json:"tenant_ids"`
	UserID    string   `json:"user_id"`
}

func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil || s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis is not configured")
		return
	}

	var req startAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.CallIDs) == 0 && len(req.TenantIDs) == 0 {
		writeError(w, http.StatusBadRequest, "call_ids or tenant_ids is required")
		return
	}

	sessionID := uuid.NewString()
	if err := s.sessions.Create(sessionID); err != nil {
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	// the run outlives the request; an abandoned stream must not abort it
	go func() {
		if err := s.runner.Run(context.Background(), analysis.Request{
			SessionID: sessionID,
			CallIDs:   req.CallIDs,
			TenantIDs: req.TenantIDs,
			UserID:    req.UserID,
		}); err != nil {
			s.logger.Error("analysis run failed", "session_id", sessionID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"session_id": sessionID})
}

// handleAnalysisEvents streams session progress as server-sent events. Each
// event is one JSON object; the connection closes after the terminal event.
func (s *Server) handleAnalysisEvents(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis is not configured")
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	stream, ok := s.sessions.Watch(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-stream:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := w.Write(append(append([]byte("data: "), payload...), '\n', '\n')); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
