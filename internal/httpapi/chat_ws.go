package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// InboundMessage is one frame from the chat widget.
type InboundMessage struct {
	Type   string `json:"type"` // "message", "ping"
	UserID string `json:"user_id"`
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// OutboundMessage is one frame sent back to the widget.
type OutboundMessage struct {
	Type      string `json:"type"` // "message", "session", "typing", "pong", "error"
	Text      string `json:"text,omitempty"`
	Role      string `json:"role,omitempty"`
	ChatID    string `json:"chat_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// handleChatSocket serves the widget's websocket. Each inbound message runs
// one chat turn; the reply is pushed on the same connection.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		s.serveChatSocket(conn, r)
	}).ServeHTTP(w, r)
}

func (s *Server) serveChatSocket(conn *websocket.Conn, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "missing user parameter"})
		return
	}

	chatID := r.URL.Query().Get("chat")
	resumed := chatID != ""
	if chatID == "" {
		chatID = uuid.NewString()
	}
	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", ChatID: chatID})

	if resumed && s.history != nil {
		s.replayHistory(conn, r, chatID)
	}

	s.logger.Info("chat socket opened", "user_id", userID, "chat_id", chatID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			s.logger.Debug("chat socket closed", "chat_id", chatID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "typing", ChatID: chatID})

		reply, err := s.assistant.Handle(r.Context(), msg.Text, chatID, userID)
		if err != nil {
			s.logger.Error("chat socket turn failed", "chat_id", chatID, "error", err)
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "something went wrong, please try again"})
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundMessage{
			Type:      "message",
			Role:      "assistant",
			Text:      reply,
			ChatID:    chatID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// replayHistory pushes the stored turns of a resumed chat down the socket.
func (s *Server) replayHistory(conn *websocket.Conn, r *http.Request, chatID string) {
	messages, err := s.history.Load(r.Context(), chatID)
	if err != nil {
		s.logger.Warn("history replay failed", "chat_id", chatID, "error", err)
		return
	}
	for _, msg := range messages {
		_ = websocket.JSON.Send(conn, OutboundMessage{
			Type:   "message",
			Role:   msg.Role,
			Text:   msg.Content,
			ChatID: chatID,
		})
	}
}
