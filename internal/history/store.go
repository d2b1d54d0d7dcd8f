// Package history persists per-chat message transcripts in Redis so the
// assistant can carry context across turns. Entries expire after the
// configured TTL; a missing chat simply yields empty history.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTTL bounds how long an idle chat keeps its context.
const DefaultTTL = 24 * time.Hour

// maxMessages caps stored history so long-running chats stay within the
// model's context window.
const maxMessages = 40

// Message is one stored chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Agent   string `json:"agent,omitempty"`
}

// Store reads and writes chat history.
type Store struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// New builds a history store. TTL values <= 0 fall back to DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *Store {
	if client == nil {
		panic("history: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("dentalops.internal.history"),
	}
}

// Load returns the stored messages for a chat. Unknown chats return an empty
// slice, not an error; a fresh chat id is the normal first-turn case.
func (s *Store) Load(ctx context.Context, chatID string) ([]Message, error) {
	ctx, span := s.tracer.Start(ctx, "history.load")
	defer span.End()

	data, err := s.redis.Get(ctx, chatKey(chatID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("history: failed to load chat %s: %w", chatID, err)
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("history: failed to decode chat %s: %w", chatID, err)
	}
	return messages, nil
}

// Save replaces the stored messages for a chat and refreshes its TTL. Only
// the newest maxMessages entries are kept.
func (s *Store) Save(ctx context.Context, chatID string, messages []Message) error {
	ctx, span := s.tracer.Start(ctx, "history.save")
	defer span.End()

	if len(messages) > maxMessages {
		messages = messages[len(messages)-maxMessages:]
	}
	data, err := json.Marshal(messages)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("history: failed to marshal chat %s: %w", chatID, err)
	}
	if err := s.redis.Set(ctx, chatKey(chatID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("history: failed to persist chat %s: %w", chatID, err)
	}
	return nil
}

// Append loads, extends, and saves in one call.
func (s *Store) Append(ctx context.Context, chatID string, messages ...Message) error {
	existing, err := s.Load(ctx, chatID)
	if err != nil {
		return err
	}
	return s.Save(ctx, chatID, append(existing, messages...))
}

// Clear forgets a chat.
func (s *Store) Clear(ctx context.Context, chatID string) error {
	ctx, span := s.tracer.Start(ctx, "history.clear")
	defer span.End()

	if err := s.redis.Del(ctx, chatKey(chatID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("history: failed to clear chat %s: %w", chatID, err)
	}
	return nil
}

func chatKey(id string) string {
	return fmt.Sprintf("chat:%s", id)
}
