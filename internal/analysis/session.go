package analysis

import (
	"fmt"
	"sync"
)

// Event types emitted on a session stream.
const (
	EventProgress  = "progress"
	EventCompleted = "completed"
	EventError     = "error"
)

// maxDetails bounds the recent-detail window carried by progress events.
const maxDetails = 10

// eventBuffer is the per-session channel capacity; progress events beyond it
// are dropped, terminal events evict the oldest to fit.
const eventBuffer = 64

// Event is one line of the analysis progress stream.
type Event struct {
	Type       string   `json:"type"`
	Processed  int      `json:"processed"`
	Total      int      `json:"total"`
	Percentage float64  `json:"percentage"`
	Details    []string `json:"details,omitempty"`
	Message    string   `json:"message,omitempty"`
}

type session struct {
	events  chan Event
	details []string
}

// Sessions is the process-global analysis session table. One worker writes
// each entry; stream readers consume the event channel. Terminal events close
// the channel and remove the entry.
type Sessions struct {
	mu   sync.Mutex
	byID map[string]*session
}

// NewSessions creates an empty session table.
func NewSessions() *Sessions {
	return &Sessions{byID: make(map[string]*session)}
}

// Create registers a new session id.
func (s *Sessions) Create(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[id]; exists {
		return fmt.Errorf("analysis: session %q already exists", id)
	}
	s.byID[id] = &session{events: make(chan Event, eventBuffer)}
	return nil
}

// Watch returns the event stream for a session. The channel closes after the
// terminal event.
func (s *Sessions) Watch(id string) (<-chan Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return sess.events, true
}

// Progress emits a progress event carrying the last ten detail lines. A slow
// or absent reader never blocks the worker; overflowing events are dropped.
func (s *Sessions) Progress(id string, processed, total int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return
	}
	if detail != "" {
		sess.details = append(sess.details, detail)
		if len(sess.details) > maxDetails {
			sess.details = sess.details[len(sess.details)-maxDetails:]
		}
	}

	event := Event{
		Type:       EventProgress,
		Processed:  processed,
		Total:      total,
		Percentage: percentage(processed, total),
		Details:    append([]string(nil), sess.details...),
	}
	select {
	case sess.events <- event:
	default:
	}
}

// Complete emits the terminal completed event and prunes the session.
func (s *Sessions) Complete(id string, processed, total int) {
	s.terminal(id, Event{
		Type:       EventCompleted,
		Processed:  processed,
		Total:      total,
		Percentage: percentage(processed, total),
	})
}

// Fail emits the terminal error event and prunes the session.
func (s *Sessions) Fail(id string, processed, total int, message string) {
	s.terminal(id, Event{
		Type:       EventError,
		Processed:  processed,
		Total:      total,
		Percentage: percentage(processed, total),
		Message:    message,
	})
}

func (s *Sessions) terminal(id string, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return
	}
	event.Details = append([]string(nil), sess.details...)
	// a terminal event must reach the stream even when the buffer is full:
	// evict the oldest buffered event until there is room
	for {
		select {
		case sess.events <- event:
			close(sess.events)
			delete(s.byID, id)
			return
		default:
		}
		select {
		case <-sess.events:
		default:
		}
	}
}

func percentage(processed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(processed) / float64(total)
}
