package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/dentalops/assistant/internal/analysis"
	"github.com/dentalops/assistant/internal/history"
)

type stubAssistant struct {
	reply string
	err   error

	gotMessage string
	gotChatID  string
	gotUserID  string
}

func (s *stubAssistant) Handle(_ context.Context, message, chatID, userID string) (string, error) {
	s.gotMessage, s.gotChatID, s.gotUserID = message, chatID, userID
	return s.reply, s.err
}

type stubRunner struct {
	sessions *analysis.Sessions
	// release, when set, delays the terminal event so a test can attach
	// to the event stream before the session is pruned
	release chan struct{}
	got     analysis.Request
}

func (s *stubRunner) Run(_ context.Context, req analysis.Request) error {
	s.got = req
	s.sessions.Progress(req.SessionID, 1, 2, "555-0100: Linda Monroe (2 call(s))")
	if s.release != nil {
		<-s.release
	}
	s.sessions.Complete(req.SessionID, 2, 2)
	return nil
}

func newTestServer(t *testing.T, assistant *stubAssistant, runner *stubRunner, secret string) *httptest.Server {
	t.Helper()
	sessions := analysis.NewSessions()
	if runner != nil {
		runner.sessions = sessions
	}
	var r AnalysisRunner
	if runner != nil {
		r = runner
	}
	s, err := NewServer(Config{Assistant: assistant, Runner: r, Sessions: sessions})
	require.NoError(t, err)
	ts := httptest.NewServer(s.Router(secret))
	t.Cleanup(ts.Close)
	return ts
}

func adminToken(t *testing.T, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &stubAssistant{}, nil, "")

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestChat(t *testing.T) {
	assistant := &stubAssistant{reply: "**Lead #42**"}
	ts := newTestServer(t, assistant, nil, "")

	resp, err := http.Post(ts.URL+"/v1/chat", "application/json",
		strings.NewReader(`{"message":"show lead id 42","chat_id":"chat-1","user_id":"user-1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body chatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "**Lead #42**", body.Reply)
	assert.Equal(t, "chat-1", body.ChatID)

	assert.Equal(t, "show lead id 42", assistant.gotMessage)
	assert.Equal(t, "user-1", assistant.gotUserID)
}

func TestChatGeneratesChatID(t *testing.T) {
	ts := newTestServer(t, &stubAssistant{reply: "hi"}, nil, "")

	resp, err := http.Post(ts.URL+"/v1/chat", "application/json",
		strings.NewReader(`{"message":"hello","user_id":"user-1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body chatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.ChatID)
}

func TestChatRequiresUserID(t *testing.T) {
	ts := newTestServer(t, &stubAssistant{}, nil, "")

	resp, err := http.Post(ts.URL+"/v1/chat", "application/json",
		strings.NewReader(`{"message":"hello"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatAssistantFailure(t *testing.T) {
	ts := newTestServer(t, &stubAssistant{err: errors.New("boom")}, nil, "")

	resp, err := http.Post(ts.URL+"/v1/chat", "application/json",
		strings.NewReader(`{"message":"hello","user_id":"u"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestAnalysisRequiresJWT(t *testing.T) {
	ts := newTestServer(t, &stubAssistant{}, &stubRunner{}, "hmac-secret")

	resp, err := http.Post(ts.URL+"/v1/analysis/runs", "application/json",
		strings.NewReader(`{"call_ids":["CAL1"]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAnalysisRejectsBadToken(t *testing.T) {
	ts := newTestServer(t, &stubAssistant{}, &stubRunner{}, "hmac-secret")

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/analysis/runs",
		strings.NewReader(`{"call_ids":["CAL1"]}`))
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "wrong-secret"))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAnalysisRunAndEventStream(t *testing.T) {
	runner := &stubRunner{release: make(chan struct{})}
	ts := newTestServer(t, &stubAssistant{}, runner, "hmac-secret")
	token := adminToken(t, "hmac-secret")

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/analysis/runs",
		strings.NewReader(`{"call_ids":["CAL1","CAL2"],"tenant_ids":[7],"user_id":"user-1"}`))
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	sessionID := started["session_id"]
	require.NotEmpty(t, sessionID)

	evReq, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/analysis/runs/"+sessionID+"/events", nil)
	evReq.Header.Set("Authorization", "Bearer "+token)

	evResp, err := http.DefaultClient.Do(evReq)
	require.NoError(t, err)
	defer evResp.Body.Close()
	require.Equal(t, http.StatusOK, evResp.StatusCode)
	assert.Equal(t, "no-cache", evResp.Header.Get("Cache-Control"))
	assert.Contains(t, evResp.Header.Get("Content-Type"), "text/event-stream")

	scanner := bufio.NewScanner(evResp.Body)
	readEvent := func() analysis.Event {
		t.Helper()
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev analysis.Event
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
			return ev
		}
		t.Fatal("event stream ended early")
		return analysis.Event{}
	}

	progress := readEvent()
	assert.Equal(t, analysis.EventProgress, progress.Type)
	assert.Equal(t, 1, progress.Processed)
	assert.Equal(t, 2, progress.Total)
	require.NotEmpty(t, progress.Details)
	assert.Contains(t, progress.Details[0], "Linda Monroe")

	close(runner.release)

	completed := readEvent()
	assert.Equal(t, analysis.EventCompleted, completed.Type)
	assert.Equal(t, 100.0, completed.Percentage)

	// terminal event closes the stream
	for scanner.Scan() {
	}

	assert.Equal(t, []string{"CAL1", "CAL2"}, runner.got.CallIDs)
	assert.Equal(t, []int64{7}, runner.got.TenantIDs)
	assert.Equal(t, "user-1", runner.got.UserID)

	// terminal event pruned the session
	gone, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/analysis/runs/"+sessionID+"/events", nil)
	gone.Header.Set("Authorization", "Bearer "+token)
	goneResp, err := http.DefaultClient.Do(gone)
	require.NoError(t, err)
	defer goneResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, goneResp.StatusCode)
}

func TestAnalysisRunRequiresSelector(t *testing.T) {
	ts := newTestServer(t, &stubAssistant{}, &stubRunner{}, "hmac-secret")

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/analysis/runs", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "hmac-secret"))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type stubHistory struct {
	messages map[string][]history.Message
	err      error
}

func (s *stubHistory) Load(_ context.Context, chatID string) ([]history.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.messages[chatID], nil
}

func TestChatHistory(t *testing.T) {
	store := &stubHistory{messages: map[string][]history.Message{
		"chat-1": {
			{Role: "user", Content: "show lead id 42"},
			{Role: "assistant", Content: "**Lead #42**"},
		},
	}}
	s, err := NewServer(Config{Assistant: &stubAssistant{}, History: store})
	require.NoError(t, err)
	ts := httptest.NewServer(s.Router(""))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/chat/chat-1/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ChatID   string            `json:"chat_id"`
		Messages []history.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "chat-1", body.ChatID)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "user", body.Messages[0].Role)

	// unknown chats return an empty list, not an error
	resp2, err := http.Get(ts.URL + "/v1/chat/chat-9/history")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&body))
	assert.Empty(t, body.Messages)
}

func TestChatHistoryUnconfigured(t *testing.T) {
	ts := newTestServer(t, &stubAssistant{}, nil, "")

	resp, err := http.Get(ts.URL + "/v1/chat/chat-1/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestChatSocketReplaysHistory(t *testing.T) {
	store := &stubHistory{messages: map[string][]history.Message{
		"chat-9": {
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "Hi!"},
		},
	}}
	s, err := NewServer(Config{Assistant: &stubAssistant{}, History: store})
	require.NoError(t, err)
	ts := httptest.NewServer(s.Router(""))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws?user=user-1&chat=chat-9"
	conn, err := websocket.Dial(wsURL, "", "http://localhost/")
	require.NoError(t, err)
	defer conn.Close()

	var session OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &session))
	require.Equal(t, "session", session.Type)

	var first, second OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &first))
	require.NoError(t, websocket.JSON.Receive(conn, &second))
	assert.Equal(t, "user", first.Role)
	assert.Equal(t, "hello", first.Text)
	assert.Equal(t, "assistant", second.Role)
	assert.Equal(t, "Hi!", second.Text)
}

func TestChatSocketRoundTrip(t *testing.T) {
	assistant := &stubAssistant{reply: "Hi! How can I help?"}
	ts := newTestServer(t, assistant, nil, "")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws?user=user-1&chat=chat-9"
	conn, err := websocket.Dial(wsURL, "", "http://localhost/")
	require.NoError(t, err)
	defer conn.Close()

	var session OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &session))
	assert.Equal(t, "session", session.Type)
	assert.Equal(t, "chat-9", session.ChatID)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))
	var pong OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &pong))
	assert.Equal(t, "pong", pong.Type)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "hello there"}))
	var typing OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &typing))
	assert.Equal(t, "typing", typing.Type)

	var reply OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &reply))
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, "assistant", reply.Role)
	assert.Equal(t, "Hi! How can I help?", reply.Text)
	assert.Equal(t, "chat-9", reply.ChatID)

	assert.Equal(t, "hello there", assistant.gotMessage)
	assert.Equal(t, "user-1", assistant.gotUserID)
}
