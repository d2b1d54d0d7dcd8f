package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalops/assistant/internal/llm"
)

type stubCompleter struct {
	resp llm.Response
	err  error
	got  llm.Request
}

func (s *stubCompleter) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	s.got = req
	return s.resp, s.err
}

func TestSummarize(t *testing.T) {
	completer := &stubCompleter{resp: llm.Response{Text: "```json\n" +
		`{"summary":"Caller wants a cleaning next week.","intent_score":80,"urgency_score":40,"overall_score":70,"potential_score":65,"two_way":true}` +
		"\n```"}}
	s := NewSummarizer(completer, SummarizerConfig{})

	got, err := s.Summarize(context.Background(), 7, "Linda Monroe", "transcript text")
	require.NoError(t, err)
	assert.Equal(t, "Caller wants a cleaning next week.", got.Text)
	assert.Equal(t, Scores{Intent: 80, Urgency: 40, Overall: 70, Potential: 65}, got.Scores)
	assert.True(t, got.TwoWay)

	require.Len(t, completer.got.Messages, 2)
	assert.Contains(t, completer.got.Messages[1].Content, "Caller: Linda Monroe")
	assert.Contains(t, completer.got.Messages[1].Content, "transcript text")
}

func TestSummarizeMonologueOverridesPotential(t *testing.T) {
	completer := &stubCompleter{resp: llm.Response{
		Text: `{"summary":"Voicemail asking for a callback.","potential_score":90,"two_way":false}`,
	}}
	s := NewSummarizer(completer, SummarizerConfig{MonologueScore: 25})

	got, err := s.Summarize(context.Background(), 7, "", "voicemail transcript")
	require.NoError(t, err)
	assert.False(t, got.TwoWay)
	assert.Equal(t, 25, got.Scores.Potential)
}

func TestSummarizeClampsScores(t *testing.T) {
	completer := &stubCompleter{resp: llm.Response{
		Text: `{"summary":"ok","intent_score":250,"urgency_score":-10,"two_way":true}`,
	}}
	s := NewSummarizer(completer, SummarizerConfig{})

	got, err := s.Summarize(context.Background(), 7, "", "t")
	require.NoError(t, err)
	assert.Equal(t, 100, got.Scores.Intent)
	assert.Equal(t, 0, got.Scores.Urgency)
}

func TestSummarizeTenantPromptOverride(t *testing.T) {
	completer := &stubCompleter{resp: llm.Response{Text: `{"summary":"ok","two_way":true}`}}
	s := NewSummarizer(completer, SummarizerConfig{
		TenantPrompts: map[int64]string{7: "tenant-specific analysis prompt"},
	})

	assert.Equal(t, "tenant-specific analysis prompt", s.PromptForTenant(7))
	assert.Equal(t, defaultSummaryPrompt, s.PromptForTenant(8))

	_, err := s.Summarize(context.Background(), 7, "", "t")
	require.NoError(t, err)
	assert.Equal(t, "tenant-specific analysis prompt", completer.got.Messages[0].Content)
}

func TestSummarizeNonJSONOutput(t *testing.T) {
	s := NewSummarizer(&stubCompleter{resp: llm.Response{Text: "I cannot help with that."}}, SummarizerConfig{})
	_, err := s.Summarize(context.Background(), 7, "", "t")
	require.Error(t, err)
}

func TestSummarizeCompleterError(t *testing.T) {
	s := NewSummarizer(&stubCompleter{err: errors.New("rate limited")}, SummarizerConfig{})
	_, err := s.Summarize(context.Background(), 7, "", "t")
	require.Error(t, err)
}

func TestSummarizeEmptySummary(t *testing.T) {
	s := NewSummarizer(&stubCompleter{resp: llm.Response{Text: `{"summary":"  ","two_way":true}`}}, SummarizerConfig{})
	_, err := s.Summarize(context.Background(), 7, "", "t")
	require.Error(t, err)
}
