package transcribe

import (
	"context"
	"errors"
	"io"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAudioAPI struct {
	resp openai.AudioResponse
	err  error
	got  openai.AudioRequest
}

func (s *stubAudioAPI) CreateTranscription(_ context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	s.got = req
	return s.resp, s.err
}

func TestNewEngineRequiresAPIKey(t *testing.T) {
	_, err := NewEngine(Config{}, nil)
	require.Error(t, err)
}

func TestTranscribe(t *testing.T) {
	api := &stubAudioAPI{resp: openai.AudioResponse{Text: "  hello from the call  ", Language: "english"}}
	engine := NewEngineWithClient(api, true, nil)

	got, err := engine.Transcribe(context.Background(), []byte("audio-bytes"), "CAL1.wav")
	require.NoError(t, err)
	assert.Equal(t, "hello from the call", got.Text)
	assert.Equal(t, "english", got.Language)
	assert.True(t, got.Valid())

	assert.Equal(t, "CAL1.wav", api.got.FilePath)
	assert.Equal(t, openai.AudioResponseFormatVerboseJSON, api.got.Format)
	body, err := io.ReadAll(api.got.Reader)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(body))
}

func TestTranscribeWithoutDecoder(t *testing.T) {
	api := &stubAudioAPI{}
	engine := NewEngineWithClient(api, false, nil)

	_, err := engine.Transcribe(context.Background(), []byte("audio"), "a.wav")
	require.ErrorIs(t, err, ErrDecoderUnavailable)
	assert.Nil(t, api.got.Reader, "no API call without a decoder")
}

func TestTranscribeEmptyAudio(t *testing.T) {
	engine := NewEngineWithClient(&stubAudioAPI{}, true, nil)
	_, err := engine.Transcribe(context.Background(), nil, "a.wav")
	require.Error(t, err)
}

func TestTranscribeAPIError(t *testing.T) {
	engine := NewEngineWithClient(&stubAudioAPI{err: errors.New("rate limited")}, true, nil)
	_, err := engine.Transcribe(context.Background(), []byte("audio"), "a.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestResultValid(t *testing.T) {
	assert.False(t, Result{Text: "   "}.Valid())
	assert.True(t, Result{Text: "ok"}.Valid())
}
