// Package transcribe turns call recordings into text via the OpenAI audio
// API. An external audio decoder must be present on PATH; its absence
// degrades transcription instead of failing the pipeline.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dentalops/assistant/pkg/logging"
)

var tracer = otel.Tracer("dentalops.internal.transcribe")

const (
	defaultModel   = openai.Whisper1
	defaultDecoder = "ffmpeg"
	requestTimeout = 60 * time.Second
)

// ErrDecoderUnavailable is returned when the audio decoder binary was not
// found at startup. Callers treat the affected call as having no transcript.
var ErrDecoderUnavailable = errors.New("transcribe: audio decoder not found on PATH")

// Result is one finished transcription.
type Result struct {
	Text     string
	Language string
}

// Valid reports whether the transcription produced usable text.
func (r Result) Valid() bool {
	return strings.TrimSpace(r.Text) != ""
}

type audioAPI interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// Engine is the speech-to-text client.
type Engine struct {
	api     audioAPI
	model   string
	decoder bool
	logger  *logging.Logger
}

// Config holds transcription settings.
type Config struct {
	APIKey string
	Model  string
	// DecoderBinary is probed on PATH at construction; defaults to ffmpeg.
	DecoderBinary string
}

// NewEngine constructs the engine and probes for the audio decoder. A
// missing decoder is logged, not fatal.
func NewEngine(cfg Config, logger *logging.Logger) (*Engine, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("transcribe: API key is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	binary := cfg.DecoderBinary
	if binary == "" {
		binary = defaultDecoder
	}
	decoder := probeDecoder(binary)
	if !decoder {
		logger.Warn("audio decoder not found, transcription disabled", "binary", binary)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Engine{
		api:     openai.NewClient(cfg.APIKey),
		model:   model,
		decoder: decoder,
		logger:  logger,
	}, nil
}

// NewEngineWithClient wires a prebuilt audio API. Used by tests and by
// callers that share one OpenAI client.
func NewEngineWithClient(api audioAPI, decoderAvailable bool, logger *logging.Logger) *Engine {
	if api == nil {
		panic("transcribe: audio API is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{api: api, model: defaultModel, decoder: decoderAvailable, logger: logger}
}

func probeDecoder(binary string) bool {
	_, err := exec.LookPath(binary)
	return err == nil
}

// DecoderAvailable reports whether recordings can be decoded on this host.
func (e *Engine) DecoderAvailable() bool {
	return e.decoder
}

// Transcribe converts one recording to text. The filename tells the API the
// container format; recordings arrive as wav or mp3 blobs.
func (e *Engine) Transcribe(ctx context.Context, audio []byte, filename string) (Result, error) {
	ctx, span := tracer.Start(ctx, "transcribe.recording")
	defer span.End()
	span.SetAttributes(attribute.Int("dentalops.audio_bytes", len(audio)))

	if !e.decoder {
		return Result{}, ErrDecoderUnavailable
	}
	if len(audio) == 0 {
		return Result{}, errors.New("transcribe: empty audio")
	}
	if filename == "" {
		filename = "recording.wav"
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := e.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    e.model,
		Reader:   bytes.NewReader(audio),
		FilePath: filename,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Result{}, fmt.Errorf("transcribe: %w", err)
	}

	result := Result{Text: strings.TrimSpace(resp.Text), Language: resp.Language}
	span.SetAttributes(attribute.Int("dentalops.transcript_chars", len(result.Text)))
	return result, nil
}
