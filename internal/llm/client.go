// Package llm wraps the chat model providers behind one Completer interface.
// OpenAI is the primary provider; Gemini serves as a text-only fallback.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dentalops/assistant/pkg/logging"
)

var llmTracer = otel.Tracer("dentalops.internal.llm")

const completionTimeout = 30 * time.Second

// Request is a single completion call.
type Request struct {
	Model       string
	Messages    []openai.ChatCompletionMessage
	Tools       []openai.Tool
	Temperature float32
	MaxTokens   int
}

// Response is the model's answer: either text, tool calls, or both.
type Response struct {
	Text         string
	ToolCalls    []openai.ToolCall
	FinishReason string
}

// Completer produces completions.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

type chatAPI interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient is the primary chat provider.
type OpenAIClient struct {
	api    chatAPI
	model  string
	logger *logging.Logger
}

// NewOpenAI builds the primary client from an API key.
func NewOpenAI(apiKey, model string, logger *logging.Logger) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: openai api key is required")
	}
	return NewOpenAIWithClient(openai.NewClient(apiKey), model, logger), nil
}

// NewOpenAIWithClient wires an existing chat API, used by tests.
func NewOpenAIWithClient(api chatAPI, model string, logger *logging.Logger) *OpenAIClient {
	if api == nil {
		panic("llm: chat API cannot be nil")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OpenAIClient{api: api, model: model, logger: logger}
}

// Complete runs one chat completion with a bounded timeout.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	ctx, span := llmTracer.Start(ctx, "llm.openai.complete")
	defer span.End()

	model := req.Model
	if model == "" {
		model = c.model
	}
	span.SetAttributes(
		attribute.String("dentalops.llm.model", model),
		attribute.Int("dentalops.llm.tools", len(req.Tools)),
	)

	callCtx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    req.Messages,
		Tools:       req.Tools,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		span.RecordError(err)
		return Response{}, fmt.Errorf("llm: openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		err := errors.New("llm: openai returned no choices")
		span.RecordError(err)
		return Response{}, err
	}

	choice := resp.Choices[0]
	return Response{
		Text:         strings.TrimSpace(choice.Message.Content),
		ToolCalls:    choice.Message.ToolCalls,
		FinishReason: string(choice.FinishReason),
	}, nil
}
