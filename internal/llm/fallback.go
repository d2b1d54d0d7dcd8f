package llm

import (
	"context"
	"fmt"

	"github.com/dentalops/assistant/pkg/logging"
)

// FallbackCompleter wraps a primary provider with a secondary one. Tool-call
// requests never fall back: the secondary provider is text-only and a silent
// downgrade would drop the tool pass.
type FallbackCompleter struct {
	primary  Completer
	fallback Completer
	logger   *logging.Logger
}

// NewFallbackCompleter builds the chain. A nil fallback degrades to the
// primary alone.
func NewFallbackCompleter(primary, fallback Completer, logger *logging.Logger) *FallbackCompleter {
	if primary == nil {
		panic("llm: primary completer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackCompleter{primary: primary, fallback: fallback, logger: logger}
}

// Complete tries the primary provider and, for plain text requests, retries
// the secondary on failure.
func (c *FallbackCompleter) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if c.fallback == nil || len(req.Tools) > 0 {
		return Response{}, err
	}

	c.logger.Warn("primary completion failed, trying fallback provider", "error", err)
	fallbackResp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		return Response{}, fmt.Errorf("llm: both providers failed: primary: %w; fallback: %v", err, fallbackErr)
	}
	return fallbackResp, nil
}
