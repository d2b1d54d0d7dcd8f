package main

import (
	"context"
	"testing"

	appconfig "github.com/dentalops/assistant/internal/config"
	"github.com/dentalops/assistant/internal/llm"
	"github.com/dentalops/assistant/pkg/logging"
	openai "github.com/sashabaranov/go-openai"
)

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	logger := logging.New("error")
	if pool := connectPostgresPool(context.Background(), "", logger); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func TestSetupToolsWithoutReadReplica(t *testing.T) {
	registry := setupTools(nil, nil)

	if _, ok := registry.Get("lead_get"); !ok {
		t.Fatalf("expected lead_get to be registered")
	}
	if _, ok := registry.Get("appointment_slots"); !ok {
		t.Fatalf("expected appointment_slots to be registered")
	}
	if _, ok := registry.Get("sql_read"); ok {
		t.Fatalf("expected sql_read to be absent without a read replica")
	}
	if got := len(registry.Names()); got != 15 {
		t.Fatalf("expected 15 tools, got %d", got)
	}
}

func TestSetupCompleterWithoutGemini(t *testing.T) {
	logger := logging.New("error")
	cfg := &appconfig.Config{OpenAIModel: "gpt-4o-mini"}

	completer, err := setupCompleter(context.Background(), cfg, openai.NewClient("test-key"), logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := completer.(*llm.OpenAIClient); !ok {
		t.Fatalf("expected plain OpenAI completer, got %T", completer)
	}
}

func TestSetupAnalysisDisabledWithoutToken(t *testing.T) {
	logger := logging.New("error")
	cfg := &appconfig.Config{}

	if p := setupAnalysis(context.Background(), cfg, nil, nil, nil, nil, logger); p != nil {
		t.Fatalf("expected analysis to be disabled without a call tracking token")
	}
}

func TestRunnerOrNil(t *testing.T) {
	if r := runnerOrNil(nil); r != nil {
		t.Fatalf("expected nil runner for nil pipeline")
	}
}

func TestCallrailAccountURL(t *testing.T) {
	cfg := &appconfig.Config{CallRailBaseURL: "https://api.callrail.com/v3", CallRailAccountID: "ACC1"}
	if got := callrailAccountURL(cfg); got != "https://api.callrail.com/v3/a/ACC1" {
		t.Fatalf("unexpected account URL %q", got)
	}

	cfg.CallRailAccountID = ""
	if got := callrailAccountURL(cfg); got != "https://api.callrail.com/v3" {
		t.Fatalf("unexpected bare URL %q", got)
	}
}

func TestTenantPrompts(t *testing.T) {
	logger := logging.New("error")
	out := tenantPrompts(map[string]string{"7": "score for tenant seven", "bogus": "dropped"}, logger)

	if len(out) != 1 {
		t.Fatalf("expected 1 prompt override, got %d", len(out))
	}
	if out[7] != "score for tenant seven" {
		t.Fatalf("unexpected prompt %q", out[7])
	}
}
