// Command analyzer runs one call-analysis batch from the command line and
// prints session progress to stdout. It shares the API server's configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/dentalops/assistant/cmd/mainconfig"
	"github.com/dentalops/assistant/internal/analysis"
	"github.com/dentalops/assistant/internal/appserver"
	"github.com/dentalops/assistant/internal/callrail"
	appconfig "github.com/dentalops/assistant/internal/config"
	"github.com/dentalops/assistant/internal/llm"
	"github.com/dentalops/assistant/internal/transcribe"
	"github.com/dentalops/assistant/pkg/logging"
)

func main() {
	callsFlag := flag.String("calls", "", "comma-separated call ids to analyze")
	tenantsFlag := flag.String("tenants", "", "comma-separated tenant ids to analyze all calls for")
	userFlag := flag.String("user", "analyzer-cli", "user id stamped onto submissions")
	flag.Parse()

	callIDs := splitCSV(*callsFlag)
	tenantIDs, err := parseTenantIDs(*tenantsFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if len(callIDs) == 0 && len(tenantIDs) == 0 {
		fmt.Fprintln(os.Stderr, "analyzer: -calls or -tenants is required")
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	pipeline, sessions, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Error("analyzer setup failed", "error", err)
		os.Exit(1)
	}

	sessionID := uuid.NewString()
	if err := sessions.Create(sessionID); err != nil {
		logger.Error("session setup failed", "error", err)
		os.Exit(1)
	}
	stream, _ := sessions.Watch(sessionID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range stream {
			printEvent(event)
		}
	}()

	runErr := pipeline.Run(ctx, analysis.Request{
		SessionID: sessionID,
		CallIDs:   callIDs,
		TenantIDs: tenantIDs,
		UserID:    *userFlag,
	})
	<-done
	if runErr != nil {
		os.Exit(1)
	}
}

func buildPipeline(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*analysis.Pipeline, *analysis.Sessions, error) {
	app, err := appserver.New(appserver.Config{
		BaseURL:        cfg.AppServerBaseURL,
		Token:          cfg.AppServerToken,
		Timeout:        cfg.AppServerReadTimeout,
		ConnectTimeout: cfg.AppServerConnTimeout,
		Logger:         logger,
	})
	if err != nil {
		return nil, nil, err
	}

	baseURL := cfg.CallRailBaseURL
	if cfg.CallRailAccountID != "" {
		baseURL += "/a/" + cfg.CallRailAccountID
	}
	calls, err := callrail.New(callrail.Config{BaseURL: baseURL, Token: cfg.CallRailToken}, logger)
	if err != nil {
		return nil, nil, err
	}

	engine, err := transcribe.NewEngine(transcribe.Config{
		APIKey:        cfg.OpenAIAPIKey,
		Model:         cfg.TranscriptionModel,
		DecoderBinary: cfg.AudioDecoderBinary,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	openaiClient := openai.NewClient(cfg.OpenAIAPIKey)
	summarizer := analysis.NewSummarizer(llm.NewOpenAIWithClient(openaiClient, cfg.OpenAIModel, logger), analysis.SummarizerConfig{
		TenantPrompts:  tenantPrompts(cfg.TenantPromptOverrides),
		DefaultPrompt:  cfg.DefaultAnalysisPrompt,
		MonologueScore: cfg.MonologueScore,
		Logger:         logger,
	})

	archive := analysis.NewRecordingArchive(nil, "", logger)
	if cfg.ArchiveBucket != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		archive = analysis.NewRecordingArchive(mainconfig.NewS3Client(awsCfg, cfg), cfg.ArchiveBucket, logger)
	}

	sessions := analysis.NewSessions()
	pipeline, err := analysis.NewPipeline(analysis.PipelineConfig{
		Calls:       calls,
		Transcriber: engine,
		Summarizer:  summarizer,
		Submitter:   app,
		Archive:     archive,
		Sessions:    sessions,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return pipeline, sessions, nil
}

func printEvent(event analysis.Event) {
	switch event.Type {
	case analysis.EventError:
		fmt.Printf("error: %s\n", event.Message)
	case analysis.EventCompleted:
		fmt.Printf("completed: %d/%d groups\n", event.Processed, event.Total)
	default:
		detail := ""
		if len(event.Details) > 0 {
			detail = " " + event.Details[len(event.Details)-1]
		}
		fmt.Printf("[%3.0f%%]%s\n", event.Percentage, detail)
	}
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseTenantIDs(raw string) ([]int64, error) {
	var out []int64
	for _, part := range splitCSV(raw) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("analyzer: bad tenant id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}

func tenantPrompts(raw map[string]string) map[int64]string {
	out := make(map[int64]string, len(raw))
	for key, prompt := range raw {
		if id, err := strconv.ParseInt(key, 10, 64); err == nil {
			out[id] = prompt
		}
	}
	return out
}
