package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/dentalops/assistant/cmd/mainconfig"
	"github.com/dentalops/assistant/internal/agents"
	"github.com/dentalops/assistant/internal/analysis"
	"github.com/dentalops/assistant/internal/appserver"
	"github.com/dentalops/assistant/internal/callrail"
	appconfig "github.com/dentalops/assistant/internal/config"
	"github.com/dentalops/assistant/internal/history"
	"github.com/dentalops/assistant/internal/httpapi"
	"github.com/dentalops/assistant/internal/identity"
	"github.com/dentalops/assistant/internal/llm"
	"github.com/dentalops/assistant/internal/observability/metrics"
	"github.com/dentalops/assistant/internal/orchestrator"
	"github.com/dentalops/assistant/internal/tools"
	"github.com/dentalops/assistant/internal/transcribe"
	"github.com/dentalops/assistant/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	app, err := appserver.New(appserver.Config{
		BaseURL:        cfg.AppServerBaseURL,
		Token:          cfg.AppServerToken,
		Timeout:        cfg.AppServerReadTimeout,
		ConnectTimeout: cfg.AppServerConnTimeout,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("application server client failed", "error", err)
		os.Exit(1)
	}

	resolver := identity.NewResolver(app, logger)
	historyStore := setupHistory(cfg, logger)
	pool := connectPostgresPool(ctx, cfg.ReadReplicaURL, logger)

	openaiClient := openai.NewClient(cfg.OpenAIAPIKey)
	completer, err := setupCompleter(ctx, cfg, openaiClient, logger)
	if err != nil {
		logger.Error("language model setup failed", "error", err)
		os.Exit(1)
	}

	agentSet := agents.DefaultSet()
	agentRouter := agents.NewRouter(openaiClient, cfg.OpenAIRouterModel, agentSet, logger)

	assistantMetrics := metrics.NewAssistantMetrics(nil)
	analysisMetrics := metrics.NewAnalysisMetrics(nil)

	orch, err := orchestrator.New(orchestrator.Config{
		Tools:               setupTools(app, pool),
		Agents:              agentSet,
		Router:              agentRouter,
		Identity:            resolver,
		Completer:           completer,
		History:             historyStore,
		Metrics:             assistantMetrics,
		Logger:              logger,
		ServiceWriteEnabled: cfg.ServiceWriteEnabled,
	})
	if err != nil {
		logger.Error("orchestrator setup failed", "error", err)
		os.Exit(1)
	}

	sessions := analysis.NewSessions()
	pipeline := setupAnalysis(ctx, cfg, app, completer, sessions, analysisMetrics, logger)

	server, err := httpapi.NewServer(httpapi.Config{
		Assistant: orch,
		Runner:    runnerOrNil(pipeline),
		Sessions:  sessions,
		History:   historyStore,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("HTTP server setup failed", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(cfg.AdminJWTSecret),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // SSE streams stay open across a run
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		pool.Close()
	}

	logger.Info("server stopped")
}

// setupHistory wires the Redis-backed chat history store.
func setupHistory(cfg *appconfig.Config, logger *logging.Logger) *history.Store {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	logger.Info("chat history store configured", "addr", cfg.RedisAddr, "tls", cfg.RedisTLS)
	return history.New(redis.NewClient(opts), cfg.HistoryTTL)
}

// connectPostgresPool opens the whitelisted read replica. An empty URL
// disables the SQL read tool.
func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if url == "" {
		logger.Info("read replica not configured, SQL read tool disabled")
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("read replica connection failed", "error", err)
		return nil
	}
	logger.Info("read replica connected")
	return pool
}

// setupTools registers the CRM tool surface.
func setupTools(app *appserver.Client, pool *pgxpool.Pool) *tools.Registry {
	list := append(tools.LeadTools(app), tools.ClinicTools(app)...)
	list = append(list, tools.ServiceTools(app)...)
	list = append(list, tools.AppointmentTools(app)...)
	if pool != nil {
		list = append(list, tools.SQLReadTool(pool))
	}
	return tools.NewRegistry(list...)
}

// setupCompleter builds the chat completer: OpenAI primary with an optional
// Gemini fallback for plain-text turns.
func setupCompleter(ctx context.Context, cfg *appconfig.Config, client *openai.Client, logger *logging.Logger) (llm.Completer, error) {
	primary := llm.NewOpenAIWithClient(client, cfg.OpenAIModel, logger)
	if cfg.GeminiAPIKey == "" {
		return primary, nil
	}
	gemini, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, err
	}
	return llm.NewFallbackCompleter(primary, gemini, logger), nil
}

// setupAnalysis wires the call-analysis pipeline. A missing call-tracking
// token leaves the analysis endpoints unconfigured.
func setupAnalysis(ctx context.Context, cfg *appconfig.Config, app *appserver.Client, completer llm.Completer, sessions *analysis.Sessions, recorder analysis.Recorder, logger *logging.Logger) *analysis.Pipeline {
	if cfg.CallRailToken == "" {
		logger.Info("call tracking not configured, analysis disabled")
		return nil
	}

	calls, err := callrail.New(callrail.Config{
		BaseURL: callrailAccountURL(cfg),
		Token:   cfg.CallRailToken,
	}, logger)
	if err != nil {
		logger.Error("call tracking client failed", "error", err)
		return nil
	}

	engine, err := transcribe.NewEngine(transcribe.Config{
		APIKey:        cfg.OpenAIAPIKey,
		Model:         cfg.TranscriptionModel,
		DecoderBinary: cfg.AudioDecoderBinary,
	}, logger)
	if err != nil {
		logger.Error("transcription engine failed", "error", err)
		return nil
	}

	summarizer := analysis.NewSummarizer(completer, analysis.SummarizerConfig{
		TenantPrompts:  tenantPrompts(cfg.TenantPromptOverrides, logger),
		DefaultPrompt:  cfg.DefaultAnalysisPrompt,
		MonologueScore: cfg.MonologueScore,
		Logger:         logger,
	})

	archive := setupArchive(ctx, cfg, logger)

	pipeline, err := analysis.NewPipeline(analysis.PipelineConfig{
		Calls:       calls,
		Transcriber: engine,
		Summarizer:  summarizer,
		Submitter:   app,
		Archive:     archive,
		Sessions:    sessions,
		Metrics:     recorder,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("analysis pipeline setup failed", "error", err)
		return nil
	}
	return pipeline
}

// setupArchive builds the recording archive. An empty bucket disables it.
func setupArchive(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *analysis.RecordingArchive {
	if cfg.ArchiveBucket == "" {
		return analysis.NewRecordingArchive(nil, "", logger)
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("AWS config failed, recording archive disabled", "error", err)
		return analysis.NewRecordingArchive(nil, "", logger)
	}
	return analysis.NewRecordingArchive(mainconfig.NewS3Client(awsCfg, cfg), cfg.ArchiveBucket, logger)
}

// callrailAccountURL scopes the API base URL to the configured account.
func callrailAccountURL(cfg *appconfig.Config) string {
	if cfg.CallRailAccountID == "" {
		return cfg.CallRailBaseURL
	}
	return cfg.CallRailBaseURL + "/a/" + cfg.CallRailAccountID
}

// tenantPrompts converts the string-keyed prompt overrides to tenant ids.
func tenantPrompts(raw map[string]string, logger *logging.Logger) map[int64]string {
	out := make(map[int64]string, len(raw))
	for key, prompt := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			logger.Warn("ignoring prompt override with non-numeric tenant id", "tenant", key)
			continue
		}
		out[id] = prompt
	}
	return out
}

// runnerOrNil avoids handing a typed-nil pipeline to the HTTP layer.
func runnerOrNil(p *analysis.Pipeline) httpapi.AnalysisRunner {
	if p == nil {
		return nil
	}
	return p
}
