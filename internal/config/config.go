package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	Debug          bool
	AdminJWTSecret string

	// Application server (the dental CRM backend)
	AppServerBaseURL     string
	AppServerToken       string
	AppServerConnTimeout time.Duration
	AppServerReadTimeout time.Duration

	// Call-tracking provider
	CallRailBaseURL   string
	CallRailAccountID string
	CallRailToken     string

	// Language model
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIRouterModel string
	GeminiAPIKey      string
	GeminiModel       string

	// Speech to text
	TranscriptionModel string
	AudioDecoderBinary string

	// Chat history
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	HistoryTTL    time.Duration

	// Whitelisted SQL read replica (optional)
	ReadReplicaURL string

	// Recording archive (optional)
	AWSRegion           string
	ArchiveBucket       string
	AWSEndpointOverride string

	// Analysis
	ServiceWriteEnabled   bool
	MonologueScore        int
	DefaultAnalysisPrompt string
	TenantPromptOverrides map[string]string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Debug:          getEnvAsBool("DEBUG", false),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		AppServerBaseURL:     strings.TrimRight(getEnv("APP_SERVER_BASE_URL", ""), "/"),
		AppServerToken:       getEnv("APP_SERVER_TOKEN", ""),
		AppServerConnTimeout: getEnvAsDuration("APP_SERVER_CONNECT_TIMEOUT", 5*time.Second),
		AppServerReadTimeout: getEnvAsDuration("APP_SERVER_READ_TIMEOUT", 10*time.Second),

		CallRailBaseURL:   strings.TrimRight(getEnv("CALLRAIL_BASE_URL", "https://api.callrail.com/v3"), "/"),
		CallRailAccountID: getEnv("CALLRAIL_ACCOUNT_ID", ""),
		CallRailToken:     getEnv("CALLRAIL_TOKEN", ""),

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIRouterModel: getEnv("OPENAI_ROUTER_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		TranscriptionModel: getEnv("TRANSCRIPTION_MODEL", "whisper-1"),
		AudioDecoderBinary: getEnv("AUDIO_DECODER_BINARY", "ffmpeg"),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		HistoryTTL:    getEnvAsDuration("HISTORY_TTL", 24*time.Hour),

		ReadReplicaURL: getEnv("READ_REPLICA_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		ArchiveBucket:       getEnv("RECORDING_ARCHIVE_BUCKET", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		ServiceWriteEnabled:   getEnvAsBool("SERVICE_WRITE_ENABLED", false),
		MonologueScore:        getEnvAsInt("MONOLOGUE_SCORE", 30),
		DefaultAnalysisPrompt: getEnv("ANALYSIS_PROMPT", ""),
		TenantPromptOverrides: getEnvAsStringMap("TENANT_PROMPT_OVERRIDES_JSON"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsStringMap decodes a JSON object of string keys/values; malformed
// input yields an empty map.
func getEnvAsStringMap(key string) map[string]string {
	out := map[string]string{}
	raw := getEnv(key, "")
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]string{}
	}
	return out
}

// PromptForTenant returns the analysis prompt for a tenant, falling back to
// the global default.
func (c *Config) PromptForTenant(tenantID string) string {
	if p, ok := c.TenantPromptOverrides[tenantID]; ok && strings.TrimSpace(p) != "" {
		return p
	}
	return c.DefaultAnalysisPrompt
}
