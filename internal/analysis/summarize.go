package analysis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dentalops/assistant/internal/llm"
	"github.com/dentalops/assistant/pkg/jsonextract"
	"github.com/dentalops/assistant/pkg/logging"
)

var summarizeTracer = otel.Tracer("dentalops.internal.analysis")

// DefaultMonologueScore is the potential score assigned when a call lacks
// two-way conversation, typically a voicemail.
const DefaultMonologueScore = 30

const defaultSummaryPrompt = `You analyze transcripts of phone calls made to a dental clinic. ` +
	`Respond with a single JSON object:
{"summary": "<2-4 sentence analytic summary of what the caller wants>",
 "intent_score": <0-100>,
 "urgency_score": <0-100>,
 "overall_score": <0-100>,
 "potential_score": <0-100>,
 "two_way": <true if the transcript shows a two-way conversation, false for a voicemail or monologue>}
Scores measure how likely the caller is to become a patient. Output JSON only.`

// Scores are the numeric ratings produced per call group.
type Scores struct {
	Intent    int
	Urgency   int
	Overall   int
	Potential int
}

// Summary is the summarizer's output for one combined transcript.
type Summary struct {
	Text   string
	Scores Scores
	TwoWay bool
}

// Summarizer generates the analytic summary and scores for a transcript.
// Prompts may be overridden per tenant.
type Summarizer struct {
	llm            llm.Completer
	prompts        map[int64]string
	defaultPrompt  string
	monologueScore int
	logger         *logging.Logger
}

// SummarizerConfig wires a Summarizer.
type SummarizerConfig struct {
	// TenantPrompts overrides the analysis prompt per tenant id.
	TenantPrompts map[int64]string
	DefaultPrompt string
	// MonologueScore replaces the potential score when a call lacks two-way
	// conversation. Zero selects DefaultMonologueScore.
	MonologueScore int
	Logger         *logging.Logger
}

// NewSummarizer constructs a Summarizer. The completer is required.
func NewSummarizer(completer llm.Completer, cfg SummarizerConfig) *Summarizer {
	if completer == nil {
		panic("analysis: completer is required")
	}
	prompt := cfg.DefaultPrompt
	if prompt == "" {
		prompt = defaultSummaryPrompt
	}
	score := cfg.MonologueScore
	if score == 0 {
		score = DefaultMonologueScore
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Summarizer{
		llm:            completer,
		prompts:        cfg.TenantPrompts,
		defaultPrompt:  prompt,
		monologueScore: score,
		logger:         logger,
	}
}

// PromptForTenant returns the tenant's analysis prompt, falling back to the
// global default.
func (s *Summarizer) PromptForTenant(tenantID int64) string {
	if p, ok := s.prompts[tenantID]; ok && strings.TrimSpace(p) != "" {
		return p
	}
	return s.defaultPrompt
}

type summaryPayload struct {
	Summary        string `json:"summary"`
	IntentScore    int    `json:"intent_score"`
	UrgencyScore   int    `json:"urgency_score"`
	OverallScore   int    `json:"overall_score"`
	PotentialScore int    `json:"potential_score"`
	TwoWay         *bool  `json:"two_way"`
}

// Summarize runs the language model over a combined transcript. A monologue
// call gets the configured monologue potential score instead of the model's.
func (s *Summarizer) Summarize(ctx context.Context, tenantID int64, callerName, transcript string) (Summary, error) {
	ctx, span := summarizeTracer.Start(ctx, "analysis.summarize")
	defer span.End()
	span.SetAttributes(
		attribute.String("dentalops.tenant_id", strconv.FormatInt(tenantID, 10)),
		attribute.Int("dentalops.transcript_chars", len(transcript)),
	)

	user := transcript
	if callerName != "" {
		user = "Caller: " + callerName + "\n\n" + transcript
	}

	resp, err := s.llm.Complete(ctx, llm.Request{
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: s.PromptForTenant(tenantID)},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
		MaxTokens:   600,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("analysis: summarize: %w", err)
	}

	var payload summaryPayload
	if err := jsonextract.Object(resp.Text, &payload); err != nil {
		return Summary{}, fmt.Errorf("analysis: summarizer returned non-JSON output: %w", err)
	}
	if strings.TrimSpace(payload.Summary) == "" {
		return Summary{}, fmt.Errorf("analysis: summarizer returned an empty summary")
	}

	twoWay := payload.TwoWay == nil || *payload.TwoWay
	summary := Summary{
		Text: strings.TrimSpace(payload.Summary),
		Scores: Scores{
			Intent:    clampScore(payload.IntentScore),
			Urgency:   clampScore(payload.UrgencyScore),
			Overall:   clampScore(payload.OverallScore),
			Potential: clampScore(payload.PotentialScore),
		},
		TwoWay: twoWay,
	}
	if !twoWay {
		summary.Scores.Potential = s.monologueScore
	}
	return summary, nil
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
