package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dentalops/assistant/internal/parse"
	"github.com/dentalops/assistant/pkg/jsonextract"
	"github.com/dentalops/assistant/pkg/logging"
)

var routerTracer = otel.Tracer("dentalops.internal.agents.router")

const routerTimeout = 15 * time.Second

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Router decides which agent handles a message. Deterministic keyword checks
// run first; only ambiguous messages reach the classifier model.
type Router struct {
	client chatClient
	model  string
	agents *Set
	logger *logging.Logger
}

// NewRouter wires a router over the given chat client.
func NewRouter(client chatClient, model string, agents *Set, logger *logging.Logger) *Router {
	if client == nil {
		panic("agents: chat client cannot be nil")
	}
	if agents == nil {
		agents = DefaultSet()
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Router{client: client, model: model, agents: agents, logger: logger}
}

var (
	leadWordRE    = regexp.MustCompile(`(?i)\blead(s)?\b`)
	reportWordRE  = regexp.MustCompile(`(?i)\b(how many|count|total|report|average|list all|sum of)\b`)
	serviceWordRE = regexp.MustCompile(`(?i)\bservice(s)?\b`)
)

// Route picks the agent for a message.
func (r *Router) Route(ctx context.Context, message string) Agent {
	ctx, span := routerTracer.Start(ctx, "agents.route")
	defer span.End()

	if name, ok := keywordRoute(message); ok {
		span.SetAttributes(
			attribute.String("dentalops.agent", name),
			attribute.String("dentalops.route_via", "keyword"),
		)
		if a, found := r.agents.Get(name); found {
			return a
		}
	}

	name := r.classify(ctx, message)
	span.SetAttributes(
		attribute.String("dentalops.agent", name),
		attribute.String("dentalops.route_via", "model"),
	)
	if a, found := r.agents.Get(name); found {
		return a
	}
	return r.agents.Fallback()
}

// keywordRoute applies the deterministic overrides. Ordering matters:
// scheduling language wins over entity nouns, and reporting phrasing wins
// over a bare entity mention.
func keywordRoute(message string) (string, bool) {
	switch {
	case parse.IsAppointmentIntent(message):
		return AppointmentAgent, true
	case reportWordRE.MatchString(message):
		return SQLReader, true
	case parse.IsClinicIntent(message):
		return ClinicAgent, true
	case parse.IsServiceIntent(message) || serviceWordRE.MatchString(message):
		return ServiceAgent, true
	case leadWordRE.MatchString(message):
		return LeadAgent, true
	}
	// a bare id, phone, or email is a record lookup even without an entity noun
	if _, ok := parse.LeadID(message); ok {
		return SQLReader, true
	}
	if _, ok := parse.Phone(message); ok {
		return SQLReader, true
	}
	if _, ok := parse.Email(message); ok {
		return SQLReader, true
	}
	return "", false
}

func (r *Router) classify(ctx context.Context, message string) string {
	ctx, cancel := context.WithTimeout(ctx, routerTimeout)
	defer cancel()

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: r.classifierPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		Temperature: 0,
		MaxTokens:   50,
	})
	if err != nil {
		r.logger.Warn("router classification failed, using fallback agent", "error", err)
		return SmallTalk
	}
	if len(resp.Choices) == 0 {
		return SmallTalk
	}

	var decision struct {
		Agent string `json:"agent"`
	}
	if err := jsonextract.Object(resp.Choices[0].Message.Content, &decision); err != nil {
		r.logger.Warn("router returned non-JSON decision", "content", resp.Choices[0].Message.Content)
		return SmallTalk
	}
	return jsonextract.ClampEnum(decision.Agent, r.agents.Names(), SmallTalk)
}

func (r *Router) classifierPrompt() string {
	var sb strings.Builder
	sb.WriteString("You route messages for a dental CRM operations assistant. Pick exactly one agent:\n")
	for _, name := range r.agents.Names() {
		a, _ := r.agents.Get(name)
		fmt.Fprintf(&sb, "- %s: %s\n", a.Name, a.Description)
	}
	sb.WriteString(`Reply with JSON only: {"agent":"<name>"}`)
	return sb.String()
}
