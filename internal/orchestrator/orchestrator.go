// Package orchestrator turns a chat message into a reply. The pipeline runs
// one pass: deterministic fast paths first, then a single tool-enabled model
// turn whose tool calls are tenant-enforced and formatted deterministically.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dentalops/assistant/internal/agents"
	"github.com/dentalops/assistant/internal/history"
	"github.com/dentalops/assistant/internal/identity"
	"github.com/dentalops/assistant/internal/llm"
	"github.com/dentalops/assistant/internal/parse"
	"github.com/dentalops/assistant/internal/tools"
	"github.com/dentalops/assistant/pkg/logging"
)

var tracer = otel.Tracer("dentalops.internal.orchestrator")

// Fixed user-facing sentences. Tests and downstream consumers rely on these
// exact strings.
const (
	MsgServiceRefusal        = "You don't have permission to update services. Only a Super Admin can perform this action."
	MsgServiceWritesDisabled = "Service updates are disabled in this environment."
	MsgNotLinked             = "Your account is not linked to a client, so I can't access CRM data for you. Please ask an administrator to link your account."
	MsgAppOnlyHint           = "I can help with leads, clinics, services, and appointments. Try one of these:\n" +
		"- \"show lead id 42\"\n" +
		"- \"update lead 42 status to qualified\"\n" +
		"- \"update my clinic name to North Dental\"\n" +
		"- \"show slots for clinic 1 tomorrow\"\n" +
		"- \"book for clinic 1 tomorrow at 10:00 for Jane Doe\"\n" +
		"- \"reschedule the appointment of Jane Doe to 2:30 pm\""
)

type agentPicker interface {
	Route(ctx context.Context, message string) agents.Agent
}

type identityResolver interface {
	ResolveTenant(ctx context.Context, userID string) (int64, error)
	ResolveRole(ctx context.Context, userID string) (identity.RoleInfo, error)
}

type historyStore interface {
	Load(ctx context.Context, chatID string) ([]history.Message, error)
	Append(ctx context.Context, chatID string, messages ...history.Message) error
}

// Recorder receives turn-level counters. The metrics package implements it;
// a nil Recorder disables recording.
type Recorder interface {
	ChatTurn(outcome string)
	ToolCall(tool, status string)
}

// Config wires an Orchestrator.
type Config struct {
	Tools     *tools.Registry
	Agents    *agents.Set
	Router    agentPicker
	Identity  identityResolver
	Completer llm.Completer
	History   historyStore
	Metrics   Recorder
	Logger    *logging.Logger
	// Now is injectable for date parsing in tests; defaults to time.Now.
	Now func() time.Time
	// ServiceWriteEnabled gates service mutations end to end.
	ServiceWriteEnabled bool
}

// Orchestrator is the chat turn pipeline.
type Orchestrator struct {
	tools               *tools.Registry
	agents              *agents.Set
	router              agentPicker
	identity            identityResolver
	llm                 llm.Completer
	history             historyStore
	metrics             Recorder
	logger              *logging.Logger
	now                 func() time.Time
	serviceWriteEnabled bool
}

// New validates the configuration and returns the pipeline.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Tools == nil {
		return nil, errors.New("orchestrator: tool registry is required")
	}
	if cfg.Router == nil {
		return nil, errors.New("orchestrator: router is required")
	}
	if cfg.Identity == nil {
		return nil, errors.New("orchestrator: identity resolver is required")
	}
	if cfg.Completer == nil {
		return nil, errors.New("orchestrator: completer is required")
	}
	if cfg.Agents == nil {
		cfg.Agents = agents.DefaultSet()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopRecorder{}
	}
	return &Orchestrator{
		tools:               cfg.Tools,
		agents:              cfg.Agents,
		router:              cfg.Router,
		identity:            cfg.Identity,
		llm:                 cfg.Completer,
		history:             cfg.History,
		metrics:             cfg.Metrics,
		logger:              cfg.Logger,
		now:                 cfg.Now,
		serviceWriteEnabled: cfg.ServiceWriteEnabled,
	}, nil
}

type noopRecorder struct{}

func (noopRecorder) ChatTurn(string)         {}
func (noopRecorder) ToolCall(string, string) {}

// Handle runs one chat turn. Tool failures never escape as errors; every
// outcome is a user-facing string.
func (o *Orchestrator) Handle(ctx context.Context, userMessage, chatID, userID string) (string, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.handle")
	defer span.End()
	span.SetAttributes(attribute.String("dentalops.chat_id", chatID))

	msg := strings.TrimSpace(userMessage)
	if msg == "" {
		o.metrics.ChatTurn("hint")
		return MsgAppOnlyHint, nil
	}

	// Service mutations are role-gated before anything else runs, so a
	// forbidden request causes zero outbound CRM calls.
	if parse.IsServiceMutation(msg) {
		role, err := o.identity.ResolveRole(ctx, userID)
		if err != nil || !role.IsSuperAdmin {
			o.metrics.ChatTurn("refused")
			return MsgServiceRefusal, nil
		}
		if !o.serviceWriteEnabled {
			o.metrics.ChatTurn("refused")
			return MsgServiceWritesDisabled, nil
		}
	}

	var tenantID int64
	if requiresTenant(msg) {
		id, err := o.identity.ResolveTenant(ctx, userID)
		if err != nil {
			if errors.Is(err, identity.ErrMissingTenant) {
				o.metrics.ChatTurn("not_linked")
				return MsgNotLinked, nil
			}
			o.logger.Error("tenant resolution failed", "user_id", userID, "error", err)
			o.metrics.ChatTurn("not_linked")
			return MsgNotLinked, nil
		}
		tenantID = id
	}

	if reply, handled := o.runFastPaths(ctx, tenantID, msg); handled {
		o.metrics.ChatTurn("fast_path")
		o.remember(ctx, chatID, msg, reply, "fast_path")
		return reply, nil
	}

	reply := o.agentTurn(ctx, tenantID, msg, chatID, userID)
	o.remember(ctx, chatID, msg, reply, "agent")
	return reply, nil
}

// requiresTenant reports whether the utterance touches tenant-scoped data.
func requiresTenant(msg string) bool {
	if parse.IsAppointmentIntent(msg) || parse.IsClinicIntent(msg) || parse.IsServiceIntent(msg) {
		return true
	}
	// rename shapes like "rename A to B" carry no clinic keyword
	if _, ok := parse.DetectClinicRename(msg); ok {
		return true
	}
	if _, ok := parse.LeadID(msg); ok {
		return true
	}
	if _, ok := parse.Phone(msg); ok {
		return true
	}
	if _, ok := parse.Email(msg); ok {
		return true
	}
	lower := strings.ToLower(msg)
	for _, word := range []string{"lead", "patient", "report", "how many"} {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// runFastPaths tries the deterministic executors in their fixed order. The
// first handled reply wins.
func (o *Orchestrator) runFastPaths(ctx context.Context, tenantID int64, msg string) (string, bool) {
	type fastPath func(context.Context, int64, string) (string, bool)
	for _, fp := range []fastPath{
		o.fastClinicUpdate,
		o.fastLeadUpdate,
		o.fastServiceUpdate,
		o.fastAppointment,
		o.fastClinicDetail,
		o.fastReadByHints,
	} {
		if reply, handled := fp(ctx, tenantID, msg); handled {
			return reply, true
		}
	}
	return "", false
}

// agentTurn is the single model pass with bound tools.
func (o *Orchestrator) agentTurn(ctx context.Context, tenantID int64, msg, chatID, userID string) string {
	agent := o.router.Route(ctx, msg)

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: agent.SystemPrompt},
	}
	messages = append(messages, o.loadHistory(ctx, chatID)...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: msg,
	})

	if !agent.AllowTools {
		resp, err := o.llm.Complete(ctx, llm.Request{Messages: messages})
		if err != nil || resp.Text == "" {
			if err != nil {
				o.logger.Error("small talk completion failed", "error", err)
			}
			o.metrics.ChatTurn("hint")
			return MsgAppOnlyHint
		}
		o.metrics.ChatTurn("agent")
		return resp.Text
	}

	resp, err := o.llm.Complete(ctx, llm.Request{
		Messages: messages,
		Tools:    o.tools.Definitions(o.boundTools(ctx, agent, userID)),
	})
	if err != nil {
		o.logger.Error("agent completion failed", "agent", agent.Name, "error", err)
		o.metrics.ChatTurn("hint")
		return MsgAppOnlyHint
	}

	if len(resp.ToolCalls) == 0 {
		// AppointmentAgent gets one deterministic retry so scheduling words
		// the model missed still land on the slot reader.
		if agent.Name == agents.AppointmentAgent {
			if reply, handled := o.fastAppointment(ctx, tenantID, msg); handled {
				o.metrics.ChatTurn("fast_path")
				return reply
			}
		}
		if resp.Text != "" {
			o.metrics.ChatTurn("agent")
			return resp.Text
		}
		o.metrics.ChatTurn("hint")
		return MsgAppOnlyHint
	}

	if tenantID == 0 {
		// the model chose tools but the utterance didn't look tenant-scoped
		// up front; resolve now, before any call leaves the process
		id, err := o.identity.ResolveTenant(ctx, userID)
		if err != nil {
			o.metrics.ChatTurn("not_linked")
			return MsgNotLinked
		}
		tenantID = id
	}

	results := o.executeToolCalls(ctx, tenantID, resp.ToolCalls)
	o.metrics.ChatTurn("agent")
	return formatResults(results)
}

// boundTools filters role-forbidden tools out of the agent's declared set.
func (o *Orchestrator) boundTools(ctx context.Context, agent agents.Agent, userID string) []string {
	role, err := o.identity.ResolveRole(ctx, userID)
	superAdmin := err == nil && role.IsSuperAdmin
	if superAdmin && o.serviceWriteEnabled {
		return agent.Tools
	}
	bound := make([]string, 0, len(agent.Tools))
	for _, name := range agent.Tools {
		if name == "service_update" {
			continue
		}
		bound = append(bound, name)
	}
	return bound
}

// toolResult pairs a tool call with its envelope.
type toolResult struct {
	tool     string
	envelope map[string]any
}

// executeToolCalls runs each model-emitted call in order. Errors become
// {ok:false} envelopes, never Go errors.
func (o *Orchestrator) executeToolCalls(ctx context.Context, tenantID int64, calls []openai.ToolCall) []toolResult {
	results := make([]toolResult, 0, len(calls))
	for _, call := range calls {
		name := call.Function.Name
		raw := o.executeOne(ctx, tenantID, name, call.Function.Arguments)

		var envelope map[string]any
		if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
			envelope = map[string]any{"ok": false, "tool": name, "error": "malformed tool result"}
		}
		results = append(results, toolResult{tool: name, envelope: envelope})
	}
	return results
}

func (o *Orchestrator) executeOne(ctx context.Context, tenantID int64, name, rawArgs string) string {
	tool, ok := o.tools.Get(name)
	if !ok {
		o.metrics.ToolCall(name, "unknown")
		return tools.ErrorEnvelope(name, fmt.Errorf("unknown tool %q", name))
	}

	var args map[string]any
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			o.metrics.ToolCall(name, "bad_args")
			return tools.ErrorEnvelope(name, fmt.Errorf("malformed arguments: %v", err))
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	enforced, err := identity.EnforceTenant(name, args, tenantID)
	if err != nil {
		o.metrics.ToolCall(name, "no_tenant")
		return tools.ErrorEnvelope(name, err)
	}

	out, err := tool.Exec(ctx, enforced)
	if err != nil {
		o.logger.Warn("tool call failed", "tool", name, "error", err)
		o.metrics.ToolCall(name, "error")
		return tools.ErrorEnvelope(name, err)
	}
	o.metrics.ToolCall(name, "ok")
	return out
}

// callTool is the fast-path entry into the tool layer: enforce tenancy, run,
// decode the envelope.
func (o *Orchestrator) callTool(ctx context.Context, tenantID int64, name string, args map[string]any) (map[string]any, error) {
	raw := o.executeOne(ctx, tenantID, name, mustJSON(args))
	var envelope map[string]any
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, fmt.Errorf("orchestrator: malformed envelope from %s: %w", name, err)
	}
	if ok, _ := envelope["ok"].(bool); !ok {
		errText, _ := envelope["error"].(string)
		return envelope, fmt.Errorf("orchestrator: %s failed: %s", name, errText)
	}
	return envelope, nil
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func (o *Orchestrator) loadHistory(ctx context.Context, chatID string) []openai.ChatCompletionMessage {
	if o.history == nil || chatID == "" {
		return nil
	}
	stored, err := o.history.Load(ctx, chatID)
	if err != nil {
		o.logger.Warn("history load failed", "chat_id", chatID, "error", err)
		return nil
	}
	out := make([]openai.ChatCompletionMessage, 0, len(stored))
	for _, m := range stored {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

func (o *Orchestrator) remember(ctx context.Context, chatID, userMsg, reply, agent string) {
	if o.history == nil || chatID == "" {
		return
	}
	err := o.history.Append(ctx, chatID,
		history.Message{Role: "user", Content: userMsg},
		history.Message{Role: "assistant", Content: reply, Agent: agent},
	)
	if err != nil {
		o.logger.Warn("history append failed", "chat_id", chatID, "error", err)
	}
}
