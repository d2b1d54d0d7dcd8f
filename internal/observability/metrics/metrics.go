// Package metrics exposes Prometheus counters for the assistant and the
// call-analysis pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// AssistantMetrics counts chat turns and tool executions. It implements the
// orchestrator's Recorder interface.
type AssistantMetrics struct {
	chatTurns *prometheus.CounterVec
	toolCalls *prometheus.CounterVec
}

func NewAssistantMetrics(reg prometheus.Registerer) *AssistantMetrics {
	m := &AssistantMetrics{
		chatTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalops",
			Subsystem: "assistant",
			Name:      "chat_turns_total",
			Help:      "Chat turns by outcome",
		}, []string{"outcome"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalops",
			Subsystem: "assistant",
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool and status",
		}, []string{"tool", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.chatTurns, m.toolCalls)
	return m
}

func (m *AssistantMetrics) ChatTurn(outcome string) {
	if m == nil {
		return
	}
	m.chatTurns.WithLabelValues(outcome).Inc()
}

func (m *AssistantMetrics) ToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
}

// AnalysisMetrics counts pipeline activity. It implements the analysis
// package's Recorder interface.
type AnalysisMetrics struct {
	transcriptions *prometheus.CounterVec
	submissions    *prometheus.CounterVec
	runDuration    prometheus.Histogram
}

func NewAnalysisMetrics(reg prometheus.Registerer) *AnalysisMetrics {
	m := &AnalysisMetrics{
		transcriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalops",
			Subsystem: "analysis",
			Name:      "transcriptions_total",
			Help:      "Call transcriptions by outcome",
		}, []string{"outcome"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalops",
			Subsystem: "analysis",
			Name:      "submissions_total",
			Help:      "Lead submissions by kind (receive or miss)",
		}, []string{"kind"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dentalops",
			Subsystem: "analysis",
			Name:      "run_duration_seconds",
			Help:      "Duration of one analysis batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transcriptions, m.submissions, m.runDuration)
	return m
}

func (m *AnalysisMetrics) CallTranscribed(outcome string) {
	if m == nil {
		return
	}
	m.transcriptions.WithLabelValues(outcome).Inc()
}

func (m *AnalysisMetrics) SubmissionEmitted(kind string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(kind).Inc()
}

func (m *AnalysisMetrics) ObserveRunDuration(seconds float64) {
	if m == nil {
		return
	}
	m.runDuration.Observe(seconds)
}
