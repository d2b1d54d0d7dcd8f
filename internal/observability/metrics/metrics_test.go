package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestAssistantMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAssistantMetrics(reg)

	m.ChatTurn("fast_path")
	m.ChatTurn("fast_path")
	m.ToolCall("lead_get", "ok")

	assert.Equal(t, 2.0, counterValue(t, reg, "dentalops_assistant_chat_turns_total",
		map[string]string{"outcome": "fast_path"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "dentalops_assistant_tool_calls_total",
		map[string]string{"tool": "lead_get", "status": "ok"}))
}

func TestAnalysisMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAnalysisMetrics(reg)

	m.CallTranscribed("ok")
	m.SubmissionEmitted("miss")
	m.ObserveRunDuration(2.5)

	assert.Equal(t, 1.0, counterValue(t, reg, "dentalops_analysis_transcriptions_total",
		map[string]string{"outcome": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "dentalops_analysis_submissions_total",
		map[string]string{"kind": "miss"}))
}

func TestMetricsNilSafe(t *testing.T) {
	var a *AssistantMetrics
	a.ChatTurn("agent")
	a.ToolCall("lead_get", "ok")

	var an *AnalysisMetrics
	an.CallTranscribed("ok")
	an.SubmissionEmitted("receive")
	an.ObserveRunDuration(1)
}
