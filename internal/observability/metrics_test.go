package observability

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_TurnCompleted(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.TurnCompleted("kiro-default", "stop", 1.5)
	m.TurnCompleted("kiro-default", "stop", 0.5)
	m.TurnCompleted("kiro-default", "tool_use", 2.0)

	expected := `
		# HELP kiro_turns_total Total completed turns by model and completion reason
		# TYPE kiro_turns_total counter
		kiro_turns_total{model="kiro-default",reason="stop"} 2
		kiro_turns_total{model="kiro-default",reason="tool_use"} 1
	`
	if err := testutil.CollectAndCompare(m.TurnCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected turn counter state: %v", err)
	}
}

func TestMetrics_SendAttempts(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.SendAttempt("kiro-default", "size_rejected")
	m.SendAttempt("kiro-default", "ok")
	m.SizeRetry("kiro-default")

	if got := testutil.ToFloat64(m.SendAttempts.WithLabelValues("kiro-default", "size_rejected")); got != 1 {
		t.Errorf("size_rejected attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SizeRetries.WithLabelValues("kiro-default")); got != 1 {
		t.Errorf("size retries = %v, want 1", got)
	}
}

func TestMetrics_Tokens(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.RecordTokens("kiro-default", 20000, 12)
	m.RecordTokens("kiro-default", 0, 0)

	if got := testutil.ToFloat64(m.TokensUsed.WithLabelValues("kiro-default", "prompt")); got != 20000 {
		t.Errorf("prompt tokens = %v, want 20000", got)
	}
	if got := testutil.ToFloat64(m.TokensUsed.WithLabelValues("kiro-default", "completion")); got != 12 {
		t.Errorf("completion tokens = %v, want 12", got)
	}
}

func TestMetrics_StreamEvents(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	for i := 0; i < 3; i++ {
		m.StreamEvent("content")
	}
	m.StreamEvent("context_usage")

	if got := testutil.ToFloat64(m.StreamEvents.WithLabelValues("content")); got != 3 {
		t.Errorf("content events = %v, want 3", got)
	}
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	m.TurnCompleted("kiro-default", "stop", 1)
	m.SendAttempt("kiro-default", "ok")
	m.SizeRetry("kiro-default")
	m.StreamEvent("content")
	m.RecordTokens("kiro-default", 1, 1)
	m.ObserveContextUsage("kiro-default", 10)
	m.CredentialRefresh("success")
}
