package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the provider's Prometheus metrics.
//
// Tracked:
//   - Turn outcomes by model and completion reason
//   - Send attempts by HTTP status class and size-rejection retries
//   - Decoded stream events by kind
//   - Token usage split into prompt and completion
//   - Reported context usage percentage
//   - Credential refresh outcomes
type Metrics struct {
	// TurnCounter counts completed turns.
	// Labels: model, reason (stop|tool_use|error|aborted)
	TurnCounter *prometheus.CounterVec

	// TurnDuration measures wall time per turn in seconds.
	// Labels: model
	TurnDuration *prometheus.HistogramVec

	// SendAttempts counts request attempts.
	// Labels: model, status (ok|rejected|size_rejected|transport_error)
	SendAttempts *prometheus.CounterVec

	// SizeRetries counts size-rejection retries.
	// Labels: model
	SizeRetries *prometheus.CounterVec

	// StreamEvents counts decoded wire events.
	// Labels: kind (content|tool_begin|tool_input|tool_stop|context_usage)
	StreamEvents *prometheus.CounterVec

	// TokensUsed tracks token consumption.
	// Labels: model, type (prompt|completion)
	TokensUsed *prometheus.CounterVec

	// ContextUsage observes the reported context usage percentage.
	// Labels: model
	ContextUsage *prometheus.HistogramVec

	// CredentialRefreshes counts token refresh attempts.
	// Labels: status (success|error)
	CredentialRefreshes *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with reg, or with the
// default Prometheus registry when reg is nil. Call once per registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TurnCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiro_turns_total",
				Help: "Total completed turns by model and completion reason",
			},
			[]string{"model", "reason"},
		),
		TurnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kiro_turn_duration_seconds",
				Help:    "Wall time per turn in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"model"},
		),
		SendAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiro_send_attempts_total",
				Help: "Request attempts by model and outcome",
			},
			[]string{"model", "status"},
		),
		SizeRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiro_size_retries_total",
				Help: "Retries triggered by payload size rejections",
			},
			[]string{"model"},
		),
		StreamEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiro_stream_events_total",
				Help: "Decoded wire events by kind",
			},
			[]string{"kind"},
		),
		TokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiro_tokens_total",
				Help: "Estimated token usage by model and type",
			},
			[]string{"model", "type"},
		),
		ContextUsage: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kiro_context_usage_percent",
				Help:    "Context usage percentage reported per turn",
				Buckets: []float64{1, 5, 10, 25, 50, 75, 90, 100},
			},
			[]string{"model"},
		),
		CredentialRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiro_credential_refreshes_total",
				Help: "Credential refresh attempts by outcome",
			},
			[]string{"status"},
		),
	}
}

// TurnCompleted records one finished turn.
func (m *Metrics) TurnCompleted(model, reason string, seconds float64) {
	if m == nil {
		return
	}
	m.TurnCounter.WithLabelValues(model, reason).Inc()
	m.TurnDuration.WithLabelValues(model).Observe(seconds)
}

// SendAttempt records one request attempt outcome.
func (m *Metrics) SendAttempt(model, status string) {
	if m == nil {
		return
	}
	m.SendAttempts.WithLabelValues(model, status).Inc()
}

// SizeRetry records a size-rejection retry.
func (m *Metrics) SizeRetry(model string) {
	if m == nil {
		return
	}
	m.SizeRetries.WithLabelValues(model).Inc()
}

// StreamEvent records one decoded wire event.
func (m *Metrics) StreamEvent(kind string) {
	if m == nil {
		return
	}
	m.StreamEvents.WithLabelValues(kind).Inc()
}

// RecordTokens records the turn's estimated token usage.
func (m *Metrics) RecordTokens(model string, prompt, completion int) {
	if m == nil {
		return
	}
	if prompt > 0 {
		m.TokensUsed.WithLabelValues(model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		m.TokensUsed.WithLabelValues(model, "completion").Add(float64(completion))
	}
}

// ObserveContextUsage records the reported context usage percentage.
func (m *Metrics) ObserveContextUsage(model string, percent float64) {
	if m == nil {
		return
	}
	m.ContextUsage.WithLabelValues(model).Observe(percent)
}

// CredentialRefresh records one token refresh outcome.
func (m *Metrics) CredentialRefresh(status string) {
	if m == nil {
		return
	}
	m.CredentialRefreshes.WithLabelValues(status).Inc()
}
