// Package observability provides the monitoring surface of the kiro
// provider: Prometheus metrics, structured logging with credential
// redaction, and OpenTelemetry tracing.
//
// The package covers three concerns:
//
//  1. Metrics - turn outcomes, send attempts, size retries, stream
//     events, and token usage, exported through Prometheus.
//  2. Logging - slog-based structured logs that redact bearer tokens
//     and refresh tokens before they can reach a log sink.
//  3. Tracing - one span per turn with per-attempt events, exported
//     over OTLP when an endpoint is configured and a no-op otherwise.
//
// All three are optional collaborators of the provider: a zero value or
// nil disables the concern without changing turn behavior.
package observability
