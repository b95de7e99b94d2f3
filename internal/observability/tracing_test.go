package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestNewTracer_NoEndpoint(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "kiro-test"})
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	}()

	ctx, span := tracer.TraceTurn(context.Background(), "kiro-default")
	if ctx == nil || span == nil {
		t.Fatal("no-op tracer returned nil context or span")
	}
	tracer.AddEvent(span, "send_attempt", "attempt", 1, "status", "ok")
	tracer.RecordError(span, errors.New("boom"))
	span.End()
}

func TestTracer_NilSafe(t *testing.T) {
	var tracer *Tracer
	ctx, span := tracer.Start(context.Background(), "anything")
	if ctx == nil {
		t.Fatal("nil tracer returned nil context")
	}
	tracer.AddEvent(span, "event")
	tracer.RecordError(span, errors.New("boom"))
}

func TestGetTraceID_Unsampled(t *testing.T) {
	if id := GetTraceID(context.Background()); id != "" {
		t.Errorf("trace id = %q, want empty", id)
	}
}

func TestAttributeFromValue(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want attribute.KeyValue
	}{
		{name: "string", val: "x", want: attribute.String("k", "x")},
		{name: "bool", val: true, want: attribute.Bool("k", true)},
		{name: "int", val: 7, want: attribute.Int("k", 7)},
		{name: "float", val: 1.5, want: attribute.Float64("k", 1.5)},
		{name: "fallback", val: []string{"a"}, want: attribute.String("k", "[a]")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := attributeFromValue("k", tt.val); got != tt.want {
				t.Errorf("attributeFromValue = %v, want %v", got, tt.want)
			}
		})
	}
}
