package kiro

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/haasonsaas/kiro/internal/thinking"
	"github.com/haasonsaas/kiro/internal/wire"
	"github.com/haasonsaas/kiro/pkg/models"
)

const (
	// reductionStep shrinks every size limit after a size rejection.
	reductionStep = 0.7

	// maxErrorBody caps how much of a rejection body gets read.
	maxErrorBody = 1 << 16

	// readChunk is the stream read buffer size.
	readChunk = 4096
)

// turn drives one request/response cycle through BUILD, SEND and
// STREAM_READ, then assembles the terminal event. All of its state is
// owned by the single goroutine running it.
type turn struct {
	p      *Provider
	req    *models.Request
	info   ModelInfo
	token  string
	events chan<- models.Event

	ctx       context.Context
	out       *assembler
	extractor *thinking.Extractor

	usagePct float64
}

func newTurn(p *Provider, req *models.Request, info ModelInfo, token string, events chan<- models.Event) *turn {
	t := &turn{p: p, req: req, info: info, token: token, events: events}
	t.out = newAssembler(t.emit)
	if info.Reasoning {
		t.extractor = thinking.New(t.out)
	}
	return t
}

func (t *turn) run(ctx context.Context) {
	start := time.Now()
	ctx, span := t.p.tracer.TraceTurn(ctx, t.info.ID)
	defer span.End()
	t.ctx = ctx

	t.emit(models.Event{Type: models.EventStart})

	kerr := t.drive(ctx)
	t.out.finish(t.extractor)

	if kerr != nil {
		reason := models.StopError
		if kerr.Reason == ReasonAborted {
			reason = models.StopAborted
		}
		t.p.tracer.RecordError(span, kerr)
		t.p.metrics.TurnCompleted(t.info.ID, string(reason), time.Since(start).Seconds())
		t.p.logger.Error(ctx, "turn failed", "model", t.info.ID, "reason", reason, "error", kerr)
		t.emit(models.Event{
			Type:    models.EventError,
			Message: t.assembleMessage(reason),
			Reason:  reason,
			Error:   kerr.Error(),
		})
		return
	}

	reason := models.StopEndTurn
	if t.out.completedCalls() > 0 {
		reason = models.StopToolUse
	}
	msg := t.assembleMessage(reason)
	t.p.metrics.TurnCompleted(t.info.ID, string(reason), time.Since(start).Seconds())
	t.p.metrics.RecordTokens(t.info.ID, msg.Usage.InputTokens, msg.Usage.OutputTokens)
	t.p.metrics.ObserveContextUsage(t.info.ID, t.usagePct)
	t.p.logger.Info(ctx, "turn complete",
		"model", t.info.ID,
		"reason", reason,
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens,
		"context_percent", t.usagePct)
	t.emit(models.Event{Type: models.EventDone, Message: msg, Reason: reason})
}

// drive runs the attempt loop: build, send, stream. Only the size
// rejection class is retried, shrinking the payload geometrically.
func (t *turn) drive(ctx context.Context) *Error {
	r := 1.0
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return newAbortedError(t.info.ID, ctx.Err())
		}
		payload, kerr := t.buildPayload(r)
		if kerr != nil {
			return kerr
		}
		t.p.logger.Debug(ctx, "sending turn request",
			"model", t.info.ID, "attempt", attempt, "reduction", r, "bytes", len(payload))

		kerr = t.attempt(ctx, payload)
		if kerr == nil {
			t.p.metrics.SendAttempt(t.info.ID, "ok")
			return nil
		}
		t.p.metrics.SendAttempt(t.info.ID, string(kerr.Reason))
		if kerr.Reason == ReasonPayloadTooLarge && attempt <= t.p.limits.MaxRetries {
			t.p.metrics.SizeRetry(t.info.ID)
			t.p.logger.Warn(ctx, "payload rejected for size",
				"model", t.info.ID, "attempt", attempt, "status", kerr.Status)
			r *= reductionStep
			continue
		}
		return kerr
	}
}

// buildPayload assembles the wire request at reduction r. Every attempt
// rebuilds from the caller's messages; nothing is reused across attempts.
func (t *turn) buildPayload(r float64) ([]byte, *Error) {
	history, current := wire.SplitCurrent(t.req.Messages)

	builder := wire.HistoryBuilder{
		ModelID:      t.info.WireID,
		SystemPrompt: clipSystemPrompt(t.req.SystemPrompt, r),
		ResultLimit:  int(float64(t.p.limits.ToolResultChars) * r),
	}
	entries := wire.Sanitize(builder.Build(history))
	entries = wire.TruncateHistory(entries, int(float64(t.p.limits.HistoryBytes)*r))
	entries = wire.InjectPlaceholders(entries)

	tools := wire.BuildTools(capTools(t.req.Tools, r))
	tools = wire.ReconcileTools(entries, tools)

	request := wire.NewRequest(builder.Current(current, tools), entries, t.p.profileARN)
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, newConfigurationError(t.info.ID, "encode request", err)
	}
	return payload, nil
}

// attempt performs one send and, on success, consumes the stream.
func (t *turn) attempt(ctx context.Context, payload []byte) *Error {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, t.p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return newConfigurationError(t.info.ID, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.token)

	resp, err := t.p.transport.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return newAbortedError(t.info.ID, ctx.Err())
		}
		return newTransportError(t.info.ID, "send request", err)
	}
	if resp.Body == nil {
		return &Error{Reason: ReasonTransport, Model: t.info.ID, Status: resp.StatusCode, Message: "response has no body"}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newRejectionError(t.info.ID, resp.StatusCode, string(body))
	}

	return t.consumeStream(ctx, cancel, resp.Body)
}

// consumeStream reads the body incrementally, feeding decoded bytes to
// the frame parser and routing each event. Every read arms a fresh idle
// timer; when it fires the read is cancelled and the turn aborts. A
// context-usage object ends the loop early, as does a clean close.
func (t *turn) consumeStream(ctx context.Context, cancelRead context.CancelFunc, body io.Reader) *Error {
	var idleFired atomic.Bool
	idle := time.AfterFunc(t.p.limits.IdleTimeout, func() {
		idleFired.Store(true)
		cancelRead()
	})
	defer idle.Stop()

	buf := make([]byte, readChunk)
	var carry string
	for {
		n, err := body.Read(buf)
		idle.Reset(t.p.limits.IdleTimeout)
		if n > 0 {
			var events []wire.StreamEvent
			events, carry = wire.ParseStream(carry + string(buf[:n]))
			for _, ev := range events {
				if t.handleEvent(ev) {
					return nil
				}
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return nil
			case idleFired.Load():
				return &Error{
					Reason:  ReasonAborted,
					Model:   t.info.ID,
					Message: fmt.Sprintf("stream idle for %s", t.p.limits.IdleTimeout),
					Cause:   err,
				}
			case ctx.Err() != nil:
				return newAbortedError(t.info.ID, ctx.Err())
			default:
				return newTransportError(t.info.ID, "read stream", err)
			}
		}
	}
}

// handleEvent routes one decoded stream event. It reports true when the
// event ends the read loop.
func (t *turn) handleEvent(ev wire.StreamEvent) bool {
	t.p.metrics.StreamEvent(kindLabel(ev.Kind))
	switch ev.Kind {
	case wire.KindContent:
		if t.extractor != nil {
			t.extractor.ProcessChunk(ev.Content)
		} else {
			t.out.appendAnswer(ev.Content)
		}
	case wire.KindToolBegin:
		t.out.beginCall(ev.ToolUseID, ev.Name, ev.Input, ev.Stop)
	case wire.KindToolInput:
		t.out.continueCall(ev.Input)
	case wire.KindToolStop:
		t.out.stopCall(ev.Stop)
	case wire.KindContextUsage:
		t.usagePct = ev.Usage
		return true
	}
	return false
}

func (t *turn) assembleMessage(reason models.StopReason) *models.AssistantMessage {
	msg := &models.AssistantMessage{Parts: t.out.parts, StopReason: reason}
	msg.Usage.ContextPercent = t.usagePct
	msg.Usage.OutputTokens = utf8.RuneCountInString(msg.Text()) / 4
	msg.Usage.InputTokens = int(t.usagePct / 100 * float64(t.info.ContextWindow))
	return msg
}

// emit pushes an event, preferring buffered delivery and falling back to
// a blocking send bounded by the turn context so an abandoned consumer
// cannot leak the goroutine.
func (t *turn) emit(ev models.Event) {
	select {
	case t.events <- ev:
		return
	default:
	}
	select {
	case t.events <- ev:
	case <-t.ctx.Done():
	}
}

func kindLabel(kind wire.EventKind) string {
	switch kind {
	case wire.KindContent:
		return "content"
	case wire.KindToolBegin:
		return "tool_begin"
	case wire.KindToolInput:
		return "tool_input"
	case wire.KindToolStop:
		return "tool_stop"
	case wire.KindContextUsage:
		return "context_usage"
	default:
		return "unknown"
	}
}

// clipSystemPrompt keeps the first ⌊len·r⌋ characters when shrinking and
// marks the cut so the service sees that instructions were dropped.
func clipSystemPrompt(s string, r float64) string {
	if s == "" || r >= 1 {
		return s
	}
	runes := []rune(s)
	keep := int(float64(len(runes)) * r)
	if keep >= len(runes) {
		return s
	}
	return string(runes[:keep]) + "\n[system prompt truncated]"
}

// capTools keeps at most max(3, ⌊count·r⌋) specs when shrinking.
func capTools(specs []models.ToolSpec, r float64) []models.ToolSpec {
	if r >= 1 || len(specs) == 0 {
		return specs
	}
	limit := int(float64(len(specs)) * r)
	if limit < 3 {
		limit = 3
	}
	if limit >= len(specs) {
		return specs
	}
	return specs[:limit]
}
