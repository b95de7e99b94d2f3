// Package kiro adapts the generic turn-based message model to the Kiro
// chunked-HTTP inference protocol. A Provider drives one conversational
// turn at a time: it assembles a protocol-legal request from the caller's
// message history, streams the response, splits inline reasoning from
// answer text, reassembles tool calls, and emits an ordered event
// sequence ending in exactly one done or error event.
package kiro

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/haasonsaas/kiro/internal/catalog"
	"github.com/haasonsaas/kiro/internal/observability"
	"github.com/haasonsaas/kiro/pkg/models"
)

// Transport executes one HTTP exchange. *http.Client satisfies it.
type Transport interface {
	Do(*http.Request) (*http.Response, error)
}

// CredentialSource yields the bearer token attached to each request.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

// ModelInfo is what the orchestrator needs to know about a model.
type ModelInfo struct {
	ID              string
	WireID          string
	ContextWindow   int
	MaxOutputTokens int
	Reasoning       bool
}

// ModelDirectory resolves caller-facing model identifiers.
type ModelDirectory interface {
	Resolve(id string) (ModelInfo, error)
}

// Limits bounds request assembly and stream reads. Zero fields get
// defaults.
type Limits struct {
	// HistoryBytes caps the serialized history payload. Default 200000.
	HistoryBytes int
	// ToolResultChars caps each tool result's text. Default 8000.
	ToolResultChars int
	// IdleTimeout aborts a stream that stalls between reads. Default 30s.
	IdleTimeout time.Duration
	// MaxRetries bounds size-rejection retries. Default 3.
	MaxRetries int
}

func (l Limits) withDefaults() Limits {
	if l.HistoryBytes <= 0 {
		l.HistoryBytes = 200_000
	}
	if l.ToolResultChars <= 0 {
		l.ToolResultChars = 8000
	}
	if l.IdleTimeout <= 0 {
		l.IdleTimeout = 30 * time.Second
	}
	if l.MaxRetries <= 0 {
		l.MaxRetries = 3
	}
	return l
}

// Options wires a Provider's collaborators.
type Options struct {
	// Endpoint is the streaming inference URL. Required.
	Endpoint string
	// ProfileARN is attached to requests when the deployment needs one.
	ProfileARN string
	// Credentials supplies the bearer token. Required.
	Credentials CredentialSource
	// Transport defaults to a plain http.Client with no overall timeout;
	// the idle timer governs stalled streams.
	Transport Transport
	// Directory defaults to the built-in model catalog.
	Directory ModelDirectory
	Logger    *observability.Logger
	Metrics   *observability.Metrics
	Tracer    *observability.Tracer
	Limits    Limits
}

// Provider streams turns against the Kiro service. Safe for concurrent
// use: each turn owns all of its mutable state.
type Provider struct {
	endpoint   string
	profileARN string
	transport  Transport
	creds      CredentialSource
	models     ModelDirectory
	limits     Limits
	logger     *observability.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer
}

// New builds a Provider from options.
func New(opts Options) (*Provider, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, errors.New("endpoint required")
	}
	if opts.Credentials == nil {
		return nil, errors.New("credential source required")
	}
	if opts.Transport == nil {
		opts.Transport = &http.Client{}
	}
	if opts.Directory == nil {
		opts.Directory = CatalogDirectory(catalog.New())
	}
	if opts.Logger == nil {
		opts.Logger = observability.Nop()
	}
	return &Provider{
		endpoint:   opts.Endpoint,
		profileARN: opts.ProfileARN,
		transport:  opts.Transport,
		creds:      opts.Credentials,
		models:     opts.Directory,
		limits:     opts.Limits.withDefaults(),
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		tracer:     opts.Tracer,
	}, nil
}

// Stream runs one conversational turn. Configuration failures (missing
// credentials, unknown model, empty request) return synchronously before
// any network activity; after that every outcome arrives on the returned
// channel, which carries the ordered event sequence and always ends with
// exactly one done or error event before closing.
func (p *Provider) Stream(ctx context.Context, req *models.Request) (<-chan models.Event, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, newConfigurationError("", "request has no messages", nil)
	}
	info, err := p.models.Resolve(req.Model)
	if err != nil {
		return nil, newConfigurationError(req.Model, "unknown model", err)
	}
	token, err := p.creds.Token(ctx)
	if err != nil {
		return nil, newConfigurationError(req.Model, "credentials unavailable", err)
	}

	events := make(chan models.Event, 64)
	t := newTurn(p, req, info, token, events)
	go func() {
		defer close(events)
		t.run(ctx)
	}()
	return events, nil
}

// CatalogDirectory adapts the internal model catalog to the
// ModelDirectory interface.
func CatalogDirectory(c *catalog.Catalog) ModelDirectory {
	return catalogDirectory{c: c}
}

type catalogDirectory struct {
	c *catalog.Catalog
}

func (d catalogDirectory) Resolve(id string) (ModelInfo, error) {
	m, ok := d.c.Resolve(id)
	if !ok {
		return ModelInfo{}, fmt.Errorf("model %q not in catalog", id)
	}
	return ModelInfo{
		ID:              m.ID,
		WireID:          m.WireID,
		ContextWindow:   m.ContextWindow,
		MaxOutputTokens: m.MaxOutputTokens,
		Reasoning:       m.Reasoning,
	}, nil
}
