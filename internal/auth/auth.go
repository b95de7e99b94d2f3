// Package auth loads and refreshes the bearer credentials used to call
// the Kiro service. Credentials live in a JSON token file maintained by
// the Kiro login tooling; this package reads the file, refreshes expired
// tokens against the refresh endpoint, and watches for external rotation.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/oauth2"

	"github.com/haasonsaas/kiro/internal/backoff"
	"github.com/haasonsaas/kiro/internal/observability"
)

var (
	ErrNoCredentials  = errors.New("credentials not found")
	ErrNoRefreshToken = errors.New("refresh token missing")
)

// expirySkew refreshes tokens slightly before their deadline so a
// request started now does not ride an about-to-expire token.
const expirySkew = 30 * time.Second

// Credentials is the on-disk token material written by the Kiro login
// tooling. ExpiresAt is RFC 3339; when it is absent the unverified JWT
// exp claim stands in.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresAt    string `json:"expiresAt,omitempty"`
	ProfileARN   string `json:"profileArn,omitempty"`
	AuthMethod   string `json:"authMethod,omitempty"`
}

// Expiry resolves the credential deadline. Zero when neither ExpiresAt
// nor a JWT exp claim is available.
func (c Credentials) Expiry() time.Time {
	if t, err := time.Parse(time.RFC3339Nano, c.ExpiresAt); err == nil {
		return t
	}
	if t, ok := expiryClaim(c.AccessToken); ok {
		return t
	}
	return time.Time{}
}

// Options configures a file-backed credential source.
type Options struct {
	// TokenPath locates the JSON token file.
	TokenPath string
	// RefreshURL receives POST {"refreshToken"} when the token expires.
	RefreshURL string
	// HTTPClient overrides the refresh transport. Defaults to a client
	// with a 30 second timeout.
	HTTPClient *http.Client
	Logger     *observability.Logger
	Metrics    *observability.Metrics
	// Backoff paces refresh attempts. The zero value uses backoff.Default.
	Backoff backoff.Policy
	// MaxRefreshAttempts bounds one refresh cycle. Defaults to 3.
	MaxRefreshAttempts int
}

// Source is a thread-safe credential source backed by a token file.
// Refreshes are single-flight: concurrent Token calls wait for the
// in-progress refresh and reuse its result.
type Source struct {
	opts Options
	now  func() time.Time

	mu     sync.Mutex
	creds  Credentials
	loaded bool

	watchMu     sync.Mutex
	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
	watchWg     sync.WaitGroup
}

// NewSource builds a credential source from static configuration.
func NewSource(opts Options) (*Source, error) {
	if strings.TrimSpace(opts.TokenPath) == "" {
		return nil, errors.New("token path required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = observability.Nop()
	}
	if opts.Backoff == (backoff.Policy{}) {
		opts.Backoff = backoff.Default()
	}
	if opts.MaxRefreshAttempts <= 0 {
		opts.MaxRefreshAttempts = 3
	}
	return &Source{opts: opts, now: time.Now}, nil
}

// Token returns a bearer token for the Kiro service, refreshing first
// when the cached credentials are expired or about to expire.
func (s *Source) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(); err != nil {
		return "", err
	}
	if s.staleLocked() {
		if err := s.refreshLocked(ctx); err != nil {
			return "", err
		}
	}
	if strings.TrimSpace(s.creds.AccessToken) == "" {
		return "", ErrNoCredentials
	}
	return s.creds.AccessToken, nil
}

// ProfileARN reports the profile ARN recorded in the token file, if any.
func (s *Source) ProfileARN() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(); err != nil {
		return ""
	}
	return s.creds.ProfileARN
}

// Credentials returns a copy of the cached credential material, loading
// the token file if needed. It never triggers a refresh; diagnostic
// callers use it to inspect expiry without touching the network.
func (s *Source) Credentials() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(); err != nil {
		return Credentials{}, err
	}
	return s.creds, nil
}

// Invalidate drops the cached credentials so the next Token call
// re-reads the token file.
func (s *Source) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
}

// TokenSource adapts the source to the standard oauth2 interface for
// hosts that wire credentials through golang.org/x/oauth2.
func (s *Source) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &tokenSource{ctx: ctx, src: s})
}

type tokenSource struct {
	ctx context.Context
	src *Source
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	bearer, err := ts.src.Token(ts.ctx)
	if err != nil {
		return nil, err
	}
	ts.src.mu.Lock()
	expiry := ts.src.creds.Expiry()
	ts.src.mu.Unlock()
	return &oauth2.Token{AccessToken: bearer, TokenType: "Bearer", Expiry: expiry}, nil
}

func (s *Source) ensureLoadedLocked() error {
	if s.loaded {
		return nil
	}
	data, err := os.ReadFile(s.opts.TokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNoCredentials, s.opts.TokenPath)
		}
		return fmt.Errorf("read token file: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return fmt.Errorf("parse token file %s: %w", s.opts.TokenPath, err)
	}
	s.creds = creds
	s.loaded = true
	return nil
}

// staleLocked reports whether the cached token needs a refresh. A token
// with no resolvable expiry is assumed valid; the service is the
// authority on opaque tokens.
func (s *Source) staleLocked() bool {
	if strings.TrimSpace(s.creds.AccessToken) == "" {
		return true
	}
	expiry := s.creds.Expiry()
	if expiry.IsZero() {
		return false
	}
	return !expiry.After(s.now().Add(expirySkew))
}

func (s *Source) persistLocked() error {
	data, err := json.MarshalIndent(s.creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.opts.TokenPath, data, 0o600)
}
