package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haasonsaas/kiro/internal/backoff"
)

// maxRefreshBody caps how much of a refresh response gets read.
const maxRefreshBody = 1 << 20

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    string `json:"expiresAt"`
	ExpiresIn    int    `json:"expiresIn"`
	ProfileARN   string `json:"profileArn"`
}

// refreshLocked exchanges the refresh token for fresh credentials and
// persists them back to the token file. Attempts are paced by the
// configured backoff policy; 4xx responses abort immediately.
func (s *Source) refreshLocked(ctx context.Context) error {
	if strings.TrimSpace(s.creds.RefreshToken) == "" {
		if strings.TrimSpace(s.creds.AccessToken) == "" {
			return ErrNoCredentials
		}
		return fmt.Errorf("credentials expired: %w", ErrNoRefreshToken)
	}
	if strings.TrimSpace(s.opts.RefreshURL) == "" {
		return errors.New("credentials expired and no refresh endpoint configured")
	}

	err := backoff.Retry(ctx, s.opts.Backoff, s.opts.MaxRefreshAttempts, func(attempt int) error {
		return s.refreshOnce(ctx, attempt)
	})
	if err != nil {
		s.opts.Metrics.CredentialRefresh("error")
		s.opts.Logger.Warn(ctx, "credential refresh failed", "error", err)
		return fmt.Errorf("refresh credentials: %w", err)
	}
	s.opts.Metrics.CredentialRefresh("success")
	s.opts.Logger.Info(ctx, "credentials refreshed", "expires_at", s.creds.ExpiresAt)
	return nil
}

func (s *Source) refreshOnce(ctx context.Context, attempt int) error {
	body, err := json.Marshal(refreshRequest{RefreshToken: s.creds.RefreshToken})
	if err != nil {
		return backoff.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.RefreshURL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	s.opts.Logger.Debug(ctx, "refreshing credentials", "attempt", attempt)
	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxRefreshBody))
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		err := fmt.Errorf("refresh endpoint returned %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}

	var parsed refreshResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return fmt.Errorf("decode refresh response: %w", err)
	}
	if strings.TrimSpace(parsed.AccessToken) == "" {
		return backoff.Permanent(errors.New("refresh response missing access token"))
	}
	s.applyRefreshLocked(ctx, parsed)
	return nil
}

func (s *Source) applyRefreshLocked(ctx context.Context, parsed refreshResponse) {
	s.creds.AccessToken = parsed.AccessToken
	if parsed.RefreshToken != "" {
		s.creds.RefreshToken = parsed.RefreshToken
	}
	switch {
	case parsed.ExpiresAt != "":
		s.creds.ExpiresAt = parsed.ExpiresAt
	case parsed.ExpiresIn > 0:
		s.creds.ExpiresAt = s.now().Add(time.Duration(parsed.ExpiresIn) * time.Second).UTC().Format(time.RFC3339)
	default:
		s.creds.ExpiresAt = ""
	}
	if parsed.ProfileARN != "" {
		s.creds.ProfileARN = parsed.ProfileARN
	}
	if err := s.persistLocked(); err != nil {
		s.opts.Logger.Warn(ctx, "persist refreshed credentials", "error", err)
	}
}
