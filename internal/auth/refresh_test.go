package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/haasonsaas/kiro/internal/backoff"
	"github.com/haasonsaas/kiro/internal/observability"
)

func quickBackoff() backoff.Policy {
	return backoff.Policy{Initial: time.Microsecond, Max: time.Millisecond, Factor: 2}
}

func expiredCredentials(refreshToken string) Credentials {
	return Credentials{
		AccessToken:  "stale",
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(-time.Minute).Format(time.RFC3339),
	}
}

func TestSource_Refresh(t *testing.T) {
	t.Run("exchanges refresh token", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			var req refreshRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode refresh request: %v", err)
			}
			if req.RefreshToken != "refresh-1" {
				t.Errorf("refreshToken = %q, want %q", req.RefreshToken, "refresh-1")
			}
			_ = json.NewEncoder(w).Encode(refreshResponse{
				AccessToken:  "fresh-token",
				RefreshToken: "refresh-2",
				ExpiresAt:    time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
			})
		}))
		defer server.Close()

		path := writeTokenFile(t, expiredCredentials("refresh-1"))
		metrics := observability.NewMetrics(prometheus.NewRegistry())
		src := newTestSource(t, Options{
			TokenPath:  path,
			RefreshURL: server.URL,
			Metrics:    metrics,
			Backoff:    quickBackoff(),
		})

		got, err := src.Token(context.Background())
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if got != "fresh-token" {
			t.Errorf("Token = %q, want %q", got, "fresh-token")
		}
		if n := calls.Load(); n != 1 {
			t.Errorf("refresh calls = %d, want 1", n)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read persisted token file: %v", err)
		}
		var persisted Credentials
		if err := json.Unmarshal(data, &persisted); err != nil {
			t.Fatalf("parse persisted token file: %v", err)
		}
		if persisted.AccessToken != "fresh-token" {
			t.Errorf("persisted accessToken = %q, want %q", persisted.AccessToken, "fresh-token")
		}
		if persisted.RefreshToken != "refresh-2" {
			t.Errorf("persisted refreshToken = %q, want %q", persisted.RefreshToken, "refresh-2")
		}

		if got := testutil.ToFloat64(metrics.CredentialRefreshes.WithLabelValues("success")); got != 1 {
			t.Errorf("success refreshes = %v, want 1", got)
		}

		if _, err := src.Token(context.Background()); err != nil {
			t.Fatalf("second Token: %v", err)
		}
		if n := calls.Load(); n != 1 {
			t.Errorf("refresh calls after reuse = %d, want 1", n)
		}
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_ = json.NewEncoder(w).Encode(refreshResponse{AccessToken: "fresh", ExpiresIn: 3600})
		}))
		defer server.Close()

		path := writeTokenFile(t, expiredCredentials("refresh-1"))
		src := newTestSource(t, Options{TokenPath: path, RefreshURL: server.URL, Backoff: quickBackoff()})

		got, err := src.Token(context.Background())
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if got != "fresh" {
			t.Errorf("Token = %q, want %q", got, "fresh")
		}
		if n := calls.Load(); n != 2 {
			t.Errorf("refresh calls = %d, want 2", n)
		}
	})

	t.Run("client errors do not retry", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		path := writeTokenFile(t, expiredCredentials("revoked"))
		metrics := observability.NewMetrics(prometheus.NewRegistry())
		src := newTestSource(t, Options{
			TokenPath:  path,
			RefreshURL: server.URL,
			Metrics:    metrics,
			Backoff:    quickBackoff(),
		})

		if _, err := src.Token(context.Background()); err == nil {
			t.Error("expected error for rejected refresh")
		}
		if n := calls.Load(); n != 1 {
			t.Errorf("refresh calls = %d, want 1", n)
		}
		if got := testutil.ToFloat64(metrics.CredentialRefreshes.WithLabelValues("error")); got != 1 {
			t.Errorf("error refreshes = %v, want 1", got)
		}
	})

	t.Run("keeps refresh token when response omits it", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(refreshResponse{
				AccessToken: "fresh",
				ExpiresAt:   time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
			})
		}))
		defer server.Close()

		path := writeTokenFile(t, expiredCredentials("keep-me"))
		src := newTestSource(t, Options{TokenPath: path, RefreshURL: server.URL, Backoff: quickBackoff()})

		if _, err := src.Token(context.Background()); err != nil {
			t.Fatalf("Token: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		var persisted Credentials
		if err := json.Unmarshal(data, &persisted); err != nil {
			t.Fatal(err)
		}
		if persisted.RefreshToken != "keep-me" {
			t.Errorf("persisted refreshToken = %q, want %q", persisted.RefreshToken, "keep-me")
		}
	})

	t.Run("expiresIn sets a deadline", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(refreshResponse{AccessToken: "fresh", ExpiresIn: 3600})
		}))
		defer server.Close()

		path := writeTokenFile(t, expiredCredentials("refresh-1"))
		src := newTestSource(t, Options{TokenPath: path, RefreshURL: server.URL, Backoff: quickBackoff()})

		before := time.Now()
		if _, err := src.Token(context.Background()); err != nil {
			t.Fatalf("Token: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		var persisted Credentials
		if err := json.Unmarshal(data, &persisted); err != nil {
			t.Fatal(err)
		}
		expiry := persisted.Expiry()
		if expiry.Before(before.Add(59*time.Minute)) || expiry.After(before.Add(61*time.Minute)) {
			t.Errorf("expiry = %v, want about an hour from now", expiry)
		}
	})

	t.Run("missing access token in response is fatal", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			_ = json.NewEncoder(w).Encode(refreshResponse{})
		}))
		defer server.Close()

		path := writeTokenFile(t, expiredCredentials("refresh-1"))
		src := newTestSource(t, Options{TokenPath: path, RefreshURL: server.URL, Backoff: quickBackoff()})

		if _, err := src.Token(context.Background()); err == nil {
			t.Error("expected error for empty refresh response")
		}
		if n := calls.Load(); n != 1 {
			t.Errorf("refresh calls = %d, want 1", n)
		}
	})
}
