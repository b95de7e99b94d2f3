package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/kiro/internal/auth"
	"github.com/haasonsaas/kiro/internal/catalog"
	"github.com/haasonsaas/kiro/internal/config"
	"github.com/haasonsaas/kiro/internal/observability"
	"github.com/haasonsaas/kiro/internal/usage"
	"github.com/haasonsaas/kiro/pkg/models"
)

// =============================================================================
// Status Command Handler
// =============================================================================

// statusReport is the status command's output shape.
type statusReport struct {
	Version      string       `json:"version"`
	ConfigPath   string       `json:"config_path"`
	Endpoint     string       `json:"endpoint"`
	DefaultModel string       `json:"default_model"`
	TokenPath    string       `json:"token_path"`
	Credentials  string       `json:"credentials"`
	TokenExpiry  string       `json:"token_expiry,omitempty"`
	ProfileARN   string       `json:"profile_arn,omitempty"`
	Probe        *probeReport `json:"probe,omitempty"`
}

type probeReport struct {
	OK         bool   `json:"ok"`
	LatencyMs  int64  `json:"latency_ms"`
	StopReason string `json:"stop_reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// runStatus handles the status command.
func runStatus(cmd *cobra.Command, configPath string, jsonOutput, probe bool) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, configPath)
	if err != nil {
		return err
	}

	report := statusReport{
		Version:      version,
		ConfigPath:   resolveConfigPath(configPath),
		Endpoint:     cfg.Service.Endpoint,
		DefaultModel: cfg.Service.DefaultModel,
		TokenPath:    cfg.Auth.TokenPath,
	}

	source, err := auth.NewSource(auth.Options{
		TokenPath:  cfg.Auth.TokenPath,
		RefreshURL: cfg.Auth.RefreshURL,
	})
	if err != nil {
		return err
	}

	creds, credErr := source.Credentials()
	switch {
	case credErr != nil:
		report.Credentials = fmt.Sprintf("unavailable (%v)", credErr)
	case strings.TrimSpace(creds.AccessToken) == "":
		report.Credentials = "token file has no access token"
	default:
		report.Credentials = "present"
		report.ProfileARN = creds.ProfileARN
		if expiry := creds.Expiry(); !expiry.IsZero() {
			report.TokenExpiry = expiry.Format(time.RFC3339)
			if expiry.Before(time.Now()) {
				report.Credentials = "expired"
				if creds.RefreshToken != "" {
					report.Credentials = "expired (refreshable)"
				}
			}
		}
	}
	if cfg.Service.ProfileARN != "" {
		report.ProfileARN = cfg.Service.ProfileARN
	}

	if probe {
		report.Probe = probeService(cmd.Context(), cfg, source)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "Version:       %s\n", report.Version)
	fmt.Fprintf(out, "Config:        %s\n", report.ConfigPath)
	fmt.Fprintf(out, "Endpoint:      %s\n", report.Endpoint)
	fmt.Fprintf(out, "Default model: %s\n", report.DefaultModel)
	fmt.Fprintf(out, "Token file:    %s\n", report.TokenPath)
	fmt.Fprintf(out, "Credentials:   %s\n", report.Credentials)
	if report.TokenExpiry != "" {
		fmt.Fprintf(out, "Token expiry:  %s\n", report.TokenExpiry)
	}
	if report.ProfileARN != "" {
		fmt.Fprintf(out, "Profile ARN:   %s\n", report.ProfileARN)
	}
	if report.Probe != nil {
		if report.Probe.OK {
			fmt.Fprintf(out, "Probe:         ok (%s, %s)\n", report.Probe.StopReason, usage.FormatDurationMs(report.Probe.LatencyMs))
		} else {
			fmt.Fprintf(out, "Probe:         failed (%s)\n", report.Probe.Error)
		}
	}
	return nil
}

// probeService runs a one-message turn to verify end-to-end connectivity.
func probeService(ctx context.Context, cfg *config.Config, source *auth.Source) *probeReport {
	probeCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	provider, err := newProvider(cfg, source, observability.Nop(), nil, nil)
	if err != nil {
		return &probeReport{Error: err.Error()}
	}

	req := &models.Request{
		Model: cfg.Service.DefaultModel,
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "Reply with the single word OK."},
		},
	}

	start := time.Now()
	events, err := provider.Stream(probeCtx, req)
	if err != nil {
		return &probeReport{Error: err.Error()}
	}

	report := &probeReport{}
	for ev := range events {
		if !ev.Terminal() {
			continue
		}
		report.LatencyMs = time.Since(start).Milliseconds()
		report.StopReason = string(ev.Reason)
		if ev.Type == models.EventDone {
			report.OK = true
		} else {
			report.Error = ev.Error
		}
	}
	return report
}

// =============================================================================
// Doctor Command Handler
// =============================================================================

// runDoctor handles the doctor command.
func runDoctor(cmd *cobra.Command, configPath string, showSchema bool) error {
	out := cmd.OutOrStdout()

	if showSchema {
		data, err := config.JSONSchema()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	configPath = resolveConfigPath(configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	var warnings []string
	if _, ok := catalog.New().Resolve(cfg.Service.DefaultModel); !ok {
		warnings = append(warnings, fmt.Sprintf("default model %q is not in the catalog", cfg.Service.DefaultModel))
	}

	source, err := auth.NewSource(auth.Options{
		TokenPath:  cfg.Auth.TokenPath,
		RefreshURL: cfg.Auth.RefreshURL,
	})
	if err != nil {
		return err
	}
	creds, credErr := source.Credentials()
	switch {
	case credErr != nil:
		warnings = append(warnings, fmt.Sprintf("credentials unavailable: %v", credErr))
	case strings.TrimSpace(creds.AccessToken) == "":
		warnings = append(warnings, "token file has no access token")
	default:
		if expiry := creds.Expiry(); !expiry.IsZero() && expiry.Before(time.Now()) {
			if creds.RefreshToken == "" {
				warnings = append(warnings, "access token expired and no refresh token is present")
			} else {
				warnings = append(warnings, "access token expired; it will refresh on first use")
			}
		}
		if cfg.Service.ProfileARN == "" && creds.ProfileARN == "" {
			warnings = append(warnings, "no profile ARN configured; requests will omit it")
		}
	}

	if len(warnings) > 0 {
		fmt.Fprintln(out, "Warnings:")
		for _, warning := range warnings {
			fmt.Fprintf(out, "  - %s\n", warning)
		}
	}

	fmt.Fprintf(out, "Config OK (endpoint: %s)\n", cfg.Service.Endpoint)
	return nil
}
