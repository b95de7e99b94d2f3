// Package main provides the CLI entry point for the kiro adapter.
//
// Kiro bridges a turn-based conversational model to the Kiro streaming
// inference service: it assembles protocol-legal requests from message
// history, streams chunked responses, splits inline reasoning from
// answer text, and reassembles tool calls into an ordered event stream.
//
// # Basic Usage
//
// Start an interactive chat:
//
//	kiro chat
//
// Send a single message and exit:
//
//	kiro chat "Summarize the design of this repository"
//
// List the selectable models:
//
//	kiro models
//
// Inspect credentials and configuration:
//
//	kiro status
//	kiro doctor
//
// # Environment Variables
//
//   - KIRO_CONFIG: Path to the configuration file (default: ~/.kiro/config.yaml)
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/kiro/internal/config"
)

// Build information - populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"     // Semantic version (e.g., "v1.0.0")
	commit  = "none"    // Git commit SHA
	date    = "unknown" // Build timestamp
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// This is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kiro",
		Short: "Kiro - Claude over the Kiro inference service",
		Long: `Kiro streams conversational turns against the Kiro inference service.

Credentials come from the token file maintained by the Kiro login
tooling; expired tokens refresh automatically. Responses stream to the
terminal as they arrive, with the model's inline reasoning split from
the answer text.

Documentation: https://github.com/haasonsaas/kiro`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		// SilenceUsage prevents printing usage on every error.
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildChatCmd(),
		buildModelsCmd(),
		buildStatusCmd(),
		buildUsageCmd(),
		buildDoctorCmd(),
	)

	return rootCmd
}

// resolveConfigPath applies the KIRO_CONFIG override when the flag was
// left at its default.
func resolveConfigPath(path string) string {
	if strings.TrimSpace(path) != "" && path != defaultConfigPath() {
		return path
	}
	if env := strings.TrimSpace(os.Getenv("KIRO_CONFIG")); env != "" {
		return env
	}
	return defaultConfigPath()
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "kiro.yaml"
	}
	return filepath.Join(home, ".kiro", "config.yaml")
}

// loadConfig loads the configuration file, falling back to built-in
// defaults when nothing was requested and the default path does not
// exist. An explicitly requested file must exist.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	explicit := cmd.Flags().Changed("config") || strings.TrimSpace(os.Getenv("KIRO_CONFIG")) != ""
	path = resolveConfigPath(path)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return config.Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return config.Load(path)
}
