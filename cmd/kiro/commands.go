package main

import (
	"time"

	"github.com/spf13/cobra"
)

// =============================================================================
// Chat Command
// =============================================================================

// chatOptions carries the chat command's flag values.
type chatOptions struct {
	configPath   string
	model        string
	systemPrompt string
	recordPath   string
	replayPath   string
	showThinking bool
}

// buildChatCmd creates the "chat" command for conversing with a model.
func buildChatCmd() *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with a model over the Kiro service",
		Long: `Stream conversational turns against the Kiro service.

With a message argument (or piped stdin) a single turn runs and the
answer prints to stdout. Without one an interactive session starts.

Sessions can be recorded to a tape file and replayed later without
touching the network:

	kiro chat --record session.tape.json
	kiro chat --replay session.tape.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := ""
			if len(args) == 1 {
				message = args[0]
			}
			return runChat(cmd, opts, message)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath(), "Path to configuration file")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model id or alias (default from config)")
	cmd.Flags().StringVar(&opts.systemPrompt, "system", "", "System prompt for the session")
	cmd.Flags().StringVar(&opts.recordPath, "record", "", "Record the session to a tape file")
	cmd.Flags().StringVar(&opts.replayPath, "replay", "", "Replay a recorded tape instead of calling the service")
	cmd.Flags().BoolVar(&opts.showThinking, "show-thinking", false, "Print the model's reasoning stream")

	return cmd
}

// =============================================================================
// Models Command
// =============================================================================

// buildModelsCmd creates the "models" command for listing the catalog.
func buildModelsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the selectable models",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModels(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

// =============================================================================
// Status Command
// =============================================================================

// buildStatusCmd creates the "status" command for credential and service
// health overview.
func buildStatusCmd() *cobra.Command {
	var (
		configPath string
		jsonOutput bool
		probe      bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration and credential status",
		Long: `Display the effective configuration and credential state.

Shows the service endpoint, the default model, and whether the token
file holds usable credentials. With --probe a one-message turn runs
against the service to verify end-to-end connectivity.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, configPath, jsonOutput, probe)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to configuration file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().BoolVar(&probe, "probe", false, "Send a one-message turn to verify connectivity")

	return cmd
}

// =============================================================================
// Usage Command
// =============================================================================

// buildUsageCmd creates the "usage" command for reading the token ledger.
func buildUsageCmd() *cobra.Command {
	var (
		configPath string
		recent     int
		since      time.Duration
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show recorded token usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsage(cmd, configPath, recent, since, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to configuration file")
	cmd.Flags().IntVar(&recent, "recent", 10, "Number of recent turns to list")
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "Aggregation window for totals")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

// =============================================================================
// Doctor Command
// =============================================================================

// buildDoctorCmd creates the "doctor" command for config validation.
func buildDoctorCmd() *cobra.Command {
	var (
		configPath string
		showSchema bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, configPath, showSchema)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to configuration file")
	cmd.Flags().BoolVar(&showSchema, "schema", false, "Print the configuration JSON schema and exit")

	return cmd
}
