package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/kiro/internal/catalog"
	"github.com/haasonsaas/kiro/internal/usage"
)

// =============================================================================
// Usage Command Handler
// =============================================================================

// runUsage handles the usage command.
func runUsage(cmd *cobra.Command, configPath string, recent int, since time.Duration, jsonOutput bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, configPath)
	if err != nil {
		return err
	}

	store, err := usage.Open(cfg.Usage.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	totals, err := store.TotalsSince(ctx, time.Now().Add(-since))
	if err != nil {
		return err
	}
	byModel, err := store.TotalsByModel(ctx)
	if err != nil {
		return err
	}
	records, err := store.Recent(ctx, recent)
	if err != nil {
		return err
	}

	if jsonOutput {
		data, err := json.MarshalIndent(map[string]any{
			"window":   since.String(),
			"totals":   totals,
			"by_model": byModel,
			"recent":   records,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "Last %s: %s across %d turns\n",
		usage.FormatDurationMs(since.Milliseconds()), usage.FormatTotals(totals), totals.Turns)

	if len(byModel) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "By model (all time):")
		for _, mt := range byModel {
			fmt.Fprintf(out, "  %-28s %5d turns  in: %-8s out: %s\n",
				mt.Model, mt.Turns,
				usage.FormatTokenCount(mt.InputTokens),
				usage.FormatTokenCount(mt.OutputTokens))
		}
	}

	if len(records) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Recent turns:")
		for _, rec := range records {
			fmt.Fprintf(out, "  %s  %-28s in: %-8s out: %-8s ctx: %-7s %-9s %s\n",
				rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				rec.Model,
				usage.FormatTokenCount(rec.InputTokens),
				usage.FormatTokenCount(rec.OutputTokens),
				usage.FormatPercentage(rec.ContextPercent),
				rec.StopReason,
				usage.FormatDurationMs(rec.DurationMs))
		}
	}
	return nil
}

// =============================================================================
// Models Command Handler
// =============================================================================

// runModels handles the models command.
func runModels(cmd *cobra.Command, jsonOutput bool) error {
	out := cmd.OutOrStdout()
	list := catalog.New().List()

	if jsonOutput {
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "%-28s %-18s %8s %8s  %-9s %s\n",
		"MODEL", "NAME", "CONTEXT", "MAX OUT", "REASONING", "ALIASES")
	for _, m := range list {
		reasoning := ""
		if m.Reasoning {
			reasoning = "yes"
		}
		fmt.Fprintf(out, "%-28s %-18s %8s %8s  %-9s %s\n",
			m.ID,
			m.Name,
			usage.FormatTokenCount(int64(m.ContextWindow)),
			usage.FormatTokenCount(int64(m.MaxOutputTokens)),
			reasoning,
			strings.Join(m.Aliases, ", "))
	}
	return nil
}
