package usage

import "fmt"

// FormatTokenCount formats a token count for display.
func FormatTokenCount(count int64) string {
	if count <= 0 {
		return "0"
	}
	if count >= 1_000_000 {
		return fmt.Sprintf("%.1fm", float64(count)/1_000_000)
	}
	if count >= 10_000 {
		return fmt.Sprintf("%dk", count/1_000)
	}
	if count >= 1_000 {
		return fmt.Sprintf("%.1fk", float64(count)/1_000)
	}
	return fmt.Sprintf("%d", count)
}

// FormatPercentage formats a context usage percentage.
func FormatPercentage(value float64) string {
	if value < 1 {
		return fmt.Sprintf("%.2f%%", value)
	}
	if value < 10 {
		return fmt.Sprintf("%.1f%%", value)
	}
	return fmt.Sprintf("%.0f%%", value)
}

// FormatDurationMs formats a duration in milliseconds.
func FormatDurationMs(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	if ms < 3600000 {
		return fmt.Sprintf("%.1fm", float64(ms)/60000)
	}
	return fmt.Sprintf("%.1fh", float64(ms)/3600000)
}

// FormatTotals formats aggregated usage with an in/out breakdown.
func FormatTotals(t *Totals) string {
	if t == nil || t.Total() == 0 {
		return "0 tokens"
	}
	return fmt.Sprintf("%s tokens (in: %s, out: %s)",
		FormatTokenCount(t.Total()),
		FormatTokenCount(t.InputTokens),
		FormatTokenCount(t.OutputTokens),
	)
}
