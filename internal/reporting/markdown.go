package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"defi-backtest-lab/internal/decision"
	"defi-backtest-lab/internal/domain"
)

// RenderMarkdown renders the run summary as a Markdown string.
func RenderMarkdown(r RunReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Backtest Report: %s\n\n", r.Name))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Strategy: %s | Bars: %d | Elapsed: %s\n\n", r.Strategy, r.Bars, r.Elapsed))
	if !r.Start.IsZero() {
		sb.WriteString(fmt.Sprintf("Range: %s to %s\n\n",
			r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339)))
	}

	sb.WriteString("## Performance\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Initial Net Value | %.6f |\n", r.Metrics.InitialNetValue))
	sb.WriteString(fmt.Sprintf("| Final Net Value | %.6f |\n", r.Metrics.FinalNetValue))
	sb.WriteString(fmt.Sprintf("| Total Return | %.4f%% |\n", r.Metrics.TotalReturn*100))
	sb.WriteString(fmt.Sprintf("| Annualized Return | %.4f%% |\n", r.Metrics.AnnualizedReturn*100))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.4f%% |\n", r.Metrics.MaxDrawdown*100))
	sb.WriteString(fmt.Sprintf("| Bar Return Stddev | %.6f |\n", r.Metrics.ReturnStddev))
	sb.WriteString(fmt.Sprintf("| Bar Return P10/P50/P90 | %.6f / %.6f / %.6f |\n",
		r.Metrics.ReturnP10, r.Metrics.ReturnMedian, r.Metrics.ReturnP90))
	sb.WriteString("\n")

	sb.WriteString("## Actions\n\n")
	if len(r.ActionCounts) > 0 {
		tags := make([]string, 0, len(r.ActionCounts))
		for tag := range r.ActionCounts {
			tags = append(tags, string(tag))
		}
		sort.Strings(tags)
		sb.WriteString("| Action | Count |\n")
		sb.WriteString("|--------|-------|\n")
		for _, tag := range tags {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", tag, r.ActionCounts[domain.ActionType(tag)]))
		}
	} else {
		sb.WriteString("No actions recorded.\n")
	}
	sb.WriteString("\n")

	if r.Verdict != nil {
		sb.WriteString(decision.RenderMarkdown(r.Verdict))
	}
	return sb.String()
}
